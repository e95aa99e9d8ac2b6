package ringbuf

import (
	"errors"
	"sync"
	"testing"

	"github.com/danmuck/aerctl/internal/testutil/testlog"
)

func TestNewRejectsSmallCapacity(t *testing.T) {
	testlog.Start(t)
	for _, n := range []int{0, 1} {
		if _, err := New(make([]uint32, n)); !errors.Is(err, ErrCapacity) {
			t.Fatalf("capacity %d: err=%v", n, err)
		}
	}
	if _, err := New(make([]uint32, 2)); err != nil {
		t.Fatalf("capacity 2: %v", err)
	}
}

func TestFillsToCapacityMinusOne(t *testing.T) {
	testlog.Start(t)
	const c = 8
	r, _ := New(make([]uint32, c))

	for i := 0; i < c-1; i++ {
		if r.Count()+r.Free() != c-1 {
			t.Fatalf("count+free=%d at %d", r.Count()+r.Free(), i)
		}
		if !r.Push(uint32(100 + i)) {
			t.Fatalf("push %d failed", i)
		}
	}
	if r.Push(999) {
		t.Fatalf("push beyond C-1 succeeded")
	}
	if !r.IsFull() || r.Free() != 0 || r.Count() != c-1 {
		t.Fatalf("full=%v free=%d count=%d", r.IsFull(), r.Free(), r.Count())
	}

	if v, ok := r.Peek(); !ok || v != 100 {
		t.Fatalf("peek=%d,%v", v, ok)
	}
	if r.Count() != c-1 {
		t.Fatalf("peek consumed a slot")
	}

	for i := 0; i < c-1; i++ {
		v, ok := r.Pop()
		if !ok || v != uint32(100+i) {
			t.Fatalf("pop %d = %d,%v", i, v, ok)
		}
		if r.Count()+r.Free() != c-1 {
			t.Fatalf("count+free=%d", r.Count()+r.Free())
		}
	}
	if _, ok := r.Pop(); ok {
		t.Fatalf("pop from empty ring succeeded")
	}
	if _, ok := r.Peek(); ok {
		t.Fatalf("peek from empty ring succeeded")
	}
}

func TestWrapAround(t *testing.T) {
	testlog.Start(t)
	r, _ := New(make([]uint32, 3))
	next := uint32(0)
	want := uint32(0)
	for round := 0; round < 10; round++ {
		for r.Push(next) {
			next++
		}
		for {
			v, ok := r.Pop()
			if !ok {
				break
			}
			if v != want {
				t.Fatalf("round %d: got %d want %d", round, v, want)
			}
			want++
		}
	}
	if want != next || want != 20 {
		t.Fatalf("want=%d next=%d", want, next)
	}
}

func TestCapacityTwoHoldsOne(t *testing.T) {
	testlog.Start(t)
	r, _ := New(make([]uint32, 2))
	if !r.Push(1) || r.Push(2) {
		t.Fatalf("capacity 2 must hold exactly one word")
	}
}

func TestReset(t *testing.T) {
	testlog.Start(t)
	r, _ := New(make([]uint32, 4))
	r.Push(1)
	r.Push(2)
	r.Reset()
	if !r.IsEmpty() || r.Count() != 0 || r.Free() != 3 {
		t.Fatalf("reset left count=%d free=%d", r.Count(), r.Free())
	}
	r.Push(7)
	if v, _ := r.Pop(); v != 7 {
		t.Fatalf("pop after reset=%d", v)
	}
}

func TestConcurrentProducerConsumerPreservesOrder(t *testing.T) {
	testlog.Start(t)
	const total = 200000
	r, _ := New(make([]uint32, 64))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint32(1); i <= total; {
			if r.Push(i) {
				i++
			}
		}
	}()

	want := uint32(1)
	for want <= total {
		v, ok := r.Pop()
		if !ok {
			continue
		}
		if v != want {
			t.Fatalf("got %d want %d", v, want)
		}
		want++
	}
	wg.Wait()
	if !r.IsEmpty() {
		t.Fatalf("ring not drained: count=%d", r.Count())
	}
}
