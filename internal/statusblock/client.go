package statusblock

import (
	"errors"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

type ClientConfig struct {
	Addr    string
	SlaveID uint8
	Timeout time.Duration
}

// Client is one Modbus TCP connection to the status slave.
type Client struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

func Dial(cfg ClientConfig) (*Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("statusblock: modbus addr required")
	}
	h := modbus.NewTCPClientHandler(cfg.Addr)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.SlaveID
	if err := h.Connect(); err != nil {
		return nil, err
	}
	return &Client{handler: h, client: modbus.NewClient(h)}, nil
}

func (c *Client) WriteRegisters(addr uint16, regs []uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.client.WriteMultipleRegisters(addr, uint16(len(regs)), packRegisters(regs))
	return err
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}
