package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/danmuck/aerctl/internal/auth"
	"github.com/danmuck/aerctl/internal/capture"
	"github.com/danmuck/aerctl/internal/observability"
	"github.com/danmuck/aerctl/internal/sink"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Capture is the pipeline surface the admin API drives.
type Capture interface {
	Snapshot() capture.Stats
	RequestReset(clearCounters bool)
	Running() bool
}

// StreamControl is the runtime switch and counters of a stream sink.
type StreamControl interface {
	Stats() sink.StreamStats
	ResetStats()
	Enabled() bool
	SetEnabled(bool)
}

type Config struct {
	ID          string
	Addr        string
	CorsOrigins []string
	// Auth guards the POST routes; nil leaves them open.
	Auth auth.Validator
}

// Server is the admin HTTP surface of one capture process.
type Server struct {
	cfg      Config
	capture  Capture
	stream   StreamControl
	router   *gin.Engine
	log      zerolog.Logger
	appeared time.Time
}

// New builds the router. stream may be nil when events are not streamed.
func New(cfg Config, c Capture, stream StreamControl, logger zerolog.Logger) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware(cfg.ID))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", auth.TokenHeader},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:      cfg,
		capture:  c,
		stream:   stream,
		router:   r,
		log:      logger.With().Str("component", "admin").Logger(),
		appeared: time.Now(),
	}
	s.RegisterRoutes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Serve listens on cfg.Addr until ctx is cancelled, then shuts down within
// five seconds.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("admin server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
