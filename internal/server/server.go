// Package server exposes the dashboard pages and the JSON API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"vtreporter/internal/recipients"
	"vtreporter/internal/report"
	"vtreporter/internal/scheduler"
	logx "vtreporter/pkg/logx"
)

type Config struct {
	Addr           string
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
}

type Server struct {
	cfg     Config
	log     logx.Logger
	cache   *report.Cache
	builder *report.Builder
	sched   *scheduler.Service
	recips  *recipients.Store
}

func New(cfg Config, cache *report.Cache, builder *report.Builder, sched *scheduler.Service, recips *recipients.Store, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{
		cfg:     cfg,
		log:     log,
		cache:   cache,
		builder: builder,
		sched:   sched,
		recips:  recips,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(s.rateLimit())

	// Dashboard pages.
	r.Get("/", s.page("index.html"))
	r.Get("/report", s.page("report.html"))
	r.Get("/retranscode", s.page("retranscode.html"))
	r.Get("/email", s.page("emails.html"))
	r.Handle("/static/*", staticHandler())

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			MaxAge:         300,
		}))
		r.Get("/report", s.handleReport)
		r.Get("/retranscode", s.handleRetranscode)
		r.Get("/runs", s.handleRuns)
		r.Get("/schedule", s.handleSchedule)
	})

	// Recipient management. Kept at the root for compatibility with the
	// previous deployment's paths.
	r.Get("/emails", s.handleEmailsList)
	r.Post("/emails/add", s.handleEmailsAdd)
	r.Post("/emails/remove", s.handleEmailsRemove)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", logx.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			return srv.Close()
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			logx.String("method", r.Method),
			logx.String("path", r.URL.Path),
			logx.Int("status", ww.Status()),
			logx.Duration("took", time.Since(start)),
		)
	})
}
