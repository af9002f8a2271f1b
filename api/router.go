// Package api serves the HTTP surface of the simulator.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kilianp07/agv/api/control"
	dispatchapi "github.com/kilianp07/agv/api/dispatch"
	"github.com/kilianp07/agv/api/orders"
	"github.com/kilianp07/agv/api/vehicles"
	"github.com/kilianp07/agv/core/eventlog"
	"github.com/kilianp07/agv/core/logger"
	"github.com/kilianp07/agv/core/status"
)

// Config configures the HTTP server.
type Config struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
	// Token protects the event log endpoint when set.
	Token string `json:"token"`
}

func (c *Config) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// Engine is what the API needs from the simulation.
type Engine interface {
	control.Controller
	orders.Submitter
}

// Deps are the collaborators served by the router.
type Deps struct {
	Engine Engine
	Status status.Store
	Events eventlog.Store
	Token  string
	Log    logger.Logger
}

// NewRouter builds the chi router of the API.
func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = logger.Nop{}
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(d.Log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Method(http.MethodGet, "/api/vehicles", vehicles.NewStatusHandler(d.Status))
	r.Method(http.MethodGet, "/api/vehicles/{vehicleId}", vehicles.NewVehicleHandler(d.Status))
	r.Method(http.MethodGet, "/api/orders", orders.NewListHandler(d.Status))
	r.Method(http.MethodPost, "/api/orders", orders.NewCreateHandler(d.Engine))
	r.Method(http.MethodGet, "/api/orders/{orderId}", orders.NewGetHandler(d.Status))
	r.Method(http.MethodDelete, "/api/orders/{orderId}", orders.NewCancelHandler(d.Engine))
	r.Method(http.MethodGet, "/api/dispatch/logs", dispatchapi.NewLogHandler(d.Events, d.Token))
	control.Routes(r, d.Engine)
	return r
}

func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debugw("http request", map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      ww.Status(),
				"duration_ms": time.Since(start).Milliseconds(),
				"request_id":  middleware.GetReqID(r.Context()),
			})
		})
	}
}

// Serve runs an HTTP server for h on addr until ctx is canceled.
func Serve(ctx context.Context, addr string, h http.Handler, log logger.Logger) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("api server shutdown: %v", err)
		}
		cancel()
	}()
	log.Infof("serving api on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
