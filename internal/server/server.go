// Package server exposes a psu.OutletController over HTTP so a host (a
// printer UI, a home automation hub, curl) can drive the PSU and its
// auxiliary outlets.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/logr"

	"github.com/zberg/go-kasaplug/pkg/psu"
)

// Server routes HTTP requests to the registered controller.
type Server struct {
	ctl    psu.OutletController
	logger logr.Logger
	router chi.Router
}

// New registers ctl and builds the router. The server keeps no other
// reference to the host.
func New(ctl psu.OutletController, logger logr.Logger) *Server {
	s := &Server{ctl: ctl, logger: logger}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.logRequests,
		middleware.Recoverer,
		middleware.StripSlashes,
		middleware.Timeout(30*time.Second),
	)

	router.Route("/api", func(r chi.Router) {
		r.Get("/psu", s.getSystemState)
		r.Post("/psu/on", s.turnSystem(true))
		r.Post("/psu/off", s.turnSystem(false))

		r.Get("/outlets", s.listOutlets)
		r.Get("/outlets/{name}", s.getOutletState)
		r.Post("/outlets/{name}/on", s.turnOutlet(true))
		r.Post("/outlets/{name}/off", s.turnOutlet(false))
	})

	s.router = router
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type stateResponse struct {
	Name string `json:"name,omitempty"`
	On   bool   `json:"on"`
}

func (s *Server) getSystemState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, stateResponse{On: s.ctl.SystemState(r.Context())})
}

func (s *Server) turnSystem(on bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if on {
			s.ctl.TurnSystemOn(r.Context())
		} else {
			s.ctl.TurnSystemOff(r.Context())
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) listOutlets(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ctl.Outlets())
}

func (s *Server) getOutletState(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.known(name) {
		http.Error(w, psu.ErrUnknownOutlet.Error(), http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, stateResponse{Name: name, On: s.ctl.OutletState(r.Context(), name)})
}

func (s *Server) turnOutlet(on bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		var err error
		if on {
			err = s.ctl.TurnOutletOn(r.Context(), name)
		} else {
			err = s.ctl.TurnOutletOff(r.Context(), name)
		}

		switch {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, psu.ErrUnknownOutlet):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, psu.ErrOutletDisabled):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusBadGateway)
		}
	}
}

func (s *Server) known(name string) bool {
	for _, o := range s.ctl.Outlets() {
		if o.Name == name {
			return true
		}
	}
	return false
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(err, "failed to write response")
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.V(1).Info("request",
				"id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
