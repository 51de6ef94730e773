package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/denismitr/portfoliocad"
	"github.com/denismitr/portfoliocad/internal/metrics"
	"github.com/denismitr/portfoliocad/options"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

// ImageStore is what the api needs from *portfoliocad.Store.
type ImageStore interface {
	Put(ctx context.Context, id, dataURL string, opts ...*options.PutOptions) error
	Get(ctx context.Context, id string) (*portfoliocad.ImageRecord, error)
	Delete(ctx context.Context, id string) error
	GetDataURL(ctx context.Context, id string) (string, bool, error)
	Keys(ctx context.Context, opts *options.ListOptions) ([]string, error)
}

// NewRouter wires the image api, the save endpoint (when save is not nil)
// and the metrics endpoint.
func NewRouter(store ImageStore, save http.Handler, m *metrics.Metrics) *mux.Router {
	h := &images{store: store}

	r := mux.NewRouter()
	r.Use(requestLogger(m))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/images", h.list).Methods(http.MethodGet)
	api.HandleFunc("/images/{id}", h.put).Methods(http.MethodPut)
	api.HandleFunc("/images/{id}", h.get).Methods(http.MethodGet)
	api.HandleFunc("/images/{id}", h.delete).Methods(http.MethodDelete)
	api.HandleFunc("/images/{id}/data", h.data).Methods(http.MethodGet)

	if save != nil {
		api.Handle("/save-data", save)
	}

	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	return r
}

type Server struct {
	srv *http.Server
}

func NewServer(addr string, h http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run serves until ctx is done and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http server stopped")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "http server shutdown")
	}

	log.Info().Msg("http server stopped")
	return nil
}
