package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Alp4ka/flowpager"
)

// usersPager is the part of a flowpager.Pager the demo drives. Pagers keyed by
// page numbers and by keyset tokens both satisfy it.
type usersPager interface {
	Snapshot() flowpager.Snapshot[user]
	Subscribe() (<-chan flowpager.Snapshot[user], func())
	ReportAnchor(position int) error
	Retry(direction flowpager.LoadDirection) error
	Refresh() error
	Close() error
}

type loadStateView struct {
	Status          flowpager.LoadStatus `json:"status"`
	EndOfPagination bool                 `json:"end_of_pagination,omitempty"`
	ErrorKind       string               `json:"error_kind,omitempty"`
	Error           string               `json:"error,omitempty"`
}

type snapshotView struct {
	Version            uint64                   `json:"version"`
	PlaceholdersBefore int                      `json:"placeholders_before"`
	PlaceholdersAfter  int                      `json:"placeholders_after"`
	Items              []user                   `json:"items"`
	LoadState          map[string]loadStateView `json:"load_state"`
}

func newSnapshotView(s flowpager.Snapshot[user]) snapshotView {
	view := func(state flowpager.LoadState) loadStateView {
		ret := loadStateView{
			Status:          state.Status,
			EndOfPagination: state.EndOfPagination,
		}
		if state.IsError() {
			ret.ErrorKind = string(state.ErrorKind)
			if state.Err != nil {
				ret.Error = state.Err.Error()
			}
		}

		return ret
	}

	return snapshotView{
		Version:            s.Version,
		PlaceholdersBefore: s.PlaceholdersBefore(),
		PlaceholdersAfter:  s.PlaceholdersAfter(),
		Items:              s.Items(),
		LoadState: map[string]loadStateView{
			flowpager.DirectionRefresh.String(): view(s.LoadState.Refresh),
			flowpager.DirectionPrepend.String(): view(s.LoadState.Prepend),
			flowpager.DirectionAppend.String():  view(s.LoadState.Append),
		},
	}
}

type anchorRequest struct {
	Position int `json:"position"`
}

type retryRequest struct {
	Direction flowpager.LoadDirection `json:"direction"`
}

// HTTPServer exposes a pager over HTTP.
type HTTPServer struct {
	pager  usersPager
	router *mux.Router
	server *http.Server
	logger *zap.Logger
}

func NewHTTPServer(addr string, pager usersPager, metricsEnabled bool, logger *zap.Logger) *HTTPServer {
	s := &HTTPServer{
		pager:  pager,
		router: mux.NewRouter(),
		logger: logger,
	}

	s.router.HandleFunc("/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	s.router.HandleFunc("/anchor", s.handleAnchor).Methods(http.MethodPost)
	s.router.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	s.router.HandleFunc("/retry", s.handleRetry).Methods(http.MethodPost)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if metricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler())
	}

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) Start() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, newSnapshotView(s.pager.Snapshot()))
}

func (s *HTTPServer) handleAnchor(w http.ResponseWriter, r *http.Request) {
	var req anchorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.pager.ReportAnchor(req.Position); err != nil {
		s.respondPagerError(w, err)
		return
	}

	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"position": req.Position,
	})
}

func (s *HTTPServer) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	if err := s.pager.Refresh(); err != nil {
		s.respondPagerError(w, err)
		return
	}

	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "refreshing",
	})
}

func (s *HTTPServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	var req retryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.pager.Retry(req.Direction); err != nil {
		s.respondPagerError(w, err)
		return
	}

	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"direction": req.Direction,
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
	})
}

func (s *HTTPServer) respondPagerError(w http.ResponseWriter, err error) {
	if errors.Is(err, flowpager.ErrPagerClosed) {
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	s.respondError(w, http.StatusBadRequest, err.Error())
}

func (s *HTTPServer) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

func (s *HTTPServer) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{
		"error": message,
	})
}
