package main

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/watchtracker/internal/model"
	"github.com/sells-group/watchtracker/internal/monitoring"
	"github.com/sells-group/watchtracker/internal/store"
	"github.com/sells-group/watchtracker/internal/tracker"
)

// api holds the dependencies of the HTTP handlers.
type api struct {
	tracker    *tracker.Service
	store      store.Store
	cronSecret string
}

// buildRouter registers every route on a chi router.
func buildRouter(a *api, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/check-stock", a.checkStock)
		r.Get("/cron-scan", a.cronCycle)
		r.Post("/cron-scan", a.cronScanOne)
		r.Get("/stats", a.stats)

		r.Route("/watches", func(r chi.Router) {
			r.Get("/", a.listWatches)
			r.Post("/", a.createWatch)
			r.Get("/{id}", a.getWatch)
			r.Delete("/{id}", a.deleteWatch)
		})
	})

	return r
}

type checkStockRequest struct {
	URL       string `json:"url"`
	WatchName string `json:"watchName"`
	MatchName string `json:"matchName"`
	WatchID   string `json:"watchId"`
}

func (a *api) checkStock(w http.ResponseWriter, r *http.Request) {
	var req checkStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := req.MatchName
	if name == "" {
		name = req.WatchName
	}

	res, err := a.tracker.Check(r.Context(), tracker.CheckRequest{
		URL:       req.URL,
		MatchName: name,
		WatchID:   req.WatchID,
	})
	if err != nil {
		var ie *model.InputError
		switch {
		case errors.As(err, &ie):
			writeError(w, http.StatusBadRequest, ie.Error())
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			zap.L().Error("check-stock failed", zap.String("url", req.URL), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"status":  model.StatusTechError,
				"error":   err.Error(),
				"results": []string{},
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// cronCycle scans every watch of the requested site.
func (a *api) cronCycle(w http.ResponseWriter, r *http.Request) {
	if !a.authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	report, err := a.tracker.RunCycle(r.Context(), r.URL.Query().Get("site"))
	if err != nil {
		zap.L().Error("cron cycle failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"total":     report.Total,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
	})
}

type cronScanRequest struct {
	WatchID   string `json:"watchId"`
	WatchName string `json:"watchName"`
	URL       string `json:"url"`
}

// cronScanOne scans a single stored watch. Scan failures answer
// success=false rather than an error status.
func (a *api) cronScanOne(w http.ResponseWriter, r *http.Request) {
	var req cronScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.WatchID == "" {
		writeError(w, http.StatusBadRequest, "watchId is required")
		return
	}

	_, err := a.tracker.ScanWatch(r.Context(), req.WatchID, req.WatchName, req.URL)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": err == nil})
}

func (a *api) listWatches(w http.ResponseWriter, r *http.Request) {
	watches, err := a.store.ListWatches(r.Context(), store.WatchFilter{Site: r.URL.Query().Get("site")})
	if err != nil {
		zap.L().Error("list watches failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list watches failed")
		return
	}
	writeJSON(w, http.StatusOK, watches)
}

type createWatchRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Site string `json:"site"`
}

func (a *api) createWatch(w http.ResponseWriter, r *http.Request) {
	var req createWatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := a.store.CreateWatch(r.Context(), model.NewWatch(
		strings.TrimSpace(req.Name), strings.TrimSpace(req.URL), strings.TrimSpace(req.Site),
	))
	if err != nil {
		var ie *model.InputError
		if errors.As(err, &ie) {
			writeError(w, http.StatusBadRequest, ie.Error())
			return
		}
		zap.L().Error("create watch failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "create watch failed")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *api) getWatch(w http.ResponseWriter, r *http.Request) {
	watch, err := a.store.GetWatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, watch)
}

func (a *api) deleteWatch(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeleteWatch(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// stats reports watch health. stale_hours sets the staleness window (default 24).
func (a *api) stats(w http.ResponseWriter, r *http.Request) {
	staleHours := 24
	if v := r.URL.Query().Get("stale_hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "stale_hours must be a non-negative integer")
			return
		}
		staleHours = n
	}

	snap, err := monitoring.NewCollector(a.store).Collect(r.Context(), time.Duration(staleHours)*time.Hour)
	if err != nil {
		zap.L().Error("collect stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "collect stats failed")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *api) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	zap.L().Error("store request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "store request failed")
}

// authorized checks the bearer token. An unset secret rejects every request.
func (a *api) authorized(r *http.Request) bool {
	if a.cronSecret == "" {
		return false
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(a.cronSecret)) == 1
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
