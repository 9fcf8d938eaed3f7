package catalog

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/roach88/medibox/internal/store"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	tree *store.Store
}

// New constructs a Handler.
func New(tree *store.Store) *Handler {
	return &Handler{tree: tree}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Route("/medicines", func(r chi.Router) {
		r.Get("/", h.searchMedicines)
		r.Post("/search", h.searchMedicines)
	})

	r.Route("/db", func(r chi.Router) {
		r.Get("/*", h.getNode)
		r.Put("/*", h.putNode)
		r.Patch("/*", h.patchNode)
		r.Delete("/*", h.deleteNode)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type searchRequest struct {
	MedicineName string `json:"medicineName"`
}

func (h *Handler) searchMedicines(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if r.Method == http.MethodPost {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
	} else {
		req.MedicineName = r.URL.Query().Get("medicineName")
	}
	if foldName(req.MedicineName) == "" {
		respondError(w, http.StatusBadRequest, "medicineName is required")
		return
	}

	matches, err := Search(r.Context(), h.tree, req.MedicineName)
	if err != nil {
		internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, matches)
}

func (h *Handler) getNode(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	v, err := h.tree.Get(r.Context(), path)
	if err != nil {
		storeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func (h *Handler) putNode(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	var v any
	if err := decodeJSON(r, &v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := h.tree.Set(r.Context(), path, v); err != nil {
		storeError(w, r, err)
		return
	}
	h.getNode(w, r)
}

func (h *Handler) patchNode(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	var fields map[string]any
	if err := decodeJSON(r, &fields); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	ok, err := h.tree.Merge(r.Context(), path, fields)
	if err != nil {
		storeError(w, r, err)
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "no node at "+path)
		return
	}
	h.getNode(w, r)
}

func (h *Handler) deleteNode(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	if err := h.tree.Delete(r.Context(), path); err != nil {
		storeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requestLogger logs one line per request through slog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func storeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrInvalidPath) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	internalError(w, r, err)
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("request failed", "path", r.URL.Path, "error", err,
		"request_id", middleware.GetReqID(r.Context()))
	respondError(w, http.StatusInternalServerError, "internal error")
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
