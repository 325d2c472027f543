package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/profiler"
	"github.com/opensource-finance/kestrel/internal/scoring"
	"github.com/opensource-finance/kestrel/internal/store"
	"github.com/opensource-finance/kestrel/internal/validate"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	store     domain.ProfileStore
	cache     domain.Cache
	bus       domain.EventBus
	generator *profiler.Generator
	validator *validate.Validator
	version   string
	cacheTTL  time.Duration
}

// NewHandler creates a new API handler.
func NewHandler(profileStore domain.ProfileStore, cache domain.Cache, bus domain.EventBus, generator *profiler.Generator, validator *validate.Validator, version string, cacheTTL time.Duration) *Handler {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Handler{
		store:     profileStore,
		cache:     cache,
		bus:       bus,
		generator: generator,
		validator: validator,
		version:   version,
		cacheTTL:  cacheTTL,
	}
}

// ProfileResponse is the response for profile build and refresh requests.
type ProfileResponse struct {
	Profile  *domain.ProfileRecord `json:"profile"`
	Warnings []string              `json:"warnings,omitempty"`
}

// ScoreRequest is the request body for POST /corridors/{code}/score.
type ScoreRequest struct {
	Value   float64 `json:"value"`
	Feature string  `json:"feature"`
}

// ScoreResponse is the response for POST /corridors/{code}/score.
type ScoreResponse struct {
	CorridorCode   string  `json:"corridorCode"`
	Feature        string  `json:"feature"`
	Value          float64 `json:"value"`
	Score          float64 `json:"score"`
	ProfileVersion string  `json:"profileVersion"`
}

// RollbackRequest is the request body for POST /corridors/{code}/rollback.
type RollbackRequest struct {
	Steps int `json:"steps"`
}

// RefreshRequest extends a batch submission with an optional blend factor
// override. A nil BlendFactor uses the configured default.
type RefreshRequest struct {
	domain.BatchRequest
	BlendFactor *float64 `json:"blendFactor,omitempty"`
}

// BuildProfile handles POST /corridors/{code}/profile requests. It generates
// a fresh profile from the submitted batch, validates it, and installs it as
// the corridor's current profile.
func (h *Handler) BuildProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := chi.URLParam(r, "code")

	var req domain.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Transactions) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transactions are required",
		})
		return
	}

	profile, warnings, err := h.generator.Generate(req.Transactions, code, req.FraudLabels)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	result := h.validator.ValidateProfile(profile)
	if !result.IsValid() {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	warnings = append(warnings, result.Warnings...)

	if err := h.installProfile(ctx, profile); err != nil {
		slog.Error("failed to save profile", "corridor", code, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save profile",
		})
		return
	}

	slog.Info("profile built",
		"corridor", code,
		"version", profile.Version,
		"transactions", profile.TransactionCount,
		"warnings", len(warnings),
	)
	writeJSON(w, http.StatusCreated, ProfileResponse{
		Profile:  profile.ToRecord(),
		Warnings: warnings,
	})
}

// RefreshProfile handles POST /corridors/{code}/refresh requests. It blends a
// new batch into the corridor's current profile.
func (h *Handler) RefreshProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := chi.URLParam(r, "code")

	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Transactions) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transactions are required",
		})
		return
	}

	existing, err := h.store.GetCurrent(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "corridor has no profile to refresh",
		})
		return
	}
	if err != nil {
		slog.Error("failed to load current profile", "corridor", code, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load current profile",
		})
		return
	}

	blendFactor := h.generator.BlendFactor()
	if req.BlendFactor != nil {
		blendFactor = *req.BlendFactor
	}

	updated, warnings, err := h.generator.Update(req.Transactions, existing, req.FraudLabels, blendFactor)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	result := h.validator.ValidateUpdate(existing, updated)
	if !result.IsValid() {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	warnings = append(warnings, result.Warnings...)

	if err := h.installProfile(ctx, updated); err != nil {
		slog.Error("failed to save refreshed profile", "corridor", code, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save profile",
		})
		return
	}

	if drift := h.validator.DriftWarnings(existing, updated); len(drift) > 0 {
		h.publishEvent(ctx, domain.TopicProfileDrift, map[string]any{
			"corridor_code": code,
			"version":       updated.Version,
			"warnings":      drift,
		})
	}

	slog.Info("profile refreshed",
		"corridor", code,
		"version", updated.Version,
		"blend_factor", blendFactor,
		"warnings", len(warnings),
	)
	writeJSON(w, http.StatusOK, ProfileResponse{
		Profile:  updated.ToRecord(),
		Warnings: warnings,
	})
}

// GetProfile handles GET /corridors/{code}/profile requests, cache first.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := chi.URLParam(r, "code")

	if h.cache != nil {
		if cached, err := h.cache.GetProfile(ctx, code); err == nil && cached != nil {
			writeJSON(w, http.StatusOK, cached.ToRecord())
			return
		}
	}

	profile, err := h.store.GetCurrent(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "corridor profile not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get profile", "corridor", code, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get profile",
		})
		return
	}

	if h.cache != nil {
		_ = h.cache.SetProfile(ctx, code, profile, h.cacheTTL)
	}

	writeJSON(w, http.StatusOK, profile.ToRecord())
}

// GetMetadata handles GET /corridors/{code}/metadata requests.
func (h *Handler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := chi.URLParam(r, "code")

	md, err := h.store.GetMetadata(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "corridor profile not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get metadata", "corridor", code, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get metadata",
		})
		return
	}

	writeJSON(w, http.StatusOK, md)
}

// GetHistory handles GET /corridors/{code}/history requests.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := chi.URLParam(r, "code")

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
			return
		}
		limit = parsed
	}

	history, err := h.store.GetHistory(ctx, code, limit)
	if err != nil {
		slog.Error("failed to get history", "corridor", code, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get history",
		})
		return
	}

	records := make([]*domain.ProfileRecord, 0, len(history))
	for _, p := range history {
		records = append(records, p.ToRecord())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"corridorCode": code,
		"history":      records,
		"count":        len(records),
	})
}

// Rollback handles POST /corridors/{code}/rollback requests.
func (h *Handler) Rollback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := chi.URLParam(r, "code")

	req := RollbackRequest{Steps: 1}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid JSON request body",
			})
			return
		}
	}
	if req.Steps <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "steps must be positive",
		})
		return
	}

	restored, err := h.store.Rollback(ctx, code, req.Steps)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "not enough archived profiles to roll back",
		})
		return
	}
	if err != nil {
		slog.Error("rollback failed", "corridor", code, "steps", req.Steps, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "rollback failed",
		})
		return
	}

	if h.cache != nil {
		_ = h.cache.InvalidateProfile(ctx, code)
	}
	h.publishEvent(ctx, domain.TopicProfileRolledBack, map[string]any{
		"corridor_code": code,
		"version":       restored.Version,
		"steps":         req.Steps,
	})

	slog.Info("profile rolled back",
		"corridor", code,
		"steps", req.Steps,
		"restored_version", restored.Version,
	)
	writeJSON(w, http.StatusOK, ProfileResponse{Profile: restored.ToRecord()})
}

// Score handles POST /corridors/{code}/score requests.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := chi.URLParam(r, "code")

	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	profile, err := h.loadProfile(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "corridor profile not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to load profile for scoring", "corridor", code, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load profile",
		})
		return
	}

	score, err := scoring.Score(req.Value, profile, scoring.Feature(req.Feature))
	if errors.Is(err, scoring.ErrUnknownFeature) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "scoring failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, ScoreResponse{
		CorridorCode:   code,
		Feature:        req.Feature,
		Value:          req.Value,
		Score:          score,
		ProfileVersion: profile.Version,
	})
}

// ListCorridors handles GET /corridors requests.
func (h *Handler) ListCorridors(w http.ResponseWriter, r *http.Request) {
	codes, err := h.store.ListCorridors(r.Context())
	if err != nil {
		slog.Error("failed to list corridors", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list corridors",
		})
		return
	}
	if codes == nil {
		codes = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"corridors": codes,
		"count":     len(codes),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// installProfile saves a profile, invalidates its cache entry, and publishes
// the saved event.
func (h *Handler) installProfile(ctx context.Context, profile *domain.CorridorProfile) error {
	if _, err := h.store.Save(ctx, profile); err != nil {
		return err
	}
	if h.cache != nil {
		_ = h.cache.InvalidateProfile(ctx, profile.CorridorCode)
	}
	h.publishEvent(ctx, domain.TopicProfileSaved, map[string]any{
		"corridor_code":     profile.CorridorCode,
		"version":           profile.Version,
		"transaction_count": profile.TransactionCount,
	})
	return nil
}

// loadProfile reads a profile cache-first, falling back to the store and
// repopulating the cache on a hit.
func (h *Handler) loadProfile(ctx context.Context, code string) (*domain.CorridorProfile, error) {
	if h.cache != nil {
		if cached, err := h.cache.GetProfile(ctx, code); err == nil && cached != nil {
			return cached, nil
		}
	}

	profile, err := h.store.GetCurrent(ctx, code)
	if err != nil {
		return nil, err
	}
	if h.cache != nil {
		_ = h.cache.SetProfile(ctx, code, profile, h.cacheTTL)
	}
	return profile, nil
}

// publishEvent publishes a JSON event, logging rather than failing the
// request on error.
func (h *Handler) publishEvent(ctx context.Context, topic string, payload map[string]any) {
	if h.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := h.bus.Publish(ctx, topic, data); err != nil {
		slog.Error("failed to publish event", "topic", topic, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
