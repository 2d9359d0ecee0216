package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/palletplan/internal/metrics"
	"github.com/eugenenazirov/palletplan/internal/pallet"
	"github.com/eugenenazirov/palletplan/internal/storage"
	"github.com/eugenenazirov/palletplan/internal/units"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// maxQuantity keeps quantities well inside exact float64 integer range.
const maxQuantity = 1 << 40

// maxRequestBodyBytes caps JSON request bodies.
const maxRequestBodyBytes = 64 << 10

// Handler wires the planning engine and profile storage into HTTP handlers.
type Handler struct {
	engine  pallet.Engine
	storage storage.Storage
	logger  *zap.Logger
	units   units.System

	clock func() time.Time

	mu                sync.RWMutex
	profilesUpdatedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithLogger sets the logger used for plan outcomes.
func WithLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithDefaultUnits sets the unit system assumed when a request names none.
func WithDefaultUnits(system units.System) HandlerOption {
	return func(h *Handler) {
		h.units = system
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(engine pallet.Engine, store storage.Storage, opts ...HandlerOption) *Handler {
	h := &Handler{
		engine:  engine,
		storage: store,
		logger:  zap.NewNop(),
		units:   units.Imperial,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.profilesUpdatedAt = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListPallets(w http.ResponseWriter, r *http.Request) {
	system, err := units.ParseSystem(r.URL.Query().Get("units"), h.units)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid units", err.Error())
		return
	}

	profiles, err := h.storage.List(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}

	resp := profilesResponse{
		Units:     string(system),
		Profiles:  make([]profileResponse, 0, len(profiles)),
		UpdatedAt: h.currentProfilesUpdatedAt(),
	}
	for _, p := range profiles {
		resp.Profiles = append(resp.Profiles, newProfileResponse(p, system))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetPallet(w http.ResponseWriter, r *http.Request) {
	system, err := units.ParseSystem(r.URL.Query().Get("units"), h.units)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid units", err.Error())
		return
	}

	profile, err := h.storage.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(profile, system))
}

func (h *Handler) handlePutPallet(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	system, err := units.ParseSystem(req.Units, h.units)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid units", err.Error())
		return
	}

	profile := storage.Profile{
		Name:      r.PathValue("name"),
		Length:    system.LengthToBase(req.Length),
		Width:     system.LengthToBase(req.Width),
		MaxHeight: system.LengthToBase(req.MaxHeight),
		MaxWeight: system.WeightToBase(req.MaxWeight),
	}
	if err := h.storage.Put(r.Context(), profile); err != nil {
		writeStorageError(w, err)
		return
	}

	h.markProfilesUpdated(r.Context())

	stored, err := h.storage.Get(r.Context(), profile.Name)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	resp := profileUpdateResponse{
		Profile:   newProfileResponse(stored, system),
		UpdatedAt: h.currentProfilesUpdatedAt(),
		Message:   "Pallet profile saved successfully",
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDeletePallet(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Delete(r.Context(), r.PathValue("name")); err != nil {
		writeStorageError(w, err)
		return
	}
	h.markProfilesUpdated(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	system, err := units.ParseSystem(req.Units, h.units)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid units", err.Error())
		return
	}

	planReq, profileName, err := h.resolvePlanRequest(r.Context(), req, system)
	if err != nil {
		if errors.Is(err, storage.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "Unknown pallet profile", "no pallet profile named "+req.PalletProfile)
			return
		}
		h.writePlanError(w, r, err)
		return
	}

	start := time.Now()
	plan, planErr := h.engine.ComputeLoadPlan(planReq)
	elapsed := time.Since(start)

	if planErr != nil {
		metrics.RecordPlan(elapsed, outcomeOf(planErr))
		h.writePlanError(w, r, planErr)
		return
	}
	metrics.RecordPlan(elapsed, "ok")

	h.logger.Debug("plan computed",
		zap.String("request_id", requestIDFromContext(r.Context())),
		zap.Int("boxes_per_pallet", plan.BoxesPerPallet),
		zap.Int("pallets_needed", plan.PalletsNeeded),
		zap.String("limiting_factor", string(plan.LimitingFactor)),
	)

	resp, err := NewPlanResponse(plan, planReq, profileName, system, req.IncludeLayout, elapsed)
	if err != nil {
		h.writePlanError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// resolvePlanRequest converts the request into base units and fills pallet
// dimensions and limits from a named profile when one is given. Explicit
// values in the request take precedence over the profile.
func (h *Handler) resolvePlanRequest(ctx context.Context, req planRequest, system units.System) (pallet.Request, string, error) {
	out := pallet.Request{
		Box: pallet.Box{
			Length: system.LengthToBase(req.Box.Length),
			Width:  system.LengthToBase(req.Box.Width),
			Height: system.LengthToBase(req.Box.Height),
			Weight: system.WeightToBase(req.Box.Weight),
		},
		Limits: pallet.Limits{
			MaxStackHeight: system.LengthToBase(req.MaxHeight),
			MaxWeight:      system.WeightToBase(req.MaxWeight),
		},
		Mode: pallet.Mode(req.Mode),
	}
	if req.Pallet != nil {
		out.Pallet = pallet.Pallet{
			Length: system.LengthToBase(req.Pallet.Length),
			Width:  system.LengthToBase(req.Pallet.Width),
		}
	}

	var profileName string
	if req.PalletProfile != "" {
		profile, err := h.storage.Get(ctx, req.PalletProfile)
		if err != nil {
			return pallet.Request{}, "", err
		}
		profileName = profile.Name
		if req.Pallet == nil {
			out.Pallet = pallet.Pallet{Length: profile.Length, Width: profile.Width}
		}
		if req.MaxHeight == 0 {
			out.Limits.MaxStackHeight = profile.MaxHeight
		}
		if req.MaxWeight == 0 {
			out.Limits.MaxWeight = profile.MaxWeight
		}
	}

	if req.Quantity != math.Trunc(req.Quantity) || req.Quantity > maxQuantity {
		return pallet.Request{}, "", &pallet.InvalidInputError{Field: "quantity", Reason: "must be a positive integer"}
	}
	out.Quantity = int(req.Quantity)

	return out, profileName, nil
}

func (h *Handler) writePlanError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		inputErr      *pallet.InvalidInputError
		infeasibleErr *pallet.InfeasibleLoadError
	)
	switch {
	case errors.Is(err, pallet.ErrLayoutTooLarge):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:      "Invalid input",
			Details:    err.Error(),
			Field:      "includeLayout",
			Suggestion: "Request the plan without includeLayout",
		})
	case errors.As(err, &inputErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "Invalid input",
			Details: inputErr.Error(),
			Field:   inputErr.Field,
		})
	case errors.As(err, &infeasibleErr):
		h.logger.Info("infeasible load",
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.String("reason", string(infeasibleErr.Reason)),
		)
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:      "Infeasible load",
			Details:    infeasibleErr.Error(),
			Reason:     string(infeasibleErr.Reason),
			Suggestion: suggestionFor(infeasibleErr.Reason),
		})
	default:
		writeInternalError(w, err)
	}
}

func suggestionFor(reason pallet.Reason) string {
	switch reason {
	case pallet.ReasonDoesNotFit:
		return "Use a larger pallet or check the box length and width"
	case pallet.ReasonExceedsHeight:
		return "Raise the maximum stack height or use a shorter box"
	case pallet.ReasonExceedsWeight:
		return "Raise the weight limit or split the contents into lighter boxes"
	case pallet.ReasonZeroCapacity:
		return "A single layer is heavier than the allowed load; raise the weight limit, use lighter boxes, or disable the weight safety margin"
	default:
		return ""
	}
}

func outcomeOf(err error) string {
	var infeasibleErr *pallet.InfeasibleLoadError
	if errors.As(err, &infeasibleErr) {
		return string(infeasibleErr.Reason)
	}
	if errors.Is(err, pallet.ErrInvalidInput) {
		return "invalid"
	}
	return "error"
}

func (h *Handler) currentProfilesUpdatedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.profilesUpdatedAt
}

func (h *Handler) markProfilesUpdated(ctx context.Context) {
	h.mu.Lock()
	h.profilesUpdatedAt = h.clock()
	h.mu.Unlock()

	if profiles, err := h.storage.List(ctx); err == nil {
		metrics.SetProfiles(len(profiles))
	}
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

func writeStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "Unknown pallet profile", err.Error())
	case errors.Is(err, storage.ErrInvalidProfile), errors.Is(err, storage.ErrTooManyProfiles):
		writeError(w, http.StatusBadRequest, "Invalid pallet profile", err.Error())
	default:
		writeInternalError(w, err)
	}
}

// decodeJSON reads a size-limited JSON body into dst. On failure it writes
// the error response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(dst)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "Request too large", fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return false
	}
	writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
