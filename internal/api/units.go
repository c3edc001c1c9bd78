package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/airsentinel/airsentinel-core/internal/aircon"
	"github.com/airsentinel/airsentinel-core/internal/infrastructure/mqtt"
	"github.com/airsentinel/airsentinel-core/internal/reconcile"
	"github.com/airsentinel/airsentinel-core/internal/unit"
)

// handleListUnits returns all units, with optional query filters.
//
// Query parameters:
//   - generation: filter by firmware generation (brp069, brp072, ...)
//   - enabled: "true" returns only enabled units
func (s *Server) handleListUnits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if gen := r.URL.Query().Get("generation"); gen != "" {
		units, err := s.registry.GetUnitsByGeneration(ctx, unit.Generation(gen))
		if err != nil {
			writeInternalError(w, "failed to list units")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"units": units, "count": len(units)})
		return
	}

	if r.URL.Query().Get("enabled") == "true" {
		units, err := s.registry.ListEnabledUnits(ctx)
		if err != nil {
			writeInternalError(w, "failed to list units")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"units": units, "count": len(units)})
		return
	}

	units, err := s.registry.ListUnits(ctx)
	if err != nil {
		writeInternalError(w, "failed to list units")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"units": units, "count": len(units)})
}

// handleGetUnit returns a single unit by ID.
func (s *Server) handleGetUnit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	u, err := s.registry.GetUnit(r.Context(), id)
	if err != nil {
		if errors.Is(err, unit.ErrUnitNotFound) {
			writeNotFound(w, "unit not found")
			return
		}
		writeInternalError(w, "failed to get unit")
		return
	}

	writeJSON(w, http.StatusOK, u)
}

// handleCreateUnit creates a new unit and registers it with the
// reconciliation engine under its generation's protection window.
func (s *Server) handleCreateUnit(w http.ResponseWriter, r *http.Request) {
	var u unit.Unit
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.registry.CreateUnit(r.Context(), &u); err != nil {
		if isValidationError(err) {
			writeBadRequest(w, err.Error())
			return
		}
		if errors.Is(err, unit.ErrUnitExists) {
			writeConflict(w, "unit already exists")
			return
		}
		writeInternalError(w, "failed to create unit")
		return
	}

	opts := reconcile.DefaultOptions()
	opts.ProtectionWindow = u.Generation.DefaultProtectionWindow()
	if err := s.engine.Register(u.ID, opts); err != nil && !errors.Is(err, reconcile.ErrUnitExists) {
		s.logger.Warn("engine registration failed", "unit_id", u.ID, "error", err)
	}

	writeJSON(w, http.StatusCreated, u)
}

// handleUpdateUnit partially updates a unit.
func (s *Server) handleUpdateUnit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.registry.GetUnit(r.Context(), id)
	if err != nil {
		if errors.Is(err, unit.ErrUnitNotFound) {
			writeNotFound(w, "unit not found")
			return
		}
		writeInternalError(w, "failed to get unit")
		return
	}

	// Decode partial update onto the existing record
	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = id // Ensure ID cannot be changed

	if err := s.registry.UpdateUnit(r.Context(), existing); err != nil {
		if isValidationError(err) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, "failed to update unit")
		return
	}

	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteUnit removes a unit and deregisters it from the engine.
func (s *Server) handleDeleteUnit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.registry.DeleteUnit(r.Context(), id); err != nil {
		if errors.Is(err, unit.ErrUnitNotFound) {
			writeNotFound(w, "unit not found")
			return
		}
		writeInternalError(w, "failed to delete unit")
		return
	}

	s.engine.Deregister(id)

	w.WriteHeader(http.StatusNoContent)
}

// handleUnitStats returns unit registry statistics.
func (s *Server) handleUnitStats(w http.ResponseWriter, _ *http.Request) {
	stats := s.registry.GetStats()
	writeJSON(w, http.StatusOK, stats)
}

// UnitStateResponse is the confirmed-state read model.
type UnitStateResponse struct {
	UnitID  string            `json:"unit_id"`
	TakenAt *time.Time        `json:"taken_at,omitempty"`
	Fields  map[string]string `json:"fields"`
}

// handleGetUnitState returns the engine's confirmed state for a unit.
//
// Confirmed state is poll-derived ground truth; it lags a just-issued
// command until the next poll confirms it.
func (s *Server) handleGetUnitState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, err := s.engine.ConfirmedState(id)
	if err != nil {
		if errors.Is(err, reconcile.ErrUnitNotRegistered) {
			writeNotFound(w, "unit not registered")
			return
		}
		writeInternalError(w, "failed to read confirmed state")
		return
	}

	resp := UnitStateResponse{
		UnitID: id,
		Fields: make(map[string]string, snap.Len()),
	}
	for f, v := range snap.Values() {
		resp.Fields[string(f)] = v
	}
	if t := snap.TakenAt(); !t.IsZero() {
		resp.TakenAt = &t
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleListOverrides returns a unit's recent override events, newest first.
//
// Query parameters:
//   - limit: maximum events to return (default 50, capped server-side)
func (s *Server) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if s.history == nil {
		writeUnavailable(w, "override history not configured")
		return
	}

	if _, err := s.registry.GetUnit(r.Context(), id); err != nil {
		if errors.Is(err, unit.ErrUnitNotFound) {
			writeNotFound(w, "unit not found")
			return
		}
		writeInternalError(w, "failed to get unit")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	events, err := s.history.GetOverrides(r.Context(), id, limit)
	if err != nil {
		writeInternalError(w, "failed to query override history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"overrides": events, "count": len(events)})
}

// CommandRequest is the body for POST /units/{id}/command.
type CommandRequest struct {
	Fields map[string]string `json:"fields"`
}

// handleUnitCommand publishes a command to the unit's bridge topic and
// records the intent with the engine, opening the protection window.
func (s *Server) handleUnitCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if s.mqtt == nil || !s.mqtt.IsConnected() {
		writeUnavailable(w, "command bus unavailable")
		return
	}

	u, err := s.registry.GetUnit(r.Context(), id)
	if err != nil {
		if errors.Is(err, unit.ErrUnitNotFound) {
			writeNotFound(w, "unit not found")
			return
		}
		writeInternalError(w, "failed to get unit")
		return
	}
	if !u.Enabled {
		writeConflict(w, "unit is disabled")
		return
	}

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Fields) == 0 {
		writeBadRequest(w, "fields must not be empty")
		return
	}

	fields := make(map[aircon.Field]string, len(req.Fields))
	for k, v := range req.Fields {
		f := aircon.Field(k)
		if !aircon.KnownField(f) {
			writeBadRequest(w, "unknown field: "+k)
			return
		}
		fields[f] = aircon.NormalizeValue(f, v)
	}

	now := time.Now().UTC()
	payload, err := json.Marshal(map[string]any{
		"unit_id":   u.ID,
		"issued_at": now,
		"fields":    fields,
	})
	if err != nil {
		writeInternalError(w, "failed to encode command")
		return
	}

	topic := mqtt.Topics{}.UnitCommand(u.ID)
	if err := s.mqtt.Publish(topic, payload, 1, false); err != nil {
		s.logger.Error("command publish failed", "unit_id", u.ID, "error", err)
		writeUnavailable(w, "failed to publish command")
		return
	}

	// Open the protection window so the resulting state change is not
	// misread as a manual override. The bridge's own command echo also
	// lands here via ingest; a duplicate intent just restarts the window.
	if err := s.engine.OnCommandIssued(u.ID, fields, now); err != nil {
		s.logger.Warn("command intent not recorded", "unit_id", u.ID, "error", err)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"unit_id":   u.ID,
		"issued_at": now,
		"fields":    fields,
	})
}

// isValidationError reports whether err is a unit validation failure.
func isValidationError(err error) bool {
	return errors.Is(err, unit.ErrInvalidUnit) ||
		errors.Is(err, unit.ErrInvalidName) ||
		errors.Is(err, unit.ErrInvalidSlug) ||
		errors.Is(err, unit.ErrInvalidHost) ||
		errors.Is(err, unit.ErrInvalidGeneration) ||
		errors.Is(err, unit.ErrInvalidCapability)
}
