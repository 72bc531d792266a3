package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/MikeSquared-Agency/roster/internal/persona"
	"github.com/MikeSquared-Agency/roster/internal/reputation"
)

func (s *Server) listActivities(w http.ResponseWriter, r *http.Request) {
	personaID, err := pathUUID(r, "personaID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("limit %q: %w", v, persona.ErrInvalidInput))
			return
		}
	}

	var out []persona.Activity
	if typ := r.URL.Query().Get("type"); typ != "" {
		out, err = s.engine.Ledger().ListRecentOfType(r.Context(), personaID, persona.ActivityType(typ), limit)
	} else {
		out, err = s.engine.Ledger().ListRecent(r.Context(), personaID, limit)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type eventRequest struct {
	ActivityType         persona.ActivityType `json:"activity_type"`
	Description          string               `json:"description"`
	ProfessionalismDelta float64              `json:"professionalism_change"`
	QualityDelta         float64              `json:"quality_change"`
	TaskSize             persona.TaskSize     `json:"task_size,omitempty"`
	Metadata             json.RawMessage      `json:"metadata,omitempty"`
	WorkItem             *persona.WorkItemRef `json:"work_item,omitempty"`
	DailyLimit           *int                 `json:"daily_limit,omitempty"`
}

type eventResponse struct {
	Persona  *persona.ProjectPersona `json:"persona"`
	Activity *persona.Activity       `json:"activity"`
}

func (s *Server) recordEvent(w http.ResponseWriter, r *http.Request) {
	personaID, err := pathUUID(r, "personaID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req eventRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, act, err := s.engine.RecordEvent(r.Context(), reputation.Event{
		PersonaID:            personaID,
		Type:                 req.ActivityType,
		Description:          req.Description,
		ProfessionalismDelta: req.ProfessionalismDelta,
		QualityDelta:         req.QualityDelta,
		Metadata:             req.Metadata,
		WorkItem:             req.WorkItem,
		TaskSize:             req.TaskSize,
		DailyLimit:           req.DailyLimit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, eventResponse{Persona: p, Activity: act})
}

func (s *Server) recordScored(w http.ResponseWriter, r *http.Request) {
	personaID, err := pathUUID(r, "personaID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req eventRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, act, err := s.engine.RecordScored(r.Context(), reputation.ScoredEvent{
		PersonaID:   personaID,
		Type:        req.ActivityType,
		Size:        req.TaskSize,
		Description: req.Description,
		Metadata:    req.Metadata,
		WorkItem:    req.WorkItem,
		DailyLimit:  req.DailyLimit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, eventResponse{Persona: p, Activity: act})
}

func (s *Server) standing(w http.ResponseWriter, r *http.Request) {
	personaID, err := pathUUID(r, "personaID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.engine.Standing(r.Context(), personaID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	personaID, err := pathUUID(r, "personaID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	audit, err := s.engine.Verify(r.Context(), personaID)
	if errors.Is(err, persona.ErrInconsistent) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "audit": audit})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, audit)
}
