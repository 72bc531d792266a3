package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/MikeSquared-Agency/roster/internal/actionlog"
	"github.com/MikeSquared-Agency/roster/internal/persona"
)

func (s *Server) listActions(w http.ResponseWriter, r *http.Request) {
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

	out, err := s.actions.List(r.Context(), personaID, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) recordAction(w http.ResponseWriter, r *http.Request) {
	personaID, err := pathUUID(r, "personaID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in actionlog.ActionInput
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	in.PersonaID = personaID

	a, err := s.actions.Record(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) attachArtifact(w http.ResponseWriter, r *http.Request) {
	actionID, err := pathUUID(r, "actionID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in actionlog.ArtifactInput
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	art, err := s.actions.Attach(r.Context(), actionID, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, art)
}
