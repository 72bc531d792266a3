package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/roster/internal/persona"
	"github.com/MikeSquared-Agency/roster/internal/roster"
)

func pathUUID(r *http.Request, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, key))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", key, persona.ErrInvalidInput)
	}
	return id, nil
}

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	out, err := s.roster.Templates(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createTemplate(w http.ResponseWriter, r *http.Request) {
	var in roster.TemplateInput
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.roster.CreateTemplate(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) getTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "templateID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.roster.Template(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) listPersonas(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))
	out, err := s.roster.Members(r.Context(), projectID, activeOnly)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type createPersonaRequest struct {
	TemplateID         uuid.UUID `json:"template_id"`
	CustomName         *string   `json:"custom_name,omitempty"`
	CustomInstructions *string   `json:"custom_instructions,omitempty"`
}

func (s *Server) createPersona(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req createPersonaRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.TemplateID == uuid.Nil {
		s.writeError(w, r, fmt.Errorf("template_id is required: %w", persona.ErrInvalidInput))
		return
	}
	m, err := s.roster.Instantiate(r.Context(), projectID, req.TemplateID, req.CustomName, req.CustomInstructions)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) importDefaults(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.roster.ImportDefaults(r.Context(), projectID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"imported": created,
		"count":    len(created),
	})
}

func (s *Server) updatePersona(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	personaID, err := pathUUID(r, "personaID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var patch persona.Patch
	if err := decodeBody(r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.roster.Update(r.Context(), projectID, personaID, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) defaultAssignee(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.roster.DefaultAssignee(r.Context(), projectID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
