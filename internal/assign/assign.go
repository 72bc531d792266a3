// Package assign picks the default assignee for new work items.
//
// The match is a plain substring test on names, so a persona named
// "Shipment Tracker" ("shi-pm-ent") also qualifies. Callers that need role
// accuracy should match on the template role type instead.
package assign

import (
	"strings"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/roster/internal/persona"
)

var pmMarkers = []string{"pm", "project manager"}

// DefaultAssignee returns the first active member, in the order given, whose
// template name or custom name contains a PM marker.
func DefaultAssignee(members []persona.Member) (uuid.UUID, bool) {
	for _, m := range members {
		if !m.IsActive {
			continue
		}
		if looksLikePM(m.TemplateName) || (m.CustomName != nil && looksLikePM(*m.CustomName)) {
			return m.ID, true
		}
	}
	return uuid.Nil, false
}

// Resolve returns explicit unchanged when set, otherwise the default.
func Resolve(explicit *uuid.UUID, members []persona.Member) *uuid.UUID {
	if explicit != nil {
		return explicit
	}
	id, ok := DefaultAssignee(members)
	if !ok {
		return nil
	}
	return &id
}

// ApplyDefault fills item's assignee when it has none. It reports whether it
// changed the item.
func ApplyDefault(item *persona.WorkItem, members []persona.Member) bool {
	if item.AssignedPersonaID != nil {
		return false
	}
	item.AssignedPersonaID = Resolve(nil, members)
	return item.AssignedPersonaID != nil
}

func looksLikePM(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range pmMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
