package assign

import (
	"testing"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/roster/internal/persona"
)

func member(templateName string, custom *string, active bool) persona.Member {
	return persona.Member{
		ProjectPersona: persona.ProjectPersona{ID: uuid.New(), IsActive: active, CustomName: custom},
		TemplateName:   templateName,
	}
}

func str(s string) *string { return &s }

func TestDefaultAssignee(t *testing.T) {
	inactivePM := member("PM Agent", nil, false)
	dev := member("Developer", nil, true)
	projectManager := member("Project Manager", nil, true)
	customPM := member("Developer", str("Team PM"), true)
	shipment := member("Shipment Tracker", nil, true)

	tests := []struct {
		name    string
		members []persona.Member
		want    uuid.UUID
		wantOK  bool
	}{
		{"empty roster", nil, uuid.Nil, false},
		{"no pm", []persona.Member{dev}, uuid.Nil, false},
		{"inactive pm skipped", []persona.Member{inactivePM, dev}, uuid.Nil, false},
		{"template name match", []persona.Member{dev, projectManager}, projectManager.ID, true},
		{"custom name match", []persona.Member{dev, customPM}, customPM.ID, true},
		{"first match wins", []persona.Member{customPM, projectManager}, customPM.ID, true},
		{"substring false positive kept", []persona.Member{dev, shipment}, shipment.ID, true},
		{"inactive before active", []persona.Member{inactivePM, projectManager}, projectManager.ID, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DefaultAssignee(tt.members)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	pm := member("PM", nil, true)
	explicit := uuid.New()

	if got := Resolve(&explicit, []persona.Member{pm}); got == nil || *got != explicit {
		t.Errorf("expected explicit assignee to win, got %v", got)
	}
	if got := Resolve(nil, []persona.Member{pm}); got == nil || *got != pm.ID {
		t.Errorf("expected pm default, got %v", got)
	}
	if got := Resolve(nil, nil); got != nil {
		t.Errorf("expected no assignee, got %v", *got)
	}
}

func TestApplyDefault(t *testing.T) {
	pm := member("Project Manager", nil, true)

	item := &persona.WorkItem{ID: uuid.New(), Title: "New"}
	if !ApplyDefault(item, []persona.Member{pm}) {
		t.Fatal("expected default to be applied")
	}
	if *item.AssignedPersonaID != pm.ID {
		t.Errorf("expected %s, got %s", pm.ID, *item.AssignedPersonaID)
	}

	other := uuid.New()
	item = &persona.WorkItem{ID: uuid.New(), AssignedPersonaID: &other}
	if ApplyDefault(item, []persona.Member{pm}) {
		t.Error("expected existing assignee to be kept")
	}
	if *item.AssignedPersonaID != other {
		t.Errorf("expected %s, got %s", other, *item.AssignedPersonaID)
	}
}
