package api

import (
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/roster/internal/persona"
)

func TestActionLog(t *testing.T) {
	srv := newTestServer(t, "")
	m := createPersona(t, srv, uuid.New(), 5)
	base := "/api/v1/personas/" + m.ID.String()

	w := do(t, srv, "POST", base+"/events", map[string]any{"activity_type": "task_completed"})
	if w.Code != http.StatusCreated {
		t.Fatalf("record event: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	ev := decode[eventResponse](t, w)

	w = do(t, srv, "POST", base+"/actions", map[string]any{
		"action_type":       "bash_command",
		"tool_name":         "bash",
		"parameters":        map[string]string{"cmd": "go test ./..."},
		"execution_time_ms": 1200,
		"activity_id":       ev.Activity.ID,
		"description":       "ran tests",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("record action: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	action := decode[persona.Action](t, w)
	if action.Category != persona.CategoryToolUsage || action.ResultStatus != persona.ResultSuccess {
		t.Errorf("expected defaulted category and status, got %q %q", action.Category, action.ResultStatus)
	}
	if action.PersonaID != m.ID {
		t.Errorf("expected persona from path, got %s", action.PersonaID)
	}

	w = do(t, srv, "POST", "/api/v1/actions/"+action.ID.String()+"/artifacts", map[string]any{
		"artifact_type": "command_output",
		"output_data":   map[string]int{"exit": 0},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("attach artifact: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, srv, "GET", base+"/actions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list actions: expected 200, got %d", w.Code)
	}
	list := decode[[]persona.Action](t, w)
	if len(list) != 1 || len(list[0].Artifacts) != 1 {
		t.Fatalf("expected 1 action with 1 artifact, got %+v", list)
	}
	if list[0].ActivityID == nil || *list[0].ActivityID != ev.Activity.ID {
		t.Errorf("expected activity link to survive, got %v", list[0].ActivityID)
	}

	// Actions stay out of the reputation ledger.
	activities := decode[[]persona.Activity](t, do(t, srv, "GET", base+"/activities", nil))
	if len(activities) != 2 {
		t.Errorf("expected only the import and task entries in the ledger, got %d", len(activities))
	}
	if w := do(t, srv, "GET", base+"/verify", nil); w.Code != http.StatusOK {
		t.Errorf("verify: expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestActionLog_Errors(t *testing.T) {
	srv := newTestServer(t, "")
	m := createPersona(t, srv, uuid.New(), 5)
	base := "/api/v1/personas/" + m.ID.String()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown action type", "POST", base + "/actions", map[string]any{"action_type": "teleport"}, http.StatusBadRequest},
		{"unknown result status", "POST", base + "/actions", map[string]any{"action_type": "file_read", "result_status": "meh"}, http.StatusBadRequest},
		{"unknown persona", "POST", "/api/v1/personas/" + uuid.NewString() + "/actions", map[string]any{"action_type": "file_read"}, http.StatusNotFound},
		{"unknown activity", "POST", base + "/actions", map[string]any{"action_type": "file_read", "activity_id": uuid.New()}, http.StatusNotFound},
		{"bad persona id", "GET", "/api/v1/personas/nope/actions", nil, http.StatusBadRequest},
		{"bad limit", "GET", base + "/actions?limit=lots", nil, http.StatusBadRequest},
		{"list unknown persona", "GET", "/api/v1/personas/" + uuid.NewString() + "/actions", nil, http.StatusNotFound},
		{"artifact for unknown action", "POST", "/api/v1/actions/" + uuid.NewString() + "/artifacts", map[string]any{"artifact_type": "git_diff"}, http.StatusNotFound},
		{"bad artifact type", "POST", "/api/v1/actions/" + uuid.NewString() + "/artifacts", map[string]any{"artifact_type": "blob"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestActionLog_DefaultLimit(t *testing.T) {
	srv := newTestServer(t, "")
	m := createPersona(t, srv, uuid.New(), 5)
	base := "/api/v1/personas/" + m.ID.String()

	for i := 0; i < 102; i++ {
		w := do(t, srv, "POST", base+"/actions", map[string]any{"action_type": "file_read"})
		if w.Code != http.StatusCreated {
			t.Fatalf("record action %d: expected 201, got %d", i, w.Code)
		}
	}

	if got := len(decode[[]persona.Action](t, do(t, srv, "GET", base+"/actions", nil))); got != 100 {
		t.Errorf("expected default limit of 100, got %d", got)
	}
	if got := len(decode[[]persona.Action](t, do(t, srv, "GET", base+"/actions?limit=5", nil))); got != 5 {
		t.Errorf("expected 5, got %d", got)
	}
}
