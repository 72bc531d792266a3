package hermes

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func applyOptions(t *testing.T, opts []nats.Option) nats.Options {
	t.Helper()
	var o nats.Options
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			t.Fatalf("apply option: %v", err)
		}
	}
	return o
}

func TestDefaultOptions(t *testing.T) {
	o := DefaultOptions("nats://bus:4222", "tok")
	if o.Name != "roster" || o.Queue != "roster" {
		t.Errorf("expected roster name and queue, got %q %q", o.Name, o.Queue)
	}
	if o.MaxReconnects != 60 || o.ReconnectWait != 2*time.Second {
		t.Errorf("unexpected reconnect policy %d %s", o.MaxReconnects, o.ReconnectWait)
	}
	if o.DrainTimeout <= 0 {
		t.Errorf("expected a drain timeout, got %s", o.DrainTimeout)
	}
}

func TestNatsOptions(t *testing.T) {
	closed := make(chan struct{})
	o := DefaultOptions("nats://bus:4222", "tok")
	o.Name = "roster-test"
	o.MaxReconnects = 7

	got := applyOptions(t, o.natsOptions(slog.Default(), closed))

	if got.Name != "roster-test" {
		t.Errorf("expected connection name roster-test, got %q", got.Name)
	}
	if got.Token != "tok" {
		t.Errorf("expected token to be set, got %q", got.Token)
	}
	if !got.RetryOnFailedConnect {
		t.Error("expected retry on failed connect")
	}
	if got.MaxReconnect != 7 || got.ReconnectWait != 2*time.Second {
		t.Errorf("unexpected reconnect policy %d %s", got.MaxReconnect, got.ReconnectWait)
	}
	if got.ClosedCB == nil || got.DisconnectedErrCB == nil || got.ReconnectedCB == nil {
		t.Fatal("expected connection lifecycle handlers")
	}

	got.ClosedCB(nil)
	select {
	case <-closed:
	default:
		t.Error("closed handler should signal Close")
	}
}

func TestNatsOptions_NoToken(t *testing.T) {
	got := applyOptions(t, DefaultOptions("nats://bus:4222", "").natsOptions(slog.Default(), make(chan struct{})))
	if got.Token != "" {
		t.Errorf("expected no token, got %q", got.Token)
	}
}

func TestSafeHandler_PassesMessage(t *testing.T) {
	var gotSubject, gotData string
	h := safeHandler(func(subject string, data []byte) {
		gotSubject, gotData = subject, string(data)
	}, slog.Default())

	h(&nats.Msg{Subject: SubjectRecordEvent, Data: []byte(`{"a":1}`)})

	if gotSubject != SubjectRecordEvent || gotData != `{"a":1}` {
		t.Errorf("unexpected delivery %q %q", gotSubject, gotData)
	}
}

func TestSafeHandler_RecoversPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := safeHandler(func(string, []byte) { panic("boom") }, logger)

	h(&nats.Msg{Subject: SubjectScoredEvent})

	out := buf.String()
	if !strings.Contains(out, "handler panic") || !strings.Contains(out, SubjectScoredEvent) {
		t.Errorf("expected panic to be logged with subject, got %q", out)
	}
}
