//go:build integration

package hermes

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"
)

func skipWithoutNATS(t *testing.T) string {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set, skipping integration test")
	}
	return url
}

func TestIntegration_PubSub(t *testing.T) {
	natsURL := skipWithoutNATS(t)
	logger := slog.Default()

	client, err := Connect(DefaultOptions(natsURL, os.Getenv("NATS_TOKEN")), logger)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	received := make(chan map[string]string, 1)

	err = client.Subscribe("swarm.roster.test.>", func(subject string, data []byte) {
		var msg map[string]string
		_ = json.Unmarshal(data, &msg)
		received <- msg
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	// Give subscription time to propagate
	time.Sleep(100 * time.Millisecond)

	err = client.Publish("swarm.roster.test.ping", map[string]string{
		"message": "hello from integration test",
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case msg := <-received:
		if msg["message"] != "hello from integration test" {
			t.Errorf("expected hello message, got %v", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestIntegration_ActivityRecordedPayload(t *testing.T) {
	natsURL := skipWithoutNATS(t)

	client, err := Connect(DefaultOptions(natsURL, os.Getenv("NATS_TOKEN")), slog.Default())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	received := make(chan ActivityRecorded, 1)
	err = client.Subscribe(SubjectActivityRecorded, func(_ string, data []byte) {
		var evt ActivityRecorded
		if err := json.Unmarshal(data, &evt); err == nil {
			received <- evt
		}
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	sent := ActivityRecorded{ActivityID: "act-int", PersonaID: "p-int", ActivityType: "task_completed", QualityDelta: 5}
	if err := client.Publish(SubjectActivityRecorded, sent); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case evt := <-received:
		if evt.ActivityID != "act-int" || evt.QualityDelta != 5 {
			t.Errorf("unexpected payload %+v", evt)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestIntegration_QueueGroupDeliversOnce(t *testing.T) {
	natsURL := skipWithoutNATS(t)
	token := os.Getenv("NATS_TOKEN")

	var clients []*Client
	received := make(chan string, 4)
	for i := 0; i < 2; i++ {
		c, err := Connect(DefaultOptions(natsURL, token), slog.Default())
		if err != nil {
			t.Fatalf("failed to connect: %v", err)
		}
		defer c.Close()
		if err := c.Subscribe("swarm.roster.test.queue", func(subject string, _ []byte) { received <- subject }); err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}
		clients = append(clients, c)
	}
	time.Sleep(100 * time.Millisecond)

	if err := clients[0].Publish("swarm.roster.test.queue", map[string]string{"n": "1"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	select {
	case <-received:
		t.Error("queue group delivered the message twice")
	case <-time.After(300 * time.Millisecond):
	}
}
