package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()

	s := NewServer(&Config{Port: 0, Logger: log.New(io.Discard, "", 0)})
	if err := s.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func dialTestClient(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, fmt.Sprintf("ws://%s/ws", s.Addr()), nil)
	if err != nil {
		t.Fatalf("failed to dial dashboard: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to unmarshal message: %v", err)
	}
	return msg
}

func TestServerStartStop(t *testing.T) {
	s := NewServer(&Config{Port: 0, Logger: log.New(io.Discard, "", 0)})
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := startTestServer(t)

	resp, err := http.Get(fmt.Sprintf("http://%s/health", s.Addr()))
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode health body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestClientReceivesWelcome(t *testing.T) {
	s := startTestServer(t)
	conn := dialTestClient(t, s)

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeStatus {
		t.Errorf("welcome type = %q, want %q", msg.Type, MessageTypeStatus)
	}
}

func TestBroadcastReachesClient(t *testing.T) {
	s := startTestServer(t)
	conn := dialTestClient(t, s)

	// Skip the welcome message.
	_ = readMessage(t, conn)

	s.Broadcast(MessageTypeSyncFailed, SyncFailedData{
		Kind:         "review_submission",
		RestaurantID: 7,
		Reason:       "rating out of range",
	})

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeSyncFailed {
		t.Fatalf("type = %q, want %q", msg.Type, MessageTypeSyncFailed)
	}

	var data SyncFailedData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal data: %v", err)
	}
	if data.RestaurantID != 7 || data.Kind != "review_submission" {
		t.Errorf("data = %+v", data)
	}
}

func TestBroadcastDrainComplete(t *testing.T) {
	s := startTestServer(t)
	conn := dialTestClient(t, s)
	_ = readMessage(t, conn)

	s.Broadcast(MessageTypeDrainComplete, DrainCompleteData{
		Applied:   3,
		Remaining: 1,
		Halted:    true,
		Duration:  250 * time.Millisecond,
	})

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeDrainComplete {
		t.Fatalf("type = %q, want %q", msg.Type, MessageTypeDrainComplete)
	}

	var data DrainCompleteData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal data: %v", err)
	}
	if data.Applied != 3 || data.Remaining != 1 || !data.Halted {
		t.Errorf("data = %+v, want applied 3, remaining 1, halted", data)
	}
}

func TestClientCount(t *testing.T) {
	s := startTestServer(t)

	if got := s.ClientCount(); got != 0 {
		t.Errorf("ClientCount = %d, want 0", got)
	}

	conn := dialTestClient(t, s)
	_ = readMessage(t, conn)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && s.ClientCount() != 1 {
		time.Sleep(5 * time.Millisecond)
	}
	if got := s.ClientCount(); got != 1 {
		t.Errorf("ClientCount = %d, want 1", got)
	}
}

func TestBroadcastWithoutClients(t *testing.T) {
	s := startTestServer(t)

	// No clients connected: broadcasting must not block or panic.
	for i := 0; i < 10; i++ {
		s.Broadcast(MessageTypeConnectivity, ConnectivityData{Online: i%2 == 0})
	}
}
