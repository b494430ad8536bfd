package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/mocks"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// newHubServer serves the hub with the subscriber taken from the query string.
func newHubServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		q := r.URL.Query()
		hub.Serve(conn, domain.Subscriber{Role: domain.Role(q.Get("role")), Subject: q.Get("sub")})
	}))
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server, role domain.Role, sub string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?role=" + string(role) + "&sub=" + sub
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers, have %d", n, hub.Count())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) (Message, bool) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, body, err := conn.ReadMessage()
	if err != nil {
		return Message{}, false
	}
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	return msg, true
}

func TestHub_DeliversByTarget(t *testing.T) {
	hub := NewHub(nil, mocks.NewTestLogger())
	server := newHubServer(t, hub)

	parent := dial(t, server, domain.RoleParent, "session-1")
	otherParent := dial(t, server, domain.RoleParent, "session-2")
	teacher := dial(t, server, domain.RoleTeacher, "teacher-1")
	admin := dial(t, server, domain.RoleAdmin, "admin-1")
	waitForClients(t, hub, 4)

	n := domain.Notification{
		ID:      "n1",
		Tag:     domain.TagStatusUpdate,
		Target:  domain.ParentTarget("session-1"),
		Payload: map[string]any{"notice": "your_turn"},
	}
	if err := hub.Deliver(n); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	msg, ok := readMessage(t, parent)
	if !ok {
		t.Fatal("expected the parent to receive the notification")
	}
	if msg.ID != "n1" || msg.Tag != string(domain.TagStatusUpdate) || msg.Payload["notice"] != "your_turn" {
		t.Errorf("unexpected message %+v", msg)
	}
	for name, conn := range map[string]*websocket.Conn{"other parent": otherParent, "teacher": teacher, "admin": admin} {
		if _, ok := readMessage(t, conn); ok {
			t.Errorf("%s should not receive a parent notification", name)
		}
	}
}

func TestHub_AdminBroadcast(t *testing.T) {
	hub := NewHub(nil, mocks.NewTestLogger())
	server := newHubServer(t, hub)

	first := dial(t, server, domain.RoleAdmin, "admin-1")
	second := dial(t, server, domain.RoleAdmin, "admin-2")
	teacher := dial(t, server, domain.RoleTeacher, "teacher-1")
	waitForClients(t, hub, 3)

	if err := hub.Deliver(domain.Notification{ID: "n2", Tag: domain.TagQueueUpdate, Target: domain.AdminTarget()}); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	for _, conn := range []*websocket.Conn{first, second} {
		if _, ok := readMessage(t, conn); !ok {
			t.Error("every admin should receive admin notifications")
		}
	}
	if _, ok := readMessage(t, teacher); ok {
		t.Error("teachers should not receive admin notifications")
	}
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(nil, mocks.NewTestLogger())
	server := newHubServer(t, hub)

	conn := dial(t, server, domain.RoleParent, "session-1")
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)

	// delivering with nobody listening is fine
	if err := hub.Deliver(domain.Notification{ID: "n3", Target: domain.ParentTarget("session-1")}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	hub := NewHub(nil, mocks.NewTestLogger())
	c := &client{sub: domain.Subscriber{Role: domain.RoleParent, Subject: "session-1"}, send: make(chan []byte, 1)}
	hub.register(c)

	n := domain.Notification{ID: "n4", Target: domain.ParentTarget("session-1")}
	for i := 0; i < 2; i++ {
		if err := hub.Deliver(n); err != nil {
			t.Fatalf("deliver: %v", err)
		}
	}

	if hub.Count() != 0 {
		t.Fatalf("expected the slow subscriber to be dropped, have %d", hub.Count())
	}
	if _, ok := <-c.send; !ok {
		t.Fatal("expected the first message to stay queued")
	}
	if _, ok := <-c.send; ok {
		t.Fatal("expected the send channel to be closed")
	}
}

func TestBridge_HandleDeliversToHub(t *testing.T) {
	hub := NewHub(nil, mocks.NewTestLogger())
	c := &client{sub: domain.Subscriber{Role: domain.RoleTeacher, Subject: "teacher-1"}, send: make(chan []byte, 4)}
	hub.register(c)
	bridge := NewBridge(nil, "ptmq:notifications", hub, mocks.NewTestLogger())

	body, err := json.Marshal(domain.Notification{
		ID:     "n5",
		Tag:    domain.TagMeetingStarted,
		Target: domain.TeacherTarget("teacher-1"),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	bridge.handle("{not json")
	bridge.handle(string(body))

	select {
	case raw := <-c.send:
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg.ID != "n5" || msg.Tag != string(domain.TagMeetingStarted) {
			t.Errorf("unexpected message %+v", msg)
		}
	default:
		t.Fatal("expected the notification to reach the hub")
	}
	if len(c.send) != 0 {
		t.Error("malformed payloads must be dropped")
	}
}
