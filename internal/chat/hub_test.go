package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// testFrame decodes any frame the server can send.
type testFrame struct {
	Type     string    `json:"type"`
	Messages []Message `json:"messages"`
	Message  *Message  `json:"message"`
}

func startHub(t *testing.T, limit int) string {
	t.Helper()
	return startHubAt(t, filepath.Join(t.TempDir(), "messages.json"), limit)
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) testFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var f testFrame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode frame %s: %v", data, err)
	}
	return f
}

func sendFrame(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("send frame: %v", err)
	}
}

func TestNewClientGetsInitFrame(t *testing.T) {
	url := startHub(t, 10)
	conn := dial(t, url)
	defer conn.Close()

	f := readFrame(t, conn)
	if f.Type != "init" {
		t.Fatalf("first frame type = %q, want init", f.Type)
	}
	if f.Messages == nil {
		t.Error("init frame carries null messages, want []")
	}
	if len(f.Messages) != 0 {
		t.Errorf("fresh hub init has %d messages, want 0", len(f.Messages))
	}
}

func TestMessageReachesAllClientsIncludingSender(t *testing.T) {
	url := startHub(t, 10)
	a := dial(t, url)
	defer a.Close()
	b := dial(t, url)
	defer b.Close()
	readFrame(t, a) // init
	readFrame(t, b) // init

	sendFrame(t, a, map[string]any{
		"type": "message",
		"message": map[string]any{
			"id":        "m1",
			"text":      "hello room",
			"timestamp": 1700000000000,
			"sender":    "amy",
		},
	})

	for name, conn := range map[string]*websocket.Conn{"sender": a, "other": b} {
		f := readFrame(t, conn)
		if f.Type != "message" {
			t.Fatalf("%s got frame type %q, want message", name, f.Type)
		}
		if f.Message == nil || f.Message.Text != "hello room" || f.Message.Sender != "amy" {
			t.Errorf("%s got %+v", name, f.Message)
		}
	}
}

func TestServerFillsMissingIDAndTimestamp(t *testing.T) {
	url := startHub(t, 10)
	conn := dial(t, url)
	defer conn.Close()
	readFrame(t, conn) // init

	before := time.Now().UnixMilli()
	sendFrame(t, conn, map[string]any{
		"type":    "message",
		"message": map[string]any{"text": "no envelope", "sender": "bob"},
	})

	f := readFrame(t, conn)
	if f.Message == nil {
		t.Fatal("no message in frame")
	}
	if f.Message.ID == "" {
		t.Error("server did not assign an id")
	}
	if f.Message.Timestamp < before {
		t.Errorf("timestamp %d not assigned by server", f.Message.Timestamp)
	}
}

func TestLateJoinerSeesHistoryNewestFirst(t *testing.T) {
	url := startHub(t, 10)
	a := dial(t, url)
	defer a.Close()
	readFrame(t, a) // init

	for _, text := range []string{"first", "second"} {
		sendFrame(t, a, map[string]any{
			"type":    "message",
			"message": map[string]any{"text": text, "sender": "amy"},
		})
		readFrame(t, a) // own echo
	}

	b := dial(t, url)
	defer b.Close()
	f := readFrame(t, b)
	if f.Type != "init" {
		t.Fatalf("frame type = %q, want init", f.Type)
	}
	if len(f.Messages) != 2 {
		t.Fatalf("init carries %d messages, want 2", len(f.Messages))
	}
	if f.Messages[0].Text != "second" || f.Messages[1].Text != "first" {
		t.Errorf("init order = %q,%q, want newest first", f.Messages[0].Text, f.Messages[1].Text)
	}
}

func TestClearEmptiesHistoryForEveryone(t *testing.T) {
	url := startHub(t, 10)
	a := dial(t, url)
	defer a.Close()
	b := dial(t, url)
	defer b.Close()
	readFrame(t, a)
	readFrame(t, b)

	sendFrame(t, a, map[string]any{
		"type":    "message",
		"message": map[string]any{"text": "doomed", "sender": "amy"},
	})
	readFrame(t, a)
	readFrame(t, b)

	sendFrame(t, b, map[string]any{"type": "clear"})

	for name, conn := range map[string]*websocket.Conn{"a": a, "b": b} {
		f := readFrame(t, conn)
		if f.Type != "clear" {
			t.Errorf("%s got frame type %q, want clear", name, f.Type)
		}
	}

	c := dial(t, url)
	defer c.Close()
	f := readFrame(t, c)
	if len(f.Messages) != 0 {
		t.Errorf("init after clear carries %d messages, want 0", len(f.Messages))
	}
}

func TestHistorySurvivesHubRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")

	hub := NewHub(path, 10)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, w, r)
	}))

	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	readFrame(t, conn)
	sendFrame(t, conn, map[string]any{
		"type":    "message",
		"message": map[string]any{"text": "durable", "sender": "amy"},
	})
	readFrame(t, conn)
	conn.Close()
	cancel()
	srv.Close()

	// A new hub against the same file starts with the old messages.
	conn2 := dial(t, startHubAt(t, path, 10))
	defer conn2.Close()
	f := readFrame(t, conn2)
	if len(f.Messages) != 1 || f.Messages[0].Text != "durable" {
		t.Errorf("restarted hub init = %+v, want the persisted message", f.Messages)
	}
}

func TestMalformedFramesAreIgnored(t *testing.T) {
	url := startHub(t, 10)
	conn := dial(t, url)
	defer conn.Close()
	readFrame(t, conn)

	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json at all")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	sendFrame(t, conn, map[string]any{"type": "message"}) // message frame without payload
	sendFrame(t, conn, map[string]any{"type": "noise"})   // unknown type

	// The connection still works afterwards.
	sendFrame(t, conn, map[string]any{
		"type":    "message",
		"message": map[string]any{"text": "still here", "sender": "amy"},
	})
	f := readFrame(t, conn)
	if f.Type != "message" || f.Message == nil || f.Message.Text != "still here" {
		t.Errorf("got %+v after garbage, want the real message", f)
	}
}

func startHubAt(t *testing.T, path string, limit int) string {
	t.Helper()
	hub := NewHub(path, limit)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, w, r)
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(cancel)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}
