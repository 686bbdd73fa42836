package notify_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raysh454/stockscan/internal/notify"
	"github.com/raysh454/stockscan/internal/testutil"
)

func TestWarningAndError_Defaults(t *testing.T) {
	t.Parallel()

	w := notify.Warning("quota nearly used")
	if w.Level != notify.LevelWarning || w.Duration != 8*time.Second {
		t.Errorf("unexpected warning: %+v", w)
	}
	e := notify.Error("boom")
	if e.Level != notify.LevelError || e.Duration != 5*time.Second {
		t.Errorf("unexpected error: %+v", e)
	}
	if w.ID == "" || w.ID == e.ID {
		t.Errorf("expected distinct non-empty IDs, got %q and %q", w.ID, e.ID)
	}
}

func TestNotification_MarshalJSON_DurationInMillis(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(notify.Error("boom"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["duration_ms"] != float64(5000) {
		t.Errorf("expected duration_ms 5000, got %v", m["duration_ms"])
	}
	if m["type"] != "error" || m["message"] != "boom" {
		t.Errorf("unexpected payload: %s", b)
	}
}

func TestMulti_FansOut(t *testing.T) {
	t.Parallel()

	a := &testutil.RecordingNotifier{}
	b := &testutil.RecordingNotifier{}
	notify.Multi{a, nil, b}.Notify(notify.Warning("x"))

	if len(a.All()) != 1 || len(b.All()) != 1 {
		t.Fatalf("expected both notifiers to receive one notification")
	}
}

func TestWithDurations(t *testing.T) {
	t.Parallel()

	rec := &testutil.RecordingNotifier{}
	n := notify.WithDurations(rec, notify.Durations{Warning: 3 * time.Second})
	n.Notify(notify.Warning("w"))
	n.Notify(notify.Error("e"))

	got := rec.All()
	if got[0].Duration != 3*time.Second {
		t.Errorf("warning duration = %s, want 3s", got[0].Duration)
	}
	if got[1].Duration != notify.ErrorDuration {
		t.Errorf("zero override should keep the error default, got %s", got[1].Duration)
	}
}

func TestLogNotifier_UsesLevel(t *testing.T) {
	t.Parallel()

	logger := &testutil.DummyLogger{}
	ln := notify.NewLogNotifier(logger)
	ln.Notify(notify.Warning("careful"))
	ln.Notify(notify.Error("failed"))

	if len(logger.Warns) != 1 || logger.Warns[0] != "careful" {
		t.Errorf("unexpected warns: %v", logger.Warns)
	}
	if len(logger.Errors) != 1 || logger.Errors[0] != "failed" {
		t.Errorf("unexpected errors: %v", logger.Errors)
	}
}

func TestHub_BroadcastsToWebsocketClient(t *testing.T) {
	t.Parallel()

	hub := notify.NewHub(&testutil.DummyLogger{})
	ts := httptest.NewServer(hub)
	defer ts.Close()
	defer hub.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Notify(notify.Warning("remaining quota 5%"))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["message"] != "remaining quota 5%" || got["type"] != "warning" {
		t.Errorf("unexpected message: %s", msg)
	}
}

func TestHub_SlowClientDoesNotBlockNotify(t *testing.T) {
	t.Parallel()

	hub := notify.NewHub(&testutil.DummyLogger{})
	ts := httptest.NewServer(hub)
	defer ts.Close()
	defer hub.Close()

	// The client never reads, so the server side fills its socket buffers.
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	big := strings.Repeat("x", 512<<10)
	start := time.Now()
	for i := 0; i < 64; i++ {
		hub.Notify(notify.Error(big))
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Notify blocked on a slow client for %s", elapsed)
	}

	deadline = time.Now().Add(5 * time.Second)
	for hub.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("slow client was never dropped")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
