package rest

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/tasklabs/taskmate/internal/server"
	"github.com/tasklabs/taskmate/internal/server/sqlite"
	"github.com/tasklabs/taskmate/internal/store"
	"github.com/tasklabs/taskmate/internal/task"
)

func newRealtimeClient(t *testing.T) *Client {
	t.Helper()
	st, err := sqlite.New(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	srv := server.New(st, server.Options{})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return New(Options{BaseURL: ts.URL, Realtime: true, Timeout: 5 * time.Second})
}

func TestSubscribeRequiresRealtime(t *testing.T) {
	c := New(Options{BaseURL: "http://localhost:1", Realtime: false})
	if _, _, err := c.Subscribe(context.Background()); err == nil {
		t.Error("subscribe without realtime must fail")
	}
}

func TestSubscribeDeliversMutations(t *testing.T) {
	c := newRealtimeClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	events, unsubscribe, err := c.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()

	// Let the server register the subscriber before mutating.
	time.Sleep(100 * time.Millisecond)

	created, err := c.Create(ctx, task.CreateInput{Title: "announce"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	select {
	case evt := <-events:
		if evt.Type != store.ChangeInsert {
			t.Fatalf("event type = %q", evt.Type)
		}
		if evt.New == nil || evt.New.ID != created.ID {
			t.Fatalf("event payload = %+v", evt.New)
		}
		if !evt.New.Status.Valid() {
			t.Errorf("event row not normalized: %q", evt.New.Status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no insert event received")
	}

	if err := c.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	select {
	case evt := <-events:
		if evt.Type != store.ChangeDelete || evt.Old == nil || evt.Old.ID != created.ID {
			t.Fatalf("delete event = %+v", evt)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no delete event received")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	c := newRealtimeClient(t)
	ctx := context.Background()

	events, unsubscribe, err := c.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	unsubscribe()

	select {
	case _, ok := <-events:
		if ok {
			t.Error("expected channel close, got event")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("channel did not close after unsubscribe")
	}
}

func TestSubscribeDialFailure(t *testing.T) {
	c := New(Options{BaseURL: "http://127.0.0.1:1", Realtime: true, Timeout: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, _, err := c.Subscribe(ctx); err == nil {
		t.Error("dial against dead address must fail")
	}
}
