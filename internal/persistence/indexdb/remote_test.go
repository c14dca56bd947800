package indexdb

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"waterwise.ai/internal/sim/events"
)

func TestRemoteIndex_RetainsBatchOnFlushFailure(t *testing.T) {
	var mu sync.Mutex
	reqCount := 0
	var applied []remoteEvent

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqCount++
		thisReq := reqCount
		mu.Unlock()

		if r.Header.Get("x-ww-index-token") != "secret" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if thisReq <= 3 {
			http.Error(w, "temporary failure", http.StatusInternalServerError)
			return
		}
		var body struct {
			Events []remoteEvent `json:"events"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		applied = append(applied, body.Events...)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	idx, err := OpenRemote(RemoteConfig{
		Endpoint:      srv.URL,
		Token:         "secret",
		ServerID:      "srv_1",
		BatchSize:     1,
		FlushInterval: 20 * time.Millisecond,
		HTTPTimeout:   2 * time.Second,
		Logger:        zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("OpenRemote: %v", err)
	}
	defer func() { _ = idx.Close() }()

	bus := events.NewBus()
	if err := idx.Initialize(bus); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	bus.Publish(events.New(events.RoundAdvanced, "", events.RoundPayload{Round: 1, Next: 2}))

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := len(applied) >= 1
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	got := append([]remoteEvent(nil), applied...)
	finalReqCount := reqCount
	mu.Unlock()

	if len(got) < 1 {
		t.Fatalf("expected retained batch to be eventually delivered; applied=%d reqCount=%d", len(got), finalReqCount)
	}
	if got[0].ServerID != "srv_1" || got[0].Event.Type != events.RoundAdvanced || got[0].Event.Seq != 1 {
		t.Fatalf("unexpected delivered event %+v", got[0])
	}
	st := idx.Stats()
	if st.FlushFailTotal == 0 {
		t.Fatalf("expected flush failures to be recorded, got 0")
	}
	if st.DropEventTotal != 0 {
		t.Fatalf("unexpected drops: %d", st.DropEventTotal)
	}
}

func TestOpenRemoteValidates(t *testing.T) {
	if _, err := OpenRemote(RemoteConfig{ServerID: "x"}); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
	if _, err := OpenRemote(RemoteConfig{Endpoint: "http://127.0.0.1:1"}); err == nil {
		t.Fatalf("expected error for empty server id")
	}
}
