package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/use-agent/sitelens/fetcher"
)

func TestDeliver_Signed(t *testing.T) {
	var gotSig, gotUA string
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotSig = r.Header.Get(SignatureHeader)
		gotUA = r.Header.Get("User-Agent")
		if want := "sha256=" + Sign("s3cret", body); gotSig != want {
			t.Errorf("signature = %q, want %q", gotSig, want)
		}
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ev := &Event{Type: EventArchiveCompleted, JobID: "job-1", Timestamp: 1700000000, Data: map[string]int{"fetched": 3}}
	if err := NewNotifier(nil).Deliver(context.Background(), srv.URL, "s3cret", ev); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if gotUA != "Sitelens-Webhook/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if got.Type != EventArchiveCompleted || got.JobID != "job-1" {
		t.Errorf("event = %+v", got)
	}
}

func TestDeliver_Unsigned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sig := r.Header.Get(SignatureHeader); sig != "" {
			t.Errorf("unexpected signature %q", sig)
		}
	}))
	defer srv.Close()

	if err := NewNotifier(nil).Deliver(context.Background(), srv.URL, "", &Event{Type: EventArchiveFailed}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
}

func TestDeliver_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := NewNotifier(nil).Deliver(context.Background(), srv.URL, "", &Event{Type: EventArchiveFailed}); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}

func TestDeliverAsync_Retries(t *testing.T) {
	orig := RetryDelays
	RetryDelays = []time.Duration{0, 10 * time.Millisecond, 10 * time.Millisecond}
	defer func() { RetryDelays = orig }()

	var calls atomic.Int32
	delivered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		close(delivered)
	}))
	defer srv.Close()

	NewNotifier(nil).DeliverAsync(srv.URL, "", &Event{Type: EventArchiveCompleted, JobID: "job-2"})

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not redelivered")
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestDeliver_PublicTransportRefusesLoopback(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	guarded := NewNotifier(&http.Client{Timeout: 5 * time.Second, Transport: fetcher.PublicTransport(false)})
	err := guarded.Deliver(context.Background(), srv.URL, "", &Event{Type: EventArchiveCompleted})
	if !errors.Is(err, fetcher.ErrBlockedAddress) {
		t.Fatalf("error = %v, want ErrBlockedAddress", err)
	}
	if hits.Load() != 0 {
		t.Error("loopback endpoint was reached")
	}

	open := NewNotifier(&http.Client{Timeout: 5 * time.Second, Transport: fetcher.PublicTransport(true)})
	if err := open.Deliver(context.Background(), srv.URL, "", &Event{Type: EventArchiveCompleted}); err != nil {
		t.Fatalf("allowPrivate Deliver: %v", err)
	}
}
