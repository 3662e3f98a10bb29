package webhook

import (
	"crypto/hmac"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type capturedDelivery struct {
	event     ScreeningEvent
	signature string
	body      []byte
}

func captureServer(t *testing.T) (*httptest.Server, func() []capturedDelivery) {
	t.Helper()
	var mu sync.Mutex
	var deliveries []capturedDelivery

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var evt ScreeningEvent
		if err := json.Unmarshal(body, &evt); err != nil {
			t.Errorf("subscriber received unparseable payload: %v", err)
		}
		mu.Lock()
		deliveries = append(deliveries, capturedDelivery{
			event:     evt,
			signature: r.Header.Get("X-Screening-Signature"),
			body:      body,
		})
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []capturedDelivery {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedDelivery(nil), deliveries...)
	}
}

func waitForDeliveries(t *testing.T, got func() []capturedDelivery, want int) []capturedDelivery {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if d := got(); len(d) >= want {
			return d
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d deliveries, got %d", want, len(got()))
	return nil
}

func TestDispatcher_DeliversTypedScreeningEvent(t *testing.T) {
	srv, got := captureServer(t)

	registry := NewRegistry()
	if err := registry.Register(&Subscription{
		TenantID: "tenant-a",
		URL:      srv.URL,
		Events:   []EventType{EventScreeningCompleted},
		Secret:   "s3cret",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	d := NewDispatcher(registry, 1)
	defer d.Shutdown()

	score := 42
	evt := NewEvent(EventScreeningCompleted, "tenant-a")
	evt.ScreeningID = "scrn-1"
	evt.RiskLevel = "moderate"
	evt.RiskScore = &score
	evt.FindingCount = 3
	d.Emit(evt)

	deliveries := waitForDeliveries(t, got, 1)
	delivered := deliveries[0]
	if delivered.event.ScreeningID != "scrn-1" || delivered.event.RiskLevel != "moderate" {
		t.Fatalf("expected screening fields on the wire, got %+v", delivered.event)
	}
	if delivered.event.RiskScore == nil || *delivered.event.RiskScore != 42 {
		t.Fatalf("expected risk score 42, got %+v", delivered.event.RiskScore)
	}

	want := "sha256=" + SignPayload(delivered.body, "s3cret")
	if !hmac.Equal([]byte(delivered.signature), []byte(want)) {
		t.Fatalf("expected payload signed with the subscription secret")
	}
}

func TestDispatcher_EventsNeverCrossTenants(t *testing.T) {
	srv, got := captureServer(t)

	registry := NewRegistry()
	if err := registry.Register(&Subscription{
		TenantID: "tenant-b",
		URL:      srv.URL,
		Events:   []EventType{EventScreeningCompleted},
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	d := NewDispatcher(registry, 1)
	defer d.Shutdown()

	d.Emit(NewEvent(EventScreeningCompleted, "tenant-a"))

	time.Sleep(100 * time.Millisecond)
	if len(got()) != 0 {
		t.Fatalf("tenant-b's subscription must never see tenant-a's events, got %d deliveries", len(got()))
	}
}

func TestRegistry_FailStreakDisablesAndDeliveryResets(t *testing.T) {
	registry := NewRegistry()
	sub := &Subscription{TenantID: "tenant-a", URL: "http://example.invalid", Events: []EventType{EventScreeningFailed}}
	if err := registry.Register(sub); err != nil {
		t.Fatalf("register: %v", err)
	}

	for i := 0; i < maxFailStreak-1; i++ {
		registry.MarkFailed(sub.ID)
	}
	registry.MarkDelivered(sub.ID)
	registry.MarkFailed(sub.ID)
	if len(registry.ForEvent(EventScreeningFailed, "tenant-a")) != 1 {
		t.Fatalf("a success mid-streak must reset the failure count")
	}

	for i := 0; i < maxFailStreak; i++ {
		registry.MarkFailed(sub.ID)
	}
	if len(registry.ForEvent(EventScreeningFailed, "tenant-a")) != 0 {
		t.Fatalf("subscription should be disabled after %d consecutive failures", maxFailStreak)
	}
}

func TestRegistry_UnregisterEnforcesTenantOwnership(t *testing.T) {
	registry := NewRegistry()
	sub := &Subscription{TenantID: "tenant-a", URL: "http://example.invalid", Events: []EventType{EventScreeningStarted}}
	if err := registry.Register(sub); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := registry.Unregister(sub.ID, "tenant-b"); err == nil {
		t.Fatalf("another tenant must not be able to remove the subscription")
	}
	if err := registry.Unregister(sub.ID, "tenant-a"); err != nil {
		t.Fatalf("owner unregister failed: %v", err)
	}
}
