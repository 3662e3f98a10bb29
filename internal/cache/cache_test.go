package cache

import (
	"context"
	"testing"
	"time"
)

func TestStore_Lookup_Miss(t *testing.T) {
	s := New(NewInMemoryBackend())
	_, fresh, err := s.Lookup(context.Background(), Key(OriginPaidExternal, "", "criminal-v2", "CRIMINAL_NATIONAL", "fp1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fresh != Miss {
		t.Fatalf("expected Miss, got %s", fresh)
	}
}

func TestStore_Lookup_FreshThenStale(t *testing.T) {
	s := New(NewInMemoryBackend())
	key := Key(OriginPaidExternal, "", "criminal-v2", "CRIMINAL_NATIONAL", "fp1")

	err := s.Put(context.Background(), &Entry{
		Key:      key,
		Origin:   OriginPaidExternal,
		Payload:  []byte(`{"hits":0}`),
		FreshTTL: 20 * time.Millisecond,
		StaleTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	_, fresh, err := s.Lookup(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fresh != Fresh {
		t.Fatalf("expected Fresh immediately after Put, got %s", fresh)
	}

	time.Sleep(30 * time.Millisecond)

	_, fresh, err = s.Lookup(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fresh != Stale {
		t.Fatalf("expected Stale after fresh TTL elapses, got %s", fresh)
	}
}

func TestStore_CustomerProvidedKeysAreTenantScoped(t *testing.T) {
	keyA := Key(OriginCustomerProvided, "tenant-a", "hr-feed", "EMPLOYMENT_VERIFICATION", "fp1")
	keyB := Key(OriginCustomerProvided, "tenant-b", "hr-feed", "EMPLOYMENT_VERIFICATION", "fp1")
	if keyA == keyB {
		t.Fatal("expected customer-provided cache keys to differ across tenants")
	}
}

func TestStore_PaidExternalKeysAreGlobal(t *testing.T) {
	keyA := Key(OriginPaidExternal, "tenant-a", "criminal-v2", "CRIMINAL_NATIONAL", "fp1")
	keyB := Key(OriginPaidExternal, "tenant-b", "criminal-v2", "CRIMINAL_NATIONAL", "fp1")
	if keyA != keyB {
		t.Fatal("expected paid-external cache keys to be shared across tenants")
	}
}

func TestStore_Invalidate(t *testing.T) {
	s := New(NewInMemoryBackend())
	key := Key(OriginPaidExternal, "", "criminal-v2", "CRIMINAL_NATIONAL", "fp1")
	_ = s.Put(context.Background(), &Entry{Key: key, FreshTTL: time.Hour, StaleTTL: time.Hour})

	if err := s.Invalidate(context.Background(), key); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	_, fresh, _ := s.Lookup(context.Background(), key)
	if fresh != Miss {
		t.Fatalf("expected Miss after Invalidate, got %s", fresh)
	}
}
