package memory

import (
	"context"
	"testing"
	"time"
)

func TestStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if _, ok, _ := s.Get(ctx, "missing"); ok {
		t.Fatal("expected missing key")
	}
	if err := s.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("expected v, got %q ok=%v err=%v", v, ok, err)
	}
	_ = s.Delete(ctx, "k")
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("expected key deleted")
	}
}

func TestStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	s := NewStore()
	s.now = func() time.Time { return now }

	_ = s.Set(ctx, "k", "v", 10)
	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Fatal("expected key before expiry")
	}
	now = now.Add(10 * time.Second)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("expected key to expire")
	}
}
