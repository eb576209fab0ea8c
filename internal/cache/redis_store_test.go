package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"dietscore/internal/scoring"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, s
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	if _, err := NewRedisStore("not a url"); err == nil {
		t.Fatal("expected error for invalid url")
	}
}

func TestSaveAndLoadReport(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	report := scoring.Report{
		{BillID: 1, BillTitle: "A", MemberScores: []scoring.MemberScore{{MemberID: 5, Score: 10, Breakdown: []string{"sponsor (+10)"}}}},
		{BillID: 2, BillTitle: "B", MemberScores: []scoring.MemberScore{}},
	}
	if err := store.SaveReport(ctx, "abc", report); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	digest, err := store.Digest(ctx)
	if err != nil || digest != "abc" {
		t.Fatalf("Digest() = %q, %v", digest, err)
	}
	bill, err := store.Load(ctx, 1)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if bill.BillTitle != "A" || len(bill.MemberScores) != 1 || bill.MemberScores[0].Score != 10 {
		t.Errorf("unexpected bill %+v", bill)
	}
	if !s.Exists("report:bill:2") {
		t.Error("expected key for bill 2")
	}
}

func TestSaveReportDropsStaleBills(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	if err := store.SaveReport(ctx, "one", scoring.Report{{BillID: 1}, {BillID: 2}}); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}
	if err := store.SaveReport(ctx, "two", scoring.Report{{BillID: 2}}); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	if s.Exists("report:bill:1") {
		t.Error("expected bill 1 to be removed")
	}
	if _, err := store.Load(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	members, err := s.Members("report:bills")
	if err != nil || len(members) != 1 || members[0] != "2" {
		t.Errorf("unexpected index %v, %v", members, err)
	}
}

func TestLoadMissing(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	if _, err := store.Load(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Digest(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for digest, got %v", err)
	}
}

func TestPingAfterServerClose(t *testing.T) {
	store, s := setupTestRedis(t)
	s.Close()
	if err := store.Ping(context.Background()); err == nil {
		t.Error("expected ping to fail after server shutdown")
	}
}
