package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	loandomain "github.com/victorcuaresmadev/MicroTrust-sub000/internal/domain/loan"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/storage"
)

type failingKV struct {
	storage.KV
	failSet bool
}

func (f *failingKV) GetItem(ctx context.Context, key string) (string, bool, error) {
	return f.KV.GetItem(ctx, key)
}

func (f *failingKV) SetItem(ctx context.Context, key, value string) error {
	if f.failSet {
		return errors.New("storage unavailable")
	}
	return f.KV.SetItem(ctx, key, value)
}

func (f *failingKV) RemoveItem(ctx context.Context, key string) error {
	return f.KV.RemoveItem(ctx, key)
}

func testLogger() *slog.Logger {
	return slog.Default()
}

func newTestStore(t *testing.T, kv storage.KV) *Store {
	t.Helper()
	s, err := New(context.Background(), kv, testLogger())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func sampleInput() loandomain.CreateInput {
	return loandomain.CreateInput{
		BorrowerName:    "Ada",
		BorrowerAddress: "0x52908400098527886E0F7030069857D2E4169EE7",
		Amount:          2,
		InterestRate:    0.16575,
		DurationDays:    7,
		Purpose:         "inventory",
		Category:        loandomain.CategoryBusiness,
		Network:         loandomain.NetworkMainnet,
	}
}

func TestCreateFixesTotalPayable(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryKV())
	rec := s.Create(context.Background(), sampleInput())

	if rec.ID == "" {
		t.Fatalf("expected generated id")
	}
	if rec.Status != loandomain.StatusPending {
		t.Fatalf("expected pending, got %s", rec.Status)
	}
	want := 2 * (1 + 0.16575)
	if rec.TotalPayable != want {
		t.Fatalf("expected total %v, got %v", want, rec.TotalPayable)
	}

	// A later rate change must not touch the stored total.
	s.Update(context.Background(), rec.ID, func(r *loandomain.Request) {
		r.InterestRate = 0.99
	})
	got, _ := s.Get(context.Background(), rec.ID)
	if got.TotalPayable != want {
		t.Fatalf("total payable drifted to %v", got.TotalPayable)
	}
}

func TestRoundTripRehydratesDates(t *testing.T) {
	kv := storage.NewMemoryKV()
	s := newTestStore(t, kv)
	created := s.Create(context.Background(), sampleInput())

	reloaded := newTestStore(t, kv)
	loans := reloaded.All(context.Background())
	if len(loans) != 1 {
		t.Fatalf("expected 1 loan after reload, got %d", len(loans))
	}
	if !loans[0].CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("created_at changed across reload: %v vs %v", loans[0].CreatedAt, created.CreatedAt)
	}
	if loans[0].CreatedAt.IsZero() {
		t.Fatalf("created_at not rehydrated")
	}
}

func TestPersistedShapeIsJSONArray(t *testing.T) {
	kv := storage.NewMemoryKV()
	s := newTestStore(t, kv)
	s.Create(context.Background(), sampleInput())

	raw, ok, err := kv.GetItem(context.Background(), loansKey)
	if err != nil || !ok {
		t.Fatalf("expected persisted collection, ok=%v err=%v", ok, err)
	}
	var arr []map[string]any
	if err := json.Unmarshal([]byte(raw), &arr); err != nil {
		t.Fatalf("persisted value is not a JSON array: %v", err)
	}
	if _, isString := arr[0]["created_at"].(string); !isString {
		t.Fatalf("expected created_at serialized as string")
	}
}

func TestByBorrowerIsCaseSensitive(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryKV())
	in := sampleInput()
	s.Create(context.Background(), in)

	if got := s.ByBorrower(context.Background(), in.BorrowerAddress); len(got) != 1 {
		t.Fatalf("expected exact match, got %d", len(got))
	}
	lower := "0x52908400098527886e0f7030069857d2e4169ee7"
	if got := s.ByBorrower(context.Background(), lower); len(got) != 0 {
		t.Fatalf("lookup must be case-sensitive, got %d", len(got))
	}
}

func TestUpdateUnknownIDIsNoOp(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryKV())
	s.Create(context.Background(), sampleInput())

	called := false
	s.Update(context.Background(), "no-such-id", func(r *loandomain.Request) {
		called = true
	})
	if called {
		t.Fatalf("mutator must not run for an unknown id")
	}
}

func TestPersistenceFailureDegradesButDoesNotThrow(t *testing.T) {
	kv := &failingKV{KV: storage.NewMemoryKV(), failSet: true}
	s := newTestStore(t, kv)

	rec := s.Create(context.Background(), sampleInput())
	if rec.ID == "" {
		t.Fatalf("create must succeed in memory despite storage failure")
	}
	if !s.Degraded() {
		t.Fatalf("expected degraded flag after failed save")
	}

	kv.failSet = false
	s.Update(context.Background(), rec.ID, func(r *loandomain.Request) {
		r.AppendEvent("retry save")
	})
	if s.Degraded() {
		t.Fatalf("degraded flag must clear after a successful save")
	}
}

func TestClearAllEmptiesLoansAndVerification(t *testing.T) {
	kv := storage.NewMemoryKV()
	s := newTestStore(t, kv)
	in := sampleInput()
	s.Create(context.Background(), in)
	s.SetBusinessVerified(context.Background(), in.BorrowerAddress, true)

	s.ClearAll(context.Background())
	if len(s.All(context.Background())) != 0 {
		t.Fatalf("expected empty collection")
	}
	if s.IsBusinessVerified(context.Background(), in.BorrowerAddress) {
		t.Fatalf("expected verification side-records cleared")
	}
	if _, ok, _ := kv.GetItem(context.Background(), loansKey); ok {
		t.Fatalf("expected backing store emptied")
	}
}

func TestSnapshotCopyIsolation(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryKV())
	rec := s.Create(context.Background(), sampleInput())

	snapshot := s.All(context.Background())
	snapshot[0].Status = loandomain.StatusRepaid
	snapshot[0].BorrowerName = "mutated"

	got, _ := s.Get(context.Background(), rec.ID)
	if got.Status != loandomain.StatusPending || got.BorrowerName != "Ada" {
		t.Fatalf("caller mutation leaked into the store")
	}
}

func TestCreatedAtIsUTC(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryKV())
	rec := s.Create(context.Background(), sampleInput())
	if rec.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected UTC timestamps")
	}
}
