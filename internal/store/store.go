package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	loandomain "github.com/victorcuaresmadev/MicroTrust-sub000/internal/domain/loan"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/storage"
)

const (
	loansKey        = "microtrust:loans"
	verificationKey = "microtrust:business_verified"
)

// Store owns all reads and writes of the persisted loan collection. Writes
// serialize the entire collection; persistence is best-effort, so a failed
// save leaves the in-memory state authoritative for the session and flips
// the degraded flag instead of surfacing an error to callers.
type Store struct {
	kv     storage.KV
	logger *slog.Logger

	mu       sync.RWMutex
	loans    []loandomain.Request
	verified map[string]bool

	degraded atomic.Bool
	now      func() time.Time
	newID    func() string
}

func New(ctx context.Context, kv storage.KV, logger *slog.Logger) (*Store, error) {
	s := &Store{
		kv:       kv,
		logger:   logger,
		loans:    []loandomain.Request{},
		verified: map[string]bool{},
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.NewString() },
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	raw, ok, err := s.kv.GetItem(ctx, loansKey)
	if err != nil {
		return err
	}
	if ok && raw != "" {
		var loans []loandomain.Request
		if err := json.Unmarshal([]byte(raw), &loans); err != nil {
			return err
		}
		s.loans = loans
	}

	raw, ok, err = s.kv.GetItem(ctx, verificationKey)
	if err != nil {
		return err
	}
	if ok && raw != "" {
		var verified map[string]bool
		if err := json.Unmarshal([]byte(raw), &verified); err != nil {
			return err
		}
		s.verified = verified
	}
	return nil
}

// Create assigns an id, stamps the creation time, marks the record pending,
// fixes the total payable from the rate supplied in the input, and persists.
func (s *Store) Create(ctx context.Context, in loandomain.CreateInput) loandomain.Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := loandomain.Request{
		ID:              s.newID(),
		BorrowerName:    in.BorrowerName,
		BorrowerAddress: in.BorrowerAddress,
		Amount:          in.Amount,
		InterestRate:    in.InterestRate,
		TotalPayable:    in.Amount * (1 + in.InterestRate),
		DurationDays:    in.DurationDays,
		Purpose:         in.Purpose,
		Category:        in.Category,
		Network:         in.Network,
		Status:          loandomain.StatusPending,
		CreatedAt:       s.now(),
	}
	s.loans = append(s.loans, rec)
	s.persistLoans(ctx)
	return rec
}

// All returns a snapshot copy of the collection.
func (s *Store) All(_ context.Context) []loandomain.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]loandomain.Request, len(s.loans))
	copy(out, s.loans)
	return out
}

// ByBorrower filters by case-sensitive exact address match.
func (s *Store) ByBorrower(_ context.Context, address string) []loandomain.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []loandomain.Request{}
	for _, rec := range s.loans {
		if rec.BorrowerAddress == address {
			out = append(out, rec)
		}
	}
	return out
}

// Get returns a copy of the record, or false when the id is unknown.
func (s *Store) Get(_ context.Context, id string) (loandomain.Request, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.loans {
		if rec.ID == id {
			return rec, true
		}
	}
	return loandomain.Request{}, false
}

// Update applies the mutator to the matching record and persists the whole
// collection. An unknown id is a silent no-op; callers rely on that, so it is
// kept rather than turned into an error.
func (s *Store) Update(ctx context.Context, id string, mutate func(*loandomain.Request)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.loans {
		if s.loans[i].ID == id {
			mutate(&s.loans[i])
			s.persistLoans(ctx)
			return
		}
	}
}

// ClearAll empties the loan collection and the verification side-records.
func (s *Store) ClearAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loans = []loandomain.Request{}
	s.verified = map[string]bool{}
	if err := s.kv.RemoveItem(ctx, loansKey); err != nil {
		s.markDegraded(err)
		return
	}
	if err := s.kv.RemoveItem(ctx, verificationKey); err != nil {
		s.markDegraded(err)
		return
	}
	s.degraded.Store(false)
}

// SetBusinessVerified records the verification side-record for a borrower.
func (s *Store) SetBusinessVerified(ctx context.Context, address string, verified bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified[address] = verified
	raw, err := json.Marshal(s.verified)
	if err != nil {
		s.markDegraded(err)
		return
	}
	if err := s.kv.SetItem(ctx, verificationKey, string(raw)); err != nil {
		s.markDegraded(err)
		return
	}
	s.degraded.Store(false)
}

func (s *Store) IsBusinessVerified(_ context.Context, address string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.verified[address]
}

// Degraded reports whether the last persistence attempt failed. In-memory
// state stays ahead of durable state while this is set.
func (s *Store) Degraded() bool {
	return s.degraded.Load()
}

// persistLoans must be called with the write lock held.
func (s *Store) persistLoans(ctx context.Context) {
	raw, err := json.Marshal(s.loans)
	if err != nil {
		s.markDegraded(err)
		return
	}
	if err := s.kv.SetItem(ctx, loansKey, string(raw)); err != nil {
		s.markDegraded(err)
		return
	}
	s.degraded.Store(false)
}

func (s *Store) markDegraded(err error) {
	s.degraded.Store(true)
	s.logger.Error("loan store persistence failed", "err", err)
}
