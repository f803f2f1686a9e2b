package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	loandomain "github.com/victorcuaresmadev/MicroTrust-sub000/internal/domain/loan"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/storage"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/store"
)

type scriptedSettler struct {
	mu        sync.Mutex
	calls     int
	settleOn  int // settle on the Nth check; 0 = never
	checkErrs map[int]error
}

func (s *scriptedSettler) CheckSettled(_ context.Context, _ string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err, ok := s.checkErrs[s.calls]; ok {
		return false, err
	}
	return s.settleOn > 0 && s.calls >= s.settleOn, nil
}

func (s *scriptedSettler) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []Notification
}

func (n *recordingNotifier) Notify(notification Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification)
}

func (n *recordingNotifier) list() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.notifications))
	copy(out, n.notifications)
	return out
}

func disbursedLoan(t *testing.T) (*store.Store, string) {
	t.Helper()
	s, err := store.New(context.Background(), storage.NewMemoryKV(), slog.Default())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	rec := s.Create(context.Background(), loandomain.CreateInput{
		BorrowerName:    "Ada",
		BorrowerAddress: "0x52908400098527886E0F7030069857D2E4169EE7",
		Amount:          2,
		InterestRate:    0.16575,
		DurationDays:    7,
		Category:        loandomain.CategoryBusiness,
		Network:         loandomain.NetworkMainnet,
	})
	s.Update(context.Background(), rec.ID, func(r *loandomain.Request) {
		r.Status = loandomain.StatusDisbursed
	})
	return s, rec.ID
}

func newTestSupervisor(t *testing.T, settler Settler, loans *store.Store, notifier Notifier) *Supervisor {
	t.Helper()
	sup, err := NewSupervisor(settler, loans, notifier, slog.Default(), Config{
		FastInterval:     5 * time.Millisecond,
		FastAttempts:     12,
		ExtendedInterval: 15 * time.Millisecond,
		ExtendedAttempts: 20,
		PoolSize:         4,
	})
	if err != nil {
		t.Fatalf("supervisor: %v", err)
	}
	sup.sleep = func(_ context.Context, _ time.Duration) error { return nil }
	return sup
}

func waitDone(t *testing.T, sup *Supervisor, loanID string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for sup.Tracking(loanID) {
		select {
		case <-deadline:
			t.Fatalf("tracker did not finish")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestFastPhaseConfirmation(t *testing.T) {
	loans, id := disbursedLoan(t)
	settler := &scriptedSettler{settleOn: 3}
	notifier := &recordingNotifier{}
	sup := newTestSupervisor(t, settler, loans, notifier)
	defer sup.Release()

	if !sup.Track(id, "0xhash") {
		t.Fatalf("track refused")
	}
	waitDone(t, sup, id)

	rec, _ := loans.Get(context.Background(), id)
	if rec.Status != loandomain.StatusActive {
		t.Fatalf("expected active, got %s", rec.Status)
	}
	if len(rec.Events) == 0 {
		t.Fatalf("expected audit line")
	}

	got := notifier.list()
	if len(got) != 1 || got[0].Kind != NotifyConfirmed {
		t.Fatalf("expected a single confirmed notification, got %+v", got)
	}
	// 3 fast polls at 5ms each, never entering phase 2.
	if got[0].Elapsed != 15*time.Millisecond {
		t.Fatalf("expected elapsed 15ms, got %s", got[0].Elapsed)
	}
	if settler.callCount() != 3 {
		t.Fatalf("expected 3 checks, got %d", settler.callCount())
	}
}

func TestExtendedPhaseConfirmation(t *testing.T) {
	loans, id := disbursedLoan(t)
	// 12 fast misses, then settle on the 2nd extended poll.
	settler := &scriptedSettler{settleOn: 14}
	notifier := &recordingNotifier{}
	sup := newTestSupervisor(t, settler, loans, notifier)
	defer sup.Release()

	sup.Track(id, "0xhash")
	waitDone(t, sup, id)

	got := notifier.list()
	if len(got) != 2 {
		t.Fatalf("expected delayed then confirmed, got %+v", got)
	}
	if got[0].Kind != NotifyDelayed {
		t.Fatalf("expected delayed first, got %s", got[0].Kind)
	}
	if got[1].Kind != NotifyConfirmed {
		t.Fatalf("expected confirmed second, got %s", got[1].Kind)
	}
	// Phase-1 window (12x5ms) plus two extended polls (2x15ms).
	if got[1].Elapsed != 60*time.Millisecond+30*time.Millisecond {
		t.Fatalf("unexpected elapsed %s", got[1].Elapsed)
	}

	rec, _ := loans.Get(context.Background(), id)
	if rec.Status != loandomain.StatusActive {
		t.Fatalf("expected active, got %s", rec.Status)
	}
}

func TestNeverConfirmedStopsPermanently(t *testing.T) {
	loans, id := disbursedLoan(t)
	settler := &scriptedSettler{settleOn: 0}
	notifier := &recordingNotifier{}
	sup := newTestSupervisor(t, settler, loans, notifier)
	defer sup.Release()

	sup.Track(id, "0xhash")
	waitDone(t, sup, id)

	if settler.callCount() != 32 {
		t.Fatalf("expected 12+20 checks, got %d", settler.callCount())
	}
	got := notifier.list()
	if len(got) != 2 || got[0].Kind != NotifyDelayed || got[1].Kind != NotifyUnconfirmed {
		t.Fatalf("expected delayed then unconfirmed, got %+v", got)
	}

	rec, _ := loans.Get(context.Background(), id)
	if rec.Status != loandomain.StatusDisbursed {
		t.Fatalf("loan must stay disbursed, got %s", rec.Status)
	}
}

func TestCheckErrorReadsAsNotYet(t *testing.T) {
	loans, id := disbursedLoan(t)
	settler := &scriptedSettler{
		settleOn:  4,
		checkErrs: map[int]error{2: errors.New("connection reset")},
	}
	notifier := &recordingNotifier{}
	sup := newTestSupervisor(t, settler, loans, notifier)
	defer sup.Release()

	sup.Track(id, "0xhash")
	waitDone(t, sup, id)

	rec, _ := loans.Get(context.Background(), id)
	if rec.Status != loandomain.StatusActive {
		t.Fatalf("errors must not abort polling, got %s", rec.Status)
	}
}

func TestDuplicateTrackerRefused(t *testing.T) {
	loans, id := disbursedLoan(t)
	settler := &scriptedSettler{settleOn: 0}
	sup := newTestSupervisor(t, settler, loans, &recordingNotifier{})
	defer sup.Release()

	// Block the first tracker so it stays active while we try to double-start.
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	sup.sleep = func(_ context.Context, _ time.Duration) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	}

	if !sup.Track(id, "0xhash") {
		t.Fatalf("first track must start")
	}
	<-started
	if sup.Track(id, "0xhash") {
		t.Fatalf("second track for the same loan must be refused")
	}
	close(release)
	waitDone(t, sup, id)
}

func TestIndependentTrackersDoNotInterfere(t *testing.T) {
	loans, firstID := disbursedLoan(t)
	second := loans.Create(context.Background(), loandomain.CreateInput{
		BorrowerName:    "Grace",
		BorrowerAddress: "0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		Amount:          1,
		InterestRate:    0.1,
		DurationDays:    14,
		Category:        loandomain.CategoryMedical,
		Network:         loandomain.NetworkSepolia,
	})
	loans.Update(context.Background(), second.ID, func(r *loandomain.Request) {
		r.Status = loandomain.StatusDisbursed
	})

	settler := &scriptedSettler{settleOn: 1}
	sup := newTestSupervisor(t, settler, loans, &recordingNotifier{})
	defer sup.Release()

	sup.Track(firstID, "0xaaa")
	sup.Track(second.ID, "0xbbb")
	waitDone(t, sup, firstID)
	waitDone(t, sup, second.ID)

	a, _ := loans.Get(context.Background(), firstID)
	b, _ := loans.Get(context.Background(), second.ID)
	if a.Status != loandomain.StatusActive || b.Status != loandomain.StatusActive {
		t.Fatalf("both loans must confirm, got %s and %s", a.Status, b.Status)
	}
}
