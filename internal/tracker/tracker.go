package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	loandomain "github.com/victorcuaresmadev/MicroTrust-sub000/internal/domain/loan"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/store"
)

type NotificationKind string

const (
	// NotifyConfirmed: the transfer settled and the loan is active.
	NotifyConfirmed NotificationKind = "confirmed"
	// NotifyDelayed: the fast phase expired without settlement; extended
	// polling has started. Non-fatal.
	NotifyDelayed NotificationKind = "delayed"
	// NotifyUnconfirmed: both phases expired; tracking stopped for good.
	NotifyUnconfirmed NotificationKind = "unconfirmed"
)

type Notification struct {
	LoanID  string
	TxHash  string
	Kind    NotificationKind
	Elapsed time.Duration
}

// Notifier receives tracker notifications. Delivery is fire-and-observe: the
// tracker never blocks on or retries a listener.
type Notifier interface {
	Notify(n Notification)
}

// Settler answers whether a submitted transaction reference has finalized.
type Settler interface {
	CheckSettled(ctx context.Context, txHash string) (bool, error)
}

type Config struct {
	FastInterval     time.Duration
	FastAttempts     int
	ExtendedInterval time.Duration
	ExtendedAttempts int
	PoolSize         int
}

func DefaultConfig() Config {
	return Config{
		FastInterval:     5 * time.Second,
		FastAttempts:     12,
		ExtendedInterval: 15 * time.Second,
		ExtendedAttempts: 20,
		PoolSize:         64,
	}
}

// Supervisor runs at most one confirmation tracker per loan id. Each tracker
// polls in two escalating phases and drives the disbursed-to-active
// transition through the loan store; after the extended phase expires the
// loan stays disbursed and no further automatic polling happens.
type Supervisor struct {
	settler  Settler
	loans    *store.Store
	notifier Notifier
	logger   *slog.Logger
	cfg      Config
	pool     *ants.Pool

	mu     sync.Mutex
	active map[string]struct{}

	// sleep is injectable so tests can collapse the polling windows.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewSupervisor(settler Settler, loans *store.Store, notifier Notifier, logger *slog.Logger, cfg Config) (*Supervisor, error) {
	if cfg.FastInterval <= 0 || cfg.ExtendedInterval <= 0 || cfg.FastAttempts <= 0 || cfg.ExtendedAttempts <= 0 {
		def := DefaultConfig()
		if cfg.FastInterval <= 0 {
			cfg.FastInterval = def.FastInterval
		}
		if cfg.FastAttempts <= 0 {
			cfg.FastAttempts = def.FastAttempts
		}
		if cfg.ExtendedInterval <= 0 {
			cfg.ExtendedInterval = def.ExtendedInterval
		}
		if cfg.ExtendedAttempts <= 0 {
			cfg.ExtendedAttempts = def.ExtendedAttempts
		}
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultConfig().PoolSize
	}
	pool, err := ants.NewPool(cfg.PoolSize)
	if err != nil {
		return nil, err
	}
	return &Supervisor{
		settler:  settler,
		loans:    loans,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		pool:     pool,
		active:   map[string]struct{}{},
		sleep:    sleepCtx,
	}, nil
}

// Track starts a confirmation tracker for the loan's transaction reference.
// Returns false when a tracker for that loan is already running.
func (s *Supervisor) Track(loanID, txHash string) bool {
	s.mu.Lock()
	if _, running := s.active[loanID]; running {
		s.mu.Unlock()
		return false
	}
	s.active[loanID] = struct{}{}
	s.mu.Unlock()

	err := s.pool.Submit(func() {
		defer func() {
			s.mu.Lock()
			delete(s.active, loanID)
			s.mu.Unlock()
		}()
		s.run(context.Background(), loanID, txHash)
	})
	if err != nil {
		s.mu.Lock()
		delete(s.active, loanID)
		s.mu.Unlock()
		s.logger.Error("failed to start confirmation tracker", "loan_id", loanID, "err", err)
		return false
	}
	return true
}

// Tracking reports whether a tracker for the loan id is currently running.
func (s *Supervisor) Tracking(loanID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, running := s.active[loanID]
	return running
}

func (s *Supervisor) Release() {
	s.pool.Release()
}

func (s *Supervisor) run(ctx context.Context, loanID, txHash string) {
	if elapsed, settled := s.poll(ctx, txHash, s.cfg.FastInterval, s.cfg.FastAttempts, 0); settled {
		s.confirm(ctx, loanID, txHash, elapsed)
		return
	}

	fastWindow := time.Duration(s.cfg.FastAttempts) * s.cfg.FastInterval
	s.notify(Notification{LoanID: loanID, TxHash: txHash, Kind: NotifyDelayed, Elapsed: fastWindow})
	s.logger.Info("confirmation delayed, extended polling", "loan_id", loanID, "tx", txHash)

	if elapsed, settled := s.poll(ctx, txHash, s.cfg.ExtendedInterval, s.cfg.ExtendedAttempts, fastWindow); settled {
		s.confirm(ctx, loanID, txHash, elapsed)
		return
	}

	totalWindow := fastWindow + time.Duration(s.cfg.ExtendedAttempts)*s.cfg.ExtendedInterval
	s.notify(Notification{LoanID: loanID, TxHash: txHash, Kind: NotifyUnconfirmed, Elapsed: totalWindow})
	s.logger.Warn("transaction never confirmed, tracking stopped", "loan_id", loanID, "tx", txHash)
}

// poll waits one interval before each settlement check. Elapsed time is the
// attempt arithmetic, not wall clock, so observers see N x interval.
func (s *Supervisor) poll(ctx context.Context, txHash string, interval time.Duration, attempts int, base time.Duration) (time.Duration, bool) {
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := s.sleep(ctx, interval); err != nil {
			return 0, false
		}
		settled, err := s.settler.CheckSettled(ctx, txHash)
		if err != nil {
			// Communication failure reads as not-yet.
			s.logger.Warn("settlement check failed", "tx", txHash, "err", err)
			continue
		}
		if settled {
			return base + time.Duration(attempt)*interval, true
		}
	}
	return 0, false
}

func (s *Supervisor) confirm(ctx context.Context, loanID, txHash string, elapsed time.Duration) {
	s.loans.Update(ctx, loanID, func(r *loandomain.Request) {
		if r.Status != loandomain.StatusDisbursed {
			return
		}
		r.Status = loandomain.StatusActive
		r.AppendEvent(fmt.Sprintf("disbursement confirmed after %s, tx %s", elapsed, txHash))
	})
	s.notify(Notification{LoanID: loanID, TxHash: txHash, Kind: NotifyConfirmed, Elapsed: elapsed})
	s.logger.Info("disbursement confirmed", "loan_id", loanID, "tx", txHash, "elapsed", elapsed)
}

func (s *Supervisor) notify(n Notification) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(n)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
