package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	loandomain "github.com/victorcuaresmadev/MicroTrust-sub000/internal/domain/loan"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/rates"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/settlement"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/store"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/wallet"
)

var (
	ErrUnauthorized    = errors.New("caller not authorized")
	ErrLoanNotFound    = errors.New("loan not found")
	ErrInvalidState    = errors.New("invalid loan state for transition")
	ErrInvalidInput    = errors.New("invalid loan input")
	ErrUnknownNetwork  = errors.New("unknown target network")
	ErrAmountOverLimit = errors.New("amount exceeds network limit")
	ErrNotReady        = errors.New("settlement gateway not ready")
)

// Gateway is the settlement surface the engine drives.
type Gateway interface {
	SubmitTransfer(ctx context.Context, from, to string, amount float64, kind settlement.TransferKind) (string, error)
	CheckReadiness(ctx context.Context) settlement.Readiness
}

// Tracker starts confirmation tracking for a submitted disbursement.
type Tracker interface {
	Track(loanID, txHash string) bool
}

// ContractGenerator renders a human-readable contract for a disbursed loan.
// Failures are logged and swallowed; money has already moved.
type ContractGenerator interface {
	Generate(ctx context.Context, rec loandomain.Request) (string, error)
}

// EventSink receives the record after every state-changing operation, feeding
// borrower-facing status streams. Delivery is fire-and-observe.
type EventSink interface {
	LoanUpdated(rec loandomain.Request)
}

// TransitionResult is the structured outcome of a settlement-backed
// transition. Declined marks the expected user-cancelled-signing path so the
// caller can message it differently from a real failure.
type TransitionResult struct {
	Success  bool                `json:"success"`
	Declined bool                `json:"declined,omitempty"`
	Message  string              `json:"message,omitempty"`
	Loan     *loandomain.Request `json:"loan,omitempty"`
}

// Engine validates and applies loan state transitions, persisting each one
// through the loan store.
type Engine struct {
	loans     *store.Store
	gateway   Gateway
	tracker   Tracker
	contracts ContractGenerator
	events    EventSink
	policy    AuthorizationPolicy
	logger    *slog.Logger
	now       func() time.Time

	// Per-loan locks covering the read-check-submit span of settlement-backed
	// transitions, so two concurrent calls cannot both move money.
	lockMu    sync.Mutex
	loanLocks map[string]*sync.Mutex
}

func NewEngine(loans *store.Store, gateway Gateway, tracker Tracker, contracts ContractGenerator, events EventSink, policy AuthorizationPolicy, logger *slog.Logger) *Engine {
	return &Engine{
		loans:     loans,
		gateway:   gateway,
		tracker:   tracker,
		contracts: contracts,
		events:    events,
		policy:    policy,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		loanLocks: map[string]*sync.Mutex{},
	}
}

func (e *Engine) lockLoan(loanID string) func() {
	e.lockMu.Lock()
	l, ok := e.loanLocks[loanID]
	if !ok {
		l = &sync.Mutex{}
		e.loanLocks[loanID] = l
	}
	e.lockMu.Unlock()
	l.Lock()
	return l.Unlock
}

func (e *Engine) emit(rec loandomain.Request) {
	if e.events == nil {
		return
	}
	e.events.LoanUpdated(rec)
}

type CreateInput struct {
	BorrowerName    string
	BorrowerAddress string
	Amount          float64
	Purpose         string
	Category        loandomain.PurposeCategory
	DurationDays    int
	Network         loandomain.Network
}

// Create computes the interest rate, fixes the total payable, and persists a
// pending record.
func (e *Engine) Create(ctx context.Context, in CreateInput) (*loandomain.Request, error) {
	if strings.TrimSpace(in.BorrowerName) == "" || in.Amount <= 0 || in.DurationDays <= 0 {
		return nil, ErrInvalidInput
	}
	if !wallet.ValidAddress(in.BorrowerAddress) {
		return nil, fmt.Errorf("%w: bad borrower address", ErrInvalidInput)
	}
	limit, ok := loandomain.NetworkLimit(in.Network)
	if !ok {
		return nil, ErrUnknownNetwork
	}
	if in.Amount > limit {
		return nil, fmt.Errorf("%w: %v > %v on %s", ErrAmountOverLimit, in.Amount, limit, in.Network)
	}

	verified := e.loans.IsBusinessVerified(ctx, in.BorrowerAddress)
	rate := rates.QuoteRate(in.Category, in.DurationDays, verified)

	rec := e.loans.Create(ctx, loandomain.CreateInput{
		BorrowerName:    strings.TrimSpace(in.BorrowerName),
		BorrowerAddress: strings.TrimSpace(in.BorrowerAddress),
		Amount:          in.Amount,
		InterestRate:    rate,
		DurationDays:    in.DurationDays,
		Purpose:         strings.TrimSpace(in.Purpose),
		Category:        in.Category,
		Network:         in.Network,
	})
	e.logger.Info("loan requested", "loan_id", rec.ID, "borrower", rec.BorrowerAddress, "amount", rec.Amount, "rate", rate)
	e.emit(rec)
	return &rec, nil
}

// Reject moves a pending loan to rejected. Re-rejecting overwrites reason and
// timestamp: last write wins.
func (e *Engine) Reject(ctx context.Context, loanID, adminAddress, reason string) (*loandomain.Request, error) {
	if !e.policy.IsAdmin(adminAddress) {
		return nil, ErrUnauthorized
	}
	unlock := e.lockLoan(loanID)
	defer unlock()

	rec, ok := e.loans.Get(ctx, loanID)
	if !ok {
		return nil, ErrLoanNotFound
	}
	if rec.Status != loandomain.StatusPending && rec.Status != loandomain.StatusRejected {
		return nil, fmt.Errorf("%w: cannot reject %s loan", ErrInvalidState, rec.Status)
	}

	when := e.now()
	e.loans.Update(ctx, loanID, func(r *loandomain.Request) {
		r.Status = loandomain.StatusRejected
		r.RejectedBy = adminAddress
		r.RejectedAt = &when
		r.RejectionReason = strings.TrimSpace(reason)
		r.ApprovedBy = ""
		r.ApprovedAt = nil
	})
	out, _ := e.loans.Get(ctx, loanID)
	e.emit(out)
	return &out, nil
}

// Approve disburses the full principal to the borrower. On submission the
// loan becomes disbursed and a confirmation tracker takes over; a declined
// signature or failed submission leaves the loan awaiting disbursement so
// the administrator can retry.
func (e *Engine) Approve(ctx context.Context, loanID, adminAddress string) (*TransitionResult, error) {
	if !e.policy.IsAdmin(adminAddress) {
		return nil, ErrUnauthorized
	}
	unlock := e.lockLoan(loanID)
	defer unlock()

	rec, ok := e.loans.Get(ctx, loanID)
	if !ok {
		return nil, ErrLoanNotFound
	}
	if rec.Status != loandomain.StatusPending && rec.Status != loandomain.StatusAwaitingDisbursement {
		return nil, fmt.Errorf("%w: cannot approve %s loan", ErrInvalidState, rec.Status)
	}

	// Defense in depth: the limit held at creation, but never move money for
	// a record that somehow exceeds it now.
	limit, ok := loandomain.NetworkLimit(rec.Network)
	if !ok {
		return nil, ErrUnknownNetwork
	}
	if rec.Amount > limit {
		return nil, fmt.Errorf("%w: %v > %v on %s", ErrAmountOverLimit, rec.Amount, limit, rec.Network)
	}

	if readiness := e.gateway.CheckReadiness(ctx); !readiness.Ready {
		return nil, fmt.Errorf("%w: %s", ErrNotReady, readiness.Reason)
	}

	when := e.now()
	e.loans.Update(ctx, loanID, func(r *loandomain.Request) {
		r.Status = loandomain.StatusAwaitingDisbursement
		r.ApprovedBy = adminAddress
		r.ApprovedAt = &when
	})

	txHash, err := e.gateway.SubmitTransfer(ctx, adminAddress, rec.BorrowerAddress, rec.Amount, settlement.KindDisbursement)
	if err != nil {
		declined := errors.Is(err, settlement.ErrUserDeclined)
		e.loans.Update(ctx, loanID, func(r *loandomain.Request) {
			r.LastError = err.Error()
			if declined {
				r.AppendEvent("disbursement signing declined by administrator")
			} else {
				r.AppendEvent(fmt.Sprintf("disbursement failed: %s", err.Error()))
			}
		})
		failed, _ := e.loans.Get(ctx, loanID)
		e.emit(failed)
		if declined {
			e.logger.Info("disbursement declined", "loan_id", loanID)
			return &TransitionResult{Declined: true, Message: "signing declined, loan remains approved and unsettled"}, nil
		}
		e.logger.Error("disbursement failed", "loan_id", loanID, "err", err)
		return &TransitionResult{Message: err.Error()}, nil
	}

	e.loans.Update(ctx, loanID, func(r *loandomain.Request) {
		r.Status = loandomain.StatusDisbursed
		r.LastError = ""
		r.AppendEvent(fmt.Sprintf("disbursement submitted, tx %s", txHash))
	})
	e.tracker.Track(loanID, txHash)

	if e.contracts != nil {
		disbursed, _ := e.loans.Get(ctx, loanID)
		ref, genErr := e.contracts.Generate(ctx, disbursed)
		if genErr != nil {
			e.logger.Error("contract generation failed", "loan_id", loanID, "err", genErr)
		} else {
			e.loans.Update(ctx, loanID, func(r *loandomain.Request) {
				r.ContractRef = ref
			})
		}
	}

	out, _ := e.loans.Get(ctx, loanID)
	e.emit(out)
	e.logger.Info("loan disbursed", "loan_id", loanID, "tx", txHash)
	return &TransitionResult{Success: true, Loan: &out}, nil
}

// Repay transfers principal plus interest from the borrower back to the
// lender. Only the borrower of an active loan may repay; success is recorded
// immediately with no confirmation-tracking phase.
func (e *Engine) Repay(ctx context.Context, loanID, callerAddress string) (*TransitionResult, error) {
	unlock := e.lockLoan(loanID)
	defer unlock()

	rec, ok := e.loans.Get(ctx, loanID)
	if !ok {
		return nil, ErrLoanNotFound
	}
	if !wallet.EqualAddresses(callerAddress, rec.BorrowerAddress) {
		return nil, ErrUnauthorized
	}
	if rec.Status != loandomain.StatusActive {
		return nil, fmt.Errorf("%w: cannot repay %s loan", ErrInvalidState, rec.Status)
	}

	lender := rec.ApprovedBy
	if strings.TrimSpace(lender) == "" {
		lender = e.policy.DefaultAdmin()
	}

	txHash, err := e.gateway.SubmitTransfer(ctx, callerAddress, lender, rec.TotalPayable, settlement.KindRepayment)
	if err != nil {
		if errors.Is(err, settlement.ErrUserDeclined) {
			return &TransitionResult{Declined: true, Message: "signing declined, loan unchanged"}, nil
		}
		e.logger.Error("repayment failed", "loan_id", loanID, "err", err)
		return &TransitionResult{Message: err.Error()}, nil
	}

	e.loans.Update(ctx, loanID, func(r *loandomain.Request) {
		r.Status = loandomain.StatusRepaid
		r.AppendEvent(fmt.Sprintf("repayment submitted, tx %s", txHash))
	})
	out, _ := e.loans.Get(ctx, loanID)
	e.emit(out)
	e.logger.Info("loan repaid", "loan_id", loanID, "tx", txHash)
	return &TransitionResult{Success: true, Loan: &out}, nil
}

// SetBusinessVerified records the administrator-maintained verification
// side-record consulted at creation time.
func (e *Engine) SetBusinessVerified(ctx context.Context, adminAddress, borrowerAddress string, verified bool) error {
	if !e.policy.IsAdmin(adminAddress) {
		return ErrUnauthorized
	}
	if !wallet.ValidAddress(borrowerAddress) {
		return fmt.Errorf("%w: bad borrower address", ErrInvalidInput)
	}
	e.loans.SetBusinessVerified(ctx, borrowerAddress, verified)
	return nil
}

// ClearAll is the administrative maintenance action: drops every loan and
// verification side-record.
func (e *Engine) ClearAll(ctx context.Context, adminAddress string) error {
	if !e.policy.IsAdmin(adminAddress) {
		return ErrUnauthorized
	}
	e.loans.ClearAll(ctx)
	e.logger.Warn("all loan records cleared", "admin", adminAddress)
	return nil
}

func (e *Engine) List(ctx context.Context) []loandomain.Request {
	return e.loans.All(ctx)
}

func (e *Engine) ByBorrower(ctx context.Context, address string) []loandomain.Request {
	return e.loans.ByBorrower(ctx, address)
}

func (e *Engine) Get(ctx context.Context, loanID string) (*loandomain.Request, error) {
	rec, ok := e.loans.Get(ctx, loanID)
	if !ok {
		return nil, ErrLoanNotFound
	}
	return &rec, nil
}

// Readiness exposes the settlement preflight for the admin surface.
func (e *Engine) Readiness(ctx context.Context) settlement.Readiness {
	return e.gateway.CheckReadiness(ctx)
}

// StoreDegraded reports best-effort persistence health.
func (e *Engine) StoreDegraded() bool {
	return e.loans.Degraded()
}
