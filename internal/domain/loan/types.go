package loan

import "time"

type Status string

const (
	// StatusPending is the entry state: requested by the borrower, not yet acted on.
	StatusPending Status = "pending"
	// StatusRejected is terminal; re-rejecting overwrites reason and timestamp.
	StatusRejected Status = "rejected"
	// StatusAwaitingDisbursement means approved in principle but not yet settled.
	// A declined or failed transfer leaves the loan here so the admin can retry.
	StatusAwaitingDisbursement Status = "awaiting_disbursement"
	// StatusDisbursed means the transfer was submitted; ledger confirmation pending.
	StatusDisbursed Status = "disbursed"
	// StatusActive means the disbursement was confirmed on-chain.
	StatusActive Status = "active"
	// StatusRepaid is terminal: the borrower's repayment transfer was submitted.
	StatusRepaid Status = "repaid"
)

type PurposeCategory string

const (
	CategoryStudent           PurposeCategory = "student"
	CategoryMedical           PurposeCategory = "medical"
	CategoryEducation         PurposeCategory = "education"
	CategoryHomeImprovement   PurposeCategory = "home_improvement"
	CategoryDebtConsolidation PurposeCategory = "debt_consolidation"
	CategoryBusiness          PurposeCategory = "business"
	CategoryOther             PurposeCategory = "other"
)

type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkSepolia Network = "sepolia"
	NetworkHolesky Network = "holesky"
	NetworkPolygon Network = "polygon"
	NetworkBSC     Network = "bsc"
)

var networkLimits = map[Network]float64{
	NetworkMainnet: 5,
	NetworkSepolia: 50,
	NetworkHolesky: 50,
	NetworkPolygon: 500,
	NetworkBSC:     100,
}

// NetworkLimit returns the maximum principal for a target network in display
// units, or false for an unknown network.
func NetworkLimit(n Network) (float64, bool) {
	limit, ok := networkLimits[n]
	return limit, ok
}

// Request is the persisted loan record. The collection serializes as a JSON
// array; time fields round-trip through RFC3339.
type Request struct {
	ID              string          `json:"id"`
	BorrowerName    string          `json:"borrower_name"`
	BorrowerAddress string          `json:"borrower_address"`
	ApprovedBy      string          `json:"approved_by,omitempty"`
	RejectedBy      string          `json:"rejected_by,omitempty"`
	Amount          float64         `json:"amount"`
	InterestRate    float64         `json:"interest_rate"`
	TotalPayable    float64         `json:"total_payable"`
	DurationDays    int             `json:"duration_days"`
	Purpose         string          `json:"purpose"`
	Category        PurposeCategory `json:"category"`
	Network         Network         `json:"network"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	RejectedAt      *time.Time      `json:"rejected_at,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	LastError       string          `json:"last_error,omitempty"`
	ContractRef     string          `json:"contract_ref,omitempty"`
	Events          []string        `json:"events,omitempty"`
}

type CreateInput struct {
	BorrowerName    string
	BorrowerAddress string
	Amount          float64
	InterestRate    float64
	DurationDays    int
	Purpose         string
	Category        PurposeCategory
	Network         Network
}

// AppendEvent adds a human-readable line to the audit trail.
func (r *Request) AppendEvent(line string) {
	r.Events = append(r.Events, line)
}
