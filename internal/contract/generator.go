package contract

import (
	"context"
	"fmt"
	"strings"
	"time"

	loandomain "github.com/victorcuaresmadev/MicroTrust-sub000/internal/domain/loan"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/storage"
)

// Generator renders a human-readable contract for a finalized loan record and
// returns a reference to it.
type Generator interface {
	Generate(ctx context.Context, rec loandomain.Request) (string, error)
}

// TextGenerator writes a plain-text contract into the key-value storage and
// returns the key as the document reference.
type TextGenerator struct {
	kv  storage.KV
	now func() time.Time
}

func NewTextGenerator(kv storage.KV) *TextGenerator {
	return &TextGenerator{kv: kv, now: func() time.Time { return time.Now().UTC() }}
}

func (g *TextGenerator) Generate(ctx context.Context, rec loandomain.Request) (string, error) {
	if rec.ID == "" {
		return "", fmt.Errorf("missing loan id")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "LOAN AGREEMENT %s\n", rec.ID)
	fmt.Fprintf(&b, "Generated: %s\n\n", g.now().Format(time.RFC3339))
	fmt.Fprintf(&b, "Borrower: %s (%s)\n", rec.BorrowerName, rec.BorrowerAddress)
	if rec.ApprovedBy != "" {
		fmt.Fprintf(&b, "Lender: %s\n", rec.ApprovedBy)
	}
	fmt.Fprintf(&b, "Network: %s\n", rec.Network)
	fmt.Fprintf(&b, "Principal: %v\n", rec.Amount)
	fmt.Fprintf(&b, "Interest rate: %.4f%%\n", rec.InterestRate*100)
	fmt.Fprintf(&b, "Total to repay: %v\n", rec.TotalPayable)
	fmt.Fprintf(&b, "Duration: %d days\n", rec.DurationDays)
	if rec.Purpose != "" {
		fmt.Fprintf(&b, "Purpose: %s (%s)\n", rec.Purpose, rec.Category)
	}

	key := "microtrust:contract:" + rec.ID
	if err := g.kv.SetItem(ctx, key, b.String()); err != nil {
		return "", err
	}
	return key, nil
}
