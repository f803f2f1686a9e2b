package ws

import (
	"encoding/json"
	"strings"

	loandomain "github.com/victorcuaresmadev/MicroTrust-sub000/internal/domain/loan"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/tracker"
)

// SettlementNotifier fans confirmation-tracker notifications out to
// websocket subscribers. Purely informational: no delivery guarantees.
type SettlementNotifier struct {
	hub *Hub
}

func NewSettlementNotifier(hub *Hub) *SettlementNotifier {
	return &SettlementNotifier{hub: hub}
}

func (n *SettlementNotifier) Notify(notification tracker.Notification) {
	payload, _ := json.Marshal(map[string]any{
		"event": "settlement_" + string(notification.Kind),
		"data": map[string]any{
			"loan_id":         notification.LoanID,
			"tx_hash":         notification.TxHash,
			"elapsed_seconds": notification.Elapsed.Seconds(),
		},
	})
	n.hub.Publish("loan:settlement:"+notification.LoanID, payload)
}

// BorrowerNotifier streams loan status changes to the borrower's feed. The
// topic key is lowercased to match the subscription side.
type BorrowerNotifier struct {
	hub *Hub
}

func NewBorrowerNotifier(hub *Hub) *BorrowerNotifier {
	return &BorrowerNotifier{hub: hub}
}

func (n *BorrowerNotifier) LoanUpdated(rec loandomain.Request) {
	payload, _ := json.Marshal(map[string]any{
		"event": "loan_updated",
		"data": map[string]any{
			"loan_id": rec.ID,
			"status":  rec.Status,
		},
	})
	n.hub.Publish("borrower:loans:"+strings.ToLower(rec.BorrowerAddress), payload)
}
