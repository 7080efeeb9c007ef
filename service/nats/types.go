package nats

import (
	"fmt"
	"strings"
	"time"

	"github.com/brojonat/dualtx/service/ledger"
	"github.com/google/uuid"
)

// TransactionEvent represents a committed transaction published to NATS.
// This is published to the subject "ledger.txns.{from}" in JetStream.
type TransactionEvent struct {
	// EventID doubles as the JetStream message ID for de-duplication.
	EventID string `json:"event_id"`

	// Accounts
	From string `json:"from"`
	To   string `json:"to"`

	// Position of the transaction in the sender's history
	Index int `json:"index"`

	// Transaction details
	Amount       uint64      `json:"amount"`
	Kind         ledger.Kind `json:"kind"`
	IsCrossChain bool        `json:"is_cross_chain"`
	Memo         []byte      `json:"memo,omitempty"`
	SubmittedBy  string      `json:"submitted_by,omitempty"`

	// Timing information
	RecordedAt  time.Time `json:"recorded_at"`
	PublishedAt time.Time `json:"published_at"`
}

// FromReceipt converts a ledger receipt to a TransactionEvent for publishing.
func FromReceipt(receipt *ledger.Receipt) *TransactionEvent {
	txn := receipt.Transaction
	event := &TransactionEvent{
		EventID:      uuid.NewString(),
		From:         txn.From,
		To:           txn.To,
		Index:        receipt.Index,
		Amount:       txn.Amount,
		Kind:         txn.Kind,
		IsCrossChain: txn.IsCrossChain,
		SubmittedBy:  txn.SubmittedBy,
		RecordedAt:   txn.RecordedAt,
		PublishedAt:  time.Now().UTC(),
	}
	if txn.Memo != nil {
		event.Memo = append([]byte{}, txn.Memo...)
	}
	return event
}

// BadgeEvent represents a purity badge grant or revocation.
// This is published to the subject "ledger.badges.{account}".
type BadgeEvent struct {
	EventID     string    `json:"event_id"`
	Account     string    `json:"account"`
	Status      bool      `json:"status"`
	ChangedBy   string    `json:"changed_by"`
	ChangedAt   time.Time `json:"changed_at"`
	PublishedAt time.Time `json:"published_at"`
}

// NewBadgeEvent builds a BadgeEvent stamped with the current time.
func NewBadgeEvent(account string, status bool, changedBy string) *BadgeEvent {
	now := time.Now().UTC()
	return &BadgeEvent{
		EventID:     uuid.NewString(),
		Account:     account,
		Status:      status,
		ChangedBy:   changedBy,
		ChangedAt:   now,
		PublishedAt: now,
	}
}

// TransactionSubject returns the subject transaction events for account are
// published on. An empty account yields the wildcard subject.
func TransactionSubject(account string) string {
	if account == "" {
		return "ledger.txns.*"
	}
	return fmt.Sprintf("ledger.txns.%s", subjectToken(account))
}

// BadgeSubject returns the subject badge events for account are published on.
// An empty account yields the wildcard subject.
func BadgeSubject(account string) string {
	if account == "" {
		return "ledger.badges.*"
	}
	return fmt.Sprintf("ledger.badges.%s", subjectToken(account))
}

// subjectToken replaces characters that carry meaning in NATS subjects.
func subjectToken(account string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, account)
}
