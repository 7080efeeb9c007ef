package ledger

import (
	"fmt"
	"strings"
	"time"
)

// Kind classifies a transaction. The ledger records it but does not change
// behavior based on it.
type Kind string

const (
	KindInternal Kind = "internal"
	KindExternal Kind = "external"

	// DefaultKind is recorded when a submission leaves Kind empty.
	DefaultKind = KindInternal
)

// ParseKind parses "internal" or "external", ignoring case and surrounding space.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindInternal:
		return KindInternal, nil
	case KindExternal:
		return KindExternal, nil
	default:
		return "", fmt.Errorf("invalid kind %q: must be 'internal' or 'external'", s)
	}
}

func (k Kind) String() string {
	return string(k)
}

// Transaction is a committed value transfer. It is immutable once recorded;
// every read hands out a copy.
type Transaction struct {
	From         string    `json:"from"`
	To           string    `json:"to"`
	Amount       uint64    `json:"amount"`
	Kind         Kind      `json:"kind"`
	IsCrossChain bool      `json:"is_cross_chain"`
	Memo         []byte    `json:"memo,omitempty"`
	SubmittedBy  string    `json:"submitted_by,omitempty"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// clone returns a deep copy so callers never share the memo backing array.
func (t Transaction) clone() Transaction {
	if t.Memo != nil {
		memo := make([]byte, len(t.Memo))
		copy(memo, t.Memo)
		t.Memo = memo
	}
	return t
}

// Receipt is returned by a successful submission.
type Receipt struct {
	// Index is the position of the transaction in the sender's history.
	Index       int         `json:"index"`
	Transaction Transaction `json:"transaction"`
}

func cloneTransactions(in []Transaction) []Transaction {
	out := make([]Transaction, len(in))
	for i := range in {
		out[i] = in[i].clone()
	}
	return out
}
