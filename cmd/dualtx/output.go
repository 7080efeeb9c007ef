package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/brojonat/dualtx/service/ledger"
	"github.com/itchyny/gojq"
)

// Helper function to output JSON
func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// compileFilters parses and compiles --must-jq expressions.
func compileFilters(filters []string) ([]*gojq.Code, error) {
	compiled := make([]*gojq.Code, len(filters))
	for i, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		compiled[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return compiled, nil
}

// jqInput renders txn as a generic JSON value for jq. A memo that holds JSON
// is embedded as a value; any other memo becomes a string.
func jqInput(txn ledger.Transaction) (interface{}, error) {
	data, err := json.Marshal(txn)
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	if len(txn.Memo) > 0 {
		var memo interface{}
		if json.Unmarshal(txn.Memo, &memo) == nil {
			doc["memo"] = memo
		} else {
			doc["memo"] = string(txn.Memo)
		}
	}
	return doc, nil
}

// matchesFilters reports whether every filter yields a truthy first result.
func matchesFilters(txn ledger.Transaction, filters []*gojq.Code) bool {
	if len(filters) == 0 {
		return true
	}

	input, err := jqInput(txn)
	if err != nil {
		return false
	}

	for _, code := range filters {
		iter := code.Run(input)
		v, ok := iter.Next()
		if !ok {
			// No result means filter failed
			return false
		}
		if _, isErr := v.(error); isErr {
			return false
		}
		if !isTruthy(v) {
			return false
		}
	}
	return true
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	// Everything else (numbers, strings, objects, arrays) is truthy
	return true
}

// formatMemo renders printable memos as text and anything else as hex.
func formatMemo(memo []byte) string {
	if len(memo) == 0 {
		return "(none)"
	}
	if utf8.Valid(memo) {
		printable := true
		for _, r := range string(memo) {
			if !unicode.IsPrint(r) {
				printable = false
				break
			}
		}
		if printable {
			return string(memo)
		}
	}
	return "0x" + hex.EncodeToString(memo)
}

func printAccount(w io.Writer, acct ledger.Account, exists bool) {
	fmt.Fprintf(w, "Account:       %s\n", acct.ID)
	fmt.Fprintf(w, "Exists:        %t\n", exists)
	fmt.Fprintf(w, "Purity Badge:  %t\n", acct.HasPurityBadge)
	fmt.Fprintf(w, "Balance:       %d\n", acct.Balance)
	fmt.Fprintf(w, "Transactions:  %d\n", len(acct.Transactions))
}

func printReceipt(w io.Writer, receipt *ledger.Receipt, balance uint64) {
	txn := receipt.Transaction
	fmt.Fprintf(w, "✅ Transaction committed\n")
	fmt.Fprintf(w, "   Index:       %d\n", receipt.Index)
	fmt.Fprintf(w, "   From:        %s\n", txn.From)
	fmt.Fprintf(w, "   To:          %s\n", txn.To)
	fmt.Fprintf(w, "   Amount:      %d\n", txn.Amount)
	fmt.Fprintf(w, "   Kind:        %s\n", txn.Kind)
	fmt.Fprintf(w, "   Cross-chain: %t\n", txn.IsCrossChain)
	fmt.Fprintf(w, "   Memo:        %s\n", formatMemo(txn.Memo))
	fmt.Fprintf(w, "   Balance:     %d\n", balance)
}

func printTransactionTable(w io.Writer, txns []indexedTransaction) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tTO\tAMOUNT\tKIND\tCROSS-CHAIN\tMEMO\tRECORDED")
	for _, it := range txns {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%t\t%s\t%s\n",
			it.Index,
			it.Transaction.To,
			it.Transaction.Amount,
			it.Transaction.Kind,
			it.Transaction.IsCrossChain,
			formatMemo(it.Transaction.Memo),
			it.Transaction.RecordedAt.Format(time.RFC3339),
		)
	}
	tw.Flush()
}

// indexedTransaction pairs a transaction with its history position so
// filtered listings keep the original index.
type indexedTransaction struct {
	Index       int                `json:"index"`
	Transaction ledger.Transaction `json:"transaction"`
}
