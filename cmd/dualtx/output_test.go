package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/brojonat/dualtx/service/ledger"
	natspkg "github.com/brojonat/dualtx/service/nats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJQFilterMatching(t *testing.T) {
	tests := []struct {
		name        string
		memo        string
		jqFilter    string
		expectMatch bool
	}{
		{
			name:        "memo field match",
			memo:        `{"order_id": "12345"}`,
			jqFilter:    `.memo.order_id == "12345"`,
			expectMatch: true,
		},
		{
			name:        "memo field mismatch",
			memo:        `{"order_id": "67890"}`,
			jqFilter:    `.memo.order_id == "12345"`,
			expectMatch: false,
		},
		{
			name:        "contains on memo",
			memo:        `{"workflow_id": "test-123", "extra": true}`,
			jqFilter:    `.memo | contains({workflow_id: "test-123"})`,
			expectMatch: true,
		},
		{
			name:        "non-JSON memo is a string",
			memo:        `invoice 7`,
			jqFilter:    `.memo == "invoice 7"`,
			expectMatch: true,
		},
		{
			name:        "transaction fields",
			memo:        ``,
			jqFilter:    `.amount > 50 and .kind == "external"`,
			expectMatch: true,
		},
		{
			name:        "null result is falsy",
			memo:        ``,
			jqFilter:    `.memo`,
			expectMatch: false,
		},
		{
			name:        "runtime error does not match",
			memo:        `{"a": 1}`,
			jqFilter:    `.memo.a | keys`,
			expectMatch: false,
		},
		{
			name:        "empty result does not match",
			memo:        ``,
			jqFilter:    `empty`,
			expectMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filters, err := compileFilters([]string{tt.jqFilter})
			require.NoError(t, err)

			txn := ledger.Transaction{From: alice, To: bob, Amount: 100, Kind: ledger.KindExternal}
			if tt.memo != "" {
				txn.Memo = []byte(tt.memo)
			}
			assert.Equal(t, tt.expectMatch, matchesFilters(txn, filters))
		})
	}
}

func TestCompileFilters_Invalid(t *testing.T) {
	_, err := compileFilters([]string{`.amount >`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse jq filter")

	_, err = compileFilters([]string{`undefined_fn(1)`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile jq filter")
}

func TestIsTruthy(t *testing.T) {
	assert.False(t, isTruthy(nil))
	assert.False(t, isTruthy(false))
	assert.True(t, isTruthy(true))
	assert.True(t, isTruthy(0))
	assert.True(t, isTruthy(""))
	assert.True(t, isTruthy([]interface{}{}))
}

func TestSelectTransactions(t *testing.T) {
	history := []ledger.Transaction{
		{From: alice, To: bob, Amount: 10, Kind: ledger.KindInternal},
		{From: alice, To: bob, Amount: 20, Kind: ledger.KindExternal},
		{From: alice, To: bob, Amount: 30, Kind: ledger.KindInternal},
		{From: alice, To: bob, Amount: 40, Kind: ledger.KindExternal},
	}

	all := selectTransactions(history, nil, 0)
	require.Len(t, all, 4)
	assert.Equal(t, 3, all[3].Index)

	filters, err := compileFilters([]string{`.kind == "external"`})
	require.NoError(t, err)
	external := selectTransactions(history, filters, 0)
	require.Len(t, external, 2)
	// Indexes refer to the full history.
	assert.Equal(t, 1, external[0].Index)
	assert.Equal(t, 3, external[1].Index)

	latest := selectTransactions(history, nil, 1)
	require.Len(t, latest, 1)
	assert.Equal(t, uint64(40), latest[0].Transaction.Amount)

	assert.Empty(t, selectTransactions(nil, filters, 0))
}

func TestFormatMemo(t *testing.T) {
	assert.Equal(t, "(none)", formatMemo(nil))
	assert.Equal(t, "(none)", formatMemo([]byte{}))
	assert.Equal(t, `{"order":7}`, formatMemo([]byte(`{"order":7}`)))
	assert.Equal(t, "0x00ff10", formatMemo([]byte{0x00, 0xff, 0x10}))
	assert.Equal(t, "0x6c696e650a", formatMemo([]byte("line\n")))
}

func TestPrintTransactionTable(t *testing.T) {
	out := &bytes.Buffer{}
	printTransactionTable(out, []indexedTransaction{{
		Index: 2,
		Transaction: ledger.Transaction{
			From: alice, To: bob, Amount: 15, Kind: ledger.KindInternal,
			RecordedAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		},
	}})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "INDEX"))
	assert.Contains(t, lines[1], bob)
	assert.Contains(t, lines[1], "2026-05-01T00:00:00Z")
}

func TestPrintEvent(t *testing.T) {
	txnEvent := natspkg.FromReceipt(&ledger.Receipt{
		Index: 4,
		Transaction: ledger.Transaction{
			From: alice, To: bob, Amount: 9, Kind: ledger.KindExternal, IsCrossChain: true,
		},
	})
	data, err := json.Marshal(txnEvent)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	require.NoError(t, printEvent(out, natspkg.TransactionSubject(alice), data, 1, false))
	assert.Contains(t, out.String(), "Transaction #1")
	assert.Contains(t, out.String(), "(index 4)")
	assert.Contains(t, out.String(), "Cross-chain:  true")

	badge, err := json.Marshal(natspkg.NewBadgeEvent(alice, false, testOwner))
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, printEvent(out, natspkg.BadgeSubject(alice), badge, 2, true))
	var decoded natspkg.BadgeEvent
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, alice, decoded.Account)
	assert.False(t, decoded.Status)

	require.Error(t, printEvent(out, natspkg.TransactionSubject(alice), []byte("{"), 3, false))
}
