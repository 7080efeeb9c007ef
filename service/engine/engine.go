package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/brojonat/dualtx/service/ledger"
	"github.com/brojonat/dualtx/service/metrics"
	natspkg "github.com/brojonat/dualtx/service/nats"
)

// PublisherInterface defines the NATS publishing operations the engine needs.
// This allows for easy mocking in tests.
type PublisherInterface interface {
	PublishTransaction(ctx context.Context, event *natspkg.TransactionEvent) error
	PublishBadge(ctx context.Context, event *natspkg.BadgeEvent) error
}

// Engine runs ledger operations and reports on them: it logs every outcome,
// records metrics, and publishes an event for every committed change.
// Following go-kit pattern, all dependencies are explicit.
type Engine struct {
	ledger    *ledger.TransactionLedger
	registry  *ledger.AccountRegistry
	publisher PublisherInterface
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates an Engine. publisher and m may be nil, which disables events
// and metrics respectively.
func New(l *ledger.TransactionLedger, publisher PublisherInterface, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		ledger:    l,
		registry:  l.Registry(),
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// SetPurityBadge grants or revokes target's purity badge on behalf of caller.
func (e *Engine) SetPurityBadge(ctx context.Context, caller, target string, status bool) error {
	logger := e.logger.With("caller", caller, "account", target, "status", status)

	err := e.registry.SetPurityBadge(ctx, caller, target, status)
	e.metrics.RecordBadgeChange(status, ledger.Reason(err))
	if err != nil {
		e.logFailure(logger, "purity badge change", err)
		return err
	}

	logger.Info("purity badge changed")

	if e.publisher != nil {
		if err := e.publisher.PublishBadge(ctx, natspkg.NewBadgeEvent(target, status, caller)); err != nil {
			// The change is committed; a lost event is not a failed operation.
			logger.Error("failed to publish badge event", "error", err)
		}
	}
	return nil
}

// Provision credits amount to account on behalf of caller.
func (e *Engine) Provision(ctx context.Context, caller, account string, amount uint64) error {
	logger := e.logger.With("caller", caller, "account", account, "amount", amount)

	err := e.registry.Provision(ctx, caller, account, amount)
	e.metrics.RecordProvision(ledger.Reason(err))
	if err != nil {
		e.logFailure(logger, "provision", err)
		return err
	}

	logger.Info("account provisioned", "balance", e.registry.Balance(account))
	return nil
}

// SubmitTransaction submits p to the ledger. On commit it publishes a
// transaction event; publish failures are logged and do not fail the call.
func (e *Engine) SubmitTransaction(ctx context.Context, p ledger.SubmitTransactionParams) (*ledger.Receipt, error) {
	kind := p.Kind
	if kind == "" {
		kind = ledger.DefaultKind
	}
	logger := e.logger.With(
		"caller", p.Caller,
		"from", p.From,
		"to", p.To,
		"amount", p.Amount,
		"kind", kind,
		"cross_chain", p.IsCrossChain,
	)

	var duration float64
	stop := metrics.Timer(time.Now(), func(d float64) { duration = d })
	receipt, err := e.ledger.SubmitTransaction(ctx, p)
	stop()

	if err != nil {
		e.metrics.RecordSubmission(kind.String(), ledger.Reason(err), duration)
		e.logFailure(logger, "transaction", err)
		return nil, err
	}

	e.metrics.RecordSubmission(kind.String(), "committed", duration)
	e.metrics.RecordCommittedAmount(kind.String(), p.IsCrossChain, p.Amount)
	logger.Info("transaction committed",
		"index", receipt.Index,
		"balance", e.registry.Balance(p.From),
		"duration_ms", duration*1000,
	)

	if e.publisher != nil {
		if err := e.publisher.PublishTransaction(ctx, natspkg.FromReceipt(receipt)); err != nil {
			logger.Error("failed to publish transaction event", "index", receipt.Index, "error", err)
		}
	}
	return receipt, nil
}

// UserTransactions returns account's history in submission order.
func (e *Engine) UserTransactions(account string) []ledger.Transaction {
	return e.ledger.UserTransactions(account)
}

// PurityBadge reports whether account holds a purity badge.
func (e *Engine) PurityBadge(account string) bool {
	return e.ledger.PurityBadge(account)
}

// Balance returns account's balance.
func (e *Engine) Balance(account string) uint64 {
	return e.ledger.Balance(account)
}

// Account returns a copy of account's state and whether it exists.
func (e *Engine) Account(account string) (ledger.Account, bool) {
	return e.registry.Account(account)
}

// logFailure logs ledger rejections at warn and everything else at error.
func (e *Engine) logFailure(logger *slog.Logger, op string, err error) {
	if ledger.IsRejection(err) {
		logger.Warn(op+" rejected", "reason", ledger.Reason(err), "error", err)
		return
	}
	logger.Error(op+" failed", "error", err)
}
