// Package ledger is a single-node host for transaction handlers. It accepts
// signed batches, applies them one at a time in arrival order and keeps the
// resulting state and batch statuses in the store.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	werrors "github.com/mezonai/simplewallet/errors"
	"github.com/mezonai/simplewallet/exception"
	"github.com/mezonai/simplewallet/logx"
	"github.com/mezonai/simplewallet/monitoring"
	"github.com/mezonai/simplewallet/processor"
	"github.com/mezonai/simplewallet/store"
	"github.com/mezonai/simplewallet/transaction"
)

var (
	ErrQueueFull         = errors.New("ledger queue is full")
	ErrHandlerRegistered = errors.New("a handler is already registered for this family version")
)

const DefaultQueueSize = 1024

type Ledger struct {
	mu       sync.RWMutex
	handlers []processor.TransactionHandler

	// submitMu serializes the duplicate check with the PENDING write
	submitMu sync.Mutex
	// applyMu keeps ApplyBatch run-to-completion even when called outside Run
	applyMu  sync.Mutex
	state    *store.StateStore
	statuses *store.BatchStatusStore
	queue    chan *transaction.Batch
}

func NewLedger(state *store.StateStore, statuses *store.BatchStatusStore, queueSize int) *Ledger {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Ledger{
		state:    state,
		statuses: statuses,
		queue:    make(chan *transaction.Batch, queueSize),
	}
}

// Register adds a handler; one handler per family name and version
func (l *Ledger) Register(h processor.TransactionHandler) error {
	if h.FamilyName == "" || len(h.FamilyVersions) == 0 || h.Apply == nil {
		return fmt.Errorf("handler needs a family name, at least one version and an apply function")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.handlers {
		for _, v := range h.FamilyVersions {
			if existing.Supports(h.FamilyName, v) {
				return fmt.Errorf("%s %s: %w", h.FamilyName, v, ErrHandlerRegistered)
			}
		}
	}
	l.handlers = append(l.handlers, h)
	logx.Info("LEDGER", fmt.Sprintf("Registered handler %s %v namespaces=%v", h.FamilyName, h.FamilyVersions, h.Namespaces))
	return nil
}

func (l *Ledger) handlerFor(name, version string) (processor.TransactionHandler, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, h := range l.handlers {
		if h.Supports(name, version) {
			return h, true
		}
	}
	return processor.TransactionHandler{}, false
}

// Submit parses and verifies a serialized BatchList, marks every new batch
// PENDING and queues it. Either every new batch is queued or none is.
// Batches already pending or committed are acknowledged without being
// queued again, so a client may resend the same bytes safely.
func (l *Ledger) Submit(raw []byte) ([]string, error) {
	list, err := transaction.ParseBatchList(raw)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodeMalformedRequest, "batch list could not be decoded", err)
	}
	if len(list.Batches) == 0 {
		return nil, werrors.NewError(werrors.ErrCodeMalformedRequest, "batch list is empty")
	}
	for _, b := range list.Batches {
		if _, _, err := transaction.VerifyBatch(b); err != nil {
			monitoring.RecordRejectedTx(monitoring.TxInvalidSignature)
			return nil, werrors.Wrap(werrors.ErrCodeMalformedRequest, "batch failed verification", err)
		}
	}

	l.submitMu.Lock()
	defer l.submitMu.Unlock()

	ids := list.IDs()
	fresh := make([]*transaction.Batch, 0, len(list.Batches))
	seen := make(map[string]struct{}, len(list.Batches))
	for _, b := range list.Batches {
		id := b.ID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		known, err := l.statuses.Get(id)
		if err != nil {
			return nil, werrors.Wrap(werrors.ErrCodeInternal, "could not read batch status", err)
		}
		if known.Status == store.BatchPending || known.Status == store.BatchCommitted {
			logx.Info("LEDGER", fmt.Sprintf("Batch %s resubmitted while %s, not queued again", id, known.Status))
			continue
		}
		fresh = append(fresh, b)
	}
	if len(fresh) == 0 {
		return ids, nil
	}
	if cap(l.queue)-len(l.queue) < len(fresh) {
		return nil, ErrQueueFull
	}

	pending := make([]*store.BatchStatus, 0, len(fresh))
	for _, b := range fresh {
		pending = append(pending, &store.BatchStatus{ID: b.ID(), Status: store.BatchPending})
	}
	if err := l.statuses.StoreBatch(pending); err != nil {
		return nil, werrors.Wrap(werrors.ErrCodeInternal, "could not record batch status", err)
	}

	for _, b := range fresh {
		select {
		case l.queue <- b:
		default:
			l.markInvalid(b.ID(), b.Transactions[0].ID(), ErrQueueFull.Error())
		}
	}
	monitoring.IncreaseSubmittedBatches(len(fresh))
	monitoring.SetPendingBatches(len(l.queue))
	logx.Info("LEDGER", fmt.Sprintf("Accepted %d batch(es): %v", len(fresh), ids))
	return ids, nil
}

// Run applies queued batches until ctx is done
func (l *Ledger) Run(ctx context.Context) {
	logx.Info("LEDGER", "Apply loop started")
	for {
		select {
		case <-ctx.Done():
			logx.Info("LEDGER", "Apply loop stopped")
			return
		case b := <-l.queue:
			monitoring.SetPendingBatches(len(l.queue))
			l.ApplyBatch(b)
		}
	}
}

// Start runs the apply loop in a recovered goroutine
func (l *Ledger) Start(ctx context.Context) {
	exception.SafeGoWithPanic("ledger-apply-loop", func() {
		l.Run(ctx)
	})
}

// ApplyBatch runs every transaction of b through its handler. The batch
// commits all of its writes at once, or none if any transaction fails.
func (l *Ledger) ApplyBatch(b *transaction.Batch) *store.BatchStatus {
	l.applyMu.Lock()
	defer l.applyMu.Unlock()

	start := time.Now()
	defer func() {
		monitoring.RecordBatchApply(time.Since(start))
	}()

	batchID := b.ID()
	if known, err := l.statuses.Get(batchID); err == nil && known.Status == store.BatchCommitted {
		logx.Warn("LEDGER", fmt.Sprintf("Batch %s is already committed, skipping", batchID))
		return known
	}

	view := newBatchView(l.state)
	families := make([]string, 0, len(b.Transactions))
	txIDs := make([]string, 0, len(b.Transactions))
	inBatch := make(map[string]struct{}, len(b.Transactions))

	for _, tx := range b.Transactions {
		header, err := transaction.VerifyTransaction(tx)
		if err != nil {
			monitoring.RecordRejectedTx(monitoring.TxInvalidSignature)
			return l.markInvalid(batchID, tx.ID(), err.Error())
		}
		if msg := l.replayed(tx.ID(), inBatch); msg != "" {
			monitoring.RecordRejectedTx(monitoring.TxDuplicate)
			return l.markInvalid(batchID, tx.ID(), msg)
		}
		inBatch[tx.ID()] = struct{}{}
		handler, ok := l.handlerFor(header.FamilyName, header.FamilyVersion)
		if !ok {
			monitoring.RecordRejectedTx(monitoring.TxUnknownFamily)
			return l.markInvalid(batchID, tx.ID(),
				fmt.Sprintf("no handler for family %s %s", header.FamilyName, header.FamilyVersion))
		}

		txCtx := newTxContext(view, header.Inputs, header.Outputs)
		if err := l.runHandler(handler, tx, header, txCtx); err != nil {
			monitoring.RecordRejectedTx(rejectReason(err))
			if !werrors.IsRejection(err) {
				logx.Error("LEDGER", fmt.Sprintf("Transaction %s failed: %v", tx.ID(), err))
			}
			return l.markInvalid(batchID, tx.ID(), werrors.ReasonOf(err))
		}
		view.merge(txCtx.writes)
		families = append(families, header.FamilyName)
		txIDs = append(txIDs, tx.ID())
	}

	if len(txIDs) > 0 {
		if _, err := l.state.Commit(view.overlay, txIDs); err != nil {
			logx.Error("LEDGER", fmt.Sprintf("Batch %s could not be committed: %v", batchID, err))
			monitoring.RecordRejectedTx(monitoring.TxInternal)
			return l.markInvalid(batchID, b.Transactions[len(b.Transactions)-1].ID(), werrors.ErrMsgStateNotPersisted)
		}
	}
	for _, family := range families {
		monitoring.RecordAppliedTx(family)
	}

	status := &store.BatchStatus{ID: batchID, Status: store.BatchCommitted}
	if err := l.statuses.Store(status); err != nil {
		logx.Error("LEDGER", "Failed to store status of batch", batchID, err)
	}
	logx.Info("LEDGER", fmt.Sprintf("Batch %s committed (%d tx, %d address(es) written)",
		batchID, len(b.Transactions), len(view.overlay)))
	return status
}

// replayed returns a rejection message when txID was committed before or
// appears twice in the batch
func (l *Ledger) replayed(txID string, inBatch map[string]struct{}) string {
	if _, dup := inBatch[txID]; dup {
		return fmt.Sprintf("transaction %s appears more than once in the batch", txID)
	}
	committed, err := l.state.TxCommitted(txID)
	if err != nil {
		logx.Error("LEDGER", fmt.Sprintf("Could not check transaction %s: %v", txID, err))
		return "could not check whether the transaction was already committed"
	}
	if committed {
		return fmt.Sprintf("transaction %s was already committed", txID)
	}
	return ""
}

// runHandler turns a handler panic into an internal error
func (l *Ledger) runHandler(h processor.TransactionHandler, tx *transaction.Transaction, header *transaction.TransactionHeader, state processor.StateAccessor) (err error) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.IncreasePanicCount()
			err = werrors.NewError(werrors.ErrCodeInternal, fmt.Sprintf("handler panicked: %v", r))
		}
	}()
	return h.Apply(&processor.Request{
		Header:    header,
		Payload:   tx.Payload,
		Signature: tx.HeaderSignature,
	}, state)
}

func rejectReason(err error) monitoring.TxRejectedReason {
	if errors.Is(err, ErrUnauthorizedAddress) {
		return monitoring.TxUnauthorizedAccess
	}
	switch werrors.CodeOf(err) {
	case werrors.ErrCodeMalformedRequest:
		return monitoring.TxMalformedRequest
	case werrors.ErrCodeInsufficientFunds:
		return monitoring.TxInsufficientFunds
	case werrors.ErrCodeInternal:
		return monitoring.TxInternal
	}
	return monitoring.TxRejectedUnknown
}

func (l *Ledger) markInvalid(batchID, txID, message string) *store.BatchStatus {
	status := &store.BatchStatus{ID: batchID, Status: store.BatchInvalid}
	if txID != "" {
		status.InvalidTransactions = []store.InvalidTransaction{{ID: txID, Message: message}}
	}
	if err := l.statuses.Store(status); err != nil {
		logx.Error("LEDGER", "Failed to store status of batch", batchID, err)
	}
	logx.Warn("LEDGER", fmt.Sprintf("Batch %s invalid: %s", batchID, message))
	return status
}

// State returns the committed value at addr, nil when absent
func (l *Ledger) State(addr string) ([]byte, error) {
	return l.state.Get(addr)
}

// ListState walks committed entries under prefix
func (l *Ledger) ListState(prefix string, fn func(addr string, data []byte) bool) error {
	return l.state.List(prefix, fn)
}

func (l *Ledger) BatchStatus(id string) (*store.BatchStatus, error) {
	return l.statuses.Get(id)
}

func (l *Ledger) BatchStatuses(ids []string) ([]*store.BatchStatus, error) {
	return l.statuses.GetMany(ids)
}

// Pending is the number of queued batches not yet applied
func (l *Ledger) Pending() int {
	return len(l.queue)
}
