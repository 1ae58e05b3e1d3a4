package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/recepoksuz/nft-transferd/internal/alert"
	"github.com/recepoksuz/nft-transferd/internal/chain"
	"github.com/recepoksuz/nft-transferd/internal/domain/event"
	"github.com/recepoksuz/nft-transferd/internal/domain/model"
	"github.com/recepoksuz/nft-transferd/internal/journal"
	"github.com/recepoksuz/nft-transferd/internal/metrics"
	"github.com/recepoksuz/nft-transferd/internal/retry"
	"github.com/recepoksuz/nft-transferd/internal/signer"
	"github.com/recepoksuz/nft-transferd/internal/stream"
	"github.com/recepoksuz/nft-transferd/internal/tracing"
)

var (
	// ErrBatchActive is returned when a new batch is started while one is
	// still running. Reset first.
	ErrBatchActive = errors.New("a batch is already in progress")

	// ErrEmptyQueue is returned when a batch is started with no units.
	ErrEmptyQueue = errors.New("transfer queue is empty")

	// ErrDuplicateHandle surfaces through the snapshot when the bridge
	// answers a submission with a transaction hash that is already being
	// watched. The position parks until the operator retries or skips.
	ErrDuplicateHandle = errors.New("duplicate submission handle")
)

const (
	defaultSettleDelay    = 50 * time.Millisecond
	defaultStallThreshold = 5 * time.Minute
)

// Orchestrator drives one batch of unit transfers through the wallet signer,
// strictly one position at a time. Submission is sequential; confirmation is
// concurrent and out of order. All state lives behind one mutex; the only
// long-running work (signing, finality watching) happens in goroutines that
// re-enter through epoch-checked handlers.
type Orchestrator struct {
	signer    signer.Signer
	waiter    chain.FinalityWaiter
	journal   journal.Journal
	publisher stream.Publisher
	alerter   alert.Alerter
	network   model.Network
	logger    *slog.Logger
	tracer    trace.Tracer

	settleDelay time.Duration

	mu sync.Mutex

	sessionID uuid.UUID
	// epoch increments on every reset. Goroutines capture it at dispatch and
	// their results are dropped if it moved on.
	epoch uint64

	params  model.SessionParams
	queue   []model.WorkItem
	records []*model.TransferRecord
	// recordByHash resolves confirmation callbacks; skipped records have no
	// hash and never appear here.
	recordByHash  map[string]*model.TransferRecord
	watchedHashes map[string]struct{}

	currentIndex int
	// dispatchedIndex is the last queue position handed to the signer.
	// Re-entrant triggers for the same position are no-ops. -1 means none.
	dispatchedIndex int
	inFlight        bool
	active          bool

	signerErr    error
	failedUnitID string

	// Stall watchdog bookkeeping. lastProgress moves on every state
	// transition; Run alerts when an active batch sits still past the
	// threshold.
	stallThreshold time.Duration
	lastProgress   time.Time
	stalled        bool

	runCtx     context.Context
	sessionCtx context.Context
	cancelSess context.CancelFunc
}

type Option func(*Orchestrator)

// WithSettleDelay overrides the pause between a submission handle arriving
// and the next signing request. The delay lets the wallet bridge settle its
// per-request state before it is asked to sign again.
func WithSettleDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.settleDelay = d }
}

func WithJournal(j journal.Journal) Option {
	return func(o *Orchestrator) { o.journal = j }
}

func WithPublisher(p stream.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

func WithAlerter(a alert.Alerter) Option {
	return func(o *Orchestrator) { o.alerter = a }
}

// WithStallThreshold sets how long an active batch may go without a state
// transition before a stall alert fires. Zero disables the watchdog.
func WithStallThreshold(d time.Duration) Option {
	return func(o *Orchestrator) { o.stallThreshold = d }
}

func New(sg signer.Signer, waiter chain.FinalityWaiter, network model.Network, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		signer:          sg,
		waiter:          waiter,
		journal:         journal.Noop{},
		publisher:       stream.NewInMemoryPublisher(),
		alerter:         &alert.NoopAlerter{},
		network:         network,
		logger:          logger.With("component", "orchestrator"),
		tracer:          tracing.Tracer("orchestrator"),
		settleDelay:     defaultSettleDelay,
		stallThreshold:  defaultStallThreshold,
		dispatchedIndex: -1,
		recordByHash:    make(map[string]*model.TransferRecord),
		watchedHashes:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run blocks until ctx is cancelled. Goroutines spawned for signing and
// finality watching derive from this context. While running, a watchdog
// alerts on batches that make no progress past the stall threshold.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	o.runCtx = ctx
	o.mu.Unlock()

	if o.stallThreshold > 0 {
		interval := o.stallThreshold / 4
		if interval < 10*time.Millisecond {
			interval = 10 * time.Millisecond
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				o.shutdownSession()
				return ctx.Err()
			case <-ticker.C:
				o.checkStall()
			}
		}
	}

	<-ctx.Done()
	o.shutdownSession()
	return ctx.Err()
}

func (o *Orchestrator) shutdownSession() {
	o.mu.Lock()
	if o.cancelSess != nil {
		o.cancelSess()
	}
	o.mu.Unlock()
}

// checkStall fires a one-shot stall alert for an active batch that has not
// transitioned within the threshold. touchProgressLocked clears it.
func (o *Orchestrator) checkStall() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.active || o.stalled || o.lastProgress.IsZero() {
		return
	}
	idle := time.Since(o.lastProgress)
	if idle < o.stallThreshold {
		return
	}
	o.stalled = true
	o.logger.Warn("batch stalled",
		"session_id", o.sessionID,
		"idle", idle.Round(time.Second),
		"position", o.currentIndex,
	)
	o.alertLocked(alert.AlertTypeBatchStalled, "batch transfer stalled",
		fmt.Sprintf("no progress for %s at position %d", idle.Round(time.Second), o.currentIndex),
		map[string]string{"position": fmt.Sprintf("%d", o.currentIndex)})
}

// touchProgressLocked records a state transition and resolves an outstanding
// stall alert. Callers hold the mutex.
func (o *Orchestrator) touchProgressLocked() {
	o.lastProgress = time.Now()
	if o.stalled {
		o.stalled = false
		o.logger.Info("batch resumed", "session_id", o.sessionID, "position", o.currentIndex)
		o.alertLocked(alert.AlertTypeRecovery, "batch transfer resumed",
			fmt.Sprintf("progress resumed at position %d", o.currentIndex), nil)
	}
}

// baseCtx is the parent for session contexts. Falls back to Background when
// Run has not been called.
func (o *Orchestrator) baseCtx() context.Context {
	if o.runCtx != nil {
		return o.runCtx
	}
	return context.Background()
}

// StartTransfer begins a new batch session for the given units. It returns
// immediately after dispatching the first signing request; progress is
// observed through Snapshot and the event stream.
func (o *Orchestrator) StartTransfer(ctx context.Context, unitIDs []string, params model.SessionParams) (uuid.UUID, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.start_transfer",
		trace.WithAttributes(attribute.Int("batch.units", len(unitIDs))))
	defer span.End()

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.active {
		return uuid.Nil, ErrBatchActive
	}
	if len(unitIDs) == 0 {
		return uuid.Nil, ErrEmptyQueue
	}

	o.resetStateLocked()
	o.epoch++
	o.sessionID = uuid.New()
	o.params = params
	o.queue = make([]model.WorkItem, len(unitIDs))
	for i, id := range unitIDs {
		o.queue[i] = model.WorkItem{UnitID: id, Position: i}
	}
	o.active = true
	o.sessionCtx, o.cancelSess = context.WithCancel(o.baseCtx())
	o.touchProgressLocked()

	metrics.DriverBatchesStarted.WithLabelValues(o.network.String()).Inc()
	metrics.DriverQueueRemaining.WithLabelValues(o.network.String()).Set(float64(len(o.queue)))

	o.logger.Info("batch started",
		"session_id", o.sessionID,
		"total_count", len(o.queue),
		"contract", params.ContractAddress,
		"recipient", params.Recipient,
	)

	if err := o.journal.BeginSession(ctx, o.sessionID, o.network, params, len(o.queue)); err != nil {
		o.logger.Warn("journal begin session failed", "error", err)
	}
	o.publishLocked(event.RecordEvent{
		SessionID: o.sessionID,
		Type:      event.EventBatchStarted,
		Network:   o.network,
		At:        time.Now().UTC(),
	})

	span.SetAttributes(attribute.String("batch.session_id", o.sessionID.String()))
	o.submitNextLocked()
	return o.sessionID, nil
}

// submitNextLocked dispatches the signing request for the current position.
// Callers hold the mutex. The dispatch guard makes re-entrant triggers
// (settle timers, skip/retry races) no-ops.
func (o *Orchestrator) submitNextLocked() {
	if !o.active || o.signerErr != nil {
		return
	}
	if o.currentIndex >= len(o.queue) {
		return
	}
	if o.inFlight || o.dispatchedIndex == o.currentIndex {
		metrics.DriverDuplicateSubmitsSuppressed.WithLabelValues(o.network.String()).Inc()
		return
	}

	item := o.queue[o.currentIndex]
	o.dispatchedIndex = o.currentIndex
	o.inFlight = true

	epoch := o.epoch
	idx := o.currentIndex
	ctx := o.sessionCtx

	metrics.DriverSubmissionsTotal.WithLabelValues(o.network.String()).Inc()
	o.logger.Info("dispatching signing request",
		"session_id", o.sessionID,
		"unit_id", item.UnitID,
		"position", idx,
	)

	go func() {
		start := time.Now()
		txHash, err := o.signer.Submit(ctx, signer.SubmitRequest{
			ContractAddress: o.params.ContractAddress,
			Recipient:       o.params.Recipient,
			Sender:          o.params.Sender,
			UnitID:          item.UnitID,
		})
		metrics.DriverSignLatency.WithLabelValues(o.network.String()).Observe(time.Since(start).Seconds())

		if err != nil {
			o.handleSignerError(epoch, idx, item, err)
			return
		}
		o.handleSubmitted(epoch, idx, item, txHash)
	}()
}

// handleSubmitted records the submission handle, advances the cursor, and
// starts the finality watch. Runs on the signing goroutine.
func (o *Orchestrator) handleSubmitted(epoch uint64, idx int, item model.WorkItem, txHash string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if epoch != o.epoch {
		o.logger.Debug("stale submission result dropped", "unit_id", item.UnitID, "tx_hash", txHash)
		return
	}

	o.inFlight = false

	if _, seen := o.watchedHashes[txHash]; seen {
		// The bridge handed back a handle we already track. Advancing would
		// double-count it, so the position parks like a signer failure and
		// retry or skip decides what happens next.
		o.signerErr = fmt.Errorf("%w: %s", ErrDuplicateHandle, txHash)
		o.failedUnitID = item.UnitID
		o.touchProgressLocked()

		metrics.DriverDuplicateSubmitsSuppressed.WithLabelValues(o.network.String()).Inc()
		o.logger.Warn("duplicate submission handle",
			"session_id", o.sessionID,
			"unit_id", item.UnitID,
			"position", idx,
			"tx_hash", txHash,
		)

		o.publishLocked(event.RecordEvent{
			SessionID: o.sessionID,
			Type:      event.EventUnitFailed,
			Network:   o.network,
			UnitID:    item.UnitID,
			Position:  idx,
			TxHash:    txHash,
			Reason:    o.signerErr.Error(),
			At:        time.Now().UTC(),
		})
		o.alertLocked(alert.AlertTypeUnitFailed, "duplicate submission handle", o.signerErr.Error(), map[string]string{
			"unit_id": item.UnitID,
			"tx_hash": txHash,
		})
		return
	}

	rec := &model.TransferRecord{
		UnitID:   item.UnitID,
		Position: idx,
		TxHash:   txHash,
		Status:   model.StatusPending,
	}
	o.records = append(o.records, rec)
	o.recordByHash[txHash] = rec
	o.watchedHashes[txHash] = struct{}{}
	o.currentIndex = idx + 1
	o.touchProgressLocked()

	metrics.DriverQueueRemaining.WithLabelValues(o.network.String()).Set(float64(len(o.queue) - o.currentIndex))
	metrics.WatcherWatchesStarted.WithLabelValues(o.network.String()).Inc()
	metrics.WatcherPendingConfirmations.WithLabelValues(o.network.String()).Set(float64(o.pendingConfirmationsLocked()))

	o.logger.Info("unit submitted",
		"session_id", o.sessionID,
		"unit_id", item.UnitID,
		"position", idx,
		"tx_hash", txHash,
	)

	if err := o.journal.AppendRecord(o.sessionCtx, o.sessionID, *rec); err != nil {
		o.logger.Warn("journal append record failed", "error", err)
	}
	o.publishLocked(event.RecordEvent{
		SessionID: o.sessionID,
		Type:      event.EventUnitSubmitted,
		Network:   o.network,
		UnitID:    item.UnitID,
		Position:  idx,
		TxHash:    txHash,
		Status:    model.StatusPending,
		At:        time.Now().UTC(),
	})

	o.startWatchLocked(epoch, txHash)
	o.scheduleSubmitLocked(epoch)
}

// startWatchLocked spawns the finality watch goroutine for one handle.
func (o *Orchestrator) startWatchLocked(epoch uint64, txHash string) {
	ctx := o.sessionCtx
	go func() {
		start := time.Now()
		err := o.waiter.WaitForFinality(ctx, txHash)
		metrics.WatcherConfirmLatency.WithLabelValues(o.network.String()).Observe(time.Since(start).Seconds())
		o.applyConfirmation(epoch, txHash, err)
	}()
}

// scheduleSubmitLocked arms the settle timer for the next position. The
// epoch check makes a timer that outlives a reset harmless.
func (o *Orchestrator) scheduleSubmitLocked(epoch uint64) {
	if o.currentIndex >= len(o.queue) {
		return
	}
	time.AfterFunc(o.settleDelay, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if epoch != o.epoch {
			return
		}
		o.submitNextLocked()
	})
}

// handleSignerError parks the batch at the failed position. The cursor does
// not advance; retry or skip decides what happens next. Runs on the signing
// goroutine.
func (o *Orchestrator) handleSignerError(epoch uint64, idx int, item model.WorkItem, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if epoch != o.epoch {
		o.logger.Debug("stale signer error dropped", "unit_id", item.UnitID, "error", err)
		return
	}

	o.inFlight = false
	o.signerErr = err
	o.failedUnitID = item.UnitID
	o.touchProgressLocked()

	class := retry.Classify(err)
	metrics.DriverSubmissionErrors.WithLabelValues(o.network.String(), string(class.Class)).Inc()

	eventType := event.EventUnitFailed
	alertType := alert.AlertTypeUnitFailed
	if errors.Is(err, signer.ErrRejected) || class.IsRejection() {
		eventType = event.EventSignerRejected
		alertType = alert.AlertTypeSignerRejected
	}

	o.logger.Error("signing failed",
		"session_id", o.sessionID,
		"unit_id", item.UnitID,
		"position", idx,
		"class", class.Class,
		"error", err,
	)

	o.publishLocked(event.RecordEvent{
		SessionID: o.sessionID,
		Type:      eventType,
		Network:   o.network,
		UnitID:    item.UnitID,
		Position:  idx,
		Reason:    err.Error(),
		At:        time.Now().UTC(),
	})
	o.alertLocked(alertType, "signing failed", err.Error(), map[string]string{
		"unit_id":  item.UnitID,
		"position": fmt.Sprintf("%d", idx),
	})
}

// Retry clears the outstanding signer error and re-dispatches the same
// position. A retry without an outstanding error is a silent no-op.
func (o *Orchestrator) Retry(ctx context.Context) error {
	_, span := o.tracer.Start(ctx, "orchestrator.retry")
	defer span.End()

	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.active || o.signerErr == nil {
		return nil
	}

	item := o.queue[o.currentIndex]
	o.signerErr = nil
	o.failedUnitID = ""
	o.dispatchedIndex = -1
	o.touchProgressLocked()

	metrics.DriverRetriesTotal.WithLabelValues(o.network.String()).Inc()
	o.logger.Info("retrying position",
		"session_id", o.sessionID,
		"unit_id", item.UnitID,
		"position", o.currentIndex,
	)

	o.resetSignerAsync()
	o.scheduleSubmitLocked(o.epoch)
	return nil
}

// Skip abandons the current position after a signer-level failure. The unit
// gets a terminal FAILED record with no hash and the cursor advances. A skip
// without an outstanding error is a silent no-op.
func (o *Orchestrator) Skip(ctx context.Context) error {
	ctx, span := o.tracer.Start(ctx, "orchestrator.skip")
	defer span.End()

	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.active || o.signerErr == nil {
		return nil
	}

	idx := o.currentIndex
	item := o.queue[idx]

	rec := &model.TransferRecord{
		UnitID:   item.UnitID,
		Position: idx,
		TxHash:   "",
		Status:   model.StatusFailed,
	}
	o.records = append(o.records, rec)
	o.currentIndex = idx + 1
	o.signerErr = nil
	o.failedUnitID = ""
	o.dispatchedIndex = -1
	o.touchProgressLocked()

	metrics.DriverSkipsTotal.WithLabelValues(o.network.String()).Inc()
	metrics.DriverQueueRemaining.WithLabelValues(o.network.String()).Set(float64(len(o.queue) - o.currentIndex))

	o.logger.Info("position skipped",
		"session_id", o.sessionID,
		"unit_id", item.UnitID,
		"position", idx,
	)

	if err := o.journal.AppendRecord(ctx, o.sessionID, *rec); err != nil {
		o.logger.Warn("journal append record failed", "error", err)
	}
	o.publishLocked(event.RecordEvent{
		SessionID: o.sessionID,
		Type:      event.EventUnitSkipped,
		Network:   o.network,
		UnitID:    item.UnitID,
		Position:  idx,
		Status:    model.StatusFailed,
		At:        time.Now().UTC(),
	})

	o.resetSignerAsync()

	if o.batchDoneLocked() {
		o.completeLocked()
		return nil
	}
	o.scheduleSubmitLocked(o.epoch)
	return nil
}

// Reset abandons the session. In-flight signing results and confirmation
// callbacks from before the reset are dropped by the epoch guard, and
// running finality watches are cancelled.
func (o *Orchestrator) Reset(ctx context.Context) error {
	ctx, span := o.tracer.Start(ctx, "orchestrator.reset")
	defer span.End()

	o.mu.Lock()
	defer o.mu.Unlock()

	hadSession := o.sessionID != uuid.Nil
	sessionID := o.sessionID

	o.epoch++
	if o.cancelSess != nil {
		o.cancelSess()
		o.cancelSess = nil
	}
	o.resetStateLocked()

	metrics.DriverResetsTotal.WithLabelValues(o.network.String()).Inc()
	metrics.DriverQueueRemaining.WithLabelValues(o.network.String()).Set(0)
	metrics.WatcherPendingConfirmations.WithLabelValues(o.network.String()).Set(0)

	if hadSession {
		o.logger.Info("batch reset", "session_id", sessionID)
		if err := o.journal.EndSession(ctx, sessionID, "reset"); err != nil {
			o.logger.Warn("journal end session failed", "error", err)
		}
		o.publish(event.RecordEvent{
			SessionID: sessionID,
			Type:      event.EventBatchReset,
			Network:   o.network,
			At:        time.Now().UTC(),
		})
	}

	o.resetSignerAsync()
	return nil
}

// resetStateLocked zeroes session state. The epoch is managed by callers.
func (o *Orchestrator) resetStateLocked() {
	o.sessionID = uuid.Nil
	o.params = model.SessionParams{}
	o.queue = nil
	o.records = nil
	o.recordByHash = make(map[string]*model.TransferRecord)
	o.watchedHashes = make(map[string]struct{})
	o.currentIndex = 0
	o.dispatchedIndex = -1
	o.inFlight = false
	o.active = false
	o.signerErr = nil
	o.failedUnitID = ""
	o.stalled = false
	o.lastProgress = time.Time{}
	o.sessionCtx = nil
}

// applyConfirmation settles one record with its finality outcome. The first
// terminal status applied wins; anything after that for the same record is
// dropped. Runs on a watch goroutine.
func (o *Orchestrator) applyConfirmation(epoch uint64, txHash string, watchErr error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if epoch != o.epoch {
		metrics.WatcherLateCallbacksIgnored.WithLabelValues(o.network.String()).Inc()
		return
	}

	rec, ok := o.recordByHash[txHash]
	if !ok {
		metrics.WatcherLateCallbacksIgnored.WithLabelValues(o.network.String()).Inc()
		return
	}
	if rec.Status.Terminal() {
		metrics.WatcherLateCallbacksIgnored.WithLabelValues(o.network.String()).Inc()
		o.logger.Debug("late confirmation ignored", "tx_hash", txHash, "status", rec.Status)
		return
	}

	status := model.StatusSuccess
	eventType := event.EventUnitConfirmed
	reason := ""
	if watchErr != nil {
		status = model.StatusFailed
		eventType = event.EventUnitFailed
		reason = watchErr.Error()
	}
	rec.Status = status
	o.touchProgressLocked()

	metrics.WatcherConfirmationsTotal.WithLabelValues(o.network.String(), status.String()).Inc()
	metrics.WatcherPendingConfirmations.WithLabelValues(o.network.String()).Set(float64(o.pendingConfirmationsLocked()))

	o.logger.Info("unit settled",
		"session_id", o.sessionID,
		"unit_id", rec.UnitID,
		"position", rec.Position,
		"tx_hash", txHash,
		"status", status,
	)

	if err := o.journal.UpdateRecordStatus(o.baseCtx(), o.sessionID, rec.Position, status); err != nil {
		o.logger.Warn("journal update record failed", "error", err)
	}
	o.publishLocked(event.RecordEvent{
		SessionID: o.sessionID,
		Type:      eventType,
		Network:   o.network,
		UnitID:    rec.UnitID,
		Position:  rec.Position,
		TxHash:    txHash,
		Status:    status,
		Reason:    reason,
		At:        time.Now().UTC(),
	})

	if status == model.StatusFailed {
		o.alertLocked(alert.AlertTypeUnitFailed, "unit transfer failed on chain", reason, map[string]string{
			"unit_id": rec.UnitID,
			"tx_hash": txHash,
		})
	}

	if o.batchDoneLocked() {
		o.completeLocked()
	}
}

// batchDoneLocked reports whether every queue position has a terminal record.
func (o *Orchestrator) batchDoneLocked() bool {
	if !o.active || len(o.queue) == 0 {
		return false
	}
	if o.currentIndex < len(o.queue) || len(o.records) != len(o.queue) {
		return false
	}
	for _, rec := range o.records {
		if !rec.Status.Terminal() {
			return false
		}
	}
	return true
}

func (o *Orchestrator) completeLocked() {
	o.active = false

	succeeded := 0
	for _, rec := range o.records {
		if rec.Status == model.StatusSuccess {
			succeeded++
		}
	}

	metrics.DriverBatchesCompleted.WithLabelValues(o.network.String()).Inc()
	o.logger.Info("batch complete",
		"session_id", o.sessionID,
		"total", len(o.queue),
		"succeeded", succeeded,
		"failed", len(o.queue)-succeeded,
	)

	if err := o.journal.EndSession(o.baseCtx(), o.sessionID, "complete"); err != nil {
		o.logger.Warn("journal end session failed", "error", err)
	}
	o.publishLocked(event.RecordEvent{
		SessionID: o.sessionID,
		Type:      event.EventBatchComplete,
		Network:   o.network,
		At:        time.Now().UTC(),
	})
	o.alertLocked(alert.AlertTypeBatchComplete, "batch transfer complete",
		fmt.Sprintf("%d/%d units transferred", succeeded, len(o.queue)), nil)
}

func (o *Orchestrator) pendingConfirmationsLocked() int {
	n := 0
	for _, rec := range o.records {
		if !rec.Status.Terminal() {
			n++
		}
	}
	return n
}

// resetSignerAsync clears the wallet bridge state off the lock path.
// Best-effort; a failed reset surfaces on the next submission instead.
func (o *Orchestrator) resetSignerAsync() {
	ctx := o.baseCtx()
	go func() {
		resetCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := o.signer.Reset(resetCtx); err != nil {
			o.logger.Warn("signer reset failed", "error", err)
		}
	}()
}

// publishLocked emits an event without blocking state transitions. Callers
// hold the mutex; the publisher must not call back into the orchestrator.
func (o *Orchestrator) publishLocked(ev event.RecordEvent) {
	o.publish(ev)
}

func (o *Orchestrator) publish(ev event.RecordEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.publisher.Publish(ctx, ev); err != nil {
		o.logger.Warn("event publish failed", "type", ev.Type, "error", err)
	}
}

func (o *Orchestrator) alertLocked(t alert.AlertType, title, message string, fields map[string]string) {
	ctx := o.baseCtx()
	go func() {
		alertCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := o.alerter.Send(alertCtx, alert.Alert{
			Type:    t,
			Network: o.network.String(),
			Title:   title,
			Message: message,
			Fields:  fields,
		}); err != nil {
			o.logger.Warn("alert send failed", "type", t, "error", err)
		}
	}()
}
