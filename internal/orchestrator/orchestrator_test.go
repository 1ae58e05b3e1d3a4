package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/recepoksuz/nft-transferd/internal/alert"
	"github.com/recepoksuz/nft-transferd/internal/domain/event"
	"github.com/recepoksuz/nft-transferd/internal/domain/model"
	"github.com/recepoksuz/nft-transferd/internal/signer"
	"github.com/recepoksuz/nft-transferd/internal/stream"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

type submitResult struct {
	hash string
	err  error
}

// mockSigner implements signer.Signer with scripted per-unit results. It
// tracks concurrency so tests can prove submissions never overlap.
type mockSigner struct {
	mu          sync.Mutex
	calls       []string
	inFlight    int
	maxInFlight int
	results     map[string]submitResult
	resets      int
	// gate, when non-nil, blocks Submit until released or the context ends.
	gate chan struct{}
}

func newMockSigner() *mockSigner {
	return &mockSigner{results: make(map[string]submitResult)}
}

func (m *mockSigner) script(unitID string, hash string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[unitID] = submitResult{hash: hash, err: err}
}

func (m *mockSigner) Submit(ctx context.Context, req signer.SubmitRequest) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req.UnitID)
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	gate := m.gate
	res, scripted := m.results[req.UnitID]
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if scripted {
		return res.hash, res.err
	}
	return "0xhash_" + req.UnitID, nil
}

func (m *mockSigner) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	return nil
}

func (m *mockSigner) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockSigner) resetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

// mockWaiter implements chain.FinalityWaiter. Each watch blocks until the
// test resolves its hash or the watch context is cancelled.
type mockWaiter struct {
	mu        sync.Mutex
	chans     map[string]chan error
	started   map[string]int
	cancelled int
}

func newMockWaiter() *mockWaiter {
	return &mockWaiter{
		chans:   make(map[string]chan error),
		started: make(map[string]int),
	}
}

func (w *mockWaiter) channel(hash string) chan error {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch, ok := w.chans[hash]
	if !ok {
		ch = make(chan error, 1)
		w.chans[hash] = ch
	}
	return ch
}

func (w *mockWaiter) WaitForFinality(ctx context.Context, txHash string) error {
	w.mu.Lock()
	w.started[txHash]++
	w.mu.Unlock()

	select {
	case err := <-w.channel(txHash):
		return err
	case <-ctx.Done():
		w.mu.Lock()
		w.cancelled++
		w.mu.Unlock()
		return ctx.Err()
	}
}

func (w *mockWaiter) resolve(txHash string, err error) {
	w.channel(txHash) <- err
}

func (w *mockWaiter) watchCount(txHash string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started[txHash]
}

func (w *mockWaiter) cancelledCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancelled
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var testParams = model.SessionParams{
	ContractAddress: "0xc0ffee",
	Recipient:       "0xrecipient",
	Sender:          "0xsender",
}

func newTestOrchestrator(sg *mockSigner, w *mockWaiter, extra ...Option) (*Orchestrator, *stream.InMemoryPublisher) {
	pub := stream.NewInMemoryPublisher()
	opts := append([]Option{
		WithSettleDelay(time.Millisecond),
		WithPublisher(pub),
	}, extra...)
	return New(sg, w, model.NetworkLocal, slog.Default(), opts...), pub
}

func waitForSnapshot(t *testing.T, o *Orchestrator, cond func(model.BatchSnapshot) bool) model.BatchSnapshot {
	t.Helper()
	var snap model.BatchSnapshot
	require.Eventually(t, func() bool {
		snap = o.Snapshot()
		return cond(snap)
	}, 2*time.Second, 5*time.Millisecond)
	return snap
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestStartTransfer_SubmitsAllUnitsInOrder(t *testing.T) {
	t.Parallel()
	sg := newMockSigner()
	w := newMockWaiter()
	o, _ := newTestOrchestrator(sg, w)

	_, err := o.StartTransfer(context.Background(), []string{"u1", "u2", "u3"}, testParams)
	require.NoError(t, err)

	snap := waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.AllSubmitted
	})

	require.Len(t, snap.Records, 3)
	for i, rec := range snap.Records {
		assert.Equal(t, i, rec.Position)
		assert.Equal(t, fmt.Sprintf("u%d", i+1), rec.UnitID)
		assert.Equal(t, model.StatusPending, rec.Status)
		assert.NotEmpty(t, rec.TxHash)
	}
	assert.Equal(t, 3, snap.CurrentIndex)
	assert.Equal(t, []string{"u1", "u2", "u3"}, sg.calls)
}

func TestStartTransfer_NeverOverlapsSigningRequests(t *testing.T) {
	t.Parallel()
	sg := newMockSigner()
	w := newMockWaiter()
	o, _ := newTestOrchestrator(sg, w)

	units := make([]string, 10)
	for i := range units {
		units[i] = fmt.Sprintf("u%d", i)
	}
	_, err := o.StartTransfer(context.Background(), units, testParams)
	require.NoError(t, err)

	waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.AllSubmitted
	})

	assert.Equal(t, 1, sg.maxInFlight, "signing requests must be strictly sequential")
	assert.Equal(t, 10, sg.callCount())
}

func TestStartTransfer_RejectsWhileActive(t *testing.T) {
	t.Parallel()
	sg := newMockSigner()
	sg.gate = make(chan struct{})
	w := newMockWaiter()
	o, _ := newTestOrchestrator(sg, w)

	_, err := o.StartTransfer(context.Background(), []string{"u1"}, testParams)
	require.NoError(t, err)

	_, err = o.StartTransfer(context.Background(), []string{"u2"}, testParams)
	require.ErrorIs(t, err, ErrBatchActive)

	close(sg.gate)
}

func TestStartTransfer_RejectsEmptyQueue(t *testing.T) {
	t.Parallel()
	o, _ := newTestOrchestrator(newMockSigner(), newMockWaiter())
	_, err := o.StartTransfer(context.Background(), nil, testParams)
	require.ErrorIs(t, err, ErrEmptyQueue)
}

func TestConfirmations_OutOfOrderAndComplete(t *testing.T) {
	t.Parallel()
	sg := newMockSigner()
	w := newMockWaiter()
	o, _ := newTestOrchestrator(sg, w)

	_, err := o.StartTransfer(context.Background(), []string{"u1", "u2", "u3"}, testParams)
	require.NoError(t, err)

	waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.AllSubmitted
	})

	// Settle in reverse order. Submission order must not constrain it.
	w.resolve("0xhash_u3", nil)
	w.resolve("0xhash_u2", errors.New("reverted"))
	w.resolve("0xhash_u1", nil)

	snap := waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.IsComplete
	})

	assert.Equal(t, model.StatusSuccess, snap.Records[0].Status)
	assert.Equal(t, model.StatusFailed, snap.Records[1].Status)
	assert.Equal(t, model.StatusSuccess, snap.Records[2].Status)
	assert.Equal(t, model.PhaseComplete, snap.Phase)
	assert.False(t, snap.IsTransferring)
	assert.Zero(t, snap.PendingConfirmations)
}

func TestConfirmation_FirstAppliedWins(t *testing.T) {
	t.Parallel()
	sg := newMockSigner()
	w := newMockWaiter()
	o, _ := newTestOrchestrator(sg, w)

	_, err := o.StartTransfer(context.Background(), []string{"u1"}, testParams)
	require.NoError(t, err)

	waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.AllSubmitted
	})

	w.resolve("0xhash_u1", nil)
	snap := waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.IsComplete
	})
	require.Equal(t, model.StatusSuccess, snap.Records[0].Status)

	// A contradictory late outcome for the same handle must not flip the
	// record.
	o.mu.Lock()
	epoch := o.epoch
	o.mu.Unlock()
	o.applyConfirmation(epoch, "0xhash_u1", errors.New("late revert"))
	assert.Equal(t, model.StatusSuccess, o.Snapshot().Records[0].Status)
}

func TestDuplicateSubmissionHandle_ParksWithVisibleError(t *testing.T) {
	t.Parallel()
	sg := newMockSigner()
	sg.script("u1", "0xsame", nil)
	sg.script("u2", "0xsame", nil)
	w := newMockWaiter()
	o, _ := newTestOrchestrator(sg, w)

	_, err := o.StartTransfer(context.Background(), []string{"u1", "u2"}, testParams)
	require.NoError(t, err)

	snap := waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.Phase == model.PhaseErrorAtPosition
	})

	// The duplicate handle produced no second record and no second watch,
	// and the position parks with the error visible to the operator.
	assert.Len(t, snap.Records, 1)
	assert.Equal(t, 1, w.watchCount("0xsame"))
	assert.Equal(t, 1, snap.CurrentIndex, "cursor must stay at the duplicated position")
	assert.Equal(t, "u2", snap.FailedUnitID)
	assert.Contains(t, snap.Error, ErrDuplicateHandle.Error())
	assert.Equal(t, 2, sg.callCount(), "no further submissions while parked")
}

func TestDuplicateSubmissionHandle_SkipSettlesBatch(t *testing.T) {
	t.Parallel()
	sg := newMockSigner()
	sg.script("u1", "0xsame", nil)
	sg.script("u2", "0xsame", nil)
	w := newMockWaiter()
	o, _ := newTestOrchestrator(sg, w)

	_, err := o.StartTransfer(context.Background(), []string{"u1", "u2"}, testParams)
	require.NoError(t, err)

	waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.Phase == model.PhaseErrorAtPosition
	})

	require.NoError(t, o.Skip(context.Background()))
	snap := waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.AllSubmitted
	})
	require.Len(t, snap.Records, 2)
	assert.Equal(t, model.StatusFailed, snap.Records[1].Status)
	assert.Empty(t, snap.Records[1].TxHash)

	w.resolve("0xsame", nil)
	snap = waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.IsComplete
	})
	assert.Equal(t, model.PhaseComplete, snap.Phase)
}

func TestDuplicateSubmissionHandle_RetryRedispatches(t *testing.T) {
	t.Parallel()
	sg := newMockSigner()
	sg.script("u1", "0xsame", nil)
	sg.script("u2", "0xsame", nil)
	w := newMockWaiter()
	o, _ := newTestOrchestrator(sg, w)

	_, err := o.StartTransfer(context.Background(), []string{"u1", "u2"}, testParams)
	require.NoError(t, err)

	waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.Phase == model.PhaseErrorAtPosition
	})

	// The bridge answers with a fresh hash on the second attempt.
	sg.script("u2", "0xfresh", nil)
	require.NoError(t, o.Retry(context.Background()))

	snap := waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.AllSubmitted
	})
	require.Len(t, snap.Records, 2)
	assert.Equal(t, "0xfresh", snap.Records[1].TxHash)
	assert.Empty(t, snap.Error)

	w.resolve("0xsame", nil)
	w.resolve("0xfresh", nil)
	waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.IsComplete
	})
}

func TestSignerRejection_ParksAtPosition(t *testing.T) {
	t.Parallel()
	sg := newMockSigner()
	sg.script("u2", "", fmt.Errorf("%w: user denied", signer.ErrRejected))
	w := newMockWaiter()
	o, _ := newTestOrchestrator(sg, w)

	_, err := o.StartTransfer(context.Background(), []string{"u1", "u2", "u3"}, testParams)
	require.NoError(t, err)

	snap := waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.Phase == model.PhaseErrorAtPosition
	})

	assert.Equal(t, 1, snap.CurrentIndex, "cursor must not advance past the failed position")
	assert.Equal(t, "u2", snap.FailedUnitID)
	assert.Equal(t, "u2", snap.CurrentUnitID)
	assert.NotEmpty(t, snap.Error)
	assert.Len(t, snap.Records, 1)
	assert.Equal(t, 2, sg.callCount(), "no further submissions while parked")
}

func TestRetry_RedispatchesSamePosition(t *testing.T) {
	t.Parallel()
	sg := newMockSigner()
	sg.script("u2", "", fmt.Errorf("%w: user denied", signer.ErrRejected))
	w := newMockWaiter()
	o, _ := newTestOrchestrator(sg, w)

	_, err := o.StartTransfer(context.Background(), []string{"u1", "u2"}, testParams)
	require.NoError(t, err)

	waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.Phase == model.PhaseErrorAtPosition
	})

	// Second attempt succeeds.
	sg.script("u2", "0xhash_u2_retry", nil)
	require.NoError(t, o.Retry(context.Background()))

	snap := waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.AllSubmitted
	})

	require.Len(t, snap.Records, 2)
	assert.Equal(t, "u2", snap.Records[1].UnitID)
	assert.Equal(t, "0xhash_u2_retry", snap.Records[1].TxHash)
	assert.Empty(t, snap.Error)
	assert.Equal(t, []string{"u1", "u2", "u2"}, sg.calls)
	assert.GreaterOrEqual(t, sg.resetCount(), 1, "retry must clear the wallet bridge state")
}

func TestRetry_WithoutErrorIsNoop(t *testing.T) {
	t.Parallel()
	sg := newMockSigner()
	w := newMockWaiter()
	o, _ := newTestOrchestrator(sg, w)

	_, err := o.StartTransfer(context.Background(), []string{"u1"}, testParams)
	require.NoError(t, err)
	waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.AllSubmitted
	})

	require.NoError(t, o.Retry(context.Background()))
	assert.Equal(t, 1, sg.callCount())
}

func TestSkip_AppendsFailedRecordAndAdvances(t *testing.T) {
	t.Parallel()
	sg := newMockSigner()
	sg.script("u2", "", fmt.Errorf("%w: user denied", signer.ErrRejected))
	w := newMockWaiter()
	o, _ := newTestOrchestrator(sg, w)

	_, err := o.StartTransfer(context.Background(), []string{"u1", "u2", "u3"}, testParams)
	require.NoError(t, err)

	waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.Phase == model.PhaseErrorAtPosition
	})

	require.NoError(t, o.Skip(context.Background()))

	snap := waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.AllSubmitted
	})

	require.Len(t, snap.Records, 3)
	skipped := snap.Records[1]
	assert.Equal(t, "u2", skipped.UnitID)
	assert.Equal(t, model.StatusFailed, skipped.Status)
	assert.Empty(t, skipped.TxHash, "a skipped unit never reached the chain")
	assert.Equal(t, "u3", snap.Records[2].UnitID)
	assert.GreaterOrEqual(t, sg.resetCount(), 1)
}

func TestSkip_WithoutErrorIsNoop(t *testing.T) {
	t.Parallel()
	sg := newMockSigner()
	w := newMockWaiter()
	o, _ := newTestOrchestrator(sg, w)

	_, err := o.StartTransfer(context.Background(), []string{"u1", "u2"}, testParams)
	require.NoError(t, err)
	waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.AllSubmitted
	})

	require.NoError(t, o.Skip(context.Background()))
	assert.Len(t, o.Snapshot().Records, 2, "skip without an outstanding error must not append")
}

func TestSkip_LastPositionCompletesWhenRestSettled(t *testing.T) {
	t.Parallel()
	sg := newMockSigner()
	sg.script("u2", "", fmt.Errorf("%w: user denied", signer.ErrRejected))
	w := newMockWaiter()
	o, _ := newTestOrchestrator(sg, w)

	_, err := o.StartTransfer(context.Background(), []string{"u1", "u2"}, testParams)
	require.NoError(t, err)

	waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.Phase == model.PhaseErrorAtPosition
	})
	w.resolve("0xhash_u1", nil)
	waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.PendingConfirmations == 0
	})

	require.NoError(t, o.Skip(context.Background()))

	snap := waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.IsComplete
	})
	assert.Equal(t, model.PhaseComplete, snap.Phase)
}

func TestFullScenario_SkipMiddleUnit(t *testing.T) {
	t.Parallel()
	sg := newMockSigner()
	sg.script("u2", "", fmt.Errorf("%w: user denied", signer.ErrRejected))
	w := newMockWaiter()
	o, pub := newTestOrchestrator(sg, w)

	sessionID, err := o.StartTransfer(context.Background(), []string{"u1", "u2", "u3"}, testParams)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, sessionID)

	waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.Phase == model.PhaseErrorAtPosition
	})
	require.NoError(t, o.Skip(context.Background()))

	waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.AllSubmitted
	})
	w.resolve("0xhash_u3", nil)
	w.resolve("0xhash_u1", nil)

	snap := waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.IsComplete
	})

	require.Len(t, snap.Records, 3)
	assert.Equal(t, model.StatusSuccess, snap.Records[0].Status)
	assert.Equal(t, model.StatusFailed, snap.Records[1].Status)
	assert.Equal(t, model.StatusSuccess, snap.Records[2].Status)

	var types []event.RecordEventType
	for _, ev := range pub.Events() {
		require.Equal(t, sessionID, ev.SessionID)
		types = append(types, ev.Type)
	}
	assert.Contains(t, types, event.EventBatchStarted)
	assert.Contains(t, types, event.EventSignerRejected)
	assert.Contains(t, types, event.EventUnitSkipped)
	assert.Contains(t, types, event.EventBatchComplete)
}

func TestReset_ClearsStateAndCancelsWatchers(t *testing.T) {
	t.Parallel()
	sg := newMockSigner()
	w := newMockWaiter()
	o, _ := newTestOrchestrator(sg, w)

	_, err := o.StartTransfer(context.Background(), []string{"u1", "u2"}, testParams)
	require.NoError(t, err)
	waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.AllSubmitted
	})

	require.NoError(t, o.Reset(context.Background()))

	snap := o.Snapshot()
	assert.Equal(t, uuid.Nil, snap.SessionID)
	assert.Empty(t, snap.Records)
	assert.Empty(t, snap.Queue)
	assert.Zero(t, snap.CurrentIndex)
	assert.Equal(t, model.PhaseIdle, snap.Phase)

	require.Eventually(t, func() bool {
		return w.cancelledCount() == 2
	}, 2*time.Second, 5*time.Millisecond, "reset must cancel running finality watches")
}

func TestReset_DropsInFlightSigningResult(t *testing.T) {
	t.Parallel()
	sg := newMockSigner()
	sg.gate = make(chan struct{})
	w := newMockWaiter()
	o, _ := newTestOrchestrator(sg, w)

	_, err := o.StartTransfer(context.Background(), []string{"u1"}, testParams)
	require.NoError(t, err)

	require.NoError(t, o.Reset(context.Background()))
	close(sg.gate)

	// The signing result lands after the reset; the epoch guard must drop it.
	time.Sleep(50 * time.Millisecond)
	snap := o.Snapshot()
	assert.Empty(t, snap.Records)
	assert.Equal(t, model.PhaseIdle, snap.Phase)
}

func TestReset_AllowsNewBatch(t *testing.T) {
	t.Parallel()
	sg := newMockSigner()
	w := newMockWaiter()
	o, _ := newTestOrchestrator(sg, w)

	first, err := o.StartTransfer(context.Background(), []string{"u1"}, testParams)
	require.NoError(t, err)
	require.NoError(t, o.Reset(context.Background()))

	second, err := o.StartTransfer(context.Background(), []string{"u9"}, testParams)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	snap := waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.AllSubmitted
	})
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "u9", snap.Records[0].UnitID)
}

func TestSnapshot_PhaseTransitions(t *testing.T) {
	t.Parallel()
	sg := newMockSigner()
	sg.gate = make(chan struct{})
	w := newMockWaiter()
	o, _ := newTestOrchestrator(sg, w)

	assert.Equal(t, model.PhaseIdle, o.Snapshot().Phase)

	_, err := o.StartTransfer(context.Background(), []string{"u1"}, testParams)
	require.NoError(t, err)

	waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.Phase == model.PhaseAwaitingSignature && s.IsPending
	})

	close(sg.gate)
	waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.Phase == model.PhaseSubmitted && s.IsConfirming
	})

	w.resolve("0xhash_u1", nil)
	waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.Phase == model.PhaseComplete
	})
}

func TestSnapshot_IsIsolatedCopy(t *testing.T) {
	t.Parallel()
	sg := newMockSigner()
	w := newMockWaiter()
	o, _ := newTestOrchestrator(sg, w)

	_, err := o.StartTransfer(context.Background(), []string{"u1"}, testParams)
	require.NoError(t, err)
	waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.AllSubmitted
	})

	snap := o.Snapshot()
	snap.Records[0].Status = model.StatusFailed

	assert.Equal(t, model.StatusPending, o.Snapshot().Records[0].Status)
}

// mockAlerter records alerts for assertions.
type mockAlerter struct {
	mu   sync.Mutex
	sent []alert.Alert
}

func (m *mockAlerter) Send(_ context.Context, a alert.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, a)
	return nil
}

func (m *mockAlerter) byType(t alert.AlertType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.sent {
		if a.Type == t {
			n++
		}
	}
	return n
}

func TestStallWatchdog_AlertsAndRecovers(t *testing.T) {
	t.Parallel()
	sg := newMockSigner()
	sg.gate = make(chan struct{})
	w := newMockWaiter()
	al := &mockAlerter{}
	o, _ := newTestOrchestrator(sg, w,
		WithAlerter(al),
		WithStallThreshold(50*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	_, err := o.StartTransfer(ctx, []string{"u1"}, testParams)
	require.NoError(t, err)

	// The gated signer never answers, so the watchdog fires.
	require.Eventually(t, func() bool {
		return al.byType(alert.AlertTypeBatchStalled) == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Progress resumes once the signer answers.
	close(sg.gate)
	require.Eventually(t, func() bool {
		return al.byType(alert.AlertTypeRecovery) == 1
	}, 2*time.Second, 5*time.Millisecond)

	w.resolve("0xhash_u1", nil)
	waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.IsComplete
	})

	// A completed batch must not re-trigger the watchdog.
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 1, al.byType(alert.AlertTypeBatchStalled))
}

func TestOperations_EmitSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	sg := newMockSigner()
	w := newMockWaiter()
	o, _ := newTestOrchestrator(sg, w)

	_, err := o.StartTransfer(context.Background(), []string{"u1"}, testParams)
	require.NoError(t, err)
	waitForSnapshot(t, o, func(s model.BatchSnapshot) bool {
		return s.AllSubmitted
	})
	require.NoError(t, o.Reset(context.Background()))

	names := make(map[string]bool)
	for _, span := range sr.Ended() {
		names[span.Name()] = true
	}
	assert.True(t, names["orchestrator.start_transfer"])
	assert.True(t, names["orchestrator.reset"])
}
