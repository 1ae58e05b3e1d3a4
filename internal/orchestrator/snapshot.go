package orchestrator

import "github.com/recepoksuz/nft-transferd/internal/domain/model"

// Snapshot returns a point-in-time view of the batch. All boolean flags and
// the phase are derived from the aggregate state under the lock, so a
// snapshot is always internally consistent.
func (o *Orchestrator) Snapshot() model.BatchSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	records := make([]model.TransferRecord, len(o.records))
	for i, rec := range o.records {
		records[i] = *rec
	}
	queue := make([]model.WorkItem, len(o.queue))
	copy(queue, o.queue)

	pending := o.pendingConfirmationsLocked()
	total := len(o.queue)
	allSubmitted := total > 0 && o.currentIndex >= total

	isComplete := total > 0 && len(records) == total
	for _, rec := range records {
		if !rec.Status.Terminal() {
			isComplete = false
			break
		}
	}

	snap := model.BatchSnapshot{
		SessionID:            o.sessionID,
		Params:               o.params,
		Queue:                queue,
		Records:              records,
		CurrentIndex:         o.currentIndex,
		TotalCount:           total,
		IsTransferring:       o.active,
		IsPending:            o.inFlight,
		IsConfirming:         pending > 0,
		IsComplete:           isComplete,
		AllSubmitted:         allSubmitted,
		PendingConfirmations: pending,
		FailedUnitID:         o.failedUnitID,
	}

	if o.signerErr != nil {
		snap.Error = o.signerErr.Error()
	}
	if o.currentIndex < total {
		snap.CurrentUnitID = o.queue[o.currentIndex].UnitID
	}
	if n := len(records); n > 0 {
		snap.CurrentTxHash = records[n-1].TxHash
	}

	snap.Phase = o.phaseLocked(isComplete)
	return snap
}

func (o *Orchestrator) phaseLocked(isComplete bool) model.Phase {
	switch {
	case isComplete:
		return model.PhaseComplete
	case o.signerErr != nil:
		return model.PhaseErrorAtPosition
	case o.inFlight:
		return model.PhaseAwaitingSignature
	case o.active:
		return model.PhaseSubmitted
	default:
		return model.PhaseIdle
	}
}
