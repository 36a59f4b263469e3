package gate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gatewarden/internal/access"
	"gatewarden/internal/logging"
	"gatewarden/internal/plate"
	"gatewarden/internal/services"
)

// CredentialOperatorPrefix prefixes ResolvedBy for credential approvals.
const CredentialOperatorPrefix = "credential:"

// Resolve applies an operator decision to the pending approval for plate.
// Approving logs ENTER or EXIT (following the detection's direction), opens
// the barrier for the plate and updates occupancy; rejecting logs REJECTED and
// leaves the barrier alone. A plate that is not pending fails with
// services.ErrNotFound and changes nothing.
func (o *Orchestrator) Resolve(ctx context.Context, rawPlate string, decision access.Decision, operator string) (access.LogEntry, error) {
	if decision != access.DecisionApprove && decision != access.DecisionReject {
		return access.LogEntry{}, fmt.Errorf("%w: unknown decision %q", services.ErrInvalidTransition, decision)
	}
	p := plate.Normalize(rawPlate)
	if p == "" {
		return access.LogEntry{}, fmt.Errorf("%w: plate is required", services.ErrValidation)
	}
	operator = strings.TrimSpace(operator)

	var ev events
	o.mu.Lock()
	entry, err := o.resolveLocked(ctx, p, decision, operator, "", &ev)
	o.mu.Unlock()
	if err != nil {
		return access.LogEntry{}, err
	}
	o.dispatch(ev)
	return entry, nil
}

// resolveLocked must run with o.mu held.
func (o *Orchestrator) resolveLocked(ctx context.Context, p string, decision access.Decision, operator, reason string, ev *events) (access.LogEntry, error) {
	item, err := o.queue.Get(p)
	if err != nil {
		return access.LogEntry{}, err
	}

	action := access.ActionRejected
	if decision == access.DecisionApprove {
		action = access.ApprovalAction(item.Direction)
	}
	entry, err := o.tracker.Append(ctx, access.LogEntry{
		Plate:      item.Plate,
		Direction:  item.Direction,
		Action:     action,
		ResolvedBy: operator,
		CameraID:   item.CameraID,
		Reason:     reason,
	})
	if err != nil {
		logging.ErrorWithContext(o.logger, "access log append failed; decision not applied", "resolve_failed",
			logging.String(logging.FieldPlate, p),
			logging.String("decision", string(decision)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the journal database and disk space"),
		)
		return access.LogEntry{}, services.Wrap(services.ErrStorage, "gate", "resolve", "append access log", err)
	}

	if decision == access.DecisionApprove {
		o.barrier.Open(item.Plate)
		ev.barrierChanged(o.barrier.Status())
	}
	if _, err := o.queue.Remove(p); err != nil {
		// Get succeeded under the same lock, so the entry is still present.
		return access.LogEntry{}, err
	}
	ev.entries = append(ev.entries, entry)

	o.logger.Info("pending approval resolved",
		logging.String(logging.FieldEventType, "pending_resolved"),
		logging.String(logging.FieldPlate, p),
		logging.String("action", string(action)),
		logging.String("resolved_by", operator),
	)
	return entry, nil
}

// ForceOpen opens the barrier without a plate. Opening an already open
// barrier only refreshes the auto-close deadline and writes no log entry.
func (o *Orchestrator) ForceOpen(ctx context.Context, operator string) (access.BarrierStatus, error) {
	operator = strings.TrimSpace(operator)
	var ev events
	o.mu.Lock()
	if o.barrier.State() == access.BarrierOpen {
		o.barrier.Open("")
		status := o.barrier.Status()
		o.mu.Unlock()
		o.logger.Debug("barrier already open; auto-close refreshed", logging.String("operator", operator))
		return status, nil
	}
	entry, err := o.tracker.Append(ctx, access.LogEntry{Action: access.ActionForcedOpen, ResolvedBy: operator})
	if err != nil {
		o.mu.Unlock()
		return access.BarrierStatus{}, services.Wrap(services.ErrStorage, "gate", "force open", "append access log", err)
	}
	o.barrier.Open("")
	status := o.barrier.Status()
	ev.entries = append(ev.entries, entry)
	ev.barrierChanged(status)
	o.mu.Unlock()

	o.logger.Info("barrier forced open",
		logging.String(logging.FieldEventType, "barrier_forced_open"),
		logging.String("operator", operator),
	)
	o.dispatch(ev)
	return status, nil
}

// ForceClose closes the barrier and cancels any auto-close. The command is
// logged as FORCED_CLOSE even when the barrier was already closed.
func (o *Orchestrator) ForceClose(ctx context.Context, operator string) (access.BarrierStatus, error) {
	operator = strings.TrimSpace(operator)
	var ev events
	o.mu.Lock()
	entry, err := o.tracker.Append(ctx, access.LogEntry{Action: access.ActionForcedClose, ResolvedBy: operator})
	if err != nil {
		o.mu.Unlock()
		return access.BarrierStatus{}, services.Wrap(services.ErrStorage, "gate", "force close", "append access log", err)
	}
	changed := o.barrier.Close()
	status := o.barrier.Status()
	ev.entries = append(ev.entries, entry)
	if changed {
		ev.barrierChanged(status)
	}
	o.mu.Unlock()

	o.logger.Info("barrier forced closed",
		logging.String(logging.FieldEventType, "barrier_forced_close"),
		logging.String("operator", operator),
		logging.Bool("was_open", changed),
	)
	o.dispatch(ev)
	return status, nil
}

// autoClose runs on the timer goroutine.
func (o *Orchestrator) autoClose(generation uint64) {
	var ev events
	o.mu.Lock()
	if !o.barrier.IsCurrent(generation) {
		o.mu.Unlock()
		o.logger.Debug("stale auto-close ignored", logging.Uint64("generation", generation))
		return
	}
	openedFor := o.barrier.Status().OpenedFor
	entry, err := o.tracker.Append(context.Background(), access.LogEntry{
		Plate:  openedFor,
		Action: access.ActionAutoClose,
		Reason: "auto-close delay elapsed",
	})
	if err != nil {
		o.barrier.Rearm()
		o.mu.Unlock()
		logging.WarnWithContext(o.logger, "auto-close not logged; barrier kept open", "auto_close_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the journal database"),
			logging.String(logging.FieldImpact, "barrier stays open until the next attempt or a manual close"),
		)
		return
	}
	o.barrier.Fire(generation)
	ev.entries = append(ev.entries, entry)
	ev.barrierChanged(o.barrier.Status())
	o.mu.Unlock()

	o.logger.Info("barrier auto-closed",
		logging.String(logging.FieldEventType, "barrier_auto_close"),
		logging.String("opened_for", openedFor),
	)
	o.dispatch(ev)
}

// ExpirePending applies the timeout policy to approvals older than the
// pending timeout. With PolicyStay, or without a timeout, it does nothing.
func (o *Orchestrator) ExpirePending(ctx context.Context, now time.Time) ([]access.LogEntry, error) {
	if o.policy != PolicyReject || o.pendingTimeout <= 0 {
		return nil, nil
	}
	var ev events
	o.mu.Lock()
	var out []access.LogEntry
	var firstErr error
	for _, item := range o.queue.Expired(now, o.pendingTimeout) {
		entry, err := o.resolveLocked(ctx, item.Plate, access.DecisionReject, "", "pending timeout", &ev)
		if err != nil {
			firstErr = err
			break
		}
		out = append(out, entry)
	}
	o.mu.Unlock()
	o.dispatch(ev)
	return out, firstErr
}

// StalePending returns approvals that have outlived the pending timeout under
// PolicyStay and were not returned by an earlier call. An approval re-enqueued
// after resolution is reported again.
func (o *Orchestrator) StalePending(now time.Time) []access.PendingApproval {
	if o.policy != PolicyStay || o.pendingTimeout <= 0 {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	expired := o.queue.Expired(now, o.pendingTimeout)
	current := make(map[string]time.Time, len(expired))
	var out []access.PendingApproval
	for _, item := range expired {
		current[item.Plate] = item.DetectedAt
		if seen, ok := o.stale[item.Plate]; ok && seen.Equal(item.DetectedAt) {
			continue
		}
		out = append(out, item)
	}
	o.stale = current
	return out
}

// ResolveByCredential approves the earliest pending plate registered to
// userID that was detected within the credential window. ResolvedBy is set to
// "credential:<userID>".
func (o *Orchestrator) ResolveByCredential(ctx context.Context, userID string) (access.LogEntry, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return access.LogEntry{}, fmt.Errorf("%w: user id is required", services.ErrValidation)
	}
	plates, ok := o.credentials[userID]
	if !ok || len(plates) == 0 {
		return access.LogEntry{}, fmt.Errorf("credential %q: %w", userID, services.ErrNotFound)
	}

	var ev events
	o.mu.Lock()
	since := time.Time{}
	if o.credentialWindow > 0 {
		since = o.clock.Now().Add(-o.credentialWindow)
	}
	item, found := o.queue.FirstOf(plates, since)
	if !found {
		o.mu.Unlock()
		return access.LogEntry{}, fmt.Errorf("no recent pending plate for credential %q: %w", userID, services.ErrNotFound)
	}
	entry, err := o.resolveLocked(ctx, item.Plate, access.DecisionApprove, CredentialOperatorPrefix+userID, "credential presented", &ev)
	o.mu.Unlock()
	if err != nil {
		return access.LogEntry{}, err
	}
	o.dispatch(ev)
	return entry, nil
}
