package settlement

import (
	"context"
	"encoding/json"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fastygo/settlement/domain"
	"github.com/fastygo/settlement/pkg/logger"
	"github.com/fastygo/settlement/usecase"
)

// Notification is a provider delivery as received at the boundary.
type Notification struct {
	Provider  string
	EventID   string
	Type      string
	Payload   []byte
	Signature string
}

// HandleWebhook drives one notification to completion. Redeliveries and logic-level
// failures return a nil error so the boundary acknowledges them; only signature
// rejection and transient storage failures surface as errors.
func (e *Engine) HandleWebhook(ctx context.Context, n Notification) (usecase.Outcome, error) {
	ctx, span := e.tracer.Start(ctx, "settlement.HandleWebhook", trace.WithAttributes(
		attribute.String("provider", n.Provider),
		attribute.String("event.id", n.EventID),
		attribute.String("event.type", n.Type),
	))
	defer span.End()

	log := logger.WithRequestID(ctx, e.logger).With(
		zap.String("provider", n.Provider),
		zap.String("event_id", n.EventID),
		zap.String("event_type", n.Type),
	)

	if n.Provider == "" || n.EventID == "" {
		return usecase.Outcome{Action: ActionRejected, Reason: "missing event identity"}, domain.ErrInvalidPayload
	}

	event := &domain.ProviderEvent{
		Provider:        n.Provider,
		ExternalEventID: n.EventID,
		Type:            n.Type,
		Payload:         json.RawMessage(n.Payload),
	}

	secret := e.cfg.Secrets[n.Provider]
	valid := e.verifier.Verify(n.Payload, n.Signature, secret)
	event.SignatureValid = secret != "" && valid
	if secret != "" && !valid {
		log.Warn("webhook signature invalid", zap.Bool("enforced", e.cfg.EnforceSignature))
		if e.cfg.EnforceSignature {
			span.SetStatus(codes.Error, "signature invalid")
			e.recorder.Record(ctx, eventAudit(event, "webhook.rejected", "signature invalid"))
			return usecase.Outcome{Action: ActionRejected, Reason: "signature invalid"}, domain.ErrSignatureInvalid
		}
	}

	var outcome usecase.Outcome
	err := e.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		admission, err := e.ledger.Admit(ctx, event)
		if err != nil {
			return err
		}
		if admission == domain.AlreadyProcessed {
			outcome = usecase.Outcome{Action: ActionDuplicate}
			return nil
		}

		result, handled, err := e.dispatcher.Dispatch(ctx, event)
		if err != nil {
			return err
		}
		if !handled {
			result = usecase.Outcome{Action: ActionIgnored, Reason: "unrecognized event type"}
		}
		outcome = result
		return e.ledger.MarkProcessed(ctx, event, outcome.ContributionID)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "settlement failed")
		log.Error("webhook settlement failed, awaiting redelivery", zap.Error(err))
		e.recorder.Record(ctx, eventAudit(event, "webhook.processing_failed", err.Error()))
		if !domain.IsDomainError(err, domain.ErrCodeUnavailable) {
			err = domain.WrapError(domain.ErrCodeUnavailable, "settlement storage failure", err)
		}
		return usecase.Outcome{Action: ActionRejected, Reason: "transient failure"}, err
	}

	e.recorder.RecordAll(ctx, outcome.Audit)

	span.SetAttributes(attribute.String("settlement.action", outcome.Action))
	fields := []zap.Field{zap.String("action", outcome.Action)}
	if outcome.ContributionID != nil {
		fields = append(fields, zap.String("contribution_id", *outcome.ContributionID))
	}
	if outcome.Reason != "" {
		fields = append(fields, zap.String("reason", outcome.Reason))
	}
	switch outcome.Action {
	case ActionDropped, ActionStale:
		log.Warn("webhook acknowledged without effect", fields...)
	case ActionDuplicate, ActionIgnored, ActionNoop:
		log.Info("webhook acknowledged", fields...)
	default:
		log.Info("webhook settled", fields...)
	}
	return outcome, nil
}

func (e *Engine) settleSuccess(ctx context.Context, event *domain.ProviderEvent) (usecase.Outcome, error) {
	c, intent, err := e.resolve(ctx, event)
	if err != nil {
		return unresolved(event, err)
	}
	tr, err := e.machine.MarkSucceeded(ctx, c.ID, paymentData(event.Provider, intent, event.Payload))
	return conclude(event, c.ID, tr, err, ActionSettled, "contribution.succeeded")
}

func (e *Engine) settleFailure(ctx context.Context, event *domain.ProviderEvent) (usecase.Outcome, error) {
	c, _, err := e.resolve(ctx, event)
	if err != nil {
		return unresolved(event, err)
	}
	tr, err := e.machine.MarkFailed(ctx, c.ID)
	return conclude(event, c.ID, tr, err, ActionFailed, "contribution.failed")
}

func (e *Engine) settleRefund(ctx context.Context, event *domain.ProviderEvent) (usecase.Outcome, error) {
	c, _, err := e.resolve(ctx, event)
	if err != nil {
		return unresolved(event, err)
	}
	if partialRefund(event.Payload) {
		id := c.ID
		return usecase.Outcome{
			Action:         ActionIgnored,
			ContributionID: &id,
			Reason:         "partial refund not supported",
			Audit:          []domain.AuditRecord{eventAudit(event, "webhook.partial_refund_ignored", "partial refund not supported")},
		}, nil
	}
	tr, err := e.machine.MarkRefunded(ctx, c.ID)
	return conclude(event, c.ID, tr, err, ActionRefunded, "contribution.refunded")
}

// resolve finds the contribution by provider intent, then by the contribution id the
// creation flow places in provider metadata.
func (e *Engine) resolve(ctx context.Context, event *domain.ProviderEvent) (*domain.Contribution, string, error) {
	intent := intentRef(event.Payload)
	if intent != "" {
		c, err := e.contributions.GetByIntent(ctx, event.Provider, intent)
		if err == nil {
			return c, intent, nil
		}
		if !errors.Is(err, domain.ErrContributionNotFound) {
			return nil, intent, err
		}
	}

	id := contributionRef(event.Payload)
	if id == "" {
		return nil, intent, domain.ErrContributionNotFound
	}
	c, err := e.contributions.GetByID(ctx, id)
	if err != nil {
		return nil, intent, err
	}
	if c.Payment.Provider != "" && c.Payment.Provider != event.Provider {
		return nil, intent, domain.ErrContributionNotFound
	}
	if c.Payment.IntentID != "" {
		intent = c.Payment.IntentID
	}
	return c, intent, nil
}

func unresolved(event *domain.ProviderEvent, err error) (usecase.Outcome, error) {
	if !errors.Is(err, domain.ErrContributionNotFound) {
		return usecase.Outcome{}, err
	}
	return usecase.Outcome{
		Action: ActionDropped,
		Reason: err.Error(),
		Audit:  []domain.AuditRecord{eventAudit(event, "webhook.dropped", err.Error())},
	}, nil
}

// conclude turns a state machine result into an outcome. Errors that only mean the
// notification is stale are absorbed; anything transient aborts the transaction.
func conclude(event *domain.ProviderEvent, contributionID string, tr Transition, err error, action, auditAction string) (usecase.Outcome, error) {
	id := contributionID
	out := usecase.Outcome{ContributionID: &id}

	switch {
	case err == nil && tr.Applied:
		out.Action = action
		out.Audit = transitionAudit(tr, auditAction, nil, domain.SourceWebhook)
	case err == nil:
		out.Action = ActionNoop
		out.Reason = "contribution already " + string(tr.After.Status)
	case errors.Is(err, domain.ErrContributionNotFound):
		return unresolved(event, err)
	case errors.Is(err, domain.ErrInvalidStateTransition), errors.Is(err, domain.ErrRefundNotAllowed):
		out.Action = ActionStale
		out.Reason = err.Error()
		if tr.After != nil {
			out.Reason += " from " + string(tr.After.Status)
		}
		out.Audit = []domain.AuditRecord{eventAudit(event, "webhook.stale", out.Reason)}
	default:
		return usecase.Outcome{}, err
	}
	return out, nil
}

func transitionAudit(tr Transition, action string, actor *string, source string) []domain.AuditRecord {
	records := []domain.AuditRecord{
		domain.NewAuditRecord(
			domain.EntityRef{Type: domain.EntityContribution, ID: tr.After.ID},
			action, actor, source, tr.Before, tr.After,
		),
	}
	for _, effect := range tr.Effects {
		records = append(records, domain.NewAuditRecord(effect.Ref, effect.Action, actor, source, effect.Before, effect.After))
	}
	return records
}

func eventAudit(event *domain.ProviderEvent, action, reason string) domain.AuditRecord {
	return domain.NewAuditRecord(
		domain.EntityRef{Type: domain.EntityProviderEvent, ID: event.Ref()},
		action, nil, domain.SourceWebhook,
		nil,
		map[string]interface{}{
			"event_type":      event.Type,
			"signature_valid": event.SignatureValid,
			"reason":          reason,
		},
	)
}
