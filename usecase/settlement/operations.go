package settlement

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fastygo/settlement/domain"
	"github.com/fastygo/settlement/pkg/logger"
)

// RoleAdmin may refund any contribution.
const RoleAdmin = "admin"

// RefundRequest is a refund triggered through the API.
type RefundRequest struct {
	ContributionID string
	ActorID        string
	ActorRole      string
}

// PendingRequest attaches a provider intent to a freshly created contribution.
type PendingRequest struct {
	ContributionID string
	Provider       string
	IntentID       string
	Metadata       map[string]string
	ActorID        string
}

// MarkPending moves an initiated contribution to PENDING once the provider intent exists.
func (e *Engine) MarkPending(ctx context.Context, req PendingRequest) (*domain.Contribution, error) {
	ctx, span := e.tracer.Start(ctx, "settlement.MarkPending", trace.WithAttributes(
		attribute.String("contribution.id", req.ContributionID),
	))
	defer span.End()

	ref := domain.PaymentReference{
		Provider: req.Provider,
		IntentID: req.IntentID,
		Metadata: req.Metadata,
	}

	var tr Transition
	err := e.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		tr, err = e.machine.MarkPending(ctx, req.ContributionID, ref)
		return err
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		logger.WithRequestID(ctx, e.logger).Warn("mark pending failed",
			zap.String("contribution_id", req.ContributionID),
			zap.Error(err),
		)
		return nil, err
	}

	if tr.Applied {
		e.recorder.RecordAll(ctx, transitionAudit(tr, "contribution.pending", actorRef(req.ActorID), domain.SourceAPI))
	}
	return tr.After, nil
}

// Refund reverses a succeeded contribution. Admins may refund anything; other actors
// only their own contributions.
func (e *Engine) Refund(ctx context.Context, req RefundRequest) (*domain.Contribution, error) {
	ctx, span := e.tracer.Start(ctx, "settlement.Refund", trace.WithAttributes(
		attribute.String("contribution.id", req.ContributionID),
	))
	defer span.End()

	log := logger.WithRequestID(ctx, e.logger).With(
		zap.String("contribution_id", req.ContributionID),
		zap.String("actor_id", req.ActorID),
	)

	var tr Transition
	err := e.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := e.contributions.GetByID(ctx, req.ContributionID)
		if err != nil {
			return err
		}
		if !mayRefund(current, req) {
			return domain.ErrForbidden
		}
		tr, err = e.machine.MarkRefunded(ctx, req.ContributionID)
		return err
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if domain.IsTransient(err) {
			log.Error("refund failed", zap.Error(err))
		} else {
			log.Info("refund rejected", zap.Error(err))
		}
		return nil, err
	}

	log.Info("contribution refunded", zap.String("amount", tr.After.Amount.String()))
	e.recorder.RecordAll(ctx, transitionAudit(tr, "contribution.refunded", actorRef(req.ActorID), domain.SourceAPI))
	return tr.After, nil
}

// RecomputeReport summarizes a maintenance rebuild of the denormalized aggregates.
type RecomputeReport struct {
	Campaigns    []domain.CampaignTotals
	UsersUpdated int64
}

// RecomputeAggregates rebuilds campaign, reward and user aggregates from succeeded
// contributions. With no ids every campaign is rebuilt. Each campaign commits on its own.
func (e *Engine) RecomputeAggregates(ctx context.Context, campaignIDs ...string) (RecomputeReport, error) {
	ctx, span := e.tracer.Start(ctx, "settlement.RecomputeAggregates")
	defer span.End()

	log := logger.WithRequestID(ctx, e.logger)
	var report RecomputeReport

	if len(campaignIDs) == 0 {
		ids, err := e.campaigns.ListIDs(ctx)
		if err != nil {
			return report, err
		}
		campaignIDs = ids
	}

	for _, id := range campaignIDs {
		var before *domain.Campaign
		var totals *domain.CampaignTotals
		err := e.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			var err error
			if before, err = e.campaigns.GetByID(ctx, id); err != nil {
				return err
			}
			totals, err = e.campaigns.Recompute(ctx, id)
			return err
		})
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			log.Error("campaign recompute failed", zap.String("campaign_id", id), zap.Error(err))
			return report, err
		}

		report.Campaigns = append(report.Campaigns, *totals)
		if !before.CurrentAmount.Equal(totals.CurrentAmount) || before.BackerCount != totals.BackerCount {
			log.Warn("campaign aggregate drift corrected",
				zap.String("campaign_id", id),
				zap.String("stored_amount", before.CurrentAmount.String()),
				zap.String("settled_amount", totals.CurrentAmount.String()),
				zap.Int64("stored_backers", before.BackerCount),
				zap.Int64("settled_backers", totals.BackerCount),
			)
			e.recorder.Record(ctx, domain.NewAuditRecord(
				domain.EntityRef{Type: domain.EntityCampaign, ID: id},
				"aggregate.recomputed", nil, domain.SourceSystem,
				domain.CampaignTotals{CampaignID: id, CurrentAmount: before.CurrentAmount, BackerCount: before.BackerCount},
				totals,
			))
		}
	}

	err := e.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		report.UsersUpdated, err = e.users.RecomputeAll(ctx)
		return err
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Error("user recompute failed", zap.Error(err))
		return report, err
	}

	span.SetAttributes(
		attribute.Int("campaigns", len(report.Campaigns)),
		attribute.Int64("users.updated", report.UsersUpdated),
	)
	log.Info("aggregates recomputed",
		zap.Int("campaigns", len(report.Campaigns)),
		zap.Int64("users_updated", report.UsersUpdated),
	)
	return report, nil
}

func mayRefund(c *domain.Contribution, req RefundRequest) bool {
	if req.ActorRole == RoleAdmin {
		return true
	}
	return req.ActorID != "" && c.ContributorID != nil && *c.ContributorID == req.ActorID
}

func actorRef(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
