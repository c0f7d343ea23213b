package services

import (
	"go.uber.org/zap"

	"github.com/fastygo/settlement/internal/config"
	"github.com/fastygo/settlement/repository/postgres"
	"github.com/fastygo/settlement/usecase/audit"
	"github.com/fastygo/settlement/usecase/settlement"
)

// NewEngine wires the settlement engine to Postgres.
func NewEngine(db postgres.DB, recorder *audit.Recorder, cfg config.WebhookConfig, logger *zap.Logger) *settlement.Engine {
	return settlement.New(settlement.Deps{
		Transactor:    postgres.NewTransactor(db),
		Contributions: postgres.NewContributionRepository(db),
		Events:        postgres.NewEventLedgerRepository(db),
		Campaigns:     postgres.NewCampaignRepository(db),
		Users:         postgres.NewUserRepository(db),
		Recorder:      recorder,
	}, settlement.Config{
		Secrets:            cfg.Secrets,
		EnforceSignature:   cfg.EnforceSignature,
		SignatureTolerance: cfg.SignatureTolerance,
		SuccessTypes:       cfg.SuccessTypes,
		FailureTypes:       cfg.FailureTypes,
		RefundTypes:        cfg.RefundTypes,
	}, logger)
}
