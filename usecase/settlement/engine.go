package settlement

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fastygo/settlement/pkg/webhooksig"
	"github.com/fastygo/settlement/repository"
	"github.com/fastygo/settlement/usecase"
	"github.com/fastygo/settlement/usecase/audit"
)

const tracerName = "github.com/fastygo/settlement/usecase/settlement"

// Outcome actions.
const (
	ActionSettled   = "settled"
	ActionFailed    = "failed"
	ActionRefunded  = "refunded"
	ActionNoop      = "noop"
	ActionStale     = "stale"
	ActionDropped   = "dropped"
	ActionIgnored   = "ignored"
	ActionDuplicate = "duplicate"
	ActionRejected  = "rejected"
)

// Deps wires the engine to storage.
type Deps struct {
	Transactor    repository.Transactor
	Contributions repository.ContributionRepository
	Events        repository.EventLedgerRepository
	Campaigns     repository.CampaignRepository
	Users         repository.UserRepository
	Recorder      *audit.Recorder
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Config controls signature policy and event type routing.
type Config struct {
	// Secrets maps provider name to its webhook signing secret.
	Secrets map[string]string
	// EnforceSignature rejects notifications whose signature fails against a configured secret.
	EnforceSignature   bool
	SignatureTolerance time.Duration

	SuccessTypes []string
	FailureTypes []string
	RefundTypes  []string
}

// DefaultConfig routes the common card-processor event names.
func DefaultConfig() Config {
	return Config{
		SuccessTypes: []string{"payment_intent.succeeded", "charge.succeeded", "payment.succeeded"},
		FailureTypes: []string{"payment_intent.payment_failed", "payment_intent.canceled", "charge.failed", "payment.failed"},
		RefundTypes:  []string{"charge.refunded", "payment.refunded"},
	}
}

// Engine settles provider notifications into contribution state and aggregates.
type Engine struct {
	tx            repository.Transactor
	contributions repository.ContributionRepository
	campaigns     repository.CampaignRepository
	users         repository.UserRepository
	ledger        *Ledger
	machine       *StateMachine
	recorder      *audit.Recorder
	dispatcher    *usecase.EventDispatcher
	verifier      webhooksig.Verifier
	cfg           Config
	logger        *zap.Logger
	tracer        trace.Tracer
}

func New(deps Deps, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	tp := deps.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	defaults := DefaultConfig()
	if len(cfg.SuccessTypes) == 0 {
		cfg.SuccessTypes = defaults.SuccessTypes
	}
	if len(cfg.FailureTypes) == 0 {
		cfg.FailureTypes = defaults.FailureTypes
	}
	if len(cfg.RefundTypes) == 0 {
		cfg.RefundTypes = defaults.RefundTypes
	}

	e := &Engine{
		tx:            deps.Transactor,
		contributions: deps.Contributions,
		campaigns:     deps.Campaigns,
		users:         deps.Users,
		ledger:        NewLedger(deps.Events),
		machine:       NewStateMachine(deps.Contributions, NewReconciler(deps.Campaigns, deps.Users)),
		recorder:      deps.Recorder,
		dispatcher:    usecase.NewEventDispatcher(),
		verifier:      webhooksig.Verifier{Tolerance: cfg.SignatureTolerance},
		cfg:           cfg,
		logger:        logger,
		tracer:        tp.Tracer(tracerName),
	}

	e.dispatcher.Register(e.settleSuccess, cfg.SuccessTypes...)
	e.dispatcher.Register(e.settleFailure, cfg.FailureTypes...)
	e.dispatcher.Register(e.settleRefund, cfg.RefundTypes...)
	return e
}
