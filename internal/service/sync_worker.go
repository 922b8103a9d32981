package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lojasys/cadastro-sync/internal/erp"
	"github.com/lojasys/cadastro-sync/internal/models"
	"github.com/lojasys/cadastro-sync/internal/partner"
)

// Outcome classifies a finished pipeline run so the dispatcher can decide
// whether to arm the per-record backoff.
type Outcome int

const (
	// OutcomeRetry: transient failure, no state change, record stays eligible.
	OutcomeRetry Outcome = iota
	// OutcomeRegistered: partner accepted, outcome durably propagated.
	OutcomeRegistered
	// OutcomeRecused: partner rejected, record parked until manual correction.
	OutcomeRecused
)

// CustomerStore is the slice of the operational repository the worker needs.
type CustomerStore interface {
	MarkRegistered(ctx context.Context, id int64, codcli string, intent models.RegistrationIntent) error
	MarkRecused(ctx context.Context, id int64, msg string) error
	MarkConsolidated(ctx context.Context, id int64) error
}

// ErpStore is the slice of the ERP customer master the worker needs.
type ErpStore interface {
	Exists(ctx context.Context, taxID string) (bool, error)
	Consolidate(ctx context.Context, p erp.ConsolidateParams) error
}

// PartnerAPI submits customers to the wholesale platform.
type PartnerAPI interface {
	RegisterCustomer(ctx context.Context, token string, payload partner.CustomerPayload) (string, error)
}

// TokenSource hands out the current bearer token.
type TokenSource interface {
	CurrentToken() string
}

// SyncWorker runs the per-record pipeline: ERP existence probe, payload
// transform, partner submission, and propagation of the outcome to both
// stores. Callers must hold the record's advisory lock for the whole run.
type SyncWorker struct {
	customers CustomerStore
	erpStore  ErpStore
	api       PartnerAPI
	tokens    TokenSource
	log       zerolog.Logger
}

func NewSyncWorker(customers CustomerStore, erpStore ErpStore, api PartnerAPI, tokens TokenSource, log zerolog.Logger) *SyncWorker {
	return &SyncWorker{
		customers: customers,
		erpStore:  erpStore,
		api:       api,
		tokens:    tokens,
		log:       log.With().Str("component", "sync-worker").Logger(),
	}
}

// Sync converges one customer record. Every durable outcome is written to
// the stores; the returned Outcome and error exist for dispatch decisions
// and logging only.
func (w *SyncWorker) Sync(ctx context.Context, c *models.Customer) (Outcome, error) {
	digits := c.TaxIDDigits()
	log := w.log.With().Int64("customer_id", c.ID).Str("tax_id", digits).Logger()

	exists, err := w.erpStore.Exists(ctx, digits)
	if err != nil {
		return OutcomeRetry, fmt.Errorf("ERP existence probe: %w", err)
	}

	intent := models.IntentNew
	if exists {
		intent = models.IntentUpdate
	}

	token := w.tokens.CurrentToken()
	if token == "" {
		// No bearer yet (startup refresh still failing). Submitting anyway
		// would turn the partner's 401 into a terminal recusal.
		return OutcomeRetry, errors.New("no partner token available")
	}

	payload := BuildPayload(c)

	codcli, err := w.api.RegisterCustomer(ctx, token, payload)
	if err != nil {
		var rejection *partner.RejectionError
		if errors.As(err, &rejection) {
			if markErr := w.customers.MarkRecused(ctx, c.ID, rejection.Body); markErr != nil {
				return OutcomeRetry, fmt.Errorf("persist recusal: %w", markErr)
			}
			log.Warn().Int("status", rejection.StatusCode).Str("reason", rejection.Body).
				Msg("customer recused by partner")
			return OutcomeRecused, nil
		}
		// Transport error or 5xx: no state change, the next tick retries.
		return OutcomeRetry, fmt.Errorf("partner submission: %w", err)
	}

	log.Info().Str("codcli", codcli).Str("intent", string(intent)).
		Msg("customer accepted by partner")

	consolidated := true
	if err := w.erpStore.Consolidate(ctx, erp.ConsolidateParams{
		TaxID:         digits,
		CellPhone:     c.Phone,
		LoyaltyCard:   digits,
		DeliveryTaxID: digits,
		FinalConsumer: models.IsFinalConsumer(digits),
		BirthDate:     c.BirthDate,
	}); err != nil {
		// Registration already succeeded at the partner. Consolidation is
		// confirmed separately so this never blocks the customer; the
		// sweeper retries it later.
		consolidated = false
		log.Error().Err(err).Msg("ERP consolidation failed, deferred to sweeper")
	}

	if err := w.customers.MarkRegistered(ctx, c.ID, codcli, intent); err != nil {
		return OutcomeRetry, fmt.Errorf("persist registration: %w", err)
	}

	if consolidated {
		if err := w.customers.MarkConsolidated(ctx, c.ID); err != nil {
			log.Error().Err(err).Msg("failed to flag consolidation, deferred to sweeper")
		}
	}

	return OutcomeRegistered, nil
}
