/**
 * @description
 * The offer-registration job: pushes the current offer catalog for a set of
 * merchants to a partner. Each merchant is its own task, so a run that
 * registers two of three merchants and then fails resumes with only the third
 * outstanding. The merchant list rides in the job payload; failures at one
 * merchant never un-register another.
 *
 * @dependencies
 * - context, strings: Standard Go libraries.
 * - internal/domain: Job models.
 */

package jobs

import (
	"context"
	"strings"

	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
)

// MerchantsKey is the job-state data key carrying the comma-separated
// merchant ids to register.
const MerchantsKey = "merchants"

// PartnerKey is the job-state data key naming the target partner.
const PartnerKey = "partner"

// OfferRegistrar pushes one merchant's offers to a partner.
type OfferRegistrar interface {
	RegisterOffers(ctx context.Context, partner domain.Partner, merchantID string) error
}

// RegisterOffersExecutor builds one task per merchant named in the payload.
type RegisterOffersExecutor struct {
	registrar OfferRegistrar
}

// NewRegisterOffersExecutor creates the executor.
func NewRegisterOffersExecutor(registrar OfferRegistrar) *RegisterOffersExecutor {
	return &RegisterOffersExecutor{registrar: registrar}
}

// Tasks returns one task per merchant id in the payload, in payload order.
func (e *RegisterOffersExecutor) Tasks(_ context.Context, details *domain.ScheduledJobDetails) ([]Task, error) {
	partner := domain.Partner(details.State.Data[PartnerKey])
	var tasks []Task
	for _, merchantID := range strings.Split(details.State.Data[MerchantsKey], ",") {
		merchantID = strings.TrimSpace(merchantID)
		if merchantID == "" {
			continue
		}
		tasks = append(tasks, &registerMerchantTask{
			registrar:  e.registrar,
			partner:    partner,
			merchantID: merchantID,
		})
	}
	return tasks, nil
}

type registerMerchantTask struct {
	registrar  OfferRegistrar
	partner    domain.Partner
	merchantID string
}

func (t *registerMerchantTask) Name() string { return "register:" + t.merchantID }

func (t *registerMerchantTask) Execute(ctx context.Context, _ *domain.JobState) (domain.ExecutionResult, error) {
	if err := t.registrar.RegisterOffers(ctx, t.partner, t.merchantID); err != nil {
		return domain.ExecutionNonTerminalError, err
	}
	return domain.ExecutionSuccess, nil
}
