package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
	"github.com/CardLinx/microsoft-earn-sub008/internal/store"
)

// fakeRepository is an in-memory store.Repository for engine tests.
type fakeRepository struct {
	cards         map[uuid.UUID]*domain.Card
	deals         map[uuid.UUID]*domain.Deal
	claimedDeals  map[uuid.UUID]*domain.ClaimedDeal
	redeemedDeals map[string]*domain.RedeemedDeal
	jobs          map[uuid.UUID]*domain.ScheduledJobDetails
	attachedCount int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		cards:         make(map[uuid.UUID]*domain.Card),
		deals:         make(map[uuid.UUID]*domain.Deal),
		claimedDeals:  make(map[uuid.UUID]*domain.ClaimedDeal),
		redeemedDeals: make(map[string]*domain.RedeemedDeal),
		jobs:          make(map[uuid.UUID]*domain.ScheduledJobDetails),
	}
}

func (f *fakeRepository) FindCardByPANToken(_ context.Context, globalUserID uuid.UUID, panToken string) (*domain.Card, error) {
	for _, c := range f.cards {
		if c.GlobalUserID == globalUserID && c.PANToken == panToken {
			return c, nil
		}
	}
	return nil, store.ErrCardNotFound
}

func (f *fakeRepository) FindCardByID(_ context.Context, cardID uuid.UUID) (*domain.Card, error) {
	if c, ok := f.cards[cardID]; ok {
		return c, nil
	}
	return nil, store.ErrCardNotFound
}

func (f *fakeRepository) CreateCard(_ context.Context, card *domain.Card) error {
	f.cards[card.ID] = card
	return nil
}

func (f *fakeRepository) UpsertCardPartnerLink(_ context.Context, cardID uuid.UUID, link domain.PartnerLink) (bool, error) {
	card, ok := f.cards[cardID]
	if !ok {
		return false, store.ErrCardNotFound
	}
	for i, existing := range card.PartnerLinks {
		if existing.Partner == link.Partner {
			card.PartnerLinks[i] = link
			return false, nil
		}
	}
	card.PartnerLinks = append(card.PartnerLinks, link)
	return true, nil
}

func (f *fakeRepository) RemoveCardPartnerLink(_ context.Context, cardID uuid.UUID, partner domain.Partner) (bool, error) {
	card, ok := f.cards[cardID]
	if !ok {
		return false, store.ErrCardNotFound
	}
	for i, link := range card.PartnerLinks {
		if link.Partner == partner {
			card.PartnerLinks = append(card.PartnerLinks[:i], card.PartnerLinks[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepository) CountCardPartnerLinks(_ context.Context, cardID uuid.UUID) (int, error) {
	card, ok := f.cards[cardID]
	if !ok {
		return 0, store.ErrCardNotFound
	}
	return len(card.PartnerLinks), nil
}

func (f *fakeRepository) DeactivateCard(_ context.Context, cardID uuid.UUID) error {
	card, ok := f.cards[cardID]
	if !ok {
		return store.ErrCardNotFound
	}
	card.Active = false
	return nil
}

func (f *fakeRepository) FindClaimedDeal(_ context.Context, claimedDealID uuid.UUID) (*domain.ClaimedDeal, error) {
	if cd, ok := f.claimedDeals[claimedDealID]; ok {
		return cd, nil
	}
	return nil, store.ErrClaimedDealNotFound
}

func (f *fakeRepository) FindDeal(_ context.Context, dealID uuid.UUID) (*domain.Deal, error) {
	if d, ok := f.deals[dealID]; ok {
		return d, nil
	}
	return nil, store.ErrDealNotFound
}

func (f *fakeRepository) FindClaimedDealsByUser(_ context.Context, globalUserID uuid.UUID) ([]domain.ClaimedDeal, error) {
	var out []domain.ClaimedDeal
	for _, cd := range f.claimedDeals {
		if cd.GlobalUserID == globalUserID {
			out = append(out, *cd)
		}
	}
	return out, nil
}

func (f *fakeRepository) AttachClaimedDealsToCard(_ context.Context, globalUserID, cardID uuid.UUID) (int, error) {
	count := 0
	for _, cd := range f.claimedDeals {
		if cd.GlobalUserID == globalUserID {
			cd.CardID = cardID
			count++
		}
	}
	f.attachedCount = count
	return count, nil
}

func (f *fakeRepository) InsertRedeemedDeal(_ context.Context, deal *domain.RedeemedDeal) error {
	if _, exists := f.redeemedDeals[deal.PartnerRedeemedDealID]; exists {
		return store.ErrDuplicateRedemption
	}
	copied := *deal
	f.redeemedDeals[deal.PartnerRedeemedDealID] = &copied
	return nil
}

func (f *fakeRepository) FindRedeemedDealByPartnerID(_ context.Context, partnerRedeemedDealID string) (*domain.RedeemedDeal, error) {
	if rd, ok := f.redeemedDeals[partnerRedeemedDealID]; ok {
		copied := *rd
		return &copied, nil
	}
	return nil, store.ErrRedeemedDealNotFound
}

func (f *fakeRepository) UpdateRedeemedDealStatus(_ context.Context, redeemedDealID uuid.UUID, status domain.CreditStatus) error {
	for _, rd := range f.redeemedDeals {
		if rd.ID == redeemedDealID {
			rd.Status = status
			return nil
		}
	}
	return store.ErrRedeemedDealNotFound
}

func (f *fakeRepository) MarkRedeemedDealReversed(_ context.Context, redeemedDealID uuid.UUID, cause domain.ReversalCause, _ int64) error {
	for _, rd := range f.redeemedDeals {
		if rd.ID == redeemedDealID {
			if rd.Reversed {
				return store.ErrDuplicateRedemption
			}
			rd.Reversed = true
			rd.ReversalCause = cause
			rd.Status = domain.StatusReversed
			return nil
		}
	}
	return store.ErrRedeemedDealNotFound
}

func (f *fakeRepository) MarkRedeemedDealSettled(_ context.Context, redeemedDealID uuid.UUID, settlementAmount, discountAmount int64) error {
	for _, rd := range f.redeemedDeals {
		if rd.ID == redeemedDealID {
			rd.SettlementAmount = settlementAmount
			rd.DiscountAmount = discountAmount
			rd.Status = domain.StatusClearingReceived
			return nil
		}
	}
	return store.ErrRedeemedDealNotFound
}

func (f *fakeRepository) FindSettledDealsSince(_ context.Context, since time.Time) ([]domain.RedeemedDeal, error) {
	var out []domain.RedeemedDeal
	for _, rd := range f.redeemedDeals {
		if rd.Status == domain.StatusClearingReceived && rd.UpdatedAt.After(since) {
			out = append(out, *rd)
		}
	}
	return out, nil
}

func (f *fakeRepository) FindDealsAwaitingStatementCredit(_ context.Context, limit int) ([]domain.RedeemedDeal, error) {
	var out []domain.RedeemedDeal
	for _, rd := range f.redeemedDeals {
		if rd.Reversed || len(out) >= limit {
			continue
		}
		if rd.Status == domain.StatusClearingReceived ||
			rd.Status == domain.StatusRetryingAfterGeneratingStatementCreditRequestFailure {
			out = append(out, *rd)
		}
	}
	return out, nil
}

func (f *fakeRepository) CreateScheduledJob(_ context.Context, job *domain.ScheduledJobDetails) error {
	copied := *job
	f.jobs[job.JobID] = &copied
	return nil
}

func (f *fakeRepository) FindDueScheduledJobs(_ context.Context, now time.Time, limit int) ([]domain.ScheduledJobDetails, error) {
	var out []domain.ScheduledJobDetails
	for _, j := range f.jobs {
		if !j.StartTime.After(now) && len(out) < limit {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (f *fakeRepository) RescheduleJobAfterFailure(_ context.Context, jobID uuid.UUID, state domain.JobState, nextRun time.Time) error {
	job, ok := f.jobs[jobID]
	if !ok {
		return store.ErrJobNotFound
	}
	job.State = state
	job.StartTime = nextRun
	return nil
}

func (f *fakeRepository) CompleteScheduledJob(_ context.Context, jobID uuid.UUID) error {
	if _, ok := f.jobs[jobID]; !ok {
		return store.ErrJobNotFound
	}
	delete(f.jobs, jobID)
	return nil
}

func (f *fakeRepository) MarkRecurringJobIterationDone(_ context.Context, jobID uuid.UUID, nextRun time.Time) error {
	job, ok := f.jobs[jobID]
	if !ok {
		return store.ErrJobNotFound
	}
	job.StartTime = nextRun
	job.State = domain.JobState{}
	return nil
}

var _ store.Repository = (*fakeRepository)(nil)
