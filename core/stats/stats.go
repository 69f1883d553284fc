package stats

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/exchange"
	"github.com/skillbarter/backend/core/review"
	"github.com/skillbarter/backend/core/session"
	"github.com/skillbarter/backend/core/user"
)

const noExchanges = "No exchanges yet"

var NowFunc = time.Now // mockable

type (
	CommunityHighlights struct {
		ActiveMembers      int     `json:"active_members"`
		MostExchangedSkill string  `json:"most_exchanged_skill"`
		TopRated           float64 `json:"top_rated"`
	}

	QuickStats struct {
		ActiveExchanges   int     `json:"active_exchanges"`
		PendingRequests   int     `json:"pending_requests"`
		UpcomingSessions  int     `json:"upcoming_sessions"`
		CompletedSessions int     `json:"completed_sessions"`
		AverageRating     float64 `json:"average_rating"`
		NumberOfReviews   int     `json:"number_of_reviews"`
	}

	Service interface {
		CommunityHighlights(ctx context.Context) (CommunityHighlights, error)
		QuickStats(ctx context.Context, usr user.User) (QuickStats, error)
	}

	Deps struct {
		UserSvc      user.Service
		ReviewSvc    review.Service
		ExchangeRepo exchange.Repository
		SessionRepo  session.Repository
	}

	service struct {
		userSvc      user.Service
		reviewSvc    review.Service
		exchangeRepo exchange.Repository
		sessionRepo  session.Repository
	}
)

var _ Service = (*service)(nil)

func NewService(deps Deps) Service {
	return &service{
		userSvc:      deps.UserSvc,
		reviewSvc:    deps.ReviewSvc,
		exchangeRepo: deps.ExchangeRepo,
		sessionRepo:  deps.SessionRepo,
	}
}

// MostFrequent returns the key with the highest count, breaking ties alphabetically.
func MostFrequent(counts map[string]int) (string, bool) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best, max := "", 0
	for _, k := range keys {
		if counts[k] > max {
			best, max = k, counts[k]
		}
	}
	return best, max > 0
}

func (svc *service) CommunityHighlights(ctx context.Context) (CommunityHighlights, error) {
	members, err := svc.userSvc.Count(ctx)
	if err != nil {
		return CommunityHighlights{}, errors.Wrap(err, "counting users")
	}
	counts, err := svc.exchangeRepo.SkillCounts(ctx)
	if err != nil {
		return CommunityHighlights{}, errors.Wrap(err, "counting exchanged skills")
	}
	skill, ok := MostFrequent(counts)
	if !ok {
		skill = noExchanges
	}
	summary, err := svc.reviewSvc.Summary(ctx, "")
	if err != nil {
		return CommunityHighlights{}, err
	}
	return CommunityHighlights{
		ActiveMembers:      members,
		MostExchangedSkill: skill,
		TopRated:           core.RoundTo1(summary.AverageRating),
	}, nil
}

func (svc *service) QuickStats(ctx context.Context, usr user.User) (QuickStats, error) {
	var (
		qs  QuickStats
		err error
	)
	if qs.ActiveExchanges, err = svc.exchangeRepo.CountRequests(ctx, usr.ID, exchange.StatusAccepted, ""); err != nil {
		return QuickStats{}, errors.Wrap(err, "counting active exchanges")
	}
	if qs.PendingRequests, err = svc.exchangeRepo.CountRequests(
		ctx, usr.ID, exchange.StatusPending, exchange.RoleReceiver,
	); err != nil {
		return QuickStats{}, errors.Wrap(err, "counting pending requests")
	}

	sessions, err := svc.sessionRepo.ListSessions(ctx, usr.ID)
	if err != nil {
		return QuickStats{}, errors.Wrap(err, "listing sessions")
	}
	now := NowFunc()
	for _, s := range sessions {
		switch {
		case s.Completed:
			qs.CompletedSessions++
		case s.ScheduledDate.After(now):
			qs.UpcomingSessions++
		}
	}

	summary, err := svc.reviewSvc.Summary(ctx, usr.ID)
	if err != nil {
		return QuickStats{}, err
	}
	qs.AverageRating = summary.AverageRating
	qs.NumberOfReviews = summary.NumberOfReviews
	return qs, nil
}
