package connection

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/exchange"
	"github.com/skillbarter/backend/core/review"
	"github.com/skillbarter/backend/core/user"
)

// StatusNone is the connection status of users that never exchanged.
const StatusNone = "none"

type (
	// Connection is a user whose skills mutually match the viewer's.
	Connection struct {
		ID              string   `json:"id"`
		AvatarURL       *string  `json:"avatar_url"`
		Initials        string   `json:"initials"`
		Name            string   `json:"name"`
		Location        *string  `json:"location"`
		Rating          float64  `json:"rating"`
		NumberOfReviews int      `json:"number_of_reviews"`
		Bio             string   `json:"bio"`
		Website         string   `json:"website"`
		TeachingSkills  []string `json:"teaching_skills"`
		LearningSkills  []string `json:"learning_skills"`
	}

	// PublicProfile is a user as seen by others.
	PublicProfile struct {
		ID                 string       `json:"id"`
		FirstName          string       `json:"first_name"`
		LastName           string       `json:"last_name"`
		Username           string       `json:"username"`
		Name               string       `json:"name"`
		Initials           string       `json:"initials"`
		AvatarURL          *string      `json:"avatar_url"`
		About              string       `json:"about"`
		Location           *string      `json:"location"`
		Website            string       `json:"website"`
		Language           string       `json:"language"`
		Timezone           string       `json:"timezone"`
		WeeklyAvailability int          `json:"weekly_availability"`
		Skills             []user.Skill `json:"skills"`
		Interests          []user.Skill `json:"interests"`
		Rating             float64      `json:"rating"`
		NumberOfReviews    int          `json:"number_of_reviews"`
		MemberSince        time.Time    `json:"member_since"`
		ConnectionStatus   *string      `json:"connection_status"`
	}

	QueryFilter struct {
		core.PageQuery
		Search   string `query:"search" validate:"omitempty,max=100"`
		Location string `query:"location" validate:"omitempty,max=100"`
		Skill    string `query:"skill" validate:"omitempty,max=100"`
	}

	Page struct {
		Connections []Connection    `json:"connections"`
		Pagination  core.Pagination `json:"pagination"`
	}
)

func (qf *QueryFilter) Validate(validate *validator.Validate) error {
	qf.Search = core.CleanString(qf.Search)
	qf.Location = core.CleanString(qf.Location)
	qf.Skill = core.CleanString(qf.Skill)
	if err := validate.Struct(qf); err != nil {
		return err
	}
	qf.Clean()
	return nil
}

type (
	Service interface {
		Query(ctx context.Context, viewer user.User, filter QueryFilter) (Page, error)
		// Profile returns the public profile of `userID`. viewer is nil for anonymous requests.
		Profile(ctx context.Context, viewer *user.User, userID string) (PublicProfile, error)
	}

	service struct {
		userSvc      user.Service
		reviewSvc    review.Service
		exchangeRepo exchange.Repository
	}
)

var _ Service = (*service)(nil)

func NewService(userSvc user.Service, reviewSvc review.Service, exchangeRepo exchange.Repository) Service {
	return &service{userSvc: userSvc, reviewSvc: reviewSvc, exchangeRepo: exchangeRepo}
}

// IsMatch reports whether `candidate` teaches something `viewer` wants to learn and
// wants to learn something `viewer` teaches.
func IsMatch(viewer, candidate user.User) bool {
	return intersects(candidate.TeachSkillNames(), viewer.LearnSkillNames()) &&
		intersects(candidate.LearnSkillNames(), viewer.TeachSkillNames())
}

func intersects(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[strings.ToLower(s)] = true
	}
	for _, s := range b {
		if set[strings.ToLower(s)] {
			return true
		}
	}
	return false
}

func (svc *service) Query(ctx context.Context, viewer user.User, filter QueryFilter) (Page, error) {
	page := Page{Connections: []Connection{}, Pagination: core.NewPagination(filter.PageQuery, 0)}
	if len(viewer.SkillsToTeach) == 0 || len(viewer.SkillsToLearn) == 0 {
		return page, nil
	}

	partners, err := svc.exchangeRepo.ListPartnerIDs(ctx, viewer.ID)
	if err != nil {
		return Page{}, errors.Wrap(err, "listing exchange partners")
	}
	candidates, err := svc.userSvc.Query(ctx, user.QueryFilter{
		ExcludeIDs: append(partners, viewer.ID),
		Search:     filter.Search,
		Location:   filter.Location,
		Skill:      filter.Skill,
	})
	if err != nil {
		return Page{}, errors.Wrap(err, "querying candidates")
	}

	matches := make([]user.User, 0, len(candidates))
	for _, c := range candidates {
		if IsMatch(viewer, c) {
			matches = append(matches, c)
		}
	}

	start, end := filter.Bounds(len(matches))
	for _, m := range matches[start:end] {
		summary, err := svc.reviewSvc.Summary(ctx, m.ID)
		if err != nil {
			return Page{}, err
		}
		p := m.Party()
		page.Connections = append(page.Connections, Connection{
			ID:              m.ID,
			AvatarURL:       p.AvatarURL,
			Initials:        p.Initials,
			Name:            p.Name,
			Location:        m.Location(),
			Rating:          summary.AverageRating,
			NumberOfReviews: summary.NumberOfReviews,
			Bio:             m.About,
			Website:         m.Website,
			TeachingSkills:  m.TeachSkillNames(),
			LearningSkills:  m.LearnSkillNames(),
		})
	}
	page.Pagination = core.NewPagination(filter.PageQuery, len(matches))
	return page, nil
}

func (svc *service) Profile(ctx context.Context, viewer *user.User, userID string) (PublicProfile, error) {
	usr, err := svc.userSvc.GetByID(ctx, userID)
	if err != nil {
		return PublicProfile{}, err
	}
	summary, err := svc.reviewSvc.Summary(ctx, usr.ID)
	if err != nil {
		return PublicProfile{}, err
	}

	p := usr.Party()
	profile := PublicProfile{
		ID:                 usr.ID,
		FirstName:          usr.FirstName,
		LastName:           usr.LastName,
		Username:           usr.Username,
		Name:               p.Name,
		Initials:           p.Initials,
		AvatarURL:          p.AvatarURL,
		About:              usr.About,
		Location:           usr.Location(),
		Website:            usr.Website,
		Language:           usr.Language,
		Timezone:           usr.Timezone,
		WeeklyAvailability: usr.WeeklyAvailability,
		Skills:             usr.SkillsToTeach,
		Interests:          usr.SkillsToLearn,
		Rating:             summary.AverageRating,
		NumberOfReviews:    summary.NumberOfReviews,
		MemberSince:        usr.CreatedAt,
	}
	if viewer == nil || viewer.ID == usr.ID {
		return profile, nil
	}

	status := StatusNone
	req, err := svc.exchangeRepo.GetLatestRequestBetween(ctx, viewer.ID, usr.ID)
	switch {
	case err == nil:
		status = req.Status
	case errors.Cause(err) != exchange.ErrNotFound:
		return PublicProfile{}, errors.Wrap(err, "getting connection status")
	}
	profile.ConnectionStatus = &status
	return profile, nil
}
