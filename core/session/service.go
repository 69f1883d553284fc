package session

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound         = core.NewNotFoundError("Session not found")
	ErrAlreadyCompleted = core.NewBadRequestError("Session has already been completed")
	ErrNotStarted       = core.NewBadRequestError("Session has not started yet")
	errInvalidSession   = errors.New("invalid session")
)

type (
	Repository interface {
		// CreateSessions inserts all sessions at once.
		CreateSessions(ctx context.Context, sessions []Session) ([]Session, error)
		GetSession(ctx context.Context, id string) (Session, error)
		// ListSessions returns every session where `userID` is instructor or learner.
		ListSessions(ctx context.Context, userID string) ([]Session, error)
		UpdateSession(ctx context.Context, s Session) (Session, error)
	}

	Service interface {
		CreateSessions(ctx context.Context, sessions []Session) ([]Session, error)
		Query(ctx context.Context, usr user.User, filter QueryFilter) (Page, error)
		LearningProgress(ctx context.Context, usr user.User) ([]Progress, error)
		Complete(ctx context.Context, usr user.User, id string) (View, error)
	}

	service struct {
		repo     Repository
		userSvc  user.Service
		validate *validator.Validate
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, userSvc user.Service, validate *validator.Validate) Service {
	return &service{repo: repo, userSvc: userSvc, validate: validate}
}

func (svc *service) CreateSessions(ctx context.Context, sessions []Session) ([]Session, error) {
	now := NowFunc().UTC()
	for i := range sessions {
		if err := sessions[i].Validate(svc.validate); err != nil {
			return nil, err
		}
		sessions[i].Status = sessions[i].DeriveStatus(now)
		sessions[i].CreatedAt = now
		sessions[i].UpdatedAt = now
	}
	return svc.repo.CreateSessions(ctx, sessions)
}

// SortSessions orders upcoming sessions by ascending date, followed by completed ones by descending date.
func SortSessions(sessions []Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if a.Completed != b.Completed {
			return !a.Completed
		}
		if a.Completed {
			return a.ScheduledDate.After(b.ScheduledDate)
		}
		return a.ScheduledDate.Before(b.ScheduledDate)
	})
}

// list returns the user's sessions with their status derived at now.
func (svc *service) list(ctx context.Context, userID string) ([]Session, error) {
	sessions, err := svc.repo.ListSessions(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "listing sessions")
	}
	now := NowFunc()
	for i := range sessions {
		sessions[i].Status = sessions[i].DeriveStatus(now)
	}
	SortSessions(sessions)
	return sessions, nil
}

func (svc *service) views(ctx context.Context, userID string, sessions ...Session) ([]View, error) {
	ids := make([]string, 0, 2*len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.InstructorID, s.LearnerID)
	}
	parties, err := svc.userSvc.Parties(ctx, ids...)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, View{
			Session:    s,
			Instructor: parties[s.InstructorID],
			Learner:    parties[s.LearnerID],
			UserRole:   s.Role(userID),
		})
	}
	return views, nil
}

func (svc *service) Query(ctx context.Context, usr user.User, filter QueryFilter) (Page, error) {
	sessions, err := svc.list(ctx, usr.ID)
	if err != nil {
		return Page{}, err
	}

	var dash Dashboard
	filtered := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		dash.Total++
		switch s.Status {
		case StatusActive:
			dash.Active++
		case StatusScheduled:
			dash.Scheduled++
		case StatusCompleted:
			dash.Completed++
		}
		if filter.Status == "" || filter.Status == s.Status {
			filtered = append(filtered, s)
		}
	}

	start, end := filter.Bounds(len(filtered))
	views, err := svc.views(ctx, usr.ID, filtered[start:end]...)
	if err != nil {
		return Page{}, err
	}
	return Page{
		Sessions:   views,
		Dashboard:  dash,
		Pagination: core.NewPagination(filter.PageQuery, len(filtered)),
	}, nil
}

func (svc *service) LearningProgress(ctx context.Context, usr user.User) ([]Progress, error) {
	sessions, err := svc.list(ctx, usr.ID)
	if err != nil {
		return nil, err
	}

	type key struct{ skill, instructor string }
	var (
		keys        []key
		progress    = map[key]*Progress{}
		instructors []string
	)
	for i, s := range sessions {
		if s.LearnerID != usr.ID {
			continue
		}
		k := key{s.Skill, s.InstructorID}
		p, ok := progress[k]
		if !ok {
			p = &Progress{Skill: s.Skill}
			progress[k] = p
			keys = append(keys, k)
			instructors = append(instructors, s.InstructorID)
		}
		p.TotalSessions++
		if s.Completed {
			p.CompletedSessions++
		} else if p.NextSession == nil {
			// sessions are sorted, so the first pending one is the next
			p.NextSession = &sessions[i]
		}
	}

	parties, err := svc.userSvc.Parties(ctx, instructors...)
	if err != nil {
		return nil, err
	}
	result := make([]Progress, 0, len(keys))
	for _, k := range keys {
		p := progress[k]
		p.Instructor = parties[k.instructor]
		p.Progress = p.CompletedSessions * 100 / p.TotalSessions
		result = append(result, *p)
	}
	return result, nil
}

func (svc *service) Complete(ctx context.Context, usr user.User, id string) (View, error) {
	s, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return View{}, err
	}
	if !s.IsParticipant(usr.ID) {
		return View{}, ErrNotFound
	}
	now := NowFunc().UTC()
	if s.Completed {
		return View{}, ErrAlreadyCompleted
	}
	if now.Before(s.ScheduledDate) {
		return View{}, ErrNotStarted
	}

	s.Completed = true
	s.CompletedAt = &now
	s.Status = StatusCompleted
	s.UpdatedAt = now
	if s, err = svc.repo.UpdateSession(ctx, s); err != nil {
		return View{}, errors.Wrap(err, "completing session")
	}
	views, err := svc.views(ctx, usr.ID, s)
	if err != nil {
		return View{}, err
	}
	return views[0], nil
}
