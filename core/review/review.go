package review

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/notification"
	"github.com/skillbarter/backend/core/user"
)

const SuccessMessage = "Thank you for sharing your feedback!"

var (
	NowFunc = time.Now // mockable

	// errors
	ErrSelfReview = core.NewBadRequestError("You cannot review yourself")
	ErrDuplicate  = errors.New("review already exists")
)

type Review struct {
	ID             string    `json:"id"`
	ReviewedUserID string    `json:"reviewed_user_id"`
	ReviewerID     string    `json:"reviewer_id"`
	Skill          string    `json:"skill"`
	Rating         int       `json:"rating"`
	Comment        string    `json:"comment"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

type View struct {
	Review
	Reviewer user.Party `json:"reviewer"`
}

type NewReview struct {
	Skill   string `json:"skill" validate:"required,max=100"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"omitempty,max=1000"`
}

func (nr *NewReview) Validate(validate *validator.Validate) error {
	nr.Skill = core.CleanString(nr.Skill)
	nr.Comment = core.CleanString(nr.Comment)
	return validate.Struct(nr)
}

type (
	Created struct {
		Success string `json:"success"`
		Review  View   `json:"review"`
	}

	Summary struct {
		AverageRating   float64 `json:"average_rating"`
		NumberOfReviews int     `json:"number_of_reviews"`
	}

	Page struct {
		Reviews    []View          `json:"reviews"`
		Pagination core.Pagination `json:"pagination"`
	}
)

type (
	Repository interface {
		// CreateReview returns ErrDuplicate when the reviewer already reviewed the user for the skill.
		CreateReview(ctx context.Context, r Review) (Review, error)
		// QueryReviews returns the requested page of the reviews received by `userID`, newest first,
		// along with their total count.
		QueryReviews(ctx context.Context, userID string, pq core.PageQuery) ([]Review, int, error)
		// RatingSummary returns the sum and the count of the ratings received by `userID`.
		// An empty `userID` summarizes every review.
		RatingSummary(ctx context.Context, userID string) (sum int, count int, err error)
	}

	Service interface {
		Create(ctx context.Context, reviewer user.User, reviewedID string, data NewReview) (Created, error)
		Query(ctx context.Context, userID string, pq core.PageQuery) (Page, error)
		Summary(ctx context.Context, userID string) (Summary, error)
	}

	service struct {
		repo     Repository
		userSvc  user.Service
		notifSvc notification.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, userSvc user.Service, notifSvc notification.Service) Service {
	return &service{repo: repo, userSvc: userSvc, notifSvc: notifSvc}
}

func (svc *service) Create(ctx context.Context, reviewer user.User, reviewedID string, data NewReview) (Created, error) {
	if reviewer.ID == reviewedID {
		return Created{}, ErrSelfReview
	}
	reviewed, err := svc.userSvc.GetByID(ctx, reviewedID)
	if err != nil {
		return Created{}, err
	}

	now := NowFunc().UTC()
	r, err := svc.repo.CreateReview(ctx, Review{
		ReviewedUserID: reviewed.ID,
		ReviewerID:     reviewer.ID,
		Skill:          data.Skill,
		Rating:         data.Rating,
		Comment:        data.Comment,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		if errors.Cause(err) == ErrDuplicate {
			return Created{}, core.NewBadRequestError(
				fmt.Sprintf("You have already reviewed this user for the skill %q", data.Skill),
			)
		}
		return Created{}, errors.Wrap(err, "creating review")
	}

	svc.notifSvc.Notify(ctx, notification.Job{
		UserID:  reviewed.ID,
		Type:    notification.TypeReviewAndRating,
		Title:   "New Review",
		Message: fmt.Sprintf("%s rated your %s skills %d/5", reviewer.FullName(), r.Skill, r.Rating),
		Data: map[string]string{
			"reviewId":   r.ID,
			"reviewerId": reviewer.ID,
		},
		Template: &notification.Template{
			EmailSubject:  "You received a new review - Skill Barter",
			EmailTemplate: "review_received",
			EmailData: map[string]string{
				"reviewer": reviewer.FullName(),
				"skill":    r.Skill,
				"rating":   strconv.Itoa(r.Rating),
			},
		},
	})

	return Created{
		Success: SuccessMessage,
		Review:  View{Review: r, Reviewer: reviewer.Party()},
	}, nil
}

func (svc *service) Query(ctx context.Context, userID string, pq core.PageQuery) (Page, error) {
	reviews, total, err := svc.repo.QueryReviews(ctx, userID, pq)
	if err != nil {
		return Page{}, errors.Wrap(err, "querying reviews")
	}
	ids := make([]string, 0, len(reviews))
	for _, r := range reviews {
		ids = append(ids, r.ReviewerID)
	}
	parties, err := svc.userSvc.Parties(ctx, ids...)
	if err != nil {
		return Page{}, err
	}
	views := make([]View, 0, len(reviews))
	for _, r := range reviews {
		views = append(views, View{Review: r, Reviewer: parties[r.ReviewerID]})
	}
	return Page{Reviews: views, Pagination: core.NewPagination(pq, total)}, nil
}

func (svc *service) Summary(ctx context.Context, userID string) (Summary, error) {
	sum, count, err := svc.repo.RatingSummary(ctx, userID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "summarizing ratings")
	}
	if count == 0 {
		return Summary{}, nil
	}
	return Summary{
		AverageRating:   core.RoundTo1(float64(sum) / float64(count)),
		NumberOfReviews: count,
	}, nil
}
