package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/review"
)

const reviewColumns = "id, reviewed_user_id, reviewer_id, skill, rating, comment, created_at, updated_at"

type reviewRow struct {
	ID             string    `db:"id"`
	ReviewedUserID string    `db:"reviewed_user_id"`
	ReviewerID     string    `db:"reviewer_id"`
	Skill          string    `db:"skill"`
	Rating         int       `db:"rating"`
	Comment        string    `db:"comment"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

type reviewRepository struct {
	db *sqlx.DB
}

var _ review.Repository = (*reviewRepository)(nil) // interface compliance check

func NewReviewRepository(db *sqlx.DB) review.Repository {
	return &reviewRepository{db: db}
}

func (repo *reviewRepository) CreateReview(ctx context.Context, r review.Review) (review.Review, error) {
	r.ID = newID()
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO reviews (`+reviewColumns+`) VALUES (:id, :reviewed_user_id, :reviewer_id, :skill, :rating,
		:comment, :created_at, :updated_at)`,
		reviewRow(r),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return review.Review{}, review.ErrDuplicate
		}
		return review.Review{}, errors.Wrap(err, "inserting review")
	}
	return r, nil
}

func (repo *reviewRepository) QueryReviews(
	ctx context.Context, userID string, page core.PageQuery,
) ([]review.Review, int, error) {
	w := &where{}
	w.add("reviewed_user_id = ?", userID)

	var total int
	if err := repo.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM reviews"+w.String(), w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting reviews")
	}
	var rows []reviewRow
	limit, offset := w.arg(page.Limit), w.arg(page.Offset())
	err := repo.db.SelectContext(ctx, &rows,
		"SELECT "+reviewColumns+" FROM reviews"+w.String()+" ORDER BY created_at DESC LIMIT "+limit+" OFFSET "+offset,
		w.args...,
	)
	if err != nil {
		return nil, 0, errors.Wrap(err, "selecting reviews")
	}
	reviews := make([]review.Review, 0, len(rows))
	for _, r := range rows {
		rv := review.Review(r)
		rv.CreatedAt, rv.UpdatedAt = rv.CreatedAt.UTC(), rv.UpdatedAt.UTC()
		reviews = append(reviews, rv)
	}
	return reviews, total, nil
}

func (repo *reviewRepository) RatingSummary(ctx context.Context, userID string) (int, int, error) {
	w := &where{}
	if userID != "" {
		w.add("reviewed_user_id = ?", userID)
	}
	var res struct {
		Sum   int `db:"sum"`
		Count int `db:"count"`
	}
	err := repo.db.GetContext(ctx, &res,
		"SELECT COALESCE(SUM(rating), 0) AS sum, COUNT(*) AS count FROM reviews"+w.String(), w.args...,
	)
	if err != nil {
		return 0, 0, errors.Wrap(err, "summarizing ratings")
	}
	return res.Sum, res.Count, nil
}
