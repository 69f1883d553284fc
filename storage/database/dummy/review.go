package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/review"
)

type reviewRepository struct {
	db *reviewTable
}

var _ review.Repository = (*reviewRepository)(nil) // interface compliance check

func NewReviewRepository(db *DB) review.Repository {
	return &reviewRepository{db: db.review}
}

func (repo *reviewRepository) CreateReview(_ context.Context, r review.Review) (review.Review, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.table {
		if existing.ReviewedUserID == r.ReviewedUserID && existing.ReviewerID == r.ReviewerID &&
			strings.EqualFold(existing.Skill, r.Skill) {
			return review.Review{}, review.ErrDuplicate
		}
	}
	r.ID = newID()
	repo.db.table[r.ID] = &r
	return r, nil
}

func (repo *reviewRepository) QueryReviews(_ context.Context, userID string, pq core.PageQuery) ([]review.Review, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	reviews := make([]review.Review, 0)
	for _, r := range repo.db.table {
		if r.ReviewedUserID == userID {
			reviews = append(reviews, *r)
		}
	}
	sort.Slice(reviews, func(i, j int) bool { return reviews[i].CreatedAt.After(reviews[j].CreatedAt) })
	start, end := pq.Bounds(len(reviews))
	return reviews[start:end], len(reviews), nil
}

func (repo *reviewRepository) RatingSummary(_ context.Context, userID string) (int, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var sum, count int
	for _, r := range repo.db.table {
		if userID == "" || r.ReviewedUserID == userID {
			sum += r.Rating
			count++
		}
	}
	return sum, count, nil
}
