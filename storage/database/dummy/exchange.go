package dummydb

import (
	"context"
	"sort"

	"github.com/skillbarter/backend/core/exchange"
)

type exchangeRepository struct {
	db *exchangeTable
}

var _ exchange.Repository = (*exchangeRepository)(nil) // interface compliance check

func NewExchangeRepository(db *DB) exchange.Repository {
	return &exchangeRepository{db: db.exchange}
}

// involving returns the requests involving `userID`, newest first.
func (repo *exchangeRepository) involving(userID string) []exchange.Request {
	reqs := make([]exchange.Request, 0)
	for _, r := range repo.db.table {
		if r.IsParticipant(userID) {
			reqs = append(reqs, *r)
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].CreatedAt.After(reqs[j].CreatedAt) })
	return reqs
}

func (repo *exchangeRepository) CreateRequest(_ context.Context, r exchange.Request) (exchange.Request, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	r.ID = newID()
	repo.db.table[r.ID] = &r
	return r, nil
}

func (repo *exchangeRepository) GetRequest(_ context.Context, id string) (exchange.Request, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if r, ok := repo.db.table[id]; ok {
		return *r, nil
	}
	return exchange.Request{}, exchange.ErrNotFound
}

func (repo *exchangeRepository) QueryRequests(
	_ context.Context, userID string, filter exchange.QueryFilter,
) ([]exchange.Request, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	reqs := make([]exchange.Request, 0)
	for _, r := range repo.involving(userID) {
		if filter.Status == "" || r.Status == filter.Status {
			reqs = append(reqs, r)
		}
	}
	start, end := filter.Bounds(len(reqs))
	return reqs[start:end], len(reqs), nil
}

func (repo *exchangeRepository) UpdateRequest(_ context.Context, r exchange.Request) (exchange.Request, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[r.ID]; !ok {
		return exchange.Request{}, exchange.ErrNotFound
	}
	repo.db.table[r.ID] = &r
	return r, nil
}

func (repo *exchangeRepository) HasPendingRequest(_ context.Context, requesterID, receiverID string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, r := range repo.db.table {
		if r.RequesterID == requesterID && r.ReceiverID == receiverID && r.Status == exchange.StatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (repo *exchangeRepository) GetLatestRequestBetween(_ context.Context, userA, userB string) (exchange.Request, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, r := range repo.involving(userA) {
		if r.IsParticipant(userB) {
			return r, nil
		}
	}
	return exchange.Request{}, exchange.ErrNotFound
}

func (repo *exchangeRepository) ListPartnerIDs(_ context.Context, userID string) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	seen := make(map[string]bool)
	ids := make([]string, 0)
	for _, r := range repo.involving(userID) {
		other := r.RequesterID
		if other == userID {
			other = r.ReceiverID
		}
		if !seen[other] {
			seen[other] = true
			ids = append(ids, other)
		}
	}
	return ids, nil
}

func (repo *exchangeRepository) CountRequests(_ context.Context, userID, status, role string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var n int
	for _, r := range repo.involving(userID) {
		if r.Status == status && (role == "" || r.Role(userID) == role) {
			n++
		}
	}
	return n, nil
}

func (repo *exchangeRepository) SkillCounts(_ context.Context) (map[string]int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	counts := make(map[string]int)
	for _, r := range repo.db.table {
		counts[r.TeachingSkill]++
		counts[r.LearningSkill]++
	}
	return counts, nil
}
