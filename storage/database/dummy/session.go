package dummydb

import (
	"context"

	"github.com/skillbarter/backend/core/session"
)

type sessionRepository struct {
	db *sessionTable
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) session.Repository {
	return &sessionRepository{db: db.session}
}

func (repo *sessionRepository) CreateSessions(_ context.Context, sessions []session.Session) ([]session.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	created := make([]session.Session, 0, len(sessions))
	for _, s := range sessions {
		s.ID = newID()
		repo.db.table[s.ID] = &s
		created = append(created, s)
	}
	return created, nil
}

func (repo *sessionRepository) GetSession(_ context.Context, id string) (session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.table[id]; ok {
		return *s, nil
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *sessionRepository) ListSessions(_ context.Context, userID string) ([]session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sessions := make([]session.Session, 0)
	for _, s := range repo.db.table {
		if s.IsParticipant(userID) {
			sessions = append(sessions, *s)
		}
	}
	session.SortSessions(sessions)
	return sessions, nil
}

func (repo *sessionRepository) UpdateSession(_ context.Context, s session.Session) (session.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[s.ID]; !ok {
		return session.Session{}, session.ErrNotFound
	}
	repo.db.table[s.ID] = &s
	return s, nil
}
