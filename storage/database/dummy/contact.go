package dummydb

import (
	"context"
	"sort"

	"github.com/skillbarter/backend/core/contact"
)

type contactRepository struct {
	db *contactTable
}

var _ contact.Repository = (*contactRepository)(nil) // interface compliance check

func NewContactRepository(db *DB) contact.Repository {
	return &contactRepository{db: db.contact}
}

func (repo *contactRepository) CreateContact(_ context.Context, c contact.Contact) (contact.Contact, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[c.ID]; ok {
		return contact.Contact{}, contact.ErrExists
	}
	repo.db.table[c.ID] = &c
	return c, nil
}

func (repo *contactRepository) GetContact(_ context.Context, id string) (contact.Contact, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.table[id]; ok {
		return *c, nil
	}
	return contact.Contact{}, contact.ErrNotFound
}

func (repo *contactRepository) ListContacts(_ context.Context, userID string) ([]contact.Contact, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	contacts := make([]contact.Contact, 0)
	for _, c := range repo.db.table {
		if c.UserAID == userID || c.UserBID == userID {
			contacts = append(contacts, *c)
		}
	}
	sort.Slice(contacts, func(i, j int) bool { return contacts[i].CreatedAt.After(contacts[j].CreatedAt) })
	return contacts, nil
}
