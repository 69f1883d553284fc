package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/skillbarter/backend/core/contact"
)

const contactColumns = "id, user_a_id, user_b_id, exchange_request_id, unread_a, unread_b, created_at, updated_at"

type contactRow struct {
	ID                string      `db:"id"`
	UserAID           string      `db:"user_a_id"`
	UserBID           string      `db:"user_b_id"`
	ExchangeRequestID null.String `db:"exchange_request_id"`
	UnreadA           int         `db:"unread_a"`
	UnreadB           int         `db:"unread_b"`
	CreatedAt         time.Time   `db:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at"`
}

func (r contactRow) toContact() contact.Contact {
	return contact.Contact{
		ID:                r.ID,
		UserAID:           r.UserAID,
		UserBID:           r.UserBID,
		ExchangeRequestID: r.ExchangeRequestID.String,
		UnreadA:           r.UnreadA,
		UnreadB:           r.UnreadB,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

type contactRepository struct {
	db *sqlx.DB
}

var _ contact.Repository = (*contactRepository)(nil) // interface compliance check

func NewContactRepository(db *sqlx.DB) contact.Repository {
	return &contactRepository{db: db}
}

func (repo *contactRepository) CreateContact(ctx context.Context, c contact.Contact) (contact.Contact, error) {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO contacts (`+contactColumns+`) VALUES (:id, :user_a_id, :user_b_id, :exchange_request_id,
		:unread_a, :unread_b, :created_at, :updated_at)`,
		contactRow{
			ID:                c.ID,
			UserAID:           c.UserAID,
			UserBID:           c.UserBID,
			ExchangeRequestID: optString(c.ExchangeRequestID),
			UnreadA:           c.UnreadA,
			UnreadB:           c.UnreadB,
			CreatedAt:         c.CreatedAt,
			UpdatedAt:         c.UpdatedAt,
		},
	)
	if err != nil {
		if isUniqueViolation(err) {
			return contact.Contact{}, contact.ErrExists
		}
		return contact.Contact{}, errors.Wrap(err, "inserting contact")
	}
	return c, nil
}

func (repo *contactRepository) GetContact(ctx context.Context, id string) (contact.Contact, error) {
	var row contactRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+contactColumns+" FROM contacts WHERE id = $1", id); err != nil {
		if noRows(err) {
			return contact.Contact{}, contact.ErrNotFound
		}
		return contact.Contact{}, errors.Wrap(err, "selecting contact")
	}
	return row.toContact(), nil
}

func (repo *contactRepository) ListContacts(ctx context.Context, userID string) ([]contact.Contact, error) {
	var rows []contactRow
	err := repo.db.SelectContext(ctx, &rows,
		"SELECT "+contactColumns+" FROM contacts WHERE user_a_id = $1 OR user_b_id = $1 ORDER BY created_at DESC",
		userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting contacts")
	}
	contacts := make([]contact.Contact, 0, len(rows))
	for _, r := range rows {
		contacts = append(contacts, r.toContact())
	}
	return contacts, nil
}
