package contact

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound = core.NewNotFoundError("Contact not found")
	ErrExists   = errors.New("contact already exists")
)

// Contact links two users that may chat with each other.
type Contact struct {
	ID                string    `json:"conversation_id"`
	UserAID           string    `json:"user_a_id"`
	UserBID           string    `json:"user_b_id"`
	ExchangeRequestID string    `json:"exchange_request_id"`
	UnreadA           int       `json:"-"`
	UnreadB           int       `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// UnreadFor returns the unread count of the participant `userID`.
func (c Contact) UnreadFor(userID string) int {
	if userID == c.UserAID {
		return c.UnreadA
	}
	return c.UnreadB
}

func (c Contact) Other(userID string) string {
	if userID == c.UserAID {
		return c.UserBID
	}
	return c.UserAID
}

// ConversationID is the two user ids sorted and joined with "_".
func ConversationID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}

type (
	Result struct {
		ConversationID string `json:"conversation_id"`
		Created        bool   `json:"created"`
	}

	View struct {
		ConversationID    string     `json:"conversation_id"`
		ExchangeRequestID string     `json:"exchange_request_id"`
		Contact           user.Party `json:"contact"`
		UnreadCount       int        `json:"unread_count"`
		CreatedAt         time.Time  `json:"created_at"`
	}

	Repository interface {
		// CreateContact returns ErrExists when the conversation already exists.
		CreateContact(ctx context.Context, c Contact) (Contact, error)
		GetContact(ctx context.Context, id string) (Contact, error)
		// ListContacts returns the contacts of the user, newest first.
		ListContacts(ctx context.Context, userID string) ([]Contact, error)
	}

	Service interface {
		// Ensure creates the contact between `a` and `b` unless it exists.
		Ensure(ctx context.Context, a, b, exchangeRequestID string) (Result, error)
		Query(ctx context.Context, userID string) ([]View, error)
	}

	service struct {
		repo    Repository
		userSvc user.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, userSvc user.Service) Service {
	return &service{repo: repo, userSvc: userSvc}
}

func (svc *service) Ensure(ctx context.Context, a, b, exchangeRequestID string) (Result, error) {
	id := ConversationID(a, b)
	_, err := svc.repo.GetContact(ctx, id)
	if err == nil {
		return Result{ConversationID: id}, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return Result{}, errors.Wrap(err, "getting contact")
	}

	ids := []string{a, b}
	sort.Strings(ids)
	now := NowFunc().UTC()
	_, err = svc.repo.CreateContact(ctx, Contact{
		ID:                id,
		UserAID:           ids[0],
		UserBID:           ids[1],
		ExchangeRequestID: exchangeRequestID,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	switch errors.Cause(err) {
	case nil:
		return Result{ConversationID: id, Created: true}, nil
	case ErrExists:
		return Result{ConversationID: id}, nil
	default:
		return Result{}, errors.Wrap(err, "creating contact")
	}
}

func (svc *service) Query(ctx context.Context, userID string) ([]View, error) {
	contacts, err := svc.repo.ListContacts(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "listing contacts")
	}
	ids := make([]string, 0, len(contacts))
	for _, c := range contacts {
		ids = append(ids, c.Other(userID))
	}
	parties, err := svc.userSvc.Parties(ctx, ids...)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(contacts))
	for _, c := range contacts {
		views = append(views, View{
			ConversationID:    c.ID,
			ExchangeRequestID: c.ExchangeRequestID,
			Contact:           parties[c.Other(userID)],
			UnreadCount:       c.UnreadFor(userID),
			CreatedAt:         c.CreatedAt,
		})
	}
	return views, nil
}
