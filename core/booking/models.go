package booking

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/exchange"
	"github.com/skillbarter/backend/core/user"
)

// Booking statuses
const (
	StatusDraft            = "draft"
	StatusPending          = "pending"
	StatusAccepted         = "accepted"
	StatusChangesRequested = "changes_requested"
	StatusChangesMade      = "changes_made"
)

// User roles
const (
	RoleProposer  = "proposer"
	RoleRecipient = "recipient"
)

// Schedule describes the recurrence of the sessions of a booking.
type Schedule struct {
	DaysPerWeek   int      `json:"days_per_week" validate:"min=1,max=7"`
	DaysOfWeek    []string `json:"days_of_week" validate:"min=1,max=7,unique,dive,weekday"`
	StartTime     string   `json:"start_time" validate:"required,hhmm"`
	Duration      int      `json:"duration" validate:"min=15,max=480"` // minutes
	TotalSessions int      `json:"total_sessions" validate:"min=1,max=1000"`
}

// DefaultSchedule is the schedule of freshly created drafts.
func DefaultSchedule() Schedule {
	return Schedule{
		DaysPerWeek:   1,
		DaysOfWeek:    []string{"Monday"},
		StartTime:     "09:00",
		Duration:      60,
		TotalSessions: 1,
	}
}

// Booking is the negotiated schedule for one teaching direction of an exchange.
// The proposer teaches Skill to the recipient.
type Booking struct {
	ID                string `json:"id"`
	ExchangeRequestID string `json:"exchange_request_id"`
	ProposerID        string `json:"proposer_id"`
	RecipientID       string `json:"recipient_id"`
	Skill             string `json:"skill"`
	Status            string `json:"status"`
	Schedule
	Message   string    `json:"message"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (b Booking) IsParticipant(userID string) bool {
	return userID == b.ProposerID || userID == b.RecipientID
}

func (b Booking) Role(userID string) string {
	switch userID {
	case b.ProposerID:
		return RoleProposer
	case b.RecipientID:
		return RoleRecipient
	}
	return ""
}

// VisibleTo reports whether `userID` can see the booking. Drafts are hidden from recipients.
func (b Booking) VisibleTo(userID string) bool {
	return userID == b.ProposerID || (userID == b.RecipientID && b.Status != StatusDraft)
}

type View struct {
	Booking
	ExchangeRequest exchange.Summary `json:"exchange_request"`
	Proposer        user.Party       `json:"proposer"`
	Recipient       user.Party       `json:"recipient"`
	UserRole        string           `json:"user_role"`
}

// Update is a partial update of a Booking. Nil fields are left untouched.
type Update struct {
	DaysPerWeek   *int      `json:"days_per_week" validate:"omitempty,min=1,max=7"`
	DaysOfWeek    *[]string `json:"days_of_week" validate:"omitempty,min=1,max=7,unique,dive,weekday"`
	StartTime     *string   `json:"start_time" validate:"omitempty,hhmm"`
	Duration      *int      `json:"duration" validate:"omitempty,min=15,max=480"`
	TotalSessions *int      `json:"total_sessions" validate:"omitempty,min=1,max=1000"`
	Message       *string   `json:"message" validate:"omitempty,max=500"`
}

func (u *Update) Validate(validate *validator.Validate) error {
	core.CleanStringPtr(u.StartTime)
	core.CleanStringPtr(u.Message)
	if u.DaysOfWeek != nil {
		days := make([]string, 0, len(*u.DaysOfWeek))
		for _, d := range *u.DaysOfWeek {
			days = append(days, core.CleanString(d))
		}
		*u.DaysOfWeek = days
	}
	return validate.Struct(u)
}

// ChangesSchedule reports whether any schedule field is set.
func (u Update) ChangesSchedule() bool {
	return u.DaysPerWeek != nil || u.DaysOfWeek != nil || u.StartTime != nil || u.Duration != nil ||
		u.TotalSessions != nil
}

// Apply copies the provided schedule fields of `u` onto `s`.
func (u Update) Apply(s Schedule) Schedule {
	if u.DaysPerWeek != nil {
		s.DaysPerWeek = *u.DaysPerWeek
	}
	if u.DaysOfWeek != nil {
		s.DaysOfWeek = append([]string{}, *u.DaysOfWeek...)
	}
	if u.StartTime != nil {
		s.StartTime = *u.StartTime
	}
	if u.Duration != nil {
		s.Duration = *u.Duration
	}
	if u.TotalSessions != nil {
		s.TotalSessions = *u.TotalSessions
	}
	return s
}

type Page struct {
	DraftBookings            []View          `json:"draft_bookings"`
	PendingBookings          []View          `json:"pending_bookings"`
	ChangesRequestedBookings []View          `json:"changes_requested_bookings"`
	ChangesMadeBookings      []View          `json:"changes_made_bookings"`
	AcceptedBookings         []View          `json:"accepted_bookings"`
	Pagination               core.Pagination `json:"pagination"`
}

func newPage(views []View, pagination core.Pagination) Page {
	p := Page{
		DraftBookings:            []View{},
		PendingBookings:          []View{},
		ChangesRequestedBookings: []View{},
		ChangesMadeBookings:      []View{},
		AcceptedBookings:         []View{},
		Pagination:               pagination,
	}
	for _, v := range views {
		switch v.Status {
		case StatusDraft:
			p.DraftBookings = append(p.DraftBookings, v)
		case StatusPending:
			p.PendingBookings = append(p.PendingBookings, v)
		case StatusChangesRequested:
			p.ChangesRequestedBookings = append(p.ChangesRequestedBookings, v)
		case StatusChangesMade:
			p.ChangesMadeBookings = append(p.ChangesMadeBookings, v)
		case StatusAccepted:
			p.AcceptedBookings = append(p.AcceptedBookings, v)
		}
	}
	return p
}
