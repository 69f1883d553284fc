package session

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/user"
)

// Session types
const (
	TypeLearning = "learning"
	TypeTeaching = "teaching"
)

// Session statuses
const (
	StatusScheduled = "scheduled"
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Session locations
const (
	LocationOnline   = "online"
	LocationInPerson = "in_person"
)

// User roles
const (
	RoleInstructor = "instructor"
	RoleLearner    = "learner"
)

const (
	MinDuration = 15
	MaxDuration = 480
)

type Session struct {
	ID                string     `json:"id"`
	SessionBookingID  string     `json:"session_booking_id"`
	ExchangeRequestID string     `json:"exchange_request_id"`
	InstructorID      string     `json:"instructor_id"`
	LearnerID         string     `json:"learner_id"`
	Skill             string     `json:"skill"`
	Type              string     `json:"type"`
	Status            string     `json:"status"`
	ScheduledDate     time.Time  `json:"scheduled_date"` // UTC
	Duration          int        `json:"duration"`       // minutes
	Description       string     `json:"description"`
	Location          string     `json:"location"`
	MeetingLink       string     `json:"meeting_link"`
	Address           string     `json:"address"`
	Completed         bool       `json:"-"`
	CompletedAt       *time.Time `json:"completed_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// DeriveStatus returns the status of the session at `now`.
func (s Session) DeriveStatus(now time.Time) string {
	switch {
	case s.Completed:
		return StatusCompleted
	case now.Before(s.ScheduledDate):
		return StatusScheduled
	default:
		return StatusActive
	}
}

func (s Session) IsParticipant(userID string) bool {
	return userID == s.InstructorID || userID == s.LearnerID
}

func (s Session) Role(userID string) string {
	switch userID {
	case s.InstructorID:
		return RoleInstructor
	case s.LearnerID:
		return RoleLearner
	}
	return ""
}

// Validate checks the invariants of a new session.
func (s Session) Validate(validate *validator.Validate) error {
	var flds []core.FieldError
	add := func(field, msg string) {
		flds = append(flds, core.FieldError{Field: field, Error: msg})
	}
	if s.InstructorID == s.LearnerID {
		add("learner", "learner must differ from instructor")
	}
	if s.Type != TypeLearning && s.Type != TypeTeaching {
		add("type", "type must be one of [learning teaching]")
	}
	if s.Duration < MinDuration || s.Duration > MaxDuration {
		add("duration", "duration must be between 15 and 480")
	}
	if len(s.Description) > 500 {
		add("description", "description must be a maximum of 500 characters in length")
	}
	switch s.Location {
	case LocationOnline:
		if s.MeetingLink != "" && validate.Var(s.MeetingLink, "httpurl") != nil {
			add("meeting_link", "meeting_link must be a valid URL")
		}
	case LocationInPerson:
		if s.Address == "" {
			add("address", "address is required for in-person sessions")
		} else if len(s.Address) > 200 {
			add("address", "address must be a maximum of 200 characters in length")
		}
	default:
		add("location", "location must be one of [online in_person]")
	}
	if len(flds) > 0 {
		return core.NewValidationError(errInvalidSession, flds...)
	}
	return nil
}

type View struct {
	Session
	Instructor user.Party `json:"instructor"`
	Learner    user.Party `json:"learner"`
	UserRole   string     `json:"user_role"`
}

type Dashboard struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Scheduled int `json:"scheduled"`
	Completed int `json:"completed"`
}

type QueryFilter struct {
	core.PageQuery
	Status string `query:"status" validate:"omitempty,oneof=scheduled active completed"`
}

func (qf *QueryFilter) Validate(validate *validator.Validate) error {
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	if err := validate.Struct(qf); err != nil {
		return err
	}
	qf.Clean()
	return nil
}

type Page struct {
	Sessions   []View          `json:"sessions"`
	Dashboard  Dashboard       `json:"dashboard"`
	Pagination core.Pagination `json:"pagination"`
}

// Progress is the learning progress of a user on one skill with one instructor.
type Progress struct {
	Skill             string     `json:"skill"`
	Instructor        user.Party `json:"instructor"`
	TotalSessions     int        `json:"total_sessions"`
	CompletedSessions int        `json:"completed_sessions"`
	Progress          int        `json:"progress"` // percent
	NextSession       *Session   `json:"next_session"`
}
