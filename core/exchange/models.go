package exchange

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/user"
)

// Request statuses
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusDeclined = "declined"
)

// User roles
const (
	RoleRequester = "requester"
	RoleReceiver  = "receiver"
)

// Request is a proposal to trade one skill for another.
// The requester teaches TeachingSkill and learns LearningSkill.
type Request struct {
	ID            string    `json:"id"`
	RequesterID   string    `json:"requester_id"`
	ReceiverID    string    `json:"receiver_id"`
	Message       string    `json:"message"`
	TeachingSkill string    `json:"teaching_skill"`
	LearningSkill string    `json:"learning_skill"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

func (r Request) IsParticipant(userID string) bool {
	return userID == r.RequesterID || userID == r.ReceiverID
}

// Role returns the role of `userID` in the request, or "" for non-participants.
func (r Request) Role(userID string) string {
	switch userID {
	case r.RequesterID:
		return RoleRequester
	case r.ReceiverID:
		return RoleReceiver
	}
	return ""
}

// Summary is the short form of a Request embedded in other resources.
type Summary struct {
	ID            string `json:"id"`
	TeachingSkill string `json:"teaching_skill"`
	LearningSkill string `json:"learning_skill"`
	Status        string `json:"status"`
}

func (r Request) Summary() Summary {
	return Summary{ID: r.ID, TeachingSkill: r.TeachingSkill, LearningSkill: r.LearningSkill, Status: r.Status}
}

// View is a Request as seen by one of its participants.
type View struct {
	Request
	Requester user.Party `json:"requester"`
	Receiver  user.Party `json:"receiver"`
	UserRole  string     `json:"user_role"`
}

type NewRequest struct {
	ReceiverID    string `json:"receiver_id" validate:"required"`
	Message       string `json:"message" validate:"omitempty,max=500"`
	TeachingSkill string `json:"teaching_skill" validate:"required,max=100"`
	LearningSkill string `json:"learning_skill" validate:"required,max=100"`
}

func (nr *NewRequest) Validate(validate *validator.Validate) error {
	nr.ReceiverID = core.CleanString(nr.ReceiverID)
	nr.Message = core.CleanString(nr.Message)
	nr.TeachingSkill = core.CleanString(nr.TeachingSkill)
	nr.LearningSkill = core.CleanString(nr.LearningSkill)
	return validate.Struct(nr)
}

type QueryFilter struct {
	core.PageQuery
	Status string `query:"status" validate:"omitempty,oneof=pending accepted declined"`
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
	ExchangeRequests []View          `json:"exchange_requests"`
	Pagination       core.Pagination `json:"pagination"`
}
