package notification

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/skillbarter/backend/core"
)

// Notification types
const (
	TypeExchangeRequest = "exchange_request"
	TypeSessionReminder = "session_reminder"
	TypeMessage         = "message"
	TypeReviewAndRating = "review_and_rating"
	TypeAchievement     = "achievement"
	TypeSecurityAlert   = "security_alert"
)

// Notification statuses
const (
	StatusUnread = "unread"
	StatusRead   = "read"
)

// Delivery channels
const (
	ChannelInApp = "in_app"
	ChannelEmail = "email"
	ChannelPush  = "push"
)

var (
	actionURLPatterns = map[string]string{
		TypeExchangeRequest: "/@me/exchange-requests/:exchangeRequestId",
		TypeSessionReminder: "/@me/sessions/:sessionId",
		TypeMessage:         "/@me/chats/:conversationId",
		TypeReviewAndRating: "/@me/reviews",
		TypeAchievement:     "/profile/achievements",
		TypeSecurityAlert:   "/me/settings/security",
	}
	urlParamRegex = regexp.MustCompile(`:([A-Za-z]+)`)
)

// ActionURL resolves the frontend path of a notification type from the job data.
// It returns "" when the type is unknown or a path param is missing from data.
func ActionURL(typ string, data map[string]string) string {
	pattern, ok := actionURLPatterns[typ]
	if !ok {
		return ""
	}
	missing := false
	url := urlParamRegex.ReplaceAllStringFunc(pattern, func(param string) string {
		val, ok := data[strings.TrimPrefix(param, ":")]
		if !ok || val == "" {
			missing = true
			return param
		}
		return val
	})
	if missing {
		return ""
	}
	return url
}

type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	ActionURL *string           `json:"action_url"`
	Data      map[string]string `json:"data"`
	Status    string            `json:"status"`
	ReadAt    *time.Time        `json:"read_at"`
	CreatedAt time.Time         `json:"created_at"`
}

// Template carries the channel specific contents of a Job.
type Template struct {
	EmailSubject  string            `json:"email_subject,omitempty"`
	EmailTemplate string            `json:"email_template,omitempty"`
	EmailData     map[string]string `json:"email_data,omitempty"`
	PushTitle     string            `json:"push_title,omitempty"`
	PushBody      string            `json:"push_body,omitempty"`
	PushData      map[string]string `json:"push_data,omitempty"`
}

// Job is a notification waiting to be fanned out to a user's channels.
type Job struct {
	UserID   string            `json:"user_id"`
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Message  string            `json:"message"`
	Data     map[string]string `json:"data,omitempty"`
	Template *Template         `json:"template,omitempty"`
}

// Preferences are the per-type switches of one delivery channel.
// SecurityAlerts only exists on the email channel; nil means enabled.
type Preferences struct {
	ExchangeRequests  bool  `json:"exchange_requests"`
	SessionReminders  bool  `json:"session_reminders"`
	Messages          bool  `json:"messages"`
	ReviewsAndRatings bool  `json:"reviews_and_ratings"`
	Achievements      bool  `json:"achievements"`
	SecurityAlerts    *bool `json:"security_alerts,omitempty"`
}

// Enabled reports whether notifications of type `typ` may be sent on the channel.
// Unknown types are enabled.
func (p Preferences) Enabled(typ string) bool {
	switch typ {
	case TypeExchangeRequest:
		return p.ExchangeRequests
	case TypeSessionReminder:
		return p.SessionReminders
	case TypeMessage:
		return p.Messages
	case TypeReviewAndRating:
		return p.ReviewsAndRatings
	case TypeAchievement:
		return p.Achievements
	case TypeSecurityAlert:
		return p.SecurityAlerts == nil || *p.SecurityAlerts
	}
	return true
}

type Settings struct {
	UserID    string      `json:"user_id"`
	Email     Preferences `json:"email"`
	Push      Preferences `json:"push"`
	InApp     Preferences `json:"in_app"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// DefaultSettings are the settings every new user starts with.
func DefaultSettings(userID string) Settings {
	all := Preferences{
		ExchangeRequests:  true,
		SessionReminders:  true,
		Messages:          true,
		ReviewsAndRatings: true,
		Achievements:      true,
	}
	return Settings{
		UserID: userID,
		Email: Preferences{
			ExchangeRequests:  false,
			SessionReminders:  true,
			Messages:          false,
			ReviewsAndRatings: true,
			Achievements:      true,
			SecurityAlerts:    core.BoolPtr(true),
		},
		Push:  all,
		InApp: all,
	}
}

// Enabled reports whether the channel is enabled for the notification type.
func (s Settings) Enabled(channel, typ string) bool {
	switch channel {
	case ChannelEmail:
		return s.Email.Enabled(typ)
	case ChannelPush:
		return s.Push.Enabled(typ)
	case ChannelInApp:
		return s.InApp.Enabled(typ)
	}
	return true
}

type UpdatePreferences struct {
	ExchangeRequests  *bool `json:"exchange_requests"`
	SessionReminders  *bool `json:"session_reminders"`
	Messages          *bool `json:"messages"`
	ReviewsAndRatings *bool `json:"reviews_and_ratings"`
	Achievements      *bool `json:"achievements"`
	SecurityAlerts    *bool `json:"security_alerts"`
}

func (up *UpdatePreferences) apply(p Preferences, withSecurity bool) Preferences {
	if up == nil {
		return p
	}
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.ExchangeRequests, up.ExchangeRequests)
	set(&p.SessionReminders, up.SessionReminders)
	set(&p.Messages, up.Messages)
	set(&p.ReviewsAndRatings, up.ReviewsAndRatings)
	set(&p.Achievements, up.Achievements)
	if withSecurity && up.SecurityAlerts != nil {
		p.SecurityAlerts = core.BoolPtr(*up.SecurityAlerts)
	}
	return p
}

// UpdateSettings is a partial update of Settings. Nil channels and fields are left untouched.
type UpdateSettings struct {
	Email *UpdatePreferences `json:"email"`
	Push  *UpdatePreferences `json:"push"`
	InApp *UpdatePreferences `json:"in_app"`
}

func (us *UpdateSettings) Validate(validate *validator.Validate) error {
	if us.Email == nil && us.Push == nil && us.InApp == nil {
		return core.NewBadRequestError("At least one of email, push or in_app is required")
	}
	return validate.Struct(us)
}

// Apply copies the provided fields of `us` onto `s`.
func (us UpdateSettings) Apply(s Settings) Settings {
	s.Email = us.Email.apply(s.Email, true)
	s.Push = us.Push.apply(s.Push, false)
	s.InApp = us.InApp.apply(s.InApp, false)
	return s
}

type QueryFilter struct {
	core.PageQuery
	Status string `query:"status" validate:"omitempty,oneof=unread read"`
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
	Notifications []Notification  `json:"notifications"`
	UnreadCount   int             `json:"unread_count"`
	Pagination    core.Pagination `json:"pagination"`
}
