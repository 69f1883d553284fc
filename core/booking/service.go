package booking

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/exchange"
	"github.com/skillbarter/backend/core/notification"
	"github.com/skillbarter/backend/core/session"
	"github.com/skillbarter/backend/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound            = core.NewNotFoundError("Session booking not found")
	ErrViewForbidden       = core.NewPermissionError("You are not authorized to view this session booking")
	ErrUpdateForbidden     = core.NewPermissionError("You are not authorized to update this session booking")
	ErrAcceptForbidden     = core.NewPermissionError("Only the recipient can accept a session booking")
	ErrExchangeNotAccepted = core.NewBadRequestError("Session bookings can only be created for accepted exchange requests")
	ErrBookingsExist       = core.NewBadRequestError("Session bookings already exist for this exchange request")
	ErrAlreadyAccepted     = core.NewBadRequestError("Session booking has already been accepted")
	ErrRecipientMessage    = core.NewBadRequestError("Recipients can only update the message field")
	ErrNotAcceptable       = core.NewBadRequestError("Only pending or changes_made session bookings can be accepted")
	ErrEmptyUpdate         = core.NewBadRequestError("No fields to update")
	ErrAwaitingChanges     = core.NewBadRequestError("Changes were already requested, wait for the proposer to update the schedule")
)

type (
	Repository interface {
		CreateBookings(ctx context.Context, bookings []Booking) ([]Booking, error)
		CountBookingsForExchange(ctx context.Context, exchangeRequestID string) (int, error)
		GetBooking(ctx context.Context, id string) (Booking, error)
		// QueryBookings returns the requested page of the bookings visible to `userID`, most recently
		// updated first, along with the total number of visible bookings.
		QueryBookings(ctx context.Context, userID string, pq core.PageQuery) ([]Booking, int, error)
		UpdateBooking(ctx context.Context, b Booking) (Booking, error)
	}

	MeetingRequest struct {
		Summary     string
		Description string
		Start       time.Time
		End         time.Time
		Timezone    string
		Attendees   []string
	}

	// MeetingLinkProvider creates video meetings.
	MeetingLinkProvider interface {
		CreateMeetingLink(ctx context.Context, req MeetingRequest) (string, error)
	}

	// Accepted is the result of accepting a booking.
	Accepted struct {
		Booking  View              `json:"session_booking"`
		Sessions []session.Session `json:"sessions"`
	}

	Service interface {
		// CreateForExchange creates the two draft bookings of an accepted exchange request.
		CreateForExchange(ctx context.Context, req exchange.Request) error
		Query(ctx context.Context, usr user.User, pq core.PageQuery) (Page, error)
		Get(ctx context.Context, usr user.User, id string) (View, error)
		Update(ctx context.Context, usr user.User, id string, data Update) (View, error)
		Accept(ctx context.Context, usr user.User, id string) (Accepted, error)
	}

	Deps struct {
		Repo         Repository
		ExchangeRepo exchange.Repository
		UserSvc      user.Service
		SessionSvc   session.Service
		MeetSvc      MeetingLinkProvider
		NotifSvc     notification.Service
		Validate     *validator.Validate
		Conf         *core.Config
		Logger       core.Logger
	}

	service struct {
		repo            Repository
		exchangeRepo    exchange.Repository
		userSvc         user.Service
		sessionSvc      session.Service
		meetSvc         MeetingLinkProvider
		notifSvc        notification.Service
		validate        *validator.Validate
		defaultTimezone string
		logger          core.Logger
	}
)

var _ Service = (*service)(nil)
var _ exchange.BookingCreator = (*service)(nil)

func NewService(deps Deps) Service {
	return &service{
		repo:            deps.Repo,
		exchangeRepo:    deps.ExchangeRepo,
		userSvc:         deps.UserSvc,
		sessionSvc:      deps.SessionSvc,
		meetSvc:         deps.MeetSvc,
		notifSvc:        deps.NotifSvc,
		validate:        deps.Validate,
		defaultTimezone: deps.Conf.DefaultTimezone,
		logger:          deps.Logger,
	}
}

func (svc *service) CreateForExchange(ctx context.Context, req exchange.Request) error {
	if req.Status != exchange.StatusAccepted {
		return ErrExchangeNotAccepted
	}
	n, err := svc.repo.CountBookingsForExchange(ctx, req.ID)
	if err != nil {
		return errors.Wrap(err, "counting session bookings")
	}
	if n > 0 {
		return ErrBookingsExist
	}

	now := NowFunc().UTC()
	draft := func(proposer, recipient, skill string) Booking {
		return Booking{
			ExchangeRequestID: req.ID,
			ProposerID:        proposer,
			RecipientID:       recipient,
			Skill:             skill,
			Status:            StatusDraft,
			Schedule:          DefaultSchedule(),
			Version:           1,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
	}
	_, err = svc.repo.CreateBookings(ctx, []Booking{
		draft(req.RequesterID, req.ReceiverID, req.TeachingSkill),
		draft(req.ReceiverID, req.RequesterID, req.LearningSkill),
	})
	return errors.Wrap(err, "creating session bookings")
}

func (svc *service) views(ctx context.Context, userID string, bookings ...Booking) ([]View, error) {
	ids := make([]string, 0, 2*len(bookings))
	reqs := make(map[string]exchange.Summary)
	for _, b := range bookings {
		ids = append(ids, b.ProposerID, b.RecipientID)
		if _, ok := reqs[b.ExchangeRequestID]; ok {
			continue
		}
		req, err := svc.exchangeRepo.GetRequest(ctx, b.ExchangeRequestID)
		if err != nil {
			return nil, errors.Wrap(err, "getting exchange request")
		}
		reqs[b.ExchangeRequestID] = req.Summary()
	}
	parties, err := svc.userSvc.Parties(ctx, ids...)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(bookings))
	for _, b := range bookings {
		views = append(views, View{
			Booking:         b,
			ExchangeRequest: reqs[b.ExchangeRequestID],
			Proposer:        parties[b.ProposerID],
			Recipient:       parties[b.RecipientID],
			UserRole:        b.Role(userID),
		})
	}
	return views, nil
}

func (svc *service) view(ctx context.Context, userID string, b Booking) (View, error) {
	views, err := svc.views(ctx, userID, b)
	if err != nil {
		return View{}, err
	}
	return views[0], nil
}

func (svc *service) Query(ctx context.Context, usr user.User, pq core.PageQuery) (Page, error) {
	bookings, total, err := svc.repo.QueryBookings(ctx, usr.ID, pq)
	if err != nil {
		return Page{}, errors.Wrap(err, "querying session bookings")
	}
	views, err := svc.views(ctx, usr.ID, bookings...)
	if err != nil {
		return Page{}, err
	}
	return newPage(views, core.NewPagination(pq, total)), nil
}

func (svc *service) Get(ctx context.Context, usr user.User, id string) (View, error) {
	b, err := svc.repo.GetBooking(ctx, id)
	if err != nil {
		return View{}, err
	}
	if !b.IsParticipant(usr.ID) {
		return View{}, ErrViewForbidden
	}
	if !b.VisibleTo(usr.ID) {
		return View{}, ErrNotFound
	}
	return svc.view(ctx, usr.ID, b)
}

// Update moves the booking through the negotiation:
//
//	proposer schedule change:  draft -> pending, changes_requested -> changes_made
//	recipient message:         pending|changes_made -> changes_requested
func (svc *service) Update(ctx context.Context, usr user.User, id string, data Update) (View, error) {
	b, err := svc.repo.GetBooking(ctx, id)
	if err != nil {
		return View{}, err
	}
	if !b.IsParticipant(usr.ID) {
		return View{}, ErrUpdateForbidden
	}
	if b.Status == StatusAccepted {
		return View{}, ErrAlreadyAccepted
	}

	prevStatus := b.Status
	if usr.ID == b.ProposerID {
		if !data.ChangesSchedule() && data.Message == nil {
			return View{}, ErrEmptyUpdate
		}
		if data.ChangesSchedule() {
			sched := data.Apply(b.Schedule)
			if err = svc.validate.Struct(sched); err != nil {
				return View{}, err
			}
			b.Schedule = sched
			b.Version++
			switch b.Status {
			case StatusDraft:
				b.Status = StatusPending
			case StatusChangesRequested:
				b.Status = StatusChangesMade
			}
		}
		if data.Message != nil {
			b.Message = *data.Message
		}
	} else {
		if b.Status == StatusDraft {
			return View{}, ErrNotFound
		}
		if data.ChangesSchedule() || data.Message == nil {
			return View{}, ErrRecipientMessage
		}
		if b.Status == StatusChangesRequested {
			return View{}, ErrAwaitingChanges
		}
		b.Message = *data.Message
		b.Status = StatusChangesRequested
	}

	b.UpdatedAt = NowFunc().UTC()
	if b, err = svc.repo.UpdateBooking(ctx, b); err != nil {
		return View{}, errors.Wrap(err, "updating session booking")
	}
	if b.Status != prevStatus {
		svc.notifyStatusChange(ctx, usr, b)
	}
	return svc.view(ctx, usr.ID, b)
}

func (svc *service) notifyStatusChange(ctx context.Context, actor user.User, b Booking) {
	var recipientID, title, message string
	switch b.Status {
	case StatusPending:
		recipientID = b.RecipientID
		title = "New Session Booking Proposal"
		message = fmt.Sprintf("%s proposed a schedule for %s sessions", actor.FullName(), b.Skill)
	case StatusChangesMade:
		recipientID = b.RecipientID
		title = "Session Booking Updated"
		message = fmt.Sprintf("%s updated the schedule for %s sessions", actor.FullName(), b.Skill)
	case StatusChangesRequested:
		recipientID = b.ProposerID
		title = "Changes Requested"
		message = fmt.Sprintf("%s requested changes to the %s sessions schedule", actor.FullName(), b.Skill)
	default:
		return
	}
	svc.notifSvc.Notify(ctx, notification.Job{
		UserID:  recipientID,
		Type:    notification.TypeSessionReminder,
		Title:   title,
		Message: message,
		Data: map[string]string{
			"sessionBookingId": b.ID,
			"status":           b.Status,
		},
		Template: &notification.Template{
			EmailSubject:  title + " - Skill Barter",
			EmailTemplate: "booking_update",
		},
	})
}

func (svc *service) Accept(ctx context.Context, usr user.User, id string) (Accepted, error) {
	b, err := svc.repo.GetBooking(ctx, id)
	if err != nil {
		return Accepted{}, err
	}
	if usr.ID != b.RecipientID {
		return Accepted{}, ErrAcceptForbidden
	}
	if b.Status == StatusAccepted {
		return Accepted{}, ErrAlreadyAccepted
	}
	if b.Status != StatusPending && b.Status != StatusChangesMade {
		return Accepted{}, ErrNotAcceptable
	}

	b.Status = StatusAccepted
	b.UpdatedAt = NowFunc().UTC()
	if b, err = svc.repo.UpdateBooking(ctx, b); err != nil {
		return Accepted{}, errors.Wrap(err, "accepting session booking")
	}

	sessions, err := svc.materialize(ctx, b)
	if err != nil {
		return Accepted{}, err
	}
	v, err := svc.view(ctx, usr.ID, b)
	if err != nil {
		return Accepted{}, err
	}
	return Accepted{Booking: v, Sessions: sessions}, nil
}

// materialize creates the sessions of an accepted booking, each with a meeting link.
func (svc *service) materialize(ctx context.Context, b Booking) ([]session.Session, error) {
	proposer, err := svc.userSvc.GetByID(ctx, b.ProposerID)
	if err != nil {
		return nil, errors.Wrap(err, "getting proposer")
	}
	recipient, err := svc.userSvc.GetByID(ctx, b.RecipientID)
	if err != nil {
		return nil, errors.Wrap(err, "getting recipient")
	}

	loc := loadLocation(proposer.Timezone, svc.defaultTimezone)
	starts := Occurrences(b.Schedule, loc, NowFunc())
	duration := time.Duration(b.Duration) * time.Minute

	sessions := make([]session.Session, 0, len(starts))
	for _, start := range starts {
		link, err := svc.meetSvc.CreateMeetingLink(ctx, MeetingRequest{
			Summary:     "Skill Session: " + b.Skill,
			Description: "Teaching session for " + b.Skill,
			Start:       start,
			End:         start.Add(duration),
			Timezone:    loc.String(),
			Attendees:   []string{proposer.Email, recipient.Email},
		})
		if err != nil {
			meetingLinks.WithLabelValues("failed").Inc()
			svc.logger.Warn(fmt.Sprintf("creating meeting link: %v", err), err, proposer)
			link = ""
		} else {
			meetingLinks.WithLabelValues("created").Inc()
		}
		sessions = append(sessions, session.Session{
			SessionBookingID:  b.ID,
			ExchangeRequestID: b.ExchangeRequestID,
			InstructorID:      proposer.ID,
			LearnerID:         recipient.ID,
			Skill:             b.Skill,
			Type:              session.TypeTeaching,
			ScheduledDate:     start,
			Duration:          b.Duration,
			Description:       b.Message,
			Location:          session.LocationOnline,
			MeetingLink:       link,
		})
	}

	sessions, err = svc.sessionSvc.CreateSessions(ctx, sessions)
	if err != nil {
		return nil, errors.Wrap(err, "creating sessions")
	}
	if len(sessions) > 0 {
		first := sessions[0]
		svc.notifyScheduled(ctx, proposer, recipient, first, session.RoleInstructor, loc)
		svc.notifyScheduled(ctx, recipient, proposer, first, session.RoleLearner, loc)
	}
	return sessions, nil
}

func (svc *service) notifyScheduled(ctx context.Context, to, other user.User, s session.Session, role string, fallback *time.Location) {
	when := s.ScheduledDate.In(loadLocation(to.Timezone, fallback.String())).Format("Monday, January 2 2006 at 15:04 MST")
	svc.notifSvc.Notify(ctx, notification.Job{
		UserID:  to.ID,
		Type:    notification.TypeSessionReminder,
		Title:   "Session Scheduled",
		Message: fmt.Sprintf("Your %s session with %s is scheduled for %s", s.Skill, other.FullName(), when),
		Data: map[string]string{
			"sessionId":        s.ID,
			"sessionBookingId": s.SessionBookingID,
		},
		Template: &notification.Template{
			EmailSubject:  "Session Scheduled - Skill Barter",
			EmailTemplate: "session_scheduled",
			EmailData: map[string]string{
				"role":         role,
				"skill":        s.Skill,
				"other":        other.FullName(),
				"scheduled_at": when,
				"duration":     strconv.Itoa(s.Duration),
				"meeting_link": s.MeetingLink,
			},
			PushData: map[string]string{
				"type":      "session_scheduled",
				"sessionId": s.ID,
				"role":      role,
			},
		},
	})
}
