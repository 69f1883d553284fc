package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/contact"
	"github.com/skillbarter/backend/core/notification"
	"github.com/skillbarter/backend/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound          = core.NewNotFoundError("Exchange request not found")
	ErrReceiverNotFound  = core.NewNotFoundError("Receiver user not found")
	ErrRequesterNotFound = core.NewNotFoundError("Requester user not found")
	ErrSelfRequest       = core.NewBadRequestError("You cannot send an exchange request to yourself")
	ErrPendingExists     = core.NewBadRequestError("You already have a pending exchange request with this user")
	ErrAcceptForbidden   = core.NewPermissionError("Only the receiver can accept an exchange request")
	ErrDeclineForbidden  = core.NewPermissionError("Only the receiver can decline an exchange request")
)

type (
	Repository interface {
		CreateRequest(ctx context.Context, r Request) (Request, error)
		GetRequest(ctx context.Context, id string) (Request, error)
		// QueryRequests returns the requested page of the requests involving `userID`, newest first,
		// along with the total number of matching requests.
		QueryRequests(ctx context.Context, userID string, filter QueryFilter) ([]Request, int, error)
		UpdateRequest(ctx context.Context, r Request) (Request, error)
		HasPendingRequest(ctx context.Context, requesterID, receiverID string) (bool, error)
		// GetLatestRequestBetween returns the newest request between the two users in either direction.
		GetLatestRequestBetween(ctx context.Context, userA, userB string) (Request, error)
		// ListPartnerIDs returns the ids of the users sharing at least one request with `userID`.
		ListPartnerIDs(ctx context.Context, userID string) ([]string, error)
		// CountRequests counts the requests with `status` where `userID` has `role` ("" for any role).
		CountRequests(ctx context.Context, userID, status, role string) (int, error)
		// SkillCounts returns how many times each skill appears as a teaching or learning skill.
		SkillCounts(ctx context.Context) (map[string]int, error)
	}

	// BookingCreator creates the session bookings of accepted requests.
	BookingCreator interface {
		CreateForExchange(ctx context.Context, r Request) error
	}

	Service interface {
		Create(ctx context.Context, requester user.User, data NewRequest) (View, error)
		Query(ctx context.Context, usr user.User, filter QueryFilter) (Page, error)
		Get(ctx context.Context, usr user.User, id string) (View, error)
		Accept(ctx context.Context, usr user.User, id string) (View, error)
		Decline(ctx context.Context, usr user.User, id string) (View, error)
	}

	Deps struct {
		Repo       Repository
		UserSvc    user.Service
		BookingSvc BookingCreator
		ContactSvc contact.Service
		NotifSvc   notification.Service
		Logger     core.Logger
	}

	service struct {
		repo       Repository
		userSvc    user.Service
		bookingSvc BookingCreator
		contactSvc contact.Service
		notifSvc   notification.Service
		logger     core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(deps Deps) Service {
	return &service{
		repo:       deps.Repo,
		userSvc:    deps.UserSvc,
		bookingSvc: deps.BookingSvc,
		contactSvc: deps.ContactSvc,
		notifSvc:   deps.NotifSvc,
		logger:     deps.Logger,
	}
}

func (svc *service) Create(ctx context.Context, requester user.User, data NewRequest) (View, error) {
	if data.ReceiverID == requester.ID {
		return View{}, ErrSelfRequest
	}
	receiver, err := svc.userSvc.GetByID(ctx, data.ReceiverID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return View{}, ErrReceiverNotFound
		}
		return View{}, errors.Wrap(err, "getting receiver")
	}
	if requester.IsDeleted() {
		return View{}, ErrRequesterNotFound
	}

	pending, err := svc.repo.HasPendingRequest(ctx, requester.ID, receiver.ID)
	if err != nil {
		return View{}, errors.Wrap(err, "checking pending requests")
	}
	if pending {
		return View{}, ErrPendingExists
	}

	now := NowFunc().UTC()
	req, err := svc.repo.CreateRequest(ctx, Request{
		RequesterID:   requester.ID,
		ReceiverID:    receiver.ID,
		Message:       data.Message,
		TeachingSkill: data.TeachingSkill,
		LearningSkill: data.LearningSkill,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return View{}, errors.Wrap(err, "creating exchange request")
	}

	svc.notifSvc.Notify(ctx, notification.Job{
		UserID:  receiver.ID,
		Type:    notification.TypeExchangeRequest,
		Title:   "New Exchange Request",
		Message: fmt.Sprintf("%s wants to exchange skills with you", requester.FullName()),
		Data: map[string]string{
			"exchangeRequestId": req.ID,
			"requesterId":       requester.ID,
		},
		Template: &notification.Template{
			EmailSubject:  "New Exchange Request - Skill Barter",
			EmailTemplate: "exchange_request",
			EmailData: map[string]string{
				"requester":      requester.FullName(),
				"teaching_skill": req.TeachingSkill,
				"learning_skill": req.LearningSkill,
				"message":        req.Message,
			},
		},
	})

	return View{
		Request:   req,
		Requester: requester.Party(),
		Receiver:  receiver.Party(),
		UserRole:  RoleRequester,
	}, nil
}

func (svc *service) Query(ctx context.Context, usr user.User, filter QueryFilter) (Page, error) {
	reqs, total, err := svc.repo.QueryRequests(ctx, usr.ID, filter)
	if err != nil {
		return Page{}, errors.Wrap(err, "querying exchange requests")
	}
	views, err := svc.views(ctx, usr.ID, reqs...)
	if err != nil {
		return Page{}, err
	}
	return Page{ExchangeRequests: views, Pagination: core.NewPagination(filter.PageQuery, total)}, nil
}

func (svc *service) views(ctx context.Context, userID string, reqs ...Request) ([]View, error) {
	ids := make([]string, 0, 2*len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.RequesterID, r.ReceiverID)
	}
	parties, err := svc.userSvc.Parties(ctx, ids...)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(reqs))
	for _, r := range reqs {
		views = append(views, View{
			Request:   r,
			Requester: parties[r.RequesterID],
			Receiver:  parties[r.ReceiverID],
			UserRole:  r.Role(userID),
		})
	}
	return views, nil
}

// get returns the request `id` if `userID` takes part in it.
func (svc *service) get(ctx context.Context, userID, id string) (Request, error) {
	req, err := svc.repo.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !req.IsParticipant(userID) {
		return Request{}, ErrNotFound
	}
	return req, nil
}

func (svc *service) Get(ctx context.Context, usr user.User, id string) (View, error) {
	req, err := svc.get(ctx, usr.ID, id)
	if err != nil {
		return View{}, err
	}
	views, err := svc.views(ctx, usr.ID, req)
	if err != nil {
		return View{}, err
	}
	return views[0], nil
}

func (svc *service) respond(ctx context.Context, usr user.User, id, status string) (Request, error) {
	req, err := svc.get(ctx, usr.ID, id)
	if err != nil {
		return Request{}, err
	}
	if req.ReceiverID != usr.ID {
		if status == StatusAccepted {
			return Request{}, ErrAcceptForbidden
		}
		return Request{}, ErrDeclineForbidden
	}
	if req.Status != StatusPending {
		return Request{}, core.NewBadRequestError(fmt.Sprintf("Exchange request has already been %s", req.Status))
	}
	req.Status = status
	req.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateRequest(ctx, req)
}

func (svc *service) Accept(ctx context.Context, usr user.User, id string) (View, error) {
	req, err := svc.respond(ctx, usr, id, StatusAccepted)
	if err != nil {
		return View{}, err
	}
	if err = svc.bookingSvc.CreateForExchange(ctx, req); err != nil {
		// back to pending so the receiver can accept again
		req.Status = StatusPending
		req.UpdatedAt = NowFunc().UTC()
		if _, rErr := svc.repo.UpdateRequest(ctx, req); rErr != nil {
			svc.logger.Error(fmt.Sprintf("reverting exchange request %s: %v", req.ID, rErr), rErr, usr)
		}
		return View{}, errors.Wrap(err, "creating session bookings")
	}
	if _, err = svc.contactSvc.Ensure(ctx, req.RequesterID, req.ReceiverID, req.ID); err != nil {
		svc.logger.Error(fmt.Sprintf("creating contact: %v", err), err, usr)
	}
	svc.notifyRequester(ctx, usr, req)
	return svc.Get(ctx, usr, req.ID)
}

func (svc *service) Decline(ctx context.Context, usr user.User, id string) (View, error) {
	req, err := svc.respond(ctx, usr, id, StatusDeclined)
	if err != nil {
		return View{}, err
	}
	svc.notifyRequester(ctx, usr, req)
	return svc.Get(ctx, usr, req.ID)
}

func (svc *service) notifyRequester(ctx context.Context, receiver user.User, req Request) {
	title := "Exchange Request Accepted"
	if req.Status == StatusDeclined {
		title = "Exchange Request Declined"
	}
	svc.notifSvc.Notify(ctx, notification.Job{
		UserID:  req.RequesterID,
		Type:    notification.TypeExchangeRequest,
		Title:   title,
		Message: fmt.Sprintf("%s has %s your exchange request", receiver.FullName(), req.Status),
		Data: map[string]string{
			"exchangeRequestId": req.ID,
			"status":            req.Status,
		},
		Template: &notification.Template{
			EmailSubject:  title + " - Skill Barter",
			EmailTemplate: "exchange_response",
			EmailData: map[string]string{
				"receiver":       receiver.FullName(),
				"status":         req.Status,
				"teaching_skill": req.TeachingSkill,
				"learning_skill": req.LearningSkill,
			},
		},
	})
}
