package notification

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound            = core.NewNotFoundError("Notification not found")
	ErrSettingsNotFound    = core.NewNotFoundError("Notification settings not found")
	ErrInvalidPushToken    = errors.New("invalid push token")
	errUserNotFoundSkipped = errors.New("notification user not found")
)

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		// QueryNotifications returns the requested page of the user's notifications, newest first,
		// along with the total number of matching notifications.
		QueryNotifications(ctx context.Context, userID string, filter QueryFilter) ([]Notification, int, error)
		CountUnread(ctx context.Context, userID string) (int, error)
		GetNotification(ctx context.Context, id string) (Notification, error)
		UpdateNotification(ctx context.Context, n Notification) (Notification, error)
		MarkAllRead(ctx context.Context, userID string, readAt time.Time) error

		GetSettings(ctx context.Context, userID string) (Settings, error)
		CreateSettings(ctx context.Context, s Settings) (Settings, error)
		UpdateSettings(ctx context.Context, s Settings) (Settings, error)
	}

	// Queue defers the delivery of jobs to a worker.
	Queue interface {
		Enqueue(ctx context.Context, job Job) error
	}

	PushMessage struct {
		Token string
		Title string
		Body  string
		Data  map[string]string
	}

	// PushSender sends push notifications to a device.
	// It returns ErrInvalidPushToken when the device token is no longer valid.
	PushSender interface {
		Send(ctx context.Context, msg PushMessage) error
	}

	Service interface {
		// Notify schedules the delivery of a job. Failures are logged, never returned.
		Notify(ctx context.Context, job Job)
		// Deliver fans a job out to the channels enabled for its user.
		Deliver(ctx context.Context, job Job) error
		Query(ctx context.Context, userID string, filter QueryFilter) (Page, error)
		MarkRead(ctx context.Context, userID, id string) (Notification, error)
		MarkAllRead(ctx context.Context, userID string) error
		GetSettings(ctx context.Context, userID string) (Settings, error)
		CreateDefaultSettings(ctx context.Context, userID string) (Settings, error)
		UpdateSettings(ctx context.Context, userID string, data UpdateSettings) (Settings, error)
	}

	Deps struct {
		Repo    Repository
		UserSvc user.Service
		MailSvc core.EmailService
		PushSvc PushSender
		Queue   Queue // optional: jobs are delivered inline when nil
		Logger  core.Logger
	}

	service struct {
		repo    Repository
		userSvc user.Service
		mailSvc core.EmailService
		pushSvc PushSender
		queue   Queue
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(deps Deps) Service {
	return &service{
		repo:    deps.Repo,
		userSvc: deps.UserSvc,
		mailSvc: deps.MailSvc,
		pushSvc: deps.PushSvc,
		queue:   deps.Queue,
		logger:  deps.Logger,
	}
}

// NewSecurityAlerter adapts the service into a user.SecurityAlerter.
func NewSecurityAlerter(svc Service) user.SecurityAlerter {
	return func(ctx context.Context, usr user.User, event string) {
		svc.Notify(ctx, Job{
			UserID:  usr.ID,
			Type:    TypeSecurityAlert,
			Title:   "Security Alert",
			Message: event,
			Template: &Template{
				EmailSubject:  "Security Alert - Skill Barter",
				EmailTemplate: "security_alert",
			},
		})
	}
}

func (svc *service) Notify(ctx context.Context, job Job) {
	if svc.queue != nil {
		err := svc.queue.Enqueue(ctx, job)
		if err == nil {
			jobs.WithLabelValues(outcomeEnqueued).Inc()
			return
		}
		svc.logger.Warn(fmt.Sprintf("enqueuing %s notification failed, delivering inline: %v", job.Type, err), err)
	}
	if err := svc.Deliver(ctx, job); err != nil {
		svc.logger.Error(fmt.Sprintf("delivering %s notification: %v", job.Type, err), err)
	}
}

func (svc *service) Deliver(ctx context.Context, job Job) error {
	usr, err := svc.userSvc.GetByID(ctx, job.UserID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			jobs.WithLabelValues(outcomeSkipped).Inc()
			svc.logger.Warn(fmt.Sprintf("%s notification dropped", job.Type), errUserNotFoundSkipped, job.UserID)
			return nil
		}
		jobs.WithLabelValues(outcomeFailed).Inc()
		return errors.Wrap(err, "finding notification user")
	}

	settings, err := svc.repo.GetSettings(ctx, usr.ID)
	hasSettings := err == nil
	if err != nil && errors.Cause(err) != ErrSettingsNotFound {
		svc.logger.Error(fmt.Sprintf("loading notification settings: %v", err), err, usr)
	}
	enabled := func(channel string) bool {
		return !hasSettings || settings.Enabled(channel, job.Type)
	}

	actionURL := ActionURL(job.Type, job.Data)

	if enabled(ChannelInApp) {
		svc.deliverInApp(ctx, usr, job, actionURL)
	} else {
		recordDelivery(ChannelInApp, outcomeSkipped)
	}

	if enabled(ChannelEmail) && job.Template != nil && job.Template.EmailSubject != "" && job.Template.EmailTemplate != "" {
		svc.deliverEmail(usr, job, actionURL)
	} else {
		recordDelivery(ChannelEmail, outcomeSkipped)
	}

	if enabled(ChannelPush) && usr.FCMToken != "" {
		svc.deliverPush(ctx, usr, job)
	} else {
		recordDelivery(ChannelPush, outcomeSkipped)
	}

	jobs.WithLabelValues(outcomeSent).Inc()
	return nil
}

func (svc *service) deliverInApp(ctx context.Context, usr user.User, job Job, actionURL string) {
	n := Notification{
		UserID:    usr.ID,
		Type:      job.Type,
		Title:     job.Title,
		Message:   job.Message,
		Data:      job.Data,
		Status:    StatusUnread,
		CreatedAt: NowFunc().UTC(),
	}
	if n.Data == nil {
		n.Data = map[string]string{}
	}
	if actionURL != "" {
		n.ActionURL = &actionURL
	}
	if _, err := svc.repo.CreateNotification(ctx, n); err != nil {
		recordDelivery(ChannelInApp, outcomeFailed)
		svc.logger.Error(fmt.Sprintf("creating in-app notification: %v", err), err, usr)
		return
	}
	recordDelivery(ChannelInApp, outcomeSent)
}

func (svc *service) deliverEmail(usr user.User, job Job, actionURL string) {
	data := map[string]string{
		"name":       usr.FirstName,
		"title":      job.Title,
		"message":    job.Message,
		"action_url": actionURL,
	}
	for k, v := range job.Template.EmailData {
		data[k] = v
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{usr.MailAddress()},
		Subject:      job.Template.EmailSubject,
		TemplateName: job.Template.EmailTemplate,
		TemplateData: data,
	})
	recordDelivery(ChannelEmail, outcomeSent)
}

func (svc *service) deliverPush(ctx context.Context, usr user.User, job Job) {
	msg := PushMessage{
		Token: usr.FCMToken,
		Title: job.Title,
		Body:  job.Message,
		Data:  map[string]string{"type": job.Type},
	}
	for k, v := range job.Data {
		msg.Data[k] = v
	}
	if tmpl := job.Template; tmpl != nil {
		if tmpl.PushTitle != "" {
			msg.Title = tmpl.PushTitle
		}
		if tmpl.PushBody != "" {
			msg.Body = tmpl.PushBody
		}
		for k, v := range tmpl.PushData {
			msg.Data[k] = v
		}
	}

	if err := svc.pushSvc.Send(ctx, msg); err != nil {
		recordDelivery(ChannelPush, outcomeFailed)
		if errors.Cause(err) == ErrInvalidPushToken {
			if cErr := svc.userSvc.ClearFCMToken(ctx, usr.ID); cErr != nil {
				svc.logger.Error(fmt.Sprintf("clearing invalid fcm token: %v", cErr), cErr, usr)
			}
			return
		}
		svc.logger.Error(fmt.Sprintf("sending push notification: %v", err), err, usr)
		return
	}
	recordDelivery(ChannelPush, outcomeSent)
}

func (svc *service) Query(ctx context.Context, userID string, filter QueryFilter) (Page, error) {
	notifs, total, err := svc.repo.QueryNotifications(ctx, userID, filter)
	if err != nil {
		return Page{}, errors.Wrap(err, "querying notifications")
	}
	unread, err := svc.repo.CountUnread(ctx, userID)
	if err != nil {
		return Page{}, errors.Wrap(err, "counting unread notifications")
	}
	if notifs == nil {
		notifs = []Notification{}
	}
	return Page{
		Notifications: notifs,
		UnreadCount:   unread,
		Pagination:    core.NewPagination(filter.PageQuery, total),
	}, nil
}

func (svc *service) MarkRead(ctx context.Context, userID, id string) (Notification, error) {
	n, err := svc.repo.GetNotification(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if n.UserID != userID {
		return Notification{}, ErrNotFound
	}
	if n.Status == StatusRead {
		return n, nil
	}
	now := NowFunc().UTC()
	n.Status = StatusRead
	n.ReadAt = &now
	return svc.repo.UpdateNotification(ctx, n)
}

func (svc *service) MarkAllRead(ctx context.Context, userID string) error {
	return svc.repo.MarkAllRead(ctx, userID, NowFunc().UTC())
}

// GetSettings returns the user's settings, creating the defaults on first access.
func (svc *service) GetSettings(ctx context.Context, userID string) (Settings, error) {
	s, err := svc.repo.GetSettings(ctx, userID)
	if err == nil {
		return s, nil
	}
	if errors.Cause(err) != ErrSettingsNotFound {
		return Settings{}, errors.Wrap(err, "getting notification settings")
	}
	return svc.CreateDefaultSettings(ctx, userID)
}

func (svc *service) CreateDefaultSettings(ctx context.Context, userID string) (Settings, error) {
	now := NowFunc().UTC()
	s := DefaultSettings(userID)
	s.CreatedAt = now
	s.UpdatedAt = now
	return svc.repo.CreateSettings(ctx, s)
}

func (svc *service) UpdateSettings(ctx context.Context, userID string, data UpdateSettings) (Settings, error) {
	s, err := svc.repo.GetSettings(ctx, userID)
	if err != nil {
		return Settings{}, err
	}
	s = data.Apply(s)
	s.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateSettings(ctx, s)
}
