package pushsvc

import (
	"context"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"
	"google.golang.org/api/option"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/notification"
)

const fcmMaxRetries = 2

// messenger is the subset of *messaging.Client used to send pushes.
type messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type fcmSender struct {
	client  messenger
	backoff time.Duration
	logger  core.Logger
}

var _ notification.PushSender = (*fcmSender)(nil)

// NewFCMSender sends push notifications through Firebase Cloud Messaging.
func NewFCMSender(ctx context.Context, conf *core.Config, logger core.Logger) (notification.PushSender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsJSON([]byte(conf.FirebaseCredentials)))
	if err != nil {
		return nil, errors.Wrap(err, "initializing firebase app")
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "initializing firebase messaging")
	}
	return &fcmSender{client: client, backoff: 200 * time.Millisecond, logger: logger}, nil
}

func (s *fcmSender) Send(ctx context.Context, msg notification.PushMessage) error {
	message := &messaging.Message{
		Token: msg.Token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
	}
	backoff := retry.WithMaxRetries(fcmMaxRetries, retry.NewExponential(s.backoff))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		id, err := s.client.Send(ctx, message)
		switch {
		case err == nil:
			s.logger.Debug("push sent: " + id)
			return nil
		case messaging.IsRegistrationTokenNotRegistered(err), messaging.IsInvalidArgument(err):
			return notification.ErrInvalidPushToken
		case messaging.IsUnavailable(err), messaging.IsInternal(err), messaging.IsMessageRateExceeded(err):
			return retry.RetryableError(errors.Wrap(err, "sending push"))
		}
		return errors.Wrap(err, "sending push")
	})
}
