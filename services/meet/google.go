package meetsvc

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"
	"google.golang.org/api/googleapi"
	meet "google.golang.org/api/meet/v2"
	"google.golang.org/api/option"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/booking"
)

const (
	meetMaxRetries = 3
	accessOpen     = "OPEN"
)

// spaceCreator creates Google Meet spaces. Mockable in tests.
type spaceCreator func(ctx context.Context, space *meet.Space) (*meet.Space, error)

type googleMeetProvider struct {
	createSpace spaceCreator
	backoff     time.Duration
	maxBackoff  time.Duration
}

var _ booking.MeetingLinkProvider = (*googleMeetProvider)(nil)

// NewGoogleMeetProvider creates meeting links through the Google Meet REST API.
func NewGoogleMeetProvider(ctx context.Context, conf *core.Config) (booking.MeetingLinkProvider, error) {
	svc, err := meet.NewService(ctx, option.WithCredentialsJSON([]byte(conf.MeetCredentials)))
	if err != nil {
		return nil, errors.Wrap(err, "initializing meet service")
	}
	return &googleMeetProvider{
		createSpace: func(ctx context.Context, space *meet.Space) (*meet.Space, error) {
			return svc.Spaces.Create(space).Context(ctx).Do()
		},
		backoff:    250 * time.Millisecond,
		maxBackoff: 2 * time.Second,
	}, nil
}

// CreateMeetingLink creates an open meeting space. Every session gets its own space.
func (p *googleMeetProvider) CreateMeetingLink(ctx context.Context, _ booking.MeetingRequest) (string, error) {
	backoff := retry.NewExponential(p.backoff)
	backoff = retry.WithCappedDuration(p.maxBackoff, backoff)
	backoff = retry.WithMaxRetries(meetMaxRetries, backoff)

	var link string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		space, err := p.createSpace(ctx, &meet.Space{Config: &meet.SpaceConfig{AccessType: accessOpen}})
		if err != nil {
			if isTransient(err) {
				return retry.RetryableError(errors.Wrap(err, "creating meet space"))
			}
			return errors.Wrap(err, "creating meet space")
		}
		if space.MeetingUri == "" {
			return errors.New("meet space has no meeting uri")
		}
		link = space.MeetingUri
		return nil
	})
	return link, err
}

func isTransient(err error) bool {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == 429 || gErr.Code >= 500
	}
	return true
}
