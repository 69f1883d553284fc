package exchange_test

import (
	"context"
	"io/ioutil"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/contact"
	"github.com/skillbarter/backend/core/exchange"
	"github.com/skillbarter/backend/core/notification"
	"github.com/skillbarter/backend/core/user"
	logsvc "github.com/skillbarter/backend/services/logger"
	dummydb "github.com/skillbarter/backend/storage/database/dummy"
	"github.com/skillbarter/backend/tests"
)

var errBookings = errors.New("bookings unavailable")

type notifRecorder struct {
	notification.Service
	jobs []notification.Job
}

func (r *notifRecorder) Notify(_ context.Context, job notification.Job) {
	r.jobs = append(r.jobs, job)
}

type bookingStub struct {
	err     error
	created []string
}

func (b *bookingStub) CreateForExchange(_ context.Context, r exchange.Request) error {
	if b.err != nil {
		return b.err
	}
	b.created = append(b.created, r.ID)
	return nil
}

func TestService_Accept(t *testing.T) {
	ctx := context.Background()
	conf := core.NewTestConfig()
	db := dummydb.Open()
	usrRepo := dummydb.NewUserRepository(db)
	repo := dummydb.NewExchangeRepository(db)
	usrSvc := user.NewService(usrRepo, conf, nil)
	contactSvc := contact.NewService(dummydb.NewContactRepository(db), usrSvc)
	bookings := &bookingStub{err: errBookings}
	notifs := &notifRecorder{}
	svc := exchange.NewService(exchange.Deps{
		Repo:       repo,
		UserSvc:    usrSvc,
		BookingSvc: bookings,
		ContactSvc: contactSvc,
		NotifSvc:   notifs,
		Logger:     logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf),
	})

	ada := testutil.CreateUser(t, usrRepo, "Ada", "Lovelace", "ada@test.cd", "", nil, nil)
	bob := testutil.CreateUser(t, usrRepo, "Bob", "Marley", "bob@test.cd", "", nil, nil)
	req := testutil.CreateExchange(t, repo, ada, bob, "Go", "Piano", exchange.StatusPending)

	_, err := svc.Accept(ctx, ada, req.ID)
	assert.Equal(t, exchange.ErrAcceptForbidden, err)

	// a failed booking creation leaves the request pending
	_, err = svc.Accept(ctx, bob, req.ID)
	assert.Equal(t, errBookings, errors.Cause(err))
	stored, err := repo.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, exchange.StatusPending, stored.Status)
	assert.Empty(t, notifs.jobs)
	contacts, err := contactSvc.Query(ctx, ada.ID)
	require.NoError(t, err)
	assert.Empty(t, contacts)

	// so it can be accepted once bookings work again
	bookings.err = nil
	v, err := svc.Accept(ctx, bob, req.ID)
	require.NoError(t, err)
	assert.Equal(t, exchange.StatusAccepted, v.Status)
	assert.Equal(t, []string{req.ID}, bookings.created)
	require.Len(t, notifs.jobs, 1)
	assert.Equal(t, ada.ID, notifs.jobs[0].UserID)
	contacts, err = contactSvc.Query(ctx, ada.ID)
	require.NoError(t, err)
	assert.Len(t, contacts, 1)

	_, err = svc.Accept(ctx, bob, req.ID)
	assert.EqualError(t, err, "Exchange request has already been accepted")
}
