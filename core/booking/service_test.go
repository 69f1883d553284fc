package booking_test

import (
	"context"
	"io/ioutil"
	"log"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/booking"
	"github.com/skillbarter/backend/core/exchange"
	"github.com/skillbarter/backend/core/notification"
	"github.com/skillbarter/backend/core/session"
	"github.com/skillbarter/backend/core/user"
	logsvc "github.com/skillbarter/backend/services/logger"
	dummydb "github.com/skillbarter/backend/storage/database/dummy"
	"github.com/skillbarter/backend/tests"
)

// notifRecorder records the jobs scheduled by the service under test.
type notifRecorder struct {
	notification.Service
	jobs []notification.Job
}

func (r *notifRecorder) Notify(_ context.Context, job notification.Job) {
	r.jobs = append(r.jobs, job)
}

type brokenMeet struct{}

func (brokenMeet) CreateMeetingLink(context.Context, booking.MeetingRequest) (string, error) {
	return "", errors.New("meet is down")
}

type fixedMeet struct{}

func (fixedMeet) CreateMeetingLink(context.Context, booking.MeetingRequest) (string, error) {
	return "https://meet.google.com/abc-defg-hij", nil
}

type harness struct {
	svc          booking.Service
	notifs       *notifRecorder
	usrRepo      user.Repository
	exchangeRepo exchange.Repository
	bookingRepo  booking.Repository
	sessionRepo  session.Repository
}

func setup(t *testing.T, meet booking.MeetingLinkProvider) *harness {
	conf := core.NewTestConfig()
	core.HashParams = core.TestHashParams
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	booking.InitValidators(validate, translator)

	// 14/10/2026 10:00 UTC is a Wednesday
	now := time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC)
	booking.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { booking.NowFunc = time.Now })

	db := dummydb.Open()
	h := &harness{
		notifs:       &notifRecorder{},
		usrRepo:      dummydb.NewUserRepository(db),
		exchangeRepo: dummydb.NewExchangeRepository(db),
		bookingRepo:  dummydb.NewBookingRepository(db),
		sessionRepo:  dummydb.NewSessionRepository(db),
	}
	usrSvc := user.NewService(h.usrRepo, conf, nil)
	h.svc = booking.NewService(booking.Deps{
		Repo:         h.bookingRepo,
		ExchangeRepo: h.exchangeRepo,
		UserSvc:      usrSvc,
		SessionSvc:   session.NewService(h.sessionRepo, usrSvc, validate),
		MeetSvc:      meet,
		NotifSvc:     h.notifs,
		Validate:     validate,
		Conf:         conf,
		Logger:       logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf),
	})
	return h
}

// drafts returns the bookings of req proposed by its requester then by its receiver.
func (h *harness) drafts(t *testing.T, req exchange.Request) (booking.Booking, booking.Booking) {
	own := func(userID string) booking.Booking {
		bookings, _, err := h.bookingRepo.QueryBookings(context.Background(), userID, core.PageQuery{Page: 1, Limit: 10})
		require.NoError(t, err)
		for _, b := range bookings {
			if b.ExchangeRequestID == req.ID && b.ProposerID == userID {
				return b
			}
		}
		t.Fatalf("no booking proposed by %s", userID)
		return booking.Booking{}
	}
	return own(req.RequesterID), own(req.ReceiverID)
}

func TestService_CreateForExchange(t *testing.T) {
	h := setup(t, fixedMeet{})
	ctx := context.Background()
	ada := testutil.CreateUser(t, h.usrRepo, "Ada", "Lovelace", "ada@test.cd", "", nil, nil)
	bob := testutil.CreateUser(t, h.usrRepo, "Bob", "Marley", "bob@test.cd", "", nil, nil)

	pending := testutil.CreateExchange(t, h.exchangeRepo, ada, bob, "Go", "Piano", exchange.StatusPending)
	assert.Equal(t, booking.ErrExchangeNotAccepted, h.svc.CreateForExchange(ctx, pending))

	req := testutil.CreateExchange(t, h.exchangeRepo, ada, bob, "Go", "Piano", exchange.StatusAccepted)
	require.NoError(t, h.svc.CreateForExchange(ctx, req))
	assert.Equal(t, booking.ErrBookingsExist, h.svc.CreateForExchange(ctx, req))

	teach, learn := h.drafts(t, req)
	for _, tt := range []struct {
		b         booking.Booking
		proposer  string
		recipient string
		skill     string
	}{
		{b: teach, proposer: ada.ID, recipient: bob.ID, skill: "Go"},
		{b: learn, proposer: bob.ID, recipient: ada.ID, skill: "Piano"},
	} {
		assert.Equal(t, tt.proposer, tt.b.ProposerID)
		assert.Equal(t, tt.recipient, tt.b.RecipientID)
		assert.Equal(t, tt.skill, tt.b.Skill)
		assert.Equal(t, booking.StatusDraft, tt.b.Status)
		assert.Equal(t, booking.DefaultSchedule(), tt.b.Schedule)
		assert.Equal(t, 1, tt.b.Version)
	}
	assert.Empty(t, h.notifs.jobs)
}

func TestService_negotiation(t *testing.T) {
	h := setup(t, fixedMeet{})
	ctx := context.Background()
	ada := testutil.CreateUser(t, h.usrRepo, "Ada", "Lovelace", "ada@test.cd", "", nil, nil)
	bob := testutil.CreateUser(t, h.usrRepo, "Bob", "Marley", "bob@test.cd", "", nil, nil)
	eve := testutil.CreateUser(t, h.usrRepo, "Eve", "Online", "eve@test.cd", "", nil, nil)
	req := testutil.CreateExchange(t, h.exchangeRepo, ada, bob, "Go", "Piano", exchange.StatusAccepted)
	require.NoError(t, h.svc.CreateForExchange(ctx, req))
	b, _ := h.drafts(t, req)

	// drafts are hidden from recipients
	_, err := h.svc.Get(ctx, bob, b.ID)
	assert.Equal(t, booking.ErrNotFound, err)
	_, err = h.svc.Get(ctx, eve, b.ID)
	assert.Equal(t, booking.ErrViewForbidden, err)

	twice := booking.Update{
		DaysPerWeek: core.IntPtr(2),
		DaysOfWeek:  &[]string{"Monday", "Thursday"},
		StartTime:   core.StringPtr("18:00"),
	}
	steps := []struct {
		name       string
		usr        user.User
		data       booking.Update
		wantErr    error
		wantStatus string
		wantNotify string // user id
	}{
		{name: "stranger", usr: eve, data: twice, wantErr: booking.ErrUpdateForbidden},
		{name: "recipient on draft", usr: bob, data: booking.Update{Message: core.StringPtr("hey")}, wantErr: booking.ErrNotFound},
		{name: "empty update", usr: ada, wantErr: booking.ErrEmptyUpdate},
		{name: "proposer message only", usr: ada, data: booking.Update{Message: core.StringPtr("bring a laptop")}, wantStatus: booking.StatusDraft},
		{name: "proposer proposes", usr: ada, data: twice, wantStatus: booking.StatusPending, wantNotify: bob.ID},
		{name: "recipient changes schedule", usr: bob, data: booking.Update{Duration: core.IntPtr(90)}, wantErr: booking.ErrRecipientMessage},
		{name: "recipient without message", usr: bob, wantErr: booking.ErrRecipientMessage},
		{name: "recipient requests changes", usr: bob, data: booking.Update{Message: core.StringPtr("mornings please")},
			wantStatus: booking.StatusChangesRequested, wantNotify: ada.ID},
		{name: "recipient while awaiting changes", usr: bob, data: booking.Update{Message: core.StringPtr("any news?")},
			wantErr: booking.ErrAwaitingChanges},
		{name: "proposer makes changes", usr: ada, data: booking.Update{StartTime: core.StringPtr("08:00"), TotalSessions: core.IntPtr(4)},
			wantStatus: booking.StatusChangesMade, wantNotify: bob.ID},
	}
	for _, tt := range steps {
		t.Run(tt.name, func(t *testing.T) {
			sent := len(h.notifs.jobs)
			v, err := h.svc.Update(ctx, tt.usr, b.ID, tt.data)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, v.Status)
			if tt.wantNotify == "" {
				assert.Len(t, h.notifs.jobs, sent)
			} else {
				require.Len(t, h.notifs.jobs, sent+1)
				assert.Equal(t, tt.wantNotify, h.notifs.jobs[sent].UserID)
			}
		})
	}

	v, err := h.svc.Get(ctx, bob, b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.RoleRecipient, v.UserRole)
	assert.Equal(t, 3, v.Version)
	assert.Equal(t, "mornings please", v.Message)
	assert.Equal(t, []string{"Monday", "Thursday"}, v.DaysOfWeek)

	// invalid schedules are rejected
	_, err = h.svc.Update(ctx, ada, b.ID, booking.Update{DaysPerWeek: core.IntPtr(3)})
	assert.IsType(t, validator.ValidationErrors{}, err)

	_, err = h.svc.Accept(ctx, ada, b.ID)
	assert.Equal(t, booking.ErrAcceptForbidden, err)

	accepted, err := h.svc.Accept(ctx, bob, b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusAccepted, accepted.Booking.Status)
	want := []time.Time{
		time.Date(2026, time.October, 15, 8, 0, 0, 0, time.UTC),
		time.Date(2026, time.October, 19, 8, 0, 0, 0, time.UTC),
		time.Date(2026, time.October, 22, 8, 0, 0, 0, time.UTC),
		time.Date(2026, time.October, 26, 8, 0, 0, 0, time.UTC),
	}
	require.Len(t, accepted.Sessions, len(want))
	for i, s := range accepted.Sessions {
		assert.True(t, want[i].Equal(s.ScheduledDate), "session %d at %v", i, s.ScheduledDate)
		assert.Equal(t, ada.ID, s.InstructorID)
		assert.Equal(t, bob.ID, s.LearnerID)
		assert.Equal(t, session.TypeTeaching, s.Type)
		assert.Equal(t, 60, s.Duration)
		assert.Equal(t, "https://meet.google.com/abc-defg-hij", s.MeetingLink)
		assert.NotEmpty(t, s.ID)
	}

	last := h.notifs.jobs[len(h.notifs.jobs)-2:]
	assert.ElementsMatch(t, []string{ada.ID, bob.ID}, []string{last[0].UserID, last[1].UserID})
	for _, job := range last {
		assert.Equal(t, "Session Scheduled", job.Title)
		assert.Equal(t, accepted.Sessions[0].ID, job.Data["sessionId"])
	}

	// accepted bookings are frozen
	_, err = h.svc.Update(ctx, ada, b.ID, booking.Update{Message: core.StringPtr("lol")})
	assert.Equal(t, booking.ErrAlreadyAccepted, err)
	_, err = h.svc.Accept(ctx, bob, b.ID)
	assert.Equal(t, booking.ErrAlreadyAccepted, err)
}

func TestService_Accept(t *testing.T) {
	t.Run("not acceptable", func(t *testing.T) {
		h := setup(t, fixedMeet{})
		ada := testutil.CreateUser(t, h.usrRepo, "Ada", "Lovelace", "ada@test.cd", "", nil, nil)
		bob := testutil.CreateUser(t, h.usrRepo, "Bob", "Marley", "bob@test.cd", "", nil, nil)
		req := testutil.CreateExchange(t, h.exchangeRepo, ada, bob, "Go", "Piano", exchange.StatusAccepted)
		require.NoError(t, h.svc.CreateForExchange(context.Background(), req))
		b, _ := h.drafts(t, req)

		_, err := h.svc.Accept(context.Background(), bob, b.ID)
		assert.Equal(t, booking.ErrNotAcceptable, err)
	})

	t.Run("meeting link failures", func(t *testing.T) {
		h := setup(t, brokenMeet{})
		ctx := context.Background()
		ada := testutil.CreateUser(t, h.usrRepo, "Ada", "Lovelace", "ada@test.cd", "", nil, nil)
		bob := testutil.CreateUser(t, h.usrRepo, "Bob", "Marley", "bob@test.cd", "", nil, nil)
		req := testutil.CreateExchange(t, h.exchangeRepo, ada, bob, "Go", "Piano", exchange.StatusAccepted)
		require.NoError(t, h.svc.CreateForExchange(ctx, req))
		_, b := h.drafts(t, req)

		_, err := h.svc.Update(ctx, bob, b.ID, booking.Update{TotalSessions: core.IntPtr(2)})
		require.NoError(t, err)
		accepted, err := h.svc.Accept(ctx, ada, b.ID)
		require.NoError(t, err)

		require.Len(t, accepted.Sessions, 2)
		for _, s := range accepted.Sessions {
			assert.Empty(t, s.MeetingLink)
			assert.Equal(t, "Piano", s.Skill)
			assert.Equal(t, bob.ID, s.InstructorID)
		}
		stored, err := h.sessionRepo.ListSessions(ctx, ada.ID)
		require.NoError(t, err)
		assert.Len(t, stored, 2)
	})
}
