package tests

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillbarter/backend/core/booking"
	"github.com/skillbarter/backend/core/exchange"
	"github.com/skillbarter/backend/core/session"
	"github.com/skillbarter/backend/core/user"
	"github.com/skillbarter/backend/tests"
)

// acceptedExchange accepts an exchange between requester and receiver and returns
// the draft bookings proposed by each of them.
func acceptedExchange(t *testing.T, app *testApp, requester, receiver user.User) (booking.View, booking.View) {
	req := testutil.CreateExchange(t, app.exchangeRepo, requester, receiver, "Go", "Piano", exchange.StatusPending)
	rec := app.do(http.MethodPatch, "/api/v1/exchange-requests/"+req.ID+"/accept", app.getToken(t, receiver))
	checkCode(t, rec, http.StatusOK)

	draftOf := func(usr user.User) booking.View {
		rec := app.do(http.MethodGet, "/api/v1/session-bookings", app.getToken(t, usr))
		checkCode(t, rec, http.StatusOK)
		var page booking.Page
		unmarshalBody(t, rec, &page)
		require.Len(t, page.DraftBookings, 1)
		return page.DraftBookings[0]
	}
	return draftOf(requester), draftOf(receiver)
}

func Test_bookingApi_negotiation(t *testing.T) {
	app := setup(t)
	ada := testutil.CreateUser(t, app.usrRepo, "Ada", "Lovelace", "ada@test.cd", strongPwd, nil, nil)
	bob := testutil.CreateUser(t, app.usrRepo, "Bob", "Marley", "bob@test.cd", strongPwd, nil, nil)
	eve := testutil.CreateUser(t, app.usrRepo, "Eve", "Online", "eve@test.cd", strongPwd, nil, nil)
	adaToken, bobToken, eveToken := app.getToken(t, ada), app.getToken(t, bob), app.getToken(t, eve)

	adaDraft, _ := acceptedExchange(t, app, ada, bob)
	assert.Equal(t, booking.StatusDraft, adaDraft.Status)
	assert.Equal(t, booking.DefaultSchedule(), adaDraft.Schedule)
	assert.Equal(t, 1, adaDraft.Version)
	assert.Equal(t, "Go", adaDraft.Skill)
	assert.Equal(t, exchange.StatusAccepted, adaDraft.ExchangeRequest.Status)

	path := "/api/v1/session-bookings/" + adaDraft.ID

	t.Run("visibility", func(t *testing.T) {
		tests := []httpTest{
			{name: "recipient cannot see a draft", token: bobToken, wantCode: http.StatusNotFound,
				wantData: marshalObj(t, httpErr{Error: "Session booking not found"})},
			{name: "stranger", token: eveToken, wantCode: http.StatusForbidden,
				wantData: marshalObj(t, httpErr{Error: "You are not authorized to view this session booking"})},
			{name: "proposer", token: adaToken, wantCode: http.StatusOK},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				checkCodeAndData(t, tt, app.do(http.MethodGet, path, tt.token))
			})
		}
	})

	steps := []struct {
		httpTest
		wantStatus  string
		wantVersion int
	}{
		{httpTest: httpTest{name: "stranger cannot update", token: eveToken, body: []byte(`{"message": "lol"}`),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "You are not authorized to update this session booking"})}},
		{httpTest: httpTest{name: "recipient cannot touch a draft", token: bobToken, body: []byte(`{"message": "lol"}`),
			wantCode: http.StatusNotFound}},
		{httpTest: httpTest{name: "empty update", token: adaToken, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "No fields to update"})}},
		{httpTest: httpTest{name: "days count mismatch", token: adaToken, body: []byte(`{"days_of_week": ["Monday", "Friday"]}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"days_of_week": "days_of_week must contain exactly days_per_week days"}`)}},
		{httpTest: httpTest{name: "bad weekday", token: adaToken, body: []byte(`{"days_per_week": 1, "days_of_week": ["Caturday"]}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"days_of_week[0]": "invalid day of week"}`)}},
		{httpTest: httpTest{name: "bad start time", token: adaToken, body: []byte(`{"start_time": "25:00"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"start_time": "time must be in HH:MM format"}`)}},
		{httpTest: httpTest{name: "accepting a draft", method: "accept", token: bobToken,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "Only pending or changes_made session bookings can be accepted"})}},
		{httpTest: httpTest{name: "proposer schedules", token: adaToken,
			body: []byte(`{"days_per_week": 2, "days_of_week": ["Monday", "Thursday"], "start_time": "18:30", "total_sessions": 4}`),
			wantCode: http.StatusOK}, wantStatus: booking.StatusPending, wantVersion: 2},
		{httpTest: httpTest{name: "recipient cannot change the schedule", token: bobToken, body: []byte(`{"duration": 90}`),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "Recipients can only update the message field"})}},
		{httpTest: httpTest{name: "proposer cannot accept", method: "accept", token: adaToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "Only the recipient can accept a session booking"})}},
		{httpTest: httpTest{name: "recipient requests changes", token: bobToken, body: []byte(`{"message": "Later please"}`),
			wantCode: http.StatusOK}, wantStatus: booking.StatusChangesRequested, wantVersion: 2},
		{httpTest: httpTest{name: "recipient waits for changes", token: bobToken, body: []byte(`{"message": "Any news?"}`),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{
				Error: "Changes were already requested, wait for the proposer to update the schedule"})}},
		{httpTest: httpTest{name: "proposer message only", token: adaToken, body: []byte(`{"message": "Thinking"}`),
			wantCode: http.StatusOK}, wantStatus: booking.StatusChangesRequested, wantVersion: 2},
		{httpTest: httpTest{name: "proposer makes changes", token: adaToken, body: []byte(`{"start_time": "19:00"}`),
			wantCode: http.StatusOK}, wantStatus: booking.StatusChangesMade, wantVersion: 3},
	}
	for _, tt := range steps {
		t.Run(tt.name, func(t *testing.T) {
			var rec *httptest.ResponseRecorder
			if tt.method == "accept" {
				rec = app.do(http.MethodPatch, path+"/accept", tt.token)
			} else {
				rec = app.do(http.MethodPatch, path, tt.token, tt.body)
			}
			checkCodeAndData(t, tt.httpTest, rec)
			if tt.wantStatus != "" {
				var v booking.View
				unmarshalBody(t, rec, &v)
				assert.Equal(t, tt.wantStatus, v.Status)
				assert.Equal(t, tt.wantVersion, v.Version)
			}
		})
	}

	t.Run("accept materializes the sessions", func(t *testing.T) {
		rec := app.do(http.MethodPatch, path+"/accept", bobToken)
		checkCode(t, rec, http.StatusOK)
		var accepted booking.Accepted
		unmarshalBody(t, rec, &accepted)
		assert.Equal(t, booking.StatusAccepted, accepted.Booking.Status)
		require.Len(t, accepted.Sessions, 4)

		prev := time.Now()
		for _, s := range accepted.Sessions {
			assert.Equal(t, ada.ID, s.InstructorID)
			assert.Equal(t, bob.ID, s.LearnerID)
			assert.Equal(t, "Go", s.Skill)
			assert.Equal(t, 60, s.Duration)
			assert.Equal(t, session.StatusScheduled, s.Status)
			assert.Regexp(t, `^https://meet\.google\.com/[a-z]{3}-[a-z]{4}-[a-z]{3}$`, s.MeetingLink)
			assert.True(t, s.ScheduledDate.After(prev))
			wd := s.ScheduledDate.In(time.UTC).Weekday()
			assert.Contains(t, []time.Weekday{time.Monday, time.Thursday}, wd)
			prev = s.ScheduledDate
		}

		// accepted bookings are frozen
		rec = app.do(http.MethodPatch, path, adaToken, []byte(`{"message": "lol"}`))
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "Session booking has already been accepted"})}, rec)
		rec = app.do(http.MethodPatch, path+"/accept", bobToken)
		checkCode(t, rec, http.StatusBadRequest)

		// both parties learnt about the first session
		for _, usr := range []user.User{ada, bob} {
			notifs, err := notificationsOf(app, usr.ID)
			require.NoError(t, err)
			titles := make([]string, 0, len(notifs))
			for _, n := range notifs {
				titles = append(titles, n.Title)
			}
			assert.Contains(t, titles, "Session Scheduled")
		}

		rec = app.do(http.MethodGet, "/api/v1/sessions", bobToken)
		checkCode(t, rec, http.StatusOK)
		var page session.Page
		unmarshalBody(t, rec, &page)
		assert.Equal(t, session.Dashboard{Total: 4, Scheduled: 4}, page.Dashboard)
	})
}
