package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillbarter/backend/core/connection"
	"github.com/skillbarter/backend/core/contact"
	"github.com/skillbarter/backend/core/exchange"
	"github.com/skillbarter/backend/core/notification"
	"github.com/skillbarter/backend/core/session"
	"github.com/skillbarter/backend/core/stats"
	"github.com/skillbarter/backend/core/user"
	"github.com/skillbarter/backend/tests"
)

func Test_sessionApi(t *testing.T) {
	app := setup(t)
	ada := testutil.CreateUser(t, app.usrRepo, "Ada", "Lovelace", "ada@test.cd", strongPwd, nil, nil)
	bob := testutil.CreateUser(t, app.usrRepo, "Bob", "Marley", "bob@test.cd", strongPwd, nil, nil)
	eve := testutil.CreateUser(t, app.usrRepo, "Eve", "Online", "eve@test.cd", strongPwd, nil, nil)
	adaToken := app.getToken(t, ada)

	now := time.Now()
	past := testutil.CreateSession(t, app.sessionRepo, bob, ada, "Piano", now.Add(-time.Hour), false)
	done := testutil.CreateSession(t, app.sessionRepo, bob, ada, "Piano", now.Add(-48*time.Hour), true)
	next := testutil.CreateSession(t, app.sessionRepo, bob, ada, "Piano", now.Add(24*time.Hour), false)
	later := testutil.CreateSession(t, app.sessionRepo, bob, ada, "Piano", now.Add(72*time.Hour), false)
	teaching := testutil.CreateSession(t, app.sessionRepo, ada, eve, "Go", now.Add(48*time.Hour), false)

	t.Run("query", func(t *testing.T) {
		tests := []struct {
			name    string
			query   string
			wantIDs []string
		}{
			{name: "all", wantIDs: []string{past.ID, next.ID, teaching.ID, later.ID, done.ID}},
			{name: "active", query: "?status=active", wantIDs: []string{past.ID}},
			{name: "completed", query: "?status=completed", wantIDs: []string{done.ID}},
			{name: "paginated", query: "?limit=2&page=2", wantIDs: []string{teaching.ID, later.ID}},
			{name: "page out of range", query: "?page=9223372036854775807", wantIDs: []string{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := app.do(http.MethodGet, "/api/v1/sessions"+tt.query, adaToken)
				checkCode(t, rec, http.StatusOK)
				var page session.Page
				unmarshalBody(t, rec, &page)
				ids := make([]string, 0, len(page.Sessions))
				for _, v := range page.Sessions {
					ids = append(ids, v.ID)
				}
				assert.Equal(t, tt.wantIDs, ids)
				assert.Equal(t, session.Dashboard{Total: 5, Active: 1, Scheduled: 3, Completed: 1}, page.Dashboard)
			})
		}
	})

	t.Run("learning progress", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/api/v1/sessions/learning-progress", adaToken)
		checkCode(t, rec, http.StatusOK)
		var resp struct {
			LearningProgress []session.Progress `json:"learning_progress"`
		}
		unmarshalBody(t, rec, &resp)
		require.Len(t, resp.LearningProgress, 1)
		p := resp.LearningProgress[0]
		assert.Equal(t, "Piano", p.Skill)
		assert.Equal(t, "Bob Marley", p.Instructor.Name)
		assert.Equal(t, 4, p.TotalSessions)
		assert.Equal(t, 1, p.CompletedSessions)
		assert.Equal(t, 25, p.Progress)
		require.NotNil(t, p.NextSession)
		assert.Equal(t, past.ID, p.NextSession.ID)
	})

	t.Run("complete", func(t *testing.T) {
		tests := []httpTest{
			{name: "stranger", path: past.ID, token: app.getToken(t, eve), wantCode: http.StatusNotFound,
				wantData: marshalObj(t, httpErr{Error: "Session not found"})},
			{name: "not started", path: next.ID, token: adaToken, wantCode: http.StatusBadRequest,
				wantData: marshalObj(t, httpErr{Error: "Session has not started yet"})},
			{name: "already completed", path: done.ID, token: adaToken, wantCode: http.StatusBadRequest,
				wantData: marshalObj(t, httpErr{Error: "Session has already been completed"})},
			{name: "unknown", path: "lol", token: adaToken, wantCode: http.StatusNotFound},
			{name: "learner completes", path: past.ID, token: adaToken, wantCode: http.StatusOK},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := app.do(http.MethodPost, "/api/v1/sessions/"+tt.path+"/complete", tt.token)
				checkCodeAndData(t, tt, rec)
			})
		}

		s, err := app.sessionRepo.GetSession(context.Background(), past.ID)
		require.NoError(t, err)
		assert.True(t, s.Completed)
		assert.NotNil(t, s.CompletedAt)
	})
}

func Test_reviewApi(t *testing.T) {
	app := setup(t)
	ada := testutil.CreateUser(t, app.usrRepo, "Ada", "Lovelace", "ada@test.cd", strongPwd, nil, nil)
	bob := testutil.CreateUser(t, app.usrRepo, "Bob", "Marley", "bob@test.cd", strongPwd, nil, nil)
	eve := testutil.CreateUser(t, app.usrRepo, "Eve", "Online", "eve@test.cd", strongPwd, nil, nil)
	path := "/api/v1/users/" + ada.ID + "/reviews"
	bobToken := app.getToken(t, bob)

	tests := []httpTest{
		{name: "anonymous", body: []byte(`{"skill": "Go", "rating": 5}`), wantCode: http.StatusUnauthorized},
		{name: "rating out of range", token: bobToken, body: []byte(`{"skill": "Go", "rating": 6}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"rating": "rating must be 5 or less"}`)},
		{name: "self review", token: app.getToken(t, ada), body: []byte(`{"skill": "Go", "rating": 5}`), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "You cannot review yourself"})},
		{name: "valid", token: bobToken, body: []byte(`{"skill": "Go", "rating": 5, "comment": "Great"}`), wantCode: http.StatusCreated},
		{name: "duplicate", token: bobToken, body: []byte(`{"skill": "Go", "rating": 4}`), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: `You have already reviewed this user for the skill "Go"`})},
		{name: "other skill", token: bobToken, body: []byte(`{"skill": "Rust", "rating": 4}`), wantCode: http.StatusCreated},
		{name: "other reviewer", token: app.getToken(t, eve), body: []byte(`{"skill": "Go", "rating": 3}`), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(http.MethodPost, path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	rec := app.do(http.MethodGet, path+"?limit=2", "")
	checkCode(t, rec, http.StatusOK)
	var page struct {
		Reviews []struct {
			Skill    string `json:"skill"`
			Reviewer struct {
				Name string `json:"name"`
			} `json:"reviewer"`
		} `json:"reviews"`
		Pagination struct {
			Total      int `json:"total"`
			TotalPages int `json:"total_pages"`
		} `json:"pagination"`
		AverageRating   float64 `json:"average_rating"`
		NumberOfReviews int     `json:"number_of_reviews"`
	}
	unmarshalBody(t, rec, &page)
	assert.Len(t, page.Reviews, 2)
	assert.Equal(t, 3, page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	assert.Equal(t, 4.0, page.AverageRating)
	assert.Equal(t, 3, page.NumberOfReviews)

	notifs, err := notificationsOf(app, ada.ID)
	require.NoError(t, err)
	assert.Len(t, notifs, 3)
}

func Test_connectionApi(t *testing.T) {
	app := setup(t)
	ada := testutil.CreateUser(t, app.usrRepo, "Ada", "Lovelace", "ada@test.cd", strongPwd, []string{"Go"}, []string{"Piano"})
	bob := testutil.CreateUser(t, app.usrRepo, "Bob", "Marley", "bob@test.cd", strongPwd, []string{"piano"}, []string{"go", "Chess"})
	joe := testutil.CreateUser(t, app.usrRepo, "Joe", "Pianist", "joe@test.cd", strongPwd, []string{"Piano"}, []string{"Go"})
	testutil.CreateUser(t, app.usrRepo, "Eve", "Online", "eve@test.cd", strongPwd, []string{"Piano"}, []string{"Chess"})
	partner := testutil.CreateUser(t, app.usrRepo, "Pat", "Partner", "pat@test.cd", strongPwd, []string{"Piano"}, []string{"Go"})
	lonely := testutil.CreateUser(t, app.usrRepo, "Lone", "Wolf", "lone@test.cd", strongPwd, []string{"Go"}, nil)
	testutil.CreateExchange(t, app.exchangeRepo, partner, ada, "Piano", "Go", exchange.StatusDeclined)
	testutil.CreateReview(t, app.reviewRepo, joe, bob, "Piano", 4)

	query := func(t *testing.T, token, q string) connection.Page {
		rec := app.do(http.MethodGet, "/api/v1/connections"+q, token)
		checkCode(t, rec, http.StatusOK)
		var page connection.Page
		unmarshalBody(t, rec, &page)
		return page
	}
	names := func(page connection.Page) []string {
		n := make([]string, 0, len(page.Connections))
		for _, c := range page.Connections {
			n = append(n, c.Name)
		}
		return n
	}

	adaToken := app.getToken(t, ada)
	page := query(t, adaToken, "")
	assert.ElementsMatch(t, []string{"Bob Marley", "Joe Pianist"}, names(page))
	assert.Equal(t, 2, page.Pagination.Total)
	for _, c := range page.Connections {
		if c.ID == bob.ID {
			assert.Equal(t, 4.0, c.Rating)
			assert.Equal(t, 1, c.NumberOfReviews)
		}
	}

	assert.Equal(t, []string{"Joe Pianist"}, names(query(t, adaToken, "?search=pianist")))

	page = query(t, adaToken, "?page=9223372036854775807")
	assert.Empty(t, page.Connections)
	assert.Equal(t, 2, page.Pagination.Total)
	assert.Empty(t, query(t, app.getToken(t, lonely), "").Connections)

	rec := app.do(http.MethodGet, "/api/v1/connections", "")
	checkCode(t, rec, http.StatusUnauthorized)
}

func Test_notificationApi(t *testing.T) {
	app := setup(t)
	ada := testutil.CreateUser(t, app.usrRepo, "Ada", "Lovelace", "ada@test.cd", strongPwd, nil, nil)
	bob := testutil.CreateUser(t, app.usrRepo, "Bob", "Marley", "bob@test.cd", strongPwd, nil, nil)
	adaToken, bobToken := app.getToken(t, ada), app.getToken(t, bob)

	t.Run("settings", func(t *testing.T) {
		rec := app.do(http.MethodPatch, "/api/v1/notification-settings", adaToken, []byte(`{"email": {"messages": true}}`))
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "Notification settings not found"})}, rec)

		// created on first read
		rec = app.do(http.MethodGet, "/api/v1/notification-settings", adaToken)
		checkCode(t, rec, http.StatusOK)
		var settings notification.Settings
		unmarshalBody(t, rec, &settings)
		assert.False(t, settings.Email.ExchangeRequests)
		require.NotNil(t, settings.Email.SecurityAlerts)
		assert.True(t, *settings.Email.SecurityAlerts)
		assert.True(t, settings.InApp.ExchangeRequests)

		rec = app.do(http.MethodPatch, "/api/v1/notification-settings", adaToken, []byte(`{}`))
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "At least one of email, push or in_app is required"})}, rec)

		rec = app.do(http.MethodPatch, "/api/v1/notification-settings", adaToken,
			[]byte(`{"in_app": {"reviews_and_ratings": false, "security_alerts": false}, "email": {"exchange_requests": true}}`))
		checkCode(t, rec, http.StatusOK)
		unmarshalBody(t, rec, &settings)
		assert.False(t, settings.InApp.ReviewsAndRatings)
		assert.Nil(t, settings.InApp.SecurityAlerts)
		assert.True(t, settings.InApp.Messages)
		assert.True(t, settings.Email.ExchangeRequests)
	})

	// disabled in-app reviews are not stored
	rec := app.do(http.MethodPost, "/api/v1/users/"+ada.ID+"/reviews", bobToken, []byte(`{"skill": "Go", "rating": 5}`))
	checkCode(t, rec, http.StatusCreated)
	rec = app.do(http.MethodPost, "/api/v1/exchange-requests", bobToken,
		[]byte(`{"receiver_id": "`+ada.ID+`", "teaching_skill": "Go", "learning_skill": "Rust"}`))
	checkCode(t, rec, http.StatusCreated)

	list := func(t *testing.T, token, q string) notification.Page {
		rec := app.do(http.MethodGet, "/api/v1/notifications"+q, token)
		checkCode(t, rec, http.StatusOK)
		var page notification.Page
		unmarshalBody(t, rec, &page)
		return page
	}

	page := list(t, adaToken, "")
	require.Len(t, page.Notifications, 1)
	assert.Equal(t, notification.TypeExchangeRequest, page.Notifications[0].Type)
	assert.Equal(t, 1, page.UnreadCount)
	id := page.Notifications[0].ID

	t.Run("mark read", func(t *testing.T) {
		rec := app.do(http.MethodPatch, "/api/v1/notifications/"+id+"/read", bobToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "Notification not found"})}, rec)

		rec = app.do(http.MethodPatch, "/api/v1/notifications/"+id+"/read", adaToken)
		checkCode(t, rec, http.StatusOK)
		var n notification.Notification
		unmarshalBody(t, rec, &n)
		assert.Equal(t, notification.StatusRead, n.Status)
		require.NotNil(t, n.ReadAt)

		// idempotent
		rec = app.do(http.MethodPatch, "/api/v1/notifications/"+id+"/read", adaToken)
		checkCode(t, rec, http.StatusOK)

		page := list(t, adaToken, "?status=unread")
		assert.Empty(t, page.Notifications)
		assert.Zero(t, page.UnreadCount)
		assert.Len(t, list(t, adaToken, "?status=read").Notifications, 1)
	})

	t.Run("mark all read", func(t *testing.T) {
		for _, skill := range []string{"Go", "Rust"} {
			rec := app.do(http.MethodPost, "/api/v1/users/"+bob.ID+"/reviews", adaToken, []byte(`{"skill": "`+skill+`", "rating": 4}`))
			checkCode(t, rec, http.StatusCreated)
		}
		assert.Equal(t, 2, list(t, bobToken, "").UnreadCount)

		rec := app.do(http.MethodPatch, "/api/v1/notifications/read-all", bobToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marshalObj(t, httpMsg{Message: "All notifications marked as read"})}, rec)
		assert.Zero(t, list(t, bobToken, "").UnreadCount)
	})
}

func Test_contactApi(t *testing.T) {
	app := setup(t)
	ada := testutil.CreateUser(t, app.usrRepo, "Ada", "Lovelace", "ada@test.cd", strongPwd, nil, nil)
	bob := testutil.CreateUser(t, app.usrRepo, "Bob", "Marley", "bob@test.cd", strongPwd, nil, nil)
	eve := testutil.CreateUser(t, app.usrRepo, "Eve", "Online", "eve@test.cd", strongPwd, nil, nil)

	for _, requester := range []user.User{bob, eve} {
		req := testutil.CreateExchange(t, app.exchangeRepo, requester, ada, "Go", "Piano", exchange.StatusPending)
		rec := app.do(http.MethodPatch, "/api/v1/exchange-requests/"+req.ID+"/accept", app.getToken(t, ada))
		checkCode(t, rec, http.StatusOK)
	}

	rec := app.do(http.MethodGet, "/api/v1/contacts", app.getToken(t, ada))
	checkCode(t, rec, http.StatusOK)
	var resp struct {
		Contacts []contact.View `json:"contacts"`
	}
	unmarshalBody(t, rec, &resp)
	require.Len(t, resp.Contacts, 2)
	others := []string{resp.Contacts[0].Contact.Name, resp.Contacts[1].Contact.Name}
	assert.ElementsMatch(t, []string{"Bob Marley", "Eve Online"}, others)
	for _, c := range resp.Contacts {
		assert.Equal(t, contact.ConversationID(ada.ID, c.Contact.ID), c.ConversationID)
		assert.Zero(t, c.UnreadCount)
	}

	rec = app.do(http.MethodGet, "/api/v1/contacts", app.getToken(t, bob))
	checkCode(t, rec, http.StatusOK)
	unmarshalBody(t, rec, &resp)
	require.Len(t, resp.Contacts, 1)
	assert.Equal(t, ada.ID, resp.Contacts[0].Contact.ID)
}

func Test_statsApi(t *testing.T) {
	app := setup(t)

	rec := app.do(http.MethodGet, "/api/v1/stats/community-highlights", "")
	checkCode(t, rec, http.StatusOK)
	var hl stats.CommunityHighlights
	unmarshalBody(t, rec, &hl)
	assert.Equal(t, stats.CommunityHighlights{MostExchangedSkill: "No exchanges yet"}, hl)

	ada := testutil.CreateUser(t, app.usrRepo, "Ada", "Lovelace", "ada@test.cd", strongPwd, nil, nil)
	bob := testutil.CreateUser(t, app.usrRepo, "Bob", "Marley", "bob@test.cd", strongPwd, nil, nil)
	eve := testutil.CreateUser(t, app.usrRepo, "Eve", "Online", "eve@test.cd", strongPwd, nil, nil)
	testutil.CreateExchange(t, app.exchangeRepo, ada, bob, "Go", "Piano", exchange.StatusAccepted)
	testutil.CreateExchange(t, app.exchangeRepo, eve, ada, "Piano", "Chess", exchange.StatusPending)
	testutil.CreateExchange(t, app.exchangeRepo, bob, eve, "Go", "Piano", exchange.StatusDeclined)
	testutil.CreateReview(t, app.reviewRepo, bob, ada, "Go", 5)
	testutil.CreateReview(t, app.reviewRepo, eve, ada, "Go", 4)
	testutil.CreateReview(t, app.reviewRepo, ada, bob, "Piano", 4)
	now := time.Now()
	testutil.CreateSession(t, app.sessionRepo, ada, bob, "Go", now.Add(time.Hour), false)
	testutil.CreateSession(t, app.sessionRepo, ada, bob, "Go", now.Add(-time.Hour), true)
	testutil.CreateSession(t, app.sessionRepo, bob, ada, "Piano", now.Add(-time.Hour), false)

	rec = app.do(http.MethodGet, "/api/v1/stats/community-highlights", "")
	checkCode(t, rec, http.StatusOK)
	unmarshalBody(t, rec, &hl)
	assert.Equal(t, stats.CommunityHighlights{ActiveMembers: 3, MostExchangedSkill: "Piano", TopRated: 4.3}, hl)

	rec = app.do(http.MethodGet, "/api/v1/users/me/stats", app.getToken(t, ada))
	checkCode(t, rec, http.StatusOK)
	var qs stats.QuickStats
	unmarshalBody(t, rec, &qs)
	assert.Equal(t, stats.QuickStats{
		ActiveExchanges:   1,
		PendingRequests:   1,
		UpcomingSessions:  1,
		CompletedSessions: 1,
		AverageRating:     4.5,
		NumberOfReviews:   2,
	}, qs)
}
