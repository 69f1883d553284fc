package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillbarter/backend/core/connection"
	"github.com/skillbarter/backend/core/exchange"
	"github.com/skillbarter/backend/core/notification"
	"github.com/skillbarter/backend/core/user"
	"github.com/skillbarter/backend/services/email"
	"github.com/skillbarter/backend/tests"
)

func Test_userApi_me(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateUser(t, app.usrRepo, "Ada", "Lovelace", "ada@test.cd", strongPwd, []string{"Go"}, []string{"Piano"})
	testutil.CreateUser(t, app.usrRepo, "Other", "User", "other@test.cd", strongPwd, nil, nil)
	token := app.getToken(t, usr)

	rec := app.do(http.MethodGet, "/api/v1/users/me", token)
	checkCode(t, rec, http.StatusOK)
	var prof user.Profile
	unmarshalBody(t, rec, &prof)
	assert.Equal(t, usr.ID, prof.ID)
	assert.Equal(t, []string{"Go"}, prof.Skills)
	assert.Nil(t, prof.Location)
	assert.NotContains(t, rec.Body.String(), "password")

	tests := []httpTest{
		{name: "empty first name", body: []byte(`{"first_name": "  "}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"first_name": "this field is required"}`)},
		{name: "invalid username", body: []byte(`{"username": "Bad Name!"}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"username": "only lowercase letters, numbers and underscores are allowed"}`)},
		{name: "invalid website", body: []byte(`{"website": "ftp://lol"}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"website": "must be a valid URL starting with http:// or https://"}`)},
		{name: "invalid timezone", body: []byte(`{"timezone": "Lagos"}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"timezone": "invalid timezone format"}`)},
		{name: "email taken", body: []byte(`{"email": "other@test.cd"}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email": "Email already taken"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(http.MethodPatch, "/api/v1/users/me", token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("valid update", func(t *testing.T) {
		rec := app.do(http.MethodPatch, "/api/v1/users/me", token, []byte(`{
			"city": "Kinshasa", "country": "DR Congo", "timezone": "Africa/Kinshasa",
			"skills": ["go", "Rust", "rust"], "interests": []
		}`))
		checkCode(t, rec, http.StatusOK)
		var prof user.Profile
		unmarshalBody(t, rec, &prof)
		require.NotNil(t, prof.Location)
		assert.Equal(t, "Kinshasa, DR Congo", *prof.Location)
		assert.Equal(t, "Africa/Kinshasa", prof.Timezone)
		assert.Equal(t, []string{"go", "Rust"}, prof.Skills)
		assert.Equal(t, []string{}, prof.Interests)
		assert.Equal(t, "Ada", prof.FirstName)
	})
}

func Test_userApi_changePassword(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateUser(t, app.usrRepo, "Ada", "Lovelace", "ada@test.cd", strongPwd, nil, nil)
	token := app.getToken(t, usr)

	tests := []httpTest{
		{name: "wrong current password", body: []byte(`{"current_password": "Wrong123x", "new_password": "Zebra7Mango"}`),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "Current password is incorrect"})},
		{name: "weak new password", body: []byte(`{"current_password": "` + strongPwd + `", "new_password": "abc"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"new_password": "password must contain at least 8 characters"}`)},
		{name: "similar to name", body: []byte(`{"current_password": "` + strongPwd + `", "new_password": "Lovelace1"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"new_password": "password cannot be similar to user attributes"}`)},
		{name: "valid", body: []byte(`{"current_password": "` + strongPwd + `", "new_password": "Zebra7Mango"}`),
			wantCode: http.StatusOK, wantData: marshalObj(t, httpMsg{Message: "Password changed successfully"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(http.MethodPost, "/api/v1/users/me/change-password", token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	// a security alert went out on every channel
	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, "security_alert", msg.TemplateName)
	page, err := notificationsOf(app, usr.ID)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, notification.TypeSecurityAlert, page[0].Type)
}

func notificationsOf(app *testApp, userID string) ([]notification.Notification, error) {
	notifs, _, err := app.notifRepo.QueryNotifications(context.Background(), userID, notification.QueryFilter{
		PageQuery: pageAll,
	})
	return notifs, err
}

func Test_userApi_fcmToken(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateUser(t, app.usrRepo, "Ada", "Lovelace", "ada@test.cd", strongPwd, nil, nil)
	token := app.getToken(t, usr)

	rec := app.do(http.MethodPost, "/api/v1/users/me/fcm-token", token, []byte(`{"token": ""}`))
	checkCode(t, rec, http.StatusBadRequest)

	rec = app.do(http.MethodPost, "/api/v1/users/me/fcm-token", token, []byte(`{"token": "device-1"}`))
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marshalObj(t, httpMsg{Message: "FCM token registered successfully"})}, rec)

	refreshed, err := app.usrRepo.GetUserByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.Equal(t, "device-1", refreshed.FCMToken)
}

func Test_userApi_profile(t *testing.T) {
	app := setup(t)
	ada := testutil.CreateUser(t, app.usrRepo, "Ada", "Lovelace", "ada@test.cd", strongPwd, []string{"Go"}, []string{"Piano"})
	bob := testutil.CreateUser(t, app.usrRepo, "Bob", "Marley", "bob@test.cd", strongPwd, []string{"Piano"}, []string{"Go"})
	eve := testutil.CreateUser(t, app.usrRepo, "Eve", "Online", "eve@test.cd", strongPwd, nil, nil)
	testutil.CreateExchange(t, app.exchangeRepo, ada, bob, "Go", "Piano", exchange.StatusPending)
	testutil.CreateReview(t, app.reviewRepo, bob, ada, "Go", 5)
	testutil.CreateReview(t, app.reviewRepo, eve, ada, "Go", 4)

	path := "/api/v1/users/" + ada.ID + "/profile"
	strPtr := func(s string) *string { return &s }

	tests := []struct {
		name       string
		token      string
		wantStatus *string
	}{
		{name: "anonymous"},
		{name: "invalid token is anonymous", token: "lol"},
		{name: "self", token: app.getToken(t, ada)},
		{name: "exchange partner", token: app.getToken(t, bob), wantStatus: strPtr(exchange.StatusPending)},
		{name: "stranger", token: app.getToken(t, eve), wantStatus: strPtr(connection.StatusNone)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(http.MethodGet, path, tt.token)
			checkCode(t, rec, http.StatusOK)
			var prof connection.PublicProfile
			unmarshalBody(t, rec, &prof)
			assert.Equal(t, ada.ID, prof.ID)
			assert.Equal(t, "AL", prof.Initials)
			assert.Equal(t, 4.5, prof.Rating)
			assert.Equal(t, 2, prof.NumberOfReviews)
			assert.Equal(t, tt.wantStatus, prof.ConnectionStatus)
			assert.NotContains(t, rec.Body.String(), `"email"`)
		})
	}

	rec := app.do(http.MethodGet, "/api/v1/users/lol/profile", "")
	checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "User not found"})}, rec)
}
