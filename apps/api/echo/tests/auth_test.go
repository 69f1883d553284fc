package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillbarter/backend/core/auth"
	"github.com/skillbarter/backend/services/email"
	"github.com/skillbarter/backend/tests"
)

const strongPwd = "Xylo9Quartz"

// lastOTP returns the code of the last OTP email.
func lastOTP(t *testing.T) string {
	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok, "no email sent")
	data, ok := msg.TemplateData.(map[string]string)
	require.True(t, ok, "unexpected template data %T", msg.TemplateData)
	return data["otp"]
}

func Test_authApi_registration(t *testing.T) {
	app := setup(t)
	testutil.CreateUser(t, app.usrRepo, "Taken", "User", "taken@test.cd", strongPwd, nil, nil)

	const email = "new@test.cd"

	tests := []httpTest{
		{
			name:     "send otp: invalid email",
			method:   http.MethodPost,
			path:     "/api/v1/auth/send-verification-otp",
			body:     []byte(`{"email": "lol"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email": "email must be a valid email address"}`),
		},
		{
			name:     "send otp: email registered",
			method:   http.MethodPost,
			path:     "/api/v1/auth/send-verification-otp",
			body:     []byte(`{"email": "TAKEN@test.cd"}`),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "Email already registered"}),
		},
		{
			name:     "register before verification",
			method:   http.MethodPost,
			path:     "/api/v1/auth/register",
			body:     []byte(`{"first_name": "New", "last_name": "Comer", "email": "` + email + `", "password": "` + strongPwd + `"}`),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "Email not verified. Please verify your email first."}),
		},
		{
			name:     "send otp",
			method:   http.MethodPost,
			path:     "/api/v1/auth/send-verification-otp",
			body:     []byte(`{"email": "` + email + `"}`),
			wantCode: http.StatusOK,
			wantData: marshalObj(t, httpMsg{Message: "Verification code sent to your email"}),
		},
		{
			name:     "verify otp: malformed",
			method:   http.MethodPost,
			path:     "/api/v1/auth/verify-otp",
			body:     []byte(`{"email": "` + email + `", "otp": "12ab"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"otp": "OTP must be exactly 6 digits"}`),
		},
		{
			name:     "verify otp: wrong code",
			method:   http.MethodPost,
			path:     "/api/v1/auth/verify-otp",
			body:     []byte(`{"email": "` + email + `", "otp": "000000"}`),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "Invalid or expired OTP"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("verify and register", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/api/v1/auth/verify-otp", "",
			[]byte(`{"email": "`+email+`", "otp": "`+lastOTP(t)+`"}`))
		checkCode(t, rec, http.StatusOK)

		rec = app.do(http.MethodPost, "/api/v1/auth/register", "",
			[]byte(`{"first_name": "New", "last_name": "Comer", "email": "`+email+`", "password": "short"}`))
		checkCode(t, rec, http.StatusBadRequest)

		rec = app.do(http.MethodPost, "/api/v1/auth/register", "", []byte(`{
			"first_name": "New", "last_name": "Comer", "email": "`+email+`", "password": "`+strongPwd+`",
			"skills_to_teach": [{"name": "Go", "difficulty": "advanced"}],
			"skills_to_learn": [{"name": "Piano", "difficulty": "beginner"}]
		}`))
		checkCode(t, rec, http.StatusCreated)

		var sess auth.Session
		unmarshalBody(t, rec, &sess)
		assert.NotEmpty(t, sess.AccessToken)
		assert.NotEmpty(t, sess.RefreshToken)
		assert.Equal(t, email, sess.User.Email)
		assert.Regexp(t, `^new[0-9]{1,3}$`, sess.User.Username)
		assert.Equal(t, []string{"Go"}, sess.User.Skills)
		assert.Equal(t, []string{"Piano"}, sess.User.Interests)

		// default notification settings were created
		settings, err := app.notifRepo.GetSettings(context.Background(), sess.User.ID)
		require.NoError(t, err)
		assert.True(t, settings.InApp.ExchangeRequests)

		// the verified otp is consumed
		rec = app.do(http.MethodPost, "/api/v1/auth/register", "",
			[]byte(`{"first_name": "New", "last_name": "Comer", "email": "`+email+`", "password": "`+strongPwd+`"}`))
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "User already exists"})}, rec)
	})
}

func Test_authApi_session(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateUser(t, app.usrRepo, "Ada", "Lovelace", "ada@test.cd", strongPwd, nil, nil)

	t.Run("login", func(t *testing.T) {
		tests := []httpTest{
			{name: "unknown email", body: []byte(`{"email": "lol@test.cd", "password": "` + strongPwd + `"}`), wantCode: http.StatusUnauthorized,
				wantData: marshalObj(t, httpErr{Error: "Invalid email or password"})},
			{name: "wrong password", body: []byte(`{"email": "ada@test.cd", "password": "Wrong123x"}`), wantCode: http.StatusUnauthorized,
				wantData: marshalObj(t, httpErr{Error: "Invalid email or password"})},
			{name: "missing password", body: []byte(`{"email": "ada@test.cd"}`), wantCode: http.StatusBadRequest,
				wantData: []byte(`{"password": "this field is required"}`)},
			{name: "valid", body: []byte(`{"email": " ADA@test.cd ", "password": "` + strongPwd + `"}`), wantCode: http.StatusOK},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := app.do(http.MethodPost, "/api/v1/auth/login", "", tt.body)
				checkCodeAndData(t, tt, rec)
			})
		}
	})

	rec := app.do(http.MethodPost, "/api/v1/auth/login", "",
		[]byte(`{"email": "ada@test.cd", "password": "`+strongPwd+`"}`))
	checkCode(t, rec, http.StatusOK)
	var sess auth.Session
	unmarshalBody(t, rec, &sess)
	assert.Equal(t, usr.ID, sess.User.ID)

	t.Run("authentication errors", func(t *testing.T) {
		tests := []httpTest{
			{name: "no token", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errNoToken)},
			{name: "garbage token", token: "lol", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errInvalidToken)},
			{name: "refresh token as access", token: sess.RefreshToken, wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errInvalidToken)},
			{name: "valid", token: sess.AccessToken, wantCode: http.StatusOK},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := app.do(http.MethodGet, "/api/v1/users/me", tt.token)
				checkCodeAndData(t, tt, rec)
			})
		}
	})

	var pair auth.TokenPair
	t.Run("refresh rotates the refresh token", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/api/v1/auth/refresh-token", "", []byte(`{"refresh_token": "`+sess.RefreshToken+`"}`))
		checkCode(t, rec, http.StatusOK)
		unmarshalBody(t, rec, &pair)
		assert.NotEmpty(t, pair.AccessToken)

		rec = app.do(http.MethodPost, "/api/v1/auth/refresh-token", "", []byte(`{"refresh_token": "`+sess.RefreshToken+`"}`))
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marshalObj(t, httpErr{Error: "Token has been revoked"})}, rec)

		rec = app.do(http.MethodPost, "/api/v1/auth/refresh-token", "", []byte(`{"refresh_token": "`+sess.AccessToken+`"}`))
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marshalObj(t, httpErr{Error: "Invalid refresh token"})}, rec)
	})

	t.Run("logout revokes both tokens", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/api/v1/auth/logout", pair.AccessToken, []byte(`{"refresh_token": "`+pair.RefreshToken+`"}`))
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marshalObj(t, httpMsg{Message: "Logged out successfully"})}, rec)

		rec = app.do(http.MethodGet, "/api/v1/users/me", pair.AccessToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marshalObj(t, httpErr{Error: "Token has been revoked"})}, rec)

		rec = app.do(http.MethodPost, "/api/v1/auth/refresh-token", "", []byte(`{"refresh_token": "`+pair.RefreshToken+`"}`))
		checkCode(t, rec, http.StatusUnauthorized)

		// other sessions are untouched
		rec = app.do(http.MethodGet, "/api/v1/users/me", sess.AccessToken)
		checkCode(t, rec, http.StatusOK)
	})

	t.Run("deleted user", func(t *testing.T) {
		gone := testutil.CreateUser(t, app.usrRepo, "Gone", "Girl", "gone@test.cd", strongPwd, nil, nil)
		token := app.getToken(t, gone)
		checkCode(t, app.do(http.MethodDelete, "/api/v1/users/me", token), http.StatusOK)

		rec := app.do(http.MethodGet, "/api/v1/users/me", token)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marshalObj(t, httpErr{Error: "User no longer exists"})}, rec)
	})
}

func Test_authApi_passwordReset(t *testing.T) {
	app := setup(t)
	testutil.CreateUser(t, app.usrRepo, "Grace", "Hopper", "grace@test.cd", strongPwd, nil, nil)
	const newPwd = "Zebra7Mango"
	genericMsg := marshalObj(t, httpMsg{Message: "If an account exists for this email, a password reset code has been sent"})

	t.Run("unknown email looks the same", func(t *testing.T) {
		emailsvc.ClearSentMessages()
		rec := app.do(http.MethodPost, "/api/v1/auth/forgot-password", "", []byte(`{"email": "nobody@test.cd"}`))
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: genericMsg}, rec)
		_, sent := emailsvc.LastSentMessage()
		assert.False(t, sent)
	})

	rec := app.do(http.MethodPost, "/api/v1/auth/forgot-password", "", []byte(`{"email": "grace@test.cd"}`))
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: genericMsg}, rec)
	code := lastOTP(t)

	rec = app.do(http.MethodPost, "/api/v1/auth/verify-password-reset-otp", "", []byte(`{"email": "grace@test.cd", "otp": "`+code+`"}`))
	checkCode(t, rec, http.StatusOK)
	var grant struct {
		Message    string `json:"message"`
		ResetToken string `json:"reset_token"`
	}
	unmarshalBody(t, rec, &grant)
	assert.Equal(t, "OTP verified successfully", grant.Message)
	require.NotEmpty(t, grant.ResetToken)

	tests := []httpTest{
		{name: "bad token", body: []byte(`{"email": "grace@test.cd", "reset_token": "lol", "password": "` + newPwd + `"}`),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "Invalid or expired reset token"})},
		{name: "weak password", body: []byte(`{"email": "grace@test.cd", "reset_token": "` + grant.ResetToken + `", "password": "password"}`),
			wantCode: http.StatusBadRequest},
		{name: "valid", body: []byte(`{"email": "grace@test.cd", "reset_token": "` + grant.ResetToken + `", "password": "` + newPwd + `"}`),
			wantCode: http.StatusOK, wantData: marshalObj(t, httpMsg{Message: "Password reset successfully"})},
		{name: "token is single use", body: []byte(`{"email": "grace@test.cd", "reset_token": "` + grant.ResetToken + `", "password": "Other8Pass"}`),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "Invalid or expired reset token"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(http.MethodPost, "/api/v1/auth/reset-password", "", tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	rec = app.do(http.MethodPost, "/api/v1/auth/login", "", []byte(`{"email": "grace@test.cd", "password": "`+newPwd+`"}`))
	checkCode(t, rec, http.StatusOK)
}
