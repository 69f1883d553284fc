package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/skillbarter/backend/apps/api/echo"
	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/auth"
	"github.com/skillbarter/backend/core/booking"
	"github.com/skillbarter/backend/core/connection"
	"github.com/skillbarter/backend/core/contact"
	"github.com/skillbarter/backend/core/exchange"
	"github.com/skillbarter/backend/core/notification"
	"github.com/skillbarter/backend/core/review"
	"github.com/skillbarter/backend/core/session"
	"github.com/skillbarter/backend/core/stats"
	"github.com/skillbarter/backend/core/user"
	"github.com/skillbarter/backend/services/email"
	"github.com/skillbarter/backend/services/logger"
	"github.com/skillbarter/backend/services/meet"
	"github.com/skillbarter/backend/services/push"
	dummydb "github.com/skillbarter/backend/storage/database/dummy"
	redisstore "github.com/skillbarter/backend/storage/redis"
)

var (
	errNoToken      = httpErr{Error: "No token provided"}
	errInvalidToken = httpErr{Error: "Invalid token"}

	pageAll = core.PageQuery{Page: 1, Limit: core.MaxLimit}
)

// testApp is a Server backed by the in-memory repositories and an embedded redis.
type testApp struct {
	Server
	mr *miniredis.Miniredis

	usrRepo      user.Repository
	exchangeRepo exchange.Repository
	bookingRepo  booking.Repository
	sessionRepo  session.Repository
	reviewRepo   review.Repository
	notifRepo    notification.Repository
	contactRepo  contact.Repository

	authSvc auth.Service
}

func setup(t *testing.T, rateLimit ...int) *testApp {
	conf := core.NewTestConfig()
	if len(rateLimit) > 0 {
		conf.Server.RateLimit = rateLimit[0]
	}
	logger := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)
	core.HashParams = core.TestHashParams

	translator := newTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	auth.InitValidators(validate)
	booking.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)

	// set up DB & repos
	db := dummydb.Open()
	app := &testApp{
		usrRepo:      dummydb.NewUserRepository(db),
		exchangeRepo: dummydb.NewExchangeRepository(db),
		bookingRepo:  dummydb.NewBookingRepository(db),
		sessionRepo:  dummydb.NewSessionRepository(db),
		reviewRepo:   dummydb.NewReviewRepository(db),
		notifRepo:    dummydb.NewNotificationRepository(db),
		contactRepo:  dummydb.NewContactRepository(db),
	}

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	app.mr = mr
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	// set up services
	emailsvc.ClearSentMessages()
	pushsvc.ClearSentPushes()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)

	var notifSvc notification.Service
	usrSvc := user.NewService(app.usrRepo, conf, func(ctx context.Context, usr user.User, event string) {
		notification.NewSecurityAlerter(notifSvc)(ctx, usr, event)
	})
	notifSvc = notification.NewService(notification.Deps{
		Repo:    app.notifRepo,
		UserSvc: usrSvc,
		MailSvc: mailSvc,
		PushSvc: pushsvc.NewConsoleSender(true),
		Logger:  logger,
	})
	contactSvc := contact.NewService(app.contactRepo, usrSvc)
	sessionSvc := session.NewService(app.sessionRepo, usrSvc, validate)
	bookingSvc := booking.NewService(booking.Deps{
		Repo:         app.bookingRepo,
		ExchangeRepo: app.exchangeRepo,
		UserSvc:      usrSvc,
		SessionSvc:   sessionSvc,
		MeetSvc:      meetsvc.NewConsoleProvider(true),
		NotifSvc:     notifSvc,
		Validate:     validate,
		Conf:         conf,
		Logger:       logger,
	})
	exchangeSvc := exchange.NewService(exchange.Deps{
		Repo:       app.exchangeRepo,
		UserSvc:    usrSvc,
		BookingSvc: bookingSvc,
		ContactSvc: contactSvc,
		NotifSvc:   notifSvc,
		Logger:     logger,
	})
	reviewSvc := review.NewService(app.reviewRepo, usrSvc, notifSvc)
	connectionSvc := connection.NewService(usrSvc, reviewSvc, app.exchangeRepo)
	statsSvc := stats.NewService(stats.Deps{
		UserSvc:      usrSvc,
		ReviewSvc:    reviewSvc,
		ExchangeRepo: app.exchangeRepo,
		SessionRepo:  app.sessionRepo,
	})
	app.authSvc = auth.NewService(auth.Deps{
		Conf:        conf,
		UserSvc:     usrSvc,
		OTPRepo:     dummydb.NewOTPRepository(db),
		Blacklist:   redisstore.NewBlacklist(rdb),
		MailSvc:     mailSvc,
		SettingsSvc: notifSvc,
		Alert:       notification.NewSecurityAlerter(notifSvc),
		Logger:      logger,
	})

	// set up server
	app.Server = NewServer(ServerDeps{
		Conf:            conf,
		Logger:          logger,
		Validate:        validate,
		Translator:      translator,
		AuthSvc:         app.authSvc,
		UserSvc:         usrSvc,
		ExchangeSvc:     exchangeSvc,
		BookingSvc:      bookingSvc,
		SessionSvc:      sessionSvc,
		ReviewSvc:       reviewSvc,
		NotificationSvc: notifSvc,
		ConnectionSvc:   connectionSvc,
		StatsSvc:        statsSvc,
		ContactSvc:      contactSvc,
		RateLimiter:     redisstore.NewRateLimiter(rdb, conf.Server.RateLimit, conf.Server.RateLimitWindow),
	})
	return app
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

type httpErr struct {
	Error string `json:"error"`
}

type httpMsg struct {
	Message string `json:"message"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// do serves a request and returns the recorded response.
func (app *testApp) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) getToken(t *testing.T, usr user.User) string {
	pair, err := app.authSvc.Tokens().Issue(usr)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return pair.AccessToken
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func unmarshalBody(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarshalBody() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return false, nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// checkCode only asserts the status code, printing the body on failure.
func checkCode(t *testing.T, rec *httptest.ResponseRecorder, wantCode int) {
	assert.Equal(t, wantCode, rec.Code, rec.Body.String())
}
