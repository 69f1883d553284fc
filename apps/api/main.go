package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // registers the /debug/pprof handlers
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	echoapi "github.com/skillbarter/backend/apps/api/echo"
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
	emailsvc "github.com/skillbarter/backend/services/email"
	logsvc "github.com/skillbarter/backend/services/logger"
	meetsvc "github.com/skillbarter/backend/services/meet"
	pushsvc "github.com/skillbarter/backend/services/push"
	"github.com/skillbarter/backend/storage/database"
	dummydb "github.com/skillbarter/backend/storage/database/dummy"
	sqlxrepos "github.com/skillbarter/backend/storage/database/sqlx"
	redisstore "github.com/skillbarter/backend/storage/redis"
)

type repositories struct {
	user         user.Repository
	otp          auth.OTPRepository
	exchange     exchange.Repository
	booking      booking.Repository
	session      session.Repository
	review       review.Repository
	notification notification.Repository
	contact      contact.Repository
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up storage
	repos, rdb, closeStorage, err := setUpStorage(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up storage: %v", err), err)
	}
	defer func() {
		if err = closeStorage(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	validate := validator.New()
	translator := newTranslator()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	pushSvc := pushsvc.NewConsoleSender(false)
	if conf.FirebaseCredentials != "" {
		if pushSvc, err = pushsvc.NewFCMSender(ctx, conf, logger); err != nil {
			logger.Fatal(fmt.Sprintf("setting up push notifications: %v", err), err)
		}
	}

	meetSvc := meetsvc.NewConsoleProvider(false)
	if conf.MeetCredentials != "" {
		if meetSvc, err = meetsvc.NewGoogleMeetProvider(ctx, conf); err != nil {
			logger.Fatal(fmt.Sprintf("setting up meeting links: %v", err), err)
		}
	}

	queue := redisstore.NewQueue(rdb, conf.Redis.QueueName)

	var notifSvc notification.Service
	usrSvc := user.NewService(repos.user, conf, func(ctx context.Context, usr user.User, event string) {
		notification.NewSecurityAlerter(notifSvc)(ctx, usr, event)
	})
	notifSvc = notification.NewService(notification.Deps{
		Repo:    repos.notification,
		UserSvc: usrSvc,
		MailSvc: mailSvc,
		PushSvc: pushSvc,
		Queue:   queue,
		Logger:  logger,
	})
	contactSvc := contact.NewService(repos.contact, usrSvc)
	sessionSvc := session.NewService(repos.session, usrSvc, validate)
	bookingSvc := booking.NewService(booking.Deps{
		Repo:         repos.booking,
		ExchangeRepo: repos.exchange,
		UserSvc:      usrSvc,
		SessionSvc:   sessionSvc,
		MeetSvc:      meetSvc,
		NotifSvc:     notifSvc,
		Validate:     validate,
		Conf:         conf,
		Logger:       logger,
	})
	exchangeSvc := exchange.NewService(exchange.Deps{
		Repo:       repos.exchange,
		UserSvc:    usrSvc,
		BookingSvc: bookingSvc,
		ContactSvc: contactSvc,
		NotifSvc:   notifSvc,
		Logger:     logger,
	})
	reviewSvc := review.NewService(repos.review, usrSvc, notifSvc)
	connectionSvc := connection.NewService(usrSvc, reviewSvc, repos.exchange)
	statsSvc := stats.NewService(stats.Deps{
		UserSvc:      usrSvc,
		ReviewSvc:    reviewSvc,
		ExchangeRepo: repos.exchange,
		SessionRepo:  repos.session,
	})
	authSvc := auth.NewService(auth.Deps{
		Conf:        conf,
		UserSvc:     usrSvc,
		OTPRepo:     repos.otp,
		Blacklist:   redisstore.NewBlacklist(rdb),
		MailSvc:     mailSvc,
		SettingsSvc: notifSvc,
		Alert:       notification.NewSecurityAlerter(notifSvc),
		Logger:      logger,
	})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	auth.InitValidators(validate)
	booking.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	// =========================================================================
	// Start Notification Worker

	worker := redisstore.NewWorker(queue, notifSvc, logger)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx)
	}()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:            conf,
		Logger:          logger,
		Validate:        validate,
		Translator:      translator,
		AuthSvc:         authSvc,
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

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		sctx, scancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer scancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(sctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}

		// let the worker finish its current job
		cancel()
		select {
		case <-workerDone:
		case <-sctx.Done():
			logger.Warn("notification worker did not stop in time")
		}
	}
}

// setUpStorage opens the configured database engine and Redis.
// The memory engine runs on in-memory repositories and an embedded Redis.
func setUpStorage(ctx context.Context, conf *core.Config) (repositories, *redis.Client, func() error, error) {
	if conf.Database.Engine == database.EngineMemory {
		rdb, closeRedis, err := redisstore.NewEmbedded()
		if err != nil {
			return repositories{}, nil, nil, err
		}
		db := dummydb.Open()
		repos := repositories{
			user:         dummydb.NewUserRepository(db),
			otp:          dummydb.NewOTPRepository(db),
			exchange:     dummydb.NewExchangeRepository(db),
			booking:      dummydb.NewBookingRepository(db),
			session:      dummydb.NewSessionRepository(db),
			review:       dummydb.NewReviewRepository(db),
			notification: dummydb.NewNotificationRepository(db),
			contact:      dummydb.NewContactRepository(db),
		}
		return repos, rdb, func() error { closeRedis(); return nil }, nil
	}

	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return repositories{}, nil, nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return repositories{}, nil, nil, err
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return repositories{}, nil, nil, err
	}
	rdb, err := redisstore.NewClient(ctx, conf)
	if err != nil {
		_ = db.Close()
		return repositories{}, nil, nil, err
	}

	repos := repositories{
		user:         sqlxrepos.NewUserRepository(db),
		otp:          sqlxrepos.NewOTPRepository(db),
		exchange:     sqlxrepos.NewExchangeRepository(db),
		booking:      sqlxrepos.NewBookingRepository(db),
		session:      sqlxrepos.NewSessionRepository(db),
		review:       sqlxrepos.NewReviewRepository(db),
		notification: sqlxrepos.NewNotificationRepository(db),
		contact:      sqlxrepos.NewContactRepository(db),
	}
	closeAll := func() error {
		rErr := rdb.Close()
		if err := db.Close(); err != nil {
			return err
		}
		return rErr
	}
	return repos, rdb, closeAll, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
