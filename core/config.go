package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string
		Port            int
		DebugHost       string
		ShutdownTimeout time.Duration
		AllowOrigins    []string
		RateLimit       int
		RateLimitWindow time.Duration
		DisableReqLogs  bool
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Host      string
		Port      int
		Username  string
		Password  string
		DB        int
		QueueName string
	}

	Config struct {
		Env      string
		Build    string
		Debug    bool
		TestMode bool
		WorkDir  string

		AppName          string
		SecretKey        string
		RefreshSecretKey string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		DefaultTimezone  string

		AccessTokenTTL            time.Duration
		RefreshTokenTTL           time.Duration
		OTPTTL                    time.Duration
		PasswordResetTimeoutDelta time.Duration

		RollbarToken   string
		SendgridApiKey string

		// JSON credentials of the external Google services. Console fallbacks are used when empty.
		FirebaseCredentials string
		MeetCredentials     string

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
	}
)

func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func (d DatabaseConfig) Address() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

func (r RedisConfig) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// NewConfig reads the configuration from the environment (prefixed by the value of ENV)
// and from the optional `config/.env.<env>` file.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Skill Barter")
	v.SetDefault("secretKey", "k3l9-skb)aq$+71=pw&uoxv2(t!s)#*c8(#zg4h^$barter-access")
	v.SetDefault("refreshSecretKey", "r7e2-skb)zp$+05=lm&iqxa9(f!d)#*b1(#kc6j^$barter-refresh")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", `"Skill Barter" <noreply@localhost>`)
	v.SetDefault("defaultTimezone", "Africa/Lagos")
	v.SetDefault("accessTokenTTL", 15*time.Minute)
	v.SetDefault("refreshTokenTTL", 7*24*time.Hour)
	v.SetDefault("otpTTL", 10*time.Minute)
	v.SetDefault("passwordResetTimeoutDelta", time.Hour)
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("firebase.credentials", "")
	v.SetDefault("meet.credentials", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 7000)
	v.SetDefault("server.debugHost", ":7001")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.allowOrigins", []string{"http://localhost:3000", "http://localhost:3001"})
	v.SetDefault("server.rateLimit", 200)
	v.SetDefault("server.rateLimitWindow", 5*time.Minute)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "skillbarter")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", false)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.queueName", "notifications")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	workDir := Getwd()
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	fromEmail, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}

	return &Config{
		Env:      env,
		Build:    v.GetString("build"),
		Debug:    v.GetBool("debug"),
		TestMode: v.GetBool("testMode"),
		WorkDir:  workDir,

		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		RefreshSecretKey: v.GetString("refreshSecretKey"),
		FrontendBaseURL:  strings.TrimSuffix(v.GetString("frontendBaseURL"), "/"),
		DefaultFromEmail: *fromEmail,
		DefaultTimezone:  v.GetString("defaultTimezone"),

		AccessTokenTTL:            v.GetDuration("accessTokenTTL"),
		RefreshTokenTTL:           v.GetDuration("refreshTokenTTL"),
		OTPTTL:                    v.GetDuration("otpTTL"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),

		RollbarToken:   v.GetString("rollbarToken"),
		SendgridApiKey: v.GetString("sendgridApiKey"),

		FirebaseCredentials: v.GetString("firebase.credentials"),
		MeetCredentials:     v.GetString("meet.credentials"),

		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			AllowOrigins:    v.GetStringSlice("server.allowOrigins"),
			RateLimit:       v.GetInt("server.rateLimit"),
			RateLimitWindow: v.GetDuration("server.rateLimitWindow"),
			DisableReqLogs:  v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Redis: RedisConfig{
			Host:      v.GetString("redis.host"),
			Port:      v.GetInt("redis.port"),
			Username:  v.GetString("redis.username"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			QueueName: v.GetString("redis.queueName"),
		},
	}
}

// NewTestConfig returns the configuration used by the test suites.
func NewTestConfig() *Config {
	_ = os.Setenv("ENV", "TEST")
	conf := NewConfig()
	conf.Debug = false
	conf.Server.DisableReqLogs = true
	return conf
}

// Getwd tries to find the project root, i.e. the closest parent directory holding a go.mod file.
// go-test changes the working directory to the package being tested, the root is not always the cwd.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if _, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
