package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/ioutil"
	"log"
	"strconv"
	"testing"
	"time"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/auth"
	"github.com/skillbarter/backend/core/user"
	logsvc "github.com/skillbarter/backend/services/logger"
	dummydb "github.com/skillbarter/backend/storage/database/dummy"
	"github.com/skillbarter/backend/tests"
)

var (
	usrRepo user.Repository
	otpRepo auth.OTPRepository
)

func setup(t *testing.T) *commandLine {
	conf := core.NewTestConfig()
	core.HashParams = core.TestHashParams
	logger := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)

	// set up DB & repos
	db := dummydb.Open()
	usrRepo = dummydb.NewUserRepository(db)
	otpRepo = dummydb.NewOTPRepository(db)

	// start CLI
	usrSvc := user.NewService(usrRepo, conf, nil)
	return &commandLine{
		usrSvc: usrSvc,
		authSvc: auth.NewService(auth.Deps{
			Conf:    conf,
			UserSvc: usrSvc,
			OTPRepo: otpRepo,
			Logger:  logger,
		}),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case err == nil:
		if tt.wantErr != nil || tt.wantErrStr != "" {
			t.Errorf("cli.run() error = nil, wantErr %v%s", tt.wantErr, tt.wantErrStr)
		}
	case tt.wantErr != nil:
		if err != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	default:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "add_badges", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	testutil.CreateUser(t, usrRepo, "Ada", "Lovelace", "ada@test.cd", "Xylo9Quartz", nil, nil)

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "missing names", args: []string{"adduser", "-email", "bob@test.cd"}, extra: "Xylo9Quartz", wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-email", "bob@test.cd", "-first", "Bob", "-last", "M"}, wantErr: errHelp},
		{name: "email taken", args: []string{"adduser", "-email", "ADA@test.cd", "-first", "Ada", "-last", "L"}, extra: "Xylo9Quartz",
			wantErrStr: "Email already taken"},
		{name: "valid", args: []string{"adduser", "-email", " Bob@Test.cd ", "-first", "Bob", "-last", "Marley"}, extra: "Xylo9Quartz"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	usr, err := usrRepo.GetUserByEmail(context.Background(), "bob@test.cd")
	if err != nil {
		t.Fatalf("GetUserByEmail() failed, %v", err)
	}
	if usr.FirstName != "Bob" || !usr.CheckPassword("Xylo9Quartz") {
		t.Errorf("adduser created %+v", usr)
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	usr := testutil.CreateUser(t, usrRepo, "User", "Awe", "awe@test.cd", "mdr", nil, nil)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@test.cd"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, extra: "lol", wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", usr.Email}, extra: "lol"},
		{name: "reset with uppercase email", args: []string{"resetpassword", "-email", "AWE@test.cd"}, extra: "lmao"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			tt.check(t, err)
			if err != nil {
				return
			}
			refreshedUsr, err := usrRepo.GetUserByID(context.Background(), usr.ID)
			if err != nil {
				t.Fatalf("GetUserByID() failed, %v", err)
			}
			if !refreshedUsr.CheckPassword(pwd) {
				t.Error("failed to update new password")
			}
		})
	}
}

func Test_commandLine_purgeOTPs(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, exp := range []time.Time{now.Add(-time.Hour), now.Add(-time.Minute), now.Add(time.Hour)} {
		if _, err := otpRepo.CreateOTP(ctx, auth.OTP{
			Email:     "ada@test.cd",
			Purpose:   auth.PurposeEmailVerification,
			ExpiresAt: exp,
			CreatedAt: exp.Add(-10 * time.Minute),
		}); err != nil {
			t.Fatalf("CreateOTP() failed, %v", err)
		}
	}

	if err := cli.run([]string{"admin", "purgeotps"}); err != nil {
		t.Fatalf("cli.run() unexpected error = %v", err)
	}
	if _, err := otpRepo.GetLatestOTP(ctx, "ada@test.cd", auth.PurposeEmailVerification, false); err != nil {
		t.Errorf("unexpired otp was purged: %v", err)
	}
	n, _ := otpRepo.DeleteExpiredOTPs(ctx, now.Add(2*time.Hour))
	if n != 1 {
		t.Errorf("%d otps left, want 1", n)
	}
}
