package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/trezcool/goose"

	appfs "github.com/skillbarter/backend/fs"
)

// mockable
var gooseRunFunc = func(command string, db *sql.DB, args ...string) error {
	return goose.RunFS(command, db, appfs.FS, "migrations", args...)
}

func (cli *commandLine) migrate(args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.db, arguments...)
}

func (cli *commandLine) purgeOTPs() error {
	n, err := cli.authSvc.PurgeExpiredOTPs(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d expired one-time codes\n", n)
	return nil
}
