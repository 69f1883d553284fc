package main

import (
	"context"
	"fmt"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/user"
)

// addUser creates a user with a generated username.
func (cli *commandLine) addUser(first, last, email, pwd string) error {
	usr, err := cli.usrSvc.Create(context.Background(), user.NewUser{
		FirstName: core.CleanString(first),
		LastName:  core.CleanString(last),
		Email:     core.CleanString(email, true /* lower */),
		Password:  pwd,
	})
	if err != nil {
		return err
	}
	fmt.Printf("created user %s (%s)\n", usr.Username, usr.ID)
	return nil
}
