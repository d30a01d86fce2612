package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/user"
)

// addUser creates a user.User, or reactivates the existing one with the new password.
func (cli *commandLine) addUser(ctx context.Context, name, uname, email, pwd string, isAdmin bool) (user.User, error) {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	roles := []string{user.RoleMember}
	if isAdmin {
		roles = user.AdminRoles
	}

	lookup := uname
	if lookup == "" {
		lookup = email
	}
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, lookup)
	if err != nil {
		if !core.IsNotFound(err) {
			return user.User{}, errors.Wrap(err, "getting user")
		}
		if name == "" {
			name = lookup
		}
		nu := user.NewUser{
			Name:            name,
			Username:        uname,
			Email:           email,
			Password:        pwd,
			PasswordConfirm: pwd,
			Roles:           roles,
		}
		if err := nu.Validate(ctx, cli.usrSvc); err != nil {
			return user.User{}, err
		}
		return cli.usrSvc.Create(ctx, nu)
	}

	if isAdmin {
		usr.Roles = roles
	}
	if name != "" {
		usr.Name = name
	}
	usr.IsActive = true
	if err := usr.SetPassword(pwd); err != nil {
		return user.User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = core.NowFunc()
	return cli.usrRepo.UpdateUser(ctx, usr)
}
