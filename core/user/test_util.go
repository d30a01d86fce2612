package user

import (
	"context"

	"github.com/purelifecenter/portal/core"
)

type serviceMock struct {
	*service
}

// NewServiceMock returns a Service that sends password reset emails synchronously.
func NewServiceMock(repo Repository, mailSvc core.EmailService, conf *core.Config, log core.Logger) Service {
	return &serviceMock{service: newService(repo, mailSvc, conf, log)}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}

// MakeResetToken exposes token generation to tests in other packages.
func (svc *serviceMock) MakeResetToken(usr User) string {
	return svc.tokens.makeToken(usr)
}
