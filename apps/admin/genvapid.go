package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/push"
)

// genVAPID stores a new key pair and returns its public key.
func (cli *commandLine) genVAPID(ctx context.Context, enable bool) (string, error) {
	c, err := cli.pushSvc.GenerateKeys(ctx)
	if err != nil {
		return "", errors.Wrap(err, "generating VAPID keys")
	}
	if enable {
		if c, err = cli.pushSvc.UpdateConfig(ctx, push.UpdateConfig{Enabled: core.BoolPtr(true)}); err != nil {
			return "", errors.Wrap(err, "enabling web push")
		}
	}
	return c.VAPIDPublicKey, nil
}
