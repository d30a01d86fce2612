// Package files stores uploaded media on local disk or in an S3 compatible bucket.
package files

import (
	"context"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core"
)

var ErrInvalidKey = errors.New("invalid file key")

// New returns the store selected by conf.Storage.Driver.
func New(ctx context.Context, conf *core.Config) (core.FileStore, error) {
	sc := conf.Storage
	switch sc.Driver {
	case "", "local":
		return NewLocalStore(sc.LocalDir, sc.PublicBaseURL)
	case "s3":
		return NewS3Store(ctx, sc.S3Bucket, sc.S3Region, sc.S3Endpoint, sc.PublicBaseURL)
	default:
		return nil, errors.Errorf("unknown storage driver %q", sc.Driver)
	}
}

// cleanKey rejects keys that would escape the storage root.
func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(path.Clean("/"+key), "/")
	if key == "" || key == "." {
		return "", ErrInvalidKey
	}
	return key, nil
}

func publicURL(baseURL, key string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + key
}
