package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core/export"
)

// exportTranslations writes the lang bundle into dir and returns the file path.
func (cli *commandLine) exportTranslations(ctx context.Context, lang, format, dir string) (string, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return "", err
	}
	file, err := cli.i18nSvc.Export(ctx, lang, f)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, file.Filename)
	if err := os.WriteFile(path, file.Body, 0o644); err != nil {
		return "", errors.Wrap(err, "writing export")
	}
	return path, nil
}
