package pg

import (
	"context"

	_ "github.com/lib/pq"
	"github.com/nimasrn/sms-verify/pkg/logger"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

// Migrate runs a goose command ("up", "down", "status", "redo", ...) against dir.
func Migrate(ctx context.Context, cfg Config, dir string, command string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "goose dialect")
	}

	db, err := newSqlConnection(cfg)
	if err != nil {
		return errors.Wrap(err, "open migration connection")
	}
	defer db.Close()

	logger.Info("[migration] running", "command", command, "dir", dir)
	if err = goose.RunContext(ctx, command, db, dir); err != nil {
		return errors.Wrapf(err, "goose %s", command)
	}
	return nil
}
