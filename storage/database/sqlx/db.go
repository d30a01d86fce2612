package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/purelifecenter/portal/core"
)

// trapNoRows maps sql.ErrNoRows to the domain's not found error.
func trapNoRows(err, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// where collects AND-ed conditions written with "?" placeholders.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) between(col string, from, to time.Time) {
	if !from.IsZero() {
		w.add(col+" >= ?", from.UTC())
	}
	if !to.IsZero() {
		w.add(col+" <= ?", to.UTC())
	}
}

func (w where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func orderBy(ordering []core.DBOrdering, allowed []string, fallback string) string {
	return " ORDER BY " + core.OrderByClause(ordering, allowed, fallback)
}

// orderByThen puts the requested orderings before the table's natural order.
func orderByThen(ordering []core.DBOrdering, allowed []string, natural string) string {
	if clause := core.OrderByClause(ordering, allowed, ""); clause != "" {
		return " ORDER BY " + clause + ", " + natural
	}
	return " ORDER BY " + natural
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// isViolation reports whether err is a postgres error with the given SQLSTATE code.
func isViolation(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}

const foreignKeyViolation pq.ErrorCode = "23503"

func affected(res sql.Result, err error) (int, error) {
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func nullString(s string) null.String { return null.NewString(s, s != "") }

func nullTime(t time.Time) null.Time { return null.NewTime(t.UTC(), !t.IsZero()) }

func nullTimePtr(t *time.Time) null.Time {
	if t == nil {
		return null.Time{}
	}
	return null.TimeFrom(t.UTC())
}

func nullIntPtr(i *int) null.Int { return null.IntFromPtr(i) }

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
