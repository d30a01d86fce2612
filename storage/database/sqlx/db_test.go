package sqlxrepos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/purelifecenter/portal/core"
)

func TestWhere(t *testing.T) {
	var w where
	assert.Equal(t, "", w.String())

	w.add("published")
	w.add("category = ?", "health")
	w.between("created_at", time.Time{}, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, " WHERE published AND category = ? AND created_at <= ?", w.String())
	assert.Len(t, w.args, 2)
}

func TestOrderByThen(t *testing.T) {
	allowed := []string{"title", "view_count"}

	assert.Equal(t, " ORDER BY sort_order ASC", orderByThen(nil, allowed, "sort_order ASC"))
	assert.Equal(t, " ORDER BY sort_order ASC",
		orderByThen([]core.DBOrdering{{Field: "password"}}, allowed, "sort_order ASC"))
	assert.Equal(t, " ORDER BY view_count DESC, title ASC, sort_order ASC",
		orderByThen([]core.DBOrdering{{Field: "view_count"}, {Field: "title", Ascending: true}}, allowed, "sort_order ASC"))
}

func TestNullHelpers(t *testing.T) {
	assert.False(t, nullString("").Valid)
	assert.Equal(t, "hi", nullString("hi").String)
	assert.False(t, nullTime(time.Time{}).Valid)
	assert.False(t, nullTimePtr(nil).Valid)

	now := time.Now()
	nt := nullTimePtr(&now)
	assert.True(t, nt.Valid)
	assert.Equal(t, time.UTC, nt.Time.Location())

	assert.True(t, isUUID("8b5a2f3e-43a4-4b8e-9f05-5a7c0c9d1e2f"))
	assert.False(t, isUUID("not-an-id"))
}
