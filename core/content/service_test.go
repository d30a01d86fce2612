package content_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/content"
	"github.com/purelifecenter/portal/core/user"
	inmemdb "github.com/purelifecenter/portal/storage/database/inmem"
	testutil "github.com/purelifecenter/portal/tests"
)

var now = time.Date(2021, 6, 15, 12, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time { return &t }

func TestService_Visible(t *testing.T) {
	ctx := context.Background()
	testutil.FreezeTime(t, now)
	svc := content.NewService(inmemdb.NewContentRepository(inmemdb.Open()))

	create := func(nb content.NewBanner) content.Banner {
		t.Helper()
		require.NoError(t, nb.Validate())
		b, err := svc.CreateBanner(ctx, nb)
		require.NoError(t, err)
		return b
	}
	info := create(content.NewBanner{Title: "Info", Message: "m", SortOrder: 1})
	infoFirst := create(content.NewBanner{Title: "Info first", Message: "m", SortOrder: 0})
	critical := create(content.NewBanner{Title: "Critical", Message: "m", Severity: "CRITICAL", SortOrder: 5})
	warningLeaders := create(content.NewBanner{Title: "Leaders", Message: "m", Severity: "warning", Audience: "leader"})
	create(content.NewBanner{Title: "Inactive", Message: "m", Active: core.BoolPtr(false)})
	create(content.NewBanner{Title: "Future", Message: "m", StartsAt: now.Add(time.Hour)})
	create(content.NewBanner{Title: "Expired", Message: "m", StartsAt: now.Add(-2 * time.Hour), EndsAt: timePtr(now)})

	tests := []struct {
		name  string
		roles []string
		want  []string
	}{
		{"anonymous", nil, []string{critical.ID, infoFirst.ID, info.ID}},
		{"member", []string{user.RoleMember}, []string{critical.ID, infoFirst.ID, info.ID}},
		{"leader", []string{user.RoleLeader}, []string{critical.ID, warningLeaders.ID, infoFirst.ID, info.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			banners, err := svc.Visible(ctx, tt.roles)
			require.NoError(t, err)
			ids := make([]string, len(banners))
			for i, b := range banners {
				ids[i] = b.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestBanner_Window(t *testing.T) {
	ctx := context.Background()
	testutil.FreezeTime(t, now)
	svc := content.NewService(inmemdb.NewContentRepository(inmemdb.Open()))

	nb := content.NewBanner{Title: "t", Message: "m", StartsAt: now, EndsAt: timePtr(now.Add(-time.Minute))}
	assert.Contains(t, core.ErrorFields(nb.Validate()), "ends_at")

	b, err := svc.CreateBanner(ctx, content.NewBanner{Title: "t", Message: "m", EndsAt: timePtr(now.Add(time.Hour))})
	require.NoError(t, err)
	assert.Equal(t, content.SeverityInfo, b.Severity)
	assert.Equal(t, content.AudienceAll, b.Audience)
	assert.True(t, b.Active)

	_, err = svc.UpdateBanner(ctx, b.ID, content.UpdateBanner{StartsAt: timePtr(now.Add(2 * time.Hour))})
	assert.Contains(t, core.ErrorFields(err), "ends_at")

	b, err = svc.UpdateBanner(ctx, b.ID, content.UpdateBanner{ClearEndsAt: true, StartsAt: timePtr(now.Add(2 * time.Hour))})
	require.NoError(t, err)
	assert.Nil(t, b.EndsAt)

	require.NoError(t, svc.DeleteBanners(ctx, b.ID))
	_, err = svc.GetBanner(ctx, b.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestService_Ticker(t *testing.T) {
	ctx := context.Background()
	testutil.FreezeTime(t, now)
	svc := content.NewService(inmemdb.NewContentRepository(inmemdb.Open()))

	create := func(nn content.NewNewsItem) content.NewsItem {
		t.Helper()
		require.NoError(t, nn.Validate())
		n, err := svc.CreateNewsItem(ctx, nn)
		require.NoError(t, err)
		return n
	}
	low := create(content.NewNewsItem{Text: "low", Priority: 1})
	high := create(content.NewNewsItem{Text: "high", Priority: 10, LinkURL: "https://purelife.example/news"})
	create(content.NewNewsItem{Text: "off", Priority: 99, Active: core.BoolPtr(false)})
	create(content.NewNewsItem{Text: "later", Priority: 50, StartsAt: timePtr(now.Add(time.Hour))})
	mid := create(content.NewNewsItem{Text: "mid", Priority: 5, EndsAt: timePtr(now.Add(time.Hour))})

	active, err := svc.Active(ctx)
	require.NoError(t, err)
	texts := make([]string, len(active))
	for i, n := range active {
		texts[i] = n.Text
	}
	assert.Equal(t, []string{"high", "mid", "low"}, texts)

	reordered, err := svc.Reorder(ctx, []string{low.ID, mid.ID, high.ID})
	require.NoError(t, err)
	prio := make(map[string]int, len(reordered))
	for _, n := range reordered {
		prio[n.ID] = n.Priority
	}
	assert.Equal(t, 3, prio[low.ID])
	assert.Equal(t, 2, prio[mid.ID])
	assert.Equal(t, 1, prio[high.ID])

	active, err = svc.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, low.ID, active[0].ID)

	_, err = svc.Reorder(ctx, []string{low.ID, "missing"})
	assert.True(t, core.IsNotFound(err))

	nn := content.NewNewsItem{Text: "bad link", LinkURL: "not a url"}
	assert.Contains(t, core.ErrorFields(nn.Validate()), "link_url")
}
