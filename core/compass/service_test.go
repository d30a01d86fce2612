package compass_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/compass"
	"github.com/purelifecenter/portal/core/export"
	"github.com/purelifecenter/portal/core/user"
	inmemdb "github.com/purelifecenter/portal/storage/database/inmem"
	testutil "github.com/purelifecenter/portal/tests"
)

func TestService_GetSettings_Defaults(t *testing.T) {
	svc := compass.NewService(inmemdb.NewCompassRepository(inmemdb.Open()))

	s, err := svc.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, compass.DefaultSettings(), s)
}

func TestService_UpdateSettings(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
	testutil.FreezeTime(t, now)
	svc := compass.NewService(inmemdb.NewCompassRepository(inmemdb.Open()))
	admin := user.User{ID: "4f1e0a44-0c39-4bd4-8d4e-1f1b5b7a0d11", Name: "Admin"}

	tests := []struct {
		name  string
		patch compass.UpdateSettings
		apply func(s *compass.Settings)
	}{
		{
			name:  "enable",
			patch: compass.UpdateSettings{Enabled: core.BoolPtr(true)},
			apply: func(s *compass.Settings) { s.Enabled = true },
		},
		{
			name: "texts",
			patch: compass.UpdateSettings{
				WelcomeMessage: core.StringPtr("Welcome!"),
				Model:          core.StringPtr("  compass-v2 "),
			},
			apply: func(s *compass.Settings) {
				s.WelcomeMessage = "Welcome!"
				s.Model = "compass-v2"
			},
		},
		{
			name:  "quota",
			patch: compass.UpdateSettings{MaxQuestionsPerDay: core.IntPtr(0), SaveHistory: core.BoolPtr(false)},
			apply: func(s *compass.Settings) {
				s.MaxQuestionsPerDay = 0
				s.SaveHistory = false
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, err := svc.GetSettings(ctx)
			require.NoError(t, err)
			require.NoError(t, tt.patch.Validate())

			got, err := svc.UpdateSettings(ctx, admin, tt.patch)
			require.NoError(t, err)

			want := before
			tt.apply(&want)
			want.UpdatedBy = admin.ID
			want.UpdatedAt = now
			assert.Equal(t, want, got)

			stored, err := svc.GetSettings(ctx)
			require.NoError(t, err)
			assert.Equal(t, got, stored)
		})
	}
}

func TestUpdateSettings_Validate(t *testing.T) {
	us := compass.UpdateSettings{Model: core.StringPtr("   ")}
	assert.Contains(t, core.ErrorFields(us.Validate()), "model")

	us = compass.UpdateSettings{MaxQuestionsPerDay: core.IntPtr(-1)}
	assert.Contains(t, core.ErrorFields(us.Validate()), "max_questions_per_day")
}

func TestService_Sessions(t *testing.T) {
	ctx := context.Background()
	svc := compass.NewService(inmemdb.NewCompassRepository(inmemdb.Open()))
	jane := user.User{ID: "jane", Name: `Jane "JJ" Doe`}
	john := user.User{ID: "john", Username: "johnny"}

	start := time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(15 * time.Minute)
	_, err := svc.RecordSession(ctx, jane, compass.NewSession{Topic: "Sleep", QuestionCount: 3, Rating: core.IntPtr(5), StartedAt: start, EndedAt: &end})
	require.NoError(t, err)
	_, err = svc.RecordSession(ctx, john, compass.NewSession{Topic: "Nutrition", StartedAt: start.Add(time.Hour)})
	require.NoError(t, err)

	all, err := svc.QuerySessions(ctx, compass.SessionFilter{}, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "johnny", all[0].UserName, "newest first")

	mine, err := svc.QuerySessions(ctx, compass.SessionFilter{UserID: "jane"}, nil)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, `Jane "JJ" Doe`, mine[0].UserName)

	f, err := svc.ExportSessions(ctx, compass.SessionFilter{UserID: "jane"}, export.FormatCSV)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(f.Filename, "ai-compass-sessions-"))
	assert.True(t, strings.HasSuffix(f.Filename, ".csv"))
	assert.True(t, bytes.HasPrefix(f.Body, []byte("\ufeff")))
	assert.Contains(t, string(f.Body), `"Jane ""JJ"" Doe","Sleep","3","5"`)
}
