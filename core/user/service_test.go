package user_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/user"
	emailsvc "github.com/purelifecenter/portal/services/email"
	inmemdb "github.com/purelifecenter/portal/storage/database/inmem"
	testutil "github.com/purelifecenter/portal/tests"
)

const strongPwd = "Str0ng!Pass#2021"

func newTestService(t *testing.T) (user.Service, user.Repository, *emailsvc.ConsoleServiceMock) {
	t.Helper()
	conf := core.NewTestConfig()
	logger := testutil.NewLogger()
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	return user.NewServiceMock(repo, mailSvc, conf, logger), repo, mailSvc
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(t)
	sponsor := testutil.CreateUser(t, repo, "Sponsor", "sponsor1", "sponsor@test.com", strongPwd, []string{user.RoleLeader}, true)

	tests := []struct {
		name        string
		nu          user.NewUser
		wantErr     bool
		wantSponsor string
	}{
		{
			name: "defaults",
			nu:   user.NewUser{Name: "Jane Doe", Email: "jane@test.com", Password: strongPwd, PasswordConfirm: strongPwd},
		},
		{
			name: "with sponsor",
			nu: user.NewUser{
				Name: "John Doe", Username: "johndoe", Password: strongPwd, PasswordConfirm: strongPwd,
				SponsorCode: sponsor.ReferralCode,
			},
			wantSponsor: sponsor.ID,
		},
		{
			name: "unknown sponsor",
			nu: user.NewUser{
				Name: "Jim Doe", Username: "jimdoe1", Password: strongPwd, PasswordConfirm: strongPwd,
				SponsorCode: "ZZZZZZZZZZ",
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, err := svc.Create(ctx, tt.nu)
			if tt.wantErr {
				var verr *core.ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, "sponsor_code", verr.Fields[0].Field)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, usr.ID)
			assert.Len(t, usr.ReferralCode, 10)
			assert.Equal(t, []string{user.RoleMember}, usr.Roles)
			assert.Equal(t, "en", usr.Language)
			assert.True(t, usr.IsActive)
			assert.Equal(t, tt.wantSponsor, usr.SponsorID)
			assert.NoError(t, usr.CheckPassword(strongPwd))
		})
	}
}

func TestNewUser_Validate(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(t)
	testutil.CreateUser(t, repo, "Taken", "takenname", "taken@test.com", strongPwd, nil, true)

	tests := []struct {
		name      string
		nu        user.NewUser
		wantField string
	}{
		{"valid", user.NewUser{Name: "Jane", Email: "jane@test.com", Password: strongPwd, PasswordConfirm: strongPwd}, ""},
		{"username or email", user.NewUser{Name: "Jane", Password: strongPwd, PasswordConfirm: strongPwd}, "username"},
		{"too short", user.NewUser{Name: "Jane", Email: "jane@test.com", Password: "Aa1!", PasswordConfirm: "Aa1!"}, "password"},
		{"numeric", user.NewUser{Name: "Jane", Email: "jane@test.com", Password: "12345678901", PasswordConfirm: "12345678901"}, "password"},
		{"no complexity", user.NewUser{Name: "Jane", Email: "jane@test.com", Password: "abcdefghijk", PasswordConfirm: "abcdefghijk"}, "password"},
		{"mismatch", user.NewUser{Name: "Jane", Email: "jane@test.com", Password: strongPwd, PasswordConfirm: strongPwd + "x"}, "password_confirm"},
		{"taken username", user.NewUser{Name: "Jane", Username: "TakenName", Password: strongPwd, PasswordConfirm: strongPwd}, "username"},
		{"taken email", user.NewUser{Name: "Jane", Email: "TAKEN@test.com", Password: strongPwd, PasswordConfirm: strongPwd}, "email"},
		{"invalid role", user.NewUser{Name: "Jane", Email: "jane@test.com", Password: strongPwd, PasswordConfirm: strongPwd, Roles: []string{"admin:root"}}, "roles"},
		{"invalid language", user.NewUser{Name: "Jane", Email: "jane@test.com", Password: strongPwd, PasswordConfirm: strongPwd, Language: "en_US!"}, "language"},
		{"valid language", user.NewUser{Name: "Jane", Email: "jane@test.com", Password: strongPwd, PasswordConfirm: strongPwd, Language: "pt-BR"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nu.Validate(ctx, svc)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			fields := core.ErrorFields(err)
			assert.Contains(t, fields, tt.wantField, "got %v", err)
		})
	}
}

func TestLanguage_Validate(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(t)
	orig := testutil.CreateUser(t, repo, "Jane", "janedoe", "jane@test.com", strongPwd, nil, true)

	nu := user.NewUser{Name: "Ada", Email: "ada@test.com", Password: strongPwd, PasswordConfirm: strongPwd, Language: " pt-br "}
	require.NoError(t, nu.Validate(ctx, svc))
	assert.Equal(t, "pt-BR", nu.Language)

	uu := user.UpdateUser{Language: "FR-ca"}
	require.NoError(t, uu.Validate(ctx, orig, svc))
	assert.Equal(t, "fr-CA", uu.Language)

	uu = user.UpdateUser{Language: "not a tag"}
	assert.Contains(t, core.ErrorFields(uu.Validate(ctx, orig, svc)), "language")
}

func TestService_Downline(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(t)

	root := testutil.CreateUser(t, repo, "Root", "root01", "root@test.com", "", []string{user.RoleLeader}, true)
	a := testutil.CreateRecruit(t, repo, root.ID, "A", "recruita", "a@test.com", "", nil, true)
	b := testutil.CreateRecruit(t, repo, root.ID, "B", "recruitb", "b@test.com", "", nil, true)
	c := testutil.CreateRecruit(t, repo, a.ID, "C", "recruitc", "c@test.com", "", nil, true)
	testutil.CreateUser(t, repo, "Other", "other01", "other@test.com", "", nil, true)

	// a cycle must not loop forever
	root.SponsorID = c.ID
	_, err := repo.UpdateUser(ctx, root)
	require.NoError(t, err)

	downline, err := svc.Downline(ctx, root.ID)
	require.NoError(t, err)

	ids := make([]string, len(downline))
	for i, u := range downline {
		ids[i] = u.ID
	}
	assert.ElementsMatch(t, []string{a.ID, b.ID, c.ID}, ids)
	assert.Equal(t, c.ID, ids[2], "breadth-first order")
}

func TestService_Query(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(t)

	admin := testutil.CreateUser(t, repo, "Alice Admin", "alice01", "alice@test.com", "", []string{user.RoleAdminOwner}, true)
	leader := testutil.CreateUser(t, repo, "Bob Leader", "bobby01", "bob@test.com", "", []string{user.RoleLeader}, true)
	inactive := testutil.CreateUser(t, repo, "Carl Member", "carl001", "carl@test.com", "", []string{user.RoleMember}, false)

	tests := []struct {
		name   string
		filter *user.QueryFilter
		want   []string
	}{
		{"all", nil, []string{admin.ID, leader.ID, inactive.ID}},
		{"search", &user.QueryFilter{Search: " BOB "}, []string{leader.ID}},
		{"role prefix", &user.QueryFilter{Roles: []string{"admin:"}}, []string{admin.ID}},
		{"inactive", &user.QueryFilter{IsActive: core.BoolPtr(false)}, []string{inactive.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := svc.Query(ctx, tt.filter, nil)
			require.NoError(t, err)
			ids := make([]string, len(users))
			for i, u := range users {
				ids[i] = u.ID
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}
}

func TestService_PasswordReset(t *testing.T) {
	ctx := context.Background()
	svc, repo, mailSvc := newTestService(t)
	usr := testutil.CreateUser(t, repo, "Jane", "janedoe", "jane@test.com", strongPwd, nil, true)

	require.NoError(t, svc.RequestPasswordReset(ctx, "jane@test.com"))
	sent := mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "jane@test.com", sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, user.EncodeUID(usr))

	assert.True(t, core.IsNotFound(svc.RequestPasswordReset(ctx, "nobody@test.com")))

	tokens, ok := svc.(interface{ MakeResetToken(user.User) string })
	require.True(t, ok)
	newPwd := "N3w!Secret#Pwd"

	err := svc.ResetPassword(ctx, user.ResetUserPassword{
		UID: user.EncodeUID(usr), Token: "bad-token", Password: newPwd, PasswordConfirm: newPwd,
	})
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))

	err = svc.ResetPassword(ctx, user.ResetUserPassword{
		UID: user.EncodeUID(usr), Token: tokens.MakeResetToken(usr), Password: newPwd, PasswordConfirm: newPwd,
	})
	require.NoError(t, err)

	updated, err := svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, updated.CheckPassword(newPwd))
}
