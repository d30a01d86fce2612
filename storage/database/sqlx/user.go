package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/user"
)

const userColumns = `id, name, username, email, phone, is_active, roles, sponsor_id, referral_code,
	language, password_hash, created_at, updated_at, last_login`

var userOrderings = []string{"name", "username", "email", "created_at", "last_login"}

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	Phone        null.String    `db:"phone"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	SponsorID    null.String    `db:"sponsor_id"`
	ReferralCode null.String    `db:"referral_code"`
	Language     string         `db:"language"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     nullString(usr.Username),
		Email:        nullString(usr.Email),
		Phone:        nullString(usr.Phone),
		IsActive:     usr.IsActive,
		Roles:        roles,
		SponsorID:    nullString(usr.SponsorID),
		ReferralCode: nullString(usr.ReferralCode),
		Language:     usr.Language,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    nullTime(usr.LastLogin),
	}
}

func (r userRow) user() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username.String,
		Email:        r.Email.String,
		Phone:        r.Phone.String,
		IsActive:     r.IsActive,
		Roles:        []string(r.Roles),
		SponsorID:    r.SponsorID.String,
		ReferralCode: r.ReferralCode.String,
		Language:     r.Language,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

func usersFromRows(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	excluded := make(pq.StringArray, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded = append(excluded, u.ID)
	}

	var taken []userRow
	err := repo.db.SelectContext(ctx, &taken, `
		SELECT username, email FROM users
		WHERE ((username IS NOT NULL AND username = $1) OR (email IS NOT NULL AND email = $2))
			AND NOT (id::text = ANY($3))
		LIMIT 2`,
		nullString(username), nullString(email), excluded)
	if err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, r := range taken {
		if username != "" && r.Username.String == username {
			return user.ErrUsernameExists
		}
	}
	if len(taken) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :name, :username, :email, :phone, :is_active, :roles, :sponsor_id, :referral_code,
			:language, :password_hash, :created_at, :updated_at, :last_login)`,
		toUserRow(usr))
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var w where
	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			w.add("(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)", val, val, val)
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			prefixes := make(pq.StringArray, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				prefixes = append(prefixes, role+"%")
			}
			w.add("EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role LIKE ANY(?))", prefixes)
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
		if filter.SponsorID != "" {
			w.add("sponsor_id = ?", filter.SponsorID)
		}
		w.between("created_at", filter.CreatedFrom, filter.CreatedTo)
	}

	q := "SELECT " + userColumns + " FROM users" + w.String() +
		orderBy(ordering, userOrderings, "created_at ASC") + ", id"
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return usersFromRows(rows), nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var w where
	switch {
	case filter.ID != "":
		if !isUUID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.Username != "":
		w.add("username = ?", filter.Username)
	case filter.Email != "":
		w.add("email = ?", filter.Email)
	case filter.UsernameOrEmail != "":
		w.add("(username = ? OR email = ?)", filter.UsernameOrEmail, filter.UsernameOrEmail)
	case filter.ReferralCode != "":
		w.add("referral_code = ?", filter.ReferralCode)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	q := "SELECT " + userColumns + " FROM users" + w.String() + " LIMIT 1"
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(q), w.args...); err != nil {
		return user.User{}, trapNoRows(err, user.ErrNotFound, "getting user")
	}
	return row.user(), nil
}

func (repo *userRepository) QueryRecruits(ctx context.Context, sponsorIDs []string) ([]user.User, error) {
	if len(sponsorIDs) == 0 {
		return []user.User{}, nil
	}
	var rows []userRow
	err := repo.db.SelectContext(ctx, &rows,
		"SELECT "+userColumns+" FROM users WHERE sponsor_id::text = ANY($1) ORDER BY created_at, id",
		pq.StringArray(sponsorIDs))
	if err != nil {
		return nil, errors.Wrap(err, "querying recruits")
	}
	return usersFromRows(rows), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	n, err := affected(repo.db.NamedExecContext(ctx, `
		UPDATE users SET name = :name, username = :username, email = :email, phone = :phone,
			is_active = :is_active, roles = :roles, sponsor_id = :sponsor_id, referral_code = :referral_code,
			language = :language, password_hash = :password_hash, updated_at = :updated_at,
			last_login = :last_login
		WHERE id = :id`,
		toUserRow(usr)))
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := affected(repo.db.ExecContext(ctx, "DELETE FROM users WHERE id::text = ANY($1)", pq.StringArray(ids)))
	return n, errors.Wrap(err, "deleting users")
}
