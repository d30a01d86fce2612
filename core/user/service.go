package user

import (
	"context"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core"
)

const (
	referralAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	referralLen      = 10
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("user")
	ErrUserExists     = errors.New("a user with this username or email already exists")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrInvalidSponsor = errors.New("invalid sponsor code")
	ErrInvalidReset   = errors.New("invalid password reset link")
)

type (
	Repository interface {
		// CheckUsernameUniqueness returns ErrUsernameExists or ErrEmailExists when another user holds them.
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		// QueryFilter.Roles matches users having any role starting with any of the provided roles.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// QueryRecruits returns the users directly sponsored by any of sponsorIDs.
		QueryRecruits(ctx context.Context, sponsorIDs []string) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) (int, error)
	}

	Service interface {
		CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsername(ctx context.Context, uname string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		GetByReferralCode(ctx context.Context, code string) (User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Delete(ctx context.Context, ids ...string) error
		// Downline returns every direct and indirect recruit of the user, breadth-first.
		Downline(ctx context.Context, id string) ([]User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
		log     core.Logger
		tokens  tokenGenerator
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config, log core.Logger) Service {
	return newService(repo, mailSvc, conf, log)
}

func newService(repo Repository, mailSvc core.EmailService, conf *core.Config, log core.Logger) *service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
		log:     log,
		tokens:  newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return errors.Wrap(err, "checking uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) newReferralCode(ctx context.Context) (string, error) {
	for {
		code, err := gonanoid.Generate(referralAlphabet, referralLen)
		if err != nil {
			return "", errors.Wrap(err, "generating referral code")
		}
		_, err = svc.repo.GetUser(ctx, GetFilter{ReferralCode: code})
		if core.IsNotFound(err) {
			return code, nil
		}
		if err != nil {
			return "", errors.Wrap(err, "checking referral code")
		}
	}
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := core.NowFunc()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Phone:     nu.Phone,
		IsActive:  true,
		Roles:     nu.Roles,
		Language:  nu.Language,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(usr.Roles) == 0 {
		usr.Roles = []string{RoleMember}
	}
	if usr.Language == "" {
		usr.Language = "en"
	}

	if nu.SponsorCode != "" {
		sponsor, err := svc.repo.GetUser(ctx, GetFilter{ReferralCode: nu.SponsorCode})
		if err != nil {
			if core.IsNotFound(err) {
				return User{}, core.NewValidationError(ErrInvalidSponsor, core.FieldError{
					Field: "sponsor_code",
					Error: ErrInvalidSponsor.Error(),
				})
			}
			return User{}, errors.Wrap(err, "finding sponsor")
		}
		usr.SponsorID = sponsor.ID
	}

	code, err := svc.newReferralCode(ctx)
	if err != nil {
		return User{}, err
	}
	usr.ReferralCode = code

	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Username: core.CleanString(uname, true /* lower */)})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *service) GetByReferralCode(ctx context.Context, code string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ReferralCode: core.CleanString(code)})
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return User{}, err
	}

	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	if uu.Phone != nil {
		usr.Phone = *uu.Phone
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	if uu.Language != "" {
		usr.Language = uu.Language
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := svc.repo.DeleteUsersByID(ctx, ids...)
	return err
}

func (svc *service) Downline(ctx context.Context, id string) ([]User, error) {
	seen := map[string]bool{id: true}
	var downline []User

	level := []string{id}
	for len(level) > 0 {
		recruits, err := svc.repo.QueryRecruits(ctx, level)
		if err != nil {
			return nil, errors.Wrap(err, "querying recruits")
		}
		next := make([]string, 0, len(recruits))
		for _, r := range recruits {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			downline = append(downline, r)
			next = append(next, r.ID)
		}
		level = next
	}
	return downline, nil
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) sendPasswordResetMail(usr User) {
	data := struct {
		Name  string
		UID   string
		Token string
	}{
		Name:  usr.DisplayName(),
		UID:   EncodeUID(usr),
		Token: svc.tokens.makeToken(usr),
	}
	to := svc.conf.DefaultFromEmail()
	to.Name = usr.DisplayName()
	to.Address = usr.Email

	msg := core.NewEmailMessage(svc.conf, "password_reset", "Password Reset", data, to)
	if err := msg.Render(); err != nil {
		svc.log.Error("rendering password reset email", errors.Wrap(err, "rendering"), usr)
		return
	}
	svc.mailSvc.SendMessages(msg)
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	id, err := decodeUID(data.UID)
	if err != nil {
		return core.NewValidationError(ErrInvalidReset)
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(ErrInvalidReset)
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err := svc.tokens.verifyToken(usr, data.Token); err != nil {
		return core.NewValidationError(errors.Wrap(err, ErrInvalidReset.Error()))
	}

	if err := usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = core.NowFunc()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}
