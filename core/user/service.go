package user

import (
	"context"
	"crypto/rand"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/skillbarter/backend/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound          = core.NewNotFoundError("User not found")
	ErrEmailExists       = errors.New("Email already taken")
	ErrUsernameExists    = errors.New("Username already taken")
	ErrIncorrectPassword = core.NewBadRequestError("Current password is incorrect")

	usernameCleaner = regexp.MustCompile(`[^a-z0-9_]`)
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists if a live user other than
		// the excluded ones already uses `username` or `email`.
		CheckUniqueness(ctx context.Context, username, email string, excludedIDs ...string) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// QueryUsers returns the live users matching filter, newest first.
		QueryUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		CountUsers(ctx context.Context) (int, error)
		// UpdateUser saves every field of usr, its skills included.
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUser(ctx context.Context, id string, deletedAt time.Time) error
	}

	// SecurityAlerter notifies a user about a sensitive change on their account.
	SecurityAlerter func(ctx context.Context, usr User, event string)

	Service interface {
		CheckUniqueness(ctx context.Context, uname, email string, excludedIDs ...string) error
		Create(ctx context.Context, nu NewUser) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Query(ctx context.Context, filter QueryFilter) ([]User, error)
		// Parties returns the Party of each id. Unknown or deleted users get a placeholder.
		Parties(ctx context.Context, ids ...string) (map[string]Party, error)
		Count(ctx context.Context) (int, error)
		Update(ctx context.Context, usr User, data UpdateUser) (User, error)
		SetPassword(ctx context.Context, usr User, pwd string) (User, error)
		ChangePassword(ctx context.Context, usr User, data ChangePassword) error
		SetFCMToken(ctx context.Context, usr User, token string) error
		ClearFCMToken(ctx context.Context, id string) error
		Delete(ctx context.Context, id string) error
	}

	service struct {
		repo            Repository
		defaultTimezone string
		alert           SecurityAlerter
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, conf *core.Config, alert SecurityAlerter) Service {
	if alert == nil {
		alert = func(context.Context, User, string) {}
	}
	return &service{
		repo:            repo,
		defaultTimezone: conf.DefaultTimezone,
		alert:           alert,
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, uname, email string, excludedIDs ...string) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, excludedIDs...); err != nil {
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

// Create creates a User. When nu.Username is empty, a username is derived from the email.
func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	if nu.Username == "" {
		uname, err := svc.generateUsername(ctx, nu.Email)
		if err != nil {
			return User{}, errors.Wrap(err, "generating username")
		}
		nu.Username = uname
	}
	if err := svc.CheckUniqueness(ctx, nu.Username, nu.Email); err != nil {
		return User{}, err
	}

	now := NowFunc().UTC()
	usr := User{
		FirstName:          nu.FirstName,
		LastName:           nu.LastName,
		Username:           nu.Username,
		Email:              nu.Email,
		About:              nu.About,
		City:               nu.City,
		Country:            nu.Country,
		ProfilePicture:     nu.ProfilePicture,
		WeeklyAvailability: nu.WeeklyAvailability,
		Language:           DefaultLanguage,
		Timezone:           svc.defaultTimezone,
		SkillsToTeach:      nu.SkillsToTeach,
		SkillsToLearn:      nu.SkillsToLearn,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if usr.SkillsToTeach == nil {
		usr.SkillsToTeach = []Skill{}
	}
	if usr.SkillsToLearn == nil {
		usr.SkillsToLearn = []Skill{}
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

// generateUsername builds "<email local part><random number below 1000>", retrying on collisions.
func (svc *service) generateUsername(ctx context.Context, email string) (string, error) {
	base := strings.ToLower(strings.SplitN(email, "@", 2)[0])
	base = usernameCleaner.ReplaceAllString(base, "")
	if len(base) > 26 {
		base = base[:26]
	}
	for len(base) < 3 {
		base += "_"
	}

	for attempt := 0; attempt < 10; attempt++ {
		n, err := rand.Int(rand.Reader, big.NewInt(1000))
		if err != nil {
			return "", err
		}
		uname := base + strconv.FormatInt(n.Int64(), 10)
		switch err = svc.repo.CheckUniqueness(ctx, uname, ""); err {
		case nil:
			return uname, nil
		case ErrUsernameExists:
			continue
		default:
			return "", err
		}
	}
	return "", errors.New("no free username found")
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter)
}

func (svc *service) Parties(ctx context.Context, ids ...string) (map[string]Party, error) {
	parties := make(map[string]Party, len(ids))
	if len(ids) == 0 {
		return parties, nil
	}
	usrs, err := svc.repo.QueryUsers(ctx, QueryFilter{IDs: ids})
	if err != nil {
		return nil, errors.Wrap(err, "querying parties")
	}
	for _, usr := range usrs {
		parties[usr.ID] = usr.Party()
	}
	for _, id := range ids {
		if _, ok := parties[id]; !ok {
			parties[id] = DeletedParty(id)
		}
	}
	return parties, nil
}

func (svc *service) Count(ctx context.Context) (int, error) {
	return svc.repo.CountUsers(ctx)
}

func (svc *service) Update(ctx context.Context, usr User, data UpdateUser) (User, error) {
	updated := data.Apply(usr)
	if updated.Username != usr.Username || updated.Email != usr.Email {
		uname, email := updated.Username, updated.Email
		if uname == usr.Username {
			uname = ""
		}
		if email == usr.Email {
			email = ""
		}
		if err := svc.CheckUniqueness(ctx, uname, email, usr.ID); err != nil {
			return User{}, err
		}
	}
	updated.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, updated)
}

func (svc *service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) ChangePassword(ctx context.Context, usr User, data ChangePassword) error {
	if !usr.CheckPassword(data.CurrentPassword) {
		return ErrIncorrectPassword
	}
	usr, err := svc.SetPassword(ctx, usr, data.NewPassword)
	if err != nil {
		return err
	}
	svc.alert(ctx, usr, "Your password was changed.")
	return nil
}

func (svc *service) SetFCMToken(ctx context.Context, usr User, token string) error {
	usr.FCMToken = token
	usr.UpdatedAt = NowFunc().UTC()
	_, err := svc.repo.UpdateUser(ctx, usr)
	return err
}

func (svc *service) ClearFCMToken(ctx context.Context, id string) error {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if usr.FCMToken == "" {
		return nil
	}
	usr.FCMToken = ""
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

// Delete soft-deletes a User: the account disappears from every lookup but its history is kept.
func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteUser(ctx, id, NowFunc().UTC())
}
