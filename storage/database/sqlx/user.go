package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/skillbarter/backend/core/user"
)

const (
	skillKindTeach = "teach"
	skillKindLearn = "learn"

	userColumns = `id, first_name, last_name, username, email, password_hash, about, city, country, website,
		profile_picture, weekly_availability, language, timezone, fcm_token, deleted_at, created_at, updated_at`
)

type (
	userRow struct {
		ID                 string      `db:"id"`
		FirstName          string      `db:"first_name"`
		LastName           string      `db:"last_name"`
		Username           string      `db:"username"`
		Email              string      `db:"email"`
		PasswordHash       string      `db:"password_hash"`
		About              null.String `db:"about"`
		City               null.String `db:"city"`
		Country            null.String `db:"country"`
		Website            null.String `db:"website"`
		ProfilePicture     null.String `db:"profile_picture"`
		WeeklyAvailability null.Int    `db:"weekly_availability"`
		Language           string      `db:"language"`
		Timezone           string      `db:"timezone"`
		FCMToken           null.String `db:"fcm_token"`
		DeletedAt          null.Time   `db:"deleted_at"`
		CreatedAt          time.Time   `db:"created_at"`
		UpdatedAt          time.Time   `db:"updated_at"`
	}

	skillRow struct {
		UserID     string `db:"user_id"`
		Kind       string `db:"kind"`
		Name       string `db:"name"`
		Difficulty string `db:"difficulty"`
		Position   int    `db:"position"`
	}
)

func optString(s string) null.String {
	return null.NewString(s, s != "")
}

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:                 usr.ID,
		FirstName:          usr.FirstName,
		LastName:           usr.LastName,
		Username:           usr.Username,
		Email:              usr.Email,
		PasswordHash:       usr.PasswordHash,
		About:              optString(usr.About),
		City:               optString(usr.City),
		Country:            optString(usr.Country),
		Website:            optString(usr.Website),
		ProfilePicture:     optString(usr.ProfilePicture),
		WeeklyAvailability: null.IntFrom(usr.WeeklyAvailability),
		Language:           usr.Language,
		Timezone:           usr.Timezone,
		FCMToken:           optString(usr.FCMToken),
		DeletedAt:          null.TimeFromPtr(usr.DeletedAt),
		CreatedAt:          usr.CreatedAt,
		UpdatedAt:          usr.UpdatedAt,
	}
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:                 r.ID,
		FirstName:          r.FirstName,
		LastName:           r.LastName,
		Username:           r.Username,
		Email:              r.Email,
		PasswordHash:       r.PasswordHash,
		About:              r.About.String,
		City:               r.City.String,
		Country:            r.Country.String,
		Website:            r.Website.String,
		ProfilePicture:     r.ProfilePicture.String,
		WeeklyAvailability: r.WeeklyAvailability.Int,
		Language:           r.Language,
		Timezone:           r.Timezone,
		FCMToken:           r.FCMToken.String,
		DeletedAt:          r.DeletedAt.Ptr(),
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
		SkillsToTeach:      []user.Skill{},
		SkillsToLearn:      []user.Skill{},
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

// withSkills loads the skills of the given users.
func (repo *userRepository) withSkills(ctx context.Context, rows []userRow) ([]user.User, error) {
	users := make([]user.User, 0, len(rows))
	if len(rows) == 0 {
		return users, nil
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}

	var skills []skillRow
	err := repo.db.SelectContext(ctx, &skills,
		`SELECT user_id, kind, name, difficulty, position FROM user_skills
		WHERE user_id = ANY($1::uuid[]) ORDER BY position`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting skills")
	}

	idx := make(map[string]int, len(rows))
	for i, r := range rows {
		users = append(users, r.toUser())
		idx[r.ID] = i
	}
	for _, s := range skills {
		usr := &users[idx[s.UserID]]
		skill := user.Skill{Name: s.Name, Difficulty: s.Difficulty}
		if s.Kind == skillKindTeach {
			usr.SkillsToTeach = append(usr.SkillsToTeach, skill)
		} else {
			usr.SkillsToLearn = append(usr.SkillsToLearn, skill)
		}
	}
	return users, nil
}

func (repo *userRepository) getOne(ctx context.Context, query string, args ...interface{}) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if noRows(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "selecting user")
	}
	users, err := repo.withSkills(ctx, []userRow{row})
	if err != nil {
		return user.User{}, err
	}
	return users[0], nil
}

func saveSkills(ctx context.Context, tx *sqlx.Tx, usr user.User) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM user_skills WHERE user_id = $1", usr.ID); err != nil {
		return errors.Wrap(err, "deleting skills")
	}
	rows := make([]skillRow, 0, len(usr.SkillsToTeach)+len(usr.SkillsToLearn))
	for i, s := range usr.SkillsToTeach {
		rows = append(rows, skillRow{UserID: usr.ID, Kind: skillKindTeach, Name: s.Name, Difficulty: s.Difficulty, Position: i})
	}
	for i, s := range usr.SkillsToLearn {
		rows = append(rows, skillRow{UserID: usr.ID, Kind: skillKindLearn, Name: s.Name, Difficulty: s.Difficulty, Position: i})
	}
	for _, r := range rows {
		_, err := tx.NamedExecContext(ctx,
			`INSERT INTO user_skills (user_id, kind, name, difficulty, position)
			VALUES (:user_id, :kind, :name, :difficulty, :position)`, r)
		if err != nil {
			return errors.Wrap(err, "inserting skill")
		}
	}
	return nil
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedIDs ...string) error {
	if excludedIDs == nil {
		excludedIDs = []string{}
	}
	var taken []struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	err := repo.db.SelectContext(ctx, &taken,
		`SELECT username, email FROM users
		WHERE deleted_at IS NULL AND (username = $1 OR email = $2) AND NOT (id = ANY($3::uuid[]))`,
		username, email, pq.Array(excludedIDs),
	)
	if err != nil {
		return errors.Wrap(err, "checking uniqueness")
	}
	for _, t := range taken {
		if username != "" && t.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && t.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = newID()
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx,
			`INSERT INTO users (`+userColumns+`) VALUES (:id, :first_name, :last_name, :username, :email,
			:password_hash, :about, :city, :country, :website, :profile_picture, :weekly_availability, :language,
			:timezone, :fcm_token, :deleted_at, :created_at, :updated_at)`,
			newUserRow(usr),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return user.ErrEmailExists
			}
			return errors.Wrap(err, "inserting user")
		}
		return saveSkills(ctx, tx, usr)
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if !isUUID(id) {
		return user.User{}, user.ErrNotFound
	}
	return repo.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1 AND deleted_at IS NULL", id)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1 AND deleted_at IS NULL", email)
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	w := &where{}
	w.add("deleted_at IS NULL")
	if len(filter.IDs) > 0 {
		w.add("id = ANY(?::uuid[])", pq.Array(validUUIDs(filter.IDs)))
	}
	if len(filter.ExcludeIDs) > 0 {
		w.add("NOT (id = ANY(?::uuid[]))", pq.Array(validUUIDs(filter.ExcludeIDs)))
	}
	if filter.Search != "" {
		p := w.arg(containsPattern(filter.Search))
		w.add("(first_name ILIKE " + p + " OR last_name ILIKE " + p + " OR username ILIKE " + p + ")")
	}
	if filter.Location != "" {
		p := w.arg(containsPattern(filter.Location))
		w.add("(city ILIKE " + p + " OR country ILIKE " + p + ")")
	}
	if filter.Skill != "" {
		w.add("EXISTS (SELECT 1 FROM user_skills s WHERE s.user_id = users.id AND s.name ILIKE ?)", containsPattern(filter.Skill))
	}

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows,
		"SELECT "+userColumns+" FROM users"+w.String()+" ORDER BY created_at DESC", w.args...,
	); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	return repo.withSkills(ctx, rows)
}

func validUUIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if isUUID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}

func (repo *userRepository) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := repo.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM users WHERE deleted_at IS NULL")
	return n, errors.Wrap(err, "counting users")
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx,
			`UPDATE users SET first_name = :first_name, last_name = :last_name, username = :username,
			email = :email, password_hash = :password_hash, about = :about, city = :city, country = :country,
			website = :website, profile_picture = :profile_picture, weekly_availability = :weekly_availability,
			language = :language, timezone = :timezone, fcm_token = :fcm_token, updated_at = :updated_at
			WHERE id = :id AND deleted_at IS NULL`,
			newUserRow(usr),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return user.ErrUsernameExists
			}
			return errors.Wrap(err, "updating user")
		}
		if cnt, _ := res.RowsAffected(); cnt == 0 {
			return user.ErrNotFound
		}
		return saveSkills(ctx, tx, usr)
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) DeleteUser(ctx context.Context, id string, deletedAt time.Time) error {
	if !isUUID(id) {
		return user.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx,
		"UPDATE users SET deleted_at = $2, fcm_token = NULL, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL",
		id, deletedAt,
	)
	if err != nil {
		return errors.Wrap(err, "deleting user")
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return user.ErrNotFound
	}
	return nil
}
