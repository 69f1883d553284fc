package user

import (
	"net/mail"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/skillbarter/backend/core"
)

// Skill difficulties
const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

const (
	DefaultLanguage = "en"
	maxSkills       = 50
)

type Skill struct {
	Name       string `json:"name" validate:"required,max=100"`
	Difficulty string `json:"difficulty" validate:"required,difficulty"`
}

type User struct {
	ID                 string     `json:"id"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	Username           string     `json:"username"`
	Email              string     `json:"email"`
	PasswordHash       string     `json:"-"`
	About              string     `json:"about"`
	City               string     `json:"city"`
	Country            string     `json:"country"`
	Website            string     `json:"website"`
	ProfilePicture     string     `json:"profile_picture"`
	WeeklyAvailability int        `json:"weekly_availability"`
	Language           string     `json:"language"`
	Timezone           string     `json:"timezone"`
	SkillsToTeach      []Skill    `json:"skills_to_teach"`
	SkillsToLearn      []Skill    `json:"skills_to_learn"`
	FCMToken           string     `json:"-"`
	DeletedAt          *time.Time `json:"-"`
	CreatedAt          time.Time  `json:"created_at"` // UTC
	UpdatedAt          time.Time  `json:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := core.HashSecret(pwd)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) bool {
	ok, err := core.VerifySecret(pwd, u.PasswordHash)
	return err == nil && ok
}

func (u User) IsDeleted() bool { return u.DeletedAt != nil }

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Initials are the upper-cased first letters of the first and last names.
func (u User) Initials() string {
	var b strings.Builder
	for _, name := range []string{u.FirstName, u.LastName} {
		if r, _ := utf8.DecodeRuneInString(name); r != utf8.RuneError {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// Location is "city, country", whichever of the two is set, or nil.
func (u User) Location() *string {
	var loc string
	switch {
	case u.City != "" && u.Country != "":
		loc = u.City + ", " + u.Country
	case u.City != "":
		loc = u.City
	case u.Country != "":
		loc = u.Country
	default:
		return nil
	}
	return &loc
}

func (u User) MailAddress() mail.Address {
	return mail.Address{Name: u.FullName(), Address: u.Email}
}

func (u User) Party() Party {
	p := Party{
		ID:       u.ID,
		Name:     u.FullName(),
		Username: u.Username,
		Initials: u.Initials(),
	}
	if u.ProfilePicture != "" {
		avatar := u.ProfilePicture
		p.AvatarURL = &avatar
	}
	return p
}

func (u User) TeachSkillNames() []string { return skillNames(u.SkillsToTeach) }
func (u User) LearnSkillNames() []string { return skillNames(u.SkillsToLearn) }

func (u User) Profile() Profile {
	return Profile{
		User:      u,
		Location:  u.Location(),
		Skills:    u.TeachSkillNames(),
		Interests: u.LearnSkillNames(),
	}
}

func skillNames(skills []Skill) []string {
	names := make([]string, 0, len(skills))
	for _, s := range skills {
		names = append(names, s.Name)
	}
	return names
}

// Party is the public summary of a User embedded in other resources.
type Party struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatar_url"`
	Initials  string  `json:"initials"`
}

// DeletedParty stands in for a user that no longer exists.
func DeletedParty(id string) Party {
	return Party{ID: id, Name: "Deleted User", Username: "deleted", Initials: "DU"}
}

// Profile is the authenticated user's own view of their account.
type Profile struct {
	User
	Location  *string  `json:"location"`
	Skills    []string `json:"skills"`
	Interests []string `json:"interests"`
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	FirstName          string  `json:"first_name" validate:"required,max=50"`
	LastName           string  `json:"last_name" validate:"required,max=50"`
	Username           string  `json:"-"`
	Email              string  `json:"email" validate:"required,email"`
	Password           string  `json:"password" validate:"required"`
	SkillsToTeach      []Skill `json:"skills_to_teach" validate:"omitempty,max=50,dive"`
	SkillsToLearn      []Skill `json:"skills_to_learn" validate:"omitempty,max=50,dive"`
	About              string  `json:"about" validate:"omitempty,max=1000"`
	City               string  `json:"city" validate:"omitempty,max=100"`
	Country            string  `json:"country" validate:"omitempty,max=100"`
	ProfilePicture     string  `json:"profile_picture" validate:"omitempty,httpurl"`
	WeeklyAvailability int     `json:"weekly_availability" validate:"min=0,max=168"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.About = core.CleanString(nu.About)
	nu.City = core.CleanString(nu.City)
	nu.Country = core.CleanString(nu.Country)
	nu.ProfilePicture = core.CleanString(nu.ProfilePicture)
	nu.SkillsToTeach = cleanSkills(nu.SkillsToTeach)
	nu.SkillsToLearn = cleanSkills(nu.SkillsToLearn)
	return validate.Struct(nu)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Nil fields are left untouched.
type UpdateUser struct {
	FirstName          *string   `json:"first_name" validate:"omitempty,max=50"`
	LastName           *string   `json:"last_name" validate:"omitempty,max=50"`
	Username           *string   `json:"username" validate:"omitempty,min=3,max=30,username"`
	Email              *string   `json:"email" validate:"omitempty,email"`
	About              *string   `json:"about" validate:"omitempty,max=1000"`
	City               *string   `json:"city" validate:"omitempty,max=100"`
	Country            *string   `json:"country" validate:"omitempty,max=100"`
	Website            *string   `json:"website" validate:"omitempty,httpurl"`
	ProfilePicture     *string   `json:"profile_picture" validate:"omitempty,httpurl"`
	WeeklyAvailability *int      `json:"weekly_availability" validate:"omitempty,min=0,max=168"`
	Language           *string   `json:"language" validate:"omitempty,max=50"`
	Timezone           *string   `json:"timezone" validate:"omitempty,timezone"`
	Skills             *[]string `json:"skills" validate:"omitempty,max=50,dive,required,max=100"`
	Interests          *[]string `json:"interests" validate:"omitempty,max=50,dive,required,max=100"`
}

func (uu *UpdateUser) Validate(validate *validator.Validate) error {
	core.CleanStringPtr(uu.FirstName)
	core.CleanStringPtr(uu.LastName)
	core.CleanStringPtr(uu.Username, true /* lower */)
	core.CleanStringPtr(uu.Email, true /* lower */)
	core.CleanStringPtr(uu.About)
	core.CleanStringPtr(uu.City)
	core.CleanStringPtr(uu.Country)
	core.CleanStringPtr(uu.Website)
	core.CleanStringPtr(uu.ProfilePicture)
	core.CleanStringPtr(uu.Language)
	core.CleanStringPtr(uu.Timezone)
	if uu.Skills != nil {
		*uu.Skills = cleanNames(*uu.Skills)
	}
	if uu.Interests != nil {
		*uu.Interests = cleanNames(*uu.Interests)
	}
	return validate.Struct(uu)
}

// Apply copies the provided fields of `uu` onto `usr`.
func (uu UpdateUser) Apply(usr User) User {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&usr.FirstName, uu.FirstName)
	set(&usr.LastName, uu.LastName)
	set(&usr.Username, uu.Username)
	set(&usr.Email, uu.Email)
	set(&usr.About, uu.About)
	set(&usr.City, uu.City)
	set(&usr.Country, uu.Country)
	set(&usr.Website, uu.Website)
	set(&usr.ProfilePicture, uu.ProfilePicture)
	set(&usr.Language, uu.Language)
	set(&usr.Timezone, uu.Timezone)
	if uu.WeeklyAvailability != nil {
		usr.WeeklyAvailability = *uu.WeeklyAvailability
	}
	if uu.Skills != nil {
		usr.SkillsToTeach = mergeSkills(usr.SkillsToTeach, *uu.Skills)
	}
	if uu.Interests != nil {
		usr.SkillsToLearn = mergeSkills(usr.SkillsToLearn, *uu.Interests)
	}
	return usr
}

// mergeSkills replaces `current` by `names`, keeping the difficulty of the skills that already exist.
func mergeSkills(current []Skill, names []string) []Skill {
	difficulties := make(map[string]string, len(current))
	for _, s := range current {
		difficulties[strings.ToLower(s.Name)] = s.Difficulty
	}
	skills := make([]Skill, 0, len(names))
	for _, name := range names {
		diff, ok := difficulties[strings.ToLower(name)]
		if !ok {
			diff = DifficultyBeginner
		}
		skills = append(skills, Skill{Name: name, Difficulty: diff})
	}
	return skills
}

// cleanNames trims names and drops blank and case-insensitive duplicates.
func cleanNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	cleaned := make([]string, 0, len(names))
	for _, name := range names {
		name = core.CleanString(name)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		cleaned = append(cleaned, name)
	}
	return cleaned
}

func cleanSkills(skills []Skill) []Skill {
	seen := make(map[string]bool, len(skills))
	cleaned := make([]Skill, 0, len(skills))
	for _, s := range skills {
		s.Name = core.CleanString(s.Name)
		s.Difficulty = core.CleanString(s.Difficulty, true /* lower */)
		key := strings.ToLower(s.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		cleaned = append(cleaned, s)
	}
	return cleaned
}

type ChangePassword struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
	firstName       string
	lastName        string
	email           string
}

func (cp *ChangePassword) Validate(usr User, validate *validator.Validate) error {
	cp.firstName, cp.lastName, cp.email = usr.FirstName, usr.LastName, usr.Email
	return validate.Struct(cp)
}

type FCMToken struct {
	Token string `json:"token" validate:"required,max=4096"`
}

func (ft *FCMToken) Validate(validate *validator.Validate) error {
	ft.Token = core.CleanString(ft.Token)
	return validate.Struct(ft)
}

// QueryFilter selects live users. Zero fields do not filter.
type QueryFilter struct {
	IDs        []string
	ExcludeIDs []string
	// Search does a case-insensitive match on one of FirstName, LastName or Username.
	Search string
	// Location does a case-insensitive match on one of City or Country.
	Location string
	// Skill does a case-insensitive match on the name of any teach or learn skill.
	Skill string
}

// Matches reports whether `usr` satisfies the filter. It is used by in-memory repositories.
func (qf QueryFilter) Matches(usr User) bool {
	if usr.IsDeleted() {
		return false
	}
	if len(qf.IDs) > 0 && !containsString(qf.IDs, usr.ID) {
		return false
	}
	if containsString(qf.ExcludeIDs, usr.ID) {
		return false
	}
	if qf.Search != "" && !containsFold(qf.Search, usr.FirstName, usr.LastName, usr.Username) {
		return false
	}
	if qf.Location != "" && !containsFold(qf.Location, usr.City, usr.Country) {
		return false
	}
	if qf.Skill != "" {
		names := append(usr.TeachSkillNames(), usr.LearnSkillNames()...)
		if !containsFold(qf.Skill, names...) {
			return false
		}
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func containsFold(substr string, values ...string) bool {
	substr = strings.ToLower(substr)
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), substr) {
			return true
		}
	}
	return false
}
