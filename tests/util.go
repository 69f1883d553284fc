package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/skillbarter/backend/core/exchange"
	"github.com/skillbarter/backend/core/review"
	"github.com/skillbarter/backend/core/session"
	"github.com/skillbarter/backend/core/user"
)

// CreateUser stores a user named "first last" with the given skills.
// The username is derived from the email.
func CreateUser(
	t *testing.T,
	repo user.Repository,
	first, last, email, pwd string,
	teach, learn []string,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		FirstName:     first,
		LastName:      last,
		Username:      strings.SplitN(email, "@", 2)[0],
		Email:         email,
		Language:      user.DefaultLanguage,
		Timezone:      "UTC",
		SkillsToTeach: skills(teach),
		SkillsToLearn: skills(learn),
		CreatedAt:     tstamp,
		UpdatedAt:     tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func skills(names []string) []user.Skill {
	sk := make([]user.Skill, 0, len(names))
	for _, name := range names {
		sk = append(sk, user.Skill{Name: name, Difficulty: user.DifficultyBeginner})
	}
	return sk
}

func CreateExchange(
	t *testing.T,
	repo exchange.Repository,
	requester, receiver user.User,
	teaching, learning, status string,
	createdAt ...time.Time,
) exchange.Request {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	req, err := repo.CreateRequest(context.Background(), exchange.Request{
		RequesterID:   requester.ID,
		ReceiverID:    receiver.ID,
		TeachingSkill: teaching,
		LearningSkill: learning,
		Status:        status,
		CreatedAt:     tstamp,
		UpdatedAt:     tstamp,
	})
	if err != nil {
		t.Fatalf("CreateExchange() failed: %v", err)
	}
	return req
}

// CreateSession stores a one-hour online session of `skill` taught by instructor to learner.
func CreateSession(
	t *testing.T,
	repo session.Repository,
	instructor, learner user.User,
	skill string,
	scheduledAt time.Time,
	completed bool,
) session.Session {
	now := time.Now().UTC()
	s := session.Session{
		InstructorID:  instructor.ID,
		LearnerID:     learner.ID,
		Skill:         skill,
		Type:          session.TypeLearning,
		ScheduledDate: scheduledAt.UTC(),
		Duration:      60,
		Location:      session.LocationOnline,
		Completed:     completed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if completed {
		s.CompletedAt = &now
	}
	sessions, err := repo.CreateSessions(context.Background(), []session.Session{s})
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	return sessions[0]
}

func CreateReview(
	t *testing.T,
	repo review.Repository,
	reviewer, reviewed user.User,
	skill string,
	rating int,
	createdAt ...time.Time,
) review.Review {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	r, err := repo.CreateReview(context.Background(), review.Review{
		ReviewedUserID: reviewed.ID,
		ReviewerID:     reviewer.ID,
		Skill:          skill,
		Rating:         rating,
		CreatedAt:      tstamp,
		UpdatedAt:      tstamp,
	})
	if err != nil {
		t.Fatalf("CreateReview() failed: %v", err)
	}
	return r
}
