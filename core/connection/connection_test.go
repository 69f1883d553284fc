package connection

import (
	"testing"

	"github.com/skillbarter/backend/core/user"
)

func newUser(teach, learn []string) user.User {
	usr := user.User{}
	for _, s := range teach {
		usr.SkillsToTeach = append(usr.SkillsToTeach, user.Skill{Name: s})
	}
	for _, s := range learn {
		usr.SkillsToLearn = append(usr.SkillsToLearn, user.Skill{Name: s})
	}
	return usr
}

func TestIsMatch(t *testing.T) {
	viewer := newUser([]string{"Go", "Chess"}, []string{"Piano"})

	tests := []struct {
		name      string
		candidate user.User
		want      bool
	}{
		{name: "mutual", candidate: newUser([]string{"Piano"}, []string{"Go"}), want: true},
		{name: "case insensitive", candidate: newUser([]string{"PIANO"}, []string{"chess"}), want: true},
		{name: "only teaches what viewer learns", candidate: newUser([]string{"Piano"}, []string{"Rust"})},
		{name: "only learns what viewer teaches", candidate: newUser([]string{"Rust"}, []string{"Go"})},
		{name: "no skills", candidate: newUser(nil, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsMatch(viewer, tt.candidate); got != tt.want {
				t.Errorf("IsMatch() = %v, want %v", got, tt.want)
			}
		})
	}
}
