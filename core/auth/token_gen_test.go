package auth

import (
	"testing"
	"time"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/user"
)

func TestMakeVerifyToken(t *testing.T) {
	core.HashParams = core.TestHashParams
	gen := resetTokenGenerator{secret: []byte("secret"), timeout: time.Hour}

	usr := user.User{ID: "5f1c", FirstName: "T", Email: "t@test.test"}
	_ = usr.SetPassword("Pwd12345")

	validToken, err := gen.makeToken(usr)
	if err != nil {
		t.Fatalf("makeToken() error = %v", err)
	}

	// generate an expired token
	late := gen.timeout + 2*time.Minute
	NowFunc = func() time.Time { return time.Now().Add(-late) }
	expiredToken, _ := gen.makeToken(usr)
	NowFunc = time.Now // reset

	otherGen := resetTokenGenerator{secret: []byte("other"), timeout: time.Hour}
	foreignToken, _ := otherGen.makeToken(usr)

	pwdChanged := usr
	_ = pwdChanged.SetPassword("NewPwd12345")

	tests := []struct {
		name    string
		usr     user.User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "invalid parts len", usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", usr: usr, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", usr: usr, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", usr: usr, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "other secret", usr: usr, token: foreignToken, wantErr: errInvalidToken},
		{name: "password changed", usr: pwdChanged, token: validToken, wantErr: errInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := gen.verifyToken(tt.usr, tt.token); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
