package auth

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/user"
)

// Token types
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var errWrongTokenType = errors.New("wrong token type")

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Email string `json:"email,omitempty"`
	Type  string `json:"typ"`
}

// ExpiresAt is the expiry time of the token.
func (c Claims) ExpiresAtTime() time.Time {
	return time.Unix(c.StandardClaims.ExpiresAt, 0)
}

// TokenManager signs and parses the access and refresh JWTs. Both use HS256 with distinct keys.
type TokenManager struct {
	issuer     string
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenManager(conf *core.Config) *TokenManager {
	return &TokenManager{
		issuer:     conf.AppName,
		accessKey:  []byte(conf.SecretKey),
		refreshKey: []byte(conf.RefreshSecretKey),
		accessTTL:  conf.AccessTokenTTL,
		refreshTTL: conf.RefreshTokenTTL,
	}
}

// AccessKey is the signing key of access tokens, shared with the HTTP JWT middleware.
func (tm *TokenManager) AccessKey() []byte {
	return tm.accessKey
}

func (tm *TokenManager) GetUserClaims(usr user.User, typ string) *Claims {
	now := NowFunc()
	ttl := tm.accessTTL
	if typ == TokenTypeRefresh {
		ttl = tm.refreshTTL
	}
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.New().String(),
			Issuer:    tm.issuer,
			Subject:   usr.ID,
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email: usr.Email,
		Type:  typ,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func (tm *TokenManager) GenerateToken(claims *Claims) (string, error) {
	key := tm.accessKey
	if claims.Type == TokenTypeRefresh {
		key = tm.refreshKey
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// Issue generates a fresh access/refresh token pair for usr.
func (tm *TokenManager) Issue(usr user.User) (TokenPair, error) {
	access, err := tm.GenerateToken(tm.GetUserClaims(usr, TokenTypeAccess))
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := tm.GenerateToken(tm.GetUserClaims(usr, TokenTypeRefresh))
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (tm *TokenManager) ParseAccess(token string) (*Claims, error) {
	return tm.parse(token, tm.accessKey, TokenTypeAccess)
}

func (tm *TokenManager) ParseRefresh(token string) (*Claims, error) {
	return tm.parse(token, tm.refreshKey, TokenTypeRefresh)
}

func (tm *TokenManager) parse(token string, key []byte, typ string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	if claims.Type != typ {
		return nil, errWrongTokenType
	}
	return claims, nil
}
