package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/mail"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/notification"
	"github.com/skillbarter/backend/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrOTPNotFound          = errors.New("OTP not found")
	ErrEmailRegistered      = core.NewBadRequestError("Email already registered")
	ErrUserExists           = core.NewBadRequestError("User already exists")
	ErrEmailNotVerified     = core.NewBadRequestError("Email not verified. Please verify your email first.")
	ErrInvalidOTP           = core.NewBadRequestError("Invalid or expired OTP")
	ErrOTPExpired           = core.NewBadRequestError("OTP has expired")
	ErrInvalidCredentials   = core.NewAuthError("Invalid email or password")
	ErrInvalidRefreshToken  = core.NewAuthError("Invalid refresh token")
	ErrTokenRevoked         = core.NewAuthError("Token has been revoked")
	ErrInvalidAccessToken   = core.NewBadRequestError("Invalid access token format")
	ErrInvalidResetToken    = core.NewBadRequestError("Invalid or expired reset token")
	errNotificationSettings = errors.New("creating default notification settings")
)

type (
	OTPRepository interface {
		CreateOTP(ctx context.Context, otp OTP) (OTP, error)
		// GetLatestOTP returns the most recent OTP of `email` for `purpose` in the given verified state.
		// It returns ErrOTPNotFound when there is none.
		GetLatestOTP(ctx context.Context, email, purpose string, verified bool) (OTP, error)
		UpdateOTP(ctx context.Context, otp OTP) error
		DeleteOTPs(ctx context.Context, email, purpose string) error
		// DeleteExpiredOTPs removes the OTPs that expired before `before` and returns their count.
		DeleteExpiredOTPs(ctx context.Context, before time.Time) (int, error)
	}

	// Blacklist holds revoked tokens until they expire.
	Blacklist interface {
		Add(ctx context.Context, token string, expiresAt time.Time) error
		Contains(ctx context.Context, token string) (bool, error)
	}

	Service interface {
		SendEmailVerification(ctx context.Context, email string) error
		VerifyOTP(ctx context.Context, data VerifyOTP) error
		Register(ctx context.Context, nu user.NewUser) (Session, error)
		Login(ctx context.Context, data Login) (Session, error)
		Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
		Logout(ctx context.Context, accessToken, refreshToken string) error
		ForgotPassword(ctx context.Context, email string) error
		VerifyPasswordResetOTP(ctx context.Context, data VerifyOTP) (ResetGrant, error)
		ResetPassword(ctx context.Context, data ResetPassword) error
		// IsRevoked reports whether a token was blacklisted.
		IsRevoked(ctx context.Context, token string) (bool, error)
		PurgeExpiredOTPs(ctx context.Context) (int, error)
		Tokens() *TokenManager
	}

	Deps struct {
		Conf        *core.Config
		UserSvc     user.Service
		OTPRepo     OTPRepository
		Blacklist   Blacklist
		MailSvc     core.EmailService
		SettingsSvc notification.Service
		Alert       user.SecurityAlerter
		Logger      core.Logger
	}

	service struct {
		userSvc     user.Service
		otpRepo     OTPRepository
		blacklist   Blacklist
		mailSvc     core.EmailService
		settingsSvc notification.Service
		alert       user.SecurityAlerter
		logger      core.Logger
		tokens      *TokenManager
		resetTokens resetTokenGenerator
		otpTTL      time.Duration
	}
)

var _ Service = (*service)(nil)

func NewService(deps Deps) Service {
	alert := deps.Alert
	if alert == nil {
		alert = func(context.Context, user.User, string) {}
	}
	return &service{
		userSvc:     deps.UserSvc,
		otpRepo:     deps.OTPRepo,
		blacklist:   deps.Blacklist,
		mailSvc:     deps.MailSvc,
		settingsSvc: deps.SettingsSvc,
		alert:       alert,
		logger:      deps.Logger,
		tokens:      NewTokenManager(deps.Conf),
		resetTokens: resetTokenGenerator{
			secret:  []byte(deps.Conf.SecretKey),
			timeout: deps.Conf.PasswordResetTimeoutDelta,
		},
		otpTTL: deps.Conf.OTPTTL,
	}
}

func (svc *service) Tokens() *TokenManager {
	return svc.tokens
}

// generateCode returns 6 random digits.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}

// issueOTP replaces the OTPs of email for purpose and returns the new plain code.
func (svc *service) issueOTP(ctx context.Context, email, purpose string) (string, error) {
	if err := svc.otpRepo.DeleteOTPs(ctx, email, purpose); err != nil {
		return "", errors.Wrap(err, "deleting previous otps")
	}
	code, err := generateCode()
	if err != nil {
		return "", errors.Wrap(err, "generating otp")
	}
	hash, err := core.HashSecret(code)
	if err != nil {
		return "", errors.Wrap(err, "hashing otp")
	}
	now := NowFunc().UTC()
	_, err = svc.otpRepo.CreateOTP(ctx, OTP{
		Email:     email,
		CodeHash:  hash,
		Purpose:   purpose,
		ExpiresAt: now.Add(svc.otpTTL),
		CreatedAt: now,
	})
	if err != nil {
		return "", errors.Wrap(err, "creating otp")
	}
	return code, nil
}

func (svc *service) expiresIn() string {
	return fmt.Sprintf("%d", int(svc.otpTTL/time.Minute))
}

func (svc *service) SendEmailVerification(ctx context.Context, email string) error {
	_, err := svc.userSvc.GetByEmail(ctx, email)
	if err == nil {
		return ErrEmailRegistered
	}
	if errors.Cause(err) != user.ErrNotFound {
		return errors.Wrap(err, "looking up email")
	}

	code, err := svc.issueOTP(ctx, email, PurposeEmailVerification)
	if err != nil {
		return err
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: email}},
		Subject:      "Verify your email - Skill Barter",
		TemplateName: "email_verification",
		TemplateData: map[string]string{
			"otp":        code,
			"expires_in": svc.expiresIn(),
		},
	})
	return nil
}

// checkOTP marks the latest pending OTP of data.Email for purpose as verified if data.OTP matches it.
func (svc *service) checkOTP(ctx context.Context, data VerifyOTP, purpose string) error {
	otp, err := svc.otpRepo.GetLatestOTP(ctx, data.Email, purpose, false)
	if err != nil {
		if errors.Cause(err) == ErrOTPNotFound {
			return ErrInvalidOTP
		}
		return errors.Wrap(err, "getting otp")
	}
	if otp.IsExpired(NowFunc()) {
		return ErrOTPExpired
	}
	ok, err := core.VerifySecret(data.OTP, otp.CodeHash)
	if err != nil {
		return errors.Wrap(err, "verifying otp")
	}
	if !ok {
		return ErrInvalidOTP
	}
	otp.Verified = true
	return svc.otpRepo.UpdateOTP(ctx, otp)
}

func (svc *service) VerifyOTP(ctx context.Context, data VerifyOTP) error {
	return svc.checkOTP(ctx, data, PurposeEmailVerification)
}

func (svc *service) Register(ctx context.Context, nu user.NewUser) (Session, error) {
	_, err := svc.userSvc.GetByEmail(ctx, nu.Email)
	if err == nil {
		return Session{}, ErrUserExists
	}
	if errors.Cause(err) != user.ErrNotFound {
		return Session{}, errors.Wrap(err, "looking up email")
	}

	if _, err = svc.otpRepo.GetLatestOTP(ctx, nu.Email, PurposeEmailVerification, true); err != nil {
		if errors.Cause(err) == ErrOTPNotFound {
			return Session{}, ErrEmailNotVerified
		}
		return Session{}, errors.Wrap(err, "getting verified otp")
	}

	usr, err := svc.userSvc.Create(ctx, nu)
	if err != nil {
		return Session{}, err
	}
	if err = svc.otpRepo.DeleteOTPs(ctx, nu.Email, PurposeEmailVerification); err != nil {
		svc.logger.Error(fmt.Sprintf("deleting verification otps: %v", err), err, usr)
	}
	if _, err = svc.settingsSvc.CreateDefaultSettings(ctx, usr.ID); err != nil {
		svc.logger.Error(errNotificationSettings.Error(), errors.Wrap(err, errNotificationSettings.Error()), usr)
	}
	return svc.newSession(usr)
}

func (svc *service) newSession(usr user.User) (Session, error) {
	pair, err := svc.tokens.Issue(usr)
	if err != nil {
		return Session{}, errors.Wrap(err, "issuing tokens")
	}
	return Session{User: usr.Profile(), TokenPair: pair}, nil
}

func (svc *service) Login(ctx context.Context, data Login) (Session, error) {
	usr, err := svc.userSvc.GetByEmail(ctx, data.Email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, errors.Wrap(err, "getting user")
	}
	if !usr.CheckPassword(data.Password) {
		return Session{}, ErrInvalidCredentials
	}
	return svc.newSession(usr)
}

func (svc *service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := svc.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidRefreshToken
	}
	revoked, err := svc.IsRevoked(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	if revoked {
		return TokenPair{}, ErrTokenRevoked
	}

	usr, err := svc.userSvc.GetByID(ctx, claims.Subject)
	if err != nil {
		return TokenPair{}, err
	}
	pair, err := svc.tokens.Issue(usr)
	if err != nil {
		return TokenPair{}, errors.Wrap(err, "issuing tokens")
	}
	if err = svc.blacklist.Add(ctx, refreshToken, claims.ExpiresAtTime()); err != nil {
		return TokenPair{}, errors.Wrap(err, "revoking refresh token")
	}
	return pair, nil
}

func (svc *service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	claims, err := svc.tokens.ParseAccess(accessToken)
	if err != nil {
		return ErrInvalidAccessToken
	}
	if err = svc.blacklist.Add(ctx, accessToken, claims.ExpiresAtTime()); err != nil {
		return errors.Wrap(err, "revoking access token")
	}
	if refreshToken == "" {
		return nil
	}
	// an invalid or foreign refresh token has nothing to revoke
	rClaims, err := svc.tokens.ParseRefresh(refreshToken)
	if err != nil || rClaims.Subject != claims.Subject {
		return nil
	}
	if err = svc.blacklist.Add(ctx, refreshToken, rClaims.ExpiresAtTime()); err != nil {
		return errors.Wrap(err, "revoking refresh token")
	}
	return nil
}

func (svc *service) IsRevoked(ctx context.Context, token string) (bool, error) {
	revoked, err := svc.blacklist.Contains(ctx, token)
	if err != nil {
		return false, errors.Wrap(err, "checking token blacklist")
	}
	return revoked, nil
}

func (svc *service) ForgotPassword(ctx context.Context, email string) error {
	usr, err := svc.userSvc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil
		}
		return errors.Wrap(err, "getting user")
	}

	code, err := svc.issueOTP(ctx, usr.Email, PurposePasswordReset)
	if err != nil {
		return err
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{usr.MailAddress()},
		Subject:      "Reset your password - Skill Barter",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"name":       usr.FirstName,
			"otp":        code,
			"expires_in": svc.expiresIn(),
		},
	})
	return nil
}

func (svc *service) VerifyPasswordResetOTP(ctx context.Context, data VerifyOTP) (ResetGrant, error) {
	if err := svc.checkOTP(ctx, data, PurposePasswordReset); err != nil {
		return ResetGrant{}, err
	}
	usr, err := svc.userSvc.GetByEmail(ctx, data.Email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return ResetGrant{}, ErrInvalidOTP
		}
		return ResetGrant{}, errors.Wrap(err, "getting user")
	}
	token, err := svc.resetTokens.makeToken(usr)
	if err != nil {
		return ResetGrant{}, errors.Wrap(err, "making reset token")
	}
	return ResetGrant{ResetToken: token}, nil
}

func (svc *service) ResetPassword(ctx context.Context, data ResetPassword) error {
	usr, err := svc.userSvc.GetByEmail(ctx, data.Email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return ErrInvalidResetToken
		}
		return errors.Wrap(err, "getting user")
	}
	if _, err = svc.otpRepo.GetLatestOTP(ctx, usr.Email, PurposePasswordReset, true); err != nil {
		if errors.Cause(err) == ErrOTPNotFound {
			return ErrInvalidResetToken
		}
		return errors.Wrap(err, "getting verified otp")
	}
	if err = svc.resetTokens.verifyToken(usr, data.ResetToken); err != nil {
		return ErrInvalidResetToken
	}

	if usr, err = svc.userSvc.SetPassword(ctx, usr, data.Password); err != nil {
		return err
	}
	if err = svc.otpRepo.DeleteOTPs(ctx, usr.Email, PurposePasswordReset); err != nil {
		svc.logger.Error(fmt.Sprintf("deleting reset otps: %v", err), err, usr)
	}
	svc.alert(ctx, usr, "Your password was reset.")
	return nil
}

func (svc *service) PurgeExpiredOTPs(ctx context.Context) (int, error) {
	return svc.otpRepo.DeleteExpiredOTPs(ctx, NowFunc().UTC())
}
