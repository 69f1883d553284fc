package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/skillbarter/backend/core/auth"
)

type otpRow struct {
	ID        string    `db:"id"`
	Email     string    `db:"email"`
	CodeHash  string    `db:"code_hash"`
	Purpose   string    `db:"purpose"`
	Verified  bool      `db:"verified"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

func (r otpRow) toOTP() auth.OTP {
	return auth.OTP{
		ID:        r.ID,
		Email:     r.Email,
		CodeHash:  r.CodeHash,
		Purpose:   r.Purpose,
		Verified:  r.Verified,
		ExpiresAt: r.ExpiresAt.UTC(),
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type otpRepository struct {
	db *sqlx.DB
}

var _ auth.OTPRepository = (*otpRepository)(nil) // interface compliance check

func NewOTPRepository(db *sqlx.DB) auth.OTPRepository {
	return &otpRepository{db: db}
}

func (repo *otpRepository) CreateOTP(ctx context.Context, otp auth.OTP) (auth.OTP, error) {
	otp.ID = newID()
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO otps (id, email, code_hash, purpose, verified, expires_at, created_at)
		VALUES (:id, :email, :code_hash, :purpose, :verified, :expires_at, :created_at)`,
		otpRow(otp),
	)
	if err != nil {
		return auth.OTP{}, errors.Wrap(err, "inserting otp")
	}
	return otp, nil
}

func (repo *otpRepository) GetLatestOTP(ctx context.Context, email, purpose string, verified bool) (auth.OTP, error) {
	var row otpRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT id, email, code_hash, purpose, verified, expires_at, created_at FROM otps
		WHERE email = $1 AND purpose = $2 AND verified = $3 ORDER BY created_at DESC LIMIT 1`,
		email, purpose, verified,
	)
	if err != nil {
		if noRows(err) {
			return auth.OTP{}, auth.ErrOTPNotFound
		}
		return auth.OTP{}, errors.Wrap(err, "selecting otp")
	}
	return row.toOTP(), nil
}

func (repo *otpRepository) UpdateOTP(ctx context.Context, otp auth.OTP) error {
	res, err := repo.db.ExecContext(ctx, "UPDATE otps SET verified = $2 WHERE id = $1", otp.ID, otp.Verified)
	if err != nil {
		return errors.Wrap(err, "updating otp")
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return auth.ErrOTPNotFound
	}
	return nil
}

func (repo *otpRepository) DeleteOTPs(ctx context.Context, email, purpose string) error {
	_, err := repo.db.ExecContext(ctx, "DELETE FROM otps WHERE email = $1 AND purpose = $2", email, purpose)
	return errors.Wrap(err, "deleting otps")
}

func (repo *otpRepository) DeleteExpiredOTPs(ctx context.Context, before time.Time) (int, error) {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM otps WHERE expires_at < $1", before)
	if err != nil {
		return 0, errors.Wrap(err, "deleting expired otps")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "counting deleted otps")
}
