package dummydb

import (
	"context"
	"time"

	"github.com/skillbarter/backend/core/auth"
)

type otpRepository struct {
	db *otpTable
}

var _ auth.OTPRepository = (*otpRepository)(nil) // interface compliance check

func NewOTPRepository(db *DB) auth.OTPRepository {
	return &otpRepository{db: db.otp}
}

func (repo *otpRepository) CreateOTP(_ context.Context, otp auth.OTP) (auth.OTP, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	otp.ID = newID()
	repo.db.table[otp.ID] = &otp
	return otp, nil
}

func (repo *otpRepository) GetLatestOTP(_ context.Context, email, purpose string, verified bool) (auth.OTP, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var latest *auth.OTP
	for _, otp := range repo.db.table {
		if otp.Email != email || otp.Purpose != purpose || otp.Verified != verified {
			continue
		}
		if latest == nil || otp.CreatedAt.After(latest.CreatedAt) {
			latest = otp
		}
	}
	if latest == nil {
		return auth.OTP{}, auth.ErrOTPNotFound
	}
	return *latest, nil
}

func (repo *otpRepository) UpdateOTP(_ context.Context, otp auth.OTP) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[otp.ID]; !ok {
		return auth.ErrOTPNotFound
	}
	repo.db.table[otp.ID] = &otp
	return nil
}

func (repo *otpRepository) DeleteOTPs(_ context.Context, email, purpose string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, otp := range repo.db.table {
		if otp.Email == email && otp.Purpose == purpose {
			delete(repo.db.table, id)
		}
	}
	return nil
}

func (repo *otpRepository) DeleteExpiredOTPs(_ context.Context, before time.Time) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var n int
	for id, otp := range repo.db.table {
		if otp.ExpiresAt.Before(before) {
			delete(repo.db.table, id)
			n++
		}
	}
	return n, nil
}
