package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/booking"
)

const bookingColumns = `id, exchange_request_id, proposer_id, recipient_id, skill, status, days_per_week,
	days_of_week, start_time, duration, total_sessions, message, version, created_at, updated_at`

type bookingRow struct {
	ID                string         `db:"id"`
	ExchangeRequestID string         `db:"exchange_request_id"`
	ProposerID        string         `db:"proposer_id"`
	RecipientID       string         `db:"recipient_id"`
	Skill             string         `db:"skill"`
	Status            string         `db:"status"`
	DaysPerWeek       int            `db:"days_per_week"`
	DaysOfWeek        pq.StringArray `db:"days_of_week"`
	StartTime         string         `db:"start_time"`
	Duration          int            `db:"duration"`
	TotalSessions     int            `db:"total_sessions"`
	Message           null.String    `db:"message"`
	Version           int            `db:"version"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

func newBookingRow(b booking.Booking) bookingRow {
	return bookingRow{
		ID:                b.ID,
		ExchangeRequestID: b.ExchangeRequestID,
		ProposerID:        b.ProposerID,
		RecipientID:       b.RecipientID,
		Skill:             b.Skill,
		Status:            b.Status,
		DaysPerWeek:       b.DaysPerWeek,
		DaysOfWeek:        pq.StringArray(b.DaysOfWeek),
		StartTime:         b.StartTime,
		Duration:          b.Duration,
		TotalSessions:     b.TotalSessions,
		Message:           optString(b.Message),
		Version:           b.Version,
		CreatedAt:         b.CreatedAt,
		UpdatedAt:         b.UpdatedAt,
	}
}

func (r bookingRow) toBooking() booking.Booking {
	return booking.Booking{
		ID:                r.ID,
		ExchangeRequestID: r.ExchangeRequestID,
		ProposerID:        r.ProposerID,
		RecipientID:       r.RecipientID,
		Skill:             r.Skill,
		Status:            r.Status,
		Schedule: booking.Schedule{
			DaysPerWeek:   r.DaysPerWeek,
			DaysOfWeek:    append([]string{}, r.DaysOfWeek...),
			StartTime:     r.StartTime,
			Duration:      r.Duration,
			TotalSessions: r.TotalSessions,
		},
		Message:   r.Message.String,
		Version:   r.Version,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type bookingRepository struct {
	db *sqlx.DB
}

var _ booking.Repository = (*bookingRepository)(nil) // interface compliance check

func NewBookingRepository(db *sqlx.DB) booking.Repository {
	return &bookingRepository{db: db}
}

func (repo *bookingRepository) CreateBookings(ctx context.Context, bookings []booking.Booking) ([]booking.Booking, error) {
	created := make([]booking.Booking, 0, len(bookings))
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		for _, b := range bookings {
			b.ID = newID()
			_, err := tx.NamedExecContext(ctx,
				`INSERT INTO session_bookings (`+bookingColumns+`) VALUES (:id, :exchange_request_id, :proposer_id,
				:recipient_id, :skill, :status, :days_per_week, :days_of_week, :start_time, :duration,
				:total_sessions, :message, :version, :created_at, :updated_at)`,
				newBookingRow(b),
			)
			if err != nil {
				return errors.Wrap(err, "inserting session booking")
			}
			created = append(created, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (repo *bookingRepository) CountBookingsForExchange(ctx context.Context, exchangeRequestID string) (int, error) {
	var n int
	err := repo.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM session_bookings WHERE exchange_request_id = $1", exchangeRequestID,
	)
	return n, errors.Wrap(err, "counting session bookings")
}

func (repo *bookingRepository) GetBooking(ctx context.Context, id string) (booking.Booking, error) {
	if !isUUID(id) {
		return booking.Booking{}, booking.ErrNotFound
	}
	var row bookingRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+bookingColumns+" FROM session_bookings WHERE id = $1", id); err != nil {
		if noRows(err) {
			return booking.Booking{}, booking.ErrNotFound
		}
		return booking.Booking{}, errors.Wrap(err, "selecting session booking")
	}
	return row.toBooking(), nil
}

func (repo *bookingRepository) QueryBookings(
	ctx context.Context, userID string, page core.PageQuery,
) ([]booking.Booking, int, error) {
	w := &where{}
	w.add("(proposer_id = ? OR (recipient_id = ? AND status <> ?))", userID, userID, booking.StatusDraft)

	var total int
	if err := repo.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM session_bookings"+w.String(), w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting session bookings")
	}
	var rows []bookingRow
	limit, offset := w.arg(page.Limit), w.arg(page.Offset())
	err := repo.db.SelectContext(ctx, &rows,
		"SELECT "+bookingColumns+" FROM session_bookings"+w.String()+
			" ORDER BY updated_at DESC LIMIT "+limit+" OFFSET "+offset,
		w.args...,
	)
	if err != nil {
		return nil, 0, errors.Wrap(err, "selecting session bookings")
	}
	bookings := make([]booking.Booking, 0, len(rows))
	for _, r := range rows {
		bookings = append(bookings, r.toBooking())
	}
	return bookings, total, nil
}

func (repo *bookingRepository) UpdateBooking(ctx context.Context, b booking.Booking) (booking.Booking, error) {
	res, err := repo.db.NamedExecContext(ctx,
		`UPDATE session_bookings SET status = :status, days_per_week = :days_per_week, days_of_week = :days_of_week,
		start_time = :start_time, duration = :duration, total_sessions = :total_sessions, message = :message,
		version = :version, updated_at = :updated_at WHERE id = :id`,
		newBookingRow(b),
	)
	if err != nil {
		return booking.Booking{}, errors.Wrap(err, "updating session booking")
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return booking.Booking{}, booking.ErrNotFound
	}
	return b, nil
}
