package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/skillbarter/backend/core/session"
)

const sessionColumns = `id, session_booking_id, exchange_request_id, instructor_id, learner_id, skill, type,
	completed, scheduled_date, duration, description, location, meeting_link, address, completed_at,
	created_at, updated_at`

type sessionRow struct {
	ID                string      `db:"id"`
	SessionBookingID  string      `db:"session_booking_id"`
	ExchangeRequestID string      `db:"exchange_request_id"`
	InstructorID      string      `db:"instructor_id"`
	LearnerID         string      `db:"learner_id"`
	Skill             string      `db:"skill"`
	Type              string      `db:"type"`
	Completed         bool        `db:"completed"`
	ScheduledDate     time.Time   `db:"scheduled_date"`
	Duration          int         `db:"duration"`
	Description       null.String `db:"description"`
	Location          string      `db:"location"`
	MeetingLink       null.String `db:"meeting_link"`
	Address           null.String `db:"address"`
	CompletedAt       null.Time   `db:"completed_at"`
	CreatedAt         time.Time   `db:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at"`
}

func newSessionRow(s session.Session) sessionRow {
	return sessionRow{
		ID:                s.ID,
		SessionBookingID:  s.SessionBookingID,
		ExchangeRequestID: s.ExchangeRequestID,
		InstructorID:      s.InstructorID,
		LearnerID:         s.LearnerID,
		Skill:             s.Skill,
		Type:              s.Type,
		Completed:         s.Completed,
		ScheduledDate:     s.ScheduledDate,
		Duration:          s.Duration,
		Description:       optString(s.Description),
		Location:          s.Location,
		MeetingLink:       optString(s.MeetingLink),
		Address:           optString(s.Address),
		CompletedAt:       null.TimeFromPtr(s.CompletedAt),
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

func (r sessionRow) toSession() session.Session {
	s := session.Session{
		ID:                r.ID,
		SessionBookingID:  r.SessionBookingID,
		ExchangeRequestID: r.ExchangeRequestID,
		InstructorID:      r.InstructorID,
		LearnerID:         r.LearnerID,
		Skill:             r.Skill,
		Type:              r.Type,
		Completed:         r.Completed,
		ScheduledDate:     r.ScheduledDate.UTC(),
		Duration:          r.Duration,
		Description:       r.Description.String,
		Location:          r.Location,
		MeetingLink:       r.MeetingLink.String,
		Address:           r.Address.String,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
	if r.CompletedAt.Valid {
		at := r.CompletedAt.Time.UTC()
		s.CompletedAt = &at
	}
	return s
}

type sessionRepository struct {
	db *sqlx.DB
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *sqlx.DB) session.Repository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) CreateSessions(ctx context.Context, sessions []session.Session) ([]session.Session, error) {
	if len(sessions) == 0 {
		return []session.Session{}, nil
	}
	rows := make([]sessionRow, 0, len(sessions))
	for i := range sessions {
		sessions[i].ID = newID()
		rows = append(rows, newSessionRow(sessions[i]))
	}
	// sqlx expands a slice argument into a single multi-row insert
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (:id, :session_booking_id, :exchange_request_id,
		:instructor_id, :learner_id, :skill, :type, :completed, :scheduled_date, :duration, :description,
		:location, :meeting_link, :address, :completed_at, :created_at, :updated_at)`,
		rows,
	)
	if err != nil {
		return nil, errors.Wrap(err, "inserting sessions")
	}
	return sessions, nil
}

func (repo *sessionRepository) GetSession(ctx context.Context, id string) (session.Session, error) {
	if !isUUID(id) {
		return session.Session{}, session.ErrNotFound
	}
	var row sessionRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+sessionColumns+" FROM sessions WHERE id = $1", id); err != nil {
		if noRows(err) {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, errors.Wrap(err, "selecting session")
	}
	return row.toSession(), nil
}

func (repo *sessionRepository) ListSessions(ctx context.Context, userID string) ([]session.Session, error) {
	var rows []sessionRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT `+sessionColumns+` FROM sessions WHERE instructor_id = $1 OR learner_id = $1
		ORDER BY scheduled_date`,
		userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting sessions")
	}
	sessions := make([]session.Session, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, r.toSession())
	}
	return sessions, nil
}

func (repo *sessionRepository) UpdateSession(ctx context.Context, s session.Session) (session.Session, error) {
	res, err := repo.db.NamedExecContext(ctx,
		`UPDATE sessions SET completed = :completed, completed_at = :completed_at, meeting_link = :meeting_link,
		description = :description, updated_at = :updated_at WHERE id = :id`,
		newSessionRow(s),
	)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "updating session")
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return session.Session{}, session.ErrNotFound
	}
	return s, nil
}
