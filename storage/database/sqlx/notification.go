package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/skillbarter/backend/core/notification"
)

const (
	notificationColumns = "id, user_id, type, title, message, action_url, data, status, read_at, created_at"
	settingsColumns     = "user_id, email, push, in_app, created_at, updated_at"
)

type notificationRow struct {
	ID        string         `db:"id"`
	UserID    string         `db:"user_id"`
	Type      string         `db:"type"`
	Title     string         `db:"title"`
	Message   string         `db:"message"`
	ActionURL null.String    `db:"action_url"`
	Data      types.JSONText `db:"data"`
	Status    string         `db:"status"`
	ReadAt    null.Time      `db:"read_at"`
	CreatedAt time.Time      `db:"created_at"`
}

func newNotificationRow(n notification.Notification) (notificationRow, error) {
	data := n.Data
	if data == nil {
		data = map[string]string{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return notificationRow{}, errors.Wrap(err, "encoding notification data")
	}
	return notificationRow{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		ActionURL: null.StringFromPtr(n.ActionURL),
		Data:      types.JSONText(raw),
		Status:    n.Status,
		ReadAt:    null.TimeFromPtr(n.ReadAt),
		CreatedAt: n.CreatedAt,
	}, nil
}

func (r notificationRow) toNotification() (notification.Notification, error) {
	n := notification.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Type:      r.Type,
		Title:     r.Title,
		Message:   r.Message,
		ActionURL: r.ActionURL.Ptr(),
		Data:      map[string]string{},
		Status:    r.Status,
		CreatedAt: r.CreatedAt.UTC(),
	}
	if r.ReadAt.Valid {
		at := r.ReadAt.Time.UTC()
		n.ReadAt = &at
	}
	if err := r.Data.Unmarshal(&n.Data); err != nil {
		return notification.Notification{}, errors.Wrap(err, "decoding notification data")
	}
	return n, nil
}

type settingsRow struct {
	UserID    string         `db:"user_id"`
	Email     types.JSONText `db:"email"`
	Push      types.JSONText `db:"push"`
	InApp     types.JSONText `db:"in_app"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func newSettingsRow(s notification.Settings) (settingsRow, error) {
	row := settingsRow{UserID: s.UserID, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}
	for dst, src := range map[*types.JSONText]notification.Preferences{
		&row.Email: s.Email,
		&row.Push:  s.Push,
		&row.InApp: s.InApp,
	} {
		raw, err := json.Marshal(src)
		if err != nil {
			return settingsRow{}, errors.Wrap(err, "encoding notification preferences")
		}
		*dst = raw
	}
	return row, nil
}

func (r settingsRow) toSettings() (notification.Settings, error) {
	s := notification.Settings{UserID: r.UserID, CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC()}
	for src, dst := range map[*types.JSONText]*notification.Preferences{
		&r.Email: &s.Email,
		&r.Push:  &s.Push,
		&r.InApp: &s.InApp,
	} {
		if err := src.Unmarshal(dst); err != nil {
			return notification.Settings{}, errors.Wrap(err, "decoding notification preferences")
		}
	}
	return s, nil
}

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotification(
	ctx context.Context, n notification.Notification,
) (notification.Notification, error) {
	n.ID = newID()
	row, err := newNotificationRow(n)
	if err != nil {
		return notification.Notification{}, err
	}
	_, err = repo.db.NamedExecContext(ctx,
		`INSERT INTO notifications (`+notificationColumns+`) VALUES (:id, :user_id, :type, :title, :message,
		:action_url, :data, :status, :read_at, :created_at)`,
		row,
	)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}

func (repo *notificationRepository) QueryNotifications(
	ctx context.Context, userID string, filter notification.QueryFilter,
) ([]notification.Notification, int, error) {
	w := &where{}
	w.add("user_id = ?", userID)
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}

	var total int
	if err := repo.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM notifications"+w.String(), w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting notifications")
	}
	var rows []notificationRow
	limit, offset := w.arg(filter.Limit), w.arg(filter.Offset())
	err := repo.db.SelectContext(ctx, &rows,
		"SELECT "+notificationColumns+" FROM notifications"+w.String()+
			" ORDER BY created_at DESC LIMIT "+limit+" OFFSET "+offset,
		w.args...,
	)
	if err != nil {
		return nil, 0, errors.Wrap(err, "selecting notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		n, err := r.toNotification()
		if err != nil {
			return nil, 0, err
		}
		notifs = append(notifs, n)
	}
	return notifs, total, nil
}

func (repo *notificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	err := repo.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND status = $2", userID, notification.StatusUnread,
	)
	return n, errors.Wrap(err, "counting unread notifications")
}

func (repo *notificationRepository) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	if !isUUID(id) {
		return notification.Notification{}, notification.ErrNotFound
	}
	var row notificationRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+notificationColumns+" FROM notifications WHERE id = $1", id)
	if err != nil {
		if noRows(err) {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "selecting notification")
	}
	return row.toNotification()
}

func (repo *notificationRepository) UpdateNotification(
	ctx context.Context, n notification.Notification,
) (notification.Notification, error) {
	row, err := newNotificationRow(n)
	if err != nil {
		return notification.Notification{}, err
	}
	res, err := repo.db.NamedExecContext(ctx,
		"UPDATE notifications SET status = :status, read_at = :read_at WHERE id = :id", row,
	)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "updating notification")
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return notification.Notification{}, notification.ErrNotFound
	}
	return n, nil
}

func (repo *notificationRepository) MarkAllRead(ctx context.Context, userID string, readAt time.Time) error {
	_, err := repo.db.ExecContext(ctx,
		"UPDATE notifications SET status = $1, read_at = $2 WHERE user_id = $3 AND status = $4",
		notification.StatusRead, readAt, userID, notification.StatusUnread,
	)
	return errors.Wrap(err, "marking notifications read")
}

func (repo *notificationRepository) GetSettings(ctx context.Context, userID string) (notification.Settings, error) {
	var row settingsRow
	err := repo.db.GetContext(ctx, &row,
		"SELECT "+settingsColumns+" FROM notification_settings WHERE user_id = $1", userID,
	)
	if err != nil {
		if noRows(err) {
			return notification.Settings{}, notification.ErrSettingsNotFound
		}
		return notification.Settings{}, errors.Wrap(err, "selecting notification settings")
	}
	return row.toSettings()
}

// CreateSettings is idempotent: existing settings are returned untouched.
func (repo *notificationRepository) CreateSettings(
	ctx context.Context, s notification.Settings,
) (notification.Settings, error) {
	row, err := newSettingsRow(s)
	if err != nil {
		return notification.Settings{}, err
	}
	_, err = repo.db.NamedExecContext(ctx,
		`INSERT INTO notification_settings (`+settingsColumns+`) VALUES (:user_id, :email, :push, :in_app,
		:created_at, :updated_at) ON CONFLICT (user_id) DO NOTHING`,
		row,
	)
	if err != nil {
		return notification.Settings{}, errors.Wrap(err, "inserting notification settings")
	}
	return repo.GetSettings(ctx, s.UserID)
}

func (repo *notificationRepository) UpdateSettings(
	ctx context.Context, s notification.Settings,
) (notification.Settings, error) {
	row, err := newSettingsRow(s)
	if err != nil {
		return notification.Settings{}, err
	}
	res, err := repo.db.NamedExecContext(ctx,
		`UPDATE notification_settings SET email = :email, push = :push, in_app = :in_app, updated_at = :updated_at
		WHERE user_id = :user_id`,
		row,
	)
	if err != nil {
		return notification.Settings{}, errors.Wrap(err, "updating notification settings")
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return notification.Settings{}, notification.ErrSettingsNotFound
	}
	return s, nil
}
