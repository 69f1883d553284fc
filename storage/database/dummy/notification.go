package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/skillbarter/backend/core/notification"
)

type notificationRepository struct {
	db       *notificationTable
	settings *settingsTable
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db.notification, settings: db.settings}
}

func copyNotification(n notification.Notification) notification.Notification {
	data := make(map[string]string, len(n.Data))
	for k, v := range n.Data {
		data[k] = v
	}
	n.Data = data
	return n
}

func (repo *notificationRepository) CreateNotification(
	_ context.Context, n notification.Notification,
) (notification.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	n.ID = newID()
	n = copyNotification(n)
	repo.db.table[n.ID] = &n
	return copyNotification(n), nil
}

func (repo *notificationRepository) QueryNotifications(
	_ context.Context, userID string, filter notification.QueryFilter,
) ([]notification.Notification, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	notifs := make([]notification.Notification, 0)
	for _, n := range repo.db.table {
		if n.UserID == userID && (filter.Status == "" || n.Status == filter.Status) {
			notifs = append(notifs, copyNotification(*n))
		}
	}
	sort.Slice(notifs, func(i, j int) bool { return notifs[i].CreatedAt.After(notifs[j].CreatedAt) })
	start, end := filter.Bounds(len(notifs))
	return notifs[start:end], len(notifs), nil
}

func (repo *notificationRepository) CountUnread(_ context.Context, userID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var n int
	for _, notif := range repo.db.table {
		if notif.UserID == userID && notif.Status == notification.StatusUnread {
			n++
		}
	}
	return n, nil
}

func (repo *notificationRepository) GetNotification(_ context.Context, id string) (notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if n, ok := repo.db.table[id]; ok {
		return copyNotification(*n), nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) UpdateNotification(
	_ context.Context, n notification.Notification,
) (notification.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[n.ID]; !ok {
		return notification.Notification{}, notification.ErrNotFound
	}
	n = copyNotification(n)
	repo.db.table[n.ID] = &n
	return copyNotification(n), nil
}

func (repo *notificationRepository) MarkAllRead(_ context.Context, userID string, readAt time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, n := range repo.db.table {
		if n.UserID == userID && n.Status == notification.StatusUnread {
			at := readAt
			n.Status = notification.StatusRead
			n.ReadAt = &at
		}
	}
	return nil
}

func (repo *notificationRepository) GetSettings(_ context.Context, userID string) (notification.Settings, error) {
	repo.settings.RLock()
	defer repo.settings.RUnlock()

	if s, ok := repo.settings.table[userID]; ok {
		return *s, nil
	}
	return notification.Settings{}, notification.ErrSettingsNotFound
}

func (repo *notificationRepository) CreateSettings(_ context.Context, s notification.Settings) (notification.Settings, error) {
	repo.settings.Lock()
	defer repo.settings.Unlock()

	if existing, ok := repo.settings.table[s.UserID]; ok {
		return *existing, nil
	}
	repo.settings.table[s.UserID] = &s
	return s, nil
}

func (repo *notificationRepository) UpdateSettings(_ context.Context, s notification.Settings) (notification.Settings, error) {
	repo.settings.Lock()
	defer repo.settings.Unlock()

	if _, ok := repo.settings.table[s.UserID]; !ok {
		return notification.Settings{}, notification.ErrSettingsNotFound
	}
	repo.settings.table[s.UserID] = &s
	return s, nil
}
