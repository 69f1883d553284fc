package dummydb

import (
	"sync"

	"github.com/google/uuid"

	"github.com/skillbarter/backend/core/auth"
	"github.com/skillbarter/backend/core/booking"
	"github.com/skillbarter/backend/core/contact"
	"github.com/skillbarter/backend/core/exchange"
	"github.com/skillbarter/backend/core/notification"
	"github.com/skillbarter/backend/core/review"
	"github.com/skillbarter/backend/core/session"
	"github.com/skillbarter/backend/core/user"
)

type (
	// DB keeps every table in memory. Each table has its own lock.
	DB struct {
		user         *userTable
		otp          *otpTable
		exchange     *exchangeTable
		booking      *bookingTable
		session      *sessionTable
		review       *reviewTable
		notification *notificationTable
		settings     *settingsTable
		contact      *contactTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	otpTable struct {
		sync.RWMutex
		table map[string]*auth.OTP
	}

	exchangeTable struct {
		sync.RWMutex
		table map[string]*exchange.Request
	}

	bookingTable struct {
		sync.RWMutex
		table map[string]*booking.Booking
	}

	sessionTable struct {
		sync.RWMutex
		table map[string]*session.Session
	}

	reviewTable struct {
		sync.RWMutex
		table map[string]*review.Review
	}

	notificationTable struct {
		sync.RWMutex
		table map[string]*notification.Notification
	}

	settingsTable struct {
		sync.RWMutex
		table map[string]*notification.Settings // by user id
	}

	contactTable struct {
		sync.RWMutex
		table map[string]*contact.Contact
	}
)

func Open() *DB {
	return &DB{
		user:         &userTable{table: make(map[string]*user.User)},
		otp:          &otpTable{table: make(map[string]*auth.OTP)},
		exchange:     &exchangeTable{table: make(map[string]*exchange.Request)},
		booking:      &bookingTable{table: make(map[string]*booking.Booking)},
		session:      &sessionTable{table: make(map[string]*session.Session)},
		review:       &reviewTable{table: make(map[string]*review.Review)},
		notification: &notificationTable{table: make(map[string]*notification.Notification)},
		settings:     &settingsTable{table: make(map[string]*notification.Settings)},
		contact:      &contactTable{table: make(map[string]*contact.Contact)},
	}
}

func newID() string {
	return uuid.New().String()
}
