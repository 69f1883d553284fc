package dummydb

import (
	"context"
	"sort"

	"github.com/skillbarter/backend/core"
	"github.com/skillbarter/backend/core/booking"
)

type bookingRepository struct {
	db *bookingTable
}

var _ booking.Repository = (*bookingRepository)(nil) // interface compliance check

func NewBookingRepository(db *DB) booking.Repository {
	return &bookingRepository{db: db.booking}
}

func copyBooking(b booking.Booking) booking.Booking {
	b.DaysOfWeek = append([]string{}, b.DaysOfWeek...)
	return b
}

func (repo *bookingRepository) CreateBookings(_ context.Context, bookings []booking.Booking) ([]booking.Booking, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	created := make([]booking.Booking, 0, len(bookings))
	for _, b := range bookings {
		b.ID = newID()
		b = copyBooking(b)
		repo.db.table[b.ID] = &b
		created = append(created, copyBooking(b))
	}
	return created, nil
}

func (repo *bookingRepository) CountBookingsForExchange(_ context.Context, exchangeRequestID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var n int
	for _, b := range repo.db.table {
		if b.ExchangeRequestID == exchangeRequestID {
			n++
		}
	}
	return n, nil
}

func (repo *bookingRepository) GetBooking(_ context.Context, id string) (booking.Booking, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if b, ok := repo.db.table[id]; ok {
		return copyBooking(*b), nil
	}
	return booking.Booking{}, booking.ErrNotFound
}

func (repo *bookingRepository) QueryBookings(
	_ context.Context, userID string, pq core.PageQuery,
) ([]booking.Booking, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	bookings := make([]booking.Booking, 0)
	for _, b := range repo.db.table {
		if b.VisibleTo(userID) {
			bookings = append(bookings, copyBooking(*b))
		}
	}
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].UpdatedAt.After(bookings[j].UpdatedAt) })
	start, end := pq.Bounds(len(bookings))
	return bookings[start:end], len(bookings), nil
}

func (repo *bookingRepository) UpdateBooking(_ context.Context, b booking.Booking) (booking.Booking, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[b.ID]; !ok {
		return booking.Booking{}, booking.ErrNotFound
	}
	b = copyBooking(b)
	repo.db.table[b.ID] = &b
	return copyBooking(b), nil
}
