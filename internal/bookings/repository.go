package bookings

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Repository defines the interface for booking storage.
type Repository interface {
	Create(ctx context.Context, nb NewBooking) (*Booking, error)
	GetByID(ctx context.Context, id int64) (*Booking, error)
	AttachPaymentIntent(ctx context.Context, id int64, intentID string) (*Booking, error)
	UpdatePaymentStatus(ctx context.Context, id int64, intentID string, status PaymentStatus) (*Booking, error)
	List(ctx context.Context, filter ListFilter) ([]*Booking, error)
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func (f ListFilter) normalized() ListFilter {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// InMemoryRepository keeps bookings in a map. It backs tests and local
// development without DATABASE_URL.
type InMemoryRepository struct {
	mu       sync.RWMutex
	nextID   int64
	bookings map[int64]*Booking
	now      func() time.Time
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		bookings: make(map[int64]*Booking),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, nb NewBooking) (*Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("bookings: insert: %w: %w", ErrPersistence, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	b := &Booking{
		ID:                 r.nextID,
		ContactInfo:        nb.Submission.ContactInfo,
		TimePreferences:    nb.Submission.TimePreferences,
		MedicalDeclaration: nb.Submission.MedicalDeclaration,
		PaymentStatus:      StatusPending,
		TotalAmount:        nb.TotalAmount,
		Currency:           nb.Currency,
		CreatedAt:          r.now(),
	}
	b = b.clone()
	r.bookings[b.ID] = b
	return b.clone(), nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id int64) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b.clone(), nil
}

func (r *InMemoryRepository) AttachPaymentIntent(ctx context.Context, id int64, intentID string) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	if b.PaymentStatus != StatusPending {
		return nil, fmt.Errorf("bookings: attach intent to %s booking: %w", b.PaymentStatus, ErrInvalidTransition)
	}
	b.StripePaymentIntentID = intentID
	return b.clone(), nil
}

func (r *InMemoryRepository) UpdatePaymentStatus(ctx context.Context, id int64, intentID string, status PaymentStatus) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !CanTransition(b.PaymentStatus, status) {
		return nil, fmt.Errorf("bookings: %s -> %s: %w", b.PaymentStatus, status, ErrInvalidTransition)
	}
	b.PaymentStatus = status
	if intentID != "" {
		b.StripePaymentIntentID = intentID
	}
	return b.clone(), nil
}

func (r *InMemoryRepository) List(ctx context.Context, filter ListFilter) ([]*Booking, error) {
	filter = filter.normalized()
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*Booking, 0, len(r.bookings))
	for _, b := range r.bookings {
		if filter.Status != "" && b.PaymentStatus != filter.Status {
			continue
		}
		all = append(all, b)
	}
	// Newest first, matching the Postgres ORDER BY.
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	if filter.Offset >= len(all) {
		return []*Booking{}, nil
	}
	all = all[filter.Offset:]
	if len(all) > filter.Limit {
		all = all[:filter.Limit]
	}
	out := make([]*Booking, len(all))
	for i, b := range all {
		out[i] = b.clone()
	}
	return out, nil
}
