package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/novellus/pilates-booking/internal/schema"
)

type dbtx interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores bookings in the relational database.
type PostgresRepository struct {
	db dbtx
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithDB(db dbtx) *PostgresRepository {
	if db == nil {
		panic("bookings: db required")
	}
	return &PostgresRepository{db: db}
}

const bookingColumns = `id, first_name, last_name, phone_number, email,
	emergency_contact_name, emergency_contact_phone,
	selected_date, time_preferences, class_type, language,
	pain_areas, is_pregnant, pregnancy_weeks, heart_condition, chest_pain,
	dizziness, asthma_attack, diabetes_control, other_conditions,
	medical_conditions, has_medical_conditions,
	stripe_payment_intent_id, payment_status, total_amount, currency, created_at`

// Create inserts a pending booking and returns the stored row.
func (r *PostgresRepository) Create(ctx context.Context, nb NewBooking) (*Booking, error) {
	sub := nb.Submission
	times, err := json.Marshal(sub.TimePreferences.TimePreferences)
	if err != nil {
		return nil, fmt.Errorf("bookings: encode time preferences: %w", err)
	}
	painAreas := sub.PainAreas
	if painAreas == nil {
		painAreas = []schema.PainArea{}
	}
	pains, err := json.Marshal(painAreas)
	if err != nil {
		return nil, fmt.Errorf("bookings: encode pain areas: %w", err)
	}
	var weeks pgtype.Int4
	if sub.PregnancyWeeks != nil {
		weeks = pgtype.Int4{Int32: int32(*sub.PregnancyWeeks), Valid: true}
	}

	query := `
		INSERT INTO bookings (
			first_name, last_name, phone_number, email,
			emergency_contact_name, emergency_contact_phone,
			selected_date, time_preferences, class_type, language,
			pain_areas, is_pregnant, pregnancy_weeks, heart_condition, chest_pain,
			dizziness, asthma_attack, diabetes_control, other_conditions,
			medical_conditions, has_medical_conditions,
			payment_status, total_amount, currency
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		RETURNING id, created_at
	`
	var (
		id        int64
		createdAt time.Time
	)
	if err := r.db.QueryRow(ctx, query,
		sub.FirstName,
		sub.LastName,
		sub.PhoneNumber,
		sub.Email,
		sub.EmergencyContactName,
		sub.EmergencyContactPhone,
		sub.SelectedDate,
		times,
		string(sub.ClassType),
		string(sub.Language),
		pains,
		sub.IsPregnant,
		weeks,
		sub.HeartCondition,
		sub.ChestPain,
		sub.Dizziness,
		sub.AsthmaAttack,
		sub.DiabetesControl,
		sub.OtherConditions,
		sub.MedicalConditions,
		sub.HasMedicalConditions,
		string(StatusPending),
		nb.TotalAmount,
		nb.Currency,
	).Scan(&id, &createdAt); err != nil {
		return nil, fmt.Errorf("bookings: insert: %w: %w", ErrPersistence, err)
	}

	b := &Booking{
		ID:                 id,
		ContactInfo:        sub.ContactInfo,
		TimePreferences:    sub.TimePreferences,
		MedicalDeclaration: sub.MedicalDeclaration,
		PaymentStatus:      StatusPending,
		TotalAmount:        nb.TotalAmount,
		Currency:           nb.Currency,
		CreatedAt:          createdAt,
	}
	return b.clone(), nil
}

// GetByID fetches one booking.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	b, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("bookings: select: %w: %w", ErrPersistence, err)
	}
	return b, nil
}

// AttachPaymentIntent records the provider intent on a pending booking.
func (r *PostgresRepository) AttachPaymentIntent(ctx context.Context, id int64, intentID string) (*Booking, error) {
	query := `
		UPDATE bookings SET stripe_payment_intent_id = $2
		WHERE id = $1 AND payment_status = 'pending'
		RETURNING ` + bookingColumns
	b, err := scanBooking(r.db.QueryRow(ctx, query, id, intentID))
	if err == nil {
		return b, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.explainMiss(ctx, id, "attach intent")
	}
	return nil, fmt.Errorf("bookings: attach intent: %w: %w", ErrPersistence, err)
}

// UpdatePaymentStatus applies a status change. The WHERE clause only
// matches pending rows or rows already in the requested status, so reverse
// transitions never touch the table.
func (r *PostgresRepository) UpdatePaymentStatus(ctx context.Context, id int64, intentID string, status PaymentStatus) (*Booking, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("bookings: unknown status %q: %w", status, ErrInvalidTransition)
	}
	query := `
		UPDATE bookings
		SET payment_status = $2,
			stripe_payment_intent_id = COALESCE(NULLIF($3, ''), stripe_payment_intent_id)
		WHERE id = $1 AND (payment_status = 'pending' OR payment_status = $2)
		RETURNING ` + bookingColumns
	b, err := scanBooking(r.db.QueryRow(ctx, query, id, string(status), intentID))
	if err == nil {
		return b, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.explainMiss(ctx, id, "update status")
	}
	return nil, fmt.Errorf("bookings: update status: %w: %w", ErrPersistence, err)
}

// explainMiss distinguishes a missing row from a guarded update.
func (r *PostgresRepository) explainMiss(ctx context.Context, id int64, op string) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("bookings: %s on %s booking: %w", op, current.PaymentStatus, ErrInvalidTransition)
}

// List returns bookings newest first.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*Booking, error) {
	filter = filter.normalized()
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE ($1 = '' OR payment_status = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, string(filter.Status), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("bookings: list: %w: %w", ErrPersistence, err)
	}
	defer rows.Close()

	out := []*Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("bookings: list scan: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: list: %w: %w", ErrPersistence, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(row scanner) (*Booking, error) {
	var (
		b                           Booking
		classType, language, status string
		timesJSON, painsJSON        []byte
		weeks                       pgtype.Int4
		intentID                    pgtype.Text
	)
	if err := row.Scan(
		&b.ID,
		&b.FirstName,
		&b.LastName,
		&b.PhoneNumber,
		&b.Email,
		&b.EmergencyContactName,
		&b.EmergencyContactPhone,
		&b.SelectedDate,
		&timesJSON,
		&classType,
		&language,
		&painsJSON,
		&b.IsPregnant,
		&weeks,
		&b.HeartCondition,
		&b.ChestPain,
		&b.Dizziness,
		&b.AsthmaAttack,
		&b.DiabetesControl,
		&b.OtherConditions,
		&b.MedicalConditions,
		&b.HasMedicalConditions,
		&intentID,
		&status,
		&b.TotalAmount,
		&b.Currency,
		&b.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(timesJSON, &b.TimePreferences.TimePreferences); err != nil {
		return nil, fmt.Errorf("bookings: decode time preferences: %w", err)
	}
	if len(painsJSON) > 0 {
		if err := json.Unmarshal(painsJSON, &b.PainAreas); err != nil {
			return nil, fmt.Errorf("bookings: decode pain areas: %w", err)
		}
	}
	b.ClassType = schema.ClassType(classType)
	b.Language = schema.Language(language)
	b.PaymentStatus = PaymentStatus(status)
	if weeks.Valid {
		w := int(weeks.Int32)
		b.PregnancyWeeks = &w
	}
	if intentID.Valid {
		b.StripePaymentIntentID = intentID.String
	}
	return &b, nil
}
