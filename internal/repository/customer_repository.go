package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"omnidesk/internal/entities"
)

type CustomerRepository struct {
	db *pgxpool.Pool
}

func NewCustomerRepository(db *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*entities.Customer, error) {
	return r.getBy(ctx, "id", id)
}

// UpsertByEmail is insert-or-fetch keyed on the email column. Under a
// concurrent first contact the losing insert hits the unique constraint
// (DO NOTHING) and the follow-up read returns the winner's row, so exactly
// one customer exists per distinct email.
func (r *CustomerRepository) UpsertByEmail(ctx context.Context, c *entities.Customer) (*entities.Customer, error) {
	return r.upsert(ctx, "email", c.Email, c)
}

// UpsertByPhone is insert-or-fetch keyed on the phone column.
func (r *CustomerRepository) UpsertByPhone(ctx context.Context, c *entities.Customer) (*entities.Customer, error) {
	return r.upsert(ctx, "phone", c.Phone, c)
}

func (r *CustomerRepository) upsert(ctx context.Context, keyColumn, keyValue string, c *entities.Customer) (*entities.Customer, error) {
	if keyValue == "" {
		return nil, fmt.Errorf("customer %s is required", keyColumn)
	}

	id := c.ID
	if id == "" {
		id = uuid.NewString()
	}

	query := fmt.Sprintf(`
		INSERT INTO customers (id, name, email, phone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (%s) DO NOTHING
	`, keyColumn)
	// Empty phone goes in as NULL so email-only contacts never collide on
	// the phone unique index.
	if _, err := r.db.Exec(ctx, query, id, c.Name, c.Email, nullIfEmpty(c.Phone)); err != nil {
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("insert customer: %w", err)
		}
		// The conflict target only absorbs collisions on the key column.
		// A unique violation here means the other identity column already
		// belongs to a different customer (a chat contact's phone showing
		// up in an email signature, say); drop it and retry so the
		// contact still resolves by its key.
		email, phone := fallbackIdentity(keyColumn, c)
		if _, err := r.db.Exec(ctx, query, id, c.Name, email, phone); err != nil {
			return nil, fmt.Errorf("insert customer: %w", err)
		}
	}

	stored, err := r.getBy(ctx, keyColumn, keyValue)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("customer not found after upsert by %s", keyColumn)
	}
	return stored, nil
}

func (r *CustomerRepository) UpdateName(ctx context.Context, id, name string) error {
	_, err := r.db.Exec(ctx, "UPDATE customers SET name = $1 WHERE id = $2", name, id)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// fallbackIdentity returns insert arguments with the non-key identity
// column dropped. Email is NOT NULL, so the phone-keyed path falls back
// to the placeholder address derived from the phone.
func fallbackIdentity(keyColumn string, c *entities.Customer) (email string, phone any) {
	if keyColumn == "email" {
		return c.Email, nil
	}
	return entities.PlaceholderEmail(c.Phone), nullIfEmpty(c.Phone)
}

func (r *CustomerRepository) getBy(ctx context.Context, column, value string) (*entities.Customer, error) {
	var c entities.Customer
	query := fmt.Sprintf("SELECT id, name, email, COALESCE(phone, ''), created_at FROM customers WHERE %s = $1", column)
	err := r.db.QueryRow(ctx, query, value).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
