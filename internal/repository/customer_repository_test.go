package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"omnidesk/internal/entities"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert customer: %w", &pgconn.PgError{Code: "23505"})))

	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("connection reset by peer")))
	assert.False(t, isUniqueViolation(nil))
}

// A phone picked up from an email signature can already belong to a chat
// customer. The email-keyed retry must drop the phone so the insert only
// claims the email.
func TestFallbackIdentityDropsSecondaryColumn(t *testing.T) {
	c := &entities.Customer{
		Name:  "Hans Müller",
		Email: "hans@example.org",
		Phone: "905551112233",
	}

	email, phone := fallbackIdentity("email", c)
	assert.Equal(t, "hans@example.org", email)
	assert.Nil(t, phone)

	email, phone = fallbackIdentity("phone", c)
	assert.Equal(t, entities.PlaceholderEmail("905551112233"), email)
	assert.Equal(t, "905551112233", phone)
}
