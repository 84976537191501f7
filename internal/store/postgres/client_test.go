package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestDSNFromParts(t *testing.T) {
	dsn := DSN(ClientConfig{
		Host:     "db.internal",
		Port:     5433,
		Database: "kaledao",
		User:     "svc",
		Password: "pw",
		SSLMode:  "require",
	})
	assert.Equal(t, "postgres://svc:pw@db.internal:5433/kaledao?sslmode=require", dsn)
}

func TestDSNDefaults(t *testing.T) {
	dsn := DSN(ClientConfig{Host: "localhost", Database: "kaledao", User: "postgres"})
	assert.Equal(t, "postgres://postgres:@localhost:5432/kaledao?sslmode=disable", dsn)
}

func TestDSNPassthrough(t *testing.T) {
	raw := "postgres://u:p@h:5432/d"
	assert.Equal(t, raw, DSN(ClientConfig{DSN: raw, Host: "ignored"}))
}

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "teams_pkey"}

	assert.True(t, isUniqueViolation(dup, "teams_pkey"))
	assert.True(t, isUniqueViolation(dup, ""), "empty constraint matches any unique violation")
	assert.False(t, isUniqueViolation(dup, "team_members_pkey"))

	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.False(t, isUniqueViolation(errors.New("plain"), ""))

	wrapped := errors.Join(errors.New("context"), dup)
	assert.True(t, isUniqueViolation(wrapped, "teams_pkey"))
}
