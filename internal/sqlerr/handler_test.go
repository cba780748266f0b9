package sqlerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konitys/antennes-api/internal/errs"
)

func asHTTPError(t *testing.T, err error) *errs.HTTPError {
	t.Helper()
	var httpErr *errs.HTTPError
	require.True(t, errors.As(err, &httpErr), "expected *errs.HTTPError, got %T", err)
	return httpErr
}

func TestHandleError_CheckViolation(t *testing.T) {
	pgErr := &pgconn.PgError{
		Severity:       "ERROR",
		Code:           "23514",
		Message:        `new row for relation "antennes" violates check constraint "antennes_etat_check"`,
		TableName:      "antennes",
		ColumnName:     "etat",
		ConstraintName: "antennes_etat_check",
	}

	httpErr := asHTTPError(t, HandleError(fmt.Errorf("update antenne: %w", pgErr)))
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Equal(t, "ANTENNE_INVALID", httpErr.Code)
	assert.Equal(t, "The Etat value does not meet required conditions", httpErr.Message)
}

func TestHandleError_NotNullViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23502", TableName: "antennes", ColumnName: "prenom"}

	httpErr := asHTTPError(t, HandleError(pgErr))
	assert.Equal(t, "ANTENNE_REQUIRED", httpErr.Code)
	require.Len(t, httpErr.Errors, 1)
	assert.Equal(t, "prenom", httpErr.Errors[0].Field)
}

func TestHandleError_UniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", TableName: "antennes", ConstraintName: "antennes_siret_key"}

	httpErr := asHTTPError(t, HandleError(pgErr))
	assert.Equal(t, "ANTENNE_ALREADY_EXISTS", httpErr.Code)
	assert.Equal(t, "A Antenne with this Siret already exists", httpErr.Message)
}

func TestHandleError_Fallbacks(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, asHTTPError(t, HandleError(pgx.ErrNoRows)).Status)
	assert.Equal(t, http.StatusInternalServerError, asHTTPError(t, HandleError(errors.New("boom"))).Status)

	original := errs.NewForbiddenError("nope", false)
	assert.Same(t, original, HandleError(original))
}

func TestMapCode(t *testing.T) {
	assert.Equal(t, UniqueViolation, MapCode("23505"))
	assert.Equal(t, InvalidText, MapCode("22P02"))
	assert.Equal(t, Other, MapCode("42P01"))
}

func TestErrCode(t *testing.T) {
	converted := ConvertPgError(&pgconn.PgError{Code: "23503", Severity: "ERROR"})
	assert.Equal(t, ForeignKeyViolation, ErrCode(fmt.Errorf("wrap: %w", converted)))
	assert.Equal(t, SeverityError, converted.Severity)
	assert.Equal(t, Other, ErrCode(errors.New("plain")))
}
