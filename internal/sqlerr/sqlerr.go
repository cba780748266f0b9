// Package sqlerr turns PostgreSQL driver errors into client-facing errors.
//
// Constraint violations (unique, foreign key, not null, check) become 400s
// with a stable machine code such as ANTENNE_INVALID; everything else is an
// opaque 500.
package sqlerr
