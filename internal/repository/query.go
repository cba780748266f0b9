package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/konitys/antennes-api/internal/model"
)

// Predicate is a WHERE clause body and its positional arguments.
type Predicate struct {
	SQL  string
	Args []any
}

// Next is the position of the first placeholder a caller may append.
func (p Predicate) Next() int {
	return len(p.Args) + 1
}

// CompileFilter builds the listing predicate. Clauses are appended in a fixed
// order (key, etat, ville, type_profil_id, antenne_principale, has_iban) and
// always start from "deleted = false".
func CompileFilter(f model.Filters) Predicate {
	clauses := []string{"deleted = false"}
	var args []any

	bind := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Key != "" {
		// One parameter shared by the whole OR group.
		p := bind("%" + f.Key + "%")
		clauses = append(clauses, fmt.Sprintf(
			"(nom ILIKE %[1]s OR prenom ILIKE %[1]s OR email ILIKE %[1]s OR raison_sociale ILIKE %[1]s OR ville ILIKE %[1]s)", p))
	}
	if f.Etat != "" {
		clauses = append(clauses, "etat = "+bind(f.Etat))
	}
	if f.Ville != "" {
		clauses = append(clauses, "ville ILIKE "+bind("%"+f.Ville+"%"))
	}
	if f.TypeProfilID != nil {
		clauses = append(clauses, "type_profil_id = "+bind(*f.TypeProfilID))
	}
	if f.AntennePrincipale != nil {
		clauses = append(clauses, "antenne_principale = "+bind(*f.AntennePrincipale))
	}
	if f.HasIBAN {
		clauses = append(clauses, "iban IS NOT NULL AND iban <> ''")
	}

	return Predicate{SQL: strings.Join(clauses, " AND "), Args: args}
}

type valueKind int

const (
	kindText valueKind = iota
	kindRequiredText
	kindInt
	kindBool
	kindDate
	kindEtat
)

type updatableField struct {
	field  string
	column string
	kind   valueKind
}

// updatableFields is the update allow-list, in emission order. Keys outside
// it are ignored.
var updatableFields = []updatableField{
	{"nom", "nom", kindText},
	{"prenom", "prenom", kindRequiredText},
	{"civilite", "civilite", kindRequiredText},
	{"date_naissance", "date_naissance", kindDate},
	{"tel_portable", "tel_portable", kindText},
	{"tel_fixe", "tel_fixe", kindText},
	{"email", "email", kindText},
	{"situation_professionnelle", "situation_professionnelle", kindText},
	{"adresse", "adresse", kindText},
	{"adresse_complementaire", "adresse_complementaire", kindText},
	{"cp", "cp", kindText},
	{"ville", "ville", kindText},
	{"pays", "pays", kindText},
	{"pays_id", "pays_id", kindInt},
	{"type_statut_id", "type_statut_id", kindInt},
	{"raison_sociale", "raison_sociale", kindText},
	{"siret", "siret", kindText},
	{"etat", "etat", kindEtat},
	{"type_profil_id", "type_profil_id", kindInt},
	{"antenne_principale", "antenne_principale", kindBool},
	{"bon_savoir", "bon_savoir", kindText},
	{"information_facturation", "information_facturation", kindText},
	{"iban", "iban", kindText},
	{"bic", "bic", kindText},
	{"precisions_lieu", "precisions_lieu", kindText},
	{"preferences_horaires_pickup_retrait", "preferences_horaires_pickup_retrait", kindText},
	{"preferences_horaires_pickup_retour", "preferences_horaires_pickup_retour", kindText},
	{"not_share_phone_number", "not_share_phone_number", kindBool},
}

// Assignments is a SET clause body and its positional arguments.
type Assignments struct {
	Columns []string
	SQL     string
	Args    []any
}

// Empty reports whether no allow-listed field was present.
func (a Assignments) Empty() bool {
	return len(a.Columns) == 0
}

// Next is the position of the first placeholder a caller may append.
func (a Assignments) Next() int {
	return len(a.Args) + 1
}

// CompileUpdate builds the SET clause for a partial update. Present keys are
// emitted in allow-list order; a JSON null clears nullable columns. When at
// least one column is set, "updated_at = $n" bound to now closes the list.
func CompileUpdate(patch model.AntennePatch, now time.Time) (Assignments, error) {
	var (
		set     Assignments
		parts   []string
		invalid ValidationError
	)

	for _, f := range updatableFields {
		raw, ok := patch[f.field]
		if !ok {
			continue
		}

		value, msg := decodeValue(f.kind, raw)
		if msg != "" {
			invalid.add(f.field, msg)
			continue
		}

		set.Args = append(set.Args, value)
		set.Columns = append(set.Columns, f.column)
		parts = append(parts, fmt.Sprintf("%s = $%d", f.column, len(set.Args)))
	}

	if err := invalid.orNil(); err != nil {
		return Assignments{}, err
	}
	if set.Empty() {
		return Assignments{}, nil
	}

	set.Args = append(set.Args, now)
	parts = append(parts, fmt.Sprintf("updated_at = $%d", len(set.Args)))
	set.SQL = strings.Join(parts, ", ")

	return set, nil
}

var jsonNull = []byte("null")

// decodeValue converts one JSON value to its bind argument. A non-empty
// message reports why the value was rejected.
func decodeValue(kind valueKind, raw json.RawMessage) (any, string) {
	isNull := bytes.Equal(bytes.TrimSpace(raw), jsonNull)

	switch kind {
	case kindText:
		if isNull {
			return nil, ""
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, "must be a string"
		}
		return s, ""

	case kindRequiredText:
		var s string
		if isNull || json.Unmarshal(raw, &s) != nil {
			return nil, "must be a string"
		}
		if strings.TrimSpace(s) == "" {
			return nil, "must not be empty"
		}
		return s, ""

	case kindInt:
		if isNull {
			return nil, ""
		}
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, "must be an integer"
		}
		return n, ""

	case kindBool:
		var b bool
		if isNull || json.Unmarshal(raw, &b) != nil {
			return nil, "must be a boolean"
		}
		return b, ""

	case kindDate:
		if isNull {
			return nil, ""
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, "must be a date (YYYY-MM-DD)"
		}
		if s == "" {
			return nil, ""
		}
		d, err := parseDate(s)
		if err != nil {
			return nil, "must be a date (YYYY-MM-DD)"
		}
		return d, ""

	case kindEtat:
		var e model.Etat
		if isNull || json.Unmarshal(raw, &e) != nil || !e.Valid() {
			return nil, "must be one of: actif inactif"
		}
		return string(e), ""
	}

	return nil, "unsupported field"
}

// parseDate accepts a calendar date or a full RFC 3339 timestamp, keeping
// only the date part.
func parseDate(s string) (time.Time, error) {
	if d, err := time.Parse(time.DateOnly, s); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
