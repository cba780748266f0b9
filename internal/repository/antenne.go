package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/konitys/antennes-api/internal/model"
)

const antenneColumns = `id, nom, prenom, civilite, date_naissance, tel_portable, tel_fixe, email, ` +
	`situation_professionnelle, adresse, adresse_complementaire, cp, ville, pays, pays_id, ` +
	`type_statut_id, raison_sociale, siret, etat, type_profil_id, antenne_principale, bon_savoir, ` +
	`information_facturation, iban, bic, precisions_lieu, preferences_horaires_pickup_retrait, ` +
	`preferences_horaires_pickup_retour, not_share_phone_number, deleted, created_at, updated_at`

const insertColumns = `nom, prenom, civilite, date_naissance, tel_portable, tel_fixe, email, ` +
	`situation_professionnelle, adresse, adresse_complementaire, cp, ville, pays, pays_id, ` +
	`type_statut_id, raison_sociale, siret, etat, type_profil_id, antenne_principale, bon_savoir, ` +
	`information_facturation, iban, bic, precisions_lieu, preferences_horaires_pickup_retrait, ` +
	`preferences_horaires_pickup_retour, not_share_phone_number, deleted, created_at, updated_at`

// AntenneRepository reads and writes the antennes table. Rows flagged
// deleted are invisible to every read.
//
// Update and SoftDelete check existence and write in two statements without
// a transaction. A concurrent delete in between either yields not-found or
// updates a row that is about to disappear; both outcomes are accepted.
type AntenneRepository struct {
	db  DBTX
	now func() time.Time
}

func NewAntenneRepository(db DBTX) *AntenneRepository {
	return &AntenneRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func scanAntenne(row pgx.Row) (model.Antenne, error) {
	var a model.Antenne
	err := row.Scan(
		&a.ID, &a.Nom, &a.Prenom, &a.Civilite, &a.DateNaissance, &a.TelPortable, &a.TelFixe, &a.Email,
		&a.SituationProfessionnelle, &a.Adresse, &a.AdresseComplementaire, &a.CP, &a.Ville, &a.Pays, &a.PaysID,
		&a.TypeStatutID, &a.RaisonSociale, &a.Siret, &a.Etat, &a.TypeProfilID, &a.AntennePrincipale, &a.BonSavoir,
		&a.InformationFacturation, &a.IBAN, &a.BIC, &a.PrecisionsLieu, &a.PreferencesHorairesPickupRetrait,
		&a.PreferencesHorairesPickupRetour, &a.NotSharePhoneNumber, &a.Deleted, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func collectAntennes(rows pgx.Rows) ([]model.Antenne, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Antenne, error) {
		return scanAntenne(row)
	})
}

// FindAll returns one page of matching antennes, most recently updated first,
// and the number of matches across all pages.
func (r *AntenneRepository) FindAll(ctx context.Context, filters model.Filters, page model.Pagination) ([]model.Antenne, int64, error) {
	pred := CompileFilter(filters)
	page = page.Normalize()

	var total int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM antennes WHERE "+pred.SQL, pred.Args...).Scan(&total); err != nil {
		return nil, 0, storeErr("count antennes", err)
	}

	n := pred.Next()
	query := fmt.Sprintf("SELECT %s FROM antennes WHERE %s ORDER BY updated_at DESC LIMIT $%d OFFSET $%d",
		antenneColumns, pred.SQL, n, n+1)

	args := make([]any, 0, len(pred.Args)+2)
	args = append(args, pred.Args...)
	args = append(args, page.Limit, page.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, storeErr("list antennes", err)
	}

	antennes, err := collectAntennes(rows)
	if err != nil {
		return nil, 0, storeErr("list antennes", err)
	}

	return antennes, total, nil
}

// FindByID returns nil, nil when the antenne does not exist or is deleted.
func (r *AntenneRepository) FindByID(ctx context.Context, id int64) (*model.Antenne, error) {
	row := r.db.QueryRow(ctx, "SELECT "+antenneColumns+" FROM antennes WHERE id = $1 AND deleted = false", id)

	a, err := scanAntenne(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("find antenne", err)
	}
	return &a, nil
}

// Create inserts a new antenne and returns the stored row.
func (r *AntenneRepository) Create(ctx context.Context, in model.NewAntenne) (*model.Antenne, error) {
	var invalid ValidationError
	if strings.TrimSpace(in.Prenom) == "" {
		invalid.add("prenom", "is required")
	}
	if strings.TrimSpace(in.Civilite) == "" {
		invalid.add("civilite", "is required")
	}

	etat := model.EtatActif
	if in.Etat != nil && *in.Etat != "" {
		if !in.Etat.Valid() {
			invalid.add("etat", "must be one of: actif inactif")
		}
		etat = *in.Etat
	}

	var dateNaissance any
	if in.DateNaissance != nil && *in.DateNaissance != "" {
		d, err := parseDate(*in.DateNaissance)
		if err != nil {
			invalid.add("date_naissance", "must be a date (YYYY-MM-DD)")
		}
		dateNaissance = d
	}

	if err := invalid.orNil(); err != nil {
		return nil, err
	}

	now := r.now()
	args := []any{
		nullString(in.Nom),
		in.Prenom,
		in.Civilite,
		dateNaissance,
		nullString(in.TelPortable),
		nullString(in.TelFixe),
		nullString(in.Email),
		nullString(in.SituationProfessionnelle),
		nullString(in.Adresse),
		nullString(in.AdresseComplementaire),
		nullString(in.CP),
		nullString(in.Ville),
		nullString(in.Pays),
		nullID(in.PaysID),
		nullID(in.TypeStatutID),
		nullString(in.RaisonSociale),
		nullString(in.Siret),
		string(etat),
		nullID(in.TypeProfilID),
		boolOr(in.AntennePrincipale, false),
		nullString(in.BonSavoir),
		nullString(in.InformationFacturation),
		nullString(in.IBAN),
		nullString(in.BIC),
		nullString(in.PrecisionsLieu),
		nullString(in.PreferencesHorairesPickupRetrait),
		nullString(in.PreferencesHorairesPickupRetour),
		boolOr(in.NotSharePhoneNumber, false),
		false,
		now,
		now,
	}

	query := fmt.Sprintf("INSERT INTO antennes (%s) VALUES (%s) RETURNING %s",
		insertColumns, placeholders(len(args)), antenneColumns)

	a, err := scanAntenne(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, storeErr("create antenne", err)
	}
	return &a, nil
}

// Update applies the fields present in patch. It returns nil, nil when the
// antenne does not exist, and the current row untouched when patch carries no
// updatable field.
func (r *AntenneRepository) Update(ctx context.Context, id int64, patch model.AntennePatch) (*model.Antenne, error) {
	current, err := r.FindByID(ctx, id)
	if err != nil || current == nil {
		return nil, err
	}

	set, err := CompileUpdate(patch, r.now())
	if err != nil {
		return nil, err
	}
	if set.Empty() {
		return current, nil
	}

	query := fmt.Sprintf("UPDATE antennes SET %s WHERE id = $%d RETURNING %s", set.SQL, set.Next(), antenneColumns)
	args := append(set.Args, id)

	a, err := scanAntenne(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("update antenne", err)
	}
	return &a, nil
}

// SoftDelete flags the antenne deleted. It reports false when no live row
// matched.
func (r *AntenneRepository) SoftDelete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx,
		"UPDATE antennes SET deleted = true, updated_at = $1 WHERE id = $2 AND deleted = false",
		r.now(), id)
	if err != nil {
		return false, storeErr("delete antenne", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FindByCity returns every live antenne whose city contains ville,
// case-insensitively. The result is not paginated.
func (r *AntenneRepository) FindByCity(ctx context.Context, ville string) ([]model.Antenne, error) {
	rows, err := r.db.Query(ctx,
		"SELECT "+antenneColumns+" FROM antennes WHERE ville ILIKE $1 AND deleted = false ORDER BY updated_at DESC",
		"%"+ville+"%")
	if err != nil {
		return nil, storeErr("find antennes by city", err)
	}

	antennes, err := collectAntennes(rows)
	if err != nil {
		return nil, storeErr("find antennes by city", err)
	}
	return antennes, nil
}

const statsQuery = `SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE etat = 'actif'),
	COUNT(*) FILTER (WHERE etat = 'inactif'),
	COUNT(*) FILTER (WHERE antenne_principale = true)
FROM antennes
WHERE deleted = false`

// Stats counts live antennes in a single pass.
func (r *AntenneRepository) Stats(ctx context.Context) (model.Stats, error) {
	var s model.Stats
	if err := r.db.QueryRow(ctx, statsQuery).Scan(&s.Total, &s.Actifs, &s.Inactifs, &s.Principales); err != nil {
		return model.Stats{}, storeErr("antenne stats", err)
	}
	return s, nil
}

func placeholders(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		if i > 1 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", i)
	}
	return b.String()
}

func nullString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func nullID(id *int64) any {
	if id == nil || *id == 0 {
		return nil
	}
	return *id
}

func boolOr(b *bool, fallback bool) bool {
	if b == nil {
		return fallback
	}
	return *b
}
