// Package model holds the antenne entity and the value types exchanged
// between the HTTP, service and repository layers.
package model

import (
	"encoding/json"
	"time"
)

// Etat is the lifecycle state of an antenne.
type Etat string

const (
	EtatActif   Etat = "actif"
	EtatInactif Etat = "inactif"
)

// Valid reports whether e is a known state.
func (e Etat) Valid() bool {
	return e == EtatActif || e == EtatInactif
}

// Antenne is a contact/branch record. Nullable columns are pointers.
type Antenne struct {
	ID                               int64      `json:"id"`
	Nom                              *string    `json:"nom"`
	Prenom                           string     `json:"prenom"`
	Civilite                         string     `json:"civilite"`
	DateNaissance                    *time.Time `json:"date_naissance"`
	TelPortable                      *string    `json:"tel_portable"`
	TelFixe                          *string    `json:"tel_fixe"`
	Email                            *string    `json:"email"`
	SituationProfessionnelle         *string    `json:"situation_professionnelle"`
	Adresse                          *string    `json:"adresse"`
	AdresseComplementaire            *string    `json:"adresse_complementaire"`
	CP                               *string    `json:"cp"`
	Ville                            *string    `json:"ville"`
	Pays                             *string    `json:"pays"`
	PaysID                           *int64     `json:"pays_id"`
	TypeStatutID                     *int64     `json:"type_statut_id"`
	RaisonSociale                    *string    `json:"raison_sociale"`
	Siret                            *string    `json:"siret"`
	Etat                             Etat       `json:"etat"`
	TypeProfilID                     *int64     `json:"type_profil_id"`
	AntennePrincipale                bool       `json:"antenne_principale"`
	BonSavoir                        *string    `json:"bon_savoir"`
	InformationFacturation           *string    `json:"information_facturation"`
	IBAN                             *string    `json:"iban"`
	BIC                              *string    `json:"bic"`
	PrecisionsLieu                   *string    `json:"precisions_lieu"`
	PreferencesHorairesPickupRetrait *string    `json:"preferences_horaires_pickup_retrait"`
	PreferencesHorairesPickupRetour  *string    `json:"preferences_horaires_pickup_retour"`
	NotSharePhoneNumber              bool       `json:"not_share_phone_number"`
	Deleted                          bool       `json:"deleted"`
	CreatedAt                        time.Time  `json:"created_at"`
	UpdatedAt                        time.Time  `json:"updated_at"`
}

// NewAntenne is the creation payload. Only Prenom and Civilite are required;
// Etat, AntennePrincipale and NotSharePhoneNumber default when nil.
type NewAntenne struct {
	Nom                              *string `json:"nom"`
	Prenom                           string  `json:"prenom" validate:"required"`
	Civilite                         string  `json:"civilite" validate:"required"`
	DateNaissance                    *string `json:"date_naissance" validate:"omitempty,datetime=2006-01-02"`
	TelPortable                      *string `json:"tel_portable"`
	TelFixe                          *string `json:"tel_fixe"`
	Email                            *string `json:"email" validate:"omitempty,email"`
	SituationProfessionnelle         *string `json:"situation_professionnelle"`
	Adresse                          *string `json:"adresse"`
	AdresseComplementaire            *string `json:"adresse_complementaire"`
	CP                               *string `json:"cp" validate:"omitempty,max=10"`
	Ville                            *string `json:"ville"`
	Pays                             *string `json:"pays"`
	PaysID                           *int64  `json:"pays_id"`
	TypeStatutID                     *int64  `json:"type_statut_id"`
	RaisonSociale                    *string `json:"raison_sociale"`
	Siret                            *string `json:"siret" validate:"omitempty,max=20"`
	Etat                             *Etat   `json:"etat" validate:"omitempty,oneof=actif inactif"`
	TypeProfilID                     *int64  `json:"type_profil_id"`
	AntennePrincipale                *bool   `json:"antenne_principale"`
	BonSavoir                        *string `json:"bon_savoir"`
	InformationFacturation           *string `json:"information_facturation"`
	IBAN                             *string `json:"iban" validate:"omitempty,max=50"`
	BIC                              *string `json:"bic" validate:"omitempty,max=20"`
	PrecisionsLieu                   *string `json:"precisions_lieu"`
	PreferencesHorairesPickupRetrait *string `json:"preferences_horaires_pickup_retrait"`
	PreferencesHorairesPickupRetour  *string `json:"preferences_horaires_pickup_retour"`
	NotSharePhoneNumber              *bool   `json:"not_share_phone_number"`
}

// AntennePatch is a partial update keyed by JSON field name. A key present
// with a JSON null clears the column; absent keys are left untouched.
type AntennePatch map[string]json.RawMessage

// Has reports whether field is present in the patch, null included.
func (p AntennePatch) Has(field string) bool {
	_, ok := p[field]
	return ok
}

// Etat returns the patch's etat value when it is a JSON string.
func (p AntennePatch) Etat() (Etat, bool) {
	raw, ok := p["etat"]
	if !ok {
		return "", false
	}
	var etat Etat
	if err := json.Unmarshal(raw, &etat); err != nil {
		return "", false
	}
	return etat, true
}

// Filters narrows FindAll. Zero values mean "not set"; TypeProfilID and
// AntennePrincipale are pointers because 0 and false are meaningful.
type Filters struct {
	Key               string
	Etat              string
	Ville             string
	TypeProfilID      *int64
	AntennePrincipale *bool
	HasIBAN           bool
}

const (
	DefaultPage  = 1
	DefaultLimit = 20
)

// Pagination is a 1-based page request.
type Pagination struct {
	Page  int
	Limit int
}

// Normalize fills defaults for non-positive values.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	return p
}

// Offset is the number of rows skipped before the page.
func (p Pagination) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// TotalPages is ceil(total / limit).
func (p Pagination) TotalPages(total int64) int64 {
	limit := int64(p.Normalize().Limit)
	return (total + limit - 1) / limit
}

// Stats are aggregate counts over non-deleted antennes.
type Stats struct {
	Total       int64 `json:"total"`
	Actifs      int64 `json:"actifs"`
	Inactifs    int64 `json:"inactifs"`
	Principales int64 `json:"principales"`
}
