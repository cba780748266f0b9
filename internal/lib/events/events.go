// Package events publishes antenne change notifications to a RabbitMQ topic
// exchange and consumes them back.
//
// The Publisher owns a single connection and channel. It keeps reconnecting
// with a fixed delay for as long as it runs; while disconnected, Publish
// degrades to a logged no-op returning false.
package events

import (
	"time"

	"github.com/konitys/antennes-api/internal/model"
)

// Routing keys emitted after successful mutations.
const (
	RoutingKeyCreated     = "antenne.created"
	RoutingKeyUpdated     = "antenne.updated"
	RoutingKeyDeactivated = "antenne.deactivated"
	RoutingKeyDeleted     = "antenne.deleted"

	// RoutingKeyAll binds a queue to every antenne event.
	RoutingKeyAll = "antenne.#"
)

// timestampLayout matches JavaScript's Date.toISOString.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp formats t for an event payload.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// CreatedPayload is the body of antenne.created.
type CreatedPayload struct {
	ID        int64         `json:"id"`
	Data      model.Antenne `json:"data"`
	Timestamp string        `json:"timestamp"`
}

// UpdatedPayload is the body of antenne.updated.
type UpdatedPayload struct {
	AntenneID int64          `json:"antenneId"`
	Data      AntenneSummary `json:"data"`
	Timestamp string         `json:"timestamp"`
}

// AntenneSummary is the subset of an antenne carried by update events.
type AntenneSummary struct {
	ID     int64      `json:"id"`
	Prenom string     `json:"prenom"`
	Nom    *string    `json:"nom"`
	Etat   model.Etat `json:"etat"`
}

// LifecyclePayload is the body of antenne.deactivated and antenne.deleted.
type LifecyclePayload struct {
	AntenneID int64  `json:"antenneId"`
	Timestamp string `json:"timestamp"`
}

func NewCreatedPayload(a model.Antenne, now time.Time) CreatedPayload {
	return CreatedPayload{ID: a.ID, Data: a, Timestamp: Timestamp(now)}
}

func NewUpdatedPayload(a model.Antenne, now time.Time) UpdatedPayload {
	return UpdatedPayload{
		AntenneID: a.ID,
		Data: AntenneSummary{
			ID:     a.ID,
			Prenom: a.Prenom,
			Nom:    a.Nom,
			Etat:   a.Etat,
		},
		Timestamp: Timestamp(now),
	}
}

func NewLifecyclePayload(id int64, now time.Time) LifecyclePayload {
	return LifecyclePayload{AntenneID: id, Timestamp: Timestamp(now)}
}
