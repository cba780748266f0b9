// Package lib groups integrations that do not belong to a single layer.
//
// Today that is the RabbitMQ event publisher and its audit consumer, under
// lib/events.
package lib
