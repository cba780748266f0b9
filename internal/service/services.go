// Package service contains the business logic.
//
// It sits between the handler and repository layers. It receives validated
// data from the handler, calls repository methods, announces successful
// mutations on the event exchange and converts failures into HTTP errors.
package service

import (
	"github.com/konitys/antennes-api/internal/repository"
	"github.com/konitys/antennes-api/internal/server"
)

type Services struct {
	Antennes *AntenneService
}

func NewServices(s *server.Server, repos *repository.Repositories) *Services {
	return &Services{
		Antennes: NewAntenneService(repos.Antennes, s.Events, s.Logger),
	}
}
