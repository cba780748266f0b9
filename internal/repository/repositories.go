package repository

import (
	"github.com/konitys/antennes-api/internal/server"
)

// Repositories groups every repository built on the shared pool.
type Repositories struct {
	Antennes *AntenneRepository
}

// NewRepositories wires repositories to the server's database pool.
func NewRepositories(s *server.Server) *Repositories {
	return &Repositories{
		Antennes: NewAntenneRepository(s.DB.Pool),
	}
}
