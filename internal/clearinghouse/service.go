package clearinghouse

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service runs claim, ticket and sync operations against the store. Each
// mutation is one transaction.
type Service struct {
	db       *gorm.DB
	registry *Registry
	resolver *Resolver
	now      func() time.Time
}

func NewService(db *gorm.DB) *Service {
	registry := NewRegistry(db)
	return &Service{
		db:       db,
		registry: registry,
		resolver: NewResolver(registry),
		now:      time.Now,
	}
}

func (s *Service) Registry() *Registry {
	return s.registry
}

func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// resolverFor reads partnership state through tx.
func (s *Service) resolverFor(tx *gorm.DB) *Resolver {
	return NewResolver(s.registry.with(tx))
}

var forUpdate = clause.Locking{Strength: "UPDATE"}
