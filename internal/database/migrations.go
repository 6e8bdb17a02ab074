package database

import (
	"github.com/chachabrian/clearinghouse-backend/internal/models"
	"gorm.io/gorm"
)

// Indexes that AutoMigrate cannot express.
var constraintStatements = []string{
	// One partnership per unordered pair of providers.
	`CREATE UNIQUE INDEX IF NOT EXISTS index_provider_relationships_on_pair
		ON provider_relationships (LEAST(requesting_provider_id, cooperating_provider_id),
			GREATEST(requesting_provider_id, cooperating_provider_id))
		WHERE deleted_at IS NULL`,
	// At most one approved claim per ticket.
	`CREATE UNIQUE INDEX IF NOT EXISTS index_trip_claims_one_approved_per_ticket
		ON trip_claims (trip_ticket_id)
		WHERE status = 'approved' AND deleted_at IS NULL`,
	`ALTER TABLE trip_claims DROP CONSTRAINT IF EXISTS trip_claims_status_check`,
	`ALTER TABLE trip_claims ADD CONSTRAINT trip_claims_status_check
		CHECK (status IN ('pending', 'approved', 'declined', 'rescinded'))`,
	`ALTER TABLE trip_tickets DROP CONSTRAINT IF EXISTS trip_tickets_scheduling_priority_check`,
	`ALTER TABLE trip_tickets ADD CONSTRAINT trip_tickets_scheduling_priority_check
		CHECK (scheduling_priority IN ('pickup', 'dropoff'))`,
	`CREATE INDEX IF NOT EXISTS index_trip_claims_on_ticket_and_updated_at
		ON trip_claims (trip_ticket_id, updated_at)`,
	`CREATE INDEX IF NOT EXISTS index_trip_tickets_on_updated_at
		ON trip_tickets (updated_at)`,
}

func RunMigrations(db *gorm.DB) error {
	// Create tables if they don't exist
	err := db.AutoMigrate(
		&models.Provider{},
		&models.Service{},
		&models.User{},
		&models.ProviderRelationship{},
		&models.TripTicket{},
		&models.TripClaim{},
		&models.TripResult{},
		&models.BulkOperation{},
	)
	if err != nil {
		return err
	}

	for _, statement := range constraintStatements {
		if err := db.Exec(statement).Error; err != nil {
			return err
		}
	}
	return nil
}
