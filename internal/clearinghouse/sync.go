package clearinghouse

import (
	"context"
	"fmt"
	"time"

	"github.com/chachabrian/clearinghouse-backend/internal/models"
	"gorm.io/gorm"
)

// lastChangeSQL is the newest of a ticket's own updated_at and its claims'.
const lastChangeSQL = "GREATEST(trip_tickets.updated_at, COALESCE((SELECT MAX(lc.updated_at) FROM trip_claims lc" +
	" WHERE lc.trip_ticket_id = trip_tickets.id AND lc.deleted_at IS NULL), trip_tickets.updated_at))"

// UpdatedSince keeps tickets changed after t, counting changes to any of the
// ticket's claims as a change to the ticket.
func UpdatedSince(t *time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if t == nil {
			return db
		}
		return db.Where(lastChangeSQL+" > ?", *t)
	}
}

// ListVisibleTickets returns the tickets the caller may see, oldest change
// first, narrowed by filters and an optional watermark. A ticket's change time
// counts its claims, so a limited page can be resumed with NextWatermark.
func (s *Service) ListVisibleTickets(ctx context.Context, caller Caller, filters Filters, updatedSince *time.Time) ([]TicketView, error) {
	filters = filters.Normalize()
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	scope, err := s.resolver.ScopeFor(ctx, caller)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).
		Scopes(scope.VisibleTickets, UpdatedSince(updatedSince), filters.Apply).
		Preload("TripClaims", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("TripResult").
		Order(lastChangeSQL + " ASC, trip_tickets.id ASC")
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}

	var tickets []models.TripTicket
	if err := query.Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}

	views := make([]TicketView, 0, len(tickets))
	for i := range tickets {
		views = append(views, newTicketView(scope, &tickets[i]))
	}
	return views, nil
}

// ChangedAt is the newest ticket or claim timestamp of a view. The ticket's
// claims must be loaded.
func ChangedAt(view TicketView) time.Time {
	latest := view.UpdatedAt
	for i := range view.TripTicket.TripClaims {
		if at := view.TripTicket.TripClaims[i].UpdatedAt; at.After(latest) {
			latest = at
		}
	}
	return latest
}

// LatestChange is the newest ticket or claim timestamp in views, or nil when
// views is empty.
func LatestChange(views []TicketView) *time.Time {
	var latest time.Time
	for i := range views {
		if at := ChangedAt(views[i]); at.After(latest) {
			latest = at
		}
	}
	if latest.IsZero() {
		return nil
	}
	return &latest
}

// NextWatermark is the updated_since to pass on the next call after a page of
// views returned for since. A full page may have more rows sharing its last
// change time, so it stops just before that time and those rows come again.
func NextWatermark(views []TicketView, limit int, since *time.Time) *time.Time {
	if len(views) == 0 {
		return since
	}
	if limit <= 0 || len(views) < limit {
		return LatestChange(views)
	}
	last := ChangedAt(views[len(views)-1])
	for i := len(views) - 2; i >= 0; i-- {
		if at := ChangedAt(views[i]); at.Before(last) {
			return &at
		}
	}
	return &last
}
