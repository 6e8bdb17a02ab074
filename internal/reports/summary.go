// Package reports aggregates a provider's clearinghouse activity over a date
// range and renders it as JSON-ready sections or a PDF.
package reports

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/chachabrian/clearinghouse-backend/internal/clearinghouse"
	"github.com/chachabrian/clearinghouse-backend/internal/models"
	"gorm.io/gorm"
)

// DateRange bounds a report. From is inclusive, To exclusive; either may be
// nil for an open end.
type DateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

func (r DateRange) Validate() error {
	if r.From != nil && r.To != nil && !r.From.Before(*r.To) {
		v := &clearinghouse.ValidationError{}
		v.Add("to", "must be after from")
		return v
	}
	return nil
}

type Row struct {
	Label string `json:"label"`
	Value int64  `json:"value"`
}

type Section struct {
	Title string `json:"title"`
	Rows  []Row  `json:"rows"`
}

type Summary struct {
	ProviderID  uint      `json:"provider_id"`
	Range       DateRange `json:"range"`
	GeneratedAt time.Time `json:"generated_at"`
	Sections    []Section `json:"sections"`
}

// Activity is the raw counts a summary is built from.
type Activity struct {
	NewTickets      int64
	UpdatedTickets  map[clearinghouse.TicketStatus]int64
	NewOffers       int64
	UpdatedOffers   map[models.TripClaimStatus]int64
	NewRequests     int64
	UpdatedRequests map[models.TripClaimStatus]int64
}

type Builder struct {
	db  *gorm.DB
	now func() time.Time
}

func NewBuilder(db *gorm.DB) *Builder {
	return &Builder{db: db, now: time.Now}
}

// ProviderSummary counts the provider's tickets, the claims it received on
// them and the claims it submitted on other providers' tickets.
func (b *Builder) ProviderSummary(ctx context.Context, providerID uint, r DateRange) (*Summary, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	act, err := b.activity(ctx, providerID, r)
	if err != nil {
		return nil, err
	}
	return &Summary{
		ProviderID:  providerID,
		Range:       r,
		GeneratedAt: b.now().UTC(),
		Sections:    buildSections(act),
	}, nil
}

func (b *Builder) activity(ctx context.Context, providerID uint, r DateRange) (Activity, error) {
	db := b.db.WithContext(ctx)
	act := Activity{}

	if err := db.Model(&models.TripTicket{}).
		Where("origin_provider_id = ?", providerID).
		Scopes(within("trip_tickets.created_at", r)).
		Count(&act.NewTickets).Error; err != nil {
		return act, fmt.Errorf("count new tickets: %w", err)
	}

	var updated []models.TripTicket
	if err := db.Where("origin_provider_id = ?", providerID).
		Scopes(within("trip_tickets.updated_at", r)).
		Preload("TripClaims").
		Find(&updated).Error; err != nil {
		return act, fmt.Errorf("load updated tickets: %w", err)
	}
	act.UpdatedTickets = map[clearinghouse.TicketStatus]int64{}
	for i := range updated {
		act.UpdatedTickets[clearinghouse.StatusLabel(&updated[i])]++
	}

	offers := func() *gorm.DB {
		return db.Model(&models.TripClaim{}).
			Joins("JOIN trip_tickets ON trip_tickets.id = trip_claims.trip_ticket_id").
			Where("trip_tickets.origin_provider_id = ?", providerID)
	}
	requests := func() *gorm.DB {
		return db.Model(&models.TripClaim{}).Where("trip_claims.claimant_provider_id = ?", providerID)
	}

	if err := offers().Scopes(within("trip_claims.created_at", r)).Count(&act.NewOffers).Error; err != nil {
		return act, fmt.Errorf("count new offers: %w", err)
	}
	var err error
	if act.UpdatedOffers, err = countByStatus(offers().Scopes(within("trip_claims.updated_at", r))); err != nil {
		return act, fmt.Errorf("count updated offers: %w", err)
	}
	if err := requests().Scopes(within("trip_claims.created_at", r)).Count(&act.NewRequests).Error; err != nil {
		return act, fmt.Errorf("count new requests: %w", err)
	}
	if act.UpdatedRequests, err = countByStatus(requests().Scopes(within("trip_claims.updated_at", r))); err != nil {
		return act, fmt.Errorf("count updated requests: %w", err)
	}
	return act, nil
}

func within(column string, r DateRange) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if r.From != nil {
			db = db.Where(column+" >= ?", *r.From)
		}
		if r.To != nil {
			db = db.Where(column+" < ?", *r.To)
		}
		return db
	}
}

func countByStatus(query *gorm.DB) (map[models.TripClaimStatus]int64, error) {
	var rows []struct {
		Status models.TripClaimStatus
		Count  int64
	}
	if err := query.Select("trip_claims.status AS status, COUNT(*) AS count").
		Group("trip_claims.status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[models.TripClaimStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func buildSections(act Activity) []Section {
	return []Section{
		{Title: "New Trip Tickets", Rows: []Row{{"Total new trips", act.NewTickets}}},
		{Title: "Updated Trip Tickets", Rows: breakdown("Total updated trips", act.UpdatedTickets)},
		{Title: "New Claim Offers Received", Rows: []Row{{"Total new offers", act.NewOffers}}},
		{Title: "Updated Claim Offers Received", Rows: breakdown("Total updated offers", act.UpdatedOffers)},
		{Title: "New Claim Requests Submitted", Rows: []Row{{"Total new requests", act.NewRequests}}},
		{Title: "Updated Claim Requests Submitted", Rows: breakdown("Total updated requests", act.UpdatedRequests)},
	}
}

// breakdown puts the total first, then one row per status in name order.
func breakdown[K ~string](totalLabel string, counts map[K]int64) []Row {
	var total int64
	keys := make([]string, 0, len(counts))
	for k, n := range counts {
		total += n
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	rows := []Row{{totalLabel, total}}
	for _, k := range keys {
		rows = append(rows, Row{capitalize(k), counts[K(k)]})
	}
	return rows
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (b *Builder) ProviderName(ctx context.Context, providerID uint) (string, error) {
	var provider models.Provider
	if err := b.db.WithContext(ctx).Select("id", "name").First(&provider, providerID).Error; err != nil {
		return "", fmt.Errorf("load provider: %w", err)
	}
	return provider.Name, nil
}
