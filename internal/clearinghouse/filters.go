package clearinghouse

import (
	"strings"
	"time"

	"github.com/chachabrian/clearinghouse-backend/internal/models"
	"gorm.io/gorm"
)

// Filters narrows a ticket listing. Every field is optional and all present
// fields must match.
type Filters struct {
	CustomerName           string
	CustomerAddressOrPhone string
	PickUpAddress          string
	DropOffAddress         string
	OriginatingProviderIDs []uint
	ClaimingProviderIDs    []uint
	ClaimStatuses          []TicketStatus
	SeatsRequiredMin       *int
	SeatsRequiredMax       *int
	SchedulingPriority     models.SchedulingPriority
	TripTimeStart          *time.Time
	TripTimeEnd            *time.Time
	CustomerIdentifiers    string
	Limit                  int
}

// Normalize trims text filters and swaps inverted ranges.
func (f Filters) Normalize() Filters {
	f.CustomerName = strings.TrimSpace(f.CustomerName)
	f.CustomerAddressOrPhone = strings.TrimSpace(f.CustomerAddressOrPhone)
	f.PickUpAddress = strings.TrimSpace(f.PickUpAddress)
	f.DropOffAddress = strings.TrimSpace(f.DropOffAddress)
	f.CustomerIdentifiers = strings.TrimSpace(f.CustomerIdentifiers)
	f.SchedulingPriority = models.SchedulingPriority(strings.ToLower(strings.TrimSpace(string(f.SchedulingPriority))))
	if f.SeatsRequiredMin != nil && f.SeatsRequiredMax != nil && *f.SeatsRequiredMin > *f.SeatsRequiredMax {
		f.SeatsRequiredMin, f.SeatsRequiredMax = f.SeatsRequiredMax, f.SeatsRequiredMin
	}
	if f.TripTimeStart != nil && f.TripTimeEnd != nil && f.TripTimeStart.After(*f.TripTimeEnd) {
		f.TripTimeStart, f.TripTimeEnd = f.TripTimeEnd, f.TripTimeStart
	}
	return f
}

func (f Filters) Validate() error {
	v := &ValidationError{}
	switch f.SchedulingPriority {
	case "", models.SchedulingPriorityPickup, models.SchedulingPriorityDropoff:
	default:
		v.Add("scheduling_priority", "must be pickup or dropoff")
	}
	for _, status := range f.ClaimStatuses {
		if !ValidTicketStatus(status) {
			v.Add("claim_status", "is not a recognized status")
		}
	}
	if f.Limit < 0 {
		v.Add("limit", "must be greater than or equal to 0")
	}
	return v.OrNil()
}

type condition struct {
	sql  string
	args []interface{}
}

const (
	approvedClaimExists = "EXISTS (SELECT 1 FROM trip_claims fc WHERE fc.trip_ticket_id = trip_tickets.id AND fc.deleted_at IS NULL AND fc.status = 'approved')"
	pendingClaimExists  = "EXISTS (SELECT 1 FROM trip_claims fc WHERE fc.trip_ticket_id = trip_tickets.id AND fc.deleted_at IS NULL AND fc.status = 'pending')"
	declinedClaimExists = "EXISTS (SELECT 1 FROM trip_claims fc WHERE fc.trip_ticket_id = trip_tickets.id AND fc.deleted_at IS NULL AND fc.status = 'declined')"

	notRescinded   = "trip_tickets.rescinded = FALSE"
	hasApproval    = "(trip_tickets.approved_claim_id IS NOT NULL OR " + approvedClaimExists + ")"
	hasNoApproval  = "trip_tickets.approved_claim_id IS NULL AND NOT " + approvedClaimExists
	unclaimedMatch = notRescinded + " AND " + hasNoApproval + " AND NOT " + pendingClaimExists
)

// statusConditions mirrors StatusLabel in SQL. The declined bucket is the
// part of unclaimed where at least one claim was declined.
var statusConditions = map[TicketStatus]string{
	StatusRescinded: "trip_tickets.rescinded = TRUE",
	StatusApproved:  notRescinded + " AND " + hasApproval,
	StatusPending:   notRescinded + " AND " + hasNoApproval + " AND " + pendingClaimExists,
	StatusUnclaimed: unclaimedMatch,
	StatusDeclined:  unclaimedMatch + " AND " + declinedClaimExists,
}

// identifierListColumns hold jsonb arrays of free-form tags.
var identifierListColumns = []string{
	"customer_mobility_impairments",
	"customer_eligibility_factors",
	"customer_assistive_devices",
	"customer_service_animals",
	"guest_or_attendant_service_animals",
	"guest_or_attendant_assistive_devices",
	"trip_funders",
}

func (f Filters) conditions() []condition {
	var out []condition

	if f.CustomerName != "" {
		out = append(out, anyColumnLike(f.CustomerName,
			"trip_tickets.customer_first_name",
			"trip_tickets.customer_middle_name",
			"trip_tickets.customer_last_name",
			"concat_ws(' ', trip_tickets.customer_first_name, trip_tickets.customer_last_name)",
			"concat_ws(' ', trip_tickets.customer_first_name, trip_tickets.customer_middle_name, trip_tickets.customer_last_name)",
		))
	}
	if f.CustomerAddressOrPhone != "" {
		out = append(out, anyColumnLike(f.CustomerAddressOrPhone,
			"trip_tickets.customer_address_1",
			"trip_tickets.customer_address_2",
			"trip_tickets.customer_city",
			"trip_tickets.customer_primary_phone",
			"trip_tickets.customer_emergency_phone",
		))
	}
	if f.PickUpAddress != "" {
		out = append(out, anyColumnLike(f.PickUpAddress,
			"trip_tickets.pick_up_address_1",
			"trip_tickets.pick_up_address_2",
			"trip_tickets.pick_up_city",
		))
	}
	if f.DropOffAddress != "" {
		out = append(out, anyColumnLike(f.DropOffAddress,
			"trip_tickets.drop_off_address_1",
			"trip_tickets.drop_off_address_2",
			"trip_tickets.drop_off_city",
		))
	}
	if len(f.OriginatingProviderIDs) > 0 {
		out = append(out, condition{"trip_tickets.origin_provider_id IN ?", []interface{}{f.OriginatingProviderIDs}})
	}
	if len(f.ClaimingProviderIDs) > 0 {
		out = append(out, condition{
			"EXISTS (SELECT 1 FROM trip_claims cc WHERE cc.trip_ticket_id = trip_tickets.id AND cc.deleted_at IS NULL AND cc.claimant_provider_id IN ?)",
			[]interface{}{f.ClaimingProviderIDs},
		})
	}
	if len(f.ClaimStatuses) > 0 {
		parts := make([]string, 0, len(f.ClaimStatuses))
		seen := map[TicketStatus]bool{}
		for _, status := range f.ClaimStatuses {
			if sql, ok := statusConditions[status]; ok && !seen[status] {
				seen[status] = true
				parts = append(parts, "("+sql+")")
			}
		}
		if len(parts) > 0 {
			out = append(out, condition{"(" + strings.Join(parts, " OR ") + ")", nil})
		}
	}

	const seats = "(trip_tickets.customer_seats_required + trip_tickets.num_attendants + trip_tickets.num_guests)"
	switch {
	case f.SeatsRequiredMin != nil && f.SeatsRequiredMax != nil:
		out = append(out, condition{seats + " BETWEEN ? AND ?", []interface{}{*f.SeatsRequiredMin, *f.SeatsRequiredMax}})
	case f.SeatsRequiredMin != nil:
		out = append(out, condition{seats + " >= ?", []interface{}{*f.SeatsRequiredMin}})
	case f.SeatsRequiredMax != nil:
		out = append(out, condition{seats + " <= ?", []interface{}{*f.SeatsRequiredMax}})
	}

	if f.SchedulingPriority != "" {
		out = append(out, condition{"trip_tickets.scheduling_priority = ?", []interface{}{f.SchedulingPriority}})
	}

	switch {
	case f.TripTimeStart != nil && f.TripTimeEnd != nil:
		out = append(out, condition{
			"(trip_tickets.requested_pickup_time BETWEEN ? AND ? OR trip_tickets.requested_drop_off_time BETWEEN ? AND ?)",
			[]interface{}{*f.TripTimeStart, *f.TripTimeEnd, *f.TripTimeStart, *f.TripTimeEnd},
		})
	case f.TripTimeStart != nil:
		out = append(out, condition{
			"(trip_tickets.requested_pickup_time >= ? OR trip_tickets.requested_drop_off_time >= ?)",
			[]interface{}{*f.TripTimeStart, *f.TripTimeStart},
		})
	case f.TripTimeEnd != nil:
		out = append(out, condition{
			"(trip_tickets.requested_pickup_time <= ? OR trip_tickets.requested_drop_off_time <= ?)",
			[]interface{}{*f.TripTimeEnd, *f.TripTimeEnd},
		})
	}

	if f.CustomerIdentifiers != "" {
		out = append(out, identifierCondition(f.CustomerIdentifiers))
	}
	return out
}

// Apply is a gorm scope adding every present filter.
func (f Filters) Apply(db *gorm.DB) *gorm.DB {
	for _, c := range f.conditions() {
		db = db.Where(c.sql, c.args...)
	}
	return db
}

func anyColumnLike(value string, columns ...string) condition {
	pattern := likePattern(value)
	parts := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, column := range columns {
		parts[i] = column + " ILIKE ?"
		args[i] = pattern
	}
	return condition{"(" + strings.Join(parts, " OR ") + ")", args}
}

// identifierCondition matches single keys or values of customer_identifiers
// and single elements of the tag lists, never the serialized JSON.
func identifierCondition(value string) condition {
	pattern := likePattern(value)
	parts := []string{
		"EXISTS (SELECT 1 FROM jsonb_each_text(" + jsonbOr("trip_tickets.customer_identifiers", "object") +
			") AS ci(key, value) WHERE ci.key ILIKE ? OR ci.value ILIKE ?)",
	}
	args := []interface{}{pattern, pattern}
	for _, column := range identifierListColumns {
		parts = append(parts, "EXISTS (SELECT 1 FROM jsonb_array_elements_text("+
			jsonbOr("trip_tickets."+column, "array")+") AS el(value) WHERE el.value ILIKE ?)")
		args = append(args, pattern)
	}
	return condition{"(" + strings.Join(parts, " OR ") + ")", args}
}

// jsonbOr yields column when it holds the given jsonb type and an empty one
// otherwise, so a stray scalar never fails the set-returning functions.
func jsonbOr(column, kind string) string {
	empty := "'[]'::jsonb"
	if kind == "object" {
		empty = "'{}'::jsonb"
	}
	return "CASE WHEN jsonb_typeof(" + column + ") = '" + kind + "' THEN " + column + " ELSE " + empty + " END"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(value string) string {
	return "%" + likeEscaper.Replace(value) + "%"
}
