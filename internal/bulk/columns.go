package bulk

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chachabrian/clearinghouse-backend/internal/clearinghouse"
	"github.com/chachabrian/clearinghouse-backend/internal/models"
)

// listSeparator joins list cells; identifier pairs are written key=value.
const listSeparator = ";"

// column maps one CSV header to a ticket field. Columns without set are
// exported but ignored on import.
type column struct {
	name string
	get  func(v *clearinghouse.TicketView) string
	set  func(p *clearinghouse.TicketPatch, cell string) error
}

var columns = []column{
	{name: "id", get: func(v *clearinghouse.TicketView) string { return strconv.FormatUint(uint64(v.ID), 10) }},
	{name: "origin_provider_id", get: func(v *clearinghouse.TicketView) string {
		return strconv.FormatUint(uint64(v.OriginProviderID), 10)
	}},
	{name: "status", get: func(v *clearinghouse.TicketView) string { return string(v.Status) }},
	stringColumn("origin_customer_id", func(t *models.TripTicket) *string { return &t.OriginCustomerID }, func(p *clearinghouse.TicketPatch) **string { return &p.OriginCustomerID }),
	stringColumn("origin_trip_id", func(t *models.TripTicket) *string { return &t.OriginTripID }, func(p *clearinghouse.TicketPatch) **string { return &p.OriginTripID }),
	{
		name: "customer_information_withheld",
		get:  func(v *clearinghouse.TicketView) string { return strconv.FormatBool(v.CustomerInformationWithheld) },
		set: func(p *clearinghouse.TicketPatch, cell string) error {
			b, err := parseBool(cell)
			if err != nil {
				return fmt.Errorf("customer_information_withheld %w", err)
			}
			if b != nil {
				p.CustomerInformationWithheld = b
			}
			return nil
		},
	},
	stringColumn("customer_first_name", func(t *models.TripTicket) *string { return &t.CustomerFirstName }, func(p *clearinghouse.TicketPatch) **string { return &p.CustomerFirstName }),
	stringColumn("customer_middle_name", func(t *models.TripTicket) *string { return &t.CustomerMiddleName }, func(p *clearinghouse.TicketPatch) **string { return &p.CustomerMiddleName }),
	stringColumn("customer_last_name", func(t *models.TripTicket) *string { return &t.CustomerLastName }, func(p *clearinghouse.TicketPatch) **string { return &p.CustomerLastName }),
	{
		name: "customer_dob",
		get:  func(v *clearinghouse.TicketView) string { return formatDate(v.CustomerDOB) },
		set: func(p *clearinghouse.TicketPatch, cell string) error {
			if err := setTime(&p.CustomerDOB, cell); err != nil {
				return fmt.Errorf("customer_dob %w", err)
			}
			return nil
		},
	},
	stringColumn("customer_primary_phone", func(t *models.TripTicket) *string { return &t.CustomerPrimaryPhone }, func(p *clearinghouse.TicketPatch) **string { return &p.CustomerPrimaryPhone }),
	stringColumn("customer_emergency_phone", func(t *models.TripTicket) *string { return &t.CustomerEmergencyPhone }, func(p *clearinghouse.TicketPatch) **string { return &p.CustomerEmergencyPhone }),
	stringColumn("customer_impairment_description", func(t *models.TripTicket) *string { return &t.CustomerImpairmentDescription }, func(p *clearinghouse.TicketPatch) **string { return &p.CustomerImpairmentDescription }),
	intColumn("customer_seats_required", func(t *models.TripTicket) int { return t.CustomerSeatsRequired }, func(p *clearinghouse.TicketPatch) **int { return &p.CustomerSeatsRequired }),
	stringColumn("customer_notes", func(t *models.TripTicket) *string { return &t.CustomerNotes }, func(p *clearinghouse.TicketPatch) **string { return &p.CustomerNotes }),
	{
		name: "customer_identifiers",
		get:  func(v *clearinghouse.TicketView) string { return formatMap(v.CustomerIdentifiers) },
		set: func(p *clearinghouse.TicketPatch, cell string) error {
			m, err := parseMap(cell)
			if err != nil {
				return err
			}
			p.CustomerIdentifiers = m
			return nil
		},
	},
	listColumn("customer_mobility_impairments", func(t *models.TripTicket) models.StringList { return t.CustomerMobilityImpairments }, func(p *clearinghouse.TicketPatch) *[]string { return &p.CustomerMobilityImpairments }),
	listColumn("customer_eligibility_factors", func(t *models.TripTicket) models.StringList { return t.CustomerEligibilityFactors }, func(p *clearinghouse.TicketPatch) *[]string { return &p.CustomerEligibilityFactors }),
	listColumn("customer_assistive_devices", func(t *models.TripTicket) models.StringList { return t.CustomerAssistiveDevices }, func(p *clearinghouse.TicketPatch) *[]string { return &p.CustomerAssistiveDevices }),
	listColumn("customer_service_animals", func(t *models.TripTicket) models.StringList { return t.CustomerServiceAnimals }, func(p *clearinghouse.TicketPatch) *[]string { return &p.CustomerServiceAnimals }),
	listColumn("guest_or_attendant_service_animals", func(t *models.TripTicket) models.StringList { return t.GuestOrAttendantServiceAnimals }, func(p *clearinghouse.TicketPatch) *[]string { return &p.GuestOrAttendantServiceAnimals }),
	listColumn("guest_or_attendant_assistive_devices", func(t *models.TripTicket) models.StringList { return t.GuestOrAttendantAssistiveDevices }, func(p *clearinghouse.TicketPatch) *[]string { return &p.GuestOrAttendantAssistiveDevices }),
	listColumn("trip_funders", func(t *models.TripTicket) models.StringList { return t.TripFunders }, func(p *clearinghouse.TicketPatch) *[]string { return &p.TripFunders }),
}

func init() {
	columns = append(columns, addressColumns("customer", func(t *models.TripTicket) *models.Address { return &t.CustomerAddress }, func(p *clearinghouse.TicketPatch) **clearinghouse.AddressPatch { return &p.CustomerAddress })...)
	columns = append(columns, addressColumns("pick_up", func(t *models.TripTicket) *models.Address { return &t.PickUpAddress }, func(p *clearinghouse.TicketPatch) **clearinghouse.AddressPatch { return &p.PickUpLocation })...)
	columns = append(columns, addressColumns("drop_off", func(t *models.TripTicket) *models.Address { return &t.DropOffAddress }, func(p *clearinghouse.TicketPatch) **clearinghouse.AddressPatch { return &p.DropOffLocation })...)
	columns = append(columns,
		timeColumn("requested_pickup_time", func(t *models.TripTicket) *time.Time { return t.RequestedPickupTime }, func(p *clearinghouse.TicketPatch) **time.Time { return &p.RequestedPickupTime }),
		timeColumn("requested_drop_off_time", func(t *models.TripTicket) *time.Time { return t.RequestedDropOffTime }, func(p *clearinghouse.TicketPatch) **time.Time { return &p.RequestedDropOffTime }),
		timeColumn("appointment_time", func(t *models.TripTicket) *time.Time { return t.AppointmentTime }, func(p *clearinghouse.TicketPatch) **time.Time { return &p.AppointmentTime }),
		column{
			name: "scheduling_priority",
			get:  func(v *clearinghouse.TicketView) string { return string(v.SchedulingPriority) },
			set: func(p *clearinghouse.TicketPatch, cell string) error {
				if cell == "" {
					return nil
				}
				priority := models.SchedulingPriority(strings.ToLower(cell))
				p.SchedulingPriority = &priority
				return nil
			},
		},
		intColumn("allowed_time_variance", func(t *models.TripTicket) int { return t.AllowedTimeVariance }, func(p *clearinghouse.TicketPatch) **int { return &p.AllowedTimeVariance }),
		intColumn("num_attendants", func(t *models.TripTicket) int { return t.NumAttendants }, func(p *clearinghouse.TicketPatch) **int { return &p.NumAttendants }),
		intColumn("num_guests", func(t *models.TripTicket) int { return t.NumGuests }, func(p *clearinghouse.TicketPatch) **int { return &p.NumGuests }),
		stringColumn("trip_purpose_description", func(t *models.TripTicket) *string { return &t.TripPurposeDescription }, func(p *clearinghouse.TicketPatch) **string { return &p.TripPurposeDescription }),
		stringColumn("trip_notes", func(t *models.TripTicket) *string { return &t.TripNotes }, func(p *clearinghouse.TicketPatch) **string { return &p.TripNotes }),
		column{name: "rescinded", get: func(v *clearinghouse.TicketView) string { return strconv.FormatBool(v.Rescinded) }},
		column{name: "created_at", get: func(v *clearinghouse.TicketView) string { return formatTime(&v.CreatedAt) }},
		column{name: "updated_at", get: func(v *clearinghouse.TicketView) string { return formatTime(&v.UpdatedAt) }},
	)
}

// header lists every column name in export order.
func header() []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.name
	}
	return names
}

func columnByName(name string) (column, bool) {
	for _, c := range columns {
		if c.name == name {
			return c, true
		}
	}
	return column{}, false
}

func stringColumn(name string, field func(*models.TripTicket) *string, patch func(*clearinghouse.TicketPatch) **string) column {
	return column{
		name: name,
		get:  func(v *clearinghouse.TicketView) string { return *field(&v.TripTicket) },
		set: func(p *clearinghouse.TicketPatch, cell string) error {
			value := cell
			*patch(p) = &value
			return nil
		},
	}
}

func intColumn(name string, field func(*models.TripTicket) int, patch func(*clearinghouse.TicketPatch) **int) column {
	return column{
		name: name,
		get:  func(v *clearinghouse.TicketView) string { return strconv.Itoa(field(&v.TripTicket)) },
		set: func(p *clearinghouse.TicketPatch, cell string) error {
			if cell == "" {
				return nil
			}
			n, err := strconv.Atoi(cell)
			if err != nil {
				return fmt.Errorf("%s must be an integer", name)
			}
			*patch(p) = &n
			return nil
		},
	}
}

func timeColumn(name string, field func(*models.TripTicket) *time.Time, patch func(*clearinghouse.TicketPatch) **time.Time) column {
	return column{
		name: name,
		get:  func(v *clearinghouse.TicketView) string { return formatTime(field(&v.TripTicket)) },
		set: func(p *clearinghouse.TicketPatch, cell string) error {
			if err := setTime(patch(p), cell); err != nil {
				return fmt.Errorf("%s %w", name, err)
			}
			return nil
		},
	}
}

func listColumn(name string, field func(*models.TripTicket) models.StringList, patch func(*clearinghouse.TicketPatch) *[]string) column {
	return column{
		name: name,
		get:  func(v *clearinghouse.TicketView) string { return strings.Join(field(&v.TripTicket), listSeparator) },
		set: func(p *clearinghouse.TicketPatch, cell string) error {
			*patch(p) = splitList(cell)
			return nil
		},
	}
}

func addressColumns(prefix string, field func(*models.TripTicket) *models.Address, patch func(*clearinghouse.TicketPatch) **clearinghouse.AddressPatch) []column {
	part := func(suffix string, get func(*models.Address) string, set func(*clearinghouse.AddressPatch, string)) column {
		return column{
			name: prefix + "_" + suffix,
			get:  func(v *clearinghouse.TicketView) string { return get(field(&v.TripTicket)) },
			set: func(p *clearinghouse.TicketPatch, cell string) error {
				addr := patch(p)
				if *addr == nil {
					*addr = &clearinghouse.AddressPatch{}
				}
				set(*addr, cell)
				return nil
			},
		}
	}
	return []column{
		part("address_1", func(a *models.Address) string { return a.Line1 }, func(a *clearinghouse.AddressPatch, s string) { a.Line1 = s }),
		part("address_2", func(a *models.Address) string { return a.Line2 }, func(a *clearinghouse.AddressPatch, s string) { a.Line2 = s }),
		part("city", func(a *models.Address) string { return a.City }, func(a *clearinghouse.AddressPatch, s string) { a.City = s }),
		part("state", func(a *models.Address) string { return a.State }, func(a *clearinghouse.AddressPatch, s string) { a.State = s }),
		part("zip", func(a *models.Address) string { return a.Zip }, func(a *clearinghouse.AddressPatch, s string) { a.Zip = s }),
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func setTime(dst **time.Time, cell string) error {
	if cell == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, cell); err == nil {
			*dst = &t
			return nil
		}
	}
	return fmt.Errorf("must be a date or RFC 3339 timestamp")
}

func parseBool(cell string) (*bool, error) {
	if cell == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(strings.ToLower(cell))
	if err != nil {
		return nil, fmt.Errorf("must be true or false, got %q", cell)
	}
	return &b, nil
}

func splitList(cell string) []string {
	out := []string{}
	for _, item := range strings.Split(cell, listSeparator) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func formatMap(m models.StringMap) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + m[k]
	}
	return strings.Join(pairs, listSeparator)
}

func parseMap(cell string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range splitList(cell) {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("customer_identifiers entry %q must be key=value", pair)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}
