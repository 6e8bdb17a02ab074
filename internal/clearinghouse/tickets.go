package clearinghouse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chachabrian/clearinghouse-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AddressPatch replaces an address when present.
type AddressPatch struct {
	Line1 string `json:"address_1"`
	Line2 string `json:"address_2"`
	City  string `json:"city"`
	State string `json:"state"`
	Zip   string `json:"zip"`
}

func (a *AddressPatch) address() models.Address {
	return models.Address{Line1: a.Line1, Line2: a.Line2, City: a.City, State: a.State, Zip: a.Zip}
}

type TripResultPatch struct {
	Outcome           models.TripResultOutcome `json:"outcome"`
	ActualPickupTime  *time.Time               `json:"actual_pick_up_time"`
	ActualDropOffTime *time.Time               `json:"actual_drop_off_time"`
	Fare              *float64                 `json:"fare"`
	MilesTravelled    *float64                 `json:"miles_travelled"`
	Notes             string                   `json:"notes"`
}

// TicketPatch lists the editable ticket fields. Nil fields are left alone.
type TicketPatch struct {
	OriginCustomerID              *string           `json:"origin_customer_id"`
	OriginTripID                  *string           `json:"origin_trip_id"`
	CustomerInformationWithheld   *bool             `json:"customer_information_withheld"`
	CustomerFirstName             *string           `json:"customer_first_name"`
	CustomerMiddleName            *string           `json:"customer_middle_name"`
	CustomerLastName              *string           `json:"customer_last_name"`
	CustomerDOB                   *time.Time        `json:"customer_dob"`
	CustomerAddress               *AddressPatch     `json:"customer_address"`
	CustomerPrimaryPhone          *string           `json:"customer_primary_phone"`
	CustomerEmergencyPhone        *string           `json:"customer_emergency_phone"`
	CustomerImpairmentDescription *string           `json:"customer_impairment_description"`
	CustomerSeatsRequired         *int              `json:"customer_seats_required"`
	CustomerNotes                 *string           `json:"customer_notes"`
	CustomerIdentifiers           map[string]string `json:"customer_identifiers"`

	CustomerMobilityImpairments      []string `json:"customer_mobility_impairments"`
	CustomerEligibilityFactors       []string `json:"customer_eligibility_factors"`
	CustomerAssistiveDevices         []string `json:"customer_assistive_devices"`
	CustomerServiceAnimals           []string `json:"customer_service_animals"`
	GuestOrAttendantServiceAnimals   []string `json:"guest_or_attendant_service_animals"`
	GuestOrAttendantAssistiveDevices []string `json:"guest_or_attendant_assistive_devices"`
	TripFunders                      []string `json:"trip_funders"`

	PickUpLocation         *AddressPatch              `json:"pick_up_location"`
	DropOffLocation        *AddressPatch              `json:"drop_off_location"`
	RequestedPickupTime    *time.Time                 `json:"requested_pickup_time"`
	RequestedDropOffTime   *time.Time                 `json:"requested_drop_off_time"`
	AppointmentTime        *time.Time                 `json:"appointment_time"`
	SchedulingPriority     *models.SchedulingPriority `json:"scheduling_priority"`
	AllowedTimeVariance    *int                       `json:"allowed_time_variance"`
	NumAttendants          *int                       `json:"num_attendants"`
	NumGuests              *int                       `json:"num_guests"`
	TripPurposeDescription *string                    `json:"trip_purpose_description"`
	TripNotes              *string                    `json:"trip_notes"`

	TripResult *TripResultPatch `json:"trip_result"`
}

// Apply copies the present fields onto t. The trip result is handled
// separately because it lives in its own table.
func (p *TicketPatch) Apply(t *models.TripTicket) {
	setString(&t.OriginCustomerID, p.OriginCustomerID)
	setString(&t.OriginTripID, p.OriginTripID)
	if p.CustomerInformationWithheld != nil {
		t.CustomerInformationWithheld = *p.CustomerInformationWithheld
	}
	setString(&t.CustomerFirstName, p.CustomerFirstName)
	setString(&t.CustomerMiddleName, p.CustomerMiddleName)
	setString(&t.CustomerLastName, p.CustomerLastName)
	if p.CustomerDOB != nil {
		t.CustomerDOB = p.CustomerDOB
	}
	if p.CustomerAddress != nil {
		t.CustomerAddress = p.CustomerAddress.address()
	}
	setString(&t.CustomerPrimaryPhone, p.CustomerPrimaryPhone)
	setString(&t.CustomerEmergencyPhone, p.CustomerEmergencyPhone)
	setString(&t.CustomerImpairmentDescription, p.CustomerImpairmentDescription)
	setInt(&t.CustomerSeatsRequired, p.CustomerSeatsRequired)
	setString(&t.CustomerNotes, p.CustomerNotes)
	if p.CustomerIdentifiers != nil {
		t.CustomerIdentifiers = models.StringMap(p.CustomerIdentifiers)
	}

	setList(&t.CustomerMobilityImpairments, p.CustomerMobilityImpairments)
	setList(&t.CustomerEligibilityFactors, p.CustomerEligibilityFactors)
	setList(&t.CustomerAssistiveDevices, p.CustomerAssistiveDevices)
	setList(&t.CustomerServiceAnimals, p.CustomerServiceAnimals)
	setList(&t.GuestOrAttendantServiceAnimals, p.GuestOrAttendantServiceAnimals)
	setList(&t.GuestOrAttendantAssistiveDevices, p.GuestOrAttendantAssistiveDevices)
	setList(&t.TripFunders, p.TripFunders)

	if p.PickUpLocation != nil {
		t.PickUpAddress = p.PickUpLocation.address()
	}
	if p.DropOffLocation != nil {
		t.DropOffAddress = p.DropOffLocation.address()
	}
	if p.RequestedPickupTime != nil {
		t.RequestedPickupTime = p.RequestedPickupTime
	}
	if p.RequestedDropOffTime != nil {
		t.RequestedDropOffTime = p.RequestedDropOffTime
	}
	if p.AppointmentTime != nil {
		t.AppointmentTime = p.AppointmentTime
	}
	if p.SchedulingPriority != nil {
		t.SchedulingPriority = *p.SchedulingPriority
	}
	setInt(&t.AllowedTimeVariance, p.AllowedTimeVariance)
	setInt(&t.NumAttendants, p.NumAttendants)
	setInt(&t.NumGuests, p.NumGuests)
	setString(&t.TripPurposeDescription, p.TripPurposeDescription)
	setString(&t.TripNotes, p.TripNotes)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setList(dst *models.StringList, src []string) {
	if src == nil {
		return
	}
	out := make(models.StringList, 0, len(src))
	for _, item := range src {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

// ValidateTicket checks a ticket after a patch was applied to it.
func ValidateTicket(t *models.TripTicket) *ValidationError {
	v := &ValidationError{}
	if t.CustomerFirstName == "" {
		v.Add("customer_first_name", "can't be blank")
	}
	if t.CustomerLastName == "" {
		v.Add("customer_last_name", "can't be blank")
	}
	if strings.TrimSpace(t.PickUpAddress.Line1) == "" {
		v.Add("pick_up_location", "address_1 can't be blank")
	}
	if strings.TrimSpace(t.DropOffAddress.Line1) == "" {
		v.Add("drop_off_location", "address_1 can't be blank")
	}
	if t.RequestedPickupTime == nil && t.RequestedDropOffTime == nil {
		v.Add("requested_pickup_time", "or requested_drop_off_time is required")
	}
	if t.RequestedPickupTime != nil && t.RequestedDropOffTime != nil && t.RequestedDropOffTime.Before(*t.RequestedPickupTime) {
		v.Add("requested_drop_off_time", "must not be before requested_pickup_time")
	}
	switch t.SchedulingPriority {
	case models.SchedulingPriorityPickup, models.SchedulingPriorityDropoff:
	default:
		v.Add("scheduling_priority", "must be pickup or dropoff")
	}
	if t.CustomerSeatsRequired < 0 {
		v.Add("customer_seats_required", "must be greater than or equal to 0")
	}
	if t.NumAttendants < 0 {
		v.Add("num_attendants", "must be greater than or equal to 0")
	}
	if t.NumGuests < 0 {
		v.Add("num_guests", "must be greater than or equal to 0")
	}
	if t.AllowedTimeVariance < 0 {
		v.Add("allowed_time_variance", "must be greater than or equal to 0")
	}
	if t.CustomerDOB != nil && t.CustomerDOB.After(time.Now()) {
		v.Add("customer_dob", "must be in the past")
	}
	return v
}

func validateTripResult(t *models.TripTicket, p *TripResultPatch, v *ValidationError) {
	if p == nil {
		return
	}
	if t.ApprovedClaimID == nil {
		v.Add("trip_result", "requires an approved claim")
	}
	if !models.ValidTripResultOutcome(p.Outcome) {
		v.Add("trip_result.outcome", "is not included in the list")
	}
	if p.Fare != nil && *p.Fare < 0 {
		v.Add("trip_result.fare", "must be greater than or equal to 0")
	}
	if p.MilesTravelled != nil && *p.MilesTravelled < 0 {
		v.Add("trip_result.miles_travelled", "must be greater than or equal to 0")
	}
}

type UpdateKind int

const (
	FieldUpdate UpdateKind = iota
	FieldUpdateWithRescind
)

// TicketUpdate is an edit request, optionally also rescinding the ticket.
type TicketUpdate struct {
	Kind  UpdateKind
	Patch TicketPatch
}

// ResolveUpdateKind folds the two ways a client can ask for rescission,
// status "rescinded" or rescinded=true, into one kind.
func ResolveUpdateKind(status string, rescinded *bool) (UpdateKind, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "":
	case string(StatusRescinded):
		return FieldUpdateWithRescind, nil
	default:
		return FieldUpdate, invalidField("status", "only rescinded may be requested")
	}
	if rescinded != nil && *rescinded {
		return FieldUpdateWithRescind, nil
	}
	return FieldUpdate, nil
}

func (s *Service) CreateTicket(ctx context.Context, caller Caller, patch TicketPatch) (*TicketView, error) {
	ticket := models.TripTicket{
		OriginProviderID:      caller.ProviderID,
		CustomerSeatsRequired: 1,
		SchedulingPriority:    models.SchedulingPriorityPickup,
		CustomerIdentifiers:   models.StringMap{},
	}
	patch.Apply(&ticket)
	v := ValidateTicket(&ticket)
	if patch.TripResult != nil {
		v.Add("trip_result", "requires an approved claim")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&ticket).Error; err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	view := newTicketView(NewScope(caller.ProviderID, nil), &ticket)
	return &view, nil
}

func (s *Service) GetTicket(ctx context.Context, caller Caller, ticketID uint) (*TicketView, error) {
	scope, err := s.resolver.ScopeFor(ctx, caller)
	if err != nil {
		return nil, err
	}
	ticket, err := loadTicket(s.db.WithContext(ctx), ticketID)
	if err != nil {
		return nil, err
	}
	if !scope.CanView(ticket) {
		return nil, ErrUnauthorized
	}
	view := newTicketView(scope, ticket)
	return &view, nil
}

// UpdateTicket validates every field before touching the row; a request that
// fails validation never rescinds.
func (s *Service) UpdateTicket(ctx context.Context, caller Caller, ticketID uint, update TicketUpdate) (*TicketView, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ticket, err := lockTicket(tx, ticketID)
		if err != nil {
			return err
		}
		if !NewScope(caller.ProviderID, nil).CanEdit(ticket) {
			return ErrUnauthorized
		}

		edited := *ticket
		update.Patch.Apply(&edited)
		v := ValidateTicket(&edited)
		validateTripResult(&edited, update.Patch.TripResult, v)
		if err := v.OrNil(); err != nil {
			return err
		}

		if update.Patch.TripResult != nil {
			if err := saveTripResult(tx, &edited, update.Patch.TripResult); err != nil {
				return err
			}
		}
		if update.Kind == FieldUpdateWithRescind {
			edited.Rescinded = true
			edited.ApprovedClaimID = nil
		}
		if err := tx.Omit(clause.Associations).Save(&edited).Error; err != nil {
			return fmt.Errorf("save ticket: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetTicket(ctx, caller, ticketID)
}

// RescindTicket withdraws a ticket. Existing claims keep their status.
func (s *Service) RescindTicket(ctx context.Context, caller Caller, ticketID uint) (*TicketView, error) {
	return s.UpdateTicket(ctx, caller, ticketID, TicketUpdate{Kind: FieldUpdateWithRescind})
}

func saveTripResult(tx *gorm.DB, t *models.TripTicket, p *TripResultPatch) error {
	var result models.TripResult
	err := tx.Where("trip_ticket_id = ?", t.ID).First(&result).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("load trip result: %w", err)
	}
	result.TripTicketID = t.ID
	result.TripClaimID = *t.ApprovedClaimID
	result.Outcome = p.Outcome
	result.ActualPickupTime = p.ActualPickupTime
	result.ActualDropOffTime = p.ActualDropOffTime
	result.Fare = p.Fare
	result.MilesTravelled = p.MilesTravelled
	result.Notes = strings.TrimSpace(p.Notes)
	if err := tx.Save(&result).Error; err != nil {
		return fmt.Errorf("save trip result: %w", err)
	}
	return nil
}
