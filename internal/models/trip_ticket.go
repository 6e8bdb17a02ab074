package models

import (
	"time"

	"gorm.io/gorm"
)

type SchedulingPriority string

const (
	SchedulingPriorityPickup  SchedulingPriority = "pickup"
	SchedulingPriorityDropoff SchedulingPriority = "dropoff"
)

// TripTicket is a transportation request published by its originating
// provider.
type TripTicket struct {
	gorm.Model
	OriginProviderID uint      `json:"origin_provider_id" gorm:"not null;index"`
	OriginProvider   *Provider `json:"origin_provider,omitempty" gorm:"foreignKey:OriginProviderID"`
	OriginCustomerID string    `json:"origin_customer_id"`
	OriginTripID     string    `json:"origin_trip_id"`

	CustomerInformationWithheld   bool       `json:"customer_information_withheld"`
	CustomerFirstName             string     `json:"customer_first_name"`
	CustomerMiddleName            string     `json:"customer_middle_name"`
	CustomerLastName              string     `json:"customer_last_name"`
	CustomerDOB                   *time.Time `json:"customer_dob" gorm:"column:customer_dob;type:date"`
	CustomerAddress               Address    `json:"customer_address" gorm:"embedded;embeddedPrefix:customer_"`
	CustomerPrimaryPhone          string     `json:"customer_primary_phone"`
	CustomerEmergencyPhone        string     `json:"customer_emergency_phone"`
	CustomerImpairmentDescription string     `json:"customer_impairment_description"`
	CustomerSeatsRequired         int        `json:"customer_seats_required" gorm:"not null;default:1"`
	CustomerNotes                 string     `json:"customer_notes"`
	CustomerIdentifiers           StringMap  `json:"customer_identifiers"`

	CustomerMobilityImpairments      StringList `json:"customer_mobility_impairments"`
	CustomerEligibilityFactors       StringList `json:"customer_eligibility_factors"`
	CustomerAssistiveDevices         StringList `json:"customer_assistive_devices"`
	CustomerServiceAnimals           StringList `json:"customer_service_animals"`
	GuestOrAttendantServiceAnimals   StringList `json:"guest_or_attendant_service_animals"`
	GuestOrAttendantAssistiveDevices StringList `json:"guest_or_attendant_assistive_devices"`
	TripFunders                      StringList `json:"trip_funders"`

	PickUpAddress          Address            `json:"pick_up_location" gorm:"embedded;embeddedPrefix:pick_up_"`
	DropOffAddress         Address            `json:"drop_off_location" gorm:"embedded;embeddedPrefix:drop_off_"`
	RequestedPickupTime    *time.Time         `json:"requested_pickup_time" gorm:"index"`
	RequestedDropOffTime   *time.Time         `json:"requested_drop_off_time" gorm:"index"`
	AppointmentTime        *time.Time         `json:"appointment_time"`
	SchedulingPriority     SchedulingPriority `json:"scheduling_priority" gorm:"not null;default:'pickup'"`
	AllowedTimeVariance    int                `json:"allowed_time_variance"`
	NumAttendants          int                `json:"num_attendants" gorm:"not null;default:0"`
	NumGuests              int                `json:"num_guests" gorm:"not null;default:0"`
	TripPurposeDescription string             `json:"trip_purpose_description"`
	TripNotes              string             `json:"trip_notes"`

	// ApprovedClaimID points at the single approved claim, if any.
	ApprovedClaimID *uint       `json:"approved_claim_id" gorm:"index"`
	Rescinded       bool        `json:"rescinded" gorm:"not null;default:false"`
	TripClaims      []TripClaim `json:"-" gorm:"foreignKey:TripTicketID"`
	TripResult      *TripResult `json:"trip_result,omitempty" gorm:"foreignKey:TripTicketID"`
}

func (TripTicket) TableName() string {
	return "trip_tickets"
}

// SeatsRequired counts every seat the trip occupies.
func (t *TripTicket) SeatsRequired() int {
	return t.CustomerSeatsRequired + t.NumAttendants + t.NumGuests
}

// CustomerName joins the non-empty name parts.
func (t *TripTicket) CustomerName() string {
	name := ""
	for _, part := range []string{t.CustomerFirstName, t.CustomerMiddleName, t.CustomerLastName} {
		if part == "" {
			continue
		}
		if name != "" {
			name += " "
		}
		name += part
	}
	return name
}

// HasClaimBy reports whether providerID holds any claim on the ticket. The
// TripClaims association must be loaded.
func (t *TripTicket) HasClaimBy(providerID uint) bool {
	for _, claim := range t.TripClaims {
		if claim.ClaimantProviderID == providerID {
			return true
		}
	}
	return false
}
