package models

import (
	"time"

	"gorm.io/gorm"
)

type TripClaimStatus string

const (
	TripClaimStatusPending   TripClaimStatus = "pending"
	TripClaimStatusApproved  TripClaimStatus = "approved"
	TripClaimStatusDeclined  TripClaimStatus = "declined"
	TripClaimStatusRescinded TripClaimStatus = "rescinded"
)

// TripClaim is an offer by a claimant provider to serve a ticket.
type TripClaim struct {
	gorm.Model
	TripTicketID       uint            `json:"trip_ticket_id" gorm:"not null;index"`
	ClaimantProviderID uint            `json:"claimant_provider_id" gorm:"not null;index"`
	ClaimantCustomerID string          `json:"claimant_customer_id"`
	ClaimantTripID     string          `json:"claimant_trip_id"`
	ClaimantService    *Service        `json:"claimant_service,omitempty" gorm:"foreignKey:ClaimantServiceID"`
	ClaimantServiceID  *uint           `json:"claimant_service_id"`
	Status             TripClaimStatus `json:"status" gorm:"not null;default:'pending';index"`
	ProposedPickupTime *time.Time      `json:"proposed_pickup_time"`
	ProposedFare       *float64        `json:"proposed_fare"`
	Notes              string          `json:"notes"`
}

func (TripClaim) TableName() string {
	return "trip_claims"
}

func (c *TripClaim) IsPending() bool {
	return c.Status == TripClaimStatusPending
}

func (c *TripClaim) IsApproved() bool {
	return c.Status == TripClaimStatusApproved
}

type TripResultOutcome string

const (
	TripResultCompleted TripResultOutcome = "Completed"
	TripResultNoShow    TripResultOutcome = "No-Show"
	TripResultCancelled TripResultOutcome = "Cancelled"
)

// TripResult records how an approved trip turned out.
type TripResult struct {
	gorm.Model
	TripTicketID      uint              `json:"trip_ticket_id" gorm:"not null;uniqueIndex"`
	TripClaimID       uint              `json:"trip_claim_id" gorm:"not null"`
	Outcome           TripResultOutcome `json:"outcome" gorm:"not null"`
	ActualPickupTime  *time.Time        `json:"actual_pick_up_time"`
	ActualDropOffTime *time.Time        `json:"actual_drop_off_time"`
	Fare              *float64          `json:"fare"`
	MilesTravelled    *float64          `json:"miles_travelled"`
	Notes             string            `json:"notes"`
}

func (TripResult) TableName() string {
	return "trip_results"
}

func ValidTripResultOutcome(outcome TripResultOutcome) bool {
	switch outcome {
	case TripResultCompleted, TripResultNoShow, TripResultCancelled:
		return true
	}
	return false
}
