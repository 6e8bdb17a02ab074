package handlers

import (
	"context"
	"time"

	"github.com/chachabrian/clearinghouse-backend/internal/clearinghouse"
	"github.com/chachabrian/clearinghouse-backend/internal/models"
	"github.com/gin-gonic/gin"
)

type ClaimService interface {
	CreateClaim(ctx context.Context, caller clearinghouse.Caller, ticketID uint, in clearinghouse.ClaimInput) (*models.TripClaim, error)
	UpdateClaim(ctx context.Context, caller clearinghouse.Caller, claimID uint, in clearinghouse.ClaimInput) (*models.TripClaim, error)
	ApproveClaim(ctx context.Context, caller clearinghouse.Caller, claimID uint) (*models.TripClaim, error)
	DeclineClaim(ctx context.Context, caller clearinghouse.Caller, claimID uint) (*models.TripClaim, error)
	RescindClaim(ctx context.Context, caller clearinghouse.Caller, claimID uint) (*models.TripClaim, error)
	GetClaim(ctx context.Context, caller clearinghouse.Caller, claimID uint) (*models.TripClaim, error)
	ListClaims(ctx context.Context, caller clearinghouse.Caller, ticketID uint) ([]models.TripClaim, error)
}

type ClaimRequest struct {
	ClaimantServiceID  *uint      `json:"claimant_service_id"`
	ClaimantCustomerID string     `json:"claimant_customer_id"`
	ClaimantTripID     string     `json:"claimant_trip_id"`
	ProposedPickupTime *time.Time `json:"proposed_pickup_time"`
	ProposedFare       *float64   `json:"proposed_fare"`
	Notes              string     `json:"notes"`
}

func (r ClaimRequest) input() clearinghouse.ClaimInput {
	return clearinghouse.ClaimInput{
		ClaimantServiceID:  r.ClaimantServiceID,
		ClaimantCustomerID: r.ClaimantCustomerID,
		ClaimantTripID:     r.ClaimantTripID,
		ProposedPickupTime: r.ProposedPickupTime,
		ProposedFare:       r.ProposedFare,
		Notes:              r.Notes,
	}
}

func ListClaims(svc ClaimService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ticketID, ok := idParam(c, "id")
		if !ok {
			return
		}

		claims, err := svc.ListClaims(c.Request.Context(), callerFrom(c), ticketID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"trip_claims": claims})
	}
}

func CreateClaim(svc ClaimService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ticketID, ok := idParam(c, "id")
		if !ok {
			return
		}

		var req ClaimRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		claim, err := svc.CreateClaim(c.Request.Context(), callerFrom(c), ticketID, req.input())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(201, claim)
	}
}

// UpdateClaim replaces the claimant's offer on a pending claim.
func UpdateClaim(svc ClaimService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimID, ok := idParam(c, "id")
		if !ok {
			return
		}

		var req ClaimRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		claim, err := svc.UpdateClaim(c.Request.Context(), callerFrom(c), claimID, req.input())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, claim)
	}
}

func GetClaim(svc ClaimService) gin.HandlerFunc {
	return claimAction(svc.GetClaim)
}

func ApproveClaim(svc ClaimService) gin.HandlerFunc {
	return claimAction(svc.ApproveClaim)
}

func DeclineClaim(svc ClaimService) gin.HandlerFunc {
	return claimAction(svc.DeclineClaim)
}

func RescindClaim(svc ClaimService) gin.HandlerFunc {
	return claimAction(svc.RescindClaim)
}

func claimAction(action func(context.Context, clearinghouse.Caller, uint) (*models.TripClaim, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimID, ok := idParam(c, "id")
		if !ok {
			return
		}

		claim, err := action(c.Request.Context(), callerFrom(c), claimID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, claim)
	}
}
