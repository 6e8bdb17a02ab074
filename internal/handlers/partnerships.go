package handlers

import (
	"context"

	"github.com/chachabrian/clearinghouse-backend/internal/clearinghouse"
	"github.com/chachabrian/clearinghouse-backend/internal/models"
	"github.com/gin-gonic/gin"
)

type PartnershipService interface {
	RequestPartnership(ctx context.Context, caller clearinghouse.Caller, in clearinghouse.PartnershipInput) (*models.ProviderRelationship, error)
	ApprovePartnership(ctx context.Context, caller clearinghouse.Caller, id uint) (*models.ProviderRelationship, error)
	SetAutoApprove(ctx context.Context, caller clearinghouse.Caller, id uint, enabled bool) (*models.ProviderRelationship, error)
	ListPartnerships(ctx context.Context, caller clearinghouse.Caller) (clearinghouse.Partnerships, error)
}

type RequestPartnershipInput struct {
	CooperatingProviderID uint  `json:"cooperating_provider_id" binding:"required"`
	AutoApprove           *bool `json:"auto_approve"`
}

type AutoApproveInput struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func ListPartnerships(registry PartnershipService) gin.HandlerFunc {
	return func(c *gin.Context) {
		partnerships, err := registry.ListPartnerships(c.Request.Context(), callerFrom(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, partnerships)
	}
}

func RequestPartnership(registry PartnershipService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input RequestPartnershipInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err.Error())
			return
		}

		rel, err := registry.RequestPartnership(c.Request.Context(), callerFrom(c), clearinghouse.PartnershipInput{
			CooperatingProviderID: input.CooperatingProviderID,
			AutoApprove:           input.AutoApprove,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(201, rel)
	}
}

func ApprovePartnership(registry PartnershipService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}

		rel, err := registry.ApprovePartnership(c.Request.Context(), callerFrom(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, rel)
	}
}

func SetAutoApprove(registry PartnershipService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}

		var input AutoApproveInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err.Error())
			return
		}

		rel, err := registry.SetAutoApprove(c.Request.Context(), callerFrom(c), id, *input.Enabled)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, rel)
	}
}
