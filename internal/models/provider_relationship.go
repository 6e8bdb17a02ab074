package models

import (
	"time"

	"gorm.io/gorm"
)

// ProviderRelationship is a partnership between two providers. The requesting
// provider created it; the cooperating provider approves it. Each side carries
// its own auto-approve flag, consulted when that side is the claimant.
type ProviderRelationship struct {
	gorm.Model
	RequestingProviderID        uint       `json:"requesting_provider_id" gorm:"not null;index"`
	RequestingProvider          *Provider  `json:"requesting_provider,omitempty"`
	CooperatingProviderID       uint       `json:"cooperating_provider_id" gorm:"not null;index"`
	CooperatingProvider         *Provider  `json:"cooperating_provider,omitempty"`
	ApprovedAt                  *time.Time `json:"approved_at"`
	AutomaticRequesterApproval  bool       `json:"automatic_requester_approval" gorm:"default:false"`
	AutomaticCooperatorApproval bool       `json:"automatic_cooperator_approval" gorm:"default:false"`
}

func (ProviderRelationship) TableName() string {
	return "provider_relationships"
}

func (r *ProviderRelationship) Approved() bool {
	return r.ApprovedAt != nil
}

// Involves reports whether providerID is either side of the relationship.
func (r *ProviderRelationship) Involves(providerID uint) bool {
	return r.RequestingProviderID == providerID || r.CooperatingProviderID == providerID
}

// PartnerOf returns the other side of the relationship, or 0 when providerID
// is not part of it.
func (r *ProviderRelationship) PartnerOf(providerID uint) uint {
	switch providerID {
	case r.RequestingProviderID:
		return r.CooperatingProviderID
	case r.CooperatingProviderID:
		return r.RequestingProviderID
	}
	return 0
}

// ProviderCanAutoApprove returns the auto-approve flag of the side occupied by
// providerID.
func (r *ProviderRelationship) ProviderCanAutoApprove(providerID uint) bool {
	switch providerID {
	case r.RequestingProviderID:
		return r.AutomaticRequesterApproval
	case r.CooperatingProviderID:
		return r.AutomaticCooperatorApproval
	}
	return false
}

// SetAutoApprove updates the flag of providerID's side only.
func (r *ProviderRelationship) SetAutoApprove(providerID uint, enabled bool) bool {
	switch providerID {
	case r.RequestingProviderID:
		r.AutomaticRequesterApproval = enabled
	case r.CooperatingProviderID:
		r.AutomaticCooperatorApproval = enabled
	default:
		return false
	}
	return true
}
