package clearinghouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chachabrian/clearinghouse-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const partnershipPairIndex = "index_provider_relationships_on_pair"

// Registry tracks partnerships between providers.
type Registry struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db, now: time.Now}
}

// with returns a registry bound to an open transaction.
func (r *Registry) with(tx *gorm.DB) *Registry {
	return &Registry{db: tx, now: r.now}
}

type PartnershipInput struct {
	CooperatingProviderID uint
	// AutoApprove overrides the requesting provider's default for its side.
	AutoApprove *bool
}

// Partnerships groups a provider's relationships the way the partner screens
// list them.
type Partnerships struct {
	Approved         []models.ProviderRelationship `json:"approved"`
	PendingInitiated []models.ProviderRelationship `json:"pending_initiated"`
	AwaitingApproval []models.ProviderRelationship `json:"awaiting_approval"`
}

func pairCondition(db *gorm.DB, a, b uint) *gorm.DB {
	return db.Where(
		"((requesting_provider_id = ? AND cooperating_provider_id = ?) OR (requesting_provider_id = ? AND cooperating_provider_id = ?))",
		a, b, b, a,
	)
}

func (r *Registry) RequestPartnership(ctx context.Context, caller Caller, in PartnershipInput) (*models.ProviderRelationship, error) {
	if in.CooperatingProviderID == 0 {
		return nil, invalidField("cooperating_provider_id", "is required")
	}
	if in.CooperatingProviderID == caller.ProviderID {
		return nil, invalidField("cooperating_provider_id", "must be a different provider")
	}

	var rel models.ProviderRelationship
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var requester models.Provider
		if err := tx.First(&requester, caller.ProviderID).Error; err != nil {
			return notFoundOr(err, "load requesting provider")
		}
		var cooperator models.Provider
		if err := tx.First(&cooperator, in.CooperatingProviderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return invalidField("cooperating_provider_id", "does not exist")
			}
			return fmt.Errorf("load cooperating provider: %w", err)
		}

		var existing int64
		if err := pairCondition(tx.Model(&models.ProviderRelationship{}), requester.ID, cooperator.ID).Count(&existing).Error; err != nil {
			return fmt.Errorf("count partnerships: %w", err)
		}
		if existing > 0 {
			return ErrDuplicateRelationship
		}

		autoApprove := requester.AutoApproveClaims
		if in.AutoApprove != nil {
			autoApprove = *in.AutoApprove
		}
		rel = models.ProviderRelationship{
			RequestingProviderID:        requester.ID,
			CooperatingProviderID:       cooperator.ID,
			AutomaticRequesterApproval:  autoApprove,
			AutomaticCooperatorApproval: cooperator.AutoApproveClaims,
		}
		if err := tx.Omit(clause.Associations).Create(&rel).Error; err != nil {
			if uniqueViolationOn(err, partnershipPairIndex) {
				return ErrDuplicateRelationship
			}
			return fmt.Errorf("create partnership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

// ApprovePartnership marks a pending partnership approved. Only the
// cooperating provider may approve; approving twice is a no-op.
func (r *Registry) ApprovePartnership(ctx context.Context, caller Caller, id uint) (*models.ProviderRelationship, error) {
	var rel models.ProviderRelationship
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rel, id).Error; err != nil {
			return notFoundOr(err, "load partnership")
		}
		if rel.CooperatingProviderID != caller.ProviderID {
			return ErrUnauthorized
		}
		if rel.Approved() {
			return nil
		}
		approvedAt := r.now().UTC()
		if err := tx.Model(&rel).Update("approved_at", approvedAt).Error; err != nil {
			return fmt.Errorf("approve partnership: %w", err)
		}
		rel.ApprovedAt = &approvedAt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

// SetAutoApprove toggles the caller's own side of a partnership.
func (r *Registry) SetAutoApprove(ctx context.Context, caller Caller, id uint, enabled bool) (*models.ProviderRelationship, error) {
	var rel models.ProviderRelationship
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rel, id).Error; err != nil {
			return notFoundOr(err, "load partnership")
		}
		if !rel.SetAutoApprove(caller.ProviderID, enabled) {
			return ErrUnauthorized
		}
		column := "automatic_requester_approval"
		if rel.CooperatingProviderID == caller.ProviderID {
			column = "automatic_cooperator_approval"
		}
		if err := tx.Model(&rel).Update(column, enabled).Error; err != nil {
			return fmt.Errorf("update auto approve: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

// FindApprovedRelationship returns nil when the two providers have no
// approved partnership.
func (r *Registry) FindApprovedRelationship(ctx context.Context, a, b uint) (*models.ProviderRelationship, error) {
	var rel models.ProviderRelationship
	err := pairCondition(r.db.WithContext(ctx), a, b).
		Where("approved_at IS NOT NULL").
		First(&rel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find approved partnership: %w", err)
	}
	return &rel, nil
}

// CanAutoApprove reports whether a claim by claimant on a ticket owned by
// owner is approved on creation.
func (r *Registry) CanAutoApprove(ctx context.Context, owner, claimant uint) (bool, error) {
	rel, err := r.FindApprovedRelationship(ctx, owner, claimant)
	if err != nil || rel == nil {
		return false, err
	}
	return rel.ProviderCanAutoApprove(claimant), nil
}

func (r *Registry) ApprovedPartnerIDs(ctx context.Context, providerID uint) ([]uint, error) {
	var rels []models.ProviderRelationship
	err := r.db.WithContext(ctx).
		Where("(requesting_provider_id = ? OR cooperating_provider_id = ?) AND approved_at IS NOT NULL", providerID, providerID).
		Find(&rels).Error
	if err != nil {
		return nil, fmt.Errorf("list approved partners: %w", err)
	}
	ids := make([]uint, 0, len(rels))
	for i := range rels {
		if partner := rels[i].PartnerOf(providerID); partner != 0 {
			ids = append(ids, partner)
		}
	}
	return ids, nil
}

func (r *Registry) ListPartnerships(ctx context.Context, caller Caller) (Partnerships, error) {
	var rels []models.ProviderRelationship
	err := r.db.WithContext(ctx).
		Preload("RequestingProvider").
		Preload("CooperatingProvider").
		Where("requesting_provider_id = ? OR cooperating_provider_id = ?", caller.ProviderID, caller.ProviderID).
		Order("created_at DESC").
		Find(&rels).Error
	if err != nil {
		return Partnerships{}, fmt.Errorf("list partnerships: %w", err)
	}
	return groupPartnerships(caller.ProviderID, rels), nil
}

func groupPartnerships(providerID uint, rels []models.ProviderRelationship) Partnerships {
	out := Partnerships{
		Approved:         []models.ProviderRelationship{},
		PendingInitiated: []models.ProviderRelationship{},
		AwaitingApproval: []models.ProviderRelationship{},
	}
	for _, rel := range rels {
		switch {
		case rel.Approved():
			out.Approved = append(out.Approved, rel)
		case rel.RequestingProviderID == providerID:
			out.PendingInitiated = append(out.PendingInitiated, rel)
		case rel.CooperatingProviderID == providerID:
			out.AwaitingApproval = append(out.AwaitingApproval, rel)
		}
	}
	return out
}
