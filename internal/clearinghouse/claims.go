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

const approvedClaimIndex = "index_trip_claims_one_approved_per_ticket"

type ClaimAction string

const (
	ClaimActionApprove ClaimAction = "approve"
	ClaimActionDecline ClaimAction = "decline"
	ClaimActionRescind ClaimAction = "rescind"
)

var claimTransitions = map[ClaimAction]struct {
	from []models.TripClaimStatus
	to   models.TripClaimStatus
}{
	ClaimActionApprove: {from: []models.TripClaimStatus{models.TripClaimStatusPending}, to: models.TripClaimStatusApproved},
	ClaimActionDecline: {from: []models.TripClaimStatus{models.TripClaimStatusPending}, to: models.TripClaimStatusDeclined},
	ClaimActionRescind: {
		from: []models.TripClaimStatus{models.TripClaimStatusPending, models.TripClaimStatusApproved},
		to:   models.TripClaimStatusRescinded,
	},
}

func ValidClaimTransition(action ClaimAction, from models.TripClaimStatus) bool {
	rule, ok := claimTransitions[action]
	if !ok {
		return false
	}
	for _, status := range rule.from {
		if status == from {
			return true
		}
	}
	return false
}

func claimTarget(action ClaimAction) models.TripClaimStatus {
	return claimTransitions[action].to
}

// ClaimInput holds the fields a claimant controls. UpdateClaim replaces all
// of them.
type ClaimInput struct {
	ClaimantServiceID  *uint
	ClaimantCustomerID string
	ClaimantTripID     string
	ProposedPickupTime *time.Time
	ProposedFare       *float64
	Notes              string
}

func (in ClaimInput) validate() error {
	v := &ValidationError{}
	if in.ProposedFare != nil && *in.ProposedFare < 0 {
		v.Add("proposed_fare", "must be greater than or equal to 0")
	}
	if in.ClaimantServiceID != nil && *in.ClaimantServiceID == 0 {
		v.Add("claimant_service_id", "is invalid")
	}
	return v.OrNil()
}

// CreateClaim offers to serve a ticket on behalf of the caller. When the
// partnership lets the caller auto-approve, the claim is stored approved and
// the ticket points at it before the transaction commits.
func (s *Service) CreateClaim(ctx context.Context, caller Caller, ticketID uint, in ClaimInput) (*models.TripClaim, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var claim models.TripClaim
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ticket, err := lockTicket(tx, ticketID)
		if err != nil {
			return err
		}
		scope, err := s.resolverFor(tx).ScopeFor(ctx, caller)
		if err != nil {
			return err
		}
		switch {
		case !scope.CanView(ticket) || scope.IsOriginator(ticket):
			return ErrUnauthorized
		case ticket.Rescinded:
			return ErrInvalidTransition
		case ticket.ApprovedClaimID != nil:
			return ErrConflictingApproval
		}

		if err := checkClaimantService(tx, caller, in.ClaimantServiceID); err != nil {
			return err
		}

		autoApprove, err := s.registry.with(tx).CanAutoApprove(ctx, ticket.OriginProviderID, caller.ProviderID)
		if err != nil {
			return err
		}

		claim = models.TripClaim{
			TripTicketID:       ticket.ID,
			ClaimantProviderID: caller.ProviderID,
			ClaimantServiceID:  in.ClaimantServiceID,
			ClaimantCustomerID: in.ClaimantCustomerID,
			ClaimantTripID:     in.ClaimantTripID,
			Status:             models.TripClaimStatusPending,
			ProposedPickupTime: in.ProposedPickupTime,
			ProposedFare:       in.ProposedFare,
			Notes:              in.Notes,
		}
		if autoApprove {
			claim.Status = models.TripClaimStatusApproved
		}
		if err := tx.Omit(clause.Associations).Create(&claim).Error; err != nil {
			if uniqueViolationOn(err, approvedClaimIndex) {
				return ErrConflictingApproval
			}
			return fmt.Errorf("create claim: %w", err)
		}
		if autoApprove {
			return setApprovedClaim(tx, ticket.ID, claim.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

// UpdateClaim lets the claimant revise a pending offer.
func (s *Service) UpdateClaim(ctx context.Context, caller Caller, claimID uint, in ClaimInput) (*models.TripClaim, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var claim models.TripClaim
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, locked, err := lockClaim(tx, claimID)
		if err != nil {
			return err
		}
		claim = *locked

		if !NewScope(caller.ProviderID, nil).CanEditClaim(&claim) {
			return ErrUnauthorized
		}
		if !claim.IsPending() {
			return ErrInvalidTransition
		}
		if err := checkClaimantService(tx, caller, in.ClaimantServiceID); err != nil {
			return err
		}

		claim.ClaimantServiceID = in.ClaimantServiceID
		claim.ClaimantCustomerID = in.ClaimantCustomerID
		claim.ClaimantTripID = in.ClaimantTripID
		claim.ProposedPickupTime = in.ProposedPickupTime
		claim.ProposedFare = in.ProposedFare
		claim.Notes = in.Notes
		err = tx.Model(&claim).
			Select("claimant_service_id", "claimant_customer_id", "claimant_trip_id", "proposed_pickup_time", "proposed_fare", "notes").
			Updates(&claim).Error
		if err != nil {
			return fmt.Errorf("update claim: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

// ApproveClaim approves a pending claim. The ticket row is locked first so
// concurrent approvals on the same ticket serialize; the loser sees the
// reference already set and gets ErrConflictingApproval.
func (s *Service) ApproveClaim(ctx context.Context, caller Caller, claimID uint) (*models.TripClaim, error) {
	return s.decideClaim(ctx, caller, claimID, ClaimActionApprove)
}

func (s *Service) DeclineClaim(ctx context.Context, caller Caller, claimID uint) (*models.TripClaim, error) {
	return s.decideClaim(ctx, caller, claimID, ClaimActionDecline)
}

func (s *Service) decideClaim(ctx context.Context, caller Caller, claimID uint, action ClaimAction) (*models.TripClaim, error) {
	var claim models.TripClaim
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ticket, locked, err := lockClaim(tx, claimID)
		if err != nil {
			return err
		}
		claim = *locked

		if !NewScope(caller.ProviderID, nil).CanDecideClaim(ticket) {
			return ErrUnauthorized
		}
		if !ValidClaimTransition(action, claim.Status) {
			return ErrInvalidTransition
		}
		if action == ClaimActionApprove {
			if ticket.Rescinded {
				return ErrInvalidTransition
			}
			if ticket.ApprovedClaimID != nil {
				return ErrConflictingApproval
			}
		}

		if err := transitionClaim(tx, &claim, action); err != nil {
			return err
		}
		if action == ClaimActionApprove {
			return setApprovedClaim(tx, ticket.ID, claim.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

// RescindClaim withdraws the caller's own claim. Withdrawing the approved
// claim frees the ticket for new claims.
func (s *Service) RescindClaim(ctx context.Context, caller Caller, claimID uint) (*models.TripClaim, error) {
	var claim models.TripClaim
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ticket, locked, err := lockClaim(tx, claimID)
		if err != nil {
			return err
		}
		claim = *locked

		if !NewScope(caller.ProviderID, nil).CanRescindClaim(&claim) {
			return ErrUnauthorized
		}
		if !ValidClaimTransition(ClaimActionRescind, claim.Status) {
			return ErrInvalidTransition
		}
		wasApproved := claim.IsApproved()
		if err := transitionClaim(tx, &claim, ClaimActionRescind); err != nil {
			return err
		}
		if wasApproved {
			return clearApprovedClaim(tx, ticket.ID, claim.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

func (s *Service) GetClaim(ctx context.Context, caller Caller, claimID uint) (*models.TripClaim, error) {
	var claim models.TripClaim
	if err := s.db.WithContext(ctx).First(&claim, claimID).Error; err != nil {
		return nil, notFoundOr(err, "load claim")
	}
	var ticket models.TripTicket
	if err := s.db.WithContext(ctx).First(&ticket, claim.TripTicketID).Error; err != nil {
		return nil, notFoundOr(err, "load ticket")
	}
	if !NewScope(caller.ProviderID, nil).CanViewClaim(&ticket, &claim) {
		return nil, ErrUnauthorized
	}
	return &claim, nil
}

func (s *Service) ListClaims(ctx context.Context, caller Caller, ticketID uint) ([]models.TripClaim, error) {
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
	return scope.VisibleClaims(ticket), nil
}

func checkClaimantService(tx *gorm.DB, caller Caller, serviceID *uint) error {
	if serviceID == nil {
		return nil
	}
	var service models.Service
	err := tx.Where("id = ? AND provider_id = ?", *serviceID, caller.ProviderID).First(&service).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return invalidField("claimant_service_id", "must belong to the claimant provider")
	}
	if err != nil {
		return fmt.Errorf("load claimant service: %w", err)
	}
	return nil
}

// lockTicket loads a ticket FOR UPDATE together with its claims.
func lockTicket(tx *gorm.DB, ticketID uint) (*models.TripTicket, error) {
	var ticket models.TripTicket
	if err := tx.Clauses(forUpdate).First(&ticket, ticketID).Error; err != nil {
		return nil, notFoundOr(err, "lock ticket")
	}
	if err := tx.Where("trip_ticket_id = ?", ticket.ID).Order("id").Find(&ticket.TripClaims).Error; err != nil {
		return nil, fmt.Errorf("load claims: %w", err)
	}
	return &ticket, nil
}

// lockClaim locks the claim's ticket, then the claim, always in that order.
func lockClaim(tx *gorm.DB, claimID uint) (*models.TripTicket, *models.TripClaim, error) {
	var ref models.TripClaim
	if err := tx.Select("id", "trip_ticket_id").First(&ref, claimID).Error; err != nil {
		return nil, nil, notFoundOr(err, "load claim")
	}
	ticket, err := lockTicket(tx, ref.TripTicketID)
	if err != nil {
		return nil, nil, err
	}
	var claim models.TripClaim
	if err := tx.Clauses(forUpdate).First(&claim, claimID).Error; err != nil {
		return nil, nil, notFoundOr(err, "lock claim")
	}
	return ticket, &claim, nil
}

func loadTicket(db *gorm.DB, ticketID uint) (*models.TripTicket, error) {
	var ticket models.TripTicket
	err := db.Preload("TripClaims", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("TripResult").
		First(&ticket, ticketID).Error
	if err != nil {
		return nil, notFoundOr(err, "load ticket")
	}
	return &ticket, nil
}

func transitionClaim(tx *gorm.DB, claim *models.TripClaim, action ClaimAction) error {
	from := claim.Status
	to := claimTarget(action)
	result := tx.Model(&models.TripClaim{}).
		Where("id = ? AND status = ?", claim.ID, from).
		Update("status", to)
	if result.Error != nil {
		if uniqueViolationOn(result.Error, approvedClaimIndex) {
			return ErrConflictingApproval
		}
		return fmt.Errorf("%s claim: %w", action, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	claim.Status = to
	return nil
}

// setApprovedClaim is a compare-and-swap on the ticket's approved claim.
func setApprovedClaim(tx *gorm.DB, ticketID, claimID uint) error {
	result := tx.Model(&models.TripTicket{}).
		Where("id = ? AND approved_claim_id IS NULL AND rescinded = ?", ticketID, false).
		Update("approved_claim_id", claimID)
	if result.Error != nil {
		return fmt.Errorf("set approved claim: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrConflictingApproval
	}
	return nil
}

func clearApprovedClaim(tx *gorm.DB, ticketID, claimID uint) error {
	err := tx.Model(&models.TripTicket{}).
		Where("id = ? AND approved_claim_id = ?", ticketID, claimID).
		Update("approved_claim_id", nil).Error
	if err != nil {
		return fmt.Errorf("clear approved claim: %w", err)
	}
	return nil
}
