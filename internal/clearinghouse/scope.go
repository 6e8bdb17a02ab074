package clearinghouse

import (
	"context"
	"sort"

	"github.com/chachabrian/clearinghouse-backend/internal/models"
	"gorm.io/gorm"
)

// Scope answers what one provider may see and do. It is built per request
// from the current partnership state and never reused across requests.
type Scope struct {
	ProviderID uint
	partners   map[uint]struct{}
}

func NewScope(providerID uint, partnerIDs []uint) Scope {
	partners := make(map[uint]struct{}, len(partnerIDs))
	for _, id := range partnerIDs {
		if id != 0 && id != providerID {
			partners[id] = struct{}{}
		}
	}
	return Scope{ProviderID: providerID, partners: partners}
}

func (s Scope) IsPartner(providerID uint) bool {
	_, ok := s.partners[providerID]
	return ok
}

// PartnerIDs returns the approved partners in ascending order.
func (s Scope) PartnerIDs() []uint {
	ids := make([]uint, 0, len(s.partners))
	for id := range s.partners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s Scope) IsOriginator(t *models.TripTicket) bool {
	return t.OriginProviderID == s.ProviderID
}

// CanView requires the ticket's claims to be loaded.
func (s Scope) CanView(t *models.TripTicket) bool {
	return s.IsOriginator(t) || s.IsPartner(t.OriginProviderID) || t.HasClaimBy(s.ProviderID)
}

func (s Scope) CanClaim(t *models.TripTicket) bool {
	return s.CanView(t) && !s.IsOriginator(t) && !t.Rescinded && t.ApprovedClaimID == nil
}

// CanDecideClaim covers approve and decline.
func (s Scope) CanDecideClaim(t *models.TripTicket) bool {
	return s.IsOriginator(t)
}

func (s Scope) CanRescindClaim(c *models.TripClaim) bool {
	return c.ClaimantProviderID == s.ProviderID
}

// CanEditClaim covers changes to the claimant's own offer.
func (s Scope) CanEditClaim(c *models.TripClaim) bool {
	return c.ClaimantProviderID == s.ProviderID
}

func (s Scope) CanEdit(t *models.TripTicket) bool {
	return s.IsOriginator(t)
}

func (s Scope) CanViewClaim(t *models.TripTicket, c *models.TripClaim) bool {
	return s.IsOriginator(t) || c.ClaimantProviderID == s.ProviderID
}

// VisibleClaims filters the loaded claims down to the ones the provider may
// read: all of them for the originator, its own otherwise.
func (s Scope) VisibleClaims(t *models.TripTicket) []models.TripClaim {
	out := make([]models.TripClaim, 0, len(t.TripClaims))
	for i := range t.TripClaims {
		if s.CanViewClaim(t, &t.TripClaims[i]) {
			out = append(out, t.TripClaims[i])
		}
	}
	return out
}

// VisibleTickets restricts a trip_tickets query to what CanView allows.
func (s Scope) VisibleTickets(db *gorm.DB) *gorm.DB {
	query := "trip_tickets.origin_provider_id = ?" +
		" OR EXISTS (SELECT 1 FROM trip_claims vc WHERE vc.trip_ticket_id = trip_tickets.id" +
		" AND vc.claimant_provider_id = ? AND vc.deleted_at IS NULL)"
	args := []interface{}{s.ProviderID, s.ProviderID}
	if partners := s.PartnerIDs(); len(partners) > 0 {
		query += " OR trip_tickets.origin_provider_id IN ?"
		args = append(args, partners)
	}
	return db.Where("("+query+")", args...)
}

// Resolver builds scopes from the partnership registry.
type Resolver struct {
	registry *Registry
}

func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

func (r *Resolver) ScopeFor(ctx context.Context, caller Caller) (Scope, error) {
	partners, err := r.registry.ApprovedPartnerIDs(ctx, caller.ProviderID)
	if err != nil {
		return Scope{}, err
	}
	return NewScope(caller.ProviderID, partners), nil
}
