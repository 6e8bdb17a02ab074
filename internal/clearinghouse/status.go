package clearinghouse

import "github.com/chachabrian/clearinghouse-backend/internal/models"

type TicketStatus string

const (
	StatusUnclaimed TicketStatus = "unclaimed"
	StatusPending   TicketStatus = "pending"
	StatusApproved  TicketStatus = "approved"
	StatusDeclined  TicketStatus = "declined"
	StatusRescinded TicketStatus = "rescinded"
)

func ValidTicketStatus(status TicketStatus) bool {
	switch status {
	case StatusUnclaimed, StatusPending, StatusApproved, StatusDeclined, StatusRescinded:
		return true
	}
	return false
}

// StatusLabel summarizes a ticket for sync consumers. A ticket whose claims
// were all declined reads as unclaimed.
func StatusLabel(t *models.TripTicket) TicketStatus {
	if t.Rescinded {
		return StatusRescinded
	}
	if t.ApprovedClaimID != nil {
		return StatusApproved
	}
	pending := false
	for _, claim := range t.TripClaims {
		switch claim.Status {
		case models.TripClaimStatusApproved:
			return StatusApproved
		case models.TripClaimStatusPending:
			pending = true
		}
	}
	if pending {
		return StatusPending
	}
	return StatusUnclaimed
}

// TicketView is a ticket as one provider sees it.
type TicketView struct {
	models.TripTicket
	IsOriginator bool               `json:"is_originator"`
	Status       TicketStatus       `json:"status"`
	TripClaims   []models.TripClaim `json:"trip_claims"`
}

func newTicketView(scope Scope, t *models.TripTicket) TicketView {
	return TicketView{
		TripTicket:   *t,
		IsOriginator: scope.IsOriginator(t),
		Status:       StatusLabel(t),
		TripClaims:   scope.VisibleClaims(t),
	}
}
