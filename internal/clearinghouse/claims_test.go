package clearinghouse

import (
	"testing"

	"github.com/chachabrian/clearinghouse-backend/internal/models"
)

func TestValidClaimTransition(t *testing.T) {
	cases := []struct {
		action ClaimAction
		from   models.TripClaimStatus
		want   bool
	}{
		{ClaimActionApprove, models.TripClaimStatusPending, true},
		{ClaimActionApprove, models.TripClaimStatusApproved, false},
		{ClaimActionApprove, models.TripClaimStatusDeclined, false},
		{ClaimActionApprove, models.TripClaimStatusRescinded, false},
		{ClaimActionDecline, models.TripClaimStatusPending, true},
		{ClaimActionDecline, models.TripClaimStatusApproved, false},
		{ClaimActionDecline, models.TripClaimStatusDeclined, false},
		{ClaimActionRescind, models.TripClaimStatusPending, true},
		{ClaimActionRescind, models.TripClaimStatusApproved, true},
		{ClaimActionRescind, models.TripClaimStatusDeclined, false},
		{ClaimActionRescind, models.TripClaimStatusRescinded, false},
		{ClaimAction("reopen"), models.TripClaimStatusDeclined, false},
	}

	for _, tc := range cases {
		if got := ValidClaimTransition(tc.action, tc.from); got != tc.want {
			t.Fatalf("action=%s from=%s expected %v got %v", tc.action, tc.from, tc.want, got)
		}
	}
}

func TestClaimTarget(t *testing.T) {
	if claimTarget(ClaimActionApprove) != models.TripClaimStatusApproved {
		t.Fatalf("approve should land on approved")
	}
	if claimTarget(ClaimActionDecline) != models.TripClaimStatusDeclined {
		t.Fatalf("decline should land on declined")
	}
	if claimTarget(ClaimActionRescind) != models.TripClaimStatusRescinded {
		t.Fatalf("rescind should land on rescinded")
	}
}

func TestClaimInputValidate(t *testing.T) {
	negative := -5.0
	zero := uint(0)
	err := ClaimInput{ProposedFare: &negative, ClaimantServiceID: &zero}.validate()
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	fields := err.(*ValidationError).Fields
	if _, ok := fields["proposed_fare"]; !ok {
		t.Fatalf("expected proposed_fare error, got %v", fields)
	}
	if _, ok := fields["claimant_service_id"]; !ok {
		t.Fatalf("expected claimant_service_id error, got %v", fields)
	}

	fare := 12.5
	if err := (ClaimInput{ProposedFare: &fare}).validate(); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}
}
