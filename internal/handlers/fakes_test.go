package handlers

import (
	"context"
	"time"

	"github.com/chachabrian/clearinghouse-backend/internal/clearinghouse"
	"github.com/chachabrian/clearinghouse-backend/internal/models"
	"github.com/chachabrian/clearinghouse-backend/internal/reports"
)

type fakeTickets struct {
	list    func(clearinghouse.Caller, clearinghouse.Filters, *time.Time) ([]clearinghouse.TicketView, error)
	create  func(clearinghouse.Caller, clearinghouse.TicketPatch) (*clearinghouse.TicketView, error)
	get     func(clearinghouse.Caller, uint) (*clearinghouse.TicketView, error)
	update  func(clearinghouse.Caller, uint, clearinghouse.TicketUpdate) (*clearinghouse.TicketView, error)
	rescind func(clearinghouse.Caller, uint) (*clearinghouse.TicketView, error)
}

func (f *fakeTickets) ListVisibleTickets(_ context.Context, c clearinghouse.Caller, filters clearinghouse.Filters, since *time.Time) ([]clearinghouse.TicketView, error) {
	return f.list(c, filters, since)
}

func (f *fakeTickets) CreateTicket(_ context.Context, c clearinghouse.Caller, p clearinghouse.TicketPatch) (*clearinghouse.TicketView, error) {
	return f.create(c, p)
}

func (f *fakeTickets) GetTicket(_ context.Context, c clearinghouse.Caller, id uint) (*clearinghouse.TicketView, error) {
	return f.get(c, id)
}

func (f *fakeTickets) UpdateTicket(_ context.Context, c clearinghouse.Caller, id uint, u clearinghouse.TicketUpdate) (*clearinghouse.TicketView, error) {
	return f.update(c, id, u)
}

func (f *fakeTickets) RescindTicket(_ context.Context, c clearinghouse.Caller, id uint) (*clearinghouse.TicketView, error) {
	return f.rescind(c, id)
}

type fakeClaims struct {
	create  func(clearinghouse.Caller, uint, clearinghouse.ClaimInput) (*models.TripClaim, error)
	update  func(clearinghouse.Caller, uint, clearinghouse.ClaimInput) (*models.TripClaim, error)
	approve func(clearinghouse.Caller, uint) (*models.TripClaim, error)
	decline func(clearinghouse.Caller, uint) (*models.TripClaim, error)
	rescind func(clearinghouse.Caller, uint) (*models.TripClaim, error)
	get     func(clearinghouse.Caller, uint) (*models.TripClaim, error)
	list    func(clearinghouse.Caller, uint) ([]models.TripClaim, error)
}

func (f *fakeClaims) CreateClaim(_ context.Context, c clearinghouse.Caller, id uint, in clearinghouse.ClaimInput) (*models.TripClaim, error) {
	return f.create(c, id, in)
}

func (f *fakeClaims) UpdateClaim(_ context.Context, c clearinghouse.Caller, id uint, in clearinghouse.ClaimInput) (*models.TripClaim, error) {
	return f.update(c, id, in)
}

func (f *fakeClaims) ApproveClaim(_ context.Context, c clearinghouse.Caller, id uint) (*models.TripClaim, error) {
	return f.approve(c, id)
}

func (f *fakeClaims) DeclineClaim(_ context.Context, c clearinghouse.Caller, id uint) (*models.TripClaim, error) {
	return f.decline(c, id)
}

func (f *fakeClaims) RescindClaim(_ context.Context, c clearinghouse.Caller, id uint) (*models.TripClaim, error) {
	return f.rescind(c, id)
}

func (f *fakeClaims) GetClaim(_ context.Context, c clearinghouse.Caller, id uint) (*models.TripClaim, error) {
	return f.get(c, id)
}

func (f *fakeClaims) ListClaims(_ context.Context, c clearinghouse.Caller, id uint) ([]models.TripClaim, error) {
	return f.list(c, id)
}

type fakePartnerships struct {
	request     func(clearinghouse.Caller, clearinghouse.PartnershipInput) (*models.ProviderRelationship, error)
	approve     func(clearinghouse.Caller, uint) (*models.ProviderRelationship, error)
	autoApprove func(clearinghouse.Caller, uint, bool) (*models.ProviderRelationship, error)
	list        func(clearinghouse.Caller) (clearinghouse.Partnerships, error)
}

func (f *fakePartnerships) RequestPartnership(_ context.Context, c clearinghouse.Caller, in clearinghouse.PartnershipInput) (*models.ProviderRelationship, error) {
	return f.request(c, in)
}

func (f *fakePartnerships) ApprovePartnership(_ context.Context, c clearinghouse.Caller, id uint) (*models.ProviderRelationship, error) {
	return f.approve(c, id)
}

func (f *fakePartnerships) SetAutoApprove(_ context.Context, c clearinghouse.Caller, id uint, enabled bool) (*models.ProviderRelationship, error) {
	return f.autoApprove(c, id, enabled)
}

func (f *fakePartnerships) ListPartnerships(_ context.Context, c clearinghouse.Caller) (clearinghouse.Partnerships, error) {
	return f.list(c)
}

type fakeReports struct {
	summary func(uint, reports.DateRange) (*reports.Summary, error)
}

func (f *fakeReports) ProviderSummary(_ context.Context, providerID uint, r reports.DateRange) (*reports.Summary, error) {
	return f.summary(providerID, r)
}

func (f *fakeReports) ProviderName(context.Context, uint) (string, error) {
	return "Metro Ride", nil
}

type fakeBulk struct {
	export   func(clearinghouse.Caller) (*models.BulkOperation, error)
	imp      func(clearinghouse.Caller, string, []byte) (*models.BulkOperation, error)
	list     func(clearinghouse.Caller, int) ([]models.BulkOperation, error)
	download func(clearinghouse.Caller, uint) (*models.BulkOperation, []byte, error)
}

func (f *fakeBulk) Export(_ context.Context, c clearinghouse.Caller) (*models.BulkOperation, error) {
	return f.export(c)
}

func (f *fakeBulk) Import(_ context.Context, c clearinghouse.Caller, name string, data []byte) (*models.BulkOperation, error) {
	return f.imp(c, name, data)
}

func (f *fakeBulk) List(_ context.Context, c clearinghouse.Caller, limit int) ([]models.BulkOperation, error) {
	return f.list(c, limit)
}

func (f *fakeBulk) Download(_ context.Context, c clearinghouse.Caller, id uint) (*models.BulkOperation, []byte, error) {
	return f.download(c, id)
}
