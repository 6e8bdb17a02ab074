package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chachabrian/clearinghouse-backend/internal/bulk"
	"github.com/chachabrian/clearinghouse-backend/internal/clearinghouse"
	"github.com/chachabrian/clearinghouse-backend/internal/middleware"
	"github.com/chachabrian/clearinghouse-backend/internal/models"
	"github.com/chachabrian/clearinghouse-backend/internal/reports"
	"github.com/chachabrian/clearinghouse-backend/pkg/utils"
	"github.com/gin-gonic/gin"
)

const testSecret = "test-secret"

var testCaller = clearinghouse.Caller{ProviderID: 3, UserID: 11}

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router       *gin.Engine
	tickets      *fakeTickets
	claims       *fakeClaims
	partnerships *fakePartnerships
	reports      *fakeReports
	bulk         *fakeBulk
}

func newTestServer() *testServer {
	s := &testServer{
		tickets:      &fakeTickets{},
		claims:       &fakeClaims{},
		partnerships: &fakePartnerships{},
		reports:      &fakeReports{},
		bulk:         &fakeBulk{},
	}
	s.router = NewRouter(RouterDeps{
		Tickets:      s.tickets,
		Claims:       s.claims,
		Partnerships: s.partnerships,
		Reports:      s.reports,
		Bulk:         s.bulk,
		Health: map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
		},
		JWTSecret: testSecret,
		JWTTTL:    time.Hour,
	})
	return s
}

func bearer(t *testing.T, role models.UserRole) string {
	t.Helper()
	user := &models.User{ProviderID: testCaller.ProviderID, Role: role}
	user.ID = testCaller.UserID
	token, err := utils.GenerateToken(user, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return "Bearer " + token
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	return s.doAs(t, models.UserRoleScheduler, method, path, body)
}

func (s *testServer) doAs(t *testing.T, role models.UserRole, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t, role))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	RequestID string `json:"request_id"`
	Error     struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	if env.RequestID == "" {
		t.Fatalf("missing request_id in %s", w.Body.String())
	}
	return env
}

func ticketView(id uint) *clearinghouse.TicketView {
	v := &clearinghouse.TicketView{IsOriginator: true, Status: clearinghouse.StatusUnclaimed}
	v.ID = id
	v.OriginProviderID = testCaller.ProviderID
	return v
}

func TestErrorMapping(t *testing.T) {
	validation := &clearinghouse.ValidationError{}
	validation.Add("customer_first_name", "can't be blank")

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{validation, 422, "validation_failed"},
		{clearinghouse.ErrUnauthorized, 401, "unauthorized"},
		{clearinghouse.ErrNotFound, 404, "not_found"},
		{clearinghouse.ErrInvalidTransition, 409, "invalid_transition"},
		{clearinghouse.ErrConflictingApproval, 409, "conflicting_approval"},
		{clearinghouse.ErrDuplicateRelationship, 409, "duplicate_relationship"},
		{bulk.ErrJobRunning, 409, "job_running"},
		{errors.New("connection reset"), 500, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			s := newTestServer()
			s.tickets.get = func(clearinghouse.Caller, uint) (*clearinghouse.TicketView, error) {
				return nil, tc.err
			}

			w := s.do(t, http.MethodGet, "/api/v1/trip_tickets/5", nil)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d", w.Code, tc.status)
			}
			env := decodeError(t, w)
			if env.Error.Code != tc.code {
				t.Fatalf("code = %q, want %q", env.Error.Code, tc.code)
			}
			if tc.status == 500 && strings.Contains(w.Body.String(), "connection reset") {
				t.Fatalf("internal error detail leaked: %s", w.Body.String())
			}
			if tc.status == 422 && env.Error.Fields["customer_first_name"] != "can't be blank" {
				t.Fatalf("fields = %v", env.Error.Fields)
			}
		})
	}
}

func TestCreateTicketUsesCaller(t *testing.T) {
	s := newTestServer()
	var got clearinghouse.Caller
	var patch clearinghouse.TicketPatch
	s.tickets.create = func(c clearinghouse.Caller, p clearinghouse.TicketPatch) (*clearinghouse.TicketView, error) {
		got, patch = c, p
		return ticketView(9), nil
	}

	w := s.do(t, http.MethodPost, "/api/v1/trip_tickets", map[string]any{
		"customer_first_name": "Ada",
		"pick_up_location":    map[string]string{"address_1": "1 Main St"},
	})
	if w.Code != 201 {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if got != testCaller {
		t.Fatalf("caller = %+v", got)
	}
	if patch.CustomerFirstName == nil || *patch.CustomerFirstName != "Ada" || patch.PickUpLocation.Line1 != "1 Main St" {
		t.Fatalf("patch = %+v", patch)
	}
}

func TestReadOnlyUsersCannotMutate(t *testing.T) {
	s := newTestServer()
	s.tickets.create = func(clearinghouse.Caller, clearinghouse.TicketPatch) (*clearinghouse.TicketView, error) {
		t.Fatalf("service must not be called")
		return nil, nil
	}
	s.tickets.list = func(clearinghouse.Caller, clearinghouse.Filters, *time.Time) ([]clearinghouse.TicketView, error) {
		return nil, nil
	}

	if w := s.doAs(t, models.UserRoleReadOnly, http.MethodPost, "/api/v1/trip_tickets", map[string]any{}); w.Code != 401 {
		t.Fatalf("create status = %d", w.Code)
	}
	if w := s.doAs(t, models.UserRoleReadOnly, http.MethodGet, "/api/v1/trip_tickets", nil); w.Code != 200 {
		t.Fatalf("list status = %d", w.Code)
	}
}

func TestUpdateTicketResolvesRescind(t *testing.T) {
	cases := []struct {
		name string
		body map[string]any
		want clearinghouse.UpdateKind
	}{
		{"status", map[string]any{"status": "rescinded"}, clearinghouse.FieldUpdateWithRescind},
		{"flag", map[string]any{"rescinded": true, "trip_notes": "cancelled by rider"}, clearinghouse.FieldUpdateWithRescind},
		{"fields only", map[string]any{"trip_notes": "gate code 42"}, clearinghouse.FieldUpdate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer()
			var got clearinghouse.TicketUpdate
			s.tickets.update = func(_ clearinghouse.Caller, id uint, u clearinghouse.TicketUpdate) (*clearinghouse.TicketView, error) {
				if id != 4 {
					t.Fatalf("id = %d", id)
				}
				got = u
				return ticketView(4), nil
			}

			w := s.do(t, http.MethodPut, "/api/v1/trip_tickets/4", tc.body)
			if w.Code != 200 {
				t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
			}
			if got.Kind != tc.want {
				t.Fatalf("kind = %v, want %v", got.Kind, tc.want)
			}
		})
	}
}

func TestUpdateTicketRejectsOtherStatuses(t *testing.T) {
	s := newTestServer()
	s.tickets.update = func(clearinghouse.Caller, uint, clearinghouse.TicketUpdate) (*clearinghouse.TicketView, error) {
		t.Fatalf("service must not be called")
		return nil, nil
	}

	w := s.do(t, http.MethodPut, "/api/v1/trip_tickets/4", map[string]any{"status": "approved"})
	if w.Code != 422 {
		t.Fatalf("status = %d", w.Code)
	}
	if env := decodeError(t, w); env.Error.Fields["status"] == "" {
		t.Fatalf("expected status field error, got %v", env.Error.Fields)
	}
}

func TestRescindTicketEndpoint(t *testing.T) {
	s := newTestServer()
	called := false
	s.tickets.rescind = func(_ clearinghouse.Caller, id uint) (*clearinghouse.TicketView, error) {
		called = id == 8
		v := ticketView(8)
		v.Rescinded = true
		v.Status = clearinghouse.StatusRescinded
		return v, nil
	}

	w := s.do(t, http.MethodPut, "/api/v1/trip_tickets/8/rescind", nil)
	if w.Code != 200 || !called {
		t.Fatalf("status = %d called=%v", w.Code, called)
	}
	if !strings.Contains(w.Body.String(), `"status":"rescinded"`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestListTicketsParsesFilters(t *testing.T) {
	s := newTestServer()
	var got clearinghouse.Filters
	s.tickets.list = func(_ clearinghouse.Caller, f clearinghouse.Filters, since *time.Time) ([]clearinghouse.TicketView, error) {
		if since != nil {
			t.Fatalf("plain listing must not pass a watermark")
		}
		got = f
		return []clearinghouse.TicketView{*ticketView(1)}, nil
	}

	w := s.do(t, http.MethodGet, "/api/v1/trip_tickets?customer_name=ada&originating_provider_ids=2,5"+
		"&claim_status=pending&claim_status=Declined&seats_required_min=2&scheduling_priority=dropoff"+
		"&trip_time_start=2024-04-01T00:00:00Z&limit=20", nil)
	if w.Code != 200 {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	if got.CustomerName != "ada" || got.Limit != 20 || got.SchedulingPriority != models.SchedulingPriorityDropoff {
		t.Fatalf("filters = %+v", got)
	}
	if len(got.OriginatingProviderIDs) != 2 || got.OriginatingProviderIDs[1] != 5 {
		t.Fatalf("origin ids = %v", got.OriginatingProviderIDs)
	}
	if len(got.ClaimStatuses) != 2 || got.ClaimStatuses[1] != clearinghouse.StatusDeclined {
		t.Fatalf("statuses = %v", got.ClaimStatuses)
	}
	if got.SeatsRequiredMin == nil || *got.SeatsRequiredMin != 2 || got.SeatsRequiredMax != nil {
		t.Fatalf("seats = %v %v", got.SeatsRequiredMin, got.SeatsRequiredMax)
	}
	if got.TripTimeStart == nil || got.TripTimeStart.Year() != 2024 {
		t.Fatalf("trip time start = %v", got.TripTimeStart)
	}
}

func TestListTicketsRejectsBadFilters(t *testing.T) {
	s := newTestServer()
	w := s.do(t, http.MethodGet, "/api/v1/trip_tickets?seats_required_min=two&originating_provider_ids=x&trip_time_end=yesterday", nil)
	if w.Code != 422 {
		t.Fatalf("status = %d", w.Code)
	}
	env := decodeError(t, w)
	for _, field := range []string{"seats_required_min", "originating_provider_ids", "trip_time_end"} {
		if env.Error.Fields[field] == "" {
			t.Fatalf("missing %s in %v", field, env.Error.Fields)
		}
	}
}

func TestSyncReturnsNextWatermark(t *testing.T) {
	s := newTestServer()
	since := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	claimChange := since.Add(3 * time.Hour)
	s.tickets.list = func(_ clearinghouse.Caller, _ clearinghouse.Filters, got *time.Time) ([]clearinghouse.TicketView, error) {
		if got == nil || !got.Equal(since) {
			t.Fatalf("since = %v", got)
		}
		v := ticketView(1)
		v.UpdatedAt = since.Add(time.Hour)
		v.TripTicket.TripClaims = []models.TripClaim{{}}
		v.TripTicket.TripClaims[0].UpdatedAt = claimChange
		return []clearinghouse.TicketView{*v}, nil
	}

	w := s.do(t, http.MethodGet, "/api/v1/trip_tickets/sync?updated_since=2024-04-01T00:00:00Z", nil)
	if w.Code != 200 {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var body struct {
		UpdatedSince time.Time `json:"updated_since"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.UpdatedSince.Equal(claimChange) {
		t.Fatalf("watermark = %v, want %v", body.UpdatedSince, claimChange)
	}
}

func TestLimitedSyncWatermarkResumesPage(t *testing.T) {
	s := newTestServer()
	since := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	s.tickets.list = func(_ clearinghouse.Caller, filters clearinghouse.Filters, _ *time.Time) ([]clearinghouse.TicketView, error) {
		if filters.Limit != 2 {
			t.Fatalf("limit = %d", filters.Limit)
		}
		edited := ticketView(2)
		edited.UpdatedAt = since.Add(5 * time.Hour)
		claimed := ticketView(1)
		claimed.UpdatedAt = since.Add(time.Hour)
		claimed.TripTicket.TripClaims = []models.TripClaim{{}}
		claimed.TripTicket.TripClaims[0].UpdatedAt = since.Add(10 * time.Hour)
		return []clearinghouse.TicketView{*edited, *claimed}, nil
	}

	w := s.do(t, http.MethodGet, "/api/v1/trip_tickets/sync?updated_since=2024-04-01T00:00:00Z&limit=2", nil)
	if w.Code != 200 {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var body struct {
		UpdatedSince time.Time `json:"updated_since"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// the claimed ticket may share its change time with rows past the limit
	if want := since.Add(5 * time.Hour); !body.UpdatedSince.Equal(want) {
		t.Fatalf("watermark = %v, want %v", body.UpdatedSince, want)
	}
}

func TestClaimRoutes(t *testing.T) {
	s := newTestServer()
	claim := func(id uint, status models.TripClaimStatus) *models.TripClaim {
		c := &models.TripClaim{Status: status, ClaimantProviderID: testCaller.ProviderID}
		c.ID = id
		return c
	}
	fare := 12.5
	s.claims.create = func(c clearinghouse.Caller, ticketID uint, in clearinghouse.ClaimInput) (*models.TripClaim, error) {
		if ticketID != 6 || in.ProposedFare == nil || *in.ProposedFare != fare {
			t.Fatalf("create args: %d %+v", ticketID, in)
		}
		return claim(1, models.TripClaimStatusPending), nil
	}
	s.claims.approve = func(clearinghouse.Caller, uint) (*models.TripClaim, error) {
		return nil, clearinghouse.ErrConflictingApproval
	}
	s.claims.decline = func(_ clearinghouse.Caller, id uint) (*models.TripClaim, error) {
		return claim(id, models.TripClaimStatusDeclined), nil
	}
	s.claims.rescind = func(clearinghouse.Caller, uint) (*models.TripClaim, error) {
		return nil, clearinghouse.ErrInvalidTransition
	}
	s.claims.list = func(clearinghouse.Caller, uint) ([]models.TripClaim, error) {
		return []models.TripClaim{*claim(1, models.TripClaimStatusPending)}, nil
	}

	if w := s.do(t, http.MethodPost, "/api/v1/trip_tickets/6/trip_claims", map[string]any{"proposed_fare": fare}); w.Code != 201 {
		t.Fatalf("create status = %d body=%s", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodPost, "/api/v1/trip_claims/1/approve", nil); w.Code != 409 || decodeError(t, w).Error.Code != "conflicting_approval" {
		t.Fatalf("approve status = %d body=%s", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodPost, "/api/v1/trip_claims/2/decline", nil); w.Code != 200 || !strings.Contains(w.Body.String(), `"status":"declined"`) {
		t.Fatalf("decline status = %d body=%s", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodPost, "/api/v1/trip_claims/2/rescind", nil); w.Code != 409 {
		t.Fatalf("rescind status = %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/v1/trip_tickets/6/trip_claims", nil); w.Code != 200 {
		t.Fatalf("list status = %d", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/api/v1/trip_claims/abc/approve", nil); w.Code != 400 {
		t.Fatalf("bad id status = %d", w.Code)
	}
}

func TestUpdateClaimRoute(t *testing.T) {
	s := newTestServer()
	s.claims.update = func(c clearinghouse.Caller, id uint, in clearinghouse.ClaimInput) (*models.TripClaim, error) {
		if c != testCaller || in.ClaimantTripID != "T-77" || in.Notes != "van with lift" {
			t.Fatalf("update args: %+v %+v", c, in)
		}
		if id == 9 {
			return nil, clearinghouse.ErrInvalidTransition
		}
		claim := &models.TripClaim{ClaimantTripID: in.ClaimantTripID, Status: models.TripClaimStatusPending}
		claim.ID = id
		return claim, nil
	}
	body := map[string]any{"claimant_trip_id": "T-77", "notes": "van with lift"}

	w := s.do(t, http.MethodPut, "/api/v1/trip_claims/4", body)
	if w.Code != 200 || !strings.Contains(w.Body.String(), `"claimant_trip_id":"T-77"`) {
		t.Fatalf("update status = %d body=%s", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodPut, "/api/v1/trip_claims/9", body); w.Code != 409 {
		t.Fatalf("settled claim status = %d", w.Code)
	}
	if w := s.doAs(t, models.UserRoleReadOnly, http.MethodPut, "/api/v1/trip_claims/4", body); w.Code != 401 {
		t.Fatalf("read-only status = %d", w.Code)
	}
}

func TestPartnershipRoutes(t *testing.T) {
	s := newTestServer()
	s.partnerships.request = func(c clearinghouse.Caller, in clearinghouse.PartnershipInput) (*models.ProviderRelationship, error) {
		if in.CooperatingProviderID == 4 {
			return nil, clearinghouse.ErrDuplicateRelationship
		}
		return &models.ProviderRelationship{RequestingProviderID: c.ProviderID, CooperatingProviderID: in.CooperatingProviderID}, nil
	}
	var enabled *bool
	s.partnerships.autoApprove = func(_ clearinghouse.Caller, _ uint, on bool) (*models.ProviderRelationship, error) {
		enabled = &on
		return &models.ProviderRelationship{}, nil
	}

	if w := s.do(t, http.MethodPost, "/api/v1/partnerships", map[string]any{"cooperating_provider_id": 9}); w.Code != 201 {
		t.Fatalf("request status = %d body=%s", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodPost, "/api/v1/partnerships", map[string]any{"cooperating_provider_id": 4}); w.Code != 409 {
		t.Fatalf("duplicate status = %d", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/api/v1/partnerships", map[string]any{}); w.Code != 400 {
		t.Fatalf("missing provider status = %d", w.Code)
	}
	if w := s.do(t, http.MethodPut, "/api/v1/partnerships/2/auto_approve", map[string]any{"enabled": false}); w.Code != 200 || enabled == nil || *enabled {
		t.Fatalf("auto approve status = %d enabled=%v", w.Code, enabled)
	}
}

func TestProviderSummaryFormats(t *testing.T) {
	s := newTestServer()
	s.reports.summary = func(providerID uint, r reports.DateRange) (*reports.Summary, error) {
		if providerID != testCaller.ProviderID || r.From == nil || r.To != nil {
			t.Fatalf("args: %d %+v", providerID, r)
		}
		return &reports.Summary{
			ProviderID:  providerID,
			Range:       r,
			GeneratedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			Sections:    []reports.Section{{Title: "New Trip Tickets", Rows: []reports.Row{{Label: "Total new trips", Value: 2}}}},
		}, nil
	}

	w := s.do(t, http.MethodGet, "/api/v1/reports/provider_summary?from=2024-04-01T00:00:00Z", nil)
	if w.Code != 200 || !strings.Contains(w.Body.String(), `"Total new trips"`) {
		t.Fatalf("json status = %d body=%s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodGet, "/api/v1/reports/provider_summary?from=2024-04-01T00:00:00Z&format=pdf", nil)
	if w.Code != 200 || w.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("pdf status = %d type=%q", w.Code, w.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("body is not a PDF")
	}
}

func TestBulkImportUpload(t *testing.T) {
	s := newTestServer()
	s.bulk.imp = func(c clearinghouse.Caller, name string, data []byte) (*models.BulkOperation, error) {
		if name != "tickets.csv" || string(data) != "customer_first_name\nAda\n" {
			t.Fatalf("import args: %q %q", name, data)
		}
		return &models.BulkOperation{UserID: c.UserID, IsUpload: true, FileName: name, RowCount: 1}, nil
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "tickets.csv")
	if err != nil {
		t.Fatalf("form: %v", err)
	}
	part.Write([]byte("customer_first_name\nAda\n"))
	form.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bulk_operations/import", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", bearer(t, models.UserRoleScheduler))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != 201 || !strings.Contains(w.Body.String(), `"row_count":1`) {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
}

func TestBulkExportAndDownload(t *testing.T) {
	s := newTestServer()
	s.bulk.export = func(clearinghouse.Caller) (*models.BulkOperation, error) {
		return nil, bulk.ErrJobRunning
	}
	s.bulk.download = func(_ clearinghouse.Caller, id uint) (*models.BulkOperation, []byte, error) {
		if id != 3 {
			return nil, nil, clearinghouse.ErrNotFound
		}
		return &models.BulkOperation{FileName: "trip_tickets.csv"}, []byte("id\n"), nil
	}

	if w := s.do(t, http.MethodPost, "/api/v1/bulk_operations/export", nil); w.Code != 409 {
		t.Fatalf("export status = %d", w.Code)
	}
	w := s.do(t, http.MethodGet, "/api/v1/bulk_operations/3/download", nil)
	if w.Code != 200 || w.Body.String() != "id\n" {
		t.Fatalf("download status = %d body=%q", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "trip_tickets.csv") {
		t.Fatalf("disposition = %q", w.Header().Get("Content-Disposition"))
	}
	if w := s.do(t, http.MethodGet, "/api/v1/bulk_operations/4/download", nil); w.Code != 404 {
		t.Fatalf("missing download status = %d", w.Code)
	}
}

func TestRequestIDEchoedInErrors(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/trip_tickets", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-77")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != 401 {
		t.Fatalf("status = %d", w.Code)
	}
	if env := decodeError(t, w); env.RequestID != "req-77" {
		t.Fatalf("request id = %q", env.RequestID)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer()
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != 200 || !strings.Contains(w.Body.String(), `"database":"ok"`) {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	handler := Health(map[string]HealthCheck{"redis": func(context.Context) error { return errors.New("down") }})
	r := gin.New()
	r.GET("/healthz", handler)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != 503 || !strings.Contains(w.Body.String(), `"status":"degraded"`) {
		t.Fatalf("degraded status = %d body=%s", w.Code, w.Body.String())
	}
}
