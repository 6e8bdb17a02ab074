package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/chachabrian/clearinghouse-backend/internal/clearinghouse"
	"github.com/chachabrian/clearinghouse-backend/internal/models"
	"github.com/gin-gonic/gin"
)

type TicketService interface {
	ListVisibleTickets(ctx context.Context, caller clearinghouse.Caller, filters clearinghouse.Filters, updatedSince *time.Time) ([]clearinghouse.TicketView, error)
	CreateTicket(ctx context.Context, caller clearinghouse.Caller, patch clearinghouse.TicketPatch) (*clearinghouse.TicketView, error)
	GetTicket(ctx context.Context, caller clearinghouse.Caller, ticketID uint) (*clearinghouse.TicketView, error)
	UpdateTicket(ctx context.Context, caller clearinghouse.Caller, ticketID uint, update clearinghouse.TicketUpdate) (*clearinghouse.TicketView, error)
	RescindTicket(ctx context.Context, caller clearinghouse.Caller, ticketID uint) (*clearinghouse.TicketView, error)
}

// UpdateTicketInput is a ticket patch plus the two ways of asking for
// rescission.
type UpdateTicketInput struct {
	clearinghouse.TicketPatch
	Status    string `json:"status"`
	Rescinded *bool  `json:"rescinded"`
}

// ListTickets lists visible tickets narrowed by query filters.
func ListTickets(svc TicketService) gin.HandlerFunc {
	return func(c *gin.Context) {
		filters, err := parseFilters(c)
		if err != nil {
			respondError(c, err)
			return
		}

		views, err := svc.ListVisibleTickets(c.Request.Context(), callerFrom(c), filters, nil)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"trip_tickets": views})
	}
}

// SyncTickets returns tickets changed after updated_since together with the
// watermark to send next time.
func SyncTickets(svc TicketService) gin.HandlerFunc {
	return func(c *gin.Context) {
		filters, err := parseFilters(c)
		if err != nil {
			respondError(c, err)
			return
		}
		since, err := parseTimeParam(c, "updated_since")
		if err != nil {
			respondError(c, err)
			return
		}

		views, err := svc.ListVisibleTickets(c.Request.Context(), callerFrom(c), filters, since)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"trip_tickets":  views,
			"updated_since": clearinghouse.NextWatermark(views, filters.Limit, since),
		})
	}
}

func CreateTicket(svc TicketService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch clearinghouse.TicketPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			badRequest(c, err.Error())
			return
		}

		view, err := svc.CreateTicket(c.Request.Context(), callerFrom(c), patch)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(201, view)
	}
}

func GetTicket(svc TicketService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}

		view, err := svc.GetTicket(c.Request.Context(), callerFrom(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, view)
	}
}

func UpdateTicket(svc TicketService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}

		var input UpdateTicketInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err.Error())
			return
		}
		kind, err := clearinghouse.ResolveUpdateKind(input.Status, input.Rescinded)
		if err != nil {
			respondError(c, err)
			return
		}

		view, err := svc.UpdateTicket(c.Request.Context(), callerFrom(c), id, clearinghouse.TicketUpdate{
			Kind:  kind,
			Patch: input.TicketPatch,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, view)
	}
}

func RescindTicket(svc TicketService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}

		view, err := svc.RescindTicket(c.Request.Context(), callerFrom(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, view)
	}
}

func parseFilters(c *gin.Context) (clearinghouse.Filters, error) {
	v := &clearinghouse.ValidationError{}
	f := clearinghouse.Filters{
		CustomerName:           c.Query("customer_name"),
		CustomerAddressOrPhone: c.Query("customer_address_or_phone"),
		PickUpAddress:          c.Query("pick_up_address"),
		DropOffAddress:         c.Query("drop_off_address"),
		SchedulingPriority:     models.SchedulingPriority(c.Query("scheduling_priority")),
		CustomerIdentifiers:    c.Query("customer_identifiers"),
	}

	f.OriginatingProviderIDs = parseIDList(c, "originating_provider_ids", v)
	f.ClaimingProviderIDs = parseIDList(c, "claiming_provider_ids", v)
	for _, status := range queryList(c, "claim_status") {
		f.ClaimStatuses = append(f.ClaimStatuses, clearinghouse.TicketStatus(strings.ToLower(status)))
	}
	f.SeatsRequiredMin = parseIntParam(c, "seats_required_min", v)
	f.SeatsRequiredMax = parseIntParam(c, "seats_required_max", v)
	if limit := parseIntParam(c, "limit", v); limit != nil {
		f.Limit = *limit
	}

	var err error
	if f.TripTimeStart, err = parseTimeParam(c, "trip_time_start"); err != nil {
		v.Add("trip_time_start", "must be an RFC 3339 timestamp")
	}
	if f.TripTimeEnd, err = parseTimeParam(c, "trip_time_end"); err != nil {
		v.Add("trip_time_end", "must be an RFC 3339 timestamp")
	}
	return f, v.OrNil()
}

// queryList accepts both repeated parameters and comma separated values.
func queryList(c *gin.Context, name string) []string {
	var out []string
	for _, raw := range append(c.QueryArray(name), c.QueryArray(name+"[]")...) {
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

func parseIDList(c *gin.Context, name string, v *clearinghouse.ValidationError) []uint {
	var ids []uint
	for _, item := range queryList(c, name) {
		id, err := strconv.ParseUint(item, 10, 64)
		if err != nil || id == 0 {
			v.Add(name, "must be a list of ids")
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids
}

func parseIntParam(c *gin.Context, name string, v *clearinghouse.ValidationError) *int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		v.Add(name, "must be an integer")
		return nil
	}
	return &n
}

func parseTimeParam(c *gin.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		v := &clearinghouse.ValidationError{}
		v.Add(name, "must be an RFC 3339 timestamp")
		return nil, v
	}
	return &t, nil
}
