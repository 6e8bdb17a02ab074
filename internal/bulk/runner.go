// Package bulk moves trip tickets in and out of the clearinghouse as CSV
// files.
package bulk

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chachabrian/clearinghouse-backend/internal/clearinghouse"
	"github.com/chachabrian/clearinghouse-backend/internal/models"
	"github.com/chachabrian/clearinghouse-backend/internal/services"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrJobRunning = errors.New("another bulk operation is running for this user")

const lockTTL = 10 * time.Minute

var tracer = otel.Tracer("github.com/chachabrian/clearinghouse-backend/internal/bulk")

// TicketStore is the part of the clearinghouse a bulk run reads and writes.
type TicketStore interface {
	ListVisibleTickets(ctx context.Context, caller clearinghouse.Caller, filters clearinghouse.Filters, updatedSince *time.Time) ([]clearinghouse.TicketView, error)
	CreateTicket(ctx context.Context, caller clearinghouse.Caller, patch clearinghouse.TicketPatch) (*clearinghouse.TicketView, error)
	UpdateTicket(ctx context.Context, caller clearinghouse.Caller, ticketID uint, update clearinghouse.TicketUpdate) (*clearinghouse.TicketView, error)
}

type Runner struct {
	tickets     TicketStore
	ops         OperationStore
	files       services.FileStore
	locker      services.Locker
	exportLimit int
	now         func() time.Time
}

// NewRunner builds a runner. locker may be nil, in which case runs for the
// same user are not serialized.
func NewRunner(tickets TicketStore, ops OperationStore, files services.FileStore, locker services.Locker, exportLimit int) *Runner {
	return &Runner{
		tickets:     tickets,
		ops:         ops,
		files:       files,
		locker:      locker,
		exportLimit: exportLimit,
		now:         time.Now,
	}
}

func (r *Runner) List(ctx context.Context, caller clearinghouse.Caller, limit int) ([]models.BulkOperation, error) {
	return r.ops.ListForUser(ctx, caller.UserID, limit)
}

// Download returns one of the caller's operations and its stored file.
func (r *Runner) Download(ctx context.Context, caller clearinghouse.Caller, id uint) (*models.BulkOperation, []byte, error) {
	op, err := r.ops.Find(ctx, caller.UserID, id)
	if err != nil {
		return nil, nil, err
	}
	if op.StorageKey == "" {
		return nil, nil, clearinghouse.ErrNotFound
	}
	data, err := r.files.Read(ctx, op.StorageKey)
	if errors.Is(err, services.ErrFileNotFound) {
		return nil, nil, clearinghouse.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return op, data, nil
}

// Export writes the tickets the caller can see that changed since the
// user's last export.
func (r *Runner) Export(ctx context.Context, caller clearinghouse.Caller) (op *models.BulkOperation, err error) {
	ctx, span := tracer.Start(ctx, "bulk.export")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int("user.id", int(caller.UserID)), attribute.Int("provider.id", int(caller.ProviderID)))

	release, err := r.lock(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	since, err := r.ops.LastExportedTimestamp(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	views, err := r.tickets.ListVisibleTickets(ctx, caller, clearinghouse.Filters{Limit: r.exportLimit}, since)
	if err != nil {
		return nil, err
	}

	data, err := encodeTickets(views)
	if err != nil {
		return nil, err
	}

	op = &models.BulkOperation{
		UserID:                caller.UserID,
		FileName:              exportFileName(r.now()),
		RowCount:              len(views),
		RowErrors:             models.StringList{},
		LastExportedTimestamp: clearinghouse.NextWatermark(views, r.exportLimit, since),
	}
	op.StorageKey, err = r.files.Save(ctx, folderFor(caller.UserID), op.FileName, "text/csv", data)
	if err != nil {
		return nil, err
	}
	op.Completed = true
	if err := r.ops.Create(ctx, op); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("bulk.rows", op.RowCount))
	return op, nil
}

// Import applies every row of a CSV file. Rows with an id update the
// caller's ticket, rows without one create a ticket. A failing row is
// recorded and the rest of the file still runs.
func (r *Runner) Import(ctx context.Context, caller clearinghouse.Caller, fileName string, data []byte) (op *models.BulkOperation, err error) {
	ctx, span := tracer.Start(ctx, "bulk.import")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int("user.id", int(caller.UserID)), attribute.Int("provider.id", int(caller.ProviderID)))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	head, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, validationFailure("file", "is empty")
	}
	if err != nil {
		return nil, validationFailure("file", "is not valid CSV")
	}
	layout, err := parseHeader(head)
	if err != nil {
		return nil, err
	}

	release, err := r.lock(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	op = &models.BulkOperation{
		UserID:    caller.UserID,
		IsUpload:  true,
		FileName:  fileName,
		RowErrors: models.StringList{},
	}
	op.StorageKey, err = r.files.Save(ctx, folderFor(caller.UserID), uploadFileName(r.now(), fileName), "text/csv", data)
	if err != nil {
		return nil, err
	}

	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		op.RowCount++
		if err != nil {
			op.RowErrors = append(op.RowErrors, fmt.Sprintf("row %d: malformed CSV", row))
			continue
		}
		if blankRecord(record) {
			op.RowCount--
			continue
		}
		if err := r.importRow(ctx, caller, layout, record); err != nil {
			op.RowErrors = append(op.RowErrors, fmt.Sprintf("row %d: %s", row, rowMessage(err)))
		}
	}

	op.ErrorCount = len(op.RowErrors)
	op.Completed = true
	if err := r.ops.Create(ctx, op); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("bulk.rows", op.RowCount), attribute.Int("bulk.errors", op.ErrorCount))
	return op, nil
}

// headerLayout is the parsed header: the column at each position plus where
// the id and rescinded cells live.
type headerLayout struct {
	columns   []column
	id        int
	rescinded int
}

func parseHeader(head []string) (headerLayout, error) {
	layout := headerLayout{id: -1, rescinded: -1}
	v := &clearinghouse.ValidationError{}
	for i, name := range head {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		switch name {
		case "id":
			layout.id = i
		case "rescinded":
			layout.rescinded = i
		}
		col, ok := columnByName(name)
		if !ok {
			v.Add("file", fmt.Sprintf("unknown column %q", name))
		}
		layout.columns = append(layout.columns, col)
	}
	return layout, v.OrNil()
}

func (r *Runner) importRow(ctx context.Context, caller clearinghouse.Caller, layout headerLayout, record []string) error {
	var patch clearinghouse.TicketPatch
	for i, col := range layout.columns {
		if col.set == nil || i >= len(record) {
			continue
		}
		if err := col.set(&patch, strings.TrimSpace(record[i])); err != nil {
			return err
		}
	}

	id := cell(record, layout.id)
	if id == "" {
		if rescinded, _ := parseBool(cell(record, layout.rescinded)); rescinded != nil && *rescinded {
			return errors.New("a new ticket cannot be rescinded")
		}
		_, err := r.tickets.CreateTicket(ctx, caller, patch)
		return err
	}

	ticketID, err := strconv.ParseUint(id, 10, 64)
	if err != nil || ticketID == 0 {
		return fmt.Errorf("id %q is not a ticket id", id)
	}
	rescinded, err := parseBool(cell(record, layout.rescinded))
	if err != nil {
		return fmt.Errorf("rescinded %w", err)
	}
	kind, err := clearinghouse.ResolveUpdateKind("", rescinded)
	if err != nil {
		return err
	}
	_, err = r.tickets.UpdateTicket(ctx, caller, uint(ticketID), clearinghouse.TicketUpdate{Kind: kind, Patch: patch})
	return err
}

func (r *Runner) lock(ctx context.Context, userID uint) (func(), error) {
	if r.locker == nil {
		return func() {}, nil
	}
	release, err := r.locker.Acquire(ctx, fmt.Sprintf("bulk:user:%d", userID), lockTTL)
	if errors.Is(err, services.ErrLocked) {
		return nil, ErrJobRunning
	}
	if err != nil {
		return nil, err
	}
	return func() { _ = release(context.WithoutCancel(ctx)) }, nil
}

func encodeTickets(views []clearinghouse.TicketView) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header()); err != nil {
		return nil, err
	}
	record := make([]string, len(columns))
	for i := range views {
		for j, col := range columns {
			record[j] = col.get(&views[i])
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return buf.Bytes(), nil
}

func exportFileName(now time.Time) string {
	return fmt.Sprintf("trip_tickets_%s_%s.csv", now.UTC().Format("20060102T150405Z"), uuid.NewString()[:8])
}

func uploadFileName(now time.Time, original string) string {
	return fmt.Sprintf("import_%s_%s_%s", now.UTC().Format("20060102T150405Z"), uuid.NewString()[:8], original)
}

func folderFor(userID uint) string {
	return fmt.Sprintf("bulk/%d", userID)
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func blankRecord(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// rowMessage flattens validation errors into "field msg" pairs.
func rowMessage(err error) string {
	var v *clearinghouse.ValidationError
	if errors.As(err, &v) {
		return strings.TrimPrefix(v.Error(), "validation failed: ")
	}
	return err.Error()
}

func validationFailure(field, msg string) error {
	v := &clearinghouse.ValidationError{}
	v.Add(field, msg)
	return v
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
