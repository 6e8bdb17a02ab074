package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/chachabrian/clearinghouse-backend/internal/clearinghouse"
	"github.com/chachabrian/clearinghouse-backend/internal/reports"
	"github.com/gin-gonic/gin"
)

type ReportService interface {
	ProviderSummary(ctx context.Context, providerID uint, r reports.DateRange) (*reports.Summary, error)
	ProviderName(ctx context.Context, providerID uint) (string, error)
}

// ProviderSummaryReport serves the caller's provider summary as JSON, or as
// a PDF download when format=pdf.
func ProviderSummaryReport(svc ReportService) gin.HandlerFunc {
	return func(c *gin.Context) {
		v := &clearinghouse.ValidationError{}
		from, err := parseTimeParam(c, "from")
		if err != nil {
			v.Add("from", "must be an RFC 3339 timestamp")
		}
		to, err := parseTimeParam(c, "to")
		if err != nil {
			v.Add("to", "must be an RFC 3339 timestamp")
		}
		if err := v.OrNil(); err != nil {
			respondError(c, err)
			return
		}

		caller := callerFrom(c)
		summary, err := svc.ProviderSummary(c.Request.Context(), caller.ProviderID, reports.DateRange{From: from, To: to})
		if err != nil {
			respondError(c, err)
			return
		}

		if c.Query("format") != "pdf" {
			c.JSON(200, summary)
			return
		}

		name, err := svc.ProviderName(c.Request.Context(), caller.ProviderID)
		if err != nil {
			slog.Warn("provider name lookup failed", "provider_id", caller.ProviderID, "error", err)
		}
		pdfBytes, err := reports.RenderPDF(summary, name)
		if err != nil {
			respondError(c, err)
			return
		}

		filename := fmt.Sprintf("provider_summary_%d_%s.pdf", caller.ProviderID, summary.GeneratedAt.Format("20060102"))
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		c.Data(http.StatusOK, "application/pdf", pdfBytes)
	}
}
