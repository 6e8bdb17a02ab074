package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/chachabrian/clearinghouse-backend/internal/clearinghouse"
	"github.com/chachabrian/clearinghouse-backend/internal/models"
	"github.com/gin-gonic/gin"
)

const maxImportBytes = 10 << 20

type BulkService interface {
	Export(ctx context.Context, caller clearinghouse.Caller) (*models.BulkOperation, error)
	Import(ctx context.Context, caller clearinghouse.Caller, fileName string, data []byte) (*models.BulkOperation, error)
	List(ctx context.Context, caller clearinghouse.Caller, limit int) ([]models.BulkOperation, error)
	Download(ctx context.Context, caller clearinghouse.Caller, id uint) (*models.BulkOperation, []byte, error)
}

func ListBulkOperations(svc BulkService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "25"))
		if err != nil || limit < 0 {
			badRequest(c, "Invalid limit")
			return
		}

		ops, err := svc.List(c.Request.Context(), callerFrom(c), limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"bulk_operations": ops})
	}
}

func ExportTickets(svc BulkService) gin.HandlerFunc {
	return func(c *gin.Context) {
		op, err := svc.Export(c.Request.Context(), callerFrom(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(201, op)
	}
}

// ImportTickets reads the multipart "file" field and applies it row by row.
func ImportTickets(svc BulkService) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, err := c.FormFile("file")
		if err != nil {
			badRequest(c, "CSV file is required")
			return
		}
		if file.Size > maxImportBytes {
			abortWith(c, http.StatusRequestEntityTooLarge, "file_too_large", "CSV file exceeds 10MB", nil)
			return
		}

		src, err := file.Open()
		if err != nil {
			badRequest(c, "Failed to open file")
			return
		}
		defer src.Close()

		data, err := io.ReadAll(io.LimitReader(src, maxImportBytes))
		if err != nil {
			badRequest(c, "Failed to read file")
			return
		}

		op, err := svc.Import(c.Request.Context(), callerFrom(c), filepath.Base(file.Filename), data)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(201, op)
	}
}

func DownloadBulkFile(svc BulkService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}

		op, data, err := svc.Download(c.Request.Context(), callerFrom(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filepath.Base(op.FileName)))
		c.Data(http.StatusOK, "text/csv", data)
	}
}
