package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/AnTengye/auctionhub/backend/model"
	"github.com/AnTengye/auctionhub/backend/pkg/logger"
	"github.com/AnTengye/auctionhub/backend/service"
	"github.com/gin-gonic/gin"
)

// PropertyImporter runs one bulk import.
type PropertyImporter interface {
	Run(ctx context.Context, in service.ImportInput) (*model.ImportReport, error)
}

var sheetExts = map[string]bool{".xlsx": true, ".xlsm": true, ".csv": true}

type ImportHandler struct {
	importer       PropertyImporter
	maxUploadBytes int64
}

func NewImportHandler(importer PropertyImporter, maxUploadMB int64) *ImportHandler {
	return &ImportHandler{
		importer:       importer,
		maxUploadBytes: maxUploadMB << 20,
	}
}

// Import accepts a multipart upload with a "sheet" file and an optional
// "images" zip, and returns the import report.
func (h *ImportHandler) Import(c *gin.Context) {
	ctx := c.Request.Context()
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	sheetHeader, err := c.FormFile("sheet")
	if err != nil {
		h.rejectUpload(c, err, "No spreadsheet provided")
		return
	}
	ext := strings.ToLower(filepath.Ext(sheetHeader.Filename))
	if !sheetExts[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only XLSX and CSV spreadsheets are allowed"})
		return
	}
	sheet, err := readFormFile(sheetHeader)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read spreadsheet"})
		return
	}

	var archive []byte
	archiveHeader, err := c.FormFile("images")
	switch {
	case err == nil:
		if strings.ToLower(filepath.Ext(archiveHeader.Filename)) != ".zip" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Images must be uploaded as a ZIP archive"})
			return
		}
		if archive, err = readFormFile(archiveHeader); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image archive"})
			return
		}
	case errors.Is(err, http.ErrMissingFile):
	default:
		h.rejectUpload(c, err, "Invalid image archive")
		return
	}

	logger.Info(ctx, "import upload received", "sheet", sheetHeader.Filename, "sheet_bytes", len(sheet), "archive_bytes", len(archive))

	report, err := h.importer.Run(ctx, service.ImportInput{
		Sheet:     sheet,
		SheetName: sheetHeader.Filename,
		Archive:   archive,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, report)
	case errors.Is(err, service.ErrNoValidRows):
		errs := []string{}
		if report != nil {
			errs = report.Errors
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no valid rows", "errors": errs})
	case errors.Is(err, service.ErrUnreadableSheet):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Warn(ctx, "import aborted", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Import aborted"})
	default:
		logger.Error(ctx, "import failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Import failed"})
	}
}

func (h *ImportHandler) rejectUpload(c *gin.Context, err error, msg string) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Upload exceeds %d MB limit", h.maxUploadBytes>>20)})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}
