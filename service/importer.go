package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AnTengye/auctionhub/backend/config"
	"github.com/AnTengye/auctionhub/backend/model"
	"github.com/AnTengye/auctionhub/backend/pkg/logger"
	"github.com/AnTengye/auctionhub/backend/store"
)

var ErrNoValidRows = errors.New("no valid rows")

// ImportInput is one uploaded batch.
type ImportInput struct {
	Sheet       []byte
	SheetName   string
	Archive     []byte
	Placeholder string // overrides the settings placeholder when set
}

// Importer runs the bulk property ingestion pipeline.
type Importer struct {
	parser        *RowParser
	store         store.PropertyStore
	settings      SettingsSource
	workers       int
	maxEntryBytes int64
	opTimeout     time.Duration
}

func NewImporter(parser *RowParser, propertyStore store.PropertyStore, settings SettingsSource, cfg *config.ImportConfig) *Importer {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Importer{
		parser:        parser,
		store:         propertyStore,
		settings:      settings,
		workers:       workers,
		maxEntryBytes: cfg.MaxImageBytes,
		opTimeout:     time.Duration(cfg.OpTimeoutSeconds) * time.Second,
	}
}

// storeCtx bounds a single store call.
func (imp *Importer) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if imp.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, imp.opTimeout)
}

type rowResult struct {
	property *model.Property
	outcome  RowOutcome
	message  string
}

// Run validates every row, persists the valid ones and reports per-row
// problems in row order. It fails as a whole only for an unreadable sheet,
// a batch with no valid rows, or ctx cancellation. With ErrNoValidRows the
// returned report still carries the validation errors.
func (imp *Importer) Run(ctx context.Context, in ImportInput) (*model.ImportReport, error) {
	batchID := uuid.New().String()
	ctx = logger.WithBatch(ctx, batchID)
	start := time.Now()

	rows, err := ReadSheet(in.SheetName, in.Sheet)
	if err != nil {
		logger.Warn(ctx, "import rejected", "sheet", in.SheetName, "error", err)
		return nil, err
	}

	placeholder := in.Placeholder
	if placeholder == "" && imp.settings != nil {
		placeholder = imp.settings.PlaceholderImage(ctx)
	}

	logger.Info(ctx, "import started", "sheet", in.SheetName, "rows", len(rows), "archive_bytes", len(in.Archive))
	index := IndexArchive(ctx, in.Archive, imp.maxEntryBytes)

	results, err := imp.parseRows(ctx, rows, index, placeholder)
	if err != nil {
		return nil, err
	}

	report := &model.ImportReport{Errors: []string{}}
	var valid []rowNumbered
	skipped := 0
	for i, res := range results {
		switch res.outcome {
		case OutcomeValid:
			if res.property != nil {
				valid = append(valid, rowNumbered{rowNum: i + 2, property: res.property})
			}
		case OutcomeInvalid:
			report.Errors = append(report.Errors, res.message)
		case OutcomeSkipped:
			skipped++
		}
	}

	if len(valid) == 0 {
		logger.Warn(ctx, "import produced no valid rows", "errors", len(report.Errors), "skipped", skipped)
		return report, ErrNoValidRows
	}

	if err := imp.persist(ctx, valid, report); err != nil {
		return nil, err
	}

	logger.Info(ctx, "import finished",
		"persisted", report.PersistedCount,
		"duplicates", report.DuplicateCount,
		"failed", report.FailedCount,
		"invalid", len(report.Errors)-report.FailedCount-report.DuplicateCount,
		"skipped", skipped,
		"duration", time.Since(start),
	)
	return report, nil
}

type rowNumbered struct {
	rowNum   int
	property *model.Property
}

// parseRows fans rows out to a bounded pool. Results land at their row index
// so ordering does not depend on completion order.
func (imp *Importer) parseRows(ctx context.Context, rows []model.RawRecord, index ArchiveIndex, placeholder string) ([]rowResult, error) {
	results := make([]rowResult, len(rows))
	for i, raw := range rows {
		if raw == nil {
			results[i] = rowResult{outcome: OutcomeSkipped}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imp.workers)
	for i, raw := range rows {
		if raw == nil {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			prop, outcome, msg := imp.parser.Parse(gctx, i+2, raw, index, placeholder)
			results[i] = rowResult{property: prop, outcome: outcome, message: msg}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// persist inserts properties in row order. An id already in the store, or one
// inserted concurrently by another batch, counts as a duplicate.
func (imp *Importer) persist(ctx context.Context, valid []rowNumbered, report *model.ImportReport) error {
	for _, v := range valid {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := v.property.ID

		opCtx, cancel := imp.storeCtx(ctx)
		exists, err := imp.store.Exists(opCtx, id)
		cancel()
		if err != nil {
			report.FailedCount++
			report.Errors = append(report.Errors, fmt.Sprintf("Row %d: Failed to save %s - %v", v.rowNum, id, err))
			logger.Error(ctx, "existence check failed", "row", v.rowNum, "id", id, "error", err)
			continue
		}
		if exists {
			report.DuplicateCount++
			report.Errors = append(report.Errors, fmt.Sprintf("%s already exists", id))
			continue
		}

		opCtx, cancel = imp.storeCtx(ctx)
		err = imp.store.Insert(opCtx, v.property)
		cancel()
		switch {
		case err == nil:
			report.PersistedCount++
		case errors.Is(err, store.ErrDuplicate):
			report.DuplicateCount++
			report.Errors = append(report.Errors, fmt.Sprintf("%s already exists", id))
		default:
			report.FailedCount++
			report.Errors = append(report.Errors, fmt.Sprintf("Row %d: Failed to save %s - %v", v.rowNum, id, err))
			logger.Error(ctx, "failed to save property", "row", v.rowNum, "id", id, "error", err)
		}
	}
	return nil
}
