package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AnTengye/auctionhub/backend/config"
	"github.com/AnTengye/auctionhub/backend/model"
	"github.com/AnTengye/auctionhub/backend/store"
)

const importHeader = "ID,Name,Property Type,Location,State,Reserve Price,Auction Date,Images\n"

func newTestImporter(t *testing.T, propertyStore store.PropertyStore) (*Importer, *fakeStorage) {
	t.Helper()
	cfg := &config.ImportConfig{
		Workers:             4,
		FetchTimeoutSeconds: 2,
		MaxRedirects:        5,
		MaxImageBytes:       1 << 20,
		MaxWidth:            200,
		MaxHeight:           200,
		JPEGQuality:         80,
		OpTimeoutSeconds:    5,
	}
	storage := newFakeStorage()
	parser := NewRowParser(NewImageFetcher(cfg), NewImageNormalizer(storage, cfg), NewNameResolver(&echoNaming{}, 0))
	return NewImporter(parser, propertyStore, StaticSettings{Placeholder: testPlaceholder}, cfg), storage
}

func TestImporterEndToEnd(t *testing.T) {
	sheet := importHeader +
		"A-1,Sea Facing Flat,Flat,Juhu,Maharashtra,100000,2024-09-01,\n" +
		"A-2,Missing State,Shop,Andheri,,50000,2024-09-02,\n" +
		"A-3,Ignored,Others,Worli,Maharashtra,90000,2024-09-03,\n"

	propertyStore := store.NewMemoryStore(0)
	imp, _ := newTestImporter(t, propertyStore)

	report, err := imp.Run(context.Background(), ImportInput{Sheet: []byte(sheet), SheetName: "batch.csv"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if report.PersistedCount != 1 || report.FailedCount != 0 || report.DuplicateCount != 0 {
		t.Errorf("Unexpected counts: %+v", report)
	}
	if len(report.Errors) != 1 || report.Errors[0] != "Row 3: Missing required field - state" {
		t.Errorf("Unexpected errors: %v", report.Errors)
	}

	prop, err := propertyStore.Get(context.Background(), "A-1")
	if err != nil {
		t.Fatalf("Expected A-1 to be persisted: %v", err)
	}
	if prop.Name != "Sea Facing Flat" {
		t.Errorf("Expected explicit name, got %q", prop.Name)
	}
	if !prop.EMD.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("Expected derived emd 10000, got %s", prop.EMD)
	}
	if len(prop.Images) != 1 || prop.Images[0] != testPlaceholder {
		t.Errorf("Expected placeholder image, got %v", prop.Images)
	}
	if _, err := propertyStore.Get(context.Background(), "A-3"); !errors.Is(err, store.ErrNotFound) {
		t.Error("Expected Others row not to be persisted")
	}
	if n, _ := propertyStore.Count(context.Background()); n != 1 {
		t.Errorf("Expected 1 stored property, got %d", n)
	}
}

func TestImporterResubmissionReportsDuplicates(t *testing.T) {
	sheet := importHeader +
		"B-1,One,Flat,Pune,Maharashtra,100000,2024-09-01,\n" +
		"B-2,Two,Plot,Nashik,Maharashtra,0,2024-09-01,\n" +
		",,Shop,Thane,Maharashtra,200000,2024-09-05,\n"

	propertyStore := store.NewMemoryStore(0)
	imp, _ := newTestImporter(t, propertyStore)
	input := ImportInput{Sheet: []byte(sheet), SheetName: "batch.csv"}

	first, err := imp.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if first.PersistedCount != 2 || first.DuplicateCount != 0 {
		t.Fatalf("Unexpected first run: %+v", first)
	}
	if len(first.Errors) != 1 || first.Errors[0] != "Row 3: Invalid reserve price - 0" {
		t.Errorf("Unexpected first run errors: %v", first.Errors)
	}

	second, err := imp.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if second.PersistedCount != 0 || second.DuplicateCount != 2 {
		t.Errorf("Unexpected second run: %+v", second)
	}
	if len(second.Errors) != 3 || second.Errors[0] != first.Errors[0] {
		t.Fatalf("Unexpected second run errors: %v", second.Errors)
	}
	if second.Errors[1] != "B-1 already exists" {
		t.Errorf("Expected duplicate notice, got %q", second.Errors[1])
	}
	if !strings.HasPrefix(second.Errors[2], "P-") || !strings.HasSuffix(second.Errors[2], " already exists") {
		t.Errorf("Expected derived id duplicate notice, got %q", second.Errors[2])
	}
}

func TestImporterRemote404UsesPlaceholder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	sheet := importHeader + "C-1,Flat,Flat,Pune,Maharashtra,100000,2024-09-01," + server.URL + "/front.jpg\n"
	propertyStore := store.NewMemoryStore(0)
	imp, storage := newTestImporter(t, propertyStore)

	report, err := imp.Run(context.Background(), ImportInput{Sheet: []byte(sheet), SheetName: "batch.csv"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if report.PersistedCount != 1 || len(report.Errors) != 0 {
		t.Errorf("Unexpected report: %+v", report)
	}
	prop, _ := propertyStore.Get(context.Background(), "C-1")
	if len(prop.Images) != 1 || prop.Images[0] != testPlaceholder {
		t.Errorf("Expected placeholder image, got %v", prop.Images)
	}
	if storage.count() != 0 {
		t.Errorf("Expected nothing stored, got %d objects", storage.count())
	}
}

func TestImporterArchiveImages(t *testing.T) {
	archive := makeZip(t,
		zipEntry{"photos/front.jpg", makeJPEG(t, 300, 100)},
		zipEntry{"photos/side.png", makePNG(t, 20, 20)},
	)
	sheet := importHeader + "D-1,Flat,Flat,Pune,Maharashtra,100000,2024-09-01,\"FRONT.jpg, side.png, absent.jpg\"\n"

	propertyStore := store.NewMemoryStore(0)
	imp, storage := newTestImporter(t, propertyStore)

	report, err := imp.Run(context.Background(), ImportInput{Sheet: []byte(sheet), SheetName: "batch.csv", Archive: archive})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if report.PersistedCount != 1 {
		t.Fatalf("Unexpected report: %+v", report)
	}
	prop, _ := propertyStore.Get(context.Background(), "D-1")
	if len(prop.Images) != 2 {
		t.Fatalf("Expected 2 images, got %v", prop.Images)
	}
	for _, ref := range prop.Images {
		if !strings.HasPrefix(ref, "mem://properties/") {
			t.Errorf("Unexpected image reference %s", ref)
		}
	}
	if storage.count() != 2 {
		t.Errorf("Expected 2 stored objects, got %d", storage.count())
	}
}

func TestImporterCorruptArchiveImageUsesBatchPlaceholder(t *testing.T) {
	archive := makeZip(t,
		zipEntry{"front.jpg", makeJPEG(t, 30, 30)},
		zipEntry{"broken.jpg", []byte("not really a jpeg")},
	)
	sheet := importHeader + "K-1,Flat,Flat,Pune,Maharashtra,100000,2024-09-01,\"front.jpg;broken.jpg\"\n"

	propertyStore := store.NewMemoryStore(0)
	imp, _ := newTestImporter(t, propertyStore)

	_, err := imp.Run(context.Background(), ImportInput{
		Sheet:       []byte(sheet),
		SheetName:   "batch.csv",
		Archive:     archive,
		Placeholder: "https://cdn.example.com/batch-placeholder.jpg",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	prop, _ := propertyStore.Get(context.Background(), "K-1")
	if len(prop.Images) != 2 {
		t.Fatalf("Expected stored image plus placeholder, got %v", prop.Images)
	}
	if !strings.HasPrefix(prop.Images[0], "mem://properties/") {
		t.Errorf("Unexpected first image %s", prop.Images[0])
	}
	if prop.Images[1] != "https://cdn.example.com/batch-placeholder.jpg" {
		t.Errorf("Expected batch placeholder for the corrupt image, got %s", prop.Images[1])
	}
}

func TestImporterNoValidRows(t *testing.T) {
	sheet := importHeader +
		"E-1,X,Flat,,Maharashtra,100000,2024-09-01,\n" +
		"E-2,X,Others,Pune,Maharashtra,100000,2024-09-01,\n" +
		"E-3,X,Flat,Pune,Maharashtra,free,2024-09-01,\n"

	propertyStore := store.NewMemoryStore(0)
	imp, _ := newTestImporter(t, propertyStore)

	report, err := imp.Run(context.Background(), ImportInput{Sheet: []byte(sheet), SheetName: "batch.csv"})
	if !errors.Is(err, ErrNoValidRows) {
		t.Fatalf("Expected ErrNoValidRows, got %v", err)
	}
	expected := []string{
		"Row 2: Missing required field - location",
		"Row 4: Invalid reserve price - free",
	}
	if report == nil || len(report.Errors) != len(expected) {
		t.Fatalf("Unexpected report: %+v", report)
	}
	for i := range expected {
		if report.Errors[i] != expected[i] {
			t.Errorf("Error %d: expected %q, got %q", i, expected[i], report.Errors[i])
		}
	}
	if n, _ := propertyStore.Count(context.Background()); n != 0 {
		t.Errorf("Expected nothing persisted, got %d", n)
	}
}

func TestImporterUnreadableSheet(t *testing.T) {
	imp, _ := newTestImporter(t, store.NewMemoryStore(0))
	_, err := imp.Run(context.Background(), ImportInput{Sheet: []byte("PK\x03\x04 broken"), SheetName: "batch.xlsx"})
	if !errors.Is(err, ErrUnreadableSheet) {
		t.Errorf("Expected ErrUnreadableSheet, got %v", err)
	}
}

func TestImporterErrorsOrderedByRow(t *testing.T) {
	var b strings.Builder
	b.WriteString(importHeader)
	for i := 0; i < 40; i++ {
		if i%2 == 0 {
			fmt.Fprintf(&b, "F-%d,X,Flat,Pune,,100000,2024-09-01,\n", i)
		} else {
			fmt.Fprintf(&b, "F-%d,X,Flat,Pune,Goa,100000,2024-09-01,\n", i)
		}
	}
	// blank line keeps its row number
	b.WriteString(",,,,,,,\n")
	b.WriteString("F-99,X,Flat,Pune,,100000,2024-09-01,\n")

	imp, _ := newTestImporter(t, store.NewMemoryStore(0))
	report, err := imp.Run(context.Background(), ImportInput{Sheet: []byte(b.String()), SheetName: "batch.csv"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if report.PersistedCount != 20 {
		t.Errorf("Expected 20 persisted, got %d", report.PersistedCount)
	}
	if len(report.Errors) != 21 {
		t.Fatalf("Expected 21 errors, got %d", len(report.Errors))
	}
	for i := 0; i < 20; i++ {
		expected := fmt.Sprintf("Row %d: Missing required field - state", 2*i+2)
		if report.Errors[i] != expected {
			t.Errorf("Error %d: expected %q, got %q", i, expected, report.Errors[i])
		}
	}
	if report.Errors[20] != "Row 43: Missing required field - state" {
		t.Errorf("Unexpected last error %q", report.Errors[20])
	}
}

// scriptedStore injects store behavior per id.
type scriptedStore struct {
	*store.MemoryStore
	existsErr map[string]error
	insertErr map[string]error
}

func (s *scriptedStore) Exists(ctx context.Context, id string) (bool, error) {
	if err := s.existsErr[id]; err != nil {
		return false, err
	}
	return s.MemoryStore.Exists(ctx, id)
}

func (s *scriptedStore) Insert(ctx context.Context, p *model.Property) error {
	if err := s.insertErr[p.ID]; err != nil {
		return err
	}
	return s.MemoryStore.Insert(ctx, p)
}

// stallingStore never answers for the listed ids until the caller gives up.
type stallingStore struct {
	*store.MemoryStore
	stallExists map[string]bool
	stallInsert map[string]bool
}

func (s *stallingStore) Exists(ctx context.Context, id string) (bool, error) {
	if s.stallExists[id] {
		<-ctx.Done()
		return false, ctx.Err()
	}
	return s.MemoryStore.Exists(ctx, id)
}

func (s *stallingStore) Insert(ctx context.Context, p *model.Property) error {
	if s.stallInsert[p.ID] {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.MemoryStore.Insert(ctx, p)
}

func TestImporterStoreCallsTimeOut(t *testing.T) {
	sheet := importHeader +
		"T-1,X,Flat,Pune,Goa,100000,2024-09-01,\n" +
		"T-2,X,Flat,Pune,Goa,100000,2024-09-01,\n" +
		"T-3,X,Flat,Pune,Goa,100000,2024-09-01,\n"

	propertyStore := &stallingStore{
		MemoryStore: store.NewMemoryStore(0),
		stallExists: map[string]bool{"T-1": true},
		stallInsert: map[string]bool{"T-2": true},
	}
	imp, _ := newTestImporter(t, propertyStore)
	imp.opTimeout = 50 * time.Millisecond

	done := make(chan struct{})
	var report *model.ImportReport
	var err error
	go func() {
		defer close(done)
		report, err = imp.Run(context.Background(), ImportInput{Sheet: []byte(sheet), SheetName: "batch.csv"})
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Import did not finish; store calls are not bounded")
	}

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if report.PersistedCount != 1 || report.FailedCount != 2 {
		t.Errorf("Unexpected counts: %+v", report)
	}
	expected := []string{
		"Row 2: Failed to save T-1 - context deadline exceeded",
		"Row 3: Failed to save T-2 - context deadline exceeded",
	}
	if len(report.Errors) != len(expected) {
		t.Fatalf("Unexpected errors: %v", report.Errors)
	}
	for i := range expected {
		if report.Errors[i] != expected[i] {
			t.Errorf("Error %d: expected %q, got %q", i, expected[i], report.Errors[i])
		}
	}
}

func TestImporterCappedStoreKeepsReportingDuplicates(t *testing.T) {
	sheet := importHeader +
		"C-1,X,Flat,Pune,Goa,100000,2024-09-01,\n" +
		"C-2,X,Flat,Pune,Goa,100000,2024-09-01,\n"

	propertyStore := store.NewMemoryStore(1)
	imp, _ := newTestImporter(t, propertyStore)

	first, err := imp.Run(context.Background(), ImportInput{Sheet: []byte(sheet), SheetName: "batch.csv"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if first.PersistedCount != 1 || first.FailedCount != 1 {
		t.Errorf("Unexpected first run counts: %+v", first)
	}

	second, err := imp.Run(context.Background(), ImportInput{Sheet: []byte(sheet), SheetName: "batch.csv"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if second.PersistedCount != 0 || second.DuplicateCount != 1 || second.FailedCount != 1 {
		t.Errorf("Unexpected second run counts: %+v", second)
	}
	if len(second.Errors) != 2 || second.Errors[0] != "C-1 already exists" {
		t.Errorf("Unexpected second run errors: %v", second.Errors)
	}
}

func TestImporterCSVEmptyLineKeepsRowNumbers(t *testing.T) {
	sheet := importHeader +
		"E-1,X,Flat,Pune,Goa,100000,2024-09-01,\n" +
		"\n" +
		"E-2,X,Flat,Pune,,100000,2024-09-01,\n"

	imp, _ := newTestImporter(t, store.NewMemoryStore(0))
	report, err := imp.Run(context.Background(), ImportInput{Sheet: []byte(sheet), SheetName: "batch.csv"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(report.Errors) != 1 || report.Errors[0] != "Row 4: Missing required field - state" {
		t.Errorf("Unexpected errors: %v", report.Errors)
	}
}

func TestImporterPersistFailures(t *testing.T) {
	sheet := importHeader +
		"G-1,X,Flat,Pune,Goa,100000,2024-09-01,\n" +
		"G-2,X,Flat,Pune,Goa,100000,2024-09-01,\n" +
		"G-3,X,Flat,Pune,Goa,100000,2024-09-01,\n" +
		"G-4,X,Flat,Pune,Goa,100000,2024-09-01,\n"

	propertyStore := &scriptedStore{
		MemoryStore: store.NewMemoryStore(0),
		existsErr:   map[string]error{"G-2": errors.New("connection reset")},
		insertErr: map[string]error{
			"G-3": fmt.Errorf("insert G-3: %w", store.ErrDuplicate),
			"G-4": errors.New("disk full"),
		},
	}
	imp, _ := newTestImporter(t, propertyStore)

	report, err := imp.Run(context.Background(), ImportInput{Sheet: []byte(sheet), SheetName: "batch.csv"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if report.PersistedCount != 1 || report.DuplicateCount != 1 || report.FailedCount != 2 {
		t.Errorf("Unexpected counts: %+v", report)
	}
	expected := []string{
		"Row 3: Failed to save G-2 - connection reset",
		"G-3 already exists",
		"Row 5: Failed to save G-4 - disk full",
	}
	if len(report.Errors) != len(expected) {
		t.Fatalf("Unexpected errors: %v", report.Errors)
	}
	for i := range expected {
		if report.Errors[i] != expected[i] {
			t.Errorf("Error %d: expected %q, got %q", i, expected[i], report.Errors[i])
		}
	}
}

func TestImporterDuplicateWithinSheet(t *testing.T) {
	sheet := importHeader +
		"H-1,X,Flat,Pune,Goa,100000,2024-09-01,\n" +
		"H-1,Y,Flat,Pune,Goa,100000,2024-09-01,\n"

	imp, _ := newTestImporter(t, store.NewMemoryStore(0))
	report, err := imp.Run(context.Background(), ImportInput{Sheet: []byte(sheet), SheetName: "batch.csv"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if report.PersistedCount != 1 || report.DuplicateCount != 1 {
		t.Errorf("Unexpected counts: %+v", report)
	}
}

func TestImporterCancelledContext(t *testing.T) {
	sheet := importHeader + "I-1,X,Flat,Pune,Goa,100000,2024-09-01,\n"
	propertyStore := store.NewMemoryStore(0)
	imp, _ := newTestImporter(t, propertyStore)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := imp.Run(ctx, ImportInput{Sheet: []byte(sheet), SheetName: "batch.csv"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if n, _ := propertyStore.Count(context.Background()); n != 0 {
		t.Errorf("Expected nothing persisted, got %d", n)
	}
}

func TestImporterPlaceholderOverride(t *testing.T) {
	sheet := importHeader + "J-1,X,Flat,Pune,Goa,100000,2024-09-01,missing.jpg\n"
	propertyStore := store.NewMemoryStore(0)
	imp, _ := newTestImporter(t, propertyStore)

	_, err := imp.Run(context.Background(), ImportInput{Sheet: []byte(sheet), SheetName: "batch.csv", Placeholder: "https://cdn.test/ph.jpg"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	prop, _ := propertyStore.Get(context.Background(), "J-1")
	if len(prop.Images) != 1 || prop.Images[0] != "https://cdn.test/ph.jpg" {
		t.Errorf("Expected override placeholder, got %v", prop.Images)
	}
}
