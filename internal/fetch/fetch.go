// Package fetch orchestrates a whole-study retrieval: metadata tables,
// then one event table per requested sensor type, each exported as it is
// fetched. Failures are isolated per table; one missing sensor type
// never aborts the rest of the run.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"

	"github.com/lox/movefetch/internal/archive"
	"github.com/lox/movefetch/internal/export"
	"github.com/lox/movefetch/internal/models"
	"github.com/lox/movefetch/internal/movebank"
)

const workbookFile = "study_data.xlsx"

type Fetcher struct {
	catalog  *movebank.Catalog
	meta     *movebank.MetadataFetcher
	events   *movebank.EventFetcher
	archive  *archive.Store
	workbook bool
}

func New(client *movebank.Client, catalog *movebank.Catalog) *Fetcher {
	return &Fetcher{
		catalog: catalog,
		meta:    movebank.NewMetadataFetcher(client),
		events:  movebank.NewEventFetcher(client),
	}
}

// SetArchive enables recording of fetch runs and raw metadata payloads.
func (f *Fetcher) SetArchive(a *archive.Store) {
	f.archive = a
}

// SetWorkbook enables the combined XLSX export of metadata tables.
func (f *Fetcher) SetWorkbook(enabled bool) {
	f.workbook = enabled
}

// Summary reports what one run produced.
type Summary struct {
	Study     models.Study
	Files     []string
	EventRows map[string]int
	Skipped   []string
}

// FetchStudy validates the request, fetches study metadata and event
// data, and writes one delimited file per table into req.OutputDir.
// Validation failures abort before any network call. ErrAccessDenied and
// ErrLicenseAcceptance abort the run; anything else is skip-and-continue.
// The run fails only when nothing at all could be retrieved.
func (f *Fetcher) FetchStudy(ctx context.Context, req models.FetchRequest) (*Summary, error) {
	start, err := movebank.NormalizeTimestamp(req.Start)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	end, err := movebank.NormalizeTimestamp(req.End)
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}

	var requested []models.SensorType
	for _, token := range req.Sensors {
		st, err := f.catalog.Resolve(token)
		if err != nil {
			return nil, err
		}
		requested = append(requested, st)
	}

	var runID int64
	if f.archive != nil {
		runID, err = f.archive.StartRun(req.StudyID, start, end)
		if err != nil {
			return nil, fmt.Errorf("start archive run: %w", err)
		}
		f.meta.Sink = func(entity string, payload []byte) {
			if _, err := f.archive.StorePayload(runID, entity, req.StudyID, payload); err != nil {
				log.Printf("archive: store %s payload: %v", entity, err)
			}
		}
		defer func() { f.meta.Sink = nil }()
	}

	summary := &Summary{EventRows: make(map[string]int)}
	writer := export.NewWriter(req.OutputDir)
	err = f.run(ctx, req, requested, start, end, writer, runID, summary)

	if f.archive != nil {
		status, note := archive.RunCompleted, ""
		if err != nil {
			status, note = archive.RunFailed, err.Error()
		}
		if ferr := f.archive.FinishRun(runID, status, note); ferr != nil {
			log.Printf("archive: finish run: %v", ferr)
		}
	}

	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (f *Fetcher) run(ctx context.Context, req models.FetchRequest, requested []models.SensorType,
	start, end string, writer *export.Writer, runID int64, summary *Summary) error {

	var sheets []export.Sheet

	writeMeta := func(name string, t *movebank.Table) error {
		// A no-data response has no columns; there is nothing to export.
		if len(t.Columns) == 0 {
			log.Printf("no %s found", name)
			summary.Skipped = append(summary.Skipped, name)
			f.recordEmpty(runID, "metadata", name)
			return nil
		}
		path, err := writer.Write(name+".csv", t)
		if err != nil {
			return err
		}
		summary.Files = append(summary.Files, path)
		sheets = append(sheets, export.Sheet{Name: name, Table: t})
		f.recordItem(runID, "metadata", name, t.Len())
		return nil
	}

	// Study info first; its name labels the run.
	studyInfo, err := f.meta.StudyInfo(ctx, req.StudyID)
	switch {
	case movebank.IsFatal(err):
		return err
	case err != nil:
		log.Printf("study_info: %v (skipping)", err)
		summary.Skipped = append(summary.Skipped, "study_info")
		f.skipItem(runID, "metadata", "study_info")
	default:
		if study, ok := movebank.DecodeStudy(studyInfo); ok {
			study.ID = req.StudyID
			summary.Study = study
			log.Printf("study %d: %s", req.StudyID, study.Name)
		}
		if err := writeMeta("study_info", studyInfo); err != nil {
			return err
		}
	}

	if req.FetchMetadata {
		categories := []struct {
			name string
			op   func(context.Context, int64) (*movebank.Table, error)
		}{
			{"individuals", f.meta.Individuals},
			{"tags", f.meta.Tags},
			{"deployments", f.meta.Deployments},
		}
		for _, cat := range categories {
			t, err := cat.op(ctx, req.StudyID)
			if movebank.IsFatal(err) {
				return err
			}
			if err != nil {
				log.Printf("%s: %v (skipping)", cat.name, err)
				summary.Skipped = append(summary.Skipped, cat.name)
				f.skipItem(runID, "metadata", cat.name)
				continue
			}
			log.Printf("fetched %d %s", t.Len(), cat.name)
			if err := writeMeta(cat.name, t); err != nil {
				return err
			}
		}
	}

	// The sensor table is always fetched: it drives the event loop.
	sensors, err := f.meta.SensorTypes(ctx, req.StudyID)
	switch {
	case movebank.IsFatal(err):
		return err
	case err != nil:
		log.Printf("sensors: %v (skipping)", err)
		summary.Skipped = append(summary.Skipped, "sensors")
		f.skipItem(runID, "metadata", "sensors")
		sensors = &movebank.Table{}
	default:
		if err := writeMeta("sensors", sensors); err != nil {
			return err
		}
	}

	if err := f.fetchEvents(ctx, req, requested, sensors, start, end, writer, runID, summary); err != nil {
		return err
	}

	if len(summary.Files) == 0 {
		return fmt.Errorf("study %d: %w", req.StudyID, movebank.ErrNoData)
	}

	if f.workbook && len(sheets) > 0 {
		path := filepath.Join(writer.Dir(), workbookFile)
		if err := export.WriteWorkbook(path, sheets); err != nil {
			return fmt.Errorf("write workbook: %w", err)
		}
		summary.Files = append(summary.Files, path)
	}

	return nil
}

func (f *Fetcher) fetchEvents(ctx context.Context, req models.FetchRequest, requested []models.SensorType,
	sensors *movebank.Table, start, end string, writer *export.Writer, runID int64, summary *Summary) error {

	available := movebank.DecodeSensorTypeIDs(sensors)

	var sensorIDs []int64
	switch {
	case len(requested) == 0:
		sensorIDs = available
	case len(available) == 0:
		// Sensor table was missing; trust the request rather than fetch
		// nothing.
		for _, st := range requested {
			sensorIDs = append(sensorIDs, st.ID)
		}
	default:
		present := make(map[int64]bool, len(available))
		for _, id := range available {
			present[id] = true
		}
		for _, st := range requested {
			if !present[st.ID] {
				log.Printf("warning: sensor type %s (%d) not present in study %d", st.Name, st.ID, req.StudyID)
				continue
			}
			sensorIDs = append(sensorIDs, st.ID)
		}
	}

	attrs := movebank.AllAttributes()
	if len(req.Attributes) > 0 {
		attrs = movebank.ExplicitAttributes(req.Attributes...)
	}

	for _, sensorID := range sensorIDs {
		name := f.catalog.Name(sensorID)
		fileName := fmt.Sprintf("events_%s.csv", name)

		tr, err := f.events.Events(ctx, movebank.EventQuery{
			StudyID:      req.StudyID,
			SensorTypeID: sensorID,
			Start:        start,
			End:          end,
			Attributes:   attrs,
		})
		switch {
		case movebank.IsFatal(err):
			return err
		case errors.Is(err, movebank.ErrNoData):
			log.Printf("no %s events found", name)
			summary.Skipped = append(summary.Skipped, name)
			f.recordEmpty(runID, "events", name)
			continue
		case err != nil:
			log.Printf("%s events: %v (skipping)", name, err)
			summary.Skipped = append(summary.Skipped, name)
			f.skipItem(runID, "events", name)
			continue
		}

		// Peek the first row so a header-only response produces no file.
		first, err := tr.Next()
		if errors.Is(err, io.EOF) {
			tr.Close()
			log.Printf("no %s events found", name)
			summary.Skipped = append(summary.Skipped, name)
			f.recordEmpty(runID, "events", name)
			continue
		}
		if err != nil {
			tr.Close()
			log.Printf("%s events: %v (skipping)", name, err)
			summary.Skipped = append(summary.Skipped, name)
			f.skipItem(runID, "events", name)
			continue
		}

		next := func() ([]string, error) {
			if first != nil {
				row := first
				first = nil
				return row, nil
			}
			return tr.Next()
		}

		path, rows, err := writer.WriteRows(fileName, tr.Columns(), next)
		tr.Close()
		if err != nil {
			log.Printf("%s events: %v (skipping)", name, err)
			summary.Skipped = append(summary.Skipped, name)
			f.skipItem(runID, "events", name)
			continue
		}

		log.Printf("fetched %d %s events -> %s", rows, name, fileName)
		summary.Files = append(summary.Files, path)
		summary.EventRows[name] = rows
		f.recordItem(runID, "events", name, rows)
	}

	return nil
}

func (f *Fetcher) recordItem(runID int64, kind, name string, rows int) {
	if f.archive == nil {
		return
	}
	if err := f.archive.RecordItem(runID, kind, name, rows, archive.ItemExported); err != nil {
		log.Printf("archive: record %s: %v", name, err)
	}
}

func (f *Fetcher) recordEmpty(runID int64, kind, name string) {
	if f.archive == nil {
		return
	}
	if err := f.archive.RecordItem(runID, kind, name, 0, archive.ItemEmpty); err != nil {
		log.Printf("archive: record %s: %v", name, err)
	}
}

func (f *Fetcher) skipItem(runID int64, kind, name string) {
	if f.archive == nil {
		return
	}
	if err := f.archive.RecordItem(runID, kind, name, 0, archive.ItemSkipped); err != nil {
		log.Printf("archive: record %s: %v", name, err)
	}
}
