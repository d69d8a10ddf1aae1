package movebank

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/lox/movefetch/internal/models"
)

// MetadataFetcher retrieves the study reference tables. Each operation
// is one transport call; a no-data response comes back as an empty table
// so that one missing category never aborts the others.
type MetadataFetcher struct {
	client *Client

	// Sink, when set, receives the raw payload of every successful
	// metadata response before parsing. Used for the response archive.
	Sink func(entity string, payload []byte)
}

func NewMetadataFetcher(client *Client) *MetadataFetcher {
	return &MetadataFetcher{client: client}
}

func (m *MetadataFetcher) StudyInfo(ctx context.Context, studyID int64) (*Table, error) {
	return m.fetch(ctx, "study", url.Values{"study_id": {formatID(studyID)}})
}

func (m *MetadataFetcher) Individuals(ctx context.Context, studyID int64) (*Table, error) {
	return m.fetch(ctx, "individual", url.Values{"study_id": {formatID(studyID)}})
}

func (m *MetadataFetcher) Tags(ctx context.Context, studyID int64) (*Table, error) {
	return m.fetch(ctx, "tag", url.Values{"study_id": {formatID(studyID)}})
}

func (m *MetadataFetcher) Deployments(ctx context.Context, studyID int64) (*Table, error) {
	return m.fetch(ctx, "deployment", url.Values{"study_id": {formatID(studyID)}})
}

// SensorTypes lists the sensor types present in a study. The service
// keys this entity by tag_study_id rather than study_id.
func (m *MetadataFetcher) SensorTypes(ctx context.Context, studyID int64) (*Table, error) {
	return m.fetch(ctx, "sensor", url.Values{"tag_study_id": {formatID(studyID)}})
}

// StudyAttributes lists the attribute names available for a study,
// optionally narrowed to one sensor type.
func (m *MetadataFetcher) StudyAttributes(ctx context.Context, studyID, sensorTypeID int64) (*Table, error) {
	params := url.Values{"study_id": {formatID(studyID)}}
	if sensorTypeID != 0 {
		params.Set("sensor_type_id", formatID(sensorTypeID))
	}
	return m.fetch(ctx, "study_attribute", params)
}

func (m *MetadataFetcher) fetch(ctx context.Context, entity string, params url.Values) (*Table, error) {
	params.Set("entity_type", entity)

	body, err := m.client.Fetch(ctx, params)
	if errors.Is(err, ErrNoData) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", entity, err)
	}
	defer body.Close()

	payload, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", entity, err)
	}
	if m.Sink != nil {
		m.Sink(entity, payload)
	}

	t, err := ParseTable(bytes.NewReader(payload))
	if errors.Is(err, ErrNoData) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", entity, err)
	}
	return t, nil
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }

// DecodeStudy extracts the study row from a study_info table.
func DecodeStudy(t *Table) (models.Study, bool) {
	if t.Empty() {
		return models.Study{}, false
	}
	s := models.Study{}
	s.ID, _ = t.Int64(0, "id")
	if name, ok := t.Value(0, "name"); ok {
		s.Name = name
	}
	if lic, ok := t.Value(0, "license_type"); ok {
		s.License = lic
	}
	return s, true
}

// DecodeIndividuals extracts typed rows from an individual table.
func DecodeIndividuals(t *Table) []models.Individual {
	out := make([]models.Individual, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		ind := models.Individual{}
		ind.ID, _ = t.Int64(i, "id")
		ind.StudyID, _ = t.Int64(i, "study_id")
		ind.LocalIdentifier, _ = t.Value(i, "local_identifier")
		ind.Taxon, _ = t.Value(i, "taxon_canonical_name")
		out = append(out, ind)
	}
	return out
}

// DecodeTags extracts typed rows from a tag table.
func DecodeTags(t *Table) []models.Tag {
	out := make([]models.Tag, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		tag := models.Tag{}
		tag.ID, _ = t.Int64(i, "id")
		tag.StudyID, _ = t.Int64(i, "study_id")
		tag.LocalIdentifier, _ = t.Value(i, "local_identifier")
		out = append(out, tag)
	}
	return out
}

// DecodeDeployments extracts typed rows from a deployment table.
// Timestamps stay in native string form; empty deploy_off_timestamp
// means the deployment is ongoing.
func DecodeDeployments(t *Table) []models.Deployment {
	out := make([]models.Deployment, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		d := models.Deployment{}
		d.ID, _ = t.Int64(i, "id")
		d.IndividualID, _ = t.Int64(i, "individual_id")
		d.TagID, _ = t.Int64(i, "tag_id")
		d.DeployOn, _ = t.Value(i, "deploy_on_timestamp")
		d.DeployOff, _ = t.Value(i, "deploy_off_timestamp")
		out = append(out, d)
	}
	return out
}

// DecodeSensorTypeIDs returns the distinct sensor_type_id values present
// in a sensor table, in first-seen order.
func DecodeSensorTypeIDs(t *Table) []int64 {
	seen := make(map[int64]bool)
	var out []int64
	for i := 0; i < t.Len(); i++ {
		id, ok := t.Int64(i, "sensor_type_id")
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
