package movebank

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Attributes selects event columns: everything the sensor type offers,
// or an explicit list passed through to the service verbatim. Unknown
// names in an explicit list are a remote-side error.
type Attributes struct {
	explicit []string
}

// AllAttributes requests every available column. The zero value behaves
// the same.
func AllAttributes() Attributes { return Attributes{} }

func ExplicitAttributes(names ...string) Attributes {
	return Attributes{explicit: names}
}

func (a Attributes) IsAll() bool { return len(a.explicit) == 0 }

// Value is the wire form: "all" or a comma-joined column list.
func (a Attributes) Value() string {
	if a.IsAll() {
		return "all"
	}
	return strings.Join(a.explicit, ",")
}

// EventQuery describes one event-table request. Timestamps must already
// be in compact native form (see NormalizeTimestamp); zero/empty fields
// are omitted from the request.
type EventQuery struct {
	StudyID      int64
	SensorTypeID int64
	IndividualID int64
	Start        string
	End          string
	Attributes   Attributes
}

// EventFetcher retrieves time- and sensor-filtered event records.
type EventFetcher struct {
	client *Client
}

func NewEventFetcher(client *Client) *EventFetcher {
	return &EventFetcher{client: client}
}

// Events streams the event table for one query. The response is decoded
// incrementally: rows become available as they arrive, so a large study
// never has to fit in memory. The caller must Close the reader.
func (f *EventFetcher) Events(ctx context.Context, q EventQuery) (*TableReader, error) {
	params := url.Values{
		"entity_type": {"event"},
		"study_id":    {formatID(q.StudyID)},
		"attributes":  {q.Attributes.Value()},
	}
	if q.SensorTypeID != 0 {
		params.Set("sensor_type_id", formatID(q.SensorTypeID))
	}
	if q.IndividualID != 0 {
		params.Set("individual_id", formatID(q.IndividualID))
	}
	if q.Start != "" {
		params.Set("timestamp_start", q.Start)
	}
	if q.End != "" {
		params.Set("timestamp_end", q.End)
	}

	body, err := f.client.Fetch(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetch events (sensor %d): %w", q.SensorTypeID, err)
	}

	tr, err := NewTableReader(body)
	if err != nil {
		body.Close()
		return nil, err
	}
	return tr, nil
}
