package movebank

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lox/movefetch/internal/models"
)

// The hand-curated sensor reference table. IDs are Movebank's stable
// sensor_type_id values; the first alias is the canonical name used for
// export file naming.
var sensorTypes = []models.SensorType{
	{ID: 653, Name: "gps", Aliases: []string{"gps"}},
	{ID: 2365683, Name: "acceleration", Aliases: []string{"acceleration", "acc"}},
	{ID: 397, Name: "bird_ring", Aliases: []string{"bird_ring"}},
	{ID: 673, Name: "radio_transmitter", Aliases: []string{"radio_transmitter", "radio"}},
	{ID: 82798, Name: "argos", Aliases: []string{"argos"}},
	{ID: 2365682, Name: "natural_mark", Aliases: []string{"natural_mark"}},
	{ID: 3886361, Name: "solar_geolocator", Aliases: []string{"solar_geolocator", "geolocator"}},
	{ID: 7842954, Name: "accessory_measurements", Aliases: []string{"accessory_measurements", "accessory"}},
	{ID: 77740391, Name: "barometer", Aliases: []string{"barometer"}},
	{ID: 77740402, Name: "magnetometer", Aliases: []string{"magnetometer"}},
	{ID: 819073350, Name: "orientation", Aliases: []string{"orientation"}},
	{ID: 1297673380, Name: "gyroscope", Aliases: []string{"gyroscope"}},
	{ID: 2206221896, Name: "heart_rate", Aliases: []string{"heart_rate"}},
}

// Catalog resolves sensor tokens (numeric IDs or friendly names) against
// the reference table. It is immutable after construction; build one at
// startup and pass it by reference.
type Catalog struct {
	ordered []models.SensorType
	byID    map[int64]models.SensorType
	byAlias map[string]models.SensorType
}

func NewCatalog() *Catalog {
	c := &Catalog{
		ordered: sensorTypes,
		byID:    make(map[int64]models.SensorType, len(sensorTypes)),
		byAlias: make(map[string]models.SensorType),
	}
	for _, st := range sensorTypes {
		c.byID[st.ID] = st
		for _, alias := range st.Aliases {
			c.byAlias[strings.ToLower(alias)] = st
		}
	}
	return c
}

// Resolve accepts a numeric sensor type ID or an alias, case-insensitive.
func (c *Catalog) Resolve(token string) (models.SensorType, error) {
	if st, ok := c.byAlias[strings.ToLower(strings.TrimSpace(token))]; ok {
		return st, nil
	}
	if id, err := strconv.ParseInt(strings.TrimSpace(token), 10, 64); err == nil {
		if st, ok := c.byID[id]; ok {
			return st, nil
		}
	}
	return models.SensorType{}, fmt.Errorf("%w: %q", ErrUnknownSensor, token)
}

// ByID looks up a sensor type by numeric ID, for cross-referencing IDs
// discovered in study metadata.
func (c *Catalog) ByID(id int64) (models.SensorType, bool) {
	st, ok := c.byID[id]
	return st, ok
}

// Name returns the friendly name for a sensor type ID, falling back to
// sensor_<id> for types missing from the reference table.
func (c *Catalog) Name(id int64) string {
	if st, ok := c.byID[id]; ok {
		return st.Name
	}
	return fmt.Sprintf("sensor_%d", id)
}

// All returns the reference table in its fixed order.
func (c *Catalog) All() []models.SensorType {
	out := make([]models.SensorType, len(c.ordered))
	copy(out, c.ordered)
	return out
}
