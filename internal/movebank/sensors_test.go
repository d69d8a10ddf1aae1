package movebank

import (
	"errors"
	"strconv"
	"strings"
	"testing"
)

func TestCatalog_ResolveAliasesAndIDs(t *testing.T) {
	catalog := NewCatalog()

	// Every alias and every stringified ID must resolve to the same
	// sensor type.
	for _, st := range catalog.All() {
		byID, err := catalog.Resolve(strconv.FormatInt(st.ID, 10))
		if err != nil {
			t.Errorf("Resolve(%d): %v", st.ID, err)
			continue
		}
		if byID.ID != st.ID {
			t.Errorf("Resolve(%d).ID = %d, want %d", st.ID, byID.ID, st.ID)
		}

		for _, alias := range st.Aliases {
			byAlias, err := catalog.Resolve(alias)
			if err != nil {
				t.Errorf("Resolve(%q): %v", alias, err)
				continue
			}
			if byAlias.ID != st.ID {
				t.Errorf("Resolve(%q).ID = %d, want %d", alias, byAlias.ID, st.ID)
			}
		}
	}
}

func TestCatalog_ResolveCaseInsensitive(t *testing.T) {
	catalog := NewCatalog()

	tests := []string{"GPS", "Gps", "ACC", "Acceleration", " gps "}
	for _, token := range tests {
		st, err := catalog.Resolve(token)
		if err != nil {
			t.Errorf("Resolve(%q): %v", token, err)
			continue
		}
		if !strings.EqualFold(st.Name, "gps") && !strings.EqualFold(st.Name, "acceleration") {
			t.Errorf("Resolve(%q) = %s, unexpected sensor", token, st.Name)
		}
	}
}

func TestCatalog_ResolveUnknown(t *testing.T) {
	catalog := NewCatalog()

	for _, token := range []string{"not_a_sensor", "99999", ""} {
		if _, err := catalog.Resolve(token); !errors.Is(err, ErrUnknownSensor) {
			t.Errorf("Resolve(%q) err = %v, want ErrUnknownSensor", token, err)
		}
	}
}

func TestCatalog_Name(t *testing.T) {
	catalog := NewCatalog()

	if got := catalog.Name(653); got != "gps" {
		t.Errorf("Name(653) = %q, want gps", got)
	}
	if got := catalog.Name(12345); got != "sensor_12345" {
		t.Errorf("Name(12345) = %q, want sensor_12345", got)
	}
}

func TestCatalog_KnownIDs(t *testing.T) {
	catalog := NewCatalog()

	tests := []struct {
		token string
		id    int64
	}{
		{"gps", 653},
		{"acceleration", 2365683},
		{"acc", 2365683},
		{"radio", 673},
		{"geolocator", 3886361},
		{"accessory", 7842954},
		{"heart_rate", 2206221896},
	}
	for _, tt := range tests {
		st, err := catalog.Resolve(tt.token)
		if err != nil {
			t.Errorf("Resolve(%q): %v", tt.token, err)
			continue
		}
		if st.ID != tt.id {
			t.Errorf("Resolve(%q).ID = %d, want %d", tt.token, st.ID, tt.id)
		}
	}
}
