package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/lox/movefetch/internal/archive"
	"github.com/lox/movefetch/internal/fetch"
	"github.com/lox/movefetch/internal/models"
	"github.com/lox/movefetch/internal/movebank"
)

type globals struct {
	Username string `env:"mbus" help:"Movebank username."`
	Password string `env:"mbpw" help:"Movebank password."`
	StudyID  int64  `name:"study-id" default:"3445611111" help:"Movebank study ID."`
}

func (g *globals) client() (*movebank.Client, error) {
	creds, err := movebank.ResolveCredentials(
		movebank.StaticCredentials{Username: g.Username, Password: g.Password},
		movebank.EnvSource(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w (set the mbus and mbpw environment variables, "+
			"put them in a .env file, or pass --username/--password)", err)
	}
	return movebank.NewClient(creds), nil
}

type fetchCmd struct {
	Sensors    []string `help:"Sensor types to fetch, as names or IDs (e.g. gps, acc, 653). Empty fetches every sensor present in the study." sep:","`
	Start      string   `help:"Start date/time (YYYY-MM-DD or 'YYYY-MM-DD HH:MM:SS')."`
	End        string   `help:"End date/time (YYYY-MM-DD or 'YYYY-MM-DD HH:MM:SS')."`
	Output     string   `default:"movebank_data" help:"Output directory." type:"path"`
	NoMetadata bool     `help:"Skip fetching individuals, tags and deployments."`
	Attributes []string `help:"Explicit event attribute names to request instead of all columns." sep:","`
	Archive    string   `help:"Record raw responses and run outcomes in a SQLite archive at this path." type:"path"`
	XLSX       bool     `name:"xlsx" help:"Also write metadata tables to a combined XLSX workbook."`
}

func (c *fetchCmd) Run(g *globals) error {
	client, err := g.client()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fetcher := fetch.New(client, movebank.NewCatalog())
	fetcher.SetWorkbook(c.XLSX)

	if c.Archive != "" {
		store, err := archive.Open(c.Archive)
		if err != nil {
			return err
		}
		defer store.Close()
		fetcher.SetArchive(store)
	}

	summary, err := fetcher.FetchStudy(ctx, models.FetchRequest{
		StudyID:       g.StudyID,
		Sensors:       c.Sensors,
		Start:         c.Start,
		End:           c.End,
		OutputDir:     c.Output,
		FetchMetadata: !c.NoMetadata,
		Attributes:    c.Attributes,
	})
	if err != nil {
		return describeError(err, g.StudyID)
	}

	fmt.Printf("export complete: %d files in %s\n", len(summary.Files), c.Output)
	return nil
}

type listSensorsCmd struct{}

func (c *listSensorsCmd) Run(g *globals) error {
	client, err := g.client()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	catalog := movebank.NewCatalog()
	sensors, err := movebank.NewMetadataFetcher(client).SensorTypes(ctx, g.StudyID)
	if err != nil {
		return describeError(err, g.StudyID)
	}

	ids := movebank.DecodeSensorTypeIDs(sensors)
	if len(ids) == 0 {
		fmt.Printf("no sensors found for study %d\n", g.StudyID)
		return nil
	}

	fmt.Printf("sensor types in study %d:\n", g.StudyID)
	for _, id := range ids {
		fmt.Printf("  %-30s (ID: %d)\n", catalog.Name(id), id)
	}
	return nil
}

type listAttributesCmd struct {
	Sensor string `help:"Narrow to one sensor type, as a name or ID (e.g. gps, 653)."`
}

func (c *listAttributesCmd) Run(g *globals) error {
	client, err := g.client()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var sensorTypeID int64
	if c.Sensor != "" {
		st, err := movebank.NewCatalog().Resolve(c.Sensor)
		if err != nil {
			return err
		}
		sensorTypeID = st.ID
	}

	attrs, err := movebank.NewMetadataFetcher(client).StudyAttributes(ctx, g.StudyID, sensorTypeID)
	if err != nil {
		return describeError(err, g.StudyID)
	}
	if attrs.Empty() {
		fmt.Printf("no attributes found for study %d\n", g.StudyID)
		return nil
	}

	fmt.Printf("event attributes for study %d:\n", g.StudyID)
	for i := 0; i < attrs.Len(); i++ {
		if name, ok := attrs.Value(i, "short_name"); ok && name != "" {
			fmt.Printf("  %s\n", name)
		}
	}
	return nil
}

// describeError turns the error taxonomy into a message that names the
// actual problem: bad credentials, license trouble, or a missing result.
func describeError(err error, studyID int64) error {
	switch {
	case errors.Is(err, movebank.ErrAccessDenied):
		return fmt.Errorf("access denied for study %d: check your credentials and study permissions", studyID)
	case errors.Is(err, movebank.ErrLicenseAcceptance):
		return fmt.Errorf("could not accept license terms for study %d automatically: "+
			"open the study on movebank.org and accept them once manually", studyID)
	case errors.Is(err, movebank.ErrNoData):
		return fmt.Errorf("no data found for study %d with the given filters", studyID)
	default:
		return err
	}
}

type cli struct {
	globals

	Fetch          fetchCmd          `cmd:"" default:"withargs" help:"Fetch study metadata and sensor event data to delimited files."`
	ListSensors    listSensorsCmd    `cmd:"" name:"list-sensors" help:"List sensor types present in the study and exit."`
	ListAttributes listAttributesCmd `cmd:"" name:"list-attributes" help:"List event attribute names available for the study and exit."`
}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Name("movefetch"),
		kong.Description("Fetch animal-tracking data from Movebank studies."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)
	if err := ctx.Run(&c.globals); err != nil {
		fmt.Fprintf(os.Stderr, "movefetch: %v\n", err)
		os.Exit(1)
	}
}
