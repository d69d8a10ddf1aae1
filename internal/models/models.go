package models

// SensorType is one entry in the fixed sensor reference table. Movebank
// identifies sensor categories by stable numeric IDs; the aliases are the
// friendly names accepted on the command line.
type SensorType struct {
	ID      int64
	Name    string
	Aliases []string
}

type Study struct {
	ID      int64
	Name    string
	License string
}

// Individual is one tracked animal within a study.
type Individual struct {
	ID              int64
	LocalIdentifier string
	Taxon           string
	StudyID         int64
}

type Tag struct {
	ID              int64
	LocalIdentifier string
	StudyID         int64
}

// Deployment associates a tag with an individual over a time interval.
// DeployOff is empty for ongoing deployments. Timestamps stay in
// Movebank's native string form; interpretation is up to the caller.
type Deployment struct {
	ID           int64
	IndividualID int64
	TagID        int64
	DeployOn     string
	DeployOff    string
}

// FetchRequest describes one invocation of the fetch engine. Sensor
// tokens may be numeric IDs or catalog aliases; timestamps may be in any
// form the normalizer accepts. Empty timestamps mean unbounded.
type FetchRequest struct {
	StudyID       int64
	Sensors       []string
	Start         string
	End           string
	OutputDir     string
	FetchMetadata bool
	Attributes    []string
}
