// Package catalog loads and searches the dataset/variable metadata of
// the remote service. The source system denormalizes its catalog to
// one row per (table, variable) with table-level fields repeated; here
// those rows are split into Table and Variable entities, with the flat
// wire shape kept as a view for display and JSON.
package catalog

import (
	"time"

	"github.com/mohammed-shakir/spacetime-gateway/internal/core/model"
)

// Table is the table-level half of a catalog row, held once per table.
type Table struct {
	Name               string
	DatasetName        string
	DatasetDescription string
	Lat                model.Range
	Lon                model.Range
	Depth              model.Range
	Time               model.TimeRange
	TemporalResolution string
	SpatialResolution  string
	Make               string
	Sensor             string
	Keywords           string
	DataSource         string
	Distributor        string
}

// Variable is one variable of a table.
type Variable struct {
	TableName string
	Name      string
	LongName  string
	Unit      string
}

// Row is the flattened wire shape of the catalog: one row per
// (table, variable), table-level fields repeated. JSON tags follow the
// fixed schema of the source system.
type Row struct {
	TableName          string  `json:"Table_Name"`
	LongName           string  `json:"Long_Name"`
	Unit               string  `json:"Unit"`
	VariableCount      int     `json:"Variable_Count"`
	LatMin             float64 `json:"Lat_Min"`
	LatMax             float64 `json:"Lat_Max"`
	LonMin             float64 `json:"Lon_Min"`
	LonMax             float64 `json:"Lon_Max"`
	DepthMin           float64 `json:"Depth_Min"`
	DepthMax           float64 `json:"Depth_Max"`
	TimeMin            string  `json:"Time_Min"`
	TimeMax            string  `json:"Time_Max"`
	TemporalResolution string  `json:"Temporal_Resolution"`
	SpatialResolution  string  `json:"Spatial_Resolution"`
	Make               string  `json:"Make"`
	Sensor             string  `json:"Sensor"`
	DatasetName        string  `json:"Dataset_Name"`
	DatasetDescription string  `json:"Dataset_Description"`
	Keywords           string  `json:"Keywords"`
	DataSource         string  `json:"Data_Source"`
	Distributor        string  `json:"Distributor"`
}

// Snapshot is one immutable generation of the catalog. Refreshes build
// a new snapshot and swap it in atomically; readers holding an old one
// keep a consistent view.
type Snapshot struct {
	Tables      []Table               `json:"tables"`
	Variables   map[string][]Variable `json:"variables"`
	Fingerprint string                `json:"fingerprint"`
	FetchedAt   time.Time             `json:"fetched_at"`

	byName map[string]int
}

func (s *Snapshot) index() {
	s.byName = make(map[string]int, len(s.Tables))
	for i, t := range s.Tables {
		s.byName[t.Name] = i
	}
}

// Table looks up a table by name.
func (s *Snapshot) Table(name string) (Table, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Table{}, false
	}
	return s.Tables[i], true
}

// VariableCount counts variables across all tables.
func (s *Snapshot) VariableCount() int {
	n := 0
	for _, vars := range s.Variables {
		n += len(vars)
	}
	return n
}

// Rows flattens the snapshot back into wire-shaped rows, one per
// (table, variable), in table order.
func (s *Snapshot) Rows() []Row {
	rows := make([]Row, 0, s.VariableCount())
	for _, t := range s.Tables {
		for _, v := range s.Variables[t.Name] {
			rows = append(rows, flatten(t, v, len(s.Variables[t.Name])))
		}
	}
	return rows
}

func flatten(t Table, v Variable, count int) Row {
	return Row{
		TableName:          t.Name,
		LongName:           v.LongName,
		Unit:               v.Unit,
		VariableCount:      count,
		LatMin:             t.Lat.Min,
		LatMax:             t.Lat.Max,
		LonMin:             t.Lon.Min,
		LonMax:             t.Lon.Max,
		DepthMin:           t.Depth.Min,
		DepthMax:           t.Depth.Max,
		TimeMin:            formatTime(t.Time.Start),
		TimeMax:            formatTime(t.Time.End),
		TemporalResolution: t.TemporalResolution,
		SpatialResolution:  t.SpatialResolution,
		Make:               t.Make,
		Sensor:             t.Sensor,
		DatasetName:        t.DatasetName,
		DatasetDescription: t.DatasetDescription,
		Keywords:           t.Keywords,
		DataSource:         t.DataSource,
		Distributor:        t.Distributor,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
