package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/spacetime-gateway/internal/core/model"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/normalize"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/observability"
)

// catalogQuery pulls the full denormalized metadata table.
const catalogQuery = "select * from dbo.udfCatalog() order by Table_Name, Long_Name"

// QueryRunner is the executing dependency; satisfied by executor.Executor.
type QueryRunner interface {
	Execute(ctx context.Context, queryText string) (model.RawResult, error)
}

// SnapshotStore persists serialized snapshots so replicas can
// warm-start without hitting the remote service. Optional.
type SnapshotStore interface {
	Save(ctx context.Context, data []byte) error
	Load(ctx context.Context) ([]byte, error)
}

// Index is the process-wide catalog cache. The snapshot pointer is the
// only shared mutable state in the gateway; it is replaced atomically
// on refresh so concurrent readers never observe a half-updated
// catalog.
type Index struct {
	logger *slog.Logger
	exec   QueryRunner
	store  SnapshotStore // may be nil
	snap   atomic.Pointer[Snapshot]
	now    func() time.Time
}

func New(logger *slog.Logger, exec QueryRunner, store SnapshotStore) *Index {
	return &Index{logger: logger, exec: exec, store: store, now: time.Now}
}

// Ready reports whether a snapshot has been loaded.
func (ix *Index) Ready() bool { return ix.snap.Load() != nil }

// Snapshot returns the current snapshot, or nil before the first fetch.
func (ix *Index) Snapshot() *Snapshot { return ix.snap.Load() }

// Fetch retrieves the full metadata table and swaps in a new snapshot.
// Transport failure surfaces as RemoteUnavailable and leaves any
// previous snapshot in place.
func (ix *Index) Fetch(ctx context.Context) error {
	raw, err := ix.exec.Execute(ctx, catalogQuery)
	if err != nil {
		return fmt.Errorf("fetch catalog: %w", err)
	}
	snap, err := buildSnapshot(normalize.Normalize(raw), ix.now().UTC())
	if err != nil {
		return err
	}

	prev := ix.snap.Load()
	ix.snap.Store(snap)
	observability.SetCatalogSnapshot(len(snap.Tables), snap.VariableCount(), snap.FetchedAt.Unix())

	changed := prev == nil || prev.Fingerprint != snap.Fingerprint
	ix.logger.Info("catalog refreshed",
		"tables", len(snap.Tables),
		"variables", snap.VariableCount(),
		"fingerprint", snap.Fingerprint,
		"changed", changed)

	if ix.store != nil {
		if data, merr := json.Marshal(snap); merr == nil {
			if serr := ix.store.Save(ctx, data); serr != nil {
				ix.logger.Warn("snapshot store save failed", "err", serr)
			}
		}
	}
	return nil
}

// WarmStart loads the catalog: remote fetch first, snapshot store as
// the fallback when the remote service is down at boot.
func (ix *Index) WarmStart(ctx context.Context) error {
	ferr := ix.Fetch(ctx)
	if ferr == nil {
		return nil
	}
	if ix.store == nil {
		return ferr
	}
	data, lerr := ix.store.Load(ctx)
	if lerr != nil {
		return fmt.Errorf("fetch failed (%v); snapshot store: %w", ferr, lerr)
	}
	var snap Snapshot
	if uerr := json.Unmarshal(data, &snap); uerr != nil {
		return fmt.Errorf("fetch failed (%v); decode stored snapshot: %w", ferr, uerr)
	}
	snap.index()
	ix.snap.Store(&snap)
	observability.SetCatalogSnapshot(len(snap.Tables), snap.VariableCount(), snap.FetchedAt.Unix())
	ix.logger.Warn("catalog warm-started from snapshot store",
		"fetched_at", snap.FetchedAt, "fetch_err", ferr)
	return nil
}

func (ix *Index) ensure(ctx context.Context) (*Snapshot, error) {
	if s := ix.snap.Load(); s != nil {
		return s, nil
	}
	if err := ix.Fetch(ctx); err != nil {
		return nil, err
	}
	return ix.snap.Load(), nil
}

// Search fields. Long_Name is the default; ExpandedSearchFields widens
// the match to the descriptive text columns.
var (
	DefaultSearchFields  = []string{"Long_Name"}
	ExpandedSearchFields = []string{"Long_Name", "Table_Name", "Keywords", "Dataset_Name", "Dataset_Description", "Sensor"}
)

// Search pattern-matches keyword against the given text fields
// (Long_Name when none given) and returns the matching flattened rows.
// Zero matches is an empty slice, never an error. The keyword is tried
// as a regular expression first and falls back to a case-insensitive
// substring match if it does not compile.
func (ix *Index) Search(ctx context.Context, keyword string, fields ...string) ([]Row, error) {
	snap, err := ix.ensure(ctx)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		fields = DefaultSearchFields
	}

	match := matcherFor(keyword)
	out := []Row{}
	for _, row := range snap.Rows() {
		if rowMatches(row, fields, match) {
			out = append(out, row)
		}
	}
	return out, nil
}

func matcherFor(keyword string) func(string) bool {
	if re, err := regexp.Compile("(?i)" + keyword); err == nil {
		return re.MatchString
	}
	low := strings.ToLower(keyword)
	return func(s string) bool { return strings.Contains(strings.ToLower(s), low) }
}

func rowMatches(row Row, fields []string, match func(string) bool) bool {
	for _, f := range fields {
		if match(fieldValue(row, f)) {
			return true
		}
	}
	return false
}

func fieldValue(row Row, field string) string {
	switch field {
	case "Long_Name":
		return row.LongName
	case "Table_Name":
		return row.TableName
	case "Keywords":
		return row.Keywords
	case "Dataset_Name":
		return row.DatasetName
	case "Dataset_Description":
		return row.DatasetDescription
	case "Sensor":
		return row.Sensor
	case "Make":
		return row.Make
	case "Data_Source":
		return row.DataSource
	case "Distributor":
		return row.Distributor
	default:
		return ""
	}
}

// Describe returns the denormalized summary of one table: spatial and
// temporal extent, resolutions, source and distributor.
func (ix *Index) Describe(ctx context.Context, table string) (Row, error) {
	snap, err := ix.ensure(ctx)
	if err != nil {
		return Row{}, err
	}
	t, ok := snap.Table(table)
	if !ok {
		return Row{}, fmt.Errorf("%q: %w", table, model.ErrUnknownTable)
	}
	vars := snap.Variables[table]
	summary := flatten(t, Variable{TableName: table}, len(vars))
	return summary, nil
}

// TableVariables lists the variable rows of one table.
func (ix *Index) TableVariables(ctx context.Context, table string) ([]Variable, error) {
	snap, err := ix.ensure(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := snap.Table(table); !ok {
		return nil, fmt.Errorf("%q: %w", table, model.ErrUnknownTable)
	}
	return append([]Variable(nil), snap.Variables[table]...), nil
}

// coordinate columns every table carries
var coordinateColumns = map[string]struct{}{
	"time": {}, "lat": {}, "lon": {}, "depth": {},
}

// CheckColumn validates a variable against the catalog before a spec
// is sent. Coordinate columns always pass.
func (ix *Index) CheckColumn(ctx context.Context, table, column string) error {
	snap, err := ix.ensure(ctx)
	if err != nil {
		return err
	}
	if _, ok := snap.Table(table); !ok {
		return fmt.Errorf("%q: %w", table, model.ErrUnknownTable)
	}
	if _, ok := coordinateColumns[strings.ToLower(column)]; ok {
		return nil
	}
	for _, v := range snap.Variables[table] {
		if v.Name == column {
			return nil
		}
	}
	return fmt.Errorf("%s.%s: %w", table, column, model.ErrUnknownColumn)
}

// buildSnapshot splits the flat (table, variable) rows into entities
// and fingerprints the content so refreshes can report whether
// anything changed.
func buildSnapshot(res model.QueryResult, fetchedAt time.Time) (*Snapshot, error) {
	if len(res.Rows) == 0 {
		return nil, fmt.Errorf("catalog payload has no rows: %w", model.ErrMalformedResponse)
	}

	snap := &Snapshot{
		Variables: make(map[string][]Variable),
		FetchedAt: fetchedAt,
	}
	digest := xxhash.New()
	seen := make(map[string]bool)

	for i, row := range res.Rows {
		name := textCell(row, "Table_Name")
		varName := textCell(row, "Variable")
		if varName == "" {
			// some catalog generations expose the short name column as Short_Name
			varName = textCell(row, "Short_Name")
		}
		if varName == "" {
			// minimal schema: Long_Name doubles as the variable identity
			varName = textCell(row, "Long_Name")
		}
		if name == "" || varName == "" {
			return nil, fmt.Errorf("catalog row %d missing table or variable name: %w", i, model.ErrMalformedResponse)
		}

		if !seen[name] {
			seen[name] = true
			snap.Tables = append(snap.Tables, Table{
				Name:               name,
				DatasetName:        textCell(row, "Dataset_Name"),
				DatasetDescription: textCell(row, "Dataset_Description"),
				Lat:                model.Range{Min: numCell(row, "Lat_Min"), Max: numCell(row, "Lat_Max")},
				Lon:                model.Range{Min: numCell(row, "Lon_Min"), Max: numCell(row, "Lon_Max")},
				Depth:              model.Range{Min: numCell(row, "Depth_Min"), Max: numCell(row, "Depth_Max")},
				Time:               model.TimeRange{Start: timeCell(row, "Time_Min"), End: timeCell(row, "Time_Max")},
				TemporalResolution: textCell(row, "Temporal_Resolution"),
				SpatialResolution:  textCell(row, "Spatial_Resolution"),
				Make:               textCell(row, "Make"),
				Sensor:             textCell(row, "Sensor"),
				Keywords:           textCell(row, "Keywords"),
				DataSource:         textCell(row, "Data_Source"),
				Distributor:        textCell(row, "Distributor"),
			})
		}
		snap.Variables[name] = append(snap.Variables[name], Variable{
			TableName: name,
			Name:      varName,
			LongName:  textCell(row, "Long_Name"),
			Unit:      textCell(row, "Unit"),
		})

		_, _ = digest.WriteString(name)
		_, _ = digest.WriteString("\x1f")
		_, _ = digest.WriteString(varName)
		_, _ = digest.WriteString("\x1f")
		_, _ = digest.WriteString(textCell(row, "Long_Name"))
		_, _ = digest.WriteString("\x1e")
	}

	sort.Slice(snap.Tables, func(i, j int) bool { return snap.Tables[i].Name < snap.Tables[j].Name })
	snap.Fingerprint = fmt.Sprintf("%016x", digest.Sum64())
	snap.index()
	return snap, nil
}

func textCell(row model.Row, col string) string {
	v, ok := row[col]
	if !ok {
		return ""
	}
	switch v.Kind {
	case model.KindText:
		return v.Text
	case model.KindNumber:
		return strings.TrimSpace(fmt.Sprintf("%g", v.Number))
	case model.KindTime:
		return v.Time.UTC().Format("2006-01-02T15:04:05Z")
	default:
		return ""
	}
}

func numCell(row model.Row, col string) float64 {
	if v, ok := row[col]; ok && v.Kind == model.KindNumber {
		return v.Number
	}
	return 0
}

func timeCell(row model.Row, col string) time.Time {
	if v, ok := row[col]; ok && v.Kind == model.KindTime {
		return v.Time
	}
	return time.Time{}
}
