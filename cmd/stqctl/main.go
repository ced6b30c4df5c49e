// stqctl is a small terminal client for the gateway core: search and
// describe the catalog, estimate a selection, run it, or execute
// manual query text against the remote service directly.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"

	"github.com/mohammed-shakir/spacetime-gateway/internal/core/catalog"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/config"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/executor"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/httpclient"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/model"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/normalize"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/preflight"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/query"
	"github.com/mohammed-shakir/spacetime-gateway/internal/logger"
)

func main() {
	os.Exit(run())
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: stqctl <command> [flags]

commands:
  search    -q <keyword> [-expanded]
  describe  -table <name>
  estimate  <selection flags>
  query     <selection flags> [-agg mode] [-top n]
  manual    -sql <query text>

selection flags:
  -table -variable -lat-min -lat-max -lon-min -lon-max
  -time-start -time-end [-depth-min -depth-max]`)
}

func run() int {
	if len(os.Args) < 2 {
		usage()
		return 2
	}
	_ = godotenv.Load()

	cfg := config.FromEnv()
	zl := logger.Build(logger.Config{Level: "warn", Console: true, Component: "stqctl"}, os.Stderr)
	log := logger.NewSlog(&zl)

	client := httpclient.NewOutbound(cfg.APIKey)
	exec, err := executor.New(log, client, cfg.RemoteURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	ix := catalog.New(log, exec, nil)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.FetchTimeout)
	defer cancel()

	switch os.Args[1] {
	case "search":
		err = cmdSearch(ctx, ix, os.Args[2:])
	case "describe":
		err = cmdDescribe(ctx, ix, os.Args[2:])
	case "estimate":
		err = cmdEstimate(ctx, log, exec, os.Args[2:])
	case "query":
		err = cmdQuery(ctx, log, exec, cfg, os.Args[2:])
	case "manual":
		err = cmdManual(ctx, exec, os.Args[2:])
	default:
		usage()
		return 2
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func cmdSearch(ctx context.Context, ix *catalog.Index, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	keyword := fs.String("q", "", "search keyword (regex or substring)")
	expanded := fs.Bool("expanded", false, "match all descriptive text fields, not just Long_Name")
	_ = fs.Parse(args)
	if *keyword == "" {
		return fmt.Errorf("search: -q is required")
	}

	fields := []string(nil)
	if *expanded {
		fields = catalog.ExpandedSearchFields
	}
	rows, err := ix.Search(ctx, *keyword, fields...)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Table", "Variable Long Name", "Unit", "Sensor", "Dataset"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.TableName, r.LongName, r.Unit, r.Sensor, r.DatasetName})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
	fmt.Printf("%d matches\n", len(rows))
	return nil
}

func cmdDescribe(ctx context.Context, ix *catalog.Index, args []string) error {
	fs := flag.NewFlagSet("describe", flag.ExitOnError)
	tbl := fs.String("table", "", "table name")
	_ = fs.Parse(args)
	if *tbl == "" {
		return fmt.Errorf("describe: -table is required")
	}

	row, err := ix.Describe(ctx, *tbl)
	if err != nil {
		return err
	}
	vars, err := ix.TableVariables(ctx, *tbl)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendRows([]table.Row{
		{"Table", row.TableName},
		{"Dataset", row.DatasetName},
		{"Lat", fmt.Sprintf("%g .. %g", row.LatMin, row.LatMax)},
		{"Lon", fmt.Sprintf("%g .. %g", row.LonMin, row.LonMax)},
		{"Depth", fmt.Sprintf("%g .. %g", row.DepthMin, row.DepthMax)},
		{"Time", row.TimeMin + " .. " + row.TimeMax},
		{"Temporal res", row.TemporalResolution},
		{"Spatial res", row.SpatialResolution},
		{"Source", row.DataSource},
		{"Distributor", row.Distributor},
		{"Variables", fmt.Sprintf("%d", len(vars))},
	})
	t.SetStyle(table.StyleLight)
	t.Render()

	vt := table.NewWriter()
	vt.SetOutputMirror(os.Stdout)
	vt.AppendHeader(table.Row{"Variable", "Long Name", "Unit"})
	for _, v := range vars {
		vt.AppendRow(table.Row{v.Name, v.LongName, v.Unit})
	}
	vt.SetStyle(table.StyleLight)
	vt.Render()
	return nil
}

type selectionFlags struct {
	table, variable                *string
	latMin, latMax, lonMin, lonMax *float64
	depthMin, depthMax             *float64
	timeStart, timeEnd             *string
	hasDepth                       func() bool
}

func addSelectionFlags(fs *flag.FlagSet) *selectionFlags {
	sf := &selectionFlags{
		table:     fs.String("table", "", "table name"),
		variable:  fs.String("variable", "", "variable (column) name"),
		latMin:    fs.Float64("lat-min", 0, "south bound"),
		latMax:    fs.Float64("lat-max", 0, "north bound"),
		lonMin:    fs.Float64("lon-min", 0, "west bound"),
		lonMax:    fs.Float64("lon-max", 0, "east bound"),
		depthMin:  fs.Float64("depth-min", 0, "shallow bound"),
		depthMax:  fs.Float64("depth-max", -1, "deep bound (unset disables the depth predicate)"),
		timeStart: fs.String("time-start", "", "start date (YYYY-MM-DD)"),
		timeEnd:   fs.String("time-end", "", "end date (YYYY-MM-DD)"),
	}
	sf.hasDepth = func() bool { return *sf.depthMax >= *sf.depthMin }
	return sf
}

func (sf *selectionFlags) spec() (model.QuerySpec, error) {
	if *sf.table == "" || *sf.variable == "" {
		return model.QuerySpec{}, fmt.Errorf("-table and -variable are required")
	}
	start, err := time.Parse("2006-01-02", *sf.timeStart)
	if err != nil {
		return model.QuerySpec{}, fmt.Errorf("-time-start: %w", err)
	}
	end, err := time.Parse("2006-01-02", *sf.timeEnd)
	if err != nil {
		return model.QuerySpec{}, fmt.Errorf("-time-end: %w", err)
	}
	var depth *model.Range
	if sf.hasDepth() {
		depth = &model.Range{Min: *sf.depthMin, Max: *sf.depthMax}
	}
	return query.BuildBoundingBox(*sf.table, *sf.variable,
		model.Range{Min: *sf.latMin, Max: *sf.latMax},
		model.Range{Min: *sf.lonMin, Max: *sf.lonMax},
		model.TimeRange{Start: start, End: end},
		depth)
}

func cmdEstimate(ctx context.Context, log *slog.Logger, exec *executor.Executor, args []string) error {
	fs := flag.NewFlagSet("estimate", flag.ExitOnError)
	sf := addSelectionFlags(fs)
	threshold := fs.Int64("threshold", 1_000_000, "row threshold for classification")
	_ = fs.Parse(args)

	spec, err := sf.spec()
	if err != nil {
		return err
	}
	est, err := preflight.NewEstimator(log, exec).EstimateRowCount(ctx, spec)
	if err != nil {
		return err
	}
	vol := preflight.ClassifyVolume(est.TotalRows, *threshold)
	fmt.Printf("total rows:    %d\nnon-null rows: %d\nnull rows:     %d\nclass:         %s\n",
		est.TotalRows, est.NonNullRows, est.NullRows(), vol)
	return nil
}

func cmdQuery(ctx context.Context, log *slog.Logger, exec *executor.Executor, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	sf := addSelectionFlags(fs)
	agg := fs.String("agg", "raw", "aggregation mode: raw, depth_profile, time_series, space_time")
	top := fs.Int("top", 0, "limit to first n rows (raw mode)")
	_ = fs.Parse(args)

	spec, err := sf.spec()
	if err != nil {
		return err
	}
	switch model.AggMode(*agg) {
	case model.AggRaw:
	case model.AggDepthProfile, model.AggTimeSeries, model.AggSpaceTime:
		spec.Mode = model.AggMode(*agg)
	default:
		return fmt.Errorf("unknown aggregation mode %q", *agg)
	}
	if spec.Mode == model.AggDepthProfile && spec.Depth == nil {
		return fmt.Errorf("depth_profile requires -depth-min and -depth-max")
	}
	spec.Top = *top

	pipe := preflight.NewPipeline(log, exec, cfg.PreflightThreshold, cfg.PreflightEnforce)
	res, err := pipe.Run(ctx, spec)
	if err != nil {
		return err
	}
	renderResult(res)
	return nil
}

func cmdManual(ctx context.Context, exec *executor.Executor, args []string) error {
	fs := flag.NewFlagSet("manual", flag.ExitOnError)
	sql := fs.String("sql", "", "query text (read-only)")
	_ = fs.Parse(args)
	if strings.TrimSpace(*sql) == "" {
		return fmt.Errorf("manual: -sql is required")
	}
	raw, err := exec.Execute(ctx, *sql)
	if err != nil {
		return err
	}
	renderResult(normalize.Normalize(raw))
	return nil
}

func renderResult(res model.QueryResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	hdr := make(table.Row, len(res.Columns))
	for i, c := range res.Columns {
		hdr[i] = c
	}
	t.AppendHeader(hdr)
	for _, row := range res.Rows {
		rec := make(table.Row, len(res.Columns))
		for i, c := range res.Columns {
			rec[i] = cellString(row[c])
		}
		t.AppendRow(rec)
	}
	t.SetStyle(table.StyleLight)
	t.Render()
	if res.RowsEstimated != nil {
		fmt.Printf("%d rows (estimated %d before fetch)\n", res.RowsReturned, *res.RowsEstimated)
	} else {
		fmt.Printf("%d rows\n", res.RowsReturned)
	}
}

func cellString(v model.Value) string {
	switch v.Kind {
	case model.KindNumber:
		return fmt.Sprintf("%g", v.Number)
	case model.KindText:
		return v.Text
	case model.KindTime:
		return v.Time.UTC().Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}
