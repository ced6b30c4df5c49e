package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/spacetime-gateway/internal/core/model"
)

// The remote dialect is SELECT-like: top(n), bracket-quoted reserved
// identifiers, datediff/datename date functions, newid() for random
// ordering, stdev() for sample standard deviation.

var reservedWords = map[string]struct{}{
	"time": {}, "date": {}, "year": {}, "month": {}, "day": {},
	"hour": {}, "minute": {}, "second": {}, "user": {}, "order": {},
	"group": {}, "top": {}, "percent": {}, "count": {}, "value": {},
	"unit": {}, "key": {}, "index": {},
}

// EscapeIdentifier bracket-quotes a column name when it collides with a
// reserved word of the dialect or contains non-identifier characters.
func EscapeIdentifier(name string) string {
	if name == "" {
		return name
	}
	if strings.HasPrefix(name, "[") && strings.HasSuffix(name, "]") {
		return name
	}
	if _, ok := reservedWords[strings.ToLower(name)]; ok {
		return "[" + name + "]"
	}
	for _, r := range name {
		if !isIdentRune(r) {
			return "[" + name + "]"
		}
	}
	return name
}

func isIdentRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}

// Render emits the final query text for a validated spec.
func Render(spec model.QuerySpec) (string, error) {
	if spec.Table == "" || len(spec.Variables) == 0 {
		return "", fmt.Errorf("spec is incomplete: table and variable are required")
	}
	switch spec.Mode {
	case model.AggRaw, "":
		return renderRaw(spec), nil
	case model.AggDepthProfile:
		if spec.Depth == nil {
			return "", fmt.Errorf("depth profile needs depth bounds")
		}
		return renderGrouped(spec, []groupExpr{{expr: "depth", alias: "depth"}}), nil
	case model.AggTimeSeries:
		return renderGrouped(spec, []groupExpr{timeKey(spec)}), nil
	case model.AggSpaceTime:
		return renderGrouped(spec, spatialKeys(spec)), nil
	case model.AggCustomGroup:
		keys, err := customKeys(spec)
		if err != nil {
			return "", err
		}
		return renderGrouped(spec, keys), nil
	default:
		return "", fmt.Errorf("unknown aggregation mode %q", spec.Mode)
	}
}

// RenderCount emits the count-only preflight variant: count(*) for
// total matched rows and count(variable) for non-null rows, over the
// same interval predicates and nothing else.
func RenderCount(spec model.QuerySpec) (string, error) {
	if spec.Table == "" || len(spec.Variables) == 0 {
		return "", fmt.Errorf("spec is incomplete: table and variable are required")
	}
	v := spec.Variable()
	sel := fmt.Sprintf("count(*) as n_total, count(%s) as %s_count", EscapeIdentifier(v), aliasBase(v))
	return fmt.Sprintf("select %s from %s where %s", sel, spec.Table, strings.Join(predicates(spec), " and ")), nil
}

type groupExpr struct {
	expr  string // expression as grouped and selected
	alias string // select-list alias; every derived expression gets one
}

func (g groupExpr) selectItem() string {
	if g.alias == "" || g.alias == g.expr {
		return g.expr
	}
	return g.expr + " as " + g.alias
}

func renderRaw(spec model.QuerySpec) string {
	cols := []string{"[time]", "lat", "lon"}
	if spec.Depth != nil {
		cols = append(cols, "depth")
	}
	order := strings.Join(cols, ", ")
	for _, v := range spec.Variables {
		cols = append(cols, EscapeIdentifier(v))
	}
	if spec.RandomSample {
		order = "newid()"
	}
	return fmt.Sprintf("select %s%s from %s where %s order by %s",
		topClause(spec), strings.Join(cols, ", "), spec.Table,
		strings.Join(predicates(spec), " and "), order)
}

func renderGrouped(spec model.QuerySpec, keys []groupExpr) string {
	sel := make([]string, 0, len(keys)+4)
	grp := make([]string, 0, len(keys))
	ord := make([]string, 0, len(keys))
	for _, k := range keys {
		sel = append(sel, k.selectItem())
		grp = append(grp, k.expr)
		if k.alias != "" {
			ord = append(ord, k.alias)
		} else {
			ord = append(ord, k.expr)
		}
	}
	v := spec.Variable()
	ev := EscapeIdentifier(v)
	ab := aliasBase(v)
	sel = append(sel,
		"count(*) as n_total",
		fmt.Sprintf("count(%s) as %s_count", ev, ab),
		fmt.Sprintf("avg(%s) as %s_mean", ev, ab),
		fmt.Sprintf("stdev(%s) as %s_std", ev, ab),
	)

	preds := predicates(spec)
	if spec.Mode == model.AggCustomGroup {
		preds = append(preds, ev+" is not null")
	}

	return fmt.Sprintf("select %s%s from %s where %s group by %s order by %s",
		topClause(spec), strings.Join(sel, ", "), spec.Table,
		strings.Join(preds, " and "), strings.Join(grp, ", "), strings.Join(ord, ", "))
}

func timeKey(spec model.QuerySpec) groupExpr {
	if b := spec.TemporalBin; b != nil {
		w := b.WidthDays
		expr := fmt.Sprintf("round(cast(datediff(day, '%s', [time]) as float) / %d, 0) * %d",
			b.Reference.Format("2006-01-02"), w, w)
		return groupExpr{expr: expr, alias: "time_bin"}
	}
	return groupExpr{expr: "[time]", alias: "[time]"}
}

func spatialKeys(spec model.QuerySpec) []groupExpr {
	if b := spec.SpatialBin; b != nil {
		return []groupExpr{
			{expr: binExpr("lat", *b), alias: "lat_bin"},
			{expr: binExpr("lon", *b), alias: "lon_bin"},
		}
	}
	return []groupExpr{{expr: "lat", alias: "lat"}, {expr: "lon", alias: "lon"}}
}

// binExpr labels each coordinate with its bin center. Offset positions
// the bin edges, so the label expression shifts by half a width.
func binExpr(axis string, b model.SpatialBin) string {
	shift := b.Offset + b.Width/2
	return fmt.Sprintf("round((%s - %s) / %s, 0) * %s + %s",
		axis, num(shift), num(b.Width), num(b.Width), num(shift))
}

func customKeys(spec model.QuerySpec) ([]groupExpr, error) {
	if len(spec.GroupKeys) == 0 {
		return nil, fmt.Errorf("custom grouping needs at least one group key")
	}
	keys := make([]groupExpr, 0, len(spec.GroupKeys))
	for _, k := range spec.GroupKeys {
		col := EscapeIdentifier(k.Column)
		alias := k.Alias
		switch {
		case k.Round != nil:
			if alias == "" {
				alias = aliasBase(k.Column) + "_bin"
			}
			keys = append(keys, groupExpr{expr: fmt.Sprintf("round(%s, %d)", col, *k.Round), alias: alias})
		case k.Floor:
			if alias == "" {
				alias = aliasBase(k.Column) + "_bin"
			}
			keys = append(keys, groupExpr{expr: fmt.Sprintf("floor(%s)", col), alias: alias})
		default:
			keys = append(keys, groupExpr{expr: col, alias: alias})
		}
	}
	return keys, nil
}

func predicates(spec model.QuerySpec) []string {
	preds := []string{
		fmt.Sprintf("[time] between '%s' and '%s'",
			spec.Time.Start.UTC().Format("2006-01-02 15:04:05"),
			spec.Time.End.UTC().Format("2006-01-02 15:04:05")),
		fmt.Sprintf("lat between %s and %s", num(spec.Lat.Min), num(spec.Lat.Max)),
		fmt.Sprintf("lon between %s and %s", num(spec.Lon.Min), num(spec.Lon.Max)),
	}
	if spec.Depth != nil {
		preds = append(preds, fmt.Sprintf("depth between %s and %s", num(spec.Depth.Min), num(spec.Depth.Max)))
	}
	return preds
}

func topClause(spec model.QuerySpec) string {
	if spec.Top > 0 {
		return fmt.Sprintf("top %d ", spec.Top)
	}
	return ""
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// aliasBase turns a variable name into a safe alias prefix.
func aliasBase(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		if isIdentRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "v"
	}
	return b.String()
}
