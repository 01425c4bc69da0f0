package query

import (
	"fmt"
	"strings"
)

// timestampColumn is the pivot's second-resolution time column. Callers
// address it as FilterTimestamp.
const timestampColumn = "ts"

// dmyTimestamp renders a stored timestamp the way operators type dates.
// It is a format string; %s takes the column.
const dmyTimestamp = `strftime('%%d/%%m/%%Y %%H:%%M:%%S', %s)`

// pivot builds the conditional-aggregation CTE over sensor_data.
//
// Each metric key becomes a column aliased m0..mN; the keys themselves
// are bound parameters. Inner predicates filter raw readings before
// grouping, outer predicates filter pivoted rows.
type pivot struct {
	keys    []string
	columns map[string]string

	inner     []string
	innerArgs []any
	outer     []string
	outerArgs []any
}

func newPivot(keys []string) *pivot {
	p := &pivot{
		keys:    keys,
		columns: make(map[string]string, len(keys)+1),
	}
	for i, k := range keys {
		p.columns[strings.ToLower(k)] = metricAlias(i)
	}
	// Set last so a metric can never shadow the time column.
	p.columns[FilterTimestamp] = timestampColumn
	return p
}

func metricAlias(i int) string {
	return fmt.Sprintf("m%d", i)
}

// column maps a public column name ("timestamp" or a metric key, any
// case) to its SQL alias. The aliases themselves are not public names.
func (p *pivot) column(name string) (string, bool) {
	col, ok := p.columns[strings.ToLower(strings.TrimSpace(name))]
	return col, ok
}

func (p *pivot) whereRaw(cond string, args ...any) {
	p.inner = append(p.inner, cond)
	p.innerArgs = append(p.innerArgs, args...)
}

func (p *pivot) whereRow(cond string, args ...any) {
	p.outer = append(p.outer, cond)
	p.outerArgs = append(p.outerArgs, args...)
}

// searchColumns adds an outer predicate matching pattern against the
// given aliases. Metrics match their shortest rendering at full double
// precision (15 significant digits); the timestamp matches both
// dd/MM/yyyy and stored form.
func (p *pivot) searchColumns(pattern string, aliases []string) {
	var (
		conds []string
		args  []any
	)
	for _, alias := range aliases {
		if alias == timestampColumn {
			conds = append(conds,
				fmt.Sprintf(dmyTimestamp, timestampColumn)+` LIKE ? ESCAPE '\'`,
				timestampColumn+` LIKE ? ESCAPE '\'`,
			)
			args = append(args, pattern, pattern)
			continue
		}
		conds = append(conds, fmt.Sprintf(`printf('%%.15g', %s) LIKE ? ESCAPE '\'`, alias))
		args = append(args, pattern)
	}
	p.whereRow("("+strings.Join(conds, " OR ")+")", args...)
}

// cte returns the WITH clause and its arguments.
func (p *pivot) cte() (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(p.keys)+len(p.innerArgs))

	b.WriteString("WITH pivot AS (\n\tSELECT substr(d.recorded_at, 1, 19) AS ")
	b.WriteString(timestampColumn)
	for i, k := range p.keys {
		fmt.Fprintf(&b, ",\n\t\tCOALESCE(MAX(CASE WHEN s.type = ? THEN d.value END), 0) AS %s", metricAlias(i))
		args = append(args, k)
	}
	b.WriteString("\n\tFROM sensor_data d\n\tJOIN sensors s ON s.sensor_id = d.sensor_id")
	if len(p.inner) > 0 {
		b.WriteString("\n\tWHERE ")
		b.WriteString(strings.Join(p.inner, " AND "))
		args = append(args, p.innerArgs...)
	}
	b.WriteString("\n\tGROUP BY ")
	b.WriteString(timestampColumn)
	b.WriteString("\n)\n")

	return b.String(), args
}

func (p *pivot) outerWhere() string {
	if len(p.outer) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(p.outer, " AND ") + "\n"
}

// selectSQL returns the row query. order is an already allow-listed
// ORDER BY body; limit <= 0 means no limit.
func (p *pivot) selectSQL(order string, limit, offset int) (string, []any) {
	cte, args := p.cte()

	cols := make([]string, 0, len(p.keys)+1)
	cols = append(cols, timestampColumn)
	for i := range p.keys {
		cols = append(cols, metricAlias(i))
	}

	var b strings.Builder
	b.WriteString(cte)
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString("\nFROM pivot\n")
	b.WriteString(p.outerWhere())
	b.WriteString("ORDER BY ")
	b.WriteString(order)
	args = append(args, p.outerArgs...)
	if limit > 0 {
		b.WriteString("\nLIMIT ? OFFSET ?")
		args = append(args, limit, offset)
	}

	return b.String(), args
}

// countSQL returns the query counting pivoted rows under the same
// predicates.
func (p *pivot) countSQL() (string, []any) {
	cte, args := p.cte()
	args = append(args, p.outerArgs...)
	return cte + "SELECT COUNT(*) FROM pivot\n" + p.outerWhere(), args
}

// likePattern wraps term for a substring LIKE with '\' as the escape
// character.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}
