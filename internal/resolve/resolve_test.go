package resolve_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulomach/prql/internal/parser"
	"github.com/paulomach/prql/internal/resolve"
	"github.com/paulomach/prql/internal/schema"
)

var testSchema = schema.MapProvider{
	"employees": {"id", "name", "country", "salary", "join_date"},
	"salaries":  {"country", "salary"},
	"invoices":  {"invoice_id", "customer_id", "total", "year"},
	"archived":  {"invoice_id", "customer_id", "total", "year"},
}

func mustResolve(t *testing.T, src string) *resolve.Query {
	t.Helper()
	p, err := parser.Parse(src)
	require.NoError(t, err)
	q, err := resolve.Resolve(p, testSchema)
	require.NoError(t, err)
	return q
}

func resolveErr(t *testing.T, src string) *resolve.Error {
	t.Helper()
	p, err := parser.Parse(src)
	require.NoError(t, err)
	_, err = resolve.Resolve(p, testSchema)
	require.Error(t, err)
	var rerr *resolve.Error
	require.ErrorAs(t, err, &rerr)
	return rerr
}

func outputNames(cols []resolve.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func TestResolveFromExpandsColumns(t *testing.T) {
	q := mustResolve(t, "from employees")
	assert.Equal(t, []string{"id", "name", "country", "salary", "join_date"},
		q.Main.From.Columns)
	assert.Equal(t, []string{"id", "name", "country", "salary", "join_date"},
		outputNames(q.Main.Output))
}

func TestResolveSelectNarrowsScope(t *testing.T) {
	q := mustResolve(t, "from employees\nselect {name, salary}")
	assert.Equal(t, []string{"name", "salary"}, outputNames(q.Main.Output))

	// A column dropped by select is gone for later stages.
	rerr := resolveErr(t, "from employees\nselect {name}\nfilter salary > 10")
	assert.Contains(t, rerr.Msg, `unknown name "salary"`)
	assert.Equal(t, []string{"name"}, rerr.Available)
}

func TestResolveSelectRenames(t *testing.T) {
	q := mustResolve(t, "from employees\nselect {who = name, pay = salary * 2}")
	assert.Equal(t, []string{"who", "pay"}, outputNames(q.Main.Output))
}

func TestResolveSelectDuplicate(t *testing.T) {
	rerr := resolveErr(t, "from employees\nselect {name, name}")
	assert.Contains(t, rerr.Msg, `duplicate column "name"`)
}

func TestResolveSelectUnnamedExpression(t *testing.T) {
	rerr := resolveErr(t, "from employees\nselect {salary * 2}")
	assert.Contains(t, rerr.Msg, "needs a name")
}

func TestResolveDeriveAppends(t *testing.T) {
	q := mustResolve(t, "from employees\nderive {monthly = salary / 12}")
	assert.Equal(t, []string{"id", "name", "country", "salary", "join_date", "monthly"},
		outputNames(q.Main.Output))
}

func TestResolveDeriveNoShadowing(t *testing.T) {
	rerr := resolveErr(t, "from employees\nderive {salary = salary * 2}")
	assert.Contains(t, rerr.Msg, "cannot shadow")
}

func TestResolveUnknownColumnListsAvailable(t *testing.T) {
	rerr := resolveErr(t, "from employees\nfilter wage > 10")
	assert.Contains(t, rerr.Msg, `unknown name "wage"`)
	assert.Contains(t, rerr.Available, "employees.salary")
}

func TestResolveErrorSpans(t *testing.T) {
	rerr := resolveErr(t, "from employees\nfilter wage > 10")
	assert.Equal(t, 2, rerr.Span.Start.Line)
	assert.Equal(t, 8, rerr.Span.Start.Column)
}

func TestResolveUnknownTable(t *testing.T) {
	rerr := resolveErr(t, "from missing")
	assert.Contains(t, rerr.Msg, `unknown table "missing"`)
}

func TestResolveAggregateOutput(t *testing.T) {
	q := mustResolve(t, `
from salaries
group country (
  aggregate {avg_salary = average salary, n = count}
)
`)
	agg := q.Main.Stages[0].(*resolve.Aggregate)
	require.Len(t, agg.Keys, 1)
	assert.Equal(t, "country", agg.Keys[0].Name)
	assert.Equal(t, []string{"country", "avg_salary", "n"}, outputNames(q.Main.Output))

	call := agg.Aggs[0].Expr.(*resolve.AggCall)
	assert.Equal(t, "avg", call.Func)

	count := agg.Aggs[1].Expr.(*resolve.AggCall)
	assert.Equal(t, "count", count.Func)
	assert.Nil(t, count.Arg)
}

func TestResolveAggregateVisibility(t *testing.T) {
	// A bare column that is not a grouping key cannot appear in an
	// aggregate item.
	rerr := resolveErr(t, `
from salaries
group country (
  aggregate {x = salary}
)
`)
	assert.Contains(t, rerr.Msg, "must be a grouping key or wrapped in an aggregate function")

	// Referencing a pre-aggregation column after the aggregate fails.
	rerr = resolveErr(t, `
from salaries
group country (
  aggregate {avg_salary = average salary}
)
filter salary > 10
`)
	assert.Contains(t, rerr.Msg, `unknown name "salary"`)
	assert.Equal(t, []string{"country", "avg_salary"}, rerr.Available)
}

func TestResolveAggregateArithmetic(t *testing.T) {
	q := mustResolve(t, `
from invoices
group year (
  aggregate {spread = max total - min total}
)
`)
	agg := q.Main.Stages[0].(*resolve.Aggregate)
	bin := agg.Aggs[0].Expr.(*resolve.Binary)
	assert.Equal(t, "-", bin.Op)
	_, leftIsAgg := bin.Left.(*resolve.AggCall)
	assert.True(t, leftIsAgg)
}

func TestResolveAggregateOutsideAggregateStage(t *testing.T) {
	rerr := resolveErr(t, "from invoices\nfilter sum total > 10")
	assert.Contains(t, rerr.Msg, `aggregate function "sum" outside aggregate stage`)
}

func TestResolveJoinMergesColumns(t *testing.T) {
	q := mustResolve(t, "from employees\njoin salaries (==country)")
	join := q.Main.Stages[0].(*resolve.Join)
	assert.Equal(t, []string{"country"}, join.Using)

	// country merges; the colliding salary column from the right side is
	// reachable only under its relation name.
	assert.Equal(t, []string{"id", "name", "country", "salary", "join_date", "salaries.salary"},
		outputNames(join.Out))
}

func TestResolveJoinAmbiguity(t *testing.T) {
	rerr := resolveErr(t, "from employees\njoin salaries (==country)\nfilter salary > 10\nselect {salary}")
	// The filter's bare "salary" matches both sides of the join.
	assert.Contains(t, rerr.Msg, `ambiguous name "salary"`)
	assert.Contains(t, rerr.Msg, "employees.salary")
	assert.Contains(t, rerr.Msg, "salaries.salary")
}

func TestResolveJoinQualifiedAccess(t *testing.T) {
	q := mustResolve(t, "from employees\njoin salaries (==country)\nselect {name, pay = salaries.salary}")
	sel := q.Main.Stages[1].(*resolve.Project)
	ref := sel.Cols[1].Expr.(*resolve.ColumnRef)
	assert.Equal(t, "salaries", ref.Relation)
	assert.Equal(t, "salary", ref.Name)
}

func TestResolveJoinOnExpression(t *testing.T) {
	q := mustResolve(t, "from employees\njoin s = salaries (employees.country == s.country)")
	join := q.Main.Stages[0].(*resolve.Join)
	require.NotNil(t, join.On)
	on := join.On.(*resolve.Binary)
	left := on.Left.(*resolve.ColumnRef)
	assert.Equal(t, "employees", left.Relation)
}

func TestResolveJoinUsingValidation(t *testing.T) {
	rerr := resolveErr(t, "from employees\njoin invoices (==country)")
	assert.Contains(t, rerr.Msg, `join column "country" not found in invoices`)

	rerr = resolveErr(t, "from invoices\njoin salaries (==invoice_id)")
	assert.Contains(t, rerr.Msg, `join column "invoice_id" not found in salaries`)
}

func TestResolveBindings(t *testing.T) {
	q := mustResolve(t, `
let top_earners = (
  from employees
  sort -salary
  take 10
)
from top_earners
select {name}
`)
	require.Len(t, q.Bindings, 1)
	assert.Equal(t, "top_earners", q.Bindings[0].Name)
	assert.True(t, q.Main.From.Binding)
	assert.Equal(t, []string{"id", "name", "country", "salary", "join_date"},
		q.Main.From.Columns)
}

func TestResolveBindingJoined(t *testing.T) {
	q := mustResolve(t, `
let by_country = (
  from salaries
  group country (
    aggregate {avg_salary = average salary}
  )
)
from employees
join by_country (==country)
select {name, avg_salary}
`)
	join := q.Main.Stages[0].(*resolve.Join)
	assert.True(t, join.Binding)
	assert.Equal(t, []string{"country", "avg_salary"}, join.RightCols)
}

func TestResolveDuplicateBinding(t *testing.T) {
	rerr := resolveErr(t, `
let x = (
  from employees
)
let x = (
  from salaries
)
from x
`)
	assert.Contains(t, rerr.Msg, `duplicate binding name "x"`)
}

func TestResolveAppendColumnCount(t *testing.T) {
	rerr := resolveErr(t, `
from invoices
append (
  from salaries
)
`)
	assert.Contains(t, rerr.Msg, "append requires matching column counts")
}

func TestResolveAppendKeepsLeftColumns(t *testing.T) {
	q := mustResolve(t, `
from invoices
append (
  from archived
)
`)
	union := q.Main.Stages[0].(*resolve.Union)
	assert.Equal(t, []string{"invoice_id", "customer_id", "total", "year"},
		outputNames(union.Out))
}

func TestResolveFromAliasQualifies(t *testing.T) {
	q := mustResolve(t, "from e = employees\nselect {e.name}")
	sel := q.Main.Stages[0].(*resolve.Project)
	ref := sel.Cols[0].Expr.(*resolve.ColumnRef)
	assert.Equal(t, "e", ref.Relation)
}
