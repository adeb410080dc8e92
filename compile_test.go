package prql

import (
	"strings"
	"testing"

	"github.com/paulomach/prql/internal/schema"
)

var testSchema = schema.MapProvider{
	"employees": {"id", "name", "country", "salary", "join_date"},
	"salaries":  {"country", "salary"},
	"invoices":  {"invoice_id", "customer_id", "total", "year"},
	"archived":  {"invoice_id", "customer_id", "total", "year"},
}

func TestCompileSnapshots(t *testing.T) {
	cases := []struct {
		name    string
		dialect string
		prql    string
		wantSQL string
	}{
		{
			name: "select_filter_sort_take",
			prql: `
from employees
filter country == 'NL'
select {name, salary}
sort -salary
take 10
`,
			wantSQL: `
SELECT
  name,
  salary
FROM
  employees
WHERE
  country = 'NL'
ORDER BY
  salary DESC
LIMIT
  10
`,
		},
		{
			name: "derive_rewritten_in_where",
			prql: `
from employees
derive {monthly = salary / 12}
filter monthly > 1000
select {name, monthly}
`,
			wantSQL: `
SELECT
  name,
  salary / 12 AS monthly
FROM
  employees
WHERE
  salary / 12 > 1000
`,
		},
		{
			name: "group_aggregate_having",
			prql: `
from invoices
group {customer_id, year} (
  aggregate {spent = sum total, orders = count}
)
filter spent > 500
sort -spent
`,
			wantSQL: `
SELECT
  customer_id,
  year,
  SUM(total) AS spent,
  COUNT(*) AS orders
FROM
  invoices
GROUP BY
  customer_id,
  year
HAVING
  SUM(total) > 500
ORDER BY
  spent DESC
`,
		},
		{
			name: "aggregate_filter_then_join",
			prql: `
from salaries
group country (
  aggregate {average_salary = average salary}
)
filter average_salary > 1000
join employees (==country)
select {name, average_salary}
`,
			wantSQL: `
WITH table_0 AS (
  SELECT
    country,
    AVG(salary) AS average_salary
  FROM
    salaries
  GROUP BY
    country
  HAVING
    AVG(salary) > 1000
)
SELECT
  name,
  average_salary
FROM
  table_0
  INNER JOIN employees USING (country)
`,
		},
		{
			name: "aggregate_filter_then_aggregate",
			prql: `
from employees
group country (
  aggregate {total = sum salary}
)
filter total > 0
aggregate {grand = sum total}
`,
			wantSQL: `
WITH table_0 AS (
  SELECT
    country,
    SUM(salary) AS total
  FROM
    employees
  GROUP BY
    country
  HAVING
    SUM(salary) > 0
)
SELECT
  SUM(total) AS grand
FROM
  table_0
`,
		},
		{
			name: "take_inside_append_arm",
			prql: `
from invoices
select {customer_id, total}
append (
  from archived
  select {customer_id, total}
  sort -total
  take 1
)
`,
			wantSQL: `
WITH table_0 AS (
  SELECT
    customer_id,
    total
  FROM
    archived
  ORDER BY
    total DESC
  LIMIT
    1
)
SELECT
  customer_id,
  total
FROM
  invoices
UNION
ALL
SELECT
  customer_id,
  total
FROM
  table_0
`,
		},
		{
			name: "join_using",
			prql: `
from employees
join salaries (==country)
select {name, country}
`,
			wantSQL: `
SELECT
  name,
  country
FROM
  employees
  INNER JOIN salaries USING (country)
`,
		},
		{
			name: "join_on_with_alias",
			prql: `
from e = employees
join side:left s = salaries (e.country == s.country)
select {e.name, s.salary}
`,
			wantSQL: `
SELECT
  e.name,
  s.salary
FROM
  employees AS e
  LEFT OUTER JOIN salaries AS s ON e.country = s.country
`,
		},
		{
			name: "take_range",
			prql: `
from invoices
take 10..15
`,
			wantSQL: `
SELECT
  invoice_id,
  customer_id,
  total,
  year
FROM
  invoices
LIMIT
  6 OFFSET 9
`,
		},
		{
			name: "append_union",
			prql: `
from invoices
select {customer_id, total}
append (
  from archived
  select {customer_id, total}
)
`,
			wantSQL: `
SELECT
  customer_id,
  total
FROM
  invoices
UNION
ALL
SELECT
  customer_id,
  total
FROM
  archived
`,
		},
		{
			name: "append_then_filter",
			prql: `
from invoices
append (
  from archived
)
filter total > 100
`,
			wantSQL: `
WITH table_0 AS (
  SELECT
    invoice_id,
    customer_id,
    total,
    year
  FROM
    invoices
  UNION
  ALL
  SELECT
    invoice_id,
    customer_id,
    total,
    year
  FROM
    archived
)
SELECT
  invoice_id,
  customer_id,
  total,
  year
FROM
  table_0
WHERE
  total > 100
`,
		},
		{
			name: "binding_referenced_twice",
			prql: `
let base = (
  from invoices
  filter total > 0
)
from base
join b = base (==customer_id)
select {customer_id, b.total}
`,
			wantSQL: `
WITH base AS (
  SELECT
    invoice_id,
    customer_id,
    total,
    year
  FROM
    invoices
  WHERE
    total > 0
)
SELECT
  customer_id,
  b.total
FROM
  base
  INNER JOIN base AS b USING (customer_id)
`,
		},
		{
			name: "employee_report",
			prql: `
let newest_employees = (
  from employees
  sort -join_date
  take 50
)
let average_salaries = (
  from salaries
  group country (
    aggregate {average_country_salary = average salary}
  )
)
from newest_employees
join average_salaries (==country)
select {name, salary, average_country_salary}
`,
			wantSQL: `
WITH newest_employees AS (
  SELECT
    id,
    name,
    country,
    salary,
    join_date
  FROM
    employees
  ORDER BY
    join_date DESC
  LIMIT
    50
),
average_salaries AS (
  SELECT
    country,
    AVG(salary) AS average_country_salary
  FROM
    salaries
  GROUP BY
    country
)
SELECT
  name,
  salary,
  average_country_salary
FROM
  newest_employees
  INNER JOIN average_salaries USING (country)
`,
		},
		{
			name:    "mysql_limit_offset",
			dialect: "mysql",
			prql: `
from invoices
take 10..15
`,
			wantSQL: `
SELECT
  invoice_id,
  customer_id,
  total,
  year
FROM
  invoices
LIMIT
  9, 6
`,
		},
		{
			name:    "mssql_top",
			dialect: "mssql",
			prql: `
from invoices
sort -total
take 3
`,
			wantSQL: `
SELECT TOP 3
  invoice_id,
  customer_id,
  total,
  year
FROM
  invoices
ORDER BY
  total DESC
`,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			sql, err := Compile(tc.prql, Options{Dialect: tc.dialect, Schema: testSchema})
			if err != nil {
				t.Fatalf("Compile returned error: %v", err)
			}
			if got, want := normalize(sql), normalize(tc.wantSQL); got != want {
				t.Fatalf("SQL mismatch for %s:\nwant:\n%s\n\ngot:\n%s", tc.name, want, got)
			}
		})
	}
}

func TestCompileDeterministic(t *testing.T) {
	src := `
let recent = (
  from invoices
  filter year >= 2024
)
from recent
group customer_id (
  aggregate {spent = sum total}
)
sort -spent
take 5
`
	first, err := Compile(src, Options{Schema: testSchema})
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Compile(src, Options{Schema: testSchema})
		if err != nil {
			t.Fatalf("Compile returned error: %v", err)
		}
		if again != first {
			t.Fatalf("compilation is not deterministic:\nfirst:\n%s\n\nagain:\n%s", first, again)
		}
	}
}

func normalize(s string) string {
	return strings.TrimSpace(s)
}
