package prql

import (
	"strings"
	"testing"
)

func TestCompileErrors(t *testing.T) {
	cases := []struct {
		name         string
		dialect      string
		prql         string
		wantContains string
	}{
		{
			name:         "empty_query",
			prql:         ``,
			wantContains: "expected 'from'",
		},
		{
			name: "unknown_stage",
			prql: `
from employees
explode salary
`,
			wantContains: "expected pipeline stage",
		},
		{
			name: "unknown_table",
			prql: `
from missing
`,
			wantContains: `unknown table "missing"`,
		},
		{
			name: "unknown_column_lists_available",
			prql: `
from salaries
select {salery}
`,
			wantContains: "available columns: salaries.country, salaries.salary",
		},
		{
			name: "ambiguous_after_join",
			prql: `
from employees
join s = salaries (==country)
derive {double = salary * 2}
`,
			wantContains: `ambiguous name "salary"`,
		},
		{
			name: "bad_take_argument",
			prql: `
from employees
take 1.8
`,
			wantContains: "int or range after 'take'",
		},
		{
			name: "aggregate_outside_group",
			prql: `
from employees
filter (sum salary) > 10
`,
			wantContains: "outside aggregate stage",
		},
		{
			name: "column_dropped_by_select",
			prql: `
from employees
select {name}
filter salary > 10
`,
			wantContains: `unknown name "salary"`,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			sql, err := Compile(tc.prql, Options{Dialect: tc.dialect, Schema: testSchema})
			if err == nil {
				t.Fatalf("expected error, got SQL: %s", sql)
			}
			if !strings.Contains(err.Error(), tc.wantContains) {
				t.Fatalf("error mismatch for %s:\nwant substring: %q\ngot: %v", tc.name, tc.wantContains, err)
			}
		})
	}
}

func TestCompileRequiresSchema(t *testing.T) {
	_, err := Compile("from employees", Options{})
	if err == nil || !strings.Contains(err.Error(), "a schema provider is required") {
		t.Fatalf("want schema requirement error, got %v", err)
	}
}

func TestCompileUnknownDialect(t *testing.T) {
	_, err := Compile("from employees", Options{Dialect: "oracle", Schema: testSchema})
	if err == nil || !strings.Contains(err.Error(), `unknown dialect "oracle"`) {
		t.Fatalf("want unknown dialect error, got %v", err)
	}
}

func TestDiagnose(t *testing.T) {
	cases := []struct {
		name      string
		prql      string
		wantPhase string
	}{
		{"lex", "from employees\nfilter name == 'unterminated", "parse"},
		{"parse", "from employees\ntake", "parse"},
		{"resolve", "from employees\nselect {missing}", "resolve"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(tc.prql, Options{Schema: testSchema})
			if err == nil {
				t.Fatal("expected error")
			}
			diag, ok := Diagnose(err)
			if !ok {
				t.Fatalf("Diagnose did not classify %v", err)
			}
			if diag.Phase != tc.wantPhase {
				t.Fatalf("phase mismatch: want %s, got %s (%v)", tc.wantPhase, diag.Phase, err)
			}
			if diag.Message == "" {
				t.Fatal("empty diagnostic message")
			}
		})
	}

	if _, ok := Diagnose(nil); ok {
		t.Fatal("Diagnose classified nil error")
	}
}
