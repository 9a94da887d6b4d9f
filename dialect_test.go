package dbconnector

import "testing"

func TestDialectFor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "mssql"},
		{"SQLServer", "mssql"},
		{"mysql", "mysql"},
		{"postgresql", "postgres"},
		{"sqlite3", "sqlite"},
	}
	for _, tt := range tests {
		d, err := DialectFor(tt.in)
		if err != nil {
			t.Fatalf("DialectFor(%q): %v", tt.in, err)
		}
		if d.Name() != tt.want {
			t.Fatalf("DialectFor(%q) = %s, want %s", tt.in, d.Name(), tt.want)
		}
	}
	if _, err := DialectFor("oracle"); err == nil {
		t.Fatalf("expected error for unsupported dialect")
	}
}

func TestQuoteColumnEscapes(t *testing.T) {
	tests := []struct {
		dialect Dialect
		in      string
		want    string
	}{
		{mssqlDialect{}, "Date]Time", "[Date]]Time]"},
		{postgresDialect{}, `Re"sult`, `"Re""sult"`},
		{mysqlDialect{}, "Mach`ine", "`Mach``ine`"},
		{sqliteDialect{}, "Date And Time", `"Date And Time"`},
	}
	for _, tt := range tests {
		got, err := tt.dialect.QuoteColumn(tt.in)
		if err != nil {
			t.Fatalf("%s quote %q: %v", tt.dialect.Name(), tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("%s quote %q = %s, want %s", tt.dialect.Name(), tt.in, got, tt.want)
		}
	}
	if _, err := (mssqlDialect{}).QuoteColumn(" "); err == nil {
		t.Fatalf("expected error for blank column")
	}
}

func TestPaginateBindOrder(t *testing.T) {
	var args []any
	bind := func(v any) string {
		args = append(args, v)
		return mssqlDialect{}.Placeholder(len(args))
	}
	clause := mssqlDialect{}.Paginate(bind, 20, 40)
	if clause != " OFFSET @p1 ROWS FETCH NEXT @p2 ROWS ONLY" {
		t.Fatalf("unexpected clause: %s", clause)
	}
	if args[0] != 40 || args[1] != 20 {
		t.Fatalf("unexpected args: %#v", args)
	}

	args = nil
	bind = func(v any) string {
		args = append(args, v)
		return postgresDialect{}.Placeholder(len(args))
	}
	clause = postgresDialect{}.Paginate(bind, 20, 40)
	if clause != " LIMIT $1 OFFSET $2" {
		t.Fatalf("unexpected clause: %s", clause)
	}
	if args[0] != 20 || args[1] != 40 {
		t.Fatalf("unexpected args: %#v", args)
	}
}

func TestCapPlacement(t *testing.T) {
	bind := func(v any) string { return "?" }
	prefix, suffix := mssqlDialect{}.Cap(func(v any) string { return "@p1" }, 500)
	if prefix != "TOP (@p1) " || suffix != "" {
		t.Fatalf("unexpected mssql cap: %q %q", prefix, suffix)
	}
	prefix, suffix = sqliteDialect{}.Cap(bind, 500)
	if prefix != "" || suffix != " LIMIT ?" {
		t.Fatalf("unexpected sqlite cap: %q %q", prefix, suffix)
	}
}

func TestHourExpressions(t *testing.T) {
	if got := (sqliteDialect{}).HourOf(`"DateAndTime"`); got != `CAST(strftime('%H', "DateAndTime") AS INTEGER)` {
		t.Fatalf("unexpected sqlite hour expr: %s", got)
	}
	if got := (mssqlDialect{}).HourOf("[DateAndTime]"); got != "DATEPART(HOUR, [DateAndTime])" {
		t.Fatalf("unexpected mssql hour expr: %s", got)
	}
}

func TestTimestampNormalization(t *testing.T) {
	if got := (sqliteDialect{}).Timestamp(`"DateAndTime"`); got != `datetime("DateAndTime")` {
		t.Fatalf("unexpected sqlite timestamp expr: %s", got)
	}
	if got := (mssqlDialect{}).Timestamp("[DateAndTime]"); got != "[DateAndTime]" {
		t.Fatalf("unexpected mssql timestamp expr: %s", got)
	}
}
