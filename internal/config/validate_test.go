package config

import (
	"strings"
	"testing"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func validSink() Sink {
	return Sink{
		Job:     "crawl",
		Storage: Storage{Kind: "sqlite", DSN: ":memory:"},
		Buffer:  Buffer{DefaultBatchSize: 10, BatchSizeByDestination: map[string]int{"pages": 5}},
		Destinations: []Destination{
			{Name: "pages", Fields: []string{"url", "title"}, PrimaryKeys: []string{"url"}, Mandatory: []string{"title"}},
			{Name: "links", Reflect: true},
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	t.Parallel()

	issues := Validate(validSink())
	if len(issues) != 0 {
		t.Fatalf("Validate(valid) = %v, want none", issues)
	}
	if HasErrors(issues) {
		t.Fatalf("HasErrors(nil) = true")
	}
}

func TestValidate_Findings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Sink)
		sev    IssueSeverity
		path   string
		msg    string
	}{
		{"empty job", func(s *Sink) { s.Job = " " }, SeverityError, "job", "must not be empty"},
		{"empty kind", func(s *Sink) { s.Storage.Kind = "" }, SeverityError, "storage.kind", "must not be empty"},
		{"unknown kind", func(s *Sink) { s.Storage.Kind = "oracle" }, SeverityWarning, "storage.kind", "unknown storage kind"},
		{"empty dsn", func(s *Sink) { s.Storage.DSN = "" }, SeverityError, "storage.dsn", "must not be empty"},
		{"no destinations", func(s *Sink) { s.Destinations = nil; s.Buffer.BatchSizeByDestination = nil }, SeverityError, "destinations", "at least one"},
		{"duplicate", func(s *Sink) { s.Destinations[1] = Destination{Name: "Pages", Reflect: true} }, SeverityError, "destinations[1].name", "duplicate"},
		{"no fields", func(s *Sink) { s.Destinations[0].Fields = nil }, SeverityError, "destinations[0].fields", "must not be empty"},
		{"pk not a field", func(s *Sink) { s.Destinations[0].PrimaryKeys = []string{"id"} }, SeverityError, "destinations[0].primary_keys", `"id" is not a field`},
		{"mandatory not a field", func(s *Sink) { s.Destinations[0].Mandatory = []string{"x"} }, SeverityError, "destinations[0].mandatory", `"x" is not a field`},
		{"no pk", func(s *Sink) { s.Destinations[0].PrimaryKeys = nil }, SeverityWarning, "destinations[0].primary_keys", "no primary key"},
		{"reflect with autocreate", func(s *Sink) { s.Destinations[1].AutoCreateTable = true }, SeverityError, "destinations[1].auto_create_table", "cannot be combined"},
		{"negative batch", func(s *Sink) { s.Buffer.DefaultBatchSize = -1 }, SeverityError, "buffer.default_batch_size", "must not be negative"},
		{"negative interval", func(s *Sink) { s.Buffer.FlushIntervalSeconds = -1 }, SeverityError, "buffer.flush_interval_seconds", "must not be negative"},
		{"zero override", func(s *Sink) { s.Buffer.BatchSizeByDestination["pages"] = 0 }, SeverityError, "buffer.batch_size_by_destination.pages", "must be positive"},
		{"unknown override", func(s *Sink) { s.Buffer.BatchSizeByDestination["ghost"] = 3 }, SeverityError, "buffer.batch_size_by_destination.ghost", "unknown destination"},
		{"prom without url", func(s *Sink) { s.Metrics.Backend = "prometheus" }, SeverityError, "metrics.pushgateway_url", "requires"},
		{"datadog without addr", func(s *Sink) { s.Metrics.Backend = "datadog" }, SeverityError, "metrics.datadog_addr", "requires"},
		{"unknown metrics", func(s *Sink) { s.Metrics.Backend = "graphite" }, SeverityWarning, "metrics.backend", "unknown metrics backend"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := validSink()
			tt.mutate(&s)
			issues := Validate(s)
			if !hasIssue(t, issues, tt.sev, tt.path, tt.msg) {
				t.Fatalf("Validate() = %v, want %s at %s containing %q", issues, tt.sev, tt.path, tt.msg)
			}
			if tt.sev == SeverityError && !HasErrors(issues) {
				t.Fatalf("HasErrors = false for %v", issues)
			}
		})
	}
}

func TestIssueError(t *testing.T) {
	t.Parallel()

	iss := Issue{Severity: SeverityError, Path: "storage.dsn", Message: "storage.dsn must not be empty"}
	if got, want := iss.Error(), "error at storage.dsn: storage.dsn must not be empty"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
