package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that should be surfaced to users but
	// does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "destinations[1].primary_keys"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// KnownStorageKinds lists the backends built into the binary.
var KnownStorageKinds = []string{"mssql", "mysql", "postgres", "sqlite"}

// Validate performs static validation of a Sink. It does not mutate s and
// does not touch the database; reflected destinations are checked only for
// a name.
func Validate(s Sink) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels metrics and log lines",
		})
	}
	issues = append(issues, validateStorage(s.Storage)...)
	issues = append(issues, validateDestinations(s.Destinations)...)
	issues = append(issues, validateBuffer(s)...)
	issues = append(issues, validateMetrics(s.Metrics)...)
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
	} else if !contains(KnownStorageKinds, s.Kind) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}
	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.dsn",
			Message:  "storage.dsn must not be empty",
		})
	}
	return issues
}

func validateDestinations(ds []Destination) []Issue {
	var issues []Issue

	if len(ds) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "destinations",
			Message:  "at least one destination is required",
		})
		return issues
	}

	seen := make(map[string]int, len(ds))
	for i, d := range ds {
		path := fmt.Sprintf("destinations[%d]", i)
		name := strings.TrimSpace(d.Name)
		if name == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: path + ".name", Message: "name must not be empty"})
			continue
		}
		if j, dup := seen[strings.ToLower(name)]; dup {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".name",
				Message:  fmt.Sprintf("duplicate destination %q (also destinations[%d])", name, j),
			})
		}
		seen[strings.ToLower(name)] = i

		if d.BatchSize < 0 {
			issues = append(issues, Issue{Severity: SeverityError, Path: path + ".batch_size", Message: "batch_size must not be negative"})
		}

		if d.Reflect {
			if len(d.Fields) > 0 {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     path + ".fields",
					Message:  "fields are ignored when reflect is true",
				})
			}
			if d.AutoCreateTable {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     path + ".auto_create_table",
					Message:  "auto_create_table needs static fields and cannot be combined with reflect",
				})
			}
			continue
		}

		if len(d.Fields) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".fields",
				Message:  "fields must not be empty unless reflect is true",
			})
			continue
		}
		for _, k := range d.PrimaryKeys {
			if !contains(d.Fields, k) {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     path + ".primary_keys",
					Message:  fmt.Sprintf("primary key %q is not a field", k),
				})
			}
		}
		for _, m := range d.Mandatory {
			if !contains(d.Fields, m) {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     path + ".mandatory",
					Message:  fmt.Sprintf("mandatory field %q is not a field", m),
				})
			}
		}
		for f := range d.Types {
			if !contains(d.Fields, f) {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     path + ".types",
					Message:  fmt.Sprintf("type given for unknown field %q", f),
				})
			}
		}
		if len(d.PrimaryKeys) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path + ".primary_keys",
				Message:  "no primary key; matching-row lookups will fail for this destination",
			})
		}
	}
	return issues
}

func validateBuffer(s Sink) []Issue {
	var issues []Issue
	b := s.Buffer

	if b.DefaultBatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "buffer.default_batch_size",
			Message:  "default_batch_size must not be negative",
		})
	}
	if b.FlushIntervalSeconds < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "buffer.flush_interval_seconds",
			Message:  "flush_interval_seconds must not be negative",
		})
	}
	if b.FlushWorkers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "buffer.flush_workers",
			Message:  "flush_workers must not be negative",
		})
	}
	for name, n := range b.BatchSizeByDestination {
		path := "buffer.batch_size_by_destination." + name
		if n <= 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path,
				Message:  fmt.Sprintf("batch size %d must be positive", n),
			})
		}
		known := false
		for _, d := range s.Destinations {
			if strings.EqualFold(d.Name, name) {
				known = true
				break
			}
		}
		if !known {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path,
				Message:  fmt.Sprintf("override for unknown destination %q", name),
			})
		}
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	switch m.Backend {
	case "", "none":
	case "prometheus", "prom", "pushgateway":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			return []Issue{{Severity: SeverityError, Path: "metrics.pushgateway_url", Message: "prometheus backend requires pushgateway_url"}}
		}
	case "datadog":
		if strings.TrimSpace(m.DatadogAddr) == "" {
			return []Issue{{Severity: SeverityError, Path: "metrics.datadog_addr", Message: "datadog backend requires datadog_addr"}}
		}
	default:
		return []Issue{{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics are disabled", m.Backend),
		}}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
