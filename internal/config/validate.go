// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of
// issues (errors and warnings) that callers can surface in a CLI or tests.
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
	// SeverityWarning indicates a configuration warning that should be
	// surfaced to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding for a Pipeline. Path is a
// dotted path into the config (e.g. "storage.db.dsn").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a
// single error where convenient.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// knownStorageKinds lists the backends wired via internal/storage/all.
// Unknown kinds are warnings for forward compatibility; the factory rejects
// them at runtime anyway.
var knownStorageKinds = map[string]bool{
	"postgres": true,
	"sqlite":   true,
}

// ValidatePipeline performs static validation of a Pipeline. It does not
// mutate the pipeline; callers decide whether warnings are fatal.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}

	if strings.TrimSpace(p.Landing.Root) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "landing.root",
			Message:  "landing.root must point at the raw-event partition directory",
		})
	}

	if strings.TrimSpace(p.Enrich.RegionsPath) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "enrich.regions_path",
			Message:  "enrich.regions_path must point at the country-to-region mapping file",
		})
	}

	issues = append(issues, validateStorage(p.Storage)...)

	if p.Attribution.WindowDays < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "attribution.window_days",
			Message:  "attribution.window_days must not be negative",
		})
	}
	if p.Validation.RecordCountTolerance < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "validation.record_count_tolerance",
			Message:  "validation.record_count_tolerance must not be negative",
		})
	}

	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	kind := strings.TrimSpace(s.Kind)
	if kind == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
	} else if !knownStorageKinds[kind] {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage.kind %q; the backend must be registered at runtime", kind),
		})
	}

	if strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty",
		})
	}

	return issues
}
