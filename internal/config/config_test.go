package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"job": "search_events_daily",
		"landing": {"root": "data/landing"},
		"enrich": {"regions_path": "configs/regions.json"},
		"storage": {"kind": "sqlite", "db": {"dsn": "file:test.db"}}
	}`)

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultFactTable, p.Storage.DB.FactTable)
	assert.Equal(t, DefaultOrdersTable, p.Storage.DB.OrdersTable)
	assert.Equal(t, DefaultAttributionTable, p.Storage.DB.AttributionTable)
	assert.Equal(t, DefaultMetricsTable, p.Storage.DB.MetricsTable)
	assert.Equal(t, DefaultTermsTable, p.Storage.DB.TermsTable)
	assert.Equal(t, 30, p.Attribution.WindowDays)
	assert.Equal(t, 20, p.Attribution.TopZeroResultTerms)
	assert.Equal(t, 100, p.Validation.RecordCountTolerance)
	assert.False(t, p.Validation.Strict)
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	path := writeConfig(t, `{
		"job": "j",
		"landing": {"root": "r", "category": "global search"},
		"enrich": {"regions_path": "x"},
		"storage": {"kind": "postgres", "db": {"dsn": "d", "fact_table": "custom_fact"}},
		"attribution": {"window_days": 7, "top_zero_result_terms": 5},
		"validation": {"record_count_tolerance": 10, "strict": true}
	}`)

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom_fact", p.Storage.DB.FactTable)
	assert.Equal(t, 7, p.Attribution.WindowDays)
	assert.Equal(t, 5, p.Attribution.TopZeroResultTerms)
	assert.Equal(t, 10, p.Validation.RecordCountTolerance)
	assert.True(t, p.Validation.Strict)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `{"job": "j", "surprise": true}`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func validPipeline() Pipeline {
	p := Pipeline{
		Job:     "search_events_daily",
		Landing: Landing{Root: "data/landing"},
		Enrich:  Enrich{RegionsPath: "configs/regions.json"},
		Storage: Storage{Kind: "postgres", DB: DBConfig{DSN: "postgresql://x"}},
	}
	p.ApplyDefaults()
	return p
}

func TestValidatePipelineOK(t *testing.T) {
	assert.Empty(t, ValidatePipeline(validPipeline()))
}

func TestValidatePipelineErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Pipeline)
		path   string
	}{
		{"empty job", func(p *Pipeline) { p.Job = "" }, "job"},
		{"empty landing root", func(p *Pipeline) { p.Landing.Root = " " }, "landing.root"},
		{"empty regions path", func(p *Pipeline) { p.Enrich.RegionsPath = "" }, "enrich.regions_path"},
		{"empty kind", func(p *Pipeline) { p.Storage.Kind = "" }, "storage.kind"},
		{"empty dsn", func(p *Pipeline) { p.Storage.DB.DSN = "" }, "storage.db.dsn"},
		{"negative window", func(p *Pipeline) { p.Attribution.WindowDays = -1 }, "attribution.window_days"},
		{"negative tolerance", func(p *Pipeline) { p.Validation.RecordCountTolerance = -1 }, "validation.record_count_tolerance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPipeline()
			tt.mutate(&p)
			issues := ValidatePipeline(p)
			require.NotEmpty(t, issues)
			found := false
			for _, i := range issues {
				if i.Path == tt.path && i.Severity == SeverityError {
					found = true
				}
			}
			assert.True(t, found, "expected error at %s, got %v", tt.path, issues)
		})
	}
}

func TestValidatePipelineWarnsOnUnknownKind(t *testing.T) {
	p := validPipeline()
	p.Storage.Kind = "oracle"
	issues := ValidatePipeline(p)
	require.Len(t, issues, 1)
	assert.Equal(t, SeverityWarning, issues[0].Severity)
	assert.Equal(t, "storage.kind", issues[0].Path)
}

func TestIssueError(t *testing.T) {
	i := Issue{Severity: SeverityError, Path: "storage.db.dsn", Message: "must not be empty"}
	assert.Contains(t, i.Error(), "storage.db.dsn")
	assert.Contains(t, i.Error(), "error")
}
