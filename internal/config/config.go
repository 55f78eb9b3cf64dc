// Package config describes a pipeline run: which CSV extracts feed each
// category, and how the run reports metrics and exports results.
package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration object.
type Config struct {
	Inputs  Inputs  `yaml:"inputs"`
	Metrics Metrics `yaml:"metrics"`
}

// Inputs enumerates the ordered extract lists per category. Order matters:
// the loader concatenates in list order. Names that do not resolve at run
// time are skipped, so it is fine to list extracts that are not always
// present.
type Inputs struct {
	Enrolment   []string `yaml:"enrolment"`
	Demographic []string `yaml:"demographic"`
	Biometric   []string `yaml:"biometric"`
}

// Metrics selects and parameterizes a metrics backend.
type Metrics struct {
	// Backend is one of "datadog", "pushgateway", "none". Empty means none.
	Backend string `yaml:"backend"`

	// Job tags every metric with job:<name>. Empty defaults per backend.
	Job string `yaml:"job"`

	// Tags is a comma-separated extra tag list, e.g. "env:prod,team:data".
	Tags string `yaml:"tags"`

	// PushgatewayURL is required when Backend is "pushgateway".
	PushgatewayURL string `yaml:"pushgateway_url"`
}

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding, addressed by a config path.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// Load reads and decodes a YAML config file. Unknown fields are rejected so
// a typoed key fails loudly instead of silently configuring nothing.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode decodes YAML from r. See Load.
func Decode(r io.Reader) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate reports everything questionable about cfg. Callers should refuse
// to run on any SeverityError issue and may log warnings.
func Validate(cfg Config) []Issue {
	var issues []Issue

	lists := []struct {
		path  string
		files []string
	}{
		{"inputs.enrolment", cfg.Inputs.Enrolment},
		{"inputs.demographic", cfg.Inputs.Demographic},
		{"inputs.biometric", cfg.Inputs.Biometric},
	}

	configured := 0
	for _, l := range lists {
		if len(l.files) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     l.path,
				Message:  "no input files configured; category will be empty",
			})
			continue
		}
		configured++

		seen := map[string]bool{}
		for i, f := range l.files {
			if f == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     fmt.Sprintf("%s[%d]", l.path, i),
					Message:  "empty input file name",
				})
				continue
			}
			if seen[f] {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     fmt.Sprintf("%s[%d]", l.path, i),
					Message:  fmt.Sprintf("duplicate input %q; its rows will be counted twice", f),
				})
			}
			seen[f] = true
		}
	}
	if configured == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "inputs",
			Message:  "no input files configured for any category",
		})
	}

	switch cfg.Metrics.Backend {
	case "", "none", "datadog":
	case "pushgateway":
		if cfg.Metrics.PushgatewayURL == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "required when metrics.backend is pushgateway",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown backend %q (want datadog, pushgateway or none)", cfg.Metrics.Backend),
		})
	}

	return issues
}

// Default returns the historical fixed extract lists the dashboard shipped
// with. Useful for running against an extract directory without a config
// file.
func Default() Config {
	return Config{
		Inputs: Inputs{
			Enrolment: []string{
				"enrollment_all (1).csv",
				"enrollment_all (1)_2.csv",
				"enrollment_all (1)_3.csv",
			},
			Demographic: []string{
				"demo_all (1).csv",
				"demo_all (1)_2.csv",
			},
			Biometric: []string{
				"mightymerge.io__xzzeu4zp.csv",
				"mightymerge.io__xzzeu4zp (1)_2.csv",
			},
		},
	}
}
