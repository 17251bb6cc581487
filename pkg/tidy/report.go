// Copyright 2024 The Docker Tidy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tidy

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by WriteReport.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ParseFormat validates a report format name.
func ParseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", &PolicyError{Field: "output", Value: s, Err: fmt.Errorf("must be one of text, json, yaml")}
	}
}

// PhaseReport is the result of one phase. Removed and Failed count calls
// against the host, so an image with three tags counts three times.
type PhaseReport struct {
	Kind    string   `json:"kind" yaml:"kind"`
	Planned []string `json:"planned" yaml:"planned"`
	Removed int      `json:"removed" yaml:"removed"`
	Failed  int      `json:"failed" yaml:"failed"`
}

// Report is the summary of a run.
type Report struct {
	RunID      string         `json:"run_id" yaml:"run_id"`
	Command    string         `json:"command" yaml:"command"`
	DryRun     bool           `json:"dry_run" yaml:"dry_run"`
	Skipped    bool           `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	StartedAt  time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time      `json:"finished_at" yaml:"finished_at"`
	Phases     []*PhaseReport `json:"phases" yaml:"phases"`
	Errors     []string       `json:"errors,omitempty" yaml:"errors,omitempty"`

	failures *multierror.Error
}

// Failed returns the number of failed calls in the run.
func (r *Report) Failed() int {
	if r.failures == nil {
		return 0
	}
	return len(r.failures.Errors)
}

// Err returns the aggregated item failures, or nil.
func (r *Report) Err() error {
	return r.failures.ErrorOrNil()
}

func (r *Report) addPhase(kind string) *PhaseReport {
	p := &PhaseReport{Kind: kind, Planned: []string{}}
	r.Phases = append(r.Phases, p)
	return p
}

func (r *Report) addFailures(errs *multierror.Error) {
	if errs == nil {
		return
	}
	r.failures = multierror.Append(r.failures, errs.Errors...)
	for _, err := range errs.Errors {
		r.Errors = append(r.Errors, err.Error())
	}
}

// WriteReport renders the report in the given format.
func WriteReport(w io.Writer, r *Report, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return nil
	case FormatText, "":
		return writeText(w, r)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func writeText(w io.Writer, r *Report) error {
	var b strings.Builder

	mode := ""
	if r.DryRun {
		mode = ", dry run"
	}
	fmt.Fprintf(&b, "%s run %s%s\n", r.Command, r.RunID, mode)

	if r.Skipped {
		b.WriteString("skipped, no arguments given\n")
	}

	for _, p := range r.Phases {
		fmt.Fprintf(&b, "%s: planned %d, removed %d, failed %d\n",
			p.Kind, len(p.Planned), p.Removed, p.Failed)
		for _, item := range p.Planned {
			fmt.Fprintf(&b, "  - %s\n", item)
		}
	}

	if len(r.Errors) > 0 {
		b.WriteString("errors:\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func describeContainer(c *Container) string {
	if name := c.DisplayName(); name != "" {
		return ShortID(c.ID, 12) + " " + name
	}
	return ShortID(c.ID, 12)
}

func describeImage(img *Image) string {
	if img.Untagged() {
		return ShortID(img.ID, 12)
	}
	return ShortID(img.ID, 12) + " " + strings.Join(img.RepoTags, ",")
}
