/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package report

import (
	"encoding/json"
	"fmt"
	"io"

	"sigs.k8s.io/yaml"

	"github.com/aws/spotable-workloads/pkg/operator/options"
	"github.com/aws/spotable-workloads/pkg/scan"
)

// Renderer writes a scan result for an operator or a machine to read
type Renderer interface {
	Render(w io.Writer, result *scan.Result) error
}

// New returns the renderer for an output format
func New(format string) (Renderer, error) {
	switch format {
	case options.OutputText:
		return Text{}, nil
	case options.OutputJSON:
		return JSON{}, nil
	case options.OutputYAML:
		return YAML{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// Document is the machine readable form of a scan
type Document struct {
	*scan.Result `json:",inline"`
	Summary      Summary `json:"summary"`
}

type Summary struct {
	Eligible       int    `json:"eligible"`
	Ineligible     int    `json:"ineligible"`
	CPUCores       string `json:"cpuCores"`
	MemoryMiB      string `json:"memoryMiB"`
	BlockedBudgets int    `json:"blockedBudgets"`
}

func NewDocument(result *scan.Result) Document {
	return Document{
		Result: result,
		Summary: Summary{
			Eligible:       len(result.Eligible),
			Ineligible:     result.IneligibleCount(),
			CPUCores:       result.Totals.Cores(),
			MemoryMiB:      result.Totals.MemoryMiB(),
			BlockedBudgets: len(result.BlockedBudgets),
		},
	}
}

type JSON struct{}

func (JSON) Render(w io.Writer, result *scan.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(NewDocument(result)); err != nil {
		return fmt.Errorf("encoding report, %w", err)
	}
	return nil
}

type YAML struct{}

func (YAML) Render(w io.Writer, result *scan.Result) error {
	out, err := yaml.Marshal(NewDocument(result))
	if err != nil {
		return fmt.Errorf("encoding report, %w", err)
	}
	_, err = w.Write(out)
	return err
}
