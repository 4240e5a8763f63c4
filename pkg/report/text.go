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
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"github.com/aws/spotable-workloads/pkg/aggregator"
	"github.com/aws/spotable-workloads/pkg/audit"
	"github.com/aws/spotable-workloads/pkg/scan"
	"github.com/aws/spotable-workloads/pkg/workload"
)

const separator = "#########################################################################"

// Text renders the report for a terminal
type Text struct{}

func (Text) Render(w io.Writer, result *scan.Result) error {
	out := &bytes.Buffer{}
	banner := fmt.Sprintf("Scanning cluster: %s", result.Cluster)
	fmt.Fprintf(out, "%s\n%s\n%s\n\n", strings.Repeat("#", len(banner)), banner, strings.Repeat("#", len(banner)))
	fmt.Fprintf(out, "Namespaces excluded: %s\n", strings.Join(result.ExcludedNamespaces, ", "))
	fmt.Fprintf(out, "Policy: %s (%s) [%s]\n", result.Policy, strings.Join(result.Rules, ", "), result.PolicyHash)
	fmt.Fprintf(out, "Scan: %s at %s\n\n", result.ID, result.Timestamp.Format(time.RFC3339))

	fmt.Fprintf(out, "%s\nResults:\n%s\n\n", separator, separator)
	fmt.Fprintf(out, "Total number of workloads that may be suitable for spot instances: %d\n", len(result.Eligible))
	if len(result.Eligible) > 0 {
		out.WriteString(table([]string{"Namespace", "Name"}, keyRows(result.Eligible)))
	}
	if result.Totals.MilliCPU > 0 {
		fmt.Fprintf(out, "\nTotal vCPU of workloads that may be suitable for spot instances: %s vCPU\n", result.Totals.Cores())
	}
	if result.Totals.MemoryBytes > 0 {
		fmt.Fprintf(out, "\nTotal memory of workloads that may be suitable for spot instances: %s MiB\n", result.Totals.MemoryMiB())
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintf(out, "\nRequests that could not be parsed and were counted as zero: %d\n", len(result.Warnings))
		out.WriteString(table([]string{"Workload", "Container", "Resource", "Amount"}, lo.Map(result.Warnings, func(w aggregator.Warning, _ int) []string {
			return []string{w.Workload.String(), w.Container, w.Resource, strconv.Quote(w.Amount)}
		})))
	}

	fmt.Fprintf(out, "\n%s\n%s\n\n", separator, separator)
	fmt.Fprintf(out, "Total number of workloads that may be unsuitable for spot instances: %d\n", result.IneligibleCount())
	for _, bucket := range result.Ineligible {
		fmt.Fprintf(out, "\n* %s:\n", bucket.Reason)
		out.WriteString(table([]string{"Namespace", "Name"}, keyRows(bucket.Workloads)))
	}

	if result.AuditedBudgets {
		fmt.Fprintf(out, "\n%s\n%s\n\n", separator, separator)
		fmt.Fprintf(out, "Total number of PodDisruptionBudgets with no disruptions allowed: %d\n", len(result.BlockedBudgets))
		if len(result.BlockedBudgets) > 0 {
			out.WriteString(table(
				[]string{"Namespace", "Name", "Min Available", "Max Unavailable", "Allowed", "Current", "Desired", "Expected", "Blocks All"},
				lo.Map(result.BlockedBudgets, func(f audit.Finding, _ int) []string { return budgetRow(f) }),
			))
		}
	}
	_, err := w.Write(out.Bytes())
	return err
}

func keyRows(keys []workload.Key) [][]string {
	return lo.Map(keys, func(k workload.Key, _ int) []string { return []string{k.Namespace, k.Name} })
}

func budgetRow(f audit.Finding) []string {
	b := f.Budget
	return []string{
		b.Namespace,
		b.Name,
		lo.Ternary(b.Spec.MinAvailable != "", b.Spec.MinAvailable, "-"),
		lo.Ternary(b.Spec.MaxUnavailable != "", b.Spec.MaxUnavailable, "-"),
		strconv.Itoa(int(b.Status.DisruptionsAllowed)),
		strconv.Itoa(int(b.Status.CurrentHealthy)),
		strconv.Itoa(int(b.Status.DesiredHealthy)),
		strconv.Itoa(int(b.Status.ExpectedPods)),
		strconv.FormatBool(f.FullyBlocking),
	}
}

// table renders rows in the borderless, tab padded style of kubectl get
func table(headers []string, rows [][]string) string {
	out := bytes.Buffer{}
	t := tablewriter.NewWriter(&out)
	t.SetHeader(headers)
	t.SetAutoWrapText(false)
	t.SetAutoFormatHeaders(true)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetCenterSeparator("")
	t.SetColumnSeparator("")
	t.SetRowSeparator("")
	t.SetHeaderLine(false)
	t.SetBorder(false)
	t.SetTablePadding("\t")
	t.SetNoWhiteSpace(true)
	t.AppendBulk(rows)
	t.Render()
	return out.String()
}
