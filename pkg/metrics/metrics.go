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

package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	crmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

const scanSubsystem = "scan"

var (
	WorkloadsEvaluated = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: scanSubsystem,
			Name:      "workloads_evaluated",
			Help:      "Number of workloads evaluated by the last scan, labeled by cluster and policy.",
		},
		[]string{ClusterLabel, PolicyLabel},
	)
	WorkloadsEligible = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: scanSubsystem,
			Name:      "workloads_eligible",
			Help:      "Number of workloads the last scan found eligible for interruptible capacity, labeled by cluster and policy.",
		},
		[]string{ClusterLabel, PolicyLabel},
	)
	EligibleCPUCores = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: scanSubsystem,
			Name:      "eligible_cpu_cores",
			Help:      "Total CPU requested by eligible workloads, in cores, labeled by cluster and policy.",
		},
		[]string{ClusterLabel, PolicyLabel},
	)
	EligibleMemoryBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: scanSubsystem,
			Name:      "eligible_memory_bytes",
			Help:      "Total memory requested by eligible workloads, in bytes, labeled by cluster and policy.",
		},
		[]string{ClusterLabel, PolicyLabel},
	)
	QuantityWarnings = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: scanSubsystem,
			Name:      "quantity_warnings",
			Help:      "Number of resource requests the last scan could not parse, labeled by cluster.",
		},
		[]string{ClusterLabel},
	)
	BlockedDisruptionBudgets = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: scanSubsystem,
			Name:      "blocked_disruption_budgets",
			Help:      "Number of PodDisruptionBudgets allowing no disruptions, labeled by cluster.",
		},
		[]string{ClusterLabel},
	)
	RuleRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "eligibility",
			Name:      "rule_rejections_total",
			Help:      "Number of workloads rejected, labeled by the rule that rejected them.",
		},
		[]string{RuleLabel},
	)
	ScanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: scanSubsystem,
			Name:      "duration_seconds",
			Help:      "Duration of a scan in seconds, labeled by cluster.",
			Buckets:   DurationBuckets(),
		},
		[]string{ClusterLabel},
	)
)

func init() {
	crmetrics.Registry.MustRegister(
		WorkloadsEvaluated,
		WorkloadsEligible,
		EligibleCPUCores,
		EligibleMemoryBytes,
		QuantityWarnings,
		BlockedDisruptionBudgets,
		RuleRejections,
		ScanDuration,
	)
}

// WriteFile exports every registered metric to path in the prometheus text format, for pickup by
// a node exporter textfile collector
func WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, crmetrics.Registry); err != nil {
		return fmt.Errorf("writing metrics file, %w", err)
	}
	return nil
}
