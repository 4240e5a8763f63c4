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

package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/awslabs/operatorpkg/option"
	"github.com/awslabs/operatorpkg/serrors"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/client-go/util/workqueue"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/aws/spotable-workloads/pkg/aggregator"
	"github.com/aws/spotable-workloads/pkg/audit"
	"github.com/aws/spotable-workloads/pkg/eligibility"
	"github.com/aws/spotable-workloads/pkg/metrics"
	"github.com/aws/spotable-workloads/pkg/providers/cluster"
	"github.com/aws/spotable-workloads/pkg/workload"
)

// SystemNamespace is never scanned
const SystemNamespace = "kube-system"

// Bucket groups the workloads rejected for the same reason
type Bucket struct {
	Reason    string         `json:"reason"`
	Workloads []workload.Key `json:"workloads"`
}

type Result struct {
	ID                 string               `json:"id"`
	Timestamp          time.Time            `json:"timestamp"`
	Cluster            string               `json:"cluster"`
	Policy             string               `json:"policy"`
	PolicyHash         string               `json:"policyHash"`
	Rules              []string             `json:"rules"`
	ExcludedNamespaces []string             `json:"excludedNamespaces"`
	Eligible           []workload.Key       `json:"eligible"`
	Ineligible         []Bucket             `json:"ineligible"`
	Totals             aggregator.Totals    `json:"totals"`
	Warnings           []aggregator.Warning `json:"warnings,omitempty"`
	// BlockedBudgets is nil when budgets weren't audited
	BlockedBudgets []audit.Finding `json:"blockedBudgets,omitempty"`
	AuditedBudgets bool            `json:"auditedBudgets"`
}

// IneligibleCount returns the number of workloads across every reason bucket
func (r *Result) IneligibleCount() int {
	return lo.SumBy(r.Ineligible, func(b Bucket) int { return len(b.Workloads) })
}

type Options struct {
	ExcludedNamespaces     []string
	Parallelism            int
	AuditDisruptionBudgets bool
	Clock                  clock.Clock
}

func WithExcludedNamespaces(namespaces ...string) option.Function[Options] {
	return func(o *Options) { o.ExcludedNamespaces = append(o.ExcludedNamespaces, namespaces...) }
}

func WithParallelism(parallelism int) option.Function[Options] {
	return func(o *Options) { o.Parallelism = parallelism }
}

func WithDisruptionBudgetAudit(enabled bool) option.Function[Options] {
	return func(o *Options) { o.AuditDisruptionBudgets = enabled }
}

func WithClock(clk clock.Clock) option.Function[Options] {
	return func(o *Options) { o.Clock = clk }
}

type Scanner struct {
	provider cluster.Provider
	engine   *eligibility.Engine
	policy   eligibility.Resolved
	opts     *Options
}

func NewScanner(provider cluster.Provider, engine *eligibility.Engine, policy eligibility.Resolved, opts ...option.Function[Options]) *Scanner {
	return &Scanner{
		provider: provider,
		engine:   engine,
		policy:   policy,
		opts: option.Resolve(append([]option.Function[Options]{
			WithParallelism(1),
			WithDisruptionBudgetAudit(true),
			WithClock(clock.RealClock{}),
		}, opts...)...),
	}
}

// Scan classifies every workload outside the excluded namespaces, sums the requests of the eligible
// ones and audits disruption budgets. A failure to read from the cluster aborts the scan.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	start := s.opts.Clock.Now()
	result := &Result{
		ID:                 uuid.New().String(),
		Timestamp:          start.UTC(),
		Cluster:            s.provider.ClusterName(),
		Policy:             s.policy.Name,
		PolicyHash:         s.policy.Hash(),
		Rules:              s.policy.RuleIDs,
		ExcludedNamespaces: s.excludedNamespaces(),
		Eligible:           []workload.Key{},
		Ineligible:         []Bucket{},
		AuditedBudgets:     s.opts.AuditDisruptionBudgets,
	}
	ctx = log.IntoContext(ctx, log.FromContext(ctx).WithValues("scan", result.ID, "cluster", result.Cluster))
	log.FromContext(ctx).Info("scanning workloads", "policy", result.Policy, "excluded-namespaces", result.ExcludedNamespaces)

	workloads, budgets, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	excluded := sets.New(result.ExcludedNamespaces...)
	workloads = lo.Reject(workloads, func(w *workload.Descriptor, _ int) bool { return excluded.Has(w.Namespace) })
	budgets = lo.Reject(budgets, func(b *workload.DisruptionBudget, _ int) bool { return excluded.Has(b.Namespace) })

	outcomes, err := s.evaluate(ctx, workloads)
	if err != nil {
		return nil, err
	}
	var eligible []*workload.Descriptor
	buckets := map[string]int{}
	for i, w := range workloads {
		if outcomes[i].Eligible() {
			eligible = append(eligible, w)
			result.Eligible = append(result.Eligible, w.Key)
			continue
		}
		idx, ok := buckets[outcomes[i].Reason()]
		if !ok {
			idx = len(result.Ineligible)
			buckets[outcomes[i].Reason()] = idx
			result.Ineligible = append(result.Ineligible, Bucket{Reason: outcomes[i].Reason()})
		}
		result.Ineligible[idx].Workloads = append(result.Ineligible[idx].Workloads, w.Key)
	}
	result.Totals, result.Warnings = aggregator.Aggregate(ctx, eligible)
	if s.opts.AuditDisruptionBudgets {
		result.BlockedBudgets = audit.Audit(budgets)
	}

	duration := s.opts.Clock.Since(start)
	s.record(result, len(workloads), duration)
	log.FromContext(ctx).Info("scanned workloads",
		"evaluated", len(workloads),
		"eligible", len(result.Eligible),
		"blocked-budgets", len(result.BlockedBudgets),
		"duration", duration.String(),
	)
	return result, nil
}

func (s *Scanner) excludedNamespaces() []string {
	return lo.Uniq(append([]string{SystemNamespace}, s.opts.ExcludedNamespaces...))
}

// fetch lists workloads and, when audited, budgets concurrently
func (s *Scanner) fetch(ctx context.Context) ([]*workload.Descriptor, []*workload.DisruptionBudget, error) {
	var workloads []*workload.Descriptor
	var budgets []*workload.DisruptionBudget
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		workloads, err = s.provider.ListWorkloads(gctx)
		return err
	})
	if s.opts.AuditDisruptionBudgets {
		g.Go(func() (err error) {
			budgets, err = s.provider.ListDisruptionBudgets(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return workloads, budgets, nil
}

// evaluate runs the policy against every workload. Outcomes are written to the slot matching the
// workload's index so that ordering doesn't depend on parallelism. An unevaluated slot is an error,
// never a Pass.
func (s *Scanner) evaluate(ctx context.Context, workloads []*workload.Descriptor) ([]eligibility.Outcome, error) {
	outcomes := make([]eligibility.Outcome, len(workloads))
	evaluated := make([]bool, len(workloads))
	if s.opts.Parallelism <= 1 {
		for i, w := range workloads {
			if ctx.Err() != nil {
				break
			}
			outcomes[i] = s.engine.Evaluate(ctx, w, s.policy.Rules)
			evaluated[i] = true
		}
	} else {
		workqueue.ParallelizeUntil(ctx, s.opts.Parallelism, len(workloads), func(i int) {
			outcomes[i] = s.engine.Evaluate(ctx, workloads[i], s.policy.Rules)
			evaluated[i] = true
		})
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("evaluating workloads, %w", err)
	}
	if missing := lo.Count(evaluated, false); missing > 0 {
		return nil, serrors.Wrap(fmt.Errorf("workloads were not evaluated"), "count", missing)
	}
	return outcomes, nil
}

func (s *Scanner) record(result *Result, evaluated int, duration time.Duration) {
	metrics.WorkloadsEvaluated.WithLabelValues(result.Cluster, result.Policy).Set(float64(evaluated))
	metrics.WorkloadsEligible.WithLabelValues(result.Cluster, result.Policy).Set(float64(len(result.Eligible)))
	metrics.EligibleCPUCores.WithLabelValues(result.Cluster, result.Policy).Set(float64(result.Totals.MilliCPU) / 1000)
	metrics.EligibleMemoryBytes.WithLabelValues(result.Cluster, result.Policy).Set(float64(result.Totals.MemoryBytes))
	metrics.QuantityWarnings.WithLabelValues(result.Cluster).Set(float64(len(result.Warnings)))
	metrics.BlockedDisruptionBudgets.WithLabelValues(result.Cluster).Set(float64(len(result.BlockedBudgets)))
	metrics.ScanDuration.WithLabelValues(result.Cluster).Observe(duration.Seconds())
}

// RecordRejection is an engine failure hook that counts rejections per rule
func RecordRejection(_ context.Context, _ *workload.Descriptor, rule eligibility.Rule, _ eligibility.Outcome) {
	metrics.RuleRejections.WithLabelValues(rule.ID).Inc()
}
