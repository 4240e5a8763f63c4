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

package audit

import (
	"github.com/samber/lo"

	"github.com/aws/spotable-workloads/pkg/workload"
)

// Finding is a disruption budget that currently allows no voluntary disruptions
type Finding struct {
	Budget *workload.DisruptionBudget `json:"budget"`
	// FullyBlocking is set when the budget's spec can never allow a disruption, regardless of how
	// many pods are healthy
	FullyBlocking bool `json:"fullyBlocking"`
}

// Audit returns every budget whose status allows zero (or fewer) disruptions, in input order
func Audit(budgets []*workload.DisruptionBudget) []Finding {
	return lo.FilterMap(budgets, func(b *workload.DisruptionBudget, _ int) (Finding, bool) {
		if b.Status.DisruptionsAllowed > 0 {
			return Finding{}, false
		}
		return Finding{Budget: b, FullyBlocking: IsFullyBlocking(b.Spec)}, true
	})
}

// IsFullyBlocking returns true if a budget spec forbids every eviction: maxUnavailable of 0 or 0%, or
// minAvailable of 100%
func IsFullyBlocking(spec workload.BudgetSpec) bool {
	return spec.MaxUnavailable == "0" || spec.MaxUnavailable == "0%" || spec.MinAvailable == "100%"
}
