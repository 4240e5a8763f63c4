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

package eligibility_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/samber/lo"

	"github.com/aws/spotable-workloads/pkg/eligibility"
	"github.com/aws/spotable-workloads/pkg/test"
	"github.com/aws/spotable-workloads/pkg/workload"
)

var _ = Describe("Engine", func() {
	var w *workload.Descriptor

	BeforeEach(func() {
		w = workload.FromDeployment(test.Deployment(test.DeploymentOptions{Replicas: lo.ToPtr[int32](3)}))
	})

	It("should pass when there are no rules", func() {
		Expect(engine.Evaluate(ctx, w, nil).Eligible()).To(BeTrue())
	})
	It("should pass when every rule passes", func() {
		var first, second int
		outcome := engine.Evaluate(ctx, w, []eligibility.Rule{
			countingRule("first", eligibility.Pass(), &first),
			countingRule("second", eligibility.Pass(), &second),
		})
		Expect(outcome.Eligible()).To(BeTrue())
		Expect(outcome.Reason()).To(BeEmpty())
		Expect(first).To(Equal(1))
		Expect(second).To(Equal(1))
	})
	It("should stop at the first failing rule and return its outcome verbatim", func() {
		var first, second, third int
		outcome := engine.Evaluate(ctx, w, []eligibility.Rule{
			countingRule("first", eligibility.Pass(), &first),
			countingRule("second", eligibility.Fail("second says no"), &second),
			countingRule("third", eligibility.Fail("third says no"), &third),
		})
		Expect(outcome).To(Equal(eligibility.Fail("second says no")))
		Expect(first).To(Equal(1))
		Expect(second).To(Equal(1))
		Expect(third).To(BeZero())
	})
	It("should respect the order rules are given in", func() {
		var a, b int
		forward := engine.Evaluate(ctx, w, []eligibility.Rule{
			countingRule("a", eligibility.Fail("a"), &a),
			countingRule("b", eligibility.Fail("b"), &b),
		})
		backward := engine.Evaluate(ctx, w, []eligibility.Rule{
			countingRule("b", eligibility.Fail("b"), &b),
			countingRule("a", eligibility.Fail("a"), &a),
		})
		Expect(forward.Reason()).To(Equal("a"))
		Expect(backward.Reason()).To(Equal("b"))
	})
	It("should return the same outcome for the same workload and rules", func() {
		rules := []eligibility.Rule{eligibility.MinimumReplicas(), eligibility.NotEvictionProtected(), eligibility.BoundedGracePeriod(eligibility.DefaultMaxGracePeriod)}
		first := engine.Evaluate(ctx, w, rules)
		for range 10 {
			Expect(engine.Evaluate(ctx, w, rules)).To(Equal(first))
		}
	})
	It("should convert a panicking rule into a failure", func() {
		var after int
		outcome := engine.Evaluate(ctx, w, []eligibility.Rule{
			{ID: "Exploding", Predicate: func(context.Context, *workload.Descriptor) eligibility.Outcome { panic("boom") }},
			countingRule("after", eligibility.Pass(), &after),
		})
		Expect(outcome.Eligible()).To(BeFalse())
		Expect(outcome.Reason()).To(Equal("rule Exploding could not be evaluated: boom"))
		Expect(after).To(BeZero())
	})
	It("should call the failure hook with the rejecting rule", func() {
		var failedRules []string
		engine = eligibility.NewEngine(eligibility.WithFailureHook(func(_ context.Context, _ *workload.Descriptor, rule eligibility.Rule, _ eligibility.Outcome) {
			failedRules = append(failedRules, rule.ID)
		}))
		var calls int
		engine.Evaluate(ctx, w, []eligibility.Rule{countingRule("ok", eligibility.Pass(), &calls), countingRule("nope", eligibility.Fail("no"), &calls)})
		engine.Evaluate(ctx, w, []eligibility.Rule{countingRule("ok", eligibility.Pass(), &calls)})
		Expect(failedRules).To(Equal([]string{"nope"}))
	})
	It("should render outcomes", func() {
		Expect(eligibility.Pass().String()).To(Equal("Pass"))
		Expect(eligibility.Failf("too %s", "slow").String()).To(Equal("Fail(too slow)"))
	})
})
