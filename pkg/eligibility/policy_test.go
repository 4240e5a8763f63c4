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
	"os"
	"path/filepath"
	"slices"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/samber/lo"

	"github.com/aws/spotable-workloads/pkg/eligibility"
)

var _ = Describe("Policies", func() {
	var registry *eligibility.Registry
	var pods *podLister

	BeforeEach(func() {
		registry = eligibility.NewRegistry()
		pods = &podLister{}
	})

	ruleIDs := func(rules []eligibility.Rule) []string {
		return lo.Map(rules, func(r eligibility.Rule, _ int) string { return r.ID })
	}

	Context("Built-in", func() {
		It("should register the built-in policies", func() {
			Expect(registry.Names()).To(Equal([]string{eligibility.ReadinessPolicy, eligibility.StandardPolicy, eligibility.StrictPolicy}))
		})
		It("should evaluate the base rules in order for the standard policy", func() {
			resolved, err := lo.Must(registry.Get(eligibility.StandardPolicy)).Resolve(eligibility.Settings{})
			Expect(err).ToNot(HaveOccurred())
			Expect(ruleIDs(resolved.Rules)).To(Equal(eligibility.BaseRules))
			Expect(resolved.MaxGracePeriod).To(Equal(eligibility.DefaultMaxGracePeriod))
		})
		It("should add readiness to the readiness policy", func() {
			resolved, err := lo.Must(registry.Get(eligibility.ReadinessPolicy)).Resolve(eligibility.Settings{Pods: pods})
			Expect(err).ToNot(HaveOccurred())
			Expect(ruleIDs(resolved.Rules)).To(Equal(append(slices.Clone(eligibility.BaseRules), eligibility.FastReadinessRule)))
			Expect(resolved.ReadinessThreshold).To(Equal(10 * time.Minute))
		})
		It("should tighten readiness and require restarts for the strict policy", func() {
			resolved, err := lo.Must(registry.Get(eligibility.StrictPolicy)).Resolve(eligibility.Settings{Pods: pods})
			Expect(err).ToNot(HaveOccurred())
			Expect(ruleIDs(resolved.Rules)).To(Equal(append(slices.Clone(eligibility.BaseRules), eligibility.FastReadinessRule, eligibility.StatelessRule)))
			Expect(resolved.ReadinessThreshold).To(Equal(2 * time.Minute))
		})
		It("should fail for unknown policies", func() {
			_, err := registry.Get("lenient")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unknown policy"))
		})
	})
	Context("Resolve", func() {
		It("should replace the rule list when rules are given", func() {
			resolved, err := lo.Must(registry.Get(eligibility.StandardPolicy)).Resolve(eligibility.Settings{
				Rules: []string{eligibility.NoDoNotDisruptRule, eligibility.MinimumReplicasRule},
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(ruleIDs(resolved.Rules)).To(Equal([]string{eligibility.NoDoNotDisruptRule, eligibility.MinimumReplicasRule}))
		})
		It("should reject unknown rules", func() {
			_, err := lo.Must(registry.Get(eligibility.StandardPolicy)).Resolve(eligibility.Settings{Rules: []string{"NotARule"}})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unknown rule"))
		})
		It("should require a pod lister for readiness checks", func() {
			_, err := lo.Must(registry.Get(eligibility.ReadinessPolicy)).Resolve(eligibility.Settings{})
			Expect(err).To(HaveOccurred())
		})
		It("should let a positive readiness threshold override the policy", func() {
			resolved, err := lo.Must(registry.Get(eligibility.StrictPolicy)).Resolve(eligibility.Settings{Pods: pods, ReadinessThreshold: 5 * time.Minute})
			Expect(err).ToNot(HaveOccurred())
			Expect(resolved.ReadinessThreshold).To(Equal(5 * time.Minute))
		})
		It("should prefer the policy's grace period over the setting", func() {
			Expect(registry.Register(eligibility.Policy{Name: "patient", Rules: []string{eligibility.BoundedGracePeriodRule}, MaxGracePeriod: "30m"})).To(Succeed())
			resolved, err := lo.Must(registry.Get("patient")).Resolve(eligibility.Settings{MaxGracePeriod: 5 * time.Minute})
			Expect(err).ToNot(HaveOccurred())
			Expect(resolved.MaxGracePeriod).To(Equal(30 * time.Minute))
		})
	})
	Context("Hash", func() {
		It("should be stable for the same resolution", func() {
			a := lo.Must(lo.Must(registry.Get(eligibility.StandardPolicy)).Resolve(eligibility.Settings{}))
			b := lo.Must(lo.Must(registry.Get(eligibility.StandardPolicy)).Resolve(eligibility.Settings{}))
			Expect(a.Hash()).To(Equal(b.Hash()))
		})
		It("should change with rule order and settings", func() {
			standard := lo.Must(lo.Must(registry.Get(eligibility.StandardPolicy)).Resolve(eligibility.Settings{}))
			reordered := lo.Must(lo.Must(registry.Get(eligibility.StandardPolicy)).Resolve(eligibility.Settings{Rules: lo.Reverse(slices.Clone(eligibility.BaseRules))}))
			relaxed := lo.Must(lo.Must(registry.Get(eligibility.StandardPolicy)).Resolve(eligibility.Settings{MaxGracePeriod: time.Hour}))
			Expect(reordered.Hash()).ToNot(Equal(standard.Hash()))
			Expect(relaxed.Hash()).ToNot(Equal(standard.Hash()))
		})
	})
	Context("LoadFile", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		write := func(name, contents string) string {
			path := filepath.Join(dir, name)
			Expect(os.WriteFile(path, []byte(contents), 0o600)).To(Succeed())
			return path
		}

		It("should load YAML policies", func() {
			path := write("policies.yaml", `
policies:
- name: batch
  rules: [MinimumReplicas, FastReadiness]
  readinessThreshold: 5m
`)
			Expect(registry.LoadFile(path)).To(Succeed())
			policy := lo.Must(registry.Get("batch"))
			Expect(policy.Rules).To(Equal([]string{eligibility.MinimumReplicasRule, eligibility.FastReadinessRule}))
			Expect(lo.Must(policy.Resolve(eligibility.Settings{Pods: pods})).ReadinessThreshold).To(Equal(5 * time.Minute))
		})
		It("should load TOML policies", func() {
			path := write("policies.toml", `
[[policies]]
name = "web"
rules = ["MinimumReplicas", "NoDoNotDisrupt"]
maxGracePeriod = "2m"
`)
			Expect(registry.LoadFile(path)).To(Succeed())
			policy := lo.Must(registry.Get("web"))
			Expect(policy.Rules).To(Equal([]string{eligibility.MinimumReplicasRule, eligibility.NoDoNotDisruptRule}))
			Expect(policy.MaxGracePeriod).To(Equal("2m"))
		})
		It("should override built-in policies of the same name", func() {
			path := write("policies.yml", "policies:\n- name: standard\n  rules: [MinimumReplicas]\n")
			Expect(registry.LoadFile(path)).To(Succeed())
			Expect(lo.Must(registry.Get(eligibility.StandardPolicy)).Rules).To(Equal([]string{eligibility.MinimumReplicasRule}))
		})
		It("should reject unknown fields", func() {
			path := write("policies.yaml", "policies:\n- name: typo\n  rulez: [MinimumReplicas]\n")
			Expect(registry.LoadFile(path)).ToNot(Succeed())
		})
		It("should reject invalid policies", func() {
			path := write("policies.yaml", `
policies:
- name: unknown-rule
  rules: [MinimumReplicas, NotARule]
- name: bad-duration
  rules: [FastReadiness]
  readinessThreshold: soon
- rules: [MinimumReplicas]
`)
			err := registry.LoadFile(path)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unknown rule"))
			Expect(err.Error()).To(ContainSubstring("invalid readinessThreshold"))
			Expect(err.Error()).To(ContainSubstring("policy name must not be empty"))
			_, err = registry.Get("unknown-rule")
			Expect(err).To(HaveOccurred())
		})
		It("should reject unsupported extensions", func() {
			Expect(registry.LoadFile(write("policies.ini", "policies=[]"))).ToNot(Succeed())
		})
		It("should fail when the file is missing", func() {
			Expect(registry.LoadFile(filepath.Join(dir, "missing.yaml"))).ToNot(Succeed())
		})
	})
	It("should render durations for reasons", func() {
		Expect(eligibility.Humanize(10 * time.Minute)).To(Equal("10 minutes"))
		Expect(eligibility.Humanize(time.Minute)).To(Equal("1 minute"))
		Expect(eligibility.Humanize(45 * time.Second)).To(Equal("45 seconds"))
		Expect(eligibility.Humanize(1500 * time.Millisecond)).To(Equal("1.5s"))
	})
})
