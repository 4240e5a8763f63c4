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
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/samber/lo"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	karpv1 "sigs.k8s.io/karpenter/pkg/apis/v1"

	"github.com/aws/spotable-workloads/pkg/eligibility"
	"github.com/aws/spotable-workloads/pkg/test"
	"github.com/aws/spotable-workloads/pkg/workload"
)

var _ = Describe("Predicates", func() {
	deployment := func(overrides ...test.DeploymentOptions) *workload.Descriptor {
		return workload.FromDeployment(test.Deployment(append([]test.DeploymentOptions{{Replicas: lo.ToPtr[int32](2)}}, overrides...)...))
	}
	evaluate := func(rule eligibility.Rule, w *workload.Descriptor) eligibility.Outcome {
		return rule.Predicate(ctx, w)
	}

	Context("MinimumReplicas", func() {
		It("should fail for a single replica", func() {
			Expect(evaluate(eligibility.MinimumReplicas(), deployment(test.DeploymentOptions{Replicas: lo.ToPtr[int32](1)}))).
				To(Equal(eligibility.Fail("The workload does not have more than one replica")))
		})
		It("should fail for zero replicas", func() {
			w := deployment()
			w.Replicas = lo.ToPtr[int32](0)
			Expect(evaluate(eligibility.MinimumReplicas(), w).Eligible()).To(BeFalse())
		})
		It("should fail when the replica count is absent", func() {
			w := deployment()
			w.Replicas = nil
			Expect(evaluate(eligibility.MinimumReplicas(), w).Eligible()).To(BeFalse())
		})
		It("should pass for two or more replicas", func() {
			Expect(evaluate(eligibility.MinimumReplicas(), deployment()).Eligible()).To(BeTrue())
			Expect(evaluate(eligibility.MinimumReplicas(), deployment(test.DeploymentOptions{Replicas: lo.ToPtr[int32](50)})).Eligible()).To(BeTrue())
		})
	})
	Context("NotEvictionProtected", func() {
		It("should fail when the workload is annotated", func() {
			w := deployment(test.DeploymentOptions{ObjectMeta: metav1.ObjectMeta{Annotations: map[string]string{eligibility.DoNotEvictAnnotationKey: "true"}}})
			Expect(evaluate(eligibility.NotEvictionProtected(), w)).
				To(Equal(eligibility.Fail(`The workload has the annotation karpenter.sh/do-not-evict set to "true"`)))
		})
		It("should fail when the pod template is annotated", func() {
			w := deployment(test.DeploymentOptions{PodOptions: test.PodOptions{ObjectMeta: metav1.ObjectMeta{Annotations: map[string]string{eligibility.DoNotEvictAnnotationKey: "true"}}}})
			Expect(evaluate(eligibility.NotEvictionProtected(), w).Eligible()).To(BeFalse())
		})
		It("should pass when the annotation has any other value", func() {
			w := deployment(test.DeploymentOptions{ObjectMeta: metav1.ObjectMeta{Annotations: map[string]string{eligibility.DoNotEvictAnnotationKey: "True"}}})
			Expect(evaluate(eligibility.NotEvictionProtected(), w).Eligible()).To(BeTrue())
		})
		It("should pass when the workload has no annotations", func() {
			w := deployment()
			w.Annotations = nil
			w.Template.Annotations = nil
			Expect(evaluate(eligibility.NotEvictionProtected(), w).Eligible()).To(BeTrue())
		})
		It("should pass when the workload has labels but no annotations", func() {
			w := deployment(test.DeploymentOptions{ObjectMeta: metav1.ObjectMeta{Labels: map[string]string{eligibility.DoNotEvictAnnotationKey: "true"}}})
			Expect(evaluate(eligibility.NotEvictionProtected(), w).Eligible()).To(BeTrue())
		})
	})
	Context("SafeToEvictLabel", func() {
		It("should fail when the label is false", func() {
			w := deployment(test.DeploymentOptions{ObjectMeta: metav1.ObjectMeta{Labels: map[string]string{eligibility.SafeToEvictLabelKey: "false"}}})
			Expect(evaluate(eligibility.SafeToEvictLabel(), w)).
				To(Equal(eligibility.Fail(`The workload has the label cluster-autoscaler.kubernetes.io/safe-to-evict set to "false"`)))
		})
		It("should pass when the label is true or absent", func() {
			w := deployment(test.DeploymentOptions{ObjectMeta: metav1.ObjectMeta{Labels: map[string]string{eligibility.SafeToEvictLabelKey: "true"}}})
			Expect(evaluate(eligibility.SafeToEvictLabel(), w).Eligible()).To(BeTrue())
			Expect(evaluate(eligibility.SafeToEvictLabel(), deployment()).Eligible()).To(BeTrue())
		})
	})
	Context("NoScaleDownRestriction", func() {
		It("should fail when the label is true", func() {
			w := deployment(test.DeploymentOptions{ObjectMeta: metav1.ObjectMeta{Labels: map[string]string{eligibility.RestrictScaleDownLabelKey: "true"}}})
			Expect(evaluate(eligibility.NoScaleDownRestriction(), w)).
				To(Equal(eligibility.Fail(`The workload has the label spotinst.io/restrict-scale-down set to "true"`)))
		})
		It("should pass when the label is false or absent", func() {
			w := deployment(test.DeploymentOptions{ObjectMeta: metav1.ObjectMeta{Labels: map[string]string{eligibility.RestrictScaleDownLabelKey: "false"}}})
			Expect(evaluate(eligibility.NoScaleDownRestriction(), w).Eligible()).To(BeTrue())
			Expect(evaluate(eligibility.NoScaleDownRestriction(), deployment()).Eligible()).To(BeTrue())
		})
	})
	Context("BoundedGracePeriod", func() {
		rule := eligibility.BoundedGracePeriod(eligibility.DefaultMaxGracePeriod)
		withGracePeriod := func(seconds int64) *workload.Descriptor {
			return deployment(test.DeploymentOptions{PodOptions: test.PodOptions{TerminationGracePeriodSeconds: lo.ToPtr(seconds)}})
		}
		It("should fail when the grace period exceeds ten minutes", func() {
			Expect(evaluate(rule, withGracePeriod(601))).
				To(Equal(eligibility.Fail("The workload has terminationGracePeriod greater than 10 minutes")))
		})
		It("should pass at exactly ten minutes", func() {
			Expect(evaluate(rule, withGracePeriod(600)).Eligible()).To(BeTrue())
		})
		It("should use the kubelet default when unset", func() {
			Expect(evaluate(rule, deployment()).Eligible()).To(BeTrue())
			Expect(evaluate(eligibility.BoundedGracePeriod(10*time.Second), deployment()).Eligible()).To(BeFalse())
		})
		It("should render the configured maximum in the reason", func() {
			Expect(evaluate(eligibility.BoundedGracePeriod(90*time.Second), withGracePeriod(120)).Reason()).
				To(Equal("The workload has terminationGracePeriod greater than 90 seconds"))
		})
	})
	Context("NoEphemeralStorageDemand", func() {
		It("should fail when any container requests ephemeral storage", func() {
			w := deployment(test.DeploymentOptions{Containers: []corev1.Container{
				{Name: "app", Resources: corev1.ResourceRequirements{Requests: corev1.ResourceList{corev1.ResourceCPU: resource.MustParse("100m")}}},
				{Name: "cache", Resources: corev1.ResourceRequirements{Requests: corev1.ResourceList{corev1.ResourceEphemeralStorage: resource.MustParse("1Gi")}}},
			}})
			Expect(evaluate(eligibility.NoEphemeralStorageDemand(), w)).
				To(Equal(eligibility.Fail("The workload's pods request ephemeral storage")))
		})
		It("should pass when no container requests ephemeral storage", func() {
			w := deployment(test.DeploymentOptions{PodOptions: test.PodOptions{ResourceRequirements: corev1.ResourceRequirements{
				Requests: corev1.ResourceList{corev1.ResourceCPU: resource.MustParse("100m"), corev1.ResourceMemory: resource.MustParse("128Mi")},
				Limits:   corev1.ResourceList{corev1.ResourceEphemeralStorage: resource.MustParse("1Gi")},
			}}})
			Expect(evaluate(eligibility.NoEphemeralStorageDemand(), w).Eligible()).To(BeTrue())
		})
	})
	Context("FastReadiness", func() {
		var pods *podLister
		var now time.Time
		observe := func(scheduled time.Time, readyAfter time.Duration) workload.PodObservation {
			return *workload.FromPod(test.ReadyPod(scheduled, readyAfter))
		}

		BeforeEach(func() {
			pods = &podLister{}
			now = time.Now().Truncate(time.Second)
		})

		It("should fail when the workload has no pods", func() {
			Expect(evaluate(eligibility.FastReadiness(pods, 10*time.Minute), deployment())).
				To(Equal(eligibility.Fail("The workload has no pods")))
		})
		It("should fail without listing pods when the workload has no selector", func() {
			w := deployment()
			w.Selector = nil
			Expect(evaluate(eligibility.FastReadiness(pods, 10*time.Minute), w)).
				To(Equal(eligibility.Fail("The workload has no pod selector")))
			Expect(pods.calls).To(BeZero())
		})
		It("should fail when a pod is missing its ready condition", func() {
			pods.pods = []workload.PodObservation{observe(now, time.Minute), *workload.FromPod(test.PendingPod(now))}
			Expect(evaluate(eligibility.FastReadiness(pods, 10*time.Minute), deployment())).
				To(Equal(eligibility.Fail("Pod schedule time or ready time is missing")))
		})
		It("should fail when a pod is missing its scheduled condition", func() {
			pods.pods = []workload.PodObservation{{Conditions: []workload.Condition{{Type: string(corev1.PodReady), LastTransitionTime: now}}}}
			Expect(evaluate(eligibility.FastReadiness(pods, 10*time.Minute), deployment()).Reason()).
				To(Equal("Pod schedule time or ready time is missing"))
		})
		It("should fail when any pod took longer than the threshold to become ready", func() {
			pods.pods = []workload.PodObservation{observe(now, time.Minute), observe(now, 11*time.Minute)}
			Expect(evaluate(eligibility.FastReadiness(pods, 10*time.Minute), deployment())).
				To(Equal(eligibility.Fail("The workload's pods take longer than 10 minutes to become ready")))
		})
		It("should pass when every pod became ready within the threshold", func() {
			pods.pods = []workload.PodObservation{observe(now, time.Minute), observe(now, 10*time.Minute)}
			Expect(evaluate(eligibility.FastReadiness(pods, 10*time.Minute), deployment()).Eligible()).To(BeTrue())
		})
		It("should fail without aborting when pods can't be listed", func() {
			pods.err = fmt.Errorf("connection refused")
			outcome := evaluate(eligibility.FastReadiness(pods, 10*time.Minute), deployment())
			Expect(outcome.Eligible()).To(BeFalse())
			Expect(outcome.Reason()).To(ContainSubstring("connection refused"))
		})
	})
	Context("Stateless", func() {
		It("should fail when pods don't restart", func() {
			w := deployment(test.DeploymentOptions{PodOptions: test.PodOptions{RestartPolicy: corev1.RestartPolicyOnFailure}})
			Expect(evaluate(eligibility.Stateless(), w)).
				To(Equal(eligibility.Fail("The workload's pods do not use restartPolicy Always")))
		})
		It("should pass when pods always restart", func() {
			Expect(evaluate(eligibility.Stateless(), deployment()).Eligible()).To(BeTrue())
		})
	})
	Context("NoDoNotDisrupt", func() {
		It("should fail when the pod template opts out of disruption", func() {
			w := deployment(test.DeploymentOptions{PodOptions: test.PodOptions{ObjectMeta: metav1.ObjectMeta{Annotations: map[string]string{karpv1.DoNotDisruptAnnotationKey: "true"}}}})
			Expect(evaluate(eligibility.NoDoNotDisrupt(), w)).
				To(Equal(eligibility.Fail(`The workload's pods have the annotation karpenter.sh/do-not-disrupt set to "true"`)))
		})
		It("should pass otherwise", func() {
			Expect(evaluate(eligibility.NoDoNotDisrupt(), deployment()).Eligible()).To(BeTrue())
		})
	})
	Context("Standard policy", func() {
		var rules []eligibility.Rule

		BeforeEach(func() {
			resolved, err := lo.Must(eligibility.NewRegistry().Get(eligibility.StandardPolicy)).Resolve(eligibility.Settings{})
			Expect(err).ToNot(HaveOccurred())
			rules = resolved.Rules
		})

		It("should accept a workload that passes every check", func() {
			w := deployment(test.DeploymentOptions{
				Replicas: lo.ToPtr[int32](3),
				PodOptions: test.PodOptions{
					TerminationGracePeriodSeconds: lo.ToPtr[int64](30),
					ResourceRequirements:          corev1.ResourceRequirements{Requests: corev1.ResourceList{corev1.ResourceCPU: resource.MustParse("500m"), corev1.ResourceMemory: resource.MustParse("256Mi")}},
				},
			})
			Expect(engine.Evaluate(ctx, w, rules).Eligible()).To(BeTrue())
		})
		It("should never accept a single replica workload", func() {
			w := deployment(test.DeploymentOptions{Replicas: lo.ToPtr[int32](1)})
			Expect(engine.Evaluate(ctx, w, rules).Reason()).To(Equal("The workload does not have more than one replica"))
		})
		It("should report the first failing check in policy order", func() {
			w := deployment(test.DeploymentOptions{
				ObjectMeta: metav1.ObjectMeta{Labels: map[string]string{eligibility.RestrictScaleDownLabelKey: "true", eligibility.SafeToEvictLabelKey: "false"}},
			})
			Expect(engine.Evaluate(ctx, w, rules).Reason()).To(ContainSubstring(eligibility.SafeToEvictLabelKey))
		})
	})
})
