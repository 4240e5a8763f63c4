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

package eligibility

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	corev1 "k8s.io/api/core/v1"
	karpv1 "sigs.k8s.io/karpenter/pkg/apis/v1"

	"github.com/aws/spotable-workloads/pkg/utils/resources"
	"github.com/aws/spotable-workloads/pkg/workload"
)

const (
	DoNotEvictAnnotationKey   = "karpenter.sh/do-not-evict"
	SafeToEvictLabelKey       = "cluster-autoscaler.kubernetes.io/safe-to-evict"
	RestrictScaleDownLabelKey = "spotinst.io/restrict-scale-down"
	DefaultMaxGracePeriod     = 10 * time.Minute
	DefaultReadinessThreshold = 10 * time.Minute
	minimumEligibleReplicas   = 2
)

const (
	MinimumReplicasRule          = "MinimumReplicas"
	NotEvictionProtectedRule     = "NotEvictionProtected"
	SafeToEvictLabelRule         = "SafeToEvictLabel"
	NoScaleDownRestrictionRule   = "NoScaleDownRestriction"
	BoundedGracePeriodRule       = "BoundedGracePeriod"
	NoEphemeralStorageDemandRule = "NoEphemeralStorageDemand"
	FastReadinessRule            = "FastReadiness"
	StatelessRule                = "Stateless"
	NoDoNotDisruptRule           = "NoDoNotDisrupt"
)

// PodLister returns the live pods of a namespace that match every label in selector
type PodLister interface {
	ListPods(ctx context.Context, namespace string, selector map[string]string) ([]workload.PodObservation, error)
}

func MinimumReplicas() Rule {
	return Rule{ID: MinimumReplicasRule, Predicate: func(_ context.Context, w *workload.Descriptor) Outcome {
		if w.Replicas == nil || *w.Replicas < minimumEligibleReplicas {
			return Fail("The workload does not have more than one replica")
		}
		return Pass()
	}}
}

func NotEvictionProtected() Rule {
	return Rule{ID: NotEvictionProtectedRule, Predicate: func(_ context.Context, w *workload.Descriptor) Outcome {
		if w.Annotations.Equals(DoNotEvictAnnotationKey, "true") || w.Template.Annotations.Equals(DoNotEvictAnnotationKey, "true") {
			return Failf("The workload has the annotation %s set to %q", DoNotEvictAnnotationKey, "true")
		}
		return Pass()
	}}
}

func SafeToEvictLabel() Rule {
	return Rule{ID: SafeToEvictLabelRule, Predicate: func(_ context.Context, w *workload.Descriptor) Outcome {
		if w.Labels.Equals(SafeToEvictLabelKey, "false") {
			return Failf("The workload has the label %s set to %q", SafeToEvictLabelKey, "false")
		}
		return Pass()
	}}
}

func NoScaleDownRestriction() Rule {
	return Rule{ID: NoScaleDownRestrictionRule, Predicate: func(_ context.Context, w *workload.Descriptor) Outcome {
		if w.Labels.Equals(RestrictScaleDownLabelKey, "true") {
			return Failf("The workload has the label %s set to %q", RestrictScaleDownLabelKey, "true")
		}
		return Pass()
	}}
}

// BoundedGracePeriod rejects workloads whose pods may take longer than max to shut down. An
// unset grace period is the kubelet default.
func BoundedGracePeriod(max time.Duration) Rule {
	return Rule{ID: BoundedGracePeriodRule, Predicate: func(_ context.Context, w *workload.Descriptor) Outcome {
		if w.Template.GracePeriod() > max {
			return Failf("The workload has terminationGracePeriod greater than %s", Humanize(max))
		}
		return Pass()
	}}
}

func NoEphemeralStorageDemand() Rule {
	return Rule{ID: NoEphemeralStorageDemandRule, Predicate: func(_ context.Context, w *workload.Descriptor) Outcome {
		if lo.ContainsBy(w.Template.Containers, func(c workload.Container) bool {
			_, ok := c.Requests[resources.EphemeralStorage]
			return ok
		}) {
			return Fail("The workload's pods request ephemeral storage")
		}
		return Pass()
	}}
}

// FastReadiness rejects workloads whose current pods took longer than threshold to go from
// scheduled to ready. Every pod must report both conditions.
func FastReadiness(pods PodLister, threshold time.Duration) Rule {
	return Rule{ID: FastReadinessRule, Predicate: func(ctx context.Context, w *workload.Descriptor) Outcome {
		if len(w.Selector) == 0 {
			return Fail("The workload has no pod selector")
		}
		observed, err := pods.ListPods(ctx, w.Namespace, w.Selector)
		if err != nil {
			return Failf("The workload's pods could not be listed, %s", err)
		}
		if len(observed) == 0 {
			return Fail("The workload has no pods")
		}
		for i := range observed {
			scheduled, ok := observed[i].Condition(string(corev1.PodScheduled))
			if !ok {
				return Fail("Pod schedule time or ready time is missing")
			}
			ready, ok := observed[i].Condition(string(corev1.PodReady))
			if !ok {
				return Fail("Pod schedule time or ready time is missing")
			}
			if ready.Sub(scheduled) > threshold {
				return Failf("The workload's pods take longer than %s to become ready", Humanize(threshold))
			}
		}
		return Pass()
	}}
}

func Stateless() Rule {
	return Rule{ID: StatelessRule, Predicate: func(_ context.Context, w *workload.Descriptor) Outcome {
		if w.Template.RestartPolicy != "" && w.Template.RestartPolicy != string(corev1.RestartPolicyAlways) {
			return Failf("The workload's pods do not use restartPolicy %s", corev1.RestartPolicyAlways)
		}
		return Pass()
	}}
}

func NoDoNotDisrupt() Rule {
	return Rule{ID: NoDoNotDisruptRule, Predicate: func(_ context.Context, w *workload.Descriptor) Outcome {
		if w.Template.Annotations.Equals(karpv1.DoNotDisruptAnnotationKey, "true") {
			return Failf("The workload's pods have the annotation %s set to %q", karpv1.DoNotDisruptAnnotationKey, "true")
		}
		return Pass()
	}}
}

// Humanize renders d the way reasons spell durations, e.g. "10 minutes" or "90 seconds"
func Humanize(d time.Duration) string {
	switch {
	case d == time.Minute:
		return "1 minute"
	case d > 0 && d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	case d == time.Second:
		return "1 second"
	case d > 0 && d%time.Second == 0:
		return fmt.Sprintf("%d seconds", d/time.Second)
	default:
		return d.String()
	}
}
