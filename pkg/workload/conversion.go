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

package workload

import (
	"time"

	"github.com/samber/lo"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	policyv1 "k8s.io/api/policy/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
)

func FromDeployment(d *appsv1.Deployment) *Descriptor {
	return fromWorkload(KindDeployment, d.ObjectMeta, d.Spec.Replicas, d.Spec.Selector, d.Spec.Template)
}

func FromStatefulSet(s *appsv1.StatefulSet) *Descriptor {
	return fromWorkload(KindStatefulSet, s.ObjectMeta, s.Spec.Replicas, s.Spec.Selector, s.Spec.Template)
}

func fromWorkload(kind Kind, meta metav1.ObjectMeta, replicas *int32, selector *metav1.LabelSelector, template corev1.PodTemplateSpec) *Descriptor {
	d := &Descriptor{
		Kind:        kind,
		Key:         Key{Namespace: meta.Namespace, Name: meta.Name},
		Labels:      meta.Labels,
		Annotations: meta.Annotations,
		Template: PodTemplate{
			Labels:        template.Labels,
			Annotations:   template.Annotations,
			RestartPolicy: string(template.Spec.RestartPolicy),
			Containers: lo.Map(template.Spec.Containers, func(c corev1.Container, _ int) Container {
				return Container{
					Name: c.Name,
					Requests: lo.MapEntries(c.Resources.Requests, func(name corev1.ResourceName, q resource.Quantity) (string, string) {
						return string(name), q.String()
					}),
				}
			}),
		},
	}
	if replicas != nil {
		d.Replicas = lo.ToPtr(*replicas)
	}
	if selector != nil {
		d.Selector = selector.MatchLabels
	}
	if template.Spec.TerminationGracePeriodSeconds != nil {
		d.Template.TerminationGracePeriod = lo.ToPtr(time.Duration(*template.Spec.TerminationGracePeriodSeconds) * time.Second)
	}
	return d
}

func FromPod(p *corev1.Pod) *PodObservation {
	return &PodObservation{
		Key: Key{Namespace: p.Namespace, Name: p.Name},
		Conditions: lo.Map(p.Status.Conditions, func(c corev1.PodCondition, _ int) Condition {
			return Condition{Type: string(c.Type), LastTransitionTime: c.LastTransitionTime.Time}
		}),
	}
}

func FromPodDisruptionBudget(pdb *policyv1.PodDisruptionBudget) *DisruptionBudget {
	b := &DisruptionBudget{
		Key: Key{Namespace: pdb.Namespace, Name: pdb.Name},
		Status: BudgetStatus{
			DisruptionsAllowed: pdb.Status.DisruptionsAllowed,
			CurrentHealthy:     pdb.Status.CurrentHealthy,
			DesiredHealthy:     pdb.Status.DesiredHealthy,
			ExpectedPods:       pdb.Status.ExpectedPods,
		},
	}
	b.Spec.MinAvailable = intOrStringValue(pdb.Spec.MinAvailable)
	b.Spec.MaxUnavailable = intOrStringValue(pdb.Spec.MaxUnavailable)
	if pdb.Spec.Selector != nil {
		b.Spec.Selector = pdb.Spec.Selector.MatchLabels
	}
	if pdb.Spec.UnhealthyPodEvictionPolicy != nil {
		b.Spec.UnhealthyPodEvictionPolicy = string(*pdb.Spec.UnhealthyPodEvictionPolicy)
	}
	return b
}

func intOrStringValue(v *intstr.IntOrString) string {
	if v == nil {
		return ""
	}
	return v.String()
}
