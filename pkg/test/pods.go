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

package test

import (
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// PodOptions customizes a Pod.
type PodOptions struct {
	metav1.ObjectMeta
	Image                         string
	ResourceRequirements          corev1.ResourceRequirements
	RestartPolicy                 corev1.RestartPolicy
	TerminationGracePeriodSeconds *int64
	Conditions                    []corev1.PodCondition
	Phase                         corev1.PodPhase
}

// Pod creates a test pod with defaults that can be overridden by PodOptions.
// Overrides are applied in order, with a last write wins semantic.
func Pod(overrides ...PodOptions) *corev1.Pod {
	options := MustMerge(PodOptions{}, overrides...)
	if options.Image == "" {
		options.Image = "public.ecr.aws/eks-distro/kubernetes/pause:3.2"
	}
	if options.RestartPolicy == "" {
		options.RestartPolicy = corev1.RestartPolicyAlways
	}
	if options.Phase == "" {
		options.Phase = corev1.PodRunning
	}
	return &corev1.Pod{
		ObjectMeta: ObjectMeta(options.ObjectMeta),
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{
				Name:      "app",
				Image:     options.Image,
				Resources: options.ResourceRequirements,
			}},
			RestartPolicy:                 options.RestartPolicy,
			TerminationGracePeriodSeconds: options.TerminationGracePeriodSeconds,
		},
		Status: corev1.PodStatus{
			Phase:      options.Phase,
			Conditions: options.Conditions,
		},
	}
}

// ReadyPod creates a pod that was scheduled at scheduled and became ready readyAfter later
func ReadyPod(scheduled time.Time, readyAfter time.Duration, overrides ...PodOptions) *corev1.Pod {
	return Pod(append([]PodOptions{{
		Conditions: []corev1.PodCondition{
			{Type: corev1.PodScheduled, Status: corev1.ConditionTrue, LastTransitionTime: metav1.NewTime(scheduled)},
			{Type: corev1.PodReady, Status: corev1.ConditionTrue, LastTransitionTime: metav1.NewTime(scheduled.Add(readyAfter))},
		},
	}}, overrides...)...)
}

// PendingPod creates a pod that has been scheduled but never reported readiness
func PendingPod(scheduled time.Time, overrides ...PodOptions) *corev1.Pod {
	return Pod(append([]PodOptions{{
		Phase: corev1.PodPending,
		Conditions: []corev1.PodCondition{
			{Type: corev1.PodScheduled, Status: corev1.ConditionTrue, LastTransitionTime: metav1.NewTime(scheduled)},
		},
	}}, overrides...)...)
}
