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
	"github.com/samber/lo"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

type DeploymentOptions struct {
	metav1.ObjectMeta
	Replicas *int32
	// Selector defaults to an app label matching the name
	Selector   map[string]string
	PodOptions PodOptions
	// Containers replaces the single container of the pod template when set
	Containers []corev1.Container
}

func Deployment(overrides ...DeploymentOptions) *appsv1.Deployment {
	options := MustMerge(DeploymentOptions{}, overrides...)
	meta := ObjectMeta(options.ObjectMeta)
	selector, template := podTemplate(meta, options.Selector, options.PodOptions, options.Containers)
	return &appsv1.Deployment{
		ObjectMeta: meta,
		Spec: appsv1.DeploymentSpec{
			Replicas: options.Replicas,
			Selector: selector,
			Template: template,
		},
	}
}

type StatefulSetOptions struct {
	metav1.ObjectMeta
	Replicas   *int32
	Selector   map[string]string
	PodOptions PodOptions
	Containers []corev1.Container
}

func StatefulSet(overrides ...StatefulSetOptions) *appsv1.StatefulSet {
	options := MustMerge(StatefulSetOptions{}, overrides...)
	meta := ObjectMeta(options.ObjectMeta)
	selector, template := podTemplate(meta, options.Selector, options.PodOptions, options.Containers)
	return &appsv1.StatefulSet{
		ObjectMeta: meta,
		Spec: appsv1.StatefulSetSpec{
			Replicas:    options.Replicas,
			Selector:    selector,
			Template:    template,
			ServiceName: meta.Name,
		},
	}
}

func podTemplate(meta metav1.ObjectMeta, selector map[string]string, podOptions PodOptions, containers []corev1.Container) (*metav1.LabelSelector, corev1.PodTemplateSpec) {
	if selector == nil {
		selector = map[string]string{"app": meta.Name}
	}
	pod := Pod(podOptions)
	if len(containers) > 0 {
		pod.Spec.Containers = containers
	}
	return &metav1.LabelSelector{MatchLabels: selector}, corev1.PodTemplateSpec{
		ObjectMeta: metav1.ObjectMeta{
			Labels:      lo.Assign(pod.Labels, selector),
			Annotations: pod.Annotations,
		},
		Spec: pod.Spec,
	}
}
