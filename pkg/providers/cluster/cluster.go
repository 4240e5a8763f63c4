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

package cluster

import (
	"context"
	"sort"
	"time"

	"github.com/avast/retry-go"
	"github.com/awslabs/operatorpkg/option"
	"github.com/samber/lo"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	policyv1 "k8s.io/api/policy/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/aws/spotable-workloads/pkg/errors"
	"github.com/aws/spotable-workloads/pkg/utils/pod"
	"github.com/aws/spotable-workloads/pkg/workload"
)

const (
	DeploymentsCollection          = "deployments"
	StatefulSetsCollection         = "statefulsets"
	PodsCollection                 = "pods"
	PodDisruptionBudgetsCollection = "poddisruptionbudgets"
)

// Provider is the read-only view of a cluster that a scan works from
type Provider interface {
	ListWorkloads(context.Context) ([]*workload.Descriptor, error)
	ListPods(ctx context.Context, namespace string, selector map[string]string) ([]workload.PodObservation, error)
	ListDisruptionBudgets(context.Context) ([]*workload.DisruptionBudget, error)
	ClusterName() string
}

type Options struct {
	Kinds      []workload.Kind
	Attempts   int
	RetryDelay time.Duration
}

func WithKinds(kinds ...workload.Kind) option.Function[Options] {
	return func(o *Options) { o.Kinds = kinds }
}

func WithAttempts(attempts int) option.Function[Options] {
	return func(o *Options) { o.Attempts = attempts }
}

func WithRetryDelay(delay time.Duration) option.Function[Options] {
	return func(o *Options) { o.RetryDelay = delay }
}

type DefaultProvider struct {
	kubeClient  client.Client
	clusterName string
	opts        *Options
}

func NewDefaultProvider(kubeClient client.Client, clusterName string, opts ...option.Function[Options]) *DefaultProvider {
	return &DefaultProvider{
		kubeClient:  kubeClient,
		clusterName: clusterName,
		opts: option.Resolve(append([]option.Function[Options]{
			WithKinds(workload.KindDeployment),
			WithAttempts(3),
			WithRetryDelay(time.Second),
		}, opts...)...),
	}
}

func (p *DefaultProvider) ClusterName() string {
	return p.clusterName
}

// ListWorkloads lists every workload of the configured kinds across all namespaces, ordered by kind
// and then by namespace/name
func (p *DefaultProvider) ListWorkloads(ctx context.Context) ([]*workload.Descriptor, error) {
	var workloads []*workload.Descriptor
	for _, kind := range p.opts.Kinds {
		switch kind {
		case workload.KindDeployment:
			list := &appsv1.DeploymentList{}
			if err := p.list(ctx, DeploymentsCollection, list); err != nil {
				return nil, err
			}
			workloads = append(workloads, sorted(lo.Map(list.Items, func(d appsv1.Deployment, _ int) *workload.Descriptor {
				return workload.FromDeployment(&d)
			}))...)
		case workload.KindStatefulSet:
			list := &appsv1.StatefulSetList{}
			if err := p.list(ctx, StatefulSetsCollection, list); err != nil {
				return nil, err
			}
			workloads = append(workloads, sorted(lo.Map(list.Items, func(s appsv1.StatefulSet, _ int) *workload.Descriptor {
				return workload.FromStatefulSet(&s)
			}))...)
		}
	}
	log.FromContext(ctx).V(1).Info("discovered workloads", "count", len(workloads))
	return workloads, nil
}

// ListPods skips pods that have finished or are being deleted
func (p *DefaultProvider) ListPods(ctx context.Context, namespace string, selector map[string]string) ([]workload.PodObservation, error) {
	list := &corev1.PodList{}
	if err := p.list(ctx, PodsCollection, list, client.InNamespace(namespace), client.MatchingLabels(selector)); err != nil {
		return nil, err
	}
	return lo.FilterMap(list.Items, func(item corev1.Pod, _ int) (workload.PodObservation, bool) {
		if !pod.IsLive(&item) {
			return workload.PodObservation{}, false
		}
		return *workload.FromPod(&item), true
	}), nil
}

func (p *DefaultProvider) ListDisruptionBudgets(ctx context.Context) ([]*workload.DisruptionBudget, error) {
	list := &policyv1.PodDisruptionBudgetList{}
	if err := p.list(ctx, PodDisruptionBudgetsCollection, list); err != nil {
		return nil, err
	}
	budgets := lo.Map(list.Items, func(pdb policyv1.PodDisruptionBudget, _ int) *workload.DisruptionBudget {
		return workload.FromPodDisruptionBudget(&pdb)
	})
	sort.SliceStable(budgets, func(i, j int) bool { return budgets[i].Key.String() < budgets[j].Key.String() })
	log.FromContext(ctx).V(1).Info("discovered disruption budgets", "count", len(budgets))
	return budgets, nil
}

func (p *DefaultProvider) list(ctx context.Context, collection string, list client.ObjectList, opts ...client.ListOption) error {
	if err := retry.Do(
		func() error { return p.kubeClient.List(ctx, list, opts...) },
		retry.Context(ctx),
		retry.Attempts(uint(p.opts.Attempts)),
		retry.Delay(p.opts.RetryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(errors.IsRetryable),
		retry.OnRetry(func(n uint, err error) {
			log.FromContext(ctx).V(1).Info("retrying list", "collection", collection, "attempt", n+1, "error", err.Error())
		}),
	); err != nil {
		return errors.NewDataFetchError(collection, err)
	}
	return nil
}

func sorted(workloads []*workload.Descriptor) []*workload.Descriptor {
	sort.SliceStable(workloads, func(i, j int) bool { return workloads[i].Key.String() < workloads[j].Key.String() })
	return workloads
}
