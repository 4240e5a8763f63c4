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

package operator

import (
	"context"
	"fmt"

	"github.com/awslabs/operatorpkg/serrors"
	"github.com/samber/lo"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/aws/spotable-workloads/pkg/eligibility"
	"github.com/aws/spotable-workloads/pkg/operator/options"
	"github.com/aws/spotable-workloads/pkg/providers/cluster"
	"github.com/aws/spotable-workloads/pkg/scan"
	"github.com/aws/spotable-workloads/pkg/workload"
)

const appName = "spotable"

var scheme = runtime.NewScheme()

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
}

// Operator holds the components a scan is wired from
type Operator struct {
	Registry *eligibility.Registry
	Policy   eligibility.Resolved
	Provider *cluster.DefaultProvider
	Scanner  *scan.Scanner
}

// Cluster is a kubeconfig resolved to a client config and the name of the cluster it points at
type Cluster struct {
	Name   string
	Config *rest.Config
}

// LoadCluster resolves the kubeconfig and context named in the options. Nothing is sent to the
// kube-apiserver.
func LoadCluster(ctx context.Context) (Cluster, error) {
	opts := options.FromContext(ctx)
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	rules.ExplicitPath = opts.Kubeconfig
	loader := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{CurrentContext: opts.Context})
	raw, err := loader.RawConfig()
	if err != nil {
		return Cluster{}, fmt.Errorf("loading kubeconfig, %w", err)
	}
	contextName := lo.Ternary(opts.Context != "", opts.Context, raw.CurrentContext)
	kubeContext, ok := raw.Contexts[contextName]
	if !ok {
		return Cluster{}, serrors.Wrap(fmt.Errorf("context not found in kubeconfig"), "context", contextName)
	}
	config, err := loader.ClientConfig()
	if err != nil {
		return Cluster{}, fmt.Errorf("building client config, %w", err)
	}
	config.QPS = float32(opts.KubeClientQPS)
	config.Burst = opts.KubeClientBurst
	config.UserAgent = appName
	return Cluster{Name: kubeContext.Cluster, Config: config}, nil
}

// NewKubeClient builds a client for the core and apps APIs
func NewKubeClient(config *rest.Config) (client.Client, error) {
	kubeClient, err := client.New(config, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("creating kube client, %w", err)
	}
	return kubeClient, nil
}

// NewOperator resolves the configured policy and wires the scanner. Configuration errors are
// returned before any call to the cluster.
func NewOperator(ctx context.Context, kubeClient client.Client, clusterName string) (*Operator, error) {
	opts := options.FromContext(ctx)
	registry := eligibility.NewRegistry()
	if opts.PolicyFile != "" {
		if err := registry.LoadFile(opts.PolicyFile); err != nil {
			return nil, fmt.Errorf("loading policy file, %w", err)
		}
	}
	policy, err := registry.Get(opts.Policy)
	if err != nil {
		return nil, err
	}
	provider := cluster.NewDefaultProvider(kubeClient, clusterName,
		cluster.WithKinds(lo.Map(opts.WorkloadKinds, func(k string, _ int) workload.Kind { return workload.Kind(k) })...),
		cluster.WithAttempts(opts.FetchRetries),
	)
	resolved, err := policy.Resolve(eligibility.Settings{
		Rules:              opts.Rules,
		ReadinessThreshold: opts.ReadinessThreshold,
		MaxGracePeriod:     opts.MaxGracePeriod,
		Pods:               provider,
	})
	if err != nil {
		return nil, fmt.Errorf("resolving policy, %w", err)
	}
	log.FromContext(ctx).V(1).Info("resolved policy", "policy", resolved.Name, "rules", resolved.RuleIDs, "hash", resolved.Hash())
	engine := eligibility.NewEngine(eligibility.WithFailureHook(scan.RecordRejection))
	return &Operator{
		Registry: registry,
		Policy:   resolved,
		Provider: provider,
		Scanner: scan.NewScanner(provider, engine, resolved,
			scan.WithExcludedNamespaces(opts.ExcludeNamespaces...),
			scan.WithParallelism(opts.Parallelism),
			scan.WithDisruptionBudgetAudit(opts.AuditDisruptionBudgets),
		),
	}, nil
}
