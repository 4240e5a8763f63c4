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
	"github.com/awslabs/operatorpkg/option"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	"github.com/aws/spotable-workloads/pkg/providers/cluster"
)

const ClusterName = "test-cluster"

// Environment is an in-memory cluster seeded with objects
type Environment struct {
	Client   client.Client
	Provider *cluster.DefaultProvider
}

type EnvironmentOptions struct {
	Objects      []client.Object
	Interceptors *interceptor.Funcs
	Provider     []option.Function[cluster.Options]
}

func NewEnvironment(overrides ...EnvironmentOptions) *Environment {
	options := MustMerge(EnvironmentOptions{}, overrides...)
	builder := fake.NewClientBuilder().WithObjects(options.Objects...)
	if options.Interceptors != nil {
		builder = builder.WithInterceptorFuncs(*options.Interceptors)
	}
	kubeClient := builder.Build()
	return &Environment{
		Client:   kubeClient,
		Provider: cluster.NewDefaultProvider(kubeClient, ClusterName, append([]option.Function[cluster.Options]{cluster.WithRetryDelay(0)}, options.Provider...)...),
	}
}
