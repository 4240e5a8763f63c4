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
	"fmt"
	"strings"

	"github.com/Pallinder/go-randomdata"
	"github.com/imdario/mergo"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const DefaultNamespace = "default"

// RandomName returns a pseudo-random resource name
func RandomName() string {
	return strings.ToLower(fmt.Sprintf("%s-%d-%s", randomdata.SillyName(), randomdata.Number(0, 100000), randomdata.Alphanumeric(10)))
}

// ObjectMeta fills in a random name and the default namespace unless overridden
func ObjectMeta(overrides ...metav1.ObjectMeta) metav1.ObjectMeta {
	return MustMerge(metav1.ObjectMeta{
		Name:      RandomName(),
		Namespace: DefaultNamespace,
	}, overrides...)
}

func MustMerge[T any](dest T, srcs ...T) T {
	for _, src := range srcs {
		if err := mergo.Merge(&dest, src, mergo.WithOverride); err != nil {
			panic(fmt.Sprintf("failed to merge object: %s", err))
		}
	}
	return dest
}
