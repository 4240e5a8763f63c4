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

package command

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/awslabs/operatorpkg/option"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/aws/spotable-workloads/pkg/errors"
	"github.com/aws/spotable-workloads/pkg/metrics"
	"github.com/aws/spotable-workloads/pkg/operator"
	"github.com/aws/spotable-workloads/pkg/operator/logging"
	"github.com/aws/spotable-workloads/pkg/operator/options"
	"github.com/aws/spotable-workloads/pkg/report"
)

const ExcludePrompt = "Enter namespaces to exclude: "

type IOStreams struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

// ConnectFunc returns a client for the configured cluster and the cluster's name
type ConnectFunc func(ctx context.Context) (client.Client, string, error)

type Options struct {
	Connect    ConnectFunc
	IsTerminal func(io.Reader) bool
}

func WithConnect(connect ConnectFunc) option.Function[Options] {
	return func(o *Options) { o.Connect = connect }
}

func WithTerminalCheck(isTerminal func(io.Reader) bool) option.Function[Options] {
	return func(o *Options) { o.IsTerminal = isTerminal }
}

type Context struct {
	IOStreams
	Options *options.Options

	opts *Options
}

func NewCmd(streams IOStreams, opts ...option.Function[Options]) *cobra.Command {
	c := &Context{
		IOStreams: streams,
		Options:   &options.Options{},
		opts: option.Resolve(append([]option.Function[Options]{
			WithConnect(Connect),
			WithTerminalCheck(IsTerminal),
		}, opts...)...),
	}
	cmd := &cobra.Command{
		Use:           "spotable",
		Short:         "Report which workloads in a cluster may be suitable for spot capacity",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.Run(cmd.Context())
		},
	}
	c.Options.AddFlags(cmd.Flags())
	return cmd
}

// Run validates the configuration, scans the cluster and writes the report. Configuration errors
// are returned before the cluster is contacted.
func (c *Context) Run(ctx context.Context) error {
	if err := c.Options.Validate(); err != nil {
		return fmt.Errorf("validating cli flags / env vars, %w", err)
	}
	ctx = c.Options.ToContext(ctx)
	ctx, err := logging.IntoContext(ctx, "spotable")
	if err != nil {
		return fmt.Errorf("building logger, %w", err)
	}
	renderer, err := report.New(c.Options.Output)
	if err != nil {
		return err
	}
	if err := c.prompt(); err != nil {
		return err
	}
	kubeClient, clusterName, err := c.opts.Connect(ctx)
	if err != nil {
		return err
	}
	op, err := operator.NewOperator(ctx, kubeClient, clusterName)
	if err != nil {
		return err
	}
	log.FromContext(ctx).Info("scanning cluster", "cluster", clusterName, "policy", op.Policy.Name)
	result, err := op.Scanner.Scan(ctx)
	if err != nil {
		if errors.IsDataFetch(err) {
			return fmt.Errorf("scan aborted, %w", err)
		}
		return err
	}
	if err := renderer.Render(c.Out, result); err != nil {
		return err
	}
	if c.Options.MetricsFile != "" {
		if err := metrics.WriteFile(c.Options.MetricsFile); err != nil {
			return err
		}
		log.FromContext(ctx).V(1).Info("wrote metrics", "path", c.Options.MetricsFile)
	}
	return nil
}

// prompt asks for additional namespaces to exclude when running interactively on a terminal
func (c *Context) prompt() error {
	if !c.Options.Interactive || !c.opts.IsTerminal(c.In) {
		return nil
	}
	fmt.Fprint(c.ErrOut, ExcludePrompt)
	line, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("reading excluded namespaces, %w", err)
	}
	c.Options.AddExcludedNamespaces(line)
	return nil
}

// Connect loads the kubeconfig named in the options and builds a client for it
func Connect(ctx context.Context) (client.Client, string, error) {
	cluster, err := operator.LoadCluster(ctx)
	if err != nil {
		return nil, "", err
	}
	kubeClient, err := operator.NewKubeClient(cluster.Config)
	if err != nil {
		return nil, "", err
	}
	return kubeClient, cluster.Name, nil
}

func IsTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
