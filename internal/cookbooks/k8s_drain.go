// SPDX-License-Identifier: MPL-2.0

package cookbooks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/cookbook"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/remote"
)

// ErrNodeNotFound is returned when the node to drain is not in the cluster.
var ErrNodeNotFound = errors.New("kubernetes node not found")

// K8sWorkerDrain drains a Toolforge Kubernetes worker and waits until every
// evictable pod is gone.
type K8sWorkerDrain struct {
	controlNode  string
	node         string
	drainTimeout time.Duration
	interval     time.Duration
	timeout      time.Duration
}

// NewK8sWorkerDrain returns the wmcs.toolforge.k8s.worker.drain cookbook.
func NewK8sWorkerDrain() cookbook.Cookbook { return &K8sWorkerDrain{} }

// Name implements cookbook.Cookbook.
func (c *K8sWorkerDrain) Name() string { return "wmcs.toolforge.k8s.worker.drain" }

// Summary implements cookbook.Cookbook.
func (c *K8sWorkerDrain) Summary() string { return "Drain a Toolforge Kubernetes worker node" }

// BindFlags implements cookbook.Cookbook.
func (c *K8sWorkerDrain) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.controlNode, "control-node", "", "FQDN of the control node used to run kubectl (required)")
	fs.StringVar(&c.node, "hostname-to-drain", "", "hostname (without domain) of the node to drain (required)")
	fs.DurationVar(&c.drainTimeout, "drain-timeout", time.Minute, "timeout passed to kubectl drain")
	fs.DurationVar(&c.interval, "interval", 10*time.Second, "time between two pod checks")
	fs.DurationVar(&c.timeout, "timeout", 5*time.Minute, "give up waiting for pods after this long")
}

// Run implements cookbook.Cookbook.
func (c *K8sWorkerDrain) Run(ctx context.Context, rt *cookbook.Runtime) error {
	switch {
	case c.controlNode == "":
		return fmt.Errorf("%w: --control-node", ErrMissingFlag)
	case c.node == "":
		return fmt.Errorf("%w: --hostname-to-drain", ErrMissingFlag)
	case c.controlNode == c.node || strings.HasPrefix(c.controlNode, c.node+"."):
		return fmt.Errorf("refusing to drain %s through itself, pick another control node", c.node)
	}

	kc := kubectl{exec: rt.Exec, controlNode: c.controlNode}

	nodes, err := kc.nodes(ctx, "kubernetes.io/hostname="+c.node)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, c.node)
	}

	rt.Logger.Info("draining node", "node", c.node, "control_node", c.controlNode)
	if err := kc.drain(ctx, c.node, c.drainTimeout); err != nil {
		return err
	}

	err = rt.Poll(ctx, "node "+c.node+" to drain", c.interval, c.timeout, func(ctx context.Context) (bool, string, error) {
		pods, err := kc.evictablePods(ctx, c.node)
		if err != nil {
			return false, "", err
		}
		if len(pods) == 0 {
			return true, "", nil
		}
		rt.Logger.Debug("node still has pods", "node", c.node, "pods", len(pods))
		return false, fmt.Sprintf("%d pods still running: %s", len(pods), strings.Join(pods, ", ")), nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(rt.Stdout, "Node %s drained\n", c.node)
	return nil
}

// kubectl runs kubectl on a control node through an executor.
type kubectl struct {
	exec        remote.Executor
	controlNode string
}

func (k kubectl) request(args ...string) remote.Request {
	return remote.Request{Command: append([]string{"kubectl"}, args...), Targets: []string{k.controlNode}}
}

func (k kubectl) items(ctx context.Context, args ...string) ([]any, error) {
	out, err := remote.RunAsMap(ctx, k.exec, k.request(args...), remote.FormatJSON)
	if err != nil {
		return nil, err
	}
	items, ok := out["items"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: kubectl output has no items list", remote.ErrUnexpectedShape)
	}
	return items, nil
}

func (k kubectl) nodes(ctx context.Context, selector string) ([]any, error) {
	return k.items(ctx, "get", "nodes", "--output=json", fmt.Sprintf("--selector='%s'", selector))
}

func (k kubectl) drain(ctx context.Context, node string, timeout time.Duration) error {
	_, err := remote.RunRaw(ctx, k.exec, k.request(
		"drain",
		"--ignore-daemonsets",
		"--delete-emptydir-data",
		"--grace-period=1",
		"--skip-wait-for-delete-timeout=1",
		fmt.Sprintf("--timeout=%ds", int(timeout.Seconds())),
		"--force",
		node,
	))
	return err
}

// evictablePods returns "namespace/name" of the pods on node that a drain
// evicts. DaemonSet pods and static control plane pods owned by the Node stay.
func (k kubectl) evictablePods(ctx context.Context, node string) ([]string, error) {
	pods, err := k.items(ctx, "get", "pods", "--all-namespaces", "--output=json",
		fmt.Sprintf("--field-selector='spec.nodeName=%s'", node))
	if err != nil {
		return nil, err
	}

	var evictable []string
	for _, p := range pods {
		pod, _ := p.(map[string]any)
		meta, _ := pod["metadata"].(map[string]any)
		if ownedByNodeOrDaemonSet(meta) {
			continue
		}
		ns, _ := meta["namespace"].(string)
		name, _ := meta["name"].(string)
		evictable = append(evictable, ns+"/"+name)
	}
	return evictable, nil
}

func ownedByNodeOrDaemonSet(meta map[string]any) bool {
	refs, _ := meta["ownerReferences"].([]any)
	for _, r := range refs {
		ref, _ := r.(map[string]any)
		if kind := ref["kind"]; kind == "Node" || kind == "DaemonSet" {
			return true
		}
	}
	return false
}
