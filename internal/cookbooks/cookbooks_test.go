// SPDX-License-Identifier: MPL-2.0

package cookbooks_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/cookbook"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/cookbooks"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/harness"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/remote"
)

const (
	monitor     = "cloudcephmon1004.eqiad.wmnet"
	controlNode = "tools-k8s-control-7.tools.eqiad1.wikimedia.cloud"
)

func replay(t *testing.T, traceFile string, args ...string) harness.Result {
	t.Helper()
	reg, err := cookbooks.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}
	res, err := harness.Run(t.Context(), harness.CookbookEntry(reg), filepath.Join("testdata", traceFile), args...)
	if err != nil {
		t.Fatalf("harness.Run() error: %v\nstderr:\n%s", err, res.Stderr)
	}
	return res
}

func TestBuiltinRegistry(t *testing.T) {
	t.Parallel()

	reg, err := cookbooks.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}
	var names []string
	for _, info := range reg.List() {
		names = append(names, info.Name)
	}
	want := []string{"wmcs.ceph.health", "wmcs.toolforge.k8s.worker.drain"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("List() names = %v, want %v", names, want)
	}
}

func TestCephHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		trace      string
		args       []string
		wantExit   int
		wantStdout string
		wantErr    error
	}{
		{
			name:       "recovers after two checks",
			trace:      "ceph_health_recovers.yaml",
			args:       []string{"--monitor", monitor},
			wantStdout: "Cluster is healthy (" + monitor + ")\n",
		},
		{
			name:       "upgrade warning and ignored check are healthy",
			trace:      "ceph_health_upgrade_warning.yaml",
			args:       []string{"--monitor", monitor, "--ignore-check", "MON_CLOCK_SKEW"},
			wantStdout: "Cluster is healthy (" + monitor + ")\n",
		},
		{
			name:     "gives up after timeout",
			trace:    "ceph_health_never_recovers.yaml",
			args:     []string{"--monitor", monitor, "--interval", "10s", "--timeout", "30s"},
			wantExit: 1,
			wantErr:  cookbook.ErrTimeout,
		},
		{
			name:     "recorded command failure is raised again",
			trace:    "ceph_health_mon_unreachable.yaml",
			args:     []string{"--monitor", monitor},
			wantExit: 1,
			wantErr:  remote.ErrCommandFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := replay(t, tt.trace, append([]string{"wmcs.ceph.health"}, tt.args...)...)
			if res.ExitCode != tt.wantExit {
				t.Fatalf("ExitCode = %d, want %d\nstderr:\n%s", res.ExitCode, tt.wantExit, res.Stderr)
			}
			if tt.wantStdout != "" && res.Stdout != tt.wantStdout {
				t.Errorf("Stdout = %q, want %q", res.Stdout, tt.wantStdout)
			}
			if tt.wantErr != nil && !errors.Is(res.Err, tt.wantErr) {
				t.Errorf("Err = %v, want %v", res.Err, tt.wantErr)
			}
		})
	}
}

func TestCephHealth_UnignoredCheckIsUnhealthy(t *testing.T) {
	t.Parallel()

	res := replay(t, "ceph_health_upgrade_warning.yaml",
		"wmcs.ceph.health", "--monitor", monitor, "--interval", "1s", "--timeout", "1s")
	if !errors.Is(res.Err, cookbook.ErrTimeout) {
		t.Fatalf("Err = %v, want ErrTimeout", res.Err)
	}
	if !strings.Contains(res.Err.Error(), "MON_CLOCK_SKEW") {
		t.Errorf("timeout error should name the failing check: %v", res.Err)
	}
}

func TestCephHealth_RequiresMonitor(t *testing.T) {
	t.Parallel()

	res := replay(t, "no_calls.yaml", "wmcs.ceph.health")
	if !errors.Is(res.Err, cookbooks.ErrMissingFlag) {
		t.Fatalf("Err = %v, want ErrMissingFlag", res.Err)
	}
}

func TestK8sWorkerDrain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		trace      string
		node       string
		wantExit   int
		wantStdout string
		wantErr    error
	}{
		{
			name:       "drains and waits for pods",
			trace:      "k8s_drain.yaml",
			node:       "tools-k8s-worker-nfs-7",
			wantStdout: "Node tools-k8s-worker-nfs-7 drained\n",
		},
		{
			name:     "unknown node",
			trace:    "k8s_drain_node_not_found.yaml",
			node:     "tools-k8s-worker-nfs-99",
			wantExit: 1,
			wantErr:  cookbooks.ErrNodeNotFound,
		},
		{
			name:     "drain command fails",
			trace:    "k8s_drain_fails.yaml",
			node:     "tools-k8s-worker-nfs-7",
			wantExit: 1,
			wantErr:  remote.ErrCommandFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := replay(t, tt.trace, "wmcs.toolforge.k8s.worker.drain",
				"--control-node", controlNode, "--hostname-to-drain", tt.node)
			if res.ExitCode != tt.wantExit {
				t.Fatalf("ExitCode = %d, want %d\nstderr:\n%s", res.ExitCode, tt.wantExit, res.Stderr)
			}
			if tt.wantStdout != "" && res.Stdout != tt.wantStdout {
				t.Errorf("Stdout = %q, want %q", res.Stdout, tt.wantStdout)
			}
			if tt.wantErr != nil && !errors.Is(res.Err, tt.wantErr) {
				t.Errorf("Err = %v, want %v", res.Err, tt.wantErr)
			}
		})
	}
}

func TestK8sWorkerDrain_RefusesToDrainControlNode(t *testing.T) {
	t.Parallel()

	res := replay(t, "no_calls.yaml", "wmcs.toolforge.k8s.worker.drain",
		"--control-node", controlNode, "--hostname-to-drain", "tools-k8s-control-7")
	if res.ExitCode == 0 {
		t.Fatal("draining the control node itself should fail")
	}
}
