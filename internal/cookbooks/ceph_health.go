// SPDX-License-Identifier: MPL-2.0

package cookbooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/cookbook"
	"github.com/wikimedia/cloud-wmcs-cookbooks/internal/remote"
)

const healthOK = "HEALTH_OK"

// Health checks raised during the octopus upgrade that do not make a cluster
// unhealthy.
var upgradeOnlyChecks = []string{
	"AUTH_INSECURE_GLOBAL_ID_RECLAIM",
	"AUTH_INSECURE_GLOBAL_ID_RECLAIM_ALLOWED",
}

// ErrMissingFlag is returned when a required cookbook flag is not set.
var ErrMissingFlag = errors.New("missing required flag")

// CephHealth waits for a Ceph cluster to report HEALTH_OK.
type CephHealth struct {
	monitor  string
	ignore   []string
	interval time.Duration
	timeout  time.Duration
}

// NewCephHealth returns the wmcs.ceph.health cookbook.
func NewCephHealth() cookbook.Cookbook { return &CephHealth{} }

// Name implements cookbook.Cookbook.
func (c *CephHealth) Name() string { return "wmcs.ceph.health" }

// Summary implements cookbook.Cookbook.
func (c *CephHealth) Summary() string { return "Wait for a Ceph cluster to become healthy" }

// BindFlags implements cookbook.Cookbook.
func (c *CephHealth) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.monitor, "monitor", "", "FQDN of the mon node used to query the cluster (required)")
	fs.StringSliceVar(&c.ignore, "ignore-check", nil, "health check to ignore, can be repeated")
	fs.DurationVar(&c.interval, "interval", 10*time.Second, "time between two health checks")
	fs.DurationVar(&c.timeout, "timeout", 30*time.Minute, "give up after this long")
}

// Run implements cookbook.Cookbook.
func (c *CephHealth) Run(ctx context.Context, rt *cookbook.Runtime) error {
	if c.monitor == "" {
		return fmt.Errorf("%w: --monitor", ErrMissingFlag)
	}

	rt.Logger.Info("checking cluster health", "monitor", c.monitor)
	err := rt.Poll(ctx, "the cluster to become healthy", c.interval, c.timeout, func(ctx context.Context) (bool, string, error) {
		status, err := remote.RunAsMap(ctx, rt.Exec, remote.Request{
			Command: []string{"sudo", "ceph", "status", "-f", "json"},
			Targets: []string{c.monitor},
		}, remote.FormatJSON)
		if err != nil {
			return false, "", err
		}
		health, _ := status["health"].(map[string]any)
		if health == nil {
			return false, "", fmt.Errorf("%w: ceph status has no health section", remote.ErrUnexpectedShape)
		}
		ok, remaining := evaluateHealth(health, c.ignore)
		if ok {
			return true, "", nil
		}
		return false, describeHealth(health, remaining), nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(rt.Stdout, "Cluster is healthy (%s)\n", c.monitor)
	return nil
}

// evaluateHealth reports whether the health section is OK once upgrade-only
// and ignored checks are dropped, and returns the checks still failing.
func evaluateHealth(health map[string]any, ignore []string) (bool, []string) {
	if health["status"] == healthOK {
		return true, nil
	}

	checks, _ := health["checks"].(map[string]any)
	if len(checks) == 0 {
		// Unhealthy without any check means something is very wrong.
		return false, nil
	}

	var remaining []string
	for name := range checks {
		if slices.Contains(upgradeOnlyChecks, name) || slices.Contains(ignore, name) {
			continue
		}
		remaining = append(remaining, name)
	}
	slices.Sort(remaining)
	return len(remaining) == 0, remaining
}

func describeHealth(health map[string]any, remaining []string) string {
	status, _ := health["status"].(string)
	if len(remaining) == 0 {
		encoded, err := json.MarshalIndent(health, "", "    ")
		if err != nil {
			return status
		}
		return string(encoded)
	}
	return fmt.Sprintf("%s: %s", status, strings.Join(remaining, ", "))
}
