// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"
)

// TestMain registers the CLI as an in-process testscript command, so scripts
// under testdata/script can exec wmcs-cookbook without building a binary.
func TestMain(m *testing.M) {
	testscript.Main(m, map[string]func(){
		"wmcs-cookbook": func() { os.Exit(Main()) },
	})
}

// TestScripts runs all testscript tests in testdata/script.
func TestScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata/script",
		Setup: func(env *testscript.Env) error {
			// Config lookups stay inside the script's work directory.
			env.Setenv("XDG_CONFIG_HOME", filepath.Join(env.WorkDir, ".config"))
			env.Setenv("HOME", env.WorkDir)
			return nil
		},
		ContinueOnError: true,
	})
}
