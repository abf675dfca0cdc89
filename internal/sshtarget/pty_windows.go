// SPDX-License-Identifier: EPL-2.0

//go:build windows

package sshtarget

import (
	"errors"
	"os"
	"os/exec"
)

var errNoPty = errors.New("interactive shells are not supported on Windows")

func startPty(*exec.Cmd) (*os.File, error) {
	return nil, errNoPty
}

func setWinsize(*os.File, int, int) {}
