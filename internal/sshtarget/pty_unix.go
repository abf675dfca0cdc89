// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package sshtarget

import (
	"os"
	"os/exec"

	"github.com/creack/pty"
)

func startPty(cmd *exec.Cmd) (*os.File, error) {
	return pty.Start(cmd)
}

func setWinsize(f *os.File, width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	_ = pty.Setsize(f, &pty.Winsize{Cols: uint16(width), Rows: uint16(height)}) // Resize is best-effort
}
