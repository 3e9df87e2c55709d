// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package procgroup

import (
	"os/exec"
	"syscall"
	"time"

	"github.com/ManuGH/speedup/internal/metrics"
)

// Terminate stops a process group: SIGTERM, then SIGKILL if the process has
// not exited within grace. It drains waitCh and returns the Wait error.
// Safe on nil commands.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	recordSignal("SIGTERM", Kill(cmd, syscall.SIGTERM))

	select {
	case err := <-waitCh:
		return err
	case <-time.After(grace):
		recordSignal("SIGKILL", Kill(cmd, syscall.SIGKILL))
		return <-waitCh
	}
}

func recordSignal(sig string, err error) {
	if err != nil {
		metrics.IncProcTerminate(sig, "error")
		return
	}
	metrics.IncProcTerminate(sig, "sent")
}
