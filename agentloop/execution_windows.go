//go:build windows

package agentloop

import "os/exec"

// configureProcessGroup leaves the default behavior in place: only the
// direct child is killed on cancellation.
func configureProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) {}
