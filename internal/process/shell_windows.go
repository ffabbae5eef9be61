//go:build windows

package process

import "os/exec"

// getShellCommand runs script through cmd.exe, which also covers .bat start scripts.
func getShellCommand(script string) *exec.Cmd {
	// #nosec G204
	return exec.Command("cmd", "/c", script)
}

func getTrueCommand() *exec.Cmd {
	return exec.Command("cmd", "/c", "rem")
}
