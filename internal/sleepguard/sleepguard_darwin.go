//go:build darwin

package sleepguard

import "os/exec"

type processGuard struct {
	cmd *exec.Cmd
}

func (g *processGuard) Close() error {
	if g.cmd == nil || g.cmd.Process == nil {
		return nil
	}
	_ = g.cmd.Process.Kill()
	_ = g.cmd.Wait()
	return nil
}

// acquirePlatform spawns caffeinate, matching sleep_guard.rs's macOS arm.
func acquirePlatform() Guard {
	cmd := exec.Command("caffeinate")
	_ = cmd.Start()
	return &processGuard{cmd: cmd}
}
