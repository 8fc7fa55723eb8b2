//go:build linux

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

// acquirePlatform spawns systemd-inhibit, matching sleep_guard.rs's Linux
// arm exactly (same flags: block sleep/idle/lid-switch for this run).
func acquirePlatform() Guard {
	cmd := exec.Command("systemd-inhibit",
		"--what=handle-lid-switch:sleep:idle",
		"--who=atomic-bomb-engine",
		"--why=Prevent sleep for load test",
		"--mode=block",
	)
	_ = cmd.Start()
	return &processGuard{cmd: cmd}
}
