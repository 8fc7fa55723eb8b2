//go:build windows

package sleepguard

import "golang.org/x/sys/windows"

const (
	esContinuous     = 0x80000000
	esSystemRequired = 0x00000001
)

type winGuard struct{}

func (winGuard) Close() error {
	_, _, _ = windows.NewLazySystemDLL("kernel32.dll").NewProc("SetThreadExecutionState").Call(uintptr(esContinuous))
	return nil
}

// acquirePlatform calls SetThreadExecutionState, matching
// sleep_guard.rs's Windows arm via golang.org/x/sys/windows rather than
// the Rust source's winapi crate.
func acquirePlatform() Guard {
	windows.NewLazySystemDLL("kernel32.dll").NewProc("SetThreadExecutionState").Call(uintptr(esContinuous | esSystemRequired))
	return winGuard{}
}
