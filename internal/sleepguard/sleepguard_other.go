//go:build !windows && !darwin && !linux

package sleepguard

// acquirePlatform is a no-op on platforms without a known inhibition
// mechanism; the run proceeds without sleep protection.
func acquirePlatform() Guard {
	return noopGuard{}
}
