//go:build !darwin

package permissions

// Check Windows/Linux 无需额外授权
func Check() Status {
	return Status{Accessibility: true, ScreenRecording: true}
}

// OpenSettings 无操作
func OpenSettings(Status) {}
