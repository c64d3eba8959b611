// Package permissions 检查截屏与模拟输入所需的系统权限 (macOS)
package permissions

import "strings"

// Status 权限状态
type Status struct {
	// Accessibility 辅助功能，用于模拟鼠标键盘
	Accessibility bool `json:"accessibility"`
	// ScreenRecording 屏幕录制，用于截屏识别
	ScreenRecording bool `json:"screen_recording"`
}

// AllGranted 是否全部授权
func (s Status) AllGranted() bool {
	return s.Accessibility && s.ScreenRecording
}

// Missing 缺失的权限名称
func (s Status) Missing() []string {
	var missing []string
	if !s.Accessibility {
		missing = append(missing, "辅助功能")
	}
	if !s.ScreenRecording {
		missing = append(missing, "屏幕录制")
	}
	return missing
}

// Instructions 授权说明，全部授权时为空
func (s Status) Instructions() string {
	if s.AllGranted() {
		return ""
	}

	var b strings.Builder
	b.WriteString("需要授权以下权限才能控制游戏:\n")
	if !s.Accessibility {
		b.WriteString("  - 辅助功能 (模拟鼠标/键盘): 系统设置 > 隐私与安全性 > 辅助功能\n")
	}
	if !s.ScreenRecording {
		b.WriteString("  - 屏幕录制 (截屏识别): 系统设置 > 隐私与安全性 > 屏幕录制\n")
	}
	b.WriteString("授权后需要重启 riftbot。")
	return b.String()
}
