//go:build windows

package window

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/zoeyai/riftbot/pkg/auto"
)

var (
	user32                       = syscall.NewLazyDLL("user32.dll")
	kernel32                     = syscall.NewLazyDLL("kernel32.dll")
	procEnumWindows              = user32.NewProc("EnumWindows")
	procGetWindowTextW           = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW     = user32.NewProc("GetWindowTextLengthW")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procGetWindowRect            = user32.NewProc("GetWindowRect")
	procIsWindowVisible          = user32.NewProc("IsWindowVisible")
	procSetForegroundWindow      = user32.NewProc("SetForegroundWindow")
	procShowWindow               = user32.NewProc("ShowWindow")
	procBringWindowToTop         = user32.NewProc("BringWindowToTop")
	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procAttachThreadInput        = user32.NewProc("AttachThreadInput")
	procSetProcessDPIAware       = user32.NewProc("SetProcessDPIAware")
	procGetCurrentThreadId       = kernel32.NewProc("GetCurrentThreadId")
)

const swRestore = 9

// RECT Windows 矩形结构
type RECT struct {
	Left, Top, Right, Bottom int32
}

func init() {
	// 截图与 SetCursorPos 统一使用物理像素
	if procSetProcessDPIAware.Find() == nil {
		procSetProcessDPIAware.Call()
	}
}

func windowText(hwnd uintptr) string {
	length, _, _ := procGetWindowTextLengthW.Call(hwnd)
	if length == 0 {
		return ""
	}
	buf := make([]uint16, length+1)
	procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), length+1)
	return syscall.UTF16ToString(buf)
}

func infoForHandle(hwnd uintptr) *Info {
	var pid uint32
	procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))

	var rect RECT
	procGetWindowRect.Call(hwnd, uintptr(unsafe.Pointer(&rect)))

	return &Info{
		Handle: hwnd,
		PID:    int(pid),
		Title:  windowText(hwnd),
		Bounds: auto.Region{
			X:      int(rect.Left),
			Y:      int(rect.Top),
			Width:  int(rect.Right - rect.Left),
			Height: int(rect.Bottom - rect.Top),
		},
	}
}

func findByTitlePlatform(title string) (*Info, error) {
	var target uintptr

	callback := syscall.NewCallback(func(hwnd syscall.Handle, _ uintptr) uintptr {
		if ret, _, _ := procIsWindowVisible.Call(uintptr(hwnd)); ret == 0 {
			return 1
		}
		if titleMatches(windowText(uintptr(hwnd)), title) {
			target = uintptr(hwnd)
			return 0
		}
		return 1
	})
	procEnumWindows.Call(callback, 0)

	if target == 0 {
		return nil, nil
	}
	return infoForHandle(target), nil
}

func foregroundPlatform() (*Info, error) {
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return nil, fmt.Errorf("没有前台窗口")
	}
	return infoForHandle(hwnd), nil
}

// activatePlatform ShowWindow(SW_RESTORE) + SetForegroundWindow
func activatePlatform(w *Info) error {
	hwnd := w.Handle
	if hwnd == 0 {
		found, err := findByTitlePlatform(w.Title)
		if err != nil || found == nil {
			return fmt.Errorf("未找到窗口: %s", w.Title)
		}
		hwnd = found.Handle
	}

	foregroundHwnd, _, _ := procGetForegroundWindow.Call()
	if foregroundHwnd == hwnd {
		return nil
	}

	var foregroundThreadId uintptr
	if foregroundHwnd != 0 {
		foregroundThreadId, _, _ = procGetWindowThreadProcessId.Call(foregroundHwnd, 0)
	}
	currentThreadId, _, _ := procGetCurrentThreadId.Call()

	// 绕过前台锁：临时挂接到当前前台线程的输入队列
	if foregroundThreadId != 0 && foregroundThreadId != currentThreadId {
		procAttachThreadInput.Call(currentThreadId, foregroundThreadId, 1)
		defer procAttachThreadInput.Call(currentThreadId, foregroundThreadId, 0)
	}

	procShowWindow.Call(hwnd, swRestore)
	procBringWindowToTop.Call(hwnd)

	ret, _, _ := procSetForegroundWindow.Call(hwnd)
	if ret == 0 {
		return fmt.Errorf("SetForegroundWindow 失败")
	}
	return nil
}
