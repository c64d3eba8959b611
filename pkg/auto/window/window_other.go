//go:build !windows

package window

import (
	"fmt"

	"github.com/go-vgo/robotgo"

	"github.com/zoeyai/riftbot/pkg/auto"
)

func findByTitlePlatform(title string) (*Info, error) {
	pids, err := robotgo.Pids()
	if err != nil {
		return nil, fmt.Errorf("获取进程列表失败: %w", err)
	}

	for _, pid := range pids {
		if t := robotgo.GetTitle(pid); t != "" && titleMatches(t, title) {
			return infoForPID(pid, t), nil
		}
	}
	return nil, nil
}

func foregroundPlatform() (*Info, error) {
	title := robotgo.GetTitle()
	if title == "" {
		return nil, fmt.Errorf("没有前台窗口")
	}
	w, err := findByTitlePlatform(title)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, fmt.Errorf("未找到前台窗口: %s", title)
	}
	return w, nil
}

func activatePlatform(w *Info) error {
	return robotgo.ActivePid(w.PID)
}

func infoForPID(pid int, title string) *Info {
	x, y, width, height := robotgo.GetBounds(pid)
	return &Info{
		PID:    pid,
		Title:  title,
		Bounds: auto.Region{X: x, Y: y, Width: width, Height: height},
	}
}
