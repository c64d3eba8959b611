// Package window 提供窗口查找、激活与等待功能
package window

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zoeyai/riftbot/internal/logger"
	"github.com/zoeyai/riftbot/pkg/auto"
)

// 游戏相关窗口标题
const (
	GameWindowTitle   = "League of Legends (TM) Client"
	ClientWindowTitle = "League of Legends"
)

// ErrWindowTimeout 等待窗口超时，属于致命启动错误
var ErrWindowTimeout = errors.New("等待窗口超时")

// Info 窗口信息
type Info struct {
	Handle uintptr     `json:"-"`
	PID    int         `json:"pid"`
	Title  string      `json:"title"`
	Bounds auto.Region `json:"bounds"`
}

// FindByTitle 按标题查找窗口（不区分大小写的完全匹配）
func FindByTitle(title string) (*Info, error) {
	w, err := findByTitlePlatform(title)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, fmt.Errorf("未找到窗口: %s", title)
	}
	return w, nil
}

// Foreground 获取前台窗口
func Foreground() (*Info, error) {
	w, err := foregroundPlatform()
	if err != nil {
		return nil, fmt.Errorf("获取前台窗口失败: %w", err)
	}
	if w.Bounds.Empty() {
		return nil, fmt.Errorf("前台窗口区域无效: %q", w.Title)
	}
	return w, nil
}

// Activate 还原并激活窗口
func Activate(w *Info) error {
	if w == nil {
		return fmt.Errorf("窗口为空")
	}
	if err := activatePlatform(w); err != nil {
		return fmt.Errorf("激活窗口失败: %w", err)
	}
	return nil
}

// WaitForWindow 等待窗口出现，超时返回 ErrWindowTimeout
func WaitForWindow(ctx context.Context, title string, opts ...auto.Option) (*Info, error) {
	o := auto.ApplyOptions(opts...)

	logger.Info("等待窗口: %s", title)
	start := time.Now()
	for {
		if w, err := FindByTitle(title); err == nil {
			logger.Info("窗口已出现: %s (%.1fs)", title, time.Since(start).Seconds())
			return w, nil
		}

		if time.Since(start) >= o.Timeout {
			return nil, fmt.Errorf("%w: %s (%s)", ErrWindowTimeout, title, o.Timeout)
		}
		if !auto.Sleep(ctx, o.PollInterval) {
			return nil, ctx.Err()
		}
	}
}

func titleMatches(candidate, title string) bool {
	return strings.EqualFold(strings.TrimSpace(candidate), strings.TrimSpace(title))
}
