// Package input 提供针对前台窗口的鼠标点击和按键操作
package input

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-vgo/robotgo"

	"github.com/zoeyai/riftbot/internal/logger"
	"github.com/zoeyai/riftbot/pkg/auto"
	"github.com/zoeyai/riftbot/pkg/auto/screen"
	"github.com/zoeyai/riftbot/pkg/auto/window"
)

// Button 鼠标按键
type Button string

const (
	Left  Button = "left"
	Right Button = "right"
)

// 固定时序
const (
	// SettleDelay 激活窗口后、移动鼠标前的等待
	SettleDelay = 200 * time.Millisecond
	// ClickDelay 按下与抬起之间的间隔
	ClickDelay = 50 * time.Millisecond
	// PressDelay 长按类按键的默认持续时间
	PressDelay = 100 * time.Millisecond
)

// Backend 底层输入实现
type Backend interface {
	Move(x, y int)
	MouseToggle(button Button, down bool)
	KeyTap(key string, modifiers ...string)
	KeyToggle(key string, down bool)
}

// WindowResolver 获取并激活前台窗口
type WindowResolver interface {
	Foreground() (*window.Info, error)
	Activate(w *window.Info) error
}

// Driver 输入驱动，所有动作串行执行
type Driver struct {
	backend Backend
	windows WindowResolver
	sleep   func(time.Duration)
}

// NewDriver 创建基于 robotgo 的输入驱动
func NewDriver() *Driver {
	return NewDriverWith(robotgoBackend{}, systemWindows{}, time.Sleep)
}

// NewDriverWith 使用自定义实现创建输入驱动
func NewDriverWith(backend Backend, windows WindowResolver, sleep func(time.Duration)) *Driver {
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Driver{backend: backend, windows: windows, sleep: sleep}
}

// ParseButton 解析按键名
func ParseButton(s string) (Button, bool) {
	switch Button(strings.ToLower(strings.TrimSpace(s))) {
	case Left:
		return Left, true
	case Right:
		return Right, true
	default:
		return "", false
	}
}

// ClickAt 在屏幕绝对坐标点击
func (d *Driver) ClickAt(x, y int, button Button) error {
	return d.click(button, func(auto.Region) auto.Point { return auto.Point{X: x, Y: y} })
}

// ClickPercent 在前台窗口的百分比位置 (0-100) 点击
func (d *Driver) ClickPercent(px, py float64, button Button) error {
	return d.click(button, func(r auto.Region) auto.Point { return r.Percent(px, py) })
}

// ClickPercentOffset 在 (x, y) 基础上偏移前台窗口尺寸的百分比后点击
func (d *Driver) ClickPercentOffset(x, y int, px, py float64, button Button) error {
	return d.click(button, func(r auto.Region) auto.Point { return PercentOffset(r, x, y, px, py) })
}

// PercentOffset 计算 (x, y) 偏移窗口尺寸百分比后的坐标
func PercentOffset(r auto.Region, x, y int, px, py float64) auto.Point {
	return auto.Point{
		X: x + int(float64(r.Width)*px/100),
		Y: y + int(float64(r.Height)*py/100),
	}
}

func (d *Driver) click(button Button, target func(auto.Region) auto.Point) error {
	if _, ok := ParseButton(string(button)); !ok {
		logger.Warn("未知的鼠标按键: %q，忽略点击", button)
		return nil
	}

	w, err := d.windows.Foreground()
	if err != nil {
		return err
	}
	p := target(w.Bounds)

	if err := d.windows.Activate(w); err != nil {
		logger.Warn("%v", err)
	}
	d.sleep(SettleDelay)

	d.backend.Move(p.X, p.Y)
	d.backend.MouseToggle(button, true)
	d.sleep(ClickDelay)
	d.backend.MouseToggle(button, false)

	logger.Debug("点击 %s %s", button, p)
	return nil
}

// Tap 单击按键
func (d *Driver) Tap(key string) {
	if key == "" {
		return
	}
	d.backend.KeyTap(key)
}

// Press 按下按键并保持 hold 后释放
func (d *Driver) Press(key string, hold time.Duration) {
	if key == "" {
		return
	}
	d.backend.KeyToggle(key, true)
	d.sleep(hold)
	d.backend.KeyToggle(key, false)
}

// Combo 按住 modifier 的同时按下 key
func (d *Driver) Combo(modifier, key string) {
	if key == "" {
		return
	}
	if modifier == "" {
		d.backend.KeyTap(key)
		return
	}
	d.backend.KeyTap(key, modifier)
}

// ScreenCenter 主显示器中心
func (d *Driver) ScreenCenter() auto.Point {
	return auto.RegionFromRect(screen.PrimaryBounds()).Center()
}

// robotgoBackend robotgo 实现
type robotgoBackend struct{}

func (robotgoBackend) Move(x, y int) {
	robotgo.Move(x, y)
}

func (robotgoBackend) MouseToggle(button Button, down bool) {
	if down {
		robotgo.Toggle(string(button))
	} else {
		robotgo.Toggle(string(button), "up")
	}
}

func (robotgoBackend) KeyTap(key string, modifiers ...string) {
	if len(modifiers) > 0 {
		robotgo.KeyTap(key, modifiers)
	} else {
		robotgo.KeyTap(key)
	}
}

func (robotgoBackend) KeyToggle(key string, down bool) {
	if down {
		robotgo.KeyToggle(key, "down")
	} else {
		robotgo.KeyToggle(key, "up")
	}
}

// systemWindows 使用 window 包
type systemWindows struct{}

func (systemWindows) Foreground() (*window.Info, error) {
	return window.Foreground()
}

func (systemWindows) Activate(w *window.Info) error {
	if err := window.Activate(w); err != nil {
		return fmt.Errorf("重新聚焦窗口失败: %w", err)
	}
	return nil
}
