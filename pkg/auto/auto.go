// Package auto 提供自动化子包共享的基础类型。
// 具体功能分布在子包中：screen, input, window。
package auto

import (
	"context"
	"fmt"
	"image"
	"time"
)

// Point 表示二维坐标点
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add 坐标平移
func (p Point) Add(dx, dy int) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

func (p Point) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

// Region 表示矩形区域
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center 区域中心点
func (r Region) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Percent 区域内按百分比 (0-100) 计算的绝对坐标
func (r Region) Percent(px, py float64) Point {
	return Point{
		X: r.X + int(float64(r.Width)*px/100),
		Y: r.Y + int(float64(r.Height)*py/100),
	}
}

// Empty 区域是否为空
func (r Region) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// RegionFromRect 由 image.Rectangle 构造区域
func RegionFromRect(rect image.Rectangle) Region {
	return Region{X: rect.Min.X, Y: rect.Min.Y, Width: rect.Dx(), Height: rect.Dy()}
}

// LocatedPoint 识别得到的屏幕坐标
//
// Offset 为可选的窗口百分比偏移，点击时换算为像素
type LocatedPoint struct {
	Point
	Offset *PercentOffset `json:"offset,omitempty"`
	Label  string         `json:"label,omitempty"`
}

// PercentOffset 窗口百分比偏移
type PercentOffset struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DefaultPollInterval 默认轮询间隔
const DefaultPollInterval = 200 * time.Millisecond

// Sleep 可取消的休眠，ctx 结束时返回 false
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
