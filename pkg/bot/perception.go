package bot

import (
	"fmt"
	"image"
	"path/filepath"
	"time"

	"github.com/zoeyai/riftbot/internal/logger"
	"github.com/zoeyai/riftbot/pkg/auto"
	"github.com/zoeyai/riftbot/pkg/auto/screen"
	"github.com/zoeyai/riftbot/pkg/vision/color"
	"github.com/zoeyai/riftbot/pkg/vision/ocr"
)

// Perception 画面识别，未找到返回 (nil, nil)
type Perception interface {
	LocateEnemy() (*auto.LocatedPoint, error)
	LocateText(query string) (*auto.LocatedPoint, error)
}

// ScreenPerception 截取主屏幕后识别
type ScreenPerception struct {
	Locator *ocr.Locator
	// DebugDir 非空时保存带标注的截图
	DebugDir string
	// Capture 截图函数，默认 screen.Capture
	Capture func() (*screen.Frame, error)
}

// NewScreenPerception 创建屏幕识别
func NewScreenPerception(locator *ocr.Locator, debugDir string) *ScreenPerception {
	return &ScreenPerception{Locator: locator, DebugDir: debugDir, Capture: screen.Capture}
}

// LocateEnemy 查找敌方英雄血条
func (p *ScreenPerception) LocateEnemy() (*auto.LocatedPoint, error) {
	f, err := p.Capture()
	if err != nil {
		return nil, err
	}
	found := color.FindEnemy(f)
	if found != nil {
		p.dump(f, "enemy", image.Rect(found.X-20, found.Y-20, found.X+20, found.Y+20), found.Label)
	}
	return found, nil
}

// LocateText 查找文字，返回文字框左上角
func (p *ScreenPerception) LocateText(query string) (*auto.LocatedPoint, error) {
	if p.Locator == nil {
		return nil, fmt.Errorf("%w: 未初始化文字识别", ocr.ErrEngineUnavailable)
	}
	f, err := p.Capture()
	if err != nil {
		return nil, err
	}

	box, err := p.Locator.Find(f, query)
	if err != nil || box == nil {
		return nil, err
	}
	p.dump(f, "text", box.Box, box.Text)
	return &auto.LocatedPoint{
		Point: auto.Point{X: box.Box.Min.X, Y: box.Box.Min.Y},
		Label: box.Text,
	}, nil
}

func (p *ScreenPerception) dump(f *screen.Frame, kind string, rect image.Rectangle, label string) {
	if p.DebugDir == "" {
		return
	}
	path := filepath.Join(p.DebugDir, fmt.Sprintf("%s_%s.png", time.Now().Format("150405.000"), kind))
	if err := screen.SaveDebug(f, path, screen.Mark{Rect: rect, Label: label}); err != nil {
		logger.Warn("保存调试截图失败: %v", err)
	}
}
