package ocr

import (
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/zoeyai/riftbot/internal/logger"
	"github.com/zoeyai/riftbot/pkg/auto/screen"
)

// Locator 截图 -> 预处理 -> OCR -> 按查询定位文字
type Locator struct {
	engine Engine
	// Preprocess 识别前的图像预处理，默认灰度 + 二值化
	Preprocess func(image.Image) (image.Image, error)
}

// NewLocator 使用指定引擎创建定位器
func NewLocator(engine Engine) *Locator {
	return &Locator{engine: engine, Preprocess: Threshold}
}

// NewEngine 按配置创建引擎
func NewEngine(config Config) (Engine, error) {
	switch config.Engine {
	case "", EngineTesseract:
		return NewTesseractEngine(config.Language)
	case EnginePaddle:
		return NewPaddleEngine(config)
	default:
		return nil, fmt.Errorf("%w: 未知引擎 %q", ErrEngineUnavailable, config.Engine)
	}
}

// Extract 识别 Frame 中的文字，按行分组返回
func (l *Locator) Extract(f *screen.Frame) ([][]TextBox, error) {
	if l == nil || l.engine == nil {
		return nil, ErrEngineUnavailable
	}

	start := time.Now()
	var img image.Image = f.Image()
	if l.Preprocess != nil {
		processed, err := l.Preprocess(img)
		if err != nil {
			return nil, fmt.Errorf("图像预处理失败: %w", err)
		}
		img = processed
	}

	boxes, err := l.engine.Extract(img)
	elapsed := float64(time.Since(start).Milliseconds())
	if err != nil {
		logger.LogEvent("OCR", false, elapsed, "识别失败")
		return nil, err
	}

	lines := Lines(boxes)
	logger.Debug("OCR 识别到 %d 个文字块, %d 行 (%.0fms)", len(boxes), len(lines), elapsed)
	return lines, nil
}

// Find 在 Frame 中查找与 query 完全一致（不区分大小写）的文字块
//
// 未找到返回 (nil, nil)；引擎错误返回 error
func (l *Locator) Find(f *screen.Frame, query string) (*TextBox, error) {
	lines, err := l.Extract(f)
	if err != nil {
		return nil, err
	}

	box := FindInLines(lines, query)
	if box == nil {
		logger.Debug("未找到文字: %s", query)
		return nil, nil
	}
	logger.Debug("找到文字 %s 位于 %v", query, box.Box)
	return box, nil
}

// Lines 按行号分组，行内保持原顺序
func Lines(boxes []TextBox) [][]TextBox {
	if len(boxes) == 0 {
		return nil
	}

	order := make([]int, 0)
	grouped := make(map[int][]TextBox)
	for _, b := range boxes {
		if _, ok := grouped[b.Line]; !ok {
			order = append(order, b.Line)
		}
		grouped[b.Line] = append(grouped[b.Line], b)
	}

	lines := make([][]TextBox, 0, len(order))
	for _, n := range order {
		lines = append(lines, grouped[n])
	}
	return lines
}

// FindInLines 逐行查找第一个完全匹配（不区分大小写）的文字块
func FindInLines(lines [][]TextBox, query string) *TextBox {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	for _, line := range lines {
		for _, b := range line {
			if strings.EqualFold(strings.TrimSpace(b.Text), query) {
				found := b
				return &found
			}
		}
	}
	return nil
}

// Close 释放引擎
func (l *Locator) Close() error {
	if l == nil || l.engine == nil {
		return nil
	}
	return l.engine.Close()
}

// 全局单例
var (
	globalLocator *Locator
	globalOnce    sync.Once
	globalErr     error
)

// InitGlobalLocator 使用指定配置初始化全局定位器
func InitGlobalLocator(config Config) (*Locator, error) {
	globalOnce.Do(func() {
		engine, err := NewEngine(config)
		if err != nil {
			globalErr = err
			return
		}
		globalLocator = NewLocator(engine)
		logger.Info("OCR 引擎初始化成功: %s", config.Engine)
	})
	return globalLocator, globalErr
}
