package ocr

import (
	"fmt"
	"image"
	"sort"
	"sync"

	goocr "github.com/getcharzp/go-ocr"
)

// PaddleEngine 基于 PaddleOCR (onnx) 的识别引擎
type PaddleEngine struct {
	engine goocr.Engine
	mu     sync.Mutex
}

// NewPaddleEngine 创建 PaddleOCR 引擎
func NewPaddleEngine(config Config) (*PaddleEngine, error) {
	for _, p := range []string{config.OnnxRuntimeLibPath, config.DetModelPath, config.RecModelPath, config.DictPath} {
		if !fileExists(p) {
			return nil, fmt.Errorf("%w: 缺少模型文件 %s", ErrEngineUnavailable, p)
		}
	}

	engine, err := goocr.NewPaddleOcrEngine(goocr.Config{
		OnnxRuntimeLibPath: config.OnnxRuntimeLibPath,
		DetModelPath:       config.DetModelPath,
		RecModelPath:       config.RecModelPath,
		DictPath:           config.DictPath,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: 创建 OCR 引擎失败: %v", ErrEngineUnavailable, err)
	}
	return &PaddleEngine{engine: engine}, nil
}

// Extract 识别图像中的文字块，并按纵向重叠分行
func (e *PaddleEngine) Extract(img image.Image) ([]TextBox, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.engine == nil {
		return nil, ErrEngineUnavailable
	}
	results, err := e.engine.RunOCR(img)
	if err != nil {
		return nil, fmt.Errorf("OCR 识别失败: %w", err)
	}

	boxes := make([]TextBox, 0, len(results))
	for _, r := range results {
		// go-ocr RecResult: Box [4]int{x1, y1, x2, y2}
		boxes = append(boxes, TextBox{
			Text:       r.Text,
			Box:        image.Rect(r.Box[0], r.Box[1], r.Box[2], r.Box[3]),
			Confidence: float64(r.Score) * 100,
		})
	}
	return assignLines(boxes), nil
}

// Close 释放资源
func (e *PaddleEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.engine != nil {
		e.engine.Destroy()
		e.engine = nil
	}
	return nil
}

// assignLines 按中心纵坐标排序，中心落在上一行高度范围内的归为同一行
func assignLines(boxes []TextBox) []TextBox {
	sort.SliceStable(boxes, func(i, j int) bool {
		ci, cj := boxes[i].Center(), boxes[j].Center()
		if ci.Y != cj.Y {
			return ci.Y < cj.Y
		}
		return ci.X < cj.X
	})

	line := -1
	var current image.Rectangle
	for i := range boxes {
		c := boxes[i].Center()
		if line < 0 || c.Y < current.Min.Y || c.Y >= current.Max.Y {
			line++
			current = boxes[i].Box
		}
		boxes[i].Line = line
	}

	sort.SliceStable(boxes, func(i, j int) bool {
		if boxes[i].Line != boxes[j].Line {
			return boxes[i].Line < boxes[j].Line
		}
		return boxes[i].Box.Min.X < boxes[j].Box.Min.X
	})
	return boxes
}
