package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine 基于 tesseract 的稀疏文本识别 (PSM 11)
type TesseractEngine struct {
	client *gosseract.Client
	mu     sync.Mutex
}

// NewTesseractEngine 创建 tesseract 引擎
func NewTesseractEngine(language string) (*TesseractEngine, error) {
	client := gosseract.NewClient()
	if language == "" {
		language = "eng"
	}
	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: 设置语言失败: %v", ErrEngineUnavailable, err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: 设置分割模式失败: %v", ErrEngineUnavailable, err)
	}
	return &TesseractEngine{client: client}, nil
}

// Extract 识别图像中的单词及其所在行
func (e *TesseractEngine) Extract(img image.Image) ([]TextBox, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("PNG 编码失败: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client == nil {
		return nil, ErrEngineUnavailable
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("%w: 加载图像失败: %v", ErrEngineUnavailable, err)
	}
	words, err := e.client.GetBoundingBoxesVerbose()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	// tesseract 的行号在块/段落内重新计数，这里折算为全局行序号
	type lineKey struct{ block, par, line int }
	lineIndex := make(map[lineKey]int)

	boxes := make([]TextBox, 0, len(words))
	for _, w := range words {
		if w.Word == "" {
			continue
		}
		key := lineKey{w.BlockNum, w.ParNum, w.LineNum}
		idx, ok := lineIndex[key]
		if !ok {
			idx = len(lineIndex)
			lineIndex[key] = idx
		}
		boxes = append(boxes, TextBox{
			Text:       w.Word,
			Box:        w.Box,
			Line:       idx,
			Confidence: w.Confidence,
		})
	}
	return boxes, nil
}

// Close 释放资源
func (e *TesseractEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}
