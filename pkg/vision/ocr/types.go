// Package ocr 提供基于 OCR 的文字定位功能
package ocr

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"runtime"
)

// ErrEngineUnavailable OCR 引擎不可用（未安装或配置错误），属于致命配置错误
var ErrEngineUnavailable = errors.New("OCR 引擎不可用")

// TextBox 识别出的文字块
type TextBox struct {
	// Text 文字内容
	Text string `json:"text"`
	// Box 边界框（截图坐标）
	Box image.Rectangle `json:"box"`
	// Line 所在行序号，从 0 开始
	Line int `json:"line"`
	// Confidence 置信度 (0-100)
	Confidence float64 `json:"confidence"`
}

// Center 边界框中心点
func (b TextBox) Center() image.Point {
	return image.Pt((b.Box.Min.X+b.Box.Max.X)/2, (b.Box.Min.Y+b.Box.Max.Y)/2)
}

// Engine OCR 引擎，输入已预处理的图像
type Engine interface {
	Extract(img image.Image) ([]TextBox, error)
	Close() error
}

// 引擎类型
const (
	EngineTesseract = "tesseract"
	EnginePaddle    = "paddle"
)

// Config OCR 配置
type Config struct {
	// Engine 引擎类型: tesseract / paddle
	Engine string
	// Language tesseract 语言包
	Language string
	// OnnxRuntimeLibPath ONNX Runtime 动态库路径 (paddle)
	OnnxRuntimeLibPath string
	// DetModelPath 检测模型路径 (paddle)
	DetModelPath string
	// RecModelPath 识别模型路径 (paddle)
	RecModelPath string
	// DictPath 字典文件路径 (paddle)
	DictPath string
}

// DefaultConfig 默认配置：tesseract 稀疏文本模式
func DefaultConfig() Config {
	return Config{
		Engine:   EngineTesseract,
		Language: "eng",
	}
}

// PaddleConfig 使用 modelDir 下的 PaddleOCR 模型构造配置
//
// modelDir 为空时在可执行文件目录和当前目录下查找 models/paddle_weights
func PaddleConfig(modelDir string) Config {
	if modelDir == "" {
		modelDir = findModelDir()
	}
	return Config{
		Engine:             EnginePaddle,
		OnnxRuntimeLibPath: onnxRuntimeLibPath(modelDir),
		DetModelPath:       filepath.Join(modelDir, "det.onnx"),
		RecModelPath:       filepath.Join(modelDir, "rec.onnx"),
		DictPath:           filepath.Join(modelDir, "dict.txt"),
	}
}

func findModelDir() string {
	candidates := []string{filepath.Join("models", "paddle_weights")}
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		candidates = append([]string{filepath.Join(filepath.Dir(exe), "models", "paddle_weights")}, candidates...)
	}
	for _, dir := range candidates {
		if fileExists(dir) {
			return dir
		}
	}
	return candidates[len(candidates)-1]
}

func onnxRuntimeLibPath(modelDir string) string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(modelDir, "lib", "onnxruntime.dll")
	case "darwin":
		return filepath.Join(modelDir, "lib", "libonnxruntime.dylib")
	default:
		return filepath.Join(modelDir, "lib", "libonnxruntime.so")
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
