// Package screen 提供屏幕截图功能
package screen

import (
	"fmt"
	"image"

	"github.com/go-vgo/robotgo"
	"github.com/kbinani/screenshot"
)

// Capture 截取主显示器的完整画面
func Capture() (*Frame, error) {
	img, err := captureImage()
	if err != nil {
		return nil, err
	}
	return NewFrame(img), nil
}

// captureImage 优先使用 screenshot 截取主显示器，失败时回退 robotgo 全屏截图
func captureImage() (image.Image, error) {
	if screenshot.NumActiveDisplays() > 0 {
		img, err := screenshot.CaptureDisplay(0)
		if err == nil {
			return img, nil
		}
	}

	img, err := robotgo.CaptureImg()
	if err != nil {
		return nil, fmt.Errorf("截屏失败: %w", err)
	}
	return img, nil
}

// PrimaryBounds 主显示器区域
func PrimaryBounds() image.Rectangle {
	if screenshot.NumActiveDisplays() > 0 {
		return screenshot.GetDisplayBounds(0)
	}
	w, h := robotgo.GetScreenSize()
	return image.Rect(0, 0, w, h)
}
