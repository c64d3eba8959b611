package screen

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

// Mark 调试图上的标注
type Mark struct {
	Rect  image.Rectangle
	Label string
	Color color.RGBA
}

var (
	debugFont     *truetype.Font
	debugFontOnce sync.Once
	debugFontErr  error
)

func loadDebugFont() (*truetype.Font, error) {
	debugFontOnce.Do(func() {
		debugFont, debugFontErr = freetype.ParseFont(goregular.TTF)
	})
	return debugFont, debugFontErr
}

// Annotate 返回绘制了标注框和文字的图像副本
func Annotate(f *Frame, marks ...Mark) (*image.RGBA, error) {
	img := f.Image()
	if len(marks) == 0 {
		return img, nil
	}

	font, err := loadDebugFont()
	if err != nil {
		return nil, fmt.Errorf("加载调试字体失败: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(72)
	ctx.SetFont(font)
	ctx.SetFontSize(14)
	ctx.SetClip(img.Bounds())
	ctx.SetDst(img)

	for _, m := range marks {
		c := m.Color
		if c.A == 0 {
			c = color.RGBA{R: 255, G: 0, B: 255, A: 255}
		}
		drawRect(img, m.Rect, c)
		if m.Label == "" {
			continue
		}
		ctx.SetSrc(image.NewUniform(c))
		pt := freetype.Pt(m.Rect.Min.X, m.Rect.Min.Y-4)
		if _, err := ctx.DrawString(m.Label, pt); err != nil {
			return nil, fmt.Errorf("绘制标注失败: %w", err)
		}
	}
	return img, nil
}

// drawRect 绘制 1 像素边框
func drawRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetRGBA(x, r.Min.Y, c)
		img.SetRGBA(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetRGBA(r.Min.X, y, c)
		img.SetRGBA(r.Max.X-1, y, c)
	}
}

// SaveDebug 保存带标注的截图为 PNG
func SaveDebug(f *Frame, path string, marks ...Mark) error {
	img, err := Annotate(f, marks...)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("PNG 编码失败: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("保存调试截图失败: %w", err)
	}
	return nil
}

// ToBase64 将 Frame 编码为 PNG data URL
func ToBase64(f *Frame) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, f.Image()); err != nil {
		return "", fmt.Errorf("PNG 编码失败: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
