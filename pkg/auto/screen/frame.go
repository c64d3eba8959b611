package screen

import (
	"image"
	"image/color"
)

// BGR 像素三元组，通道顺序固定为 B, G, R
type BGR struct {
	B, G, R uint8
}

// RGBA 转换为 color.RGBA
func (c BGR) RGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}

// Frame 某一时刻截取的不可变像素网格
type Frame struct {
	width  int
	height int
	pix    []uint8 // 行优先，每像素 3 字节 BGR
}

// NewFrame 从任意图像构造 Frame，原图之后的修改不影响 Frame
func NewFrame(img image.Image) *Frame {
	b := img.Bounds()
	f := &Frame{
		width:  b.Dx(),
		height: b.Dy(),
		pix:    make([]uint8, b.Dx()*b.Dy()*3),
	}

	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < f.height; y++ {
			src := rgba.Pix[(y+b.Min.Y-rgba.Rect.Min.Y)*rgba.Stride+(b.Min.X-rgba.Rect.Min.X)*4:]
			dst := f.pix[y*f.width*3:]
			for x := 0; x < f.width; x++ {
				dst[x*3] = src[x*4+2]
				dst[x*3+1] = src[x*4+1]
				dst[x*3+2] = src[x*4]
			}
		}
		return f
	}

	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := (y*f.width + x) * 3
			f.pix[i] = uint8(bl >> 8)
			f.pix[i+1] = uint8(g >> 8)
			f.pix[i+2] = uint8(r >> 8)
		}
	}
	return f
}

// NewFrameFromBGR 由 BGR 像素构造纯色 Frame，主要用于测试
func NewFrameFromBGR(width, height int, fill BGR) *Frame {
	f := &Frame{width: width, height: height, pix: make([]uint8, width*height*3)}
	for i := 0; i < width*height; i++ {
		f.pix[i*3] = fill.B
		f.pix[i*3+1] = fill.G
		f.pix[i*3+2] = fill.R
	}
	return f
}

// WithPixels 返回设置了指定像素的新 Frame，原 Frame 不变
func (f *Frame) WithPixels(pixels map[image.Point]BGR) *Frame {
	cp := &Frame{width: f.width, height: f.height, pix: append([]uint8(nil), f.pix...)}
	for p, c := range pixels {
		if p.X < 0 || p.Y < 0 || p.X >= f.width || p.Y >= f.height {
			continue
		}
		i := (p.Y*f.width + p.X) * 3
		cp.pix[i], cp.pix[i+1], cp.pix[i+2] = c.B, c.G, c.R
	}
	return cp
}

// Width 宽度
func (f *Frame) Width() int { return f.width }

// Height 高度
func (f *Frame) Height() int { return f.height }

// At 获取像素，越界返回零值
func (f *Frame) At(x, y int) BGR {
	if x < 0 || y < 0 || x >= f.width || y >= f.height {
		return BGR{}
	}
	i := (y*f.width + x) * 3
	return BGR{B: f.pix[i], G: f.pix[i+1], R: f.pix[i+2]}
}

// Image 转换为 image.RGBA 副本
func (f *Frame) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.width, f.height))
	for i := 0; i < f.width*f.height; i++ {
		img.Pix[i*4] = f.pix[i*3+2]
		img.Pix[i*4+1] = f.pix[i*3+1]
		img.Pix[i*4+2] = f.pix[i*3]
		img.Pix[i*4+3] = 0xff
	}
	return img
}
