package ocr

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// BinaryThreshold 二值化阈值
const BinaryThreshold = 70

// Threshold 灰度化后按固定阈值二值化，增强文字与背景的对比度
func Threshold(img image.Image) (image.Image, error) {
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("图像转换失败: %w", err)
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorRGBToGray)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(gray, &binary, BinaryThreshold, 255, gocv.ThresholdBinary)

	out, err := binary.ToImage()
	if err != nil {
		return nil, fmt.Errorf("二值图转换失败: %w", err)
	}
	return out, nil
}
