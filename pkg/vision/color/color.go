// Package color 在截图中按颜色定位游戏内的复合特征（如血条 + 刻度）
package color

import (
	"time"

	"github.com/zoeyai/riftbot/internal/logger"
	"github.com/zoeyai/riftbot/pkg/auto"
	"github.com/zoeyai/riftbot/pkg/auto/screen"
)

// BGR 颜色三元组，通道顺序 B, G, R
type BGR = screen.BGR

// 游戏内血条相关颜色 (BGR)
var (
	HealthTick     = BGR{B: 0, G: 0, R: 0}
	EnemyHealthBar = BGR{B: 101, G: 112, R: 200}
	AllyHealthBar  = BGR{B: 242, G: 189, R: 110}
)

const (
	// DefaultTolerance 默认颜色容差
	DefaultTolerance = 2
	// DefaultSearchDistance 血条右侧查找刻度的最大水平距离
	DefaultSearchDistance = 100
)

// ChampionOffset 血条锚点到英雄身体中心的像素偏移
var ChampionOffset = auto.Point{X: 0, Y: 160}

// ColorSpec 目标颜色及容差
type ColorSpec struct {
	Color     BGR
	Tolerance int
}

// Spec 使用默认容差构造 ColorSpec
func Spec(c BGR) ColorSpec {
	return ColorSpec{Color: c, Tolerance: DefaultTolerance}
}

// Band 各通道的闭区间 [c-tol, c+tol]，限制在 [0, 255]
func (s ColorSpec) Band() (lo, hi BGR) {
	tol := s.Tolerance
	if tol < 0 {
		tol = 0
	}
	lo = BGR{B: clampLow(s.Color.B, tol), G: clampLow(s.Color.G, tol), R: clampLow(s.Color.R, tol)}
	hi = BGR{B: clampHigh(s.Color.B, tol), G: clampHigh(s.Color.G, tol), R: clampHigh(s.Color.R, tol)}
	return lo, hi
}

func clampLow(c uint8, tol int) uint8 {
	v := int(c) - tol
	if v < 0 {
		return 0
	}
	return uint8(v)
}

func clampHigh(c uint8, tol int) uint8 {
	v := int(c) + tol
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Matches 像素是否落在颜色区间内（两端包含）
func (s ColorSpec) Matches(p BGR) bool {
	lo, hi := s.Band()
	return p.B >= lo.B && p.B <= hi.B &&
		p.G >= lo.G && p.G <= hi.G &&
		p.R >= lo.R && p.R <= hi.R
}

// mask 计算整帧的匹配掩码
func (s ColorSpec) mask(f *screen.Frame) []bool {
	w, h := f.Width(), f.Height()
	m := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m[y*w+x] = s.Matches(f.At(x, y))
		}
	}
	return m
}

// FindPair 按行优先顺序查找第一个 primary 像素，且其右侧 [0, maxDistance] 范围内
// 同一行存在 secondary 像素；返回 primary 坐标加 offset。
//
// 未找到返回 nil。
func FindPair(f *screen.Frame, primary, secondary ColorSpec, maxDistance int, offset auto.Point) *auto.LocatedPoint {
	if f == nil || f.Width() == 0 || f.Height() == 0 {
		return nil
	}

	w, h := f.Width(), f.Height()
	pm := primary.mask(f)
	sm := secondary.mask(f)

	for y := 0; y < h; y++ {
		row := y * w
		for x := 0; x < w; x++ {
			if !pm[row+x] {
				continue
			}
			for dx := 0; dx <= maxDistance; dx++ {
				nx := x + dx
				if nx >= w {
					break
				}
				if sm[row+nx] {
					return &auto.LocatedPoint{Point: auto.Point{X: x, Y: y}.Add(offset.X, offset.Y)}
				}
			}
		}
	}
	return nil
}

// FindChampion 查找指定血条颜色对应的英雄位置
func FindChampion(f *screen.Frame, healthBar BGR, label string) *auto.LocatedPoint {
	start := time.Now()
	p := FindPair(f, Spec(healthBar), Spec(HealthTick), DefaultSearchDistance, ChampionOffset)
	elapsed := float64(time.Since(start).Milliseconds())
	if p == nil {
		logger.Debug("未检测到%s血条 (%.0fms)", label, elapsed)
		return nil
	}
	p.Label = label
	logger.Debug("检测到%s位置 %s (%.0fms)", label, p.Point, elapsed)
	return p
}

// FindEnemy 查找敌方英雄
func FindEnemy(f *screen.Frame) *auto.LocatedPoint {
	return FindChampion(f, EnemyHealthBar, "敌方")
}

// FindAlly 查找友方英雄
func FindAlly(f *screen.Frame) *auto.LocatedPoint {
	return FindChampion(f, AllyHealthBar, "友方")
}
