// Package entity 定义领域实体
package entity

import (
	"fmt"
	"math"
)

// Scene 只读点云场景
// 点数 N 在场景生命周期内固定，所有候选动画每一帧都输出 N 个点。
type Scene struct {
	// 按列存储，便于沙箱按列求值
	x, y, z []float64
	r, g, b []float64
	a       []float64
}

// NewScene 从点坐标、颜色和不透明度创建场景（会复制输入）
func NewScene(centers, rgbs [][3]float64, opacities []float64) (*Scene, error) {
	n := len(centers)
	if n == 0 {
		return nil, fmt.Errorf("scene has no points")
	}
	if len(rgbs) != n || len(opacities) != n {
		return nil, fmt.Errorf("scene arrays length mismatch: centers=%d rgbs=%d opacities=%d", n, len(rgbs), len(opacities))
	}

	s := &Scene{
		x: make([]float64, n), y: make([]float64, n), z: make([]float64, n),
		r: make([]float64, n), g: make([]float64, n), b: make([]float64, n),
		a: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		for _, v := range centers[i] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("point %d has non-finite center", i)
			}
		}
		s.x[i], s.y[i], s.z[i] = centers[i][0], centers[i][1], centers[i][2]
		s.r[i], s.g[i], s.b[i] = clamp01(rgbs[i][0]), clamp01(rgbs[i][1]), clamp01(rgbs[i][2])
		s.a[i] = clamp01(opacities[i])
	}
	return s, nil
}

// DemoSphere 生成斐波那契球面演示场景
func DemoSphere(n int) *Scene {
	if n <= 0 {
		n = 1
	}
	centers := make([][3]float64, n)
	rgbs := make([][3]float64, n)
	opacities := make([]float64, n)

	golden := math.Pi * (3 - math.Sqrt(5))
	for i := 0; i < n; i++ {
		y := 1.0
		if n > 1 {
			y = 1 - 2*float64(i)/float64(n-1)
		}
		radius := math.Sqrt(math.Max(0, 1-y*y))
		theta := golden * float64(i)
		centers[i] = [3]float64{math.Cos(theta) * radius, y, math.Sin(theta) * radius}
		rgbs[i] = [3]float64{0.5 + 0.5*y, 0.4, 0.5 - 0.5*y}
		opacities[i] = 1
	}

	s, _ := NewScene(centers, rgbs, opacities)
	return s
}

// Len 返回点数
func (s *Scene) Len() int {
	return len(s.x)
}

// Column 返回静止状态下的单列数据（x/y/z/r/g/b/a）
// 返回的切片为场景内部存储，调用方不得修改。
func (s *Scene) Column(name string) ([]float64, bool) {
	switch name {
	case "x":
		return s.x, true
	case "y":
		return s.y, true
	case "z":
		return s.z, true
	case "r":
		return s.r, true
	case "g":
		return s.g, true
	case "b":
		return s.b, true
	case "a":
		return s.a, true
	default:
		return nil, false
	}
}

// Bounds 返回静止状态下的包围盒
func (s *Scene) Bounds() (lo, hi [3]float64) {
	lo = [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi = [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for i := range s.x {
		p := [3]float64{s.x[i], s.y[i], s.z[i]}
		for k := 0; k < 3; k++ {
			lo[k] = math.Min(lo[k], p[k])
			hi[k] = math.Max(hi[k], p[k])
		}
	}
	return lo, hi
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
