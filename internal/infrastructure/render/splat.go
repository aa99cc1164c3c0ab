// Package render 提供用于视觉评审与预览的正交点云光栅器
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sort"

	"splat-anim-ai/internal/config"
	"splat-anim-ai/internal/domain/entity"
	"splat-anim-ai/internal/sandbox"
	"splat-anim-ai/pkg/tracer"
)

// SplatRenderer 把一帧点云按视角正交投影成 PNG
// 相机取景基于场景静止状态的包围盒，同一场景不同帧的画面可比较。
type SplatRenderer struct {
	width     int
	height    int
	pointSize int
	zoom      float64
}

// NewSplatRenderer 创建渲染器
func NewSplatRenderer(cfg config.RenderConfig) *SplatRenderer {
	r := &SplatRenderer{
		width:     cfg.Width,
		height:    cfg.Height,
		pointSize: cfg.PointSize,
		zoom:      cfg.Zoom,
	}
	if r.width <= 0 {
		r.width = 256
	}
	if r.height <= 0 {
		r.height = 256
	}
	if r.pointSize <= 0 {
		r.pointSize = 2
	}
	if r.zoom <= 0 {
		r.zoom = 1
	}
	return r
}

type projected struct {
	px, py int
	depth  float64
	c      [3]float64
	alpha  float64
}

// Render 渲染一帧
func (r *SplatRenderer) Render(ctx context.Context, scene *entity.Scene, frame *sandbox.Frame, angle entity.VisionAngle) ([]byte, error) {
	_, span := tracer.Start(ctx, "render.Splat")
	defer span.End()

	if frame == nil || scene == nil {
		return nil, fmt.Errorf("render: frame and scene are required")
	}
	yaw, ok := angle.Yaw()
	if !ok {
		return nil, fmt.Errorf("render: unknown angle %q", angle)
	}
	theta := yaw * math.Pi / 180
	sinT, cosT := math.Sin(theta), math.Cos(theta)

	lo, hi := scene.Bounds()
	center := [3]float64{(lo[0] + hi[0]) / 2, (lo[1] + hi[1]) / 2, (lo[2] + hi[2]) / 2}
	extent := 0.0
	for k := 0; k < 3; k++ {
		extent = math.Max(extent, (hi[k]-lo[k])/2)
	}
	if extent == 0 {
		extent = 1
	}
	// 留出运动余量
	extent *= 1.5 / r.zoom
	scale := float64(min(r.width, r.height)) / (2 * extent)

	pts := make([]projected, 0, frame.Len())
	for i, c := range frame.Centers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		x, y, z := c[0]-center[0], c[1]-center[1], c[2]-center[2]
		// 相机绕 Y 轴旋转 yaw，看向 -Z
		sx := x*cosT - z*sinT
		sz := x*sinT + z*cosT
		pts = append(pts, projected{
			px:    int(math.Round(float64(r.width)/2 + sx*scale)),
			py:    int(math.Round(float64(r.height)/2 - y*scale)),
			depth: sz,
			c:     frame.RGBs[i],
			alpha: frame.Opacities[i],
		})
	}
	// 由远及近绘制
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].depth < pts[j].depth })

	buf := make([][3]float64, r.width*r.height)
	half := r.pointSize / 2
	for _, p := range pts {
		if p.alpha <= 0 {
			continue
		}
		for dy := -half; dy < r.pointSize-half; dy++ {
			yy := p.py + dy
			if yy < 0 || yy >= r.height {
				continue
			}
			for dx := -half; dx < r.pointSize-half; dx++ {
				xx := p.px + dx
				if xx < 0 || xx >= r.width {
					continue
				}
				px := &buf[yy*r.width+xx]
				for k := 0; k < 3; k++ {
					px[k] = px[k]*(1-p.alpha) + p.c[k]*p.alpha
				}
			}
		}
	}

	img := image.NewNRGBA(image.Rect(0, 0, r.width, r.height))
	for y := 0; y < r.height; y++ {
		for x := 0; x < r.width; x++ {
			v := buf[y*r.width+x]
			img.SetNRGBA(x, y, color.NRGBA{R: to8(v[0]), G: to8(v[1]), B: to8(v[2]), A: 255})
		}
	}

	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		tracer.Fail(span, err)
		return nil, fmt.Errorf("render: encode png: %w", err)
	}
	return out.Bytes(), nil
}

func to8(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}
