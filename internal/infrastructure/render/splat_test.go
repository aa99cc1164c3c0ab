package render

import (
	"bytes"
	"context"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splat-anim-ai/internal/config"
	"splat-anim-ai/internal/domain/entity"
	"splat-anim-ai/internal/sandbox"
)

func TestRenderProducesPNGOfConfiguredSize(t *testing.T) {
	scene := entity.DemoSphere(300)
	exec := sandbox.NewExecutor(scene, sandbox.DefaultLimits())
	_, frame, err := exec.ValidateAndRun(context.Background(), entity.IdentityFunctions(), sandbox.FrameInput{FPS: 8, Duration: 1})
	require.NoError(t, err)

	r := NewSplatRenderer(config.RenderConfig{Width: 64, Height: 48, PointSize: 2, Zoom: 1})
	for _, angle := range entity.AllVisionAngles {
		data, err := r.Render(context.Background(), scene, frame, angle)
		require.NoError(t, err)

		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 64, img.Bounds().Dx())
		assert.Equal(t, 48, img.Bounds().Dy())
	}
}

func TestRenderDrawsVisiblePoints(t *testing.T) {
	scene, err := entity.NewScene([][3]float64{{0, 0, 0}}, [][3]float64{{1, 0, 0}}, []float64{1})
	require.NoError(t, err)
	frame := &sandbox.Frame{
		Centers:   [][3]float64{{0, 0, 0}},
		RGBs:      [][3]float64{{1, 0, 0}},
		Opacities: []float64{1},
	}

	r := NewSplatRenderer(config.RenderConfig{Width: 16, Height: 16, PointSize: 1})
	data, err := r.Render(context.Background(), scene, frame, entity.AngleFront)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	red, _, _, _ := img.At(8, 8).RGBA()
	assert.Equal(t, uint32(0xffff), red)
}

func TestRenderRejectsUnknownAngle(t *testing.T) {
	r := NewSplatRenderer(config.RenderConfig{})
	_, err := r.Render(context.Background(), entity.DemoSphere(10), &sandbox.Frame{}, entity.VisionAngle("top"))
	assert.Error(t, err)
}
