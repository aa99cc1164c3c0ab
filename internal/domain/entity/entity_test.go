package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "splat-anim-ai/pkg/errors"
)

func TestNewScene(t *testing.T) {
	tests := []struct {
		name      string
		centers   [][3]float64
		rgbs      [][3]float64
		opacities []float64
		wantErr   bool
	}{
		{name: "empty", wantErr: true},
		{
			name:      "length mismatch",
			centers:   [][3]float64{{0, 0, 0}, {1, 1, 1}},
			rgbs:      [][3]float64{{1, 0, 0}},
			opacities: []float64{1, 1},
			wantErr:   true,
		},
		{
			name:      "clamps colors",
			centers:   [][3]float64{{0, 1, 2}},
			rgbs:      [][3]float64{{2, -1, 0.5}},
			opacities: []float64{1.5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewScene(tt.centers, tt.rgbs, tt.opacities)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			r, _ := s.Column("r")
			g, _ := s.Column("g")
			a, _ := s.Column("a")
			assert.Equal(t, []float64{1}, r)
			assert.Equal(t, []float64{0}, g)
			assert.Equal(t, []float64{1}, a)
		})
	}
}

func TestDemoSphereOnUnitSphere(t *testing.T) {
	s := DemoSphere(64)
	require.Equal(t, 64, s.Len())
	lo, hi := s.Bounds()
	for k := 0; k < 3; k++ {
		assert.GreaterOrEqual(t, lo[k], -1.0)
		assert.LessOrEqual(t, hi[k], 1.0)
	}
	_, ok := s.Column("w")
	assert.False(t, ok)
}

func TestParseVisionAngles(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []VisionAngle
		wantErr bool
	}{
		{name: "normalizes case", in: []string{" Front ", "BACK-left"}, want: []VisionAngle{AngleFront, AngleBackLeft}},
		{name: "unknown", in: []string{"top"}, wantErr: true},
		{name: "duplicate", in: []string{"left", "left"}, wantErr: true},
		{name: "empty", in: nil, want: []VisionAngle{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVisionAngles(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Len(t, VisionAnglesFromPreset(VisionPresetFrontBackLRs), 4)
	assert.Len(t, VisionAnglesFromPreset(VisionPresetAll), 8)
	assert.Empty(t, VisionAnglesFromPreset("sideways"))
}

func TestGeneratorConfigValidate(t *testing.T) {
	valid := GeneratorConfig{Description: "spin", Duration: 2, FPS: 24, DesignTemperature: 1, CodeTemperature: 1, NSamples: 2}

	tests := []struct {
		name   string
		mutate func(*GeneratorConfig)
		ok     bool
	}{
		{name: "valid", mutate: func(*GeneratorConfig) {}, ok: true},
		{name: "blank description", mutate: func(c *GeneratorConfig) { c.Description = " " }},
		{name: "duration too long", mutate: func(c *GeneratorConfig) { c.Duration = 11 }},
		{name: "unsupported fps", mutate: func(c *GeneratorConfig) { c.FPS = 30 }},
		{name: "temperature out of range", mutate: func(c *GeneratorConfig) { c.CodeTemperature = 2.5 }},
		{name: "no samples", mutate: func(c *GeneratorConfig) { c.NSamples = 0 }},
		{name: "negative improves", mutate: func(c *GeneratorConfig) { c.NImproves = -1 }},
		{name: "bad angle", mutate: func(c *GeneratorConfig) { c.VisionAngles = []VisionAngle{"up"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}

	d := GeneratorConfig{Description: "x"}.WithDefaults()
	assert.Equal(t, DefaultFPS, d.FPS)
	assert.Equal(t, 1, d.NSamples)
	assert.Equal(t, MinDuration*DefaultFPS, d.TotalFrames())
	assert.False(t, d.HasVision())
}

func TestEvolutionLineageAndSeal(t *testing.T) {
	evo := NewAnimationEvolution(GeneratorConfig{Description: "spin"})
	s1 := NewAnimation(AnimationParams{Title: "a", Origin: OriginSample, Score: 0.4})
	s2 := NewAnimation(AnimationParams{Title: "b", Origin: OriginSample, Score: 0.7})
	imp := NewAnimation(AnimationParams{Title: "b2", Origin: OriginImprove, ParentID: s2.ID(), Score: 0.8})
	fb := NewAnimation(AnimationParams{Title: "b3", Origin: OriginFeedback, ParentID: imp.ID()})

	require.NoError(t, evo.AppendSampled(s1))
	require.NoError(t, evo.AppendSampled(s2))
	require.NoError(t, evo.SetFinal(s2))
	require.NoError(t, evo.AppendImproved(imp))
	require.NoError(t, evo.SetFinal(imp))
	require.NoError(t, evo.RecordFeedback("slower", fb))

	assert.Equal(t, fb, evo.FinalAnimation())
	assert.Equal(t, []*Animation{s1, s2, imp, fb}, evo.Lineage())
	assert.Equal(t, fb, evo.FeedbackToAnimation()["slower"])

	found, ok := evo.Find(s1.ID())
	require.True(t, ok)
	assert.Equal(t, s1, found)

	snap := evo.Snapshot()
	assert.Equal(t, evo.ID(), snap.ID)
	assert.Equal(t, fb.ID(), snap.FinalAnimationID)
	assert.Equal(t, []string{s1.ID(), s2.ID()}, snap.AutoSampled)

	evo.Seal()
	assert.True(t, evo.Sealed())
	late := NewAnimation(AnimationParams{Origin: OriginImprove})
	assert.ErrorIs(t, evo.AppendImproved(late), apperrors.ErrSuperseded)
	assert.ErrorIs(t, evo.SetFinal(late), apperrors.ErrSuperseded)
	assert.ErrorIs(t, evo.MarkDegraded(), apperrors.ErrSuperseded)
	assert.Equal(t, fb, evo.FinalAnimation())
}
