package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splat-anim-ai/internal/application/animation"
	"splat-anim-ai/internal/domain/entity"
	"splat-anim-ai/internal/infrastructure/persistence/memory"
	"splat-anim-ai/internal/sandbox"
	apperrors "splat-anim-ai/pkg/errors"
	"splat-anim-ai/pkg/logger"
)

func init() {
	logger.InitDiscard()
}

type synthFunc func(ctx context.Context, b animation.Brief) (*animation.Candidate, error)

func (f synthFunc) Synthesize(ctx context.Context, b animation.Brief, _ animation.Temperatures) (*animation.Candidate, error) {
	return f(ctx, b)
}

type neutralCritic struct{}

func (neutralCritic) Critique(context.Context, animation.CritiqueRequest) entity.Critique {
	return entity.NeutralCritique()
}

type pngRenderer struct{}

func (pngRenderer) Render(context.Context, *entity.Scene, *sandbox.Frame, entity.VisionAngle) ([]byte, error) {
	return []byte("png"), nil
}

func waveCandidate(_ context.Context, b animation.Brief) (*animation.Candidate, error) {
	fns := entity.Functions{Centers: "y = y + 0.2 * sin(tau * p)", RGBs: "r = r", Opacities: "a = a"}
	if b.Kind == animation.BriefFeedback {
		fns.RGBs = "r = 1"
	}
	return &animation.Candidate{Title: b.Title, Functions: fns}, nil
}

func newTestManager(synth animation.CodeSynthesizer) (*Manager, *memory.SnapshotStore) {
	engine := animation.NewEngine(synth, neutralCritic{}, animation.EngineConfig{Workers: 2, ProbeFrame: -1})
	store := memory.NewSnapshotStore()
	m := NewManager(engine, pngRenderer{}, NewBus(nil), store, Config{
		DefaultFPS:      8,
		DemoScenePoints: 32,
		Limits:          sandbox.DefaultLimits(),
	})
	return m, store
}

func generatorConfig() entity.GeneratorConfig {
	return entity.GeneratorConfig{
		Title:        "wave",
		Description:  "a wave",
		Duration:     2,
		VisionAngles: []entity.VisionAngle{},
		NSamples:     2,
	}
}

func TestManagerGenerateAndPlayback(t *testing.T) {
	m, store := newTestManager(synthFunc(waveCandidate))
	ctx := context.Background()
	s := m.Create(ctx, nil)
	assert.Equal(t, 32, s.Scene().Len())
	assert.Nil(t, s.Active())

	sub := m.Bus().Subscribe(s.ID(), 64)
	defer m.Bus().Unsubscribe(sub)

	evo, err := m.Generate(ctx, s.ID(), generatorConfig())
	require.NoError(t, err)
	require.NotNil(t, evo.FinalAnimation())
	assert.Equal(t, 8, evo.Config().FPS)
	assert.Equal(t, evo.FinalAnimation().ID(), s.Active().ID())
	assert.NotEmpty(t, sub.C)

	frame, anim, err := m.Frame(ctx, s.ID(), 15)
	require.NoError(t, err)
	assert.Equal(t, s.Active().ID(), anim.ID())
	assert.Equal(t, 32, frame.Len())

	_, _, err = m.Frame(ctx, s.ID(), 16)
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)

	png, err := m.Render(ctx, s.ID(), 0, entity.AngleFront)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), png)

	summaries, err := store.List(ctx, s.ID())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, evo.ID(), summaries[0].RunID)

	latest, err := m.LatestSnapshot(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, evo.FinalAnimation().ID(), latest.FinalAnimationID)
}

func TestManagerSelectionAndFeedback(t *testing.T) {
	m, _ := newTestManager(synthFunc(waveCandidate))
	ctx := context.Background()
	s := m.Create(ctx, nil)

	_, err := m.Feedback(ctx, s.ID(), "red")
	assert.ErrorIs(t, err, apperrors.ErrNoAnimation)

	evo, err := m.Generate(ctx, s.ID(), generatorConfig())
	require.NoError(t, err)
	sampled := evo.AutoSampled()
	require.Len(t, sampled, 2)

	picked, err := m.SetActive(s.ID(), sampled[1].ID())
	require.NoError(t, err)
	assert.Equal(t, sampled[1].ID(), s.Active().ID())
	assert.Equal(t, picked.ID(), s.Active().ID())

	_, err = m.SetActive(s.ID(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrAnimationNotFound)

	anim, err := m.Feedback(ctx, s.ID(), "make it red")
	require.NoError(t, err)
	assert.Equal(t, "r = 1", anim.Functions().RGBs)
	// 反馈成功后回到最终动画
	assert.Equal(t, anim.ID(), s.Active().ID())
}

func TestManagerSetFPS(t *testing.T) {
	m, _ := newTestManager(synthFunc(waveCandidate))
	s := m.Create(context.Background(), nil)

	assert.ErrorIs(t, m.SetFPS(s.ID(), 30), apperrors.ErrInvalidParam)
	require.NoError(t, m.SetFPS(s.ID(), 50))
	assert.Equal(t, 50, s.FPS())

	evo, err := m.Generate(context.Background(), s.ID(), generatorConfig())
	require.NoError(t, err)
	assert.Equal(t, 50, evo.Config().FPS)

	_, _, err = m.Frame(context.Background(), s.ID(), 99)
	assert.NoError(t, err)
}

func TestManagerNewRunSupersedesPrevious(t *testing.T) {
	started := make(chan struct{})
	var calls atomic.Int32
	synth := synthFunc(func(ctx context.Context, b animation.Brief) (*animation.Candidate, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return waveCandidate(ctx, b)
	})
	m, _ := newTestManager(synth)
	ctx := context.Background()
	s := m.Create(ctx, nil)

	cfg := generatorConfig()
	cfg.NSamples = 1

	errCh := make(chan error, 1)
	go func() {
		_, err := m.Generate(ctx, s.ID(), cfg)
		errCh <- err
	}()
	<-started

	evo, err := m.Generate(ctx, s.ID(), cfg)
	require.NoError(t, err)

	select {
	case first := <-errCh:
		assert.True(t, errors.Is(first, apperrors.ErrCanceled) || errors.Is(first, apperrors.ErrSuperseded), "got %v", first)
	case <-time.After(5 * time.Second):
		t.Fatal("previous run was not canceled")
	}
	assert.Same(t, evo, s.Evolution())
	assert.NotNil(t, s.Active())
}

func TestManagerUnknownAndDeletedSessions(t *testing.T) {
	m, store := newTestManager(synthFunc(waveCandidate))
	ctx := context.Background()

	_, err := m.Generate(ctx, "nope", generatorConfig())
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	s := m.Create(ctx, nil)
	_, err = m.Generate(ctx, s.ID(), generatorConfig())
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, s.ID()))
	assert.ErrorIs(t, m.Delete(ctx, s.ID()), apperrors.ErrSessionNotFound)
	_, err = m.Get(s.ID())
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	summaries, err := store.List(ctx, s.ID())
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestManagerRejectsInvalidConfig(t *testing.T) {
	m, _ := newTestManager(synthFunc(waveCandidate))
	s := m.Create(context.Background(), nil)

	cfg := generatorConfig()
	cfg.Duration = 42
	_, err := m.Generate(context.Background(), s.ID(), cfg)
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)
	assert.Nil(t, s.Evolution())
}
