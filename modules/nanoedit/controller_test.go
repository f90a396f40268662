package nanoedit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"admachine-studio/modules/common/utils"
	"admachine-studio/modules/creative"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBoundary records calls and can fail or block on demand
type fakeBoundary struct {
	mu          sync.Mutex
	editCalls   []string
	textCalls   []string
	editErr     error
	textErr     error
	revision    creative.TextRevision
	editedImage []byte

	gate    chan struct{} // when set, EditImage waits for it
	entered chan struct{} // closed once EditImage has been called
	once    sync.Once
}

func newFakeBoundary() *fakeBoundary {
	return &fakeBoundary{
		revision: creative.TextRevision{
			MainText:      "Novo título",
			CTA:           "Comece agora",
			Caption:       "Legenda nova",
			StyleOverride: "Futurista",
			Summary:       "1️⃣ Fundo escurecido 2️⃣ Novo título",
		},
		editedImage: []byte{0xCA, 0xFE},
		entered:     make(chan struct{}),
	}
}

func (f *fakeBoundary) EditImage(ctx context.Context, base creative.Raster, instruction string, format creative.Format) (*creative.Raster, error) {
	f.mu.Lock()
	f.editCalls = append(f.editCalls, instruction)
	gate := f.gate
	f.mu.Unlock()

	f.once.Do(func() { close(f.entered) })
	if gate != nil {
		<-gate
	}

	if f.editErr != nil {
		return nil, f.editErr
	}
	return &creative.Raster{Data: f.editedImage, MIMEType: "image/png"}, nil
}

func (f *fakeBoundary) RegenerateText(ctx context.Context, instruction, previousTitle string) (*creative.TextRevision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textCalls = append(f.textCalls, instruction)
	if f.textErr != nil {
		return nil, f.textErr
	}
	rev := f.revision
	return &rev, nil
}

func (f *fakeBoundary) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.editCalls), len(f.textCalls)
}

var originalLocator = utils.ToDataURL([]byte{1, 2, 3, 4}, "image/png")

func readySession(t *testing.T) *creative.Session {
	t.Helper()
	s := creative.NewSession(creative.FormatFeed, nil, nil)
	require.NoError(t, s.ReplaceCreative(creative.Creative{
		VisualPrompt: creative.VisualPrompt{Scene: "escritório", Style: "Minimalista", Emotion: "confiança", Lighting: "suave", FullDescription: "mesa limpa"},
		ImageOverlay: creative.ImageOverlay{MainText: "Título original", CTA: "Inscreva-se"},
		Caption:      "Legenda original",
	}))
	require.NoError(t, s.SetImage(creative.Loading()))
	require.NoError(t, s.SetImage(creative.Ready(originalLocator)))
	return s
}

func TestSubmitEditApplies(t *testing.T) {
	session := readySession(t)
	boundary := newFakeBoundary()
	c := NewController(session, boundary, nil, zerolog.Nop())

	outcome, err := c.SubmitEdit(context.Background(), "  escureça o fundo  ")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	snap := session.Snapshot()
	assert.Equal(t, creative.Ready(utils.ToDataURL([]byte{0xCA, 0xFE}, "image/png")), snap.Image)
	assert.Equal(t, creative.ImageOverlay{MainText: "Novo título", CTA: "Comece agora"}, snap.Creative.ImageOverlay)
	assert.Equal(t, "Legenda nova", snap.Creative.Caption)
	assert.Equal(t, "Futurista", snap.Creative.VisualPrompt.Style)
	assert.Equal(t, "escritório", snap.Creative.VisualPrompt.Scene)

	require.Len(t, snap.Messages, 2)
	assert.Equal(t, creative.ChatMessage{Role: creative.RoleUser, Text: "  escureça o fundo  "}, snap.Messages[0], "echoed as typed")
	assert.Equal(t, creative.RoleAssistant, snap.Messages[1].Role)
	assert.Equal(t, "1️⃣ Fundo escurecido 2️⃣ Novo título", snap.Messages[1].Text)

	assert.NoError(t, c.LastError())
	assert.False(t, c.InFlight())

	edits, _ := boundary.counts()
	require.Equal(t, 1, edits)
	assert.Equal(t, "  escureça o fundo  ", boundary.editCalls[0])
}

func TestDoubleSubmitRunsOnce(t *testing.T) {
	session := readySession(t)
	boundary := newFakeBoundary()
	boundary.gate = make(chan struct{})
	c := NewController(session, boundary, nil, zerolog.Nop())

	var first Outcome
	done := make(chan struct{})
	go func() {
		defer close(done)
		first, _ = c.SubmitEdit(context.Background(), "mais brilho")
	}()

	select {
	case <-boundary.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first edit never reached the boundary")
	}
	assert.True(t, c.InFlight())
	assert.Equal(t, creative.ImageLoading, session.Image().Status())

	second, err := c.SubmitEdit(context.Background(), "mais brilho")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, second)

	close(boundary.gate)
	<-done

	assert.Equal(t, OutcomeApplied, first)
	edits, texts := boundary.counts()
	assert.Equal(t, 1, edits)
	assert.Equal(t, 1, texts)
	assert.Len(t, session.Messages(), 2)
}

func TestBlankInstructionIsNoOp(t *testing.T) {
	session := readySession(t)
	boundary := newFakeBoundary()
	c := NewController(session, boundary, nil, zerolog.Nop())
	before := session.Snapshot()

	for _, instruction := range []string{"", "   ", "\n\t "} {
		outcome, err := c.SubmitEdit(context.Background(), instruction)
		require.NoError(t, err)
		assert.Equal(t, OutcomeSkipped, outcome)
	}

	edits, texts := boundary.counts()
	assert.Zero(t, edits)
	assert.Zero(t, texts)
	assert.Equal(t, before, session.Snapshot())
}

func TestSubmitWithoutImageIsNoOp(t *testing.T) {
	session := creative.NewSession(creative.FormatStories, nil, nil)
	require.NoError(t, session.ReplaceCreative(creative.Creative{ImageOverlay: creative.ImageOverlay{MainText: "x"}}))
	boundary := newFakeBoundary()
	c := NewController(session, boundary, nil, zerolog.Nop())

	outcome, err := c.SubmitEdit(context.Background(), "mude a cor")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Empty(t, session.Messages())
}

func TestEditFailureRollsBack(t *testing.T) {
	cases := map[string]func(*fakeBoundary){
		"image call fails": func(b *fakeBoundary) { b.editErr = creative.ErrNoImageProduced },
		"text call fails":  func(b *fakeBoundary) { b.textErr = errors.New("deadline exceeded") },
		"empty title": func(b *fakeBoundary) {
			b.revision.MainText = ""
		},
	}

	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			session := readySession(t)
			boundary := newFakeBoundary()
			setup(boundary)
			c := NewController(session, boundary, nil, zerolog.Nop())

			beforeImage := session.Image()
			beforeCreative, _ := session.Creative()

			outcome, err := c.SubmitEdit(context.Background(), "troque o fundo")
			assert.Equal(t, OutcomeFailed, outcome)
			assert.ErrorIs(t, err, creative.ErrEditFailure)
			assert.ErrorIs(t, c.LastError(), creative.ErrEditFailure)

			assert.Equal(t, beforeImage, session.Image())
			afterCreative, _ := session.Creative()
			assert.Equal(t, beforeCreative, afterCreative)

			messages := session.Messages()
			require.Len(t, messages, 2)
			assert.Equal(t, creative.RoleUser, messages[0].Role)
			assert.Equal(t, creative.ChatMessage{Role: creative.RoleAssistant, Text: creative.MsgEditFailure}, messages[1])
			assert.False(t, c.InFlight())
		})
	}
}

func TestSuccessClearsLastError(t *testing.T) {
	session := readySession(t)
	boundary := newFakeBoundary()
	boundary.editErr = errors.New("boom")
	c := NewController(session, boundary, nil, zerolog.Nop())

	_, err := c.SubmitEdit(context.Background(), "a")
	require.Error(t, err)

	boundary.editErr = nil
	outcome, err := c.SubmitEdit(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.NoError(t, c.LastError())
}

func TestStaleEditIsDropped(t *testing.T) {
	old := readySession(t)
	replacement := readySession(t)

	var live atomic.Value
	live.Store(old.Token())
	isCurrent := func(token string) bool { return live.Load().(string) == token }

	boundary := newFakeBoundary()
	boundary.gate = make(chan struct{})
	c := NewController(old, boundary, isCurrent, zerolog.Nop())

	var (
		outcome Outcome
		err     error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		outcome, err = c.SubmitEdit(context.Background(), "mais contraste")
	}()

	<-boundary.entered
	live.Store(replacement.Token())
	replacementBefore := replacement.Snapshot()
	close(boundary.gate)
	<-done

	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, outcome)

	_, texts := boundary.counts()
	assert.Zero(t, texts)

	oldCreative, _ := old.Creative()
	assert.Equal(t, "Título original", oldCreative.ImageOverlay.MainText)
	assert.Equal(t, replacementBefore, replacement.Snapshot())
}

func TestEditStartedEventPrecedesLoading(t *testing.T) {
	var (
		mu    sync.Mutex
		types []creative.EventType
	)
	session := creative.NewSession(creative.FormatFeed, nil, func(ev creative.Event) {
		mu.Lock()
		types = append(types, ev.Type)
		mu.Unlock()
	})
	require.NoError(t, session.ReplaceCreative(creative.Creative{ImageOverlay: creative.ImageOverlay{MainText: "a"}}))
	require.NoError(t, session.SetImage(creative.Loading()))
	require.NoError(t, session.SetImage(creative.Ready(originalLocator)))

	mu.Lock()
	types = nil
	mu.Unlock()

	c := NewController(session, newFakeBoundary(), nil, zerolog.Nop())
	_, err := c.SubmitEdit(context.Background(), "zoom")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(types), 3)
	assert.Equal(t, creative.EventMessageAppended, types[0])
	assert.Equal(t, creative.EventEditStarted, types[1])
	assert.Equal(t, creative.EventImageUpdated, types[2])
	assert.Equal(t, creative.EventEditFinished, types[len(types)-1])
}
