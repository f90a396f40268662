package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"admachine-studio/modules/common/config"
	"admachine-studio/modules/common/logger"
	"admachine-studio/modules/common/metrics"
	"admachine-studio/modules/common/utils"
	"admachine-studio/modules/compositor"
	"admachine-studio/modules/creative"
	"admachine-studio/modules/nanoedit"
	"admachine-studio/modules/quota"

	"github.com/rs/zerolog"
)

// ErrStaleSession - a newer submission replaced the session while a call was running
var ErrStaleSession = errors.New("session replaced by a newer submission")

const (
	cleanupInterval = 5 * time.Minute
	usageTimeout    = 5 * time.Second
)

// AI - generation calls the studio makes besides the nano-edit ones
type AI interface {
	nanoedit.Boundary
	GenerateCreative(ctx context.Context, in creative.CampaignInputs) (*creative.Creative, error)
	GenerateImage(ctx context.Context, artPrompt string, format creative.Format, ref *creative.ReferenceImage) (*creative.Raster, error)
}

// Workspace - the live session of one client id
type Workspace struct {
	clientID string

	mu           sync.Mutex
	session      *creative.Session
	controller   *nanoedit.Controller
	generating   bool
	lastActivity time.Time

	downloading atomic.Bool
}

func (w *Workspace) current() (*creative.Session, *nanoedit.Controller) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastActivity = time.Now()
	return w.session, w.controller
}

func (w *Workspace) isCurrent(token string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session != nil && w.session.Token() == token
}

func (w *Workspace) replace(s *creative.Session, c *nanoedit.Controller) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.session = s
	w.controller = c
	w.generating = true
	w.lastActivity = time.Now()
}

func (w *Workspace) finishGenerating(token string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session != nil && w.session.Token() == token {
		w.generating = false
	}
}

func (w *Workspace) idleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActivity
}

func (w *Workspace) busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.generating || w.downloading.Load() {
		return true
	}
	return w.controller != nil && w.controller.InFlight()
}

// Manager - owns every workspace and runs the generate / edit / export flows
type Manager struct {
	ai         AI
	compositor *compositor.Compositor
	quota      *quota.Limiter
	hub        *Hub
	idle       time.Duration
	log        zerolog.Logger

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

func NewManager(ai AI, comp *compositor.Compositor, limiter *quota.Limiter, hub *Hub, cfg *config.Config, log zerolog.Logger) *Manager {
	return &Manager{
		ai:         ai,
		compositor: comp,
		quota:      limiter,
		hub:        hub,
		idle:       cfg.WorkspaceIdle,
		log:        log.With().Str("component", "studio").Logger(),
		workspaces: make(map[string]*Workspace),
	}
}

func (m *Manager) getOrCreate(clientID string) *Workspace {
	m.mu.Lock()
	defer m.mu.Unlock()

	ws, ok := m.workspaces[clientID]
	if !ok {
		ws = &Workspace{clientID: clientID, lastActivity: time.Now()}
		m.workspaces[clientID] = ws
		metrics.ActiveWorkspaces.Set(float64(len(m.workspaces)))
		m.log.Info().Str("client", clientID).Int("active", len(m.workspaces)).Msg("✅ [Studio] Workspace created")
	}
	return ws
}

func (m *Manager) lookup(clientID string) (*Workspace, *creative.Session, *nanoedit.Controller, error) {
	m.mu.Lock()
	ws, ok := m.workspaces[clientID]
	m.mu.Unlock()
	if !ok {
		return nil, nil, nil, creative.ErrNoCreative
	}

	session, controller := ws.current()
	if session == nil {
		return nil, nil, nil, creative.ErrNoCreative
	}
	return ws, session, controller, nil
}

// observer - events of a replaced session never reach the client's sockets
func (m *Manager) observer(ws *Workspace) creative.Observer {
	return func(ev creative.Event) {
		if !ws.isCurrent(ev.Token) {
			return
		}
		m.hub.Broadcast(ws.clientID, ev)
	}
}

// StartSession - discard whatever the client had and generate a new creative.
// The boundary call is detached from the request so a dropped connection does
// not lose the result; it still reaches the client over the WebSocket.
func (m *Manager) StartSession(ctx context.Context, clientID string, in creative.CampaignInputs) (*SessionView, error) {
	if err := m.quota.Allow(ctx, clientID); err != nil {
		return nil, err
	}

	ws := m.getOrCreate(clientID)
	session := creative.NewSession(in.Format, in.ReferenceImage, m.observer(ws))
	ws.replace(session, nanoedit.NewController(session, m.ai, ws.isCurrent, m.log))
	token := session.Token()

	m.hub.Broadcast(clientID, creative.Event{Type: creative.EventSessionStarted, Token: token})
	m.log.Info().
		Str("client", clientID).
		Str("session", token).
		Str("product", logger.Truncate(in.Product, 40)).
		Msg("🎬 [Studio] New session")

	c, err := m.ai.GenerateCreative(context.WithoutCancel(ctx), in)
	if !ws.isCurrent(token) {
		m.log.Warn().Str("client", clientID).Str("session", token).Msg("⚠️ [Studio] Creative arrived for a replaced session, dropping")
		return nil, ErrStaleSession
	}
	ws.finishGenerating(token)

	if err != nil {
		return m.view(ws), err
	}
	if err := session.ReplaceCreative(*c); err != nil {
		return m.view(ws), fmt.Errorf("%w: %w", creative.ErrGenerationFailure, err)
	}

	m.consume(ctx, clientID)
	return m.view(ws), nil
}

// GenerateImage - first render of the current creative. No-op error while an
// image is already loading.
func (m *Manager) GenerateImage(ctx context.Context, clientID string) (*SessionView, error) {
	ws, session, _, err := m.lookup(clientID)
	if err != nil {
		return nil, err
	}
	c, ok := session.Creative()
	if !ok {
		return m.view(ws), creative.ErrNoCreative
	}
	if err := m.quota.Allow(ctx, clientID); err != nil {
		return m.view(ws), err
	}
	if err := session.SetImage(creative.Loading()); err != nil {
		return m.view(ws), creative.ErrBusy
	}

	token := session.Token()
	raster, err := m.ai.GenerateImage(context.WithoutCancel(ctx), artPrompt(c.VisualPrompt), session.Format(), session.Reference())
	if !ws.isCurrent(token) {
		return nil, ErrStaleSession
	}
	if err != nil {
		_ = session.SetImage(creative.Failed(creative.MsgImageFailure))
		return m.view(ws), err
	}

	if err := session.SetImage(creative.Ready(utils.ToDataURL(raster.Data, raster.MIMEType))); err != nil {
		return m.view(ws), err
	}
	m.consume(ctx, clientID)
	return m.view(ws), nil
}

// SubmitEdit - hand the instruction to the session's edit controller
func (m *Manager) SubmitEdit(ctx context.Context, clientID, instruction string) (nanoedit.Outcome, *SessionView, error) {
	ws, _, controller, err := m.lookup(clientID)
	if err != nil {
		return nanoedit.OutcomeSkipped, nil, err
	}

	if strings.TrimSpace(instruction) != "" {
		if err := m.quota.Allow(ctx, clientID); err != nil {
			return nanoedit.OutcomeSkipped, m.view(ws), err
		}
	}

	outcome, err := controller.SubmitEdit(context.WithoutCancel(ctx), instruction)
	if outcome == nanoedit.OutcomeApplied {
		m.consume(ctx, clientID)
	}
	if outcome == nanoedit.OutcomeStale {
		return outcome, nil, ErrStaleSession
	}
	return outcome, m.view(ws), err
}

// Download - composited export; one at a time per workspace
func (m *Manager) Download(ctx context.Context, clientID string, enc compositor.Encoding) (*compositor.Asset, error) {
	ws, session, _, err := m.lookup(clientID)
	if err != nil {
		return nil, err
	}
	if !ws.downloading.CompareAndSwap(false, true) {
		return nil, creative.ErrBusy
	}
	defer ws.downloading.Store(false)

	return m.render(ctx, session, enc)
}

// Preview - same composition as Download, PNG, without the busy flag
func (m *Manager) Preview(ctx context.Context, clientID string) (*compositor.Asset, error) {
	_, session, _, err := m.lookup(clientID)
	if err != nil {
		return nil, err
	}
	return m.render(ctx, session, compositor.EncodingPNG)
}

func (m *Manager) render(ctx context.Context, session *creative.Session, enc compositor.Encoding) (*compositor.Asset, error) {
	c, ok := session.Creative()
	if !ok {
		return nil, creative.ErrNoCreative
	}
	img := session.Image()
	if img.Status() != creative.ImageReady {
		return nil, creative.ErrNoImage
	}
	return m.compositor.Render(ctx, img.Locator, c.ImageOverlay, session.Format(), enc)
}

// Snapshot - current state of the client's workspace
func (m *Manager) Snapshot(clientID string) (*SessionView, error) {
	ws, _, _, err := m.lookup(clientID)
	if err != nil {
		return nil, err
	}
	return m.view(ws), nil
}

func (m *Manager) view(ws *Workspace) *SessionView {
	ws.mu.Lock()
	session, controller, generating := ws.session, ws.controller, ws.generating
	ws.mu.Unlock()

	v := &SessionView{
		Snapshot:    session.Snapshot(),
		Generating:  generating,
		Downloading: ws.downloading.Load(),
	}
	if controller != nil {
		v.Editing = controller.InFlight()
		if controller.LastError() != nil {
			v.LastEditFail = creative.MsgEditFailure
		}
	}
	return v
}

// consume - record one generation. Detached from the request so a client that
// hung up mid-call is still charged for the result it gets over the socket.
func (m *Manager) consume(ctx context.Context, clientID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), usageTimeout)
	defer cancel()

	if _, err := m.quota.Increment(ctx, clientID); err != nil {
		m.log.Warn().Err(err).Str("client", clientID).Msg("⚠️ [Studio] Failed to record usage")
	}
}

// artPrompt - full description, or the separate fields when it is missing
func artPrompt(v creative.VisualPrompt) string {
	if s := strings.TrimSpace(v.FullDescription); s != "" {
		return s
	}
	parts := make([]string, 0, 4)
	for _, p := range []string{v.Scene, v.Style, v.Emotion, v.Lighting} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ". ")
}

// StartCleanupRoutine - drop idle workspaces until ctx is done
func (m *Manager) StartCleanupRoutine(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.cleanupIdleWorkspaces(now)
			}
		}
	}()
	m.log.Info().Dur("idle", m.idle).Msg("🔄 [Studio] Started workspace cleanup routine")
}

// CleanupNow - run one cleanup pass immediately
func (m *Manager) CleanupNow() int {
	return m.cleanupIdleWorkspaces(time.Now())
}

// cleanupIdleWorkspaces - idle past the limit, nothing running, no socket open
func (m *Manager) cleanupIdleWorkspaces(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cleaned := 0
	for clientID, ws := range m.workspaces {
		if now.Sub(ws.idleSince()) < m.idle || ws.busy() || m.hub.Connections(clientID) > 0 {
			continue
		}
		delete(m.workspaces, clientID)
		cleaned++
		m.log.Info().Str("client", clientID).Msg("🧹 [Studio] Cleaned up idle workspace")
	}

	metrics.ActiveWorkspaces.Set(float64(len(m.workspaces)))
	if cleaned > 0 {
		m.log.Info().Int("cleaned", cleaned).Int("active", len(m.workspaces)).Msg("🗑️ [Studio] Idle workspaces removed")
	}
	return cleaned
}
