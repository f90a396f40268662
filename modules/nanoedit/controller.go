package nanoedit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"admachine-studio/modules/common/logger"
	"admachine-studio/modules/common/metrics"
	"admachine-studio/modules/common/utils"
	"admachine-studio/modules/creative"

	"github.com/rs/zerolog"
)

// Boundary - the two AI calls one edit cycle needs
type Boundary interface {
	EditImage(ctx context.Context, base creative.Raster, instruction string, format creative.Format) (*creative.Raster, error)
	RegenerateText(ctx context.Context, instruction, previousTitle string) (*creative.TextRevision, error)
}

type Outcome string

const (
	OutcomeSkipped Outcome = "skipped" // blank input, no image yet, or an edit already running
	OutcomeApplied Outcome = "applied"
	OutcomeFailed  Outcome = "failed"
	OutcomeStale   Outcome = "stale" // session replaced while the edit was running
)

// Controller - drives nano-edits for one session, one at a time
type Controller struct {
	session   *creative.Session
	boundary  Boundary
	isCurrent func(token string) bool
	log       zerolog.Logger

	inFlight atomic.Bool

	mu      sync.Mutex
	lastErr error
}

// NewController - isCurrent reports whether a session token is still the live one
func NewController(session *creative.Session, boundary Boundary, isCurrent func(token string) bool, log zerolog.Logger) *Controller {
	if isCurrent == nil {
		isCurrent = func(string) bool { return true }
	}
	return &Controller{
		session:   session,
		boundary:  boundary,
		isCurrent: isCurrent,
		log:       log.With().Str("component", "nanoedit").Str("session", session.Token()).Logger(),
	}
}

func (c *Controller) Session() *creative.Session {
	return c.session
}

// InFlight - true while an edit is running
func (c *Controller) InFlight() bool {
	return c.inFlight.Load()
}

// LastError - cause of the most recent failed edit, nil after a success
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) setLastError(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// SubmitEdit - Idle -> Submitting -> Success|Failure -> Idle.
// The image edit runs first, then the text regeneration; both results are merged
// together or, on any failure, the pre-edit image and creative are restored.
func (c *Controller) SubmitEdit(ctx context.Context, instruction string) (Outcome, error) {
	if strings.TrimSpace(instruction) == "" {
		return c.record(OutcomeSkipped), nil
	}

	if !c.inFlight.CompareAndSwap(false, true) {
		c.log.Debug().Msg("[NanoEdit] Edit already in flight, ignoring submit")
		return c.record(OutcomeSkipped), nil
	}
	defer c.inFlight.Store(false)

	prevImage := c.session.Image()
	prevCreative, hasCreative := c.session.Creative()
	if prevImage.Status() != creative.ImageReady || !hasCreative {
		return c.record(OutcomeSkipped), nil
	}

	c.log.Info().Str("instruction", logger.Truncate(instruction, 60)).Msg("🪄 [NanoEdit] Edit started")

	c.session.AppendMessage(creative.RoleUser, instruction)
	c.session.Notify(creative.EventEditStarted)
	if err := c.session.SetImage(creative.Loading()); err != nil {
		return c.fail(err, prevImage, prevCreative)
	}

	raw, mimeType, err := utils.ParseDataURL(prevImage.Locator)
	if err != nil {
		return c.fail(err, prevImage, prevCreative)
	}

	edited, err := c.boundary.EditImage(ctx, creative.Raster{Data: raw, MIMEType: mimeType}, instruction, c.session.Format())
	if err != nil {
		return c.fail(err, prevImage, prevCreative)
	}
	if c.stale() {
		return c.record(OutcomeStale), nil
	}

	rev, err := c.boundary.RegenerateText(ctx, instruction, prevCreative.ImageOverlay.MainText)
	if err != nil {
		return c.fail(err, prevImage, prevCreative)
	}
	if c.stale() {
		return c.record(OutcomeStale), nil
	}

	overlay := creative.ImageOverlay{MainText: rev.MainText, CTA: rev.CTA}
	locator := utils.ToDataURL(edited.Data, edited.MIMEType)
	if err := c.session.ApplyEdit(locator, overlay, rev.Caption, rev.StyleOverride); err != nil {
		return c.fail(err, prevImage, prevCreative)
	}

	c.session.AppendMessage(creative.RoleAssistant, rev.Summary)
	c.setLastError(nil)
	c.session.Notify(creative.EventEditFinished)

	c.log.Info().Str("title", rev.MainText).Msg("✅ [NanoEdit] Edit applied")
	return c.record(OutcomeApplied), nil
}

// fail - roll back to the pre-edit state and post exactly one assistant notice
func (c *Controller) fail(cause error, prevImage creative.GeneratedImage, prevCreative creative.Creative) (Outcome, error) {
	if c.stale() {
		c.log.Warn().Err(cause).Msg("⚠️ [NanoEdit] Stale edit failed, dropping")
		return c.record(OutcomeStale), nil
	}

	c.session.RestoreImage(prevImage)
	c.session.RestoreCreative(prevCreative)

	err := cause
	if !errors.Is(err, creative.ErrEditFailure) {
		err = fmt.Errorf("%w: %w", creative.ErrEditFailure, cause)
	}
	c.setLastError(err)

	c.session.AppendMessage(creative.RoleAssistant, creative.MsgEditFailure)
	c.session.Notify(creative.EventEditFinished)

	c.log.Error().Err(cause).Msg("❌ [NanoEdit] Edit failed, state restored")
	return c.record(OutcomeFailed), err
}

func (c *Controller) stale() bool {
	return !c.isCurrent(c.session.Token())
}

func (c *Controller) record(o Outcome) Outcome {
	metrics.EditsTotal.WithLabelValues(string(o)).Inc()
	return o
}
