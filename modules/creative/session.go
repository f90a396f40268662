package creative

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventSessionStarted  EventType = "session_started"
	EventCreativeUpdated EventType = "creative_updated"
	EventImageUpdated    EventType = "image_updated"
	EventMessageAppended EventType = "chat_message"
	EventEditStarted     EventType = "edit_started"
	EventEditFinished    EventType = "edit_finished"
)

// Event - change notification pushed to observers (WebSocket hub)
type Event struct {
	Type     EventType       `json:"type"`
	Token    string          `json:"sessionToken"`
	Creative *Creative       `json:"creative,omitempty"`
	Image    *GeneratedImage `json:"image,omitempty"`
	Message  *ChatMessage    `json:"message,omitempty"`
}

type Observer func(Event)

// Snapshot - deep copy of the whole session state
type Snapshot struct {
	Token     string         `json:"sessionToken"`
	Format    Format         `json:"format"`
	Creative  *Creative      `json:"creative,omitempty"`
	Image     GeneratedImage `json:"image"`
	Messages  []ChatMessage  `json:"messages"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Session - single source of truth for one creative: the creative itself,
// the current image and the nano-edit transcript.
type Session struct {
	mu        sync.RWMutex
	token     string
	format    Format
	reference *ReferenceImage
	creative  *Creative
	image     GeneratedImage
	messages  []ChatMessage
	observer  Observer
	createdAt time.Time
}

// NewSession - fresh session with its own generation token
func NewSession(format Format, reference *ReferenceImage, observer Observer) *Session {
	var ref *ReferenceImage
	if reference != nil && len(reference.Data) > 0 {
		ref = &ReferenceImage{
			Data:     append([]byte(nil), reference.Data...),
			MIMEType: reference.MIMEType,
		}
	}
	return &Session{
		token:     uuid.NewString(),
		format:    format,
		reference: ref,
		observer:  observer,
		createdAt: time.Now(),
	}
}

func (s *Session) Token() string {
	return s.token
}

func (s *Session) Format() Format {
	return s.format
}

// Reference - the upload given at session start, nil when none
func (s *Session) Reference() *ReferenceImage {
	return s.reference
}

// Creative - copy of the current creative; false before the first generation lands
func (s *Session) Creative() (Creative, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creative == nil {
		return Creative{}, false
	}
	return *s.creative, true
}

func (s *Session) Image() GeneratedImage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.image
}

func (s *Session) Messages() []ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ChatMessage(nil), s.messages...)
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Token:     s.token,
		Format:    s.format,
		Image:     s.image,
		Messages:  append([]ChatMessage{}, s.messages...),
		CreatedAt: s.createdAt,
	}
	if s.creative != nil {
		c := *s.creative
		snap.Creative = &c
	}
	return snap
}

// ReplaceCreative - atomic replace after the initial generation
func (s *Session) ReplaceCreative(c Creative) error {
	if strings.TrimSpace(c.ImageOverlay.MainText) == "" {
		return ErrEmptyTitle
	}

	s.mu.Lock()
	s.creative = &c
	s.mu.Unlock()

	s.emit(Event{Type: EventCreativeUpdated, Creative: &c})
	return nil
}

// MergeEditResult - overlay and caption are replaced wholesale, style only
// when an override is given. Scene, emotion, lighting and full description
// are never touched.
func (s *Session) MergeEditResult(overlay ImageOverlay, caption, styleOverride string) error {
	s.mu.Lock()
	merged, err := s.mergeLocked(overlay, caption, styleOverride)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.emit(Event{Type: EventCreativeUpdated, Creative: &merged})
	return nil
}

// ApplyEdit - image locator and text land together under one lock
func (s *Session) ApplyEdit(locator string, overlay ImageOverlay, caption, styleOverride string) error {
	if strings.TrimSpace(locator) == "" {
		return fmt.Errorf("%w: edited image has no locator", ErrInvalidTransition)
	}

	s.mu.Lock()
	merged, err := s.mergeLocked(overlay, caption, styleOverride)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.image = GeneratedImage{Locator: locator}
	img := s.image
	s.mu.Unlock()

	s.emit(Event{Type: EventCreativeUpdated, Creative: &merged})
	s.emit(Event{Type: EventImageUpdated, Image: &img})
	return nil
}

func (s *Session) mergeLocked(overlay ImageOverlay, caption, styleOverride string) (Creative, error) {
	if s.creative == nil {
		return Creative{}, ErrNoCreative
	}
	if strings.TrimSpace(overlay.MainText) == "" {
		return Creative{}, ErrEmptyTitle
	}

	next := *s.creative
	next.ImageOverlay = overlay
	next.Caption = caption
	if style := strings.TrimSpace(styleOverride); style != "" {
		next.VisualPrompt.Style = style
	}
	s.creative = &next
	return next, nil
}

// Loading / Ready / Failed - the only states SetImage accepts
func Loading() GeneratedImage {
	return GeneratedImage{Loading: true}
}

func Ready(locator string) GeneratedImage {
	return GeneratedImage{Locator: locator}
}

func Failed(message string) GeneratedImage {
	return GeneratedImage{Error: message}
}

// SetImage - single setter for the image state machine:
// empty|ready|failed -> loading -> ready|failed. Loading clears the locator.
func (s *Session) SetImage(next GeneratedImage) error {
	s.mu.Lock()
	current := s.image.Status()
	target := next.Status()

	switch target {
	case ImageLoading:
		if current == ImageLoading {
			s.mu.Unlock()
			return fmt.Errorf("%w: already loading", ErrInvalidTransition)
		}
		next = Loading()
	case ImageReady, ImageFailed:
		if current != ImageLoading {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, target)
		}
		if target == ImageFailed {
			next.Locator = ""
		}
	case ImageEmpty:
	}

	s.image = next
	s.mu.Unlock()

	s.emit(Event{Type: EventImageUpdated, Image: &next})
	return nil
}

// RestoreImage - rollback to a value captured before a failed edit
func (s *Session) RestoreImage(img GeneratedImage) {
	s.mu.Lock()
	s.image = img
	s.mu.Unlock()

	s.emit(Event{Type: EventImageUpdated, Image: &img})
}

// RestoreCreative - rollback counterpart of RestoreImage
func (s *Session) RestoreCreative(c Creative) {
	s.mu.Lock()
	s.creative = &c
	s.mu.Unlock()

	s.emit(Event{Type: EventCreativeUpdated, Creative: &c})
}

// AppendMessage - transcript is append-only
func (s *Session) AppendMessage(role Role, text string) ChatMessage {
	msg := ChatMessage{Role: role, Text: text}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.emit(Event{Type: EventMessageAppended, Message: &msg})
	return msg
}

// Notify - lets collaborators publish lifecycle events for this session
func (s *Session) Notify(t EventType) {
	s.emit(Event{Type: t})
}

func (s *Session) emit(ev Event) {
	if s.observer == nil {
		return
	}
	ev.Token = s.token
	s.observer(ev)
}
