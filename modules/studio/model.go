package studio

import (
	"admachine-studio/modules/creative"
	"admachine-studio/modules/nanoedit"
)

// ReferenceImagePayload - uploaded picture, raw base64 or a data: URL
type ReferenceImagePayload struct {
	Data     string `json:"data"`
	MIMEType string `json:"mimeType"`
}

// CreateCreativeRequest - POST /api/studio/creatives
type CreateCreativeRequest struct {
	ClientID       string                 `json:"clientId"`
	Product        string                 `json:"product"`
	Audience       string                 `json:"audience"`
	OfferType      string                 `json:"offerType"`
	Objective      string                 `json:"objective"`
	VisualStyles   []string               `json:"visualStyles"`
	Format         string                 `json:"format"`
	IncludeCTA     *bool                  `json:"includeCta,omitempty"` // default true
	ReferenceImage *ReferenceImagePayload `json:"referenceImage,omitempty"`
}

// ClientRequest - POST /api/studio/images
type ClientRequest struct {
	ClientID string `json:"clientId"`
}

// EditRequest - POST /api/studio/edits
type EditRequest struct {
	ClientID    string `json:"clientId"`
	Instruction string `json:"instruction"`
}

// SessionView - everything the result screen renders
type SessionView struct {
	creative.Snapshot
	Editing      bool   `json:"isEditing"`
	Downloading  bool   `json:"isDownloading"`
	Generating   bool   `json:"isGenerating"`
	LastEditFail string `json:"lastEditError,omitempty"`
}

// StudioResponse - envelope shared by every studio endpoint
type StudioResponse struct {
	Success      bool             `json:"success"`
	Session      *SessionView     `json:"session,omitempty"`
	Outcome      nanoedit.Outcome `json:"outcome,omitempty"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
	ErrorCode    string           `json:"errorCode,omitempty"`
}

// PreviewResponse - composited asset inlined as a data URL
type PreviewResponse struct {
	Success      bool   `json:"success"`
	Filename     string `json:"filename,omitempty"`
	PreviewURL   string `json:"previewUrl,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	ErrorCode    string `json:"errorCode,omitempty"`
}

// Error codes
const (
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeNotFound        = "SESSION_NOT_FOUND"
	ErrCodeBusy            = "BUSY"
	ErrCodeQuotaExceeded   = "QUOTA_EXCEEDED"
	ErrCodeGeneration      = "GENERATION_FAILED"
	ErrCodeImage           = "IMAGE_FAILED"
	ErrCodeEdit            = "EDIT_FAILED"
	ErrCodeComposition     = "COMPOSITION_FAILED"
	ErrCodeNoImage         = "NO_IMAGE"
	ErrCodeInternalError   = "INTERNAL_ERROR"
	ErrCodeStaleGeneration = "STALE"
)

// Limits
const (
	MaxProductLength     = 500
	MaxInstructionLength = 1000
	MaxReferenceBytes    = 8 << 20
)
