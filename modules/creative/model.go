package creative

import (
	"fmt"
	"strings"
)

// Format - placement of the ad, fixed for the life of one creative
type Format string

const (
	FormatFeed    Format = "Feed"    // 1:1
	FormatStories Format = "Stories" // 9:16
)

// ParseFormat - case-insensitive; empty means Feed
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "feed":
		return FormatFeed, nil
	case "stories":
		return FormatStories, nil
	}
	return "", fmt.Errorf("invalid format: %q", s)
}

// AspectRatio - ratio requested from the image model
func (f Format) AspectRatio() string {
	if f == FormatStories {
		return "9:16"
	}
	return "1:1"
}

func (f Format) IsStories() bool {
	return f == FormatStories
}

// Slug - lower-case name used in file names
func (f Format) Slug() string {
	return strings.ToLower(string(f))
}

type Audience string

const (
	AudienceBeginner     Audience = "Iniciante"
	AudienceProfessional Audience = "Profissional"
	AudienceEntrepreneur Audience = "Empreendedor"
	AudienceEndCustomer  Audience = "Cliente final"
)

var Audiences = []Audience{AudienceBeginner, AudienceProfessional, AudienceEntrepreneur, AudienceEndCustomer}

type OfferType string

const (
	OfferOnlineCourse   OfferType = "Curso online"
	OfferInPersonCourse OfferType = "Curso presencial"
	OfferMentoring      OfferType = "Mentoria"
	OfferService        OfferType = "Serviço"
)

var OfferTypes = []OfferType{OfferOnlineCourse, OfferInPersonCourse, OfferMentoring, OfferService}

type Objective string

const (
	ObjectiveLearning       Objective = "Aprendizado / Habilidade Prática"
	ObjectiveTransformation Objective = "Transformação / Posicionamento / Autoridade"
)

var Objectives = []Objective{ObjectiveLearning, ObjectiveTransformation}

type VisualStyle string

const (
	StyleMinimalist  VisualStyle = "Minimalista"
	StyleImpactful   VisualStyle = "Impactante"
	StyleModern      VisualStyle = "Moderno"
	StyleFuturistic  VisualStyle = "Futurista"
	StyleEducational VisualStyle = "Educacional"
	StyleEmotional   VisualStyle = "Emocional"
)

var VisualStyles = []VisualStyle{StyleMinimalist, StyleImpactful, StyleModern, StyleFuturistic, StyleEducational, StyleEmotional}

// ReferenceImage - optional upload, only used for the first generation
type ReferenceImage struct {
	Data     []byte
	MIMEType string
}

// CampaignInputs - everything the client submits in the campaign form
type CampaignInputs struct {
	Product        string
	Audience       Audience
	OfferType      OfferType
	Objective      Objective
	VisualStyles   []VisualStyle
	Format         Format
	IncludeCTA     bool
	ReferenceImage *ReferenceImage
}

// VisualPrompt - art direction returned by the first generation call
type VisualPrompt struct {
	Scene           string `json:"scene"`
	Style           string `json:"style"`
	Emotion         string `json:"emotion"`
	Lighting        string `json:"lighting"`
	FullDescription string `json:"fullDescription"`
}

// ImageOverlay - exact text drawn over the image. An empty CTA means no button.
type ImageOverlay struct {
	MainText string `json:"mainText"`
	CTA      string `json:"cta,omitempty"`
}

func (o ImageOverlay) HasCTA() bool {
	return strings.TrimSpace(o.CTA) != ""
}

// Creative - one ad concept
type Creative struct {
	VisualPrompt VisualPrompt `json:"visualPrompt"`
	ImageOverlay ImageOverlay `json:"imageOverlay"`
	Caption      string       `json:"instagramCaption"`
}

// GeneratedImage - the current render. Locator is a data: URL.
type GeneratedImage struct {
	Locator string `json:"url"`
	Loading bool   `json:"isLoading"`
	Error   string `json:"error,omitempty"`
}

// ImageStatus - derived state of GeneratedImage
type ImageStatus string

const (
	ImageEmpty   ImageStatus = "empty"
	ImageLoading ImageStatus = "loading"
	ImageReady   ImageStatus = "ready"
	ImageFailed  ImageStatus = "failed"
)

func (g GeneratedImage) Status() ImageStatus {
	switch {
	case g.Loading:
		return ImageLoading
	case g.Error != "":
		return ImageFailed
	case g.Locator != "":
		return ImageReady
	}
	return ImageEmpty
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ChatMessage struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Raster - image bytes exchanged with the AI service
type Raster struct {
	Data     []byte
	MIMEType string
}

// TextRevision - text regenerated after a nano-edit. StyleOverride may be empty.
type TextRevision struct {
	MainText      string
	CTA           string
	Caption       string
	StyleOverride string
	Summary       string
}
