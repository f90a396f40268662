package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"admachine-studio/modules/common/config"
	"admachine-studio/modules/common/logger"
	"admachine-studio/modules/common/metrics"
	"admachine-studio/modules/creative"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// contentGenerator - the slice of genai.Models the service uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Service - every call ADMACHINE makes to Gemini
type Service struct {
	models     contentGenerator
	textModel  string
	imageModel string
	timeout    time.Duration
	log        zerolog.Logger
}

func NewService(client *genai.Client, cfg *config.Config, log zerolog.Logger) *Service {
	return newService(client.Models, cfg, log)
}

func newService(models contentGenerator, cfg *config.Config, log zerolog.Logger) *Service {
	return &Service{
		models:     models,
		textModel:  cfg.GeminiTextModel,
		imageModel: cfg.GeminiImageModel,
		timeout:    cfg.RequestTimeout,
		log:        log.With().Str("component", "gemini").Logger(),
	}
}

// GenerateCreative - structured concept (art direction, overlay text, caption) from the campaign form
func (s *Service) GenerateCreative(ctx context.Context, in creative.CampaignInputs) (*creative.Creative, error) {
	parts := []*genai.Part{genai.NewPartFromText(buildCreativePrompt(in))}
	if ref := in.ReferenceImage; ref != nil && len(ref.Data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(ref.Data, ref.MIMEType))
	}

	s.log.Info().
		Str("product", logger.Truncate(in.Product, 40)).
		Str("format", string(in.Format)).
		Bool("reference", in.ReferenceImage != nil).
		Msg("🎨 [Gemini] Generating creative")

	resp, err := s.call(ctx, "generate_creative", s.textModel, parts, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt+"\n"+jsonInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    creativeSchema(),
	})
	if err != nil {
		return nil, classify(creative.ErrGenerationFailure, err)
	}

	c, err := parseCreative(resp.Text(), in.IncludeCTA)
	if err != nil {
		s.log.Error().Err(err).Msg("❌ [Gemini] Unusable creative payload")
		return nil, fmt.Errorf("%w: %w", creative.ErrGenerationFailure, err)
	}

	s.log.Info().Str("title", c.ImageOverlay.MainText).Msg("✅ [Gemini] Creative generated")
	return c, nil
}

// GenerateImage - first render of the art prompt. The reference upload, when
// present, goes first so the model treats it as the base picture.
func (s *Service) GenerateImage(ctx context.Context, artPrompt string, format creative.Format, ref *creative.ReferenceImage) (*creative.Raster, error) {
	hasRef := ref != nil && len(ref.Data) > 0

	parts := make([]*genai.Part, 0, 2)
	if hasRef {
		parts = append(parts, genai.NewPartFromBytes(ref.Data, ref.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(buildImagePrompt(artPrompt, hasRef)))

	s.log.Info().
		Str("ratio", format.AspectRatio()).
		Bool("reference", hasRef).
		Str("prompt", logger.Truncate(artPrompt, 50)).
		Msg("🎨 [Gemini] Generating image")

	resp, err := s.call(ctx, "generate_image", s.imageModel, parts, imageConfig(format))
	if err != nil {
		return nil, classify(creative.ErrImageGenerationFailure, err)
	}

	raster, err := extractImage(resp)
	if err != nil {
		s.log.Warn().Msg("⚠️ [Gemini] Response carried no image")
		return nil, fmt.Errorf("%w: %w", creative.ErrImageGenerationFailure, err)
	}

	s.log.Info().Int("bytes", len(raster.Data)).Msg("✅ [Gemini] Image generated")
	return raster, nil
}

// EditImage - nano-edit of the current render; the instruction is passed through unchanged
func (s *Service) EditImage(ctx context.Context, base creative.Raster, instruction string, format creative.Format) (*creative.Raster, error) {
	mimeType := base.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	parts := []*genai.Part{
		genai.NewPartFromBytes(base.Data, mimeType),
		genai.NewPartFromText(buildEditPrompt(instruction)),
	}

	s.log.Info().
		Str("instruction", logger.Truncate(instruction, 50)).
		Int("baseBytes", len(base.Data)).
		Msg("🪄 [Gemini] Editing image")

	resp, err := s.call(ctx, "edit_image", s.imageModel, parts, imageConfig(format))
	if err != nil {
		return nil, classify(creative.ErrEditFailure, err)
	}

	raster, err := extractImage(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", creative.ErrEditFailure, err)
	}

	s.log.Info().Int("bytes", len(raster.Data)).Msg("✅ [Gemini] Image edited")
	return raster, nil
}

// RegenerateText - new title, CTA, caption and chat summary after a nano-edit.
// Distinctness from previousTitle is requested, not enforced.
func (s *Service) RegenerateText(ctx context.Context, instruction, previousTitle string) (*creative.TextRevision, error) {
	parts := []*genai.Part{genai.NewPartFromText(buildRevisionPrompt(instruction, previousTitle))}

	resp, err := s.call(ctx, "regenerate_text", s.textModel, parts, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    revisionSchema(),
	})
	if err != nil {
		return nil, classify(creative.ErrEditFailure, err)
	}

	rev, err := parseRevision(resp.Text())
	if err != nil {
		s.log.Error().Err(err).Msg("❌ [Gemini] Unusable revision payload")
		return nil, fmt.Errorf("%w: %w", creative.ErrEditFailure, err)
	}

	if previousTitle != "" && strings.EqualFold(strings.TrimSpace(rev.MainText), strings.TrimSpace(previousTitle)) {
		s.log.Warn().Str("title", rev.MainText).Msg("⚠️ [Gemini] Revision kept the previous title")
	}
	return rev, nil
}

// call - one GenerateContent round trip with timeout, metrics and logging
func (s *Service) call(ctx context.Context, op, model string, parts []*genai.Part, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.models.GenerateContent(ctx, model, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, cfg)
	elapsed := time.Since(start)
	metrics.AIRequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())

	if err != nil {
		status := "error"
		if isRateLimited(err) {
			status = "rate_limited"
		}
		metrics.AIRequestsTotal.WithLabelValues(op, status).Inc()
		s.log.Error().Err(err).Str("op", op).Str("model", model).Dur("elapsed", elapsed).Msg("❌ [Gemini] API error")
		return nil, err
	}

	metrics.AIRequestsTotal.WithLabelValues(op, "success").Inc()
	s.log.Debug().Str("op", op).Str("model", model).Dur("elapsed", elapsed).Msg("[Gemini] Call finished")
	return resp, nil
}

func imageConfig(format creative.Format) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{
			AspectRatio: format.AspectRatio(),
		},
	}
}

// extractImage - first inline image of the response
func extractImage(resp *genai.GenerateContentResponse) (*creative.Raster, error) {
	if resp == nil {
		return nil, creative.ErrNoImageProduced
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			mimeType := part.InlineData.MIMEType
			if mimeType == "" {
				mimeType = "image/png"
			}
			return &creative.Raster{Data: part.InlineData.Data, MIMEType: mimeType}, nil
		}
	}
	return nil, creative.ErrNoImageProduced
}

// stripFences - some responses wrap JSON in a markdown code block
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func parseCreative(text string, includeCTA bool) (*creative.Creative, error) {
	var c creative.Creative
	if err := json.Unmarshal([]byte(stripFences(text)), &c); err != nil {
		return nil, fmt.Errorf("failed to parse creative JSON: %w", err)
	}

	c.ImageOverlay.MainText = strings.TrimSpace(c.ImageOverlay.MainText)
	c.ImageOverlay.CTA = strings.TrimSpace(c.ImageOverlay.CTA)
	if c.ImageOverlay.MainText == "" {
		return nil, creative.ErrEmptyTitle
	}
	if !includeCTA {
		c.ImageOverlay.CTA = ""
	}
	return &c, nil
}

type revisionPayload struct {
	MainText string `json:"mainText"`
	CTA      string `json:"cta"`
	Caption  string `json:"caption"`
	ArtStyle string `json:"artStyle"`
	Summary  string `json:"summary"`
}

const defaultSummary = "✅ Ajuste aplicado ao criativo."

func parseRevision(text string) (*creative.TextRevision, error) {
	var p revisionPayload
	if err := json.Unmarshal([]byte(stripFences(text)), &p); err != nil {
		return nil, fmt.Errorf("failed to parse revision JSON: %w", err)
	}

	rev := &creative.TextRevision{
		MainText:      strings.TrimSpace(p.MainText),
		CTA:           strings.TrimSpace(p.CTA),
		Caption:       strings.TrimSpace(p.Caption),
		StyleOverride: strings.TrimSpace(p.ArtStyle),
		Summary:       strings.TrimSpace(p.Summary),
	}
	if rev.MainText == "" {
		return nil, creative.ErrEmptyTitle
	}
	if rev.Summary == "" {
		rev.Summary = defaultSummary
	}
	return rev, nil
}
