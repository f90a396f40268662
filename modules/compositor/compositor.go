package compositor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"strings"
	"time"

	"admachine-studio/modules/common/config"
	"admachine-studio/modules/common/utils"
	"admachine-studio/modules/creative"
	"admachine-studio/modules/layout"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/rs/zerolog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

// Geometry, as fractions of the base image or of the title font size.
// Pixel constants are expressed at referenceWidth and scaled with the image.
const (
	gradientStart  = 0.40
	paddingRatio   = 0.08
	storiesFont    = 0.075
	feedFont       = 0.065
	firstLineCTA   = 0.70
	firstLineNoCTA = 0.85
	lineSpacing    = 1.15

	ctaFontRatio = 0.38
	ctaPadX      = 2.2
	ctaPadY      = 1.3
	ctaGap       = 0.6

	referenceWidth = 1024.0

	titleShadowBlur    = 15.0
	titleShadowOffset  = 4.0
	buttonShadowBlur   = 30.0
	buttonShadowOffset = 10.0
	buttonRadius       = 12.0
	ctaTextNudge       = 2.0
)

var (
	titleShadowColor  = color.NRGBA{A: 204} // black, 0.8
	buttonShadowColor = color.NRGBA{A: 102} // black, 0.4
)

// Compositor - draws the title and CTA overlay on top of a generated image
type Compositor struct {
	font   *opentype.Font
	accent color.NRGBA
	brand  string
	now    func() time.Time
	log    zerolog.Logger
}

// NewCompositor - Go Bold unless OVERLAY_FONT_PATH points at another TTF/OTF
func NewCompositor(cfg *config.Config, log zerolog.Logger) (*Compositor, error) {
	fontData := gobold.TTF
	if cfg.OverlayFontPath != "" {
		data, err := os.ReadFile(cfg.OverlayFontPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read overlay font: %w", err)
		}
		fontData = data
	}

	f, err := opentype.Parse(fontData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse overlay font: %w", err)
	}

	accent, err := utils.ParseHexColor(cfg.BrandAccentColor)
	if err != nil {
		return nil, err
	}

	return &Compositor{
		font:   f,
		accent: accent,
		brand:  cfg.BrandName,
		now:    time.Now,
		log:    log.With().Str("component", "compositor").Logger(),
	}, nil
}

// Rect - button box in image pixels
type Rect struct {
	X, Y, W, H float64
}

// Plan - every position Compose will draw at, computed without drawing
type Plan struct {
	Width, Height float64
	Scale         float64
	Padding       float64
	MaxTextWidth  float64
	FontSize      float64
	LineHeight    float64
	Lines         []string
	LineY         []float64 // vertical centre of each title line
	CTA           string
	CTAFontSize   float64
	Button        *Rect // nil without a CTA
}

// Plan - layout for a base image of the given size
func (c *Compositor) Plan(width, height int, overlay creative.ImageOverlay, format creative.Format) (*Plan, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", width, height)
	}

	w, h := float64(width), float64(height)
	p := &Plan{
		Width:   w,
		Height:  h,
		Scale:   w / referenceWidth,
		Padding: w * paddingRatio,
	}
	p.MaxTextWidth = w - 2*p.Padding

	p.FontSize = w * feedFont
	if format.IsStories() {
		p.FontSize = w * storiesFont
	}
	p.LineHeight = p.FontSize * lineSpacing

	titleFace, err := c.face(p.FontSize)
	if err != nil {
		return nil, err
	}
	defer titleFace.Close()

	measure := measurer(titleFace)
	p.Lines = layout.Wrap(layout.Upper(overlay.MainText), measure, p.MaxTextWidth)

	firstY := h * firstLineNoCTA
	if overlay.HasCTA() {
		firstY = h * firstLineCTA
	}
	p.LineY = make([]float64, len(p.Lines))
	for i := range p.Lines {
		p.LineY[i] = firstY + float64(i)*p.LineHeight
	}

	if !overlay.HasCTA() {
		return p, nil
	}

	p.CTA = layout.Upper(strings.TrimSpace(overlay.CTA))
	p.CTAFontSize = p.FontSize * ctaFontRatio

	ctaFace, err := c.face(p.CTAFontSize)
	if err != nil {
		return nil, err
	}
	defer ctaFace.Close()

	textW := measurer(ctaFace)(p.CTA)
	btnW := textW + 2*ctaPadX*p.CTAFontSize
	btnH := p.CTAFontSize + 2*ctaPadY*p.CTAFontSize
	p.Button = &Rect{
		X: (w - btnW) / 2,
		Y: firstY + float64(len(p.Lines))*p.LineHeight + p.FontSize*ctaGap,
		W: btnW,
		H: btnH,
	}
	return p, nil
}

// Compose - base image + gradient + shadowed title + optional CTA button.
// Same inputs always give the same pixels.
func (c *Compositor) Compose(base image.Image, overlay creative.ImageOverlay, format creative.Format) (image.Image, error) {
	bounds := base.Bounds()
	plan, err := c.Plan(bounds.Dx(), bounds.Dy(), overlay, format)
	if err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), base, bounds.Min, draw.Src)
	dc := gg.NewContextForRGBA(canvas)

	grad := gg.NewLinearGradient(0, plan.Height*gradientStart, 0, plan.Height)
	grad.AddColorStop(0, color.NRGBA{})
	grad.AddColorStop(0.7, color.NRGBA{A: 179})
	grad.AddColorStop(1, color.NRGBA{A: 242})
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, plan.Height*gradientStart, plan.Width, plan.Height*(1-gradientStart))
	dc.Fill()

	titleFace, err := c.face(plan.FontSize)
	if err != nil {
		return nil, err
	}
	defer titleFace.Close()

	c.drawShadow(dc, plan, titleShadowColor, titleShadowBlur, func(s *gg.Context) {
		s.SetFontFace(titleFace)
		for i, line := range plan.Lines {
			s.DrawStringAnchored(line, plan.Width/2, plan.LineY[i]+titleShadowOffset*plan.Scale, 0.5, 0.5)
		}
	})

	dc.SetFontFace(titleFace)
	dc.SetColor(color.White)
	for i, line := range plan.Lines {
		dc.DrawStringAnchored(line, plan.Width/2, plan.LineY[i], 0.5, 0.5)
	}

	if plan.Button != nil {
		btn := plan.Button
		radius := buttonRadius * plan.Scale

		c.drawShadow(dc, plan, buttonShadowColor, buttonShadowBlur, func(s *gg.Context) {
			s.DrawRoundedRectangle(btn.X, btn.Y+buttonShadowOffset*plan.Scale, btn.W, btn.H, radius)
			s.Fill()
		})

		dc.SetColor(c.accent)
		dc.DrawRoundedRectangle(btn.X, btn.Y, btn.W, btn.H, radius)
		dc.Fill()

		ctaFace, err := c.face(plan.CTAFontSize)
		if err != nil {
			return nil, err
		}
		defer ctaFace.Close()

		dc.SetFontFace(ctaFace)
		dc.SetColor(color.White)
		dc.DrawStringAnchored(plan.CTA, plan.Width/2, btn.Y+btn.H/2+ctaTextNudge*plan.Scale, 0.5, 0.5)
	}

	return dc.Image(), nil
}

// drawShadow - paint on a transparent layer, blur it, then lay it under what comes next
func (c *Compositor) drawShadow(dc *gg.Context, plan *Plan, shadow color.NRGBA, blur float64, paint func(*gg.Context)) {
	layer := gg.NewContext(int(plan.Width), int(plan.Height))
	layer.SetColor(shadow)
	paint(layer)

	blurred := imaging.Blur(layer.Image(), blur*plan.Scale/2)
	dc.DrawImage(blurred, 0, 0)
}

func (c *Compositor) face(size float64) (font.Face, error) {
	face, err := opentype.NewFace(c.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return face, nil
}

func measurer(face font.Face) layout.MeasureFunc {
	return func(s string) float64 {
		return float64(font.MeasureString(face, s)) / 64
	}
}
