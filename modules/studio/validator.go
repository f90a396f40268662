package studio

import (
	"fmt"
	"strings"

	"admachine-studio/modules/common/utils"
	"admachine-studio/modules/creative"
)

var referenceMIMETypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

// normalizeClientID - trims the id in place so every route keys the same workspace
func normalizeClientID(clientID *string) error {
	*clientID = strings.TrimSpace(*clientID)
	if *clientID == "" {
		return fmt.Errorf("clientId is required")
	}
	if len(*clientID) > 128 {
		return fmt.Errorf("clientId too long (max 128 characters)")
	}
	return nil
}

// ValidateCreateRequest - form payload to CampaignInputs. Empty selects fall
// back to the form defaults.
func ValidateCreateRequest(req *CreateCreativeRequest) (creative.CampaignInputs, error) {
	var in creative.CampaignInputs

	if err := normalizeClientID(&req.ClientID); err != nil {
		return in, err
	}

	in.Product = strings.TrimSpace(req.Product)
	if in.Product == "" {
		return in, fmt.Errorf("product is required")
	}
	if len([]rune(in.Product)) > MaxProductLength {
		return in, fmt.Errorf("product too long (max %d characters)", MaxProductLength)
	}

	var err error
	if in.Audience, err = oneOf(req.Audience, creative.AudienceBeginner, creative.Audiences, "audience"); err != nil {
		return in, err
	}
	if in.OfferType, err = oneOf(req.OfferType, creative.OfferOnlineCourse, creative.OfferTypes, "offerType"); err != nil {
		return in, err
	}
	if in.Objective, err = oneOf(req.Objective, creative.ObjectiveTransformation, creative.Objectives, "objective"); err != nil {
		return in, err
	}

	if len(req.VisualStyles) == 0 {
		return in, fmt.Errorf("select at least one visual style")
	}
	seen := make(map[creative.VisualStyle]bool, len(req.VisualStyles))
	for _, raw := range req.VisualStyles {
		style, err := oneOf(raw, "", creative.VisualStyles, "visualStyles")
		if err != nil {
			return in, err
		}
		if !seen[style] {
			seen[style] = true
			in.VisualStyles = append(in.VisualStyles, style)
		}
	}

	if in.Format, err = creative.ParseFormat(req.Format); err != nil {
		return in, err
	}

	in.IncludeCTA = true
	if req.IncludeCTA != nil {
		in.IncludeCTA = *req.IncludeCTA
	}

	if req.ReferenceImage != nil && strings.TrimSpace(req.ReferenceImage.Data) != "" {
		ref, err := decodeReference(req.ReferenceImage)
		if err != nil {
			return in, err
		}
		in.ReferenceImage = ref
	}
	return in, nil
}

// ValidateEditRequest - blank instructions are allowed through and become no-ops
func ValidateEditRequest(req *EditRequest) error {
	if err := normalizeClientID(&req.ClientID); err != nil {
		return err
	}
	if len([]rune(req.Instruction)) > MaxInstructionLength {
		return fmt.Errorf("instruction too long (max %d characters)", MaxInstructionLength)
	}
	return nil
}

// decodeReference - the declared MIME type is ignored, the bytes decide
func decodeReference(p *ReferenceImagePayload) (*creative.ReferenceImage, error) {
	data, _, err := utils.ParseDataURL(p.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid reference image: %w", err)
	}
	if len(data) > MaxReferenceBytes {
		return nil, fmt.Errorf("reference image too large (max %d MB)", MaxReferenceBytes>>20)
	}

	mimeType, err := utils.DetectMIMEType(data)
	if err != nil {
		return nil, fmt.Errorf("invalid reference image: %w", err)
	}
	if !referenceMIMETypes[mimeType] {
		return nil, fmt.Errorf("unsupported reference image type: %s", mimeType)
	}
	return &creative.ReferenceImage{Data: data, MIMEType: mimeType}, nil
}

// oneOf - case-insensitive match against allowed values; empty picks def
func oneOf[T ~string](raw string, def T, allowed []T, field string) (T, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" && def != "" {
		return def, nil
	}
	for _, v := range allowed {
		if strings.EqualFold(string(v), raw) {
			return v, nil
		}
	}
	return "", fmt.Errorf("invalid %s: %q", field, raw)
}
