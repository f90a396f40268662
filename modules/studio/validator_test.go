package studio

import (
	"encoding/base64"
	"strings"
	"testing"

	"admachine-studio/modules/creative"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCreateRequestDefaults(t *testing.T) {
	in, err := ValidateCreateRequest(&CreateCreativeRequest{
		ClientID:     "tab",
		Product:      "  Curso de inglês ",
		VisualStyles: []string{"MODERNO", "moderno", "Emocional"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Curso de inglês", in.Product)
	assert.Equal(t, creative.AudienceBeginner, in.Audience)
	assert.Equal(t, creative.OfferOnlineCourse, in.OfferType)
	assert.Equal(t, creative.ObjectiveTransformation, in.Objective)
	assert.Equal(t, []creative.VisualStyle{creative.StyleModern, creative.StyleEmotional}, in.VisualStyles)
	assert.Equal(t, creative.FormatFeed, in.Format)
	assert.True(t, in.IncludeCTA)
	assert.Nil(t, in.ReferenceImage)
}

func TestValidateCreateRequestErrors(t *testing.T) {
	valid := func() CreateCreativeRequest {
		return CreateCreativeRequest{ClientID: "tab", Product: "x", VisualStyles: []string{"Moderno"}}
	}
	cases := map[string]func(*CreateCreativeRequest){
		"missing client": func(r *CreateCreativeRequest) { r.ClientID = "" },
		"long client":    func(r *CreateCreativeRequest) { r.ClientID = strings.Repeat("a", 129) },
		"missing product": func(r *CreateCreativeRequest) {
			r.Product = " "
		},
		"long product":   func(r *CreateCreativeRequest) { r.Product = strings.Repeat("á", MaxProductLength+1) },
		"bad audience":   func(r *CreateCreativeRequest) { r.Audience = "Crianças" },
		"no styles":      func(r *CreateCreativeRequest) { r.VisualStyles = nil },
		"unknown style":  func(r *CreateCreativeRequest) { r.VisualStyles = []string{"Barroco"} },
		"bad format":     func(r *CreateCreativeRequest) { r.Format = "Reels" },
		"text reference": func(r *CreateCreativeRequest) {
			r.ReferenceImage = &ReferenceImagePayload{Data: base64.StdEncoding.EncodeToString([]byte("hello"))}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := valid()
			mutate(&req)
			_, err := ValidateCreateRequest(&req)
			assert.Error(t, err)
		})
	}
}

func TestValidateCreateRequestReference(t *testing.T) {
	includeCTA := false
	data := pngBytes(4, 4)

	in, err := ValidateCreateRequest(&CreateCreativeRequest{
		ClientID:     "tab",
		Product:      "x",
		VisualStyles: []string{"Minimalista"},
		Format:       "stories",
		IncludeCTA:   &includeCTA,
		ReferenceImage: &ReferenceImagePayload{
			Data:     "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data),
			MIMEType: "image/jpeg",
		},
	})
	require.NoError(t, err)
	assert.False(t, in.IncludeCTA)
	assert.Equal(t, creative.FormatStories, in.Format)
	require.NotNil(t, in.ReferenceImage)
	assert.Equal(t, "image/png", in.ReferenceImage.MIMEType, "sniffed, not declared")
	assert.Equal(t, data, in.ReferenceImage.Data)
}

func TestValidateEditRequest(t *testing.T) {
	assert.NoError(t, ValidateEditRequest(&EditRequest{ClientID: "tab", Instruction: ""}))
	assert.Error(t, ValidateEditRequest(&EditRequest{ClientID: ""}))
	assert.Error(t, ValidateEditRequest(&EditRequest{ClientID: "tab", Instruction: strings.Repeat("x", MaxInstructionLength+1)}))
}

func TestClientIDIsTrimmed(t *testing.T) {
	req := CreateCreativeRequest{ClientID: "  tab-1\n", Product: "x", VisualStyles: []string{"Moderno"}}
	_, err := ValidateCreateRequest(&req)
	require.NoError(t, err)
	assert.Equal(t, "tab-1", req.ClientID)

	edit := EditRequest{ClientID: "\ttab-1 "}
	require.NoError(t, ValidateEditRequest(&edit))
	assert.Equal(t, "tab-1", edit.ClientID)

	assert.Error(t, ValidateEditRequest(&EditRequest{ClientID: "   "}))
}
