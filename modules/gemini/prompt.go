package gemini

import (
	"fmt"
	"strings"

	"admachine-studio/modules/creative"

	"google.golang.org/genai"
)

const systemPrompt = `Você atua como Creative Optimizer da ADMACHINE, especialista em anúncios de performance para Instagram.
Missão: criar e refinar criativos de alta conversão com visual intrigante.
Lema: iterar pequeno, rápido e com inteligência.

Regras:
1. Priorize legibilidade, hierarquia visual e impacto psicológico.
2. Explore curiosidade, antecipação, tensão ou desejo.
3. Preserve a identidade visual entre uma iteração e outra.
4. A mensagem precisa ser entendida em até 3 segundos.
5. Responda sempre em português do Brasil. Nunca traduza o nome "ADMACHINE".`

const jsonInstruction = "Responda somente com JSON válido no esquema informado, com todos os textos em português."

// buildCreativePrompt - briefing for the first concept
func buildCreativePrompt(in creative.CampaignInputs) string {
	styles := make([]string, 0, len(in.VisualStyles))
	for _, s := range in.VisualStyles {
		styles = append(styles, string(s))
	}

	cta := "Não"
	if in.IncludeCTA {
		cta = "Sim"
	}

	var sb strings.Builder
	sb.WriteString("Crie o criativo inicial de um anúncio para Instagram.\n")
	fmt.Fprintf(&sb, "- Produto/Nicho: %s\n", in.Product)
	fmt.Fprintf(&sb, "- Público: %s\n", in.Audience)
	fmt.Fprintf(&sb, "- Tipo de oferta: %s\n", in.OfferType)
	fmt.Fprintf(&sb, "- Objetivo: %s\n", in.Objective)
	fmt.Fprintf(&sb, "- Estilos visuais: %s\n", strings.Join(styles, ", "))
	fmt.Fprintf(&sb, "- Formato: %s\n", in.Format)
	fmt.Fprintf(&sb, "- Incluir CTA: %s\n", cta)
	if in.ReferenceImage != nil {
		sb.WriteString("Use a imagem anexada como base estética e mantenha a coerência com ela.\n")
	}
	sb.WriteString(`
Entregue:
1. Direção de arte (cena, estilo, emoção, luz e descrição completa).
2. Título curto e forte para sobrepor na imagem.
3. CTA direto (vazio se não houver CTA).
4. Legenda persuasiva para o post.`)
	return sb.String()
}

// buildImagePrompt - first render, with or without a reference upload
func buildImagePrompt(artPrompt string, hasReference bool) string {
	if hasReference {
		return fmt.Sprintf("ADMACHINE Creative Optimizer: reinterprete esta imagem com visual intrigante a partir do conceito: %s. "+
			"Preserve a essência da foto e eleve o acabamento para anúncios de alta performance. Não escreva texto na imagem.", artPrompt)
	}
	return fmt.Sprintf("Crie uma imagem publicitária com visual intrigante: %s. "+
		"Estética de Instagram e impacto imediato. Não escreva texto na imagem.", artPrompt)
}

// buildEditPrompt - nano-edit of the current render
func buildEditPrompt(instruction string) string {
	return fmt.Sprintf(`ADMACHINE - edição pontual em camadas. Aplique somente este ajuste: "%s".
Obrigatório:
1. Mantenha composição e enquadramento. Não altere o que não foi pedido.
2. Concentre-se no ajuste visual solicitado (fundo, cores, contraste, expressão).
3. Não desenhe nenhum texto na imagem. O texto é aplicado depois como overlay.`, instruction)
}

// buildRevisionPrompt - new texts after a nano-edit; the title must change
func buildRevisionPrompt(instruction, previousTitle string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "A imagem acabou de receber o ajuste: \"%s\".\n", instruction)
	sb.WriteString("Gere os novos textos do criativo ADMACHINE.\n")
	if previousTitle != "" {
		fmt.Fprintf(&sb, "O título atual é \"%s\". ", previousTitle)
	}
	sb.WriteString("O novo título é obrigatório e precisa ser diferente do anterior, curto e intrigante.\n")
	sb.WriteString("Campos: mainText (título), cta (texto do botão), caption (legenda curta), " +
		"artStyle (novo estilo de arte aplicado, opcional) e summary (resumo para o chat, " +
		"ex.: 1️⃣ ajuste visual... 2️⃣ novo título...).")
	return sb.String()
}

func stringSchema() *genai.Schema {
	return &genai.Schema{Type: genai.TypeString}
}

// creativeSchema - response shape of GenerateCreative
func creativeSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"visualPrompt": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"scene":           stringSchema(),
					"style":           stringSchema(),
					"emotion":         stringSchema(),
					"lighting":        stringSchema(),
					"fullDescription": stringSchema(),
				},
				Required: []string{"scene", "style", "emotion", "lighting", "fullDescription"},
			},
			"imageOverlay": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"mainText": stringSchema(),
					"cta":      stringSchema(),
				},
				Required: []string{"mainText"},
			},
			"instagramCaption": stringSchema(),
		},
		Required: []string{"visualPrompt", "imageOverlay", "instagramCaption"},
	}
}

// revisionSchema - response shape of RegenerateText
func revisionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"mainText": stringSchema(),
			"cta":      stringSchema(),
			"caption":  stringSchema(),
			"artStyle": stringSchema(),
			"summary":  stringSchema(),
		},
		Required: []string{"mainText", "cta", "caption", "summary"},
	}
}
