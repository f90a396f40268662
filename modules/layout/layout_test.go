package layout

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// monospace: every rune is 10 units wide
func monospace(s string) float64 {
	return float64(utf8.RuneCountInString(s)) * 10
}

func TestWrapRespectsMaxWidth(t *testing.T) {
	text := "APRENDA A CRIAR ANÚNCIOS QUE REALMENTE CONVERTEM EM POUCAS SEMANAS"
	lines := Wrap(text, monospace, 200)

	require.Greater(t, len(lines), 1)
	for _, line := range lines {
		if strings.Contains(line, " ") {
			assert.LessOrEqual(t, monospace(line), 200.0, line)
		}
	}
	assert.Equal(t, text, strings.Join(lines, " "))
}

func TestWrapLongWordStandsAlone(t *testing.T) {
	lines := Wrap("OI SUPERCALIFRAGILISTICO FIM", monospace, 50)

	assert.Equal(t, []string{"OI", "SUPERCALIFRAGILISTICO", "FIM"}, lines)
}

func TestWrapFirstWordAlwaysPlaced(t *testing.T) {
	lines := Wrap("GIGANTESCO", monospace, 10)
	assert.Equal(t, []string{"GIGANTESCO"}, lines)
}

func TestWrapEmptyInput(t *testing.T) {
	assert.Equal(t, []string{""}, Wrap("", monospace, 100))
	assert.Equal(t, []string{""}, Wrap("   \t ", monospace, 100))
}

func TestWrapCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, []string{"A B", "C"}, Wrap("  A   B\nC ", monospace, 30))
}

func TestWrapIdempotent(t *testing.T) {
	text := "MENTORIA PARA EMPREENDEDORES QUE QUEREM ESCALAR"
	first := Wrap(text, monospace, 180)
	second := Wrap(strings.Join(first, " "), monospace, 180)
	assert.Equal(t, first, second)

	for _, line := range first {
		assert.Equal(t, []string{line}, Wrap(line, monospace, 180))
	}
}

func TestUpperPortuguese(t *testing.T) {
	assert.Equal(t, "AÇÃO IMEDIATA", Upper("ação imediata"))
	assert.Equal(t, "SERVIÇO", Upper("Serviço"))
}
