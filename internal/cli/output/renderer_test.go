package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestRenderer(mode OutputMode, isTTY bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	return NewRendererWithTTY(out, errOut, isTTY, mode), out, errOut
}

func TestMode(t *testing.T) {
	tests := []struct {
		in   string
		want OutputMode
	}{
		{"", ModeAuto},
		{"auto", ModeAuto},
		{"text", ModeText},
		{"markdown", ModeMarkdown},
		{"md", ModeMarkdown},
		{"JSON", ModeJSON},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Mode(tt.in), tt.in)
	}
}

func TestEffectiveMode(t *testing.T) {
	r, _, _ := newTestRenderer(ModeAuto, true)
	assert.Equal(t, ModeText, r.EffectiveMode())

	r, _, _ = newTestRenderer(ModeAuto, false)
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())

	r, _, _ = newTestRenderer(ModeJSON, true)
	assert.Equal(t, ModeJSON, r.EffectiveMode())
}

func TestStatusLine_NoANSIWithoutTTY(t *testing.T) {
	r, out, _ := newTestRenderer(ModeAuto, false)
	r.Success("built")
	r.Error("broken")
	r.StatusLine(StatusReused, "cached")

	assert.Equal(t, "[OK] built\n[FAILED] broken\n[UP TO DATE] cached\n", out.String())
}

func TestWarning_GoesToErrOut(t *testing.T) {
	r, out, errOut := newTestRenderer(ModeMarkdown, false)
	r.Warning("careful")

	assert.Empty(t, out.String())
	assert.Equal(t, "Warning: careful\n", errOut.String())
}

func TestHeader_Markdown(t *testing.T) {
	r, out, _ := newTestRenderer(ModeMarkdown, false)
	r.Header(2, "Recipes")
	assert.Equal(t, "## Recipes\n\n", out.String())
}

func TestJSON_OneLine(t *testing.T) {
	r, out, _ := newTestRenderer(ModeJSON, false)
	assert.NoError(t, r.JSON(map[string]int{"rows": 3}))
	assert.Equal(t, "{\"rows\":3}\n", out.String())
}

func TestTable_Markdown(t *testing.T) {
	r, out, _ := newTestRenderer(ModeMarkdown, false)
	r.Table([]string{"Recipe", "Rows"}, [][]string{{"mix", "10"}})
	assert.Contains(t, out.String(), "| mix | 10 |")
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "# Title", FormatHeader(0, "Title"))
	assert.Equal(t, "- **rows**: 3", FormatKeyValue("rows", "3"))
	assert.Equal(t, "- a\n- b", FormatList([]string{"a", "b"}))
}
