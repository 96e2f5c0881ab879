package render

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func TestLineText(t *testing.T) {
	tests := []struct {
		line Line
		want string
		kind Kind
	}{
		{FamilyHeading("susan"), "Family tree of susan:", KindHeading},
		{RelationHeading("grandparent", "susan"), "Grandparent of susan:", KindHeading},
		{Result("mary", "parent", "susan"), "mary is the parent of susan", KindResult},
		{Empty("susan", "children"), "susan doesn't have any children.", KindEmpty},
		{Invalid("zzz"), "zzz does not exist in the family tree.", KindError},
		{ValidNames([]string{"mary", "paul"}), "Valid names are: mary, paul", KindInfo},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.line.Text())
			assert.Equal(t, tt.kind, tt.line.Kind)
			assert.Equal(t, tt.want, Plain{}.Render(tt.line))
		})
	}
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Susan", Capitalize("susan"))
	assert.Equal(t, "Susan", Capitalize("sUSAN"))
	assert.Equal(t, "", Capitalize(""))
	assert.Equal(t, "Élodie", Capitalize("élodie"))
}

func TestHTMLMarkup(t *testing.T) {
	got := HTML{}.Render(Result("james", "sibling", "susan"))
	assert.Equal(t,
		`<style fg="#ffecc8"><b><i>James</i></b></style> is the sibling of <style fg="#fff7d1"><b>Susan</b></style>`,
		got)

	heading := HTML{}.Render(RelationHeading("uncle", "susan"))
	assert.Contains(t, heading, `<style fg="#ffd09b"><b><i>Uncle</i></b></style> of `)
}

func TestHTMLEscapesInput(t *testing.T) {
	got := HTML{}.Render(Invalid("<script>"))
	assert.NotContains(t, got, "<script>")
	assert.Contains(t, got, "&lt;script&gt;")
	assert.True(t, len(got) > 0 && got[:len(`<style fg="#ffb0b0">`)] == `<style fg="#ffb0b0">`)
}

func TestTerminalText(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	got := ansi.ReplaceAllString(term.Render(Result("mary", "parent", "susan")), "")
	assert.Equal(t, "Mary is the parent of Susan", got)

	got = ansi.ReplaceAllString(term.Render(ValidNames([]string{"mary", "alice"})), "")
	assert.Equal(t, "Valid names are: Mary, Alice", got)
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	for _, style := range []string{"terminal", "html", "plain"} {
		r, err := New(style, &buf)
		require.NoError(t, err, style)
		assert.NotNil(t, r)
	}
	_, err := New("ansi", &buf)
	assert.Error(t, err)
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, Plain{})

	require.NoError(t, p.Prompt("> "))
	require.NoError(t, p.EmitLine(FamilyHeading("susan")))
	require.NoError(t, p.EmitLine(Result("mary", "parent", "susan")))

	assert.Equal(t, "> \nFamily tree of susan:\nmary is the parent of susan\n", buf.String())
}
