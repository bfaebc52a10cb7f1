package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/danielbwilkinson/jargon-rag/internal/domain"
)

func TestParseLinks(t *testing.T) {
	t.Run("targets before alias and heading", func(t *testing.T) {
		links := ParseLinks("See [[Alpha]] and [[Beta|shown as B]] and [[Gamma#Section]]")
		assert.Equal(t, []string{"Alpha", "Beta", "Gamma"}, links)
	})

	t.Run("image embed contributes nothing", func(t *testing.T) {
		assert.Empty(t, ParseLinks("![[image.png]]"))
	})

	t.Run("links inside fenced code are ignored", func(t *testing.T) {
		text := "before\n```\n[[Link]]\n```\n~~~python\nx = [[Other]]\n~~~\nafter [[Real]]"
		assert.Equal(t, []string{"Real"}, ParseLinks(text))
	})

	t.Run("empty targets are dropped", func(t *testing.T) {
		assert.Empty(t, ParseLinks("[[]] [[#Heading]] [[|alias]]"))
	})

	t.Run("escaped pipe inside tables", func(t *testing.T) {
		assert.Equal(t, []string{"Nmap"}, ParseLinks(`| [[Nmap\|nmap]] | scanner |`))
	})

	t.Run("duplicates are kept", func(t *testing.T) {
		assert.Equal(t, []string{"A", "A"}, ParseLinks("[[A]] then [[A#x]]"))
	})
}

func TestParseSearchTags(t *testing.T) {
	text := "Primary Categories: [[Web]]\nSearch Tags: #sqli #injection  #web app\nbody"
	assert.Equal(t, []string{"sqli", "injection", "web app"}, ParseSearchTags(text))

	assert.Nil(t, ParseSearchTags("no tags here"))
	assert.Nil(t, ParseSearchTags("Search Tags: none"))
}

func TestCleanText(t *testing.T) {
	text := "Primary Categories: [[Active Directory]]\nSecondary Categories: [[Kerberos]]\nSearch Tags: #kerberos\n\nRequest TGS tickets for SPNs."

	cleaned := CleanText("Kerberoasting", text)

	assert.Equal(t, "# Kerberoasting\n\nRequest TGS tickets for SPNs.", cleaned)
}

func TestParse(t *testing.T) {
	content := []byte("---\ntags: [ad, \"#windows\"]\n---\nPrimary Categories: [[Active Directory]]\nSearch Tags: #kerberos #ad\nUse [[Rubeus]] to roast.\n")

	doc := Parse("Kerberoasting", domain.NoteTypeContent, content)

	assert.Equal(t, "Kerberoasting", doc.Title)
	assert.Equal(t, domain.NoteTypeContent, doc.Type)
	assert.Equal(t, string(content), doc.OriginalText)
	assert.Equal(t, "# Kerberoasting\nUse [[Rubeus]] to roast.\n", doc.Text)
	assert.Equal(t, []string{"kerberos", "ad", "windows"}, doc.SearchTags)
	assert.Equal(t, []string{"Active Directory", "Rubeus"}, doc.Links)
}

func TestParse_InvalidFrontmatterKeptAsBody(t *testing.T) {
	content := []byte("---\ntags: [unclosed\n---\nbody")

	doc := Parse("Broken", domain.NoteTypePrimary, content)

	assert.Equal(t, "# Broken\n"+string(content), doc.Text)
	assert.Empty(t, doc.SearchTags)
}
