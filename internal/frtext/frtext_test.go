package frtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	t.Run("collapses spaces and tabs", func(t *testing.T) {
		assert.Equal(t, "un deux trois", NormalizeText("un \t deux\t\ttrois"))
	})

	t.Run("converts CRLF and squeezes blank lines", func(t *testing.T) {
		in := "ligne une\r\n\r\n\r\n\r\nligne deux\r"
		assert.Equal(t, "ligne une\n\nligne deux", NormalizeText(in))
	})

	t.Run("trims outer whitespace", func(t *testing.T) {
		assert.Equal(t, "texte", NormalizeText("  texte \n"))
	})
}

func TestNormalizeKey(t *testing.T) {
	t.Run("strips diacritics and lowercases", func(t *testing.T) {
		assert.Equal(t, "helene dupre, nee a orleans", NormalizeKey("Hélène DUPRÉ, née à Orléans"))
	})

	t.Run("same key for accented and plain spellings", func(t *testing.T) {
		assert.Equal(t, NormalizeKey("Succession très complexe"), NormalizeKey("succession tres complexe"))
	})
}

func TestCleanName(t *testing.T) {
	t.Run("keeps only ascii word tokens", func(t *testing.T) {
		assert.Equal(t, "jean pierre moreau", CleanName("Jean-Pierre MOREAU"))
	})

	t.Run("empty when no letters survive", func(t *testing.T) {
		assert.Equal(t, "", CleanName("--- !!!"))
	})
}

func TestTokens(t *testing.T) {
	t.Run("drops one character tokens", func(t *testing.T) {
		assert.Equal(t, []string{"la", "succession", "de", "madame"}, Tokens("la succession de Madame X"))
	})
}

func TestJaccard(t *testing.T) {
	t.Run("identical texts score one", func(t *testing.T) {
		text := "Le défunt laisse deux enfants et une maison à Lyon."
		assert.InDelta(t, 1.0, Jaccard(text, text, 3), 1e-9)
	})

	t.Run("disjoint texts score zero", func(t *testing.T) {
		left := "une donation consentie en deux mille douze"
		right := "le contrat souscrit couvre plusieurs enfants mineurs"
		assert.Equal(t, 0.0, Jaccard(left, right, 3))
	})

	t.Run("empty side scores zero", func(t *testing.T) {
		assert.Equal(t, 0.0, Jaccard("", "quelques mots utiles ici", 3))
	})

	t.Run("short texts fall back to token overlap", func(t *testing.T) {
		got := Jaccard("maison lyon", "maison paris", 3)
		assert.InDelta(t, 1.0/3.0, got, 1e-9)
	})

	t.Run("accent differences do not lower the score", func(t *testing.T) {
		left := "l'héritier réserve sa décision sur la quotité disponible"
		right := "l'heritier reserve sa decision sur la quotite disponible"
		assert.InDelta(t, 1.0, Jaccard(left, right, 3), 1e-9)
	})
}
