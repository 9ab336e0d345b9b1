package app

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold lower-cases and strips accents and surrounding punctuation so "Não!" == "nao".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.ToLower(strings.TrimSpace(out))
	return strings.TrimFunc(out, func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSpace(r) })
}

func words(folded string) []string {
	return strings.FieldsFunc(folded, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
}

var affirmativeWords = map[string]bool{
	"sim": true, "s": true, "yes": true, "claro": true, "ok": true, "okay": true,
	"isso": true, "positivo": true, "afirmativo": true, "pode": true, "bora": true, "vamos": true,
}

var negativeWords = map[string]bool{
	"nao": true, "n": true, "no": true, "negativo": true, "nunca": true, "nenhum": true, "nenhuma": true, "nada": true,
}

// IsAffirmative reports whether a free text reply agrees ("Sim!", "ok pode mandar").
func IsAffirmative(text string) bool {
	yes, known := parseYesNo(text)
	return known && yes
}

// parseYesNo inspects the first word, then any word, so "sim, tive" and "acho que não" both parse.
func parseYesNo(text string) (yes bool, known bool) {
	ws := words(fold(text))
	if len(ws) == 0 {
		return false, false
	}
	if affirmativeWords[ws[0]] {
		return true, true
	}
	if negativeWords[ws[0]] {
		return false, true
	}
	for _, w := range ws[1:] {
		if negativeWords[w] {
			return false, true
		}
	}
	for _, w := range ws[1:] {
		if affirmativeWords[w] {
			return true, true
		}
	}
	return false, false
}

var numberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// firstNumber extracts the first decimal in text, accepting a comma separator.
func firstNumber(text string) (float64, bool) {
	m := numberPattern.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// containsAny reports whether any keyword occurs in the folded text.
func containsAny(folded string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(folded, k) {
			return true
		}
	}
	return false
}
