package language

import (
	"strings"
	"unicode"
)

// Auto asks the voice stage to detect the language from the narration.
const Auto = "auto"

// Default is used when nothing better is known.
const Default = "en"

type entry struct {
	code2     string // ISO 639-1
	code3     string // ISO 639-2
	display   string
	words     []string
	script    *unicode.RangeTable // non-Latin script that identifies the language
	stopwords []string
}

var languages = []entry{
	{code2: "en", code3: "eng", display: "English", words: []string{"english"},
		stopwords: []string{"the", "and", "is", "you", "your", "with", "this", "that", "for", "to", "of", "it"}},
	{code2: "es", code3: "spa", display: "Spanish", words: []string{"spanish", "español"},
		stopwords: []string{"el", "la", "los", "las", "de", "que", "y", "es", "con", "para", "una", "su"}},
	{code2: "fr", code3: "fra", display: "French", words: []string{"french", "français"},
		stopwords: []string{"le", "la", "les", "des", "et", "est", "vous", "avec", "pour", "une", "dans", "votre"}},
	{code2: "de", code3: "deu", display: "German", words: []string{"german", "deutsch"},
		stopwords: []string{"der", "die", "das", "und", "ist", "mit", "für", "sie", "ein", "eine", "nicht", "ihre"}},
	{code2: "it", code3: "ita", display: "Italian", words: []string{"italian", "italiano"},
		stopwords: []string{"il", "di", "che", "e", "è", "per", "con", "una", "gli", "della", "sono", "tuo"}},
	{code2: "pt", code3: "por", display: "Portuguese", words: []string{"portuguese", "português"},
		stopwords: []string{"o", "os", "de", "que", "e", "é", "com", "para", "uma", "não", "você", "seu"}},
	{code2: "nl", code3: "nld", display: "Dutch", words: []string{"dutch", "nederlands"},
		stopwords: []string{"de", "het", "een", "en", "is", "van", "met", "voor", "je", "niet", "zijn", "jouw"}},
	{code2: "pl", code3: "pol", display: "Polish", words: []string{"polish", "polski"},
		stopwords: []string{"i", "w", "na", "jest", "się", "nie", "z", "do", "to", "że", "oraz", "twój"}},
	{code2: "tr", code3: "tur", display: "Turkish", words: []string{"turkish", "türkçe"},
		stopwords: []string{"ve", "bir", "bu", "ile", "için", "da", "de", "çok", "olan", "sizin", "daha", "gibi"}},
	{code2: "sv", code3: "swe", display: "Swedish", words: []string{"swedish", "svenska"},
		stopwords: []string{"och", "är", "att", "det", "som", "för", "med", "en", "ett", "din", "inte", "på"}},
	{code2: "da", code3: "dan", display: "Danish", words: []string{"danish", "dansk"},
		stopwords: []string{"og", "er", "at", "det", "som", "for", "med", "en", "et", "din", "ikke", "på"}},
	{code2: "nb", code3: "nob", display: "Norwegian", words: []string{"norwegian", "norsk", "no", "nor"},
		stopwords: []string{"og", "er", "å", "det", "som", "for", "med", "en", "et", "ditt", "ikke", "på"}},
	{code2: "fi", code3: "fin", display: "Finnish", words: []string{"finnish", "suomi"},
		stopwords: []string{"ja", "on", "että", "se", "ei", "kanssa", "voit", "tämä", "sinun", "myös", "kun", "ovat"}},
	{code2: "ru", code3: "rus", display: "Russian", words: []string{"russian"}, script: unicode.Cyrillic},
	{code2: "ar", code3: "ara", display: "Arabic", words: []string{"arabic"}, script: unicode.Arabic},
	{code2: "hi", code3: "hin", display: "Hindi", words: []string{"hindi"}, script: unicode.Devanagari},
	{code2: "ja", code3: "jpn", display: "Japanese", words: []string{"japanese"}, script: unicode.Hiragana},
	{code2: "ko", code3: "kor", display: "Korean", words: []string{"korean"}, script: unicode.Hangul},
	{code2: "zh", code3: "zho", display: "Chinese", words: []string{"chinese"}, script: unicode.Han},
}

var (
	byCode map[string]*entry
	byWord map[string]*entry
)

func init() {
	byCode = make(map[string]*entry, len(languages)*2)
	byWord = make(map[string]*entry, len(languages))
	for i := range languages {
		e := &languages[i]
		byCode[e.code2] = e
		byCode[e.code3] = e
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	if e, ok := byCode[code]; ok {
		return e
	}
	if e, ok := byWord[code]; ok {
		return e
	}
	// Region or script suffixes: en-US, pt_BR, zh-Hant.
	if i := strings.IndexAny(code, "-_"); i > 0 {
		return lookup(code[:i])
	}
	return nil
}

// Normalize converts a code, locale, or language name to ISO 639-1. "auto"
// passes through, unknown input returns "".
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	switch code {
	case "":
		return ""
	case Auto:
		return Auto
	}
	if e := lookup(code); e != nil {
		return e.code2
	}
	return ""
}

// Known reports whether code maps to a supported language.
func Known(code string) bool {
	n := Normalize(code)
	return n != "" && n != Auto
}

// DisplayName returns a human-readable language name for any recognized code.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if e := lookup(code); e != nil {
		return e.display
	}
	return strings.ToUpper(strings.TrimSpace(code))
}

// Detect guesses the ISO 639-1 language of text. Non-Latin scripts win by
// character share; Latin text is scored by stopword hits. Ties and empty
// input resolve to Default.
func Detect(text string) string {
	if strings.TrimSpace(text) == "" {
		return Default
	}

	letters := 0
	scripts := make(map[*entry]int)
	kana := 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hiragana, r) {
			kana++
		}
		for i := range languages {
			e := &languages[i]
			if e.script != nil && unicode.Is(e.script, r) {
				scripts[e]++
			}
		}
	}
	if letters == 0 {
		return Default
	}
	// Japanese mixes kana with Han, so any meaningful kana share means ja.
	if kana*10 >= letters {
		return "ja"
	}
	var best *entry
	for e, n := range scripts {
		if n*3 >= letters && (best == nil || n > scripts[best]) {
			best = e
		}
	}
	if best != nil {
		return best.code2
	}

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	bestScore := 0
	winner := Default
	for i := range languages {
		e := &languages[i]
		if len(e.stopwords) == 0 {
			continue
		}
		score := 0
		for _, w := range words {
			for _, s := range e.stopwords {
				if w == s {
					score++
					break
				}
			}
		}
		if score > bestScore {
			bestScore = score
			winner = e.code2
		}
	}
	return winner
}
