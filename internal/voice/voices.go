package voice

import (
	"strings"

	"golang.org/x/text/language"
)

// Genders accepted in VoiceSettings.Gender.
const (
	GenderFemale = "female"
	GenderMale   = "male"
)

type edgePair struct {
	locale string
	male   string
	female string
}

// edgeVoices lists one neural voice pair per locale. Order matters: the
// first entry is the English default.
var edgeVoices = []edgePair{
	{"en-US", "en-US-GuyNeural", "en-US-AriaNeural"},
	{"es-ES", "es-ES-AlvaroNeural", "es-ES-ElviraNeural"},
	{"fr-FR", "fr-FR-HenriNeural", "fr-FR-DeniseNeural"},
	{"de-DE", "de-DE-ConradNeural", "de-DE-KatjaNeural"},
	{"it-IT", "it-IT-DiegoNeural", "it-IT-ElsaNeural"},
	{"pt-BR", "pt-BR-AntonioNeural", "pt-BR-FranciscaNeural"},
	{"ru-RU", "ru-RU-DmitryNeural", "ru-RU-SvetlanaNeural"},
	{"ja-JP", "ja-JP-KeitaNeural", "ja-JP-NanamiNeural"},
	{"ko-KR", "ko-KR-InJoonNeural", "ko-KR-SunHiNeural"},
	{"zh-CN", "zh-CN-YunxiNeural", "zh-CN-XiaoxiaoNeural"},
	{"zh-TW", "zh-TW-YunJheNeural", "zh-TW-HsiaoChenNeural"},
	{"ar-SA", "ar-SA-HamedNeural", "ar-SA-ZariyahNeural"},
	{"hi-IN", "hi-IN-MadhurNeural", "hi-IN-SwaraNeural"},
	{"nl-NL", "nl-NL-MaartenNeural", "nl-NL-ColetteNeural"},
	{"pl-PL", "pl-PL-MarekNeural", "pl-PL-ZofiaNeural"},
	{"tr-TR", "tr-TR-AhmetNeural", "tr-TR-EmelNeural"},
	{"sv-SE", "sv-SE-MattiasNeural", "sv-SE-SofieNeural"},
	{"da-DK", "da-DK-JeppeNeural", "da-DK-ChristelNeural"},
	{"nb-NO", "nb-NO-FinnNeural", "nb-NO-PernilleNeural"},
	{"fi-FI", "fi-FI-HarriNeural", "fi-FI-NooraNeural"},
}

func edgeLocales() []language.Tag {
	tags := make([]language.Tag, len(edgeVoices))
	for i, pair := range edgeVoices {
		tags[i] = language.MustParse(pair.locale)
	}
	return tags
}

func (p edgePair) voice(gender string) string {
	if normalizeGender(gender) == GenderMale {
		return p.male
	}
	return p.female
}

// EdgeVoice returns the Edge voice for a locale index and gender.
func EdgeVoice(locale, gender string) (string, bool) {
	for _, pair := range edgeVoices {
		if strings.EqualFold(pair.locale, locale) {
			return pair.voice(gender), true
		}
	}
	return "", false
}

// kokoroVoices maps short ids to model voice names.
var kokoroVoices = map[string]string{
	"af": "af_bella",
	"am": "am_adam",
	"bf": "bf_emma",
	"bm": "bm_george",
}

func kokoroVoice(requested, gender string) string {
	if name, ok := kokoroVoices[strings.ToLower(strings.TrimSpace(requested))]; ok {
		return name
	}
	for _, name := range kokoroVoices {
		if strings.EqualFold(name, requested) {
			return name
		}
	}
	if normalizeGender(gender) == GenderMale {
		return kokoroVoices["am"]
	}
	return kokoroVoices["af"]
}

func normalizeGender(gender string) string {
	if strings.EqualFold(strings.TrimSpace(gender), GenderMale) {
		return GenderMale
	}
	return GenderFemale
}
