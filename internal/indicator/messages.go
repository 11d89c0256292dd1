package indicator

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
	localeArabic  locale = "ar"
)

type messages struct {
	listening string
	reciting  string
	completed string
	cancelled string
	heard     string
	errorText string
}

func indicatorMessagesFor(configured string) messages {
	if strings.TrimSpace(configured) == "" {
		configured = os.Getenv("LANG")
	}
	return indicatorMessages(resolveLocale(configured))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "ar") {
		return localeArabic
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeArabic:
		return messages{
			listening: "استمع إلى الحديث…",
			reciting:  "ابدأ التسميع…",
			completed: "اكتمل التسميع",
			cancelled: "أُلغي التسميع",
			heard:     "سُمع",
			errorText: "خطأ في التعرف على الكلام",
		}
	case localeEnglish:
		fallthrough
	default:
		return messages{
			listening: "Listening to the hadith…",
			reciting:  "Recite now…",
			completed: "Recitation complete",
			cancelled: "Recitation cancelled",
			heard:     "heard",
			errorText: "Speech recognition error",
		}
	}
}
