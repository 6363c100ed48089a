package notify

import "time"

// Language selects the message strings and date format.
type Language string

const (
	LangEnglish Language = "en-US"
	LangChinese Language = "zh-CN"
)

// ParseLanguage falls back to English for anything but zh-CN.
func ParseLanguage(s string) Language {
	if Language(s) == LangChinese {
		return LangChinese
	}
	return LangEnglish
}

type messageStrings struct {
	title string // takes the event title
	time  string
	desc  string
}

var messages = map[Language]messageStrings{
	LangEnglish: {title: "Event Reminder: %s", time: "Time", desc: "Description"},
	LangChinese: {title: "事件提醒：%s", time: "时间", desc: "描述"},
}

func stringsFor(lang Language) messageStrings {
	if m, ok := messages[lang]; ok {
		return m
	}
	return messages[LangEnglish]
}

// FormatReminder renders a reminder instant as a short local date and time,
// e.g. "1/2/2024 09:30 AM" (en-US) or "2024/1/2 09:30" (zh-CN).
func FormatReminder(lang Language, t time.Time) string {
	if lang == LangChinese {
		return t.Format("2006/1/2 15:04")
	}
	return t.Format("1/2/2006 03:04 PM")
}
