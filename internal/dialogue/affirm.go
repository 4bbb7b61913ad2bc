package dialogue

import "strings"

// Verdict 是/否分类结论
type Verdict string

const (
	VerdictAffirmative Verdict = "affirmative"
	VerdictNegative    Verdict = "negative"
	VerdictUnclear     Verdict = "unclear"
)

// 肯定/否定短语表（西语 + 英语）
// 显式枚举而非随手的子串匹配，整表可被单元测试直接覆盖；
// 两表都未命中的回复交给模型分类兜底，兜底也不确定时重新追问
var affirmativePhrases = []string{
	"sí", "si", "claro", "dale", "por supuesto", "está bien", "esta bien",
	"de acuerdo", "agrégalo", "agregalo", "añádelo", "anadelo", "hazlo",
	"me lo llevo", "lo quiero", "adelante", "confirmo", "vale",
	"yes", "yeah", "yep", "sure", "ok", "okay", "of course", "go ahead",
	"do it", "add it", "sounds good", "confirm", "absolutely",
}

var negativePhrases = []string{
	"no", "mejor no", "no gracias", "todavía no", "todavia no", "aún no",
	"aun no", "olvídalo", "olvidalo", "déjalo", "dejalo", "no quiero",
	"nope", "nah", "not now", "don't", "dont", "better not", "no thanks",
}

// 取消词在任何阶段都生效，整个流程直接终止
var cancelPhrases = []string{
	"cancelar", "cancela", "cancelo", "salir del proceso",
	"cancel", "quit", "abort", "never mind", "nevermind",
}

// ClassifyReply 容错的是/否识别
// 先整句匹配，再按短语包含匹配；长短语优先级隐含在先整句后包含的顺序里
func ClassifyReply(text string) Verdict {
	normalized := normalize(text)
	if normalized == "" {
		return VerdictUnclear
	}

	for _, phrase := range affirmativePhrases {
		if normalized == phrase {
			return VerdictAffirmative
		}
	}
	for _, phrase := range negativePhrases {
		if normalized == phrase {
			return VerdictNegative
		}
	}

	// 否定先于肯定：'mejor no lo agregues' 同时含 'no' 和 'agrégalo' 词干时
	// 应判为否定
	for _, phrase := range negativePhrases {
		if containsPhrase(normalized, phrase) {
			return VerdictNegative
		}
	}
	for _, phrase := range affirmativePhrases {
		if containsPhrase(normalized, phrase) {
			return VerdictAffirmative
		}
	}

	return VerdictUnclear
}

// IsCancel 判断是否为显式取消
func IsCancel(text string) bool {
	normalized := normalize(text)
	for _, phrase := range cancelPhrases {
		if normalized == phrase || containsPhrase(normalized, phrase) {
			return true
		}
	}
	return false
}

// normalize 小写并去掉标点
func normalize(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(text)) {
		switch r {
		case '.', ',', '!', '?', '¡', '¿', ';', ':':
			// 丢弃标点
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// containsPhrase 按词边界匹配短语，避免 'no' 命中 'know' 这类误判
func containsPhrase(text, phrase string) bool {
	if !strings.Contains(text, phrase) {
		return false
	}

	words := strings.Fields(text)
	phraseWords := strings.Fields(phrase)
	if len(phraseWords) == 0 {
		return false
	}

	for i := 0; i+len(phraseWords) <= len(words); i++ {
		match := true
		for j, pw := range phraseWords {
			if words[i+j] != pw {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
