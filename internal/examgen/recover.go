package examgen

import (
	"encoding/json"
	"regexp"
	"strings"
)

// 解析中各题缺省的解析占位文本
const defaultExplanation = "暂无解析"

var (
	// 字面反斜杠 n：\n、\ n、\	n 等模型会吐出的变体
	reEscapedNewline = regexp.MustCompile(`\\[ \t]*n`)
	// 反斜杠后直接跟真实换行
	reBackslashNewline = regexp.MustCompile(`\\\r?\n`)
	// 收括号前的多余逗号
	reTrailingComma = regexp.MustCompile(`,\s*([}\]])`)
	// 未加引号的对象键
	reUnquotedKey = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	// 水平空白连跑
	reSpaceRun = regexp.MustCompile(`[ \t]{2,}`)
	// 结构符号两侧的任意空白（含换行），仅激进策略使用
	reStructuralSpace = regexp.MustCompile(`\s*([{}\[\]:,])\s*`)
)

// Recovery 把可能损坏的模型输出恢复成结构化文档。
// 修复策略按侵入程度递增排列，首个产出合法结构的策略即生效，
// 新增策略只需要追加到列表尾部
type Recovery struct {
	cfg        Config
	strategies []repairStrategy
}

type repairStrategy struct {
	name  string
	apply func(string) string
}

func NewRecovery(cfg Config) *Recovery {
	return &Recovery{
		cfg: cfg,
		strategies: []repairStrategy{
			{name: "conservative", apply: repairConservative},
			{name: "structural_ws", apply: repairStructuralWhitespace},
			{name: "char_walk", apply: repairCharWalk},
		},
	}
}

// Parse 恢复解析入口。
// 失败返回的错误种类：ErrNotPayload（明显不是 JSON 载荷）、
// ErrNoQuestions（合法 JSON 但没有题目列表）、
// UnrecoverableError（所有策略都失败，带原文片段）
func (r *Recovery) Parse(raw string) (*Document, error) {
	text := stripFences(raw)
	text = strings.TrimPrefix(text, "\uFEFF")
	text = trimLeadingControl(text)

	// HTML 之类的载荷修不出 JSON，修复只会浪费时间并产生误导性报错
	if looksLikeMarkupDocument(text) {
		return nil, ErrNotPayload
	}

	for _, s := range r.strategies {
		doc, err := parseStrict(s.apply(text))
		if err == nil {
			return doc, nil
		}
		// 结构已经合法但缺题目列表，再怎么修复也不会长出题目
		if err == ErrNoQuestions {
			return nil, ErrNoQuestions
		}
	}
	return nil, &UnrecoverableError{Snippet: snippet(raw, 200)}
}

// FallbackDocument 所有恢复手段失效后的降级占位文档，
// 保证调用方始终拿到可渲染的内容。Degraded 标记必须随行
func FallbackDocument() *Document {
	return &Document{
		Degraded: true,
		Questions: []Question{{
			ID:            1,
			Type:          TypeMultipleChoice,
			Question:      "本次出题未能生成有效内容，请确认后重试。最可能的原因是什么？",
			Options:       []string{"上传资料不清晰或内容过少", "学科与资料不匹配", "资料包含大量非文字内容", "以上均有可能"},
			CorrectAnswer: "以上均有可能",
			Explanation:   "系统未能从本次上传的资料中生成合格的题目，请核对原始资料后重新生成。",
		}},
	}
}

// stripFences 剥掉包裹载荷的代码围栏。模型会用好几种写法：
// 带语言标签、不带标签、结尾有没有换行都可能
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json\n", "```JSON\n", "```json", "```JSON", "```\n", "```"} {
		if strings.HasPrefix(s, prefix) {
			s = s[len(prefix):]
			break
		}
	}
	for _, suffix := range []string{"\n```", "```"} {
		if strings.HasSuffix(s, suffix) {
			s = s[:len(s)-len(suffix)]
			break
		}
	}
	return strings.TrimSpace(s)
}

func trimLeadingControl(s string) string {
	return strings.TrimLeftFunc(s, func(r rune) bool {
		return r < 0x20 || r == 0x7f
	})
}

func looksLikeMarkupDocument(s string) bool {
	head := strings.ToLower(strings.TrimSpace(s))
	for _, p := range []string{"<!doctype", "<html", "<?xml", "<head", "<body"} {
		if strings.HasPrefix(head, p) {
			return true
		}
	}
	return false
}

func snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// repairConservative 策略一：只做低风险清理
func repairConservative(s string) string {
	s = reEscapedNewline.ReplaceAllString(s, " ")
	s = reBackslashNewline.ReplaceAllString(s, " ")
	s = reTrailingComma.ReplaceAllString(s, "$1")
	s = reUnquotedKey.ReplaceAllString(s, `$1"$2":`)
	s = reSpaceRun.ReplaceAllString(s, " ")
	return s
}

// repairStructuralWhitespace 策略二：在策略一基础上压平结构符号
// 两侧的全部空白。会破坏字符串内部的空白，所以只在前一步失败后用
func repairStructuralWhitespace(s string) string {
	s = repairConservative(s)
	return reStructuralSpace.ReplaceAllString(s, "$1")
}

// repairCharWalk 策略三：逐字符重排。跟踪是否处于字符串内部：
// 字符串外把字面 \n 和真实换行都改写成空格；字符串内保留刻意的
// 转义序列，只把模型硬换行产生的裸换行符替换成空格
func repairCharWalk(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if c == '\n' || c == '\r' {
				b.WriteByte(' ')
				escaped = false
				continue
			}
			b.WriteByte(c)
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)
		case c == '\\' && i+1 < len(s) && s[i+1] == 'n':
			b.WriteByte(' ')
			i++
		case c == '\n' || c == '\r':
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	out := b.String()
	out = reTrailingComma.ReplaceAllString(out, "$1")
	out = reUnquotedKey.ReplaceAllString(out, `$1"$2":`)
	return out
}

// ---- 严格解析与形状归一 ----

// rawDocument 同时容纳新旧两种输出形状，解析后统一归一成 Question
type rawDocument struct {
	Questions []rawQuestion `json:"questions"`
}

type rawQuestion struct {
	ID            int             `json:"id"`
	Type          string          `json:"type"`
	Question      string          `json:"question"`
	ShortQ        string          `json:"q"` // 旧版短字段
	Options       []string        `json:"options"`
	CorrectAnswer json.RawMessage `json:"correct_answer"`
	Answer        json.RawMessage `json:"answer"` // 旧版，可能是布尔
	Explanation   string          `json:"explanation"`
}

func parseStrict(text string) (*Document, error) {
	var rd rawDocument
	if err := json.Unmarshal([]byte(text), &rd); err != nil {
		return nil, err
	}
	if len(rd.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	doc := &Document{Questions: make([]Question, 0, len(rd.Questions))}
	for i, rq := range rd.Questions {
		doc.Questions = append(doc.Questions, normalizeQuestion(i, rq))
	}
	return doc, nil
}

// normalizeQuestion 把任一形状的题目归一成规范形状：
// 顺序编号、补默认解析、布尔答案转判断题。归一在校验之前完成，
// 校验逻辑不需要再关心形状分支
func normalizeQuestion(idx int, rq rawQuestion) Question {
	q := Question{
		ID:          idx + 1,
		Type:        rq.Type,
		Question:    rq.Question,
		Options:     rq.Options,
		Explanation: rq.Explanation,
	}
	if q.Question == "" {
		q.Question = rq.ShortQ
	}
	if q.Explanation == "" {
		q.Explanation = defaultExplanation
	}

	if s, ok := decodeString(rq.CorrectAnswer); ok {
		q.CorrectAnswer = s
	} else if s, ok := decodeString(rq.Answer); ok {
		q.CorrectAnswer = s
	} else if b, ok := decodeBool(rq.CorrectAnswer); ok {
		q = applyBoolAnswer(q, b)
	} else if b, ok := decodeBool(rq.Answer); ok {
		q = applyBoolAnswer(q, b)
	}

	if q.Type == "" {
		q.Type = TypeMultipleChoice
	}
	return q
}

func applyBoolAnswer(q Question, v bool) Question {
	if len(q.Options) == 0 {
		q.Options = []string{"正确", "错误"}
	}
	if v {
		q.CorrectAnswer = "正确"
	} else {
		q.CorrectAnswer = "错误"
	}
	if q.Type == "" {
		q.Type = TypeTrueFalse
	}
	return q
}

func decodeString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func decodeBool(raw json.RawMessage) (bool, bool) {
	if len(raw) == 0 {
		return false, false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, false
	}
	return b, true
}
