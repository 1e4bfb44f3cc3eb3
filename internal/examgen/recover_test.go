package examgen

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func newTestRecovery() *Recovery {
	return NewRecovery(DefaultConfig())
}

func TestParseFencedPayload(t *testing.T) {
	raw := "```json\n" + `{"questions":[{"id":1,"type":"multiple_choice","question":"2+2等于几？","options":["3","4","5","6"],"correct_answer":"4","explanation":"基础加法运算。"}]}` + "\n```"

	doc, err := newTestRecovery().Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(doc.Questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(doc.Questions))
	}
	q := doc.Questions[0]
	if q.Question != "2+2等于几？" || q.CorrectAnswer != "4" {
		t.Fatalf("unexpected question content: %+v", q)
	}
	if doc.Degraded {
		t.Fatalf("recovered document must not be degraded")
	}
}

func TestParseFenceVariants(t *testing.T) {
	payload := `{"questions":[{"question":"水的化学式是什么？","options":["H2O","CO2","O2","N2"],"correct_answer":"H2O","explanation":"水由两个氢原子和一个氧原子构成。"}]}`
	for _, raw := range []string{
		payload,
		"```json" + payload + "```",
		"```\n" + payload + "\n```",
		"  \n```JSON\n" + payload + "\n```  ",
	} {
		if _, err := newTestRecovery().Parse(raw); err != nil {
			t.Fatalf("fence variant failed: %v\nraw: %s", err, raw)
		}
	}
}

func TestParseTrailingCommasAndUnquotedKeys(t *testing.T) {
	raw := `{questions: [{id: 1, question: "地球有几个天然卫星？", options: ["0个", "1个", "2个", "3个",], correct_answer: "1个", explanation: "月球是地球唯一的天然卫星。",},]}`

	doc, err := newTestRecovery().Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if doc.Questions[0].CorrectAnswer != "1个" {
		t.Fatalf("unexpected answer: %q", doc.Questions[0].CorrectAnswer)
	}
}

func TestParseLiteralEscapedNewlines(t *testing.T) {
	// 字面反斜杠 n 串进了结构空白里
	raw := `{\n "questions": [\n {"id": 1, "question": "一年有几个季节？", "options": ["两个", "三个", "四个", "五个"], "correct_answer": "四个", "explanation": "春夏秋冬四季。"}\n ]\n}`

	doc, err := newTestRecovery().Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if doc.Questions[0].CorrectAnswer != "四个" {
		t.Fatalf("unexpected answer: %q", doc.Questions[0].CorrectAnswer)
	}
}

func TestParseHardWrappedString(t *testing.T) {
	// 字符串值内部被硬换行截断，只有逐字符策略能修
	raw := "{\"questions\":[{\"id\":1,\"question\":\"下列哪项属于可再生能源\n请选择最合适的一项？\",\"options\":[\"煤炭\",\"石油\",\"太阳能\",\"天然气\"],\"correct_answer\":\"太阳能\",\"explanation\":\"太阳能取之不尽\n属于可再生能源。\"}]}"

	doc, err := newTestRecovery().Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if strings.Contains(doc.Questions[0].Question, "\n") {
		t.Fatalf("hard newline survived recovery: %q", doc.Questions[0].Question)
	}
	if doc.Questions[0].CorrectAnswer != "太阳能" {
		t.Fatalf("unexpected answer: %q", doc.Questions[0].CorrectAnswer)
	}
}

func TestParseRejectsMarkup(t *testing.T) {
	for _, raw := range []string{
		"<!DOCTYPE html><html><body>502 Bad Gateway</body></html>",
		"<html><head><title>Error</title></head></html>",
	} {
		_, err := newTestRecovery().Parse(raw)
		if !errors.Is(err, ErrNotPayload) {
			t.Fatalf("expected ErrNotPayload, got %v", err)
		}
	}
}

func TestParseNoQuestions(t *testing.T) {
	_, err := newTestRecovery().Parse(`{"questions": []}`)
	if !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
	_, err = newTestRecovery().Parse(`{"message": "好的，我明白了"}`)
	if !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions for missing list, got %v", err)
	}
}

func TestParseUnrecoverableSnippet(t *testing.T) {
	raw := strings.Repeat("这不是任何意义上的结构化数据", 100)
	_, err := newTestRecovery().Parse(raw)

	var ue *UnrecoverableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnrecoverableError, got %v", err)
	}
	if n := len([]rune(ue.Snippet)); n > 200 {
		t.Fatalf("snippet too long: %d runes", n)
	}
	if !strings.HasPrefix(raw, ue.Snippet) {
		t.Fatalf("snippet is not a prefix of the original text")
	}
}

func TestParseLegacyShape(t *testing.T) {
	raw := `{"questions":[{"q":"地球是太阳系中最大的行星。","answer":false},{"q":"光速比声速快。","answer":true}]}`

	doc, err := newTestRecovery().Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(doc.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(doc.Questions))
	}

	q := doc.Questions[0]
	if q.ID != 1 || doc.Questions[1].ID != 2 {
		t.Fatalf("ids not sequential: %d, %d", q.ID, doc.Questions[1].ID)
	}
	if q.Type != TypeTrueFalse {
		t.Fatalf("expected true_false, got %q", q.Type)
	}
	if q.Question != "地球是太阳系中最大的行星。" {
		t.Fatalf("legacy q field not promoted: %q", q.Question)
	}
	if q.CorrectAnswer != "错误" || doc.Questions[1].CorrectAnswer != "正确" {
		t.Fatalf("boolean answers not normalized: %q / %q", q.CorrectAnswer, doc.Questions[1].CorrectAnswer)
	}
	if len(q.Options) != 2 || q.Options[0] != "正确" || q.Options[1] != "错误" {
		t.Fatalf("default options missing: %v", q.Options)
	}
	if q.Explanation != "暂无解析" {
		t.Fatalf("default explanation missing: %q", q.Explanation)
	}
}

func TestParseIDsAlwaysSequential(t *testing.T) {
	raw := `{"questions":[{"id":7,"question":"甲","options":["a","b"],"correct_answer":"a","explanation":"x"},{"id":7,"question":"乙","options":["a","b"],"correct_answer":"b","explanation":"y"}]}`

	doc, err := newTestRecovery().Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	for i, q := range doc.Questions {
		if q.ID != i+1 {
			t.Fatalf("question %d has id %d", i, q.ID)
		}
	}
}

func TestFallbackDocument(t *testing.T) {
	doc := FallbackDocument()
	if !doc.Degraded {
		t.Fatalf("fallback must carry the degraded flag")
	}
	if len(doc.Questions) == 0 {
		t.Fatalf("fallback must still be renderable")
	}
	q := doc.Questions[0]
	found := false
	for _, opt := range q.Options {
		if opt == q.CorrectAnswer {
			found = true
		}
	}
	if !found {
		t.Fatalf("fallback answer %q not among options %v", q.CorrectAnswer, q.Options)
	}
}

func TestParseRoundTrip(t *testing.T) {
	orig := &Document{Questions: []Question{
		{
			ID:            1,
			Type:          "multiple_choice",
			Question:      "光合作用发生在细胞的哪个结构中？",
			Options:       []string{"叶绿体", "线粒体", "细胞核", "核糖体"},
			CorrectAnswer: "叶绿体",
			Explanation:   "光合作用的场所是叶绿体。",
		},
		{
			ID:            2,
			Type:          "true_false",
			Question:      "线粒体是细胞的能量工厂。",
			Options:       []string{"正确", "错误"},
			CorrectAnswer: "正确",
			Explanation:   "线粒体通过呼吸作用供能。",
		},
	}}

	raw, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	doc, err := newTestRecovery().Parse(string(raw))
	if err != nil {
		t.Fatalf("Parse failed on serialized document: %v", err)
	}
	if !reflect.DeepEqual(doc.Questions, orig.Questions) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", doc.Questions, orig.Questions)
	}
}

func TestParseStripsLeadingBOM(t *testing.T) {
	raw := "\uFEFF" + `{"questions":[{"id":1,"type":"multiple_choice","question":"水的化学式？","options":["H2O","CO2","O2","N2"],"correct_answer":"H2O","explanation":"水由氢氧构成。"}]}`

	doc, err := newTestRecovery().Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed on BOM prefixed payload: %v", err)
	}
	if len(doc.Questions) != 1 || doc.Questions[0].CorrectAnswer != "H2O" {
		t.Fatalf("unexpected document: %+v", doc.Questions)
	}
}
