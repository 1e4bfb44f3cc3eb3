package examgen

import (
	"reflect"
	"strings"
	"testing"
)

func goodQuestion(id int) Question {
	return Question{
		ID:            id,
		Type:          TypeMultipleChoice,
		Question:      "植物进行光合作用的主要场所是？",
		Options:       []string{"叶绿体", "线粒体", "细胞壁", "液泡"},
		CorrectAnswer: "叶绿体",
		Explanation:   "叶绿体中含有叶绿素，是光合作用的主要场所。",
	}
}

func TestValidatePerfectDocument(t *testing.T) {
	v := NewValidator(DefaultConfig())
	res := v.Validate([]Question{goodQuestion(1), goodQuestion(2), goodQuestion(3)})

	if res.Score != 100 {
		t.Fatalf("expected score 100, got %d", res.Score)
	}
	if !res.Passed {
		t.Fatalf("perfect document should pass")
	}
	if len(res.Errors) != 0 || len(res.Warnings) != 0 {
		t.Fatalf("unexpected diagnostics: %v / %v", res.Errors, res.Warnings)
	}
}

func TestValidateDeterministic(t *testing.T) {
	v := NewValidator(DefaultConfig())
	qs := []Question{goodQuestion(1)}
	bad := goodQuestion(2)
	bad.CorrectAnswer = "细胞核"
	bad.Question = "如图所示，光合作用发生在哪里？"
	qs = append(qs, bad)

	first := v.Validate(qs)
	for i := 0; i < 10; i++ {
		again := v.Validate(qs)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d diverged:\n%+v\n%+v", i, first, again)
		}
	}
}

func TestValidateSelfAdmission(t *testing.T) {
	v := NewValidator(DefaultConfig())

	one := goodQuestion(1)
	one.Explanation = "这里选择了最接近的答案，叶绿体是光合作用的场所。"
	res := v.Validate([]Question{one, goodQuestion(2)})
	if res.Passed {
		t.Fatalf("self admission is a hard failure signal, score=%d", res.Score)
	}
	if res.Score != 100-selfAdmissionPenalty {
		t.Fatalf("expected %d, got %d", 100-selfAdmissionPenalty, res.Score)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", res.Errors)
	}

	// 多次出现继续压低分数
	two := goodQuestion(2)
	two.Explanation = "虽然答案不完全正确，但这是最接近的选项。"
	res = v.Validate([]Question{one, two})
	if res.Passed || res.Score >= v.cfg.ScoreThreshold {
		t.Fatalf("repeated self admissions must stay below threshold, score=%d", res.Score)
	}
}

func TestValidateAnswerNotInOptions(t *testing.T) {
	v := NewValidator(DefaultConfig())
	q := goodQuestion(1)
	q.CorrectAnswer = "细胞核"

	res := v.Validate([]Question{q})
	found := false
	for _, e := range res.Errors {
		if strings.Contains(e, "不在选项中") && strings.HasPrefix(e, "第1题") {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing answer-not-in-options error: %v", res.Errors)
	}
	// 硬性不变量被破坏，扣分必须落到总分上并导致不通过
	if res.Score != 100-answerNotInOptionsPenalty {
		t.Fatalf("expected %d, got %d", 100-answerNotInOptionsPenalty, res.Score)
	}
	if res.Passed {
		t.Fatalf("answer outside options must not pass, score=%d", res.Score)
	}
}

func TestValidateStructuralFailures(t *testing.T) {
	v := NewValidator(DefaultConfig())

	broken := Question{ID: 1, Type: TypeMultipleChoice}
	res := v.Validate([]Question{broken})
	if res.Passed {
		t.Fatalf("empty question must fail, score=%d", res.Score)
	}
	if res.Score < 0 {
		t.Fatalf("score must be clamped at 0, got %d", res.Score)
	}

	dup := goodQuestion(1)
	dup.Options = []string{"叶绿体", "叶绿体", "细胞壁", "液泡"}
	res = v.Validate([]Question{dup})
	found := false
	for _, e := range res.Errors {
		if strings.Contains(e, "选项重复") {
			found = true
		}
	}
	if !found {
		t.Fatalf("duplicate option not reported: %v", res.Errors)
	}

	short := goodQuestion(1)
	short.Options = []string{"叶绿体", "线粒体"}
	res = v.Validate([]Question{short})
	found = false
	for _, e := range res.Errors {
		if strings.Contains(e, "选项数量") {
			found = true
		}
	}
	if !found {
		t.Fatalf("option count not reported: %v", res.Errors)
	}
}

func TestValidateVisualReferenceWarning(t *testing.T) {
	v := NewValidator(DefaultConfig())
	q := goodQuestion(1)
	q.Question = "如图所示，植物进行光合作用的主要场所是？"

	res := v.Validate([]Question{q})
	if !res.Passed {
		t.Fatalf("visual reference alone should not fail, score=%d", res.Score)
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("expected a warning for visual reference")
	}
	if len(res.Errors) != 0 {
		t.Fatalf("visual reference must be a warning, not an error: %v", res.Errors)
	}
}

func TestValidateUnpairedMarkup(t *testing.T) {
	v := NewValidator(DefaultConfig())
	q := goodQuestion(1)
	q.Question = "计算 $x^2 + 1 的值"

	res := v.Validate([]Question{q})
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "未配对") {
			found = true
		}
	}
	if !found {
		t.Fatalf("unpaired markup not reported: %v", res.Warnings)
	}
}

func TestValidateLanguageMismatch(t *testing.T) {
	v := NewValidator(DefaultConfig())
	q := Question{
		ID:            1,
		Type:          TypeMultipleChoice,
		Question:      "What is the powerhouse of the cell?",
		Options:       []string{"Chloroplast", "Mitochondria", "Nucleus", "Ribosome"},
		CorrectAnswer: "Mitochondria",
		Explanation:   "The mitochondria produces ATP.",
	}
	res := v.Validate([]Question{q})
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "不含中文") {
			found = true
		}
	}
	if !found {
		t.Fatalf("language mismatch not reported: %v", res.Warnings)
	}
}
