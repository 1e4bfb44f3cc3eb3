package examgen

import (
	"fmt"
	"strings"
	"unicode"
)

// 三个分量各自的满分，只减不加。三项合计恰好 100，
// 可达上限就是满分，任何扣分都会体现在总分里
const (
	structuralMax = 60
	qualityMax    = 25
	domainMax     = 15
)

// 扣分值。自认错误是硬性失败信号，单次出现即低于通过线
const (
	missingFieldPenalty    = 15
	optionCountPenalty     = 10
	duplicateOptionPenalty = 10

	selfAdmissionPenalty   = 25
	visualRefPenalty       = 5
	longExplanationPenalty = 3

	answerNotInOptionsPenalty = 15
	languagePenalty           = 5
	markupPenalty             = 3
)

// Validator 对解析出的题目集合做三维打分：结构完整性、
// 内容质量红线、领域正确性启发式。纯函数，同样输入必然同样输出。
// 这些内容没有人工审核环节就直接面向学生，所以通过线定得很严。
// 没有"存在 error 即失败"的短路，完全由分数阈值驱动，
// 允许个别外观问题滑过，同时在结构问题累积时照样拦下
type Validator struct {
	cfg Config
}

func NewValidator(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// Validate 打分并给出通过判定。Errors 与 Warnings 分开返回，
// 调用方可以只记录警告而不让整批失败
func (v *Validator) Validate(questions []Question) ValidationResult {
	res := ValidationResult{
		Errors:   []string{},
		Warnings: []string{},
	}

	structural := structuralMax
	quality := qualityMax
	domain := domainMax

	for _, q := range questions {
		s, errs, warns := v.checkStructural(q)
		structural -= s
		res.Errors = append(res.Errors, errs...)
		res.Warnings = append(res.Warnings, warns...)

		s, errs, warns = v.checkQuality(q)
		quality -= s
		res.Errors = append(res.Errors, errs...)
		res.Warnings = append(res.Warnings, warns...)

		s, errs, warns = v.checkDomain(q)
		domain -= s
		res.Errors = append(res.Errors, errs...)
		res.Warnings = append(res.Warnings, warns...)
	}

	score := structural + quality + domain
	if score < 0 {
		score = 0
	}
	res.Score = score
	res.Passed = score >= v.cfg.ScoreThreshold
	return res
}

// checkStructural 结构完整性：必填字段、选项数、选项去重
func (v *Validator) checkStructural(q Question) (penalty int, errs, warns []string) {
	if strings.TrimSpace(q.Question) == "" {
		penalty += missingFieldPenalty
		errs = append(errs, tag(q, "缺少题干"))
	}
	if len(q.Options) == 0 {
		penalty += missingFieldPenalty
		errs = append(errs, tag(q, "缺少选项"))
	}
	if strings.TrimSpace(q.CorrectAnswer) == "" {
		penalty += missingFieldPenalty
		errs = append(errs, tag(q, "缺少正确答案"))
	}
	if strings.TrimSpace(q.Explanation) == "" {
		penalty += missingFieldPenalty
		errs = append(errs, tag(q, "缺少解析"))
	}

	if q.Type == TypeMultipleChoice && len(q.Options) > 0 && len(q.Options) != v.cfg.ExpectedOptionCount {
		penalty += optionCountPenalty
		errs = append(errs, tag(q, fmt.Sprintf("选项数量应为%d个，实际%d个", v.cfg.ExpectedOptionCount, len(q.Options))))
	}

	seen := make(map[string]bool, len(q.Options))
	for _, opt := range q.Options {
		if seen[opt] {
			penalty += duplicateOptionPenalty
			errs = append(errs, tag(q, fmt.Sprintf("选项重复: %s", opt)))
			break
		}
		seen[opt] = true
	}
	return penalty, errs, warns
}

// checkQuality 内容质量红线。
// 解析里自认答案有误，说明模型发现自己算错了还硬选了一个，
// 这是硬失败信号而不是文风问题，按出现次数重罚；
// 题干里的视觉指代词（图、表格等）对纯文本试卷无意义，按警告轻罚
func (v *Validator) checkQuality(q Question) (penalty int, errs, warns []string) {
	for _, phrase := range v.cfg.SelfAdmissionPhrases {
		if n := strings.Count(q.Explanation, phrase); n > 0 {
			penalty += selfAdmissionPenalty * n
			errs = append(errs, tag(q, fmt.Sprintf("解析中自认答案有误: %q 出现%d次", phrase, n)))
		}
	}

	for _, word := range v.cfg.VisualRefWords {
		if strings.Contains(q.Question, word) {
			penalty += visualRefPenalty
			warns = append(warns, tag(q, fmt.Sprintf("题干引用了不存在的视觉材料: %q", word)))
		}
	}

	if len([]rune(q.Explanation)) > v.cfg.MaxExplanationChars {
		penalty += longExplanationPenalty
		warns = append(warns, tag(q, fmt.Sprintf("解析超长（%d字，上限%d字）", len([]rune(q.Explanation)), v.cfg.MaxExplanationChars)))
	}
	return penalty, errs, warns
}

// checkDomain 领域正确性：答案必须逐字命中某个选项、
// 目标语言字符须在场（廉价的语种一致性信号）、嵌入标记的配对检查
func (v *Validator) checkDomain(q Question) (penalty int, errs, warns []string) {
	if q.CorrectAnswer != "" && len(q.Options) > 0 {
		found := false
		for _, opt := range q.Options {
			if opt == q.CorrectAnswer {
				found = true
				break
			}
		}
		if !found {
			penalty += answerNotInOptionsPenalty
			errs = append(errs, tag(q, fmt.Sprintf("正确答案 %q 不在选项中", q.CorrectAnswer)))
		}
	}

	if !containsHan(q.Question + q.Explanation) {
		penalty += languagePenalty
		warns = append(warns, tag(q, "内容不含中文字符"))
	}

	full := q.Question + strings.Join(q.Options, "") + q.Explanation
	if strings.Count(full, "$")%2 != 0 {
		penalty += markupPenalty
		warns = append(warns, tag(q, "数学标记 $ 未配对"))
	}
	if strings.Count(full, "**")%2 != 0 {
		penalty += markupPenalty
		warns = append(warns, tag(q, "加粗标记 ** 未配对"))
	}
	return penalty, errs, warns
}

// tag 给诊断信息加上题号前缀
func tag(q Question, msg string) string {
	return fmt.Sprintf("第%d题: %s", q.ID, msg)
}

func containsHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
