package examgen

import "unicode/utf8"

// EstimateUsage 传输层没报 token 数时按固定字符/Token 比率估算，
// 字符按 rune 计，记录会打上估算标记供下游区分
func EstimateUsage(promptText, completionText string, charsPerToken int) RawUsage {
	if charsPerToken <= 0 {
		charsPerToken = 4
	}
	return RawUsage{
		PromptTokens:     (utf8.RuneCountInString(promptText) + charsPerToken - 1) / charsPerToken,
		CompletionTokens: (utf8.RuneCountInString(completionText) + charsPerToken - 1) / charsPerToken,
		Estimated:        true,
	}
}

// Fold 把原始用量记录折算成累计记录。
// 单价在求和之前逐条应用：就算将来支持尝试间换价表，
// 成本也是按每次尝试各自结算再相加，而不是拿总 token 数乘单价
func Fold(records []RawUsage, price PriceTable) UsageRecord {
	var out UsageRecord
	for _, r := range records {
		out.PromptTokens += r.PromptTokens
		out.CompletionTokens += r.CompletionTokens
		out.InputCost += float64(r.PromptTokens) * price.InputPerMillion / 1e6
		out.OutputCost += float64(r.CompletionTokens) * price.OutputPerMillion / 1e6
		out.Attempts++
		if r.Estimated {
			out.Estimated = true
		}
	}
	out.TotalTokens = out.PromptTokens + out.CompletionTokens
	out.TotalCost = out.InputCost + out.OutputCost
	return out
}

// Merge 累计记录的逐字段相加，满足结合律：
// Merge(Fold([a]), Fold([b])) == Fold([a, b])
func Merge(a, b UsageRecord) UsageRecord {
	out := UsageRecord{
		PromptTokens:     a.PromptTokens + b.PromptTokens,
		CompletionTokens: a.CompletionTokens + b.CompletionTokens,
		InputCost:        a.InputCost + b.InputCost,
		OutputCost:       a.OutputCost + b.OutputCost,
		Attempts:         a.Attempts + b.Attempts,
		Estimated:        a.Estimated || b.Estimated,
	}
	out.TotalTokens = out.PromptTokens + out.CompletionTokens
	out.TotalCost = out.InputCost + out.OutputCost
	return out
}
