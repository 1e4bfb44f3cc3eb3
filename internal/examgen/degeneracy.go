package examgen

import (
	"strings"
	"unicode/utf8"
)

// DegeneracyDetector 在解析之前识别病态输出：失控的超长生成、
// 短语级复读。解析几兆字节的退化文本本身就又慢又危险，
// 所以这一步必须最先跑
type DegeneracyDetector struct {
	cfg Config
}

func NewDegeneracyDetector(cfg Config) *DegeneracyDetector {
	return &DegeneracyDetector{cfg: cfg}
}

// IsDegenerate 纯函数，任一检查命中即判退化。长度按字符（rune）计
func (d *DegeneracyDetector) IsDegenerate(text string) bool {
	if utf8.RuneCountInString(text) > d.cfg.MaxOutputChars {
		return true
	}
	if hasConsecutiveRepetition(text, d.cfg.RepetitionMinLen, d.cfg.RepetitionMinCount) {
		return true
	}
	for _, phrase := range d.cfg.LoopPhrases {
		if phrase == "" {
			continue
		}
		if strings.Count(text, phrase) > d.cfg.LoopPhraseThreshold {
			return true
		}
	}
	return false
}

// hasConsecutiveRepetition 检查是否存在长度 >= minLen 的片段
// 连续重复 >= minCount 次。Go 的 regexp 不支持反向引用，
// 这里按周期逐一扫描：若 text[i] == text[i-p] 的连续匹配长度达到
// p*(minCount-1)，则存在周期 p 的片段连续出现 minCount 次。
// 周期上限由文本长度决定（p*minCount <= n），任意长的复读单元
// 都在扫描范围内；长度检查在前，n 被 MaxOutputChars 封顶。
// 追加更多重复只会让匹配更长，检测结果单调不回退
func hasConsecutiveRepetition(text string, minLen, minCount int) bool {
	if minLen <= 0 || minCount <= 1 {
		return false
	}
	r := []rune(text)
	n := len(r)
	for p := minLen; p*minCount <= n; p++ {
		need := p * (minCount - 1)
		streak := 0
		for i := p; i < n; i++ {
			if r[i] == r[i-p] {
				streak++
				if streak >= need {
					return true
				}
			} else {
				streak = 0
			}
		}
	}
	return false
}
