package examgen

import (
	"strings"
	"testing"
)

// distinctRunes 生成 n 个互不相同的汉字，既不触发重复检测
// 也能区分字节长度与字符长度
func distinctRunes(n int) string {
	r := make([]rune, n)
	for i := range r {
		r[i] = rune(0x4E00 + i)
	}
	return string(r)
}

func TestIsDegenerateLengthLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxOutputChars = 100
	d := NewDegeneracyDetector(cfg)

	// 长度按字符计，100 个汉字的字节数远超 100
	if d.IsDegenerate(distinctRunes(100)) {
		t.Fatalf("exactly at limit should not be degenerate")
	}
	if !d.IsDegenerate(distinctRunes(101)) {
		t.Fatalf("over limit should be degenerate")
	}
}

func TestIsDegenerateLongUnitRepetition(t *testing.T) {
	d := NewDegeneracyDetector(DefaultConfig())

	// 125 个互不相同字符组成的长单元，重复单元不设周期上限
	unit := distinctRunes(125)
	if !d.IsDegenerate(strings.Repeat(unit, 6)) {
		t.Fatalf("long unit repeated x6 should be degenerate")
	}
	if d.IsDegenerate(strings.Repeat(unit, 2)) {
		t.Fatalf("two repetitions should not be degenerate")
	}
}

func TestIsDegenerateConsecutiveRepetition(t *testing.T) {
	cfg := DefaultConfig()
	d := NewDegeneracyDetector(cfg)

	// 25 个字符的片段连续重复 6 次
	phrase := "这道题的正确答案是选项Ａ因为选项Ａ正确无误。"
	if len([]rune(phrase)) < cfg.RepetitionMinLen {
		t.Fatalf("test phrase shorter than RepetitionMinLen")
	}
	text := "前置内容。" + strings.Repeat(phrase, 6) + "后置内容。"
	if !d.IsDegenerate(text) {
		t.Fatalf("repeated phrase x6 should be degenerate")
	}

	if d.IsDegenerate("前置内容。" + strings.Repeat(phrase, 2) + "后置内容。") {
		t.Fatalf("two repetitions should not be degenerate")
	}
}

func TestIsDegenerateMonotonic(t *testing.T) {
	cfg := DefaultConfig()
	d := NewDegeneracyDetector(cfg)

	phrase := "重复片段重复片段重复片段重复片段重复片段"
	base := strings.Repeat(phrase, cfg.RepetitionMinCount+1)
	if !d.IsDegenerate(base) {
		t.Fatalf("base text should be degenerate")
	}
	// 在退化文本后追加更多重复，判定不得翻转
	for i := 0; i < 5; i++ {
		base += phrase
		if !d.IsDegenerate(base) {
			t.Fatalf("appending repetition %d flipped the verdict", i+1)
		}
	}
}

func TestIsDegenerateLoopPhrase(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LoopPhrases = []string{"让我重新生成"}
	cfg.LoopPhraseThreshold = 3
	d := NewDegeneracyDetector(cfg)

	text := strings.Repeat("让我重新生成。这次一定可以。不行的话", 4)
	if !d.IsDegenerate(text) {
		t.Fatalf("loop phrase over threshold should be degenerate")
	}
	if d.IsDegenerate(strings.Repeat("让我重新生成。中间隔开很长的正常内容确保没有周期性重复", 1)) {
		t.Fatalf("phrase within threshold should not be degenerate")
	}
}

func TestIsDegenerateNormalOutput(t *testing.T) {
	d := NewDegeneracyDetector(DefaultConfig())
	normal := `{"questions":[{"id":1,"type":"multiple_choice","question":"光合作用发生在哪里？","options":["叶绿体","线粒体","细胞核","核糖体"],"correct_answer":"叶绿体","explanation":"光合作用的场所是叶绿体。"}]}`
	if d.IsDegenerate(normal) {
		t.Fatalf("well formed output misclassified as degenerate")
	}
}
