package examgen

import (
	"math"
	"strings"
	"testing"
)

func TestEstimateUsage(t *testing.T) {
	u := EstimateUsage(strings.Repeat("a", 9), strings.Repeat("b", 8), 4)
	if u.PromptTokens != 3 {
		t.Fatalf("prompt tokens: expected ceil(9/4)=3, got %d", u.PromptTokens)
	}
	if u.CompletionTokens != 2 {
		t.Fatalf("completion tokens: expected 2, got %d", u.CompletionTokens)
	}
	if !u.Estimated {
		t.Fatalf("estimated flag must be set")
	}

	u = EstimateUsage("abcd", "", 0)
	if u.PromptTokens != 1 {
		t.Fatalf("zero ratio should fall back to default, got %d", u.PromptTokens)
	}

	// 中文按字符估算，不按字节
	u = EstimateUsage(strings.Repeat("题", 8), "", 4)
	if u.PromptTokens != 2 {
		t.Fatalf("rune based estimate: expected 8/4=2, got %d", u.PromptTokens)
	}
}

func TestFoldPricesPerRecord(t *testing.T) {
	price := PriceTable{InputPerMillion: 0.10, OutputPerMillion: 0.40}
	records := []RawUsage{
		{PromptTokens: 100, CompletionTokens: 50},
		{PromptTokens: 200, CompletionTokens: 75},
	}
	out := Fold(records, price)

	if out.PromptTokens != 300 || out.CompletionTokens != 125 {
		t.Fatalf("token sums wrong: %+v", out)
	}
	if out.TotalTokens != 425 {
		t.Fatalf("total tokens wrong: %d", out.TotalTokens)
	}
	if out.Attempts != 2 {
		t.Fatalf("attempts wrong: %d", out.Attempts)
	}
	if math.Abs(out.InputCost-0.00003) > 1e-12 {
		t.Fatalf("input cost wrong: %.10f", out.InputCost)
	}
	if math.Abs(out.OutputCost-0.00005) > 1e-12 {
		t.Fatalf("output cost wrong: %.10f", out.OutputCost)
	}
	if math.Abs(out.TotalCost-0.00008) > 1e-12 {
		t.Fatalf("total cost wrong: %.10f", out.TotalCost)
	}
	if out.Estimated {
		t.Fatalf("measured records must not be flagged estimated")
	}
}

func TestFoldPropagatesEstimatedFlag(t *testing.T) {
	out := Fold([]RawUsage{
		{PromptTokens: 10, CompletionTokens: 10},
		{PromptTokens: 10, CompletionTokens: 10, Estimated: true},
	}, PriceTable{})
	if !out.Estimated {
		t.Fatalf("one estimated record must flag the whole fold")
	}
}

func TestMergeMatchesFold(t *testing.T) {
	price := PriceTable{InputPerMillion: 1.5, OutputPerMillion: 6.0}
	a := RawUsage{PromptTokens: 123, CompletionTokens: 456}
	b := RawUsage{PromptTokens: 789, CompletionTokens: 12, Estimated: true}

	merged := Merge(Fold([]RawUsage{a}, price), Fold([]RawUsage{b}, price))
	direct := Fold([]RawUsage{a, b}, price)

	if merged.PromptTokens != direct.PromptTokens ||
		merged.CompletionTokens != direct.CompletionTokens ||
		merged.TotalTokens != direct.TotalTokens ||
		merged.Attempts != direct.Attempts ||
		merged.Estimated != direct.Estimated {
		t.Fatalf("merge diverged from fold:\n%+v\n%+v", merged, direct)
	}
	if math.Abs(merged.TotalCost-direct.TotalCost) > 1e-12 {
		t.Fatalf("cost diverged: %.12f vs %.12f", merged.TotalCost, direct.TotalCost)
	}
}
