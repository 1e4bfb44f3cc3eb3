package service

import (
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestSourceHashStable(t *testing.T) {
	in := GenerateExamInput{
		Subject:       "生物",
		GradeLevel:    "高一",
		Language:      "zh",
		QuestionCount: 5,
		SourceText:    "细胞是生命活动的基本单位。",
	}

	h1 := sourceHash(in, in.SourceText)
	h2 := sourceHash(in, in.SourceText)
	if h1 != h2 {
		t.Fatalf("same input produced different hashes: %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("expected hex sha256 (64 chars), got %d", len(h1))
	}
}

func TestSourceHashSensitive(t *testing.T) {
	base := GenerateExamInput{
		Subject:       "生物",
		GradeLevel:    "高一",
		Language:      "zh",
		QuestionCount: 5,
		SourceText:    "细胞是生命活动的基本单位。",
	}
	baseHash := sourceHash(base, base.SourceText)

	variants := []GenerateExamInput{
		{Subject: "化学", GradeLevel: "高一", Language: "zh", QuestionCount: 5, SourceText: base.SourceText},
		{Subject: "生物", GradeLevel: "高二", Language: "zh", QuestionCount: 5, SourceText: base.SourceText},
		{Subject: "生物", GradeLevel: "高一", Language: "zh", QuestionCount: 10, SourceText: base.SourceText},
		{Subject: "生物", GradeLevel: "高一", Language: "zh", QuestionCount: 5, SourceText: base.SourceText + "改"},
		{Subject: "生物", GradeLevel: "高一", Language: "zh", QuestionCount: 5, SourceText: base.SourceText,
			Materials: []UploadedMaterial{{Filename: "a.txt", ContentType: "text/plain", Data: []byte("补充资料")}}},
	}
	for i, v := range variants {
		if sourceHash(v, v.SourceText) == baseHash {
			t.Fatalf("variant %d collided with base hash", i)
		}
	}
}

func TestBuildPromptContainsConstraints(t *testing.T) {
	in := GenerateExamInput{
		Subject:       "物理",
		GradeLevel:    "初三",
		QuestionCount: 8,
		SourceText:    "牛顿第一定律：物体在不受外力作用时保持静止或匀速直线运动。",
	}
	p := buildPrompt(in, in.SourceText)

	for _, want := range []string{
		"物理", "初三", "8道",
		"不得引用图片",
		"逐字等于某个选项",
		`"questions"`,
		in.SourceText,
	} {
		if !strings.Contains(p, want) {
			t.Fatalf("prompt missing %q:\n%s", want, p)
		}
	}
}

func TestBuildPromptOmitsEmptySource(t *testing.T) {
	in := GenerateExamInput{Subject: "数学", GradeLevel: "高一", QuestionCount: 5}
	p := buildPrompt(in, "   ")
	if strings.Contains(p, "资料内容") {
		t.Fatalf("prompt should not carry an empty source section:\n%s", p)
	}
}

func TestExtractMaterialsSplitsTextAndImages(t *testing.T) {
	s := &ExamService{log: zap.NewNop()}
	in := GenerateExamInput{
		SourceText: "主文本",
		Materials: []UploadedMaterial{
			{Filename: "notes.txt", ContentType: "text/plain", Data: []byte("附加文本")},
			{Filename: "figure.png", ContentType: "image/png", Data: []byte{0x89, 0x50, 0x4e, 0x47}},
			{Filename: "data.bin", ContentType: "application/octet-stream", Data: []byte{0x00}},
		},
	}

	text, attachments, err := s.extractMaterials(in)
	if err != nil {
		t.Fatalf("extractMaterials: %v", err)
	}
	if !strings.Contains(text, "主文本") || !strings.Contains(text, "附加文本") {
		t.Fatalf("merged text missing content: %q", text)
	}
	if len(attachments) != 1 {
		t.Fatalf("expected 1 image attachment, got %d", len(attachments))
	}
	if attachments[0].MIMEType != "image/png" {
		t.Fatalf("unexpected attachment mime: %s", attachments[0].MIMEType)
	}
	// 无法识别的类型被跳过，不进入文本也不进入附件
	if strings.Contains(text, "\x00") {
		t.Fatalf("binary material leaked into text")
	}
}
