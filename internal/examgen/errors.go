package examgen

import (
	"errors"
	"fmt"
)

// Phase 标识失败发生在管道的哪个阶段
type Phase string

const (
	PhaseTransport  Phase = "transport"
	PhaseDegeneracy Phase = "degeneracy"
	PhaseParse      Phase = "parse"
	PhaseValidation Phase = "validation"
)

// TransientError 包装可重试的传输错误（过载、限流、超时）。
// 编排器在同一温度档内做有限次指数退避重试
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient transport error: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient 判断错误是否可在同档内重试
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// 解析相关的错误种类
var (
	// ErrNotPayload 输入明显不是结构化载荷（如 HTML 文档），直接拒绝
	ErrNotPayload = errors.New("输入不是结构化载荷")

	// ErrNoQuestions 解析成功但缺少题目列表，由系统边缘走降级占位路径
	ErrNoQuestions = errors.New("文档缺少题目列表")
)

// UnrecoverableError 所有修复策略都失败，携带原文片段供排查
type UnrecoverableError struct {
	Snippet string // 原文前 200 个字符
}

func (e *UnrecoverableError) Error() string {
	return fmt.Sprintf("all recovery strategies failed, text begins with: %q", e.Snippet)
}

// GenerationError 整个生成调用的结构化失败。
// 公共边界只抛出这一种错误，调用方按 Phase 分流处理。
// Usage 始终包含失败前已产生的累计消耗
type GenerationError struct {
	Phase    Phase
	Attempts int
	Usage    UsageRecord
	Score    int      // 仅 PhaseValidation 有效
	Errors   []string // 校验错误，仅 PhaseValidation
	Warnings []string
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Phase == PhaseValidation {
		return fmt.Sprintf("generation failed at %s: score=%d, %d errors", e.Phase, e.Score, len(e.Errors))
	}
	return fmt.Sprintf("generation failed at %s after %d attempts: %v", e.Phase, e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
