package examgen

import (
	"context"
	"time"
)

// 题目类型
const (
	TypeMultipleChoice = "multiple_choice"
	TypeTrueFalse      = "true_false"
)

// GenerationRequest 一次生成调用的不可变输入，创建后不再修改
type GenerationRequest struct {
	Subject       string       // 学科，如 "数学"
	GradeLevel    string       // 年级/难度，如 "初二"
	Language      string       // 目标语言，默认 "zh"
	QuestionCount int          // 期望题目数量
	SourceText    string       // 从上传资料提取的文本，可为空
	Attachments   []Attachment // 图片附件，可为空
	Prompt        string       // 构建好的完整提示词
	RequestID     string       // 关联日志用的请求标识
}

// Attachment 随提示词一起发送的二进制附件（如试卷照片）
type Attachment struct {
	MIMEType string
	Data     []byte
}

// Question 单个题目。解析完成后只读，修正一律产生新值
type Question struct {
	ID            int      `json:"id"`
	Type          string   `json:"type"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// Document 从模型输出恢复出的结构化文档
type Document struct {
	Questions []Question `json:"questions"`

	// Degraded 标记降级占位文档，调用方据此决定是否展示给最终用户
	Degraded bool `json:"-"`
}

// RawUsage 单次调用的原始用量。传输层未报告 token 数时由文本长度估算，
// Estimated 区分估算值与实测值
type RawUsage struct {
	PromptTokens     int
	CompletionTokens int
	Estimated        bool
}

// UsageRecord 计价并累计后的用量记录。失败的尝试同样计费，
// 因此累计记录包含每一次尝试
type UsageRecord struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	InputCost        float64
	OutputCost       float64
	TotalCost        float64
	Attempts         int
	Estimated        bool // 任意一次为估算值即为 true
}

// ValidationResult 单次校验的输出，无状态
type ValidationResult struct {
	Score    int
	Passed   bool
	Errors   []string
	Warnings []string
}

// TransportResult 外部生成调用的返回
type TransportResult struct {
	Text string
	// Usage 为 nil 表示传输层未报告 token 数
	Usage *RawUsage
}

// Transport 外部生成调用的契约。可重试的过载/超时类错误必须
// 用 TransientError 包装，其余错误视为当次调度值永久失败
type Transport interface {
	Generate(ctx context.Context, req GenerationRequest, temperature float64) (*TransportResult, error)
}

// Attempt 一次尝试的元数据，折入累计用量后即丢弃（胜出文本除外）
type Attempt struct {
	Temperature float64
	Text        string
	Duration    time.Duration
	Usage       RawUsage
}

// Result 生成成功的返回
type Result struct {
	Questions   []Question
	Temperature float64 // 胜出尝试使用的温度
	Score       int
	Warnings    []string
	Usage       UsageRecord
}
