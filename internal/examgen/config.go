package examgen

import "time"

// PriceTable 每百万 token 的单价，按模型由配置下发
type PriceTable struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// Config 管道的全部可调参数。显式注入而不是读全局状态，
// 测试可以提供确定性的配置
type Config struct {
	// 温度递增表，长度即最大尝试次数
	TemperatureSchedule []float64

	// 校验通过线（0-100）
	ScoreThreshold int

	// 退化检测
	MaxOutputChars      int      // 输出长度上限（按 rune 计），超过判退化
	RepetitionMinLen    int      // 连续重复片段的最小长度（字符）
	RepetitionMinCount  int      // 连续重复的最少次数
	LoopPhrases         []string // 实测容易进入复读的短语
	LoopPhraseThreshold int      // 单个短语出现次数上限

	// 校验
	ExpectedOptionCount  int
	MaxExplanationChars  int
	SelfAdmissionPhrases []string // 解析中自认答案有误的措辞
	VisualRefWords       []string // 题干中禁止出现的视觉指代词

	// 计价与估算
	Price         PriceTable
	CharsPerToken int // 传输层未报告用量时按此字符（rune）比率估算

	// 传输层瞬时错误的同档重试
	TransportRetries int
	TransportBackoff time.Duration
	CallTimeout      time.Duration
}

// DefaultConfig 线上使用的默认参数。短语表针对中文输出调校
func DefaultConfig() Config {
	return Config{
		TemperatureSchedule: []float64{0, 0.3, 0.5},
		ScoreThreshold:      90,

		MaxOutputChars:     50000,
		RepetitionMinLen:   20,
		RepetitionMinCount: 5,
		LoopPhrases: []string{
			"抱歉，我无法",
			"让我重新生成",
			"如下所示：",
			"正确答案是正确答案",
		},
		LoopPhraseThreshold: 10,

		ExpectedOptionCount: 4,
		MaxExplanationChars: 500,
		SelfAdmissionPhrases: []string{
			"选择了最接近的答案",
			"最接近的选项",
			"虽然答案不完全正确",
			"以上选项均不正确，但",
			"题目本身有误",
		},
		VisualRefWords: []string{
			"如图", "下图", "上图", "图片", "图中", "图表", "表格", "页面", "见图",
		},

		Price:         PriceTable{InputPerMillion: 0.10, OutputPerMillion: 0.40},
		CharsPerToken: 4,

		TransportRetries: 3,
		TransportBackoff: 500 * time.Millisecond,
		CallTimeout:      90 * time.Second,
	}
}
