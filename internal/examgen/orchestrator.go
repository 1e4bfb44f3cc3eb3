package examgen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// attemptState 重试循环的显式状态。
// 校验失败不再重试，对应 stateValidating 的唯一失败出口
type attemptState int

const (
	stateScheduled attemptState = iota
	stateAttempting
	stateDegenerate
	stateUnparseable
	stateValidating
	stateSucceeded
	stateExhausted
)

// Generator 驱动外部生成调用：按温度递增表有界重试，
// 每次尝试先过退化检测再做恢复解析，第一个解析出非空题目集合的
// 尝试即胜出，校验只在循环结束后对胜者做一次。
// 所有尝试的消耗（含失败的）都折入同一份累计用量。
// 每个请求的状态都只活在本次调用里，不落进程级可变状态，
// 并发调用互不干扰
type Generator struct {
	transport Transport
	cfg       Config
	detector  *DegeneracyDetector
	recovery  *Recovery
	validator *Validator
	log       *zap.Logger
}

func NewGenerator(transport Transport, cfg Config, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{
		transport: transport,
		cfg:       cfg,
		detector:  NewDegeneracyDetector(cfg),
		recovery:  NewRecovery(cfg),
		validator: NewValidator(cfg),
		log:       log,
	}
}

// Generate 执行一次完整的生成调用。
// 失败时返回 *GenerationError，其中 Usage 永远带着已经产生的消耗：
// 调用被取消也一样，钱已经花出去了
func (g *Generator) Generate(ctx context.Context, req GenerationRequest) (*Result, error) {
	log := g.log.With(zap.String("request_id", req.RequestID))
	schedule := g.cfg.TemperatureSchedule

	var usage UsageRecord
	lastPhase := PhaseTransport
	var lastErr error
	var doc *Document
	var vr ValidationResult
	var winnerTemp float64

	idx := 0
	state := stateScheduled

	for {
		switch state {
		case stateScheduled:
			if err := ctx.Err(); err != nil {
				log.Warn("生成调用被取消，停止调度后续尝试",
					zap.Int("attempts", usage.Attempts),
					zap.Float64("cost", usage.TotalCost))
				return nil, &GenerationError{Phase: PhaseTransport, Attempts: usage.Attempts, Usage: usage, Err: err}
			}
			if idx >= len(schedule) {
				state = stateExhausted
				continue
			}
			state = stateAttempting

		case stateAttempting:
			temp := schedule[idx]
			attempt, err := g.attempt(ctx, req, temp)
			if attempt != nil {
				usage = Merge(usage, Fold([]RawUsage{attempt.Usage}, g.cfg.Price))
			} else {
				// 传输层没有返回任何内容，计入尝试次数但没有可计量的消耗
				usage = Merge(usage, Fold([]RawUsage{{}}, g.cfg.Price))
			}
			if err != nil {
				lastPhase, lastErr = PhaseTransport, err
				log.Warn("生成调用失败，进入下一档温度",
					zap.Float64("temperature", temp), zap.Error(err))
				idx++
				state = stateScheduled
				continue
			}
			log.Info("收到模型输出",
				zap.Float64("temperature", temp),
				zap.Int("chars", len(attempt.Text)),
				zap.Duration("duration", attempt.Duration))

			if g.detector.IsDegenerate(attempt.Text) {
				state = stateDegenerate
				continue
			}

			parsed, perr := g.recovery.Parse(attempt.Text)
			if perr != nil {
				lastPhase, lastErr = PhaseParse, perr
				state = stateUnparseable
				continue
			}
			doc = parsed
			winnerTemp = temp
			state = stateValidating

		case stateDegenerate:
			lastPhase = PhaseDegeneracy
			lastErr = fmt.Errorf("第%d次尝试输出退化（温度%.1f）", idx+1, schedule[idx])
			log.Warn("模型输出退化", zap.Float64("temperature", schedule[idx]))
			idx++
			state = stateScheduled

		case stateUnparseable:
			log.Warn("模型输出无法恢复为结构化文档",
				zap.Float64("temperature", schedule[idx]), zap.Error(lastErr))
			idx++
			state = stateScheduled

		case stateValidating:
			vr = g.validator.Validate(doc.Questions)
			log.Info("内容校验完成",
				zap.Int("score", vr.Score),
				zap.Int("errors", len(vr.Errors)),
				zap.Int("warnings", len(vr.Warnings)))
			if !vr.Passed {
				// 低分立即终止，不回到温度递增循环再烧一遍钱
				return nil, &GenerationError{
					Phase:    PhaseValidation,
					Attempts: usage.Attempts,
					Usage:    usage,
					Score:    vr.Score,
					Errors:   vr.Errors,
					Warnings: vr.Warnings,
				}
			}
			state = stateSucceeded

		case stateSucceeded:
			return &Result{
				Questions:   doc.Questions,
				Temperature: winnerTemp,
				Score:       vr.Score,
				Warnings:    vr.Warnings,
				Usage:       usage,
			}, nil

		case stateExhausted:
			return nil, &GenerationError{Phase: lastPhase, Attempts: usage.Attempts, Usage: usage, Err: lastErr}
		}
	}
}

// attempt 单个温度档内的一次生成调用。
// 瞬时错误（过载/限流/超时）在本档内做有限次指数退避重试，
// 与温度递增重试相互独立；其余错误直接交还编排循环
func (g *Generator) attempt(ctx context.Context, req GenerationRequest, temp float64) (*Attempt, error) {
	backoff := g.cfg.TransportBackoff
	var lastErr error

	for try := 0; try <= g.cfg.TransportRetries; try++ {
		if try > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if g.cfg.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, g.cfg.CallTimeout)
		}
		start := time.Now()
		res, err := g.transport.Generate(callCtx, req, temp)
		if cancel != nil {
			cancel()
		}

		if err != nil {
			lastErr = err
			// 超时和过载同等对待
			if IsTransient(err) || errors.Is(err, context.DeadlineExceeded) {
				g.log.Warn("传输层瞬时错误，退避后重试",
					zap.Int("try", try+1), zap.Error(err))
				continue
			}
			return nil, err
		}

		var u RawUsage
		if res.Usage != nil {
			u = *res.Usage
		} else {
			u = EstimateUsage(req.Prompt, res.Text, g.cfg.CharsPerToken)
		}
		return &Attempt{
			Temperature: temp,
			Text:        res.Text,
			Duration:    time.Since(start),
			Usage:       u,
		}, nil
	}
	return nil, lastErr
}
