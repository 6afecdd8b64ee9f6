package reason

import (
	"context"
	"fmt"
	"strings"

	"confixr/internal/classify"
	"confixr/pkg/model"
)

// Analyzer 分析策略接口。实现永不返回错误：
// 所有失败路径都退化为一条合法的 AnalysisRecord。
type Analyzer interface {
	Analyze(ctx context.Context, raw model.RawErrorEvent) model.AnalysisRecord
}

// RuleAnalyzer 纯规则分析策略，包装本地分类器
type RuleAnalyzer struct{}

func NewRuleAnalyzer() *RuleAnalyzer { return &RuleAnalyzer{} }

func (a *RuleAnalyzer) Analyze(_ context.Context, raw model.RawErrorEvent) model.AnalysisRecord {
	c := classify.Classify(classify.Input{Message: raw.Message, Stack: raw.Stack})
	return model.AnalysisRecord{
		Raw:            raw,
		Classification: string(c.Category),
		Suggestion:     c.Hints[0],
		Reasoning:      fmt.Sprintf("%s. Hints: %s", c.Cause, strings.Join(c.Hints, "; ")),
	}
}

// Fallback 组合策略：primary 返回通用失败时改用 secondary，
// 保证用户总能拿到一份本地诊断。限额（429）结果原样透传，可由用户重试。
type Fallback struct {
	primary   Analyzer
	secondary Analyzer
}

func NewFallback(primary, secondary Analyzer) *Fallback {
	return &Fallback{primary: primary, secondary: secondary}
}

func (a *Fallback) Analyze(ctx context.Context, raw model.RawErrorEvent) model.AnalysisRecord {
	rec := a.primary.Analyze(ctx, raw)
	if rec.Classification == ClassificationFailed {
		return a.secondary.Analyze(ctx, raw)
	}
	return rec
}
