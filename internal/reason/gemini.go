package reason

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"confixr/internal/logger"
	"confixr/pkg/model"
)

// 固定的分析结果文案，消费方按该字符串匹配展示
const (
	ClassificationFailed = "Analysis Failed"
	ClassificationQuota  = "Analysis Pending (Quota Exceeded)"

	suggestionManual = "Manual investigation required."
	suggestionRetry  = "The AI service is currently busy (Rate Limit Reached). Please retry in a few seconds."
	reasoningQuota   = "You have exceeded the free tier quota for the Gemini API."
)

const promptTemplate = `You are an expert web development debugging assistant called "ConFixr".
Analyze the following browser error and provide a fix and reasoning.

Error Details:
%s

Return ONLY a raw JSON object (no markdown formatting) with the following structure:
{
  "classification": "string (e.g., SyntaxError, NetworkError, CORS)",
  "suggestion": "string (concise actionable fix)",
  "reasoning": "string (explanation of why this happened, keep it short and clear)"
}`

// GeminiConfig Gemini 远端分析配置
type GeminiConfig struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// Gemini 远端生成式分析策略
type Gemini struct {
	cfg GeminiConfig
	hc  *http.Client
	log logger.Logger
}

// NewGemini 创建 Gemini 分析策略
func NewGemini(cfg GeminiConfig, l logger.Logger) *Gemini {
	if l == nil {
		l = logger.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Gemini{
		cfg: cfg,
		hc:  &http.Client{Timeout: cfg.Timeout},
		log: l,
	}
}

// Analyze 调用远端接口分析错误。网络失败、限额、安全拦截、
// 响应格式错误等全部退化为可展示的 AnalysisRecord，不向上抛错。
func (g *Gemini) Analyze(ctx context.Context, raw model.RawErrorEvent) model.AnalysisRecord {
	details, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return g.fail(raw, err.Error())
	}
	prompt := fmt.Sprintf(promptTemplate, details)

	body, err := sjson.SetBytes([]byte(`{}`), "contents.0.parts.0.text", prompt)
	if err != nil {
		return g.fail(raw, err.Error())
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.cfg.Endpoint, g.cfg.Model, g.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return g.fail(raw, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.hc.Do(req)
	if err != nil {
		g.log.Warn("Gemini 请求失败", "error", err)
		return g.fail(raw, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		g.log.Warn("Gemini 限额超出", "status", resp.StatusCode)
		return model.AnalysisRecord{
			Raw:            raw,
			Classification: ClassificationQuota,
			Suggestion:     suggestionRetry,
			Reasoning:      reasoningQuota,
			Retryable:      true,
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return g.fail(raw, err.Error())
	}

	if v := gjson.GetBytes(data, "error"); v.Exists() {
		msg := v.Get("message").String()
		if msg == "" {
			msg = "Gemini API Error"
		}
		return g.fail(raw, msg)
	}

	if !gjson.GetBytes(data, "candidates.0").Exists() {
		if block := gjson.GetBytes(data, "promptFeedback.blockReason"); block.Exists() {
			return g.fail(raw, fmt.Sprintf("Blocked: %s", block.String()))
		}
		return g.fail(raw, "No candidates returned from Gemini")
	}

	text := gjson.GetBytes(data, "candidates.0.content.parts.0.text").String()
	if text == "" {
		return g.fail(raw, "Empty text in candidate")
	}

	// 模型偶尔无视指令包上 markdown 代码块，先剥掉围栏
	clean := strings.ReplaceAll(text, "```json", "")
	clean = strings.TrimSpace(strings.ReplaceAll(clean, "```", ""))

	var result struct {
		Classification string `json:"classification"`
		Suggestion     string `json:"suggestion"`
		Reasoning      string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(clean), &result); err != nil {
		g.log.Warn("Gemini 响应 JSON 解析失败", "text", clean)
		return g.fail(raw, "Invalid JSON from Gemini")
	}

	return model.AnalysisRecord{
		Raw:            raw,
		Classification: result.Classification,
		Suggestion:     result.Suggestion,
		Reasoning:      result.Reasoning,
	}
}

func (g *Gemini) fail(raw model.RawErrorEvent, msg string) model.AnalysisRecord {
	if msg == "" {
		msg = "Unknown error"
	}
	return model.AnalysisRecord{
		Raw:            raw,
		Classification: ClassificationFailed,
		Suggestion:     suggestionManual,
		Reasoning:      fmt.Sprintf("AI analysis failed: %s. Check logs for details.", msg),
	}
}
