package scorm

import (
	"fmt"
	"strings"
	"time"
)

// 完成度推断：对 suspend_data 这种厂商私有黑盒串做启发式匹配，
// 修复 Storyline 一类从不上报 lesson_status=completed 的课件。
// 这是兼容垫片，不是协议行为 —— 宁可误判完成，不让学习者永远卡在
// incomplete。必须保持可整体停用（配置开关），证据链全量落审计字段。

// InferenceConfig 推断参数。零值拿不到合理行为，用 DefaultInferenceConfig。
type InferenceConfig struct {
	Enabled bool
	// VisitedWithSignal 规则1/2 要求的最少 Visited 标记数
	VisitedWithSignal int
	// VisitedAlone 规则3（仅凭访问数判完成）的阈值
	VisitedAlone int
}

func DefaultInferenceConfig() InferenceConfig {
	return InferenceConfig{Enabled: true, VisitedWithSignal: 3, VisitedAlone: 5}
}

// completionKeywords 规则1 的完成关键词集合（含 Storyline 把引号转义/URL编码后的变体）
var completionKeywords = []string{
	"complete",
	"completed",
	"finished",
	"passed",
	"qd\"true",
	"qd%22true",
	"qd&quot;true",
}

// quizDoneMarkers 规则4 的测验完成标记，独立于访问计数
var quizDoneMarkers = []string{
	"qd\"true",
	"qd%22true",
	"qd&quot;true",
	"quiz_done",
	"quizcomplete",
	"quiz_complete",
}

// Evidence 一次推断的完整依据，原样进审计字段
type Evidence struct {
	Completed    bool      `json:"completed"`
	Rule         string    `json:"rule,omitempty"`
	Reason       string    `json:"reason"`
	VisitedCount int       `json:"visitedCount"`
	Indicators   []string  `json:"indicators,omitempty"`
	Threshold    int       `json:"threshold"`
	EvaluatedAt  time.Time `json:"evaluatedAt"`
}

// VisitedThreshold 规则3 的阈值。清单里有条目数时取 max(配置值, 条目数的60%)，
// 长课程不会因为固定常数被低估；拿不到条目数就退回配置常数。
func VisitedThreshold(cfg InferenceConfig, itemCount int) int {
	threshold := cfg.VisitedAlone
	if itemCount > 0 {
		relative := (itemCount*6 + 9) / 10 // ceil(0.6*n)
		if relative > threshold {
			threshold = relative
		}
	}
	return threshold
}

// Analyze 按优先级对 suspend_data 应用启发式规则，首条命中即定论。
// 规则顺序是合同的一部分，调整顺序会改变历史判定的可复现性。
func Analyze(suspendData string, itemCount int, cfg InferenceConfig) Evidence {
	now := time.Now().UTC()
	visited := strings.Count(suspendData, "Visited")
	threshold := VisitedThreshold(cfg, itemCount)
	lower := strings.ToLower(suspendData)

	ev := Evidence{
		VisitedCount: visited,
		Threshold:    threshold,
		EvaluatedAt:  now,
	}

	if !cfg.Enabled {
		ev.Reason = "inference disabled by configuration"
		return ev
	}
	if suspendData == "" {
		ev.Reason = "no suspend data to analyze"
		return ev
	}

	var keywords []string
	for _, kw := range completionKeywords {
		if strings.Contains(lower, kw) {
			keywords = append(keywords, kw)
		}
	}
	var quizDone []string
	for _, m := range quizDoneMarkers {
		if strings.Contains(lower, m) {
			quizDone = append(quizDone, m)
		}
	}

	// 规则1：访问数达标且出现完成关键词
	if visited >= cfg.VisitedWithSignal && len(keywords) > 0 {
		ev.Completed = true
		ev.Rule = "visited+keyword"
		ev.Indicators = keywords
		ev.Reason = fmt.Sprintf("%d Visited markers with completion keywords %v", visited, keywords)
		return ev
	}

	// 规则2：访问数达标且出现字面 "100"
	if visited >= cfg.VisitedWithSignal && strings.Contains(suspendData, "100") {
		ev.Completed = true
		ev.Rule = "visited+score100"
		ev.Indicators = []string{"100"}
		ev.Reason = fmt.Sprintf("%d Visited markers with literal score 100", visited)
		return ev
	}

	// 规则3：仅凭访问数（长课程被完整走完的近似判定）
	if visited >= threshold {
		ev.Completed = true
		ev.Rule = "visited-threshold"
		ev.Reason = fmt.Sprintf("%d Visited markers >= threshold %d", visited, threshold)
		return ev
	}

	// 规则4：测验完成标记，不看访问数
	if len(quizDone) > 0 {
		ev.Completed = true
		ev.Rule = "quiz-markers"
		ev.Indicators = quizDone
		ev.Reason = fmt.Sprintf("quiz completion markers %v present", quizDone)
		return ev
	}

	ev.Reason = fmt.Sprintf(
		"insufficient evidence: %d Visited markers (need %d with signal or %d alone), no completion or quiz markers",
		visited, cfg.VisitedWithSignal, threshold)
	return ev
}
