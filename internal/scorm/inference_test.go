package scorm

import "testing"

// 规范性质：4 个 Visited + 字面 "100" → 判完成
func TestAnalyze_VisitedWithScore100(t *testing.T) {
	data := "Visited,Visited,Visited,Visited|score=100|2Sq7aB"

	ev := Analyze(data, 0, DefaultInferenceConfig())
	if !ev.Completed {
		t.Fatalf("expected completed, got reason: %s", ev.Reason)
	}
	if ev.Rule != "visited+score100" {
		t.Errorf("rule = %q, want visited+score100", ev.Rule)
	}
	if ev.VisitedCount != 4 {
		t.Errorf("visitedCount = %d, want 4", ev.VisitedCount)
	}
}

// 规范性质：1 个 Visited 且无其他信号 → 维持 incomplete 并给出原因
func TestAnalyze_SingleVisitInsufficient(t *testing.T) {
	ev := Analyze("Visited|slide2~partial", 0, DefaultInferenceConfig())
	if ev.Completed {
		t.Fatalf("expected not completed, rule %q fired", ev.Rule)
	}
	if ev.Reason == "" {
		t.Error("expected a recorded insufficiency reason")
	}
}

func TestAnalyze_VisitedWithKeyword(t *testing.T) {
	data := "Visited~Visited~Visited~state=finished"

	ev := Analyze(data, 0, DefaultInferenceConfig())
	if !ev.Completed || ev.Rule != "visited+keyword" {
		t.Errorf("rule = %q (completed=%v), want visited+keyword", ev.Rule, ev.Completed)
	}
	if len(ev.Indicators) == 0 {
		t.Error("expected matched indicators in evidence")
	}
}

func TestAnalyze_KeywordRuleWinsOverScoreRule(t *testing.T) {
	// 规则顺序是合同：关键词规则先于 "100" 规则命中
	data := "Visited Visited Visited complete 100"
	ev := Analyze(data, 0, DefaultInferenceConfig())
	if ev.Rule != "visited+keyword" {
		t.Errorf("rule = %q, want visited+keyword (priority order)", ev.Rule)
	}
}

func TestAnalyze_VisitedThresholdAlone(t *testing.T) {
	data := "Visited,Visited,Visited,Visited,Visited"

	ev := Analyze(data, 0, DefaultInferenceConfig())
	if !ev.Completed || ev.Rule != "visited-threshold" {
		t.Errorf("rule = %q (completed=%v), want visited-threshold", ev.Rule, ev.Completed)
	}
}

func TestAnalyze_QuizMarkersRegardlessOfVisits(t *testing.T) {
	ev := Analyze(`qd"true`, 0, DefaultInferenceConfig())
	if !ev.Completed || ev.Rule != "quiz-markers" {
		t.Errorf("rule = %q (completed=%v), want quiz-markers", ev.Rule, ev.Completed)
	}
}

func TestAnalyze_Disabled(t *testing.T) {
	cfg := DefaultInferenceConfig()
	cfg.Enabled = false

	ev := Analyze("Visited Visited Visited Visited Visited complete", 0, cfg)
	if ev.Completed {
		t.Error("disabled engine must never reclassify")
	}
}

func TestAnalyze_EmptySuspendData(t *testing.T) {
	ev := Analyze("", 0, DefaultInferenceConfig())
	if ev.Completed {
		t.Error("empty suspend data must not complete")
	}
}

// 条目数已知时阈值按包规模抬高：4 个 Visited 不足以判定 20 屏的课程走完
func TestVisitedThreshold_PackageRelative(t *testing.T) {
	cfg := DefaultInferenceConfig()

	if got := VisitedThreshold(cfg, 0); got != 5 {
		t.Errorf("threshold(itemCount=0) = %d, want 5", got)
	}
	if got := VisitedThreshold(cfg, 20); got != 12 {
		t.Errorf("threshold(itemCount=20) = %d, want 12", got)
	}
	// 小课程不把阈值降到配置值以下
	if got := VisitedThreshold(cfg, 3); got != 5 {
		t.Errorf("threshold(itemCount=3) = %d, want 5", got)
	}
}

func TestAnalyze_ThresholdRespectsItemCount(t *testing.T) {
	data := "Visited,Visited,Visited,Visited,Visited" // 5 个，无其他信号

	ev := Analyze(data, 20, DefaultInferenceConfig())
	if ev.Completed {
		t.Errorf("5 visits on a 20-item course reclassified via rule %q", ev.Rule)
	}
}
