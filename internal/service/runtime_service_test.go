package service

import (
	"testing"

	"scorm_lms_backend/internal/model"
	"scorm_lms_backend/internal/scorm"
)

func initializedRuntime(t *testing.T, version string, data map[string]string) *scorm.Runtime {
	t.Helper()
	return scorm.NewRuntime(scorm.RuntimeConfig{
		Version:     version,
		LearnerID:   "7",
		LearnerName: "Ada",
		Data:        data,
		Initialized: true,
	})
}

func TestApplySnapshot_SCORM12Mirror(t *testing.T) {
	rt := initializedRuntime(t, scorm.Version12, nil)
	if result, _ := rt.SetValue(scorm.El12LessonStatus, scorm.StatusPassed); result != "true" {
		t.Fatalf("SetValue lesson_status failed")
	}
	if result, _ := rt.SetValue(scorm.El12ScoreRaw, "85"); result != "true" {
		t.Fatalf("SetValue score.raw failed")
	}
	rt.SetValue(scorm.El12Location, "page-9")
	rt.SetValue(scorm.ElSuspendData, "bookmark")

	a := &model.ScormAttempt{Version: scorm.Version12}
	s := &RuntimeService{}
	if err := s.applySnapshot(a, rt); err != nil {
		t.Fatalf("applySnapshot: %v", err)
	}

	if a.LessonStatus != scorm.StatusPassed {
		t.Errorf("LessonStatus = %q", a.LessonStatus)
	}
	// 1.2 passed 同时落成功语义
	if a.SuccessStatus != scorm.StatusPassed {
		t.Errorf("SuccessStatus = %q", a.SuccessStatus)
	}
	if a.ScoreRaw != "85" {
		t.Errorf("ScoreRaw = %q", a.ScoreRaw)
	}
	if a.LessonLocation != "page-9" {
		t.Errorf("LessonLocation = %q", a.LessonLocation)
	}
	if a.SuspendData != "bookmark" {
		t.Errorf("SuspendData = %q", a.SuspendData)
	}
	if a.CompletedAt == nil {
		t.Error("CompletedAt not set for passed status")
	}

	// 完整 CMI 快照也要回写
	if a.CMIMap()[scorm.El12ScoreRaw] != "85" {
		t.Error("CMI snapshot missing score.raw")
	}
}

func TestApplySnapshot_2004IncompleteKeepsNoTimestamp(t *testing.T) {
	rt := initializedRuntime(t, scorm.Version2004, nil)
	rt.SetValue(scorm.ElCompletionStatus, scorm.StatusIncomplete)

	a := &model.ScormAttempt{Version: scorm.Version2004}
	s := &RuntimeService{}
	if err := s.applySnapshot(a, rt); err != nil {
		t.Fatalf("applySnapshot: %v", err)
	}

	if a.CompletionStatus != scorm.StatusIncomplete {
		t.Errorf("CompletionStatus = %q", a.CompletionStatus)
	}
	if a.CompletedAt != nil {
		t.Error("CompletedAt set for incomplete attempt")
	}
}

func TestApplySnapshot_2004CompletedSetsTimestamp(t *testing.T) {
	rt := initializedRuntime(t, scorm.Version2004, nil)
	rt.SetValue(scorm.ElCompletionStatus, scorm.StatusCompleted)
	rt.SetValue(scorm.ElScoreScaled, "0.9")

	a := &model.ScormAttempt{Version: scorm.Version2004}
	s := &RuntimeService{}
	if err := s.applySnapshot(a, rt); err != nil {
		t.Fatalf("applySnapshot: %v", err)
	}

	if a.CompletedAt == nil {
		t.Error("CompletedAt not set for completed status")
	}
	if a.ScoreScaled != "0.9" {
		t.Errorf("ScoreScaled = %q", a.ScoreScaled)
	}
}

func TestAttemptScore(t *testing.T) {
	cases := []struct {
		name string
		a    model.ScormAttempt
		want float64
	}{
		{"raw wins", model.ScormAttempt{ScoreRaw: "85", ScoreScaled: "0.5"}, 85},
		{"scaled rescaled to percent", model.ScormAttempt{ScoreScaled: "0.9"}, 90},
		{"nothing reported", model.ScormAttempt{}, 0},
		{"garbage raw falls through to scaled", model.ScormAttempt{ScoreRaw: "n/a", ScoreScaled: "0.25"}, 25},
	}
	for _, tc := range cases {
		if got := attemptScore(&tc.a); got != tc.want {
			t.Errorf("%s: attemptScore = %v, want %v", tc.name, got, tc.want)
		}
	}
}
