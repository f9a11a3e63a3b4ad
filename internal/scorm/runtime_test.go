package scorm

import "testing"

func newTestRuntime(version string) *Runtime {
	return NewRuntime(RuntimeConfig{
		Version:     version,
		LearnerID:   "u-42",
		LearnerName: "Li, Ming",
	})
}

func TestInitialize_SeedsIdentityAndEntry(t *testing.T) {
	rt := newTestRuntime(Version12)

	result, cmiErr := rt.Initialize()
	if result != "true" || !cmiErr.OK() {
		t.Fatalf("Initialize = (%q, %d), want (true, 0)", result, cmiErr.Code)
	}

	if v, _ := rt.GetValue(El12StudentID); v != "u-42" {
		t.Errorf("student_id = %q, want u-42", v)
	}
	if v, _ := rt.GetValue(El12Entry); v != EntryAbInitio {
		t.Errorf("entry = %q, want ab-initio", v)
	}
}

func TestInitialize_ResumeWhenSuspendDataExists(t *testing.T) {
	rt := NewRuntime(RuntimeConfig{
		Version:   Version12,
		LearnerID: "u-42",
		Data:      map[string]string{El12SuspendData: "2Sq7"},
	})
	rt.Initialize()

	if v, _ := rt.GetValue(El12Entry); v != EntryResume {
		t.Errorf("entry = %q, want resume", v)
	}
}

func TestInitialize_Twice(t *testing.T) {
	rt := newTestRuntime(Version2004)
	rt.Initialize()

	result, cmiErr := rt.Initialize()
	if result != "false" {
		t.Errorf("second Initialize = %q, want false", result)
	}
	if cmiErr.Code != Err2004AlreadyInitialized {
		t.Errorf("second Initialize code = %d, want %d", cmiErr.Code, Err2004AlreadyInitialized)
	}
}

// 规范性质：未初始化的 GetValue 返回空串并带未初始化错误码
func TestGetValue_BeforeInitialize(t *testing.T) {
	rt := newTestRuntime(Version12)

	v, cmiErr := rt.GetValue(El12LessonStatus)
	if v != "" {
		t.Errorf("GetValue before Initialize = %q, want empty", v)
	}
	if cmiErr.Code != Err12NotInitialized {
		t.Errorf("code = %d, want %d", cmiErr.Code, Err12NotInitialized)
	}
}

// 规范性质：同一会话内 SetValue 后 GetValue 读回原值
func TestSetGetRoundTrip(t *testing.T) {
	rt := newTestRuntime(Version12)
	rt.Initialize()

	if result, cmiErr := rt.SetValue(El12ScoreRaw, "85"); result != "true" || !cmiErr.OK() {
		t.Fatalf("SetValue = (%q, %d)", result, cmiErr.Code)
	}
	if v, _ := rt.GetValue(El12ScoreRaw); v != "85" {
		t.Errorf("GetValue(score.raw) = %q, want 85", v)
	}
}

func TestGetValue_Defaults(t *testing.T) {
	rt := newTestRuntime(Version12)
	rt.Initialize()

	cases := map[string]string{
		El12LessonStatus: StatusNotAttempted,
		El12Credit:       "credit",
		El12LessonMode:   "normal",
		El12ScoreMin:     "0",
		El12ScoreMax:     "100",
		El12TotalTime:    "0000:00:00.00",
	}
	for element, want := range cases {
		if v, cmiErr := rt.GetValue(element); v != want || !cmiErr.OK() {
			t.Errorf("GetValue(%s) = (%q, %d), want (%q, 0)", element, v, cmiErr.Code, want)
		}
	}
}

func TestGetValue_Defaults2004(t *testing.T) {
	rt := newTestRuntime(Version2004)
	rt.Initialize()

	cases := map[string]string{
		ElCompletionStatus: StatusUnknown,
		ElSuccessStatus:    StatusUnknown,
		ElCredit:           "credit",
		ElMode:             "normal",
		ElVersion:          "1.0",
		ElTotalTime:        "PT0H0M0S",
	}
	for element, want := range cases {
		if v, cmiErr := rt.GetValue(element); v != want || !cmiErr.OK() {
			t.Errorf("GetValue(%s) = (%q, %d), want (%q, 0)", element, v, cmiErr.Code, want)
		}
	}
}

// 规范性质：只读元素拒写且存量值不变
func TestSetValue_ReadOnly(t *testing.T) {
	rt := newTestRuntime(Version12)
	rt.Initialize()

	result, cmiErr := rt.SetValue(El12StudentID, "anything")
	if result != "false" {
		t.Errorf("SetValue(student_id) = %q, want false", result)
	}
	if cmiErr.Code != Err12ReadOnly {
		t.Errorf("code = %d, want %d", cmiErr.Code, Err12ReadOnly)
	}
	if v, _ := rt.GetValue(El12StudentID); v != "u-42" {
		t.Errorf("student_id changed to %q after rejected write", v)
	}
}

func TestSetValue_WriteOnlyReadBack(t *testing.T) {
	rt := newTestRuntime(Version12)
	rt.Initialize()
	rt.SetValue(El12SessionTime, "0000:00:10.00")

	v, cmiErr := rt.GetValue(El12SessionTime)
	if v != "" || cmiErr.Code != Err12WriteOnly {
		t.Errorf("GetValue(session_time) = (%q, %d), want write-only error %d", v, cmiErr.Code, Err12WriteOnly)
	}
}

func TestSetValue_VocabularyValidation(t *testing.T) {
	rt := newTestRuntime(Version12)
	rt.Initialize()

	result, cmiErr := rt.SetValue(El12LessonStatus, "finished")
	if result != "false" || cmiErr.Code != Err12IncorrectDataType {
		t.Errorf("SetValue(lesson_status, finished) = (%q, %d), want (false, %d)",
			result, cmiErr.Code, Err12IncorrectDataType)
	}

	if result, cmiErr = rt.SetValue(El12LessonStatus, StatusCompleted); result != "true" || !cmiErr.OK() {
		t.Errorf("SetValue(lesson_status, completed) = (%q, %d)", result, cmiErr.Code)
	}
}

func TestSetValue_ScaledScoreRange(t *testing.T) {
	rt := newTestRuntime(Version2004)
	rt.Initialize()

	if result, _ := rt.SetValue(ElScoreScaled, "0.85"); result != "true" {
		t.Errorf("SetValue(score.scaled, 0.85) = %q, want true", result)
	}
	result, cmiErr := rt.SetValue(ElScoreScaled, "1.5")
	if result != "false" || cmiErr.Code != Err2004OutOfRange {
		t.Errorf("SetValue(score.scaled, 1.5) = (%q, %d), want (false, %d)",
			result, cmiErr.Code, Err2004OutOfRange)
	}
	// 越界被拒后不得出现半截写入
	if v, _ := rt.GetValue(ElScoreScaled); v != "0.85" {
		t.Errorf("score.scaled = %q after rejected write, want 0.85", v)
	}
}

func TestSetValue_RejectsNonNumericScore(t *testing.T) {
	rt := newTestRuntime(Version12)
	rt.Initialize()

	result, cmiErr := rt.SetValue(El12ScoreRaw, "eighty")
	if result != "false" || cmiErr.Code != Err12IncorrectDataType {
		t.Errorf("SetValue(score.raw, eighty) = (%q, %d), want (false, %d)",
			result, cmiErr.Code, Err12IncorrectDataType)
	}
}

func TestSessionTime_AccumulatesIntoTotal(t *testing.T) {
	rt := NewRuntime(RuntimeConfig{
		Version:   Version12,
		LearnerID: "u-42",
		Data:      map[string]string{El12TotalTime: "0000:01:00.00"},
	})
	rt.Initialize()

	if result, cmiErr := rt.SetValue(El12SessionTime, "0000:00:30.00"); result != "true" {
		t.Fatalf("SetValue(session_time) = (%q, %d)", result, cmiErr.Code)
	}
	if v, _ := rt.GetValue(El12TotalTime); v != "0000:01:30.00" {
		t.Errorf("total_time = %q, want 0000:01:30.00", v)
	}
}

func TestSessionTime_Accumulates2004(t *testing.T) {
	rt := NewRuntime(RuntimeConfig{
		Version:   Version2004,
		LearnerID: "u-42",
		Data:      map[string]string{ElTotalTime: "PT0H1M0S"},
	})
	rt.Initialize()
	rt.SetValue(ElSessionTime, "PT0H0M30S")

	v, _ := rt.GetValue(ElTotalTime)
	if secs := TimeSeconds(Version2004, v); secs != 90 {
		t.Errorf("total_time = %q (%d s), want 90 s", v, secs)
	}
}

func TestUnknownElement(t *testing.T) {
	rt := newTestRuntime(Version2004)
	rt.Initialize()

	v, cmiErr := rt.GetValue("cmi.bogus_element")
	if v != "" || cmiErr.Code != Err2004UndefinedElement {
		t.Errorf("GetValue(bogus) = (%q, %d), want (\"\", %d)", v, cmiErr.Code, Err2004UndefinedElement)
	}
	result, cmiErr := rt.SetValue("cmi.bogus_element", "x")
	if result != "false" || cmiErr.Code != Err2004UndefinedElement {
		t.Errorf("SetValue(bogus) = (%q, %d), want (false, %d)", result, cmiErr.Code, Err2004UndefinedElement)
	}
}

func TestInteractionExtensionBucketAndCount(t *testing.T) {
	rt := newTestRuntime(Version2004)
	rt.Initialize()

	rt.SetValue("cmi.interactions.0.id", "q1")
	rt.SetValue("cmi.interactions.0.result", "correct")
	rt.SetValue("cmi.interactions.1.id", "q2")

	if v, _ := rt.GetValue("cmi.interactions.0.result"); v != "correct" {
		t.Errorf("interactions.0.result = %q, want correct", v)
	}
	if v, _ := rt.GetValue("cmi.interactions._count"); v != "2" {
		t.Errorf("interactions._count = %q, want 2", v)
	}
	if v, _ := rt.GetValue("cmi.objectives._count"); v != "0" {
		t.Errorf("objectives._count = %q, want 0", v)
	}

	if result, cmiErr := rt.SetValue("cmi.interactions._count", "5"); result != "false" || cmiErr.OK() {
		t.Errorf("SetValue(_count) = (%q, %d), want rejected", result, cmiErr.Code)
	}
}

func TestChildrenElements(t *testing.T) {
	rt := newTestRuntime(Version12)
	rt.Initialize()

	v, cmiErr := rt.GetValue("cmi.core.score._children")
	if !cmiErr.OK() || v != "raw,min,max" {
		t.Errorf("score._children = (%q, %d), want raw,min,max", v, cmiErr.Code)
	}
}

func TestTerminate_ThenCallsFail(t *testing.T) {
	rt := newTestRuntime(Version2004)
	rt.Initialize()

	if result, cmiErr := rt.Terminate(); result != "true" || !cmiErr.OK() {
		t.Fatalf("Terminate = (%q, %d)", result, cmiErr.Code)
	}

	if _, cmiErr := rt.GetValue(ElCompletionStatus); cmiErr.Code != Err2004GetAfterTerm {
		t.Errorf("GetValue after Terminate code = %d, want %d", cmiErr.Code, Err2004GetAfterTerm)
	}
	if result, cmiErr := rt.SetValue(ElLocation, "p5"); result != "false" || cmiErr.Code != Err2004SetAfterTerm {
		t.Errorf("SetValue after Terminate = (%q, %d), want (false, %d)", result, cmiErr.Code, Err2004SetAfterTerm)
	}
	if result, cmiErr := rt.Commit(); result != "false" || cmiErr.Code != Err2004CommitAfterTerm {
		t.Errorf("Commit after Terminate = (%q, %d), want (false, %d)", result, cmiErr.Code, Err2004CommitAfterTerm)
	}
	if result, cmiErr := rt.Terminate(); result != "false" || cmiErr.Code != Err2004TermAfterTerm {
		t.Errorf("double Terminate = (%q, %d), want (false, %d)", result, cmiErr.Code, Err2004TermAfterTerm)
	}
}

func TestDirtyTracking(t *testing.T) {
	rt := newTestRuntime(Version12)
	rt.Initialize()
	rt.ClearDirty()

	if rt.Dirty() {
		t.Fatal("runtime dirty after ClearDirty")
	}
	rt.SetValue(El12Location, "page-3")
	if !rt.Dirty() {
		t.Fatal("runtime not dirty after SetValue")
	}
	rt.ClearDirty()
	// 写入相同值不置脏：重复 Commit 幂等的基础
	rt.SetValue(El12Location, "page-3")
	if rt.Dirty() {
		t.Error("runtime dirty after writing identical value")
	}
}

func TestErrorString(t *testing.T) {
	if s := ErrorString(Version12, Err12NotInitialized); s != "Not initialized" {
		t.Errorf("ErrorString(1.2, 301) = %q", s)
	}
	if s := ErrorString(Version2004, Err2004ReadOnly); s != "Data Model Element Is Read Only" {
		t.Errorf("ErrorString(2004, 404) = %q", s)
	}
	if s := ErrorString(Version12, 999); s != "" {
		t.Errorf("ErrorString(1.2, 999) = %q, want empty", s)
	}
}
