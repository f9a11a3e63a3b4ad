package scorm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// 包版本标签。解析器还会产出 storyline/captivate/lectora/html5/legacy 这类指纹标签，
// 运行时一律按 1.2 语义处理非 2004 的包。
const (
	Version12   = "1.2"
	Version2004 = "2004"
	VersionXAPI = "xapi"
)

// RuntimeVersion 把包版本标签归一到 RTE 数据模型版本（1.2 或 2004）
func RuntimeVersion(packageVersion string) string {
	if packageVersion == Version2004 {
		return Version2004
	}
	return Version12
}

// ElementSpec 描述一个已知 CMI 元素：默认值、读写约束和取值校验。
// 这是对原实现"全部塞进无类型字典"的重构：30 来个已知元素有编译期模式，
// cmi.interactions.N.* / cmi.objectives.N.* 这类数组元素走扩展桶。
type ElementSpec struct {
	Default   string
	ReadOnly  bool
	WriteOnly bool
	Validate  func(version, value string) CMIError
}

func enumOf(values ...string) func(string, string) CMIError {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return func(version, value string) CMIError {
		if set[value] {
			return noError
		}
		return cmiErr(codeTypeMismatch(version),
			fmt.Sprintf("value %q not in vocabulary {%s}", value, strings.Join(values, ",")))
	}
}

// decimalRange 校验可解析的十进制数并检查闭区间。分数一律走 decimal，
// 不做静默截断：越界直接拒绝。
func decimalRange(min, max string) func(string, string) CMIError {
	var lo, hi *decimal.Decimal
	if min != "" {
		d := decimal.RequireFromString(min)
		lo = &d
	}
	if max != "" {
		d := decimal.RequireFromString(max)
		hi = &d
	}
	return func(version, value string) CMIError {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return cmiErr(codeTypeMismatch(version), fmt.Sprintf("value %q is not a decimal", value))
		}
		if lo != nil && d.LessThan(*lo) || hi != nil && d.GreaterThan(*hi) {
			return cmiErr(codeOutOfRange(version),
				fmt.Sprintf("value %q outside [%s,%s]", value, min, max))
		}
		return noError
	}
}

func validateTimespan12(version, value string) CMIError {
	if _, err := ParseSCORM12Time(value); err != nil {
		return cmiErr(codeTypeMismatch(version), err.Error())
	}
	return noError
}

func validateISODuration(version, value string) CMIError {
	if _, err := ParseISO8601Duration(value); err != nil {
		return cmiErr(codeTypeMismatch(version), err.Error())
	}
	return noError
}

// 常用元素名
const (
	El12StudentID    = "cmi.core.student_id"
	El12StudentName  = "cmi.core.student_name"
	El12Location     = "cmi.core.lesson_location"
	El12Credit       = "cmi.core.credit"
	El12LessonStatus = "cmi.core.lesson_status"
	El12Entry        = "cmi.core.entry"
	El12ScoreRaw     = "cmi.core.score.raw"
	El12ScoreMin     = "cmi.core.score.min"
	El12ScoreMax     = "cmi.core.score.max"
	El12TotalTime    = "cmi.core.total_time"
	El12LessonMode   = "cmi.core.lesson_mode"
	El12Exit         = "cmi.core.exit"
	El12SessionTime  = "cmi.core.session_time"
	El12SuspendData  = "cmi.suspend_data"
	El12LaunchData   = "cmi.launch_data"
	El12MasteryScore = "cmi.student_data.mastery_score"

	ElVersion          = "cmi._version"
	ElLearnerID        = "cmi.learner_id"
	ElLearnerName      = "cmi.learner_name"
	ElLocation         = "cmi.location"
	ElCredit           = "cmi.credit"
	ElCompletionStatus = "cmi.completion_status"
	ElSuccessStatus    = "cmi.success_status"
	ElEntry            = "cmi.entry"
	ElExit             = "cmi.exit"
	ElMode             = "cmi.mode"
	ElScoreScaled      = "cmi.score.scaled"
	ElScoreRaw         = "cmi.score.raw"
	ElScoreMin         = "cmi.score.min"
	ElScoreMax         = "cmi.score.max"
	ElTotalTime        = "cmi.total_time"
	ElSessionTime      = "cmi.session_time"
	ElSuspendData      = "cmi.suspend_data"
	ElLaunchData       = "cmi.launch_data"
	ElProgressMeasure  = "cmi.progress_measure"
)

// 取值词汇表
const (
	StatusPassed       = "passed"
	StatusCompleted    = "completed"
	StatusFailed       = "failed"
	StatusIncomplete   = "incomplete"
	StatusBrowsed      = "browsed"
	StatusNotAttempted = "not attempted"
	StatusUnknown      = "unknown"

	EntryAbInitio = "ab-initio"
	EntryResume   = "resume"
)

var scorm12Elements = map[string]ElementSpec{
	"cmi.core._children": {ReadOnly: true,
		Default: "student_id,student_name,lesson_location,credit,lesson_status,entry,score,total_time,lesson_mode,exit,session_time"},
	El12StudentID:   {ReadOnly: true},
	El12StudentName: {ReadOnly: true},
	El12Location:    {},
	El12Credit:      {ReadOnly: true, Default: "credit"},
	El12LessonStatus: {Default: StatusNotAttempted,
		Validate: enumOf(StatusPassed, StatusCompleted, StatusFailed, StatusIncomplete, StatusBrowsed, StatusNotAttempted)},
	El12Entry:                 {ReadOnly: true, Default: EntryAbInitio},
	"cmi.core.score._children": {ReadOnly: true, Default: "raw,min,max"},
	El12ScoreRaw:              {Validate: decimalRange("0", "100")},
	El12ScoreMin:              {Default: "0", Validate: decimalRange("0", "100")},
	El12ScoreMax:              {Default: "100", Validate: decimalRange("0", "100")},
	El12TotalTime:             {ReadOnly: true, Default: "0000:00:00.00"},
	El12LessonMode:            {ReadOnly: true, Default: "normal"},
	El12Exit:                  {WriteOnly: true, Validate: enumOf("time-out", "suspend", "logout", "")},
	El12SessionTime:           {WriteOnly: true, Validate: validateTimespan12},
	El12SuspendData:           {},
	El12LaunchData:            {ReadOnly: true},
	"cmi.comments":            {},
	"cmi.comments_from_lms":   {ReadOnly: true},
	"cmi.student_data._children":        {ReadOnly: true, Default: "mastery_score,max_time_allowed,time_limit_action"},
	El12MasteryScore:                    {ReadOnly: true},
	"cmi.student_data.max_time_allowed": {ReadOnly: true},
	"cmi.student_data.time_limit_action": {ReadOnly: true},
	"cmi.student_preference._children":  {ReadOnly: true, Default: "audio,language,speed,text"},
	"cmi.student_preference.audio":      {Default: "0", Validate: decimalRange("-1", "100")},
	"cmi.student_preference.language":   {},
	"cmi.student_preference.speed":      {Default: "0", Validate: decimalRange("-100", "100")},
	"cmi.student_preference.text":       {Default: "0", Validate: decimalRange("-1", "1")},
	"cmi.objectives._children":          {ReadOnly: true, Default: "id,score,status"},
	"cmi.interactions._children": {ReadOnly: true,
		Default: "id,objectives,time,type,correct_responses,weighting,student_response,result,latency"},
}

var scorm2004Elements = map[string]ElementSpec{
	ElVersion:     {ReadOnly: true, Default: "1.0"},
	ElLearnerID:   {ReadOnly: true},
	ElLearnerName: {ReadOnly: true},
	ElLocation:    {},
	ElCredit:      {ReadOnly: true, Default: "credit"},
	ElCompletionStatus: {Default: StatusUnknown,
		Validate: enumOf(StatusCompleted, StatusIncomplete, StatusNotAttempted, StatusUnknown)},
	ElSuccessStatus: {Default: StatusUnknown,
		Validate: enumOf(StatusPassed, StatusFailed, StatusUnknown)},
	ElEntry:                {ReadOnly: true, Default: EntryAbInitio},
	ElExit:                 {WriteOnly: true, Validate: enumOf("time-out", "suspend", "logout", "normal", "")},
	ElMode:                 {ReadOnly: true, Default: "normal"},
	"cmi.score._children":  {ReadOnly: true, Default: "scaled,raw,min,max"},
	ElScoreScaled:          {Validate: decimalRange("-1", "1")},
	ElScoreRaw:             {Validate: decimalRange("", "")},
	ElScoreMin:             {Validate: decimalRange("", "")},
	ElScoreMax:             {Validate: decimalRange("", "")},
	ElTotalTime:            {ReadOnly: true, Default: "PT0H0M0S"},
	ElSessionTime:          {WriteOnly: true, Validate: validateISODuration},
	ElSuspendData:          {},
	ElLaunchData:           {ReadOnly: true},
	ElProgressMeasure:      {Validate: decimalRange("0", "1")},
	"cmi.completion_threshold":   {ReadOnly: true},
	"cmi.scaled_passing_score":   {ReadOnly: true},
	"cmi.max_time_allowed":       {ReadOnly: true},
	"cmi.time_limit_action":      {ReadOnly: true, Default: "continue,no message"},
	"cmi.learner_preference._children": {ReadOnly: true,
		Default: "audio_level,language,delivery_speed,audio_captioning"},
	"cmi.learner_preference.audio_level":      {Default: "1", Validate: decimalRange("0", "")},
	"cmi.learner_preference.language":         {},
	"cmi.learner_preference.delivery_speed":   {Default: "1", Validate: decimalRange("0", "")},
	"cmi.learner_preference.audio_captioning": {Default: "0", Validate: enumOf("-1", "0", "1")},
	"cmi.objectives._children": {ReadOnly: true,
		Default: "id,score,success_status,completion_status,progress_measure,description"},
	"cmi.interactions._children": {ReadOnly: true,
		Default: "id,type,objectives,timestamp,correct_responses,weighting,learner_response,result,latency,description"},
}

// arrayElementPattern 识别数组下标元素，如 cmi.interactions.3.learner_response
var arrayElementPattern = regexp.MustCompile(`^cmi\.(interactions|objectives)\.(\d+)\.`)

// countElementPattern 识别 _count 元素，如 cmi.interactions._count
var countElementPattern = regexp.MustCompile(`^cmi\.(interactions|objectives)\._count$`)

type elementKind int

const (
	kindUnknown elementKind = iota
	kindKnown
	kindCount
	kindExtension
)

func elementTable(version string) map[string]ElementSpec {
	if version == Version2004 {
		return scorm2004Elements
	}
	return scorm12Elements
}

// lookupElement 把元素名归类：已知元素带模式、_count 计算元素、数组扩展元素或未知
func lookupElement(version, element string) (ElementSpec, elementKind) {
	if spec, ok := elementTable(version)[element]; ok {
		return spec, kindKnown
	}
	if countElementPattern.MatchString(element) {
		return ElementSpec{ReadOnly: true}, kindCount
	}
	if arrayElementPattern.MatchString(element) {
		return ElementSpec{}, kindExtension
	}
	return ElementSpec{}, kindUnknown
}

// ElementDefault 返回元素的版本默认值（未知元素为空串）
func ElementDefault(version, element string) string {
	spec, kind := lookupElement(version, element)
	if kind == kindKnown {
		return spec.Default
	}
	return ""
}

// arrayCount 数 _count：扫描形如 cmi.<bucket>.N.* 的键，取最大下标+1
func arrayCount(data map[string]string, element string) int {
	bucket := strings.TrimSuffix(element, "._count") + "."
	max := -1
	for k := range data {
		if !strings.HasPrefix(k, bucket) {
			continue
		}
		rest := k[len(bucket):]
		dot := strings.IndexByte(rest, '.')
		if dot <= 0 {
			continue
		}
		if n, err := strconv.Atoi(rest[:dot]); err == nil && n > max {
			max = n
		}
	}
	return max + 1
}
