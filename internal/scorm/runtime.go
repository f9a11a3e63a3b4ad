package scorm

import (
	"fmt"
	"strings"
)

// State RTE 状态机：uninitialized → initialized → terminated，单向。
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateTerminated
)

// Runtime 实现单个学习者一次 Attempt 的 SCORM RTE 合同。
// 纯内存状态机：持久化、HTTP、进度联动都在 service 层。每次调用都返回
// (值, CMIError)，错误码显式随结果返回，不藏在实例字段里；API 层为了服务
// GetLastError 才另行记录最近一次码。
type Runtime struct {
	version string // Version12 或 Version2004
	state   State
	data    map[string]string
	dirty   map[string]bool

	learnerID   string
	learnerName string
}

// RuntimeConfig 构造参数。Data 是已持久化的 CMI 映射（可为 nil），
// Initialized 用于跨请求恢复已初始化的会话。
type RuntimeConfig struct {
	Version     string
	LearnerID   string
	LearnerName string
	Data        map[string]string
	Initialized bool
}

func NewRuntime(cfg RuntimeConfig) *Runtime {
	data := make(map[string]string, len(cfg.Data)+8)
	for k, v := range cfg.Data {
		data[k] = v
	}
	state := StateUninitialized
	if cfg.Initialized {
		state = StateInitialized
	}
	return &Runtime{
		version:     RuntimeVersion(cfg.Version),
		state:       state,
		data:        data,
		dirty:       make(map[string]bool),
		learnerID:   cfg.LearnerID,
		learnerName: cfg.LearnerName,
	}
}

func (r *Runtime) Version() string { return r.version }
func (r *Runtime) State() State    { return r.state }

// Snapshot 返回 CMI 映射的拷贝，供持久化
func (r *Runtime) Snapshot() map[string]string {
	out := make(map[string]string, len(r.data))
	for k, v := range r.data {
		out[k] = v
	}
	return out
}

// Dirty 自上次 Commit 以来是否有未持久化的写入
func (r *Runtime) Dirty() bool { return len(r.dirty) > 0 }

// ClearDirty 持久化完成后由调用方清除
func (r *Runtime) ClearDirty() { r.dirty = make(map[string]bool) }

func (r *Runtime) set(element, value string) {
	if r.data[element] != value {
		r.data[element] = value
		r.dirty[element] = true
	}
}

// Initialize 进入 initialized 状态，播种身份元素并判定 entry 模式。
// 重复初始化返回失败（1.2: 101，2004: 103）。
func (r *Runtime) Initialize() (string, CMIError) {
	switch r.state {
	case StateInitialized:
		return "false", cmiErr(codeAlreadyInitialized(r.version), "Initialize called twice")
	case StateTerminated:
		return "false", cmiErr(Err2004ContentTerminated, "Initialize after Terminate")
	}

	r.state = StateInitialized

	// 有书签或挂起数据即视为续学
	entry := EntryAbInitio
	if r.data[r.suspendDataElement()] != "" || r.data[r.locationElement()] != "" {
		entry = EntryResume
	}

	if r.version == Version2004 {
		r.set(ElLearnerID, r.learnerID)
		r.set(ElLearnerName, r.learnerName)
		r.set(ElEntry, entry)
	} else {
		r.set(El12StudentID, r.learnerID)
		r.set(El12StudentName, r.learnerName)
		r.set(El12Entry, entry)
	}

	return "true", noError
}

// GetValue 读元素。已存且非空返回存储值；否则返回版本默认值。
// _count/_children 为计算元素。未知元素返回空串和错误码，永不抛异常。
func (r *Runtime) GetValue(element string) (string, CMIError) {
	switch r.state {
	case StateUninitialized:
		return "", cmiErr(codeNotInitialized(r.version, opGet), "GetValue before Initialize")
	case StateTerminated:
		return "", cmiErr(codeAfterTerminate(r.version, opGet), "GetValue after Terminate")
	}

	spec, kind := lookupElement(r.version, element)
	switch kind {
	case kindUnknown:
		return "", cmiErr(codeUndefinedElement(r.version), fmt.Sprintf("unknown element %q", element))
	case kindCount:
		return fmt.Sprintf("%d", arrayCount(r.data, element)), noError
	case kindExtension:
		return r.data[element], noError
	}

	if spec.WriteOnly {
		return "", cmiErr(codeWriteOnly(r.version), fmt.Sprintf("element %q is write only", element))
	}
	if v := r.data[element]; v != "" {
		return v, noError
	}
	return spec.Default, noError
}

// SetValue 写元素。只读集合拒绝写入；已知元素过数据类型/区间/词汇表校验；
// session_time 触发 total_time 的精确累加。
func (r *Runtime) SetValue(element, value string) (string, CMIError) {
	switch r.state {
	case StateUninitialized:
		return "false", cmiErr(codeNotInitialized(r.version, opSet), "SetValue before Initialize")
	case StateTerminated:
		return "false", cmiErr(codeAfterTerminate(r.version, opSet), "SetValue after Terminate")
	}

	spec, kind := lookupElement(r.version, element)
	switch kind {
	case kindUnknown:
		return "false", cmiErr(codeUndefinedElement(r.version), fmt.Sprintf("unknown element %q", element))
	case kindCount:
		return "false", cmiErr(codeReadOnly(r.version), "_count elements are computed")
	case kindExtension:
		r.set(element, value)
		return "true", noError
	}

	if spec.ReadOnly {
		return "false", cmiErr(codeReadOnly(r.version), fmt.Sprintf("element %q is read only", element))
	}
	if spec.Validate != nil {
		if e := spec.Validate(r.version, value); !e.OK() {
			return "false", e
		}
	}

	if element == r.sessionTimeElement() {
		if e := r.accumulateSessionTime(value); !e.OK() {
			return "false", e
		}
	}

	r.set(element, value)
	return "true", noError
}

// Commit 只做状态校验；实际持久化由调用方基于 Snapshot/Dirty 执行。
// 无写入时的重复 Commit 对持久状态零变更（幂等）。
func (r *Runtime) Commit() (string, CMIError) {
	switch r.state {
	case StateUninitialized:
		return "false", cmiErr(codeNotInitialized(r.version, opCommit), "Commit before Initialize")
	case StateTerminated:
		return "false", cmiErr(codeAfterTerminate(r.version, opCommit), "Commit after Terminate")
	}
	return "true", noError
}

// Terminate 等价于 Commit 后进入 terminated；之后所有调用按未初始化类错误处理
func (r *Runtime) Terminate() (string, CMIError) {
	switch r.state {
	case StateUninitialized:
		return "false", cmiErr(codeNotInitialized(r.version, opTerminate), "Terminate before Initialize")
	case StateTerminated:
		return "false", cmiErr(codeAfterTerminate(r.version, opTerminate), "Terminate after Terminate")
	}
	r.state = StateTerminated
	return "true", noError
}

// accumulateSessionTime 把本次会话时长加进 total_time（原生格式，厘秒精确）
func (r *Runtime) accumulateSessionTime(session string) CMIError {
	totalEl := r.totalTimeElement()
	total := r.data[totalEl]
	if total == "" {
		total = ElementDefault(r.version, totalEl)
	}
	sum, err := AddTime(r.version, total, session)
	if err != nil {
		return cmiErr(codeTypeMismatch(r.version), err.Error())
	}
	r.set(totalEl, sum)
	return noError
}

func (r *Runtime) suspendDataElement() string {
	// 两个版本恰好同名
	return ElSuspendData
}

func (r *Runtime) locationElement() string {
	if r.version == Version2004 {
		return ElLocation
	}
	return El12Location
}

func (r *Runtime) sessionTimeElement() string {
	if r.version == Version2004 {
		return ElSessionTime
	}
	return El12SessionTime
}

func (r *Runtime) totalTimeElement() string {
	if r.version == Version2004 {
		return ElTotalTime
	}
	return El12TotalTime
}

// StatusElements 返回本版本承载状态语义的元素名（供 service 层镜像到 Attempt 行）
func (r *Runtime) StatusElements() (status, success string) {
	if r.version == Version2004 {
		return ElCompletionStatus, ElSuccessStatus
	}
	return El12LessonStatus, ""
}

// IsCompletedStatus 判定某状态值是否意味着完成（passed/completed）
func IsCompletedStatus(v string) bool {
	return v == StatusPassed || v == StatusCompleted
}

// NormalizeElement SCORM 1.2 播放器偶见大小写混用的元素名；数据模型本身大小写敏感，
// 这里只整理前缀空白。
func NormalizeElement(element string) string {
	return strings.TrimSpace(element)
}
