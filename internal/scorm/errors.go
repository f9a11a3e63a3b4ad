package scorm

// SCORM 运行时错误码。两个版本的码表不兼容：1.2 只定义了 0/101/201/202/203/301/401-405，
// 2004 把初始化/终止/读写前置条件拆成了独立码位。对外的 API 层按版本取码。
const (
	ErrNoError = 0

	// 共用
	ErrGeneralException = 101

	// SCORM 1.2
	Err12InvalidArgument   = 201
	Err12NoChildren        = 202
	Err12NotAnArray        = 203
	Err12NotInitialized    = 301
	Err12NotImplemented    = 401
	Err12InvalidSetKeyword = 402
	Err12ReadOnly          = 403
	Err12WriteOnly         = 404
	Err12IncorrectDataType = 405

	// SCORM 2004 第3版
	Err2004InitFailure        = 102
	Err2004AlreadyInitialized = 103
	Err2004ContentTerminated  = 104
	Err2004TermFailure        = 111
	Err2004TermBeforeInit     = 112
	Err2004TermAfterTerm      = 113
	Err2004GetBeforeInit      = 122
	Err2004GetAfterTerm       = 123
	Err2004SetBeforeInit      = 132
	Err2004SetAfterTerm       = 133
	Err2004CommitBeforeInit   = 142
	Err2004CommitAfterTerm    = 143
	Err2004ArgumentError      = 201
	Err2004GetFailure         = 301
	Err2004SetFailure         = 351
	Err2004CommitFailure      = 391
	Err2004UndefinedElement   = 401
	Err2004Unimplemented      = 402
	Err2004NotInitializedVal  = 403
	Err2004ReadOnly           = 404
	Err2004WriteOnly          = 405
	Err2004TypeMismatch       = 406
	Err2004OutOfRange         = 407
	Err2004DependencyMissing  = 408
)

// CMIError 带码的调用结果。码为 0 表示成功；Diagnostic 是给 GetDiagnostic 的补充说明，
// 不跨越 RTE 边界抛出（见错误传播策略：RTE 函数永不 panic）。
type CMIError struct {
	Code       int
	Diagnostic string
}

// OK 码为 0 即成功
func (e CMIError) OK() bool { return e.Code == ErrNoError }

var noError = CMIError{Code: ErrNoError}

func cmiErr(code int, diagnostic string) CMIError {
	return CMIError{Code: code, Diagnostic: diagnostic}
}

var errStrings12 = map[int]string{
	ErrNoError:             "No error",
	ErrGeneralException:    "General exception",
	Err12InvalidArgument:   "Invalid argument error",
	Err12NoChildren:        "Element cannot have children",
	Err12NotAnArray:        "Element not an array. Cannot have count",
	Err12NotInitialized:    "Not initialized",
	Err12NotImplemented:    "Not implemented error",
	Err12InvalidSetKeyword: "Invalid set value, element is a keyword",
	Err12ReadOnly:          "Element is read only",
	Err12WriteOnly:         "Element is write only",
	Err12IncorrectDataType: "Incorrect data type",
}

var errStrings2004 = map[int]string{
	ErrNoError:                "No Error",
	ErrGeneralException:       "General Exception",
	Err2004InitFailure:        "General Initialization Failure",
	Err2004AlreadyInitialized: "Already Initialized",
	Err2004ContentTerminated:  "Content Instance Terminated",
	Err2004TermFailure:        "General Termination Failure",
	Err2004TermBeforeInit:     "Termination Before Initialization",
	Err2004TermAfterTerm:      "Termination After Termination",
	Err2004GetBeforeInit:      "Retrieve Data Before Initialization",
	Err2004GetAfterTerm:       "Retrieve Data After Termination",
	Err2004SetBeforeInit:      "Store Data Before Initialization",
	Err2004SetAfterTerm:       "Store Data After Termination",
	Err2004CommitBeforeInit:   "Commit Before Initialization",
	Err2004CommitAfterTerm:    "Commit After Termination",
	Err2004ArgumentError:      "General Argument Error",
	Err2004GetFailure:         "General Get Failure",
	Err2004SetFailure:         "General Set Failure",
	Err2004CommitFailure:      "General Commit Failure",
	Err2004UndefinedElement:   "Undefined Data Model Element",
	Err2004Unimplemented:      "Unimplemented Data Model Element",
	Err2004NotInitializedVal:  "Data Model Element Value Not Initialized",
	Err2004ReadOnly:           "Data Model Element Is Read Only",
	Err2004WriteOnly:          "Data Model Element Is Write Only",
	Err2004TypeMismatch:       "Data Model Element Type Mismatch",
	Err2004OutOfRange:         "Data Model Element Value Out Of Range",
	Err2004DependencyMissing:  "Data Model Dependency Not Established",
}

// ErrorString 返回指定版本码表中的描述文本，未知码返回空串（与 SCORM API 约定一致）。
func ErrorString(version string, code int) string {
	if version == Version2004 {
		return errStrings2004[code]
	}
	return errStrings12[code]
}

// 以下按版本取对应语义的码位。

func codeNotInitialized(version string, op string) int {
	if version != Version2004 {
		return Err12NotInitialized
	}
	switch op {
	case opGet:
		return Err2004GetBeforeInit
	case opSet:
		return Err2004SetBeforeInit
	case opCommit:
		return Err2004CommitBeforeInit
	case opTerminate:
		return Err2004TermBeforeInit
	}
	return Err2004InitFailure
}

func codeAfterTerminate(version string, op string) int {
	if version != Version2004 {
		return Err12NotInitialized
	}
	switch op {
	case opGet:
		return Err2004GetAfterTerm
	case opSet:
		return Err2004SetAfterTerm
	case opCommit:
		return Err2004CommitAfterTerm
	case opTerminate:
		return Err2004TermAfterTerm
	}
	return ErrGeneralException
}

func codeAlreadyInitialized(version string) int {
	if version == Version2004 {
		return Err2004AlreadyInitialized
	}
	return ErrGeneralException
}

func codeReadOnly(version string) int {
	if version == Version2004 {
		return Err2004ReadOnly
	}
	return Err12ReadOnly
}

func codeWriteOnly(version string) int {
	if version == Version2004 {
		return Err2004WriteOnly
	}
	return Err12WriteOnly
}

func codeTypeMismatch(version string) int {
	if version == Version2004 {
		return Err2004TypeMismatch
	}
	return Err12IncorrectDataType
}

func codeOutOfRange(version string) int {
	if version == Version2004 {
		return Err2004OutOfRange
	}
	// 1.2 没有独立的越界码，规范实现同样报数据类型错误
	return Err12IncorrectDataType
}

func codeUndefinedElement(version string) int {
	if version == Version2004 {
		return Err2004UndefinedElement
	}
	return Err12NotImplemented
}

const (
	opGet       = "get"
	opSet       = "set"
	opCommit    = "commit"
	opTerminate = "terminate"
)
