package util

import "errors"

var (
	ErrUserNotFound       = errors.New("用户不存在")
	ErrEmailRegistered    = errors.New("该邮箱已被注册")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrCourseNotFound     = errors.New("course not found")
	ErrPackageNotFound    = errors.New("package not found")
	ErrAttemptNotFound    = errors.New("attempt not found")
	ErrAttemptNotOwned    = errors.New("attempt belongs to another learner")
	ErrPackageTooLarge    = errors.New("package exceeds configured size limit")
	ErrSessionActive      = errors.New("another RTE session is active for this attempt")
	ErrInferenceDisabled  = errors.New("completion inference is disabled by configuration")
	ErrAttemptCompleted   = errors.New("attempt already completed")
	ErrUnsupportedArchive = errors.New("uploaded file is not a zip archive")
)
