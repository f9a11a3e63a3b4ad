package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"scorm_lms_backend/internal/config"
	"scorm_lms_backend/internal/model"
	"scorm_lms_backend/internal/repository"
	"scorm_lms_backend/internal/scorm"
	"scorm_lms_backend/internal/util"
	"scorm_lms_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RuntimeService 把内存态的 RTE 状态机架在无状态 HTTP 上。会话存在性记在
// Redis（scorm:session:<attemptId>，带 TTL），CMI 数据每次调用从行里重建；
// 最近错误码也记在 Redis，专供 GetLastError/GetErrorString/GetDiagnostic。
type RuntimeService struct {
	AttemptRepo  *repository.AttemptRepository
	PackageRepo  *repository.PackageRepository
	ProgressRepo *repository.ProgressRepository
	UserRepo     *repository.UserRepository
	Redis        *redis.Client
	Cfg          *config.Config
}

func NewRuntimeService(
	attemptRepo *repository.AttemptRepository,
	packageRepo *repository.PackageRepository,
	progressRepo *repository.ProgressRepository,
	userRepo *repository.UserRepository,
	rdb *redis.Client,
	cfg *config.Config,
) *RuntimeService {
	return &RuntimeService{
		AttemptRepo:  attemptRepo,
		PackageRepo:  packageRepo,
		ProgressRepo: progressRepo,
		UserRepo:     userRepo,
		Redis:        rdb,
		Cfg:          cfg,
	}
}

// RTEResult RTE 调用的统一出参。协议层错误走 ErrorCode（HTTP 始终 200），
// 基础设施错误才通过 error 冒泡成 5xx。
type RTEResult struct {
	Result    string `json:"result"`
	ErrorCode int    `json:"errorCode"`
}

func sessionKey(attemptID uint) string { return fmt.Sprintf("scorm:session:%d", attemptID) }
func lastErrKey(attemptID uint) string { return fmt.Sprintf("scorm:lasterr:%d", attemptID) }
func lastDiagKey(attemptID uint) string {
	return fmt.Sprintf("scorm:lastdiag:%d", attemptID)
}

func (s *RuntimeService) sessionTTL() time.Duration {
	return time.Duration(s.Cfg.Scorm.SessionTTLMinutes) * time.Minute
}

// loadAttempt 取 Attempt 并校验归属
func (s *RuntimeService) loadAttempt(attemptID, userID uint) (*model.ScormAttempt, error) {
	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, util.ErrAttemptNotOwned
	}
	return attempt, nil
}

// recordError 每次 RTE 调用后都刷新最近错误码；0 也要写（成功调用清除旧错）
func (s *RuntimeService) recordError(ctx context.Context, attemptID uint, e scorm.CMIError) {
	ttl := s.sessionTTL()
	s.Redis.Set(ctx, lastErrKey(attemptID), e.Code, ttl)
	s.Redis.Set(ctx, lastDiagKey(attemptID), e.Diagnostic, ttl)
}

// sessionLive 会话令牌是否还在
func (s *RuntimeService) sessionLive(ctx context.Context, attemptID uint) (bool, error) {
	n, err := s.Redis.Exists(ctx, sessionKey(attemptID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// restore 从行重建状态机。会话令牌在则恢复成 initialized 态；不在则是
// uninitialized 态，调用自然得到协议的未初始化错误码。Terminate 过的
// Attempt 允许再次 Initialize 开新会话（挂起续学就是这么回来的）。
func (s *RuntimeService) restore(attempt *model.ScormAttempt, user *model.User, initialized bool) *scorm.Runtime {
	return scorm.NewRuntime(scorm.RuntimeConfig{
		Version:     attempt.Version,
		LearnerID:   strconv.FormatUint(uint64(user.ID), 10),
		LearnerName: user.Name,
		Data:        attempt.CMIMap(),
		Initialized: initialized,
	})
}

// Initialize 开始一次 RTE 会话。同一 Attempt 已有活跃会话（另一个标签页）时
// 按"重复初始化"的协议码拒绝。
func (s *RuntimeService) Initialize(ctx context.Context, attemptID, userID uint) (*RTEResult, error) {
	attempt, err := s.loadAttempt(attemptID, userID)
	if err != nil {
		return nil, err
	}
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}

	ok, err := s.Redis.SetNX(ctx, sessionKey(attemptID), time.Now().Unix(), s.sessionTTL()).Result()
	if err != nil {
		return nil, err
	}

	rt := s.restore(attempt, user, !ok)

	result, cmiErr := rt.Initialize()
	s.recordError(ctx, attemptID, cmiErr)
	if result != "true" {
		if ok {
			s.Redis.Del(ctx, sessionKey(attemptID))
		}
		return &RTEResult{Result: result, ErrorCode: cmiErr.Code}, nil
	}

	// 初始化播种的身份/entry 元素落库
	saved, err := s.AttemptRepo.SaveWithLock(ctx, attemptID, func(a *model.ScormAttempt) error {
		if err := a.SetCMIMap(rt.Snapshot()); err != nil {
			return err
		}
		a.Entry = rt.Snapshot()[entryElement(rt.Version())]
		return nil
	})
	if err != nil {
		s.Redis.Del(ctx, sessionKey(attemptID))
		return nil, err
	}

	_ = s.UserRepo.UpdateLastSeen(userID)
	logger.Log.Info("rte session initialized",
		zap.Uint("attemptId", attemptID),
		zap.Uint("userId", userID),
		zap.String("entry", saved.Entry))
	return &RTEResult{Result: "true", ErrorCode: scorm.ErrNoError}, nil
}

// GetValue 读 CMI 元素；不落库
func (s *RuntimeService) GetValue(ctx context.Context, attemptID, userID uint, element string) (string, *RTEResult, error) {
	attempt, err := s.loadAttempt(attemptID, userID)
	if err != nil {
		return "", nil, err
	}
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return "", nil, err
	}
	live, err := s.sessionLive(ctx, attemptID)
	if err != nil {
		return "", nil, err
	}

	rt := s.restore(attempt, user, live)
	value, cmiErr := rt.GetValue(scorm.NormalizeElement(element))
	s.recordError(ctx, attemptID, cmiErr)

	result := "true"
	if !cmiErr.OK() {
		result = "false"
	}
	return value, &RTEResult{Result: result, ErrorCode: cmiErr.Code}, nil
}

// SetValue 写 CMI 元素，行锁下读-改-写整个快照
func (s *RuntimeService) SetValue(ctx context.Context, attemptID, userID uint, element, value string) (*RTEResult, error) {
	attempt, err := s.loadAttempt(attemptID, userID)
	if err != nil {
		return nil, err
	}
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	live, err := s.sessionLive(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	if !live {
		rt := s.restore(attempt, user, false)
		result, cmiErr := rt.SetValue(scorm.NormalizeElement(element), value)
		s.recordError(ctx, attemptID, cmiErr)
		return &RTEResult{Result: result, ErrorCode: cmiErr.Code}, nil
	}

	var out RTEResult
	_, err = s.AttemptRepo.SaveWithLock(ctx, attemptID, func(a *model.ScormAttempt) error {
		rt := s.restore(a, user, true)
		result, cmiErr := rt.SetValue(scorm.NormalizeElement(element), value)
		s.recordError(ctx, attemptID, cmiErr)
		out = RTEResult{Result: result, ErrorCode: cmiErr.Code}
		if result != "true" || !rt.Dirty() {
			return nil
		}
		return s.applySnapshot(a, rt)
	})
	if err != nil {
		return nil, err
	}
	s.Redis.Expire(ctx, sessionKey(attemptID), s.sessionTTL())
	return &out, nil
}

// Commit 持久化并把结果联动到课程进度
func (s *RuntimeService) Commit(ctx context.Context, attemptID, userID uint) (*RTEResult, error) {
	return s.commitOrTerminate(ctx, attemptID, userID, false)
}

// Terminate 隐式 Commit 后结束会话；之后对本 Attempt 的调用按协议报错
func (s *RuntimeService) Terminate(ctx context.Context, attemptID, userID uint) (*RTEResult, error) {
	return s.commitOrTerminate(ctx, attemptID, userID, true)
}

func (s *RuntimeService) commitOrTerminate(ctx context.Context, attemptID, userID uint, terminate bool) (*RTEResult, error) {
	attempt, err := s.loadAttempt(attemptID, userID)
	if err != nil {
		return nil, err
	}
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	live, err := s.sessionLive(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	if !live {
		rt := s.restore(attempt, user, false)
		var result string
		var cmiErr scorm.CMIError
		if terminate {
			result, cmiErr = rt.Terminate()
		} else {
			result, cmiErr = rt.Commit()
		}
		s.recordError(ctx, attemptID, cmiErr)
		return &RTEResult{Result: result, ErrorCode: cmiErr.Code}, nil
	}

	var out RTEResult
	saved, err := s.AttemptRepo.SaveWithLock(ctx, attemptID, func(a *model.ScormAttempt) error {
		rt := s.restore(a, user, true)
		var result string
		var cmiErr scorm.CMIError
		if terminate {
			result, cmiErr = rt.Terminate()
		} else {
			result, cmiErr = rt.Commit()
		}
		s.recordError(ctx, attemptID, cmiErr)
		out = RTEResult{Result: result, ErrorCode: cmiErr.Code}
		if result != "true" {
			return nil
		}
		if err := s.applySnapshot(a, rt); err != nil {
			return err
		}
		if terminate {
			a.Terminated = true
			if a.ExitMode == "" {
				a.ExitMode = "normal"
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.Result == "true" {
		if err := s.propagateProgress(ctx, saved); err != nil {
			// 进度联动失败不回滚 CMI 落库，记日志由对账兜底
			logger.Log.Error("progress propagation failed",
				zap.Uint("attemptId", attemptID), zap.Error(err))
		}
		if terminate {
			s.Redis.Del(ctx, sessionKey(attemptID))
			logger.Log.Info("rte session terminated",
				zap.Uint("attemptId", attemptID),
				zap.String("lessonStatus", saved.LessonStatus),
				zap.String("completionStatus", saved.CompletionStatus))
		} else {
			s.Redis.Expire(ctx, sessionKey(attemptID), s.sessionTTL())
		}
	}
	return &out, nil
}

// applySnapshot 把状态机快照写回行：完整 CMI JSON + 类型化镜像字段。
// 完成语义在这里落地：passed/completed 置完成时间戳（协议路径优先于推断路径）。
func (s *RuntimeService) applySnapshot(a *model.ScormAttempt, rt *scorm.Runtime) error {
	snap := rt.Snapshot()
	if err := a.SetCMIMap(snap); err != nil {
		return err
	}

	if rt.Version() == scorm.Version2004 {
		a.CompletionStatus = orDefault(snap[scorm.ElCompletionStatus], a.CompletionStatus)
		a.SuccessStatus = orDefault(snap[scorm.ElSuccessStatus], a.SuccessStatus)
		a.ScoreScaled = snap[scorm.ElScoreScaled]
		a.ScoreRaw = snap[scorm.ElScoreRaw]
		a.ScoreMin = snap[scorm.ElScoreMin]
		a.ScoreMax = snap[scorm.ElScoreMax]
		a.TotalTime = orDefault(snap[scorm.ElTotalTime], a.TotalTime)
		a.LessonLocation = snap[scorm.ElLocation]
		a.SuspendData = snap[scorm.ElSuspendData]
		a.Entry = orDefault(snap[scorm.ElEntry], a.Entry)
		a.ExitMode = snap[scorm.ElExit]
	} else {
		a.LessonStatus = orDefault(snap[scorm.El12LessonStatus], a.LessonStatus)
		a.ScoreRaw = snap[scorm.El12ScoreRaw]
		a.ScoreMin = snap[scorm.El12ScoreMin]
		a.ScoreMax = snap[scorm.El12ScoreMax]
		a.TotalTime = orDefault(snap[scorm.El12TotalTime], a.TotalTime)
		a.LessonLocation = snap[scorm.El12Location]
		a.SuspendData = snap[scorm.ElSuspendData]
		a.Entry = orDefault(snap[scorm.El12Entry], a.Entry)
		a.ExitMode = snap[scorm.El12Exit]
		// 1.2 的 lesson_status 同时承载成败语义
		switch a.LessonStatus {
		case scorm.StatusPassed:
			a.SuccessStatus = scorm.StatusPassed
		case scorm.StatusFailed:
			a.SuccessStatus = scorm.StatusFailed
		}
	}

	status := a.LessonStatus
	if rt.Version() == scorm.Version2004 {
		status = a.CompletionStatus
		if a.SuccessStatus == scorm.StatusPassed {
			status = scorm.StatusPassed
		}
	}
	if scorm.IsCompletedStatus(status) && a.CompletedAt == nil {
		now := time.Now()
		a.CompletedAt = &now
	}
	return nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// propagateProgress 把 Attempt 的结果汇总进 学习者+课程 的进度记录
func (s *RuntimeService) propagateProgress(ctx context.Context, attempt *model.ScormAttempt) error {
	pkg, err := s.PackageRepo.FindByID(attempt.PackageID)
	if err != nil {
		return err
	}

	score := attemptScore(attempt)
	completed := attempt.CompletedAt != nil

	_, err = s.ProgressRepo.Upsert(attempt.UserID, pkg.CourseID, func(p *model.CourseProgress) {
		p.LastScore = score
		if score > p.BestScore {
			p.BestScore = score
		}
		p.TotalTimeSeconds = scorm.TimeSeconds(attempt.Version, attempt.TotalTime)
		if attempt.AttemptNumber > p.AttemptCount {
			p.AttemptCount = attempt.AttemptNumber
		}
		if completed && !p.Completed {
			p.Completed = true
			p.CompletionMethod = model.CompletionMethodScorm
			p.CompletedAt = attempt.CompletedAt
		}
	})
	return err
}

// attemptScore 统一成 0–100：优先 raw，缺失时用 scaled×100
func attemptScore(a *model.ScormAttempt) float64 {
	if a.ScoreRaw != "" {
		if d, err := decimal.NewFromString(a.ScoreRaw); err == nil {
			f, _ := d.Float64()
			return f
		}
	}
	if a.ScoreScaled != "" {
		if d, err := decimal.NewFromString(a.ScoreScaled); err == nil {
			f, _ := d.Mul(decimal.NewFromInt(100)).Float64()
			return f
		}
	}
	return 0
}

// LastError 读最近错误码（无记录返回 0）
func (s *RuntimeService) LastError(ctx context.Context, attemptID, userID uint) (int, error) {
	if _, err := s.loadAttempt(attemptID, userID); err != nil {
		return 0, err
	}
	code, err := s.Redis.Get(ctx, lastErrKey(attemptID)).Int()
	if errors.Is(err, redis.Nil) {
		return scorm.ErrNoError, nil
	}
	return code, err
}

// ErrorText 错误码的协议描述文本（未知码返回空串）
func (s *RuntimeService) ErrorText(ctx context.Context, attemptID, userID uint, code int) (string, error) {
	attempt, err := s.loadAttempt(attemptID, userID)
	if err != nil {
		return "", err
	}
	return scorm.ErrorString(attempt.Version, code), nil
}

// Diagnostic 最近一次调用的诊断详情
func (s *RuntimeService) Diagnostic(ctx context.Context, attemptID, userID uint) (string, error) {
	if _, err := s.loadAttempt(attemptID, userID); err != nil {
		return "", err
	}
	diag, err := s.Redis.Get(ctx, lastDiagKey(attemptID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return diag, err
}

func entryElement(version string) string {
	if version == scorm.Version2004 {
		return scorm.ElEntry
	}
	return scorm.El12Entry
}
