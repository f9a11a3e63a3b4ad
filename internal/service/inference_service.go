package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"scorm_lms_backend/internal/config"
	"scorm_lms_backend/internal/model"
	"scorm_lms_backend/internal/repository"
	"scorm_lms_backend/internal/scorm"
	"scorm_lms_backend/internal/util"
	"scorm_lms_backend/pkg/logger"
	"scorm_lms_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InferenceService 完成度推断：对"内容其实学完了但没按协议上报完成"的 Attempt
// 做事后改判。单条修复给管理员手动触发，批量修复带超时和游标分页，重复跑幂等。
type InferenceService struct {
	AttemptRepo  *repository.AttemptRepository
	PackageRepo  *repository.PackageRepository
	ProgressRepo *repository.ProgressRepository
	Cfg          *config.Config
}

func NewInferenceService(
	attemptRepo *repository.AttemptRepository,
	packageRepo *repository.PackageRepository,
	progressRepo *repository.ProgressRepository,
	cfg *config.Config,
) *InferenceService {
	return &InferenceService{
		AttemptRepo:  attemptRepo,
		PackageRepo:  packageRepo,
		ProgressRepo: progressRepo,
		Cfg:          cfg,
	}
}

func (s *InferenceService) inferenceConfig() scorm.InferenceConfig {
	return scorm.InferenceConfig{
		Enabled:           s.Cfg.Scorm.Inference.Enabled,
		VisitedWithSignal: s.Cfg.Scorm.Inference.VisitedWithSignal,
		VisitedAlone:      s.Cfg.Scorm.Inference.VisitedFullThreshold,
	}
}

// RepairResult 单条改判的结果。Reclassified=false 时 Evidence 说明为什么不改。
type RepairResult struct {
	AttemptID    uint            `json:"attemptId"`
	Reclassified bool            `json:"reclassified"`
	Evidence     *scorm.Evidence `json:"evidence"`
	LessonStatus string          `json:"lessonStatus,omitempty"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
	AlreadyDone  bool            `json:"alreadyDone,omitempty"`
}

// RepairAttempt 对单个 Attempt 评估并（证据充分时）改判完成。
// 已完成的直接短路，保证幂等。
func (s *InferenceService) RepairAttempt(ctx context.Context, attemptID uint) (*RepairResult, error) {
	if !s.Cfg.Scorm.Inference.Enabled {
		return nil, util.ErrInferenceDisabled
	}

	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	return s.repair(ctx, attempt)
}

func (s *InferenceService) repair(ctx context.Context, attempt *model.ScormAttempt) (*RepairResult, error) {
	if attempt.CompletedAt != nil || scorm.IsCompletedStatus(attempt.LessonStatus) ||
		attempt.CompletionStatus == scorm.StatusCompleted {
		return &RepairResult{AttemptID: attempt.ID, AlreadyDone: true}, nil
	}

	itemCount := 0
	pkg, err := s.PackageRepo.FindByID(attempt.PackageID)
	if err == nil {
		itemCount = pkg.ItemCount
	}

	evidence := scorm.Analyze(attempt.SuspendData, itemCount, s.inferenceConfig())
	rule := evidence.Rule
	if rule == "" {
		rule = "none"
	}
	monitoring.InferenceCounter.WithLabelValues(rule, strconv.FormatBool(evidence.Completed)).Inc()

	if !evidence.Completed {
		return &RepairResult{AttemptID: attempt.ID, Evidence: &evidence}, nil
	}

	audit, err := json.Marshal(evidence)
	if err != nil {
		return nil, err
	}

	saved, err := s.AttemptRepo.SaveWithLock(ctx, attempt.ID, func(a *model.ScormAttempt) error {
		// 锁下复查：并发的协议路径可能已经判完成
		if a.CompletedAt != nil {
			return nil
		}
		now := time.Now()
		a.LessonStatus = scorm.StatusCompleted
		a.CompletionStatus = scorm.StatusCompleted
		if a.SuccessStatus == scorm.StatusUnknown || a.SuccessStatus == "" {
			a.SuccessStatus = scorm.StatusPassed
		}
		if a.ScoreRaw == "" {
			a.ScoreRaw = "100"
		}
		a.CompletedAt = &now
		a.CompletedByInference = true
		a.InferenceAudit = string(audit)

		// CMI 快照同步，课件续学时读到一致的状态
		cmi := a.CMIMap()
		if a.Version == scorm.Version2004 {
			cmi[scorm.ElCompletionStatus] = scorm.StatusCompleted
			cmi[scorm.ElSuccessStatus] = a.SuccessStatus
		} else {
			cmi[scorm.El12LessonStatus] = scorm.StatusCompleted
		}
		return a.SetCMIMap(cmi)
	})
	if err != nil {
		return nil, err
	}

	if pkg != nil {
		if err := s.propagate(saved, pkg.CourseID); err != nil {
			logger.Log.Error("inference progress propagation failed",
				zap.Uint("attemptId", saved.ID), zap.Error(err))
		}
	}

	logger.Log.Info("attempt reclassified as completed",
		zap.Uint("attemptId", saved.ID),
		zap.String("rule", evidence.Rule),
		zap.Int("visitedCount", evidence.VisitedCount))
	return &RepairResult{
		AttemptID:    saved.ID,
		Reclassified: true,
		Evidence:     &evidence,
		LessonStatus: saved.LessonStatus,
		CompletedAt:  saved.CompletedAt,
	}, nil
}

func (s *InferenceService) propagate(attempt *model.ScormAttempt, courseID uint) error {
	score := attemptScore(attempt)
	_, err := s.ProgressRepo.Upsert(attempt.UserID, courseID, func(p *model.CourseProgress) {
		p.LastScore = score
		if score > p.BestScore {
			p.BestScore = score
		}
		if !p.Completed {
			p.Completed = true
			p.CompletionMethod = model.CompletionMethodInference
			p.CompletedAt = attempt.CompletedAt
		}
	})
	return err
}

// BatchSummary 一次批量修复的汇总
type BatchSummary struct {
	Scanned      int  `json:"scanned"`
	Reclassified int  `json:"reclassified"`
	TimedOut     bool `json:"timedOut"`
	LastID       uint `json:"lastId"`
}

// Run 批量修复：按 ID 游标分页扫描候选 Attempt，整体受配置超时约束，
// 超时打断后再跑会从头扫，已改判的天然跳过。
func (s *InferenceService) Run(ctx context.Context) (*BatchSummary, error) {
	if !s.Cfg.Scorm.Inference.Enabled {
		return nil, util.ErrInferenceDisabled
	}

	timeout := time.Duration(s.Cfg.Scorm.Inference.BatchTimeoutMinutes) * time.Minute
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	summary := &BatchSummary{}
	batchSize := s.Cfg.Scorm.Inference.BatchSize

	for {
		attempts, err := s.AttemptRepo.ListIncompleteWithSuspendData(ctx, summary.LastID, batchSize)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				summary.TimedOut = true
				break
			}
			return nil, err
		}
		if len(attempts) == 0 {
			break
		}

		for i := range attempts {
			if ctx.Err() != nil {
				summary.TimedOut = true
				logger.Log.Warn("inference batch interrupted by timeout",
					zap.Int("scanned", summary.Scanned),
					zap.Uint("lastId", summary.LastID))
				return summary, nil
			}
			result, err := s.repair(ctx, &attempts[i])
			if err != nil {
				logger.Log.Error("inference repair failed",
					zap.Uint("attemptId", attempts[i].ID), zap.Error(err))
				continue
			}
			summary.Scanned++
			summary.LastID = attempts[i].ID
			if result.Reclassified {
				summary.Reclassified++
			}
		}
	}

	logger.Log.Info("inference batch finished",
		zap.Int("scanned", summary.Scanned),
		zap.Int("reclassified", summary.Reclassified),
		zap.Bool("timedOut", summary.TimedOut))
	return summary, nil
}
