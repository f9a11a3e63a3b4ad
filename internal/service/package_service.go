package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"strings"

	"scorm_lms_backend/internal/config"
	"scorm_lms_backend/internal/model"
	"scorm_lms_backend/internal/repository"
	"scorm_lms_backend/internal/scorm"
	"scorm_lms_backend/internal/util"
	"scorm_lms_backend/pkg/logger"
	"scorm_lms_backend/pkg/monitoring"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PackageService 课件包的摄入与启动。上传走"先解析后落盘"：解析失败时
// 存储和数据库都不留痕，重传即可。
type PackageService struct {
	PackageRepo *repository.PackageRepository
	AttemptRepo *repository.AttemptRepository
	CourseRepo  *repository.CourseRepository
	Storage     *StorageService
	Cfg         *config.Config
}

func NewPackageService(
	packageRepo *repository.PackageRepository,
	attemptRepo *repository.AttemptRepository,
	courseRepo *repository.CourseRepository,
	storage *StorageService,
	cfg *config.Config,
) *PackageService {
	return &PackageService{
		PackageRepo: packageRepo,
		AttemptRepo: attemptRepo,
		CourseRepo:  courseRepo,
		Storage:     storage,
		Cfg:         cfg,
	}
}

// Upload 接收 zip 课件包：大小与 MIME 校验 → 清单解析 → 解压上传到对象存储
// → 创建包记录。解析告警只记日志，不阻断上传。
func (s *PackageService) Upload(ctx context.Context, courseID, uploaderID uint, fileHeader *multipart.FileHeader) (*model.ScormPackage, error) {
	maxBytes := s.Cfg.Scorm.MaxPackageMB * 1024 * 1024
	if fileHeader.Size > maxBytes {
		monitoring.PackageUploadCounter.WithLabelValues("unknown", "rejected").Inc()
		return nil, util.ErrPackageTooLarge
	}

	if _, err := s.CourseRepo.FindByID(courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}

	src, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		monitoring.PackageUploadCounter.WithLabelValues("unknown", "rejected").Inc()
		return nil, util.ErrPackageTooLarge
	}

	mimeType, err := util.ValidateMimeType(bytes.NewReader(data), []string{"application/zip", "application/x-zip-compressed", "application/octet-stream"})
	if err != nil || !strings.HasPrefix(mimeType, "application/") {
		monitoring.PackageUploadCounter.WithLabelValues("unknown", "rejected").Inc()
		return nil, util.ErrUnsupportedArchive
	}

	parsed, err := scorm.Parse(data)
	if err != nil {
		logger.Log.Warn("package parse failed",
			zap.String("filename", fileHeader.Filename),
			zap.Uint("courseId", courseID),
			zap.Error(err))
		monitoring.PackageUploadCounter.WithLabelValues("unknown", "parse_failed").Inc()
		return nil, err
	}
	for _, w := range parsed.Warnings {
		logger.Log.Warn("package parse warning",
			zap.String("filename", fileHeader.Filename),
			zap.String("warning", w))
	}

	extractedPath := "packages/" + uuid.New().String()
	fileCount, err := s.extractArchive(ctx, data, extractedPath)
	if err != nil {
		monitoring.PackageUploadCounter.WithLabelValues(parsed.Version, "extract_failed").Inc()
		return nil, err
	}

	title := parsed.Title
	if title == "" {
		title = strings.TrimSuffix(fileHeader.Filename, path.Ext(fileHeader.Filename))
	}

	pkg := &model.ScormPackage{
		CourseID:      courseID,
		UploaderID:    uploaderID,
		Title:         title,
		Description:   parsed.Description,
		Version:       parsed.Version,
		LaunchURL:     parsed.LaunchURL,
		ExtractedPath: extractedPath,
		ManifestXML:   parsed.ManifestXML,
		FileCount:     fileCount,
		ItemCount:     parsed.ItemCount,
	}
	if parsed.MasteryScore != nil {
		f, _ := parsed.MasteryScore.Float64()
		pkg.MasteryScore = &f
	}

	if err := s.PackageRepo.Create(pkg); err != nil {
		return nil, err
	}

	logger.Log.Info("package uploaded",
		zap.Uint("packageId", pkg.ID),
		zap.String("version", pkg.Version),
		zap.String("launchUrl", pkg.LaunchURL),
		zap.Int("fileCount", fileCount),
		zap.Int("itemCount", pkg.ItemCount))
	monitoring.PackageUploadCounter.WithLabelValues(pkg.Version, "ok").Inc()
	return pkg, nil
}

// extractArchive 逐条解压写入对象存储。拒绝越界路径（zip-slip）。
func (s *PackageService) extractArchive(ctx context.Context, data []byte, prefix string) (int, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}

	count := 0
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := path.Clean(f.Name)
		if strings.HasPrefix(name, "..") || strings.Contains(name, "/../") || path.IsAbs(name) {
			return 0, fmt.Errorf("archive entry %q escapes the package root", f.Name)
		}

		rc, err := f.Open()
		if err != nil {
			return 0, err
		}
		_, err = s.Storage.Upload(ctx, prefix+"/"+name, rc, int64(f.UncompressedSize64), util.ContentTypeByExt(name))
		rc.Close()
		if err != nil {
			return 0, fmt.Errorf("store %q: %w", name, err)
		}
		count++
	}
	return count, nil
}

type LaunchResult struct {
	Attempt   *model.ScormAttempt `json:"attempt"`
	LaunchURL string              `json:"launchUrl"`
	Version   string              `json:"version"`
}

// Launch 解析播放入口并建立/续用 Attempt。上次 Attempt 已终判完成则开新的一次
// （次号 +1），否则续用；entry 模式由挂起数据决定，在 Initialize 时判定。
func (s *PackageService) Launch(ctx context.Context, userID, packageID uint) (*LaunchResult, error) {
	pkg, err := s.PackageRepo.FindByID(packageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrPackageNotFound
		}
		return nil, err
	}

	attempt, err := s.AttemptRepo.FindLatest(userID, packageID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		attempt, err = s.newAttempt(pkg, userID, 1)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case attempt.Terminated && attempt.CompletedAt != nil:
		attempt, err = s.newAttempt(pkg, userID, attempt.AttemptNumber+1)
		if err != nil {
			return nil, err
		}
	}

	return &LaunchResult{
		Attempt:   attempt,
		LaunchURL: s.Storage.GetURL(pkg.ExtractedPath + "/" + pkg.LaunchURL),
		Version:   pkg.Version,
	}, nil
}

func (s *PackageService) newAttempt(pkg *model.ScormPackage, userID uint, number int) (*model.ScormAttempt, error) {
	version := scorm.RuntimeVersion(pkg.Version)
	attempt := &model.ScormAttempt{
		PackageID:        pkg.ID,
		UserID:           userID,
		AttemptNumber:    number,
		Version:          version,
		LessonStatus:     scorm.StatusNotAttempted,
		CompletionStatus: scorm.StatusUnknown,
		SuccessStatus:    scorm.StatusUnknown,
		TotalTime:        scorm.ElementDefault(version, totalTimeElement(version)),
	}

	// 清单声明的及格线播种进 CMI，课件可读
	cmi := map[string]string{}
	if pkg.MasteryScore != nil {
		if version == scorm.Version2004 {
			cmi["cmi.scaled_passing_score"] = fmt.Sprintf("%.2f", *pkg.MasteryScore/100)
		} else {
			cmi[scorm.El12MasteryScore] = fmt.Sprintf("%g", *pkg.MasteryScore)
		}
	}
	if len(cmi) > 0 {
		if err := attempt.SetCMIMap(cmi); err != nil {
			return nil, err
		}
	}

	if err := s.AttemptRepo.Create(attempt); err != nil {
		return nil, err
	}
	logger.Log.Info("attempt created",
		zap.Uint("attemptId", attempt.ID),
		zap.Uint("packageId", pkg.ID),
		zap.Uint("userId", userID),
		zap.Int("attemptNumber", number))
	return attempt, nil
}

func totalTimeElement(version string) string {
	if version == scorm.Version2004 {
		return scorm.ElTotalTime
	}
	return scorm.El12TotalTime
}

func (s *PackageService) Get(id uint) (*model.ScormPackage, error) {
	pkg, err := s.PackageRepo.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrPackageNotFound
	}
	return pkg, err
}

func (s *PackageService) ListByCourse(courseID uint) ([]model.ScormPackage, error) {
	return s.PackageRepo.ListByCourse(courseID)
}

func (s *PackageService) List(page, limit int) ([]model.ScormPackage, int64, error) {
	return s.PackageRepo.List(page, limit)
}

// UpdateLaunchURL 管理员修正入口文件（解析兜底选错时用）
func (s *PackageService) UpdateLaunchURL(id uint, launchURL string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	return s.PackageRepo.UpdateLaunchURL(id, launchURL)
}
