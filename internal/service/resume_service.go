package service

import (
	"bytes"
	"context"
	"path"
	"path/filepath"
	"strings"

	"smartprep_backend/internal/model"
	"smartprep_backend/internal/util"
	"smartprep_backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// ResumeUpload 上传的简历文件
type ResumeUpload struct {
	UserID   string
	Filename string
	Data     []byte
}

// ResumeService storage 为 nil 时不归档上传原件
type ResumeService struct {
	storage    *StorageService
	generation *QuestionGenerationService
	matcher    RoleMatcher
}

func NewResumeService(storage *StorageService, generation *QuestionGenerationService, matcher RoleMatcher) *ResumeService {
	return &ResumeService{storage: storage, generation: generation, matcher: matcher}
}

func (s *ResumeService) InterviewQuestions(ctx context.Context, upload ResumeUpload) ([]model.GeneratedQuestion, error) {
	text, err := s.prepare(ctx, upload)
	if err != nil {
		return nil, err
	}
	return s.generation.InterviewQuestions(ctx, text)
}

func (s *ResumeService) Review(ctx context.Context, upload ResumeUpload) (*model.ResumeReview, error) {
	text, err := s.prepare(ctx, upload)
	if err != nil {
		return nil, err
	}
	return s.generation.ReviewResume(ctx, text)
}

// Match 把简历原件交给岗位匹配服务
func (s *ResumeService) Match(ctx context.Context, upload ResumeUpload) (*model.ResumeMatch, error) {
	if s.matcher == nil {
		return nil, util.ErrMatcherUnavailable
	}
	if _, err := s.prepare(ctx, upload); err != nil {
		return nil, err
	}
	match, err := s.matcher.Match(ctx, upload.Filename, upload.Data)
	if err != nil {
		logger.Log.Warn("Resume role match failed", zap.String("userId", upload.UserID), zap.Error(err))
		return nil, err
	}
	return match, nil
}

// prepare 校验类型、归档原文件、抽取并规整文本
func (s *ResumeService) prepare(ctx context.Context, upload ResumeUpload) (string, error) {
	head := upload.Data
	if len(head) > 512 {
		head = head[:512]
	}
	mimeType, err := util.DetectResumeType(upload.Filename, head)
	if err != nil {
		return "", err
	}

	key := s.archive(ctx, upload, mimeType)

	text := util.NormalizeText(ExtractResumeText(mimeType, upload.Data), util.MaxResumeChars)
	if text == "" {
		s.discard(ctx, key)
		return "", util.ErrEmptyResume
	}
	return text, nil
}

// archive 归档失败不影响本次请求，返回对象名，未归档时为空
func (s *ResumeService) archive(ctx context.Context, upload ResumeUpload, mimeType string) string {
	if s.storage == nil {
		return ""
	}
	name := path.Join("resumes", upload.UserID, uuid.NewString()+strings.ToLower(filepath.Ext(upload.Filename)))
	if _, err := s.storage.Upload(ctx, name, bytes.NewReader(upload.Data), int64(len(upload.Data)), mimeType); err != nil {
		logger.Log.Warn("Failed to archive resume upload", zap.String("userId", upload.UserID), zap.Error(err))
		return ""
	}
	return name
}

// discard 抽不出文本的上传不保留
func (s *ResumeService) discard(ctx context.Context, key string) {
	if s.storage == nil || key == "" {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		logger.Log.Warn("Failed to discard resume upload", zap.String("object", key), zap.Error(err))
	}
}

// ExtractResumeText 抽取失败时返回空串
func ExtractResumeText(mimeType string, data []byte) string {
	if mimeType != util.MimePDF {
		return string(data)
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		logger.Log.Warn("PDF parse failed", zap.Error(err))
		return ""
	}
	plain, err := r.GetPlainText()
	if err != nil {
		logger.Log.Warn("PDF text extraction failed", zap.Error(err))
		return ""
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return ""
	}
	return buf.String()
}
