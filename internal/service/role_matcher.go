package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"smartprep_backend/internal/config"
	"smartprep_backend/internal/model"
	"smartprep_backend/internal/util"
)

const (
	maxRecommendNext = 2
	maxOtherRoles    = 2
)

// RoleMatcher 根据简历原件给出最匹配岗位与待补技能
type RoleMatcher interface {
	Match(ctx context.Context, filename string, data []byte) (*model.ResumeMatch, error)
}

// HTTPRoleMatcher 调用外部匹配服务，简历以 multipart 字段 resume 上传
type HTTPRoleMatcher struct {
	Endpoint string
	HTTP     *http.Client
}

// NewHTTPRoleMatcher 未配置地址时返回 nil
func NewHTTPRoleMatcher(cfg config.MatcherConfig) *HTTPRoleMatcher {
	if cfg.Endpoint == "" {
		return nil
	}
	return &HTTPRoleMatcher{
		Endpoint: cfg.Endpoint,
		HTTP:     &http.Client{Timeout: cfg.Timeout},
	}
}

func (m *HTTPRoleMatcher) Match(ctx context.Context, filename string, data []byte) (*model.ResumeMatch, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("resume", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := m.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrMatcherUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", util.ErrMatcherUnavailable, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var match model.ResumeMatch
	if err := json.NewDecoder(resp.Body).Decode(&match); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", util.ErrMatcherUnavailable, err)
	}
	if strings.TrimSpace(match.BestRole) == "" {
		return nil, fmt.Errorf("%w: empty best_role", util.ErrMatcherUnavailable)
	}
	match.RecommendNext = firstN(match.RecommendNext, maxRecommendNext)
	match.OtherRoles = firstN(match.OtherRoles, maxOtherRoles)
	return &match, nil
}

func firstN(items []string, n int) []string {
	if items == nil {
		return []string{}
	}
	if len(items) > n {
		return items[:n]
	}
	return items
}
