package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"smartprep_backend/internal/model"
	"smartprep_backend/internal/util"

	"github.com/xeipuuv/gojsonschema"
)

const (
	fallbackQuestionChars = 1000
	fallbackSummaryChars  = 2000
)

var generatedQuestionsSchema = mustSchema(`{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["q"],
		"properties": {
			"q": {"type": "string", "minLength": 1},
			"intent": {"type": "string"},
			"difficulty": {"type": "string"}
		}
	}
}`)

var resumeReviewSchema = mustSchema(`{
	"type": "object",
	"properties": {
		"summary": {"type": "string"},
		"strengths": {"type": "array", "items": {"type": "string"}},
		"areas_of_improvement": {"type": "array", "items": {"type": "string"}},
		"feedback": {"type": "array", "items": {"type": "string"}}
	}
}`)

var (
	greedyArray = regexp.MustCompile(`(?s)\[.*\]`)
	lazyArray   = regexp.MustCompile(`(?s)\[.*?\]`)
)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(err)
	}
	return schema
}

// QuestionGenerationService 根据简历文本生成面试题与简历点评
type QuestionGenerationService struct {
	generator TextGenerator
}

func NewQuestionGenerationService(generator TextGenerator) *QuestionGenerationService {
	return &QuestionGenerationService{generator: generator}
}

func (s *QuestionGenerationService) InterviewQuestions(ctx context.Context, resumeText string) ([]model.GeneratedQuestion, error) {
	if s.generator == nil {
		return nil, fmt.Errorf("%w: %v", util.ErrSourceUnavailable, ErrGeneratorUnavailable)
	}
	prompt := "You are an interviewer. Given the applicant resume below, generate 10 interview questions " +
		"about the applicant's skills, projects and technologies. Tag each with an intent " +
		"(behavioral, technical, design) and a difficulty (easy, medium, hard).\n\nResume:\n" + resumeText +
		"\n\nReturn a JSON array: [{\"q\": \"...\", \"intent\": \"...\", \"difficulty\": \"...\"}]"

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrSourceUnavailable, err)
	}
	return ParseGeneratedQuestions(text), nil
}

func (s *QuestionGenerationService) ReviewResume(ctx context.Context, resumeText string) (*model.ResumeReview, error) {
	if s.generator == nil {
		return nil, fmt.Errorf("%w: %v", util.ErrSourceUnavailable, ErrGeneratorUnavailable)
	}
	prompt := "You are a resume reviewer. Review the resume below and return a JSON object with keys " +
		"summary (string), strengths, areas_of_improvement and feedback (3 strings each). " +
		"Use \"N/A\" instead of leaving arrays empty.\n\nResume:\n" + resumeText

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrSourceUnavailable, err)
	}
	return ParseResumeReview(text), nil
}

// ParseGeneratedQuestions 先整体解析，再尝试截取第一个 JSON 数组，都失败时退化为单条低置信度题目
func ParseGeneratedQuestions(text string) []model.GeneratedQuestion {
	candidates := []string{strings.TrimSpace(text)}
	if m := greedyArray.FindString(text); m != "" {
		candidates = append(candidates, m)
	}
	if m := lazyArray.FindString(text); m != "" {
		candidates = append(candidates, m)
	}

	for _, c := range candidates {
		if qs, ok := decodeQuestions(c); ok {
			return qs
		}
	}

	return []model.GeneratedQuestion{{
		Q:          truncateRunes(text, fallbackQuestionChars),
		Intent:     "unknown",
		Difficulty: "medium",
	}}
}

func decodeQuestions(raw string) ([]model.GeneratedQuestion, bool) {
	if raw == "" {
		return nil, false
	}
	result, err := generatedQuestionsSchema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil || !result.Valid() {
		return nil, false
	}
	var qs []model.GeneratedQuestion
	if err := json.Unmarshal([]byte(raw), &qs); err != nil {
		return nil, false
	}
	return qs, true
}

// ParseResumeReview 解析点评结果，缺失字段填默认文案
func ParseResumeReview(text string) *model.ResumeReview {
	review := &model.ResumeReview{}
	raw := strings.TrimSpace(text)
	valid := false
	if result, err := resumeReviewSchema.Validate(gojsonschema.NewStringLoader(raw)); err == nil && result.Valid() {
		valid = json.Unmarshal([]byte(raw), review) == nil
	}
	if !valid {
		review = &model.ResumeReview{Summary: truncateRunes(text, fallbackSummaryChars)}
	}

	if len(review.Strengths) == 0 {
		review.Strengths = []string{"No clear strengths identified"}
	}
	if len(review.AreasOfImprovement) == 0 {
		review.AreasOfImprovement = []string{"No immediate areas for improvement"}
	}
	if len(review.Feedback) == 0 {
		review.Feedback = []string{"No actionable feedback provided"}
	}
	if strings.TrimSpace(review.Summary) == "" {
		review.Summary = "Professional summary could not be extracted; consider adding one."
	}
	return review
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
