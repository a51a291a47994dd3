package service

import (
	"context"
	"errors"
	"testing"

	"smartprep_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBanks = `
- role: sde
  level: 1
  questions:
    - id: "1"
      question: What does CAP stand for?
      option_a: Consistency, Availability, Partition tolerance
      option_b: Cache, API, Proxy
      option_c: CPU, Allocation, Paging
      option_d: None of the above
      correct_ans: option_a
    - id: "2"
      question: Which structure gives O(1) average lookup?
      option_a: Linked list
      option_b: Hash map
      option_c: Binary tree
      option_d: Stack
      correct_ans: option_b
- role: da
  level: 7
  questions: []
`

type recordingWriter struct {
	batches map[string][]model.Question
	err     error
}

func (w *recordingWriter) CreateBatch(ctx context.Context, role model.Role, level int, questions []model.Question) error {
	if w.err != nil {
		return w.err
	}
	if w.batches == nil {
		w.batches = make(map[string][]model.Question)
	}
	w.batches[model.QuestionTable(role, level)] = questions
	return nil
}

func TestParseAndImportQuestionBanks(t *testing.T) {
	banks, err := ParseQuestionBanks([]byte(sampleBanks))
	require.NoError(t, err)
	require.Len(t, banks, 2)

	w := &recordingWriter{}
	n, err := ImportQuestionBanks(context.Background(), w, banks)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, w.batches["sde1"], 2)
	assert.Equal(t, model.OptionB, w.batches["sde1"][1].CorrectAns)
	assert.Empty(t, w.batches["da7"])
}

func TestParseQuestionBanksValidation(t *testing.T) {
	cases := map[string]string{
		"role":      "- role: pm\n  level: 1\n",
		"level":     "- role: sde\n  level: 11\n",
		"answer":    "- role: sde\n  level: 1\n  questions:\n    - id: a\n      question: q\n      correct_ans: e\n",
		"duplicate": "- role: sde\n  level: 1\n  questions:\n    - {id: a, question: q, correct_ans: option_a}\n    - {id: a, question: q, correct_ans: option_a}\n",
		"missing":   "- role: sde\n  level: 1\n  questions:\n    - {id: '', question: q, correct_ans: option_a}\n",
		"yaml":      "role: [",
	}
	for name, body := range cases {
		_, err := ParseQuestionBanks([]byte(body))
		assert.Error(t, err, name)
	}
}

func TestImportStopsOnWriteError(t *testing.T) {
	banks, err := ParseQuestionBanks([]byte(sampleBanks))
	require.NoError(t, err)

	_, err = ImportQuestionBanks(context.Background(), &recordingWriter{err: errors.New("disk full")}, banks)
	assert.ErrorContains(t, err, "import sde1")
}
