package attempt

import (
	"strings"

	"github.com/lshigami/timedtest/internal/model"
)

// Strategy decides whether a non-empty, trimmed payload answers q correctly.
type Strategy interface {
	Correct(q model.Question, payload string) bool
}

type multipleChoiceStrategy struct{}

// Correct compares the 1-based option index as text.
func (multipleChoiceStrategy) Correct(q model.Question, payload string) bool {
	return payload == strings.TrimSpace(q.CorrectAnswer)
}

type trueFalseStrategy struct{}

func (trueFalseStrategy) Correct(q model.Question, payload string) bool {
	return strings.EqualFold(payload, strings.TrimSpace(q.CorrectAnswer))
}

// shortAnswerStrategy is exact after trimming and case folding: no partial credit, no fuzzy match.
type shortAnswerStrategy struct{}

func (shortAnswerStrategy) Correct(q model.Question, payload string) bool {
	return strings.EqualFold(payload, strings.TrimSpace(q.CorrectAnswer))
}

// Result is the outcome of grading one attempt.
type Result struct {
	// Score is EarnedPoints/TotalPoints, or 0 when TotalPoints is 0.
	Score        float64
	EarnedPoints int
	TotalPoints  int
	Answers      []model.Answer
}

// Pipeline grades attempts. It has no side effects.
type Pipeline struct {
	strategies map[model.QuestionType]Strategy
}

func NewPipeline() *Pipeline {
	return &Pipeline{
		strategies: map[model.QuestionType]Strategy{
			model.QuestionMultipleChoice: multipleChoiceStrategy{},
			model.QuestionTrueFalse:      trueFalseStrategy{},
			model.QuestionShortAnswer:    shortAnswerStrategy{},
		},
	}
}

// Finalize grades every question of the test against the answer snapshot.
// Questions without an answer, or with a blank one, are graded incorrect.
// A question of an unknown type is graded incorrect but still counts
// towards the total.
func (p *Pipeline) Finalize(a model.Attempt, questions []model.Question, answers map[uint]string) Result {
	res := Result{Answers: make([]model.Answer, 0, len(questions))}
	for _, q := range questions {
		pts := q.EffectivePoints()
		res.TotalPoints += pts

		graded := model.Answer{AttemptID: a.ID, QuestionID: q.ID}
		raw, ok := answers[q.ID]
		if ok {
			payload := raw
			graded.Payload = &payload
			graded.IsCorrect = p.correct(q, raw)
		}
		if graded.IsCorrect {
			graded.PointsAwarded = pts
			res.EarnedPoints += pts
		}
		res.Answers = append(res.Answers, graded)
	}
	if res.TotalPoints > 0 {
		res.Score = float64(res.EarnedPoints) / float64(res.TotalPoints)
	}
	return res
}

func (p *Pipeline) correct(q model.Question, raw string) bool {
	payload := strings.TrimSpace(raw)
	if payload == "" {
		return false
	}
	s, ok := p.strategies[q.Type]
	if !ok {
		return false
	}
	return s.Correct(q, payload)
}
