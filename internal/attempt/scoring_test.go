package attempt

import (
	"math"
	"testing"

	"github.com/lshigami/timedtest/internal/model"
)

func TestPipelineWeightsByPoints(t *testing.T) {
	qs := []model.Question{
		{ID: 1, Type: model.QuestionShortAnswer, Points: 1, CorrectAnswer: "Paris"},
		{ID: 2, Type: model.QuestionShortAnswer, Points: 2, CorrectAnswer: "Rome"},
		{ID: 3, Type: model.QuestionShortAnswer, Points: 3, CorrectAnswer: "Oslo"},
	}
	res := NewPipeline().Finalize(model.Attempt{ID: 7}, qs, map[uint]string{2: "rome", 3: "Oslo"})

	if res.EarnedPoints != 5 || res.TotalPoints != 6 {
		t.Fatalf("points = %d/%d, want 5/6", res.EarnedPoints, res.TotalPoints)
	}
	if math.Abs(res.Score-5.0/6.0) > 1e-9 {
		t.Fatalf("score = %v, want 5/6", res.Score)
	}
	if len(res.Answers) != 3 {
		t.Fatalf("graded answers = %d, want one per question", len(res.Answers))
	}
	if res.Answers[0].Payload != nil || res.Answers[0].IsCorrect {
		t.Errorf("unanswered question graded as %+v", res.Answers[0])
	}
	if res.Answers[2].PointsAwarded != 3 || res.Answers[2].AttemptID != 7 {
		t.Errorf("answer 3 = %+v", res.Answers[2])
	}
}

func TestPipelineNoQuestionsScoresZero(t *testing.T) {
	res := NewPipeline().Finalize(model.Attempt{ID: 1}, nil, map[uint]string{})
	if res.Score != 0 || res.TotalPoints != 0 || len(res.Answers) != 0 {
		t.Fatalf("got %+v, want zero result", res)
	}
}

func TestPipelineDefaultPoints(t *testing.T) {
	qs := []model.Question{
		{ID: 1, Type: model.QuestionTrueFalse, CorrectAnswer: "true"},
		{ID: 2, Type: model.QuestionTrueFalse, CorrectAnswer: "false"},
	}
	res := NewPipeline().Finalize(model.Attempt{}, qs, map[uint]string{1: "true"})
	if res.TotalPoints != 2 || res.Score != 0.5 {
		t.Fatalf("got %d total, score %v; want 2 and 0.5", res.TotalPoints, res.Score)
	}
}

func TestPipelineCorrectness(t *testing.T) {
	tests := []struct {
		name    string
		q       model.Question
		answer  string
		correct bool
	}{
		{"mc exact", model.Question{Type: model.QuestionMultipleChoice, CorrectAnswer: "2"}, "2", true},
		{"mc trimmed", model.Question{Type: model.QuestionMultipleChoice, CorrectAnswer: "2"}, " 2\n", true},
		{"mc wrong option", model.Question{Type: model.QuestionMultipleChoice, CorrectAnswer: "2"}, "3", false},
		{"tf case folded", model.Question{Type: model.QuestionTrueFalse, CorrectAnswer: "true"}, "TRUE", true},
		{"tf wrong", model.Question{Type: model.QuestionTrueFalse, CorrectAnswer: "true"}, "false", false},
		{"short answer folded", model.Question{Type: model.QuestionShortAnswer, CorrectAnswer: "Paris"}, "  paris ", true},
		{"short answer no partial credit", model.Question{Type: model.QuestionShortAnswer, CorrectAnswer: "Paris"}, "Pari", false},
		{"blank is unanswered", model.Question{Type: model.QuestionShortAnswer, CorrectAnswer: ""}, "   ", false},
		{"unknown type", model.Question{Type: "essay", CorrectAnswer: "x"}, "x", false},
	}
	p := NewPipeline()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.q.ID = 1
			res := p.Finalize(model.Attempt{}, []model.Question{tt.q}, map[uint]string{1: tt.answer})
			if got := res.Answers[0].IsCorrect; got != tt.correct {
				t.Fatalf("IsCorrect = %v, want %v", got, tt.correct)
			}
			if res.Answers[0].Payload == nil || *res.Answers[0].Payload != tt.answer {
				t.Fatalf("payload not kept verbatim: %v", res.Answers[0].Payload)
			}
		})
	}
}
