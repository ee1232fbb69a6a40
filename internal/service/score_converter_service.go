package service

import (
	"fmt"
	"math"

	"github.com/lshigami/timedtest/internal/model"
)

type ScoreConverterService interface {
	// ToPercentage converts a stored score fraction to a percentage rounded to two decimals.
	ToPercentage(score float64) (float64, error)
	// Passed derives pass/fail against the scheduled test's threshold; nil when none is set.
	Passed(st model.ScheduledTest, score float64) *bool
}

type scoreConverterServiceImpl struct{}

func NewScoreConverterService() ScoreConverterService {
	return &scoreConverterServiceImpl{}
}

func (s *scoreConverterServiceImpl) ToPercentage(score float64) (float64, error) {
	if math.IsNaN(score) || score < 0 || score > 1 {
		return 0, fmt.Errorf("score %.4f is out of valid range (0-1)", score)
	}
	return math.Round(score*10000) / 100, nil
}

func (s *scoreConverterServiceImpl) Passed(st model.ScheduledTest, score float64) *bool {
	return st.Passed(score)
}
