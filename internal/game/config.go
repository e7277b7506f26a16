package game

import "time"

// Config holds the duel timing and scoring constants.
type Config struct {
	GameDuration     time.Duration
	QuestionTime     time.Duration
	CountdownSeconds int
	CorrectPoints    int
	TimeBonusMax     int
	FieldBound       int
	ReconnectWindow  time.Duration
	TimeWarningAt    int
}

// DefaultConfig returns the production game constants.
func DefaultConfig() Config {
	return Config{
		GameDuration:     60 * time.Second,
		QuestionTime:     10 * time.Second,
		CountdownSeconds: 3,
		CorrectPoints:    100,
		TimeBonusMax:     50,
		FieldBound:       5,
		ReconnectWindow:  30 * time.Second,
		TimeWarningAt:    10,
	}
}

// gradeQuestionTime maps school grades to per-question time limits; younger
// players get more time.
var gradeQuestionTime = map[int]time.Duration{
	1: 15 * time.Second,
	2: 12 * time.Second,
	3: 10 * time.Second,
	4: 8 * time.Second,
	5: 6 * time.Second,
	6: 5 * time.Second,
}

// QuestionTimeForGrade returns the per-question limit for a grade, falling
// back to the configured default for grades outside the table.
func (c Config) QuestionTimeForGrade(grade int) time.Duration {
	if d, ok := gradeQuestionTime[grade]; ok {
		return d
	}
	return c.QuestionTime
}
