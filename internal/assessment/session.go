// Package assessment implements the quiz session state machine: question
// navigation, answer capture, scoring, pass/fail and focus-loss counting.
//
// A Session is plain owned state with synchronous transitions. It holds no locks;
// the Registry provides one-writer-per-session when sessions are shared by a server.
package assessment

import (
	"math"

	"github.com/reathuta/lms/internal/models"
	"github.com/reathuta/lms/pkg/apperr"
)

// State is the lifecycle position of a session. A quiz that has not been started
// has no session at all.
type State string

const (
	StateInProgress State = "in_progress"
	StateSubmitted  State = "submitted"
	StateFinalized  State = "finalized"
)

// Result is the graded outcome of a submitted session.
type Result struct {
	ScorePercent int     `json:"score_percent"`
	Score        float64 `json:"score"`
	Passed       bool    `json:"passed"`
	PassMark     float64 `json:"pass_mark"`
	Correct      int     `json:"correct"`
	Total        int     `json:"total"`
}

// Session is one learner's attempt at a quiz.
type Session struct {
	quiz       models.Quiz
	index      map[string]int // question id -> position
	current    int
	answers    map[string]int
	submitted  bool
	finalized  bool
	violations int
}

// Start opens a fresh session over quiz. The quiz is copied; later edits to the
// lesson do not affect an attempt in flight.
func Start(quiz *models.Quiz) (*Session, error) {
	if quiz == nil || len(quiz.Questions) == 0 {
		return nil, apperr.Validation("quiz has no questions")
	}
	q := *quiz
	q.Questions = append([]models.Question(nil), quiz.Questions...)
	s := &Session{
		quiz:  q,
		index: make(map[string]int, len(q.Questions)),
	}
	for i, qq := range q.Questions {
		s.index[qq.ID] = i
	}
	s.reset()
	return s, nil
}

func (s *Session) reset() {
	s.current = 0
	s.answers = make(map[string]int, len(s.quiz.Questions))
	s.submitted = false
	s.violations = 0
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	switch {
	case s.finalized:
		return StateFinalized
	case s.submitted:
		return StateSubmitted
	default:
		return StateInProgress
	}
}

// SelectAnswer records or overwrites the chosen option for a question.
// It is a no-op once the session is submitted.
func (s *Session) SelectAnswer(questionID string, optionIndex int) error {
	if s.finalized {
		return apperr.Conflict("quiz session is finalized")
	}
	if s.submitted {
		return nil
	}
	i, ok := s.index[questionID]
	if !ok {
		return apperr.Validation("unknown question %q", questionID)
	}
	if optionIndex < 0 || optionIndex >= len(s.quiz.Questions[i].Options) {
		return apperr.Validation("option index %d out of range for question %q", optionIndex, questionID)
	}
	s.answers[questionID] = optionIndex
	return nil
}

// GoTo moves the pointer to index, clamped to the question range, and returns
// the resulting position. Outside InProgress the pointer does not move.
func (s *Session) GoTo(index int) int {
	if s.State() != StateInProgress {
		return s.current
	}
	last := len(s.quiz.Questions) - 1
	switch {
	case index < 0:
		index = 0
	case index > last:
		index = last
	}
	s.current = index
	return s.current
}

// Next advances one question.
func (s *Session) Next() int { return s.GoTo(s.current + 1) }

// Previous moves back one question.
func (s *Session) Previous() int { return s.GoTo(s.current - 1) }

// RecordViolation counts a focus-loss event. It is only counted while the session
// is in progress and never blocks answering or submission.
func (s *Session) RecordViolation() bool {
	if s.State() != StateInProgress {
		return false
	}
	s.violations++
	return true
}

// Unanswered returns the ids of questions without an answer, in quiz order.
func (s *Session) Unanswered() []string {
	var out []string
	for _, q := range s.quiz.Questions {
		if _, ok := s.answers[q.ID]; !ok {
			out = append(out, q.ID)
		}
	}
	return out
}

// Submit freezes the answers for scoring. It fails, leaving the session in
// progress, while any question is unanswered. Submitting twice is a no-op.
func (s *Session) Submit() error {
	if s.finalized {
		return apperr.Conflict("quiz session is finalized")
	}
	if s.submitted {
		return nil
	}
	if missing := s.Unanswered(); len(missing) > 0 {
		return apperr.IncompleteSubmission("%d of %d questions unanswered", len(missing), len(s.quiz.Questions))
	}
	s.submitted = true
	return nil
}

// Score is the fraction of questions answered correctly.
func (s *Session) Score() float64 {
	return float64(s.correct()) / float64(len(s.quiz.Questions))
}

func (s *Session) correct() int {
	n := 0
	for _, q := range s.quiz.Questions {
		if a, ok := s.answers[q.ID]; ok && a == q.CorrectOptionIndex {
			n++
		}
	}
	return n
}

// Result grades a submitted session.
func (s *Session) Result() (Result, error) {
	if !s.submitted {
		return Result{}, apperr.Validation("quiz has not been submitted")
	}
	score := s.Score()
	return Result{
		ScorePercent: int(math.Round(score * 100)),
		Score:        score,
		Passed:       score >= s.quiz.PassMark,
		PassMark:     s.quiz.PassMark,
		Correct:      s.correct(),
		Total:        len(s.quiz.Questions),
	}, nil
}

// Retake starts the quiz over after a failed submission. A passed result cannot
// be retaken.
func (s *Session) Retake() error {
	if s.finalized {
		return apperr.Conflict("quiz session is finalized")
	}
	if !s.submitted {
		return apperr.Conflict("quiz has not been submitted")
	}
	res, _ := s.Result()
	if res.Passed {
		return apperr.Conflict("a passed quiz cannot be retaken")
	}
	s.reset()
	return nil
}

// Finalize accepts the submitted result and ends the session.
func (s *Session) Finalize() (Result, error) {
	if s.finalized {
		return Result{}, apperr.Conflict("quiz session is finalized")
	}
	res, err := s.Result()
	if err != nil {
		return Result{}, err
	}
	s.finalized = true
	return res, nil
}

// Current returns the pointer position.
func (s *Session) Current() int { return s.current }

// Violations returns the focus-loss count.
func (s *Session) Violations() int { return s.violations }

// Submitted reports whether answers are frozen.
func (s *Session) Submitted() bool { return s.submitted }

// Answers returns a copy of the recorded answers.
func (s *Session) Answers() map[string]int {
	out := make(map[string]int, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// Quiz returns the quiz the session was started over.
func (s *Session) Quiz() models.Quiz { return s.quiz }
