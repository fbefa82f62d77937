package assessment

import (
	"github.com/google/uuid"
)

// QuestionView is a question as shown to the learner, without its answer.
type QuestionView struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// View is the learner-facing snapshot of a session.
type View struct {
	ID           uuid.UUID      `json:"id"`
	CourseID     uuid.UUID      `json:"course_id"`
	LessonID     string         `json:"lesson_id"`
	LessonTitle  string         `json:"lesson_title"`
	State        State          `json:"state"`
	IsGraded     bool           `json:"is_graded"`
	PassMark     float64        `json:"pass_mark"`
	CurrentIndex int            `json:"current_index"`
	Total        int            `json:"total"`
	Question     QuestionView   `json:"question"`
	Answers      map[string]int `json:"answers"`
	Violations   int            `json:"violations"`
	Result       *Result        `json:"result,omitempty"`
	CanRetake    bool           `json:"can_retake"`
}

// Snapshot returns the learner-facing state of s.
func (s *Session) Snapshot() View {
	q := s.quiz.Questions[s.current]
	v := View{
		State:        s.State(),
		IsGraded:     s.quiz.IsGraded,
		PassMark:     s.quiz.PassMark,
		CurrentIndex: s.current,
		Total:        len(s.quiz.Questions),
		Question: QuestionView{
			ID:      q.ID,
			Text:    q.Text,
			Options: append([]string(nil), q.Options...),
		},
		Answers:    s.Answers(),
		Violations: s.violations,
	}
	if res, err := s.Result(); err == nil {
		v.Result = &res
		v.CanRetake = !res.Passed && !s.finalized
	}
	return v
}

func (e *entry) view() View {
	v := e.session.Snapshot()
	v.ID = e.id
	v.CourseID = e.key.courseID
	v.LessonID = e.key.lessonID
	v.LessonTitle = e.lessonTitle
	return v
}
