package models

import (
	"time"

	"github.com/google/uuid"
)

// LessonType is the content type of a lesson.
type LessonType string

const (
	LessonVideo LessonType = "video"
	LessonPDF   LessonType = "pdf"
	LessonText  LessonType = "text"
	LessonQuiz  LessonType = "quiz"
)

// Valid reports whether t is one of the known lesson types.
func (t LessonType) Valid() bool {
	switch t {
	case LessonVideo, LessonPDF, LessonText, LessonQuiz:
		return true
	}
	return false
}

// DefaultPassMark is applied when a quiz is created without one.
const DefaultPassMark = 0.8

// Question is a single-answer multiple-choice question.
type Question struct {
	ID                 string   `json:"id"`
	Text               string   `json:"text"`
	Options            []string `json:"options"`
	CorrectOptionIndex int      `json:"correct_option_index"`
	Explanation        string   `json:"explanation,omitempty"`
}

// Quiz is owned by the lesson that contains it.
type Quiz struct {
	ID        string     `json:"id"`
	IsGraded  bool       `json:"is_graded"`
	PassMark  float64    `json:"pass_mark"`
	Questions []Question `json:"questions"`
}

// Lesson is one unit of course content.
type Lesson struct {
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Type    LessonType `json:"type"`
	Content string     `json:"content"`
	URL     string     `json:"url,omitempty"`
	Quiz    *Quiz      `json:"quiz,omitempty"`
}

// Course is a catalog entry and the owner of its lessons.
type Course struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Instructor    string    `json:"instructor"`
	Category      string    `json:"category"`
	Thumbnail     string    `json:"thumbnail"`
	EnrolledCount int       `json:"enrolled_count"`
	Lessons       []Lesson  `json:"lessons"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LessonIndex returns the position of lessonID, or -1.
func (c *Course) LessonIndex(lessonID string) int {
	for i := range c.Lessons {
		if c.Lessons[i].ID == lessonID {
			return i
		}
	}
	return -1
}

// Lesson returns the lesson with the given id, if present.
func (c *Course) Lesson(lessonID string) (*Lesson, bool) {
	i := c.LessonIndex(lessonID)
	if i < 0 {
		return nil, false
	}
	return &c.Lessons[i], true
}

// LessonIDs returns the ids of the course's current lessons.
func (c *Course) LessonIDs() []string {
	ids := make([]string, len(c.Lessons))
	for i := range c.Lessons {
		ids[i] = c.Lessons[i].ID
	}
	return ids
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (c *Course) Clone() *Course {
	out := *c
	out.Lessons = make([]Lesson, len(c.Lessons))
	for i, l := range c.Lessons {
		out.Lessons[i] = l.clone()
	}
	return &out
}

func (l Lesson) clone() Lesson {
	if l.Quiz == nil {
		return l
	}
	q := *l.Quiz
	q.Questions = make([]Question, len(l.Quiz.Questions))
	for i, qq := range l.Quiz.Questions {
		qq.Options = append([]string(nil), qq.Options...)
		q.Questions[i] = qq
	}
	l.Quiz = &q
	return l
}

// ForLearner returns a copy of the lesson with quiz answers and explanations removed.
func (l Lesson) ForLearner() Lesson {
	out := l.clone()
	if out.Quiz != nil {
		for i := range out.Quiz.Questions {
			out.Quiz.Questions[i].CorrectOptionIndex = -1
			out.Quiz.Questions[i].Explanation = ""
		}
	}
	return out
}
