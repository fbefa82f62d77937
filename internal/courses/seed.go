package courses

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reathuta/lms/internal/models"
)

var seedNamespace = uuid.MustParse("0b7f5c1e-3d2a-4f8e-9c61-2a4d8e0f7b93")

// SampleCatalog returns the catalog a fresh installation starts with. Ids are
// stable so reseeding is recognizable.
func SampleCatalog() []models.Course {
	return []models.Course{
		{
			ID:            uuid.NewSHA1(seedNamespace, []byte("1")),
			Title:         "Advanced System Administration",
			Description:   "Master Linux server management and automation workflows.",
			Instructor:    "John Doe",
			Category:      "IT & Infrastructure",
			Thumbnail:     "https://picsum.photos/seed/sysadmin/600/400",
			EnrolledCount: 125,
			Lessons: []models.Lesson{
				{ID: "l1", Title: "Introduction to Bash", Content: "Learn the basics of shell scripting.", Type: models.LessonVideo, URL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
				{ID: "l2", Title: "Permission Mastery", Content: "Deep dive into chmod and chown.", Type: models.LessonText},
				{ID: "l3", Title: "Server Hardening Guide", Content: "Secure your assets.", Type: models.LessonPDF},
			},
		},
		{
			ID:            uuid.NewSHA1(seedNamespace, []byte("2")),
			Title:         "Modern Web Development with React",
			Description:   "Learn React from scratch to production-ready applications.",
			Instructor:    "Jane Smith",
			Category:      "Software Engineering",
			Thumbnail:     "https://picsum.photos/seed/react/600/400",
			EnrolledCount: 350,
			Lessons: []models.Lesson{
				{ID: "l4", Title: "React Hooks Deep Dive", Content: "Understand useEffect and useMemo.", Type: models.LessonVideo},
			},
		},
	}
}

// Seed inserts the sample catalog when the store is empty and reports how many
// courses it added.
func (s *Service) Seed(ctx context.Context) (int, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	added := 0
	for _, c := range SampleCatalog() {
		c := c
		if _, err := s.Create(ctx, &c); err != nil {
			return added, err
		}
		added++
	}
	s.logger.Info("seeded sample catalog", zap.Int("courses", added))
	return added, nil
}
