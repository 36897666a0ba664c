package transcript

import (
	"context"

	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// Эти интерфейсы определяют контракт с внешним бэкендом.
// Реализация находится в infrastructure/external/gpaapi.
// ══════════════════════════════════════════════════════════════════════════════

// Source читает академическую историю из бэкенда.
type Source interface {
	// FetchTranscript возвращает все семестры с курсами и значениями GPA,
	// посчитанными бэкендом.
	FetchTranscript(ctx context.Context) (*Transcript, error)
}

// CourseDraft - данные для создания или обновления курса.
type CourseDraft struct {
	Code    string
	Name    string
	Credits int
	Score   float64
}

// Writer изменяет академическую историю в бэкенде.
type Writer interface {
	// CreateSemester создаёт семестр и возвращает его с назначенным ID.
	CreateSemester(ctx context.Context, s *Semester) (*Semester, error)

	// CreateCourse добавляет курс в семестр.
	CreateCourse(ctx context.Context, semesterID shared.SemesterID, draft CourseDraft) (*Course, error)

	// UpdateCourse обновляет существующий курс.
	UpdateCourse(ctx context.Context, courseID shared.CourseID, draft CourseDraft) (*Course, error)
}

// Catalog даёт доступ к общему каталогу курсов.
type Catalog interface {
	// SearchCatalog ищет курсы по коду или названию. Пустой запрос - весь каталог.
	SearchCatalog(ctx context.Context, query string) ([]CatalogCourse, error)

	// CountCatalog возвращает число курсов в каталоге.
	CountCatalog(ctx context.Context) (int, error)

	// BulkAdd добавляет курсы каталога в семестр с баллом defaultScore.
	BulkAdd(ctx context.Context, plan BulkAddPlan, defaultScore float64) (int, error)
}
