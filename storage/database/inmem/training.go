package inmemdb

import (
	"context"
	"sort"

	"github.com/purelifecenter/portal/core/training"
)

type trainingRepository struct {
	db *trainingTables
}

var _ training.Repository = (*trainingRepository)(nil)

func NewTrainingRepository(db *DB) training.Repository {
	return &trainingRepository{db: db.training}
}

func progressKey(userID, lessonID string) string {
	return userID + "/" + lessonID
}

func (repo *trainingRepository) CreateModule(_ context.Context, m training.Module) (training.Module, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.modules[m.ID] = &m
	return m, nil
}

func (repo *trainingRepository) QueryModules(_ context.Context, publishedOnly bool) ([]training.Module, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	modules := make([]training.Module, 0, len(repo.db.modules))
	for _, m := range repo.db.modules {
		if publishedOnly && !m.Published {
			continue
		}
		modules = append(modules, *m)
	}
	sort.SliceStable(modules, func(i, j int) bool {
		if modules[i].SortOrder != modules[j].SortOrder {
			return modules[i].SortOrder < modules[j].SortOrder
		}
		return modules[i].CreatedAt.Before(modules[j].CreatedAt)
	})
	return modules, nil
}

func (repo *trainingRepository) GetModule(_ context.Context, id string) (training.Module, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if m, ok := repo.db.modules[id]; ok {
		return *m, nil
	}
	return training.Module{}, training.ErrModuleNotFound
}

func (repo *trainingRepository) UpdateModule(_ context.Context, m training.Module) (training.Module, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.modules[m.ID]; !ok {
		return training.Module{}, training.ErrModuleNotFound
	}
	repo.db.modules[m.ID] = &m
	return m, nil
}

func (repo *trainingRepository) DeleteModule(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.modules[id]; !ok {
		return training.ErrModuleNotFound
	}
	delete(repo.db.modules, id)
	for lid, l := range repo.db.lessons {
		if l.ModuleID == id {
			delete(repo.db.lessons, lid)
		}
	}
	for k, p := range repo.db.progress {
		if p.ModuleID == id {
			delete(repo.db.progress, k)
		}
	}
	return nil
}

func (repo *trainingRepository) CreateLesson(_ context.Context, l training.Lesson) (training.Lesson, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.modules[l.ModuleID]; !ok {
		return training.Lesson{}, training.ErrModuleNotFound
	}
	repo.db.lessons[l.ID] = &l
	return l, nil
}

func (repo *trainingRepository) QueryLessons(_ context.Context, moduleID string) ([]training.Lesson, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	lessons := make([]training.Lesson, 0)
	for _, l := range repo.db.lessons {
		if l.ModuleID == moduleID {
			lessons = append(lessons, *l)
		}
	}
	sort.SliceStable(lessons, func(i, j int) bool {
		if lessons[i].SortOrder != lessons[j].SortOrder {
			return lessons[i].SortOrder < lessons[j].SortOrder
		}
		return lessons[i].CreatedAt.Before(lessons[j].CreatedAt)
	})
	return lessons, nil
}

func (repo *trainingRepository) GetLesson(_ context.Context, id string) (training.Lesson, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if l, ok := repo.db.lessons[id]; ok {
		return *l, nil
	}
	return training.Lesson{}, training.ErrLessonNotFound
}

func (repo *trainingRepository) UpdateLesson(_ context.Context, l training.Lesson) (training.Lesson, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.lessons[l.ID]; !ok {
		return training.Lesson{}, training.ErrLessonNotFound
	}
	repo.db.lessons[l.ID] = &l
	return l, nil
}

func (repo *trainingRepository) DeleteLesson(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.lessons[id]; !ok {
		return training.ErrLessonNotFound
	}
	delete(repo.db.lessons, id)
	for k, p := range repo.db.progress {
		if p.LessonID == id {
			delete(repo.db.progress, k)
		}
	}
	return nil
}

func (repo *trainingRepository) GetProgress(_ context.Context, userID, lessonID string) (training.Progress, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.progress[progressKey(userID, lessonID)]; ok {
		return *p, nil
	}
	return training.Progress{}, training.ErrProgressNotFound
}

func (repo *trainingRepository) QueryProgress(_ context.Context, filter training.ProgressFilter) ([]training.Progress, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	progress := make([]training.Progress, 0)
	for _, p := range repo.db.progress {
		switch {
		case filter.UserID != "" && p.UserID != filter.UserID,
			filter.ModuleID != "" && p.ModuleID != filter.ModuleID,
			filter.LessonID != "" && p.LessonID != filter.LessonID:
			continue
		}
		progress = append(progress, *p)
	}
	sort.SliceStable(progress, func(i, j int) bool {
		return progress[i].UpdatedAt.Before(progress[j].UpdatedAt)
	})
	return progress, nil
}

func (repo *trainingRepository) UpsertProgress(_ context.Context, p training.Progress) (training.Progress, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := progressKey(p.UserID, p.LessonID)
	if existing, ok := repo.db.progress[key]; ok {
		p = existing.Merge(p)
	}
	repo.db.progress[key] = &p
	return p, nil
}
