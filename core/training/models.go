package training

import (
	"strconv"
	"time"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/export"
)

type Module struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Published   bool      `json:"published"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type NewModule struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	Published   bool   `json:"published"`
	SortOrder   int    `json:"sort_order"`
}

func (nm *NewModule) Validate() error {
	nm.Title = core.CleanString(nm.Title)
	nm.Description = core.CleanString(nm.Description)
	return core.Validate.Struct(nm)
}

type UpdateModule struct {
	Title       *string `json:"title" validate:"omitempty,notblank,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Published   *bool   `json:"published"`
	SortOrder   *int    `json:"sort_order"`
}

func (um *UpdateModule) Validate() error { return core.Validate.Struct(um) }

func (um UpdateModule) Apply(m Module) Module {
	if um.Title != nil {
		m.Title = core.CleanString(*um.Title)
	}
	if um.Description != nil {
		m.Description = core.CleanString(*um.Description)
	}
	if um.Published != nil {
		m.Published = *um.Published
	}
	if um.SortOrder != nil {
		m.SortOrder = *um.SortOrder
	}
	return m
}

type Lesson struct {
	ID              string    `json:"id"`
	ModuleID        string    `json:"module_id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	VideoURL        string    `json:"video_url"`
	DurationSeconds int       `json:"duration_seconds"`
	RequiredSeconds int       `json:"required_seconds"`
	SortOrder       int       `json:"sort_order"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ThresholdMet reports whether watched seconds unlock the next lesson.
func (l Lesson) ThresholdMet(watched int) bool {
	return watched >= l.RequiredSeconds
}

type NewLesson struct {
	ModuleID        string `json:"-"`
	Title           string `json:"title" validate:"required,max=200"`
	Content         string `json:"content" validate:"max=100000"`
	VideoURL        string `json:"video_url" validate:"omitempty,url,max=2000"`
	DurationSeconds int    `json:"duration_seconds" validate:"min=0"`
	RequiredSeconds int    `json:"required_seconds" validate:"min=0"`
	SortOrder       int    `json:"sort_order"`
}

func (nl *NewLesson) Validate() error {
	nl.Title = core.CleanString(nl.Title)
	nl.VideoURL = core.CleanString(nl.VideoURL)
	if err := core.Validate.Struct(nl); err != nil {
		return err
	}
	if nl.DurationSeconds > 0 && nl.RequiredSeconds > nl.DurationSeconds {
		return core.NewFieldError("required_seconds", "required_seconds cannot exceed duration_seconds")
	}
	return nil
}

type UpdateLesson struct {
	Title           *string `json:"title" validate:"omitempty,notblank,max=200"`
	Content         *string `json:"content" validate:"omitempty,max=100000"`
	VideoURL        *string `json:"video_url" validate:"omitempty,url,max=2000"`
	DurationSeconds *int    `json:"duration_seconds" validate:"omitempty,min=0"`
	RequiredSeconds *int    `json:"required_seconds" validate:"omitempty,min=0"`
	SortOrder       *int    `json:"sort_order"`
}

func (ul *UpdateLesson) Validate() error { return core.Validate.Struct(ul) }

func (ul UpdateLesson) Apply(l Lesson) (Lesson, error) {
	if ul.Title != nil {
		l.Title = core.CleanString(*ul.Title)
	}
	if ul.Content != nil {
		l.Content = *ul.Content
	}
	if ul.VideoURL != nil {
		l.VideoURL = core.CleanString(*ul.VideoURL)
	}
	if ul.DurationSeconds != nil {
		l.DurationSeconds = *ul.DurationSeconds
	}
	if ul.RequiredSeconds != nil {
		l.RequiredSeconds = *ul.RequiredSeconds
	}
	if ul.SortOrder != nil {
		l.SortOrder = *ul.SortOrder
	}
	if l.DurationSeconds > 0 && l.RequiredSeconds > l.DurationSeconds {
		return l, core.NewFieldError("required_seconds", "required_seconds cannot exceed duration_seconds")
	}
	return l, nil
}

// Progress is a user's state on one lesson.
type Progress struct {
	UserID          string     `json:"user_id"`
	LessonID        string     `json:"lesson_id"`
	ModuleID        string     `json:"module_id"`
	WatchedSeconds  int        `json:"watched_seconds"`
	PositionSeconds int        `json:"position_seconds"`
	Completed       bool       `json:"completed"`
	CompletedAt     *time.Time `json:"completed_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Merge combines two snapshots of the same lesson: watched time never decreases,
// completion never reverts and the newest position wins.
func (p Progress) Merge(other Progress) Progress {
	out := p
	if other.WatchedSeconds > out.WatchedSeconds {
		out.WatchedSeconds = other.WatchedSeconds
	}
	if other.UpdatedAt.After(p.UpdatedAt) {
		out.PositionSeconds = other.PositionSeconds
		out.UpdatedAt = other.UpdatedAt
	}
	if other.Completed {
		if !out.Completed || (other.CompletedAt != nil && (out.CompletedAt == nil || other.CompletedAt.Before(*out.CompletedAt))) {
			out.CompletedAt = other.CompletedAt
		}
		out.Completed = true
	}
	if out.ModuleID == "" {
		out.ModuleID = other.ModuleID
	}
	return out
}

// SaveProgress is what a client reports for a lesson.
type SaveProgress struct {
	WatchedSeconds  int       `json:"watched_seconds" validate:"min=0"`
	PositionSeconds int       `json:"position_seconds" validate:"min=0"`
	Completed       bool      `json:"completed"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (sp *SaveProgress) Validate() error { return core.Validate.Struct(sp) }

// Summary is a user's completion state on a module.
type Summary struct {
	ModuleID  string `json:"module_id"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Percent   int    `json:"percent"`
}

func newSummary(moduleID string, lessons []Lesson, progress []Progress) Summary {
	done := make(map[string]bool, len(progress))
	for _, p := range progress {
		if p.Completed {
			done[p.LessonID] = true
		}
	}
	s := Summary{ModuleID: moduleID, Total: len(lessons)}
	for _, l := range lessons {
		if done[l.ID] {
			s.Completed++
		}
	}
	if s.Total > 0 {
		s.Percent = s.Completed * 100 / s.Total
	}
	return s
}

type ProgressFilter struct {
	UserID   string
	ModuleID string
	LessonID string
}

// ReportRow is one line of the admin progress report.
type ReportRow struct {
	Progress
	UserName    string `json:"user_name"`
	ModuleTitle string `json:"module_title"`
	LessonTitle string `json:"lesson_title"`
}

func reportTable(rows []ReportRow) export.Table {
	t := export.Table{
		Title: "Training progress",
		Columns: []string{
			"user_id", "user_name", "module", "lesson", "watched_seconds", "position_seconds",
			"completed", "completed_at", "updated_at",
		},
		Rows: make([][]string, 0, len(rows)),
	}
	for _, r := range rows {
		var completedAt string
		if r.CompletedAt != nil {
			completedAt = export.FormatTime(*r.CompletedAt)
		}
		t.Rows = append(t.Rows, []string{
			r.UserID, r.UserName, r.ModuleTitle, r.LessonTitle,
			strconv.Itoa(r.WatchedSeconds), strconv.Itoa(r.PositionSeconds),
			strconv.FormatBool(r.Completed), completedAt, export.FormatTime(r.UpdatedAt),
		})
	}
	return t
}
