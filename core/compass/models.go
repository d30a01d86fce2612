package compass

import (
	"strconv"
	"time"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/export"
)

// Settings configures the AI Compass assistant. There is a single row.
type Settings struct {
	Enabled            bool      `json:"enabled" db:"enabled"`
	ShowDisclaimer     bool      `json:"show_disclaimer" db:"show_disclaimer"`
	AllowHealthTopics  bool      `json:"allow_health_topics" db:"allow_health_topics"`
	SaveHistory        bool      `json:"save_history" db:"save_history"`
	WelcomeMessage     string    `json:"welcome_message" db:"welcome_message"`
	DisclaimerText     string    `json:"disclaimer_text" db:"disclaimer_text"`
	SystemPrompt       string    `json:"system_prompt" db:"system_prompt"`
	Model              string    `json:"model" db:"model"`
	MaxQuestionsPerDay int       `json:"max_questions_per_day" db:"max_questions_per_day"`
	UpdatedBy          string    `json:"updated_by" db:"updated_by"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultSettings is served until an admin saves the settings for the first time.
func DefaultSettings() Settings {
	return Settings{
		Enabled:            false,
		ShowDisclaimer:     true,
		AllowHealthTopics:  false,
		SaveHistory:        true,
		WelcomeMessage:     "Hi! I am your Pure Life Compass. How can I help you today?",
		DisclaimerText:     "The AI Compass does not give medical advice. Always consult a health professional.",
		Model:              "default",
		MaxQuestionsPerDay: 20,
	}
}

// UpdateSettings is a patch: nil fields are left untouched.
type UpdateSettings struct {
	Enabled            *bool   `json:"enabled"`
	ShowDisclaimer     *bool   `json:"show_disclaimer"`
	AllowHealthTopics  *bool   `json:"allow_health_topics"`
	SaveHistory        *bool   `json:"save_history"`
	WelcomeMessage     *string `json:"welcome_message" validate:"omitempty,max=1000"`
	DisclaimerText     *string `json:"disclaimer_text" validate:"omitempty,max=4000"`
	SystemPrompt       *string `json:"system_prompt" validate:"omitempty,max=8000"`
	Model              *string `json:"model" validate:"omitempty,notblank,max=100"`
	MaxQuestionsPerDay *int    `json:"max_questions_per_day" validate:"omitempty,min=0,max=1000"`
}

func (us *UpdateSettings) Validate() error {
	if us.Model != nil {
		*us.Model = core.CleanString(*us.Model)
	}
	return core.Validate.Struct(us)
}

// Apply returns s with every provided field replaced.
func (us UpdateSettings) Apply(s Settings) Settings {
	if us.Enabled != nil {
		s.Enabled = *us.Enabled
	}
	if us.ShowDisclaimer != nil {
		s.ShowDisclaimer = *us.ShowDisclaimer
	}
	if us.AllowHealthTopics != nil {
		s.AllowHealthTopics = *us.AllowHealthTopics
	}
	if us.SaveHistory != nil {
		s.SaveHistory = *us.SaveHistory
	}
	if us.WelcomeMessage != nil {
		s.WelcomeMessage = *us.WelcomeMessage
	}
	if us.DisclaimerText != nil {
		s.DisclaimerText = *us.DisclaimerText
	}
	if us.SystemPrompt != nil {
		s.SystemPrompt = *us.SystemPrompt
	}
	if us.Model != nil {
		s.Model = *us.Model
	}
	if us.MaxQuestionsPerDay != nil {
		s.MaxQuestionsPerDay = *us.MaxQuestionsPerDay
	}
	return s
}

// Session is one conversation a member had with the assistant.
type Session struct {
	ID            string     `json:"id" db:"id"`
	UserID        string     `json:"user_id" db:"user_id"`
	UserName      string     `json:"user_name" db:"user_name"`
	Topic         string     `json:"topic" db:"topic"`
	QuestionCount int        `json:"question_count" db:"question_count"`
	Rating        *int       `json:"rating" db:"rating"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	EndedAt       *time.Time `json:"ended_at" db:"ended_at"`
}

type NewSession struct {
	Topic         string     `json:"topic" validate:"required,max=200"`
	QuestionCount int        `json:"question_count" validate:"min=0"`
	Rating        *int       `json:"rating" validate:"omitempty,min=1,max=5"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at"`
}

func (ns *NewSession) Validate() error {
	ns.Topic = core.CleanString(ns.Topic)
	if err := core.Validate.Struct(ns); err != nil {
		return err
	}
	if ns.EndedAt != nil && !ns.StartedAt.IsZero() && ns.EndedAt.Before(ns.StartedAt) {
		return core.NewFieldError("ended_at", "ended_at must be after started_at")
	}
	return nil
}

type SessionFilter struct {
	UserID string
	From   time.Time
	To     time.Time
}

func sessionsTable(sessions []Session) export.Table {
	t := export.Table{
		Title:   "AI Compass sessions",
		Columns: []string{"id", "user_id", "user_name", "topic", "question_count", "rating", "started_at", "ended_at"},
		Rows:    make([][]string, 0, len(sessions)),
	}
	for _, s := range sessions {
		var rating, ended string
		if s.Rating != nil {
			rating = strconv.Itoa(*s.Rating)
		}
		if s.EndedAt != nil {
			ended = export.FormatTime(*s.EndedAt)
		}
		t.Rows = append(t.Rows, []string{
			s.ID, s.UserID, s.UserName, s.Topic, strconv.Itoa(s.QuestionCount), rating,
			export.FormatTime(s.StartedAt), ended,
		})
	}
	return t
}
