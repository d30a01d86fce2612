package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	return CreateRecruit(t, repo, "", name, uname, email, pwd, roles, isActive, createdAt...)
}

// CreateRecruit creates a user sponsored by sponsorID.
func CreateRecruit(
	t *testing.T,
	repo user.Repository,
	sponsorID, name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:         name,
		Username:     uname,
		Email:        email,
		Roles:        roles,
		IsActive:     isActive,
		SponsorID:    sponsorID,
		ReferralCode: uname,
		Language:     "en",
		CreatedAt:    tstamp,
		UpdatedAt:    tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// FreezeTime makes core.NowFunc return now until the test ends.
func FreezeTime(t *testing.T, now time.Time) {
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = orig })
}

// Logger records log entries per level.
type Logger struct {
	mu      sync.Mutex
	Entries map[string][]string
}

var _ core.Logger = (*Logger)(nil)

func NewLogger() *Logger {
	return &Logger{Entries: make(map[string][]string)}
}

func (l *Logger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries[level] = append(l.Entries[level], msg)
}

func (l *Logger) Count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Entries[level])
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.add("debug", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.add("info", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.add("warn", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.add("error", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.add("fatal", msg) }

// Publisher records published events.
type Publisher struct {
	mu     sync.Mutex
	Events []Event
}

type Event struct {
	Topic string
	Data  interface{}
}

var _ core.EventPublisher = (*Publisher)(nil)

func (p *Publisher) Publish(_ context.Context, topic string, event interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, Event{Topic: topic, Data: event})
	return nil
}

func (p *Publisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	topics := make([]string, len(p.Events))
	for i, e := range p.Events {
		topics[i] = e.Topic
	}
	return topics
}

func (p *Publisher) Close() error { return nil }
