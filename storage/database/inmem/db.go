// Package inmemdb keeps every repository in memory. It backs the tests and `--inmem` runs.
package inmemdb

import (
	"sync"
	"time"

	"github.com/purelifecenter/portal/core/chat"
	"github.com/purelifecenter/portal/core/compass"
	"github.com/purelifecenter/portal/core/consent"
	"github.com/purelifecenter/portal/core/content"
	"github.com/purelifecenter/portal/core/i18n"
	"github.com/purelifecenter/portal/core/knowledge"
	"github.com/purelifecenter/portal/core/push"
	"github.com/purelifecenter/portal/core/training"
	"github.com/purelifecenter/portal/core/user"
)

type (
	DB struct {
		user      *userTable
		compass   *compassTables
		consent   *consentTables
		content   *contentTables
		knowledge *knowledgeTable
		push      *pushTables
		i18n      *i18nTable
		chat      *chatTables
		training  *trainingTables
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	compassTables struct {
		sync.RWMutex
		settings *compass.Settings
		sessions map[string]*compass.Session
	}

	consentTables struct {
		sync.RWMutex
		categories map[string]*consent.Category
		settings   *consent.Settings
		records    []consent.Record
	}

	contentTables struct {
		sync.RWMutex
		banners map[string]*content.Banner
		news    map[string]*content.NewsItem
	}

	knowledgeTable struct {
		sync.RWMutex
		table map[string]*knowledge.Resource
	}

	pushTables struct {
		sync.RWMutex
		config        *push.Config
		subscriptions map[string]*push.Subscription // by endpoint
	}

	i18nTable struct {
		sync.RWMutex
		table map[string]*i18n.Translation
	}

	chatTables struct {
		sync.RWMutex
		contactTypes map[string]*chat.ContactType
		threads      map[string]*chat.Thread
		reads        map[string]map[string]time.Time // thread id -> user id -> last read
		messages     []chat.Message
		broadcasts   []chat.Broadcast
		inbox        []*chat.InboxItem
	}

	trainingTables struct {
		sync.RWMutex
		modules  map[string]*training.Module
		lessons  map[string]*training.Lesson
		progress map[string]*training.Progress // user id + lesson id
	}
)

func Open() *DB {
	return &DB{
		user:    &userTable{table: make(map[string]*user.User)},
		compass: &compassTables{sessions: make(map[string]*compass.Session)},
		consent: &consentTables{categories: make(map[string]*consent.Category)},
		content: &contentTables{
			banners: make(map[string]*content.Banner),
			news:    make(map[string]*content.NewsItem),
		},
		knowledge: &knowledgeTable{table: make(map[string]*knowledge.Resource)},
		push:      &pushTables{subscriptions: make(map[string]*push.Subscription)},
		i18n:      &i18nTable{table: make(map[string]*i18n.Translation)},
		chat: &chatTables{
			contactTypes: make(map[string]*chat.ContactType),
			threads:      make(map[string]*chat.Thread),
			reads:        make(map[string]map[string]time.Time),
		},
		training: &trainingTables{
			modules:  make(map[string]*training.Module),
			lessons:  make(map[string]*training.Lesson),
			progress: make(map[string]*training.Progress),
		},
	}
}

func copyStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	return append(make([]string, 0, len(ss)), ss...)
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}
