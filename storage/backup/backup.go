// Package backup keeps lesson progress on local disk until the portal confirms it.
package backup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/purelifecenter/portal/core/training"
)

// FileStore writes one JSON document per user, keyed by lesson id.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

var _ training.Backup = (*FileStore)(nil)

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "creating backup directory")
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(userID string) string {
	return filepath.Join(s.dir, filepath.Base(filepath.Clean("/"+userID))+".json")
}

func (s *FileStore) read(userID string) (map[string]training.Progress, error) {
	entries := make(map[string]training.Progress)
	b, err := os.ReadFile(s.path(userID))
	if os.IsNotExist(err) {
		return entries, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading progress backup")
	}
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, errors.Wrap(err, "decoding progress backup")
	}
	return entries, nil
}

func (s *FileStore) write(userID string, entries map[string]training.Progress) error {
	dest := s.path(userID)
	if len(entries) == 0 {
		if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "removing progress backup")
		}
		return nil
	}
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding progress backup")
	}
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return errors.Wrap(err, "writing progress backup")
	}
	return errors.Wrap(os.Rename(tmp, dest), "replacing progress backup")
}

func (s *FileStore) Load(userID, lessonID string) (training.Progress, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read(userID)
	if err != nil {
		return training.Progress{}, false, err
	}
	p, ok := entries[lessonID]
	return p, ok, nil
}

// Store merges p into the entry already backed up for the lesson.
func (s *FileStore) Store(p training.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read(p.UserID)
	if err != nil {
		return err
	}
	if existing, ok := entries[p.LessonID]; ok {
		p = existing.Merge(p)
	}
	entries[p.LessonID] = p
	return s.write(p.UserID, entries)
}

func (s *FileStore) Clear(userID, lessonID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read(userID)
	if err != nil {
		return err
	}
	if _, ok := entries[lessonID]; !ok {
		return nil
	}
	delete(entries, lessonID)
	return s.write(userID, entries)
}
