package vectorstore

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore — файловое хранилище записей индексов.
// Одна запись — один gob-файл <dir>/<отпечаток>.gob.
type FileStore struct {
	dir string
}

// NewFileStore — создаёт хранилище в каталоге dir, создавая его при необходимости.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("не удалось создать каталог кеша %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(fingerprint string) string {
	return filepath.Join(s.dir, fingerprint+".gob")
}

// Load — читает запись по отпечатку. Отсутствие файла — ErrNotFound.
func (s *FileStore) Load(fingerprint string) (*Record, error) {
	f, err := os.Open(s.path(fingerprint))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("не удалось открыть запись индекса: %w", err)
	}
	defer f.Close()

	var rec Record
	if err := gob.NewDecoder(f).Decode(&rec); err != nil {
		return nil, fmt.Errorf("не удалось декодировать запись индекса: %w", err)
	}
	return &rec, nil
}

// Save — пишет запись атомарно: во временный файл с последующим rename.
func (s *FileStore) Save(rec *Record) error {
	tmp, err := os.CreateTemp(s.dir, rec.Fingerprint+".tmp-*")
	if err != nil {
		return fmt.Errorf("не удалось создать временный файл: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(rec); err != nil {
		tmp.Close()
		return fmt.Errorf("не удалось закодировать запись индекса: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("не удалось закрыть временный файл: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(rec.Fingerprint)); err != nil {
		return fmt.Errorf("не удалось сохранить запись индекса: %w", err)
	}
	return nil
}
