package vectorstore

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/neo-2022/edith-core/internal/models"
)

// PostgresStore — хранилище записей индексов в PostgreSQL.
// Запись сериализуется gob-ом в бинарную колонку: структура индексов
// меняется вместе с кодом, отдельная реляционная схема для фрагментов
// не окупается.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore — хранилище поверх готового подключения GORM.
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Load — читает запись по отпечатку. Отсутствие строки — ErrNotFound.
func (s *PostgresStore) Load(fingerprint string) (*Record, error) {
	var row models.DocumentIndex
	if err := s.db.First(&row, "fingerprint = ?", fingerprint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("не удалось прочитать запись индекса: %w", err)
	}

	var rec Record
	if err := gob.NewDecoder(bytes.NewReader(row.Payload)).Decode(&rec); err != nil {
		return nil, fmt.Errorf("не удалось декодировать запись индекса: %w", err)
	}
	return &rec, nil
}

// Save — сохраняет запись, заменяя прежнюю с тем же отпечатком.
func (s *PostgresStore) Save(rec *Record) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return fmt.Errorf("не удалось закодировать запись индекса: %w", err)
	}

	row := models.DocumentIndex{
		Fingerprint: rec.Fingerprint,
		Payload:     buf.Bytes(),
		ChunkCount:  len(rec.Chunks),
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fingerprint"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "chunk_count", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("не удалось сохранить запись индекса: %w", err)
	}
	return nil
}
