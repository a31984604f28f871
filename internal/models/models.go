// Пакет models — ORM-сущности сервиса.
// Используется библиотека GORM для маппинга структур Go на таблицы PostgreSQL.
//
// Сущности:
//
//	ChatSession → ChatMessage — журнал диалогов (best-effort, не источник истины)
//	DocumentIndex — долговременный кеш построенных индексов документов
package models

import (
	"time"

	"gorm.io/gorm"
)

// ChatSession — сессия диалога пользователя.
// Идентификатор приходит от клиента (session_id) или генерируется
// сервером как UUID. Запись журнальная: цикл агента держит историю
// в памяти запроса, БД нужна для просмотра и аналитики.
type ChatSession struct {
	ID        string         `gorm:"primaryKey;type:uuid"` // UUID сессии
	CreatedAt time.Time      // Время создания
	UpdatedAt time.Time      // Время последнего обновления
	DeletedAt gorm.DeletedAt `gorm:"index"` // Мягкое удаление
	Messages  []ChatMessage  // Сообщения сессии
}

// ChatMessage — одно сообщение диалога.
//
// Поля:
//   - Role: роль отправителя — user, assistant, system, tool.
//   - Content: текст сообщения.
//   - Intent: определённое намерение запроса (для user-сообщений).
//   - Degraded: ответ отдан деградированным (все провайдеры недоступны).
type ChatMessage struct {
	gorm.Model
	SessionID string `gorm:"index;not null"` // Внешний ключ на ChatSession
	Role      string `gorm:"not null"`       // Роль: user, assistant, system, tool
	Content   string `gorm:"type:text"`      // Текст сообщения
	Intent    string // Намерение (CHAT, TASK, HYBRID)
	Degraded  bool   `gorm:"default:false"` // Деградированный ответ
}

// DocumentIndex — сохранённый индекс документа.
// Payload — gob-сериализованная запись с фрагментами и эмбеддингами,
// восстановление индекса из неё не требует повторного эмбеддинга.
type DocumentIndex struct {
	Fingerprint string    `gorm:"primaryKey"`        // md5-отпечаток документа
	Payload     []byte    `gorm:"type:bytea"`        // Сериализованная запись индекса
	ChunkCount  int       // Число фрагментов
	CreatedAt   time.Time // Время построения
	UpdatedAt   time.Time // Время последнего обновления
}
