package agent

import (
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/neo-2022/edith-core/internal/models"
)

// SessionRecorder — журнал диалогов в PostgreSQL.
//
// Запись best-effort: источником истины для цикла агента служит
// история из запроса, поэтому сбой БД логируется и не влияет на ответ.
// Нулевой рекордер (без БД) безопасен и ничего не пишет.
type SessionRecorder struct {
	db *gorm.DB // nil — журналирование выключено
}

// NewSessionRecorder — рекордер поверх подключения GORM (или nil).
func NewSessionRecorder(db *gorm.DB) *SessionRecorder {
	return &SessionRecorder{db: db}
}

// EnsureSession — возвращает идентификатор сессии, создавая новую
// при пустом входе. Идентификатор валидируется как UUID: мусорный
// session_id из запроса заменяется новым.
func (r *SessionRecorder) EnsureSession(sessionID string) string {
	if _, err := uuid.Parse(sessionID); err != nil {
		sessionID = uuid.NewString()
	}
	if r.db == nil {
		return sessionID
	}
	err := r.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ChatSession{ID: sessionID}).Error
	if err != nil {
		slog.Warn("[SESSION] не удалось создать сессию",
			slog.String("сессия", sessionID),
			slog.String("ошибка", err.Error()),
		)
	}
	return sessionID
}

// RecordExchange — записывает пару запрос/ответ одного обращения.
func (r *SessionRecorder) RecordExchange(sessionID, userMessage, intentName string, result *Result) {
	if r.db == nil {
		return
	}
	rows := []models.ChatMessage{
		{SessionID: sessionID, Role: "user", Content: userMessage, Intent: intentName},
		{SessionID: sessionID, Role: "assistant", Content: result.Response, Degraded: result.Degraded},
	}
	if err := r.db.Create(&rows).Error; err != nil {
		slog.Warn("[SESSION] не удалось записать сообщения",
			slog.String("сессия", sessionID),
			slog.String("ошибка", err.Error()),
		)
	}
}
