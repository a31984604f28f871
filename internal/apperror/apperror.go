// Package apperror — типизированные ошибки ядра агента.
//
// Единая таксономия ошибок для всех слоёв:
//   - TRANSLATION    — некорректный ход/история диалога; логируется, цикл не падает
//   - PROVIDER       — сеть/HTTP/таймаут LLM-провайдера; вызывает fallback
//   - TOOL_EXECUTION — ошибка инструмента; превращается в текстовый ToolResult
//   - INDEX_BUILD    — документ не парсится/не поддерживается; индекс не сохраняется
//   - EMBEDDING      — батч эмбеддингов не вычислен; прерывает текущий build/запрос
//
// Плюс общие коды для HTTP-слоя: NOT_FOUND, BAD_REQUEST, TIMEOUT, INTERNAL.
package apperror

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Коды ошибок ядра. Строковые, чтобы попадать в логи и метрики без маппинга.
const (
	CodeTranslation   = "TRANSLATION"
	CodeProvider      = "PROVIDER"
	CodeToolExecution = "TOOL_EXECUTION"
	CodeIndexBuild    = "INDEX_BUILD"
	CodeEmbedding     = "EMBEDDING"
)

// AppError — структура типизированной ошибки.
//
// Поля:
//   - Code: строковый код из таксономии выше
//   - Message: человекочитаемое описание
//   - Err: вложенная ошибка (nil, если ошибка создана без обёртки)
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error — реализация интерфейса error.
// Форматирует ошибку как "[КОД] сообщение: вложенная_ошибка".
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap — возвращает вложенную ошибку для errors.Is / errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New — создаёт новую ошибку без вложенной.
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap — оборачивает существующую ошибку в AppError.
// Используется для добавления контекста к ошибкам из нижних слоёв.
func Wrap(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Translation — ошибка трансляции истории диалога в wire-формат.
func Translation(message string, err error) *AppError {
	return Wrap(CodeTranslation, message, err)
}

// Provider — ошибка обращения к LLM-провайдеру (сеть, HTTP, таймаут).
func Provider(message string, err error) *AppError {
	return Wrap(CodeProvider, message, err)
}

// ToolExecution — ошибка выполнения инструмента.
func ToolExecution(message string, err error) *AppError {
	return Wrap(CodeToolExecution, message, err)
}

// IndexBuild — документ не удалось превратить в индекс.
func IndexBuild(message string, err error) *AppError {
	return Wrap(CodeIndexBuild, message, err)
}

// Embedding — батч эмбеддингов не вычислен (атомарный отказ).
func Embedding(message string, err error) *AppError {
	return Wrap(CodeEmbedding, message, err)
}

// NotFound — «не найдено» (HTTP 404).
func NotFound(message string) *AppError {
	return New("NOT_FOUND", message)
}

// BadRequest — «некорректный запрос» (HTTP 400).
func BadRequest(message string) *AppError {
	return New("BAD_REQUEST", message)
}

// Timeout — таймаут (HTTP 504).
func Timeout(message string) *AppError {
	return New("TIMEOUT", message)
}

// HTTPStatus — возвращает HTTP-статус, соответствующий коду ошибки.
//
// Маппинг:
//   - NOT_FOUND   → 404
//   - BAD_REQUEST → 400
//   - TRANSLATION → 400
//   - TIMEOUT     → 504
//   - PROVIDER    → 502
//   - INDEX_BUILD → 422
//   - остальные   → 500
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case "NOT_FOUND":
		return http.StatusNotFound
	case "BAD_REQUEST", CodeTranslation:
		return http.StatusBadRequest
	case "TIMEOUT":
		return http.StatusGatewayTimeout
	case CodeProvider:
		return http.StatusBadGateway
	case CodeIndexBuild:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON — записывает ошибку в HTTP-ответ в формате JSON.
// Устанавливает Content-Type: application/json и соответствующий статус.
func (e *AppError) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPStatus())
	json.NewEncoder(w).Encode(map[string]string{
		"error":   e.Code,
		"message": e.Message,
	})
}
