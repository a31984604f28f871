// Package llm — шлюз к облачным LLM-провайдерам с fallback-цепочкой.
//
// Все провайдеры используют OpenAI-совместимый Chat Completions API:
// Gemini (через openai-совместимый endpoint), Groq и OpenAI. Порядок
// обхода фиксируется при старте: первым идёт основной провайдер из
// конфигурации, остальные — резервные. API-ключи ротируются по кругу
// независимо для каждого провайдера.
package llm

import "encoding/json"

// Message — сообщение в формате OpenAI Chat Completions API.
// Поддерживает роли: system, user, assistant, tool.
type Message struct {
	Role       string     `json:"role"`                   // Роль отправителя сообщения
	Content    string     `json:"content"`                // Текст сообщения
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // Вызовы инструментов (для роли assistant)
	ToolCallID string     `json:"tool_call_id,omitempty"` // ID вызова инструмента (для роли tool)
}

// Tool — описание инструмента, доступного модели.
// Провайдеры поддерживают только тип "function".
type Tool struct {
	Type     string             `json:"type"`     // Тип инструмента (всегда "function")
	Function FunctionDefinition `json:"function"` // Описание функции
}

// FunctionDefinition — имя, описание и JSON Schema параметров функции.
type FunctionDefinition struct {
	Name        string `json:"name"`        // Имя функции
	Description string `json:"description"` // Описание функции для модели
	Parameters  any    `json:"parameters"`  // JSON Schema параметров функции
}

// ToolCall — вызов инструмента, запрошенный моделью.
type ToolCall struct {
	ID       string       `json:"id"`       // Уникальный ID вызова инструмента
	Type     string       `json:"type"`     // Тип вызова (всегда "function")
	Function FunctionCall `json:"function"` // Имя функции и аргументы
}

// FunctionCall — имя и аргументы вызванной функции.
// Arguments содержит JSON-строку с аргументами как прислал провайдер.
type FunctionCall struct {
	Name      string          `json:"name"`      // Имя вызванной функции
	Arguments json.RawMessage `json:"arguments"` // JSON-строка с аргументами вызова
}

// ChatRequest — универсальный запрос к провайдеру.
type ChatRequest struct {
	Model       string    `json:"model"`                 // Имя модели
	Messages    []Message `json:"messages"`              // Массив сообщений диалога
	Temperature float64   `json:"temperature"`           // Температура генерации
	Tools       []Tool    `json:"tools,omitempty"`       // Доступные инструменты
	Stream      bool      `json:"stream"`                // Режим стриминга (не используется)
}

// ChatResponse — ответ модели.
//
// Degraded = true означает, что вся цепочка провайдеров исчерпана
// и Content содержит фиксированный извиняющийся текст. Это штатный
// ответ, а не ошибка: вызывающий код отдаёт его пользователю как есть.
type ChatResponse struct {
	Content   string     `json:"content"`              // Текст ответа
	ToolCalls []ToolCall `json:"tool_calls,omitempty"` // Вызовы инструментов
	Model     string     `json:"model"`                // Имя использованной модели
	Provider  string     `json:"provider"`             // Имя ответившего провайдера
	Degraded  bool       `json:"degraded,omitempty"`   // Все провайдеры недоступны
}
