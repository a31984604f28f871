// Package intent — классификация намерения запроса и планирование задач.
//
// Обе операции — одиночные LLM-запросы со строгим JSON-выводом.
// Любой сбой (провайдеры недоступны, невалидный JSON, неизвестная
// категория) даёт безопасный fallback: запрос обрабатывается как
// обычный диалог, пайплайн не прерывается.
package intent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/neo-2022/edith-core/internal/llm"
)

// Категории намерений.
const (
	IntentChat   = "CHAT"   // Диалог без внешних данных
	IntentTask   = "TASK"   // Требуются инструменты
	IntentHybrid = "HYBRID" // Смешанный запрос
)

// Completer — исполнитель одиночного LLM-запроса.
// Реализуется шлюзом провайдеров; деградированный ответ (Degraded)
// означает для классификатора неуспех.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, tools []llm.Tool) *llm.ChatResponse
}

// Result — результат классификации.
type Result struct {
	Intent string `json:"intent"` // CHAT, TASK или HYBRID
	Reason string `json:"reason"` // Обоснование модели
}

// fallbackResult — безопасный результат при любом сбое классификации.
func fallbackResult() Result {
	return Result{Intent: IntentChat, Reason: "System fallback due to detection error."}
}

const detectorPrompt = "You are the Intent Classifier for an AI agent. " +
	"Analyze the User Input and classify it into one of these categories:\n" +
	"1. CHAT: Greetings, general conversation, or simple questions that DON'T require external data.\n" +
	"2. TASK: Requests requiring tools like 'ask_document' (answering from indexed documents) or 'index_document' (loading a document for analysis).\n" +
	"3. HYBRID: A mix of both (e.g., 'Hello, can you check what the report says about revenue?').\n" +
	"\n" +
	"You MUST output ONLY a valid JSON object: " +
	"{\"intent\": \"CHAT\" | \"TASK\" | \"HYBRID\", \"reason\": \"...\"}"

// Detector — классификатор намерения запроса.
type Detector struct {
	completer Completer
}

// NewDetector — создаёт классификатор поверх шлюза провайдеров.
func NewDetector(c Completer) *Detector {
	return &Detector{completer: c}
}

// Detect — классифицирует запрос пользователя.
// Ошибки не возвращает: сбой любого этапа даёт CHAT-fallback.
func (d *Detector) Detect(ctx context.Context, userInput string) Result {
	resp := d.completer.Complete(ctx, []llm.Message{
		{Role: "system", Content: detectorPrompt},
		{Role: "user", Content: "User Input: \"" + userInput + "\""},
	}, nil)
	if resp.Degraded {
		slog.Warn("[INTENT] провайдеры недоступны, fallback на CHAT")
		return fallbackResult()
	}

	var result Result
	if err := json.Unmarshal([]byte(StripFences(resp.Content)), &result); err != nil {
		slog.Warn("[INTENT] невалидный JSON от классификатора, fallback на CHAT",
			slog.String("ошибка", err.Error()),
		)
		return fallbackResult()
	}

	switch result.Intent {
	case IntentChat, IntentTask, IntentHybrid:
		return result
	default:
		slog.Warn("[INTENT] неизвестная категория, fallback на CHAT",
			slog.String("категория", result.Intent),
		)
		return fallbackResult()
	}
}

// StripFences — извлекает содержимое из markdown-ограждений, если модель
// обернула JSON в ```json ... ``` или ``` ... ```.
func StripFences(content string) string {
	if i := strings.Index(content, "```json"); i >= 0 {
		rest := content[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
		return strings.TrimSpace(rest)
	}
	if i := strings.Index(content, "```"); i >= 0 {
		rest := content[i+3:]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(content)
}
