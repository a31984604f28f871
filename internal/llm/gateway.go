package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/neo-2022/edith-core/internal/config"
	"github.com/neo-2022/edith-core/internal/metrics"
)

// DegradedApology — фиксированный ответ при недоступности всех провайдеров.
// Возвращается пользователю как штатный ответ с флагом Degraded.
const DegradedApology = "I apologize, but all my intelligence providers are currently unavailable. Please check your API keys or connection."

// attemptTimeout — таймаут одной попытки обращения к провайдеру.
const attemptTimeout = 30 * time.Second

// providerEntry — один провайдер в fallback-цепочке.
// Хранит собственный пул API-ключей и позицию ротации.
type providerEntry struct {
	name     string   // Имя провайдера (gemini, groq, openai)
	model    string   // Модель по умолчанию для этого провайдера
	endpoint string   // Полный URL Chat Completions endpoint
	keys     []string // Пул API-ключей

	mu     sync.Mutex // Защищает keyIdx
	keyIdx int        // Индекс следующего ключа
}

// nextKey — выдаёт очередной ключ и сдвигает позицию ротации.
// Пустой пул означает, что провайдер не настроен.
func (e *providerEntry) nextKey() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.keys) == 0 {
		return "", false
	}
	key := e.keys[e.keyIdx]
	e.keyIdx = (e.keyIdx + 1) % len(e.keys)
	return key, true
}

// Gateway — шлюз к LLM-провайдерам с фиксированным порядком fallback.
// Порядок обхода вычисляется один раз при создании: основной провайдер
// из конфигурации идёт первым, затем остальные настроенные.
type Gateway struct {
	entries     []*providerEntry
	http        *http.Client
	temperature float64
}

// NewGateway — строит цепочку провайдеров из конфигурации.
// Провайдеры без ключей остаются в цепочке, но пропускаются при обходе.
func NewGateway(cfg *config.Config) *Gateway {
	gemini := &providerEntry{
		name:     "gemini",
		model:    cfg.PrimaryModel,
		endpoint: "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions",
		keys:     splitKeys(cfg.GoogleAPIKeys),
	}
	groq := &providerEntry{
		name:     "groq",
		model:    "llama-3.3-70b-versatile",
		endpoint: "https://api.groq.com/openai/v1/chat/completions",
	}
	if cfg.GroqAPIKey != "" {
		groq.keys = []string{cfg.GroqAPIKey}
	}
	openai := &providerEntry{
		name:     "openai",
		model:    "gpt-4o-mini",
		endpoint: "https://api.openai.com/v1/chat/completions",
	}
	if cfg.OpenAIAPIKey != "" {
		openai.keys = []string{cfg.OpenAIAPIKey}
	}

	// Основной провайдер — первым, далее резервные в фиксированном порядке.
	var entries []*providerEntry
	switch cfg.PrimaryLLM {
	case "Groq":
		groq.model = cfg.PrimaryModel
		entries = []*providerEntry{groq, gemini, openai}
	case "OpenAI":
		openai.model = cfg.PrimaryModel
		entries = []*providerEntry{openai, gemini, groq}
	default: // Gemini
		entries = []*providerEntry{gemini, groq, openai}
	}

	return &Gateway{
		entries:     entries,
		http:        &http.Client{},
		temperature: 0.7,
	}
}

// splitKeys — разбирает список API-ключей через запятую.
func splitKeys(raw string) []string {
	var keys []string
	for _, part := range strings.Split(raw, ",") {
		if key := strings.TrimSpace(part); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// Providers — имена провайдеров в порядке обхода fallback-цепочки.
func (g *Gateway) Providers() []string {
	names := make([]string, len(g.entries))
	for i, e := range g.entries {
		names[i] = e.name
	}
	return names
}

// Complete — выполняет запрос по fallback-цепочке.
//
// Обходит провайдеров по порядку, для каждого берёт очередной ключ из
// ротации и делает одну попытку с таймаутом 30s. Первый успешный ответ
// возвращается сразу. Ошибкой попытки считается сетевой сбой, не-2xx
// статус, нечитаемое тело или пустой choices.
//
// Ошибку не возвращает никогда: при полном исчерпании цепочки отдаёт
// ChatResponse с фиксированным текстом и Degraded=true.
func (g *Gateway) Complete(ctx context.Context, messages []Message, tools []Tool) *ChatResponse {
	for _, entry := range g.entries {
		key, ok := entry.nextKey()
		if !ok {
			continue
		}

		start := time.Now()
		resp, err := g.attempt(ctx, entry, key, messages, tools)
		if err != nil {
			metrics.RecordProviderAttempt(entry.name, entry.model, "error", time.Since(start))
			slog.Warn("[LLM] провайдер недоступен, переход к следующему",
				slog.String("провайдер", entry.name),
				slog.String("модель", entry.model),
				slog.String("ошибка", err.Error()),
			)
			continue
		}

		metrics.RecordProviderAttempt(entry.name, entry.model, "success", time.Since(start))
		resp.Provider = entry.name
		return resp
	}

	slog.Error("[LLM] все провайдеры исчерпаны, возвращается деградированный ответ")
	metrics.RecordDegradedResponse()
	return &ChatResponse{
		Content:  DegradedApology,
		Degraded: true,
	}
}

// attempt — одна попытка обращения к провайдеру.
func (g *Gateway) attempt(ctx context.Context, entry *providerEntry, key string, messages []Message, tools []Tool) (*ChatResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	req := ChatRequest{
		Model:       entry.model,
		Messages:    messages,
		Temperature: g.temperature,
		Tools:       tools,
		Stream:      false,
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка маршалинга запроса: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, entry.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+key)

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ошибка отправки запроса к %s: %w", entry.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%s HTTP %d: %s", entry.name, resp.StatusCode, string(body))
	}

	var wire struct {
		Choices []struct {
			Message struct {
				Content   string     `json:"content"`
				ToolCalls []ToolCall `json:"tool_calls,omitempty"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("ошибка декодирования ответа %s: %w", entry.name, err)
	}
	if len(wire.Choices) == 0 {
		return nil, fmt.Errorf("%s вернул пустой ответ", entry.name)
	}

	choice := wire.Choices[0]
	return &ChatResponse{
		Content:   choice.Message.Content,
		ToolCalls: choice.Message.ToolCalls,
		Model:     wire.Model,
	}, nil
}
