// Package tools — реестр инструментов агента.
//
// Инструмент состоит из декларации (имя, описание, JSON Schema
// параметров) и обработчика. Декларации отдаются модели вместе с
// запросом, обработчики вызываются при получении tool_calls.
// Результат инструмента — всегда текст: ошибки выполнения
// возвращаются модели как текст, а не прерывают цикл агента.
package tools

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/neo-2022/edith-core/internal/llm"
	"github.com/neo-2022/edith-core/internal/metrics"
)

// Definition — декларация инструмента для модели.
type Definition struct {
	Name        string         // Имя инструмента
	Description string         // Описание для модели
	Parameters  map[string]any // JSON Schema параметров
}

// Handler — обработчик инструмента.
// Возвращает текстовый результат для модели.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Registry — потокобезопасный реестр инструментов.
// Регистрация выполняется при старте, далее реестр только читается.
type Registry struct {
	mu       sync.RWMutex
	defs     map[string]Definition
	handlers map[string]Handler
	order    []string // Порядок регистрации для стабильных деклараций
}

// NewRegistry — создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		defs:     make(map[string]Definition),
		handlers: make(map[string]Handler),
	}
}

// Register — регистрирует инструмент.
// Повторная регистрация имени — ошибка конфигурации, а не замена:
// молчаливая подмена обработчика маскирует опечатки в именах.
func (r *Registry) Register(def Definition, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("инструмент %q уже зарегистрирован", def.Name)
	}
	if h == nil {
		return fmt.Errorf("инструмент %q зарегистрирован без обработчика", def.Name)
	}
	r.defs[def.Name] = def
	r.handlers[def.Name] = h
	r.order = append(r.order, def.Name)
	return nil
}

// Validate — проверяет согласованность деклараций и обработчиков.
// Вызывается при старте сервиса после регистрации всех инструментов.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []string
	for name := range r.defs {
		if r.handlers[name] == nil {
			missing = append(missing, name)
		}
	}
	for name := range r.handlers {
		if _, ok := r.defs[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("несогласованные инструменты: %v", missing)
	}
	return nil
}

// Declarations — декларации всех инструментов в порядке регистрации.
func (r *Registry) Declarations() []llm.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		def := r.defs[name]
		tools = append(tools, llm.Tool{
			Type: "function",
			Function: llm.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	return tools
}

// Dispatch — выполняет инструмент по имени.
//
// Любой исход возвращается моделью читаемым текстом: неизвестный
// инструмент и ошибка обработчика становятся текстом результата,
// цикл агента продолжается.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) string {
	r.mu.RLock()
	h, ok := r.handlers[name]
	r.mu.RUnlock()

	if !ok {
		log.Printf("[TOOLS] неизвестный инструмент: %s", name)
		metrics.RecordToolCall(name, "not_found", 0)
		return fmt.Sprintf("Error: tool %q not found", name)
	}

	start := time.Now()
	result, err := h(ctx, args)
	if err != nil {
		log.Printf("[TOOLS] ошибка выполнения %s: %v", name, err)
		metrics.RecordToolCall(name, "error", time.Since(start))
		return fmt.Sprintf("Error executing tool %q: %v", name, err)
	}

	metrics.RecordToolCall(name, "success", time.Since(start))
	return result
}
