package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/neo-2022/edith-core/internal/llm"
)

// Plan — пошаговый план выполнения задачи.
type Plan struct {
	Reasoning string   `json:"reasoning"` // Почему выбраны эти шаги
	Steps     []string `json:"steps"`     // Шаги в порядке выполнения
}

// Planner — строит план для TASK- и HYBRID-запросов.
// Список доступных инструментов подставляется в промпт из деклараций
// реестра, поэтому промпт не расходится с фактическим набором.
type Planner struct {
	completer Completer
	prompt    string
}

// NewPlanner — создаёт планировщик с промптом под переданные инструменты.
func NewPlanner(c Completer, tools []llm.Tool) *Planner {
	return &Planner{completer: c, prompt: plannerPrompt(tools)}
}

// plannerPrompt — системный промпт планировщика.
func plannerPrompt(tools []llm.Tool) string {
	var b strings.Builder
	b.WriteString("You are the Strategic Planner for an AI agent. ")
	b.WriteString("Break down user requests into discrete, logical steps. ")
	b.WriteString("You have access to the following tools:\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Function.Name, t.Function.Description)
	}
	b.WriteString("\n")
	b.WriteString("You MUST output ONLY a valid JSON object:\n")
	b.WriteString("{\n")
	b.WriteString("  \"reasoning\": \"Explain why you chose these steps.\",\n")
	b.WriteString("  \"steps\": [\"Step 1...\", \"Step 2...\"]\n")
	b.WriteString("}")
	return b.String()
}

// GeneratePlan — строит план по запросу пользователя.
// Ошибки не возвращает: при любом сбое план вырождается в прямое
// выполнение исходного запроса одним шагом.
func (p *Planner) GeneratePlan(ctx context.Context, userInput string) Plan {
	fallback := Plan{
		Reasoning: "Defaulting to direct execution due to planning error.",
		Steps:     []string{userInput},
	}

	resp := p.completer.Complete(ctx, []llm.Message{
		{Role: "system", Content: p.prompt},
		{Role: "user", Content: "User Request: \"" + userInput + "\""},
	}, nil)
	if resp.Degraded {
		slog.Warn("[PLANNER] провайдеры недоступны, прямое выполнение")
		return fallback
	}

	var plan Plan
	if err := json.Unmarshal([]byte(StripFences(resp.Content)), &plan); err != nil {
		slog.Warn("[PLANNER] невалидный JSON от планировщика, прямое выполнение",
			slog.String("ошибка", err.Error()),
		)
		return fallback
	}
	if len(plan.Steps) == 0 {
		return fallback
	}
	return plan
}
