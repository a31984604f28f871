// Package agent — итеративный цикл выполнения запроса с инструментами.
//
// Модель вызывается с декларациями инструментов; пока она запрашивает
// вызовы, цикл выполняет их и возвращает результаты в историю. Текстовый
// ответ без вызовов завершает цикл. Жёсткий потолок итераций защищает
// от зацикливания: по его достижении модель принуждается к итоговой
// сводке по уже собранным результатам.
package agent

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/neo-2022/edith-core/internal/conversation"
	"github.com/neo-2022/edith-core/internal/intent"
	"github.com/neo-2022/edith-core/internal/llm"
)

// Фиксированные ответы цикла.
const (
	// cleanStopFallback — модель остановилась без текста и без вызовов.
	cleanStopFallback = "I've completed the task as requested."
	// summaryPrompt — принуждение к сводке при исчерпании итераций.
	summaryPrompt = "You have reached your maximum action limit. Please provide a concise summary of what you have accomplished or found so far based on the tool results above."
	// summaryEmptyFallback — сводка получена, но пустая.
	summaryEmptyFallback = "I've reached my process limit. Please check the logs for the data gathered."
	// exhaustedFallback — не удалось получить даже сводку.
	exhaustedFallback = "I ran out of reasoning steps (max iterations reached). Here is what I found so far. Check the log for details."
)

// systemInstruction — базовая инструкция агента.
const systemInstruction = "You are EDITH, a general intelligence assistant. " +
	"Solve the user's request by orchestrating your available tools.\n\n" +
	"Rules:\n" +
	"1. Chain tools when a task needs several steps.\n" +
	"2. For questions about a document, call index_document first, then ask_document.\n" +
	"3. Trust tool results: do not retry an action that already succeeded.\n" +
	"4. Never call the same tool twice with the same arguments for one request unless the first attempt failed.\n" +
	"5. Be concise. Answer directly, without filler."

// Completer — исполнитель одного LLM-запроса.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, tools []llm.Tool) *llm.ChatResponse
}

// Toolbox — набор инструментов агента.
type Toolbox interface {
	Declarations() []llm.Tool
	Dispatch(ctx context.Context, name string, args map[string]any) string
}

// Result — итог выполнения запроса.
type Result struct {
	Response string   // Итоговый текст для пользователя
	Actions  []string // Выполненные действия в порядке выполнения
	Degraded bool     // Ответ отдан при недоступности провайдеров
}

// Loop — цикл выполнения с фиксированными лимитами.
type Loop struct {
	completer     Completer
	toolbox       Toolbox
	maxIterations int
	historyWindow int
}

// New — создаёт цикл. Неположительные лимиты заменяются умолчаниями.
func New(completer Completer, toolbox Toolbox, maxIterations, historyWindow int) *Loop {
	if maxIterations <= 0 {
		maxIterations = 12
	}
	if historyWindow <= 0 {
		historyWindow = conversation.DefaultWindow
	}
	return &Loop{
		completer:     completer,
		toolbox:       toolbox,
		maxIterations: maxIterations,
		historyWindow: historyWindow,
	}
}

// Run — выполняет запрос пользователя поверх переданной истории.
//
// История не мутируется: цикл работает с собственной копией. План,
// если он есть, дописывается к системной инструкции. Ошибки наружу не
// возвращаются — любой исход выражается текстом ответа.
func (l *Loop) Run(ctx context.Context, message string, history []conversation.Turn, plan *intent.Plan) *Result {
	instruction := systemInstruction
	if plan != nil {
		if steps, err := json.MarshalIndent(plan.Steps, "", "  "); err == nil {
			instruction += "\n\nCURRENT TASK PLAN:\n" + string(steps)
		}
	}

	turns := make([]conversation.Turn, 0, len(history)+1)
	turns = append(turns, history...)
	turns = append(turns, conversation.User(message))

	decls := l.toolbox.Declarations()
	result := &Result{}

	for i := 0; i < l.maxIterations; i++ {
		resp := l.completer.Complete(ctx, conversation.ToWire(instruction, turns, l.historyWindow), decls)
		if resp.Degraded {
			result.Response = resp.Content
			result.Degraded = true
			return result
		}

		modelTurn := conversation.FromResponse(resp)
		turns = append(turns, modelTurn)

		calls := modelTurn.Calls()
		if len(calls) == 0 {
			result.Response = resp.Content
			if result.Response == "" {
				result.Response = cleanStopFallback
			}
			return result
		}

		// Вызовы выполняются последовательно в порядке запроса модели;
		// результаты попадают в один tool-ход с теми же call_id.
		toolTurn := conversation.Turn{Role: conversation.RoleTool}
		for _, call := range calls {
			result.Actions = append(result.Actions, "Action: "+call.Name)
			text := l.toolbox.Dispatch(ctx, call.Name, call.Args)
			toolTurn.Parts = append(toolTurn.Parts, conversation.Part{
				FunctionResponse: &conversation.FunctionResponse{
					CallID:   call.ID,
					Name:     call.Name,
					Response: map[string]any{"result": text},
				},
			})
		}
		turns = append(turns, toolTurn)
	}

	// Лимит исчерпан: одна принудительная попытка собрать сводку.
	slog.Warn("[AGENT] достигнут потолок итераций, запрашивается сводка",
		slog.Int("итераций", l.maxIterations),
	)
	turns = append(turns, conversation.User(summaryPrompt))
	resp := l.completer.Complete(ctx, conversation.ToWire(instruction, turns, l.historyWindow), decls)
	switch {
	case resp.Degraded:
		result.Response = exhaustedFallback
	case resp.Content == "":
		result.Response = summaryEmptyFallback
	default:
		result.Response = resp.Content
	}
	return result
}
