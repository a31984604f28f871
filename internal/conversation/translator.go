package conversation

import (
	"encoding/json"

	"github.com/neo-2022/edith-core/internal/llm"
)

// DefaultWindow — сколько последних ходов истории попадает в запрос.
// Системная инструкция в окно не входит и передаётся всегда.
const DefaultWindow = 12

// ToWire — транслирует ходы диалога в wire-формат провайдера.
//
// Правила трансляции:
//   - системная инструкция всегда идёт первым сообщением;
//   - из остальных ходов берётся не более window последних;
//   - ход модели с вызовами функций становится assistant-сообщением
//     с tool_calls, аргументы сериализуются дословно из Raw;
//   - ход с результатами функций разворачивается в отдельные
//     tool-сообщения, по одному на результат, в исходном порядке;
//   - текстовые ходы транслируются как есть (model → assistant).
func ToWire(system string, turns []Turn, window int) []llm.Message {
	if window <= 0 {
		window = DefaultWindow
	}

	messages := []llm.Message{{Role: "system", Content: system}}

	if len(turns) > window {
		turns = turns[len(turns)-window:]
	}

	for _, turn := range turns {
		switch turn.Role {
		case RoleTool:
			// Каждый результат — отдельное tool-сообщение со своим call_id.
			for _, p := range turn.Parts {
				if p.FunctionResponse == nil {
					continue
				}
				messages = append(messages, llm.Message{
					Role:       "tool",
					Content:    responseText(p.FunctionResponse),
					ToolCallID: p.FunctionResponse.CallID,
				})
			}

		case RoleModel:
			msg := llm.Message{Role: "assistant", Content: turn.Text()}
			for _, call := range turn.Calls() {
				msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
					ID:   call.ID,
					Type: "function",
					Function: llm.FunctionCall{
						Name:      call.Name,
						Arguments: callArguments(call),
					},
				})
			}
			messages = append(messages, msg)

		case RoleSystem:
			messages = append(messages, llm.Message{Role: "system", Content: turn.Text()})

		default:
			messages = append(messages, llm.Message{Role: "user", Content: turn.Text()})
		}
	}

	return messages
}

// FromResponse — строит ход модели из ответа провайдера.
//
// Аргументы каждого вызова разбираются в map; неразбираемый JSON не
// приводит к потере вызова — исходная строка сохраняется в Raw и
// подставляется в Args под ключом "raw".
func FromResponse(resp *llm.ChatResponse) Turn {
	turn := Turn{Role: RoleModel}
	if resp.Content != "" {
		turn.Parts = append(turn.Parts, Part{Text: resp.Content})
	}
	for _, tc := range resp.ToolCalls {
		raw := string(tc.Function.Arguments)
		args := make(map[string]any)
		if err := json.Unmarshal(tc.Function.Arguments, &args); err != nil || args == nil {
			args = map[string]any{"raw": raw}
		}
		turn.Parts = append(turn.Parts, Part{FunctionCall: &FunctionCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
			Raw:  raw,
		}})
	}
	return turn
}

// callArguments — дословная сериализация аргументов вызова.
// Raw хранит строку как прислал провайдер, поэтому round-trip
// не меняет ни порядок ключей, ни форматирование.
func callArguments(call *FunctionCall) json.RawMessage {
	if call.Raw != "" {
		return json.RawMessage(call.Raw)
	}
	data, err := json.Marshal(call.Args)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}

// responseText — текст результата для tool-сообщения.
// Значение ключа "result" отдаётся как есть; прочие формы
// результата сериализуются в JSON.
func responseText(fr *FunctionResponse) string {
	if text, ok := fr.Response["result"].(string); ok {
		return text
	}
	data, err := json.Marshal(fr.Response)
	if err != nil {
		return ""
	}
	return string(data)
}
