package conversation

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/neo-2022/edith-core/internal/llm"
)

// ===== Тесты трансляции в wire-формат =====

func TestToWire_SystemAlwaysFirst(t *testing.T) {
	turns := []Turn{User("привет"), ModelText("здравствуйте")}
	messages := ToWire("инструкция", turns, 12)

	if len(messages) != 3 {
		t.Fatalf("ожидалось 3 сообщения, получено %d", len(messages))
	}
	if messages[0].Role != "system" || messages[0].Content != "инструкция" {
		t.Errorf("первым должна идти системная инструкция: %+v", messages[0])
	}
	if messages[1].Role != "user" || messages[2].Role != "assistant" {
		t.Errorf("роли транслированы неверно: %s, %s", messages[1].Role, messages[2].Role)
	}
}

func TestToWire_WindowKeepsLastTurns(t *testing.T) {
	var turns []Turn
	for i := 0; i < 20; i++ {
		turns = append(turns, User(fmt.Sprintf("сообщение %d", i)))
	}
	messages := ToWire("система", turns, 12)

	// Системная инструкция + 12 последних ходов.
	if len(messages) != 13 {
		t.Fatalf("ожидалось 13 сообщений, получено %d", len(messages))
	}
	if messages[1].Content != "сообщение 8" {
		t.Errorf("окно должно начинаться с 8-го сообщения, получено %q", messages[1].Content)
	}
	if messages[12].Content != "сообщение 19" {
		t.Errorf("последнее сообщение: %q", messages[12].Content)
	}
}

func TestToWire_ToolResultsExpandInOrder(t *testing.T) {
	toolTurn := Turn{Role: RoleTool, Parts: []Part{
		{FunctionResponse: &FunctionResponse{CallID: "c1", Name: "ask_document", Response: map[string]any{"result": "первый результат"}}},
		{FunctionResponse: &FunctionResponse{CallID: "c2", Name: "ask_document", Response: map[string]any{"result": "второй результат"}}},
	}}
	messages := ToWire("система", []Turn{toolTurn}, 12)

	if len(messages) != 3 {
		t.Fatalf("ход с двумя результатами должен дать два tool-сообщения, получено %d", len(messages)-1)
	}
	if messages[1].Role != "tool" || messages[1].ToolCallID != "c1" || messages[1].Content != "первый результат" {
		t.Errorf("первое tool-сообщение: %+v", messages[1])
	}
	if messages[2].ToolCallID != "c2" || messages[2].Content != "второй результат" {
		t.Errorf("второе tool-сообщение: %+v", messages[2])
	}
}

func TestToWire_ModelCallsBecomeToolCalls(t *testing.T) {
	modelTurn := Turn{Role: RoleModel, Parts: []Part{
		{Text: "сейчас проверю"},
		{FunctionCall: &FunctionCall{
			ID:   "call-1",
			Name: "ask_document",
			Args: map[string]any{"question": "что в документе"},
			Raw:  `{"question":"что в документе"}`,
		}},
	}}
	messages := ToWire("система", []Turn{modelTurn}, 12)

	msg := messages[1]
	if msg.Role != "assistant" || msg.Content != "сейчас проверю" {
		t.Errorf("ход модели транслирован неверно: %+v", msg)
	}
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("ожидался один tool_call, получено %d", len(msg.ToolCalls))
	}
	tc := msg.ToolCalls[0]
	if tc.ID != "call-1" || tc.Type != "function" || tc.Function.Name != "ask_document" {
		t.Errorf("tool_call собран неверно: %+v", tc)
	}
	// Аргументы уходят дословно, как прислал провайдер.
	if string(tc.Function.Arguments) != `{"question":"что в документе"}` {
		t.Errorf("аргументы изменились: %s", tc.Function.Arguments)
	}
}

// ===== Тесты разбора ответа провайдера =====

func TestFromResponse_ParsesCalls(t *testing.T) {
	resp := &llm.ChatResponse{
		Content: "проверяю документ",
		ToolCalls: []llm.ToolCall{
			{ID: "c1", Type: "function", Function: llm.FunctionCall{
				Name:      "ask_document",
				Arguments: json.RawMessage(`{"question":"о чём документ"}`),
			}},
		},
	}
	turn := FromResponse(resp)

	if turn.Role != RoleModel {
		t.Errorf("роль хода: %s", turn.Role)
	}
	if turn.Text() != "проверяю документ" {
		t.Errorf("текст хода: %q", turn.Text())
	}
	calls := turn.Calls()
	if len(calls) != 1 {
		t.Fatalf("ожидался один вызов, получено %d", len(calls))
	}
	if calls[0].Args["question"] != "о чём документ" {
		t.Errorf("аргументы разобраны неверно: %v", calls[0].Args)
	}
}

func TestFromResponse_UnparsableArgsPreservedRaw(t *testing.T) {
	raw := `{"question": незакрытый json`
	resp := &llm.ChatResponse{
		ToolCalls: []llm.ToolCall{
			{ID: "c1", Function: llm.FunctionCall{Name: "ask_document", Arguments: json.RawMessage(raw)}},
		},
	}
	turn := FromResponse(resp)

	calls := turn.Calls()
	if len(calls) != 1 {
		t.Fatal("неразбираемые аргументы не должны приводить к потере вызова")
	}
	if calls[0].Raw != raw {
		t.Errorf("исходная строка аргументов не сохранена: %q", calls[0].Raw)
	}
	if calls[0].Args["raw"] != raw {
		t.Errorf("аргументы должны содержать исходную строку под ключом raw: %v", calls[0].Args)
	}

	// Round-trip: при обратной трансляции аргументы уходят дословно.
	messages := ToWire("система", []Turn{turn}, 12)
	if string(messages[1].ToolCalls[0].Function.Arguments) != raw {
		t.Errorf("round-trip изменил аргументы: %s", messages[1].ToolCalls[0].Function.Arguments)
	}
}
