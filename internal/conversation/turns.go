// Package conversation — провайдеро-нейтральная модель диалога.
//
// История агента хранится в виде ходов (Turn) с частями (Part):
// текст, вызов функции или результат функции. Трансляция в wire-формат
// конкретного провайдера выполняется отдельно (translator.go), поэтому
// цикл агента не зависит от того, какой провайдер ответит.
package conversation

// Роли ходов диалога.
const (
	RoleSystem = "system" // Системная инструкция
	RoleUser   = "user"   // Сообщение пользователя
	RoleModel  = "model"  // Ответ модели (текст и/или вызовы функций)
	RoleTool   = "tool"   // Результаты выполнения инструментов
)

// Turn — один ход диалога.
// JSON-форма совпадает с форматом истории в API запроса чата.
type Turn struct {
	Role  string `json:"role"`  // Роль хода
	Parts []Part `json:"parts"` // Части хода в порядке следования
}

// Part — часть хода. Заполняется ровно одно из полей.
type Part struct {
	Text             string            `json:"text,omitempty"`              // Текстовый фрагмент
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`     // Запрошенный моделью вызов функции
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"` // Результат выполнения функции
}

// FunctionCall — вызов функции, запрошенный моделью.
//
// Args содержит разобранные аргументы. Если провайдер прислал
// неразбираемый JSON, аргументы сохраняются дословно в Raw и в
// Args["raw"] — вызов не отбрасывается, решение остаётся за
// обработчиком инструмента.
type FunctionCall struct {
	ID   string         `json:"id"`            // ID вызова, присвоенный провайдером
	Name string         `json:"name"`          // Имя функции
	Args map[string]any `json:"args"`          // Разобранные аргументы
	Raw  string         `json:"raw,omitempty"` // Исходная JSON-строка аргументов
}

// FunctionResponse — результат выполнения функции.
type FunctionResponse struct {
	CallID   string         `json:"id"`       // ID вызова, к которому относится результат
	Name     string         `json:"name"`     // Имя функции
	Response map[string]any `json:"response"` // Результат (ключ "result" — текст для модели)
}

// System — ход с системной инструкцией.
func System(text string) Turn {
	return Turn{Role: RoleSystem, Parts: []Part{{Text: text}}}
}

// User — ход пользователя.
func User(text string) Turn {
	return Turn{Role: RoleUser, Parts: []Part{{Text: text}}}
}

// ModelText — текстовый ход модели.
func ModelText(text string) Turn {
	return Turn{Role: RoleModel, Parts: []Part{{Text: text}}}
}

// ToolResult — ход с одним результатом инструмента.
func ToolResult(callID, name, result string) Turn {
	return Turn{Role: RoleTool, Parts: []Part{{
		FunctionResponse: &FunctionResponse{
			CallID:   callID,
			Name:     name,
			Response: map[string]any{"result": result},
		},
	}}}
}

// Calls — вызовы функций из частей хода в порядке следования.
func (t Turn) Calls() []*FunctionCall {
	var calls []*FunctionCall
	for _, p := range t.Parts {
		if p.FunctionCall != nil {
			calls = append(calls, p.FunctionCall)
		}
	}
	return calls
}

// Text — конкатенация текстовых частей хода.
func (t Turn) Text() string {
	var text string
	for _, p := range t.Parts {
		text += p.Text
	}
	return text
}
