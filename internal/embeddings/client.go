// Package embeddings — вычисление векторных представлений текста.
//
// Основная реализация — HTTP-клиент к OpenAI-совместимому embeddings
// API. Для офлайн-окружений и тестов есть локальная детерминированная
// модель без внешних зависимостей.
package embeddings

import "context"

// Client — батч-вычисление эмбеддингов.
//
// Реализации не выполняют повторных попыток: retry-политика —
// ответственность вызывающего кода (построение индекса оборачивает
// Embed в retry, разовый запрос для поискового запроса — нет).
type Client interface {
	// Embed — вычисляет эмбеддинги для батча текстов.
	// Результат атомарен: либо по одному вектору размерности
	// Dimension() на каждый текст в исходном порядке, либо ошибка.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension — размерность векторов этой модели.
	Dimension() int
}
