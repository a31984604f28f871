package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/neo-2022/edith-core/internal/apperror"
)

// HTTPClient — клиент к OpenAI-совместимому embeddings API.
// Один вызов Embed — один батч-запрос POST /embeddings.
type HTTPClient struct {
	BaseURL string       // Базовый URL API (например https://api.openai.com/v1)
	APIKey  string       // API-ключ
	Model   string       // Имя embedding-модели
	Dim     int          // Ожидаемая размерность векторов
	HTTP    *http.Client // HTTP-клиент для выполнения запросов
}

// NewHTTPClient — создаёт клиента embeddings API.
func NewHTTPClient(baseURL, apiKey, model string, dim int) *HTTPClient {
	return &HTTPClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Dim:     dim,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Dimension — размерность векторов модели.
func (c *HTTPClient) Dimension() int { return c.Dim }

// embeddingRequest — запрос к embeddings API.
type embeddingRequest struct {
	Model string   `json:"model"` // Имя модели
	Input []string `json:"input"` // Батч текстов
}

// embeddingResponse — ответ embeddings API.
// Элементы data приходят с индексами и могут быть не по порядку.
type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed — вычисляет эмбеддинги батча одним запросом.
//
// Ответ проверяется на полноту: число векторов должно совпадать с
// числом текстов, размерность каждого — с Dimension(). Частичный
// результат не возвращается никогда.
func (c *HTTPClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(embeddingRequest{Model: c.Model, Input: texts})
	if err != nil {
		return nil, apperror.Embedding("ошибка маршалинга запроса", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, apperror.Embedding("ошибка создания запроса", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, apperror.Embedding("ошибка запроса к embeddings API", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, apperror.Embedding(
			fmt.Sprintf("embeddings API вернул HTTP %d: %s", resp.StatusCode, string(body)), nil)
	}

	var wire embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, apperror.Embedding("ошибка декодирования ответа", err)
	}

	if len(wire.Data) != len(texts) {
		return nil, apperror.Embedding(
			fmt.Sprintf("неполный батч: ожидалось %d векторов, получено %d", len(texts), len(wire.Data)), nil)
	}

	// Восстанавливаем исходный порядок по индексам.
	vectors := make([][]float32, len(texts))
	for _, d := range wire.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, apperror.Embedding(fmt.Sprintf("индекс %d вне батча", d.Index), nil)
		}
		if len(d.Embedding) != c.Dim {
			return nil, apperror.Embedding(
				fmt.Sprintf("размерность вектора %d вместо %d", len(d.Embedding), c.Dim), nil)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, apperror.Embedding(fmt.Sprintf("пропущен вектор для текста %d", i), nil)
		}
	}
	return vectors, nil
}
