// Package retrieval — ответы на вопросы по документу (RAG-пайплайн).
//
// Документ загружается по URL, режется на фрагменты, индексируется
// через кеш индексов и используется для параллельных ответов на батч
// вопросов. Сбой одного вопроса не роняет остальные.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/neo-2022/edith-core/internal/apperror"
	"github.com/neo-2022/edith-core/internal/retry"
)

// SourceLoader — загрузка документа в виде списка страниц.
type SourceLoader interface {
	Pages(ctx context.Context, docURL string) ([]string, error)
}

// Текстовые форматы, пригодные для индексации как есть.
var textExtensions = map[string]bool{
	"txt": true, "text": true, "md": true, "markdown": true,
	"csv": true, "log": true, "json": true, "html": true, "htm": true,
	"xml": true, "yaml": true, "yml": true,
}

// Бинарные контейнеры, для которых извлечение текста не выполняется.
var unsupportedExtensions = map[string]bool{
	"zip": true, "bin": true, "exe": true, "tar": true, "gz": true,
}

// HTTPLoader — загрузчик документов по HTTP(S).
//
// URL без расширения в последнем сегменте пути трактуется как
// API-ссылка: ответ берётся телом целиком, JSON переформатируется с
// отступами для читаемой нарезки. Транзиентные сбои сети повторяются.
type HTTPLoader struct {
	HTTP *http.Client
}

// NewHTTPLoader — загрузчик с таймаутом запроса 60s.
func NewHTTPLoader() *HTTPLoader {
	return &HTTPLoader{HTTP: &http.Client{Timeout: 60 * time.Second}}
}

// Pages — скачивает документ и возвращает его страницы.
// Неподдерживаемый формат и пустое содержимое — ошибка построения
// индекса с текстом "The document is not supported".
func (l *HTTPLoader) Pages(ctx context.Context, docURL string) ([]string, error) {
	ext, hasExt := urlExtension(docURL)
	if hasExt {
		if unsupportedExtensions[ext] || !textExtensions[ext] {
			return nil, apperror.IndexBuild("The document is not supported", nil)
		}
	}

	body, err := retry.DoWithResultContext(ctx, retry.LoaderConfig, func() ([]byte, error) {
		return l.fetch(ctx, docURL)
	})
	if err != nil {
		return nil, apperror.IndexBuild(fmt.Sprintf("не удалось загрузить документ %s", docURL), err)
	}

	text := string(body)
	// API-ответы и .json: переформатируем JSON с отступами,
	// чтобы нарезка шла по структуре, а не по одной длинной строке.
	if pretty, ok := prettyJSON(body); ok {
		text = pretty
	}

	if len(strings.TrimSpace(text)) < 10 {
		return nil, apperror.IndexBuild("The document is not supported", nil)
	}
	return []string{text}, nil
}

func (l *HTTPLoader) fetch(ctx context.Context, docURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	resp, err := l.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d при загрузке документа", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения тела: %w", err)
	}
	return body, nil
}

// urlExtension — расширение последнего сегмента пути URL в нижнем
// регистре. Второе значение false, если расширения нет (API-ссылка).
func urlExtension(docURL string) (string, bool) {
	u, err := url.Parse(docURL)
	path := docURL
	if err == nil {
		path = u.Path
	}
	segment := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		segment = path[i+1:]
	}
	dot := strings.LastIndex(segment, ".")
	if dot < 0 || dot == len(segment)-1 {
		return "", false
	}
	return strings.ToLower(segment[dot+1:]), true
}

// prettyJSON — переформатирует валидный JSON с отступами.
func prettyJSON(body []byte) (string, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return "", false
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return "", false
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", false
	}
	return string(out), true
}
