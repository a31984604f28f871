package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/neo-2022/edith-core/internal/chunker"
	"github.com/neo-2022/edith-core/internal/embeddings"
	"github.com/neo-2022/edith-core/internal/llm"
	"github.com/neo-2022/edith-core/internal/metrics"
	"github.com/neo-2022/edith-core/internal/vectorstore"
)

// unableAnswer — ответ на вопрос, обработка которого не удалась.
// Сбой изолирован: остальные вопросы батча отвечаются как обычно.
const unableAnswer = "Unable to process this query"

// answerTemplate — промпт одиночного ответа по найденным фрагментам.
const answerTemplate = `You are a precise assistant answering questions strictly from the provided document excerpts.

Document excerpts:
%s

Question: %s

Answer using ONLY the excerpts above. If the excerpts do not contain the answer, say so plainly. Be concise and factual.`

// Completer — исполнитель одиночного LLM-запроса.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, tools []llm.Tool) *llm.ChatResponse
}

// Service — ответы на батч вопросов по одному документу.
type Service struct {
	cache     *vectorstore.Cache
	embedder  embeddings.Client
	completer Completer
	loader    SourceLoader
	chunker   chunker.Chunker
	topK      int
}

// NewService — собирает RAG-пайплайн из готовых компонентов.
func NewService(cache *vectorstore.Cache, embedder embeddings.Client, completer Completer, loader SourceLoader, topK int) *Service {
	if topK <= 0 {
		topK = 15
	}
	return &Service{
		cache:     cache,
		embedder:  embedder,
		completer: completer,
		loader:    loader,
		chunker:   chunker.New(),
		topK:      topK,
	}
}

// Run — отвечает на все вопросы по документу.
//
// Индекс строится (или берётся из кеша) один раз на весь батч, затем
// вопросы обрабатываются параллельно с ограничением числа воркеров.
// Ответы возвращаются строго в порядке вопросов; сбой обработки
// вопроса даёт фиксированный ответ-заглушку на его позиции.
// Ошибка возвращается только при невозможности построить индекс.
func (s *Service) Run(ctx context.Context, docURL string, questions []string) ([]string, error) {
	start := time.Now()
	slog.Info("[RETRIEVAL] запрос по документу",
		slog.String("документ", docURL),
		slog.Int("вопросов", len(questions)),
	)

	idx, err := s.EnsureIndexed(ctx, docURL)
	if err != nil {
		return nil, err
	}

	workers := 8
	if len(questions) > 25 {
		workers = 16
	}

	answers := make([]string, len(questions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, q := range questions {
		i, q := i, q
		g.Go(func() error {
			// Ошибки не возвращаются: сбой вопроса не должен
			// отменять обработку остальных.
			answers[i] = s.AnswerQuestion(gctx, idx, q)
			return nil
		})
	}
	g.Wait()

	slog.Info("[RETRIEVAL] запрос обработан",
		slog.String("документ", docURL),
		slog.Duration("время", time.Since(start)),
	)
	return answers, nil
}

// AnswerQuestion — ответ на один вопрос по построенному индексу.
// Любой сбой (эмбеддинг запроса, поиск, деградация провайдеров)
// возвращает заглушку, а не ошибку.
func (s *Service) AnswerQuestion(ctx context.Context, idx *vectorstore.Index, question string) string {
	searchStart := time.Now()
	vectors, err := s.embedder.Embed(ctx, []string{question})
	if err != nil || len(vectors) != 1 {
		slog.Warn("[RETRIEVAL] не удалось вычислить эмбеддинг вопроса",
			slog.String("вопрос", question),
		)
		metrics.RecordRAGSearch("error", time.Since(searchStart))
		return unableAnswer
	}

	results, err := idx.Search(vectors[0], s.topK)
	if err != nil || len(results) == 0 {
		slog.Warn("[RETRIEVAL] поиск по индексу не дал результатов",
			slog.String("вопрос", question),
		)
		metrics.RecordRAGSearch("error", time.Since(searchStart))
		return unableAnswer
	}
	metrics.RecordRAGSearch("success", time.Since(searchStart))

	prompt := fmt.Sprintf(answerTemplate, FormatExcerpts(results), question)
	resp := s.completer.Complete(ctx, []llm.Message{{Role: "user", Content: prompt}}, nil)
	if resp.Degraded {
		return unableAnswer
	}
	return strings.TrimSpace(resp.Content)
}

// EnsureIndexed — строит (или достаёт из кеша) индекс документа.
func (s *Service) EnsureIndexed(ctx context.Context, docURL string) (*vectorstore.Index, error) {
	fingerprint := vectorstore.FingerprintURL(docURL)
	return s.cache.GetOrBuild(ctx, fingerprint, func(ctx context.Context) ([]chunker.Chunk, error) {
		pages, err := s.loader.Pages(ctx, docURL)
		if err != nil {
			return nil, err
		}
		return s.chunker.ChunkPages(pages, docURL), nil
	})
}

// excerptBudget — предел суммарной длины фрагментов, отдаваемых
// инструментом в контекст модели; excerptChunkLimit — предел длины
// одного фрагмента.
const (
	excerptBudget     = 8000
	excerptChunkLimit = 1200
)

// Excerpts — релевантные вопросу фрагменты документа одним текстом.
// Используется инструментом ask_document: модель получает выдержки
// и рассуждает над ними сама, без отдельного RAG-запроса.
func (s *Service) Excerpts(ctx context.Context, docURL, question string) (string, error) {
	idx, err := s.EnsureIndexed(ctx, docURL)
	if err != nil {
		return "", err
	}

	start := time.Now()
	vectors, err := s.embedder.Embed(ctx, []string{question})
	if err != nil || len(vectors) != 1 {
		metrics.RecordRAGSearch("error", time.Since(start))
		return "", fmt.Errorf("не удалось вычислить эмбеддинг вопроса: %w", err)
	}
	results, err := idx.Search(vectors[0], s.topK)
	if err != nil {
		metrics.RecordRAGSearch("error", time.Since(start))
		return "", err
	}
	metrics.RecordRAGSearch("success", time.Since(start))
	if len(results) == 0 {
		return "No relevant content found in the document.", nil
	}

	text := FormatExcerpts(results)
	if len(text) > excerptBudget {
		text = text[:excerptBudget]
	}
	return text, nil
}

// FormatExcerpts — собирает найденные фрагменты в текст промпта
// с указанием источника и позиции каждого фрагмента.
func FormatExcerpts(results []vectorstore.Result) string {
	var b strings.Builder
	for i, r := range results {
		ch := r.Entry.Chunk
		if i > 0 {
			b.WriteString("\n\n")
		}
		if ch.Page > 0 {
			fmt.Fprintf(&b, "[excerpt %d, page %d]\n", ch.Ordinal, ch.Page)
		} else {
			fmt.Fprintf(&b, "[excerpt %d]\n", ch.Ordinal)
		}
		text := ch.Text
		if len(text) > excerptChunkLimit {
			text = text[:excerptChunkLimit]
		}
		b.WriteString(text)
	}
	return b.String()
}
