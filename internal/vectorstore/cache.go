package vectorstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/neo-2022/edith-core/internal/apperror"
	"github.com/neo-2022/edith-core/internal/chunker"
	"github.com/neo-2022/edith-core/internal/embeddings"
	"github.com/neo-2022/edith-core/internal/metrics"
	"github.com/neo-2022/edith-core/internal/retry"
)

// ErrNotFound — в долговременном хранилище нет записи с таким отпечатком.
var ErrNotFound = errors.New("запись индекса не найдена")

// Record — сериализуемое состояние индекса документа.
// Хранит фрагменты вместе с эмбеддингами, чтобы восстановление
// индекса не требовало повторного обращения к embedding-сервису.
type Record struct {
	Fingerprint string          `json:"fingerprint"`
	Chunks      []chunker.Chunk `json:"chunks"`
	Embeddings  [][]float32     `json:"embeddings"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Store — долговременное хранилище записей индексов.
// Отсутствие записи — ErrNotFound, не произвольная ошибка.
type Store interface {
	Load(fingerprint string) (*Record, error)
	Save(rec *Record) error
}

// Loader — источник фрагментов документа для построения индекса.
type Loader func(ctx context.Context) ([]chunker.Chunk, error)

// FingerprintURL — отпечаток документа по его URL (md5 hex).
// Содержимое не участвует: документ по одному адресу считается
// неизменным в пределах жизни кеша.
func FingerprintURL(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

// FingerprintContent — отпечаток по содержимому (md5 hex).
func FingerprintContent(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Cache — кеш построенных индексов с дедупликацией сборки.
//
// Три уровня: горячая карта в памяти, долговременное хранилище
// (восстановление без повторного эмбеддинга) и полная сборка через
// Loader. Конкурентные запросы одного отпечатка схлопываются в одну
// сборку через singleflight; неудачная сборка не оставляет записи,
// следующий запрос начинает заново.
type Cache struct {
	mu      sync.RWMutex
	indexes map[string]*Index

	group    singleflight.Group
	store    Store // nil — без долговременного хранилища
	embedder embeddings.Client
}

// NewCache — создаёт кеш. store может быть nil.
func NewCache(store Store, embedder embeddings.Client) *Cache {
	return &Cache{
		indexes:  make(map[string]*Index),
		store:    store,
		embedder: embedder,
	}
}

// Get — индекс из горячего кеша, если он там есть.
func (c *Cache) Get(fingerprint string) (*Index, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.indexes[fingerprint]
	return idx, ok
}

// GetOrBuild — возвращает индекс документа, при необходимости строя его.
//
// Порядок: память → долговременное хранилище → полная сборка (загрузка
// фрагментов, эмбеддинг с retry, построение индекса). Сбой сохранения
// в хранилище не считается сбоем сборки — индекс остаётся рабочим в
// памяти, потеря переживается повторной сборкой после рестарта.
func (c *Cache) GetOrBuild(ctx context.Context, fingerprint string, load Loader) (*Index, error) {
	if idx, ok := c.Get(fingerprint); ok {
		return idx, nil
	}

	v, err, _ := c.group.Do(fingerprint, func() (any, error) {
		// Победитель гонки мог уже положить индекс в карту.
		if idx, ok := c.Get(fingerprint); ok {
			return idx, nil
		}
		return c.build(ctx, fingerprint, load)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Index), nil
}

func (c *Cache) build(ctx context.Context, fingerprint string, load Loader) (*Index, error) {
	start := time.Now()

	// Восстановление из долговременного хранилища: эмбеддинги уже
	// посчитаны, индекс собирается локально.
	if c.store != nil {
		rec, err := c.store.Load(fingerprint)
		switch {
		case err == nil:
			idx, rerr := indexFromRecord(rec)
			if rerr == nil {
				c.put(fingerprint, idx)
				metrics.RecordIndexBuild("restored", "store", time.Since(start))
				slog.Info("[INDEX] индекс восстановлен из хранилища",
					slog.String("отпечаток", fingerprint),
					slog.Int("фрагментов", idx.Len()),
				)
				return idx, nil
			}
			slog.Warn("[INDEX] повреждённая запись в хранилище, пересборка",
				slog.String("отпечаток", fingerprint),
				slog.String("ошибка", rerr.Error()),
			)
		case errors.Is(err, ErrNotFound):
			// Обычный путь: строим с нуля.
		default:
			slog.Warn("[INDEX] хранилище недоступно, сборка без него",
				slog.String("отпечаток", fingerprint),
				slog.String("ошибка", err.Error()),
			)
		}
	}

	chunks, err := load(ctx)
	if err != nil {
		metrics.RecordIndexBuild("error", "loader", time.Since(start))
		return nil, err
	}
	if len(chunks) == 0 {
		metrics.RecordIndexBuild("error", "loader", time.Since(start))
		return nil, apperror.IndexBuild("документ не содержит пригодных фрагментов", nil)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := retry.DoWithResultContext(ctx, retry.EmbeddingConfig, func() ([][]float32, error) {
		return c.embedder.Embed(ctx, texts)
	})
	if err != nil {
		metrics.RecordIndexBuild("error", "loader", time.Since(start))
		return nil, apperror.Embedding("не удалось вычислить эмбеддинги документа", err)
	}
	if len(vectors) != len(chunks) {
		metrics.RecordIndexBuild("error", "loader", time.Since(start))
		return nil, apperror.Embedding(
			fmt.Sprintf("эмбеддингов %d при %d фрагментах", len(vectors), len(chunks)), nil)
	}

	entries := make([]Entry, len(chunks))
	for i := range chunks {
		entries[i] = Entry{Chunk: chunks[i], Embedding: vectors[i]}
	}
	idx, err := Build(entries)
	if err != nil {
		metrics.RecordIndexBuild("error", "loader", time.Since(start))
		return nil, apperror.IndexBuild("не удалось построить индекс", err)
	}

	if c.store != nil {
		rec := &Record{
			Fingerprint: fingerprint,
			Chunks:      chunks,
			Embeddings:  vectors,
			CreatedAt:   time.Now().UTC(),
		}
		if serr := c.store.Save(rec); serr != nil {
			slog.Warn("[INDEX] не удалось сохранить индекс в хранилище",
				slog.String("отпечаток", fingerprint),
				slog.String("ошибка", serr.Error()),
			)
		}
	}

	c.put(fingerprint, idx)
	metrics.RecordIndexBuild("built", "loader", time.Since(start))
	slog.Info("[INDEX] индекс построен",
		slog.String("отпечаток", fingerprint),
		slog.Int("фрагментов", idx.Len()),
	)
	return idx, nil
}

func (c *Cache) put(fingerprint string, idx *Index) {
	c.mu.Lock()
	c.indexes[fingerprint] = idx
	c.mu.Unlock()
}

// indexFromRecord — сборка индекса из сохранённой записи.
func indexFromRecord(rec *Record) (*Index, error) {
	if len(rec.Chunks) != len(rec.Embeddings) {
		return nil, fmt.Errorf("фрагментов %d, эмбеддингов %d", len(rec.Chunks), len(rec.Embeddings))
	}
	entries := make([]Entry, len(rec.Chunks))
	for i := range rec.Chunks {
		entries[i] = Entry{Chunk: rec.Chunks[i], Embedding: rec.Embeddings[i]}
	}
	return Build(entries)
}
