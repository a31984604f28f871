package vectorstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/neo-2022/edith-core/internal/chunker"
)

// countingEmbedder — mock embedding-клиента со счётчиком вызовов.
type countingEmbedder struct {
	calls int32
	fail  int32 // Сколько первых вызовов завершить ошибкой
}

func (e *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	n := atomic.AddInt32(&e.calls, 1)
	if n <= atomic.LoadInt32(&e.fail) {
		return nil, errors.New("embedding service unavailable")
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(len(texts[i])), 1, 0}
	}
	return vectors, nil
}

func (e *countingEmbedder) Dimension() int { return 3 }

func testLoader(count *int32) Loader {
	return func(ctx context.Context) ([]chunker.Chunk, error) {
		atomic.AddInt32(count, 1)
		return []chunker.Chunk{
			{Text: "первый фрагмент документа", Ordinal: 0, SourceID: "doc"},
			{Text: "второй фрагмент документа", Ordinal: 1, SourceID: "doc"},
		}, nil
	}
}

// ===== Тесты дедупликации сборки =====

func TestGetOrBuild_SingleFlight(t *testing.T) {
	embedder := &countingEmbedder{}
	cache := NewCache(nil, embedder)

	var loads int32
	load := testLoader(&loads)
	fp := FingerprintURL("https://example.com/doc.txt")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.GetOrBuild(context.Background(), fp, load); err != nil {
				t.Errorf("ошибка сборки: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&loads); got != 1 {
		t.Errorf("конкурентные запросы одного отпечатка: загрузчик вызван %d раз", got)
	}
}

func TestGetOrBuild_SecondCallFromMemory(t *testing.T) {
	embedder := &countingEmbedder{}
	cache := NewCache(nil, embedder)

	var loads int32
	load := testLoader(&loads)
	fp := FingerprintURL("https://example.com/a.txt")

	first, err := cache.GetOrBuild(context.Background(), fp, load)
	if err != nil {
		t.Fatalf("ошибка первой сборки: %v", err)
	}
	second, err := cache.GetOrBuild(context.Background(), fp, load)
	if err != nil {
		t.Fatalf("ошибка второго запроса: %v", err)
	}
	if first != second {
		t.Error("второй запрос должен вернуть индекс из памяти")
	}
	if atomic.LoadInt32(&loads) != 1 {
		t.Errorf("загрузчик вызван %d раз", loads)
	}
}

// ===== Тесты отсутствия отравления кеша =====

func TestGetOrBuild_FailureNotCached(t *testing.T) {
	cache := NewCache(nil, &countingEmbedder{})

	fp := FingerprintURL("https://example.com/broken.txt")
	failLoad := func(ctx context.Context) ([]chunker.Chunk, error) {
		return nil, errors.New("загрузка не удалась")
	}

	if _, err := cache.GetOrBuild(context.Background(), fp, failLoad); err == nil {
		t.Fatal("ожидалась ошибка сборки")
	}
	if _, ok := cache.Get(fp); ok {
		t.Error("неудачная сборка не должна оставлять запись в кеше")
	}

	// Повторный запрос с рабочим загрузчиком собирает индекс заново.
	var loads int32
	idx, err := cache.GetOrBuild(context.Background(), fp, testLoader(&loads))
	if err != nil {
		t.Fatalf("повторная сборка должна пройти: %v", err)
	}
	if idx.Len() != 2 {
		t.Errorf("ожидалось 2 записи, получено %d", idx.Len())
	}
}

// ===== Тесты долговременного хранилища =====

func TestGetOrBuild_RestoreWithoutReembedding(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("ошибка создания хранилища: %v", err)
	}

	embedder := &countingEmbedder{}
	cache := NewCache(store, embedder)

	var loads int32
	load := testLoader(&loads)
	fp := FingerprintURL("https://example.com/persist.txt")

	if _, err := cache.GetOrBuild(context.Background(), fp, load); err != nil {
		t.Fatalf("ошибка первой сборки: %v", err)
	}
	embedCalls := atomic.LoadInt32(&embedder.calls)

	// Новый кеш с тем же хранилищем имитирует рестарт процесса.
	restarted := NewCache(store, embedder)
	idx, err := restarted.GetOrBuild(context.Background(), fp, load)
	if err != nil {
		t.Fatalf("ошибка восстановления: %v", err)
	}
	if idx.Len() != 2 {
		t.Errorf("восстановленный индекс: %d записей", idx.Len())
	}
	if atomic.LoadInt32(&embedder.calls) != embedCalls {
		t.Error("восстановление из хранилища не должно вызывать эмбеддинг")
	}
	if atomic.LoadInt32(&loads) != 1 {
		t.Errorf("восстановление из хранилища не должно вызывать загрузчик: %d вызовов", loads)
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания хранилища: %v", err)
	}

	if _, err := store.Load("нет-такого"); !errors.Is(err, ErrNotFound) {
		t.Errorf("отсутствующая запись: ожидался ErrNotFound, получено %v", err)
	}

	rec := &Record{
		Fingerprint: "abc123",
		Chunks: []chunker.Chunk{
			{Text: "текст", Ordinal: 0, SourceID: "doc", Page: 1},
		},
		Embeddings: [][]float32{{0.5, 0.25, 0.125}},
	}
	if err := store.Save(rec); err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	loaded, err := store.Load("abc123")
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if len(loaded.Chunks) != 1 || loaded.Chunks[0].Text != "текст" {
		t.Errorf("фрагменты не совпали: %+v", loaded.Chunks)
	}
	if len(loaded.Embeddings) != 1 || loaded.Embeddings[0][2] != 0.125 {
		t.Errorf("эмбеддинги не совпали: %+v", loaded.Embeddings)
	}
}

// ===== Тесты отпечатков =====

func TestFingerprintURL_Stable(t *testing.T) {
	a := FingerprintURL("https://example.com/doc.txt")
	b := FingerprintURL("https://example.com/doc.txt")
	c := FingerprintURL("https://example.com/other.txt")

	if a != b {
		t.Error("отпечаток одного URL должен быть стабилен")
	}
	if a == c {
		t.Error("разные URL не должны давать одинаковый отпечаток")
	}
	if len(a) != 32 {
		t.Errorf("ожидался md5 hex длиной 32, получено %d", len(a))
	}
}
