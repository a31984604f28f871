package embeddings

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func embeddingsServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("неверный путь запроса: %s", r.URL.Path)
		}
		handler(w, r)
	}))
}

// ===== Тесты HTTP-клиента эмбеддингов =====

func TestEmbed_RestoresOrderByIndex(t *testing.T) {
	srv := embeddingsServer(t, func(w http.ResponseWriter, r *http.Request) {
		// Элементы отдаются в обратном порядке: клиент должен
		// восстановить порядок по полю index.
		fmt.Fprint(w, `{"data":[
			{"index":2,"embedding":[3,3]},
			{"index":0,"embedding":[1,1]},
			{"index":1,"embedding":[2,2]}
		]}`)
	})
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "key", "test-model", 2)
	vectors, err := client.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("ошибка эмбеддинга: %v", err)
	}
	for i, want := range []float32{1, 2, 3} {
		if vectors[i][0] != want {
			t.Errorf("вектор %d: получено %v, ожидалось %v", i, vectors[i][0], want)
		}
	}
}

func TestEmbed_SendsModelAndBatch(t *testing.T) {
	var got embeddingRequest
	srv := embeddingsServer(t, func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("неверный заголовок авторизации: %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[1,2,3]},{"index":1,"embedding":[4,5,6]}]}`)
	})
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "secret", "test-model", 3)
	if _, err := client.Embed(context.Background(), []string{"раз", "два"}); err != nil {
		t.Fatalf("ошибка эмбеддинга: %v", err)
	}
	if got.Model != "test-model" || len(got.Input) != 2 {
		t.Errorf("неверный запрос: модель %q, текстов %d", got.Model, len(got.Input))
	}
}

func TestEmbed_PartialBatchRejected(t *testing.T) {
	srv := embeddingsServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[1,1]}]}`)
	})
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", "m", 2)
	if _, err := client.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("неполный батч должен быть отвергнут целиком")
	}
}

func TestEmbed_WrongDimensionRejected(t *testing.T) {
	srv := embeddingsServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[1,1,1]}]}`)
	})
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", "m", 2)
	if _, err := client.Embed(context.Background(), []string{"a"}); err == nil {
		t.Error("вектор чужой размерности должен быть отвергнут")
	}
}

func TestEmbed_DuplicateIndexRejected(t *testing.T) {
	srv := embeddingsServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[1,1]},{"index":0,"embedding":[2,2]}]}`)
	})
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", "m", 2)
	if _, err := client.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("дубликат индекса оставляет пропуск и должен быть отвергнут")
	}
}

func TestEmbed_HTTPErrorRejected(t *testing.T) {
	srv := embeddingsServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", "m", 2)
	if _, err := client.Embed(context.Background(), []string{"a"}); err == nil {
		t.Error("ошибка API должна возвращаться вызывающему")
	}
}

func TestEmbed_EmptyBatchIsNoop(t *testing.T) {
	client := NewHTTPClient("http://unused.invalid", "", "m", 2)
	vectors, err := client.Embed(context.Background(), nil)
	if err != nil || vectors != nil {
		t.Errorf("пустой батч не должен ходить в сеть: %v, %v", vectors, err)
	}
}

// ===== Тесты локальной модели =====

func TestLocalModel_Deterministic(t *testing.T) {
	model := NewLocalModel(16)
	a, err := model.Embed(context.Background(), []string{"один и тот же текст"})
	if err != nil {
		t.Fatalf("ошибка эмбеддинга: %v", err)
	}
	b, _ := model.Embed(context.Background(), []string{"один и тот же текст"})
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatal("эмбеддинг одного текста должен быть детерминированным")
		}
	}
	if model.Dimension() != 16 || len(a[0]) != 16 {
		t.Errorf("неверная размерность: %d", len(a[0]))
	}
}

func TestLocalModel_DistinctTexts(t *testing.T) {
	model := NewLocalModel(16)
	vectors, err := model.Embed(context.Background(), []string{"первый текст", "второй текст"})
	if err != nil {
		t.Fatalf("ошибка эмбеддинга: %v", err)
	}
	same := true
	for i := range vectors[0] {
		if vectors[0][i] != vectors[1][i] {
			same = false
			break
		}
	}
	if same {
		t.Error("разные тексты не должны давать одинаковые векторы")
	}
}
