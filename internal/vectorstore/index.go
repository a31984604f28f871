// Package vectorstore — векторный индекс документов и его кеш.
//
// Индекс — плоский, точный (без приближённого поиска): документы в
// рамках одного запроса невелики, а детерминированность результата
// важнее скорости. Построенный индекс неизменяем; расширение
// выполняется созданием нового индекса поверх прежних записей.
package vectorstore

import (
	"fmt"
	"math"
	"sort"

	"github.com/neo-2022/edith-core/internal/chunker"
)

// Entry — фрагмент документа вместе с его эмбеддингом.
type Entry struct {
	Chunk     chunker.Chunk `json:"chunk"`
	Embedding []float32     `json:"embedding"`
}

// Result — результат поиска: запись и её L2-дистанция до запроса.
type Result struct {
	Entry    Entry
	Distance float64
}

// Index — неизменяемый плоский индекс.
type Index struct {
	entries []Entry
	dim     int
}

// Build — строит индекс из записей.
// Все эмбеддинги обязаны иметь одинаковую ненулевую размерность.
func Build(entries []Entry) (*Index, error) {
	if len(entries) == 0 {
		return &Index{}, nil
	}
	dim := len(entries[0].Embedding)
	if dim == 0 {
		return nil, fmt.Errorf("запись 0: пустой эмбеддинг")
	}
	for i, e := range entries {
		if len(e.Embedding) != dim {
			return nil, fmt.Errorf("запись %d: размерность %d вместо %d", i, len(e.Embedding), dim)
		}
	}
	own := make([]Entry, len(entries))
	copy(own, entries)
	return &Index{entries: own, dim: dim}, nil
}

// Len — число записей в индексе.
func (idx *Index) Len() int { return len(idx.entries) }

// Dimension — размерность эмбеддингов индекса (0 для пустого).
func (idx *Index) Dimension() int { return idx.dim }

// Entries — копия записей индекса в порядке добавления.
func (idx *Index) Entries() []Entry {
	out := make([]Entry, len(idx.entries))
	copy(out, idx.entries)
	return out
}

// Search — k ближайших записей к запросу по L2-дистанции, по возрастанию.
// Возвращает min(k, Len()) результатов. Ранжирование идёт по квадрату
// дистанции, в результат записывается настоящая L2.
func (idx *Index) Search(query []float32, k int) ([]Result, error) {
	if len(idx.entries) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("размерность запроса %d вместо %d", len(query), idx.dim)
	}

	results := make([]Result, len(idx.entries))
	for i, e := range idx.entries {
		results[i] = Result{Entry: e, Distance: sqDistance(query, e.Embedding)}
	}
	// Стабильная сортировка: при равных дистанциях сохраняется порядок добавления.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if k > len(results) {
		k = len(results)
	}
	results = results[:k]
	for i := range results {
		results[i].Distance = math.Sqrt(results[i].Distance)
	}
	return results, nil
}

// AppendBlock — новый индекс с добавленным блоком записей.
// Исходный индекс не меняется, номера фрагментов не переназначаются.
func (idx *Index) AppendBlock(entries []Entry) (*Index, error) {
	combined := make([]Entry, 0, len(idx.entries)+len(entries))
	combined = append(combined, idx.entries...)
	combined = append(combined, entries...)
	return Build(combined)
}

// sqDistance — квадрат L2-дистанции между векторами одной размерности.
func sqDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
