package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand"
)

// LocalModel — локальная детерминированная модель эмбеддингов.
// Вектор генерируется из SHA256-хеша текста (Box-Muller transform,
// нормализация), поэтому одинаковый текст всегда даёт одинаковый
// вектор. Качество поиска условное; используется в тестах и в
// окружениях без доступа к embeddings API.
type LocalModel struct {
	dim int
}

// NewLocalModel — создаёт локальную модель заданной размерности.
func NewLocalModel(dim int) *LocalModel {
	if dim <= 0 {
		dim = 384
	}
	return &LocalModel{dim: dim}
}

// Dimension — размерность векторов модели.
func (m *LocalModel) Dimension() int { return m.dim }

// Embed — вычисляет детерминированные эмбеддинги батча.
func (m *LocalModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = m.compute(text)
	}
	return vectors, nil
}

// compute — псевдослучайный нормированный вектор с seed из SHA256 текста.
func (m *LocalModel) compute(text string) []float32 {
	hash := sha256.Sum256([]byte(text))
	seed := binary.BigEndian.Uint64(hash[:8])
	rng := rand.New(rand.NewSource(int64(seed)))

	vec := make([]float64, m.dim)
	for i := 0; i < m.dim; i++ {
		u1 := rng.Float64()
		u2 := rng.Float64()
		if u1 < 1e-10 {
			u1 = 1e-10
		}
		// Box-Muller transform для нормального распределения
		vec[i] = math.Sqrt(-2.0*math.Log(u1)) * math.Cos(2.0*math.Pi*u2)
	}

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, m.dim)
	for i, v := range vec {
		if norm > 0 {
			v /= norm
		}
		out[i] = float32(v)
	}
	return out
}
