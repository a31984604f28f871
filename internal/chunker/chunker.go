// Package chunker — детерминированная нарезка текста на перекрывающиеся
// фрагменты для векторного индекса.
//
// Граница фрагмента притягивается к ближайшему концу предложения или
// абзаца в окне вокруг целевого смещения, чтобы не резать текст посреди
// фразы. Один и тот же вход всегда даёт один и тот же набор фрагментов.
package chunker

import "regexp"

// Параметры нарезки по умолчанию (в байтах).
const (
	DefaultTargetSize = 1000 // Целевая длина фрагмента
	DefaultOverlap    = 200  // Перекрытие соседних фрагментов
	DefaultMinSize    = 100  // Фрагменты короче отбрасываются
	boundaryWindow    = 100  // Радиус поиска границы предложения
)

// boundaryRe — конец предложения (с завершающим пробелом) или абзаца.
var boundaryRe = regexp.MustCompile(`[.!?]\s+|\n\n`)

// Chunk — фрагмент документа.
type Chunk struct {
	Text     string `json:"text"`           // Текст фрагмента
	Ordinal  int    `json:"ordinal"`        // Порядковый номер в документе, с нуля
	SourceID string `json:"source_id"`      // Идентификатор исходного документа
	Page     int    `json:"page,omitempty"` // Номер страницы с единицы, 0 если не постранично
}

// Chunker — нарезка с настраиваемыми параметрами.
// Нулевые значения заменяются умолчаниями.
type Chunker struct {
	TargetSize int
	Overlap    int
	MinSize    int
}

// New — Chunker с параметрами по умолчанию.
func New() Chunker {
	return Chunker{
		TargetSize: DefaultTargetSize,
		Overlap:    DefaultOverlap,
		MinSize:    DefaultMinSize,
	}
}

func (c Chunker) normalized() Chunker {
	if c.TargetSize <= 0 {
		c.TargetSize = DefaultTargetSize
	}
	if c.Overlap < 0 || c.Overlap >= c.TargetSize {
		c.Overlap = DefaultOverlap
	}
	if c.MinSize <= 0 {
		c.MinSize = DefaultMinSize
	}
	return c
}

// Chunk — режет текст на фрагменты с нумерацией с нуля.
func (c Chunker) Chunk(text, sourceID string) []Chunk {
	return c.chunkFrom(text, sourceID, 0, 0)
}

// ChunkPages — режет постраничный документ.
// Каждая страница нарезается отдельно (фрагмент не пересекает границу
// страниц), нумерация фрагментов сквозная по всему документу.
func (c Chunker) ChunkPages(pages []string, sourceID string) []Chunk {
	var chunks []Chunk
	ordinal := 0
	for i, page := range pages {
		part := c.chunkFrom(page, sourceID, ordinal, i+1)
		ordinal += len(part)
		chunks = append(chunks, part...)
	}
	return chunks
}

// chunkFrom — нарезка одного текста, нумерация начинается с firstOrdinal.
func (c Chunker) chunkFrom(text, sourceID string, firstOrdinal, page int) []Chunk {
	c = c.normalized()
	if len(text) < c.MinSize {
		return nil
	}

	var chunks []Chunk
	ordinal := firstOrdinal
	start := 0

	for {
		end := start + c.TargetSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = c.snapBoundary(text, start, end)
		}

		segment := text[start:end]
		if len(segment) >= c.MinSize {
			chunks = append(chunks, Chunk{
				Text:     segment,
				Ordinal:  ordinal,
				SourceID: sourceID,
				Page:     page,
			})
			ordinal++
		}

		if end >= len(text) {
			break
		}
		start = end - c.Overlap
		if start < 0 {
			start = 0
		}
		// Хвост короче MinSize целиком покрыт перекрытием предыдущего
		// фрагмента, отдельный фрагмент из него не делается.
		if start >= len(text)-c.MinSize {
			break
		}
	}

	return chunks
}

// snapBoundary — притягивает границу к ближайшему концу предложения
// в окне ±boundaryWindow вокруг целевого смещения. Без подходящего
// совпадения граница остаётся на целевом смещении.
func (c Chunker) snapBoundary(text string, start, target int) int {
	lo := target - boundaryWindow
	if lo < start {
		lo = start
	}
	hi := target + boundaryWindow
	if hi > len(text) {
		hi = len(text)
	}

	best := -1
	bestDist := 0
	for _, m := range boundaryRe.FindAllStringIndex(text[lo:hi], -1) {
		cand := lo + m[1] // Конец совпадения: резать после разделителя
		if cand <= start {
			continue
		}
		dist := cand - target
		if dist < 0 {
			dist = -dist
		}
		if best == -1 || dist < bestDist {
			best = cand
			bestDist = dist
		}
	}

	if best == -1 {
		return target
	}
	return best
}
