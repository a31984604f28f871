package chunker

import (
	"reflect"
	"strings"
	"testing"
)

// ===== Тесты детерминированности нарезки =====

func TestChunk_Deterministic(t *testing.T) {
	c := New()
	text := strings.Repeat("Первое предложение текста. Второе предложение подлиннее. ", 60)

	first := c.Chunk(text, "doc-1")
	second := c.Chunk(text, "doc-1")

	if len(first) == 0 {
		t.Fatal("ожидались фрагменты для длинного текста")
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("повторная нарезка того же текста дала другой результат")
	}
}

func TestChunk_ShortTextDiscarded(t *testing.T) {
	c := New()
	chunks := c.Chunk("короткий текст", "doc-1")
	if len(chunks) != 0 {
		t.Errorf("текст короче MinSize должен быть отброшен, получено %d фрагментов", len(chunks))
	}
}

func TestChunk_OrdinalsSequential(t *testing.T) {
	c := New()
	text := strings.Repeat("Предложение номер раз. ", 200)
	chunks := c.Chunk(text, "doc-1")

	if len(chunks) < 2 {
		t.Fatalf("ожидалось несколько фрагментов, получено %d", len(chunks))
	}
	for i, ch := range chunks {
		if ch.Ordinal != i {
			t.Errorf("фрагмент %d: номер %d", i, ch.Ordinal)
		}
		if ch.SourceID != "doc-1" {
			t.Errorf("фрагмент %d: источник %q", i, ch.SourceID)
		}
	}
}

// ===== Тесты перекрытия и границ =====

func TestChunk_OverlapPreserved(t *testing.T) {
	c := New()
	text := strings.Repeat("Слова идут подряд без остановки и конца. ", 120)
	chunks := c.Chunk(text, "doc-1")

	if len(chunks) < 2 {
		t.Fatalf("ожидалось несколько фрагментов, получено %d", len(chunks))
	}
	// Хвост каждого фрагмента должен встречаться в начале следующего.
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Text
		tail := prev[len(prev)-50:]
		if !strings.Contains(chunks[i].Text, tail) {
			t.Errorf("фрагмент %d не содержит перекрытия с предыдущим", i)
		}
	}
}

func TestChunk_SnapsToSentenceBoundary(t *testing.T) {
	// Предложение заканчивается рядом с целевым смещением 1000:
	// граница должна пройти по концу предложения, а не по середине слова.
	sentence := strings.Repeat("a", 995) + ". "
	text := sentence + strings.Repeat("b", 600)

	c := New()
	chunks := c.Chunk(text, "doc-1")
	if len(chunks) == 0 {
		t.Fatal("ожидались фрагменты")
	}
	if !strings.HasSuffix(chunks[0].Text, ". ") {
		t.Errorf("первый фрагмент должен заканчиваться на границе предложения, хвост: %q",
			chunks[0].Text[len(chunks[0].Text)-10:])
	}
}

func TestChunk_MinSizeFiltered(t *testing.T) {
	c := New()
	text := strings.Repeat("Нормальное предложение для нарезки текста. ", 80)
	for i, ch := range c.Chunk(text, "doc-1") {
		if len(ch.Text) < c.MinSize {
			t.Errorf("фрагмент %d короче MinSize: %d", i, len(ch.Text))
		}
	}
}

// ===== Тесты постраничной нарезки =====

func TestChunkPages_ContinuousOrdinals(t *testing.T) {
	c := New()
	page := strings.Repeat("Текст страницы документа с предложениями. ", 60)
	chunks := c.ChunkPages([]string{page, page, page}, "doc-2")

	if len(chunks) < 3 {
		t.Fatalf("ожидались фрагменты со всех страниц, получено %d", len(chunks))
	}
	seenPages := map[int]bool{}
	for i, ch := range chunks {
		if ch.Ordinal != i {
			t.Errorf("фрагмент %d: сквозной номер %d", i, ch.Ordinal)
		}
		if ch.Page < 1 || ch.Page > 3 {
			t.Errorf("фрагмент %d: страница %d вне диапазона", i, ch.Page)
		}
		seenPages[ch.Page] = true
	}
	if len(seenPages) != 3 {
		t.Errorf("ожидались фрагменты с трёх страниц, охвачено %d", len(seenPages))
	}
}

func TestChunkPages_EmptyPageSkipped(t *testing.T) {
	c := New()
	page := strings.Repeat("Содержимое непустой страницы документа. ", 60)
	chunks := c.ChunkPages([]string{"", page}, "doc-3")

	if len(chunks) == 0 {
		t.Fatal("непустая страница должна дать фрагменты")
	}
	for _, ch := range chunks {
		if ch.Page != 2 {
			t.Errorf("все фрагменты должны быть со второй страницы, получена %d", ch.Page)
		}
	}
}
