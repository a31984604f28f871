package retrieval

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/neo-2022/edith-core/internal/apperror"
)

// ===== Тесты разбора расширения URL =====

func TestURLExtension(t *testing.T) {
	cases := []struct {
		url    string
		ext    string
		hasExt bool
	}{
		{"https://example.com/policy.pdf", "pdf", true},
		{"https://example.com/files/notes.TXT", "txt", true},
		{"https://example.com/doc.md?token=abc", "md", true},
		{"https://example.com/api/v1/data", "", false},
		{"https://example.com/archive.", "", false},
		{"https://example.com/", "", false},
	}
	for _, c := range cases {
		ext, hasExt := urlExtension(c.url)
		if ext != c.ext || hasExt != c.hasExt {
			t.Errorf("urlExtension(%q) = (%q, %v), ожидалось (%q, %v)",
				c.url, ext, hasExt, c.ext, c.hasExt)
		}
	}
}

// ===== Тесты загрузчика =====

func TestPages_UnsupportedExtension(t *testing.T) {
	loader := NewHTTPLoader()
	for _, u := range []string{
		"https://example.com/archive.zip",
		"https://example.com/tool.exe",
		"https://example.com/slides.pptx",
	} {
		_, err := loader.Pages(context.Background(), u)
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) {
			t.Fatalf("%s: ожидалась ошибка приложения, получено %v", u, err)
		}
		if appErr.Message != "The document is not supported" {
			t.Errorf("%s: неверный текст ошибки: %q", u, appErr.Message)
		}
	}
}

func TestPages_TextDocument(t *testing.T) {
	content := strings.Repeat("Полезный текст документа. ", 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(content))
	}))
	defer srv.Close()

	pages, err := NewHTTPLoader().Pages(context.Background(), srv.URL+"/doc.txt")
	if err != nil {
		t.Fatalf("ошибка загрузки: %v", err)
	}
	if len(pages) != 1 || pages[0] != content {
		t.Errorf("содержимое документа искажено: %d страниц", len(pages))
	}
}

func TestPages_APIResponseJSONPrettyPrinted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"policy":{"number":"A-42","holder":"Иванов"},"active":true}`))
	}))
	defer srv.Close()

	// URL без расширения — API-ссылка: тело берётся целиком.
	pages, err := NewHTTPLoader().Pages(context.Background(), srv.URL+"/api/v1/policy")
	if err != nil {
		t.Fatalf("ошибка загрузки: %v", err)
	}
	if !strings.Contains(pages[0], "\n") || !strings.Contains(pages[0], `"number": "A-42"`) {
		t.Errorf("JSON должен быть переформатирован с отступами: %q", pages[0])
	}
}

func TestPages_TooShortContentRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("   ok  "))
	}))
	defer srv.Close()

	_, err := NewHTTPLoader().Pages(context.Background(), srv.URL+"/doc.txt")
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Message != "The document is not supported" {
		t.Errorf("пустой документ должен отклоняться: %v", err)
	}
}

func TestPages_HTTPErrorWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTPLoader().Pages(context.Background(), srv.URL+"/doc.txt")
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("ожидалась ошибка приложения, получено %v", err)
	}
	if appErr.Code != apperror.CodeIndexBuild {
		t.Errorf("неверный код ошибки: %s", appErr.Code)
	}
}
