package tools

import (
	"context"
	"fmt"

	"github.com/neo-2022/edith-core/internal/retrieval"
)

// RegisterDocumentTools — регистрирует инструменты работы с документами.
//
//	index_document — загружает и индексирует документ по URL
//	ask_document — находит в проиндексированном документе фрагменты,
//	  релевантные вопросу, и отдаёт их модели как контекст
func RegisterDocumentTools(reg *Registry, svc *retrieval.Service) error {
	indexDef := Definition{
		Name:        "index_document",
		Description: "Download and index a document by URL so its content becomes searchable. Use before asking questions about a document.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"document": map[string]any{
					"type":        "string",
					"description": "URL of the document to index",
				},
			},
			"required": []string{"document"},
		},
	}
	if err := reg.Register(indexDef, func(ctx context.Context, args map[string]any) (string, error) {
		docURL, err := stringArg(args, "document")
		if err != nil {
			return "", err
		}
		idx, err := svc.EnsureIndexed(ctx, docURL)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Indexed %d chunks from %s. The document is ready for questions.", idx.Len(), docURL), nil
	}); err != nil {
		return err
	}

	askDef := Definition{
		Name:        "ask_document",
		Description: "Retrieve the passages of an indexed document most relevant to a question. Returns document excerpts to reason over.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"document": map[string]any{
					"type":        "string",
					"description": "URL of the document",
				},
				"question": map[string]any{
					"type":        "string",
					"description": "Question to find relevant passages for",
				},
			},
			"required": []string{"document", "question"},
		},
	}
	return reg.Register(askDef, func(ctx context.Context, args map[string]any) (string, error) {
		docURL, err := stringArg(args, "document")
		if err != nil {
			return "", err
		}
		question, err := stringArg(args, "question")
		if err != nil {
			return "", err
		}
		return svc.Excerpts(ctx, docURL, question)
	})
}

// stringArg — обязательный строковый аргумент инструмента.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("argument %q must be a non-empty string", key)
	}
	return s, nil
}
