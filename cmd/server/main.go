// Пакет main — точка входа HTTP-сервера edith-core.
// Сервис объединяет агентный цикл с инструментами и RAG-пайплайн
// ответов на вопросы по документам.
//
// HTTP-эндпоинты:
//   - /health         — проверка состояния сервиса (GET)
//   - /chat           — чат с агентом: классификация намерения,
//     планирование, итеративный цикл с инструментами (POST)
//   - /documents/run  — батч вопросов по документу (POST)
//   - /metrics        — метрики Prometheus (GET)
//
// Порт по умолчанию: 8090 (настраивается через PORT).
package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/neo-2022/edith-core/internal/agent"
	"github.com/neo-2022/edith-core/internal/apperror"
	"github.com/neo-2022/edith-core/internal/config"
	"github.com/neo-2022/edith-core/internal/conversation"
	"github.com/neo-2022/edith-core/internal/db"
	"github.com/neo-2022/edith-core/internal/embeddings"
	"github.com/neo-2022/edith-core/internal/intent"
	"github.com/neo-2022/edith-core/internal/llm"
	"github.com/neo-2022/edith-core/internal/metrics"
	"github.com/neo-2022/edith-core/internal/retrieval"
	"github.com/neo-2022/edith-core/internal/tools"
	"github.com/neo-2022/edith-core/internal/vectorstore"
)

// ChatRequest — входящий запрос на /chat.
//
// Поля:
//   - Message: текущее сообщение пользователя
//   - History: история диалога в формате ходов (роль + части)
//   - SessionID: идентификатор сессии (опционально, UUID)
type ChatRequest struct {
	Message   string              `json:"message"`
	History   []conversation.Turn `json:"history,omitempty"`
	SessionID string              `json:"session_id,omitempty"`
}

// ChatResponse — ответ /chat.
type ChatResponse struct {
	Response  string   `json:"response"`
	Intent    string   `json:"intent"`
	Actions   []string `json:"actions"`
	SessionID string   `json:"session_id,omitempty"`
	Degraded  bool     `json:"degraded,omitempty"`
}

// DocumentsRunRequest — входящий запрос на /documents/run.
type DocumentsRunRequest struct {
	Documents string   `json:"documents"` // URL документа
	Questions []string `json:"questions"` // Вопросы по документу
}

// DocumentsRunResponse — ответ /documents/run.
// Ответы идут строго в порядке вопросов.
type DocumentsRunResponse struct {
	Answers []string `json:"answers"`
}

// server — собранные зависимости HTTP-хэндлеров.
type server struct {
	detector  *intent.Detector
	planner   *intent.Planner
	loop      *agent.Loop
	recorder  *agent.SessionRecorder
	retrieval *retrieval.Service
}

func main() {
	cfg := config.Load()

	// PostgreSQL опционален: без него теряется только журнал диалогов
	// и postgres-хранилище индексов.
	var conn *gorm.DB
	if cfg.DatabaseURL != "" || cfg.IndexStore == "postgres" {
		var err error
		conn, err = db.Open(cfg.DSN())
		if err != nil {
			log.Printf("[MAIN] PostgreSQL недоступен, работа без БД: %v", err)
			conn = nil
		}
	}

	var store vectorstore.Store
	if cfg.IndexStore == "postgres" && conn != nil {
		store = vectorstore.NewPostgresStore(conn)
		log.Printf("[MAIN] хранилище индексов: postgres")
	} else {
		fileStore, err := vectorstore.NewFileStore(cfg.IndexCacheDir)
		if err != nil {
			log.Fatalf("[MAIN] не удалось создать файловое хранилище индексов: %v", err)
		}
		store = fileStore
		log.Printf("[MAIN] хранилище индексов: файлы в %s", cfg.IndexCacheDir)
	}

	var embedder embeddings.Client
	if cfg.EmbeddingURL != "" {
		embedder = embeddings.NewHTTPClient(cfg.EmbeddingURL, cfg.EmbeddingKey, cfg.EmbeddingModel, cfg.EmbeddingDim)
		log.Printf("[MAIN] эмбеддинги: %s (%s)", cfg.EmbeddingURL, cfg.EmbeddingModel)
	} else {
		embedder = embeddings.NewLocalModel(cfg.EmbeddingDim)
		log.Printf("[MAIN] эмбеддинги: локальная модель, dim=%d", cfg.EmbeddingDim)
	}

	gateway := llm.NewGateway(cfg)
	log.Printf("[MAIN] порядок провайдеров: %v", gateway.Providers())

	cache := vectorstore.NewCache(store, embedder)
	retrievalSvc := retrieval.NewService(cache, embedder, gateway, retrieval.NewHTTPLoader(), cfg.TopK)

	registry := tools.NewRegistry()
	if err := tools.RegisterDocumentTools(registry, retrievalSvc); err != nil {
		log.Fatalf("[MAIN] ошибка регистрации инструментов: %v", err)
	}
	if err := registry.Validate(); err != nil {
		log.Fatalf("[MAIN] реестр инструментов не прошёл проверку: %v", err)
	}

	srv := &server{
		detector:  intent.NewDetector(gateway),
		planner:   intent.NewPlanner(gateway, registry.Declarations()),
		loop:      agent.New(gateway, registry, cfg.MaxIterations, cfg.HistoryWindow),
		recorder:  agent.NewSessionRecorder(conn),
		retrieval: retrievalSvc,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/chat", srv.chatHandler)
	mux.HandleFunc("/documents/run", srv.documentsRunHandler)
	mux.Handle("/metrics", metrics.InitPrometheusHandler())

	log.Printf("[MAIN] edith-core слушает порт %s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, mux))
}

// healthHandler — проверка состояния сервиса (GET /health).
func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "edith-core",
	})
}

// chatHandler — основной чат с агентом (POST /chat).
//
// Пайплайн: классификация намерения → план для TASK/HYBRID →
// итеративный цикл с инструментами. Ответ всегда успешный HTTP 200,
// включая деградированный режим при недоступности провайдеров.
func (s *server) chatHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if r.Method != http.MethodPost {
		apperror.BadRequest("метод не поддерживается").WriteJSON(w)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperror.BadRequest("невалидное тело запроса").WriteJSON(w)
		metrics.RecordHTTPRequest(r.Method, "/chat", http.StatusBadRequest, time.Since(start))
		return
	}
	if req.Message == "" {
		apperror.BadRequest("пустое сообщение").WriteJSON(w)
		metrics.RecordHTTPRequest(r.Method, "/chat", http.StatusBadRequest, time.Since(start))
		return
	}

	ctx := r.Context()
	sessionID := s.recorder.EnsureSession(req.SessionID)

	detected := s.detector.Detect(ctx, req.Message)
	metrics.RecordChatRequest(detected.Intent)
	log.Printf("[CHAT] намерение=%s сессия=%s", detected.Intent, sessionID)

	var plan *intent.Plan
	if detected.Intent == intent.IntentTask || detected.Intent == intent.IntentHybrid {
		p := s.planner.GeneratePlan(ctx, req.Message)
		plan = &p
	}

	result := s.loop.Run(ctx, req.Message, req.History, plan)
	s.recorder.RecordExchange(sessionID, req.Message, detected.Intent, result)

	writeJSON(w, http.StatusOK, ChatResponse{
		Response:  result.Response,
		Intent:    detected.Intent,
		Actions:   append([]string{}, result.Actions...),
		SessionID: sessionID,
		Degraded:  result.Degraded,
	})
	metrics.RecordHTTPRequest(r.Method, "/chat", http.StatusOK, time.Since(start))
}

// documentsRunHandler — батч вопросов по документу (POST /documents/run).
func (s *server) documentsRunHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if r.Method != http.MethodPost {
		apperror.BadRequest("метод не поддерживается").WriteJSON(w)
		return
	}

	var req DocumentsRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperror.BadRequest("невалидное тело запроса").WriteJSON(w)
		metrics.RecordHTTPRequest(r.Method, "/documents/run", http.StatusBadRequest, time.Since(start))
		return
	}
	if req.Documents == "" || len(req.Questions) == 0 {
		apperror.BadRequest("требуются documents и questions").WriteJSON(w)
		metrics.RecordHTTPRequest(r.Method, "/documents/run", http.StatusBadRequest, time.Since(start))
		return
	}

	answers, err := s.retrieval.Run(r.Context(), req.Documents, req.Questions)
	if err != nil {
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) {
			appErr = apperror.IndexBuild("не удалось обработать документ", err)
		}
		appErr.WriteJSON(w)
		metrics.RecordHTTPRequest(r.Method, "/documents/run", appErr.HTTPStatus(), time.Since(start))
		return
	}

	writeJSON(w, http.StatusOK, DocumentsRunResponse{Answers: answers})
	metrics.RecordHTTPRequest(r.Method, "/documents/run", http.StatusOK, time.Since(start))
}

// writeJSON — сериализует ответ с заголовком Content-Type.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] ошибка сериализации ответа: %v", err)
	}
}
