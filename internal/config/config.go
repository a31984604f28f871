// Package config — централизованная конфигурация edith-core.
//
// Все параметры загружаются из переменных окружения с указанными значениями
// по умолчанию. Используется для единообразного доступа к настройкам из
// любого пакета сервиса.
package config

import (
	"os"
	"strconv"
)

// Config — структура конфигурации сервиса.
// Содержит параметры HTTP-сервера, LLM-провайдеров, эмбеддингов,
// кэша индексов документов и подключения к PostgreSQL.
type Config struct {
	Port string // Порт HTTP-сервера (по умолчанию 8090)

	// LLM-провайдеры. Провайдер регистрируется только при наличии ключа.
	// GoogleAPIKeys — через запятую, для ротации ключей (round-robin).
	GoogleAPIKeys string // API-ключи Gemini (через запятую)
	GroqAPIKey    string // API-ключ Groq
	OpenAIAPIKey  string // API-ключ OpenAI
	PrimaryLLM    string // Имя приоритетного провайдера (Gemini, Groq, OpenAI)
	PrimaryModel  string // Модель приоритетного провайдера

	// Эмбеддинги. Если EmbeddingURL пуст — используется локальная
	// детерминированная модель (для разработки и тестов).
	EmbeddingURL   string // Базовый URL OpenAI-совместимого /embeddings API
	EmbeddingKey   string // API-ключ сервиса эмбеддингов
	EmbeddingModel string // Имя модели эмбеддингов
	EmbeddingDim   int    // Размерность векторов (по умолчанию 768)

	// Кэш индексов документов.
	IndexStore    string // Тип долговременного хранилища: file | postgres
	IndexCacheDir string // Директория файлового хранилища

	// Параметры поиска и агентного цикла.
	TopK          int // Сколько чанков возвращать при поиске (по умолчанию 15)
	MaxIterations int // Лимит итераций агентного цикла (по умолчанию 12)
	HistoryWindow int // Сколько последних ходов истории отправлять (по умолчанию 12)

	// PostgreSQL (для IndexStore=postgres и записей сессий).
	DatabaseURL string // Полная строка подключения (приоритетная)
	DBHost      string // Хост PostgreSQL
	DBPort      string // Порт PostgreSQL
	DBUser      string // Пользователь PostgreSQL
	DBPassword  string // Пароль PostgreSQL
	DBName      string // Имя базы данных
}

// Load — загружает конфигурацию из переменных окружения.
// Если переменная не задана, используется значение по умолчанию.
func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8090"),

		GoogleAPIKeys: getEnv("GOOGLE_API_KEYS", os.Getenv("GOOGLE_API_KEY")),
		GroqAPIKey:    getEnv("GROQ_API_KEY", ""),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		PrimaryLLM:    getEnv("PRIMARY_LLM", "Gemini"),
		PrimaryModel:  getEnv("PRIMARY_MODEL", "gemini-2.5-flash"),

		EmbeddingURL:   getEnv("EMBEDDING_URL", ""),
		EmbeddingKey:   getEnv("EMBEDDING_KEY", os.Getenv("GOOGLE_API_KEY")),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-004"),
		EmbeddingDim:   getEnvInt("EMBEDDING_DIM", 768),

		IndexStore:    getEnv("INDEX_STORE", "file"),
		IndexCacheDir: getEnv("INDEX_CACHE_DIR", "./doc_cache"),

		TopK:          getEnvInt("RAG_TOP_K", 15),
		MaxIterations: getEnvInt("MAX_ITERATIONS", 12),
		HistoryWindow: getEnvInt("HISTORY_WINDOW", 12),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "edith"),
		DBPassword:  getEnv("DB_PASSWORD", "edith"),
		DBName:      getEnv("DB_NAME", "edith"),
	}
}

// DSN — собирает строку подключения к PostgreSQL.
// Приоритет: DATABASE_URL > отдельные DB_* переменные.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return "host=" + c.DBHost + " user=" + c.DBUser + " password=" + c.DBPassword +
		" dbname=" + c.DBName + " port=" + c.DBPort + " sslmode=disable"
}

// getEnv — возвращает значение переменной окружения или fallback, если не задана.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt — числовая переменная окружения с значением по умолчанию.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}
