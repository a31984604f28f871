// Пакет db — подключение к PostgreSQL и автоматические миграции.
// Используется библиотека GORM (Go ORM) для работы с базой данных.
//
// База опциональна: сервис полностью работоспособен без неё, теряя
// только журнал диалогов и долговременный кеш индексов (он переживает
// рестарт через файловое хранилище). Поэтому подключение возвращается
// вызывающему коду, глобального состояния пакет не держит.
package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/neo-2022/edith-core/internal/models"
)

// Open — подключается к PostgreSQL и выполняет миграции.
//
// Порядок действий:
//  1. Подключение через GORM с логированием SQL-запросов (уровень Warn).
//  2. Настройка пула соединений.
//  3. Автоматические миграции: ChatSession → ChatMessage → DocumentIndex.
//     ChatMessage зависит от ChatSession через внешний ключ.
func Open(dsn string) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(1 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ошибка проверки соединения с БД: %w", err)
	}

	// Миграции в порядке внешних ключей
	if err := conn.AutoMigrate(&models.ChatSession{}); err != nil {
		return nil, fmt.Errorf("ошибка миграции ChatSession: %w", err)
	}
	if err := conn.AutoMigrate(&models.ChatMessage{}); err != nil {
		return nil, fmt.Errorf("ошибка миграции ChatMessage: %w", err)
	}
	if err := conn.AutoMigrate(&models.DocumentIndex{}); err != nil {
		return nil, fmt.Errorf("ошибка миграции DocumentIndex: %w", err)
	}

	log.Println("База данных подключена, миграции выполнены")
	return conn, nil
}
