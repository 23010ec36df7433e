// Package journal persists the accepted realtime event stream to Postgres
// for audit and history. Writes are best effort: a journal failure is
// logged and never blocks the sync hot path.
package journal

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"roomsync/models"
)

// AlertRecord is one journaled alert event.
type AlertRecord struct {
	ID          uint      `gorm:"primaryKey"`
	Room        string    `gorm:"index;size:64"`
	AlertID     int64     `gorm:"index"`
	Event       string    `gorm:"size:16"` // created, updated, deleted
	AlertType   string    `gorm:"size:16"`
	Ticker      string    `gorm:"size:16"`
	Title       string    `gorm:"size:255"`
	Message     string    `gorm:"type:text"`
	PublishedAt time.Time
	CreatedAt   time.Time
}

// TradeEventRecord is one journaled trade lifecycle event.
type TradeEventRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Room      string `gorm:"index;size:64"`
	TradeID   int64  `gorm:"index"`
	Event     string `gorm:"size:16"` // created, updated, closed, invalidated
	Ticker    string `gorm:"size:16"`
	Direction string `gorm:"size:8"`
	Status    string `gorm:"size:8"`
	PnL       *float64
	CreatedAt time.Time
}

// Journal wraps the GORM connection and the two record tables.
type Journal struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Connect opens the journal database and migrates its schema.
func Connect(host string, port int, dbname, user, password string, log zerolog.Logger) (*Journal, error) {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		host, port, dbname, user, password)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to journal database: %w", err)
	}

	if err := db.AutoMigrate(&AlertRecord{}, &TradeEventRecord{}); err != nil {
		return nil, fmt.Errorf("journal auto-migration failed: %w", err)
	}

	return &Journal{
		db:  db,
		log: log.With().Str("component", "journal").Logger(),
	}, nil
}

// RecordAlertEvent journals one alert event. Best effort.
func (j *Journal) RecordAlertEvent(event string, alert models.Alert) {
	record := AlertRecord{
		Room:        alert.RoomSlug,
		AlertID:     alert.ID,
		Event:       event,
		AlertType:   string(alert.AlertType),
		Ticker:      alert.Ticker,
		Title:       alert.Title,
		Message:     alert.Message,
		PublishedAt: alert.PublishedAt,
	}
	if err := j.db.Create(&record).Error; err != nil {
		j.log.Warn().Err(err).Int64("alert_id", alert.ID).Msg("alert journal write failed")
	}
}

// RecordTradeEvent journals one trade lifecycle event. Best effort.
func (j *Journal) RecordTradeEvent(event string, trade models.Trade) {
	record := TradeEventRecord{
		Room:      trade.RoomSlug,
		TradeID:   trade.ID,
		Event:     event,
		Ticker:    trade.Ticker,
		Direction: trade.Direction,
		Status:    string(trade.Status),
		PnL:       trade.PnL,
	}
	if err := j.db.Create(&record).Error; err != nil {
		j.log.Warn().Err(err).Int64("trade_id", trade.ID).Msg("trade journal write failed")
	}
}

// RecentAlerts returns the latest journaled alert events for one room.
func (j *Journal) RecentAlerts(room string, limit int) ([]AlertRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var records []AlertRecord
	err := j.db.
		Where("room = ?", room).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
