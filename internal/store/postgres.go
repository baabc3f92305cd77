package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gomoku/internal/game"
)

// historyRow is the table layout of a HistoryRecord.
type historyRow struct {
	ID            uint           `gorm:"primaryKey"`
	GameID        string         `gorm:"uniqueIndex;not null"`
	Player1       string         `gorm:"index;not null"`
	Player2       string         `gorm:"index;not null"`
	Winner        string         `gorm:"not null"`
	Reason        string
	EndTime       time.Time      `gorm:"index"`
	Moves         []game.Coord   `gorm:"serializer:json"`
	CreditsChange map[string]int `gorm:"serializer:json"`
}

func (historyRow) TableName() string { return "game_history" }

func (Account) TableName() string { return "accounts" }

func toRow(rec HistoryRecord) historyRow {
	return historyRow{
		GameID:        rec.GameID,
		Player1:       rec.Player1,
		Player2:       rec.Player2,
		Winner:        rec.Winner,
		Reason:        string(rec.Reason),
		EndTime:       rec.EndTime,
		Moves:         rec.Moves,
		CreditsChange: rec.CreditsChange,
	}
}

func (r historyRow) record() HistoryRecord {
	return HistoryRecord{
		GameID:        r.GameID,
		Player1:       r.Player1,
		Player2:       r.Player2,
		Winner:        r.Winner,
		Reason:        game.Reason(r.Reason),
		EndTime:       r.EndTime,
		Moves:         r.Moves,
		CreditsChange: r.CreditsChange,
	}
}

// Postgres stores accounts and history in PostgreSQL.
type Postgres struct {
	db *gorm.DB
}

// OpenPostgres connects and migrates the schema.
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := db.AutoMigrate(&Account{}, &historyRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Get(ctx context.Context, username string) (Account, error) {
	var a Account
	err := p.db.WithContext(ctx).First(&a, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrNotFound
	}
	return a, err
}

func (p *Postgres) Put(ctx context.Context, a Account) error {
	return p.db.WithContext(ctx).Save(&a).Error
}

func (p *Postgres) Delete(ctx context.Context, username string) error {
	res := p.db.WithContext(ctx).Delete(&Account{}, "username = ?", username)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) List(ctx context.Context) ([]Account, error) {
	var out []Account
	err := p.db.WithContext(ctx).Order("username").Find(&out).Error
	return out, err
}

func (p *Postgres) Append(ctx context.Context, rec HistoryRecord) error {
	row := toRow(rec)
	return p.db.WithContext(ctx).Create(&row).Error
}

func (p *Postgres) ForPlayer(ctx context.Context, username string) ([]HistoryRecord, error) {
	var rows []historyRow
	err := p.db.WithContext(ctx).
		Where("player1 = ? OR player2 = ?", username, username).
		Order("end_time").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]HistoryRecord, len(rows))
	for i, r := range rows {
		out[i] = r.record()
	}
	return out, nil
}

func (p *Postgres) RenamePlayer(ctx context.Context, from, to string) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, col := range []string{"player1", "player2", "winner"} {
			if err := tx.Model(&historyRow{}).Where(col+" = ?", from).Update(col, to).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Ping checks the connection for health reporting.
func (p *Postgres) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
