package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"gorm.io/gorm"

	"petlink-go/internal/config"
	"petlink-go/internal/events"
	"petlink-go/internal/models"
	"petlink-go/internal/storage"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := storage.InitDB(config.DatabaseConfig{Type: "sqlite", Path: ":memory:", LogLevel: "silent"})
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	if err := storage.AutoMigrateTables(db); err != nil {
		t.Fatalf("AutoMigrateTables() error = %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB() error = %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func seedUsers(t *testing.T, db *gorm.DB, nicknames ...string) []*models.User {
	t.Helper()
	repo := storage.NewGormUserRepository(db)
	users := make([]*models.User, 0, len(nicknames))
	for i, nickname := range nicknames {
		u := &models.User{Username: fmt.Sprintf("user%d", i+1), Nickname: nickname}
		if err := repo.Create(context.Background(), u); err != nil {
			t.Fatalf("create user: %v", err)
		}
		users = append(users, u)
	}
	return users
}

func assertKind(t *testing.T, err error, sentinel error) {
	t.Helper()
	if !errors.Is(err, sentinel) {
		t.Fatalf("error = %v (kind %q), want kind of %v", err, KindOf(err), sentinel)
	}
}
