package storage

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/gorm"

	"petlink-go/internal/config"
	"petlink-go/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := InitDB(config.DatabaseConfig{Type: "sqlite", Path: ":memory:", LogLevel: "silent"})
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	if err := AutoMigrateTables(db); err != nil {
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
	repo := NewGormUserRepository(db)
	users := make([]*models.User, 0, len(nicknames))
	for i, nickname := range nicknames {
		u := &models.User{Username: fmt.Sprintf("user%d", i+1), Nickname: nickname}
		if err := repo.Create(context.Background(), u); err != nil {
			t.Fatalf("create user %q: %v", nickname, err)
		}
		users = append(users, u)
	}
	return users
}

func TestInitDBRejectsUnknownType(t *testing.T) {
	if _, err := InitDB(config.DatabaseConfig{Type: "oracle"}); err == nil {
		t.Fatalf("expected error for unsupported database type")
	}
}

func TestUserRepositoryLookups(t *testing.T) {
	db := newTestDB(t)
	users := seedUsers(t, db, "mong", "bori")
	repo := NewGormUserRepository(db)
	ctx := context.Background()

	got, err := repo.GetByID(ctx, users[0].ID)
	if err != nil || got == nil || got.Nickname != "mong" {
		t.Fatalf("GetByID() = %+v, %v", got, err)
	}

	missing, err := repo.GetByID(ctx, 9999)
	if err != nil || missing != nil {
		t.Fatalf("GetByID(missing) = %+v, %v; want nil, nil", missing, err)
	}
	if info := got.BasicInfo(); info.ID != users[0].ID || info.Nickname != "mong" {
		t.Fatalf("BasicInfo() = %+v", info)
	}
}

func TestStrToUintAndParsers(t *testing.T) {
	if v, err := StrToUint(" 42 "); err != nil || v != 42 {
		t.Fatalf("StrToUint() = %d, %v", v, err)
	}
	if _, err := StrToUint("-1"); err == nil {
		t.Fatalf("expected error for negative id")
	}
	if ParseSortOrder("OLDEST") != SortOldest || ParseSortOrder("") != SortNewest {
		t.Fatalf("unexpected sort parsing")
	}
	if box, ok := ParseMailbox(""); !ok || box != MailboxAll {
		t.Fatalf("empty mailbox should default to all")
	}
	if _, ok := ParseMailbox("trash"); ok {
		t.Fatalf("unknown mailbox should be rejected")
	}
}
