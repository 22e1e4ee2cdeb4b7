package storage

import (
	"context"
	"testing"
	"time"

	"petlink-go/internal/models"
)

func TestMessageSoftDeleteRecomputesConjunction(t *testing.T) {
	db := newTestDB(t)
	users := seedUsers(t, db, "sender", "receiver")
	repo := NewGormMessageRepository(db)
	ctx := context.Background()

	msg := &models.Message{SenderID: users[0].ID, ReceiverID: users[1].ID, Content: "hi"}
	if err := repo.Create(ctx, msg); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	now := time.Now().UTC()
	if err := repo.SoftDelete(ctx, msg.ID, models.PartySender, now); err != nil {
		t.Fatalf("SoftDelete(sender) error = %v", err)
	}
	got, _ := repo.GetByID(ctx, msg.ID)
	if !got.DeletedBySender || got.DeletedByReceiver || got.IsDeleted || got.DeletedAt != nil {
		t.Fatalf("after sender delete: %+v", got)
	}

	// 同一方重复删除
	if err := repo.SoftDelete(ctx, msg.ID, models.PartySender, now); err != nil {
		t.Fatalf("repeat SoftDelete(sender) error = %v", err)
	}
	got, _ = repo.GetByID(ctx, msg.ID)
	if got.IsDeleted {
		t.Fatalf("repeat sender delete must not fully delete: %+v", got)
	}

	if err := repo.SoftDelete(ctx, msg.ID, models.PartyReceiver, now.Add(time.Minute)); err != nil {
		t.Fatalf("SoftDelete(receiver) error = %v", err)
	}
	got, _ = repo.GetByID(ctx, msg.ID)
	if !got.IsDeleted || got.DeletedAt == nil {
		t.Fatalf("after both deletes: %+v", got)
	}
	if got.IsDeleted != (got.DeletedBySender && got.DeletedByReceiver) {
		t.Fatalf("conjunction broken: %+v", got)
	}
	firstDeletedAt := *got.DeletedAt

	if err := repo.SoftDelete(ctx, msg.ID, models.PartyReceiver, now.Add(time.Hour)); err != nil {
		t.Fatalf("repeat SoftDelete(receiver) error = %v", err)
	}
	got, _ = repo.GetByID(ctx, msg.ID)
	if !got.DeletedAt.Equal(firstDeletedAt) {
		t.Fatalf("deleted_at changed from %v to %v", firstDeletedAt, got.DeletedAt)
	}
}

func TestMessageMarkReadOnlyOnce(t *testing.T) {
	db := newTestDB(t)
	users := seedUsers(t, db, "sender", "receiver")
	repo := NewGormMessageRepository(db)
	ctx := context.Background()

	msg := &models.Message{SenderID: users[0].ID, ReceiverID: users[1].ID, Content: "hi"}
	if err := repo.Create(ctx, msg); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if ok, err := repo.MarkRead(ctx, msg.ID, users[0].ID, time.Now()); err != nil || ok {
		t.Fatalf("sender MarkRead = %v, %v; want false", ok, err)
	}
	if ok, err := repo.MarkRead(ctx, msg.ID, users[1].ID, time.Now()); err != nil || !ok {
		t.Fatalf("receiver MarkRead = %v, %v; want true", ok, err)
	}
	if ok, err := repo.MarkRead(ctx, msg.ID, users[1].ID, time.Now()); err != nil || ok {
		t.Fatalf("second MarkRead = %v, %v; want false", ok, err)
	}
}

func TestMessageListMailboxes(t *testing.T) {
	db := newTestDB(t)
	users := seedUsers(t, db, "mong", "bori", "choco")
	repo := NewGormMessageRepository(db)
	ctx := context.Background()
	me, bori, choco := users[0], users[1], users[2]

	create := func(from, to *models.User, content string) *models.Message {
		m := &models.Message{SenderID: from.ID, ReceiverID: to.ID, Content: content}
		if err := repo.Create(ctx, m); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		return m
	}
	first := create(bori, me, "산책 갈래?")
	create(me, choco, "간식 나눔해요")
	hidden := create(choco, me, "hello")

	if err := repo.SoftDelete(ctx, hidden.ID, models.PartyReceiver, time.Now()); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}

	all, err := repo.List(ctx, me.ID, MailboxAll, ListOptions{})
	if err != nil || len(all) != 2 {
		t.Fatalf("List(all) = %d rows, %v", len(all), err)
	}
	if all[0].ID < all[1].ID {
		t.Fatalf("expected newest first")
	}

	oldest, _ := repo.List(ctx, me.ID, MailboxAll, ListOptions{Sort: SortOldest})
	if oldest[0].ID != first.ID {
		t.Fatalf("expected oldest first, got %d", oldest[0].ID)
	}

	received, _ := repo.List(ctx, me.ID, MailboxReceived, ListOptions{})
	if len(received) != 1 || received[0].ID != first.ID {
		t.Fatalf("List(received) = %+v", received)
	}

	// 接收方删除后发送方仍然能在发件箱看到
	sentByChoco, _ := repo.List(ctx, choco.ID, MailboxSent, ListOptions{})
	if len(sentByChoco) != 1 || sentByChoco[0].ID != hidden.ID {
		t.Fatalf("List(sent) for choco = %+v", sentByChoco)
	}

	byContent, _ := repo.List(ctx, me.ID, MailboxAll, ListOptions{Search: "간식"})
	if len(byContent) != 1 {
		t.Fatalf("search by content = %d rows", len(byContent))
	}
	byNickname, _ := repo.List(ctx, me.ID, MailboxAll, ListOptions{Search: "BORI"})
	if len(byNickname) != 1 || byNickname[0].SenderID != bori.ID {
		t.Fatalf("search by nickname = %+v", byNickname)
	}

	window, _ := repo.List(ctx, me.ID, MailboxAll, ListOptions{Limit: 1, Offset: 1})
	if len(window) != 1 || window[0].ID != first.ID {
		t.Fatalf("limit/offset window = %+v", window)
	}
}
