package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"petlink-go/internal/auth"
	"petlink-go/internal/config"
	"petlink-go/internal/models"
	"petlink-go/internal/storage"
)

const timeLayout = "2006-01-02 15:04:05"

func usage() {
	fmt.Println("使用方法:")
	fmt.Println("  ./admin show-relation <relationID>        - 显示好友关系")
	fmt.Println("  ./admin list-friends <userID> [search]    - 列出用户的好友")
	fmt.Println("  ./admin show-message <messageID>          - 显示私信及双方删除状态")
	fmt.Println("  ./admin issue-token <userID> <username>   - 为本地调试签发 JWT")
}

func main() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(os.Getenv("PETLINK_CONFIG"))
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}

	// issue-token 不需要数据库
	if os.Args[1] == "issue-token" {
		if len(os.Args) < 4 {
			log.Fatalf("需要指定用户ID和用户名")
		}
		issueToken(cfg.Auth, parseID(os.Args[2]), os.Args[3])
		return
	}

	db := openDB(cfg.Database)
	ctx := context.Background()

	switch os.Args[1] {
	case "show-relation":
		showRelation(ctx, storage.NewGormFriendRelationRepository(db), parseID(os.Args[2]))
	case "list-friends":
		search := ""
		if len(os.Args) > 3 {
			search = os.Args[3]
		}
		listFriends(ctx, storage.NewGormFriendRelationRepository(db), parseID(os.Args[2]), search)
	case "show-message":
		showMessage(ctx, storage.NewGormMessageRepository(db), parseID(os.Args[2]))
	default:
		usage()
		log.Fatalf("未知命令: %s", os.Args[1])
	}
}

func openDB(cfg config.DatabaseConfig) *gorm.DB {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{Logger: newLogger})
	if err != nil {
		log.Fatalf("Failed to create GORM instance: %v", err)
	}
	return db
}

func parseID(s string) uint {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil || id == 0 {
		log.Fatalf("无效的ID: %q", s)
	}
	return uint(id)
}

func showRelation(ctx context.Context, repo storage.FriendRelationRepository, relationID uint) {
	relation, err := repo.GetByID(ctx, relationID)
	if err != nil {
		log.Fatalf("获取好友关系失败: %v", err)
	}
	if relation == nil {
		log.Fatalf("好友关系 %d 不存在", relationID)
	}

	fmt.Printf("好友关系 %d:\n", relation.ID)
	fmt.Println("--------------------------------------")
	fmt.Printf("请求者: %d (%s)\n", relation.FromUserID, nickname(relation.FromUser))
	fmt.Printf("被请求者: %d (%s)\n", relation.ToUserID, nickname(relation.ToUser))
	fmt.Printf("状态: %s\n", relation.Status)
	fmt.Printf("创建时间: %s\n", relation.CreatedAt.Format(timeLayout))
	fmt.Printf("更新时间: %s\n", relation.UpdatedAt.Format(timeLayout))
}

func listFriends(ctx context.Context, repo storage.FriendRelationRepository, userID uint, search string) {
	relations, err := repo.ListAccepted(ctx, userID, storage.ListOptions{Search: search, Limit: 200})
	if err != nil {
		log.Fatalf("获取好友列表失败: %v", err)
	}
	fmt.Printf("用户 %d 的好友 (%d 人):\n", userID, len(relations))
	fmt.Println("--------------------------------------")
	for i := range relations {
		r := &relations[i]
		fmt.Printf("#%d 关系ID: %d, 好友ID: %d, 昵称: %s, 成为好友: %s\n",
			i+1, r.ID, r.OtherPartyID(userID), nickname(r.OtherParty(userID)), r.UpdatedAt.Format(timeLayout))
	}
}

func showMessage(ctx context.Context, repo storage.MessageRepository, messageID uint) {
	msg, err := repo.GetByID(ctx, messageID)
	if err != nil {
		log.Fatalf("获取私信失败: %v", err)
	}
	if msg == nil {
		log.Fatalf("私信 %d 不存在", messageID)
	}

	fmt.Printf("私信 %d:\n", msg.ID)
	fmt.Println("--------------------------------------")
	fmt.Printf("发送者: %d, 接收者: %d\n", msg.SenderID, msg.ReceiverID)
	fmt.Printf("内容预览: %s\n", msg.Preview())
	fmt.Printf("已读: %v", msg.IsRead)
	if msg.ReadAt != nil {
		fmt.Printf(" (%s)", msg.ReadAt.Format(timeLayout))
	}
	fmt.Println()
	fmt.Printf("发送者已删除: %v, 接收者已删除: %v, 整体删除: %v\n", msg.DeletedBySender, msg.DeletedByReceiver, msg.IsDeleted)
	fmt.Printf("发送时间: %s\n", msg.CreatedAt.Format(timeLayout))
}

func nickname(u *models.User) string {
	if u == nil {
		return "-"
	}
	return u.Nickname
}

func issueToken(cfg config.AuthConfig, userID uint, username string) {
	token, err := auth.GenerateToken(userID, username, cfg)
	if err != nil {
		log.Fatalf("签发令牌失败: %v", err)
	}
	fmt.Println(token)
}
