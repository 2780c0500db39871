package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/snippetsmaster/snippets-back/internal/config"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type (
	GormForkedModel struct {
		ID        uint64 `gorm:"primarykey"`
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// User rows are never hard-deleted; IsDeleted marks them inactive.
	// UserName/email uniqueness among non-deleted users is enforced in the
	// service layer, so soft-deleted rows do not block reuse.
	User struct {
		GormForkedModel
		UserName  string `gorm:"not null;index"`
		Email     string `gorm:"not null;index"`
		Password  string
		Role      string `gorm:"not null;default:user"`
		GoogleID  string `gorm:"index"`
		IsDeleted bool   `gorm:"not null;default:false"`
		Snippets  []Snippet
		Tags      []Tag
		Favorites []Snippet `gorm:"many2many:user_favorites;"`
	}

	Snippet struct {
		GormForkedModel
		Title       string `gorm:"not null"`
		Description string `gorm:"not null"`
		Code        string `gorm:"not null"`
		Language    string `gorm:"not null"`
		UserID      uint64 `gorm:"not null;index"`
		User        User
		Tags        []Tag `gorm:"many2many:snippet_tags;"`
	}

	Tag struct {
		GormForkedModel
		Name     string    `gorm:"not null;uniqueIndex:uidx_name_user_id"`
		UserID   uint64    `gorm:"not null;uniqueIndex:uidx_name_user_id"`
		User     User
		Snippets []Snippet `gorm:"many2many:snippet_tags;"`
	}
)

func NewGormClient(cfg *config.Config) (*gorm.DB, error) {
	newLogger := logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Info,
		Colorful:                  true,
		IgnoreRecordNotFoundError: false,
	})

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&User{}); err != nil {
		return errors.Wrap(err, "migrate user")
	}
	if err := db.AutoMigrate(&Snippet{}); err != nil {
		return errors.Wrap(err, "migrate snippet")
	}
	if err := db.AutoMigrate(&Tag{}); err != nil {
		return errors.Wrap(err, "migrate tag")
	}
	return nil
}
