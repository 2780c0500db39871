package service

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/snippetsmaster/snippets-back/internal/db"
)

type Tags struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewTags(gdb *gorm.DB, l *zap.SugaredLogger) *Tags {
	return &Tags{
		db:     gdb,
		logger: l,
	}
}

func (s *Tags) GetAll() ([]db.Tag, error) {
	tags := make([]db.Tag, 0)
	res := s.db.Order("id").Find(&tags)
	if res.Error != nil {
		return nil, res.Error
	}
	return tags, nil
}

func (s *Tags) GetMine(userID uint64) ([]db.Tag, error) {
	tags := make([]db.Tag, 0)
	res := s.db.Where("user_id = ?", userID).Order("id").Find(&tags)
	if res.Error != nil {
		return nil, res.Error
	}
	return tags, nil
}

func (s *Tags) GetByID(userID, id uint64) (*db.Tag, error) {
	tag := db.Tag{}
	res := s.db.Where("id = ? AND user_id = ?", id, userID).First(&tag)
	if res.Error != nil {
		if res.Error == gorm.ErrRecordNotFound {
			return nil, ErrTagNotFound
		}
		return nil, res.Error
	}
	return &tag, nil
}

func (s *Tags) Create(userID uint64, name string) (*db.Tag, error) {
	if err := s.checkNameFree(userID, name, 0); err != nil {
		return nil, err
	}

	model := db.Tag{
		Name:   name,
		UserID: userID,
	}
	if res := s.db.Create(&model); res.Error != nil {
		return nil, errors.Wrap(res.Error, "create tag")
	}
	return &model, nil
}

func (s *Tags) Update(userID, id uint64, name string) (*db.Tag, error) {
	tag, err := s.GetByID(userID, id)
	if err != nil {
		return nil, err
	}

	if err := s.checkNameFree(userID, name, id); err != nil {
		return nil, err
	}

	tag.Name = name
	if res := s.db.Save(tag); res.Error != nil {
		return nil, errors.Wrap(res.Error, "update tag")
	}
	return tag, nil
}

// Delete removes the tag and its snippet links.
func (s *Tags) Delete(userID, id uint64) error {
	tag, err := s.GetByID(userID, id)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(tag).Association("Snippets").Clear(); err != nil {
			return errors.Wrap(err, "clear snippet links")
		}
		if res := tx.Delete(tag); res.Error != nil {
			return errors.Wrap(res.Error, "delete tag")
		}
		return nil
	})
}

func (s *Tags) checkNameFree(userID uint64, name string, selfID uint64) error {
	other := db.Tag{}
	res := s.db.Where("name = ? AND user_id = ? AND id <> ?", name, userID, selfID).First(&other)
	if res.Error == nil {
		return ErrTagExists
	}
	if res.Error != gorm.ErrRecordNotFound {
		return errors.Wrap(res.Error, "find tag by name")
	}
	return nil
}
