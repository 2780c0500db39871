package service

import (
	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/snippetsmaster/snippets-back/internal/db"
)

type (
	Snippets struct {
		db     *gorm.DB
		logger *zap.SugaredLogger
	}

	SnippetCreate struct {
		Title       string
		Description string
		Code        string
		Language    string
		TagIDs      []uint64
	}

	// SnippetUpdate carries a field diff; TagIDs nil means "leave links
	// alone", an empty slice replaces them with nothing.
	SnippetUpdate struct {
		Title       string
		Description string
		Code        string
		Language    string
		TagIDs      *[]uint64
	}
)

func NewSnippets(gdb *gorm.DB, l *zap.SugaredLogger) *Snippets {
	return &Snippets{
		db:     gdb,
		logger: l,
	}
}

func (s *Snippets) GetAll() ([]db.Snippet, error) {
	snippets := make([]db.Snippet, 0)
	res := s.db.Preload("Tags").Order("id").Find(&snippets)
	if res.Error != nil {
		return nil, res.Error
	}
	return snippets, nil
}

func (s *Snippets) GetMine(userID uint64) ([]db.Snippet, error) {
	snippets := make([]db.Snippet, 0)
	res := s.db.Preload("Tags").Where("user_id = ?", userID).Order("id").Find(&snippets)
	if res.Error != nil {
		return nil, res.Error
	}
	return snippets, nil
}

func (s *Snippets) GetByID(userID, id uint64) (*db.Snippet, error) {
	snippet := db.Snippet{}
	res := s.db.Preload("Tags").Where("id = ? AND user_id = ?", id, userID).First(&snippet)
	if res.Error != nil {
		if res.Error == gorm.ErrRecordNotFound {
			return nil, ErrSnippetNotFound
		}
		return nil, res.Error
	}
	return &snippet, nil
}

// Create inserts the snippet and its tag links as one transaction. Tag
// ownership is validated before anything is written, so a bad tag list
// leaves no orphaned snippet behind.
func (s *Snippets) Create(userID uint64, in SnippetCreate) (*db.Snippet, error) {
	model := db.Snippet{
		Title:       in.Title,
		Description: in.Description,
		Code:        in.Code,
		Language:    in.Language,
		UserID:      userID,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := validateTagOwnership(tx, userID, in.TagIDs); err != nil {
			return err
		}
		if res := tx.Omit("Tags").Create(&model); res.Error != nil {
			return errors.Wrap(res.Error, "create snippet")
		}
		if len(in.TagIDs) > 0 {
			if err := tx.Model(&model).Association("Tags").Append(tagRefs(in.TagIDs)); err != nil {
				return errors.Wrap(err, "link tags")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(userID, model.ID)
}

func (s *Snippets) Update(userID, id uint64, in SnippetUpdate) (*db.Snippet, error) {
	snippet, err := s.GetByID(userID, id)
	if err != nil {
		return nil, err
	}

	changed := false
	if in.Title != "" && in.Title != snippet.Title {
		snippet.Title = in.Title
		changed = true
	}
	if in.Description != "" && in.Description != snippet.Description {
		snippet.Description = in.Description
		changed = true
	}
	if in.Code != "" && in.Code != snippet.Code {
		snippet.Code = in.Code
		changed = true
	}
	if in.Language != "" && in.Language != snippet.Language {
		snippet.Language = in.Language
		changed = true
	}

	if !changed && in.TagIDs == nil {
		return nil, ErrNoChanges
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if in.TagIDs != nil {
			if err := validateTagOwnership(tx, userID, *in.TagIDs); err != nil {
				return err
			}
			if err := tx.Model(snippet).Association("Tags").Replace(tagRefs(*in.TagIDs)); err != nil {
				return errors.Wrap(err, "replace tag links")
			}
		}
		if changed {
			if res := tx.Omit("Tags").Save(snippet); res.Error != nil {
				return errors.Wrap(res.Error, "update snippet")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(userID, id)
}

// Delete hard-deletes the snippet together with its snippet_tags and
// user_favorites junction rows.
func (s *Snippets) Delete(userID, id uint64) error {
	snippet, err := s.GetByID(userID, id)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(snippet).Association("Tags").Clear(); err != nil {
			return errors.Wrap(err, "clear tag links")
		}
		if res := tx.Exec("DELETE FROM user_favorites WHERE snippet_id = ?", id); res.Error != nil {
			return errors.Wrap(res.Error, "clear favorites")
		}
		if res := tx.Delete(&db.Snippet{}, id); res.Error != nil {
			return errors.Wrap(res.Error, "delete snippet")
		}
		return nil
	})
}

func (s *Snippets) TagsFor(userID, snippetID uint64) ([]db.Tag, error) {
	if _, err := s.GetByID(userID, snippetID); err != nil {
		return nil, err
	}

	sql, args, err := squirrel.
		Select("t.id", "t.name", "t.user_id").From("tags t").
		Join("snippet_tags st ON st.tag_id = t.id").
		OrderBy("t.id").
		Where(squirrel.Eq{"st.snippet_id": snippetID}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}

	tags := make([]db.Tag, 0)
	res := s.db.Raw(sql, args...).Scan(&tags)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "scan")
	}
	return tags, nil
}

// ToggleFavorite flips the user_favorites junction row for the caller's
// snippet. Returns true when the snippet ends up favorited.
func (s *Snippets) ToggleFavorite(userID, snippetID uint64) (bool, error) {
	if _, err := s.GetByID(userID, snippetID); err != nil {
		return false, err
	}

	favorited := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		res := tx.Table("user_favorites").
			Where("user_id = ? AND snippet_id = ?", userID, snippetID).
			Count(&count)
		if res.Error != nil {
			return errors.Wrap(res.Error, "count favorites")
		}

		if count > 0 {
			res = tx.Exec("DELETE FROM user_favorites WHERE user_id = ? AND snippet_id = ?", userID, snippetID)
		} else {
			res = tx.Exec("INSERT INTO user_favorites (user_id, snippet_id) VALUES (?, ?)", userID, snippetID)
			favorited = true
		}
		if res.Error != nil {
			return errors.Wrap(res.Error, "toggle favorite")
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return favorited, nil
}

func (s *Snippets) Favorites(userID uint64) ([]db.Snippet, error) {
	sql, args, err := squirrel.
		Select("s.id", "s.title", "s.description", "s.code", "s.language", "s.user_id").
		From("snippets s").
		Join("user_favorites uf ON uf.snippet_id = s.id").
		OrderBy("s.id").
		Where(squirrel.Eq{"uf.user_id": userID}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}

	snippets := make([]db.Snippet, 0)
	res := s.db.Raw(sql, args...).Scan(&snippets)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "scan")
	}
	return snippets, nil
}

func validateTagOwnership(tx *gorm.DB, userID uint64, tagIDs []uint64) error {
	if len(tagIDs) == 0 {
		return nil
	}

	unique := make(map[uint64]struct{}, len(tagIDs))
	for _, id := range tagIDs {
		unique[id] = struct{}{}
	}

	var count int64
	res := tx.Model(&db.Tag{}).
		Where("id IN ? AND user_id = ?", tagIDs, userID).
		Count(&count)
	if res.Error != nil {
		return errors.Wrap(res.Error, "count tags")
	}
	if count != int64(len(unique)) {
		return ErrInvalidTags
	}
	return nil
}

func tagRefs(tagIDs []uint64) []db.Tag {
	refs := make([]db.Tag, len(tagIDs))
	for i := range tagIDs {
		refs[i] = db.Tag{
			GormForkedModel: db.GormForkedModel{
				ID: tagIDs[i],
			},
		}
	}
	return refs
}
