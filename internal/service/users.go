package service

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/snippetsmaster/snippets-back/internal/auth"
	"github.com/snippetsmaster/snippets-back/internal/db"
)

type (
	Users struct {
		db     *gorm.DB
		logger *zap.SugaredLogger
	}

	UserUpdate struct {
		UserName string
		Email    string
		Password string
	}
)

func NewUsers(gdb *gorm.DB, l *zap.SugaredLogger) *Users {
	return &Users{
		db:     gdb,
		logger: l,
	}
}

func (s *Users) GetAll() ([]db.User, error) {
	users := make([]db.User, 0)
	res := s.db.Order("id").Find(&users)
	if res.Error != nil {
		return nil, res.Error
	}
	return users, nil
}

// GetByID returns the caller's own record; admins may fetch any record.
// Everything else is reported as not found.
func (s *Users) GetByID(callerID uint64, callerRole string, id uint64) (*db.User, error) {
	if err := ownUserOrAdmin(callerID, callerRole, id); err != nil {
		return nil, err
	}

	user := db.User{}
	res := s.db.Where("id = ?", id).First(&user)
	if res.Error != nil {
		if res.Error == gorm.ErrRecordNotFound {
			return nil, ErrUserNotFound
		}
		return nil, res.Error
	}
	return &user, nil
}

func (s *Users) Update(callerID uint64, callerRole string, id uint64, in UserUpdate) (*db.User, error) {
	user, err := s.GetByID(callerID, callerRole, id)
	if err != nil {
		return nil, err
	}

	changed := false

	if in.UserName != "" && in.UserName != user.UserName {
		if err := s.checkUserNameFree(in.UserName, id); err != nil {
			return nil, err
		}
		user.UserName = in.UserName
		changed = true
	}

	if in.Email != "" && in.Email != user.Email {
		if err := s.checkEmailFree(in.Email, id); err != nil {
			return nil, err
		}
		user.Email = in.Email
		changed = true
	}

	if in.Password != "" {
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		user.Password = hash
		changed = true
	}

	if !changed {
		return nil, ErrNothingToUpdate
	}

	if res := s.db.Save(user); res.Error != nil {
		return nil, errors.Wrap(res.Error, "update user")
	}
	return user, nil
}

func (s *Users) Delete(callerID uint64, callerRole string, id uint64) error {
	user, err := s.GetByID(callerID, callerRole, id)
	if err != nil {
		return err
	}

	user.IsDeleted = true
	if res := s.db.Save(user); res.Error != nil {
		return errors.Wrap(res.Error, "soft delete user")
	}

	s.logger.Infow("user soft-deleted", "id", id)
	return nil
}

func (s *Users) checkUserNameFree(userName string, selfID uint64) error {
	other := db.User{}
	res := s.db.Where("user_name = ? AND is_deleted = ? AND id <> ?", userName, false, selfID).First(&other)
	if res.Error == nil {
		return ErrUserNameTaken
	}
	if res.Error != gorm.ErrRecordNotFound {
		return errors.Wrap(res.Error, "find user by username")
	}
	return nil
}

func (s *Users) checkEmailFree(email string, selfID uint64) error {
	other := db.User{}
	res := s.db.Where("email = ? AND is_deleted = ? AND id <> ?", email, false, selfID).First(&other)
	if res.Error == nil {
		return ErrEmailInUse
	}
	if res.Error != gorm.ErrRecordNotFound {
		return errors.Wrap(res.Error, "find user by email")
	}
	return nil
}

func ownUserOrAdmin(callerID uint64, callerRole string, id uint64) error {
	if callerID != id && callerRole != db.RoleAdmin {
		return ErrUserNotFound
	}
	return nil
}
