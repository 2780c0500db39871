package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/snippetsmaster/snippets-back/internal/auth"
	"github.com/snippetsmaster/snippets-back/internal/db"
)

type Auth struct {
	db     *gorm.DB
	tokens *auth.TokenService
	google auth.GoogleVerifier
	logger *zap.SugaredLogger
}

func NewAuth(gdb *gorm.DB, tokens *auth.TokenService, google auth.GoogleVerifier, l *zap.SugaredLogger) *Auth {
	return &Auth{
		db:     gdb,
		tokens: tokens,
		google: google,
		logger: l,
	}
}

func (s *Auth) Register(userName, email, password string) error {
	existing := db.User{}
	res := s.db.Where("email = ? AND is_deleted = ?", email, false).First(&existing)
	if res.Error == nil {
		return ErrUserExists
	}
	if res.Error != gorm.ErrRecordNotFound {
		return errors.Wrap(res.Error, "find user by email")
	}

	res = s.db.Where("user_name = ? AND is_deleted = ?", userName, false).First(&existing)
	if res.Error == nil {
		return ErrUserNameTaken
	}
	if res.Error != gorm.ErrRecordNotFound {
		return errors.Wrap(res.Error, "find user by username")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	res = s.db.Create(&db.User{
		UserName: userName,
		Email:    email,
		Password: hash,
		Role:     db.RoleUser,
	})
	if res.Error != nil {
		return errors.Wrap(res.Error, "create user")
	}
	return nil
}

func (s *Auth) Login(userName, password string) (string, error) {
	user := db.User{}
	res := s.db.Where("user_name = ? AND is_deleted = ?", userName, false).First(&user)
	if res.Error != nil {
		if res.Error == gorm.ErrRecordNotFound {
			return "", ErrUserNotFound
		}
		return "", errors.Wrap(res.Error, "find user")
	}

	// Federated accounts have no local password.
	if user.Password == "" {
		return "", ErrInvalidCredentials
	}
	if err := auth.CheckPassword(user.Password, password); err != nil {
		return "", ErrInvalidCredentials
	}

	return s.tokens.Generate(user.ID, user.Role)
}

func (s *Auth) GoogleLogin(ctx context.Context, idToken string) (string, error) {
	identity, err := s.google.Verify(ctx, idToken)
	if err != nil {
		s.logger.Infow("google login rejected", "error", err)
		return "", auth.ErrGoogleTokenInvalid
	}

	user := db.User{}
	res := s.db.Where("google_id = ?", identity.Sub).First(&user)
	if res.Error == gorm.ErrRecordNotFound {
		res = s.db.Where("email = ? AND is_deleted = ?", identity.Email, false).First(&user)
	}
	if res.Error != nil {
		if res.Error != gorm.ErrRecordNotFound {
			return "", errors.Wrap(res.Error, "find user")
		}
		created, err := s.createGoogleUser(identity)
		if err != nil {
			return "", err
		}
		user = *created
	} else if user.GoogleID == "" {
		user.GoogleID = identity.Sub
		if res := s.db.Save(&user); res.Error != nil {
			return "", errors.Wrap(res.Error, "link google id")
		}
	}

	return s.tokens.Generate(user.ID, user.Role)
}

func (s *Auth) createGoogleUser(identity *auth.GoogleIdentity) (*db.User, error) {
	userName := strings.TrimSpace(identity.Name)
	if userName == "" {
		userName = strings.Split(identity.Email, "@")[0]
	}

	taken := db.User{}
	res := s.db.Where("user_name = ? AND is_deleted = ?", userName, false).First(&taken)
	if res.Error == nil {
		userName = userName + "-" + uuid.New().String()[:8]
	} else if res.Error != gorm.ErrRecordNotFound {
		return nil, errors.Wrap(res.Error, "find user by username")
	}

	user := db.User{
		UserName: userName,
		Email:    identity.Email,
		Role:     db.RoleUser,
		GoogleID: identity.Sub,
	}
	if res := s.db.Create(&user); res.Error != nil {
		return nil, errors.Wrap(res.Error, "create google user")
	}

	s.logger.Infow("created user from google identity", "id", user.ID)
	return &user, nil
}
