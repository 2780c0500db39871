package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/snippetsmaster/snippets-back/internal/auth"
	"github.com/snippetsmaster/snippets-back/internal/config"
	"github.com/snippetsmaster/snippets-back/internal/db"
	"github.com/snippetsmaster/snippets-back/internal/service"
)

type (
	RegisterReq struct {
		UserName string `json:"userName" validate:"required"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginReq struct {
		UserName string `json:"userName" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	GoogleLoginReq struct {
		Token string `json:"token" validate:"required"`
	}

	UserUpdateReq struct {
		UserName string `json:"userName"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	FavoriteReq struct {
		SnippetID uint64 `json:"snippetId" validate:"required"`
	}

	TagReq struct {
		Name string `json:"name" validate:"required"`
	}

	SnippetCreateReq struct {
		Title       string   `json:"title" validate:"required"`
		Description string   `json:"description" validate:"required"`
		Code        string   `json:"code" validate:"required"`
		Language    string   `json:"language" validate:"required"`
		Tags        []uint64 `json:"tags"`
	}

	SnippetUpdateReq struct {
		Title       string    `json:"title"`
		Description string    `json:"description"`
		Code        string    `json:"code"`
		Language    string    `json:"language"`
		Tags        *[]uint64 `json:"tags"`
	}

	TokenResp struct {
		Token string `json:"token"`
	}

	MessageResp struct {
		Message string `json:"message"`
	}

	UserResp struct {
		ID        uint64    `json:"id"`
		UserName  string    `json:"userName"`
		Email     string    `json:"email"`
		Role      string    `json:"role"`
		IsDeleted bool      `json:"isDeleted"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	TagResp struct {
		ID   uint64 `json:"id"`
		Name string `json:"name"`
	}

	SnippetResp struct {
		ID          uint64    `json:"id"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		Code        string    `json:"code"`
		Language    string    `json:"language"`
		Tags        []TagResp `json:"tags,omitempty"`
	}

	Caller struct {
		ID   uint64
		Role string
	}

	CustomValidator struct {
		validator *validator.Validate
	}

	HTTPServer struct {
		auth     *service.Auth
		users    *service.Users
		tags     *service.Tags
		snippets *service.Snippets
		tokens   *auth.TokenService
		logger   *zap.SugaredLogger
		echo     *echo.Echo
	}
)

func NewHTTPServer(
	lc fx.Lifecycle,
	cfg *config.Config,
	authSvc *service.Auth,
	users *service.Users,
	tags *service.Tags,
	snippets *service.Snippets,
	tokens *auth.TokenService,
	logger *zap.SugaredLogger,
) *HTTPServer {
	instance := newServer(authSvc, users, tags, snippets, tokens, logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				listen := cfg.Host + ":" + cfg.Port
				if err := instance.echo.Start(listen); err != nil && err != http.ErrServerClosed {
					instance.echo.Logger.Fatal("shutting down the server")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping HTTP server.")
			return instance.echo.Shutdown(ctx)
		},
	})

	return instance
}

func newServer(
	authSvc *service.Auth,
	users *service.Users,
	tags *service.Tags,
	snippets *service.Snippets,
	tokens *auth.TokenService,
	logger *zap.SugaredLogger,
) *HTTPServer {
	e := echo.New()

	instance := HTTPServer{
		auth:     authSvc,
		users:    users,
		tags:     tags,
		snippets: snippets,
		tokens:   tokens,
		logger:   logger,
		echo:     e,
	}

	e.POST("/auth/register", instance.Register)
	e.POST("/auth/login", instance.Login)
	e.POST("/auth/google-login", instance.GoogleLogin)

	e.GET("/users/all", instance.UserGetAll, instance.RequireAdmin)
	e.GET("/users/:id", instance.UserGet)
	e.PUT("/users/:id", instance.UserUpdate)
	e.DELETE("/users/:id", instance.UserDelete)

	e.POST("/user/favorites", instance.FavoriteToggle)
	e.GET("/user/favorites", instance.FavoriteList)

	e.GET("/tags/all", instance.TagGetAll, instance.RequireAdmin)
	tagG := e.Group("/user/tags")
	tagG.GET("", instance.TagGetMine)
	tagG.POST("", instance.TagCreate)
	tagG.GET("/:id", instance.TagGet)
	tagG.PUT("/:id", instance.TagUpdate)
	tagG.DELETE("/:id", instance.TagDelete)

	e.GET("/snippets/all", instance.SnippetGetAll, instance.RequireAdmin)
	snippetG := e.Group("/user/snippets")
	snippetG.GET("", instance.SnippetGetMine)
	snippetG.POST("", instance.SnippetCreate)
	snippetG.GET("/:id", instance.SnippetGet)
	snippetG.PUT("/:id", instance.SnippetUpdate)
	snippetG.DELETE("/:id", instance.SnippetDelete)
	e.GET("/snippet/tags/:id", instance.SnippetTags)

	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	e.Use(middleware.CORS())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyDumpWithConfig(middleware.BodyDumpConfig{
		Handler: func(c echo.Context, reqBody, resBody []byte) {
			if len(reqBody) == 0 {
				return
			}
			logger.Debugw("request",
				"method", c.Request().Method,
				"path", c.Path(),
				"body", string(censorBody(reqBody)),
			)
		},
	}))

	e.Use(instance.AuthMiddleware)

	e.Validator = &CustomValidator{validator: validator.New()}

	echo.NotFoundHandler = func(c echo.Context) error {
		return c.NoContent(http.StatusNotFound)
	}

	return &instance
}

func (s *HTTPServer) Register(c echo.Context) error {
	req := RegisterReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	if err := s.auth.Register(req.UserName, req.Email, req.Password); err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusCreated, MessageResp{Message: "User created successfully"})
}

func (s *HTTPServer) Login(c echo.Context) error {
	req := LoginReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	token, err := s.auth.Login(req.UserName, req.Password)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, TokenResp{Token: token})
}

func (s *HTTPServer) GoogleLogin(c echo.Context) error {
	req := GoogleLoginReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	token, err := s.auth.GoogleLogin(c.Request().Context(), req.Token)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, TokenResp{Token: token})
}

func (s *HTTPServer) UserGetAll(c echo.Context) error {
	users, err := s.users.GetAll()
	if err != nil {
		return mapServiceError(err)
	}

	resp := make([]UserResp, len(users))
	for i := range users {
		resp[i] = toUserResp(&users[i])
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) UserGet(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	caller, err := GetCallerFromContext(c)
	if err != nil {
		return err
	}

	user, err := s.users.GetByID(caller.ID, caller.Role, id)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, toUserResp(user))
}

func (s *HTTPServer) UserUpdate(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	caller, err := GetCallerFromContext(c)
	if err != nil {
		return err
	}

	req := UserUpdateReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := s.users.Update(caller.ID, caller.Role, id, service.UserUpdate{
		UserName: req.UserName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, struct {
		Message string   `json:"message"`
		User    UserResp `json:"user"`
	}{
		Message: "User updated successfully",
		User:    toUserResp(user),
	})
}

func (s *HTTPServer) UserDelete(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	caller, err := GetCallerFromContext(c)
	if err != nil {
		return err
	}

	if err := s.users.Delete(caller.ID, caller.Role, id); err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, MessageResp{Message: "User deleted successfully"})
}

func (s *HTTPServer) FavoriteToggle(c echo.Context) error {
	caller, err := GetCallerFromContext(c)
	if err != nil {
		return err
	}

	req := FavoriteReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	favorited, err := s.snippets.ToggleFavorite(caller.ID, req.SnippetID)
	if err != nil {
		return mapServiceError(err)
	}

	msg := "Snippet removed from favorites"
	if favorited {
		msg = "Snippet added to favorites"
	}
	return c.JSON(http.StatusOK, MessageResp{Message: msg})
}

func (s *HTTPServer) FavoriteList(c echo.Context) error {
	caller, err := GetCallerFromContext(c)
	if err != nil {
		return err
	}

	snippets, err := s.snippets.Favorites(caller.ID)
	if err != nil {
		return mapServiceError(err)
	}

	resp := make([]SnippetResp, len(snippets))
	for i := range snippets {
		resp[i] = toSnippetResp(&snippets[i])
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) TagGetAll(c echo.Context) error {
	tags, err := s.tags.GetAll()
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, toTagResps(tags))
}

func (s *HTTPServer) TagGetMine(c echo.Context) error {
	caller, err := GetCallerFromContext(c)
	if err != nil {
		return err
	}

	tags, err := s.tags.GetMine(caller.ID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, toTagResps(tags))
}

func (s *HTTPServer) TagGet(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	caller, err := GetCallerFromContext(c)
	if err != nil {
		return err
	}

	tag, err := s.tags.GetByID(caller.ID, id)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, TagResp{ID: tag.ID, Name: tag.Name})
}

func (s *HTTPServer) TagCreate(c echo.Context) error {
	caller, err := GetCallerFromContext(c)
	if err != nil {
		return err
	}

	req := TagReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	tag, err := s.tags.Create(caller.ID, req.Name)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, TagResp{ID: tag.ID, Name: tag.Name})
}

func (s *HTTPServer) TagUpdate(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	caller, err := GetCallerFromContext(c)
	if err != nil {
		return err
	}

	req := TagReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	tag, err := s.tags.Update(caller.ID, id, req.Name)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, TagResp{ID: tag.ID, Name: tag.Name})
}

func (s *HTTPServer) TagDelete(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	caller, err := GetCallerFromContext(c)
	if err != nil {
		return err
	}

	if err := s.tags.Delete(caller.ID, id); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, MessageResp{Message: "Tag deleted"})
}

func (s *HTTPServer) SnippetGetAll(c echo.Context) error {
	snippets, err := s.snippets.GetAll()
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, toSnippetResps(snippets))
}

func (s *HTTPServer) SnippetGetMine(c echo.Context) error {
	caller, err := GetCallerFromContext(c)
	if err != nil {
		return err
	}

	snippets, err := s.snippets.GetMine(caller.ID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, toSnippetResps(snippets))
}

func (s *HTTPServer) SnippetGet(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	caller, err := GetCallerFromContext(c)
	if err != nil {
		return err
	}

	snippet, err := s.snippets.GetByID(caller.ID, id)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, toSnippetResp(snippet))
}

func (s *HTTPServer) SnippetCreate(c echo.Context) error {
	caller, err := GetCallerFromContext(c)
	if err != nil {
		return err
	}

	req := SnippetCreateReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	snippet, err := s.snippets.Create(caller.ID, service.SnippetCreate{
		Title:       req.Title,
		Description: req.Description,
		Code:        req.Code,
		Language:    req.Language,
		TagIDs:      req.Tags,
	})
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, toSnippetResp(snippet))
}

func (s *HTTPServer) SnippetUpdate(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	caller, err := GetCallerFromContext(c)
	if err != nil {
		return err
	}

	req := SnippetUpdateReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	snippet, err := s.snippets.Update(caller.ID, id, service.SnippetUpdate{
		Title:       req.Title,
		Description: req.Description,
		Code:        req.Code,
		Language:    req.Language,
		TagIDs:      req.Tags,
	})
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, struct {
		Message string      `json:"message"`
		Snippet SnippetResp `json:"snippet"`
	}{
		Message: "Snippet updated successfully",
		Snippet: toSnippetResp(snippet),
	})
}

func (s *HTTPServer) SnippetDelete(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	caller, err := GetCallerFromContext(c)
	if err != nil {
		return err
	}

	if err := s.snippets.Delete(caller.ID, id); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, MessageResp{Message: "Snippet deleted successfully"})
}

func (s *HTTPServer) SnippetTags(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	caller, err := GetCallerFromContext(c)
	if err != nil {
		return err
	}

	tags, err := s.snippets.TagsFor(caller.ID, id)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, toTagResps(tags))
}

func (s *HTTPServer) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if isPublicPath(c.Path()) {
			return next(c)
		}

		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, MessageResp{Message: "Unauthorized"})
		}

		userID, role, err := s.tokens.Validate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, MessageResp{Message: "Access Denied. Invalid token."})
		}

		c.Set("caller", &Caller{ID: userID, Role: role})
		return next(c)
	}
}

func (s *HTTPServer) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		caller, err := GetCallerFromContext(c)
		if err != nil {
			return err
		}
		if caller.Role != db.RoleAdmin {
			return c.JSON(http.StatusForbidden, MessageResp{Message: "Admin access required"})
		}
		return next(c)
	}
}

func isPublicPath(path string) bool {
	switch path {
	case "/auth/register", "/auth/login", "/auth/google-login", "/ping":
		return true
	}
	return false
}

////////

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			if fieldErrs[0].Tag() == "required" {
				return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s is required", fieldErrs[0].Field()))
			}
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func BindAndValidate(c echo.Context, v interface{}) error {
	var err error
	if err = c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err = c.Validate(v); err != nil {
		return err
	}
	return nil
}

func GetCallerFromContext(c echo.Context) (*Caller, error) {
	caller, ok := c.Get("caller").(*Caller)
	if !ok || caller == nil {
		return nil, errors.New("no caller found in context")
	}
	return caller, nil
}

func GetParam(c echo.Context, name string) (string, error) {
	value := c.Param(name)
	if value == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid path param 'id'")
	}
	return value, nil
}

func GetAndParseParam(c echo.Context, name string) (uint64, error) {
	v, e := GetParam(c, name)
	if e != nil {
		return 0, e
	}
	vv, e := strconv.ParseUint(v, 10, 64)
	if e != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid path param 'id'")
	}
	return vv, nil
}

func mapServiceError(err error) error {
	switch errors.Cause(err) {
	case service.ErrUserNotFound, service.ErrTagNotFound, service.ErrSnippetNotFound:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case service.ErrUserExists, service.ErrUserNameTaken, service.ErrEmailInUse,
		service.ErrInvalidCredentials, service.ErrNothingToUpdate,
		service.ErrTagExists, service.ErrInvalidTags, service.ErrNoChanges:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case auth.ErrGoogleTokenInvalid:
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	return err
}

func toUserResp(u *db.User) UserResp {
	return UserResp{
		ID:        u.ID,
		UserName:  u.UserName,
		Email:     u.Email,
		Role:      u.Role,
		IsDeleted: u.IsDeleted,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toTagResps(tags []db.Tag) []TagResp {
	resp := make([]TagResp, len(tags))
	for i := range tags {
		resp[i] = TagResp{
			ID:   tags[i].ID,
			Name: tags[i].Name,
		}
	}
	return resp
}

func toSnippetResp(s *db.Snippet) SnippetResp {
	return SnippetResp{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		Code:        s.Code,
		Language:    s.Language,
		Tags:        toTagResps(s.Tags),
	}
}

func toSnippetResps(snippets []db.Snippet) []SnippetResp {
	resp := make([]SnippetResp, len(snippets))
	for i := range snippets {
		resp[i] = toSnippetResp(&snippets[i])
	}
	return resp
}

var censoredFields = []string{"password", "token"}

// censorBody blanks credential fields before a request body hits the log.
func censorBody(b []byte) []byte {
	body := map[string]interface{}{}
	if err := json.Unmarshal(b, &body); err != nil {
		return []byte(`"$unparsable"`)
	}
	for _, field := range censoredFields {
		if _, ok := body[field]; ok {
			body[field] = "$censored"
		}
	}
	out, err := json.Marshal(body)
	if err != nil {
		return []byte(`"$unparsable"`)
	}
	return out
}
