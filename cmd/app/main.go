package main

import (
	"go.uber.org/fx"

	"github.com/snippetsmaster/snippets-back/internal/auth"
	"github.com/snippetsmaster/snippets-back/internal/config"
	"github.com/snippetsmaster/snippets-back/internal/db"
	"github.com/snippetsmaster/snippets-back/internal/logging"
	"github.com/snippetsmaster/snippets-back/internal/service"
	"github.com/snippetsmaster/snippets-back/internal/transport"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.NewConfig,
			logging.NewLogger,
			db.NewGormClient,
			auth.NewTokenService,
			auth.NewGoogleVerifier,
			service.NewAuth,
			service.NewUsers,
			service.NewTags,
			service.NewSnippets,
			transport.NewHTTPServer,
		),
		fx.Invoke(func(*transport.HTTPServer) {}),
	)

	app.Run()
}
