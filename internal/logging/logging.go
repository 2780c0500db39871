package logging

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func NewLogger() (*zap.SugaredLogger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, errors.Wrap(err, "build zap logger")
	}
	return logger.Sugar(), nil
}
