//go:build !windows

package winauto

import (
	"errors"

	"go.uber.org/zap"

	"ScribePilot/internal/config"
)

func newDriver(_ *config.Config, _ *zap.SugaredLogger) (Driver, error) {
	return nil, errors.New("winauto: window automation unavailable on this platform")
}
