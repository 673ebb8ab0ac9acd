package winauto

import (
	"go.uber.org/zap"

	"ScribePilot/internal/config"
	"ScribePilot/internal/oracle"
)

// Driver объединяет зонды и автоматизацию одного рабочего места: обе стороны
// смотрят на одни и те же окна внешних приложений.
type Driver interface {
	oracle.Probes
	oracle.Automation
}

// New возвращает платформенную реализацию. Вне Windows — ошибка: скрейп окон
// и инъекция клавиш существуют только там.
func New(cfg *config.Config, logger *zap.SugaredLogger) (Driver, error) {
	return newDriver(cfg, logger)
}
