package ollama

import (
	"go.uber.org/zap"

	"github.com/xiaot623/helia/internal/config"
)

// ModeMock selects the offline mock generator.
const ModeMock = "MOCK"

// NewGenerator creates a Generator from cfg. If cfg.Mode is MOCK a MockClient
// is returned; otherwise a real Client.
func NewGenerator(cfg *config.Config, logger *zap.Logger) Generator {
	if cfg.Mode == ModeMock {
		logger.Info("HELIA_MODE=MOCK detected, using mock generator")
		return NewMockClient()
	}
	return NewClient(cfg.BaseURL(), cfg.RequestTimeout(), cfg.ModelsTimeout(), logger)
}
