package logger

import (
	"go.uber.org/zap"
)

// NewNamed builds a named zap logger for the given environment. Production
// gets JSON output, everything else the development console encoder.
func NewNamed(appEnv, name string) (*zap.Logger, error) {
	var cfg zap.Config
	if appEnv == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return log.Named(name), nil
}
