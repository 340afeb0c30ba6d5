// Package logging builds the zap loggers used across the scraper service.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "shopcrawl"

// New builds the process-wide logger. Development mode uses the colored
// console encoder; production emits JSON tagged with the service name so
// crawl runs can be filtered in aggregated logs.
func New(development bool) (*zap.Logger, error) {
	cfg := configFor(development)
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

func configFor(development bool) zap.Config {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.InitialFields = map[string]any{"service": serviceName}
	return cfg
}
