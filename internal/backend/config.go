package backend

import (
	"fmt"

	"budgetcal/internal/config"
)

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	DatabaseURL  string
	UsersFile    string

	PropagationMode string
	AMQPURL         string
	AMQPExchange    string
	AMQPQueue       string
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:            backendType,
		SQLiteDBPath:    appConfig.SQLiteDBPath,
		DatabaseURL:     appConfig.DatabaseURL,
		UsersFile:       appConfig.UsersFile,
		PropagationMode: appConfig.PropagationMode,
		AMQPURL:         appConfig.AMQPURL,
		AMQPExchange:    appConfig.AMQPExchange,
		AMQPQueue:       appConfig.AMQPQueue,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for postgres backend")
		}
	case MemoryBackend:
		// users file is optional
	}

	switch c.PropagationMode {
	case "", config.PropagationLocal:
	case config.PropagationAMQP:
		if c.AMQPURL == "" {
			return fmt.Errorf("AMQP URL is required for amqp propagation")
		}
	default:
		return fmt.Errorf("invalid propagation mode: %s", c.PropagationMode)
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, PostgresBackend}
}
