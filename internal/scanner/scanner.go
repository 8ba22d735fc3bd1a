// Package scanner adapts external barcode scanning capabilities to a single
// Scan call returning a models.ScanOutcome.
package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/franckalain/nutriscan/internal/logger"
	"github.com/franckalain/nutriscan/internal/models"
)

var (
	// ErrUnsupportedScanner is returned by NewFactory for an unknown type.
	ErrUnsupportedScanner = errors.New("unsupported scanner type")
	// ErrRelayClosed is returned when the device went away before answering.
	ErrRelayClosed = errors.New("device connection closed")
)

// Scanner decodes a single barcode using some external capability
type Scanner interface {
	Scan(ctx context.Context, formats []models.Format) (models.ScanOutcome, error)
}

// Relay forwards a request to the user's device and waits for its reply.
type Relay interface {
	Request(ctx context.Context, kind string, payload any) (json.RawMessage, error)
}

// ScannerFactory creates scanners bound to one device connection
type ScannerFactory interface {
	// Load prepares shared resources (clients, credentials)
	Load(ctx context.Context) error
	// CreateScanner returns a scanner that talks to the device through relay
	CreateScanner(relay Relay) Scanner
}

// NewFactory creates a scanner factory for the given scanner type.
func NewFactory(scannerType, configPath string, log logger.ILogger) (ScannerFactory, error) {
	if log == nil {
		log = logger.NewNop()
	}

	switch scannerType {
	case "device":
		return NewDeviceScannerFactory(log), nil
	case "google":
		config := GoogleConfig{
			BaseConfig: BaseConfig{
				ConfigPath: configPath,
				log:        log,
			},
		}
		if err := config.Load(); err != nil {
			return nil, fmt.Errorf("failed to load Google config: %w", err)
		}
		return NewGoogleScannerFactory(config, log), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScanner, scannerType)
	}
}
