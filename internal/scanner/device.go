package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/franckalain/nutriscan/internal/logger"
	"github.com/franckalain/nutriscan/internal/models"
)

const (
	KindScanRequest    = "scan_request"
	KindCaptureRequest = "capture_request"
)

type scanRequest struct {
	Formats []models.Format `json:"formats"`
}

// deviceBarcode is one symbol as reported by the device plugin.
type deviceBarcode struct {
	DisplayValue string `json:"displayValue"`
	RawValue     string `json:"rawValue"`
	Format       string `json:"format"`
}

func (b deviceBarcode) value() string {
	if v := strings.TrimSpace(b.DisplayValue); v != "" {
		return v
	}
	return strings.TrimSpace(b.RawValue)
}

// DeviceResult covers the reply shapes device plugins use: a list of
// barcodes, a single barcode (string or object) with a cancelled flag, or an
// error message.
type DeviceResult struct {
	Barcodes  []deviceBarcode `json:"barcodes"`
	Barcode   json.RawMessage `json:"barcode"`
	Cancelled bool            `json:"cancelled"`
	Error     *string         `json:"error"`
}

// NormalizeDeviceResult maps a raw device reply to a ScanOutcome. A null or
// empty reply means the user closed the scanner.
func NormalizeDeviceResult(raw json.RawMessage) models.ScanOutcome {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return models.Cancelled()
	}

	var res DeviceResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return models.Failed(fmt.Sprintf("invalid device response: %v", err))
	}

	switch {
	case res.Error != nil:
		return models.Failed(strings.TrimSpace(*res.Error))
	case res.Cancelled:
		return models.Cancelled()
	case len(res.Barcodes) > 0:
		return decodedOrEmpty(res.Barcodes[0].value())
	case len(res.Barcode) > 0:
		return decodedOrEmpty(singleBarcode(res.Barcode))
	default:
		return models.NoResult()
	}
}

func singleBarcode(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var b deviceBarcode
	if err := json.Unmarshal(raw, &b); err == nil {
		return b.value()
	}
	return ""
}

func decodedOrEmpty(symbol string) models.ScanOutcome {
	if symbol == "" {
		return models.NoResult()
	}
	return models.Decoded(symbol)
}

// DeviceScanner lets the device's own camera plugin decode the symbol.
type DeviceScanner struct {
	relay Relay
	log   logger.ILogger
}

type DeviceScannerFactory struct {
	log logger.ILogger
}

func NewDeviceScannerFactory(log logger.ILogger) *DeviceScannerFactory {
	return &DeviceScannerFactory{log: log}
}

func (f *DeviceScannerFactory) Load(ctx context.Context) error {
	return nil
}

func (f *DeviceScannerFactory) CreateScanner(relay Relay) Scanner {
	return &DeviceScanner{relay: relay, log: f.log}
}

func (s *DeviceScanner) Scan(ctx context.Context, formats []models.Format) (models.ScanOutcome, error) {
	raw, err := s.relay.Request(ctx, KindScanRequest, scanRequest{Formats: formats})
	if err != nil {
		return models.ScanOutcome{}, err
	}
	outcome := NormalizeDeviceResult(raw)
	s.log.Debug("scanner", "device scan finished", map[string]interface{}{"outcome": outcome.Kind})
	return outcome, nil
}
