// Package scan drives one barcode scan attempt from the user's request to a
// displayable result.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/franckalain/nutriscan/internal/logger"
	"github.com/franckalain/nutriscan/internal/models"
)

// ErrScanInProgress is returned when a scan is requested while another one
// is still running.
var ErrScanInProgress = errors.New("scan already in progress")

// Scanner is the external capability that opens the camera and decodes one
// symbol.
type Scanner interface {
	Scan(ctx context.Context, formats []models.Format) (models.ScanOutcome, error)
}

// Lookup resolves a decoded barcode to product data.
type Lookup interface {
	Lookup(ctx context.Context, code models.Barcode) models.LookupResult
}

// Listener receives every snapshot the controller publishes, in order.
type Listener func(Snapshot)

// Controller owns the scan lifecycle for one presentation surface. At most
// one attempt runs at a time.
type Controller struct {
	scanner Scanner
	lookup  Lookup
	formats []models.Format
	notify  Listener
	log     logger.ILogger
	tracer  trace.Tracer

	busy atomic.Bool

	mu          sync.Mutex
	state       State
	displayMode bool
	barcode     models.Barcode
	result      *models.LookupResult
	message     string
	messageKind MessageKind
}

// Option configures a Controller.
type Option func(*Controller)

// WithFormats overrides the symbologies requested from the scanner.
func WithFormats(formats ...models.Format) Option {
	return func(c *Controller) { c.formats = formats }
}

// WithListener registers the callback that receives every snapshot.
func WithListener(l Listener) Option {
	return func(c *Controller) { c.notify = l }
}

// WithLogger sets the controller's logger.
func WithLogger(l logger.ILogger) Option {
	return func(c *Controller) { c.log = l }
}

// NewController creates an idle controller that scans with scanner and
// resolves decoded barcodes with lookup.
func NewController(scanner Scanner, lookup Lookup, opts ...Option) *Controller {
	c := &Controller{
		scanner: scanner,
		lookup:  lookup,
		formats: models.RetailFormats,
		notify:  func(Snapshot) {},
		log:     logger.NewNop(),
		tracer:  otel.Tracer("github.com/franckalain/nutriscan/internal/scan"),
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// DisplayMode reports whether the camera view should currently be shown.
func (c *Controller) DisplayMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.displayMode
}

// Trigger runs one scan attempt to completion and returns the snapshot the
// attempt ended with. It fails only with ErrScanInProgress; every scan or
// lookup failure is reported through the snapshot. The display mode is
// always off again when Trigger returns.
func (c *Controller) Trigger(ctx context.Context) (Snapshot, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return c.Snapshot(), ErrScanInProgress
	}
	defer c.busy.Store(false)

	ctx, span := c.tracer.Start(ctx, "scan.Attempt")
	defer span.End()

	c.update(func() {
		c.state = StateScanning
		c.displayMode = true
		c.barcode = ""
		c.result = nil
		c.message = ""
		c.messageKind = MessageNone
	})
	c.log.Debug("scan", "scan started", map[string]interface{}{"formats": c.formats})

	outcome := c.runScanner(ctx)
	span.SetAttributes(attribute.String("scan.outcome", string(outcome.Kind)))

	final := c.finish(ctx, outcome)
	if final.Result != nil {
		span.SetAttributes(attribute.String("lookup.status", string(final.Result.Status)))
	}

	c.update(func() { c.state = StateIdle })
	return final, nil
}

// runScanner calls the external scanner and turns errors and panics into a
// failed outcome. Display mode is cleared before it returns on every path.
func (c *Controller) runScanner(ctx context.Context) (outcome models.ScanOutcome) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("scan", "scanner panicked", map[string]interface{}{"panic": fmt.Sprint(r)})
			outcome = models.Failed(panicReason(r))
		}
		c.mu.Lock()
		c.displayMode = false
		c.mu.Unlock()
	}()

	out, err := c.scanner.Scan(ctx, c.formats)
	if err != nil {
		c.log.Warn("scan", "scanner returned an error", map[string]interface{}{"error": err.Error()})
		return models.Failed(err.Error())
	}
	switch out.Kind {
	case models.OutcomeDecoded:
		if out.Symbol == "" {
			return models.NoResult()
		}
		return models.Decoded(out.Symbol)
	case models.OutcomeCancelled, models.OutcomeNoResult:
		return out
	default:
		return models.Failed(out.Reason)
	}
}

func (c *Controller) finish(ctx context.Context, outcome models.ScanOutcome) Snapshot {
	switch outcome.Kind {
	case models.OutcomeDecoded:
		code := models.Barcode(outcome.Symbol)
		c.log.Info("scan", "barcode decoded", map[string]interface{}{"barcode": code})
		c.update(func() {
			c.state = StateDecoded
			c.barcode = code
		})

		result := c.lookup.Lookup(ctx, code)
		return c.update(func() {
			c.result = &result
			if result.Status == models.LookupFound {
				c.message = fmt.Sprintf("scanned barcode: %s", code)
				c.messageKind = MessageSuccess
			} else {
				c.message = result.UserMessage()
				c.messageKind = MessageError
			}
		})
	case models.OutcomeCancelled:
		c.log.Info("scan", "scan cancelled by user", nil)
		return c.fail(StateCancelled, "scan cancelled by user")
	case models.OutcomeNoResult:
		c.log.Info("scan", "no barcode found", nil)
		return c.fail(StateNoResult, "no barcode found or scan failed")
	default:
		return c.fail(StateFailed, fmt.Sprintf("scan failed: %s", outcome.Reason))
	}
}

func (c *Controller) fail(state State, message string) Snapshot {
	return c.update(func() {
		c.state = state
		c.message = message
		c.messageKind = MessageError
	})
}

// update applies fn under the lock and publishes the resulting snapshot.
// The listener runs outside the lock.
func (c *Controller) update(fn func()) Snapshot {
	c.mu.Lock()
	fn()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return snap
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:       c.state,
		DisplayMode: c.displayMode,
		Barcode:     c.barcode,
		Message:     c.message,
		MessageKind: c.messageKind,
	}
	if c.result != nil {
		r := *c.result
		snap.Result = &r
	}
	snap.View = snap.view()
	return snap
}

func panicReason(r any) string {
	switch v := r.(type) {
	case error:
		return v.Error()
	case string:
		return v
	default:
		return ""
	}
}
