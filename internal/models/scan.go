package models

// Format is a barcode symbology accepted by the scan capability.
type Format string

const (
	FormatEAN13  Format = "EAN_13"
	FormatEAN8   Format = "EAN_8"
	FormatUPCA   Format = "UPC_A"
	FormatUPCE   Format = "UPC_E"
	FormatQRCode Format = "QR_CODE"
)

// RetailFormats are the 1-D retail symbologies plus QR.
var RetailFormats = []Format{FormatEAN13, FormatEAN8, FormatUPCA, FormatUPCE, FormatQRCode}

// OutcomeKind tags a ScanOutcome.
type OutcomeKind string

const (
	OutcomeDecoded   OutcomeKind = "decoded"
	OutcomeCancelled OutcomeKind = "cancelled"
	OutcomeNoResult  OutcomeKind = "no_result"
	OutcomeFailed    OutcomeKind = "failed"
)

// ScanOutcome is what one scan attempt produced. Symbol is set only for
// OutcomeDecoded and Reason only for OutcomeFailed.
type ScanOutcome struct {
	Kind   OutcomeKind `json:"kind"`
	Symbol string      `json:"symbol,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

// Decoded reports a symbol read by the scanner.
func Decoded(symbol string) ScanOutcome {
	return ScanOutcome{Kind: OutcomeDecoded, Symbol: symbol}
}

// Cancelled reports that the user closed the scanner.
func Cancelled() ScanOutcome {
	return ScanOutcome{Kind: OutcomeCancelled}
}

// NoResult reports that the scanner finished without reading a symbol.
func NoResult() ScanOutcome {
	return ScanOutcome{Kind: OutcomeNoResult}
}

// Failed builds a failure outcome; an empty reason becomes "unknown error".
func Failed(reason string) ScanOutcome {
	if reason == "" {
		reason = "unknown error"
	}
	return ScanOutcome{Kind: OutcomeFailed, Reason: reason}
}
