package models

import "fmt"

// Barcode is the product identifier read from a scanned symbol.
type Barcode string

// ProductInfo is the product data returned by the product database.
// Nil fields mean the database has no value for them.
type ProductInfo struct {
	Code            Barcode           `json:"code"`
	Name            *string           `json:"product_name,omitempty"`
	NameEN          *string           `json:"product_name_en,omitempty"`
	Brands          *string           `json:"brands,omitempty"`
	IngredientsText *string           `json:"ingredients_text,omitempty"`
	ImageURL        *string           `json:"image_url,omitempty"`
	Nutriments      Nutriments        `json:"nutriments"`
	NutrientLevels  map[string]string `json:"nutrient_levels,omitempty"`
}

// DisplayName prefers the localized name and falls back to the English one.
func (p ProductInfo) DisplayName() string {
	if p.Name != nil && *p.Name != "" {
		return *p.Name
	}
	if p.NameEN != nil {
		return *p.NameEN
	}
	return ""
}

type LookupStatus string

const (
	LookupFound          LookupStatus = "found"
	LookupNotFound       LookupStatus = "not_found"
	LookupTransportError LookupStatus = "transport_error"
	LookupRequestError   LookupStatus = "request_error"
)

// LookupResult is the normalized outcome of one product lookup. Exactly one
// status holds; Product is set only for LookupFound and Code only for
// LookupNotFound.
type LookupResult struct {
	Status     LookupStatus `json:"status"`
	Product    *ProductInfo `json:"product,omitempty"`
	Code       Barcode      `json:"code,omitempty"`
	HTTPStatus int          `json:"http_status,omitempty"`
	Message    string       `json:"message,omitempty"`
}

// Found wraps a product returned by the service.
func Found(product ProductInfo) LookupResult {
	return LookupResult{Status: LookupFound, Product: &product}
}

// NotFound reports that the service has no product for code.
func NotFound(code Barcode, message string) LookupResult {
	return LookupResult{Status: LookupNotFound, Code: code, Message: message}
}

// SoftNotFound is a not-found reported through an HTTP error status.
func SoftNotFound(code Barcode, httpStatus int) LookupResult {
	return LookupResult{
		Status:     LookupNotFound,
		Code:       code,
		HTTPStatus: httpStatus,
		Message:    fmt.Sprintf("product not found or API error: %d", httpStatus),
	}
}

// TransportError reports that no usable response came back.
func TransportError(message string) LookupResult {
	return LookupResult{Status: LookupTransportError, Message: message}
}

// RequestError reports that the request could not be built.
func RequestError(message string) LookupResult {
	return LookupResult{Status: LookupRequestError, Message: message}
}

// UserMessage is the short text shown for a lookup that did not find a product.
func (r LookupResult) UserMessage() string {
	switch r.Status {
	case LookupFound:
		return ""
	case LookupNotFound:
		return fmt.Sprintf("product not found: %s", r.Code)
	case LookupTransportError:
		return fmt.Sprintf("network error: %s", r.Message)
	default:
		return fmt.Sprintf("lookup failed: %s", r.Message)
	}
}
