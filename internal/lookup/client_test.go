package lookup

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franckalain/nutriscan/internal/models"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

const nutellaPayload = `{
	"code": "3017620422003",
	"status": 1,
	"status_verbose": "product found",
	"product": {
		"product_name": "Nutella",
		"brands": "Ferrero",
		"ingredients_text": "Sugar, palm oil, hazelnuts 13%",
		"image_url": "https://images.openfoodfacts.org/3017620422003.jpg",
		"nutriments": {
			"energy_100g": 2252,
			"energy_unit": "kJ",
			"fat_100g": 30.9,
			"sugars_100g": 56.3,
			"proteins_100g": "6.3",
			"salt_serving": 0.0225,
			"nova-group": 4,
			"weird": {"nested": true}
		},
		"nutrient_levels": {
			"fat": "high",
			"salt": "low",
			"saturated-fat": "high",
			"sugars": "high"
		}
	}
}`

func newProductServer(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api/v2", 2*time.Second, nil), &hits
}

func TestLookupFound(t *testing.T) {
	client, hits := newProductServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/product/3017620422003.json", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, nutellaPayload)
	})

	result := client.Lookup(context.Background(), "3017620422003")

	require.Equal(t, models.LookupFound, result.Status)
	require.NotNil(t, result.Product)
	assert.Equal(t, int32(1), hits.Load())

	p := result.Product
	require.NotNil(t, p.Name)
	assert.Equal(t, "Nutella", *p.Name)
	assert.Equal(t, "Ferrero", *p.Brands)
	assert.Equal(t, models.Barcode("3017620422003"), p.Code)
	assert.Nil(t, p.NameEN)

	fat, ok := p.Nutriments.Per100g(models.NutrientFat)
	require.True(t, ok)
	v, _ := fat.Float()
	assert.InDelta(t, 30.9, v, 1e-9)

	protein, ok := p.Nutriments.Per100g(models.NutrientProteins)
	require.True(t, ok)
	require.NotNil(t, protein.Text)
	v, ok = protein.Float()
	assert.True(t, ok)
	assert.InDelta(t, 6.3, v, 1e-9)

	assert.Equal(t, "kJ", p.Nutriments.Unit(models.NutrientEnergy))
	assert.Equal(t, "high", p.NutrientLevels["sugars"])

	_, hasWeird := p.Nutriments["weird"]
	assert.False(t, hasWeird)
}

func TestLookupMissingFieldsStayAbsent(t *testing.T) {
	client, _ := newProductServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":"123","status":1,"product":{"product_name":"Plain water","nutriments":{"energy_100g":0}}}`)
	})

	result := client.Lookup(context.Background(), "123")

	require.Equal(t, models.LookupFound, result.Status)
	p := result.Product
	assert.Equal(t, "Plain water", *p.Name)
	assert.Nil(t, p.Brands)
	assert.Nil(t, p.IngredientsText)
	assert.Nil(t, p.ImageURL)
	assert.Nil(t, p.NutrientLevels)

	// a reported zero is kept, a missing nutrient is absent rather than zero
	energy, ok := p.Nutriments.Per100g(models.NutrientEnergy)
	require.True(t, ok)
	v, _ := energy.Float()
	assert.Zero(t, v)
	for _, n := range []string{models.NutrientProteins, models.NutrientFat, models.NutrientSugars, models.NutrientSalt} {
		_, ok := p.Nutriments.Per100g(n)
		assert.False(t, ok, n)
		_, ok = p.Nutriments.PerServing(n)
		assert.False(t, ok, n)
	}

	// containers of the wrong type are dropped, the product is still found
	for _, product := range []string{
		`{"product_name":"X","nutriments":[]}`,
		`{"product_name":"X","nutriments":{},"nutrient_levels":[]}`,
		`{"product_name":"X","nutriments":"n/a","nutrient_levels":null}`,
	} {
		client, _ := newProductServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"status":1,"product":`+product+`}`)
		})

		result := client.Lookup(context.Background(), "123")

		require.Equal(t, models.LookupFound, result.Status, product)
		assert.Equal(t, "X", *result.Product.Name)
		assert.NotNil(t, result.Product.Nutriments)
		assert.Empty(t, result.Product.Nutriments)
		assert.Nil(t, result.Product.NutrientLevels)
	}
}

func TestLookupNotFound(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "status zero", payload: `{"code":"0000","status":0,"status_verbose":"product not found"}`},
		{name: "status one without product", payload: `{"code":"0000","status":1,"status_verbose":"product found"}`},
		{name: "status as string", payload: `{"code":"0000","status":"0","status_verbose":"no code or invalid code"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newProductServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.payload)
			})

			result := client.Lookup(context.Background(), "0000")

			assert.Equal(t, models.LookupNotFound, result.Status)
			assert.Equal(t, models.Barcode("0000"), result.Code)
			assert.Nil(t, result.Product)
			assert.Zero(t, result.HTTPStatus)
		})
	}
}

func TestLookupHTTPErrorIsSoftNotFound(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError} {
		client, _ := newProductServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"status":0}`)
		})

		result := client.Lookup(context.Background(), "4006381333931")

		assert.Equal(t, models.LookupNotFound, result.Status)
		assert.Equal(t, models.Barcode("4006381333931"), result.Code)
		assert.Equal(t, status, result.HTTPStatus)
		assert.Contains(t, result.Message, "product not found or API error")
	}
}

func TestLookupTimeoutIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 50*time.Millisecond, nil)
	result := client.Lookup(context.Background(), "123")

	assert.Equal(t, models.LookupTransportError, result.Status)
	assert.NotEmpty(t, result.Message)
	assert.Empty(t, result.Code)
}

func TestLookupConnectionFailureIsTransportError(t *testing.T) {
	client := NewClient("https://example.test/api/v2", time.Second, nil, WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return nil, errors.New("dial tcp: lookup example.test: no such host")
		}),
	}))

	result := client.Lookup(context.Background(), "123")

	assert.Equal(t, models.LookupTransportError, result.Status)
	assert.Contains(t, result.Message, "no such host")
}

func TestLookupOversizedBodyIsCut(t *testing.T) {
	client := NewClient("https://example.test/api/v2", time.Second, nil, WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			body := `{"status":1,"product":{"product_name":"` + strings.Repeat("a", maxResponseBytes) + `"}}`
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": []string{"application/json"}},
				Body:       io.NopCloser(strings.NewReader(body)),
				Request:    r,
			}, nil
		}),
	}))

	result := client.Lookup(context.Background(), "123")

	assert.Equal(t, models.LookupTransportError, result.Status)
	assert.Contains(t, result.Message, "invalid response payload")
}

func TestLookupMalformedPayloadIsTransportError(t *testing.T) {
	client, _ := newProductServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>maintenance</html>`)
	})

	result := client.Lookup(context.Background(), "123")

	assert.Equal(t, models.LookupTransportError, result.Status)
	assert.True(t, strings.HasPrefix(result.Message, "invalid response payload"))
}

func TestLookupMisconfiguredBaseURLIsRequestError(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
	}{
		{name: "bad escape", baseURL: "http://%zz"},
		{name: "no scheme", baseURL: "world.openfoodfacts.org/api/v2"},
		{name: "unsupported scheme", baseURL: "ftp://world.openfoodfacts.org/api/v2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			client := NewClient(tt.baseURL, time.Second, nil, WithHTTPClient(&http.Client{
				Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
					called = true
					return nil, errors.New("unexpected request")
				}),
			}))

			result := client.Lookup(context.Background(), "123")

			assert.Equal(t, models.LookupRequestError, result.Status)
			assert.False(t, called)
		})
	}
}

func TestLookupEscapesBarcode(t *testing.T) {
	var gotPath string
	client := NewClient("https://example.test/api/v2/", time.Second, nil, WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			gotPath = r.URL.EscapedPath()
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(`{"status":0}`)),
				Header:     make(http.Header),
			}, nil
		}),
	}))

	result := client.Lookup(context.Background(), "ab/c d")

	assert.Equal(t, models.LookupNotFound, result.Status)
	assert.Equal(t, "/api/v2/product/ab%2Fc%20d.json", gotPath)
}

func TestLookupIsIdempotent(t *testing.T) {
	client, hits := newProductServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, nutellaPayload)
	})

	first := client.Lookup(context.Background(), "3017620422003")
	second := client.Lookup(context.Background(), "3017620422003")

	assert.Equal(t, first, second)
	assert.Equal(t, int32(2), hits.Load())
}
