package lookup

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/franckalain/nutriscan/internal/models"
)

type apiResponse struct {
	Status        flexStatus  `json:"status"`
	StatusVerbose string      `json:"status_verbose"`
	Code          string      `json:"code"`
	Product       *apiProduct `json:"product"`
}

type apiProduct struct {
	ProductName     *string         `json:"product_name"`
	ProductNameEN   *string         `json:"product_name_en"`
	Brands          *string         `json:"brands"`
	IngredientsText *string         `json:"ingredients_text"`
	ImageURL        *string         `json:"image_url"`
	Nutriments      json.RawMessage `json:"nutriments"`
	NutrientLevels  json.RawMessage `json:"nutrient_levels"`
}

// flexStatus accepts the status indicator as a number or a numeric string.
type flexStatus int

func (s *flexStatus) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = 0
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(bytes.Trim(data, `"`), &n); err != nil {
		*s = 0
		return nil
	}
	i, err := strconv.Atoi(n.String())
	if err != nil {
		*s = 0
		return nil
	}
	*s = flexStatus(i)
	return nil
}

// toProductInfo copies what the payload carries. Absent fields stay nil, and
// a container that is not a JSON object counts as absent.
func toProductInfo(code models.Barcode, p *apiProduct) models.ProductInfo {
	info := models.ProductInfo{
		Code:            code,
		Name:            p.ProductName,
		NameEN:          p.ProductNameEN,
		Brands:          p.Brands,
		IngredientsText: p.IngredientsText,
		ImageURL:        p.ImageURL,
		Nutriments:      models.Nutriments{},
	}
	if isObject(p.Nutriments) {
		var n models.Nutriments
		if err := json.Unmarshal(p.Nutriments, &n); err == nil && n != nil {
			info.Nutriments = n
		}
	}

	var raw map[string]any
	if isObject(p.NutrientLevels) && json.Unmarshal(p.NutrientLevels, &raw) == nil {
		levels := make(map[string]string, len(raw))
		for k, v := range raw {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				levels[k] = s
			}
		}
		if len(levels) > 0 {
			info.NutrientLevels = levels
		}
	}
	return info
}

func isObject(data json.RawMessage) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '{'
}
