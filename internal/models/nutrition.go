package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Nutrient keys as used by the product database. Each key may appear with a
// "_100g" or "_serving" suffix, or both, or neither.
const (
	NutrientEnergy        = "energy"
	NutrientProteins      = "proteins"
	NutrientFat           = "fat"
	NutrientSaturatedFat  = "saturated-fat"
	NutrientSugars        = "sugars"
	NutrientSalt          = "salt"
	NutrientSodium        = "sodium"
	NutrientCarbohydrates = "carbohydrates"
	NutrientFiber         = "fiber"
)

// DisplayNutrients is the order in which nutrients are presented.
var DisplayNutrients = []string{
	NutrientEnergy,
	NutrientProteins,
	NutrientCarbohydrates,
	NutrientSugars,
	NutrientFat,
	NutrientSaturatedFat,
	NutrientFiber,
	NutrientSalt,
	NutrientSodium,
}

// NutrientValue holds either a number or a string. The product database is not
// consistent about which one it sends for a given key.
type NutrientValue struct {
	Number *float64
	Text   *string
}

// Number creates a numeric nutrient value.
func Number(v float64) NutrientValue {
	return NutrientValue{Number: &v}
}

// Text creates a textual nutrient value.
func Text(s string) NutrientValue {
	return NutrientValue{Text: &s}
}

// Float returns the numeric value, parsing the text form when it is numeric.
func (v NutrientValue) Float() (float64, bool) {
	if v.Number != nil {
		return *v.Number, true
	}
	if v.Text != nil {
		f, err := strconv.ParseFloat(*v.Text, 64)
		if err == nil {
			return f, true
		}
	}
	return 0, false
}

func (v NutrientValue) String() string {
	switch {
	case v.Number != nil:
		return strconv.FormatFloat(*v.Number, 'f', -1, 64)
	case v.Text != nil:
		return *v.Text
	default:
		return ""
	}
}

func (v NutrientValue) MarshalJSON() ([]byte, error) {
	switch {
	case v.Number != nil:
		return json.Marshal(*v.Number)
	case v.Text != nil:
		return json.Marshal(*v.Text)
	default:
		return []byte("null"), nil
	}
}

func (v *NutrientValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = NutrientValue{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*v = Number(f)
	default:
		return fmt.Errorf("unsupported nutrient value %s", string(data))
	}
	return nil
}

// Nutriments maps raw nutrient keys (e.g. "proteins_100g", "energy_unit") to
// their values. A missing key means the source has no data for it.
type Nutriments map[string]NutrientValue

// Get returns the raw entry for key.
func (n Nutriments) Get(key string) (NutrientValue, bool) {
	v, ok := n[key]
	return v, ok
}

// Per100g returns the value of nutrient per 100 g or 100 ml.
func (n Nutriments) Per100g(nutrient string) (NutrientValue, bool) {
	return n.Get(nutrient + "_100g")
}

// PerServing returns the value of nutrient per serving.
func (n Nutriments) PerServing(nutrient string) (NutrientValue, bool) {
	return n.Get(nutrient + "_serving")
}

// Unit returns the unit reported for a nutrient, if any.
func (n Nutriments) Unit(nutrient string) string {
	if v, ok := n.Get(nutrient + "_unit"); ok {
		return v.String()
	}
	return ""
}

// UnmarshalJSON keeps every number or string entry and drops anything else
// (objects, booleans, nulls), so one odd key cannot fail the whole product.
func (n *Nutriments) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Nutriments, len(raw))
	for key, msg := range raw {
		var v NutrientValue
		if err := json.Unmarshal(msg, &v); err != nil {
			continue
		}
		if v.Number == nil && v.Text == nil {
			continue
		}
		out[key] = v
	}
	*n = out
	return nil
}
