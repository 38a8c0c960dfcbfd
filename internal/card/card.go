// Package card extracts structured vehicle registration card data with a
// vision language model and normalises whatever the model returns.
package card

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// FieldKeys lists the card fields in display order. Each has a matching confidence entry.
var FieldKeys = []string{
	"plate_number",
	"vin",
	"make",
	"model",
	"year",
	"color",
	"engine_number",
	"owner_name",
	"registration_date",
	"expiry_date",
	"country",
	"vehicle_type",
	"fuel",
	"capacity",
}

// CarCardData is a normalised registration card record. Missing fields are
// empty strings, never absent.
type CarCardData struct {
	PlateNumber      string `json:"plate_number"`
	VIN              string `json:"vin"`
	Make             string `json:"make"`
	Model            string `json:"model"`
	Year             string `json:"year"`
	Color            string `json:"color"`
	EngineNumber     string `json:"engine_number"`
	OwnerName        string `json:"owner_name"`
	RegistrationDate string `json:"registration_date"`
	ExpiryDate       string `json:"expiry_date"`
	Country          string `json:"country"`
	VehicleType      string `json:"vehicle_type"`
	Fuel             string `json:"fuel"`
	// Capacity stays textual, e.g. "5 نفر".
	Capacity string `json:"capacity"`

	Confidence map[string]float64 `json:"confidence"`
	RawText    string             `json:"raw_text"`
}

// Empty returns a record with every field blank and every confidence 0.
func Empty() CarCardData {
	c := make(map[string]float64, len(FieldKeys))
	for _, k := range FieldKeys {
		c[k] = 0
	}
	return CarCardData{Confidence: c}
}

// Field returns a pointer to the named field, or nil for unknown keys.
func (d *CarCardData) Field(key string) *string {
	switch key {
	case "plate_number":
		return &d.PlateNumber
	case "vin":
		return &d.VIN
	case "make":
		return &d.Make
	case "model":
		return &d.Model
	case "year":
		return &d.Year
	case "color":
		return &d.Color
	case "engine_number":
		return &d.EngineNumber
	case "owner_name":
		return &d.OwnerName
	case "registration_date":
		return &d.RegistrationDate
	case "expiry_date":
		return &d.ExpiryDate
	case "country":
		return &d.Country
	case "vehicle_type":
		return &d.VehicleType
	case "fuel":
		return &d.Fuel
	case "capacity":
		return &d.Capacity
	}
	return nil
}

// Normalize coerces arbitrary decoded JSON into a CarCardData. Non-string
// field values become "", unknown keys are dropped, confidences are
// clamped to [0, 1] and forced to 0 for blank fields.
func Normalize(input interface{}) CarCardData {
	out := Empty()
	data, ok := input.(map[string]interface{})
	if !ok {
		return out
	}

	for _, k := range FieldKeys {
		if s, ok := data[k].(string); ok {
			*out.Field(k) = s
		}
	}
	if s, ok := data["raw_text"].(string); ok {
		out.RawText = s
	}

	conf, _ := data["confidence"].(map[string]interface{})
	for _, k := range FieldKeys {
		out.Confidence[k] = clampConfidence(conf[k])
		if strings.TrimSpace(*out.Field(k)) == "" {
			out.Confidence[k] = 0
		}
	}
	return out
}

// clampConfidence follows loose numeric coercion: numeric strings and
// booleans convert, anything non-finite or non-numeric is 0.
func clampConfidence(v interface{}) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	case bool:
		if x {
			f = 1
		}
	default:
		return 0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
