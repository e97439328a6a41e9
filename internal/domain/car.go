package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// TimestampLayout is how the service stamps createdAt and updatedAt
const TimestampLayout = time.RFC3339Nano

// Timestamp formats t the way new records carry it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Car represents a vehicle listed for sale. CreatedAt and UpdatedAt are
// kept verbatim so records written by older clients round-trip untouched.
type Car struct {
	ID          string    `json:"id"`
	Brand       string    `json:"brand"`
	Model       string    `json:"model"`
	Year        int       `json:"year"`
	Price       float64   `json:"price"`
	Kilometrage int       `json:"kilometrage"`
	Boite       string    `json:"boite"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	Media       MediaList `json:"media"`
	CreatedAt   string    `json:"createdAt,omitempty"`
	UpdatedAt   string    `json:"updatedAt,omitempty"`
}

// UnmarshalJSON reads stored records leniently. Numbers may be strings,
// null or junk (junk reads as zero) and text fields may hold any scalar.
// Only malformed JSON is an error.
func (c *Car) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID          json.RawMessage `json:"id"`
		Brand       json.RawMessage `json:"brand"`
		Model       json.RawMessage `json:"model"`
		Year        json.RawMessage `json:"year"`
		Price       json.RawMessage `json:"price"`
		Kilometrage json.RawMessage `json:"kilometrage"`
		Boite       json.RawMessage `json:"boite"`
		Version     json.RawMessage `json:"version"`
		Description json.RawMessage `json:"description"`
		Media       MediaList       `json:"media"`
		CreatedAt   json.RawMessage `json:"createdAt"`
		UpdatedAt   json.RawMessage `json:"updatedAt"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*c = Car{
		ID:          decodeText(aux.ID),
		Brand:       decodeText(aux.Brand),
		Model:       decodeText(aux.Model),
		Year:        intOrZero(lenientNumber(aux.Year)),
		Price:       floatOrZero(lenientNumber(aux.Price)),
		Kilometrage: intOrZero(lenientNumber(aux.Kilometrage)),
		Boite:       decodeText(aux.Boite),
		Version:     decodeText(aux.Version),
		Description: decodeText(aux.Description),
		Media:       aux.Media,
		CreatedAt:   decodeText(aux.CreatedAt),
		UpdatedAt:   decodeText(aux.UpdatedAt),
	}
	return nil
}

// decodeText turns any JSON value into text. Strings are unquoted, null
// and absent values are empty, everything else keeps its JSON literal.
func decodeText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return string(raw)
	}
	return compact.String()
}

func lenientNumber(raw json.RawMessage) *float64 {
	v, err := decodeNumber(raw)
	if err != nil {
		return nil
	}
	return v
}

// Apply shallow-overwrites the scalar fields present in f.
func (c *Car) Apply(f CarFields) {
	if f.Brand != nil {
		c.Brand = *f.Brand
	}
	if f.Model != nil {
		c.Model = *f.Model
	}
	if f.Year != nil {
		c.Year = *f.Year
	}
	if f.Price != nil {
		c.Price = *f.Price
	}
	if f.Kilometrage != nil {
		c.Kilometrage = *f.Kilometrage
	}
	if f.Boite != nil {
		c.Boite = *f.Boite
	}
	if f.Version != nil {
		c.Version = *f.Version
	}
	if f.Description != nil {
		c.Description = *f.Description
	}
}

// SampleCars returns the two listings a brand-new catalog starts with.
func SampleCars(now time.Time) []*Car {
	created := Timestamp(now)
	return []*Car{
		{
			ID:          "1",
			Brand:       "Toyota",
			Model:       "Camry",
			Year:        2023,
			Price:       25.5,
			Kilometrage: 15000,
			Boite:       "Automatic",
			Version:     "LE",
			Description: "Excellent condition, one owner, full service history",
			Media:       MediaList{},
			CreatedAt:   created,
		},
		{
			ID:          "2",
			Brand:       "BMW",
			Model:       "X5",
			Year:        2022,
			Price:       45.0,
			Kilometrage: 25000,
			Boite:       "Automatic",
			Version:     "xDrive40i",
			Description: "Luxury SUV with all features, panoramic roof, leather seats",
			Media:       MediaList{},
			CreatedAt:   created,
		},
	}
}

func intOrZero(v *float64) int {
	if v == nil {
		return 0
	}
	return int(*v)
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
