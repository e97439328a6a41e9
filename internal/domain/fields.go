package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidNumber = errors.New("invalid number")

// CarFields carries the client-editable scalar fields of a car. A nil
// field was not supplied and leaves the stored value untouched.
type CarFields struct {
	Brand       *string  `json:"brand"`
	Model       *string  `json:"model"`
	Year        *int     `json:"year" validate:"omitempty,gte=0"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Kilometrage *int     `json:"kilometrage" validate:"omitempty,gte=0"`
	Boite       *string  `json:"boite"`
	Version     *string  `json:"version"`
	Description *string  `json:"description"`
}

// UnmarshalJSON decodes a carData blob. Numbers may arrive as strings.
func (f *CarFields) UnmarshalJSON(data []byte) error {
	var aux struct {
		Brand       *string         `json:"brand"`
		Model       *string         `json:"model"`
		Boite       *string         `json:"boite"`
		Version     *string         `json:"version"`
		Description *string         `json:"description"`
		Year        json.RawMessage `json:"year"`
		Price       json.RawMessage `json:"price"`
		Kilometrage json.RawMessage `json:"kilometrage"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	year, err := decodeNumber(aux.Year)
	if err != nil {
		return fmt.Errorf("year: %w", err)
	}
	price, err := decodeNumber(aux.Price)
	if err != nil {
		return fmt.Errorf("price: %w", err)
	}
	km, err := decodeNumber(aux.Kilometrage)
	if err != nil {
		return fmt.Errorf("kilometrage: %w", err)
	}

	*f = CarFields{
		Brand:       aux.Brand,
		Model:       aux.Model,
		Boite:       aux.Boite,
		Version:     aux.Version,
		Description: aux.Description,
		Year:        toIntPtr(year),
		Price:       price,
		Kilometrage: toIntPtr(km),
	}
	return nil
}

// FieldsFromForm builds CarFields from discrete form values. Only keys
// present in the form are set.
func FieldsFromForm(values map[string][]string) (CarFields, error) {
	var f CarFields
	str := func(key string) *string {
		v, ok := values[key]
		if !ok || len(v) == 0 {
			return nil
		}
		s := v[0]
		return &s
	}

	f.Brand = str("brand")
	f.Model = str("model")
	f.Boite = str("boite")
	f.Version = str("version")
	f.Description = str("description")

	num := func(key string) (*float64, error) {
		s := str(key)
		if s == nil {
			return nil, nil
		}
		v, err := parseNumber(*s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		return v, nil
	}

	year, err := num("year")
	if err != nil {
		return CarFields{}, err
	}
	price, err := num("price")
	if err != nil {
		return CarFields{}, err
	}
	km, err := num("kilometrage")
	if err != nil {
		return CarFields{}, err
	}

	f.Year = toIntPtr(year)
	f.Price = price
	f.Kilometrage = toIntPtr(km)
	return f, nil
}

// decodeNumber reads a JSON number, numeric string, empty string or null.
// Absent, null and empty values yield nil.
func decodeNumber(raw json.RawMessage) (*float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return parseNumber(s)
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidNumber, raw)
	}
	return &v, nil
}

func parseNumber(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	return &v, nil
}

func toIntPtr(v *float64) *int {
	if v == nil {
		return nil
	}
	i := int(*v)
	return &i
}
