package repository

import (
	"context"
	"errors"

	"car-showroom/internal/domain"
)

var (
	ErrCarNotFound    = errors.New("car not found")
	ErrCorruptCatalog = errors.New("catalog data is corrupt")
)

// MutateFunc receives the current catalog and returns the catalog to
// persist. Returning an error aborts the write.
type MutateFunc func(cars []*domain.Car) ([]*domain.Car, error)

// CarRepository is the catalog store. Every call reads from the backing
// store; nothing is cached between calls.
type CarRepository interface {
	// LoadAll returns the catalog in display order.
	LoadAll(ctx context.Context) ([]*domain.Car, error)
	// SaveAll replaces the whole catalog.
	SaveAll(ctx context.Context, cars []*domain.Car) error
	// Mutate runs a read-modify-write with exclusive access to the
	// catalog, so concurrent writers never lose each other's updates.
	Mutate(ctx context.Context, fn MutateFunc) error
}

// FindCar returns the index of the car with the given id, or -1.
func FindCar(cars []*domain.Car, id string) int {
	for i, car := range cars {
		if car.ID == id {
			return i
		}
	}
	return -1
}
