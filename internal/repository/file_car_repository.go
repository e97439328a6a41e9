package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"car-showroom/internal/domain"

	"go.uber.org/zap"
)

type fileCarRepository struct {
	path   string
	logger *zap.Logger

	// mu serialises every access to the file within this process.
	mu sync.Mutex
}

// NewFileCarRepository creates a catalog store backed by a single JSON
// file, seeding it with sample cars when it does not exist yet.
func NewFileCarRepository(path string, logger *zap.Logger) (CarRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	r := &fileCarRepository{path: path, logger: logger}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadAll reads the whole catalog from disk
func (r *fileCarRepository) LoadAll(ctx context.Context) ([]*domain.Car, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// SaveAll overwrites the catalog file
func (r *fileCarRepository) SaveAll(ctx context.Context, cars []*domain.Car) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(cars)
}

// Mutate loads, transforms and saves the catalog under one lock
func (r *fileCarRepository) Mutate(ctx context.Context, fn MutateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cars, err := r.load()
	if err != nil {
		return err
	}

	updated, err := fn(cars)
	if err != nil {
		return err
	}

	return r.save(updated)
}

func (r *fileCarRepository) load() ([]*domain.Car, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		cars := domain.SampleCars(time.Now().UTC())
		if err := r.save(cars); err != nil {
			return nil, err
		}
		r.logger.Info("Created catalog with sample cars", zap.String("path", r.path), zap.Int("cars", len(cars)))
		return cars, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var cars []*domain.Car
	if err := json.Unmarshal(data, &cars); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptCatalog, r.path, err)
	}

	// null entries carry no record
	out := cars[:0]
	for _, car := range cars {
		if car != nil {
			out = append(out, car)
		}
	}
	return out, nil
}

// save writes to a temporary file and renames it over the catalog so a
// crash mid-write never leaves a truncated file behind.
func (r *fileCarRepository) save(cars []*domain.Car) error {
	if cars == nil {
		cars = []*domain.Car{}
	}

	data, err := json.MarshalIndent(cars, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".cars-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp catalog: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close catalog: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set catalog permissions: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("failed to replace catalog: %w", err)
	}

	r.logger.Debug("Catalog saved", zap.String("path", r.path), zap.Int("cars", len(cars)))
	return nil
}
