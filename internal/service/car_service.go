package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strconv"
	"time"

	"car-showroom/internal/domain"
	"car-showroom/internal/repository"
	"car-showroom/internal/upload"

	"go.uber.org/zap"
)

// ErrInvalidCarData marks a scalar payload that could not be decoded or
// failed validation.
var ErrInvalidCarData = errors.New("invalid car data format")

// CarService defines the interface for catalog business logic
type CarService interface {
	List(ctx context.Context) ([]*domain.Car, error)
	Get(ctx context.Context, id string) (*domain.Car, error)
	Create(ctx context.Context, fields domain.CarFields, files []*multipart.FileHeader) (*domain.Car, error)
	Update(ctx context.Context, id string, fields domain.CarFields, files []*multipart.FileHeader) (*domain.Car, error)
	Delete(ctx context.Context, id string) error
}

type carService struct {
	repo   repository.CarRepository
	media  *upload.MediaStore
	logger *zap.Logger
	now    func() time.Time
}

// NewCarService creates a new instance of CarService
func NewCarService(repo repository.CarRepository, media *upload.MediaStore, logger *zap.Logger) CarService {
	return &carService{
		repo:   repo,
		media:  media,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// List returns the catalog as currently persisted
func (s *carService) List(ctx context.Context) ([]*domain.Car, error) {
	cars, err := s.repo.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cars: %w", err)
	}
	return cars, nil
}

// Get returns a single car by id
func (s *carService) Get(ctx context.Context, id string) (*domain.Car, error) {
	cars, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	i := repository.FindCar(cars, id)
	if i < 0 {
		return nil, repository.ErrCarNotFound
	}
	return cars[i], nil
}

// Create stores the uploaded files and appends a new car whose gallery
// is exactly those files. Files are removed again if the record cannot
// be persisted.
func (s *carService) Create(ctx context.Context, fields domain.CarFields, files []*multipart.FileHeader) (*domain.Car, error) {
	media, err := s.media.SaveAll(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("failed to store media: %w", err)
	}

	var car *domain.Car
	err = s.repo.Mutate(ctx, func(cars []*domain.Car) ([]*domain.Car, error) {
		now := s.now()
		car = &domain.Car{
			ID:        nextID(cars, now),
			Media:     media,
			CreatedAt: domain.Timestamp(now),
		}
		car.Apply(fields)
		return append(cars, car), nil
	})
	if err != nil {
		s.media.RemoveAll(media)
		return nil, fmt.Errorf("failed to save car: %w", err)
	}

	s.logger.Info("Car created",
		zap.String("id", car.ID),
		zap.String("brand", car.Brand),
		zap.String("model", car.Model),
		zap.Int("media_count", len(car.Media)),
	)
	return car, nil
}

// Update merges fields into an existing car. With new files the gallery
// is replaced and the previous files are deleted once the change is
// persisted. Without files the gallery is kept as is.
func (s *carService) Update(ctx context.Context, id string, fields domain.CarFields, files []*multipart.FileHeader) (*domain.Car, error) {
	media, err := s.media.SaveAll(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("failed to store media: %w", err)
	}
	replaceMedia := len(files) > 0

	var (
		updated  *domain.Car
		previous domain.MediaList
	)
	err = s.repo.Mutate(ctx, func(cars []*domain.Car) ([]*domain.Car, error) {
		i := repository.FindCar(cars, id)
		if i < 0 {
			return nil, repository.ErrCarNotFound
		}

		car := *cars[i]
		car.Apply(fields)
		if replaceMedia {
			previous = car.Media
			car.Media = media
		}
		car.UpdatedAt = domain.Timestamp(s.now())

		cars[i] = &car
		updated = &car
		return cars, nil
	})
	if err != nil {
		s.media.RemoveAll(media)
		if errors.Is(err, repository.ErrCarNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update car: %w", err)
	}

	if replaceMedia {
		s.media.RemoveAll(previous)
	}

	s.logger.Info("Car updated",
		zap.String("id", updated.ID),
		zap.Bool("media_replaced", replaceMedia),
		zap.Int("media_count", len(updated.Media)),
	)
	return updated, nil
}

// Delete removes the car and then, best effort, every file it referenced
func (s *carService) Delete(ctx context.Context, id string) error {
	var deleted *domain.Car
	err := s.repo.Mutate(ctx, func(cars []*domain.Car) ([]*domain.Car, error) {
		i := repository.FindCar(cars, id)
		if i < 0 {
			return nil, repository.ErrCarNotFound
		}
		deleted = cars[i]
		return append(cars[:i:i], cars[i+1:]...), nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrCarNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete car: %w", err)
	}

	s.media.RemoveAll(deleted.Media)

	s.logger.Info("Car deleted",
		zap.String("id", deleted.ID),
		zap.String("brand", deleted.Brand),
		zap.String("model", deleted.Model),
	)
	return nil
}

// nextID derives an id from the creation time in milliseconds, moving
// forward until it is unused.
func nextID(cars []*domain.Car, now time.Time) string {
	taken := make(map[string]struct{}, len(cars))
	for _, car := range cars {
		taken[car.ID] = struct{}{}
	}

	n := now.UnixMilli()
	for {
		id := strconv.FormatInt(n, 10)
		if _, ok := taken[id]; !ok {
			return id
		}
		n++
	}
}
