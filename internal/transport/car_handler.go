package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"car-showroom/internal/domain"
	"car-showroom/internal/middleware"
	"car-showroom/internal/repository"
	"car-showroom/internal/service"
	"car-showroom/internal/upload"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// carDataField carries the scalar fields as one JSON blob in a form
const carDataField = "carData"

// CreateCarResponse represents the create response
type CreateCarResponse struct {
	Success bool        `json:"success"`
	ID      string      `json:"id"`
	Message string      `json:"message"`
	Car     *domain.Car `json:"car"`
}

// MessageResponse represents the update and delete responses
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DebugCar is the per-car summary of the debug endpoint
type DebugCar struct {
	ID         string           `json:"id"`
	Brand      string           `json:"brand"`
	Model      string           `json:"model"`
	MediaCount int              `json:"mediaCount"`
	Media      domain.MediaList `json:"media"`
}

// DebugResponse represents the debug response
type DebugResponse struct {
	TotalCars int        `json:"totalCars"`
	Cars      []DebugCar `json:"cars"`
}

// ReceivedFile describes one part seen by the test upload endpoint
type ReceivedFile struct {
	OriginalName string `json:"originalName"`
	Type         string `json:"type"`
	Size         int64  `json:"size"`
}

// TestUploadResponse represents the test upload response
type TestUploadResponse struct {
	Success  bool              `json:"success"`
	Files    int               `json:"files"`
	Body     map[string]string `json:"body"`
	Received []ReceivedFile    `json:"received"`
}

// CarHandler handles HTTP requests for catalog operations
type CarHandler struct {
	carService     service.CarService
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewCarHandler creates a new CarHandler
func NewCarHandler(carService service.CarService, maxUploadBytes int64, logger *zap.Logger) *CarHandler {
	return &CarHandler{
		carService:     carService,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// RegisterRoutes registers all catalog routes. The given middleware
// wraps only the routes that change state.
func (h *CarHandler) RegisterRoutes(r chi.Router, mutations ...func(http.Handler) http.Handler) {
	r.Get("/api/debug", h.Debug)

	r.Route("/api/cars", func(r chi.Router) {
		r.Get("/", h.ListCars)
		r.Get("/{id}", h.GetCar)

		r.Group(func(r chi.Router) {
			r.Use(mutations...)
			r.Post("/", h.CreateCar)
			r.Put("/{id}", h.UpdateCar)
			r.Delete("/{id}", h.DeleteCar)
		})
	})

	r.With(mutations...).Post("/api/test-upload", h.TestUpload)
}

// ListCars handles listing the whole catalog
func (h *CarHandler) ListCars(w http.ResponseWriter, r *http.Request) {
	cars, err := h.carService.List(r.Context())
	if err != nil {
		h.respondError(w, err, "Failed to load cars")
		return
	}

	base := baseURL(r)
	out := make([]*domain.Car, len(cars))
	for i, car := range cars {
		out[i] = withAbsoluteMedia(car, base)
	}

	middleware.RespondWithJSON(w, http.StatusOK, out)
}

// GetCar handles fetching a single car
func (h *CarHandler) GetCar(w http.ResponseWriter, r *http.Request) {
	car, err := h.carService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err, "Failed to load cars")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, withAbsoluteMedia(car, baseURL(r)))
}

// CreateCar handles adding a car with optional media files
func (h *CarHandler) CreateCar(w http.ResponseWriter, r *http.Request) {
	form, fields, ok := h.readPayload(w, r)
	if !ok {
		return
	}
	if form != nil {
		defer form.RemoveAll()
	}

	car, err := h.carService.Create(r.Context(), fields, upload.Files(form))
	if err != nil {
		h.respondError(w, err, "Failed to save car to file")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, CreateCarResponse{
		Success: true,
		ID:      car.ID,
		Message: "Car added successfully",
		Car:     withAbsoluteMedia(car, baseURL(r)),
	})
}

// UpdateCar handles editing a car. Attached files replace its gallery.
func (h *CarHandler) UpdateCar(w http.ResponseWriter, r *http.Request) {
	form, fields, ok := h.readPayload(w, r)
	if !ok {
		return
	}
	if form != nil {
		defer form.RemoveAll()
	}

	if _, err := h.carService.Update(r.Context(), chi.URLParam(r, "id"), fields, upload.Files(form)); err != nil {
		h.respondError(w, err, "Failed to update car in file")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, MessageResponse{
		Success: true,
		Message: "Car updated successfully",
	})
}

// DeleteCar handles removing a car and its media
func (h *CarHandler) DeleteCar(w http.ResponseWriter, r *http.Request) {
	if err := h.carService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err, "Failed to delete car from file")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, MessageResponse{
		Success: true,
		Message: "Car deleted successfully",
	})
}

// Debug returns the stored catalog with media counts
func (h *CarHandler) Debug(w http.ResponseWriter, r *http.Request) {
	cars, err := h.carService.List(r.Context())
	if err != nil {
		h.respondError(w, err, "Failed to load cars")
		return
	}

	resp := DebugResponse{TotalCars: len(cars), Cars: make([]DebugCar, len(cars))}
	for i, car := range cars {
		resp.Cars[i] = DebugCar{
			ID:         car.ID,
			Brand:      car.Brand,
			Model:      car.Model,
			MediaCount: len(car.Media),
			Media:      car.Media,
		}
	}

	middleware.RespondWithJSON(w, http.StatusOK, resp)
}

// TestUpload echoes what a multipart request carried without storing it
func (h *CarHandler) TestUpload(w http.ResponseWriter, r *http.Request) {
	form, err := h.readForm(w, r)
	if err != nil {
		h.respondError(w, err, "")
		return
	}

	resp := TestUploadResponse{Success: true, Body: map[string]string{}, Received: []ReceivedFile{}}
	if form != nil {
		defer form.RemoveAll()
		for key, values := range form.Value {
			if len(values) > 0 {
				resp.Body[key] = values[0]
			}
		}
		for _, fh := range upload.Files(form) {
			resp.Received = append(resp.Received, ReceivedFile{
				OriginalName: fh.Filename,
				Type:         fh.Header.Get("Content-Type"),
				Size:         fh.Size,
			})
		}
	}
	resp.Files = len(resp.Received)

	h.logger.Debug("Test upload received",
		zap.Int("files", resp.Files),
		zap.Int("fields", len(resp.Body)),
	)
	middleware.RespondWithJSON(w, http.StatusOK, resp)
}

// readPayload reads the request body within the upload ceiling and
// normalises the car fields from whichever shape the client used: a
// carData JSON field, discrete form fields, or a JSON body. It writes
// the error response itself and reports false on failure.
func (h *CarHandler) readPayload(w http.ResponseWriter, r *http.Request) (*multipart.Form, domain.CarFields, bool) {
	form, err := h.readForm(w, r)
	if err != nil {
		h.respondError(w, err, "")
		return nil, domain.CarFields{}, false
	}

	fields, err := decodeFields(r, form)
	if err != nil {
		if form != nil {
			form.RemoveAll()
		}
		if !errors.Is(err, upload.ErrPayloadTooLarge) {
			err = fmt.Errorf("%w: %v", service.ErrInvalidCarData, err)
		}
		h.respondError(w, err, "")
		return nil, domain.CarFields{}, false
	}

	if err := middleware.ValidateRequest(fields); err != nil {
		if form != nil {
			form.RemoveAll()
		}
		h.logger.Debug("Car validation failed", zap.Error(err))
		middleware.RespondWithValidationErrors(w, middleware.FormatValidationErrors(err))
		return nil, domain.CarFields{}, false
	}

	return form, fields, true
}

// readForm reads the body within the upload ceiling. A body that is not
// too large but still unreadable is the client's fault.
func (h *CarHandler) readForm(w http.ResponseWriter, r *http.Request) (*multipart.Form, error) {
	form, err := upload.ReadForm(w, r, h.maxUploadBytes)
	if err != nil && !errors.Is(err, upload.ErrPayloadTooLarge) {
		return nil, fmt.Errorf("%w: %v", service.ErrInvalidCarData, err)
	}
	return form, err
}

func decodeFields(r *http.Request, form *multipart.Form) (domain.CarFields, error) {
	var values url.Values
	switch {
	case form != nil:
		values = form.Value
	case isJSON(r.Header.Get("Content-Type")):
		var fields domain.CarFields
		err := json.NewDecoder(r.Body).Decode(&fields)
		if errors.Is(err, io.EOF) {
			return domain.CarFields{}, nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return domain.CarFields{}, fmt.Errorf("%w: limit is %d bytes", upload.ErrPayloadTooLarge, maxErr.Limit)
		}
		return fields, err
	default:
		values = r.PostForm
	}

	if blob, ok := values[carDataField]; ok && len(blob) > 0 {
		var fields domain.CarFields
		if err := json.Unmarshal([]byte(blob[0]), &fields); err != nil {
			return domain.CarFields{}, err
		}
		return fields, nil
	}
	return domain.FieldsFromForm(values)
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}

// respondError maps service and upload errors to HTTP responses.
// fallback is the message used for unexpected failures.
func (h *CarHandler) respondError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrCarNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "Car not found")
	case errors.Is(err, service.ErrInvalidCarData):
		h.logger.Debug("Invalid car data", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "Invalid car data format")
	case errors.Is(err, upload.ErrPayloadTooLarge):
		h.logger.Warn("Upload rejected", zap.Error(err))
		middleware.RespondWithErrorDetails(w, http.StatusRequestEntityTooLarge, "Upload exceeds the size limit",
			map[string]interface{}{"max_bytes": h.maxUploadBytes})
	case errors.Is(err, repository.ErrCorruptCatalog):
		h.logger.Error("Catalog data is corrupt", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Car catalog is unreadable")
	default:
		h.logger.Error("Car request failed", zap.Error(err))
		if fallback == "" {
			fallback = "internal server error"
		}
		middleware.RespondWithError(w, http.StatusInternalServerError, fallback)
	}
}

// baseURL is the scheme and host the client used to reach us
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + r.Host
}

func withAbsoluteMedia(car *domain.Car, base string) *domain.Car {
	out := *car
	out.Media = car.Media.Absolute(base)
	return &out
}
