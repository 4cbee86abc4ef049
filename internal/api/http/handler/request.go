package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/klari-app/klari-server/internal/api/http/response"
	"github.com/klari-app/klari-server/internal/logger"
	"github.com/klari-app/klari-server/internal/model"
)

const maxBodyBytes = 1 << 20

// Validator checks request bodies with go-playground/validator, reporting
// problems by JSON field name.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return &Validator{v: v}
}

// ValidationError lists invalid fields.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

func (e *ValidationError) Unwrap() error {
	return model.ErrInvalidInput
}

func (v *Validator) Validate(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = friendlyMessage(fe)
	}
	return &ValidationError{Fields: fields}
}

func friendlyMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must not exceed %s characters", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "url":
		return "must be a valid URL"
	default:
		return "is invalid"
	}
}

// decode reads a JSON body into dst and validates it. It writes the 400
// response itself and reports whether the handler should continue.
func decode(w http.ResponseWriter, r *http.Request, v *Validator, dst any, logger *logger.Logger) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			response.Error(w, http.StatusBadRequest, "request body is required", logger)
			return false
		}
		response.Error(w, http.StatusBadRequest, "invalid request body", logger)
		return false
	}
	if err := v.Validate(dst); err != nil {
		writeError(w, r, err, logger)
		return false
	}
	return true
}

// writeError writes validation problems field by field and everything else
// through the shared status mapping.
func writeError(w http.ResponseWriter, r *http.Request, err error, logger *logger.Logger) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		response.Invalid(w, verr.Fields, logger)
		return
	}
	response.FromError(w, r, err, logger)
}

// pathID parses a positive int64 path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer: %w", name, model.ErrInvalidInput)
	}
	return id, nil
}

// pageRequest reads page, size, sort and dir. Missing values take the given
// defaults; validation of the result is left to the stores.
func pageRequest(r *http.Request, defaultSize int, defaultDesc bool) (model.PageRequest, error) {
	q := r.URL.Query()
	page := model.PageRequest{Size: defaultSize, Sort: model.SortByID, Desc: defaultDesc}

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return model.PageRequest{}, fmt.Errorf("page must be an integer: %w", model.ErrInvalidInput)
		}
		page.Page = n
	}
	if raw := q.Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return model.PageRequest{}, fmt.Errorf("size must be an integer: %w", model.ErrInvalidInput)
		}
		page.Size = n
	}
	if raw := q.Get("sort"); raw != "" {
		page.Sort = strings.ToLower(raw)
	}
	switch strings.ToLower(q.Get("dir")) {
	case "":
	case "asc":
		page.Desc = false
	case "desc":
		page.Desc = true
	default:
		return model.PageRequest{}, fmt.Errorf("dir must be asc or desc: %w", model.ErrInvalidInput)
	}

	if err := page.Validate(); err != nil {
		return model.PageRequest{}, err
	}
	return page, nil
}

// optionalCategory parses the category query parameter when present.
func optionalCategory(r *http.Request) (*model.Category, error) {
	raw := r.URL.Query().Get("category")
	if raw == "" {
		return nil, nil
	}
	c, err := model.ParseCategory(raw)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// queryList collects a repeated or comma separated query parameter.
func queryList(r *http.Request, name string) []string {
	var out []string
	for _, raw := range r.URL.Query()[name] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
