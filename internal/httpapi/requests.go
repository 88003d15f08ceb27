package httpapi

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"palate/internal/domain"
	"palate/internal/usecase"
)

var validate = newValidator()

// newValidator adds "nonul", which rejects strings holding a NUL byte.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("nonul", func(fl validator.FieldLevel) bool {
		return !strings.ContainsRune(fl.Field().String(), 0)
	})
	return v
}

// FieldError describes one failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// validationDetails flattens validator errors for the response body.
func validationDetails(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		out[i] = FieldError{Field: fe.Namespace(), Rule: fe.Tag(), Param: fe.Param()}
	}
	return out
}

type dishRequest struct {
	ID           string              `json:"id,omitempty" validate:"omitempty,nonul,max=128"`
	RestaurantID string              `json:"restaurant_id,omitempty" validate:"omitempty,nonul,max=128"`
	Name         string              `json:"name" validate:"required,max=200"`
	Description  string              `json:"description,omitempty" validate:"max=2000"`
	Price        float64             `json:"price,omitempty" validate:"gte=0"`
	Category     string              `json:"category,omitempty" validate:"max=64"`
	Taste        *domain.TasteVector `json:"taste,omitempty"`
}

func (r dishRequest) input() usecase.DishInput {
	return usecase.DishInput{
		ID:           r.ID,
		RestaurantID: r.RestaurantID,
		Name:         r.Name,
		Description:  r.Description,
		Price:        r.Price,
		Category:     r.Category,
		Taste:        r.Taste,
	}
}

type userRequest struct {
	Name  string `json:"name,omitempty" validate:"max=200"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

// tasteRequest carries a taste on the given scale; axes are range checked
// after normalization, so the nested vector is not validated here.
type tasteRequest struct {
	Taste domain.TasteVector `json:"taste" validate:"-"`
	Scale int                `json:"scale,omitempty" validate:"omitempty,oneof=1 5"`
}

type rateRequest struct {
	DishID string `json:"dish_id" validate:"required,nonul,max=128"`
	Liked  *bool  `json:"liked" validate:"required"`
}

// splitAxes parses a comma separated axis list.
func splitAxes(s string) []string {
	var axes []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			axes = append(axes, a)
		}
	}
	return axes
}
