package checkout

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/DotZohaib/ShopSphere/internal/domain"
	"github.com/go-playground/validator/v10"
)

var (
	cardNumberPattern = regexp.MustCompile(`^\d{4} \d{4} \d{4} \d{4}$`)
	cvvPattern        = regexp.MustCompile(`^\d{3}$`)
)

// ShopperDetails is the checkout form. Card number and CVV are validated but
// never stored; the order keeps only the last four digits.
type ShopperDetails struct {
	FirstName      string `json:"first_name" validate:"required"`
	LastName       string `json:"last_name" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	Address        string `json:"address" validate:"required"`
	City           string `json:"city" validate:"required"`
	ZipCode        string `json:"zip_code" validate:"required"`
	CardType       string `json:"card_type" validate:"required,oneof=visa mastercard amex"`
	CardHolderName string `json:"card_holder_name" validate:"required"`
	CardNumber     string `json:"card_number" validate:"required,card_number"`
	ExpiryMonth    string `json:"expiry_month" validate:"required,oneof=01 02 03 04 05 06 07 08 09 10 11 12"`
	ExpiryYear     string `json:"expiry_year" validate:"required,len=4,numeric"`
	CVV            string `json:"cvv" validate:"required,cvv"`
}

var ErrValidation = errors.New("validation failed")

// ValidationError maps json field names to messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("card_number", func(fl validator.FieldLevel) bool {
		return cardNumberPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("cvv", func(fl validator.FieldLevel) bool {
		return cvvPattern.MatchString(fl.Field().String())
	})
	return v
}

// Normalize trims surrounding whitespace from every field.
func (d *ShopperDetails) Normalize() {
	fields := []*string{
		&d.FirstName, &d.LastName, &d.Email, &d.Address, &d.City, &d.ZipCode,
		&d.CardType, &d.CardHolderName, &d.CardNumber, &d.ExpiryMonth, &d.ExpiryYear, &d.CVV,
	}
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
	d.CardType = strings.ToLower(d.CardType)
}

// Validate returns a *ValidationError listing every failing field.
func (d ShopperDetails) Validate() error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		fields[fe.Field()] = validationMessage(fe)
	}
	return &ValidationError{Fields: fields}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "card_number":
		return "must match XXXX XXXX XXXX XXXX"
	case "cvv":
		return "must be 3 digits"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be %s characters", fe.Param())
	case "numeric":
		return "must be numeric"
	}
	return "is invalid"
}

func (d ShopperDetails) shopper() domain.Shopper {
	digits := strings.ReplaceAll(d.CardNumber, " ", "")
	lastFour := digits
	if len(digits) > 4 {
		lastFour = digits[len(digits)-4:]
	}
	return domain.Shopper{
		FirstName:      d.FirstName,
		LastName:       d.LastName,
		Email:          d.Email,
		Address:        d.Address,
		City:           d.City,
		ZipCode:        d.ZipCode,
		CardType:       d.CardType,
		CardHolderName: d.CardHolderName,
		CardLastFour:   lastFour,
	}
}
