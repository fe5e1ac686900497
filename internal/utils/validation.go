package contextutils

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// IsValidEmail checks if an email address is valid using go-playground/validator
func IsValidEmail(email string) bool {
	return validate.Var(email, "email") == nil
}

// IsValidRating checks that a feedback rating is an integer between 1 and 5
func IsValidRating(rating int) bool {
	return validate.Var(rating, "gte=1,lte=5") == nil
}
