package xmp

import (
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// valueRe accepts text that stays inert inside an attribute value or a
// single-line rdf:li element.
var valueRe = regexp.MustCompile(`^[^<>"\r\n]+$`)

var valueRules = []validation.Rule{
	validation.Required,
	validation.Match(valueRe).Error("must not contain <, >, \" or line breaks"),
}

// ValidateCluster checks a user-supplied cluster value.
func ValidateCluster(value string) error {
	return validateValue(value, valueRules...)
}

// ValidateGroup checks a user-supplied group value. Group names are kept
// under the length that extraction can recover.
func ValidateGroup(value string) error {
	return validateValue(value, append(valueRules, validation.Length(1, maxGroupNameLen-1))...)
}

func validateValue(value string, rules ...validation.Rule) error {
	if err := validation.Validate(value, rules...); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return nil
}
