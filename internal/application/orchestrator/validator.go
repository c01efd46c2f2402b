package orchestrator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/domain"
)

// publishRequest mirrors domain.PublishOptions with request limits
type publishRequest struct {
	Visibility string   `validate:"omitempty,oneof=private unlisted public"`
	Tags       []string `validate:"omitempty,max=32,dive,required,max=64"`
	AgeRating  string   `validate:"omitempty,max=32"`
	Changelog  string   `validate:"max=2000"`
}

// Validator validates publish requests before any work is done
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new publish request validator
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// ValidateOptions checks caller supplied publish options
func (v *Validator) ValidateOptions(opts domain.PublishOptions) error {
	req := publishRequest{
		Visibility: string(opts.Visibility),
		Tags:       opts.Tags,
		AgeRating:  opts.AgeRating,
		Changelog:  opts.Changelog,
	}

	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("%w: %v", domain.ErrInvalidOptions, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %s", optionName(fe), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidOptions, strings.Join(msgs, "; "))
}

// optionName turns "publishRequest.Tags[1]" into "tags[1]"
func optionName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	switch {
	case strings.HasPrefix(ns, "AgeRating"):
		return "age_rating" + strings.TrimPrefix(ns, "AgeRating")
	default:
		return strings.ToLower(ns)
	}
}
