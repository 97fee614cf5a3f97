package dto

import (
	"fmt"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prohmpiriya/concert-booking/internal/domain"
)

var registerOnce sync.Once

// RegisterValidators adds the custom binding tags to gin's validator.
// It is safe to call more than once.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}
		err = v.RegisterValidation("priceband", validatePriceBand)
	})
	return err
}

func validatePriceBand(fl validator.FieldLevel) bool {
	return domain.PriceBand(fl.Field().String()).Valid()
}
