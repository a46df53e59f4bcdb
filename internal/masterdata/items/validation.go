package items

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/stockyard-wms/stockyard/internal/masterdata/shared"
)

var validate = validator.New()

func validateForm(form ItemForm) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return fmt.Errorf("%w: field %s failed on %s", shared.ErrValidation, fieldErrs[0].Field(), fieldErrs[0].Tag())
	}
	return err
}
