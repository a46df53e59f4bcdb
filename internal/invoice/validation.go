package invoice

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// validateDraft checks structure and per-kind line rules before any
// store access.
func validateDraft(draft Draft) error {
	if !draft.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, draft.Kind)
	}
	if err := validate.Struct(draft); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fmt.Errorf("%w: field %s failed on %s", ErrValidation, fieldErrs[0].Field(), fieldErrs[0].Tag())
		}
		return err
	}
	if draft.Paid.IsNegative() {
		return fmt.Errorf("%w: paid must not be negative", ErrValidation)
	}

	seen := make(map[[2]int64]struct{}, len(draft.Lines))
	for _, line := range draft.Lines {
		key := [2]int64{line.ItemID, line.LocationID}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: item %d location %d", ErrDuplicateLineItem, line.ItemID, line.LocationID)
		}
		seen[key] = struct{}{}

		if line.UnitPrice != nil && line.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: unit price must not be negative", ErrValidation)
		}

		switch draft.Kind {
		case KindPurchase, KindBooking:
			if line.UnitPrice == nil {
				return fmt.Errorf("%w: %s line for item %d", ErrPriceRequired, draft.Kind, line.ItemID)
			}
		case KindSale:
			if line.UnitPrice == nil {
				return fmt.Errorf("%w: sale line for item %d", ErrPriceRequired, line.ItemID)
			}
		case KindReturn:
			if draft.OriginalInvoiceID == nil && line.UnitPrice == nil {
				return fmt.Errorf("%w: return without original invoice needs a price on item %d", ErrPriceRequired, line.ItemID)
			}
		case KindTransfer:
			if line.DestLocationID == nil {
				return fmt.Errorf("%w: transfer line for item %d needs dest_location_id", ErrValidation, line.ItemID)
			}
			if *line.DestLocationID == line.LocationID {
				return fmt.Errorf("%w: transfer source and destination are the same location", ErrValidation)
			}
		}
	}
	return nil
}

// checkReferences verifies that every referenced item and location
// exists.
func checkReferences(ctx context.Context, repo TxRepository, draft Draft) error {
	for _, line := range draft.Lines {
		ok, err := repo.ItemExists(ctx, line.ItemID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: item %d", ErrNotFound, line.ItemID)
		}
		ok, err = repo.LocationExists(ctx, line.LocationID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: location %d", ErrNotFound, line.LocationID)
		}
		if line.DestLocationID != nil {
			ok, err = repo.LocationExists(ctx, *line.DestLocationID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: location %d", ErrNotFound, *line.DestLocationID)
			}
		}
	}
	return nil
}
