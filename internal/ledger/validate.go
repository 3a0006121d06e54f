package ledger

import (
	"fmt"
	"math"
)

// SubmitInput is the full request handed to the ledger mutator. Actor
// identity is always explicit; the engine never reads ambient state.
type SubmitInput struct {
	Kind        OpKind
	StoreID     int64
	DestStoreID int64
	ItemID      int64

	MainQty   float64
	SellQty   float64
	ReturnQty float64

	ConversionEnabled bool
	Conversions       []Conversion

	// RefOpID points at the operation a stock return refers to. DirectReturn
	// marks the explicit "no reference" mode.
	RefOpID      int64
	DirectReturn bool

	SalePrice float64
	BillRef   string
	LorryNo   string
	Customer  string

	// WithTrip requests a trip id from the per-store counter.
	WithTrip bool

	ActorID        int64
	IdempotencyKey string
}

// Validate gates submission. A nil error means the input is committable;
// otherwise the returned error wraps ErrValidation with a user-facing reason.
func Validate(in SubmitInput) error {
	spec, ok := Spec(in.Kind)
	if !ok {
		return ErrUnknownKind
	}
	if in.StoreID == 0 {
		return reason("store is required")
	}
	if in.ItemID == 0 {
		return reason("item is required")
	}
	if in.ActorID == 0 {
		return reason("actor is required")
	}
	if spec.DualStore {
		if in.DestStoreID == 0 {
			return reason("destination store is required")
		}
		if in.DestStoreID == in.StoreID {
			return reason("source and destination store must differ")
		}
	} else if in.DestStoreID != 0 {
		return reason("destination store only applies to transfers")
	}
	if !spec.ConversionsAllowed && len(in.Conversions) > 0 {
		return reason("conversions are not allowed for this operation kind")
	}
	for _, c := range in.Conversions {
		if c.DestItemID == 0 {
			return reason("conversion destination item is required")
		}
		if c.Qty <= 0 {
			return reason("conversion quantity must be positive")
		}
	}

	switch in.Kind {
	case KindFullClear, KindFullClearSale, KindConversionFull, KindTransferFull:
		// Valid once the item (and stores, above) are selected.
		return nil
	case KindConversionPartial:
		if len(in.Conversions) == 0 {
			return reason("at least one conversion destination is required")
		}
	case KindTransferPartial:
		if in.ConversionEnabled {
			if len(in.Conversions) == 0 {
				return reason("at least one conversion line is required")
			}
		} else if in.MainQty <= 0 {
			return reason("transfer quantity must be positive")
		}
	case KindPartialClearSale:
		if in.SellQty <= 0 {
			return reason("sold quantity must be positive")
		}
	case KindPartialClear:
		if in.MainQty <= 0 && !(in.ConversionEnabled && len(in.Conversions) > 0) {
			return reason("main quantity or at least one conversion line is required")
		}
	case KindStockReturn:
		if in.RefOpID == 0 && !in.DirectReturn {
			return reason("a reference operation or the direct return mode is required")
		}
		if in.ConversionEnabled {
			if len(in.Conversions) == 0 {
				return reason("at least one conversion line is required")
			}
		} else if in.ReturnQty <= 0 {
			return reason("return quantity must be positive")
		}
	case KindCashFloatAdjust:
		if math.Abs(in.MainQty) < qtyEpsilon {
			return reason("adjustment amount must be non-zero")
		}
	case KindStockReceipt:
		if in.MainQty <= 0 {
			return reason("received quantity must be positive")
		}
	}
	return nil
}

func reason(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
