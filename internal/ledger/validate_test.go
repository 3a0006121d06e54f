package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validInput(kind OpKind) SubmitInput {
	in := SubmitInput{Kind: kind, StoreID: 1, ItemID: 1, ActorID: 7}
	switch kind {
	case KindPartialClear, KindCashFloatAdjust, KindStockReceipt:
		in.MainQty = 5
	case KindPartialClearSale:
		in.SellQty = 5
	case KindConversionFull, KindConversionPartial:
		in.Conversions = []Conversion{{DestItemID: 2, Qty: 3}}
	case KindStockReturn:
		in.DirectReturn = true
		in.ReturnQty = 5
	case KindTransferFull:
		in.DestStoreID = 2
	case KindTransferPartial:
		in.DestStoreID = 2
		in.MainQty = 5
	}
	return in
}

func TestValidateAcceptsEveryKind(t *testing.T) {
	for _, spec := range Kinds() {
		t.Run(string(spec.Kind), func(t *testing.T) {
			require.NoError(t, Validate(validInput(spec.Kind)))
		})
	}
}

func TestValidateRequiresSelections(t *testing.T) {
	in := validInput(KindFullClear)
	in.ItemID = 0
	require.ErrorIs(t, Validate(in), ErrValidation)

	in = validInput(KindFullClear)
	in.StoreID = 0
	require.ErrorIs(t, Validate(in), ErrValidation)

	in = validInput(KindFullClear)
	in.ActorID = 0
	require.ErrorIs(t, Validate(in), ErrValidation)
}

func TestValidateFullClearNeedsNothingElse(t *testing.T) {
	require.NoError(t, Validate(SubmitInput{Kind: KindFullClear, StoreID: 1, ItemID: 1, ActorID: 1}))
	require.NoError(t, Validate(SubmitInput{Kind: KindFullClearSale, StoreID: 1, ItemID: 1, ActorID: 1}))
}

func TestValidateConversionKindNeedsDestination(t *testing.T) {
	in := validInput(KindConversionPartial)
	in.Conversions = nil
	require.ErrorIs(t, Validate(in), ErrValidation)
}

func TestValidateTransferRules(t *testing.T) {
	// Full mode is always valid.
	require.NoError(t, Validate(validInput(KindTransferFull)))

	// Partial with conversion enabled needs at least one line.
	in := validInput(KindTransferPartial)
	in.ConversionEnabled = true
	in.MainQty = 0
	require.ErrorIs(t, Validate(in), ErrValidation)
	in.Conversions = []Conversion{{DestItemID: 2, Qty: 1}}
	require.NoError(t, Validate(in))

	// Partial without conversion needs a positive main quantity.
	in = validInput(KindTransferPartial)
	in.MainQty = 0
	require.ErrorIs(t, Validate(in), ErrValidation)

	// Same source and destination store is contradictory.
	in = validInput(KindTransferPartial)
	in.DestStoreID = in.StoreID
	require.ErrorIs(t, Validate(in), ErrValidation)
}

func TestValidatePartialClearAlternatives(t *testing.T) {
	in := SubmitInput{Kind: KindPartialClear, StoreID: 1, ItemID: 1, ActorID: 1}
	require.ErrorIs(t, Validate(in), ErrValidation)

	in.MainQty = 3
	require.NoError(t, Validate(in))

	in.MainQty = 0
	in.ConversionEnabled = true
	in.Conversions = []Conversion{{DestItemID: 2, Qty: 1}}
	require.NoError(t, Validate(in))
}

func TestValidatePartialClearSaleNeedsSoldQty(t *testing.T) {
	in := validInput(KindPartialClearSale)
	in.SellQty = 0
	require.ErrorIs(t, Validate(in), ErrValidation)
}

func TestValidateStockReturnModes(t *testing.T) {
	// Neither a reference nor the direct mode: rejected.
	in := SubmitInput{Kind: KindStockReturn, StoreID: 1, ItemID: 1, ActorID: 1, ReturnQty: 5}
	require.ErrorIs(t, Validate(in), ErrValidation)

	in.RefOpID = 42
	require.NoError(t, Validate(in))

	// Conversion enabled needs a line instead of a return quantity.
	in.ConversionEnabled = true
	in.ReturnQty = 0
	require.ErrorIs(t, Validate(in), ErrValidation)
	in.Conversions = []Conversion{{DestItemID: 2, Qty: 5}}
	require.NoError(t, Validate(in))
}

func TestValidateRejectsForeignConversions(t *testing.T) {
	in := validInput(KindStockReceipt)
	in.Conversions = []Conversion{{DestItemID: 2, Qty: 1}}
	require.ErrorIs(t, Validate(in), ErrValidation)
}

func TestValidateCashFloatNeedsNonZeroAmount(t *testing.T) {
	in := validInput(KindCashFloatAdjust)
	in.MainQty = 0
	require.ErrorIs(t, Validate(in), ErrValidation)
	in.MainQty = -10
	require.NoError(t, Validate(in))
}

func TestValidateUnknownKind(t *testing.T) {
	require.ErrorIs(t, Validate(SubmitInput{Kind: "NOPE", StoreID: 1, ItemID: 1, ActorID: 1}), ErrUnknownKind)
}
