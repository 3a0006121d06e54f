package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPreviewFullClearWastage(t *testing.T) {
	// 100 kg on the books, 90 kg declared on clearing: a 10 kg loss.
	preview, err := Calculate(PreviewInput{
		Kind:         KindFullClear,
		CurrentStock: 100,
		SourceItemID: 1,
		MainQty:      90,
	})
	require.NoError(t, err)
	require.InDelta(t, 0, preview.Source.Projected, 1e-9)
	require.InDelta(t, -100, preview.Source.Diff, 1e-9)
	require.NotNil(t, preview.Wastage)
	require.InDelta(t, -10, *preview.Wastage, 1e-9)
	require.Nil(t, preview.Transfer)
}

func TestPreviewPartialClearWithConversion(t *testing.T) {
	preview, err := Calculate(PreviewInput{
		Kind:              KindPartialClear,
		CurrentStock:      50,
		SourceItemID:      1,
		MainQty:           20,
		ConversionEnabled: true,
		Conversions:       []Conversion{{DestItemID: 2, Qty: 10}},
		ConvDestStocks:    map[int64]float64{2: 5},
	})
	require.NoError(t, err)
	require.InDelta(t, 20, preview.Source.Projected, 1e-9)
	require.Nil(t, preview.Wastage)
	require.Len(t, preview.Conversions, 1)
	require.InDelta(t, 15, preview.Conversions[0].Projected, 1e-9)
}

func TestPreviewTransferFullSurplus(t *testing.T) {
	preview, err := Calculate(PreviewInput{
		Kind:              KindTransferFull,
		CurrentStock:      40,
		DestCurrentStock:  0,
		SourceItemID:      1,
		ConversionEnabled: true,
		Conversions:       []Conversion{{DestItemID: 2, Qty: 42}},
		ConvDestStocks:    map[int64]float64{2: 0},
	})
	require.NoError(t, err)
	require.InDelta(t, 0, preview.Source.Projected, 1e-9)
	require.NotNil(t, preview.Wastage)
	require.InDelta(t, 2, *preview.Wastage, 1e-9)
	require.NotNil(t, preview.Transfer)
	require.InDelta(t, 0, preview.Transfer.Destination.Projected, 1e-9)
	require.Len(t, preview.Conversions, 1)
	require.InDelta(t, 42, preview.Conversions[0].Projected, 1e-9)
}

func TestPreviewTransferFullIgnoresConversionsWhenDisabled(t *testing.T) {
	// With the toggle off the conversion lines never land anywhere, so the
	// wastage figure must not count them either.
	preview, err := Calculate(PreviewInput{
		Kind:             KindTransferFull,
		CurrentStock:     40,
		DestCurrentStock: 0,
		SourceItemID:     1,
		MainQty:          40,
		Conversions:      []Conversion{{DestItemID: 2, Qty: 42}},
		ConvDestStocks:   map[int64]float64{2: 0},
	})
	require.NoError(t, err)
	require.InDelta(t, 0, preview.Source.Projected, 1e-9)
	require.NotNil(t, preview.Wastage)
	require.InDelta(t, 0, *preview.Wastage, 1e-9)
	require.NotNil(t, preview.Transfer)
	require.InDelta(t, 40, preview.Transfer.Destination.Projected, 1e-9)
	require.Empty(t, preview.Conversions)
}

func TestPreviewStockReturnWithoutConversion(t *testing.T) {
	preview, err := Calculate(PreviewInput{
		Kind:         KindStockReturn,
		CurrentStock: 7,
		SourceItemID: 1,
		ReturnQty:    15,
	})
	require.NoError(t, err)
	require.InDelta(t, 22, preview.Source.Projected, 1e-9)
	require.Nil(t, preview.Wastage)
}

func TestPreviewStockReturnWithConversionLeavesMainUntouched(t *testing.T) {
	preview, err := Calculate(PreviewInput{
		Kind:              KindStockReturn,
		CurrentStock:      7,
		SourceItemID:      1,
		ReturnQty:         15,
		ConversionEnabled: true,
		Conversions:       []Conversion{{DestItemID: 3, Qty: 15}},
		ConvDestStocks:    map[int64]float64{3: 1},
	})
	require.NoError(t, err)
	require.InDelta(t, 7, preview.Source.Projected, 1e-9)
	require.Len(t, preview.Conversions, 1)
	require.InDelta(t, 16, preview.Conversions[0].Projected, 1e-9)
}

func TestPreviewSelfConversionAddsBack(t *testing.T) {
	// A full clear converting 30 back onto the same item keeps exactly 30.
	preview, err := Calculate(PreviewInput{
		Kind:         KindFullClear,
		CurrentStock: 80,
		SourceItemID: 1,
		MainQty:      50,
		Conversions:  []Conversion{{DestItemID: 1, Qty: 30}},
	})
	require.NoError(t, err)
	require.InDelta(t, 30, preview.Source.Projected, 1e-9)
	require.NotNil(t, preview.Wastage)
	require.InDelta(t, 0, *preview.Wastage, 1e-9) // 50 + 30 - 80
}

func TestPreviewTransferSelfConversionBelongsToDestination(t *testing.T) {
	preview, err := Calculate(PreviewInput{
		Kind:              KindTransferPartial,
		CurrentStock:      60,
		DestCurrentStock:  10,
		SourceItemID:      1,
		ConversionEnabled: true,
		Conversions:       []Conversion{{DestItemID: 1, Qty: 25}},
		ConvDestStocks:    map[int64]float64{1: 10},
	})
	require.NoError(t, err)
	// Source loses the converted quantity; the self-addition rule never
	// applies to the source leg of a transfer.
	require.InDelta(t, 35, preview.Source.Projected, 1e-9)
	require.NotNil(t, preview.Transfer)
	require.InDelta(t, 35, preview.Transfer.Destination.Projected, 1e-9)
}

func TestPreviewCashFloatAndReceiptAreAdditions(t *testing.T) {
	preview, err := Calculate(PreviewInput{Kind: KindCashFloatAdjust, CurrentStock: 100, SourceItemID: 9, MainQty: -40})
	require.NoError(t, err)
	require.InDelta(t, 60, preview.Source.Projected, 1e-9)

	preview, err = Calculate(PreviewInput{Kind: KindStockReceipt, CurrentStock: 5, SourceItemID: 9, MainQty: 12})
	require.NoError(t, err)
	require.InDelta(t, 17, preview.Source.Projected, 1e-9)
}

func TestPreviewDeductionFormulaPerKind(t *testing.T) {
	conversions := []Conversion{{DestItemID: 2, Qty: 4}, {DestItemID: 3, Qty: 6}}
	cases := []struct {
		name      string
		in        PreviewInput
		projected float64
	}{
		{"full clear", PreviewInput{Kind: KindFullClear, CurrentStock: 100, SourceItemID: 1, MainQty: 95}, 0},
		{"full clear sale", PreviewInput{Kind: KindFullClearSale, CurrentStock: 100, SourceItemID: 1, SellQty: 95}, 0},
		{"partial clear", PreviewInput{Kind: KindPartialClear, CurrentStock: 100, SourceItemID: 1, MainQty: 20, ConversionEnabled: true, Conversions: conversions}, 70},
		{"partial clear sale", PreviewInput{Kind: KindPartialClearSale, CurrentStock: 100, SourceItemID: 1, SellQty: 30, ConversionEnabled: true, Conversions: conversions}, 60},
		{"conversion full", PreviewInput{Kind: KindConversionFull, CurrentStock: 100, SourceItemID: 1, Conversions: conversions}, 0},
		{"conversion partial", PreviewInput{Kind: KindConversionPartial, CurrentStock: 100, SourceItemID: 1, Conversions: conversions}, 90},
		{"transfer full", PreviewInput{Kind: KindTransferFull, CurrentStock: 100, SourceItemID: 1, MainQty: 98}, 0},
		{"transfer partial no conversion", PreviewInput{Kind: KindTransferPartial, CurrentStock: 100, SourceItemID: 1, MainQty: 30}, 70},
		{"transfer partial with conversion", PreviewInput{Kind: KindTransferPartial, CurrentStock: 100, SourceItemID: 1, ConversionEnabled: true, Conversions: conversions}, 90},
		{"stock return", PreviewInput{Kind: KindStockReturn, CurrentStock: 100, SourceItemID: 1, ReturnQty: 15}, 115},
		{"cash float", PreviewInput{Kind: KindCashFloatAdjust, CurrentStock: 100, SourceItemID: 1, MainQty: 25}, 125},
		{"stock receipt", PreviewInput{Kind: KindStockReceipt, CurrentStock: 100, SourceItemID: 1, MainQty: 25}, 125},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			preview, err := Calculate(tc.in)
			require.NoError(t, err)
			require.InDelta(t, tc.projected, preview.Source.Projected, 1e-9)
		})
	}
}

func TestPreviewUnknownKind(t *testing.T) {
	_, err := Calculate(PreviewInput{Kind: "NOT_A_KIND"})
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestKindsCatalogIsClosed(t *testing.T) {
	specs := Kinds()
	require.Len(t, specs, 11)
	seen := map[OpKind]bool{}
	for _, spec := range specs {
		require.False(t, seen[spec.Kind])
		seen[spec.Kind] = true
		require.NotEmpty(t, spec.CategoryToken)
	}
}
