package ledger

// OpKind enumerates the supported stock operation kinds. The catalog is a
// closed set: adding a kind requires extending the preview, validation and
// commit switches explicitly.
type OpKind string

const (
	// KindFullClear zeroes an item's stock at a store in one action.
	KindFullClear OpKind = "FULL_CLEAR"
	// KindPartialClear removes a specified quantity, remainder may go negative.
	KindPartialClear OpKind = "PARTIAL_CLEAR"
	// KindFullClearSale is a full clear with sale price / bill reference.
	KindFullClearSale OpKind = "FULL_CLEAR_SALE"
	// KindPartialClearSale removes the sold quantity plus conversions.
	KindPartialClearSale OpKind = "PARTIAL_CLEAR_SALE"
	// KindConversionFull consumes all current stock into other items.
	KindConversionFull OpKind = "CONVERSION_FULL"
	// KindConversionPartial consumes only the converted quantity.
	KindConversionPartial OpKind = "CONVERSION_PARTIAL"
	// KindCashFloatAdjust applies a signed adjustment to a store's cash float.
	KindCashFloatAdjust OpKind = "CASH_FLOAT_ADJUST"
	// KindStockReturn adds returned quantity back, optionally via conversions.
	KindStockReturn OpKind = "STOCK_RETURN"
	// KindStockReceipt records goods inward.
	KindStockReceipt OpKind = "STOCK_RECEIPT"
	// KindTransferFull releases all source stock to another store.
	KindTransferFull OpKind = "TRANSFER_FULL"
	// KindTransferPartial releases a chosen quantity to another store.
	KindTransferPartial OpKind = "TRANSFER_PARTIAL"
)

// KindSpec declares the capabilities of one operation kind.
type KindSpec struct {
	Kind OpKind
	// FullVariant marks kinds that always consume the entire current stock.
	FullVariant bool
	// Sale marks kinds that carry a sale price and bill reference.
	Sale bool
	// ConversionsAllowed marks kinds that may fan out into other items.
	ConversionsAllowed bool
	// DualStore marks transfers, the only kinds touching two store ledgers.
	DualStore bool
	// ComputesWastage marks kinds whose commit derives a wastage/surplus figure.
	ComputesWastage bool
	// CategoryToken is the fixed token embedded in generated operation codes.
	CategoryToken string
}

var kindSpecs = map[OpKind]KindSpec{
	KindFullClear:         {Kind: KindFullClear, FullVariant: true, ConversionsAllowed: true, ComputesWastage: true, CategoryToken: "CLR"},
	KindPartialClear:      {Kind: KindPartialClear, ConversionsAllowed: true, CategoryToken: "CLR"},
	KindFullClearSale:     {Kind: KindFullClearSale, FullVariant: true, Sale: true, ConversionsAllowed: true, ComputesWastage: true, CategoryToken: "SAL"},
	KindPartialClearSale:  {Kind: KindPartialClearSale, Sale: true, ConversionsAllowed: true, CategoryToken: "SAL"},
	KindConversionFull:    {Kind: KindConversionFull, FullVariant: true, ConversionsAllowed: true, ComputesWastage: true, CategoryToken: "CNV"},
	KindConversionPartial: {Kind: KindConversionPartial, ConversionsAllowed: true, CategoryToken: "CNV"},
	KindCashFloatAdjust:   {Kind: KindCashFloatAdjust, CategoryToken: "CSH"},
	KindStockReturn:       {Kind: KindStockReturn, ConversionsAllowed: true, CategoryToken: "RTN"},
	KindStockReceipt:      {Kind: KindStockReceipt, CategoryToken: "RCV"},
	KindTransferFull:      {Kind: KindTransferFull, FullVariant: true, ConversionsAllowed: true, DualStore: true, ComputesWastage: true, CategoryToken: "TRF"},
	KindTransferPartial:   {Kind: KindTransferPartial, ConversionsAllowed: true, DualStore: true, CategoryToken: "TRF"},
}

// Spec returns the capability record for a kind.
func Spec(kind OpKind) (KindSpec, bool) {
	spec, ok := kindSpecs[kind]
	return spec, ok
}

// Kinds lists all registered kinds in a stable order.
func Kinds() []KindSpec {
	ordered := []OpKind{
		KindFullClear, KindPartialClear, KindFullClearSale, KindPartialClearSale,
		KindConversionFull, KindConversionPartial, KindCashFloatAdjust,
		KindStockReturn, KindStockReceipt, KindTransferFull, KindTransferPartial,
	}
	specs := make([]KindSpec, 0, len(ordered))
	for _, k := range ordered {
		specs = append(specs, kindSpecs[k])
	}
	return specs
}
