package ledger

// PreviewInput carries everything the calculator needs. Stock values are the
// caller's possibly-stale reads; the calculator never touches storage.
type PreviewInput struct {
	Kind OpKind `json:"kind"`
	// CurrentStock is the source (store, item) stock.
	CurrentStock float64 `json:"current_stock"`
	// DestCurrentStock is the same item's stock at the destination store
	// (transfers only).
	DestCurrentStock float64 `json:"dest_current_stock"`
	// ConvDestStocks maps conversion destination item id to its current stock
	// (at the destination store for transfers).
	ConvDestStocks map[int64]float64 `json:"conv_dest_stocks"`

	SourceItemID      int64        `json:"source_item_id"`
	MainQty           float64      `json:"main_qty"`
	SellQty           float64      `json:"sell_qty"`
	ReturnQty         float64      `json:"return_qty"`
	ConversionEnabled bool         `json:"conversion_enabled"`
	Conversions       []Conversion `json:"conversions"`
}

// Projection is one item's current/projected pair.
type Projection struct {
	Current   float64 `json:"current"`
	Projected float64 `json:"projected"`
	Diff      float64 `json:"diff"`
}

// ConversionPreview projects one conversion destination.
type ConversionPreview struct {
	DestItemID int64   `json:"dest_item_id"`
	Qty        float64 `json:"qty"`
	Current    float64 `json:"current"`
	Projected  float64 `json:"projected"`
}

// TransferPreview holds the two independent store projections of a transfer.
type TransferPreview struct {
	Source      Projection `json:"source"`
	Destination Projection `json:"destination"`
}

// Preview is the full projection returned to the caller.
type Preview struct {
	Source      Projection          `json:"source"`
	Wastage     *float64            `json:"wastage"`
	Transfer    *TransferPreview    `json:"transfer"`
	Conversions []ConversionPreview `json:"conversions"`
}

// Calculate is the preview calculator: pure, deterministic and side-effect
// free. Commit reuses the same deduction and self-addition helpers so the
// projected and the persisted stock can never diverge.
func Calculate(in PreviewInput) (Preview, error) {
	spec, ok := Spec(in.Kind)
	if !ok {
		return Preview{}, ErrUnknownKind
	}

	d := deduction(spec, in)
	s := selfAddition(spec, in)

	var projected float64
	if spec.FullVariant && !spec.DualStore {
		// Full clears and full conversions set the pair to exactly its
		// self-addition, never below zero.
		projected = s
	} else if spec.DualStore {
		projected = in.CurrentStock - d
		if spec.FullVariant {
			projected = 0
		}
	} else {
		projected = in.CurrentStock - d + s
	}

	out := Preview{
		Source: Projection{
			Current:   in.CurrentStock,
			Projected: projected,
			Diff:      projected - in.CurrentStock,
		},
	}

	if spec.ComputesWastage {
		w := primaryOutput(spec, in) + convertedTotal(spec, in) - in.CurrentStock
		out.Wastage = &w
	}

	if spec.DualStore {
		// Conversions onto the same item land on the destination store's
		// ledger, so they join the destination projection here.
		destProjected := in.DestCurrentStock + arrivalQty(spec, in)
		if convEnabled(spec, in) {
			for _, c := range in.Conversions {
				if c.DestItemID == in.SourceItemID {
					destProjected += c.Qty
				}
			}
		}
		out.Transfer = &TransferPreview{
			Source: out.Source,
			Destination: Projection{
				Current:   in.DestCurrentStock,
				Projected: destProjected,
				Diff:      destProjected - in.DestCurrentStock,
			},
		}
	}

	if convEnabled(spec, in) {
		out.Conversions = make([]ConversionPreview, 0, len(in.Conversions))
		for _, c := range in.Conversions {
			cur := in.ConvDestStocks[c.DestItemID]
			projectedDest := cur + c.Qty
			if !spec.DualStore && c.DestItemID == in.SourceItemID {
				// Self-conversions are already folded into the source
				// projection; mirror that figure here.
				projectedDest = out.Source.Projected
				cur = in.CurrentStock
			}
			out.Conversions = append(out.Conversions, ConversionPreview{
				DestItemID: c.DestItemID,
				Qty:        c.Qty,
				Current:    cur,
				Projected:  projectedDest,
			})
		}
	}

	return out, nil
}

// convertedTotal sums the conversion quantities when conversion lines
// participate in the formulas, and is zero otherwise. Deduction, wastage and
// the persisted converted quantity all draw from this one figure.
func convertedTotal(spec KindSpec, in PreviewInput) float64 {
	if !convEnabled(spec, in) {
		return 0
	}
	return totalConverted(in.Conversions)
}

// deduction implements the per-kind removal formula. A negative deduction is
// an addition (returns, receipts, cash float).
func deduction(spec KindSpec, in PreviewInput) float64 {
	total := convertedTotal(spec, in)
	switch spec.Kind {
	case KindFullClear, KindFullClearSale, KindConversionFull, KindTransferFull:
		return in.CurrentStock
	case KindPartialClear:
		return in.MainQty + total
	case KindPartialClearSale:
		return in.SellQty + total
	case KindConversionPartial:
		return total
	case KindTransferPartial:
		if in.ConversionEnabled {
			return total
		}
		return in.MainQty
	case KindStockReturn:
		if in.ConversionEnabled {
			// The main item is untouched; only destinations gain stock.
			return 0
		}
		return -in.ReturnQty
	case KindCashFloatAdjust, KindStockReceipt:
		return -in.MainQty
	}
	return 0
}

// selfAddition returns the quantity converted back onto the source item.
// Never applies to the source-store leg of a transfer: that quantity belongs
// exclusively to the destination store's projection.
func selfAddition(spec KindSpec, in PreviewInput) float64 {
	if spec.DualStore || !convEnabled(spec, in) {
		return 0
	}
	var total float64
	for _, c := range in.Conversions {
		if c.DestItemID == in.SourceItemID {
			total += c.Qty
		}
	}
	return total
}

// primaryOutput is the declared non-converted output used by the wastage
// formula: wastage = primaryOutput + totalConverted - previousStock.
func primaryOutput(spec KindSpec, in PreviewInput) float64 {
	switch spec.Kind {
	case KindFullClear, KindTransferFull:
		return in.MainQty
	case KindFullClearSale:
		return in.SellQty
	case KindConversionFull:
		return 0
	}
	return 0
}

// arrivalQty is the primary item's quantity arriving at the destination store.
func arrivalQty(spec KindSpec, in PreviewInput) float64 {
	switch spec.Kind {
	case KindTransferFull:
		return in.MainQty
	case KindTransferPartial:
		if in.ConversionEnabled {
			return 0
		}
		return in.MainQty
	}
	return 0
}

// convEnabled reports whether conversion lines participate in the formulas.
// Conversion kinds are always enabled; other kinds honour the caller's toggle.
func convEnabled(spec KindSpec, in PreviewInput) bool {
	if !spec.ConversionsAllowed {
		return false
	}
	switch spec.Kind {
	case KindConversionFull, KindConversionPartial:
		return true
	case KindFullClear, KindFullClearSale:
		return len(in.Conversions) > 0
	}
	return in.ConversionEnabled
}
