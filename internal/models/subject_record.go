package models

import (
	"encoding/json"
	"math"
)

// Record is a subject record as stored in its collection. Fields are owned by the entity's CRUD surface.
type Record map[string]any

// ID returns the record identifier.
func (r Record) ID() string {
	return r.String("id")
}

// String returns a string field or "".
func (r Record) String(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Int returns a numeric field truncated to int, and whether it was present and numeric.
func (r Record) Int(key string) (int, bool) {
	return toInt(r[key])
}

// Stock fields on product records.
const (
	FieldOpeningStock    = "openingStock"
	FieldStockByLocation = "stockByLocation"
)

// StockAt returns the product quantity at a location. Locations without their own figure fall back to the opening stock.
func (r Record) StockAt(locationID string) int {
	if byLocation, ok := r[FieldStockByLocation].(map[string]any); ok {
		if qty, ok := toInt(byLocation[locationID]); ok {
			return qty
		}
	}
	opening, _ := r.Int(FieldOpeningStock)
	return opening
}

// SetStockAt writes an absolute quantity for a location.
func (r Record) SetStockAt(locationID string, qty int) {
	byLocation, ok := r[FieldStockByLocation].(map[string]any)
	if !ok {
		byLocation = make(map[string]any)
		r[FieldStockByLocation] = byLocation
	}
	byLocation[locationID] = qty
}

// Stock adjustment record fields.
const (
	FieldVoucherNo  = "voucherNo"
	FieldProductID  = "productId"
	FieldLocationID = "locationId"
	FieldBeforeQty  = "beforeQty"
	FieldDelta      = "delta"
	FieldAfterQty   = "afterQty"
	// FieldAppliedDelta is the delta last written into product stock for this record.
	FieldAppliedDelta = "appliedDelta"
)

// BatchMemberFromRecord builds the batch member view of a stock adjustment record.
func BatchMemberFromRecord(r Record) BatchMember {
	before, _ := r.Int(FieldBeforeQty)
	delta, _ := r.Int(FieldDelta)
	member := BatchMember{
		SubjectID:  r.ID(),
		ProductID:  r.String(FieldProductID),
		LocationID: r.String(FieldLocationID),
		BeforeQty:  before,
		Delta:      delta,
	}
	if applied, ok := r.Int(FieldAppliedDelta); ok {
		member.AppliedDelta = &applied
	}
	return member
}

// DecodeRecords reads a collection payload. A single object is treated as a one-element collection.
func DecodeRecords(raw []byte) ([]Record, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	trimmed := firstNonSpace(raw)
	if trimmed == '{' {
		var single Record
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, err
		}
		return []Record{single}, nil
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func firstNonSpace(raw []byte) byte {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b
		}
	}
	return 0
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(math.Round(n)), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return int(math.Round(f)), true
		}
	}
	return 0, false
}
