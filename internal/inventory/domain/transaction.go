package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/herbstock/herbstock-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// Decimal places stored for each kind of amount
const (
	QuantityPlaces  = 3
	MoneyPlaces     = 2
	CostBasisPlaces = 4
)

// TransactionKind is one of the five stock movements.
type TransactionKind string

const (
	KindPurchase   TransactionKind = "purchase"
	KindUsage      TransactionKind = "usage"
	KindDisposal   TransactionKind = "disposal"
	KindReturn     TransactionKind = "return"
	KindAdjustment TransactionKind = "adjustment"
)

// kindRule describes how a kind moves stock. Absolute kinds replace the
// quantity; the rest add sign*quantity to it.
type kindRule struct {
	absolute bool
	sign     int32
	revalues bool
	restocks bool
	consumes bool
}

var kindRules = map[TransactionKind]kindRule{
	KindPurchase:   {sign: 1, revalues: true, restocks: true},
	KindUsage:      {sign: -1, consumes: true},
	KindDisposal:   {sign: -1, consumes: true},
	KindReturn:     {sign: 1},
	KindAdjustment: {absolute: true},
}

// TransactionKinds lists every kind in a stable order.
var TransactionKinds = []TransactionKind{KindPurchase, KindUsage, KindDisposal, KindReturn, KindAdjustment}

// Valid reports whether k is a known kind.
func (k TransactionKind) Valid() bool {
	_, ok := kindRules[k]
	return ok
}

// ParseTransactionKind accepts any letter case, e.g. "PURCHASE".
func ParseTransactionKind(s string) (TransactionKind, error) {
	k := TransactionKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", errors.BadRequest(fmt.Sprintf("unknown transaction kind %q", s))
	}
	return k, nil
}

// StockState is what a movement reads from the item.
type StockState struct {
	Quantity  decimal.Decimal
	CostBasis decimal.Decimal
}

// Movement is a requested change to an item's stock.
type Movement struct {
	Kind      TransactionKind
	Quantity  decimal.Decimal
	UnitPrice *decimal.Decimal
}

// Outcome is the result of applying a Movement to a StockState.
type Outcome struct {
	Quantity         decimal.Decimal
	PreviousQuantity decimal.Decimal
	NewQuantity      decimal.Decimal
	CostBasis        decimal.Decimal
	UnitPrice        *decimal.Decimal // rounded to MoneyPlaces, as stored
	TotalAmount      *decimal.Decimal
	Restocked        bool
	Consumed         bool
}

// Apply computes the stock after m. It never returns a negative quantity:
// a withdrawal larger than what is on hand fails with InsufficientStock.
func Apply(state StockState, m Movement) (Outcome, error) {
	rule, ok := kindRules[m.Kind]
	if !ok {
		return Outcome{}, errors.BadRequest(fmt.Sprintf("unknown transaction kind %q", m.Kind))
	}

	qty := m.Quantity.Round(QuantityPlaces)
	if rule.absolute {
		if qty.IsNegative() {
			return Outcome{}, errors.InvalidQuantity("adjustment target must not be negative")
		}
	} else if !qty.IsPositive() {
		return Outcome{}, errors.InvalidQuantity(fmt.Sprintf("%s quantity must be greater than zero", m.Kind))
	}

	var price *decimal.Decimal
	if m.UnitPrice != nil {
		if m.UnitPrice.IsNegative() {
			return Outcome{}, errors.BadRequest("unit price must not be negative")
		}
		p := m.UnitPrice.Round(MoneyPlaces)
		price = &p
	}

	prev := state.Quantity
	next := qty
	if !rule.absolute {
		next = prev.Add(qty.Mul(decimal.NewFromInt32(rule.sign)))
	}
	if next.IsNegative() {
		return Outcome{}, errors.InsufficientStock(prev.String(), qty.String())
	}

	out := Outcome{
		Quantity:         qty,
		PreviousQuantity: prev,
		NewQuantity:      next,
		CostBasis:        state.CostBasis,
		UnitPrice:        price,
		Restocked:        rule.restocks,
		Consumed:         rule.consumes,
	}

	if price != nil {
		total := qty.Mul(*price).Round(MoneyPlaces)
		out.TotalAmount = &total
	}

	// Weighted average over what was on hand plus what just arrived.
	if rule.revalues && price != nil && next.IsPositive() {
		held := state.CostBasis.Mul(prev)
		added := price.Mul(qty)
		out.CostBasis = held.Add(added).DivRound(next, CostBasisPlaces)
	}

	return out, nil
}

// LedgerEntry is one immutable stock movement.
type LedgerEntry struct {
	ID               string           `db:"id" json:"id"`
	LocationID       string           `db:"location_id" json:"location_id"`
	ItemID           string           `db:"item_id" json:"item_id"`
	Sequence         int64            `db:"sequence" json:"sequence"`
	Kind             TransactionKind  `db:"kind" json:"kind"`
	Quantity         decimal.Decimal  `db:"quantity" json:"quantity"`
	UnitPrice        *decimal.Decimal `db:"unit_price" json:"unit_price,omitempty"`
	TotalAmount      *decimal.Decimal `db:"total_amount" json:"total_amount,omitempty"`
	PreviousQuantity decimal.Decimal  `db:"previous_quantity" json:"previous_quantity"`
	NewQuantity      decimal.Decimal  `db:"new_quantity" json:"new_quantity"`
	PrescriptionID   *string          `db:"prescription_id" json:"prescription_id,omitempty"`
	PurchaseOrderID  *string          `db:"purchase_order_id" json:"purchase_order_id,omitempty"`
	OrderLineIndex   *int             `db:"order_line_index" json:"order_line_index,omitempty"`
	Note             *string          `db:"note" json:"note,omitempty"`
	PerformedBy      string           `db:"performed_by" json:"performed_by"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	// Joined from the item for listings
	HerbName *string `db:"herb_name" json:"herb_name,omitempty"`
}

// TransactionFilter narrows listTransactions
type TransactionFilter struct {
	ItemID string
	Kind   TransactionKind
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// ChainBreak pinpoints the first ledger entry that does not follow from
// the one before it.
type ChainBreak struct {
	Sequence int64           `json:"sequence"`
	EntryID  string          `json:"entry_id,omitempty"`
	Reason   string          `json:"reason"`
	Expected decimal.Decimal `json:"expected"`
	Found    decimal.Decimal `json:"found"`
}

// LedgerReport is the result of replaying an item's ledger.
type LedgerReport struct {
	ItemID     string          `json:"item_id"`
	Entries    int             `json:"entries"`
	Quantity   decimal.Decimal `json:"quantity"`
	Replayed   decimal.Decimal `json:"replayed_quantity"`
	Consistent bool            `json:"consistent"`
	Break      *ChainBreak     `json:"break,omitempty"`
}

// VerifyChain replays entries, which must be in sequence order, from an
// empty item and checks every link plus the final on-hand quantity.
func VerifyChain(itemID string, entries []LedgerEntry, onHand decimal.Decimal) LedgerReport {
	report := LedgerReport{ItemID: itemID, Entries: len(entries), Quantity: onHand}
	running := decimal.Zero

	for i, e := range entries {
		want := int64(i + 1)
		if e.Sequence != want {
			report.Replayed = running
			report.Break = &ChainBreak{
				Sequence: e.Sequence, EntryID: e.ID, Reason: "sequence gap",
				Expected: decimal.NewFromInt(want), Found: decimal.NewFromInt(e.Sequence),
			}
			return report
		}
		if !e.PreviousQuantity.Equal(running) {
			report.Replayed = running
			report.Break = &ChainBreak{
				Sequence: e.Sequence, EntryID: e.ID, Reason: "previous quantity does not match prior entry",
				Expected: running, Found: e.PreviousQuantity,
			}
			return report
		}

		rule, ok := kindRules[e.Kind]
		expected := e.Quantity
		if ok && !rule.absolute {
			expected = running.Add(e.Quantity.Mul(decimal.NewFromInt32(rule.sign)))
		}
		if !ok || !e.NewQuantity.Equal(expected) {
			report.Replayed = running
			report.Break = &ChainBreak{
				Sequence: e.Sequence, EntryID: e.ID, Reason: "new quantity does not follow from kind",
				Expected: expected, Found: e.NewQuantity,
			}
			return report
		}
		running = e.NewQuantity
	}

	report.Replayed = running
	if !running.Equal(onHand) {
		report.Break = &ChainBreak{
			Sequence: int64(len(entries)), Reason: "item quantity differs from replayed ledger",
			Expected: running, Found: onHand,
		}
		return report
	}

	report.Consistent = true
	return report
}
