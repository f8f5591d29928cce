// Package discount implements the sequential store-credit allocation applied
// at checkout. The customer's balance is spread across order lines in input
// order, each line capped at a fixed amount, until the balance runs out.
package discount

// Allocation is the credit assigned to one order line.
type Allocation struct {
	Amount int64
}

// Allocate distributes balance across count lines in order. Each line
// receives min(remaining balance, perLineCap); allocation is bound by the
// balance and the cap only, never by the line subtotal. The second return
// value is the balance left after all lines are funded.
func Allocate(balance int64, count int, perLineCap int64) ([]Allocation, int64) {
	allocations := make([]Allocation, count)
	if balance <= 0 || perLineCap <= 0 {
		return allocations, maxInt64(balance, 0)
	}

	remaining := balance
	for i := range allocations {
		if remaining <= 0 {
			break
		}
		amount := perLineCap
		if remaining < amount {
			amount = remaining
		}
		allocations[i].Amount = amount
		remaining -= amount
	}
	return allocations, remaining
}

// Total sums the allocated amounts.
func Total(allocations []Allocation) int64 {
	var total int64
	for _, a := range allocations {
		total += a.Amount
	}
	return total
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
