package core

// MonthlySpend sums the expenses of one category within one calendar month.
//
// Income is ignored and so are other categories and months. A negative amount
// contributes nothing: refunds must never lower the spend a budget is judged
// against.
func MonthlySpend(txs []Transaction, categoryID string, month MonthKey) Money {
	var total int64
	for _, tx := range txs {
		if !countsTowardBudget(tx, categoryID) {
			continue
		}
		if tx.Month() != month {
			continue
		}
		total += tx.Amount.Minor
	}
	return Money{Minor: total}
}

// SpendByMonth returns the expense total of a category for every month that
// has at least one counted transaction.
func SpendByMonth(txs []Transaction, categoryID string) map[MonthKey]Money {
	out := make(map[MonthKey]Money)
	for _, tx := range txs {
		if !countsTowardBudget(tx, categoryID) {
			continue
		}
		k := tx.Month()
		out[k] = out[k].Add(tx.Amount)
	}
	return out
}

func countsTowardBudget(tx Transaction, categoryID string) bool {
	return !tx.IsIncome && tx.CategoryID == categoryID && tx.Amount.Minor > 0
}
