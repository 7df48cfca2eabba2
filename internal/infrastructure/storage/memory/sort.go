package memory

import (
	"sort"

	"spcledger/internal/core/entity"
	"spcledger/internal/core/id"
)

func sortBalances(bs []entity.QuantityBalance) {
	sort.Slice(bs, func(i, j int) bool {
		return id.Compare(bs[i].AccountID, bs[j].AccountID) < 0
	})
}

func sortKeys(keys []entity.AccountKey) {
	sort.Slice(keys, func(i, j int) bool {
		if c := id.Compare(keys[i].CompanyID, keys[j].CompanyID); c != 0 {
			return c < 0
		}
		return id.Compare(keys[i].AccountID, keys[j].AccountID) < 0
	})
}
