package analysis

import (
	"fmt"
	"sort"
	"strings"

	"MarginSight/internal/config"
)

// Classification is the total, disjoint partition of every contract
// code observed in revenue, hours or expense records.
type Classification struct {
	RevenueCenters map[string]*RevenueCenter
	CostCenters    map[string]*CostCenter
	NonRevenue     map[string]*NonRevenueClient

	// Codes is every observed code, sorted, for deterministic iteration.
	Codes []string

	// Ambiguous lists codes that matched both a revenue row and the
	// cost-center pattern; revenue won, and the validator reports it.
	Ambiguous []string
}

// costCenterPool reports whether a code matches the recognized
// overhead cost-center pattern, and which pool it belongs to.
func costCenterPool(code string) (string, bool) {
	upper := strings.ToUpper(code)
	matched := false
	for _, prefix := range config.CostCenterPrefixes {
		if strings.HasPrefix(upper, prefix) {
			matched = true
			break
		}
	}
	if !matched {
		return "", false
	}
	for _, marker := range config.DataPoolMarkers {
		if strings.Contains(upper, marker) {
			return PoolData, true
		}
	}
	return PoolSGA, true
}

// Classify partitions the observed contract codes. Every code lands in
// exactly one bucket; a code with client revenue is always a Revenue
// Center, even when it also looks like a cost center.
func Classify(rs *RecordSet) *Classification {
	cls := &Classification{
		RevenueCenters: make(map[string]*RevenueCenter),
		CostCenters:    make(map[string]*CostCenter),
		NonRevenue:     make(map[string]*NonRevenueClient),
	}

	// Revenue rows with a nonzero amount establish Revenue Centers.
	revenueByCode := make(map[string]RevenueRow)
	for _, row := range rs.Revenue {
		if row.Revenue.IsZero() {
			continue
		}
		if existing, ok := revenueByCode[row.Code]; ok {
			existing.Revenue = existing.Revenue.Add(row.Revenue)
			revenueByCode[row.Code] = existing
			continue
		}
		revenueByCode[row.Code] = row
	}

	observed := make(map[string]bool)
	for code := range revenueByCode {
		observed[code] = true
	}
	for _, h := range rs.Hours {
		observed[h.Code] = true
	}
	for _, e := range rs.Expenses {
		observed[e.Code] = true
	}

	cls.Codes = make([]string, 0, len(observed))
	for code := range observed {
		cls.Codes = append(cls.Codes, code)
	}
	sort.Strings(cls.Codes)

	for _, code := range cls.Codes {
		pool, isCostCenter := costCenterPool(code)
		if row, hasRevenue := revenueByCode[code]; hasRevenue {
			cls.RevenueCenters[code] = &RevenueCenter{
				Code:     code,
				Name:     row.Name,
				Section:  row.Section,
				Category: row.Category,
				Tag:      row.Tag,
				Revenue:  row.Revenue,
			}
			if isCostCenter {
				cls.Ambiguous = append(cls.Ambiguous, code)
			}
			continue
		}
		if isCostCenter {
			cls.CostCenters[code] = &CostCenter{
				Code:        code,
				Description: fmt.Sprintf("%s overhead (%s)", poolLabel(pool), code),
				Pool:        pool,
			}
			continue
		}
		cls.NonRevenue[code] = &NonRevenueClient{
			Code:        code,
			Description: fmt.Sprintf("unbilled activity (%s)", code),
		}
	}
	return cls
}

func poolLabel(pool string) string {
	switch pool {
	case PoolSGA:
		return "SG&A"
	case PoolData:
		return "Data Infrastructure"
	case PoolWorkplace:
		return "Workplace Well-being"
	}
	return pool
}
