package models

// RegionStats aggregates active records of one region type.
type RegionStats struct {
	RegionType RegionType `json:"region_type"`
	Visited    int        `json:"visited"`
	Transit    int        `json:"transit"`
	BucketList int        `json:"bucket_list"`
	Total      int        `json:"total"`
}

// Percentage is the share of visited regions (transit included) of Total.
func (s RegionStats) Percentage() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Visited+s.Transit) * 100 / float64(s.Total)
}

// PlaceStats holds per-type counts in RegionTypes order.
type PlaceStats struct {
	Regions []RegionStats `json:"regions"`
}

// For returns the stats row of t.
func (s PlaceStats) For(t RegionType) RegionStats {
	for _, r := range s.Regions {
		if r.RegionType == t {
			return r
		}
	}
	return RegionStats{RegionType: t, Total: t.Total()}
}

// ComputeStats counts active records; deleted ones are skipped.
func ComputeStats(records []*PlaceRecord) PlaceStats {
	idx := make(map[RegionType]*RegionStats)
	stats := PlaceStats{Regions: make([]RegionStats, 0, len(regionTotals))}
	for _, t := range RegionTypes() {
		stats.Regions = append(stats.Regions, RegionStats{RegionType: t, Total: t.Total()})
	}
	for i := range stats.Regions {
		idx[stats.Regions[i].RegionType] = &stats.Regions[i]
	}

	for _, r := range records {
		if r.IsDeleted {
			continue
		}
		row, ok := idx[r.RegionType]
		if !ok {
			continue
		}
		switch {
		case r.Status == StatusBucketList:
			row.BucketList++
		case r.VisitType == VisitTypeTransit:
			row.Transit++
		default:
			row.Visited++
		}
	}
	return stats
}
