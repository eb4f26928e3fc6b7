package domain

// SortBy selects the ordering applied to every bucket
type SortBy string

const (
	SortByConfidence SortBy = "confidence"
	SortByDate       SortBy = "date"
	SortByDomain     SortBy = "domain"
	SortByCount      SortBy = "count"
)

// SortOrder is the direction of the ordering
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// DisplayMode is how the view layer lays out results
type DisplayMode string

const (
	DisplayList     DisplayMode = "list"
	DisplayGrid     DisplayMode = "grid"
	DisplayImproved DisplayMode = "improved"
)

// GroupBy selects the page grouping used by the view layer
type GroupBy string

const (
	GroupByNone   GroupBy = "none"
	GroupByDomain GroupBy = "domain"
	GroupByType   GroupBy = "type"
)

// FilterOptions is the user-controlled filter configuration
type FilterOptions struct {
	SortBy        SortBy      `json:"sortBy"`
	SortOrder     SortOrder   `json:"sortOrder"`
	MinConfidence int         `json:"minConfidence"` // 0..100
	ShowSpam      bool        `json:"showSpam"`
	DisplayMode   DisplayMode `json:"displayMode"`
	GroupBy       GroupBy     `json:"groupBy"`
	ActiveFilters []string    `json:"activeFilters"`
}

// DefaultFilterOptions returns the options a fresh search starts with
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{
		SortBy:        SortByConfidence,
		SortOrder:     SortDesc,
		MinConfidence: 0,
		ShowSpam:      false,
		DisplayMode:   DisplayList,
		GroupBy:       GroupByNone,
		ActiveFilters: []string{},
	}
}

// FilterOptionsPatch is a partial update; nil fields are left unchanged
type FilterOptionsPatch struct {
	SortBy        *SortBy      `json:"sortBy,omitempty" binding:"omitempty,oneof=confidence date domain count"`
	SortOrder     *SortOrder   `json:"sortOrder,omitempty" binding:"omitempty,oneof=asc desc"`
	MinConfidence *int         `json:"minConfidence,omitempty"`
	ShowSpam      *bool        `json:"showSpam,omitempty"`
	DisplayMode   *DisplayMode `json:"displayMode,omitempty" binding:"omitempty,oneof=list grid improved"`
	GroupBy       *GroupBy     `json:"groupBy,omitempty" binding:"omitempty,oneof=none domain type"`
	ActiveFilters []string     `json:"activeFilters,omitempty"`
}

// Merge returns a copy of o with every non-nil field of p applied.
// Unknown enum values fall back to the current value and minConfidence is clamped.
func (o FilterOptions) Merge(p FilterOptionsPatch) FilterOptions {
	merged := o
	merged.ActiveFilters = append([]string(nil), o.ActiveFilters...)

	if p.SortBy != nil && validSortBy(*p.SortBy) {
		merged.SortBy = *p.SortBy
	}
	if p.SortOrder != nil && (*p.SortOrder == SortAsc || *p.SortOrder == SortDesc) {
		merged.SortOrder = *p.SortOrder
	}
	if p.MinConfidence != nil {
		merged.MinConfidence = ClampConfidence(*p.MinConfidence)
	}
	if p.ShowSpam != nil {
		merged.ShowSpam = *p.ShowSpam
	}
	if p.DisplayMode != nil {
		switch *p.DisplayMode {
		case DisplayList, DisplayGrid, DisplayImproved:
			merged.DisplayMode = *p.DisplayMode
		}
	}
	if p.GroupBy != nil {
		switch *p.GroupBy {
		case GroupByNone, GroupByDomain, GroupByType:
			merged.GroupBy = *p.GroupBy
		}
	}
	if p.ActiveFilters != nil {
		merged.ActiveFilters = append([]string{}, p.ActiveFilters...)
	}
	return merged
}

// Equal reports value equality, used to decide when derived data is stale
func (o FilterOptions) Equal(other FilterOptions) bool {
	if o.SortBy != other.SortBy || o.SortOrder != other.SortOrder ||
		o.MinConfidence != other.MinConfidence || o.ShowSpam != other.ShowSpam ||
		o.DisplayMode != other.DisplayMode || o.GroupBy != other.GroupBy ||
		len(o.ActiveFilters) != len(other.ActiveFilters) {
		return false
	}
	for i := range o.ActiveFilters {
		if o.ActiveFilters[i] != other.ActiveFilters[i] {
			return false
		}
	}
	return true
}

// ClampConfidence bounds a percentage to [0, 100]
func ClampConfidence(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func validSortBy(s SortBy) bool {
	switch s {
	case SortByConfidence, SortByDate, SortByDomain, SortByCount:
		return true
	}
	return false
}
