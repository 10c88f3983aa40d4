package domain

import "time"

// AssetKind enumerates the billable unit categories for the cost table.
type AssetKind string

const (
	AssetKindImage         AssetKind = "image"
	AssetKindCarouselSlide AssetKind = "carousel_slide"
	AssetKindVideo         AssetKind = "video"
	AssetKindText          AssetKind = "text"
)

// KindForJobType maps a job type to the asset category it is billed under.
func KindForJobType(t JobType) AssetKind {
	switch t {
	case JobTypeRenderCarousel:
		return AssetKindCarouselSlide
	case JobTypeRenderVideo:
		return AssetKindVideo
	case JobTypeGenerateText:
		return AssetKindText
	default:
		return AssetKindImage
	}
}

// QuotaBalance is the prepaid allotment for one account and billing period.
// ConsumedUnits only increases within a period; a new period starts a fresh
// row.
type QuotaBalance struct {
	AccountID     string
	PeriodStart   time.Time
	TotalUnits    int
	ConsumedUnits int
	UpdatedAt     time.Time
}

// Remaining returns the unconsumed units. It can be negative when the
// hard-stop overrun allowance has been used.
func (b QuotaBalance) Remaining() int {
	return b.TotalUnits - b.ConsumedUnits
}

// Fraction returns consumed/total, or 0 for an empty allotment.
func (b QuotaBalance) Fraction() float64 {
	if b.TotalUnits <= 0 {
		return 0
	}
	return float64(b.ConsumedUnits) / float64(b.TotalUnits)
}

// Thresholds carries the advisory per-category warning flags driven by the
// alert fraction. They never block an authorize decision.
type Thresholds struct {
	Images    bool `json:"images"`
	Carousels bool `json:"carousels"`
	Videos    bool `json:"videos"`
}
