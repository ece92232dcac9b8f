package enums

// ReviewStatus tracks a review from placeholder to published feedback.
type ReviewStatus string

const (
	ReviewStatusPending   ReviewStatus = "pending"
	ReviewStatusPublished ReviewStatus = "published"
)

// IsValid reports whether the value is a known ReviewStatus.
func (r ReviewStatus) IsValid() bool {
	return r == ReviewStatusPending || r == ReviewStatusPublished
}
