package dto

// ComparePeriodsRequest asks for a trend comparison of two or more periods.
// IDs are compared in the given order; the variation is last minus first.
type ComparePeriodsRequest struct {
	PeriodIDs []string `json:"periodIds" binding:"required,min=2,dive,uuid"`
}

// PeriodReportRequest contains query parameters for the composed report.
type PeriodReportRequest struct {
	TopN   int    `form:"topN" binding:"omitempty,min=1,max=100"`
	Format string `form:"format" binding:"omitempty,oneof=json text"`
}
