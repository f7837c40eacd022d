package models

import "time"

// ReviewFeedback is what reviewers entered in the review workbook.
type ReviewFeedback struct {
	MetricCorrections []MetricCorrection `json:"metricCorrections"`
	RelationshipFlags []RelationshipFlag `json:"relationshipFlags"`
	FilterMeanings    []FilterMeaning    `json:"filterMeanings"`
}

// Total counts feedback items across all categories.
func (f *ReviewFeedback) Total() int {
	return len(f.MetricCorrections) + len(f.RelationshipFlags) + len(f.FilterMeanings)
}

// Append adds every item of o to f.
func (f *ReviewFeedback) Append(o *ReviewFeedback) {
	f.MetricCorrections = append(f.MetricCorrections, o.MetricCorrections...)
	f.RelationshipFlags = append(f.RelationshipFlags, o.RelationshipFlags...)
	f.FilterMeanings = append(f.FilterMeanings, o.FilterMeanings...)
}

// MetricCorrection renames or annotates a discovered metric.
type MetricCorrection struct {
	Procedure     string  `json:"procedure"`
	FoundName     string  `json:"foundName"`
	CorrectedName *string `json:"correctedName"`
	Notes         *string `json:"notes"`
	Formula       string  `json:"formula"`
}

// RelationshipFlag confirms or rejects a discovered join. IsCorrect is nil
// when the reviewer was unsure.
type RelationshipFlag struct {
	Procedure  string  `json:"procedure"`
	LeftTable  string  `json:"leftTable"`
	RightTable string  `json:"rightTable"`
	JoinType   string  `json:"joinType"`
	IsCorrect  *bool   `json:"isCorrect"`
	Notes      *string `json:"notes"`
}

// FilterMeaning records the business rule behind a common filter.
type FilterMeaning struct {
	Column          string `json:"column"`
	Operator        string `json:"operator"`
	Values          string `json:"values"`
	BusinessMeaning string `json:"businessMeaning"`
}

// FeedbackLog is one saved review session.
type FeedbackLog struct {
	ReviewedBy *string   `json:"reviewedBy"`
	ReviewedAt time.Time `json:"reviewedAt"`
	SourceFile string    `json:"sourceFile"`
	ReviewFeedback
}
