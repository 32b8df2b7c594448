package model

type PainPoint struct {
	ID                 uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	ReviewID           uint64 `gorm:"column:review_id;not null;index:idx_pain_points_review"`
	Review             Review `gorm:"constraint:OnDelete:CASCADE"`
	Category           string `gorm:"column:category;type:text;not null;index:idx_pain_points_category"`
	VerbatimQuote      string `gorm:"column:verbatim_quote;type:text;not null"`
	EmotionalIntensity string `gorm:"column:emotional_intensity;type:text;not null"`
	ImpliedNeed        string `gorm:"column:implied_need;type:text;not null;default:''"`
	ExtractedAt        string `gorm:"column:extracted_at;type:text;not null"`
}

func (PainPoint) TableName() string {
	return "pain_points"
}
