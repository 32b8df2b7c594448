package model

type ScrapeJob struct {
	ID              uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	Source          string `gorm:"column:source;type:text;not null"`
	Query           string `gorm:"column:query;type:text;not null;default:''"`
	Status          string `gorm:"column:status;type:text;not null;default:'pending'"`
	ReviewsFound    int    `gorm:"column:reviews_found;not null;default:0"`
	StartedAt       string `gorm:"column:started_at;type:text;not null;default:''"`
	CompletedAt     string `gorm:"column:completed_at;type:text;not null;default:''"`
	ErrorMessage    string `gorm:"column:error_message;type:text;not null;default:''"`
	CancelRequested bool   `gorm:"column:cancel_requested;not null;default:0"`
	CreatedAt       string `gorm:"column:created_at;type:text;not null"`
}

func (ScrapeJob) TableName() string {
	return "scrape_jobs"
}
