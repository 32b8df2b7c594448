package model

// Review rows carry a composite unique index over (source, source_url,
// review_text), the dedup key. source_url is NOT NULL with an empty
// default: SQLite treats NULLs in a unique index as distinct, which
// would let url-less reviews duplicate freely.
type Review struct {
	ID           uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	Source       string `gorm:"column:source;type:text;not null;index:idx_reviews_source;uniqueIndex:idx_reviews_dedup,priority:1"`
	SourceURL    string `gorm:"column:source_url;type:text;not null;default:'';uniqueIndex:idx_reviews_dedup,priority:2"`
	ProductTitle string `gorm:"column:product_title;type:text;not null;default:''"`
	ProductURL   string `gorm:"column:product_url;type:text;not null;default:''"`
	Author       string `gorm:"column:author;type:text;not null;default:''"`
	Rating       *int   `gorm:"column:rating"`
	ReviewText   string `gorm:"column:review_text;type:text;not null;uniqueIndex:idx_reviews_dedup,priority:3"`
	ReviewDate   string `gorm:"column:review_date;type:text;not null;default:''"`
	ScrapedAt    string `gorm:"column:scraped_at;type:text;not null"`
	Processed    bool   `gorm:"column:processed;not null;default:0;index:idx_reviews_processed"`
}

func (Review) TableName() string {
	return "reviews"
}
