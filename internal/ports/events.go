package ports

import "reviewminer/internal/domain/review"

// JobEvent is one job status transition, pushed to live subscribers.
type JobEvent struct {
	JobID        uint64           `json:"job_id"`
	Source       review.Source    `json:"source"`
	Status       review.JobStatus `json:"status"`
	ReviewsFound int              `json:"reviews_found"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

// JobEvents fans job status transitions out to subscribers (the
// websocket endpoint, tests). Publish never blocks on slow consumers.
type JobEvents interface {
	Publish(event JobEvent)
	Subscribe() (id string, ch <-chan JobEvent)
	Unsubscribe(id string)
}
