package model

import "time"

// Trend is the shape handed over by the news subsystem. Only used to
// populate post metadata; nothing in the pipeline depends on its internals.
type Trend struct {
	Title       string    `json:"title" bson:"title"`
	URL         string    `json:"url" bson:"url"`
	Source      string    `json:"source" bson:"source"`
	PublishedAt time.Time `json:"published_at" bson:"publishedAt"`
}
