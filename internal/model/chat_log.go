package model

import (
	"encoding/json"
	"time"
)

// ChatLog records one answered question with its citations. Rows are written
// asynchronously by the persist worker, so a chat response never waits on
// MySQL.
type ChatLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SessionID  string    `gorm:"size:64;not null;index" json:"session_id"`
	Question   string    `gorm:"type:text;not null" json:"question"`
	Answer     string    `gorm:"type:text;not null" json:"answer"`
	Citations  string    `gorm:"type:text" json:"citations"` // JSON array of citations
	LatencyMs  float64   `json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// SetCitations stores the citations as JSON.
func (l *ChatLog) SetCitations(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		l.Citations = "[]"
		return
	}
	l.Citations = string(b)
}
