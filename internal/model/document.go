package model

import "time"

// Document is the durable record of one ingestion. The chunks and index
// themselves live in the session store; this row is the audit trail.
type Document struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SessionID  string    `gorm:"size:64;not null;uniqueIndex" json:"session_id"`
	Name       string    `gorm:"size:256;not null" json:"name"`
	WordCount  int       `gorm:"not null" json:"word_count"`
	ChunkCount int       `gorm:"not null" json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}
