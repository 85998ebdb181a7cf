package model

import "time"

// View records one delivered page, so that a leaked image can be traced back to its reader.
type View struct {
	DocumentID string    `json:"document_id" bson:"document_id"`
	UserID     string    `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Page       int       `json:"page" bson:"page"`
	Address    string    `json:"address" bson:"address"`
	Watermark  string    `json:"watermark" bson:"watermark"`
	Preview    bool      `json:"preview" bson:"preview"`
	ViewedAt   time.Time `json:"viewed_at" bson:"viewed_at"`
}
