package model

import (
	"encoding/json"
	"time"
)

// FeedbackRecord は追記専用ログに書き込まれるフィードバック1件を表す。
// SentimentとConcernは内容を検証せずそのまま保持する（未指定はJSON null）。
type FeedbackRecord struct {
	ID        string          `json:"id"`
	User      string          `json:"user"`
	Sentiment json.RawMessage `json:"sentiment"`
	Concern   json.RawMessage `json:"concern"`
	Timestamp time.Time       `json:"timestamp"`
}
