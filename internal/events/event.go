package events

import "time"

// TopicDecision carries one event per rate-limit admission decision.
const TopicDecision = "ratelimit.decision"

// DecisionEvent records a single admission decision for auditing and
// offline analysis.
type DecisionEvent struct {
	Key        string    `json:"key"`
	Algorithm  string    `json:"algorithm"`
	Allowed    bool      `json:"allowed"`
	Remaining  int64     `json:"remaining"`
	Limit      int64     `json:"limit"`
	RetryAfter float64   `json:"retryAfterSeconds,omitempty"`
	ClientIP   string    `json:"clientIp,omitempty"`
	Path       string    `json:"path,omitempty"`
	DecidedAt  time.Time `json:"decidedAt"`
}
