package channels

import "context"

// Message is one prepared notification, ready for fan-out. Title and
// Body are user-visible; Data rides along as the deep-link payload.
type Message struct {
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	URL       string                 `json:"url,omitempty"`
	LaunchURL string                 `json:"launch_url,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`

	// Email is set only for categories whose contract requires
	// guaranteed visibility (billing). Other channels ignore it.
	Email *EmailContent `json:"-"`
}

// EmailContent addresses the optional email copy of a message.
type EmailContent struct {
	Subject string
	HTML    string
	To      []string
}

// Result counts per-channel delivery outcomes. Attempt outcomes are
// never persisted, only aggregated.
type Result struct {
	OK    int `json:"ok"`
	Total int `json:"total"`
}

// Channel delivers one message to a recipient set. Implementations
// must never panic across Send and must swallow per-recipient
// failures into the Result; the dispatcher treats every channel as
// independent.
type Channel interface {
	Name() string

	// Enabled reports whether the channel has the credentials it
	// needs. A disabled channel is skipped, never an error.
	Enabled() bool

	Send(ctx context.Context, userIDs []uint, msg Message) Result
}

// FailureHandler receives per-endpoint push failures so dead
// endpoints can be cleaned up out of band.
type FailureHandler interface {
	HandleFailure(endpoint string, statusCode int)
}
