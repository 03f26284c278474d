package network

import "net/http"

const (
	// NetworkRequestBegan is published when a request is about to be sent.
	NetworkRequestBegan = "NetworkRequestBegan"
	// RequestPayloadKey holds the *http.Request in the event payload.
	RequestPayloadKey = "request"
)

// Publisher delivers named events to observers without acknowledgment.
type Publisher interface {
	Publish(name string, payload map[string]any)
}

// PostNetworkRequestBeganNotification announces req to observers.
// A nil publisher is a no-op.
func PostNetworkRequestBeganNotification(publisher Publisher, req *http.Request) {
	if publisher == nil || req == nil {
		return
	}
	publisher.Publish(NetworkRequestBegan, map[string]any{RequestPayloadKey: req})
}
