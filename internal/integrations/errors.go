package integrations

import (
	"errors"
	"fmt"
)

// ErrSignatureInvalid is returned at the webhook ingress layer when a
// payload fails HMAC verification. Verification itself fails closed.
var ErrSignatureInvalid = errors.New("webhook signature invalid")

// UpstreamError is any non-2xx platform response other than a 404.
// 404s are never errors; reads translate them to nil.
type UpstreamError struct {
	Platform Platform
	Endpoint string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s returned %d: %s", e.Platform, e.Endpoint, e.Status, e.Body)
}

// AuthError is a credential exchange or verification failure.
type AuthError struct {
	Platform Platform
	Reason   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth failed: %s", e.Platform, e.Reason)
}

// ConfigurationMissing means the store has no stored credentials for the
// requested platform.
type ConfigurationMissing struct {
	StoreID  string
	Platform Platform
}

func (e *ConfigurationMissing) Error() string {
	return fmt.Sprintf("store %s has no %s configuration", e.StoreID, e.Platform)
}

// IsUpstream reports whether err wraps an UpstreamError.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
