package notify

import "errors"

// ErrClosed is returned by Subscription.Next once the subscription or its hub
// is closed and nothing is left to drain.
var ErrClosed = errors.New("notify: subscription closed")
