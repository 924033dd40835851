package zerodha

import (
	"context"
	"errors"
	"net"
	"net/http"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"regime-trader/internal/retry"
)

// Classify maps a Kite API error to a retry kind. Expired or revoked
// sessions are AuthExpired, throttling, network and server faults are
// Transient, and request errors such as an unknown instrument are Terminal.
func Classify(err error) retry.Kind {
	if err == nil {
		return retry.Transient
	}
	var re *retry.Error
	if errors.As(err, &re) {
		return re.Kind
	}
	if errors.Is(err, context.Canceled) {
		return retry.Terminal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return retry.Transient
	}

	var ke kiteconnect.Error
	if errors.As(err, &ke) {
		switch {
		case ke.ErrorType == kiteconnect.TokenError, ke.Code == http.StatusForbidden:
			return retry.AuthExpired
		case ke.Code == http.StatusTooManyRequests, ke.Code >= 500:
			return retry.Transient
		case ke.ErrorType == kiteconnect.NetworkError, ke.ErrorType == kiteconnect.GeneralError:
			return retry.Transient
		default:
			return retry.Terminal
		}
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return retry.Transient
	}
	return retry.KindOf(err)
}
