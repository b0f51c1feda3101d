package status

import "errors"

// Business rejections. These are acked at the broker and surfaced to the
// buyer as a negative result instead of being redelivered.
var (
	ErrResourceUnavailable  = errors.New("resource unavailable")
	ErrInvalidResourceToken = errors.New("invalid resource token")
	ErrUnsupportedSaleType  = errors.New("only fixed price sales are supported")
	ErrListingUnavailable   = errors.New("sell listing unavailable")
)

// Infrastructure errors.
var (
	ErrNotFound        = errors.New("record not found")
	ErrLockNotAcquired = errors.New("lock: resource is locked by another worker")
)

// IsSoft reports whether err is a business rejection that should be acked
// and turned into an err-status result rather than redelivered.
func IsSoft(err error) bool {
	return errors.Is(err, ErrResourceUnavailable) ||
		errors.Is(err, ErrInvalidResourceToken) ||
		errors.Is(err, ErrUnsupportedSaleType) ||
		errors.Is(err, ErrListingUnavailable)
}

// Reason maps a soft error to the reason code carried in the result payload.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrResourceUnavailable):
		return "ResourceUnavailable"
	case errors.Is(err, ErrInvalidResourceToken):
		return "InvalidResourceToken"
	case errors.Is(err, ErrUnsupportedSaleType):
		return "UnsupportedSaleType"
	case errors.Is(err, ErrListingUnavailable):
		return "ListingUnavailable"
	default:
		return "Unknown"
	}
}
