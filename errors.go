package forestlog

import (
	"errors"
	"strings"
)

// ErrUnavailable indicates the backing store reported itself as not ready.
var ErrUnavailable = errors.New("store unavailable")

// ErrValidation indicates a draft was rejected before any storage call.
var ErrValidation = errors.New("invalid draft")

// ErrWriteFailure indicates the store rejected a record or index write.
var ErrWriteFailure = errors.New("write failed")

// ErrDecodeFault indicates stored bytes could not be decoded.
var ErrDecodeFault = errors.New("decode fault")

// ErrUserDeclined indicates the signer refused to authorize a write.
var ErrUserDeclined = errors.New("user rejected transaction")

// ErrNoSigner is returned by writes attempted without a connected wallet.
var ErrNoSigner = errors.New("no signer available")

// ErrSubmissionPending is returned by Submit while another submission runs.
var ErrSubmissionPending = errors.New("submission already pending")

// declinedMarker is the text wallets put in their rejection errors.
const declinedMarker = "user rejected transaction"

// IsUserDeclined reports whether err is a signer-level rejection, either
// ErrUserDeclined itself or a foreign error carrying the wallet's message.
func IsUserDeclined(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUserDeclined) {
		return true
	}
	return strings.Contains(err.Error(), declinedMarker)
}
