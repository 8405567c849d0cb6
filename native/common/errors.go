package common

import "errors"

// Error taxonomy shared by every native module. Engines wrap these sentinels
// with context so callers can classify failures with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidState        = errors.New("invalid state")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrAssetTransferFailed = errors.New("asset transfer failed")
	ErrPreconditionFailed  = errors.New("precondition failed")
)

// Error kinds reported by ErrorKind.
const (
	KindNotFound            = "not_found"
	KindUnauthorized        = "unauthorized"
	KindInvalidState        = "invalid_state"
	KindInvalidArgument     = "invalid_argument"
	KindAssetTransferFailed = "asset_transfer_failed"
	KindPreconditionFailed  = "precondition_failed"
	KindModulePaused        = "module_paused"
	KindInternal            = "internal"
)

// ErrorKind classifies err into one of the taxonomy kinds. Unknown errors
// are reported as KindInternal and a nil error yields an empty string.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrModulePaused):
		return KindModulePaused
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrAssetTransferFailed):
		return KindAssetTransferFailed
	case errors.Is(err, ErrPreconditionFailed):
		return KindPreconditionFailed
	default:
		return KindInternal
	}
}
