package exception

import "errors"

// Engine errors
var (
	ErrNoLevels          = errors.New("engine: no pivot levels for today")
	ErrNoAsset           = errors.New("engine: no asset scheduled for today")
	ErrNoPrice           = errors.New("engine: price unavailable")
	ErrTickBusy          = errors.New("engine: previous tick still running")
	ErrCannotSize        = errors.New("engine: order quantity would be zero")
	ErrCredentialMissing = errors.New("engine: credential not found")
)
