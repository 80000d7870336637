package exception

import "errors"

var (
	ErrOrderRejected        = errors.New("order: broker rejected request")
	ErrOrderEmptyResponseID = errors.New("order: empty response order id")
	ErrOrderInvalidRequest  = errors.New("order: invalid request")
	ErrOrderCloseFailed     = errors.New("order: close leg failed, open not attempted")
)
