package exception

import "errors"

var (
	ErrScripNotFound       = errors.New("scrip: no contract matches")
	ErrScripEmptyCatalog   = errors.New("scrip: catalog is empty")
	ErrScripUnknownSide    = errors.New("scrip: unknown option side")
	ErrScripBadMasterShape = errors.New("scrip: unexpected scrip master format")
)
