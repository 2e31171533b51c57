package listings

import "errors"

var (
	ErrUnknownFilter   = errors.New("listings: unknown listings filter")
	ErrGeocoderMissing = errors.New("listings: geocoder not configured")
)
