package expired

import "errors"

var (
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("not logged in")
)
