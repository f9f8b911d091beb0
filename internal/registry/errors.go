package registry

import "errors"

// ErrDiscountNotFound is returned when an id or code resolves to no discount.
// Business-rule failures (expired, maxed out, not started) never surface as
// errors; the validity checks report them as plain booleans.
var ErrDiscountNotFound = errors.New("discount not found")
