package script

import "errors"

var errInvalidVerdict = errors.New("verdict must be one of \"allow\", \"deny\", \"defer\"")
