package classifier

import "errors"

// ErrInitialization marks a fatal training failure. Once returned it is
// returned for every later call in the process.
var ErrInitialization = errors.New("classifier initialization failed")
