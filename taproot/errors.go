package taproot

import "errors"

// ErrKeystoreCorrupt is returned when a single-key deployment's
// encrypted key file cannot be parsed or decrypted.
var ErrKeystoreCorrupt = errors.New("taproot: key file corrupt or wrong password")
