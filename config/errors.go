package config

import "errors"

var (
	ErrInvalidNetwork              = errors.New("config: invalid network")
	ErrInvalidSigningMode          = errors.New("config: invalid signing mode")
	ErrInvalidFrostParams          = errors.New("config: invalid frost threshold/participants")
	ErrMissingKeyFile              = errors.New("config: threshold signing mode requires a key file")
	ErrInvalidDepositRange         = errors.New("config: invalid min/max deposit range")
	ErrInvalidConfirmations        = errors.New("config: required confirmations must be nonzero")
	ErrMissingDBPath               = errors.New("config: db path must not be empty")
	ErrInvalidEnvValue             = errors.New("config: invalid environment variable value")
	ErrProductionRequiresMainnet   = errors.New("config: production deployments must use mainnet")
	ErrProductionRequiresThreshold = errors.New("config: production deployments must use threshold signing")
)
