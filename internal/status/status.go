package status

import "errors"

var (
	ErrHoldingNotFound = errors.New("holdings: holding not found")
	ErrUpstream        = errors.New("market: upstream request failed")
	ErrNoLedgerEntry   = errors.New("ledger: no cached balance")
)
