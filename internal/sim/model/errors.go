package model

import (
	"errors"
	"fmt"

	"waterwise.ai/internal/protocol"
)

// ErrContract marks programmer errors: an operation the current phase does not
// support, an id that does not resolve, a level outside an asset's bounds.
// Callers must not retry these.
var ErrContract = errors.New("contract violation")

// DomainError is an expected, recoverable game error. Msg is shown to the
// player or operator who initiated the request.
type DomainError struct {
	Code string
	Msg  string
}

func (e *DomainError) Error() string { return e.Msg }

func Domainf(code, format string, args ...any) error {
	return &DomainError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func Contractf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrContract, fmt.Sprintf(format, args...))
}

func IsDomain(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

func IsContract(err error) bool { return errors.Is(err, ErrContract) }

// Code maps an error to its protocol code.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return protocol.ErrInternal
}

func InsufficientFunds(p *Player, need int) error {
	return Domainf(protocol.ErrNoResource, "%s has %d but needs %d", p.Name, p.Money, need)
}
