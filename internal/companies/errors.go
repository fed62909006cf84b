package companies

import "errors"

var (
	ErrCompanyNotFound    = errors.New("company not found")
	ErrIdentifierTaken    = errors.New("company identifier already registered")
	ErrCompanyArchived    = errors.New("company is archived")
	ErrInvalidStatus      = errors.New("invalid company status")
	ErrConfigNotFound     = errors.New("security config not found")
	ErrCompanyNameEmpty   = errors.New("company name cannot be empty")
	ErrIdentifierEmpty    = errors.New("company identifier cannot be empty")
)
