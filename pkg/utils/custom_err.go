package utils

import "errors"

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPlanNotFound       = errors.New("plan not found")
	ErrPackageNotFound    = errors.New("package not found")
	ErrDatabaseError      = errors.New("database error")
)
