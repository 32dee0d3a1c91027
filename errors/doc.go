// Package errors defines the failure taxonomy shared by the fixture engine.
//
// Every error surfaced to callers is an *AppError carrying a machine-readable
// ErrorCode. The underlying driver or I/O error stays reachable through
// Unwrap, so errors.Is and errors.As keep working against driver sentinels.
package errors
