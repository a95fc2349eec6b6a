package timer

import "errors"

var (
	ErrNotFound      = errors.New("appraisal timer not found")
	ErrConflict      = errors.New("appraisal timer scope must have exactly one timer")
	ErrInvalidScope  = errors.New("unknown appraisal timer scope")
	ErrInvalidWindow = errors.New("appraisal timer requires start <= remind <= end within one year")
)
