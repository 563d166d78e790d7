package models

import "errors"

var (
	ErrFeedFetch             = errors.New("feed fetch failed")
	ErrPredictionUnavailable = errors.New("prediction unavailable")
	ErrScalperStartRejected  = errors.New("scalper start rejected")
	ErrScalperStopFailed     = errors.New("scalper stop failed")
	ErrScalperPoll           = errors.New("scalper status poll failed")
	ErrMalformedPayload      = errors.New("malformed payload")
	ErrSessionBusy           = errors.New("scalper session already active")
	ErrSessionNotRunning     = errors.New("scalper session not running")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInvalidSelection      = errors.New("invalid selection")
)
