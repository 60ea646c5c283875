package domain

import "errors"

var (
	ErrQuestionNotFound   = errors.New("question not found")
	ErrInvalidQuestionID  = errors.New("invalid question id")
	ErrNoChoiceSelected   = errors.New("no choice selected")
	ErrInvalidChoice      = errors.New("invalid choice for this question")
	ErrForbidden          = errors.New("not allowed to modify this question")
	ErrAccessDenied       = errors.New("invalid access code")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrInternal           = errors.New("internal server error")
)
