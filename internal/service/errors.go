package service

import "errors"

// Business-rule rejections. Repository sentinels (repository.ErrNotFound,
// repository.ErrAlreadyActivated, repository.ErrPhoneTaken, repository.ErrInsufficientFunds,
// repository.ErrInvalidTransition) pass through the services unchanged.
var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInvalidAmount       = errors.New("amount must be positive with at most two decimal places")
	ErrBelowMinimum        = errors.New("amount is below the minimum withdrawal")
	ErrUserBanned          = errors.New("user is banned")
	ErrBonusCooldown       = errors.New("bonus already claimed, cooldown not over")
	ErrSubmissionPending   = errors.New("a submission for this task is already pending review")
	ErrTaskAlreadyApproved = errors.New("task already approved for this user")
)
