package model

import "errors"

var (
	// ErrGoalNotFound is returned when a goal does not exist.
	ErrGoalNotFound = errors.New("goal not found")

	// ErrInvalidTransition is returned when a goal cannot move to the requested state.
	ErrInvalidTransition = errors.New("invalid goal state transition")

	// ErrInvalidGoal is returned when a goal fails validation.
	ErrInvalidGoal = errors.New("invalid goal")

	// ErrInvalidTarget is returned when a goal target amount is not positive.
	ErrInvalidTarget = errors.New("goal target amount must be positive")
)
