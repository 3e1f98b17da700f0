package scenario

import "errors"

var (
	// ErrDataUnavailable means the scenario or its steps could not be loaded
	ErrDataUnavailable = errors.New("scenario data unavailable")
	// ErrScenarioCompleted is returned when a choice is resolved on a finished run
	ErrScenarioCompleted = errors.New("scenario already completed")
	// ErrChoiceNotInStep is returned when the choice is not offered by the current step
	ErrChoiceNotInStep = errors.New("choice does not belong to the current step")
)
