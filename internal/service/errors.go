package service

import "errors"

var (
	ErrSceneOutOfRange          = errors.New("scene number is outside the story's unlocked range")
	ErrStoryCompleted           = errors.New("story is completed, no further scenes can be generated")
	ErrInvalidOptionIndex       = errors.New("selected option index is out of range for this choice point")
	ErrChoicePointNotInTemplate = errors.New("choice point does not belong to the story's template")
	ErrChoicePointNotAtScene    = errors.New("no choice point exists at this scene")
	ErrSameChoiceBranch         = errors.New("branch would repeat the parent's recorded choice")
	ErrProgressRewind           = errors.New("story progress cannot move backward")
	ErrContentRejected          = errors.New("generated content failed quality validation")
)
