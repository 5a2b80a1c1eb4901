package spaced_repetition

// Blend weights of the derived difficulty
const (
	BaseDifficultyWeight     = 0.7
	PersonalDifficultyWeight = 0.3
)

// Personal difficulty multipliers applied after each answer
const (
	correctFactor   = 0.95
	incorrectFactor = 1.10
)

// UpdateDifficulty applies one answer to the personal difficulty and returns the
// new personal difficulty together with the recomputed blended difficulty.
func UpdateDifficulty(base, personal float64, isCorrect bool) (float64, float64) {
	if isCorrect {
		personal *= correctFactor
		if personal < 0 {
			personal = 0
		}
	} else {
		personal *= incorrectFactor
		if personal > 1 {
			personal = 1
		}
	}
	return personal, BlendDifficulty(base, personal)
}

// BlendDifficulty combines static and personal difficulty
func BlendDifficulty(base, personal float64) float64 {
	return BaseDifficultyWeight*base + PersonalDifficultyWeight*personal
}
