package models

import "fmt"

// Rating is the learner's recall quality for a single review
type Rating int

const (
	RatingAgain Rating = iota + 1 // not recalled
	RatingHard                    // recalled with significant effort
	RatingGood                    // recalled
	RatingEasy                    // recalled effortlessly
)

var ratingNames = [...]string{RatingAgain: "Again", RatingHard: "Hard", RatingGood: "Good", RatingEasy: "Easy"}

// IsValid reports whether r is between Again and Easy
func (r Rating) IsValid() bool {
	return r >= RatingAgain && r <= RatingEasy
}

// IsCorrect reports whether the rating counts as a successful recall
func (r Rating) IsCorrect() bool {
	return r >= RatingGood
}

func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}
