package domain

import "strings"

// Emotion is one category of the closed emotion set a participant can vote for.
type Emotion string

const (
	EmotionHappy     Emotion = "Happy"
	EmotionCalm      Emotion = "Calm"
	EmotionEnergetic Emotion = "Energetic"
	EmotionSad       Emotion = "Sad"
	EmotionAngry     Emotion = "Angry"
)

// emotionOrder is the fixed order of the closed set. Every tie-break that
// scans the distribution walks emotions in this order and keeps the first max.
var emotionOrder = [...]Emotion{
	EmotionHappy,
	EmotionCalm,
	EmotionEnergetic,
	EmotionSad,
	EmotionAngry,
}

// Emotions returns the closed emotion set in its fixed order.
func Emotions() []Emotion {
	out := make([]Emotion, len(emotionOrder))
	copy(out, emotionOrder[:])
	return out
}

// ParseEmotion converts user input to an Emotion. Matching is case-insensitive
// and ignores surrounding whitespace.
func ParseEmotion(s string) (Emotion, error) {
	trimmed := strings.TrimSpace(s)
	for _, e := range emotionOrder {
		if strings.EqualFold(trimmed, string(e)) {
			return e, nil
		}
	}
	return "", ErrInvalidEmotion
}

// Valid reports whether e belongs to the closed set.
func (e Emotion) Valid() bool {
	for _, known := range emotionOrder {
		if e == known {
			return true
		}
	}
	return false
}

func (e Emotion) String() string {
	return string(e)
}
