package domain

import "time"

// Vote is a participant's current declared emotional state. A store keeps at
// most one Vote per ParticipantID; a newer submission overwrites the older one.
type Vote struct {
	ParticipantID string
	Emotion       Emotion
	RecordedAt    time.Time
}

// Distribution maps each emotion to the number of active votes for it.
// It is sparse: emotions without active votes are absent.
type Distribution map[Emotion]int

// Total returns the number of active votes across all emotions.
func (d Distribution) Total() int {
	total := 0
	for _, n := range d {
		total += n
	}
	return total
}

// Ordered returns the emotions present in d, in the fixed emotion order.
func (d Distribution) Ordered() []Emotion {
	out := make([]Emotion, 0, len(d))
	for _, e := range emotionOrder {
		if d[e] > 0 {
			out = append(out, e)
		}
	}
	return out
}
