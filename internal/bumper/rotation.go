// Package bumper sequences the branded clips shown between content items.
package bumper

import (
	"github.com/stwalsh4118/evercast/internal/models"
)

// Shuffler is the random source used to refill the bag. *rand.Rand from math/rand/v2 satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// Rotation draws stream bumpers from a shuffle bag and returns a fixed bumper for slides
type Rotation struct {
	bumpers     []string
	slideBumper string
}

// NewRotation creates a rotation over bumpers. slideBumper is always used ahead of slide content.
func NewRotation(bumpers []string, slideBumper string) *Rotation {
	set := make([]string, 0, len(bumpers))
	seen := make(map[string]bool, len(bumpers))
	for _, b := range bumpers {
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		set = append(set, b)
	}
	return &Rotation{bumpers: set, slideBumper: slideBumper}
}

// Size returns the number of stream bumpers in the bag
func (r *Rotation) Size() int {
	return len(r.bumpers)
}

// SlideBumper returns the bumper shown ahead of slides
func (r *Rotation) SlideBumper() string {
	return r.slideBumper
}

// Next returns the bumper to show ahead of the upcoming item and the queue left afterwards.
//
// previous is the bumper shown most recently. queue holds the stream bumpers not yet
// drawn in the current cycle and is never modified in place.
func (r *Rotation) Next(rng Shuffler, isStream bool, previous string, queue []string) (string, []string) {
	if !isStream {
		return r.slideBumper, queue
	}
	if len(r.bumpers) == 0 {
		return "", nil
	}

	bag := make([]string, len(queue))
	copy(bag, queue)

	if len(bag) == 0 {
		bag = make([]string, len(r.bumpers))
		copy(bag, r.bumpers)
		rng.Shuffle(len(bag), func(i, j int) {
			bag[i], bag[j] = bag[j], bag[i]
		})
	}

	// no immediate repeat
	if len(bag) > 1 && bag[0] == previous {
		bag = append(bag[1:], bag[0])
	}

	return bag[0], bag[1:]
}

// ForItem is Next keyed on the upcoming content item
func (r *Rotation) ForItem(rng Shuffler, item models.ContentItem, previous string, queue []string) (string, []string) {
	return r.Next(rng, models.IsStream(item), previous, queue)
}
