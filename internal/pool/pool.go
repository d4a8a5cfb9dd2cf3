// Package pool holds the per-session content pool and its selection policy.
// A Pool never changes after construction; a refreshed catalogue produces a new Pool.
package pool

import (
	"github.com/stwalsh4118/evercast/internal/models"
)

// Rand is the random source used for selection. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

// Policy holds the permanent exclusions applied to every selection
type Policy struct {
	// ForbiddenCategory removes every item tagged with it. Empty disables the rule.
	ForbiddenCategory string
	// ExcludedID removes one specific item for the lifetime of the session. Empty disables the rule.
	ExcludedID string
}

// Pool is an immutable set of selectable content items
type Pool struct {
	items      []models.ContentItem
	byID       map[string]models.ContentItem
	candidates []models.ContentItem
	policy     Policy
}

// New builds a pool from items. Nil entries are skipped and duplicate IDs keep the first occurrence.
func New(items []models.ContentItem, policy Policy) *Pool {
	p := &Pool{
		items:  make([]models.ContentItem, 0, len(items)),
		byID:   make(map[string]models.ContentItem, len(items)),
		policy: policy,
	}

	for _, item := range items {
		if item == nil {
			continue
		}
		id := item.ItemID()
		if _, dup := p.byID[id]; dup {
			continue
		}
		p.byID[id] = item
		p.items = append(p.items, item)

		if !p.excluded(item) {
			p.candidates = append(p.candidates, item)
		}
	}

	return p
}

// Empty returns a pool with no items
func Empty(policy Policy) *Pool {
	return New(nil, policy)
}

// excluded reports whether the policy removes item from the candidate set
func (p *Pool) excluded(item models.ContentItem) bool {
	if p.policy.ExcludedID != "" && item.ItemID() == p.policy.ExcludedID {
		return true
	}
	if p.policy.ForbiddenCategory != "" && item.ItemCategory() == p.policy.ForbiddenCategory {
		return true
	}
	return false
}

// Select picks a candidate uniformly at random.
// Items in excludeCategory are skipped unless that would leave nothing to pick,
// in which case the full candidate set is used. It returns false only when the
// candidate set itself is empty.
func (p *Pool) Select(rng Rand, excludeCategory string) (models.ContentItem, bool) {
	if p == nil || len(p.candidates) == 0 {
		return nil, false
	}

	choices := p.candidates
	if excludeCategory != "" {
		filtered := make([]models.ContentItem, 0, len(p.candidates))
		for _, item := range p.candidates {
			if item.ItemCategory() != excludeCategory {
				filtered = append(filtered, item)
			}
		}
		if len(filtered) > 0 {
			choices = filtered
		}
	}

	return choices[rng.IntN(len(choices))], true
}

// Lookup resolves an identifier for manual play or a deep link.
// The category rule does not apply to explicit requests, but the excluded ID never resolves.
func (p *Pool) Lookup(id string) (models.ContentItem, bool) {
	if p == nil || id == "" {
		return nil, false
	}
	if p.policy.ExcludedID != "" && id == p.policy.ExcludedID {
		return nil, false
	}
	item, ok := p.byID[id]
	return item, ok
}

// Len returns the number of items in the pool, including excluded ones
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.items)
}

// CandidateCount returns how many items the selection policy can pick from
func (p *Pool) CandidateCount() int {
	if p == nil {
		return 0
	}
	return len(p.candidates)
}

// Items returns a copy of the pool contents in their original order
func (p *Pool) Items() []models.ContentItem {
	if p == nil {
		return nil
	}
	out := make([]models.ContentItem, len(p.items))
	copy(out, p.items)
	return out
}

// Policy returns the exclusions this pool was built with
func (p *Pool) Policy() Policy {
	if p == nil {
		return Policy{}
	}
	return p.policy
}
