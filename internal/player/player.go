// Package player maintains the rated identities behind client sessions.
// A Player exists from the first time its name is seen until the process
// exits; ratings follow the Elo system with K=32.
package player

import (
	"math"
	"sync"
)

// InitialRating is assigned to every newly seen player name.
const InitialRating = 1500

// eloK is the rating update factor.
const eloK = 32

// Player is a named, skill-rated identity. The name never changes; the
// rating is updated after every finished game. Safe for concurrent use.
type Player struct {
	name string

	mu     sync.Mutex
	rating float64
}

func newPlayer(name string) *Player {
	return &Player{name: name, rating: InitialRating}
}

// Name returns the player's immutable username.
func (p *Player) Name() string {
	return p.name
}

// Rating returns the player's current rating.
func (p *Player) Rating() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rating
}

// Outcome is the result of a game between two players, from the
// perspective of the argument order passed to PostResult.
type Outcome int

const (
	Draw Outcome = iota
	P1Win
	P2Win
)

// PostResult updates both players' ratings for one finished game.
// Expected scores are computed from the ratings both players held before
// the game, then both ratings are adjusted under both locks, taken in
// username order so that concurrent results involving overlapping players
// cannot deadlock.
func PostResult(p1, p2 *Player, outcome Outcome) {
	var s1, s2 float64
	switch outcome {
	case P1Win:
		s1, s2 = 1, 0
	case P2Win:
		s1, s2 = 0, 1
	default:
		s1, s2 = 0.5, 0.5
	}

	// Two sessions may be logged in under one name and end up playing
	// each other; both sides then share one Player.
	if p1 == p2 {
		return
	}

	first, second := p1, p2
	if first.name > second.name {
		first, second = second, first
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	e1 := 1 / (1 + math.Pow(10, (p2.rating-p1.rating)/400))
	e2 := 1 / (1 + math.Pow(10, (p1.rating-p2.rating)/400))
	p1.rating += eloK * (s1 - e1)
	p2.rating += eloK * (s2 - e2)
}
