package room

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var (
	adjectives = []string{"Happy", "Cool", "Super", "Fast", "Quiet", "Loud", "Brave", "Calm", "Mystic", "Neon"}
	nouns      = []string{"Panda", "Tiger", "Eagle", "Lion", "Bear", "Wolf", "Fox", "Cat", "Dragon", "Phoenix"}
)

// Namer makes random display names like "Calm Fox 42".
// Names are not unique, the participant id is.
type Namer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewNamer(seed int64) *Namer {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Namer{rnd: rand.New(rand.NewSource(seed))}
}

func (n *Namer) Next() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	adj := adjectives[n.rnd.Intn(len(adjectives))]
	noun := nouns[n.rnd.Intn(len(nouns))]
	return fmt.Sprintf("%s %s %d", adj, noun, n.rnd.Intn(100))
}
