// Package quiz builds multiple-choice questions and tallies answers.
package quiz

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/verte-zerg/lajit/internal/catalog"
)

// DefaultChoices is the number of options shown per question.
const DefaultChoices = 4

// Question asks which species matches the prompt.
type Question struct {
	Category string
	Answer   catalog.Species
	Choices  []string
}

// ItemKey is the stats key of the asked species.
func (q Question) ItemKey() string {
	return catalog.ItemKey(q.Category, q.Answer.Name)
}

// Correct reports whether choice is the right answer.
func (q Question) Correct(choice string) bool {
	return choice == q.Answer.Name
}

// Generator picks questions, avoiding repeats until a category is exhausted.
type Generator struct {
	rnd  *rand.Rand
	used map[string]map[string]struct{}
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewWithSeed(time.Now().UnixNano())
}

// NewWithSeed returns a deterministic Generator.
func NewWithSeed(seed int64) *Generator {
	return &Generator{
		rnd:  rand.New(rand.NewSource(seed)),
		used: make(map[string]map[string]struct{}),
	}
}

// Next builds a question for cat with up to choices options.
func (g *Generator) Next(cat catalog.Category, choices int) (Question, error) {
	if len(cat.Species) == 0 {
		return Question{}, fmt.Errorf("category %q has no species", cat.Key)
	}
	if choices < 2 {
		choices = DefaultChoices
	}
	if choices > len(cat.Species) {
		choices = len(cat.Species)
	}

	used := g.used[cat.Key]
	if used == nil || len(used) >= len(cat.Species) {
		used = make(map[string]struct{}, len(cat.Species))
		g.used[cat.Key] = used
	}
	var fresh []int
	for i, s := range cat.Species {
		if _, ok := used[s.Name]; !ok {
			fresh = append(fresh, i)
		}
	}
	answer := cat.Species[fresh[g.rnd.Intn(len(fresh))]]
	used[answer.Name] = struct{}{}

	options := []string{answer.Name}
	for _, idx := range g.rnd.Perm(len(cat.Species)) {
		if len(options) == choices {
			break
		}
		if name := cat.Species[idx].Name; name != answer.Name {
			options = append(options, name)
		}
	}
	g.rnd.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	return Question{Category: cat.Key, Answer: answer, Choices: options}, nil
}

// Hint returns a random hint for q, or "" when the species has none.
func (g *Generator) Hint(q Question) string {
	if len(q.Answer.Hints) == 0 {
		return ""
	}
	return q.Answer.Hints[g.rnd.Intn(len(q.Answer.Hints))]
}

// Reset forgets which species were asked in cat.
func (g *Generator) Reset(category string) {
	delete(g.used, category)
}
