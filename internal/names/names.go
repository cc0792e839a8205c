// pattern: Functional Core

// Package names generates friendly adjective-animal identifiers for new workspaces.
package names

import "math/rand/v2"

// Adjectives is the fixed list of first words.
var Adjectives = []string{
	"fuzzy", "quick", "lazy", "happy", "sleepy", "brave", "calm", "eager",
	"gentle", "jolly", "keen", "lively", "merry", "noble", "proud", "swift",
	"witty", "zesty", "agile", "bold", "cosmic", "daring", "epic", "fierce",
}

// Animals is the fixed list of second words.
var Animals = []string{
	"tiger", "bear", "fox", "wolf", "eagle", "hawk", "owl", "panda",
	"koala", "otter", "seal", "whale", "dolphin", "falcon", "raven", "lynx",
	"badger", "ferret", "marten", "stoat", "heron", "crane", "swan", "robin",
}

// Generator produces a workspace name. Generate satisfies it; tests substitute
// deterministic sequences.
type Generator func() string

// Generate returns an "adjective-animal" name with both words drawn
// independently and uniformly. Uniqueness is the caller's concern.
func Generate() string {
	return pick(Adjectives, "quick") + "-" + pick(Animals, "fox")
}

func pick(words []string, fallback string) string {
	if len(words) == 0 {
		return fallback
	}
	return words[rand.IntN(len(words))]
}
