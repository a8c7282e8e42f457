// Package synth builds the sparse, schema-valid, business-coherent target
// payloads locked to each instruction. The generator samples leaves of
// the master schema driven by the drawn profile, fills them with typed
// plausible values, repairs the business invariants, and proves the
// result through four validation gates before TOON serialization.
package synth

import (
	"fmt"
	"math/rand"
)

// NameProvider supplies personal names for generated identities. An
// external provider can be plugged in; the built-in French lists are the
// fallback.
type NameProvider interface {
	// FullName returns a name not present in used, and records it there.
	FullName(rng *rand.Rand, used map[string]struct{}) string
}

var (
	firstNames = []string{
		"Jean", "Marie", "Claire", "Thomas", "Camille", "Hugo", "Lucie",
		"Nicolas", "Sophie", "Julien", "Emma", "Paul", "Lea", "Antoine",
	}
	lastNames = []string{
		"Durand", "Morel", "Lefevre", "Martin", "Roux", "Bernard",
		"Petit", "Garcia", "Thomas", "Robert", "Leroy", "Girard",
	}
	cities = []string{
		"Paris", "Lyon", "Marseille", "Nantes", "Bordeaux", "Lille",
		"Toulouse", "Montpellier", "Grenoble",
	}
	companies = []string{
		"SARL Atelier Delta", "SAS Nova Conseil", "SCI Les Tilleuls",
		"SARL Horizon Bois", "SAS Aquila Services",
	}
	insurers = []string{
		"Generali", "AXA", "MAIF", "Credit Agricole Predica", "CNP Assurances",
	}
	banks = []string{"BNP", "SG", "CA", "BP"}
)

// BuiltinNames draws from the embedded French name lists.
type BuiltinNames struct{}

// FullName composes "Prénom Nom" pairs until an unused one comes up.
func (BuiltinNames) FullName(rng *rand.Rand, used map[string]struct{}) string {
	for i := 0; i < 200; i++ {
		candidate := firstNames[rng.Intn(len(firstNames))] + " " + lastNames[rng.Intn(len(lastNames))]
		if _, taken := used[candidate]; !taken {
			used[candidate] = struct{}{}
			return candidate
		}
	}
	fallback := fmt.Sprintf("Personne %d", len(used)+1)
	used[fallback] = struct{}{}
	return fallback
}

// FallbackNames wraps an external provider, falling back to the builtin
// lists when the provider returns nothing usable.
type FallbackNames struct {
	Primary NameProvider
}

func (f FallbackNames) FullName(rng *rand.Rand, used map[string]struct{}) string {
	if f.Primary != nil {
		if name := f.Primary.FullName(rng, used); name != "" {
			return name
		}
	}
	return BuiltinNames{}.FullName(rng, used)
}
