package synth

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"caseforge/internal/axes"
	"caseforge/internal/schema"
)

// leafKey returns the local key that names the leaf. For star-terminal
// paths (lists of scalars) the naming key sits one segment up.
func leafKey(path schema.Path) string {
	if len(path) >= 2 && path.Last() == schema.Star {
		return path[len(path)-2]
	}
	return path.Last()
}

func pathContains(path schema.Path, token string) bool {
	for _, segment := range path {
		if segment == token {
			return true
		}
	}
	return false
}

// leafValue emits a plausible value for the leaf, guided by its spec and
// the local key name. Values are concrete, never generic placeholders.
func (g *Generator) leafValue(path schema.Path, spec schema.LeafSpec, gctx *genContext, rng *rand.Rand) any {
	key := leafKey(path)

	if spec.IsEnum() {
		return g.enumValue(path, spec, key, gctx, rng)
	}

	switch spec.Type {
	case schema.TypeBoolean:
		if key == "existe" {
			return rng.Float64() < 0.78
		}
		return rng.Float64() < 0.55
	case schema.TypeNumber:
		return numberValue(path, key, rng)
	default:
		return g.stringValue(path, key, gctx, rng)
	}
}

func (g *Generator) enumValue(path schema.Path, spec schema.LeafSpec, key string, gctx *genContext, rng *rand.Rand) string {
	if key == "statut_matrimonial" && contains(spec.Enum, gctx.statut) {
		return gctx.statut
	}
	if key == "type" && pathContains(path, "lien") {
		switch {
		case gctx.statut == axes.StatutMarie && contains(spec.Enum, axes.LienConjoint):
			return axes.LienConjoint
		case gctx.statut == axes.StatutPacse && contains(spec.Enum, axes.LienPartenairePacs):
			return axes.LienPartenairePacs
		case contains(spec.Enum, axes.LienConcubin):
			return axes.LienConcubin
		}
	}
	return spec.Enum[rng.Intn(len(spec.Enum))]
}

func numberValue(path schema.Path, key string, rng *rand.Rand) any {
	keyNorm := strings.ToLower(key)
	pathNorm := strings.ToLower(path.Key())
	switch {
	case strings.Contains(keyNorm, "age"):
		if pathContains(path, "defunt") {
			return 55 + rng.Intn(40)
		}
		return 18 + rng.Intn(75)
	case strings.Contains(keyNorm, "esperance_de_vie"):
		return 5 + rng.Intn(36)
	case strings.Contains(keyNorm, "quote"), strings.Contains(keyNorm, "quotite"), strings.Contains(keyNorm, "part"):
		return round2(0.1 + rng.Float64()*0.9)
	case strings.Contains(keyNorm, "taux"), strings.Contains(keyNorm, "decote"):
		return round2(0.01 + rng.Float64()*0.14)
	case strings.Contains(keyNorm, "duree"), strings.Contains(keyNorm, "anciennete"):
		return 1 + rng.Intn(25)
	// Duration blocks are {valeur, unite}; the numeric leaf is just "valeur".
	case keyNorm == "valeur" && (strings.Contains(pathNorm, "duree") || strings.Contains(pathNorm, "anciennete") || strings.Contains(pathNorm, "soins")):
		return 1 + rng.Intn(36)
	case strings.Contains(keyNorm, "mois"):
		return 1 + rng.Intn(48)
	case strings.Contains(keyNorm, "patrimoine"):
		return 50_000 + rng.Intn(4_950_001)
	case strings.Contains(keyNorm, "montant_mensuel") && strings.Contains(pathNorm, "indemnite_occupation"):
		return 200 + rng.Intn(4_801)
	case strings.Contains(keyNorm, "revenus_mensuels"), strings.Contains(keyNorm, "charges_mensuelles"):
		return 500 + rng.Intn(14_501)
	case strings.Contains(keyNorm, "loyers_encaisses"), strings.Contains(keyNorm, "charges_reglees"):
		return rng.Intn(250_001)
	case strings.Contains(keyNorm, "valeur"), strings.Contains(keyNorm, "montant"),
		strings.Contains(keyNorm, "capital"), strings.Contains(keyNorm, "prix"),
		strings.Contains(keyNorm, "cout"), strings.Contains(keyNorm, "revenus"),
		strings.Contains(keyNorm, "charges"):
		return 1_000 + rng.Intn(899_001)
	default:
		return 1 + rng.Intn(1000)
	}
}

func (g *Generator) stringValue(path schema.Path, key string, gctx *genContext, rng *rand.Rand) string {
	keyNorm := strings.ToLower(key)
	switch {
	case keyNorm == "nom" || strings.HasSuffix(keyNorm, "_nom") || strings.HasSuffix(keyNorm, "_noms"):
		return g.nameForPath(path, gctx, rng)
	case keyNorm == "date_deces":
		return gctx.deathDate
	case strings.Contains(keyNorm, "date"):
		return dateBeforeDeath(rng, gctx.deathDate)
	case (keyNorm == "debut" || keyNorm == "fin") && pathContains(path, "periode"):
		return dateBeforeDeath(rng, gctx.deathDate)
	case strings.Contains(keyNorm, "residence_fiscale"):
		return "France"
	case strings.Contains(keyNorm, "residence_habituelle"):
		return pick(rng, "France", "Belgique", "Espagne", "Suisse")
	case strings.Contains(keyNorm, "nationalite"):
		return pick(rng, "Française", "Belge", "Espagnole", "Suisse")
	case strings.Contains(keyNorm, "loi_designee"), strings.Contains(keyNorm, "loi_applicable"):
		return "Loi française"
	case strings.Contains(keyNorm, "libelle"), strings.Contains(keyNorm, "description"):
		return labelForPath(path, keyNorm, rng)
	case strings.Contains(keyNorm, "localisation"):
		return cities[rng.Intn(len(cities))]
	case strings.Contains(keyNorm, "creancier"):
		return pick(rng, "Trésor Public", "Banque Populaire", "URSSAF", "EDF")
	default:
		// Last resort stays concrete, a city rather than a placeholder.
		return cities[rng.Intn(len(cities))]
	}
}

// nameForPath keeps the cast coherent: the decedent subtree always
// carries the decedent's name, the partner subtree the partner's, child
// lists the children's.
func (g *Generator) nameForPath(path schema.Path, gctx *genContext, rng *rand.Rand) string {
	switch {
	case pathContains(path, "defunt"):
		return gctx.defuntName
	case pathContains(path, "partenaire"):
		return gctx.partnerName
	case pathContains(path, "enfants"):
		return gctx.childNames[0]
	case pathContains(path, "petits_enfants"):
		return gctx.childNames[1]
	case pathContains(path, "beneficiaires"), pathContains(path, "beneficiaire"),
		strings.HasPrefix(leafKey(path), "beneficiaire"):
		pool := []string{gctx.partnerName, gctx.childNames[0], gctx.childNames[1], gctx.defuntName}
		return pool[rng.Intn(len(pool))]
	default:
		names := g.Names
		if names == nil {
			names = BuiltinNames{}
		}
		return names.FullName(rng, gctx.used)
	}
}

func labelForPath(path schema.Path, keyNorm string, rng *rand.Rand) string {
	city := func() string { return cities[rng.Intn(len(cities))] }
	switch {
	case pathContains(path, "actifs"):
		return pick(rng,
			"Maison à "+city(),
			"Appartement à "+city(),
			"Terrain à "+city(),
			"Résidence secondaire à "+city(),
			"Compte bancaire (banque "+banks[rng.Intn(len(banks))]+")",
			"Parts "+companies[rng.Intn(len(companies))],
		)
	case pathContains(path, "passifs"):
		return pick(rng, "Emprunt bancaire", "Impôt", "Facture prestataire")
	case pathContains(path, "contrats"), strings.Contains(keyNorm, "contrat"):
		return "Contrat " + insurers[rng.Intn(len(insurers))]
	default:
		return pick(rng,
			"Maison à "+city(),
			"Appartement à "+city(),
			"Bien à "+city(),
			"Parts "+companies[rng.Intn(len(companies))],
		)
	}
}

func randomISODate(rng *rand.Rand, yearMin, yearMax int) string {
	year := yearMin + rng.Intn(yearMax-yearMin+1)
	month := 1 + rng.Intn(12)
	day := 1 + rng.Intn(28)
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

// dateBeforeDeath draws a day in the twenty years preceding the death
// date. Donations, testaments and contracts all predate the death.
func dateBeforeDeath(rng *rand.Rand, deathDate string) string {
	death := parseISODate(deathDate)
	if death == nil {
		return randomISODate(rng, 2005, 2026)
	}
	year := death.year - 1 - rng.Intn(20)
	return isoDate(year, 1+rng.Intn(12), 1+rng.Intn(28))
}

func pick(rng *rand.Rand, options ...string) string {
	return options[rng.Intn(len(options))]
}

func contains(values []string, needle string) bool {
	for _, v := range values {
		if v == needle {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
