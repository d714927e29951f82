package leveling

import (
	"math"

	"guildkeeper/internal/storage"
)

// MaxLevel bounds level computation for extreme XP values or flat formulas.
const MaxLevel = 1_000_000

// Calculator maps XP to levels for one formula. The zero value is not usable;
// build it with NewCalculator.
type Calculator struct {
	baseXP   float64
	exponent float64
}

// NewCalculator falls back to the default formula when either parameter is
// not strictly positive, since the level curve would not be increasing.
func NewCalculator(formula storage.Formula) Calculator {
	if formula.BaseXP <= 0 || formula.Exponent <= 0 || math.IsNaN(formula.BaseXP) || math.IsNaN(formula.Exponent) {
		formula = storage.DefaultRankSettings().Formula
	}
	return Calculator{baseXP: formula.BaseXP, exponent: formula.Exponent}
}

// RequiredXP returns floor(baseXP * level^exponent) with level clamped to 1.
func (c Calculator) RequiredXP(level int) int64 {
	if level < 1 {
		level = 1
	}
	value := math.Floor(c.baseXP * math.Pow(float64(level), c.exponent))
	if value >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(value)
}

// LevelFromXP returns the largest level whose requirement is at most xp, or 1
// when even level 1 is out of reach.
func (c Calculator) LevelFromXP(xp int64) int {
	if xp < 0 {
		xp = 0
	}

	level := c.estimate(xp)
	for level < MaxLevel && c.RequiredXP(level+1) <= xp {
		level++
	}
	for level > 1 && c.RequiredXP(level) > xp {
		level--
	}
	return level
}

func (c Calculator) estimate(xp int64) int {
	if xp <= 0 {
		return 1
	}
	guess := math.Pow(float64(xp)/c.baseXP, 1/c.exponent)
	if math.IsNaN(guess) || guess < 1 {
		return 1
	}
	if guess >= MaxLevel {
		return MaxLevel
	}
	return int(guess)
}

// ApplyPrestigeBoost scales xp by the tier's boost. Tier 0 and unknown tiers
// leave xp unchanged; the result is never negative.
func ApplyPrestigeBoost(xp int64, tier int, prestiges storage.PrestigeSettings) int64 {
	if tier <= 0 {
		return xp
	}
	config, ok := prestiges.Prestiges[tier]
	if !ok {
		return xp
	}
	boosted := int64(math.Floor(float64(xp) * (1 + config.XPBoost)))
	if boosted < 0 {
		return 0
	}
	return boosted
}
