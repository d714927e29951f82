package leveling

import (
	"testing"

	"guildkeeper/internal/storage"

	"github.com/stretchr/testify/assert"
)

func defaultCalculator() Calculator {
	return NewCalculator(storage.DefaultRankSettings().Formula)
}

func TestRequiredXPDefaultFormula(t *testing.T) {
	calc := defaultCalculator()

	cases := map[int]int64{
		0: 100,
		1: 100,
		2: 282,
		3: 519,
		5: 1118,
	}
	for level, want := range cases {
		assert.Equal(t, want, calc.RequiredXP(level), "level %d", level)
	}
}

func TestLevelFromXPDefaultFormula(t *testing.T) {
	calc := defaultCalculator()

	cases := []struct {
		xp   int64
		want int
	}{
		{-10, 1},
		{0, 1},
		{99, 1},
		{100, 1},
		{281, 1},
		{282, 2},
		{300, 2},
		{518, 2},
		{519, 3},
		{1118, 5},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, calc.LevelFromXP(tc.xp), "xp %d", tc.xp)
	}
}

func TestLevelFromXPConsistentWithRequiredXP(t *testing.T) {
	calc := defaultCalculator()

	for level := 1; level <= 5000; level++ {
		required := calc.RequiredXP(level)
		if got := calc.LevelFromXP(required); got < level {
			t.Fatalf("level %d: LevelFromXP(%d) = %d", level, required, got)
		}
		if level > 1 {
			if got := calc.LevelFromXP(required - 1); got >= level {
				t.Fatalf("level %d: LevelFromXP(%d) = %d", level, required-1, got)
			}
		}
	}
}

// scanLevels walks xp upward once and reports the level a plain linear scan
// would produce for every value.
func scanLevels(calc Calculator, maxXP int64, check func(xp int64, level int)) {
	next := 1
	for xp := int64(0); xp <= maxXP; xp++ {
		for calc.RequiredXP(next) <= xp {
			next++
		}
		level := next - 1
		if level < 1 {
			level = 1
		}
		check(xp, level)
	}
}

func TestLevelFromXPMatchesLinearScan(t *testing.T) {
	formulas := []storage.Formula{
		{BaseXP: 100, Exponent: 1.5},
		{BaseXP: 50, Exponent: 2.2},
		{BaseXP: 7.5, Exponent: 0.8},
		{BaseXP: 333.3, Exponent: 1},
	}
	for _, formula := range formulas {
		calc := NewCalculator(formula)
		scanLevels(calc, 60000, func(xp int64, want int) {
			if got := calc.LevelFromXP(xp); got != want {
				t.Fatalf("formula %+v xp %d: expected %d, got %d", formula, xp, want, got)
			}
		})
	}
}

func TestDegenerateFormulaFallsBackToDefault(t *testing.T) {
	for _, formula := range []storage.Formula{{BaseXP: 0, Exponent: 1.5}, {BaseXP: 100, Exponent: 0}, {BaseXP: -5, Exponent: -1}} {
		calc := NewCalculator(formula)
		assert.Equal(t, int64(282), calc.RequiredXP(2))
		assert.Equal(t, 2, calc.LevelFromXP(300))
	}
}

func TestApplyPrestigeBoost(t *testing.T) {
	prestiges := storage.DefaultPrestigeSettings()

	assert.Equal(t, int64(100), ApplyPrestigeBoost(100, 0, prestiges))
	assert.Equal(t, int64(105), ApplyPrestigeBoost(100, 1, prestiges))
	assert.Equal(t, int64(21), ApplyPrestigeBoost(20, 1, prestiges))
	assert.Equal(t, int64(15), ApplyPrestigeBoost(15, 1, prestiges))
	assert.Equal(t, int64(125), ApplyPrestigeBoost(100, 5, prestiges))
	assert.Equal(t, int64(100), ApplyPrestigeBoost(100, 9, prestiges))
}
