// Package classify maps free-text invoice descriptions to equipment and material labels.
//
// Both classifiers are ordered rule lists evaluated against the upper-cased text; the first
// rule that matches decides the label. Specific rules (a sized compactor) are listed before
// general ones (bare yardage), so the order of the lists is part of their behaviour.
package classify

import (
	"regexp"
	"strings"
)

// Rule pairs a pattern with a function producing the label from the match submatches.
type Rule struct {
	Pattern *regexp.Regexp
	Label   func(m []string) string
}

// Classifier evaluates rules in declared order.
type Classifier struct {
	rules []Rule
}

// New returns a classifier over rules; the slice order is the priority order.
func New(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Classify returns the label of the first matching rule. ok is false when nothing matched,
// which is distinct from a rule producing an empty label.
func (c *Classifier) Classify(text string) (label string, ok bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	upper := strings.ToUpper(text)
	for _, r := range c.rules {
		if m := r.Pattern.FindStringSubmatch(upper); m != nil {
			return r.Label(m), true
		}
	}
	return "", false
}

// Len reports the number of rules.
func (c *Classifier) Len() int {
	return len(c.rules)
}

func sized(suffix string) func(m []string) string {
	return func(m []string) string {
		return m[1] + " " + suffix
	}
}

func fixed(label string) func(m []string) string {
	return func([]string) string {
		return label
	}
}

// EquipmentRules is the container-type rule list. Sized containers come first, then bare
// yardage, then unsized container types; cubic-yard wording is the last resort.
func EquipmentRules() []Rule {
	return []Rule{
		{regexp.MustCompile(`\b(\d+)\s*YA?RD?\s*(COMPACTOR|COMP)\b`), sized("Yard Compactor")},
		{regexp.MustCompile(`\b(\d+)\s*YA?RD?\s*(ROLL.?OFF|RO)\b`), sized("Yard Roll Off")},
		{regexp.MustCompile(`\b(\d+)\s*YA?RD?\s*(FRONT.?LOAD|FL)\b`), sized("Yard Front Load")},
		{regexp.MustCompile(`\b(\d+)\s*YA?RD?\s*(REAR.?LOAD|RL)\b`), sized("Yard Rear Load")},
		{regexp.MustCompile(`\b(\d+)\s*YA?RD?\s*(OPEN.?TOP|OT)\b`), sized("Yard Open Top")},
		{regexp.MustCompile(`\b(\d+)\s*YA?RD\b`), sized("Yard")},
		{regexp.MustCompile(`\b(\d+)\s*CY\b`), sized("Yard")},
		{regexp.MustCompile(`\bCOMPACTOR\b`), fixed("Compactor")},
		{regexp.MustCompile(`\bROLL.?OFF\b`), fixed("Roll Off")},
		{regexp.MustCompile(`\bFRONT.?LOAD\b`), fixed("Front Load")},
		{regexp.MustCompile(`\bREAR.?LOAD\b`), fixed("Rear Load")},
		{regexp.MustCompile(`\bOPEN.?TOP\b`), fixed("Open Top")},
		{regexp.MustCompile(`\b(\d+)\s*GAL(LON)?\b`), sized("Gallon")},
		{regexp.MustCompile(`\bTOTER\b`), fixed("Toter")},
		{regexp.MustCompile(`\b(\d+)\s*CU(BIC)?\s*YD\b`), sized("Yard")},
	}
}

// MaterialRules is the waste-stream rule list. Trash is checked before the generic recycling rule.
func MaterialRules() []Rule {
	return []Rule{
		{regexp.MustCompile(`\bCARDBOARD|OCC\b`), fixed("OCC")},
		{regexp.MustCompile(`\bPAPER\b`), fixed("Paper")},
		{regexp.MustCompile(`\bPLASTIC|HDPE|PET\b`), fixed("Plastic")},
		{regexp.MustCompile(`\bMETAL|SCRAP\s*METAL|ALUMINUM\b`), fixed("Metal")},
		{regexp.MustCompile(`\bGLASS\b`), fixed("Glass")},
		{regexp.MustCompile(`\bWOOD|PALLETS?\b`), fixed("Wood")},
		{regexp.MustCompile(`\bORGANIC|FOOD\s*WASTE|COMPOST\b`), fixed("Organic")},
		{regexp.MustCompile(`\bE-?WASTE|ELECTRONIC\b`), fixed("E-Waste")},
		{regexp.MustCompile(`\bC&D|CONSTRUCTION|DEMO(LITION)?\b`), fixed("C&D")},
		{regexp.MustCompile(`\bMSW|TRASH|GARBAGE|REFUSE\b`), fixed("Trash")},
		{regexp.MustCompile(`\bRECYCL(E|ING|ABLES?)?\b`), fixed("Recycling")},
	}
}

var (
	equipment = New(EquipmentRules())
	material  = New(MaterialRules())
)

// Equipment classifies text with the default equipment rules.
func Equipment(text string) (string, bool) {
	return equipment.Classify(text)
}

// Material classifies text with the default material rules.
func Material(text string) (string, bool) {
	return material.Classify(text)
}
