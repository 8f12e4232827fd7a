package grab

import "testing"

// TestOutcomeConstantsAreDistinct guards against an accidental merge of two
// outcome constants to the same value, which would silently conflate e.g.
// OutcomeFull with OutcomeNeedRollback in a switch elsewhere.
func TestOutcomeConstantsAreDistinct(t *testing.T) {
	seen := map[Outcome]string{}
	values := map[Outcome]string{
		OutcomeSuccess:         "OutcomeSuccess",
		OutcomeAlreadySelected: "OutcomeAlreadySelected",
		OutcomeNeedRollback:    "OutcomeNeedRollback",
		OutcomeFull:            "OutcomeFull",
		OutcomeSessionExpired:  "OutcomeSessionExpired",
		OutcomeOtherError:      "OutcomeOtherError",
	}
	for v, name := range values {
		if prior, ok := seen[v]; ok {
			t.Fatalf("%s and %s share outcome value %d", prior, name, v)
		}
		seen[v] = name
	}
}
