package catalog

import (
	"testing"

	"github.com/xkmonitor/core/internal/models"
	"github.com/xkmonitor/core/internal/session"
)

func TestFindByTeachingClassID(t *testing.T) {
	result := Result{
		Flat: []models.TeachingClassRecord{
			{ID: models.CourseID{TeachingClassID: "T1"}, CourseName: "Algorithms"},
			{ID: models.CourseID{TeachingClassID: "T2"}, CourseName: "Databases"},
		},
	}

	found, ok := FindByTeachingClassID(result, "T2")
	if !ok {
		t.Fatal("expected T2 to be found")
	}
	if found.CourseName != "Databases" {
		t.Errorf("found.CourseName = %q, want Databases", found.CourseName)
	}

	_, ok = FindByTeachingClassID(result, "T3")
	if ok {
		t.Error("expected T3 to be a miss, per the no-blind-grab QueryMiss rule")
	}
}

func TestResultCarriesNonOKOutcome(t *testing.T) {
	r := Result{Outcome: session.OutcomeSessionExpired}
	if r.Outcome != session.OutcomeSessionExpired {
		t.Fatalf("Outcome = %v, want OutcomeSessionExpired", r.Outcome)
	}
}
