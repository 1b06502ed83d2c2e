package orchestrator

import (
	"testing"

	"github.com/overthelex/secondlayer-sub006/internal/tools"
)

func TestDeduperArgOrderIrrelevant(t *testing.T) {
	t.Parallel()
	d := newDeduper()
	def := tools.Def{Name: "court_decision_search"}

	first := tools.Call{Name: "court_decision_search", Args: map[string]any{"query": "оренда", "court": "господарський"}}
	second := tools.Call{Name: "court_decision_search", Args: map[string]any{"court": "господарський", "query": "оренда"}}

	if d.isDuplicate(def, first) {
		t.Fatal("first invocation flagged as duplicate")
	}
	if !d.isDuplicate(def, second) {
		t.Fatal("logically equal invocation not deduplicated")
	}
}

func TestDeduperDistinguishesArgs(t *testing.T) {
	t.Parallel()
	d := newDeduper()
	def := tools.Def{Name: "legislation_search"}

	if d.isDuplicate(def, tools.Call{Name: "legislation_search", Args: map[string]any{"query": "позовна давність"}}) {
		t.Fatal("first invocation flagged as duplicate")
	}
	if d.isDuplicate(def, tools.Call{Name: "legislation_search", Args: map[string]any{"query": "неустойка"}}) {
		t.Fatal("different args flagged as duplicate")
	}
}

func TestDeduperPrimaryKeySubset(t *testing.T) {
	t.Parallel()
	d := newDeduper()
	def := tools.Def{Name: "court_decision_fetch", PrimaryKeys: []string{"case_number"}}

	first := tools.Call{Name: "court_decision_fetch", Args: map[string]any{"case_number": "910/1234/23", "format": "full"}}
	second := tools.Call{Name: "court_decision_fetch", Args: map[string]any{"case_number": "910/1234/23", "format": "short"}}
	third := tools.Call{Name: "court_decision_fetch", Args: map[string]any{"case_number": "757/999/22", "format": "full"}}

	if d.isDuplicate(def, first) {
		t.Fatal("first invocation flagged as duplicate")
	}
	if !d.isDuplicate(def, second) {
		t.Fatal("same primary key with different cosmetic args not deduplicated")
	}
	if d.isDuplicate(def, third) {
		t.Fatal("different primary key flagged as duplicate")
	}
}

func TestDeduperToolNameParticipates(t *testing.T) {
	t.Parallel()
	d := newDeduper()
	args := map[string]any{"query": "банкрутство"}

	if d.isDuplicate(tools.Def{Name: "court_decision_search"}, tools.Call{Name: "court_decision_search", Args: args}) {
		t.Fatal("first invocation flagged as duplicate")
	}
	if d.isDuplicate(tools.Def{Name: "legislation_search"}, tools.Call{Name: "legislation_search", Args: args}) {
		t.Fatal("same args on a different tool flagged as duplicate")
	}
}
