package topology

import (
	"strings"
	"testing"
)

func TestParseFlatTopology(t *testing.T) {
	root, err := Parse(strings.NewReader("d0:0;\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if root.Leaf == nil {
		t.Fatalf("expected a leaf root for a flat topology, got %+v", root)
	}
	plan, err := Plan(root)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Order) != 1 || plan.Order[0].Host != "d0" || plan.Order[0].RankList[0] != 0 {
		t.Fatalf("unexpected plan: %+v", plan.Order)
	}
}

func TestParseOneLevelTree(t *testing.T) {
	src := "front:0 =>\n\td0:1\n\td1:2;\n"
	root, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(root.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(root.Children))
	}
	plan, err := Plan(root)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Order) != 2 {
		t.Fatalf("expected 2 daemons, got %d", len(plan.Order))
	}
	if plan.Order[0].Host != "d0" || plan.Order[1].Host != "d1" {
		t.Fatalf("unexpected daemon order: %+v", plan.Order)
	}
}

func TestParseMultiLevelTree(t *testing.T) {
	src := `front:0 =>
	d0:1
	comm:2;

comm:2 =>
	d1:3
	d2:4;
`
	root, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(root.Children) != 2 {
		t.Fatalf("expected 2 top-level children, got %d", len(root.Children))
	}

	var interior *Node
	for _, c := range root.Children {
		if c.Leaf == nil {
			interior = c
		}
	}
	if interior == nil || len(interior.Children) != 2 {
		t.Fatalf("expected an interior child with 2 leaves, got %+v", interior)
	}

	plan, err := Plan(root)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Order) != 3 {
		t.Fatalf("expected 3 daemons, got %d", len(plan.Order))
	}
	// d0 (rank 1) sorts before comm's subtree (lowest rank 3).
	if plan.Order[0].Host != "d0" || plan.Order[1].Host != "d1" || plan.Order[2].Host != "d2" {
		t.Fatalf("unexpected daemon order: %+v", plan.Order)
	}
}

func TestParseRejectsMalformedToken(t *testing.T) {
	_, err := Parse(strings.NewReader("d0;\n"))
	if err == nil {
		t.Fatal("expected an error for a leaf token missing \":id\"")
	}
}

func TestParseRejectsOrphanChildLine(t *testing.T) {
	_, err := Parse(strings.NewReader("\td0:0;\n"))
	if err == nil {
		t.Fatal("expected an error for an indented line with no preceding parent")
	}
}

func TestParseRejectsEmptyFile(t *testing.T) {
	_, err := Parse(strings.NewReader("\n"))
	if err == nil {
		t.Fatal("expected an error for a topology with no daemons")
	}
}
