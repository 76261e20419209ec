package blockstage

import (
	"errors"
	"testing"
)

func ids(bs []Block) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestProgramAddAndTree(t *testing.T) {
	p := NewProgram()
	rep := Block{ID: "rep", Type: BlockRepeat, Params: []Param{Num(2)}}
	if _, err := p.Add("", rep); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Add("rep", Block{ID: "m", Type: BlockMove, Params: []Param{Num(5)}}); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Add("", Block{ID: "s", Type: BlockSay, Params: []Param{Str("hi")}}); err != nil {
		t.Fatal(err)
	}

	tree := p.Tree()
	if !equalIDs(ids(tree), []string{"rep", "s"}) {
		t.Fatalf("roots = %v", ids(tree))
	}
	if !equalIDs(ids(tree[0].Children), []string{"m"}) {
		t.Fatalf("repeat children = %v", ids(tree[0].Children))
	}
	if p.Len() != 3 {
		t.Errorf("Len = %d, want 3", p.Len())
	}

	// Snapshots are independent of the arena.
	tree[0].Children[0].Params[0] = Num(99)
	again, _ := p.Find("m")
	if again.Params[0].Num != 5 {
		t.Error("mutating a snapshot changed the program")
	}
}

func TestProgramAddFillsIDs(t *testing.T) {
	p := NewProgram()
	id, err := p.Add("", Block{Type: BlockRepeat, Params: []Param{Num(1)}, Children: []Block{{Type: BlockMove}}})
	if err != nil {
		t.Fatal(err)
	}
	b, ok := p.Find(id)
	if !ok || len(b.Children) != 1 || b.Children[0].ID == "" {
		t.Fatalf("Find(%q) = %+v, %v", id, b, ok)
	}
}

func TestProgramRejectsChildrenOnCommands(t *testing.T) {
	p := NewProgram()
	_, _ = p.Add("", Block{ID: "m", Type: BlockMove})
	if _, err := p.Add("m", Block{ID: "x", Type: BlockMove}); !errors.Is(err, ErrNotContainer) {
		t.Errorf("add under move: err = %v, want ErrNotContainer", err)
	}
	bad := Block{ID: "y", Type: BlockSay, Children: []Block{{ID: "z", Type: BlockMove}}}
	if _, err := p.Add("", bad); !errors.Is(err, ErrNotContainer) {
		t.Errorf("add say with children: err = %v, want ErrNotContainer", err)
	}
	if _, err := p.Add("", Block{ID: "m", Type: BlockMove}); !errors.Is(err, ErrDuplicateBlock) {
		t.Errorf("duplicate id: err = %v, want ErrDuplicateBlock", err)
	}
	if _, err := p.Add("missing", Block{Type: BlockMove}); !errors.Is(err, ErrBlockNotFound) {
		t.Errorf("missing parent: err = %v, want ErrBlockNotFound", err)
	}
}

func TestProgramMove(t *testing.T) {
	p := NewProgram()
	_, _ = p.Add("", Block{ID: "a", Type: BlockRepeat})
	_, _ = p.Add("a", Block{ID: "b", Type: BlockRepeat})
	_, _ = p.Add("b", Block{ID: "c", Type: BlockMove})
	_, _ = p.Add("", Block{ID: "d", Type: BlockIfElse})

	if err := p.Move("a", "c"); !errors.Is(err, ErrNotContainer) {
		t.Errorf("move under command: err = %v", err)
	}
	if err := p.Move("a", "b"); !errors.Is(err, ErrCycle) {
		t.Errorf("move into own subtree: err = %v, want ErrCycle", err)
	}
	if err := p.Move("a", "a"); !errors.Is(err, ErrCycle) {
		t.Errorf("move under itself: err = %v, want ErrCycle", err)
	}

	if err := p.Move("c", ""); err != nil {
		t.Fatal(err)
	}
	if !equalIDs(ids(p.Tree()), []string{"a", "d", "c"}) {
		t.Errorf("roots after move = %v", ids(p.Tree()))
	}

	if err := p.Move("c", "d"); err != nil {
		t.Fatal(err)
	}
	if err := p.SetElse("c", true); err != nil {
		t.Fatal(err)
	}
	if err := p.Move("c", "b"); err != nil {
		t.Fatal(err)
	}
	c, _ := p.Find("c")
	if c.IsElse {
		t.Error("IsElse should clear when leaving an ifElse block")
	}
	if err := p.SetElse("c", true); err == nil {
		t.Error("SetElse under repeat should fail")
	}
}

func TestProgramDeleteRemovesDescendants(t *testing.T) {
	p := NewProgram()
	_, _ = p.Add("", Block{ID: "a", Type: BlockRepeat})
	_, _ = p.Add("a", Block{ID: "b", Type: BlockRepeat})
	_, _ = p.Add("b", Block{ID: "c", Type: BlockMove})
	_, _ = p.Add("", Block{ID: "d", Type: BlockMove})

	if err := p.Delete("a"); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"a", "b", "c"} {
		if p.Has(id) {
			t.Errorf("%s still present", id)
		}
	}
	if p.Len() != 1 || !equalIDs(ids(p.Tree()), []string{"d"}) {
		t.Errorf("remaining = %v", ids(p.Tree()))
	}
	if err := p.Delete("a"); !errors.Is(err, ErrBlockNotFound) {
		t.Errorf("second delete: err = %v", err)
	}
}

func TestProgramUpdateParams(t *testing.T) {
	p := NewProgram()
	_, _ = p.Add("", Block{ID: "g", Type: BlockGoToXY, Params: []Param{Num(1), Num(2)}})
	params := []Param{Num(3), Str("4")}
	if err := p.UpdateParams("g", params); err != nil {
		t.Fatal(err)
	}
	params[0] = Num(100)
	g, _ := p.Find("g")
	if g.Params[0].Num != 3 || g.Params[1].Str != "4" {
		t.Errorf("params = %+v", g.Params)
	}
}

func TestProgramReplace(t *testing.T) {
	p := NewProgram()
	_, _ = p.Add("", Block{ID: "old", Type: BlockMove})
	if err := p.Replace([]Block{{ID: "n1", Type: BlockMove}, {ID: "n2", Type: BlockSay}}); err != nil {
		t.Fatal(err)
	}
	if p.Has("old") || !equalIDs(ids(p.Tree()), []string{"n1", "n2"}) {
		t.Errorf("tree after Replace = %v", ids(p.Tree()))
	}
	if err := p.Replace([]Block{{ID: "x", Type: BlockMove}, {ID: "x", Type: BlockMove}}); err == nil {
		t.Error("Replace with duplicate ids should fail")
	}
	if !equalIDs(ids(p.Tree()), []string{"n1", "n2"}) {
		t.Error("failed Replace modified the program")
	}
}
