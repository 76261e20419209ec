package blockstage

import (
	"encoding/json"
	"math"
	"testing"
)

func TestParamNumber(t *testing.T) {
	tests := []struct {
		name   string
		p      Param
		want   float64
		wantOK bool
	}{
		{"number", Num(3), 3, true},
		{"numeric text", Str(" 2.5 "), 2.5, true},
		{"blank text", Str("   "), 0, true},
		{"word", Str("abc"), math.NaN(), false},
		{"nan", Num(math.NaN()), math.NaN(), false},
		{"inf", Num(math.Inf(1)), math.Inf(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.p.Number()
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.wantOK && got != tt.want {
				t.Errorf("Number() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBlockDecodesMixedParams(t *testing.T) {
	data := []byte(`{"id":"b1","type":"ifElse","params":["keyPressed"," ",null,4],
		"children":[{"id":"b2","type":"say","params":["yes",1]},{"id":"b3","type":"move","params":["10"],"isElse":true}]}`)
	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if b.Type != BlockIfElse || len(b.Params) != 4 || len(b.Children) != 2 {
		t.Fatalf("decoded %+v", b)
	}
	if b.Params[0].String() != "keyPressed" || b.Params[1].String() != " " {
		t.Errorf("string params = %q, %q", b.Params[0].String(), b.Params[1].String())
	}
	if b.Params[2].Kind != ParamString || b.Params[2].Str != "" {
		t.Errorf("null param = %+v, want blank text", b.Params[2])
	}
	if v, ok := b.Params[3].Number(); !ok || v != 4 {
		t.Errorf("numeric param = %v, %v", v, ok)
	}
	if !b.Children[1].IsElse {
		t.Error("isElse lost")
	}
	if v, ok := b.Children[1].Params[0].Number(); !ok || v != 10 {
		t.Errorf("text steps = %v, %v", v, ok)
	}

	out, err := json.Marshal(b.Children[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"id":"b2","type":"say","params":["yes",1]}` {
		t.Errorf("marshal = %s", out)
	}
}

func TestBlockCloneIsDeep(t *testing.T) {
	b := NewBlock(BlockRepeat, Num(2)).WithChildren(NewBlock(BlockMove, Num(1)))
	c := b.Clone()
	c.Params[0] = Num(9)
	c.Children[0].Params[0] = Num(9)
	if b.Params[0].Num != 2 || b.Children[0].Params[0].Num != 1 {
		t.Error("Clone shares memory with the original")
	}
	if b.ID == "" || b.ID == b.Children[0].ID {
		t.Error("NewBlock should assign distinct ids")
	}
}

func TestIsContainer(t *testing.T) {
	for _, bt := range []BlockType{BlockRepeat, BlockIf, BlockIfElse} {
		if !bt.IsContainer() {
			t.Errorf("%s should be a container", bt)
		}
	}
	for _, bt := range []BlockType{BlockMove, BlockSay, BlockGoToXY, "bogus"} {
		if bt.IsContainer() {
			t.Errorf("%s should not be a container", bt)
		}
	}
}
