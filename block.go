package blockstage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// BlockType identifies what a block does when interpreted.
type BlockType string

const (
	BlockMove      BlockType = "move"
	BlockTurnRight BlockType = "turnRight"
	BlockTurnLeft  BlockType = "turnLeft"
	BlockGoToXY    BlockType = "goToXY"
	BlockSay       BlockType = "say"
	BlockThink     BlockType = "think"
	BlockRepeat    BlockType = "repeat"
	BlockIf        BlockType = "if"
	BlockIfElse    BlockType = "ifElse"
)

// IsContainer reports whether blocks of this type may hold children.
func (t BlockType) IsContainer() bool {
	switch t {
	case BlockRepeat, BlockIf, BlockIfElse:
		return true
	}
	return false
}

// ConditionType names a predicate evaluated by if / ifElse blocks.
type ConditionType string

const (
	CondEquals         ConditionType = "equals"
	CondGreaterThan    ConditionType = "greaterThan"
	CondLessThan       ConditionType = "lessThan"
	CondKeyPressed     ConditionType = "keyPressed"
	CondMouseDown      ConditionType = "mouseDown"
	CondTouchingEdge   ConditionType = "touchingEdge"
	CondTouchingSprite ConditionType = "touchingSprite"
)

// KeyOption is a key selectable in a keyPressed condition.
type KeyOption struct {
	Label string
	Key   string
}

// KeyOptions lists the keys offered by the block palette, using browser key
// names.
var KeyOptions = []KeyOption{
	{"space", " "},
	{"up arrow", "ArrowUp"},
	{"down arrow", "ArrowDown"},
	{"left arrow", "ArrowLeft"},
	{"right arrow", "ArrowRight"},
	{"enter", "Enter"},
}

// ParamKind tells which field of a Param is set.
type ParamKind uint8

const (
	ParamNumber ParamKind = iota
	ParamString
)

// Param is a positional block parameter. Editors produce either numbers or
// raw text; interpreters coerce as needed.
type Param struct {
	Kind ParamKind
	Num  float64
	Str  string
}

// Num returns a numeric Param.
func Num(v float64) Param { return Param{Kind: ParamNumber, Num: v} }

// Str returns a string Param.
func Str(s string) Param { return Param{Kind: ParamString, Str: s} }

// Number converts p the way an editor text field is read: numbers as-is,
// blank text as 0, anything else parsed as a decimal. ok is false for text
// that does not parse and for non-finite values.
func (p Param) Number() (v float64, ok bool) {
	if p.Kind == ParamNumber {
		v = p.Num
	} else {
		s := strings.TrimSpace(p.Str)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN(), false
		}
		v = f
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v, false
	}
	return v, true
}

// String returns p as text.
func (p Param) String() string {
	if p.Kind == ParamString {
		return p.Str
	}
	return strconv.FormatFloat(p.Num, 'f', -1, 64)
}

// MarshalJSON encodes p as a bare JSON number or string.
func (p Param) MarshalJSON() ([]byte, error) {
	if p.Kind == ParamString {
		return json.Marshal(p.Str)
	}
	if math.IsNaN(p.Num) || math.IsInf(p.Num, 0) {
		return json.Marshal(p.String())
	}
	return json.Marshal(p.Num)
}

// UnmarshalJSON accepts a JSON number, string or null (read as blank text).
func (p *Param) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*p = Str("")
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Str(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("block param: %w", err)
	}
	*p = Num(f)
	return nil
}

// Block is one instruction in a sprite's program. Only container types
// (repeat, if, ifElse) carry children. IsElse marks a child of an ifElse
// block that belongs to the else branch.
type Block struct {
	ID       string    `json:"id"`
	Type     BlockType `json:"type"`
	Params   []Param   `json:"params,omitempty"`
	Children []Block   `json:"children,omitempty"`
	IsElse   bool      `json:"isElse,omitempty"`
}

// NewBlock creates a block with a fresh id.
func NewBlock(t BlockType, params ...Param) Block {
	return Block{ID: newBlockID(), Type: t, Params: params}
}

// Param returns the i-th parameter, or false when absent.
func (b Block) Param(i int) (Param, bool) {
	if i < 0 || i >= len(b.Params) {
		return Param{}, false
	}
	return b.Params[i], true
}

// WithChildren returns a copy of b holding the given children.
func (b Block) WithChildren(children ...Block) Block {
	b.Children = children
	return b
}

// Else returns a copy of b marked as belonging to an else branch.
func (b Block) Else() Block {
	b.IsElse = true
	return b
}

// Clone returns a deep copy of b.
func (b Block) Clone() Block {
	c := b
	if b.Params != nil {
		c.Params = append([]Param(nil), b.Params...)
	}
	if b.Children != nil {
		c.Children = cloneBlocks(b.Children)
	}
	return c
}

func cloneBlocks(bs []Block) []Block {
	if bs == nil {
		return nil
	}
	out := make([]Block, len(bs))
	for i, b := range bs {
		out[i] = b.Clone()
	}
	return out
}

func newBlockID() string {
	return uuid.NewString()
}
