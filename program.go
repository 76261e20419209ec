package blockstage

import (
	"errors"
	"fmt"
)

var (
	ErrBlockNotFound  = errors.New("block not found")
	ErrDuplicateBlock = errors.New("duplicate block id")
	ErrNotContainer   = errors.New("block cannot hold children")
	ErrCycle          = errors.New("block cannot be moved into its own subtree")
)

type blockRecord struct {
	block    Block // Children is always nil; see children
	parent   string
	children []string
}

// Program is a sprite's block tree stored as an arena of records addressed
// by block id. Edits never share memory with snapshots handed out by Tree.
type Program struct {
	blocks map[string]*blockRecord
	roots  []string
}

// NewProgram returns an empty program.
func NewProgram() *Program {
	return &Program{blocks: make(map[string]*blockRecord)}
}

// Len returns the number of blocks in the program.
func (p *Program) Len() int { return len(p.blocks) }

// Has reports whether the program holds a block with the given id.
func (p *Program) Has(id string) bool {
	_, ok := p.blocks[id]
	return ok
}

// IDs returns the ids of every block in the program, in no particular order.
func (p *Program) IDs() []string {
	ids := make([]string, 0, len(p.blocks))
	for id := range p.blocks {
		ids = append(ids, id)
	}
	return ids
}

// Add inserts b and its subtree under parentID, or at the top level when
// parentID is empty. Blank ids are filled in; the id actually used for b is
// returned.
func (p *Program) Add(parentID string, b Block) (string, error) {
	if parentID != "" {
		parent, ok := p.blocks[parentID]
		if !ok {
			return "", fmt.Errorf("add block under %q: %w", parentID, ErrBlockNotFound)
		}
		if !parent.block.Type.IsContainer() {
			return "", fmt.Errorf("add block under %q (%s): %w", parentID, parent.block.Type, ErrNotContainer)
		}
	}
	if err := p.checkInsert(b, map[string]bool{}); err != nil {
		return "", err
	}
	id := p.insert(parentID, b)
	if parentID == "" {
		p.roots = append(p.roots, id)
	} else {
		parent := p.blocks[parentID]
		parent.children = append(parent.children, id)
	}
	return id, nil
}

func (p *Program) checkInsert(b Block, seen map[string]bool) error {
	if b.ID != "" {
		if _, ok := p.blocks[b.ID]; ok || seen[b.ID] {
			return fmt.Errorf("add block %q: %w", b.ID, ErrDuplicateBlock)
		}
		seen[b.ID] = true
	}
	if len(b.Children) > 0 && !b.Type.IsContainer() {
		return fmt.Errorf("add block %q (%s): %w", b.ID, b.Type, ErrNotContainer)
	}
	for _, c := range b.Children {
		if err := p.checkInsert(c, seen); err != nil {
			return err
		}
	}
	return nil
}

func (p *Program) insert(parentID string, b Block) string {
	if b.ID == "" {
		b.ID = newBlockID()
	}
	rec := &blockRecord{parent: parentID}
	rec.block = b
	rec.block.Children = nil
	if b.Params != nil {
		rec.block.Params = append([]Param(nil), b.Params...)
	}
	p.blocks[b.ID] = rec
	for _, c := range b.Children {
		rec.children = append(rec.children, p.insert(b.ID, c))
	}
	return b.ID
}

// Move detaches the block and appends it to newParentID's children, or to
// the top level when newParentID is empty.
func (p *Program) Move(id, newParentID string) error {
	rec, ok := p.blocks[id]
	if !ok {
		return fmt.Errorf("move block %q: %w", id, ErrBlockNotFound)
	}
	if newParentID != "" {
		parent, ok := p.blocks[newParentID]
		if !ok {
			return fmt.Errorf("move block %q under %q: %w", id, newParentID, ErrBlockNotFound)
		}
		if !parent.block.Type.IsContainer() {
			return fmt.Errorf("move block %q under %q: %w", id, newParentID, ErrNotContainer)
		}
		for a := newParentID; a != ""; a = p.blocks[a].parent {
			if a == id {
				return fmt.Errorf("move block %q under %q: %w", id, newParentID, ErrCycle)
			}
		}
	}
	p.detach(id, rec.parent)
	rec.parent = newParentID
	if newParentID == "" {
		p.roots = append(p.roots, id)
		rec.block.IsElse = false
		return nil
	}
	parent := p.blocks[newParentID]
	parent.children = append(parent.children, id)
	if parent.block.Type != BlockIfElse {
		rec.block.IsElse = false
	}
	return nil
}

// SetElse marks a child of an ifElse block as belonging to its else branch.
func (p *Program) SetElse(id string, isElse bool) error {
	rec, ok := p.blocks[id]
	if !ok {
		return fmt.Errorf("set else on %q: %w", id, ErrBlockNotFound)
	}
	if isElse && (rec.parent == "" || p.blocks[rec.parent].block.Type != BlockIfElse) {
		return fmt.Errorf("set else on %q: parent is not an ifElse block", id)
	}
	rec.block.IsElse = isElse
	return nil
}

// UpdateParams replaces the block's parameter list.
func (p *Program) UpdateParams(id string, params []Param) error {
	rec, ok := p.blocks[id]
	if !ok {
		return fmt.Errorf("update block %q: %w", id, ErrBlockNotFound)
	}
	rec.block.Params = append([]Param(nil), params...)
	return nil
}

// Delete removes the block and all of its descendants.
func (p *Program) Delete(id string) error {
	rec, ok := p.blocks[id]
	if !ok {
		return fmt.Errorf("delete block %q: %w", id, ErrBlockNotFound)
	}
	p.detach(id, rec.parent)
	p.drop(id)
	return nil
}

func (p *Program) drop(id string) {
	rec := p.blocks[id]
	for _, c := range rec.children {
		p.drop(c)
	}
	delete(p.blocks, id)
}

func (p *Program) detach(id, parentID string) {
	if parentID == "" {
		p.roots = removeID(p.roots, id)
		return
	}
	if parent, ok := p.blocks[parentID]; ok {
		parent.children = removeID(parent.children, id)
	}
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}

// Find returns a snapshot of the block and its subtree.
func (p *Program) Find(id string) (Block, bool) {
	if _, ok := p.blocks[id]; !ok {
		return Block{}, false
	}
	return p.build(id), true
}

// Tree returns a deep copy of the whole program in order.
func (p *Program) Tree() []Block {
	out := make([]Block, 0, len(p.roots))
	for _, id := range p.roots {
		out = append(out, p.build(id))
	}
	return out
}

func (p *Program) build(id string) Block {
	rec := p.blocks[id]
	b := rec.block
	if b.Params != nil {
		b.Params = append([]Param(nil), b.Params...)
	}
	if len(rec.children) > 0 {
		b.Children = make([]Block, 0, len(rec.children))
		for _, c := range rec.children {
			b.Children = append(b.Children, p.build(c))
		}
	}
	return b
}

// Replace discards the program's contents and loads blocks in their place.
func (p *Program) Replace(blocks []Block) error {
	next := NewProgram()
	for _, b := range blocks {
		if _, err := next.Add("", b); err != nil {
			return err
		}
	}
	*p = *next
	return nil
}
