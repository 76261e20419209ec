package blockstage

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrSpriteNotFound  = errors.New("sprite not found")
	ErrLastSprite      = errors.New("cannot delete the last sprite")
	ErrDuplicateName   = errors.New("sprite name already in use")
	ErrUnknownProperty = errors.New("unknown sprite property")
)

// Property names a value readable through GetSpriteProperty.
type Property string

const (
	PropPosition     Property = "position"
	PropDirection    Property = "direction"
	PropSize         Property = "size"
	PropSpeech       Property = "speech"
	PropValue        Property = "value"
	PropOtherSprites Property = "otherSprites"
	PropFullState    Property = "fullState"
)

// SpriteState is the value returned for PropFullState.
type SpriteState struct {
	Blocks    []Block
	Position  Vec2
	Direction float64
	IsVisible bool
	Speech    *Speech
}

// PositionUpdate carries the fields of a positional mutation. Nil fields are
// left unchanged.
type PositionUpdate struct {
	Position   *Vec2
	Direction  *float64
	MotionStep *float64
}

// SpriteStore is the state the interpreter and physics loop run against.
// *Store implements it.
type SpriteStore interface {
	GetSpriteProperty(spriteID string, prop Property) (any, error)
	Sprites() []Sprite
	SetSpritePosition(spriteID string, u PositionUpdate) error
	SetSpriteSpeech(spriteID string, sp *Speech) error
	SetSpriteMotion(spriteID string, step float64) error
	SetSpriteCollisionState(spriteID string, colliding bool, direction *float64) error
	ResetSpriteCollisionState(spriteID string) error
}

type spriteRecord struct {
	sprite  Sprite // Blocks is always nil; see program
	program *Program
}

// Store is the authoritative, goroutine-safe sprite state. Every mutation
// applies to a single sprite under the store lock, so concurrent writers
// from the interpreter and physics loop never observe a torn sprite.
type Store struct {
	mu       sync.RWMutex
	sprites  map[string]*spriteRecord
	order    []string
	active   string
	nextID   int
	owners   map[string]string // block id -> sprite id
	clock    func() time.Duration
	revision atomic.Uint64
}

// NewStore returns a store holding the default Cat sprite.
func NewStore() *Store {
	start := time.Now()
	s := &Store{
		sprites: make(map[string]*spriteRecord),
		owners:  make(map[string]string),
		clock:   func() time.Duration { return time.Since(start) },
	}
	sp := s.AddSprite(SpriteImages[0].URL)
	s.active = sp.ID
	return s
}

// SetClock replaces the clock used to stamp collision times.
func (s *Store) SetClock(clock func() time.Duration) {
	s.mu.Lock()
	s.clock = clock
	s.mu.Unlock()
}

// Revision increases every time any sprite changes.
func (s *Store) Revision() uint64 { return s.revision.Load() }

func (s *Store) touch() { s.revision.Add(1) }

func (s *Store) get(id string) (*spriteRecord, error) {
	rec, ok := s.sprites[id]
	if !ok {
		return nil, fmt.Errorf("sprite %q: %w", id, ErrSpriteNotFound)
	}
	return rec, nil
}

func (s *Store) snapshot(rec *spriteRecord) Sprite {
	sp := rec.sprite.clone()
	sp.Blocks = rec.program.Tree()
	return sp
}

// mutate applies fn to one sprite under the write lock.
func (s *Store) mutate(id string, fn func(sp *Sprite) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.get(id)
	if err != nil {
		return err
	}
	if err := fn(&rec.sprite); err != nil {
		return err
	}
	s.touch()
	return nil
}

func (s *Store) takenNames(except string) map[string]bool {
	taken := make(map[string]bool, len(s.sprites))
	for id, rec := range s.sprites {
		if id != except {
			taken[rec.sprite.Name] = true
		}
	}
	return taken
}

// AddSprite creates a sprite wearing the given image, named after it.
func (s *Store) AddSprite(image string) Sprite {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := "sprite-" + strconv.Itoa(s.nextID)
	name := uniqueName(NameForImage(image), s.takenNames(""))
	rec := &spriteRecord{sprite: newSprite(id, name, image), program: NewProgram()}
	s.sprites[id] = rec
	s.order = append(s.order, id)
	s.touch()
	return s.snapshot(rec)
}

// DeleteSprite removes a sprite and its program. The last sprite cannot be
// removed.
func (s *Store) DeleteSprite(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.get(id)
	if err != nil {
		return err
	}
	if len(s.sprites) <= 1 {
		return ErrLastSprite
	}
	for _, bid := range rec.program.IDs() {
		delete(s.owners, bid)
	}
	delete(s.sprites, id)
	s.order = removeID(s.order, id)
	if s.active == id {
		s.active = s.order[0]
	}
	s.touch()
	return nil
}

// Sprites returns a snapshot of every sprite in creation order.
func (s *Store) Sprites() []Sprite {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Sprite, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.snapshot(s.sprites[id]))
	}
	return out
}

// Sprite returns a snapshot of one sprite.
func (s *Store) Sprite(id string) (Sprite, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sprites[id]
	if !ok {
		return Sprite{}, false
	}
	return s.snapshot(rec), true
}

// SetActiveSprite selects the sprite whose program the editor shows.
func (s *Store) SetActiveSprite(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.get(id); err != nil {
		return err
	}
	s.active = id
	s.touch()
	return nil
}

// ActiveSprite returns the id of the sprite selected in the editor.
func (s *Store) ActiveSprite() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// RenameSprite sets a sprite's name. Names must be unique.
func (s *Store) RenameSprite(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.get(id)
	if err != nil {
		return err
	}
	if s.takenNames(id)[name] {
		return fmt.Errorf("rename %q to %q: %w", id, name, ErrDuplicateName)
	}
	rec.sprite.Name = name
	s.touch()
	return nil
}

// SetSpriteImage changes a sprite's costume and renames it after the image.
func (s *Store) SetSpriteImage(id, image string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.get(id)
	if err != nil {
		return err
	}
	rec.sprite.Image = image
	rec.sprite.Name = uniqueName(NameForImage(image), s.takenNames(id))
	s.touch()
	return nil
}

// StartSpriteDrag marks a sprite as held by the pointer.
func (s *Store) StartSpriteDrag(id string) error {
	return s.mutate(id, func(sp *Sprite) error {
		sp.IsDragging = true
		return nil
	})
}

// EndSpriteDrag releases a dragged sprite.
func (s *Store) EndSpriteDrag(id string) error {
	return s.mutate(id, func(sp *Sprite) error {
		sp.IsDragging = false
		return nil
	})
}

// SetSpriteVisibility shows or hides a sprite. Hidden sprites are skipped by
// collision checks.
func (s *Store) SetSpriteVisibility(id string, visible bool) error {
	return s.mutate(id, func(sp *Sprite) error {
		sp.IsVisible = visible
		return nil
	})
}

// SetSpriteValue sets the number compared by equals / greaterThan / lessThan.
func (s *Store) SetSpriteValue(id string, v float64) error {
	return s.mutate(id, func(sp *Sprite) error {
		sp.Value = v
		return nil
	})
}

// SwapSpriteStates exchanges the programs, directions and positions of two
// sprites.
func (s *Store) SwapSpriteStates(a, b string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ra, err := s.get(a)
	if err != nil {
		return err
	}
	rb, err := s.get(b)
	if err != nil {
		return err
	}
	ra.program, rb.program = rb.program, ra.program
	ra.sprite.Direction, rb.sprite.Direction = rb.sprite.Direction, ra.sprite.Direction
	ra.sprite.Position, rb.sprite.Position = rb.sprite.Position, ra.sprite.Position
	for _, id := range ra.program.IDs() {
		s.owners[id] = a
	}
	for _, id := range rb.program.IDs() {
		s.owners[id] = b
	}
	s.touch()
	return nil
}

// StoreInitialPosition records where a sprite returns to when execution is
// stopped.
func (s *Store) StoreInitialPosition(id string, pos Vec2) error {
	return s.mutate(id, func(sp *Sprite) error {
		sp.InitialPosition = pos
		return nil
	})
}

// ResetToLastPosition moves a sprite back to the position it held before its
// most recent positional mutation.
func (s *Store) ResetToLastPosition(id string) error {
	return s.mutate(id, func(sp *Sprite) error {
		sp.Position = sp.LastPosition
		return nil
	})
}

// GetSpriteProperty reads one property of a sprite. Slices and pointers in
// the result are copies.
func (s *Store) GetSpriteProperty(id string, prop Property) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.get(id)
	if err != nil {
		return nil, err
	}
	sp := rec.sprite
	switch prop {
	case PropPosition:
		return sp.Position, nil
	case PropDirection:
		return sp.Direction, nil
	case PropSize:
		return sp.Size, nil
	case PropValue:
		return sp.Value, nil
	case PropSpeech:
		return sp.clone().Speech, nil
	case PropOtherSprites:
		others := make([]Sprite, 0, len(s.order)-1)
		for _, oid := range s.order {
			if oid != id {
				others = append(others, s.snapshot(s.sprites[oid]))
			}
		}
		return others, nil
	case PropFullState:
		return SpriteState{
			Blocks:    rec.program.Tree(),
			Position:  sp.Position,
			Direction: sp.Direction,
			IsVisible: sp.IsVisible,
			Speech:    sp.clone().Speech,
		}, nil
	}
	return nil, fmt.Errorf("sprite %q property %q: %w", id, prop, ErrUnknownProperty)
}

// SpriteProperty reads a property through GetSpriteProperty and asserts its
// type.
func SpriteProperty[T any](r interface {
	GetSpriteProperty(string, Property) (any, error)
}, id string, prop Property) (T, error) {
	var zero T
	v, err := r.GetSpriteProperty(id, prop)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("sprite %q property %q: unexpected type %T", id, prop, v)
	}
	return t, nil
}

// SetSpritePosition applies a positional mutation. When a position is given
// the previous one is kept as LastPosition. Directions are normalized.
func (s *Store) SetSpritePosition(id string, u PositionUpdate) error {
	return s.mutate(id, func(sp *Sprite) error {
		if u.Position != nil {
			sp.LastPosition = sp.Position
			sp.Position = *u.Position
		}
		if u.Direction != nil {
			sp.Direction = NormalizeAngle(*u.Direction)
		}
		if u.MotionStep != nil {
			sp.MotionStep = *u.MotionStep
		}
		return nil
	})
}

// SetSpriteMotion records the sprite's outstanding physics distance.
func (s *Store) SetSpriteMotion(id string, step float64) error {
	return s.mutate(id, func(sp *Sprite) error {
		sp.MotionStep = step
		return nil
	})
}

// SetSpriteSpeech shows a bubble, or clears it when sp is nil.
func (s *Store) SetSpriteSpeech(id string, speech *Speech) error {
	return s.mutate(id, func(sp *Sprite) error {
		if speech == nil {
			sp.Speech = nil
			return nil
		}
		c := *speech
		sp.Speech = &c
		return nil
	})
}

// SetSpriteCollisionState flags a sprite as colliding or not. Entering the
// colliding state stamps LastCollisionTime from the store clock. A non-nil
// direction is recorded as the rebound direction.
func (s *Store) SetSpriteCollisionState(id string, colliding bool, direction *float64) error {
	s.mu.Lock()
	now := s.clock()
	s.mu.Unlock()
	return s.mutate(id, func(sp *Sprite) error {
		sp.IsColliding = colliding
		if colliding {
			sp.HasCollided = true
			sp.LastCollisionTime = now
		}
		if direction != nil {
			sp.CollisionDirection = NormalizeAngle(*direction)
		}
		return nil
	})
}

// ResetSpriteCollisionState clears a sprite's colliding flag.
func (s *Store) ResetSpriteCollisionState(id string) error {
	return s.mutate(id, func(sp *Sprite) error {
		sp.IsColliding = false
		return nil
	})
}

// AddBlock inserts a block (with its subtree) into a sprite's program, under
// parentID or at the top level when parentID is empty. It returns the block
// as stored.
func (s *Store) AddBlock(spriteID, parentID string, b Block) (Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.get(spriteID)
	if err != nil {
		return Block{}, err
	}
	if parentID != "" && s.owners[parentID] != spriteID {
		return Block{}, fmt.Errorf("add block under %q: %w", parentID, ErrBlockNotFound)
	}
	if err := s.checkOwners(b); err != nil {
		return Block{}, err
	}
	id, err := rec.program.Add(parentID, b)
	if err != nil {
		return Block{}, err
	}
	added, _ := rec.program.Find(id)
	s.own(added, spriteID)
	s.touch()
	return added, nil
}

func (s *Store) checkOwners(b Block) error {
	if _, ok := s.owners[b.ID]; ok && b.ID != "" {
		return fmt.Errorf("add block %q: %w", b.ID, ErrDuplicateBlock)
	}
	for _, c := range b.Children {
		if err := s.checkOwners(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) own(b Block, spriteID string) {
	s.owners[b.ID] = spriteID
	for _, c := range b.Children {
		s.own(c, spriteID)
	}
}

func (s *Store) program(blockID string) (*Program, error) {
	owner, ok := s.owners[blockID]
	if !ok {
		return nil, fmt.Errorf("block %q: %w", blockID, ErrBlockNotFound)
	}
	rec, err := s.get(owner)
	if err != nil {
		return nil, err
	}
	return rec.program, nil
}

// MoveBlock reparents a block within its sprite's program. An empty
// newParentID moves it to the top level.
func (s *Store) MoveBlock(blockID, newParentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.program(blockID)
	if err != nil {
		return err
	}
	if newParentID != "" && s.owners[newParentID] != s.owners[blockID] {
		return fmt.Errorf("move block %q under %q: %w", blockID, newParentID, ErrBlockNotFound)
	}
	if err := p.Move(blockID, newParentID); err != nil {
		return err
	}
	s.touch()
	return nil
}

// SetBlockElse moves a child of an ifElse block between its branches.
func (s *Store) SetBlockElse(blockID string, isElse bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.program(blockID)
	if err != nil {
		return err
	}
	if err := p.SetElse(blockID, isElse); err != nil {
		return err
	}
	s.touch()
	return nil
}

// UpdateBlockParams replaces a block's parameters.
func (s *Store) UpdateBlockParams(blockID string, params []Param) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.program(blockID)
	if err != nil {
		return err
	}
	if err := p.UpdateParams(blockID, params); err != nil {
		return err
	}
	s.touch()
	return nil
}

// DeleteBlock removes a block and its descendants.
func (s *Store) DeleteBlock(blockID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.program(blockID)
	if err != nil {
		return err
	}
	before := p.IDs()
	if err := p.Delete(blockID); err != nil {
		return err
	}
	for _, id := range before {
		if !p.Has(id) {
			delete(s.owners, id)
		}
	}
	s.touch()
	return nil
}

// Blocks returns a snapshot of a sprite's program.
func (s *Store) Blocks(spriteID string) ([]Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.get(spriteID)
	if err != nil {
		return nil, err
	}
	return rec.program.Tree(), nil
}

// BlockOwner returns the id of the sprite whose program holds blockID.
func (s *Store) BlockOwner(blockID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.owners[blockID]
	return id, ok
}

// SetBlocks replaces a sprite's whole program.
func (s *Store) SetBlocks(spriteID string, blocks []Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.get(spriteID)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		if err := s.checkOwnersExcept(b, spriteID); err != nil {
			return err
		}
	}
	before := rec.program.IDs()
	if err := rec.program.Replace(blocks); err != nil {
		return err
	}
	for _, id := range before {
		delete(s.owners, id)
	}
	for _, b := range rec.program.Tree() {
		s.own(b, spriteID)
	}
	s.touch()
	return nil
}

func (s *Store) checkOwnersExcept(b Block, spriteID string) error {
	if owner, ok := s.owners[b.ID]; ok && b.ID != "" && owner != spriteID {
		return fmt.Errorf("set blocks: block %q: %w", b.ID, ErrDuplicateBlock)
	}
	for _, c := range b.Children {
		if err := s.checkOwnersExcept(c, spriteID); err != nil {
			return err
		}
	}
	return nil
}
