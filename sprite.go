package blockstage

import (
	"fmt"
	"time"
)

// DefaultSpriteSize is the edge length of a sprite's collision box and the
// diameter used by touchingSprite.
const DefaultSpriteSize = 32

// SpeechKind distinguishes a speech bubble from a thought bubble.
type SpeechKind string

const (
	SpeechSay   SpeechKind = "say"
	SpeechThink SpeechKind = "think"
)

// Speech is the bubble currently shown above a sprite.
type Speech struct {
	Kind    SpeechKind `json:"type"`
	Message string     `json:"message"`
}

// Sprite is a snapshot of one stage entity. Values returned by the store are
// copies; mutate through the store's entry points.
type Sprite struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`

	Position        Vec2    `json:"position"`
	LastPosition    Vec2    `json:"lastPosition"`
	InitialPosition Vec2    `json:"initialPosition"`
	Direction       float64 `json:"direction"`
	MotionStep      float64 `json:"motionStep"`
	Size            float64 `json:"size"`
	Value           float64 `json:"value"`

	Speech     *Speech `json:"speech,omitempty"`
	IsDragging bool    `json:"isDragging"`
	IsVisible  bool    `json:"isVisible"`

	IsColliding        bool          `json:"isColliding"`
	HasCollided        bool          `json:"hasCollided"`
	LastCollisionTime  time.Duration `json:"lastCollisionTime"`
	CollisionDirection float64       `json:"collisionDirection"`

	Blocks []Block `json:"blocks"`
}

func newSprite(id, name, image string) Sprite {
	return Sprite{
		ID:        id,
		Name:      name,
		Image:     image,
		Direction: 90,
		Size:      DefaultSpriteSize,
		IsVisible: true,
	}
}

func (s Sprite) clone() Sprite {
	c := s
	if s.Speech != nil {
		sp := *s.Speech
		c.Speech = &sp
	}
	c.Blocks = cloneBlocks(s.Blocks)
	return c
}

// SpriteImage is an entry of the built-in costume catalog.
type SpriteImage struct {
	Name string
	URL  string
}

// SpriteImages is the built-in costume catalog.
var SpriteImages = []SpriteImage{
	{Name: "Cat", URL: "images/cat.svg"},
	{Name: "Jerry", URL: "images/jerry.png"},
	{Name: "Ball", URL: "images/ball.png"},
	{Name: "Mickey", URL: "images/mickey.png"},
}

// customSpriteName names sprites whose image is not in the catalog.
const customSpriteName = "Custom Sprite"

// NameForImage returns the catalog name for an image URL.
func NameForImage(url string) string {
	for _, img := range SpriteImages {
		if img.URL == url {
			return img.Name
		}
	}
	return customSpriteName
}

// uniqueName returns base, or base followed by the smallest counter >= 2
// that no name in taken uses.
func uniqueName(base string, taken map[string]bool) string {
	if !taken[base] {
		return base
	}
	for n := 2; ; n++ {
		name := fmt.Sprintf("%s %d", base, n)
		if !taken[name] {
			return name
		}
	}
}
