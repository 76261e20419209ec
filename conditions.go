package blockstage

import "math"

// evaluateCondition answers an if / ifElse predicate for spriteID. params
// are the block's params: [0] condition type, [1] operand, [2] comparison
// value. Read failures and unknown conditions log and return false.
func (e *Engine) evaluateCondition(spriteID string, cond ConditionType, params []Param) bool {
	ok, err := e.condition(spriteID, cond, params)
	if err != nil {
		e.log.Printf("%s: condition %q: %v", spriteID, cond, err)
		return false
	}
	return ok
}

func (e *Engine) condition(spriteID string, cond ConditionType, params []Param) (bool, error) {
	operand := func(i int) Param {
		if i < len(params) {
			return params[i]
		}
		return Str("")
	}
	switch cond {
	case CondEquals, CondGreaterThan, CondLessThan:
		v, err := SpriteProperty[float64](e.store, spriteID, PropValue)
		if err != nil {
			return false, err
		}
		want, ok := operand(2).Number()
		if !ok {
			return false, nil
		}
		switch cond {
		case CondEquals:
			return v == want, nil
		case CondGreaterThan:
			return v > want, nil
		default:
			return v < want, nil
		}
	case CondKeyPressed:
		return e.input != nil && e.input.IsKeyPressed(operand(1).String()), nil
	case CondMouseDown:
		return e.input != nil && e.input.IsMouseDown(), nil
	case CondTouchingEdge:
		pos, err := SpriteProperty[Vec2](e.store, spriteID, PropPosition)
		if err != nil {
			return false, err
		}
		return TouchingEdge(pos, e.tuning.Stage), nil
	case CondTouchingSprite:
		pos, err := SpriteProperty[Vec2](e.store, spriteID, PropPosition)
		if err != nil {
			return false, err
		}
		size, err := SpriteProperty[float64](e.store, spriteID, PropSize)
		if err != nil {
			return false, err
		}
		others, err := SpriteProperty[[]Sprite](e.store, spriteID, PropOtherSprites)
		if err != nil {
			return false, err
		}
		for _, o := range others {
			if CirclesTouch(pos, o.Position, size, o.Size) {
				return true, nil
			}
		}
		return false, nil
	}
	e.log.Printf("%s: unknown condition %q", spriteID, cond)
	return false, nil
}

// TouchingEdge reports whether pos lies on or beyond the stage bounds.
func TouchingEdge(pos Vec2, st StageTuning) bool {
	return math.Abs(pos.X) >= st.HalfWidth || math.Abs(pos.Y) >= st.HalfHeight
}
