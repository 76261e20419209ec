package observer

import (
	"errors"
	"fmt"

	"github.com/phanxgames/blockstage"
)

var errUnknownCommand = errors.New("unknown command")

// Apply runs one validated command against the stage and returns the ACK
// payload, if any. It is safe to call while another goroutine drives
// Stage.Update.
func (s *Server) Apply(cmd Command) (any, error) {
	st := s.stage
	switch cmd.Type {
	case "ADD_SPRITE":
		return st.Store.AddSprite(cmd.Image), nil
	case "DELETE_SPRITE":
		return nil, st.DeleteSprite(cmd.SpriteID)
	case "SELECT_SPRITE":
		return nil, st.Store.SetActiveSprite(cmd.SpriteID)

	case "ADD_BLOCK":
		return st.Store.AddBlock(cmd.SpriteID, cmd.ParentID, *cmd.Block)
	case "MOVE_BLOCK":
		return nil, st.Store.MoveBlock(cmd.BlockID, cmd.ParentID)
	case "UPDATE_PARAMS":
		return nil, st.Store.UpdateBlockParams(cmd.BlockID, cmd.Params)
	case "SET_ELSE":
		return nil, st.Store.SetBlockElse(cmd.BlockID, cmd.IsElse)
	case "DELETE_BLOCK":
		return nil, st.Store.DeleteBlock(cmd.BlockID)
	case "SELECT_BLOCK":
		if _, ok := st.Store.BlockOwner(cmd.BlockID); !ok {
			return nil, fmt.Errorf("select block %q: %w", cmd.BlockID, blockstage.ErrBlockNotFound)
		}
		st.Engine.SetSelectedBlock(cmd.BlockID)
		return nil, nil

	case "RUN_ALL":
		runs := st.RunAll()
		ids := make([]string, 0, len(runs))
		for _, r := range runs {
			ids = append(ids, r.SpriteID())
		}
		return ids, nil
	case "RUN_SPRITE":
		_, err := st.RunSprite(cmd.SpriteID)
		return nil, err
	case "STOP_ALL":
		st.StopAll()
		return nil, nil

	case "KEY_DOWN":
		st.InjectKeyDown(cmd.Key)
		return nil, nil
	case "KEY_UP":
		st.InjectKeyUp(cmd.Key)
		return nil, nil
	case "MOUSE_DOWN":
		st.InjectMouse(true)
		return nil, nil
	case "MOUSE_UP":
		st.InjectMouse(false)
		return nil, nil

	case "DRAG_START":
		return nil, st.StartDrag(cmd.SpriteID)
	case "DRAG":
		return nil, st.DragTo(cmd.SpriteID, blockstage.Vec2{X: cmd.X, Y: cmd.Y})
	case "DRAG_END":
		return nil, st.EndDrag(cmd.SpriteID, cmd.Steps)
	case "START_MOTION":
		return nil, st.StartMotion(cmd.SpriteID, cmd.Steps)
	}
	return nil, fmt.Errorf("%w: %q", errUnknownCommand, cmd.Type)
}

