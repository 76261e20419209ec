package observer

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/phanxgames/blockstage"
)

// Version is sent in every STATE message.
const Version = "1.0"

// Message types sent by the server.
const (
	TypeState = "STATE"
	TypeAck   = "ACK"
	TypeError = "ERROR"
)

// Command is a client request. Which fields are set depends on Type; the
// embedded JSON schema lists the required ones.
type Command struct {
	Type     string             `json:"type"`
	ID       string             `json:"id,omitempty"`
	SpriteID string             `json:"spriteId,omitempty"`
	BlockID  string             `json:"blockId,omitempty"`
	ParentID string             `json:"parentId,omitempty"`
	Image    string             `json:"image,omitempty"`
	Key      string             `json:"key,omitempty"`
	Block    *blockstage.Block  `json:"block,omitempty"`
	Params   []blockstage.Param `json:"params,omitempty"`
	IsElse   bool               `json:"isElse,omitempty"`
	X        float64            `json:"x,omitempty"`
	Y        float64            `json:"y,omitempty"`
	Steps    float64            `json:"steps,omitempty"`
}

// Reply answers one Command. ID echoes the command's ID.
type Reply struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// StateMsg pushes the stage state to clients.
type StateMsg struct {
	Type            string                    `json:"type"`
	ProtocolVersion string                    `json:"protocol_version"`
	Revision        uint64                    `json:"revision"`
	State           blockstage.StageSnapshot `json:"state"`
}

//go:embed command.schema.json
var commandSchemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func commandSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("command.schema.json", strings.NewReader(commandSchemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("command.schema.json")
	})
	return schema, schemaErr
}

// DecodeCommand validates msg against the command schema and decodes it.
func DecodeCommand(msg []byte) (Command, error) {
	var cmd Command
	sch, err := commandSchema()
	if err != nil {
		return cmd, fmt.Errorf("command schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(msg))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return cmd, fmt.Errorf("decode command: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return cmd, fmt.Errorf("invalid command: %w", err)
	}
	if err := json.Unmarshal(msg, &cmd); err != nil {
		return cmd, fmt.Errorf("decode command: %w", err)
	}
	return cmd, nil
}
