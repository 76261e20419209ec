package observer

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phanxgames/blockstage"
)

func newTestServer(t *testing.T) (*Server, *blockstage.Stage, *httptest.Server) {
	t.Helper()
	st := blockstage.NewStage(blockstage.DefaultTuning(), log.New(io.Discard, "", 0))
	t.Cleanup(st.Close)
	srv := NewServer(st, log.New(io.Discard, "", 0))
	srv.PollInterval = 5 * time.Millisecond
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	return srv, st, hs
}

// inbound is any server message, decoded loosely.
type inbound struct {
	Type     string          `json:"type"`
	ID       string          `json:"id"`
	Error    string          `json:"error"`
	Data     json.RawMessage `json:"data"`
	Revision uint64          `json:"revision"`
	State    json.RawMessage `json:"state"`
}

func dial(t *testing.T, hs *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// next reads messages until one matches.
func next(t *testing.T, conn *websocket.Conn, match func(inbound) bool) inbound {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var m inbound
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(msg, &m))
		if match(m) {
			return m
		}
	}
}

func replyTo(id string) func(inbound) bool {
	return func(m inbound) bool { return m.Type != TypeState && m.ID == id }
}

func TestStateHandler(t *testing.T) {
	_, st, hs := newTestServer(t)

	resp, err := http.Get(hs.URL + "/v1/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var snap blockstage.StageSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	require.Len(t, snap.Sprites, 1)
	assert.Equal(t, st.Store.ActiveSprite(), snap.ActiveSprite)
}

func TestRemoteClientsRefused(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, path := range []string{"/v1/state", "/v1/ws"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "8.8.8.8:1234"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}

	srv.AllowRemote = true
	req := httptest.NewRequest(http.MethodGet, "/v1/state", nil)
	req.RemoteAddr = "8.8.8.8:1234"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebsocketAddBlock(t *testing.T) {
	_, st, hs := newTestServer(t)
	conn := dial(t, hs)

	first := next(t, conn, func(m inbound) bool { return m.Type == TypeState })

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(
		`{"type":"ADD_BLOCK","id":"c1","spriteId":"sprite-1","block":{"type":"repeat","params":[2],"children":[{"type":"move","params":[10]}]}}`)))

	ack := next(t, conn, replyTo("c1"))
	require.Equal(t, TypeAck, ack.Type, ack.Error)
	var added blockstage.Block
	require.NoError(t, json.Unmarshal(ack.Data, &added))
	assert.Equal(t, blockstage.BlockRepeat, added.Type)
	require.Len(t, added.Children, 1)
	assert.NotEmpty(t, added.Children[0].ID)

	blocks, err := st.Store.Blocks("sprite-1")
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, added.ID, blocks[0].ID)

	pushed := next(t, conn, func(m inbound) bool { return m.Type == TypeState && m.Revision > first.Revision })
	var snap blockstage.StageSnapshot
	require.NoError(t, json.Unmarshal(pushed.State, &snap))
	require.Len(t, snap.Sprites[0].Blocks, 1)
}

func TestWebsocketRejectsInvalidCommand(t *testing.T) {
	_, st, hs := newTestServer(t)
	conn := dial(t, hs)

	before := st.Store.Revision()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(
		`{"type":"ADD_BLOCK","id":"c2","spriteId":"sprite-1","block":{"type":"fly"}}`)))

	rep := next(t, conn, replyTo("c2"))
	assert.Equal(t, TypeError, rep.Type)
	assert.Contains(t, rep.Error, "invalid command")
	assert.Equal(t, before, st.Store.Revision())
}

func TestWebsocketApplyError(t *testing.T) {
	_, _, hs := newTestServer(t)
	conn := dial(t, hs)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(
		`{"type":"DELETE_SPRITE","id":"c3","spriteId":"sprite-1"}`)))

	rep := next(t, conn, replyTo("c3"))
	assert.Equal(t, TypeError, rep.Type)
	assert.Contains(t, rep.Error, blockstage.ErrLastSprite.Error())
}

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		ok   bool
	}{
		{"run all", `{"type":"RUN_ALL"}`, true},
		{"key down", `{"type":"KEY_DOWN","key":" "}`, true},
		{"update params", `{"type":"UPDATE_PARAMS","blockId":"b","params":[1,"x",null]}`, true},
		{"set else", `{"type":"SET_ELSE","blockId":"b","isElse":true}`, true},
		{"drag", `{"type":"DRAG","spriteId":"s","x":1.5,"y":-2}`, true},
		{"not json", `{`, false},
		{"missing type", `{"id":"x"}`, false},
		{"unknown type", `{"type":"JUMP"}`, false},
		{"key without key", `{"type":"KEY_UP"}`, false},
		{"add block without block", `{"type":"ADD_BLOCK","spriteId":"s"}`, false},
		{"object param", `{"type":"UPDATE_PARAMS","blockId":"b","params":[{}]}`, false},
		{"motion without steps", `{"type":"START_MOTION","spriteId":"s"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCommand([]byte(tt.msg))
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestApplyPlayback(t *testing.T) {
	srv, st, _ := newTestServer(t)
	_, err := st.Store.AddBlock("sprite-1", "", blockstage.NewBlock(blockstage.BlockMove, blockstage.Num(50)))
	require.NoError(t, err)

	data, err := srv.Apply(Command{Type: "RUN_ALL"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sprite-1"}, data)
	assert.True(t, st.Engine.State().IsPlaying)

	_, err = srv.Apply(Command{Type: "RUN_SPRITE", SpriteID: "sprite-1"})
	assert.ErrorIs(t, err, blockstage.ErrAlreadyExecuting)

	st.Update(10 * time.Millisecond)
	_, err = srv.Apply(Command{Type: "STOP_ALL"})
	require.NoError(t, err)
	assert.False(t, st.Engine.State().IsPlaying)

	_, err = srv.Apply(Command{Type: "KEY_DOWN", Key: "a"})
	require.NoError(t, err)
	assert.True(t, st.Input.IsKeyPressed("a"))
}

func TestApplyDeleteSpriteWhileRunning(t *testing.T) {
	srv, st, _ := newTestServer(t)
	two := st.Store.AddSprite(blockstage.SpriteImages[2].URL)
	_, err := st.Store.AddBlock(two.ID, "", blockstage.NewBlock(blockstage.BlockMove, blockstage.Num(50)))
	require.NoError(t, err)

	_, err = srv.Apply(Command{Type: "RUN_SPRITE", SpriteID: two.ID})
	require.NoError(t, err)
	_, err = srv.Apply(Command{Type: "DELETE_SPRITE", SpriteID: two.ID})
	assert.ErrorIs(t, err, blockstage.ErrAlreadyExecuting)

	_, err = srv.Apply(Command{Type: "STOP_ALL"})
	require.NoError(t, err)
	_, err = srv.Apply(Command{Type: "DELETE_SPRITE", SpriteID: two.ID})
	require.NoError(t, err)
	_, ok := st.Store.Sprite(two.ID)
	assert.False(t, ok)
}

func TestIsLoopbackRemote(t *testing.T) {
	assert.True(t, isLoopbackRemote("127.0.0.1:80"))
	assert.True(t, isLoopbackRemote("[::1]:80"))
	assert.False(t, isLoopbackRemote("10.0.0.1:80"))
	assert.False(t, isLoopbackRemote("not an address"))
}
