package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/natn4y/comment-system-backend/internal/model"
	"github.com/natn4y/comment-system-backend/internal/model/dto"
	"github.com/natn4y/comment-system-backend/internal/pkg/ws"
	"github.com/natn4y/comment-system-backend/internal/repository"
	"github.com/natn4y/comment-system-backend/internal/service"
	"github.com/natn4y/comment-system-backend/internal/testutil"
)

type wsServer struct {
	URL string
	Hub *ws.Hub
	DB  *gorm.DB
}

func setupWebSocketServer(t *testing.T) *wsServer {
	t.Helper()

	db := testutil.SetupTestDB(t)
	hub := ws.NewHub()
	cfg := testConfig()
	commentService := service.NewCommentService(repository.NewCommentRepository(db), hub, cfg)

	router := gin.New()
	router.GET("/ws", NewWebSocketHandler(hub, commentService, nil, cfg).Handle)
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		hub.Close()
		server.Close()
		testutil.CleanupTestDB(t, db)
	})

	return &wsServer{
		URL: "ws" + strings.TrimPrefix(server.URL, "http") + "/ws",
		Hub: hub,
		DB:  db,
	}
}

// connect 建立 n 个连接并等待全部注册到 hub
func (s *wsServer) connect(t *testing.T, n int) []*websocket.Conn {
	t.Helper()

	conns := make([]*websocket.Conn, 0, n)
	for i := 0; i < n; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(s.URL, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		conns = append(conns, conn)
	}

	require.Eventually(t, func() bool {
		return s.Hub.ConnectionCount() == n
	}, 2*time.Second, 10*time.Millisecond)
	return conns
}

func send(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": msgType, "data": data}))
}

func readEvent(t *testing.T, conn *websocket.Conn) inboundMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var msg inboundMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func assertNoEvent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))

	_, data, err := conn.ReadMessage()
	assert.Error(t, err, "unexpected event: %s", data)
}

func TestWebSocket_CreateSeenByOtherClient(t *testing.T) {
	server := setupWebSocketServer(t)
	conns := server.connect(t, 2)
	alice, bob := conns[0], conns[1]

	send(t, alice, service.OpCreate, map[string]interface{}{"nickname": "alice", "text": "hello"})

	event := readEvent(t, bob)
	assert.Equal(t, ws.TypeCommentCreated, event.Type)

	var comment model.Comment
	require.NoError(t, json.Unmarshal(event.Data, &comment))
	assert.NotZero(t, comment.ID)
	assert.Equal(t, "alice", comment.Nickname)
	assert.Equal(t, "hello", comment.Text)
	assert.Equal(t, 0, comment.Likes)
	assert.False(t, comment.Edited)

	// 发起方同样收到广播
	own := readEvent(t, alice)
	assert.Equal(t, ws.TypeCommentCreated, own.Type)
}

func TestWebSocket_EditAndToggleLike(t *testing.T) {
	server := setupWebSocketServer(t)
	existing := testutil.TestComment(t, server.DB)
	conns := server.connect(t, 2)

	send(t, conns[0], service.OpEdit, map[string]interface{}{"id": existing.ID, "nickname": "alice", "text": "changed"})
	event := readEvent(t, conns[1])
	require.Equal(t, ws.TypeCommentUpdated, event.Type)

	var comment model.Comment
	require.NoError(t, json.Unmarshal(event.Data, &comment))
	assert.Equal(t, "changed", comment.Text)
	assert.True(t, comment.Edited)

	send(t, conns[0], service.OpToggleLike, map[string]interface{}{"id": existing.ID})
	event = readEvent(t, conns[1])
	require.Equal(t, ws.TypeLikeChanged, event.Type)

	var liked dto.LikeChanged
	require.NoError(t, json.Unmarshal(event.Data, &liked))
	assert.Equal(t, dto.LikeChanged{ID: existing.ID, Likes: 1}, liked)
}

func TestWebSocket_DeleteCascade(t *testing.T) {
	server := setupWebSocketServer(t)
	parent := testutil.TestComment(t, server.DB)
	child := testutil.TestReply(t, server.DB, parent.ID)
	testutil.TestReply(t, server.DB, child.ID)
	conns := server.connect(t, 2)

	send(t, conns[0], service.OpDelete, map[string]interface{}{"id": parent.ID})

	event := readEvent(t, conns[1])
	require.Equal(t, ws.TypeCommentDeleted, event.Type)

	var deleted dto.CommentDeleted
	require.NoError(t, json.Unmarshal(event.Data, &deleted))
	assert.Equal(t, parent.ID, deleted.ID)

	// 只广播根 ID 一次
	assertNoEvent(t, conns[1])

	var count int64
	require.NoError(t, server.DB.Model(&model.Comment{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestWebSocket_DeleteMissingIsSilent(t *testing.T) {
	server := setupWebSocketServer(t)
	conns := server.connect(t, 2)

	send(t, conns[0], service.OpDelete, map[string]interface{}{"id": 404})

	assertNoEvent(t, conns[0])
	assertNoEvent(t, conns[1])
}

func TestWebSocket_ErrorRepliesOnlyToRequester(t *testing.T) {
	tests := []struct {
		name          string
		payload       string
		wantOperation string
		wantError     string
	}{
		{
			name:          "validation",
			payload:       `{"type":"create_comment","data":{"nickname":"alice","text":"  "}}`,
			wantOperation: service.OpCreate,
			wantError:     "text is required",
		},
		{
			name:          "missing data",
			payload:       `{"type":"create_comment"}`,
			wantOperation: service.OpCreate,
			wantError:     "nickname is required",
		},
		{
			name:          "not found",
			payload:       `{"type":"toggle_like","data":{"id":999}}`,
			wantOperation: service.OpToggleLike,
			wantError:     "comment not found",
		},
		{
			name:          "bad payload",
			payload:       `{"type":"edit_comment","data":"nope"}`,
			wantOperation: service.OpEdit,
			wantError:     "invalid payload",
		},
		{
			name:          "unknown type",
			payload:       `{"type":"shout","data":{}}`,
			wantOperation: "shout",
			wantError:     "unknown message type",
		},
		{
			name:          "malformed json",
			payload:       `{"type":`,
			wantOperation: "",
			wantError:     "malformed message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := setupWebSocketServer(t)
			conns := server.connect(t, 2)

			require.NoError(t, conns[0].WriteMessage(websocket.TextMessage, []byte(tt.payload)))

			event := readEvent(t, conns[0])
			require.Equal(t, ws.TypeError, event.Type)

			var opErr dto.OperationError
			require.NoError(t, json.Unmarshal(event.Data, &opErr))
			assert.Equal(t, tt.wantOperation, opErr.Operation)
			assert.Contains(t, opErr.Error, tt.wantError)

			assertNoEvent(t, conns[1])
		})
	}
}

func TestWebSocket_DeleteStorageFailureBroadcastsError(t *testing.T) {
	server := setupWebSocketServer(t)
	existing := testutil.TestComment(t, server.DB)
	conns := server.connect(t, 2)

	sqlDB, err := server.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	send(t, conns[0], service.OpDelete, map[string]interface{}{"id": existing.ID})

	event := readEvent(t, conns[1])
	require.Equal(t, ws.TypeError, event.Type)

	var opErr dto.OperationError
	require.NoError(t, json.Unmarshal(event.Data, &opErr))
	assert.Equal(t, dto.OperationError{Operation: service.OpDelete, Error: "failed to delete comment"}, opErr)
}

func TestWebSocket_SessionSurvivesErrors(t *testing.T) {
	server := setupWebSocketServer(t)
	conns := server.connect(t, 1)

	require.NoError(t, conns[0].WriteMessage(websocket.TextMessage, []byte("garbage")))
	assert.Equal(t, ws.TypeError, readEvent(t, conns[0]).Type)

	send(t, conns[0], service.OpCreate, map[string]interface{}{"nickname": "alice", "text": "still here"})
	assert.Equal(t, ws.TypeCommentCreated, readEvent(t, conns[0]).Type)
}

func TestWebSocket_DisconnectUnregisters(t *testing.T) {
	server := setupWebSocketServer(t)
	conns := server.connect(t, 2)

	require.NoError(t, conns[0].Close())

	require.Eventually(t, func() bool {
		return server.Hub.ConnectionCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCheckOrigin(t *testing.T) {
	request := func(origin string) *http.Request {
		r := httptest.NewRequest("GET", "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	restricted := checkOrigin([]string{"http://localhost:3000"})
	assert.True(t, restricted(request("http://localhost:3000")))
	assert.True(t, restricted(request("")))
	assert.False(t, restricted(request("http://evil.com")))

	assert.True(t, checkOrigin([]string{"*"})(request("http://evil.com")))
	assert.True(t, checkOrigin(nil)(request("http://evil.com")))
}
