package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Frames are written from many goroutines at once while the client drains
// slowly, so the connection's write buffer stays full and writes overlap in
// time. Unserialized writes panic inside gorilla/websocket and take the whole
// process down with them.
func TestConsoleConnSerializesConcurrentWrites(t *testing.T) {
	const (
		writers         = 16
		framesPerWriter = 10
	)
	payload := strings.Repeat("x", 64*1024)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ws := &consoleConn{conn: conn}
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < framesPerWriter; j++ {
					_ = ws.write(ConsoleMessage{Type: "log", Content: payload})
				}
			}()
		}
		wg.Wait()
		_ = ws.write(ConsoleMessage{Type: "response", Content: "done"})
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	frames := 0
	for {
		var msg ConsoleMessage
		require.NoError(t, client.ReadJSON(&msg))
		frames++
		if msg.Type == "response" {
			break
		}
		// Slow consumer: keeps the server-side write buffer saturated
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, writers*framesPerWriter+1, frames)
}

func TestConsoleCommandExchange(t *testing.T) {
	router, token := newTestServer(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/servers/daily/console"
	header := http.Header{"Authorization": {"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(ConsoleMessage{
		Type:         "command",
		Content:      "list",
		RconPort:     25575,
		RconPassword: "secret",
	}))

	// The stub daemon has no containers, so the command is refused cleanly
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg ConsoleMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Content, "not running")
}
