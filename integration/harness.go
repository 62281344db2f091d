package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	apirest "github.com/mireska/ashfall/server/api/rest"
	apows "github.com/mireska/ashfall/server/api/ws"
	"github.com/mireska/ashfall/server/audit"
	"github.com/mireska/ashfall/server/cache"
	"github.com/mireska/ashfall/server/config"
	"github.com/mireska/ashfall/server/game/character"
	"github.com/mireska/ashfall/server/game/feed"
	"github.com/mireska/ashfall/server/game/persist"
	"github.com/mireska/ashfall/server/game/player"
	"github.com/mireska/ashfall/server/game/world"
	mw "github.com/mireska/ashfall/server/middleware"
	"github.com/mireska/ashfall/server/resource"
	"github.com/mireska/ashfall/server/testutil"
)

// TestServer wraps a real HTTP server with every game subsystem wired
// together the way main.go does it.
type TestServer struct {
	DB     *gorm.DB
	Cache  cache.Cache
	SM     *player.SessionManager
	ZM     *world.Manager
	Defs   *resource.Loader
	Feed   *feed.Service
	Server *httptest.Server
	URL    string // http://127.0.0.1:<port>
	WSURL  string // ws://127.0.0.1:<port>/ws
	Sec    config.SecurityConfig

	auditSvc *audit.Service
}

// NewTestServer creates a fully wired server for integration testing. The
// real data files under ../data back the resource loader, so these tests
// also validate the shipped defs.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	logger := zap.NewNop()

	sec := config.SecurityConfig{
		JWTSecret:      "integration-test-secret",
		JWTTTLH:        72 * time.Hour,
		RateLimitRPS:   1000,
		RateLimitBurst: 2000,
		AllowedOrigins: []string{}, // allow all origins
	}
	game := config.GameConfig{
		ZoneTickMs:        20,
		StartZone:         "coast",
		InteractCheckDist: 10,
		InteractCheckHz:   10,
		// Long drain interval so vitals stay put unless a test changes them.
		VitalsDrainS:      3600,
		HungerDrain:       1,
		ThirstDrain:       1.5,
		StarvationDamage:  2,
		InventoryCapacity: 20,
		WeightCapacity:    80,
		PickupLifetimeS:   300,
		RespawnDelayS:     1,
	}

	defs := resource.NewLoader("../data")
	require.NoError(t, defs.Load(), "data files must load")

	sm := player.NewSessionManager(logger)
	zm := world.NewManager(game, defs, logger)

	killFeed := feed.New(c, logger)
	zm.OnZoneCreate(func(z *world.Zone) {
		zoneID := z.ID()
		z.OnDeath(func(victim *character.Character, instigator int64) {
			killFeed.Record(feed.Entry{
				VictimID:   victim.ID(),
				VictimName: victim.Name(),
				KillerID:   instigator,
				ZoneID:     zoneID,
			})
		})
	})

	auditSvc := audit.New(db, logger)
	persistSvc := persist.New(db, defs, game, logger)

	wsRouter := apows.NewRouter(logger)
	gh := apows.NewGameHandlers(zm, sm, persistSvc, auditSvc, c, game, logger)
	gh.RegisterHandlers(wsRouter)

	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(sec.RateLimitRPS), sec.RateLimitBurst))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	authH := apirest.NewAuthHandler(db, c, sec)
	charH := apirest.NewCharacterHandler(db, defs, game)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(sec, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(sec, c), authH.Refresh)

		charsG := api.Group("/characters")
		charsG.Use(mw.Auth(sec, c))
		charsG.GET("", charH.List)
		charsG.POST("", charH.Create)
		charsG.DELETE("/:id", charH.Delete)
	}

	wsH := apows.NewHandler(c, sec, sm, gh, wsRouter, logger)
	r.GET("/ws", wsH.ServeWS)

	server := httptest.NewServer(r)
	url := server.URL
	wsURL := "ws" + url[len("http"):] + "/ws"

	return &TestServer{
		DB:       db,
		Cache:    c,
		SM:       sm,
		ZM:       zm,
		Defs:     defs,
		Feed:     killFeed,
		Server:   server,
		URL:      url,
		WSURL:    wsURL,
		Sec:      sec,
		auditSvc: auditSvc,
	}
}

// Close shuts down the test server and all game systems.
func (ts *TestServer) Close() {
	ts.ZM.StopAll()
	ts.Server.Close()
	ts.auditSvc.Stop(nil)
}

// --- HTTP helpers ---

// PostJSON sends a POST request with JSON body and optional Bearer token.
func (ts *TestServer) PostJSON(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest("POST", ts.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// Get sends a GET request with optional Bearer token.
func (ts *TestServer) Get(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest("GET", ts.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// Delete sends a DELETE request with JSON body and optional Bearer token.
func (ts *TestServer) Delete(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequest("DELETE", ts.URL+path, bodyReader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// --- Auth helpers ---

// Login logs in (auto-registers on first call) and returns the token and account ID.
func (ts *TestServer) Login(t *testing.T, username, password string) (token string, accountID int64) {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result map[string]interface{}
	ReadJSON(t, resp, &result)
	token = result["token"].(string)
	accountID = int64(result["account_id"].(float64))
	return
}

// CreateCharacter creates a character and returns its ID.
func (ts *TestServer) CreateCharacter(t *testing.T, token, name string) int64 {
	t.Helper()
	resp := ts.PostJSON(t, "/api/characters", map[string]interface{}{
		"name": name,
	}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var result map[string]interface{}
	ReadJSON(t, resp, &result)
	return int64(result["id"].(float64))
}

// --- WebSocket client ---

// WSClient wraps a gorilla/websocket connection for integration testing.
// A background readLoop feeds a channel so Recv can time out without
// touching the connection's read deadline.
type WSClient struct {
	Conn   *websocket.Conn
	t      *testing.T
	seq    uint64
	readCh chan readResult
}

type readResult struct {
	data []byte
	err  error
}

// ConnectWS dials the test server's WS endpoint with the given JWT token.
func (ts *TestServer) ConnectWS(t *testing.T, token string) *WSClient {
	t.Helper()
	url := ts.WSURL + "?token=" + token
	dialer := websocket.Dialer{}
	conn, resp, err := dialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err, "WS dial failed")
	wc := &WSClient{Conn: conn, t: t, readCh: make(chan readResult, 256)}
	go wc.readLoop()
	return wc
}

func (wc *WSClient) readLoop() {
	for {
		_, data, err := wc.Conn.ReadMessage()
		wc.readCh <- readResult{data, err}
		if err != nil {
			return
		}
	}
}

// Send writes a JSON message packet to the WebSocket.
func (wc *WSClient) Send(msgType string, payload interface{}) {
	wc.t.Helper()
	seq := atomic.AddUint64(&wc.seq, 1)
	payloadJSON, err := json.Marshal(payload)
	require.NoError(wc.t, err)
	pkt := map[string]interface{}{
		"seq":     seq,
		"type":    msgType,
		"payload": json.RawMessage(payloadJSON),
	}
	data, err := json.Marshal(pkt)
	require.NoError(wc.t, err)
	require.NoError(wc.t, wc.Conn.WriteMessage(websocket.TextMessage, data))
}

// RecvAny reads one message with a timeout, returning an error instead of
// failing the test.
func (wc *WSClient) RecvAny(timeout time.Duration) (map[string]interface{}, error) {
	select {
	case res := <-wc.readCh:
		if res.err != nil {
			return nil, res.err
		}
		var pkt map[string]interface{}
		if err := json.Unmarshal(res.data, &pkt); err != nil {
			return nil, err
		}
		return pkt, nil
	case <-time.After(timeout):
		return nil, &timeoutError{}
	}
}

type timeoutError struct{}

func (e *timeoutError) Error() string   { return "read timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }

// RecvType reads messages until one with the given type is found (within timeout).
func (wc *WSClient) RecvType(msgType string, timeout time.Duration) map[string]interface{} {
	wc.t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		pkt, err := wc.RecvAny(time.Until(deadline))
		if err != nil {
			wc.t.Fatalf("WS recv failed while waiting for %q: %v", msgType, err)
		}
		if pkt["type"] == msgType {
			return pkt
		}
	}
	wc.t.Fatalf("timed out waiting for message type %q", msgType)
	return nil
}

// Close closes the WebSocket connection.
func (wc *WSClient) Close() {
	_ = wc.Conn.Close()
}

// PayloadMap extracts the payload from a received WS packet as a map.
func PayloadMap(t *testing.T, pkt map[string]interface{}) map[string]interface{} {
	t.Helper()
	p := pkt["payload"]
	if p == nil {
		return map[string]interface{}{}
	}
	m, ok := p.(map[string]interface{})
	require.True(t, ok, "payload is not an object: %v", p)
	return m
}

// --- Composite helper ---

// LoginAndEnter performs login, character creation, WS connect and
// enter_world. Returns token, charID and the connected client.
func (ts *TestServer) LoginAndEnter(t *testing.T, username, charName string) (string, int64, *WSClient) {
	t.Helper()
	token, _ := ts.Login(t, username, username+"pass")
	charID := ts.CreateCharacter(t, token, charName)
	ws := ts.ConnectWS(t, token)
	ws.Send("enter_world", map[string]interface{}{"char_id": charID})
	pkt := ws.RecvType("world_entered", 5*time.Second)
	require.NotNil(t, pkt)
	return token, charID, ws
}

// UniqueID returns a short unique string suitable for usernames and
// character names.
var testCounter uint64

func UniqueID(prefix string) string {
	n := atomic.AddUint64(&testCounter, 1)
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano()%100000, n)
}
