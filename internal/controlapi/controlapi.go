// Package controlapi is the local HTTP+WebSocket control surface (C14): the
// concrete, testable stand-in for the "narrow event sink"/"usable from a
// non-GUI harness" design notes. Grounded on the exam-monitor handler's
// gin.Context + auth-claim + pub/sub-to-client-stream shape, generalized
// from Redis pub/sub fan-out to the in-process events.Broadcaster this
// engine already has, and from SSE to a gorilla/websocket upgrade since
// spec.md names a bidirectional control channel (start/stop plus a stream).
package controlapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xkmonitor/core/internal/events"
	"github.com/xkmonitor/core/internal/logging"
	"github.com/xkmonitor/core/internal/models"
	"github.com/xkmonitor/core/internal/wishlist"
)

// upgrader matches the exam-monitor handler's permissive any-origin CORS
// stance, since this surface is local-only by design (spec.md §4.15).
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// addWishlistRequest is the validated POST /wishlist body.
type addWishlistRequest struct {
	TeachingClassID string            `json:"teaching_class_id" binding:"required"`
	CourseNumber    string            `json:"course_number"`
	CourseType      models.CourseType `json:"course_type" binding:"required"`
}

// Server wires the wishlist registry, event broadcaster, and an optional
// bearer-token gate into a gin.Engine.
type Server struct {
	wishlist    *wishlist.Registry
	broadcaster *events.Broadcaster
	authToken   string // empty disables auth
	startFn     func()
	stopFn      func()
	log         logging.Logger

	router *gin.Engine
}

// New builds a Server. startFn/stopFn drive the scheduler's lifecycle;
// authToken, if non-empty, is the HS256 signing secret: every request must
// carry "Authorization: Bearer <jwt>" with an unexpired token signed with it
// (see IssueToken).
func New(wl *wishlist.Registry, broadcaster *events.Broadcaster, authToken string, startFn, stopFn func()) *Server {
	s := &Server{
		wishlist:    wl,
		broadcaster: broadcaster,
		authToken:   authToken,
		startFn:     startFn,
		stopFn:      stopFn,
		log:         logging.New().Named("controlapi"),
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the underlying http.Handler, for use with http.Server or
// httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE"},
		AllowHeaders:    []string{"Authorization", "Content-Type"},
	}))

	if s.authToken != "" {
		r.Use(s.authMiddleware())
	}

	r.GET("/healthz", s.handleHealthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/wishlist", s.handleAddWishlist)
	r.DELETE("/wishlist/:teachingClassId", s.handleRemoveWishlist)
	r.GET("/wishlist", s.handleSnapshotWishlist)

	r.POST("/engine/start", s.handleEngineStart)
	r.POST("/engine/stop", s.handleEngineStop)

	r.GET("/events", s.handleEvents)

	return r
}

// authClaims is the control surface's bearer token, a JWT signed with the
// configured static secret rather than a bare shared string — the token
// carries its own expiry so a leaked websocket/REST credential doesn't grant
// indefinite access to a live student session (spec.md §4.15).
type authClaims struct {
	jwt.RegisteredClaims
}

// IssueToken signs a control-surface bearer token valid for ttl, for the CLI
// harness to hand to a local operator or UI shell at startup.
func (s *Server) IssueToken(ttl time.Duration) (string, error) {
	claims := authClaims{jwt.RegisteredClaims{
		Issuer:    "xkmonitor-core",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.authToken))
}

// authMiddleware requires "Authorization: Bearer <jwt>" signed with the
// configured secret and not yet expired; this surface, even though
// local-only, can trigger drops/selects against a live student session.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		raw := header[len(prefix):]

		var claims authClaims
		_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(s.authToken), nil
		})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleAddWishlist(c *gin.Context) {
	var req addWishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.wishlist.Add(models.WishlistEntry{Record: models.TeachingClassRecord{
		ID: models.CourseID{
			TeachingClassID: req.TeachingClassID,
			CourseNumber:    req.CourseNumber,
			CourseType:      req.CourseType,
		},
	}})
	c.JSON(http.StatusCreated, gin.H{"status": "added"})
}

func (s *Server) handleRemoveWishlist(c *gin.Context) {
	id := c.Param("teachingClassId")
	s.wishlist.Remove(id)
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (s *Server) handleSnapshotWishlist(c *gin.Context) {
	c.JSON(http.StatusOK, s.wishlist.Snapshot())
}

func (s *Server) handleEngineStart(c *gin.Context) {
	if s.startFn != nil {
		s.startFn()
	}
	c.JSON(http.StatusOK, gin.H{"status": "started"})
}

func (s *Server) handleEngineStop(c *gin.Context) {
	if s.stopFn != nil {
		s.stopFn()
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopping"})
}

// handleEvents upgrades to a WebSocket and streams broadcast Events to this
// connection until it disconnects; multiple subscribers are supported since
// Broadcaster fans out to every subscribed sink independently. Each
// connection buffers up to 32 events; an event arriving while that buffer is
// full is dropped for this connection.
func (s *Server) handleEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", err)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	log := s.log.Named("events").Named(connID)
	log.Info("websocket client connected")
	defer log.Info("websocket client disconnected")

	ch := make(chan events.Event, 32)
	sinkID := s.broadcaster.Subscribe(events.SinkFunc(func(e events.Event) {
		select {
		case ch <- e:
		default:
			// slow consumer: drop rather than block the broadcaster
		}
	}))
	defer s.broadcaster.Unsubscribe(sinkID)

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Drain inbound frames (pings/close) on their own goroutine so a client
	// that never writes doesn't block the outbound event loop.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case e := <-ch:
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

