package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/storyflowrt/engine/internal/engine"
	"github.com/storyflowrt/engine/internal/telemetry"
	"github.com/storyflowrt/engine/internal/walker"
)

func outcomeKindString(k walker.OutcomeKind) string {
	switch k {
	case walker.Emitted:
		return "emitted"
	case walker.Ended:
		return "ended"
	case walker.BadJumpOutcome:
		return "bad_jump"
	default:
		return "unknown"
	}
}

var validate = validator.New()

// Server is the reference host application: a gin.Engine plus the session
// registry and options every session's Runtime is built with.
type Server struct {
	engine    *gin.Engine
	sessions  *sessionStore
	telemetry *telemetry.Provider
	logger    *slog.Logger
	opts      []engine.Option
}

// New builds a Server. rtOpts are applied to every session's Runtime (e.g.
// WithRNGSeed for deterministic test fixtures).
func New(logger *slog.Logger, tel *telemetry.Provider, rtOpts ...engine.Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:    gin.New(),
		sessions:  newSessionStore(),
		telemetry: tel,
		logger:    logger,
		opts:      rtOpts,
	}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

// Handler exposes the underlying http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	s.engine.POST("/sessions", s.createSession)
	s.engine.POST("/sessions/:id/start", s.start)
	s.engine.POST("/sessions/:id/next", s.next)
	s.engine.GET("/sessions/:id/text", s.text)
	s.engine.GET("/sessions/:id/choices", s.choices)
	s.engine.GET("/sessions/:id/node", s.node)
}

type createSessionRequest struct {
	Project json.RawMessage `json:"project" validate:"required"`
	Flow    string          `json:"flow"`
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body: " + err.Error()})
		return
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	rt := engine.New(s.opts...)
	if err := rt.LoadFromSource(req.Project, req.Flow); err != nil {
		s.logger.Error("session load failed", "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "failed to load project: " + err.Error()})
		return
	}

	id := uuid.NewString()
	s.sessions.put(id, &session{rt: rt})
	c.JSON(http.StatusCreated, gin.H{"session_id": id})
}

type startRequest struct {
	NodeID   string `json:"node_id"`
	FlowName string `json:"flow_name"`
}

func (s *Server) start(c *gin.Context) {
	sess, err := s.sessions.get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		return
	}
	var req startRequest
	_ = c.ShouldBindJSON(&req)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.rt.Start(req.NodeID, req.FlowName); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"node_id": sess.rt.SelectedNodeID()})
}

type nextRequest struct {
	ElementID string `json:"element_id"`
}

func (s *Server) next(c *gin.Context) {
	sess, err := s.sessions.get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		return
	}
	var req nextRequest
	_ = c.ShouldBindJSON(&req)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	var out walker.Outcome
	stepErr := s.telemetry.RecordNextNode(c.Request.Context(), sess.rt.SelectedFlowID(), func() error {
		var err error
		out, err = sess.rt.NextNode(req.ElementID)
		return err
	})
	if stepErr != nil {
		s.logger.Error("next_node failed", "session", c.Param("id"), "error", stepErr)
		c.JSON(http.StatusInternalServerError, gin.H{"message": stepErr.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": outcomeKindString(out.Kind), "node_id": out.NodeID, "flow_id": out.FlowID})
}

func (s *Server) text(c *gin.Context) {
	sess, err := s.sessions.get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		return
	}
	elementID := c.Query("element_id")
	sess.mu.Lock()
	defer sess.mu.Unlock()
	text, err := sess.rt.GetParsedText(elementID, false)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}

func (s *Server) choices(c *gin.Context) {
	sess, err := s.sessions.get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		return
	}
	nodeID := c.Query("node_id")
	sess.mu.Lock()
	defer sess.mu.Unlock()
	choices, err := sess.rt.GetAvailableChoices(nodeID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"choices": choices})
}

func (s *Server) node(c *gin.Context) {
	sess, err := s.sessions.get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		return
	}
	nodeID := c.Query("node_id")
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if nodeID == "" {
		nodeID = sess.rt.SelectedNodeID()
	}
	node, err := sess.rt.GetNode(nodeID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		return
	}
	actor, _ := sess.rt.GetNodeActor(nodeID)
	metadata, _ := sess.rt.GetNodeMetadata(nodeID)
	c.JSON(http.StatusOK, gin.H{"node": node, "actor": actor, "metadata": metadata})
}
