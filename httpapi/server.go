// Package httpapi 把工具、资源和 MCP JSON-RPC 暴露为 HTTP 接口。
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"market-agent-go/agent"
	"market-agent-go/infrastructure/logger"
	"market-agent-go/metrics"
)

// Config HTTP 接口配置。JWTSecret 为空时不做鉴权。
type Config struct {
	JWTSecret      string
	AllowedOrigins []string
}

// Server gin 路由及其依赖。
type Server struct {
	router   *gin.Engine
	tools    *agent.Toolset
	mcp      *agent.MCPServer
	log      *logger.Logger
	cfg      Config
	upgrader websocket.Upgrader
}

// New 创建 HTTP 接口。
func New(tools *agent.Toolset, mcpSrv *agent.MCPServer, cfg Config, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	// debug 模式会把路由表打印到 stdout，与 stdio 传输冲突
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log), corsMiddleware(cfg.AllowedOrigins))

	s := &Server{
		router: router,
		tools:  tools,
		mcp:    mcpSrv,
		log:    log,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}
	s.setupRoutes()
	return s
}

// Handler 返回根 http.Handler。
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := s.router.Group("/v1", jwtAuth(s.cfg.JWTSecret))
	{
		v1.GET("/tools", s.handleListTools)
		v1.POST("/tools/:name", s.handleCallTool)
		v1.GET("/resources", s.handleListResources)
		v1.GET("/resources/read", s.handleReadResource)
	}

	s.router.GET("/mcp/ws", jwtAuth(s.cfg.JWTSecret), s.handleWebSocket)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"tools":  len(s.tools.Specs()),
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type toolDescriptor struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func (s *Server) handleListTools(c *gin.Context) {
	specs := s.tools.Specs()
	out := make([]toolDescriptor, 0, len(specs))
	for _, spec := range specs {
		out = append(out, toolDescriptor{Name: spec.Name, Description: spec.Description, InputSchema: spec.JSONSchema()})
	}
	c.JSON(http.StatusOK, gin.H{"tools": out})
}

func (s *Server) handleCallTool(c *gin.Context) {
	args := map[string]interface{}{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&args); err != nil {
			f := agent.Classify(&agent.ParamError{Param: "body", Message: "request body must be a JSON object"})
			c.JSON(http.StatusBadRequest, agent.FailureResponse{Error: f})
			return
		}
	}

	res, err := s.tools.Call(c.Request.Context(), c.Param("name"), args)
	if err != nil {
		f := agent.Classify(err)
		c.JSON(statusFor(f.Kind), agent.FailureResponse{Error: f})
		return
	}
	c.JSON(http.StatusOK, res)
}

// statusFor 失败类别到 HTTP 状态码。
func statusFor(kind string) int {
	switch kind {
	case agent.KindInvalidParams, agent.KindInvalidConfiguration, agent.KindInvalidSymbol, agent.KindUnsupportedExchange:
		return http.StatusBadRequest
	case agent.KindUnknownTool:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleListResources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"resources": agent.Resources()})
}

func (s *Server) handleReadResource(c *gin.Context) {
	uri := c.Query("uri")
	if uri == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "uri query parameter is required"})
		return
	}
	res, text, err := agent.ReadResource(uri)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, agent.ErrUnknownResource) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"uri": res.URI, "mimeType": res.MIMEType, "text": text})
}

// requestLogger 访问日志，走 zap 而不是 gin 默认的 stdout。
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func corsMiddleware(allowed []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" && originAllowed(allowed, origin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
