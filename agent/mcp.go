package agent

import (
	"context"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"market-agent-go/infrastructure/logger"
)

// MCPServer 把 Toolset、资源与提示注册到 MCP 协议层。
type MCPServer struct {
	*server.MCPServer
	tools *Toolset
	log   *logger.Logger
}

func NewMCPServer(name, version string, tools *Toolset, log *logger.Logger) *MCPServer {
	if log == nil {
		log = logger.NewNop()
	}
	s := &MCPServer{
		MCPServer: server.NewMCPServer(name, version,
			server.WithToolCapabilities(true),
			server.WithResourceCapabilities(false, true),
			server.WithPromptCapabilities(true),
			server.WithRecovery(),
		),
		tools: tools,
		log:   log,
	}
	s.RefreshTools()
	for _, r := range Resources() {
		s.addResource(r)
	}
	for _, p := range Prompts() {
		s.addPrompt(p)
	}
	return s
}

// RefreshTools 重新注册全部工具（默认参数变化后调用）。
func (s *MCPServer) RefreshTools() {
	entries := make([]server.ServerTool, 0)
	for _, spec := range s.tools.Specs() {
		name := spec.Name
		entries = append(entries, server.ServerTool{
			Tool: toMCPTool(spec),
			Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				res, err := s.tools.Call(ctx, name, req.GetArguments())
				body, failed := Encode(res, err)
				if failed {
					return mcp.NewToolResultError(string(body)), nil
				}
				return mcp.NewToolResultText(string(body)), nil
			},
		})
	}
	s.SetTools(entries...)
}

func toMCPTool(spec ToolSpec) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(spec.Description)}
	for _, p := range spec.Params {
		var props []mcp.PropertyOption
		if p.Required {
			props = append(props, mcp.Required())
		}
		if p.Description != "" {
			props = append(props, mcp.Description(p.Description))
		}
		switch p.Type {
		case TypeString:
			if d, ok := p.Default.(string); ok {
				props = append(props, mcp.DefaultString(d))
			}
			if len(p.Enum) > 0 {
				props = append(props, mcp.Enum(p.Enum...))
			}
			opts = append(opts, mcp.WithString(p.Name, props...))
		case TypeNumber, TypeInteger:
			switch d := p.Default.(type) {
			case float64:
				props = append(props, mcp.DefaultNumber(d))
			case int:
				props = append(props, mcp.DefaultNumber(float64(d)))
			}
			if p.Min != nil {
				props = append(props, mcp.Min(*p.Min))
			}
			if p.Max != nil {
				props = append(props, mcp.Max(*p.Max))
			}
			opts = append(opts, mcp.WithNumber(p.Name, props...))
		case TypeBoolean:
			if d, ok := p.Default.(bool); ok {
				props = append(props, mcp.DefaultBool(d))
			}
			opts = append(opts, mcp.WithBoolean(p.Name, props...))
		}
	}
	return mcp.NewTool(spec.Name, opts...)
}

func (s *MCPServer) addResource(r Resource) {
	uri := r.URI
	s.AddResource(
		mcp.NewResource(r.URI, r.Name,
			mcp.WithResourceDescription(r.Description),
			mcp.WithMIMEType(r.MIMEType),
		),
		func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			res, text, err := ReadResource(uri)
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{URI: res.URI, MIMEType: res.MIMEType, Text: text},
			}, nil
		},
	)
}

func (s *MCPServer) addPrompt(p Prompt) {
	opts := []mcp.PromptOption{mcp.WithPromptDescription(p.Description)}
	for _, a := range p.Args {
		argOpts := []mcp.ArgumentOption{mcp.ArgumentDescription(a.Description)}
		if a.Required {
			argOpts = append(argOpts, mcp.RequiredArgument())
		}
		opts = append(opts, mcp.WithArgument(a.Name, argOpts...))
	}
	name := p.Name
	s.AddPrompt(mcp.NewPrompt(p.Name, opts...), func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		prompt, text, err := RenderPrompt(name, req.Params.Arguments)
		if err != nil {
			return nil, err
		}
		return mcp.NewGetPromptResult(prompt.Description, []mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
		}), nil
	})
}

// ServeStdio 在 stdin/stdout 上提供 MCP 服务，直到 ctx 结束或输入关闭。日志必须走 stderr。
func (s *MCPServer) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.MCPServer)
	stdio.SetErrorLogger(zap.NewStdLog(s.log.Logger))
	s.log.Info("mcp stdio server started", zap.Int("tools", len(s.tools.Specs())))
	return stdio.Listen(ctx, in, out)
}
