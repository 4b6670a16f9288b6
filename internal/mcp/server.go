package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

type ResolveFunc func(ctx context.Context, input ResolveInput) (*ResolveOutput, error)

type SurveyFunc func(ctx context.Context, input SurveyInput) (*SurveyOutput, error)

// Tools holds the operations exposed over MCP. Nil entries are not
// registered.
type Tools struct {
	Resolve ResolveFunc
	Survey  SurveyFunc
}

const (
	resolveToolName = "resolve_ip"
	surveyToolName  = "test_servers"
)

func NewServer(tools Tools, version string) *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "ipwatch",
		Version: version,
	}, nil)

	if tools.Resolve != nil {
		mcpsdk.AddTool(server, &mcpsdk.Tool{
			Name:        resolveToolName,
			Description: "Resolve the current external IP address by asking randomly chosen echo servers",
		}, resolveHandler(tools.Resolve))
	}
	if tools.Survey != nil {
		mcpsdk.AddTool(server, &mcpsdk.Tool{
			Name:        surveyToolName,
			Description: "Query every known echo server once and report how many agree on each address",
		}, surveyHandler(tools.Survey))
	}
	return server
}

// RunServer serves tools over stdio until ctx is done or the client hangs up.
func RunServer(ctx context.Context, tools Tools, version string) error {
	if err := NewServer(tools, version).Run(ctx, &mcpsdk.StdioTransport{}); err != nil {
		log.Error().Err(err).Msg("MCP server failed")
		return err
	}
	return nil
}

func textResult(report string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: report},
		},
	}
}

func resolveHandler(fn ResolveFunc) func(context.Context, *mcpsdk.CallToolRequest, ResolveInput) (*mcpsdk.CallToolResult, ResolveOutput, error) {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input ResolveInput) (*mcpsdk.CallToolResult, ResolveOutput, error) {
		out, err := fn(ctx, input)
		if err != nil {
			return nil, ResolveOutput{}, err
		}
		return textResult(out.Report), *out, nil
	}
}

func surveyHandler(fn SurveyFunc) func(context.Context, *mcpsdk.CallToolRequest, SurveyInput) (*mcpsdk.CallToolResult, SurveyOutput, error) {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input SurveyInput) (*mcpsdk.CallToolResult, SurveyOutput, error) {
		out, err := fn(ctx, input)
		if err != nil {
			return nil, SurveyOutput{}, err
		}
		return textResult(out.Report), *out, nil
	}
}
