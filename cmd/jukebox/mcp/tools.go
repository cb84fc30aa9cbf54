package mcpcmder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/jukebox/pkg/protocol"
)

// Conn is a daemon connection. *client.Client and *client.Redialer implement it.
type Conn interface {
	Do(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
	DoRaw(ctx context.Context, payload []byte) (*protocol.Response, error)
}

var defaultSearchTags = []string{"artist", "album", "tracktitle"}

type requestInput struct {
	Request map[string]any `json:"request" jsonschema:"a jukebox request object with a kind key, for example {\"kind\":\"setvol\",\"volume\":40}"`
}

type searchInput struct {
	Filter string   `json:"filter" jsonschema:"filter expression such as artist==\"^Queen$\" & date==197"`
	Tags   []string `json:"tags,omitempty" jsonschema:"tags to return for each song (default artist, album, tracktitle)"`
}

type enqueueInput struct {
	Filter string `json:"filter" jsonschema:"filter expression selecting the songs to add"`
	Play   bool   `json:"play,omitempty" jsonschema:"start playing when nothing is playing"`
}

// NewServer builds an MCP server whose tools forward to conn.
func NewServer(conn Conn, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "jukebox", Version: version}, nil)
	t := &tools{conn: conn}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "jukebox_request",
		Description: "Send one raw request to the jukebox daemon and return its JSON response.",
	}, t.request)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "jukebox_status",
		Description: "Return the full player state: playback state, volume, speed, mode and the current song.",
	}, t.status)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "jukebox_search",
		Description: "Find songs in the library matching a filter expression and return their tags.",
	}, t.search)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "jukebox_enqueue",
		Description: "Append the songs matching a filter expression to the play queue.",
	}, t.enqueue)

	return server
}

type tools struct {
	conn Conn
}

func (t *tools) request(ctx context.Context, _ *mcp.CallToolRequest, in requestInput) (*mcp.CallToolResult, any, error) {
	payload, err := json.Marshal(in.Request)
	if err != nil {
		return nil, nil, err
	}
	resp, err := t.conn.DoRaw(ctx, payload)
	if err != nil {
		return nil, nil, err
	}
	return result(resp)
}

func (t *tools) status(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	// The connection's state baseline would otherwise hide unchanged items.
	if _, err := t.conn.Do(ctx, &protocol.Request{Kind: protocol.KindReset}); err != nil {
		return nil, nil, err
	}
	resp, err := t.conn.Do(ctx, &protocol.Request{Kind: protocol.KindState})
	if err != nil {
		return nil, nil, err
	}
	return result(resp)
}

func (t *tools) selectIDs(ctx context.Context, filter string) ([]uint32, *protocol.Response, error) {
	resp, err := t.conn.Do(ctx, &protocol.Request{Kind: protocol.KindSelect, Filter: filter})
	if err != nil || !resp.IsOK() {
		return nil, resp, err
	}

	// Items decode loosely; round-trip through JSON to get typed ids.
	raw, err := json.Marshal(resp.Items["ids"])
	if err != nil {
		return nil, nil, err
	}
	var ids []uint32
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, nil, fmt.Errorf("unexpected select response: %w", err)
	}
	return ids, resp, nil
}

func (t *tools) search(ctx context.Context, _ *mcp.CallToolRequest, in searchInput) (*mcp.CallToolResult, any, error) {
	ids, resp, err := t.selectIDs(ctx, in.Filter)
	if err != nil {
		return nil, nil, err
	}
	if !resp.IsOK() || len(ids) == 0 {
		return result(resp)
	}

	tags := in.Tags
	if len(tags) == 0 {
		tags = defaultSearchTags
	}
	resp, err = t.conn.Do(ctx, &protocol.Request{Kind: protocol.KindMetadata, IDs: ids, Tags: tags})
	if err != nil {
		return nil, nil, err
	}
	if resp.IsOK() {
		resp.With("ids", ids)
	}
	return result(resp)
}

func (t *tools) enqueue(ctx context.Context, _ *mcp.CallToolRequest, in enqueueInput) (*mcp.CallToolResult, any, error) {
	ids, resp, err := t.selectIDs(ctx, in.Filter)
	if err != nil {
		return nil, nil, err
	}
	if !resp.IsOK() {
		return result(resp)
	}
	if len(ids) == 0 {
		return result(protocol.OK().With("added", 0))
	}

	resp, err = t.conn.Do(ctx, &protocol.Request{Kind: protocol.KindAdd, IDs: ids})
	if err != nil {
		return nil, nil, err
	}
	if !resp.IsOK() {
		return result(resp)
	}

	if in.Play {
		cur, err := t.conn.Do(ctx, &protocol.Request{Kind: protocol.KindCurrent})
		if err != nil {
			return nil, nil, err
		}
		if cur.IsOK() && cur.Items["current"] == nil {
			if _, err := t.conn.Do(ctx, &protocol.Request{Kind: protocol.KindNext}); err != nil {
				return nil, nil, err
			}
		}
	}
	return result(protocol.OK().With("added", len(ids)))
}

// result wraps a daemon response as tool output; err responses become tool
// errors rather than protocol errors.
func result(resp *protocol.Response) (*mcp.CallToolResult, any, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		IsError: !resp.IsOK(),
	}, nil, nil
}
