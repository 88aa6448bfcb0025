// Package plugin exposes the oracle as a hashicorp go-plugin, letting an
// external binary supply pattern extraction and similarity judgments.
package plugin

import (
	"context"
	"encoding/gob"
	"fmt"
	"net/rpc"
	"os/exec"

	hcplugin "github.com/hashicorp/go-plugin"

	"github.com/felixgeelhaar/quirk/internal/oracle"
	"github.com/felixgeelhaar/quirk/internal/store"
	"github.com/felixgeelhaar/quirk/internal/transcript"
)

// HandshakeConfig is used to handshake between host and plugin.
var HandshakeConfig = hcplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "QUIRK_PLUGIN_MAGIC_COOKIE",
	MagicCookieValue: "quirk-oracle",
}

// PluginMap is the map of plugins we can dispense.
var PluginMap = map[string]hcplugin.Plugin{
	"oracle": &OraclePlugin{},
}

func init() {
	// Tool inputs decode from JSON, so these are the only interface
	// values crossing the wire.
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// OraclePlugin is the hcplugin.Plugin implementation for the oracle
// interface over net/rpc.
type OraclePlugin struct {
	Impl oracle.Oracle
}

// Server implements hcplugin.Plugin.
func (p *OraclePlugin) Server(*hcplugin.MuxBroker) (interface{}, error) {
	return &rpcServer{impl: p.Impl}, nil
}

// Client implements hcplugin.Plugin.
func (p *OraclePlugin) Client(_ *hcplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &rpcClient{client: c}, nil
}

// ExtractArgs carries one transcript to the plugin.
type ExtractArgs struct {
	Transcript *transcript.Transcript
}

// ExtractReply carries extracted drafts back.
type ExtractReply struct {
	Drafts []store.Draft
}

// SimilarityArgs carries two observation descriptions.
type SimilarityArgs struct {
	A, B string
}

// SimilarityReply carries the judgment back.
type SimilarityReply struct {
	Similar bool
}

// StatusReply carries name and availability.
type StatusReply struct {
	Name      string
	Available bool
}

// rpcClient implements oracle.Oracle by calling the plugin process.
// net/rpc does not carry contexts, so cancellation stops at the boundary.
type rpcClient struct {
	client *rpc.Client
}

func (c *rpcClient) Name() string {
	var reply StatusReply
	if err := c.client.Call("Plugin.Status", struct{}{}, &reply); err != nil {
		return "plugin"
	}
	return "plugin-" + reply.Name
}

func (c *rpcClient) IsAvailable() bool {
	var reply StatusReply
	if err := c.client.Call("Plugin.Status", struct{}{}, &reply); err != nil {
		return false
	}
	return reply.Available
}

func (c *rpcClient) ExtractPatterns(_ context.Context, t *transcript.Transcript) ([]store.Draft, error) {
	var reply ExtractReply
	if err := c.client.Call("Plugin.ExtractPatterns", ExtractArgs{Transcript: t}, &reply); err != nil {
		return nil, fmt.Errorf("plugin extraction failed: %w", err)
	}
	return reply.Drafts, nil
}

func (c *rpcClient) CheckSimilarity(_ context.Context, a, b string) (bool, error) {
	var reply SimilarityReply
	if err := c.client.Call("Plugin.CheckSimilarity", SimilarityArgs{A: a, B: b}, &reply); err != nil {
		return false, fmt.Errorf("plugin similarity check failed: %w", err)
	}
	return reply.Similar, nil
}

// rpcServer runs inside the plugin process and calls the local
// implementation.
type rpcServer struct {
	impl oracle.Oracle
}

func (s *rpcServer) Status(_ struct{}, reply *StatusReply) error {
	reply.Name = s.impl.Name()
	reply.Available = s.impl.IsAvailable()
	return nil
}

func (s *rpcServer) ExtractPatterns(args ExtractArgs, reply *ExtractReply) error {
	drafts, err := s.impl.ExtractPatterns(context.Background(), args.Transcript)
	if err != nil {
		return err
	}
	reply.Drafts = drafts
	return nil
}

func (s *rpcServer) CheckSimilarity(args SimilarityArgs, reply *SimilarityReply) error {
	similar, err := s.impl.CheckSimilarity(context.Background(), args.A, args.B)
	if err != nil {
		return err
	}
	reply.Similar = similar
	return nil
}

// Open launches the plugin binary at path and returns its oracle. The
// returned closer kills the plugin process.
func Open(path string) (oracle.Oracle, func(), error) {
	client := hcplugin.NewClient(&hcplugin.ClientConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins:         PluginMap,
		Cmd:             exec.Command(path),
	})

	rpcConn, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("failed to start oracle plugin: %w", err)
	}

	raw, err := rpcConn.Dispense("oracle")
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("failed to dispense oracle plugin: %w", err)
	}

	o, ok := raw.(oracle.Oracle)
	if !ok {
		client.Kill()
		return nil, nil, fmt.Errorf("plugin at %s does not implement the oracle interface", path)
	}
	return o, client.Kill, nil
}

// Serve is the entry point for plugin binaries: it serves impl until the
// host disconnects.
func Serve(impl oracle.Oracle) {
	hcplugin.Serve(&hcplugin.ServeConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins: map[string]hcplugin.Plugin{
			"oracle": &OraclePlugin{Impl: impl},
		},
	})
}
