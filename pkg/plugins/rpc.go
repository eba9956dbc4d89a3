package plugins

import (
	"encoding/json"
	"fmt"
	"net/rpc"

	goplugin "github.com/hashicorp/go-plugin"
)

// pluginSetName is the key a provider is registered and dispensed under.
const pluginSetName = "toolkit"

// Handshake guards against launching arbitrary executables as plugins.
var Handshake = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "ALITA_PLUGIN",
	MagicCookieValue: "alita_toolkit_v1",
}

// ToolkitPlugin is the go-plugin glue for ToolkitProvider. Payloads cross the
// net/rpc boundary as JSON bytes so providers can use map[string]any freely.
type ToolkitPlugin struct {
	Impl ToolkitProvider
}

func (p *ToolkitPlugin) Server(*goplugin.MuxBroker) (any, error) {
	return &providerServer{impl: p.Impl}, nil
}

func (p *ToolkitPlugin) Client(_ *goplugin.MuxBroker, c *rpc.Client) (any, error) {
	return &providerClient{client: c}, nil
}

type ListToolsReply struct {
	Specs []byte
}

type CallArgs struct {
	Payload []byte
}

type CallReply struct {
	Payload []byte
}

// providerServer runs inside the plugin process.
type providerServer struct {
	impl ToolkitProvider
}

func (s *providerServer) ListTools(_ struct{}, reply *ListToolsReply) error {
	specs, err := s.impl.ListTools()
	if err != nil {
		return err
	}
	data, err := json.Marshal(specs)
	if err != nil {
		return fmt.Errorf("failed to encode tool specs: %w", err)
	}
	reply.Specs = data
	return nil
}

func (s *providerServer) Call(args CallArgs, reply *CallReply) error {
	var req CallRequest
	if err := json.Unmarshal(args.Payload, &req); err != nil {
		return fmt.Errorf("failed to decode call request: %w", err)
	}

	resp, err := s.impl.Call(req)
	if err != nil {
		return err
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode call response: %w", err)
	}
	reply.Payload = data
	return nil
}

// providerClient runs inside the host and forwards calls to the plugin.
type providerClient struct {
	client *rpc.Client
}

func (c *providerClient) ListTools() ([]ToolSpec, error) {
	var reply ListToolsReply
	if err := c.client.Call("Plugin.ListTools", struct{}{}, &reply); err != nil {
		return nil, err
	}

	var specs []ToolSpec
	if err := json.Unmarshal(reply.Specs, &specs); err != nil {
		return nil, fmt.Errorf("failed to decode tool specs: %w", err)
	}
	return specs, nil
}

func (c *providerClient) Call(req CallRequest) (CallResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return CallResponse{}, fmt.Errorf("failed to encode call request: %w", err)
	}

	var reply CallReply
	if err := c.client.Call("Plugin.Call", CallArgs{Payload: payload}, &reply); err != nil {
		return CallResponse{}, err
	}

	var resp CallResponse
	if err := json.Unmarshal(reply.Payload, &resp); err != nil {
		return CallResponse{}, fmt.Errorf("failed to decode call response: %w", err)
	}
	return resp, nil
}

var _ ToolkitProvider = (*providerClient)(nil)

// Serve runs a provider as a plugin executable. Plugin authors call this from
// main and nothing else.
func Serve(impl ToolkitProvider) {
	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]goplugin.Plugin{
			pluginSetName: &ToolkitPlugin{Impl: impl},
		},
	})
}
