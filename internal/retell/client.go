package retell

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.retellai.com"

// Client talks to the Retell voice platform REST API.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// WebCall is the handle returned when a web call is created. The access
// token is handed to the browser client to join the call.
type WebCall struct {
	CallID      string `json:"call_id"`
	AccessToken string `json:"access_token"`
}

// Agent is the subset of a Retell agent we care about.
type Agent struct {
	AgentID        string          `json:"agent_id"`
	AgentName      string          `json:"agent_name"`
	ResponseEngine json.RawMessage `json:"response_engine,omitempty"`
	WebhookURL     string          `json:"webhook_url,omitempty"`
}

// CallDetail is the platform's record of a call, including its transcript.
type CallDetail struct {
	CallID         string          `json:"call_id"`
	AgentID        string          `json:"agent_id"`
	CallStatus     string          `json:"call_status"`
	Transcript     string          `json:"transcript,omitempty"`
	TranscriptList json.RawMessage `json:"transcript_object,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
}

type createWebCallRequest struct {
	AgentID          string            `json:"agent_id"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	DynamicVariables map[string]string `json:"retell_llm_dynamic_variables,omitempty"`
}

type createAgentRequest struct {
	AgentName      string         `json:"agent_name"`
	VoiceID        string         `json:"voice_id"`
	ResponseEngine responseEngine `json:"response_engine"`
	WebhookURL     string         `json:"webhook_url,omitempty"`
}

type responseEngine struct {
	Type               string `json:"type"`
	ConversationFlowID string `json:"conversation_flow_id"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// StartWebCall creates a web call for the given agent. Driver name and load
// number ride along as dynamic variables so the agent can greet by name, and
// metadata lets webhook events be tied back to our call record.
func (c *Client) StartWebCall(ctx context.Context, agentID, driverName, loadNumber string, metadata map[string]string) (*WebCall, error) {
	reqBody := createWebCallRequest{
		AgentID:  agentID,
		Metadata: metadata,
		DynamicVariables: map[string]string{
			"driver_name": driverName,
			"load_id":     loadNumber,
		},
	}

	var call WebCall
	if err := c.do(ctx, http.MethodPost, "/v2/create-web-call", reqBody, &call); err != nil {
		return nil, err
	}
	return &call, nil
}

func (c *Client) GetCall(ctx context.Context, callID string) (*CallDetail, error) {
	var detail CallDetail
	if err := c.do(ctx, http.MethodGet, "/v2/get-call/"+callID, nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *Client) GetAgent(ctx context.Context, agentID string) (*Agent, error) {
	var agent Agent
	if err := c.do(ctx, http.MethodGet, "/get-agent/"+agentID, nil, &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

// CreateAgent registers a conversation-flow agent on the platform.
func (c *Client) CreateAgent(ctx context.Context, agentName, voiceID, conversationFlowID, webhookURL string) (*Agent, error) {
	reqBody := createAgentRequest{
		AgentName: agentName,
		VoiceID:   voiceID,
		ResponseEngine: responseEngine{
			Type:               "conversation-flow",
			ConversationFlowID: conversationFlowID,
		},
		WebhookURL: webhookURL,
	}

	var agent Agent
	if err := c.do(ctx, http.MethodPost, "/create-agent", reqBody, &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

// GetConversationFlow fetches a conversation flow as raw JSON. The flow
// document is platform-defined and passed through untouched. Version is
// optional; empty means latest.
func (c *Client) GetConversationFlow(ctx context.Context, flowID, version string) (json.RawMessage, error) {
	path := "/get-conversation-flow/" + flowID
	if version != "" {
		path += "?version=" + version
	}
	var flow json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &flow); err != nil {
		return nil, err
	}
	return flow, nil
}

// UpdateConversationFlow patches a conversation flow with a raw JSON body.
func (c *Client) UpdateConversationFlow(ctx context.Context, flowID string, patch json.RawMessage) (json.RawMessage, error) {
	var flow json.RawMessage
	if err := c.do(ctx, http.MethodPatch, "/update-conversation-flow/"+flowID, patch, &flow); err != nil {
		return nil, err
	}
	return flow, nil
}

func (c *Client) do(ctx context.Context, method, path string, reqBody, out any) error {
	var body io.Reader
	if reqBody != nil {
		payload, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil && (errResp.Message != "" || errResp.Error != "") {
			msg := errResp.Message
			if msg == "" {
				msg = errResp.Error
			}
			return fmt.Errorf("retell api error %d: %s", resp.StatusCode, msg)
		}
		return fmt.Errorf("retell api error %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
