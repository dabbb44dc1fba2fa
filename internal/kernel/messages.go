// Package kernel executes code against a Jupyter kernel through a
// kernel gateway: kernels are started and shut down over REST, and code
// runs over the websocket channels endpoint speaking the Jupyter
// messaging protocol (v5.3).
package kernel

import (
	"encoding/json"
	"fmt"
	"strings"
)

const protocolVersion = "5.3"

// Message channels and types used by the runner.
const (
	channelShell = "shell"

	msgTypeExecuteRequest = "execute_request"
	msgTypeExecuteReply   = "execute_reply"
	msgTypeStream         = "stream"
	msgTypeExecuteResult  = "execute_result"
	msgTypeDisplayData    = "display_data"
	msgTypeError          = "error"
	msgTypeStatus         = "status"
)

// header is a Jupyter message header. Date is kept as a string because
// gateways are inconsistent about its presence and precision.
type header struct {
	MsgID    string `json:"msg_id"`
	Username string `json:"username,omitempty"`
	Session  string `json:"session,omitempty"`
	MsgType  string `json:"msg_type"`
	Version  string `json:"version,omitempty"`
	Date     string `json:"date,omitempty"`
}

// message is the envelope carried on the channels websocket.
type message struct {
	Header       header          `json:"header"`
	ParentHeader header          `json:"parent_header"`
	Metadata     map[string]any  `json:"metadata"`
	Content      json.RawMessage `json:"content"`
	Channel      string          `json:"channel"`
}

type executeRequest struct {
	Code         string `json:"code"`
	Silent       bool   `json:"silent"`
	StoreHistory bool   `json:"store_history"`
	AllowStdin   bool   `json:"allow_stdin"`
	StopOnError  bool   `json:"stop_on_error"`
}

type executeReply struct {
	Status         string   `json:"status"`
	ExecutionCount int      `json:"execution_count"`
	Ename          string   `json:"ename"`
	Evalue         string   `json:"evalue"`
	Traceback      []string `json:"traceback"`
}

type streamContent struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

type dataContent struct {
	Data           map[string]any `json:"data"`
	Metadata       map[string]any `json:"metadata"`
	ExecutionCount int            `json:"execution_count"`
}

type errorContent struct {
	Ename     string   `json:"ename"`
	Evalue    string   `json:"evalue"`
	Traceback []string `json:"traceback"`
}

type statusContent struct {
	ExecutionState string `json:"execution_state"`
}

// ExecError is an uncaught error raised by a cell.
type ExecError struct {
	Ename     string
	Evalue    string
	Traceback []string
}

func (e *ExecError) Error() string {
	if e.Evalue == "" {
		return e.Ename
	}
	return fmt.Sprintf("%s: %s", e.Ename, strings.TrimSpace(e.Evalue))
}
