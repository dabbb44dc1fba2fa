package kernel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"nbrunner/internal/notebook"
)

// Session is an open channels connection to one kernel. Cells execute
// strictly one at a time; Session is not safe for concurrent use, which
// matches the runner's sequential model.
type Session struct {
	conn      *websocket.Conn
	sessionID string
	logger    *zap.Logger
}

// Execute runs one cell's code and returns the outputs it produced, in
// arrival order. A cell that raises returns the outputs captured so far
// together with an *ExecError. Context cancellation or deadline aborts
// the wait and returns the context error.
func (s *Session) Execute(ctx context.Context, code string) ([]notebook.Output, error) {
	msgID := uuid.NewString()

	content, err := json.Marshal(executeRequest{
		Code:         code,
		StoreHistory: true,
		StopOnError:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal execute request: %w", err)
	}

	req := message{
		Header: header{
			MsgID:    msgID,
			Username: "nbrunner",
			Session:  s.sessionID,
			MsgType:  msgTypeExecuteRequest,
			Version:  protocolVersion,
			Date:     time.Now().UTC().Format(time.RFC3339),
		},
		Metadata: map[string]any{},
		Content:  content,
		Channel:  channelShell,
	}
	if err := s.conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("failed to send execute request: %w", err)
	}

	// Unblock the read loop when the context ends. ReadJSON has no
	// context support, so cancellation is delivered via the deadline.
	s.conn.SetReadDeadline(time.Time{})
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			s.conn.SetReadDeadline(time.Now())
		case <-stop:
		}
	}()

	var outputs []notebook.Output
	var execErr *ExecError
	replySeen, idleSeen := false, false

	for !replySeen || !idleSeen {
		var msg message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return outputs, ctx.Err()
			}
			return outputs, fmt.Errorf("kernel connection lost: %w", err)
		}
		if msg.ParentHeader.MsgID != msgID {
			continue
		}

		switch msg.Header.MsgType {
		case msgTypeStream:
			var c streamContent
			if err := json.Unmarshal(msg.Content, &c); err == nil {
				outputs = append(outputs, notebook.Output{
					OutputType: notebook.OutputTypeStream,
					Name:       c.Name,
					Text:       notebook.FromText(c.Text),
				})
			}
		case msgTypeExecuteResult:
			var c dataContent
			if err := json.Unmarshal(msg.Content, &c); err == nil {
				count := c.ExecutionCount
				outputs = append(outputs, notebook.Output{
					OutputType:     notebook.OutputTypeExecuteResult,
					Data:           c.Data,
					Metadata:       c.Metadata,
					ExecutionCount: &count,
				})
			}
		case msgTypeDisplayData:
			var c dataContent
			if err := json.Unmarshal(msg.Content, &c); err == nil {
				outputs = append(outputs, notebook.Output{
					OutputType: notebook.OutputTypeDisplayData,
					Data:       c.Data,
					Metadata:   c.Metadata,
				})
			}
		case msgTypeError:
			var c errorContent
			if err := json.Unmarshal(msg.Content, &c); err == nil {
				execErr = &ExecError{Ename: c.Ename, Evalue: c.Evalue, Traceback: c.Traceback}
				outputs = append(outputs, notebook.Output{
					OutputType: notebook.OutputTypeError,
					Ename:      c.Ename,
					Evalue:     c.Evalue,
					Traceback:  c.Traceback,
				})
			}
		case msgTypeStatus:
			var c statusContent
			if err := json.Unmarshal(msg.Content, &c); err == nil && c.ExecutionState == "idle" {
				idleSeen = true
			}
		case msgTypeExecuteReply:
			replySeen = true
			var c executeReply
			if err := json.Unmarshal(msg.Content, &c); err == nil && c.Status == "error" && execErr == nil {
				execErr = &ExecError{Ename: c.Ename, Evalue: c.Evalue, Traceback: c.Traceback}
			}
		}
	}

	if execErr != nil {
		return outputs, execErr
	}
	return outputs, nil
}

// Close closes the channels connection.
func (s *Session) Close() error {
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}
