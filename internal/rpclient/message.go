package rpclient

import (
	"encoding/json"
	"fmt"
)

const jsonrpcVersion = "2.0"

// Стандартные коды ошибок JSON-RPC 2.0.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request — исходящий вызов.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Notification — входящее сообщение без id.
type Notification struct {
	Method string
	Params json.RawMessage
}

// Error — ошибка, которую вернул сервер. Отдаётся вызывающему как есть.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("rpc error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// message — любой входящий кадр: ответ, уведомление или запрос сервера.
type message struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

func (m *message) isNotification() bool {
	return m.Method != "" && isNullID(m.ID)
}

func (m *message) isRequest() bool {
	return m.Method != "" && !isNullID(m.ID)
}

func isNullID(id json.RawMessage) bool {
	return len(id) == 0 || string(id) == "null"
}

// replyMessage — ответ клиента на запрос сервера (клиент методов не
// обслуживает, поэтому это всегда ошибка).
type replyMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   *Error          `json:"error"`
}

// decodeFrame разбирает текстовый кадр. Поддерживаются batch-массивы.
func decodeFrame(data []byte) ([]message, error) {
	if firstNonSpace(data) == '[' {
		var batch []message
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, err
		}
		return batch, nil
	}
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return []message{msg}, nil
}

func firstNonSpace(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b
	}
	return 0
}

func marshalParams(params any) (json.RawMessage, error) {
	switch p := params.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	default:
		return json.Marshal(p)
	}
}
