// internal/service/booking/interfaces/envelope.go
package interfaces

import (
	"bytes"
	"encoding/json"
)

// Envelope 是归一化后的入站命令：(事件类型, 载荷文档)。
type Envelope struct {
	EventType string
	Payload   json.RawMessage
}

// matcher 尝试按一种消息形态解出 Envelope，解不出返回 false。
type matcher func(body []byte, headerEventType string) (Envelope, bool)

// envelopeMatchers 按优先级排列的形态解析器列表。
// 新的消息形态在这里追加，分发逻辑不用动。
var envelopeMatchers = []matcher{
	matchChangeCaptureRecord,
	matchRoutedStringBody,
	matchFlatObject,
	matchHeaderOnly,
}

// NormalizeEnvelope 依次尝试每种形态，返回第一个解析成功的 (eventType, payload)。
// 全部失败返回 false，调用方 ack 后丢弃消息，这不是错误。
func NormalizeEnvelope(body []byte, headerEventType string) (Envelope, bool) {
	for _, match := range envelopeMatchers {
		if env, ok := match(body, headerEventType); ok {
			return env, true
		}
	}
	return Envelope{}, false
}

// matchChangeCaptureRecord 解析变更捕获记录：
// {"after": {"event_type": "...", "payload": <对象或 JSON 字符串>}}
func matchChangeCaptureRecord(body []byte, _ string) (Envelope, bool) {
	var record struct {
		After *struct {
			EventType string          `json:"event_type"`
			Payload   json.RawMessage `json:"payload"`
		} `json:"after"`
	}
	if err := json.Unmarshal(body, &record); err != nil || record.After == nil || record.After.EventType == "" {
		return Envelope{}, false
	}
	return Envelope{
		EventType: record.After.EventType,
		Payload:   unquoteOneLevel(record.After.Payload),
	}, true
}

// matchRoutedStringBody 解析路由信封：消息体本身是一个 JSON 字符串，
// 内容是 {"eventType": ..., ...}，eventType 也可能只在消息头里。
func matchRoutedStringBody(body []byte, headerEventType string) (Envelope, bool) {
	var inner string
	if err := json.Unmarshal(body, &inner); err != nil {
		return Envelope{}, false
	}
	innerBytes := []byte(inner)
	if !json.Valid(innerBytes) || !looksLikeObject(innerBytes) {
		return Envelope{}, false
	}

	var probe struct {
		EventType string          `json:"eventType"`
		Payload   json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(innerBytes, &probe); err != nil {
		return Envelope{}, false
	}
	eventType := probe.EventType
	if eventType == "" {
		eventType = headerEventType
	}
	if eventType == "" {
		return Envelope{}, false
	}

	payload := innerBytes
	if len(probe.Payload) > 0 {
		payload = unquoteOneLevel(probe.Payload)
	}
	return Envelope{EventType: eventType, Payload: payload}, true
}

// matchFlatObject 解析平铺对象：{"eventType": "...", "payload": {...}}，
// 没有 payload 字段时整个对象就是数据。
func matchFlatObject(body []byte, _ string) (Envelope, bool) {
	if !looksLikeObject(body) {
		return Envelope{}, false
	}
	var probe struct {
		EventType string          `json:"eventType"`
		Payload   json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || probe.EventType == "" {
		return Envelope{}, false
	}

	payload := json.RawMessage(body)
	if len(probe.Payload) > 0 {
		payload = unquoteOneLevel(probe.Payload)
	}
	return Envelope{EventType: probe.EventType, Payload: payload}, true
}

// matchHeaderOnly 是兜底形态：消息头带 eventType，整个消息体就是载荷。
func matchHeaderOnly(body []byte, headerEventType string) (Envelope, bool) {
	if headerEventType == "" || !json.Valid(body) {
		return Envelope{}, false
	}
	return Envelope{EventType: headerEventType, Payload: body}, true
}

// unquoteOneLevel 处理被引号包了一层的载荷：
// 字段是 JSON 字符串时向里解一层，只解一层。
func unquoteOneLevel(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return raw
	}
	var inner string
	if err := json.Unmarshal(trimmed, &inner); err != nil {
		return raw
	}
	innerBytes := []byte(inner)
	if !json.Valid(innerBytes) {
		return raw
	}
	return innerBytes
}

func looksLikeObject(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
