package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix roots every topic when no prefix is configured.
const DefaultTopicPrefix = "paramsync"

// Topics builds paramsync topic names under a common prefix.
//
//	topics := mqtt.NewTopics("studio")
//	topics.ParameterState("gain")  // "studio/parameter/gain/state"
type Topics struct {
	Prefix string
}

// NewTopics returns a builder rooted at prefix, falling back to
// DefaultTopicPrefix when prefix is empty. Trailing slashes are dropped.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) root() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// SystemStatus returns the retained online/offline topic.
func (t Topics) SystemStatus() string {
	return t.root() + "/system/status"
}

// ParameterState returns the retained state topic for one parameter.
func (t Topics) ParameterState(id string) string {
	return fmt.Sprintf("%s/parameter/%s/state", t.root(), id)
}

// AllParameterStates matches every parameter state topic.
func (t Topics) AllParameterStates() string {
	return t.root() + "/parameter/+/state"
}

// DeviceTelemetry returns the topic for a device message type such as
// "heartbeat" or "status".
func (t Topics) DeviceTelemetry(messageType string) string {
	return fmt.Sprintf("%s/device/%s", t.root(), messageType)
}

// ParameterCommand returns the inbound command topic for one parameter.
func (t Topics) ParameterCommand(id string) string {
	return fmt.Sprintf("%s/command/parameter/%s", t.root(), id)
}

// AllParameterCommands matches every parameter command topic.
func (t Topics) AllParameterCommands() string {
	return t.root() + "/command/parameter/+"
}

// ParameterIDFromCommand extracts the parameter id from a topic produced by
// ParameterCommand.
func (t Topics) ParameterIDFromCommand(topic string) (string, bool) {
	prefix := t.root() + "/command/parameter/"
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	id := strings.TrimPrefix(topic, prefix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
