package notify

import (
	"encoding/json"
	"fmt"

	"school-attendance-api/internal/realtime"
)

// Notification is one attendance push message addressed to a single student.
type Notification struct {
	StudentID string `json:"studentId"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Date      string `json:"date"`
}

// Pusher delivers a single notification. Implementations are expected to be
// best-effort; a returned error is logged by the dispatcher and never retried.
type Pusher interface {
	Push(studentID string, n Notification) error
}

// HubPusher delivers notifications over the websocket hub. Students without
// an open connection are treated as undeliverable.
type HubPusher struct {
	Hub *realtime.Hub
}

// Push implements Pusher.
func (p *HubPusher) Push(studentID string, n Notification) error {
	if !p.Hub.Connected(studentID) {
		return fmt.Errorf("student %s has no active connection", studentID)
	}
	msg, err := json.Marshal(n)
	if err != nil {
		return err
	}
	p.Hub.Broadcast(studentID, msg)
	return nil
}
