package websocket

import (
	"time"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypeDeviceImported MessageType = "device_imported"
	MessageTypeDeviceDeleted  MessageType = "device_deleted"

	// Replies to client requests
	MessageTypeSubscribed MessageType = "subscribed"
	MessageTypeError      MessageType = "error"
)

type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

type DeviceImportedData struct {
	Device   types.DeviceSummary `json:"device"`
	Warnings int                 `json:"warnings"`
}

type DeviceDeletedData struct {
	DeviceID string `json:"device_id"`
}

// SubscribeRequest narrows the events a client receives to the listed
// formats. An empty list restores all events.
type SubscribeRequest struct {
	Type    string               `json:"type"`
	Formats []types.DeviceFormat `json:"formats"`
}

func NewMessage(msgType MessageType, data any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

func NewDeviceImportedMessage(summary types.DeviceSummary, warnings int) Message {
	return NewMessage(MessageTypeDeviceImported, DeviceImportedData{
		Device:   summary,
		Warnings: warnings,
	})
}

func NewDeviceDeletedMessage(id uuid.UUID) Message {
	return NewMessage(MessageTypeDeviceDeleted, DeviceDeletedData{DeviceID: id.String()})
}
