// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

package eventstream

import "time"

// Subjects used on the stream.
const (
	// StreamName is the JetStream stream holding storage events.
	StreamName = "CONVEYOR_EVENTS"
	// EventSubjects matches all storage-event subjects.
	EventSubjects = "media.events.>"
	// NotificationStreamName holds outbound state-change notifications.
	NotificationStreamName = "CONVEYOR_NOTIFICATIONS"
	// NotificationSubjects matches all notification subjects.
	NotificationSubjects = "media.notifications.>"
)

// ServerConfig holds embedded NATS server configuration.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// DefaultServerConfig returns production defaults for the embedded server.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          "/data/conveyor/jetstream",
		JetStreamMaxMem:   1 << 30,  // 1GB
		JetStreamMaxStore: 10 << 30, // 10GB
	}
}

// StreamConfig holds JetStream stream provisioning settings.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	MaxMsgs         int64
	DuplicateWindow time.Duration
	Replicas        int
}

// DefaultStreamConfig returns defaults for the storage-event stream.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Name:            StreamName,
		Subjects:        []string{EventSubjects},
		MaxAge:          7 * 24 * time.Hour,
		MaxBytes:        1 << 30,
		MaxMsgs:         -1,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// DefaultNotificationStreamConfig returns defaults for the notification
// stream. Notifications are transient relative to events; a shorter MaxAge
// keeps the stream small.
func DefaultNotificationStreamConfig() StreamConfig {
	return StreamConfig{
		Name:            NotificationStreamName,
		Subjects:        []string{NotificationSubjects},
		MaxAge:          24 * time.Hour,
		MaxBytes:        256 << 20,
		MaxMsgs:         -1,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// SubscriberConfig holds durable consumer configuration.
type SubscriberConfig struct {
	URL string
	// StreamName binds the consumer to an existing stream; required for
	// wildcard topics because stream names cannot contain wildcards.
	StreamName string
	// DurableName makes the consumer durable across restarts.
	DurableName string
	// QueueGroup load-balances deliveries across replicas.
	QueueGroup string
	// AckWaitTimeout is the visibility window: a released (nacked) or
	// unacknowledged delivery is redelivered after this long.
	AckWaitTimeout time.Duration
	// MaxDeliver bounds redelivery attempts before the server stops
	// redelivering (DLQ threshold, owned by infrastructure).
	MaxDeliver       int
	MaxAckPending    int
	SubscribersCount int
	CloseTimeout     time.Duration
	MaxReconnects    int
	ReconnectWait    time.Duration
}

// DefaultSubscriberConfig returns production defaults for the given URL.
func DefaultSubscriberConfig(url string) SubscriberConfig {
	return SubscriberConfig{
		URL:              url,
		StreamName:       StreamName,
		DurableName:      "conveyor-pipeline",
		QueueGroup:       "pipeline",
		AckWaitTimeout:   30 * time.Second,
		MaxDeliver:       5,
		MaxAckPending:    256,
		SubscribersCount: 1,
		CloseTimeout:     30 * time.Second,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
	}
}

// PublisherConfig holds publisher configuration.
type PublisherConfig struct {
	URL             string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectBuffer int
	// TrackMsgID enables JetStream publish deduplication via Nats-Msg-Id.
	TrackMsgID bool
}

// DefaultPublisherConfig returns production defaults for the given URL.
func DefaultPublisherConfig(url string) PublisherConfig {
	return PublisherConfig{
		URL:             url,
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		ReconnectBuffer: 8 * 1024 * 1024,
		TrackMsgID:      true,
	}
}
