package outbox

import (
	"errors"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	appoutbox "tinyhouse/internal/app/outbox"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	specVersion        = "1.0"
	typeSuffix         = ".v1"
	CloudEventsContent = "application/cloudevents+json"
)

var ErrNotCloudEvent = errors.New("outbox: message is not a cloud event")

// CloudEvent is the structured-mode envelope published to the broker.
type CloudEvent struct {
	SpecVersion     string              `json:"specversion"`
	ID              string              `json:"id"`
	Type            string              `json:"type"`
	Source          string              `json:"source"`
	Subject         string              `json:"subject,omitempty"`
	Time            time.Time           `json:"time"`
	DataContentType string              `json:"datacontenttype"`
	TraceParent     string              `json:"traceparent,omitempty"`
	Data            jsoniter.RawMessage `json:"data"`
}

// EncodeCloudEvent wraps a stored record. The record id becomes the event id
// so consumers can dedupe redeliveries.
func EncodeCloudEvent(doc *EventDocument, source string) ([]byte, error) {
	if !json.Valid(doc.Payload) {
		return nil, errors.New("outbox: payload is not valid json")
	}
	evt := CloudEvent{
		SpecVersion:     specVersion,
		ID:              doc.ID,
		Type:            doc.Name + typeSuffix,
		Source:          source,
		Subject:         doc.Aggregate,
		Time:            doc.OccurredAt.UTC(),
		DataContentType: "application/json",
		TraceParent:     doc.Headers["traceparent"],
		Data:            doc.Payload,
	}
	return json.Marshal(evt)
}

// DecodeCloudEvent turns a broker message back into the record subscribers see.
func DecodeCloudEvent(value []byte, headers map[string]string) (appoutbox.EventRecord, error) {
	var evt CloudEvent
	if err := json.Unmarshal(value, &evt); err != nil {
		return appoutbox.EventRecord{}, errors.Join(ErrNotCloudEvent, err)
	}
	if evt.SpecVersion != specVersion || evt.ID == "" || evt.Type == "" {
		return appoutbox.EventRecord{}, ErrNotCloudEvent
	}
	if headers == nil {
		headers = map[string]string{}
	}
	if evt.TraceParent != "" {
		if _, ok := headers["traceparent"]; !ok {
			headers["traceparent"] = evt.TraceParent
		}
	}
	return appoutbox.EventRecord{
		ID:         evt.ID,
		Name:       strings.TrimSuffix(evt.Type, typeSuffix),
		Payload:    evt.Data,
		OccurredAt: evt.Time,
		Aggregate:  evt.Subject,
		Headers:    headers,
	}, nil
}

// TopicFor maps "booking.charged" to "<prefix>booking.events.v1".
func TopicFor(prefix, name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	return prefix + base + ".events.v1"
}
