package mailbox

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrNotAMessage indicates content that does not match the message frame.
var ErrNotAMessage = errors.New("mailbox: not a message")

var (
	fenceOpen  = []byte("---\n")
	fenceClose = []byte("\n---\n")
)

// Priority orders nothing (delivery is last-write-wins) but travels
// with the message so recipients can triage.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// ParsePriority maps a raw string onto the closed priority set.
func ParsePriority(raw string) (Priority, error) {
	switch Priority(strings.ToLower(strings.TrimSpace(raw))) {
	case PriorityLow:
		return PriorityLow, nil
	case PriorityNormal, "":
		return PriorityNormal, nil
	case PriorityHigh:
		return PriorityHigh, nil
	default:
		return "", fmt.Errorf("mailbox: unknown priority %q", raw)
	}
}

// Message is one unit of inter-agent communication.
type Message struct {
	From      string
	To        int
	Timestamp time.Time
	Priority  Priority
	Body      string
}

// Encode renders the message in its on-disk frame.
func (m Message) Encode() []byte {
	var buf bytes.Buffer
	buf.Write(fenceOpen)
	fmt.Fprintf(&buf, "from: %s\n", strings.TrimSpace(m.From))
	fmt.Fprintf(&buf, "to: %d\n", m.To)
	fmt.Fprintf(&buf, "timestamp: %s\n", m.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&buf, "priority: %s", string(m.Priority))
	buf.Write(fenceClose)
	buf.WriteByte('\n')
	buf.WriteString(m.Body)
	return buf.Bytes()
}

// ParseMessage decodes one framed message. Every malformation maps to
// ErrNotAMessage so callers can treat it as an empty mailbox.
func ParseMessage(content []byte) (Message, error) {
	header, body, err := splitFrame(content)
	if err != nil {
		return Message{}, err
	}

	fields, err := parseHeader(header)
	if err != nil {
		return Message{}, err
	}
	from, ok := fields["from"]
	if !ok || from == "" {
		return Message{}, ErrNotAMessage
	}
	rawTo, ok := fields["to"]
	if !ok {
		return Message{}, ErrNotAMessage
	}
	to, err := strconv.Atoi(rawTo)
	if err != nil {
		return Message{}, ErrNotAMessage
	}
	priority, err := ParsePriority(fields["priority"])
	if err != nil {
		return Message{}, ErrNotAMessage
	}
	timestamp, err := time.Parse(time.RFC3339, fields["timestamp"])
	if err != nil {
		return Message{}, ErrNotAMessage
	}

	return Message{
		From:      from,
		To:        to,
		Timestamp: timestamp,
		Priority:  priority,
		Body:      body,
	}, nil
}

// ResponseRecord is the durable artifact an agent leaves behind when it
// marks its task complete. Unlike a mailbox slot it is never consumed;
// each completion overwrites the previous record.
type ResponseRecord struct {
	From      string
	Timestamp time.Time
	Status    string
	Summary   string
}

// Encode renders the record in the shared frame format.
func (r ResponseRecord) Encode() []byte {
	var buf bytes.Buffer
	buf.Write(fenceOpen)
	fmt.Fprintf(&buf, "from: %s\n", strings.TrimSpace(r.From))
	fmt.Fprintf(&buf, "timestamp: %s\n", r.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&buf, "status: %s", strings.TrimSpace(r.Status))
	buf.Write(fenceClose)
	buf.WriteByte('\n')
	buf.WriteString(r.Summary)
	return buf.Bytes()
}

// ParseResponse decodes one completion record.
func ParseResponse(content []byte) (ResponseRecord, error) {
	header, body, err := splitFrame(content)
	if err != nil {
		return ResponseRecord{}, err
	}
	fields, err := parseHeader(header)
	if err != nil {
		return ResponseRecord{}, err
	}
	from, ok := fields["from"]
	if !ok || from == "" {
		return ResponseRecord{}, ErrNotAMessage
	}
	timestamp, err := time.Parse(time.RFC3339, fields["timestamp"])
	if err != nil {
		return ResponseRecord{}, ErrNotAMessage
	}
	return ResponseRecord{
		From:      from,
		Timestamp: timestamp,
		Status:    fields["status"],
		Summary:   body,
	}, nil
}

func splitFrame(content []byte) ([]byte, string, error) {
	if len(content) == 0 {
		return nil, "", ErrNotAMessage
	}
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, fenceOpen) {
		return nil, "", ErrNotAMessage
	}
	rest := normalized[len(fenceOpen):]
	parts := bytes.SplitN(rest, fenceClose, 2)
	if len(parts) < 2 {
		return nil, "", ErrNotAMessage
	}
	body := string(parts[1])
	// The frame puts one blank line between the closing fence and the body.
	body = strings.TrimPrefix(body, "\n")
	return parts[0], body, nil
}

func parseHeader(header []byte) (map[string]string, error) {
	fields := map[string]string{}
	for _, line := range strings.Split(string(header), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			return nil, ErrNotAMessage
		}
		fields[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	if len(fields) == 0 {
		return nil, ErrNotAMessage
	}
	return fields, nil
}
