package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/SmitUplenchwar2687/Stall/internal/store"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Log is the message persistence used by Service. Repository implements it.
type Log interface {
	Append(ctx context.Context, roomID, sender, message string) (Message, error)
	Recent(ctx context.Context, roomID string, limit int) ([]Message, error)
}

// Delayer holds the backend before an action runs.
type Delayer interface {
	Delay(ctx context.Context, q store.Queryer, ms int) error
}

// Service routes WebSocket text frames to the message log.
type Service struct {
	log     Log
	delayer Delayer
	db      store.Queryer
}

// NewService returns a Service. delayer and db may be nil, in which case a
// sleepMs field in a request is rejected.
func NewService(log Log, delayer Delayer, db store.Queryer) *Service {
	return &Service{log: log, delayer: delayer, db: db}
}

type okSave struct {
	Status  string  `json:"status"`
	Action  string  `json:"action"`
	Message Message `json:"message"`
}

type okRead struct {
	Status   string    `json:"status"`
	Action   string    `json:"action"`
	RoomID   string    `json:"roomId"`
	Count    int       `json:"count"`
	Messages []Message `json:"messages"`
}

type errorReply struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// Handle answers one frame. Anything that is not a JSON object is echoed
// back with an "echo:" prefix; JSON requests carry an action of "save" or
// "read". Failures never escape as errors: they are rendered as
// {"status":"error","reason":...}.
func (s *Service) Handle(ctx context.Context, payload string) string {
	if !looksLikeJSON(payload) {
		return "echo:" + payload
	}

	var req map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return errorResponse(err.Error())
	}

	reply, err := s.route(ctx, req)
	if err != nil {
		return errorResponse(err.Error())
	}
	out, err := json.Marshal(reply)
	if err != nil {
		return errorResponse(err.Error())
	}
	return string(out)
}

func (s *Service) route(ctx context.Context, req map[string]interface{}) (interface{}, error) {
	action, err := requiredText(req, "action")
	if err != nil {
		return nil, err
	}
	action = strings.ToLower(action)

	switch action {
	case "save", "read":
	default:
		return nil, fmt.Errorf("unsupported action: %s", action)
	}

	if err := s.maybeDelay(ctx, req); err != nil {
		return nil, err
	}
	if action == "save" {
		return s.save(ctx, req)
	}
	return s.read(ctx, req)
}

func (s *Service) save(ctx context.Context, req map[string]interface{}) (interface{}, error) {
	roomID, err := requiredText(req, "roomId")
	if err != nil {
		return nil, err
	}
	sender, err := requiredText(req, "sender")
	if err != nil {
		return nil, err
	}
	message, err := requiredText(req, "message")
	if err != nil {
		return nil, err
	}

	saved, err := s.log.Append(ctx, roomID, sender, message)
	if err != nil {
		return nil, err
	}
	return okSave{Status: "ok", Action: "save", Message: saved}, nil
}

func (s *Service) read(ctx context.Context, req map[string]interface{}) (interface{}, error) {
	roomID, err := requiredText(req, "roomId")
	if err != nil {
		return nil, err
	}
	limit := SanitizeLimit(intField(req, "limit", DefaultLimit))

	messages, err := s.log.Recent(ctx, roomID, limit)
	if err != nil {
		return nil, err
	}
	return okRead{
		Status:   "ok",
		Action:   "read",
		RoomID:   roomID,
		Count:    len(messages),
		Messages: messages,
	}, nil
}

func (s *Service) maybeDelay(ctx context.Context, req map[string]interface{}) error {
	if _, ok := req["sleepMs"]; !ok {
		return nil
	}
	ms := intField(req, "sleepMs", 0)
	if ms < 0 {
		return errors.New("sleepMs must be >= 0")
	}
	if s.delayer == nil || s.db == nil {
		return errors.New("sleepMs is not supported")
	}
	return s.delayer.Delay(ctx, s.db, ms)
}

// SanitizeLimit clamps limit to [1, MaxLimit].
func SanitizeLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func requiredText(req map[string]interface{}, field string) (string, error) {
	value := strings.TrimSpace(text(req[field]))
	if value == "" {
		return "", fmt.Errorf("%s is required", field)
	}
	return value, nil
}

// text renders scalars as text; objects, arrays and null count as empty.
func text(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

// intField reads an integer, accepting numeric strings. Missing or
// unparseable values yield def.
func intField(req map[string]interface{}, field string, def int) int {
	switch x := req[field].(type) {
	case float64:
		if x > math.MaxInt32 {
			return math.MaxInt32
		}
		if x < math.MinInt32 {
			return math.MinInt32
		}
		return int(x)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return def
		}
		return n
	default:
		return def
	}
}

func looksLikeJSON(payload string) bool {
	trimmed := strings.TrimSpace(payload)
	return strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")
}

func errorResponse(reason string) string {
	if reason == "" {
		reason = "unknown error"
	}
	out, err := json.Marshal(errorReply{Status: "error", Reason: reason})
	if err != nil {
		return `{"status":"error","reason":"serialization failure"}`
	}
	return string(out)
}
