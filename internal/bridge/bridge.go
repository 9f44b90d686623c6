// Package bridge exposes the document store to a host runtime as a fixed set
// of named commands with JSON arguments and a uniform result envelope.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/starford/jsonvault/internal/apperr"
	"github.com/starford/jsonvault/internal/models"
)

// Command names understood by the dispatcher.
const (
	CmdGet         = "getJsonFileContents"
	CmdSet         = "setJsonFileContents"
	CmdRemove      = "removeJsonFile"
	CmdList        = "listJsonFiles"
	CmdWipe        = "wipeJsonFiles"
	CmdGetPrivate  = "getPrivateJsonFileContents"
	CmdSetPrivate  = "setPrivateJsonFileContents"
	CmdRemovePriv  = "removePrivateJsonFile"
	CmdListPrivate = "listPrivateJsonFiles"
	CmdWipePrivate = "wipePrivateJsonFiles"
)

// legacyPrefix is accepted in front of any command name.
const legacyPrefix = "onms"

// Documents is the subset of the document service the bridge drives.
type Documents interface {
	Get(ctx context.Context, tier models.Tier, name string) ([]byte, error)
	Set(ctx context.Context, tier models.Tier, name string, content []byte) error
	Remove(ctx context.Context, tier models.Tier, name string) error
	List(ctx context.Context, tier models.Tier, ext string) ([]string, error)
	Wipe(ctx context.Context, tier models.Tier) error
}

type op int

const (
	opGet op = iota
	opSet
	opRemove
	opList
	opWipe
)

type route struct {
	op   op
	tier models.Tier
}

var routes = map[string]route{
	CmdGet:         {opGet, models.Synced},
	CmdSet:         {opSet, models.Synced},
	CmdRemove:      {opRemove, models.Synced},
	CmdList:        {opList, models.Synced},
	CmdWipe:        {opWipe, models.Synced},
	CmdGetPrivate:  {opGet, models.Private},
	CmdSetPrivate:  {opSet, models.Private},
	CmdRemovePriv:  {opRemove, models.Private},
	CmdListPrivate: {opList, models.Private},
	CmdWipePrivate: {opWipe, models.Private},
}

// aliases maps older command names onto canonical ones. The legacy wipe
// command always cleared the device-local root.
var aliases = map[string]string{
	"wipe": CmdWipePrivate,
}

// Commands returns the canonical command names in sorted order.
func Commands() []string {
	names := make([]string, 0, len(routes))
	for name := range routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatcher runs bridge commands against a Documents implementation.
type Dispatcher struct {
	docs   Documents
	logger *slog.Logger

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// New creates a dispatcher. A nil logger falls back to slog.Default.
func New(docs Documents, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now()
	return &Dispatcher{
		docs:    docs,
		logger:  logger,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(now.UnixNano())), 0),
	}
}

// Execute runs one command. args are raw JSON values in positional order.
// The returned Result is always populated; failures carry Success false.
func (d *Dispatcher) Execute(ctx context.Context, command string, args []json.RawMessage) Result {
	id := d.requestID()
	log := d.logger.With(slog.String("request_id", id), slog.String("command", command))

	res := d.dispatch(ctx, command, args)
	if res.Success {
		log.Debug("bridge call")
	} else {
		log.Warn("bridge call failed", slog.String("error", res.Error), slog.String("reason", res.Reason))
	}
	return res
}

// StringArgs encodes plain strings as JSON string arguments, except for
// values that already parse as a JSON object or array.
func StringArgs(args ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		trimmed := strings.TrimSpace(a)
		if (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) && json.Valid([]byte(trimmed)) {
			out = append(out, json.RawMessage(trimmed))
			continue
		}
		b, _ := json.Marshal(a)
		out = append(out, b)
	}
	return out
}

func (d *Dispatcher) requestID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), d.entropy).String()
}

func (d *Dispatcher) dispatch(ctx context.Context, command string, args []json.RawMessage) Result {
	rt, found := lookup(command)
	if !found {
		return failure("", fmt.Errorf("bridge: %q: %w", command, apperr.ErrUnknownCommand))
	}

	switch rt.op {
	case opGet:
		name, res, valid := filename(command, args)
		if !valid {
			return res
		}
		return d.get(ctx, rt.tier, name)
	case opSet:
		name, res, valid := filename(command, args)
		if !valid {
			return res
		}
		if len(args) < 2 {
			return invalidArgs(command, "missing contents")
		}
		return d.set(ctx, rt.tier, name, args[1])
	case opRemove:
		name, res, valid := filename(command, args)
		if !valid {
			return res
		}
		if err := d.docs.Remove(ctx, rt.tier, name); err != nil {
			return failure("Unable to remove file.", err)
		}
		return ok(nil)
	case opList:
		ext := ""
		if len(args) > 0 && !isNull(args[0]) {
			if err := json.Unmarshal(args[0], &ext); err != nil {
				return invalidArgs(command, "extension must be a string")
			}
		}
		names, err := d.docs.List(ctx, rt.tier, ext)
		if err != nil {
			return failure("Unable to list files.", err)
		}
		return ok(names)
	case opWipe:
		if err := d.docs.Wipe(ctx, rt.tier); err != nil {
			return failure("Unable to wipe files.", err)
		}
		return ok(nil)
	}
	return failure("", fmt.Errorf("bridge: %q: %w", command, apperr.ErrUnknownCommand))
}

func (d *Dispatcher) get(ctx context.Context, tier models.Tier, name string) Result {
	data, err := d.docs.Get(ctx, tier, name)
	if err != nil {
		return failure("Unable to read file.", err)
	}
	if !json.Valid(data) {
		return fail("Unable to read file.", fmt.Errorf("bridge: %s is not valid JSON: %w", name, apperr.ErrRead))
	}
	return ok(json.RawMessage(data))
}

func (d *Dispatcher) set(ctx context.Context, tier models.Tier, name string, raw json.RawMessage) Result {
	payload, err := contents(raw)
	if err != nil {
		return fail("Failed to serialize JSON.", fmt.Errorf("bridge: %s: %w: %w", name, apperr.ErrInvalidArgument, err))
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "    "); err != nil {
		return fail("Failed to serialize JSON.", fmt.Errorf("bridge: %s: %w: %w", name, apperr.ErrInvalidArgument, err))
	}
	if err := d.docs.Set(ctx, tier, name, buf.Bytes()); err != nil {
		return failure("Failed to write JSON.", err)
	}
	return ok(nil)
}

// contents accepts an embedded JSON value, or a JSON string holding
// serialized JSON text.
func contents(raw json.RawMessage) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || isNull(trimmed) {
		return nil, errors.New("contents are empty")
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil, err
		}
		trimmed = bytes.TrimSpace([]byte(text))
	}
	if !json.Valid(trimmed) {
		return nil, errors.New("contents are not valid JSON")
	}
	return trimmed, nil
}

func filename(command string, args []json.RawMessage) (string, Result, bool) {
	if len(args) == 0 {
		return "", invalidArgs(command, "missing filename"), false
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", invalidArgs(command, "filename must be a string"), false
	}
	return name, Result{}, true
}

func lookup(command string) (route, bool) {
	if rest, cut := strings.CutPrefix(command, legacyPrefix); cut && rest != "" {
		command = strings.ToLower(rest[:1]) + rest[1:]
	}
	if canonical, found := aliases[command]; found {
		command = canonical
	}
	rt, found := routes[command]
	return rt, found
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
