package handlers

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-buildgate/buildgate/internal/status"

	"github.com/gin-gonic/gin"
)

// CommandTable maps (action, cmd) pairs to handlers. It replaces dynamic
// "<action>_<cmd>" method dispatch with an explicit table built and
// validated at startup and looked up at request time.
type CommandTable struct {
	commands map[string]map[string]gin.HandlerFunc
}

func NewCommandTable() *CommandTable {
	return &CommandTable{commands: map[string]map[string]gin.HandlerFunc{}}
}

// Register binds a handler to (action, cmd). Empty names and duplicate
// registrations are startup errors.
func (t *CommandTable) Register(action, cmd string, h gin.HandlerFunc) error {
	if action == "" || cmd == "" {
		return fmt.Errorf("command registration needs action and cmd, got (%q, %q)", action, cmd)
	}
	if h == nil {
		return fmt.Errorf("nil handler for command (%s, %s)", action, cmd)
	}
	if _, exists := t.commands[action][cmd]; exists {
		return fmt.Errorf("duplicate command registration (%s, %s)", action, cmd)
	}
	if t.commands[action] == nil {
		t.commands[action] = map[string]gin.HandlerFunc{}
	}
	t.commands[action][cmd] = h
	return nil
}

// MustRegister is Register for startup wiring.
func (t *CommandTable) MustRegister(action, cmd string, h gin.HandlerFunc) {
	if err := t.Register(action, cmd, h); err != nil {
		panic(err)
	}
}

// Dispatch returns the gin handler for an action: it reads the ?cmd=
// parameter and routes to the registered command handler.
func (t *CommandTable) Dispatch(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		cmd := c.Query("cmd")
		if cmd == "" {
			_ = c.Error(status.MissingParameter("cmd"))
			return
		}

		cmds, ok := t.commands[action]
		if !ok {
			_ = c.Error(status.UnknownAction(
				fmt.Sprintf("unknown action '%s'", action)))
			return
		}

		h, ok := cmds[cmd]
		if !ok {
			_ = c.Error(status.UnknownCommand(cmd, c.Request.URL.Path))
			return
		}

		h(c)
	}
}

// BuildQuery rebuilds an escaped query string from the listed keys of the
// inbound query, preserving their order. It returns "" when none of the keys
// are present, otherwise a string starting with "?".
func BuildQuery(values url.Values, keys ...string) string {
	var parts []string
	for _, key := range keys {
		for _, v := range values[key] {
			parts = append(parts, key+"="+url.QueryEscape(v))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "?" + strings.Join(parts, "&")
}

// QueryParamsMissing attaches a typed error and reports true when any of the
// named query parameters are absent.
func QueryParamsMissing(c *gin.Context, names ...string) bool {
	var missing []string
	for _, name := range names {
		if _, ok := c.GetQuery(name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		_ = c.Error(status.MissingQueryParameters(strings.Join(missing, ", ")))
		return true
	}
	return false
}
