package farm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DesktopPlatform is the Platform of agents that are not tied to a device.
const DesktopPlatform = "Desktop"

// Agent is the canonical, farm-independent identity of a browser/OS
// combination.
type Agent struct {
	Name      string            `json:"name" yaml:"name"`
	ID        string            `json:"id" yaml:"id"`
	Version   int               `json:"version" yaml:"version"`
	OSID      string            `json:"osId" yaml:"osId"`
	OSName    string            `json:"osName" yaml:"osName"`
	OSVersion string            `json:"osVersion" yaml:"osVersion"`
	Platform  string            `json:"platform" yaml:"platform"`
	Farm      map[string]string `json:"farm,omitempty" yaml:"farm,omitempty"`
}

// Key identifies the logical agent across farms.
func (a Agent) Key() string {
	return fmt.Sprintf("%s/%d/%s/%s", a.ID, a.Version, a.OSID, a.OSVersion)
}

// SameAs reports whether a and b are the same logical agent.
func (a Agent) SameAs(b Agent) bool {
	return a.Key() == b.Key()
}

func (a Agent) String() string {
	version := "any"
	if a.Version > 0 {
		version = strconv.Itoa(a.Version)
	}
	os := strings.TrimSpace(a.OSName + " " + a.OSVersion)
	if os == "" {
		return fmt.Sprintf("%s %s", a.Name, version)
	}
	return fmt.Sprintf("%s %s (%s)", a.Name, version, os)
}

// Spec is a partial Agent used to look one up. Empty strings and a nil
// Version mean "any".
type Spec struct {
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	ID        string `json:"id,omitempty" yaml:"id,omitempty"`
	Version   *int   `json:"version,omitempty" yaml:"version,omitempty"`
	OSID      string `json:"osId,omitempty" yaml:"osId,omitempty"`
	OSName    string `json:"osName,omitempty" yaml:"osName,omitempty"`
	OSVersion string `json:"osVersion,omitempty" yaml:"osVersion,omitempty"`
	Platform  string `json:"platform,omitempty" yaml:"platform,omitempty"`
}

// ParseSpec turns a canonical id into a Spec.
func ParseSpec(id string) Spec {
	return Spec{ID: strings.TrimSpace(id)}
}

// WithVersion returns a copy of s requiring version v.
func (s Spec) WithVersion(v int) Spec {
	s.Version = &v
	return s
}

// Matches reports whether every field present in s equals a's field.
func (s Spec) Matches(a Agent) bool {
	switch {
	case s.Name != "" && s.Name != a.Name:
		return false
	case s.ID != "" && s.ID != a.ID:
		return false
	case s.Version != nil && *s.Version != a.Version:
		return false
	case s.OSID != "" && s.OSID != a.OSID:
		return false
	case s.OSName != "" && s.OSName != a.OSName:
		return false
	case s.OSVersion != "" && s.OSVersion != a.OSVersion:
		return false
	case s.Platform != "" && s.Platform != a.Platform:
		return false
	}
	return true
}

// IsZero reports whether s has no fields, which matches any agent.
func (s Spec) IsZero() bool {
	return s == Spec{}
}

// String renders the present fields as JSON.
func (s Spec) String() string {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Sprintf("%+v", map[string]string{"id": s.ID})
	}
	return string(data)
}

// Worker is a live remote browser session.
type Worker struct {
	SessionID string    `json:"sessionId"`
	Agent     Agent     `json:"agent"`
	URL       string    `json:"url"`
	StartedAt time.Time `json:"startedAt"`

	// Handle is what the owning adapter needs to terminate the session.
	Handle any `json:"-"`
}

// Result is the outcome of connecting one requested agent.
type Result struct {
	Spec   Spec
	Agent  Agent
	Worker *Worker
	Err    error
}

// OK reports whether the agent was connected.
func (r Result) OK() bool {
	return r.Err == nil && r.Worker != nil
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.OK() {
			failed = append(failed, r)
		}
	}
	return failed
}
