// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mockagent

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/agentdesk/internal/model"
	"github.com/jeranaias/agentdesk/internal/protocol"
)

// PromptPlaceholder is replaced by the user's prompt in text steps.
const PromptPlaceholder = "{prompt}"

// =============================================================================
// SCRIPT TYPES
// =============================================================================

// Script is the sequence of events played back after a prompt is accepted.
type Script struct {
	StepDelayMS int    `yaml:"step_delay_ms,omitempty"`
	Steps       []Step `yaml:"steps"`
}

// Step is one scripted event. Exactly one field must be set.
type Step struct {
	Thinking   string         `yaml:"thinking,omitempty"`
	Content    string         `yaml:"content,omitempty"`
	ToolCall   *ToolStep      `yaml:"tool_call,omitempty"`
	FileChange *FileStep      `yaml:"file_change,omitempty"`
	TokenUsage map[string]any `yaml:"token_usage,omitempty"`
	Error      string         `yaml:"error,omitempty"`
}

// ToolStep describes a tool_call event.
type ToolStep struct {
	Name string         `yaml:"name"`
	Args map[string]any `yaml:"args,omitempty"`
}

// FileStep describes a file_change event.
type FileStep struct {
	Path    string  `yaml:"path"`
	Action  string  `yaml:"action"`
	Content *string `yaml:"content,omitempty"`
	Diff    *string `yaml:"diff,omitempty"`
}

// DefaultScript is played when no script file is configured.
func DefaultScript() *Script {
	diff := "@@ -1,3 +1,4 @@\n package main\n+// touched by mock agent\n \n func main() {"
	return &Script{
		Steps: []Step{
			{Thinking: "Reading the request and planning a reply."},
			{Content: "Working on: "},
			{Content: PromptPlaceholder},
			{ToolCall: &ToolStep{Name: "read_file", Args: map[string]any{"path": "main.go"}}},
			{FileChange: &FileStep{Path: "main.go", Action: string(model.FileActionEdit), Diff: &diff}},
			{Content: "\n\nDone. I added a comment to `main.go`."},
			{TokenUsage: map[string]any{"input_tokens": 128, "output_tokens": 42}},
		},
	}
}

// =============================================================================
// LOADING
// =============================================================================

// LoadScript reads a YAML script from path.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return ParseScript(data)
}

// ParseScript decodes and validates a YAML script.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that every step names exactly one event kind.
func (s *Script) Validate() error {
	if s.StepDelayMS < 0 {
		return fmt.Errorf("script: step_delay_ms must not be negative")
	}
	for i, step := range s.Steps {
		if n := step.kinds(); n != 1 {
			return fmt.Errorf("script: step %d sets %d event kinds, want 1", i+1, n)
		}
		if step.ToolCall != nil && step.ToolCall.Name == "" {
			return fmt.Errorf("script: step %d: tool_call needs a name", i+1)
		}
		if fc := step.FileChange; fc != nil {
			if fc.Path == "" {
				return fmt.Errorf("script: step %d: file_change needs a path", i+1)
			}
			if _, ok := model.ParseFileAction(fc.Action); !ok {
				return fmt.Errorf("script: step %d: unknown file action %q", i+1, fc.Action)
			}
		}
	}
	return nil
}

// StepDelay returns the configured pause between steps.
func (s *Script) StepDelay() time.Duration {
	return time.Duration(s.StepDelayMS) * time.Millisecond
}

func (st Step) kinds() int {
	n := 0
	for _, set := range []bool{
		st.Thinking != "",
		st.Content != "",
		st.ToolCall != nil,
		st.FileChange != nil,
		st.TokenUsage != nil,
		st.Error != "",
	} {
		if set {
			n++
		}
	}
	return n
}

// =============================================================================
// RENDERING
// =============================================================================

// Render converts the script into server messages for one prompt.
func (s *Script) Render(sessionID, prompt string) ([]protocol.ServerMessage, error) {
	out := make([]protocol.ServerMessage, 0, len(s.Steps))
	fill := func(text string) string {
		return strings.ReplaceAll(text, PromptPlaceholder, prompt)
	}

	for i, st := range s.Steps {
		switch {
		case st.Thinking != "":
			out = append(out, protocol.Thinking{SessionID: sessionID, Content: fill(st.Thinking)})
		case st.Content != "":
			out = append(out, protocol.ContentDelta{SessionID: sessionID, Content: fill(st.Content)})
		case st.ToolCall != nil:
			args, err := rawJSON(st.ToolCall.Args)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i+1, err)
			}
			out = append(out, protocol.ToolCall{SessionID: sessionID, ToolName: st.ToolCall.Name, Args: args})
		case st.FileChange != nil:
			fc := st.FileChange
			out = append(out, protocol.FileChange{
				SessionID: sessionID,
				Path:      fc.Path,
				Action:    model.FileAction(fc.Action),
				Content:   fc.Content,
				Diff:      fc.Diff,
			})
		case st.TokenUsage != nil:
			usage, err := rawJSON(st.TokenUsage)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i+1, err)
			}
			out = append(out, protocol.TokenUsage{SessionID: sessionID, Usage: usage})
		case st.Error != "":
			out = append(out, protocol.Error{Message: fmt.Sprintf("session %s: %s", sessionID, fill(st.Error))})
		}
	}
	return out, nil
}

// rawJSON encodes YAML-decoded values. A nil map becomes {}.
func rawJSON(v map[string]any) (json.RawMessage, error) {
	if v == nil {
		return json.RawMessage(`{}`), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode args: %w", err)
	}
	return data, nil
}
