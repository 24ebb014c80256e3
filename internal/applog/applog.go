// Package applog is the append-only JSONL conversation log: one file per
// (agent, topic), written in append-mode and read back line by line.
package applog

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/CLIAIRMONITOR/memoryd/internal/apperr"
	"github.com/CLIAIRMONITOR/memoryd/internal/message"
)

// AppendLog is the durable, append-only conversation store.
type AppendLog struct {
	basePath string
}

// New creates an AppendLog rooted at basePath (the "conversations" directory).
func New(basePath string) (*AppendLog, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, apperr.WrapIO(err, "create conversations directory")
	}
	return &AppendLog{basePath: basePath}, nil
}

func (l *AppendLog) agentDir(agentID string) string {
	return filepath.Join(l.basePath, agentID)
}

func (l *AppendLog) logPath(agentID, topicID string) string {
	return filepath.Join(l.agentDir(agentID), topicID+".jsonl")
}

func (l *AppendLog) ensureAgentDir(agentID string) error {
	if err := os.MkdirAll(l.agentDir(agentID), 0o755); err != nil {
		return apperr.WrapIO(err, "create agent directory for %s", agentID)
	}
	return nil
}

// Append writes one message to the end of its topic's log and returns the
// byte offset at which the record begins.
func (l *AppendLog) Append(msg *message.Message) (int64, error) {
	if err := l.ensureAgentDir(msg.AgentID); err != nil {
		return 0, err
	}

	path := l.logPath(msg.AgentID, msg.TopicID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, apperr.WrapIO(err, "open log for append: %s", path)
	}
	defer f.Close()

	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, apperr.WrapIO(err, "seek end of log: %s", path)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return 0, apperr.WrapJSON(err, "marshal message %s", msg.ID)
	}
	data = append(data, '\n')

	if _, err := f.Write(data); err != nil {
		return 0, apperr.WrapIO(err, "write log record: %s", path)
	}

	return offset, nil
}

// ReadAll returns every message in a topic's log, in append order. A
// missing file is not an error — it returns an empty slice.
func (l *AppendLog) ReadAll(agentID, topicID string) ([]*message.Message, error) {
	path := l.logPath(agentID, topicID)

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return []*message.Message{}, nil
	}
	if err != nil {
		return nil, apperr.WrapIO(err, "open log: %s", path)
	}
	defer f.Close()

	var messages []*message.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var msg message.Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			return nil, apperr.WrapJSON(err, "parse log line in %s", path)
		}
		messages = append(messages, &msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, apperr.WrapIO(err, "scan log: %s", path)
	}

	if messages == nil {
		messages = []*message.Message{}
	}
	return messages, nil
}

// ReadLastN returns the last n messages (the stable tail) of a topic's log.
func (l *AppendLog) ReadLastN(agentID, topicID string, n int) ([]*message.Message, error) {
	all, err := l.ReadAll(agentID, topicID)
	if err != nil {
		return nil, err
	}
	start := len(all) - n
	if start < 0 {
		start = 0
	}
	return all[start:], nil
}

// ReadAtOffset reads the single message whose record begins at offset.
func (l *AppendLog) ReadAtOffset(agentID, topicID string, offset int64) (*message.Message, error) {
	path := l.logPath(agentID, topicID)

	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.WrapIO(err, "open log: %s", path)
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, apperr.WrapIO(err, "seek offset %d in %s", offset, path)
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	if !scanner.Scan() {
		return nil, apperr.NotFound("no message at offset %d in %s", offset, path)
	}

	var msg message.Message
	if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
		return nil, apperr.WrapJSON(err, "parse log line at offset %d in %s", offset, path)
	}
	return &msg, nil
}

// Count returns the number of messages in a topic's log.
func (l *AppendLog) Count(agentID, topicID string) (int, error) {
	all, err := l.ReadAll(agentID, topicID)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

// TotalTokens sums the token count of every message in a topic's log.
func (l *AppendLog) TotalTokens(agentID, topicID string) (uint32, error) {
	all, err := l.ReadAll(agentID, topicID)
	if err != nil {
		return 0, err
	}
	var total uint32
	for _, m := range all {
		total += m.Tokens
	}
	return total, nil
}

// FileSize returns the size in bytes of a topic's log file (0 if missing).
func (l *AppendLog) FileSize(agentID, topicID string) (int64, error) {
	path := l.logPath(agentID, topicID)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, apperr.WrapIO(err, "stat log: %s", path)
	}
	return info.Size(), nil
}

// ListTopics enumerates the topic IDs for an agent.
func (l *AppendLog) ListTopics(agentID string) ([]string, error) {
	dir := l.agentDir(agentID)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, apperr.WrapIO(err, "list topics for %s", agentID)
	}

	topics := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".jsonl") {
			topics = append(topics, strings.TrimSuffix(name, ".jsonl"))
		}
	}
	return topics, nil
}

// ListAgents enumerates every agent directory under the conversations root.
func (l *AppendLog) ListAgents() ([]string, error) {
	entries, err := os.ReadDir(l.basePath)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, apperr.WrapIO(err, "list agents")
	}

	agents := []string{}
	for _, e := range entries {
		if e.IsDir() {
			agents = append(agents, e.Name())
		}
	}
	return agents, nil
}

// DeleteTopic removes a topic's log file entirely.
func (l *AppendLog) DeleteTopic(agentID, topicID string) error {
	path := l.logPath(agentID, topicID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return apperr.WrapIO(err, "delete topic log: %s", path)
	}
	return nil
}

// ExportTopic writes a topic's messages to a single pretty-printed JSON file.
func (l *AppendLog) ExportTopic(agentID, topicID, outputPath string) error {
	messages, err := l.ReadAll(agentID, topicID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return apperr.WrapJSON(err, "marshal export for %s/%s", agentID, topicID)
	}

	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return apperr.WrapIO(err, "write export: %s", outputPath)
	}
	return nil
}

// ImportTopic reads messages from a JSON file exported by ExportTopic and
// appends them to the target (agentID, topicID) log, rewriting each
// record's agent/topic identifiers to the target.
func (l *AppendLog) ImportTopic(agentID, topicID, inputPath string) (int, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return 0, apperr.WrapIO(err, "read import file: %s", inputPath)
	}

	var messages []*message.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return 0, apperr.WrapJSON(err, "parse import file: %s", inputPath)
	}

	for _, m := range messages {
		m.AgentID = agentID
		m.TopicID = topicID
		if _, err := l.Append(m); err != nil {
			return 0, err
		}
	}
	return len(messages), nil
}
