// Package storage persists conversation transcripts as per-device JSON files.
package storage

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// Entry is one transcript line.
type Entry struct {
	Role      string `json:"role"`
	Timestamp string `json:"timestamp"`
	Content   string `json:"content,omitempty"`
	Voice     string `json:"voice,omitempty"`
}

// TranscriptInfo summarizes one stored transcript.
type TranscriptInfo struct {
	UID           string `json:"uid"`
	LatestMessage Entry  `json:"latest_message"`
	Timestamp     string `json:"timestamp"`
}

var safeNamePattern = regexp.MustCompile(`^[A-Za-z0-9_\-\.]+$`)

// CreateTranscript starts a new transcript for a device and returns its uid.
func CreateTranscript(baseDir string, deviceID string) (string, error) {
	if deviceID == "" {
		return "", errors.New("device id is empty")
	}
	dir, err := ensureDeviceDir(baseDir, deviceID)
	if err != nil {
		return "", err
	}
	uid := time.Now().Format("2006-01-02_15-04-05") + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	path := filepath.Join(dir, uid+".json")
	meta := []Entry{{Role: "metadata", Timestamp: time.Now().Format(time.RFC3339)}}
	if err := writeTranscript(path, meta); err != nil {
		return "", err
	}
	return uid, nil
}

// AppendEntry appends one line to an existing transcript.
func AppendEntry(baseDir string, deviceID string, transcriptUID string, entry Entry) error {
	path, err := transcriptPath(baseDir, deviceID, transcriptUID)
	if err != nil {
		return err
	}
	entries, err := readTranscript(path)
	if err != nil {
		return err
	}
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().Format(time.RFC3339)
	}
	entries = append(entries, entry)
	return writeTranscript(path, entries)
}

// GetTranscript returns the conversation lines of one transcript, metadata
// excluded.
func GetTranscript(baseDir string, deviceID string, transcriptUID string) ([]Entry, error) {
	path, err := transcriptPath(baseDir, deviceID, transcriptUID)
	if err != nil {
		return nil, err
	}
	entries, err := readTranscript(path)
	if err != nil {
		return nil, err
	}
	filtered := []Entry{}
	for _, entry := range entries {
		if entry.Role == "metadata" || entry.Role == "system" {
			continue
		}
		filtered = append(filtered, entry)
	}
	return filtered, nil
}

// DeleteTranscript removes one transcript. It reports whether a file was
// actually deleted.
func DeleteTranscript(baseDir string, deviceID string, transcriptUID string) bool {
	path, err := transcriptPath(baseDir, deviceID, transcriptUID)
	if err != nil {
		return false
	}
	if _, err := os.Stat(path); err != nil {
		return false
	}
	if err := os.Remove(path); err != nil {
		return false
	}
	return true
}

// ListTranscripts summarizes a device's transcripts, newest first.
func ListTranscripts(baseDir string, deviceID string) []TranscriptInfo {
	list := []TranscriptInfo{}
	dir, err := ensureDeviceDir(baseDir, deviceID)
	if err != nil {
		return list
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return list
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		transcriptUID := strings.TrimSuffix(entry.Name(), ".json")
		lines, err := readTranscript(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var latest *Entry
		for i := len(lines) - 1; i >= 0; i-- {
			if lines[i].Role == "metadata" {
				continue
			}
			line := lines[i]
			latest = &line
			break
		}
		if latest == nil {
			continue
		}
		list = append(list, TranscriptInfo{
			UID:           transcriptUID,
			LatestMessage: *latest,
			Timestamp:     latest.Timestamp,
		})
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Timestamp > list[j].Timestamp
	})

	return list
}

func ensureDeviceDir(baseDir string, deviceID string) (string, error) {
	if baseDir == "" {
		return "", errors.New("transcript base dir is empty")
	}
	if !safeNamePattern.MatchString(deviceID) {
		return "", errors.New("invalid device id")
	}
	path := filepath.Join(baseDir, deviceID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

func transcriptPath(baseDir string, deviceID string, transcriptUID string) (string, error) {
	if baseDir == "" {
		return "", errors.New("transcript base dir is empty")
	}
	if !safeNamePattern.MatchString(deviceID) || !safeNamePattern.MatchString(transcriptUID) {
		return "", errors.New("invalid transcript path")
	}
	return filepath.Join(baseDir, deviceID, transcriptUID+".json"), nil
}

func readTranscript(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := sonic.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func writeTranscript(path string, entries []Entry) error {
	data, err := sonic.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
