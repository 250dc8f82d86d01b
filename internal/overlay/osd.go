package overlay

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Subtitles writes one-line SRT files that players render as an on-screen
// channel name. SRT cues top out just below 100 hours.
type Subtitles struct {
	Dir string
}

const osdCue = "00:00:00,000 --> 99:00:00,000"

// Path writes the subtitle for window key and returns its path.
func (s Subtitles) Path(key, label string) (string, error) {
	if label == "" {
		return "", nil
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("osd: %w", err)
	}
	path := filepath.Join(s.Dir, key+".srt")
	body := fmt.Sprintf("1\n%s\n%s\n", osdCue, strings.ReplaceAll(label, "\n", " "))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("osd: %w", err)
	}
	return path, nil
}
