package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrPositiveGroupID is returned when a group chat ID is not negative.
var ErrPositiveGroupID = errors.New("config: group chat id must be negative")

// PromptFileValues interactively asks for the file-backed values that are
// still empty in current and returns the merged result. Secrets are never
// prompted for; they belong in the environment or .env.
func PromptFileValues(in io.Reader, out io.Writer, current FileValues) (FileValues, error) {
	reader := bufio.NewReader(in)
	values := current

	fmt.Fprintln(out, "=== Telegram Teams bot setup ===")
	if values.GroupChatID == 0 {
		raw, err := ask(reader, out, "Supergroup chat ID (e.g., -1001234567890): ")
		if err != nil {
			return current, err
		}
		id, err := ParseGroupChatID(raw)
		if err != nil {
			return current, err
		}
		values.GroupChatID = id
	}
	if values.MailFrom == "" {
		raw, err := ask(reader, out, "Sender email for confirmations (e.g., bot@gmail.com): ")
		if err != nil {
			return current, err
		}
		values.MailFrom = raw
	}
	if values.TeamsInviteLink == "" {
		raw, err := ask(reader, out, "Teams invite link (optional, press enter to skip): ")
		if err != nil {
			return current, err
		}
		values.TeamsInviteLink = raw
	}
	return values, nil
}

// ParseGroupChatID parses a Telegram group ID, which is always negative.
func ParseGroupChatID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "-") {
		return 0, ErrPositiveGroupID
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid group chat id %q: %w", raw, err)
	}
	return id, nil
}

func ask(reader *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("config: setup aborted: %w", err)
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}
