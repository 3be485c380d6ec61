package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileValues are the non-secret settings that may live in the local
// fallback file. Secrets are only ever read from the environment.
type FileValues struct {
	GroupChatID      int64  `yaml:"group_chat_id,omitempty"`
	MailFrom         string `yaml:"mail_from,omitempty"`
	MailFromName     string `yaml:"mail_from_name,omitempty"`
	TeamsInviteLink  string `yaml:"teams_invite_link,omitempty"`
	QueueFilePath    string `yaml:"queue_file_path,omitempty"`
	GitHubRepository string `yaml:"github_repository,omitempty"`
	GitHubFilePath   string `yaml:"github_file_path,omitempty"`
	GitHubBranch     string `yaml:"github_branch,omitempty"`
	TeamsCommunityID string `yaml:"teams_community_id,omitempty"`
}

// ReadFile parses the fallback file at path.
func ReadFile(path string) (FileValues, error) {
	var values FileValues
	data, err := os.ReadFile(path)
	if err != nil {
		return values, err
	}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return values, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return values, nil
}

// WriteFile saves values to path, creating parent directories.
func WriteFile(path string, values FileValues) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("config: encode file values: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// FileValues returns the file-backed subset of c.
func (c *Config) FileValues() FileValues {
	return FileValues{
		GroupChatID:      c.TelegramGroupChatID,
		MailFrom:         c.MailFrom,
		MailFromName:     c.MailFromName,
		TeamsInviteLink:  c.TeamsInviteLink,
		QueueFilePath:    c.QueueFilePath,
		GitHubRepository: c.GitHubRepository,
		GitHubFilePath:   c.GitHubFilePath,
		GitHubBranch:     c.GitHubBranch,
		TeamsCommunityID: c.TeamsCommunityID,
	}
}

// applyFile fills fields the environment left empty.
func (c *Config) applyFile(f FileValues) {
	if c.TelegramGroupChatID == 0 {
		c.TelegramGroupChatID = f.GroupChatID
	}
	fill(&c.MailFrom, f.MailFrom)
	fill(&c.MailFromName, f.MailFromName)
	fill(&c.TeamsInviteLink, f.TeamsInviteLink)
	fill(&c.QueueFilePath, f.QueueFilePath)
	fill(&c.GitHubRepository, f.GitHubRepository)
	fill(&c.GitHubFilePath, f.GitHubFilePath)
	fill(&c.GitHubBranch, f.GitHubBranch)
	fill(&c.TeamsCommunityID, f.TeamsCommunityID)
}

func fill(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
