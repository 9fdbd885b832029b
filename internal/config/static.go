package config

import (
	"fmt"
	"strings"
)

type StaticTarget struct {
	ID       string
	Platform string
	Endpoint string
	PSK      string
}

func (t *StaticTarget) EnvDecode(value string) error {
	if value == "" {
		return nil
	}

	parts := strings.Split(value, "|")
	if len(parts) != 4 {
		return fmt.Errorf(`invalid static target entry: %q. Must be on format "id|platform|endpoint|psk"`, value)
	}

	id := strings.TrimSpace(parts[0])
	if id == "" {
		return fmt.Errorf("invalid static target entry: %q. ID must not be empty", value)
	}

	platform := strings.TrimSpace(parts[1])
	if platform == "" {
		return fmt.Errorf("invalid static target entry: %q. Platform must not be empty", value)
	}

	endpoint := strings.TrimSpace(parts[2])
	if endpoint == "" {
		return fmt.Errorf("invalid static target entry: %q. Endpoint must not be empty", value)
	}

	*t = StaticTarget{
		ID:       id,
		Platform: platform,
		Endpoint: strings.TrimSuffix(endpoint, "/"),
		PSK:      strings.TrimSpace(parts[3]),
	}
	return nil
}

// StaticExpert is an expert reviewer with optional expertise tags.
type StaticExpert struct {
	ID        string
	Expertise []string
}

func (e *StaticExpert) EnvDecode(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	id, tags, _ := strings.Cut(value, ":")
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("invalid expert entry: %q. User must not be empty", value)
	}

	expertise := []string{}
	for _, tag := range strings.Split(tags, "+") {
		if tag = strings.TrimSpace(tag); tag != "" {
			expertise = append(expertise, tag)
		}
	}

	*e = StaticExpert{ID: id, Expertise: expertise}
	return nil
}
