package api

import (
	"fmt"
	"strings"

	"github.com/djlord-it/devtrigger/internal/domain"
)

func parseSource(raw string) (domain.TriggerSource, error) {
	switch s := domain.TriggerSource(strings.ToLower(strings.TrimSpace(raw))); s {
	case "":
		return domain.TriggerSourceSave, nil
	case domain.TriggerSourceSave, domain.TriggerSourceChange, domain.TriggerSourceSchedule, domain.TriggerSourceManual:
		return s, nil
	default:
		return "", fmt.Errorf("source must be one of save, change, schedule, manual")
	}
}

func validateTrigger(req TriggerRequest) (domain.TriggerSource, error) {
	source, err := parseSource(req.Source)
	if err != nil {
		return "", err
	}
	if strings.ContainsRune(req.Path, 0) {
		return "", fmt.Errorf("path must not contain NUL bytes")
	}
	return source, nil
}
