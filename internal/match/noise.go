package match

import (
	"regexp"
	"strings"

	"github.com/s0len/Playbook/internal/metadata"
)

// noiseTokens are broadcast/provider tags filtered out of session tokens
// before lookup.
var noiseTokens = []string{
	"f1live", "f1tv", "f1kids", "sky", "intl", "international", "proper", "verum",
}

// noiseProviders end a team name when they appear as a standalone word.
var noiseProviders = map[string]bool{
	"sky": true, "fubo": true, "espn": true, "espnplus": true, "tsn": true,
	"nbcsn": true, "fox": true, "verum": true,
}

var (
	resolutionPattern = regexp.MustCompile(`^\d{3,4}p$`)
	fpsPattern        = regexp.MustCompile(`^\d{2}fps$`)
	partSuffixPattern = regexp.MustCompile(`part\d+`)
	spacePattern      = regexp.MustCompile(`\s+`)
)

// stripNoise removes known noise tokens from a normalized session token.
func stripNoise(normalized string) string {
	result := spacePattern.ReplaceAllString(normalized, " ")
	result = strings.TrimSpace(result)
	for _, token := range noiseTokens {
		result = strings.ReplaceAll(result, token, "")
	}
	return result
}

// stripTeamNoise truncates a raw team capture at the first token that looks
// like resolution, frame rate, a provider tag, or a release marker.
func stripTeamNoise(value string) string {
	var cleaned []string
	for _, token := range strings.Fields(value) {
		lowered := strings.ToLower(token)
		if isAllDigits(lowered) {
			break
		}
		if resolutionPattern.MatchString(lowered) || fpsPattern.MatchString(lowered) {
			break
		}
		if noiseProviders[strings.ReplaceAll(lowered, "+", "")] {
			break
		}
		if lowered == "proper" || lowered == "repack" || lowered == "web" || lowered == "hdtv" {
			break
		}
		cleaned = append(cleaned, token)
	}
	return strings.TrimSpace(strings.Join(cleaned, " "))
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

// normalizedSessionToken strips noise from the normalized form of a value.
func normalizedSessionToken(value string) string {
	return stripNoise(metadata.NormalizeToken(value))
}

// withoutPartSuffix removes "partN" markers ("racepart1" -> "race"), or
// returns "" when nothing changes.
func withoutPartSuffix(normalized string) string {
	if !strings.Contains(normalized, "part") {
		return ""
	}
	cleaned := strings.TrimSpace(partSuffixPattern.ReplaceAllString(normalized, ""))
	if cleaned == normalized {
		return ""
	}
	return cleaned
}
