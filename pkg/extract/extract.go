// Package extract pulls contact signals out of free-text channel
// descriptions: email addresses and social media profile links. All
// functions are pure.
package extract

import (
	"regexp"
	"strings"

	"github.com/streamscout/twitch-scout/pkg/models"
)

var (
	twitterPattern   = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(?:twitter\.com|x\.com)/([a-zA-Z0-9_]+)`)
	instagramPattern = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?instagram\.com/([a-zA-Z0-9_.]+)`)
	tiktokPattern    = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?tiktok\.com/@([a-zA-Z0-9_.]+)`)

	youtubePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?youtube\.com/(?:c/|channel/|user/|@)?([a-zA-Z0-9_-]+)`),
		regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?youtu\.be/([a-zA-Z0-9_-]+)`),
	}

	discordPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?discord\.gg/([a-zA-Z0-9]+)`),
		regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?discord\.com/invite/([a-zA-Z0-9]+)`),
	}

	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
)

// falsePositiveEmails are placeholder addresses that show up in templates
// and boilerplate, never real contacts.
var falsePositiveEmails = map[string]struct{}{
	"example@example.com": {},
	"email@example.com":   {},
	"your@email.com":      {},
	"youremail@email.com": {},
	"noreply@twitch.tv":   {},
	"support@twitch.tv":   {},
	"test@test.com":       {},
	"user@domain.com":     {},
}

var falsePositiveEmailPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^noreply@`),
	regexp.MustCompile(`(?i)^no-reply@`),
	regexp.MustCompile(`(?i)^donotreply@`),
	regexp.MustCompile(`(?i)^support@`),
	regexp.MustCompile(`(?i)^info@twitch`),
	regexp.MustCompile(`(?i)@example\.`),
}

// Socials extracts all recognized social media links from text.
func Socials(text string) models.SocialLinks {
	if text == "" {
		return models.SocialLinks{}
	}
	return models.SocialLinks{
		Twitter:   firstMatch(text, "https://twitter.com/", twitterPattern),
		Instagram: firstMatch(text, "https://instagram.com/", instagramPattern),
		YouTube:   firstMatchAny(text, "https://youtube.com/", youtubePatterns),
		Discord:   firstMatchAny(text, "https://discord.gg/", discordPatterns),
		TikTok:    firstMatch(text, "https://tiktok.com/@", tiktokPattern),
	}
}

// Emails extracts email addresses from text, dropping known false
// positives and deduplicating case-insensitively. First-seen casing is
// preserved.
func Emails(text string) []string {
	if text == "" {
		return nil
	}

	var emails []string
	seen := make(map[string]struct{})
	for _, match := range emailPattern.FindAllString(text, -1) {
		lower := strings.ToLower(match)
		if _, dup := seen[lower]; dup {
			continue
		}
		if isFalsePositive(lower) {
			continue
		}
		seen[lower] = struct{}{}
		emails = append(emails, match)
	}
	return emails
}

func isFalsePositive(email string) bool {
	if _, ok := falsePositiveEmails[email]; ok {
		return true
	}
	for _, p := range falsePositiveEmailPatterns {
		if p.MatchString(email) {
			return true
		}
	}
	return false
}

func firstMatch(text, base string, pattern *regexp.Regexp) string {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return base + m[1]
}

func firstMatchAny(text, base string, patterns []*regexp.Regexp) string {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return base + m[1]
		}
	}
	return ""
}
