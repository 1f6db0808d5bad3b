package edge

import "strings"

// BenignBots is the static allowlist of substrings identifying
// well-known public crawlers, matched case-insensitively against the
// User-Agent header. Seeded from the same public "ai.robots.txt"-style
// crawler census the pack's own robots.txt fixture draws from (see
// DESIGN.md), trimmed to a representative, maintainable subset.
var BenignBots = []string{
	"googlebot", "bingbot", "duckduckbot", "baiduspider", "yandexbot", "yandex",
	"slurp", "applebot", "facebookexternalhit", "facebookbot", "twitterbot",
	"linkedinbot", "pinterestbot", "slackbot", "discordbot", "telegrambot",
	"whatsapp",
}

// HostileBots is the weighted-heuristic substring list for automated
// clients that are not on the benign list: scraping frameworks, AI
// crawlers that ignore robots.txt, and generic security/recon tooling.
var HostileBots = []string{
	"gptbot", "ccbot", "bytespider", "scrapy", "python-requests", "python-urllib",
	"curl", "wget", "masscan", "sqlmap", "nmap", "nikto", "go-http-client",
	"libwww-perl", "httpclient", "aiohttp", "okhttp", "claudebot",
	"anthropic-ai", "omgili", "semrushbot", "ahrefsbot", "mj12bot", "dotbot",
	"petalbot",
}

func matchesAny(haystack string, needles []string) (bool, string) {
	lower := strings.ToLower(haystack)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true, n
		}
	}
	return false, ""
}

// IsBenignBot reports whether userAgent matches the benign allowlist.
func IsBenignBot(userAgent string) (bool, string) {
	return matchesAny(userAgent, BenignBots)
}

// IsHostileBot reports whether userAgent matches the hostile substring
// list.
func IsHostileBot(userAgent string) (bool, string) {
	return matchesAny(userAgent, HostileBots)
}
