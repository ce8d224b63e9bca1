package pattern

import "regexp"

// builtins returns the builtin secret catalog. Keys double as policy
// configuration keys; prefixes are the placeholder prefix words.
func builtins() []SecretPattern {
	return []SecretPattern{
		{
			Key:      "openai",
			Name:     "OpenAI API Key",
			Regexp:   regexp.MustCompile(`\b(sk-[a-zA-Z0-9]{48,})\b`),
			Keywords: []string{"sk-", "openai"},
			Prefix:   "OPENAI_KEY",
		},
		{
			Key:      "anthropic",
			Name:     "Anthropic API Key",
			Regexp:   regexp.MustCompile(`\b(sk-ant-[a-zA-Z0-9\-_=+/]{95,100})\b`),
			Keywords: []string{"sk-ant", "anthropic"},
			Prefix:   "ANTHROPIC_KEY",
		},
		{
			Key:      "aws_access_key",
			Name:     "AWS Access Key",
			Regexp:   regexp.MustCompile(`\b((?:AKIA|ABIA|ACCA)[A-Z0-9]{16})\b`),
			Keywords: []string{"akia", "abia", "acca", "aws"},
			Prefix:   "AWS_ACCESS_KEY",
		},
		{
			Key:        "aws_secret",
			Name:       "AWS Secret",
			Regexp:     regexp.MustCompile(`\b([A-Za-z0-9+/]{40})\b`),
			Keywords:   []string{"aws", "secret"},
			MinEntropy: 3.0,
			Prefix:     "AWS_SECRET",
		},
		{
			Key:      "github_pat",
			Name:     "GitHub Personal Access Token",
			Regexp:   regexp.MustCompile(`\b((?:ghp|gho|ghu|ghs|ghr|github_pat)_[a-zA-Z0-9_]{36,255})\b`),
			Keywords: []string{"ghp_", "gho_", "ghu_", "ghs_", "ghr_", "github_pat_"},
			Prefix:   "GITHUB_TOKEN",
		},
		{
			Key:      "stripe",
			Name:     "Stripe API Key",
			Regexp:   regexp.MustCompile(`\b((?:sk|pk|rk)_(?:live|test)_[a-zA-Z0-9]{24,99})\b`),
			Keywords: []string{"sk_live_", "sk_test_", "pk_live_", "pk_test_", "rk_live_", "rk_test_"},
			Prefix:   "STRIPE_KEY",
		},
		{
			Key:      "slack_token",
			Name:     "Slack Token",
			Regexp:   regexp.MustCompile(`\b(xox[bpras]-[0-9a-zA-Z\-]{20,146})\b`),
			Keywords: []string{"xoxb", "xoxp", "xoxr", "xoxa", "xoxs", "slack"},
			Prefix:   "SLACK_TOKEN",
		},
		{
			Key:      "google_api",
			Name:     "Google API Key",
			Regexp:   regexp.MustCompile(`\b(AIza[0-9a-zA-Z_-]{35})\b`),
			Keywords: []string{"aiza", "google"},
			Prefix:   "GOOGLE_API_KEY",
		},
		{
			Key:        "generic_api_key",
			Name:       "Generic API Key",
			Regexp:     regexp.MustCompile(`\b([a-zA-Z0-9]{32,})\b`),
			Keywords:   []string{"api", "key", "token", "secret"},
			MinEntropy: 3.5,
			Prefix:     "API_KEY",
		},
		{
			Key:        "hex_secret",
			Name:       "Hex Secret",
			Regexp:     regexp.MustCompile(`\b([a-f0-9]{32,})\b`),
			Keywords:   []string{"secret", "token", "key"},
			MinEntropy: 2.5,
			Prefix:     "HEX_SECRET",
		},
		{
			Key:      "jwt_token",
			Name:     "JWT Token",
			Regexp:   regexp.MustCompile(`\b(eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+)\b`),
			Keywords: []string{"jwt", "bearer", "authorization", "eyj"},
			Prefix:   "JWT_TOKEN",
		},
		{
			Key:        "private_key_header",
			Name:       "Private Key",
			Regexp:     regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH )?PRIVATE KEY-----`),
			Keywords:   []string{"begin", "private", "key"},
			Prefix:     "PRIVATE_KEY",
			AllowShort: true,
		},
	}
}
