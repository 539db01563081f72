// Package passpolicy scores password strength. The scoring is deterministic
// and shared by first-run setup, user creation and password changes.
package passpolicy

import (
	"strings"
	"unicode"
)

const (
	MinLength    = 12
	MinScore     = 50
	SpecialChars = "!@#$%^&*()_+-=[]{}|;:,.<>?"
)

// Strength labels.
const (
	Weak   = "weak"
	Medium = "medium"
	Strong = "strong"
)

// WeakWords are rejected anywhere in a password, case-insensitively.
var WeakWords = []string{
	"password", "admin", "qwerty", "letmein", "welcome", "monkey",
	"dragon", "master", "login", "abc123", "iloveyou", "123456",
}

// Analysis is the outcome of Analyze.
type Analysis struct {
	IsValid  bool
	Score    int
	Strength string
	Errors   []string
}

// Snapshot is the policy stored alongside the user directory.
type Snapshot struct {
	MinLength      int  `json:"min_length"`
	MinScore       int  `json:"min_score"`
	RequireUpper   bool `json:"require_upper"`
	RequireLower   bool `json:"require_lower"`
	RequireDigit   bool `json:"require_digit"`
	RequireSpecial bool `json:"require_special"`
	HistorySize    int  `json:"history_size"`
}

// CurrentSnapshot describes the rules Analyze enforces.
func CurrentSnapshot(historySize int) Snapshot {
	return Snapshot{
		MinLength:      MinLength,
		MinScore:       MinScore,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
		HistorySize:    historySize,
	}
}

// Analyze scores password for username. The password is valid only when no
// hard rule failed and the clamped score reaches MinScore.
func Analyze(password, username string) Analysis {
	var (
		score int
		errs  []string
	)
	n := len([]rune(password))

	if n < MinLength {
		errs = append(errs, "password must be at least 12 characters long")
	} else {
		score += 20
		if n >= 16 {
			score += 10
		}
		if n >= 20 {
			score += 10
		}
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
		if strings.ContainsRune(SpecialChars, r) {
			hasSpecial = true
		}
	}

	classes := []struct {
		ok  bool
		msg string
	}{
		{hasUpper, "password must contain an uppercase letter"},
		{hasLower, "password must contain a lowercase letter"},
		{hasDigit, "password must contain a digit"},
		{hasSpecial, "password must contain a special character (" + SpecialChars + ")"},
	}
	for _, c := range classes {
		if c.ok {
			score += 15
		} else {
			errs = append(errs, c.msg)
		}
	}

	if n > 0 && float64(uniqueRunes(password))/float64(n) >= 0.6 {
		score += 10
	}

	lower := strings.ToLower(password)

	if u := strings.ToLower(username); u != "" && strings.Contains(lower, u) {
		score -= 20
		errs = append(errs, "password must not contain the username")
	}
	if hasRepeatRun(password) {
		score -= 15
		errs = append(errs, "password must not contain 3 or more repeated characters")
	}
	if hasSequence(lower, '0', '9') {
		score -= 15
		errs = append(errs, "password must not contain numeric sequences (e.g. 123)")
	}
	if hasSequence(lower, 'a', 'z') {
		score -= 15
		errs = append(errs, "password must not contain alphabetic sequences (e.g. abc)")
	}
	for _, w := range WeakWords {
		if strings.Contains(lower, w) {
			score -= 15
			errs = append(errs, "password must not contain common words")
			break
		}
	}

	score = max(0, min(100, score))

	return Analysis{
		IsValid:  len(errs) == 0 && score >= MinScore,
		Score:    score,
		Strength: StrengthLabel(score),
		Errors:   errs,
	}
}

// StrengthLabel maps a score to weak (<60), medium (<80) or strong.
func StrengthLabel(score int) string {
	switch {
	case score < 60:
		return Weak
	case score < 80:
		return Medium
	default:
		return Strong
	}
}

func uniqueRunes(s string) int {
	seen := map[rune]struct{}{}
	for _, r := range s {
		seen[r] = struct{}{}
	}
	return len(seen)
}

func hasRepeatRun(s string) bool {
	r := []rune(s)
	for i := 0; i+2 < len(r); i++ {
		if r[i] == r[i+1] && r[i+1] == r[i+2] {
			return true
		}
	}
	return false
}

// hasSequence reports three ascending consecutive characters in [lo, hi].
func hasSequence(s string, lo, hi rune) bool {
	r := []rune(s)
	in := func(c rune) bool { return c >= lo && c <= hi }
	for i := 0; i+2 < len(r); i++ {
		if in(r[i]) && in(r[i+1]) && in(r[i+2]) && r[i+1] == r[i]+1 && r[i+2] == r[i]+2 {
			return true
		}
	}
	return false
}
