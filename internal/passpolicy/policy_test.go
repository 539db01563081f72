package passpolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyze_TruthTable(t *testing.T) {
	tests := []struct {
		name       string
		password   string
		username   string
		wantValid  bool
		wantScore  int
		wantLabel  string
		wantErrors []string
	}{
		{
			name:      "strong mixed password",
			password:  "N7!xTq4#Lm2@Vp9",
			username:  "tester",
			wantValid: true,
			wantScore: 90,
			wantLabel: Strong,
		},
		{
			name:      "lowercase with common word",
			password:  "weakpassword12",
			wantValid: false,
			wantScore: 45,
			wantLabel: Weak,
			wantErrors: []string{
				"password must contain an uppercase letter",
				"password must contain a special character (" + SpecialChars + ")",
				"password must not contain common words",
			},
		},
		{
			name:      "contains username",
			password:  "Admin_user#2026",
			username:  "admin_user",
			wantValid: false,
			wantScore: 55,
			wantLabel: Weak,
			wantErrors: []string{
				"password must not contain the username",
				"password must not contain common words",
			},
		},
		{
			name:      "too short gets no length bonus",
			password:  "Aa1!Aa1!",
			wantValid: false,
			wantScore: 60,
			wantLabel: Medium,
			wantErrors: []string{
				"password must be at least 12 characters long",
			},
		},
		{
			name:       "repeated characters",
			password:   "Zx!9Qw#4Lp@@@",
			wantValid:  false,
			wantScore:  75,
			wantLabel:  Medium,
			wantErrors: []string{"password must not contain 3 or more repeated characters"},
		},
		{
			name:       "numeric run",
			password:   "Zx!9Qw#456Lp@",
			wantValid:  false,
			wantScore:  75,
			wantLabel:  Medium,
			wantErrors: []string{"password must not contain numeric sequences (e.g. 123)"},
		},
		{
			name:       "alphabetic run",
			password:   "Zx!9Qw#4Lpqr@",
			wantValid:  false,
			wantScore:  75,
			wantLabel:  Medium,
			wantErrors: []string{"password must not contain alphabetic sequences (e.g. abc)"},
		},
		{
			name:      "long password clamps at 100",
			password:  "Tr0ub4dor&Horse!Gl4ss",
			wantValid: true,
			wantScore: 100,
			wantLabel: Strong,
		},
		{
			name:      "empty password",
			password:  "",
			wantValid: false,
			wantScore: 0,
			wantLabel: Weak,
			wantErrors: []string{
				"password must be at least 12 characters long",
				"password must contain an uppercase letter",
				"password must contain a lowercase letter",
				"password must contain a digit",
				"password must contain a special character (" + SpecialChars + ")",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Analyze(tt.password, tt.username)

			assert.Equal(t, tt.wantValid, got.IsValid)
			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, tt.wantLabel, got.Strength)
			assert.ElementsMatch(t, tt.wantErrors, got.Errors)
		})
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	a := Analyze("N7!xTq4#Lm2@Vp9", "bob")
	b := Analyze("N7!xTq4#Lm2@Vp9", "bob")
	assert.Equal(t, a, b)
}

func TestAnalyze_UsernameCaseInsensitive(t *testing.T) {
	got := Analyze("xx!9QwBOBBY#4Lp", "Bobby")
	assert.Contains(t, got.Errors, "password must not contain the username")
}

func TestStrengthLabel(t *testing.T) {
	assert.Equal(t, Weak, StrengthLabel(0))
	assert.Equal(t, Weak, StrengthLabel(59))
	assert.Equal(t, Medium, StrengthLabel(60))
	assert.Equal(t, Medium, StrengthLabel(79))
	assert.Equal(t, Strong, StrengthLabel(80))
	assert.Equal(t, Strong, StrengthLabel(100))
}

func TestCurrentSnapshot(t *testing.T) {
	s := CurrentSnapshot(5)
	assert.Equal(t, MinLength, s.MinLength)
	assert.Equal(t, MinScore, s.MinScore)
	assert.Equal(t, 5, s.HistorySize)
	assert.True(t, s.RequireSpecial)
}
