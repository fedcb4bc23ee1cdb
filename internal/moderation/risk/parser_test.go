package risk

import (
	"testing"

	"github.com/iamwavecut/phishguard/internal/moderation"
)

func TestResponseParser(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply string
		want  moderation.RiskCategory
	}{
		{"label dangerous", "VERDICT: DANGEROUS\nANALYSIS: fake giveaway", moderation.RiskDangerous},
		{"label scam lowercase", "verdict: scam", moderation.RiskDangerous},
		{"label suspicious in markdown", "**VERDICT:** _Suspicious_\nADVICE: do not pay", moderation.RiskSuspicious},
		{"label safe", "VERDICT: SAFE\nANALYSIS: nothing is dangerous here", moderation.RiskSafe},
		{"russian label", "1. ВЕРДИКТ: СКАМ\n2. АНАЛИЗ: срочность", moderation.RiskDangerous},
		{"russian safe is not dangerous", "ВЕРДИКТ: БЕЗОПАСНО", moderation.RiskSafe},
		{"no label single marker", "This looks suspicious to me.", moderation.RiskSuspicious},
		{"no label conflicting markers", "It may be safe, or it may be a scam.", moderation.RiskUnknown},
		{"unsafe is not safe", "This is unsafe.", moderation.RiskUnknown},
		{"no marker", "I cannot help with that.", moderation.RiskUnknown},
		{"empty", "", moderation.RiskUnknown},
		{"ambiguous label falls back to body", "VERDICT: ?\nDefinitely DANGEROUS.", moderation.RiskDangerous},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := (ResponseParser{}).Parse(tt.reply); got != tt.want {
				t.Fatalf("got %s want %s", got, tt.want)
			}
		})
	}
}
