package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// FingerprintParams are the inputs that address one pipeline run. Two runs
// with identical params share artifacts, which is what makes resume and
// re-extraction idempotent.
type FingerprintParams struct {
	SourcePath  string
	MinDurSec   int
	MaxDurSec   int
	TopN        int
	Language    string
	Style       string
	TTSProvider string
	AIProvider  string
}

// Fingerprint returns the deterministic hash of a run's source and
// processing parameters.
func Fingerprint(p FingerprintParams) string {
	payload := strings.Join([]string{
		p.SourcePath,
		fmt.Sprintf("%d-%d-%d", p.MinDurSec, p.MaxDurSec, p.TopN),
		p.Language,
		p.Style,
		p.TTSProvider,
		p.AIProvider,
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// CandidateScope names one fan-out branch within a run fingerprint.
func CandidateScope(index int) string {
	return fmt.Sprintf("candidate-%d", index)
}
