// Package modelmeta synthesizes the metadata Ollama clients expect
// (family, parameter size, capabilities, digest, size) from nothing
// but a model's name. None of it is backed by a real inspection of the
// model file — LM Studio never exposes that detail over its API — so
// every value here is a heuristic, not a measurement.
package modelmeta

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// Family names a recognized model lineage.
type Family string

const (
	FamilyLlama     Family = "llama"
	FamilyMistral   Family = "mistral"
	FamilyQwen      Family = "qwen"
	FamilyGemma     Family = "gemma"
	FamilyPhi       Family = "phi"
	FamilyDeepseek  Family = "deepseek"
	FamilyGranite   Family = "granite"
	FamilyNomicBert Family = "nomic-bert"
	FamilyOther     Family = "other"
)

var familySubstrings = []struct {
	substr string
	family Family
}{
	{"llama", FamilyLlama},
	{"mistral", FamilyMistral},
	{"mixtral", FamilyMistral},
	{"qwen", FamilyQwen},
	{"gemma", FamilyGemma},
	{"phi", FamilyPhi},
	{"deepseek", FamilyDeepseek},
	{"granite", FamilyGranite},
	{"nomic", FamilyNomicBert},
}

// DetermineModelFamily returns the recognized family for name plus the
// families list Ollama's /api/tags response expects (the family itself
// followed by any broader parent lineage it belongs to).
func DetermineModelFamily(name string) (Family, []string) {
	lower := strings.ToLower(name)
	for _, entry := range familySubstrings {
		if strings.Contains(lower, entry.substr) {
			return entry.family, []string{string(entry.family)}
		}
	}
	return FamilyOther, []string{string(FamilyOther)}
}

var parameterSizeSubstrings = []struct {
	substr string
	size   string
}{
	{"70b", "70B"},
	{"34b", "34B"},
	{"27b", "27B"},
	{"14b", "14B"},
	{"13b", "13B"},
	{"8b", "8B"},
	{"7b", "7B"},
	{"3b", "3B"},
	{"1b", "1B"},
}

// DetermineParameterSize returns the parameter-size bucket encoded in
// name's substrings, or "unknown" when none match.
func DetermineParameterSize(name string) string {
	lower := strings.ToLower(name)
	for _, entry := range parameterSizeSubstrings {
		if strings.Contains(lower, entry.substr) {
			return entry.size
		}
	}
	return "unknown"
}

var bytesPerBillionParams int64 = 1_000_000_000 // rough estimate of one byte per parameter: "8B" reports 8,000,000,000 bytes

// EstimateModelSize converts a parameter-size bucket (as returned by
// DetermineParameterSize) into an approximate byte count.
func EstimateModelSize(parameterSize string) int64 {
	digits := strings.TrimSuffix(strings.ToUpper(parameterSize), "B")
	n, err := parseIntLoose(digits)
	if err != nil {
		return 0
	}
	return n * bytesPerBillionParams
}

func parseIntLoose(s string) (int64, error) {
	var n int64
	if s == "" {
		return 0, errNotNumeric
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errNotNumeric
		}
		n = n*10 + int64(r-'0')
	}
	return n, nil
}

var errNotNumeric = &notNumericError{}

type notNumericError struct{}

func (*notNumericError) Error() string { return "not numeric" }

// Capability is a feature Ollama's /api/show response advertises for a
// model.
type Capability string

const (
	CapabilityChat       Capability = "chat"
	CapabilityCompletion Capability = "completion"
	CapabilityEmbeddings Capability = "embeddings"
	CapabilityVision     Capability = "vision"
	CapabilityTools      Capability = "tools"
)

// DetermineModelCapabilities infers the capability set from name's
// substrings. Chat and completion are assumed unless the name clearly
// identifies an embeddings-only model.
func DetermineModelCapabilities(name string) []Capability {
	lower := strings.ToLower(name)

	if strings.Contains(lower, "embed") || strings.Contains(lower, "nomic") || strings.Contains(lower, "bge") {
		return []Capability{CapabilityEmbeddings}
	}

	caps := []Capability{CapabilityChat, CapabilityCompletion}
	if strings.Contains(lower, "vision") || strings.Contains(lower, "vl") || strings.Contains(lower, "llava") {
		caps = append(caps, CapabilityVision)
	}
	if strings.Contains(lower, "tool") || strings.Contains(lower, "instruct") || strings.Contains(lower, "qwen") || strings.Contains(lower, "llama") {
		caps = append(caps, CapabilityTools)
	}
	return caps
}

// Digest returns a stable, hex-encoded MD5 hash of name, used as
// Ollama's content-addressed "digest" field. It is a name hash, not a
// content hash — the proxy never sees the model's weights.
func Digest(name string) string {
	sum := md5.Sum([]byte(name))
	return hex.EncodeToString(sum[:])
}
