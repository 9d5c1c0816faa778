// Package photos implements the Photo Slot Engine (§4.5): per-slot file
// selection from raw/, confidence grading, OCR-boost promotion, atomic
// derived-folder publication, and retention purging.
package photos

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/inspectpack/core/pkg/contract"
	pkgerrors "github.com/inspectpack/core/pkg/errors"
)

// Confidence is the tier a matched candidate is graded at.
type Confidence string

const (
	ConfidenceHigh      Confidence = "high"
	ConfidenceMedium    Confidence = "medium"
	ConfidenceLow       Confidence = "low"
	ConfidenceAmbiguous Confidence = "ambiguous"
)

// Candidate is one raw/ file considered for a slot.
type Candidate struct {
	Path       string
	Confidence Confidence
	MatchedBy  string // "basename_exact" | "basename_prefix" | "key_prefix"
}

// SlotMatch is the Photo Slot Engine's decision for one declared slot:
// either a chosen candidate (Selected != nil) or none.
type SlotMatch struct {
	SlotKey    string
	Selected   *Candidate
	Candidates []Candidate // every file that matched this slot at any tier
}

// MatchResult is the outcome of matching every declared slot against the
// contents of raw/.
type MatchResult struct {
	Matches  []SlotMatch
	Warnings []pkgerrors.Warning
	// Ambiguous lists files that matched two or more distinct slots at
	// the same tier and so were declined from both (§4.5).
	Ambiguous []string
}

// MatchSlots scans rawDir and assigns files to declared slots per the
// basename_exact > basename_prefix > key_prefix priority in §4.5.
func MatchSlots(c *contract.Contract, rawDir string) (*MatchResult, error) {
	entries, err := os.ReadDir(rawDir)
	if err != nil {
		if os.IsNotExist(err) {
			entries = nil
		} else {
			return nil, err
		}
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}

	result := &MatchResult{}

	// slotByFile[tier][file] -> set of slot keys matching at that tier,
	// used to detect a single file matching two distinct slots (§4.5
	// "ambiguous match").
	type tierFileSlots map[string]map[string]bool
	exactByFile := tierFileSlots{}
	prefixByFile := tierFileSlots{}
	keyPrefixByFile := tierFileSlots{}

	perSlotCandidates := make(map[string][]Candidate, len(c.Slots))

	for _, slot := range c.Slots {
		var candidates []Candidate
		for _, name := range files {
			ext := strings.ToLower(filepath.Ext(name))
			if !extAllowed(ext, slot.AllowedExtensions) {
				continue
			}
			base := strings.TrimSuffix(name, filepath.Ext(name))

			switch {
			case strings.EqualFold(base, slot.Basename):
				candidates = append(candidates, Candidate{Path: name, Confidence: ConfidenceHigh, MatchedBy: "basename_exact"})
				registerMatch(exactByFile, name, slot.Key)
			case hasPrefixFold(base, slot.Basename):
				candidates = append(candidates, Candidate{Path: name, Confidence: ConfidenceMedium, MatchedBy: "basename_prefix"})
				registerMatch(prefixByFile, name, slot.Key)
			case hasPrefixFold(base, slot.Key):
				candidates = append(candidates, Candidate{Path: name, Confidence: ConfidenceLow, MatchedBy: "key_prefix"})
				registerMatch(keyPrefixByFile, name, slot.Key)
			}
		}
		perSlotCandidates[slot.Key] = candidates
	}

	ambiguousFiles := map[string]bool{}
	for _, tier := range []tierFileSlots{exactByFile, prefixByFile, keyPrefixByFile} {
		for file, slotKeys := range tier {
			if len(slotKeys) > 1 {
				ambiguousFiles[file] = true
			}
		}
	}

	for _, slot := range c.Slots {
		candidates := perSlotCandidates[slot.Key]
		filtered := candidates[:0:0]
		for _, cand := range candidates {
			if ambiguousFiles[cand.Path] {
				continue
			}
			filtered = append(filtered, cand)
		}

		match := SlotMatch{SlotKey: slot.Key, Candidates: filtered}
		selected, warning := selectBestCandidate(slot, filtered)
		match.Selected = selected
		if warning != nil {
			result.Warnings = append(result.Warnings, *warning)
		}
		if selected != nil && selected.Confidence == ConfidenceLow {
			result.Warnings = append(result.Warnings, pkgerrors.NewWarning(
				pkgerrors.PhotoLowConfidenceMatch, "photos:"+slot.Key, slot.Key,
				"matched only by key_prefix; lowest-confidence tier"))
		}
		result.Matches = append(result.Matches, match)
	}

	for file := range ambiguousFiles {
		result.Ambiguous = append(result.Ambiguous, file)
	}
	sort.Strings(result.Ambiguous)
	for _, file := range result.Ambiguous {
		result.Warnings = append(result.Warnings, pkgerrors.NewWarning(
			pkgerrors.PhotoAmbiguousMatch, "photos:"+file, "", "file matched two or more slots at the same tier"))
	}

	return result, nil
}

// selectBestCandidate picks the highest-confidence candidate, breaking
// same-tier ties via prefer_order, and recording a duplicate-selection
// warning when a tie existed.
func selectBestCandidate(slot contract.SlotSpec, candidates []Candidate) (*Candidate, *pkgerrors.Warning) {
	if len(candidates) == 0 {
		return nil, nil
	}

	best := bestTier(candidates)
	tied := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Confidence == best {
			tied = append(tied, c)
		}
	}
	if len(tied) == 1 {
		return &tied[0], nil
	}

	// prefer_order lists extensions ("jpg" or ".jpg"); the first entry that
	// any tied candidate carries wins.
	chosen := tied[0]
preferLoop:
	for _, prefer := range slot.PreferOrder {
		want := strings.TrimPrefix(strings.ToLower(prefer), ".")
		for _, c := range tied {
			if strings.TrimPrefix(strings.ToLower(filepath.Ext(c.Path)), ".") == want {
				chosen = c
				break preferLoop
			}
		}
	}

	names := make([]string, len(tied))
	for i, c := range tied {
		names[i] = c.Path
	}
	warning := pkgerrors.NewWarning(pkgerrors.PhotoDuplicateAutoSelected, "photos:"+slot.Key, slot.Key,
		"multiple candidates at the same tier: "+strings.Join(names, ", ")+"; chose "+chosen.Path)
	return &chosen, &warning
}

func bestTier(candidates []Candidate) Confidence {
	rank := map[Confidence]int{ConfidenceHigh: 3, ConfidenceMedium: 2, ConfidenceLow: 1}
	best := candidates[0].Confidence
	for _, c := range candidates[1:] {
		if rank[c.Confidence] > rank[best] {
			best = c.Confidence
		}
	}
	return best
}

func extAllowed(ext string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(a, ext) {
			return true
		}
	}
	return false
}

func hasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	return strings.EqualFold(s[:len(prefix)], prefix)
}

func registerMatch(tier map[string]map[string]bool, file, slotKey string) {
	if tier[file] == nil {
		tier[file] = make(map[string]bool)
	}
	tier[file][slotKey] = true
}
