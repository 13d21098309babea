package ledger

// ViolationKind classifies what a verification diagnostic detected.
type ViolationKind string

const (
	// ViolationContent: the stored content_hash does not match the
	// recomputed hash of the canonical payload.
	ViolationContent ViolationKind = "content_hash_mismatch"
	// ViolationChain: the stored chain_hash does not match the hash
	// recomputed from the payload and the stored previous_hash.
	ViolationChain ViolationKind = "chain_hash_mismatch"
	// ViolationLink: previous_hash does not equal the predecessor's
	// chain_hash, i.e. the link between entries is broken.
	ViolationLink ViolationKind = "broken_link"
)

// Diagnostic pinpoints a single verification failure.
type Diagnostic struct {
	Index    int           `json:"index"`
	EntryID  string        `json:"entry_id"`
	Kind     ViolationKind `json:"kind"`
	Expected string        `json:"expected"`
	Actual   string        `json:"actual"`
}

// Report is the outcome of a full-chain verification pass.
type Report struct {
	IsValid         bool         `json:"is_valid"`
	TotalEntries    int          `json:"total_entries"`
	VerifiedEntries int          `json:"verified_entries"`
	Tampered        []Diagnostic `json:"tampered_entries"`
	BrokenLinks     []Diagnostic `json:"broken_links"`
}

// Verify recomputes every entry's content and chain hashes and checks link
// continuity against the predecessor. It is read-only: corruption is
// reported, never repaired, and the ledger keeps accepting appends since
// the damage may be historical and unrelated to new writes. An entry can
// appear both in Tampered and in BrokenLinks.
func (l *Ledger) Verify() Report {
	entries := l.Entries()
	report := Report{
		TotalEntries: len(entries),
		Tampered:     []Diagnostic{},
		BrokenLinks:  []Diagnostic{},
	}

	prevChainHash := ""
	for i, e := range entries {
		tampered := false

		canonical, err := CanonicalJSON(e.Payload)
		if err != nil {
			// A committed payload that no longer canonicalizes can only mean
			// in-place mutation of the entry.
			report.Tampered = append(report.Tampered, Diagnostic{
				Index: i, EntryID: e.ID, Kind: ViolationContent,
				Actual: e.ContentHash,
			})
			tampered = true
		} else {
			if want := hashHex(canonical); want != e.ContentHash {
				report.Tampered = append(report.Tampered, Diagnostic{
					Index: i, EntryID: e.ID, Kind: ViolationContent,
					Expected: want, Actual: e.ContentHash,
				})
				tampered = true
			}
			if want := hashHex(canonical, []byte(e.PrevHash)); want != e.ChainHash {
				report.Tampered = append(report.Tampered, Diagnostic{
					Index: i, EntryID: e.ID, Kind: ViolationChain,
					Expected: want, Actual: e.ChainHash,
				})
				tampered = true
			}
		}

		if e.PrevHash != prevChainHash {
			report.BrokenLinks = append(report.BrokenLinks, Diagnostic{
				Index: i, EntryID: e.ID, Kind: ViolationLink,
				Expected: prevChainHash, Actual: e.PrevHash,
			})
		}
		prevChainHash = e.ChainHash

		if !tampered {
			report.VerifiedEntries++
		}
	}

	report.IsValid = len(report.Tampered) == 0 && len(report.BrokenLinks) == 0
	return report
}
