package baseline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/scangate/scangate/pkg/finding"
	"github.com/scangate/scangate/pkg/jsonutil"
	"github.com/scangate/scangate/pkg/report"
)

// Version is the current baseline file format version.
const Version = "1.0"

// ErrBaselineNotFound is returned when a baseline file does not exist.
var ErrBaselineNotFound = errors.New("baseline file not found")

// ErrInvalidBaseline is returned when a baseline file is malformed.
var ErrInvalidBaseline = errors.New("invalid baseline file")

// Baseline is the set of findings of a reference run.
type Baseline struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	RunID     string    `json:"run_id"`
	Site      string    `json:"site"`
	Findings  []Entry   `json:"findings"`

	mu sync.RWMutex
}

// Entry is one finding in a baseline.
type Entry struct {
	Fingerprint string           `json:"fingerprint"`
	Title       string           `json:"title"`
	Address     string           `json:"address"`
	Severity    finding.Severity `json:"severity"`
	FirstSeen   time.Time        `json:"first_seen"`
}

// Comparison splits the current findings against a baseline.
type Comparison struct {
	New       []Entry
	Fixed     []Entry
	Unchanged []Entry
	Summary   string
}

// HasNew reports whether the run has findings absent from the baseline.
func (c Comparison) HasNew() bool { return len(c.New) > 0 }

// New creates an empty baseline for a site.
func New(site string) *Baseline {
	now := time.Now().UTC()
	return &Baseline{
		Version:   Version,
		CreatedAt: now,
		UpdatedAt: now,
		Site:      site,
		Findings:  []Entry{},
	}
}

// Fingerprint identifies a finding by address and title.
func Fingerprint(address, title string) string {
	h := murmur3.New64()
	_, _ = h.Write([]byte(strings.TrimSpace(address)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(strings.TrimSpace(title)))
	return strconv.FormatUint(h.Sum64(), 16)
}

// EntriesFromSet extracts one entry per distinct finding of a vulnerability
// report, sorted by title then address.
func EntriesFromSet(set *report.Set) []Entry {
	entries := []Entry{}
	if set.Len() == 0 {
		return entries
	}
	titleCol, ok := set.Column("title")
	if !ok {
		titleCol = 1
	}
	addrCol, ok := set.Column("ip_address")
	if !ok {
		addrCol = 0
	}
	sevCol, hasSev := set.Column("severity")

	seen := make(map[string]bool, set.Len())
	for _, row := range set.Rows {
		e := Entry{
			Title:    strings.TrimSpace(row.At(titleCol)),
			Address:  strings.TrimSpace(row.At(addrCol)),
			Severity: finding.Unknown,
		}
		if hasSev {
			e.Severity = finding.Parse(row.At(sevCol))
		}
		e.Fingerprint = Fingerprint(e.Address, e.Title)
		if seen[e.Fingerprint] {
			continue
		}
		seen[e.Fingerprint] = true
		entries = append(entries, e)
	}
	sortEntries(entries)
	return entries
}

// Load reads a baseline file.
// Returns ErrBaselineNotFound if the file doesn't exist.
// Returns ErrInvalidBaseline if the file is malformed.
func Load(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrBaselineNotFound
		}
		return nil, fmt.Errorf("reading baseline file: %w", err)
	}

	var b Baseline
	if err := jsonutil.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBaseline, err)
	}
	if b.Version == "" {
		return nil, fmt.Errorf("%w: missing version field", ErrInvalidBaseline)
	}
	return &b, nil
}

// Save writes the baseline to path.
func (b *Baseline) Save(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.UpdatedAt = time.Now().UTC()
	data, err := jsonutil.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling baseline: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing baseline file: %w", err)
	}
	return nil
}

// Compare splits current into new and unchanged findings and lists the
// baseline findings that are gone.
func (b *Baseline) Compare(current []Entry) Comparison {
	b.mu.RLock()
	defer b.mu.RUnlock()

	known := make(map[string]Entry, len(b.Findings))
	for _, e := range b.Findings {
		known[e.Fingerprint] = e
	}
	now := make(map[string]bool, len(current))
	for _, e := range current {
		now[e.Fingerprint] = true
	}

	c := Comparison{New: []Entry{}, Fixed: []Entry{}, Unchanged: []Entry{}}
	for _, e := range current {
		if prev, ok := known[e.Fingerprint]; ok {
			e.FirstSeen = prev.FirstSeen
			c.Unchanged = append(c.Unchanged, e)
		} else {
			c.New = append(c.New, e)
		}
	}
	for _, e := range b.Findings {
		if !now[e.Fingerprint] {
			c.Fixed = append(c.Fixed, e)
		}
	}
	c.Summary = summarize(c)
	return c
}

// Update replaces the baseline findings with current, keeping the first
// seen time of findings already recorded.
func (b *Baseline) Update(current []Entry, runID string) {
	cmp := b.Compare(current)

	b.mu.Lock()
	defer b.mu.Unlock()

	stamp := time.Now().UTC()
	findings := make([]Entry, 0, len(current))
	findings = append(findings, cmp.Unchanged...)
	for _, e := range cmp.New {
		e.FirstSeen = stamp
		findings = append(findings, e)
	}
	sortEntries(findings)
	b.Findings = findings
	b.RunID = runID
}

func summarize(c Comparison) string {
	var s string
	if c.HasNew() {
		s = fmt.Sprintf("%d new finding(s)", len(c.New))
	} else {
		s = "No new findings"
	}
	if len(c.Fixed) > 0 {
		s += fmt.Sprintf(", %d fixed", len(c.Fixed))
	}
	if len(c.Unchanged) > 0 {
		s += fmt.Sprintf(", %d unchanged", len(c.Unchanged))
	}
	return s
}

func sortEntries(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := strings.Compare(a.Title, b.Title); c != 0 {
			return c
		}
		return strings.Compare(a.Address, b.Address)
	})
}
