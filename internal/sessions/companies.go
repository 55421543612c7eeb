package sessions

import (
	"sort"
	"strings"
)

// AliasEntry maps one canonical company name to the strings accepted for it.
type AliasEntry struct {
	Canonical string   `yaml:"name" json:"name"`
	Aliases   []string `yaml:"aliases" json:"aliases"`
}

// AliasTable is an ordered list of canonical companies. Order is the
// tie-break when two canonicals match equally well.
type AliasTable []AliasEntry

// Canonicals lists the canonical names in table order.
func (t AliasTable) Canonicals() []string {
	out := make([]string, 0, len(t))
	for _, e := range t {
		out = append(out, e.Canonical)
	}
	return out
}

// DefaultCloudAliases is the cloud provider table.
func DefaultCloudAliases() AliasTable {
	return AliasTable{
		{Canonical: "Microsoft", Aliases: []string{"Microsoft", "MSFT", "Microsoft Corporation", "Microsoft Corp", "MS"}},
		{Canonical: "Google", Aliases: []string{"Google", "Google Inc", "Google LLC", "Google Cloud", "Alphabet"}},
		{Canonical: "AWS", Aliases: []string{"AWS", "Amazon", "Amazon Web Services", "Amazon AWS", "Amazon.com"}},
		{Canonical: "Oracle", Aliases: []string{"Oracle", "Oracle Corporation", "Oracle Corp", "Oracle Cloud"}},
	}
}

// DefaultOEMAliases is the hardware OEM table.
func DefaultOEMAliases() AliasTable {
	return AliasTable{
		{Canonical: "HP", Aliases: []string{"HP", "Hewlett Packard", "Hewlett-Packard", "HP Inc", "HPE", "Hewlett Packard Enterprise"}},
		{Canonical: "Dell", Aliases: []string{"Dell", "Dell Technologies", "Dell Inc", "Dell EMC", "Dell Computer"}},
		{Canonical: "Lenovo", Aliases: []string{"Lenovo", "Lenovo Group", "Lenovo Inc"}},
		{Canonical: "ASUS", Aliases: []string{"ASUS", "ASUSTeK", "ASUSTeK Computer", "ASUS Computer"}},
		{Canonical: "QTN", Aliases: []string{"QTN", "Quanta", "Quanta Computer", "Quanta Inc"}},
		{Canonical: "Inventec", Aliases: []string{"Inventec", "Inventec Corporation", "Inventec Corp"}},
		{Canonical: "MSI", Aliases: []string{"MSI", "Micro-Star", "Micro-Star International", "Micro Star", "MSI Computer"}},
	}
}

// MatchResult describes how a raw company string resolved.
type MatchResult struct {
	Canonical string
	Alias     string
	Ambiguous bool
	// Candidates lists every canonical that tied for the best match, in
	// table order. Only populated when Ambiguous is true.
	Candidates []string
}

func (m MatchResult) Matched() bool { return m.Canonical != "" }

// Ambiguity records a raw name that matched more than one canonical equally.
type Ambiguity struct {
	Name       string   `json:"name"`
	Chosen     string   `json:"chosen"`
	Candidates []string `json:"candidates"`
}

type normalizedEntry struct {
	canonical string
	aliases   []string
	upper     []string
}

// CompanyMatcher resolves free-text affiliations to canonical companies.
// It is immutable after construction and safe for concurrent use.
type CompanyMatcher struct {
	entries []normalizedEntry
}

func NewCompanyMatcher(table AliasTable) *CompanyMatcher {
	m := &CompanyMatcher{entries: make([]normalizedEntry, 0, len(table))}
	for _, e := range table {
		ne := normalizedEntry{canonical: e.Canonical}
		for _, a := range e.Aliases {
			u := strings.ToUpper(strings.TrimSpace(a))
			if u == "" {
				continue
			}
			ne.aliases = append(ne.aliases, a)
			ne.upper = append(ne.upper, u)
		}
		m.entries = append(m.entries, ne)
	}
	return m
}

// Canonicals lists the canonical names the matcher resolves to.
func (m *CompanyMatcher) Canonicals() []string {
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.canonical)
	}
	return out
}

// Match resolves raw against the alias table. A canonical is a candidate when
// one of its aliases contains the normalized name or is contained in it
// (case-insensitive). The candidate with the longest overlap wins; equal
// overlaps across different canonicals fall back to table order and mark the
// result ambiguous.
func (m *CompanyMatcher) Match(raw string) MatchResult {
	if IsMissing(raw) {
		return MatchResult{}
	}
	name := strings.ToUpper(strings.TrimSpace(raw))

	best := 0
	var res MatchResult
	for _, e := range m.entries {
		score, alias := 0, ""
		for i, u := range e.upper {
			overlap := 0
			switch {
			case strings.Contains(name, u):
				overlap = len(u)
			case strings.Contains(u, name):
				overlap = len(name)
			}
			if overlap > score {
				score, alias = overlap, e.aliases[i]
			}
		}
		switch {
		case score == 0:
		case score > best:
			best = score
			res = MatchResult{Canonical: e.canonical, Alias: alias}
			res.Candidates = []string{e.canonical}
		case score == best && e.canonical != res.Canonical:
			res.Ambiguous = true
			res.Candidates = append(res.Candidates, e.canonical)
		}
	}
	if !res.Ambiguous {
		res.Candidates = nil
	}
	return res
}

// MatchCompany returns the canonical name for raw; ok is false when nothing
// matched.
func (m *CompanyMatcher) MatchCompany(raw string) (string, bool) {
	r := m.Match(raw)
	return r.Canonical, r.Matched()
}

// ExtractCompanyTopicData emits one record per distinct matched company per
// session, tagged with the session's high-level topic. Sessions without a
// usable topic or without companies contribute nothing.
func (m *CompanyMatcher) ExtractCompanyTopicData(days []DayGroup) []CompanyTopic {
	var out []CompanyTopic
	for _, day := range days {
		for _, s := range day.Sessions {
			topic := HighLevelTopic(s.Track)
			if topic == "" || len(s.SpeakerCompanies) == 0 {
				continue
			}
			seen := map[string]struct{}{}
			var matched []string
			for _, c := range s.SpeakerCompanies {
				if IsMissing(c) {
					continue
				}
				canonical, ok := m.MatchCompany(c)
				if !ok {
					continue
				}
				if _, dup := seen[canonical]; dup {
					continue
				}
				seen[canonical] = struct{}{}
				matched = append(matched, canonical)
			}
			for _, c := range matched {
				out = append(out, CompanyTopic{Company: c, Topic: topic, Count: 1, SessionID: s.SessionCode})
			}
		}
	}
	return out
}

// Ambiguities lists the distinct speaker companies in days whose match was
// ambiguous, sorted by name.
func (m *CompanyMatcher) Ambiguities(days []DayGroup) []Ambiguity {
	seen := map[string]struct{}{}
	var out []Ambiguity
	for _, day := range days {
		for _, s := range day.Sessions {
			for _, c := range s.SpeakerCompanies {
				if _, ok := seen[c]; ok {
					continue
				}
				seen[c] = struct{}{}
				r := m.Match(c)
				if r.Ambiguous {
					out = append(out, Ambiguity{Name: c, Chosen: r.Canonical, Candidates: r.Candidates})
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AggregateCompanyTopics sums counts per (company, topic), ordered by company
// then topic. SessionID is dropped.
func AggregateCompanyTopics(records []CompanyTopic) []CompanyTopic {
	type key struct{ company, topic string }
	sums := map[key]int{}
	for _, r := range records {
		sums[key{r.Company, r.Topic}] += r.Count
	}
	out := make([]CompanyTopic, 0, len(sums))
	for k, c := range sums {
		out = append(out, CompanyTopic{Company: k.company, Topic: k.topic, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Company != out[j].Company {
			return out[i].Company < out[j].Company
		}
		return out[i].Topic < out[j].Topic
	})
	return out
}
