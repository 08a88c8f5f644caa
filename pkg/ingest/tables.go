package ingest

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
)

// ASNMapMissing marks an address without a known autonomous system.
const ASNMapMissing = "NA"

// ASNMap resolves external addresses to autonomous systems.
type ASNMap struct {
	ASN   map[string]string // address -> asn
	Names map[string]string // asn -> display name
}

// Resolve returns the ASN of addr.
func (m *ASNMap) Resolve(addr string) (string, bool) {
	asn, ok := m.ASN[addr]
	return asn, ok
}

// Name returns the display name of asn, or asn itself when unnamed.
func (m *ASNMap) Name(asn string) string {
	if name, ok := m.Names[asn]; ok && name != "" {
		return name
	}
	return asn
}

// ReadASNMap parses `addr,asn[,name]` lines without a header. Rows whose
// ASN is "NA" are skipped; rows with fewer than two fields are malformed.
func ReadASNMap(r io.Reader, source string) (*ASNMap, error) {
	m := &ASNMap{ASN: make(map[string]string), Names: make(map[string]string)}
	err := eachRecord(r, source, false, func(line int, fields []string) error {
		if len(fields) < 2 {
			return &RecordError{Source: source, Line: line, Field: -1,
				Reason: fmt.Sprintf("expected at least 2 fields, got %d", len(fields))}
		}
		if fields[1] == ASNMapMissing || fields[1] == "" {
			return nil
		}
		m.ASN[fields[0]] = fields[1]
		if len(fields) >= 3 && fields[2] != "" {
			m.Names[fields[1]] = fields[2]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GroupRecord assigns an internal host to a primary and secondary group.
type GroupRecord struct {
	Host      string
	Primary   string
	Secondary string
}

// ReadGroups parses `host,primary,secondary,...` with a header row. Rows
// with fewer than three fields are malformed.
func ReadGroups(r io.Reader, source string) ([]GroupRecord, error) {
	var out []GroupRecord
	err := eachRecord(r, source, true, func(line int, fields []string) error {
		if len(fields) < 3 {
			return &RecordError{Source: source, Line: line, Field: -1,
				Reason: fmt.Sprintf("expected at least 3 fields, got %d", len(fields))}
		}
		out = append(out, GroupRecord{Host: fields[0], Primary: fields[1], Secondary: fields[2]})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadScores parses `key,score` lines without a header, as written for
// score outputs. A later line for the same key wins.
func ReadScores(r io.Reader, source string) (map[string]float64, error) {
	out := make(map[string]float64)
	err := eachRecord(r, source, false, func(line int, fields []string) error {
		if len(fields) < 2 {
			return &RecordError{Source: source, Line: line, Field: -1,
				Reason: fmt.Sprintf("expected at least 2 fields, got %d", len(fields))}
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return &RecordError{Source: source, Line: line, Field: 1,
				Reason: fmt.Sprintf("score %q is not numeric", fields[1]), Err: err}
		}
		out[fields[0]] = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadKeys returns the set of first-column keys, one record per line and no
// header. Empty keys are ignored.
func ReadKeys(r io.Reader, source string) (map[string]bool, error) {
	out := make(map[string]bool)
	err := eachRecord(r, source, false, func(_ int, fields []string) error {
		if len(fields) > 0 && fields[0] != "" {
			out[fields[0]] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// OpenTable opens path and parses it with read.
func OpenTable[T any](path string, read func(io.Reader, string) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return read(f, path)
}

// GroupLabels numbers the distinct primary groups in ascending name order
// starting at 0 and maps every host to its group's number.
func GroupLabels(records []GroupRecord) (hosts map[string]int, groups *Index) {
	names := make(map[string]struct{})
	for _, rec := range records {
		names[rec.Primary] = struct{}{}
	}
	groups = SetIndex(names)
	hosts = make(map[string]int, len(records))
	for _, rec := range records {
		id, _ := groups.Lookup(rec.Primary)
		hosts[rec.Host] = id
	}
	return hosts, groups
}

// Groupings collects the member hosts of every primary group, every
// secondary group and every "primary * secondary" combination. Member lists
// are sorted.
func Groupings(records []GroupRecord) map[string][]string {
	sets := make(map[string]map[string]struct{})
	add := func(key, host string) {
		s, ok := sets[key]
		if !ok {
			s = make(map[string]struct{})
			sets[key] = s
		}
		s[host] = struct{}{}
	}
	for _, rec := range records {
		add(rec.Primary, rec.Host)
		add(rec.Secondary, rec.Host)
		add(rec.Primary+" * "+rec.Secondary, rec.Host)
	}

	out := make(map[string][]string, len(sets))
	for key, s := range sets {
		members := make([]string, 0, len(s))
		for h := range s {
			members = append(members, h)
		}
		sort.Strings(members)
		out[key] = members
	}
	return out
}
