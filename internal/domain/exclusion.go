package domain

import "strings"

// DefaultExclusions lists the prefixes always left out of a site backup.
// archiveName is the backup's own filename so a run never packs a previous
// artifact sitting in the root.
func DefaultExclusions(archiveName string) []string {
	if archiveName == "" {
		archiveName = DefaultArchiveName
	}
	return []string{
		archiveName,
		"wp-config.php",
		"wp-content/cache",
		"wp-content/backups",
		".git",
		".svn",
		".DS_Store",
	}
}

// ExclusionSet matches root-relative paths by literal prefix. It is not
// path-segment aware: "wp-content/cache" also matches "wp-content/cache-old".
type ExclusionSet struct {
	prefixes []string
}

// NewExclusionSet merges the defaults for archiveName with extra entries.
// Empty entries are dropped since they would match every path.
func NewExclusionSet(archiveName string, extra ...string) ExclusionSet {
	all := append(DefaultExclusions(archiveName), extra...)
	prefixes := make([]string, 0, len(all))
	for _, p := range all {
		if p == "" {
			continue
		}
		prefixes = append(prefixes, p)
	}
	return ExclusionSet{prefixes: prefixes}
}

// Excludes reports whether rel starts with any prefix in the set. rel must use
// forward slashes and carry no leading separator.
func (s ExclusionSet) Excludes(rel string) bool {
	for _, p := range s.prefixes {
		if strings.HasPrefix(rel, p) {
			return true
		}
	}
	return false
}

func (s ExclusionSet) Prefixes() []string {
	out := make([]string, len(s.prefixes))
	copy(out, s.prefixes)
	return out
}

func (s ExclusionSet) With(extra ...string) ExclusionSet {
	prefixes := s.Prefixes()
	for _, p := range extra {
		if p != "" {
			prefixes = append(prefixes, p)
		}
	}
	return ExclusionSet{prefixes: prefixes}
}
