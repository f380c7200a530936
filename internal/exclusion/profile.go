package exclusion

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/harrison/yarascope/internal/filelock"
	"github.com/harrison/yarascope/internal/pathkey"
)

// Profile is the on-disk YAML form of an exclusion set. It carries a curated
// exclusion list between scans.
type Profile struct {
	Excluded []string `yaml:"excluded"`
}

// SaveProfile writes the explicit entries of s to path as YAML. The write is
// serialized against other yarascope processes and lands atomically.
func SaveProfile(path string, s *Set) error {
	profile := Profile{Excluded: make([]string, 0, s.Len())}
	for _, k := range s.List() {
		profile.Excluded = append(profile.Excluded, k.String())
	}

	data, err := yaml.Marshal(&profile)
	if err != nil {
		return fmt.Errorf("failed to marshal exclusion profile: %w", err)
	}
	if err := filelock.WriteLocked(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write exclusion profile %s: %w", path, err)
	}
	return nil
}

// LoadProfile reads a YAML exclusion profile and canonicalizes every entry
// into a fresh Set. A missing file is an error; profiles are only read when
// the user names one explicitly.
func LoadProfile(path string) (*Set, error) {
	data, err := filelock.ReadLocked(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read exclusion profile: %w", err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse exclusion profile %s: %w", path, err)
	}

	set := NewSet()
	for _, entry := range profile.Excluded {
		k, err := pathkey.New(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid exclusion entry %q: %w", entry, err)
		}
		set.Exclude(k)
	}
	return set, nil
}
