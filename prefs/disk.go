// This file is part of Tapedeck.
//
// Tapedeck is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Tapedeck is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Tapedeck.  If not, see <https://www.gnu.org/licenses/>.

package prefs

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// WarningBoilerPlate is inserted at the start of a prefs file. The file is
// plain text but editing by hand is discouraged.
const WarningBoilerPlate = "*** do not edit this file by hand ***"

// the string that separates the key from the value on a prefs file line.
const keySep = " :: "

// Disk represents preference values as stored on disk. Individual preference
// values are registered with the Add() function.
type Disk struct {
	path    string
	entries map[string]pref
}

// NewDisk is the preferred method of initialisation for the Disk type.
func NewDisk(path string) (*Disk, error) {
	return &Disk{
		path:    path,
		entries: make(map[string]pref),
	}, nil
}

func (dsk Disk) String() string {
	s := strings.Builder{}
	for _, key := range dsk.keys() {
		s.WriteString(fmt.Sprintf("%s%s%s\n", key, keySep, dsk.entries[key].String()))
	}
	return s.String()
}

// sorted keys so the file content is stable between saves.
func (dsk Disk) keys() []string {
	keys := make([]string, 0, len(dsk.entries))
	for key := range dsk.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Add preference value to the list of values to load/save from/to disk. The
// key must not contain the key separator sequence.
func (dsk *Disk) Add(key string, p pref) error {
	if strings.Contains(key, strings.TrimSpace(keySep)) {
		return fmt.Errorf("prefs: invalid key (%s)", key)
	}
	dsk.entries[key] = p
	return nil
}

// Load preference values from disk. A missing prefs file is not an error;
// registered values are simply left at their current settings.
func (dsk *Disk) Load() error {
	f, err := os.Open(dsk.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("prefs: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == WarningBoilerPlate || line == "" {
			continue
		}

		key, value, ok := strings.Cut(line, keySep)
		if !ok {
			return fmt.Errorf("prefs: malformed line (%s)", line)
		}

		// keys not registered with this Disk instance are left alone. the
		// file may be shared with other parts of the application
		if p, ok := dsk.entries[key]; ok {
			if err := p.Set(value); err != nil {
				return fmt.Errorf("prefs: %w", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("prefs: %w", err)
	}

	return nil
}

// Save preference values to disk. Unregistered keys already in the file are
// preserved.
func (dsk *Disk) Save() error {
	// read existing file so unregistered keys can be carried over
	carried := make(map[string]string)
	if f, err := os.Open(dsk.path); err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if line == WarningBoilerPlate || line == "" {
				continue
			}
			if key, value, ok := strings.Cut(line, keySep); ok {
				if _, ours := dsk.entries[key]; !ours {
					carried[key] = value
				}
			}
		}
		f.Close()
	}

	keys := dsk.keys()
	for key := range carried {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	s := strings.Builder{}
	s.WriteString(WarningBoilerPlate)
	s.WriteString("\n")
	for _, key := range keys {
		if p, ok := dsk.entries[key]; ok {
			s.WriteString(fmt.Sprintf("%s%s%s\n", key, keySep, p.String()))
		} else {
			s.WriteString(fmt.Sprintf("%s%s%s\n", key, keySep, carried[key]))
		}
	}

	if err := os.WriteFile(dsk.path, []byte(s.String()), 0o600); err != nil {
		return fmt.Errorf("prefs: %w", err)
	}

	return nil
}
