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

package playback

import (
	"tapedeck/prefs"
)

// Preferences is the disk-backed layer over the playback policy values. The
// structural constants (first frame, first save frame) are properties of the
// recorded stream and are not preferences.
type Preferences struct {
	dsk *prefs.Disk

	SaveInterval       prefs.Int
	JumpInterval       prefs.Int
	MaxConcurrentDiffs prefs.Int
	FastForwardSpeed   prefs.Float
}

func (p *Preferences) String() string {
	return p.dsk.String()
}

// NewPreferences is the preferred method of initialisation for the
// Preferences type. Values start at their defaults and are overridden by any
// stored in the prefs file at the specified path.
func NewPreferences(path string) (*Preferences, error) {
	p := &Preferences{}
	def := DefaultConfig()

	if err := p.SaveInterval.Set(def.SaveInterval); err != nil {
		return nil, err
	}
	if err := p.JumpInterval.Set(def.JumpInterval); err != nil {
		return nil, err
	}
	if err := p.MaxConcurrentDiffs.Set(def.MaxConcurrentDiffs); err != nil {
		return nil, err
	}
	if err := p.FastForwardSpeed.Set(float64(def.FastForwardSpeed)); err != nil {
		return nil, err
	}

	var err error
	p.dsk, err = prefs.NewDisk(path)
	if err != nil {
		return nil, err
	}

	if err := p.dsk.Add("playback.saveInterval", &p.SaveInterval); err != nil {
		return nil, err
	}
	if err := p.dsk.Add("playback.jumpInterval", &p.JumpInterval); err != nil {
		return nil, err
	}
	if err := p.dsk.Add("playback.maxConcurrentDiffs", &p.MaxConcurrentDiffs); err != nil {
		return nil, err
	}
	if err := p.dsk.Add("playback.fastForwardSpeed", &p.FastForwardSpeed); err != nil {
		return nil, err
	}

	if err := p.dsk.Load(); err != nil {
		return nil, err
	}

	return p, nil
}

// Load playback preferences from disk.
func (p *Preferences) Load() error {
	return p.dsk.Load()
}

// Save current playback preferences to disk.
func (p *Preferences) Save() error {
	return p.dsk.Save()
}

// Config returns the stored preference values merged onto the default
// configuration, validated.
func (p *Preferences) Config() (Config, error) {
	conf := DefaultConfig()
	conf.SaveInterval = p.SaveInterval.Get().(int)
	conf.JumpInterval = p.JumpInterval.Get().(int)
	conf.MaxConcurrentDiffs = p.MaxConcurrentDiffs.Get().(int)
	conf.FastForwardSpeed = float32(p.FastForwardSpeed.Get().(float64))

	if err := conf.validate(); err != nil {
		return Config{}, err
	}

	return conf, nil
}
