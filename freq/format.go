// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package freq

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is the delimiter convention of a frequency table.
type Format int

const (
	// Tab tab-delimited text, the default.
	Tab Format = iota
	// CSV comma-separated values.
	CSV
)

// ParseFormat maps a format tag to a Format. The empty tag means Tab.
func ParseFormat(tag string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "", "tab", "tsv", "txt":
		return Tab, nil
	case "csv":
		return CSV, nil
	}
	return Tab, fmt.Errorf("%w: %q", ErrUnknownFormat, tag)
}

// FormatFromPath guesses the format from the file extension: .csv is CSV, anything else is Tab.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return CSV
	}
	return Tab
}

func (f Format) String() string {
	if f == CSV {
		return "csv"
	}
	return "tab"
}

func (f Format) comma() rune {
	if f == CSV {
		return ','
	}
	return '\t'
}
